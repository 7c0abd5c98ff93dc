package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    login TEXT PRIMARY KEY,
    password_hash BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS shares (
    id BIGSERIAL PRIMARY KEY,
    owner TEXT NOT NULL REFERENCES users(login) ON DELETE CASCADE,
    share_type SMALLINT NOT NULL,
    share_with TEXT NOT NULL DEFAULT '',
    path TEXT NOT NULL,
    parent TEXT NOT NULL,
    item_type TEXT NOT NULL,
    permissions INTEGER NOT NULL,
    token TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL DEFAULT '',
    expiration TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS shares_owner_path ON shares (owner, path);
CREATE INDEX IF NOT EXISTS shares_owner_parent ON shares (owner, parent);
`

// InitPostgres opens the database and creates the share schema.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}
