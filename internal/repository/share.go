package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/Azelphur/ownCloud-share-tools/internal/models"
)

// ErrShareNotFound is returned when no share has the requested id.
var ErrShareNotFound = errors.New("share not found")

const shareColumns = `id, owner, share_type, share_with, path, item_type, permissions, token, password_hash, expiration, created_at`

// PostgresShareRepository stores shares in the shares table.
type PostgresShareRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresShareRepository creates a new PostgresShareRepository using the provided *sql.DB.
func NewPostgresShareRepository(db *sql.DB) *PostgresShareRepository {
	return &PostgresShareRepository{DB: db}
}

// ParentOf returns the folder containing p. Subfile listings match on it.
func ParentOf(p string) string {
	return path.Dir(p)
}

// CreateShare inserts s and fills in its ID and CreatedAt.
func (r *PostgresShareRepository) CreateShare(ctx context.Context, s *models.Share) error {
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO shares (owner, share_type, share_with, path, parent, item_type, permissions, token, password_hash, expiration)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, s.Owner, int(s.ShareType), s.ShareWith, s.Path, ParentOf(s.Path), s.ItemType,
		int(s.Permissions), s.Token, s.PasswordHash, nullTime(s.Expiration),
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("CreateShare: %w", err)
	}
	return nil
}

// GetShare fetches one share by id.
func (r *PostgresShareRepository) GetShare(ctx context.Context, id int64) (*models.Share, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+shareColumns+` FROM shares WHERE id = $1`, id)
	s, err := scanShare(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetShare: %w", err)
	}
	return s, nil
}

// ListShares returns the shares matching f, ordered by id.
func (r *PostgresShareRepository) ListShares(ctx context.Context, f models.ShareFilter) ([]models.Share, error) {
	var (
		conds []string
		args  []any
	)
	where := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !(f.Reshares && f.Path != "") {
		where("owner = $%d", f.Owner)
	}
	if f.Path != "" {
		if f.Subfiles {
			where("parent = $%d", f.Path)
		} else {
			where("path = $%d", f.Path)
		}
	}

	q := `SELECT ` + shareColumns + ` FROM shares`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	q += ` ORDER BY id`

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ListShares: %w", err)
	}
	defer rows.Close()

	var shares []models.Share
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		shares = append(shares, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListShares: %w", err)
	}
	return shares, nil
}

// UpdateShare writes the mutable fields of s: permissions, password and expiration.
func (r *PostgresShareRepository) UpdateShare(ctx context.Context, s *models.Share) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE shares SET permissions = $1, password_hash = $2, expiration = $3 WHERE id = $4
	`, int(s.Permissions), s.PasswordHash, nullTime(s.Expiration), s.ID)
	if err != nil {
		return fmt.Errorf("UpdateShare: %w", err)
	}
	return expectOne(res)
}

// DeleteShare removes a share.
func (r *PostgresShareRepository) DeleteShare(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM shares WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeleteShare: %w", err)
	}
	return expectOne(res)
}

// DeleteExpired removes public links whose expiration date is before the cutoff.
func (r *PostgresShareRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM shares
		 WHERE share_type = $1
		   AND expiration IS NOT NULL
		   AND expiration < $2
	`, int(models.ShareTypePublicLink), before)
	if err != nil {
		return 0, fmt.Errorf("DeleteExpired: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShare(row rowScanner) (*models.Share, error) {
	var (
		s          models.Share
		shareType  int
		perms      int
		expiration sql.NullTime
	)
	err := row.Scan(&s.ID, &s.Owner, &shareType, &s.ShareWith, &s.Path, &s.ItemType,
		&perms, &s.Token, &s.PasswordHash, &expiration, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.ShareType = models.ShareType(shareType)
	s.Permissions = models.Permission(perms)
	if expiration.Valid {
		t := expiration.Time.UTC()
		s.Expiration = &t
	}
	return &s, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrShareNotFound
	}
	return nil
}
