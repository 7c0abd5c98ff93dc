package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Azelphur/ownCloud-share-tools/internal/models"
)

var shareCols = []string{"id", "owner", "share_type", "share_with", "path", "item_type",
	"permissions", "token", "password_hash", "expiration", "created_at"}

func setupShareMock(t *testing.T) (*PostgresShareRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresShareRepository(db)
	cleanup := func() {
		db.Close()
	}
	return repo, mock, cleanup
}

func TestCreateShare_Success(t *testing.T) {
	repo, mock, cleanup := setupShareMock(t)
	defer cleanup()

	created := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO shares`)).
		WithArgs("alice", 3, "", "/docs/report.pdf", "/docs", "file", 1, "tok", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), created))

	s := &models.Share{
		Owner:       "alice",
		ShareType:   models.ShareTypePublicLink,
		Path:        "/docs/report.pdf",
		ItemType:    "file",
		Permissions: models.PermissionRead,
		Token:       "tok",
	}
	if err := repo.CreateShare(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != 42 {
		t.Errorf("expected id 42, got %d", s.ID)
	}
	if !s.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, s.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetShare_Success(t *testing.T) {
	repo, mock, cleanup := setupShareMock(t)
	defer cleanup()

	exp := time.Date(2031, 3, 9, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + shareColumns + ` FROM shares WHERE id = $1`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(shareCols).
			AddRow(int64(7), "alice", 3, "", "/a", "folder", 5, "tok", "$2a$x", exp, time.Now()))

	s, err := repo.GetShare(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ShareType != models.ShareTypePublicLink || s.Permissions != 5 || s.Token != "tok" {
		t.Errorf("unexpected share %+v", s)
	}
	if s.Expiration == nil || !s.Expiration.Equal(exp) {
		t.Errorf("expected expiration %v, got %v", exp, s.Expiration)
	}
}

func TestGetShare_NotFound(t *testing.T) {
	repo, mock, cleanup := setupShareMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM shares WHERE id = $1`)).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(shareCols))

	_, err := repo.GetShare(context.Background(), 9)
	if !errors.Is(err, ErrShareNotFound) {
		t.Errorf("expected ErrShareNotFound, got %v", err)
	}
}

func TestListShares_Filters(t *testing.T) {
	tests := []struct {
		name   string
		filter models.ShareFilter
		query  string
		args   []driver.Value
	}{
		{
			name:   "all of owner",
			filter: models.ShareFilter{Owner: "alice"},
			query:  `FROM shares WHERE owner = $1 ORDER BY id`,
			args:   []driver.Value{"alice"},
		},
		{
			name:   "one path",
			filter: models.ShareFilter{Owner: "alice", Path: "/a"},
			query:  `FROM shares WHERE owner = $1 AND path = $2 ORDER BY id`,
			args:   []driver.Value{"alice", "/a"},
		},
		{
			name:   "subfiles",
			filter: models.ShareFilter{Owner: "alice", Path: "/a", Subfiles: true},
			query:  `FROM shares WHERE owner = $1 AND parent = $2 ORDER BY id`,
			args:   []driver.Value{"alice", "/a"},
		},
		{
			name:   "reshares",
			filter: models.ShareFilter{Owner: "alice", Path: "/a", Reshares: true},
			query:  `FROM shares WHERE path = $1 ORDER BY id`,
			args:   []driver.Value{"/a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupShareMock(t)
			defer cleanup()

			mock.ExpectQuery(regexp.QuoteMeta(tt.query)).
				WithArgs(tt.args...).
				WillReturnRows(sqlmock.NewRows(shareCols).
					AddRow(int64(1), "alice", 0, "bob", "/a", "folder", 31, "", "", nil, time.Now()))

			shares, err := repo.ListShares(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(shares) != 1 || shares[0].ShareWith != "bob" || shares[0].Expiration != nil {
				t.Errorf("unexpected shares %+v", shares)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestUpdateShare(t *testing.T) {
	repo, mock, cleanup := setupShareMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE shares SET permissions = $1, password_hash = $2, expiration = $3 WHERE id = $4`)).
		WithArgs(3, "", sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE shares`)).
		WithArgs(3, "", sqlmock.AnyArg(), int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateShare(context.Background(), &models.Share{ID: 5, Permissions: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.UpdateShare(context.Background(), &models.Share{ID: 6, Permissions: 3}); !errors.Is(err, ErrShareNotFound) {
		t.Errorf("expected ErrShareNotFound, got %v", err)
	}
}

func TestDeleteShare(t *testing.T) {
	repo, mock, cleanup := setupShareMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM shares WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM shares WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.DeleteShare(context.Background(), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.DeleteShare(context.Background(), 5); !errors.Is(err, ErrShareNotFound) {
		t.Errorf("expected ErrShareNotFound on second delete, got %v", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, cleanup := setupShareMock(t)
	defer cleanup()

	cutoff := time.Date(2031, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM shares").
		WithArgs(3, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteExpired(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
}

func TestDeleteExpired_Error(t *testing.T) {
	repo, mock, cleanup := setupShareMock(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM shares").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("db fail"))

	if _, err := repo.DeleteExpired(context.Background(), time.Now()); err == nil {
		t.Error("expected error, got nil")
	}
}
