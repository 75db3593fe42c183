package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func newMockUserStore(t *testing.T) (*PostgresUserStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewPostgresUserStore(db)
	if err != nil {
		t.Fatalf("NewPostgresUserStore() error: %v", err)
	}
	return store, mock
}

func TestPostgresUserStoreGetByUsername(t *testing.T) {
	store, mock := newMockUserStore(t)
	created := time.Date(2025, 12, 3, 16, 28, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, username, password, email, is_active, created_at FROM users WHERE username = \\$1").
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password", "email", "is_active", "created_at"}).
			AddRow(int64(1), "admin", "cipher", nil, true, created))

	u, err := store.GetByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("GetByUsername() error: %v", err)
	}
	if u.ID != 1 || u.Password != "cipher" || u.Email != "" || !u.IsActive {
		t.Fatalf("unexpected user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresUserStoreGetByUsernameNotFound(t *testing.T) {
	store, mock := newMockUserStore(t)

	mock.ExpectQuery("SELECT id, username, password, email, is_active, created_at FROM users WHERE username = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetByUsername(context.Background(), "missing")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := store.GetByUsername(context.Background(), " "); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for blank username, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresUserStoreCreate(t *testing.T) {
	store, mock := newMockUserStore(t)
	created := time.Date(2025, 12, 3, 16, 28, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("admin", "cipher", "admin@vts.com", true, created).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})

	id, err := store.Create(context.Background(), User{Username: "admin", Password: "cipher", Email: "admin@vts.com", IsActive: true, CreatedAt: created})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}

	_, err = store.Create(context.Background(), User{Username: "admin", Password: "cipher", IsActive: true, CreatedAt: created})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresUserStoreCount(t *testing.T) {
	store, mock := newMockUserStore(t)

	mock.ExpectQuery("SELECT COUNT\\(1\\) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
}
