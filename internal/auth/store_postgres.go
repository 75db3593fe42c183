package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// PostgresUserStore reads the users table created by the migrations package.
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) (*PostgresUserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresUserStore{db: db}, nil
}

func (s *PostgresUserStore) GetByUsername(ctx context.Context, username string) (User, error) {
	if strings.TrimSpace(username) == "" {
		return User{}, ErrUserNotFound
	}

	var u User
	var email sql.NullString
	const q = `SELECT id, username, password, email, is_active, created_at FROM users WHERE username = $1`
	if err := s.db.QueryRowContext(ctx, q, username).Scan(&u.ID, &u.Username, &u.Password, &email, &u.IsActive, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}
	u.Email = email.String
	return u, nil
}

func (s *PostgresUserStore) Create(ctx context.Context, user User) (int64, error) {
	if err := validateUser(user); err != nil {
		return 0, err
	}
	var email sql.NullString
	if user.Email != "" {
		email = sql.NullString{String: user.Email, Valid: true}
	}

	const q = `
INSERT INTO users (username, password, email, is_active, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	var id int64
	if err := s.db.QueryRowContext(ctx, q, user.Username, user.Password, email, user.IsActive, user.CreatedAt.UTC()).Scan(&id); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrUserExists
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func (s *PostgresUserStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
