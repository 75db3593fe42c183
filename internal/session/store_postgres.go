package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresStore keeps sessions in the user_sessions table created by the
// migrations package.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresStore{db: db}, nil
}

const sessionColumns = `id, user_id, session_id, device_info, login_time, last_activity_time, is_active`

func (s *PostgresStore) Create(ctx context.Context, sess Session) (int64, error) {
	const q = `
INSERT INTO user_sessions (user_id, session_id, device_info, login_time, last_activity_time, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	var device sql.NullString
	if sess.DeviceInfo != "" {
		device = sql.NullString{String: sess.DeviceInfo, Valid: true}
	}

	var id int64
	err := s.db.QueryRowContext(ctx, q,
		sess.UserID, sess.Token, device, sess.LoginTime.UTC(), sess.LastActivityTime.UTC(), sess.IsActive,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, ErrDuplicateToken
		}
		return 0, storageErr("insert session", err)
	}
	return id, nil
}

func (s *PostgresStore) FindByToken(ctx context.Context, token string) (Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE session_id = $1`
	sess, err := scanSession(s.db.QueryRowContext(ctx, q, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, storageErr("query session by token", err)
	}
	return sess, nil
}

func (s *PostgresStore) FindActiveByUser(ctx context.Context, userID int64) (Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM user_sessions
WHERE user_id = $1 AND is_active = TRUE
ORDER BY last_activity_time DESC, id DESC
LIMIT 1`
	sess, err := scanSession(s.db.QueryRowContext(ctx, q, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, storageErr("query active session", err)
	}
	return sess, nil
}

func (s *PostgresStore) Deactivate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	const q = `UPDATE user_sessions SET is_active = FALSE WHERE session_id = $1`
	return s.execAffected(ctx, "deactivate session", q, token)
}

func (s *PostgresStore) TouchActivity(ctx context.Context, token string, at time.Time) (bool, error) {
	if token == "" {
		return false, nil
	}
	const q = `UPDATE user_sessions SET last_activity_time = $1 WHERE session_id = $2`
	return s.execAffected(ctx, "touch session activity", q, at.UTC(), token)
}

func (s *PostgresStore) execAffected(ctx context.Context, op, q string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, storageErr(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storageErr(op+": read affected rows", err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var device sql.NullString
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Token, &device, &sess.LoginTime, &sess.LastActivityTime, &sess.IsActive); err != nil {
		return Session{}, err
	}
	sess.DeviceInfo = device.String
	return sess, nil
}
