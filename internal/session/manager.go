package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRecencyWindow is how recently an active session must have been used
// to block a new login for the same user.
const DefaultRecencyWindow = 20 * time.Minute

var ErrActiveElsewhere = errors.New("user is already active in another session")

type ManagerConfig struct {
	RecencyWindow time.Duration
	Logger        *slog.Logger
}

// Manager is the only component that creates or invalidates sessions.
//
// Two separate rules govern single-device login. CheckLoginAdmission refuses a
// login while another session was used within the recency window.
// DeactivatePrevious, run inside CreateSession, retires any active session
// regardless of age. Callers run admission first; under concurrent logins the
// two can disagree and two rows may briefly both be active.
type Manager struct {
	store   Store
	recency time.Duration
	log     *slog.Logger
	nowFunc func() time.Time
}

func NewManager(store Store, cfg ManagerConfig) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.RecencyWindow < 0 {
		return nil, fmt.Errorf("recency window must be >= 0")
	}
	if cfg.RecencyWindow == 0 {
		cfg.RecencyWindow = DefaultRecencyWindow
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   store,
		recency: cfg.RecencyWindow,
		log:     logger,
		nowFunc: time.Now,
	}, nil
}

// SetClock replaces the manager's time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.nowFunc = now
}

func (m *Manager) RecencyWindow() time.Duration {
	return m.recency
}

// CheckLoginAdmission returns ErrActiveElsewhere when the user's active
// session saw activity inside the recency window. Older active sessions do not
// block; CreateSession supersedes them.
func (m *Manager) CheckLoginAdmission(ctx context.Context, userID int64) error {
	active, err := m.store.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("check active session: %w", err)
	}
	if active.LastActivityTime.After(m.nowFunc().Add(-m.recency)) {
		return ErrActiveElsewhere
	}
	return nil
}

// DeactivatePrevious retires the user's most recent active session, if any,
// without looking at how recently it was used.
func (m *Manager) DeactivatePrevious(ctx context.Context, userID int64) error {
	active, err := m.store.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find previous session: %w", err)
	}
	if _, err := m.store.Deactivate(ctx, active.Token); err != nil {
		return fmt.Errorf("deactivate previous session: %w", err)
	}
	m.log.Info("previous session superseded", "user_id", userID, "session_row", active.ID)
	return nil
}

// CreateSession supersedes any active session for the user and persists a new
// one with a fresh random token.
func (m *Manager) CreateSession(ctx context.Context, userID int64, username, deviceInfo string) (Session, error) {
	if userID <= 0 {
		return Session{}, fmt.Errorf("user id is required")
	}

	token, err := generateToken(32)
	if err != nil {
		return Session{}, fmt.Errorf("generate token: %w", err)
	}

	if err := m.DeactivatePrevious(ctx, userID); err != nil {
		return Session{}, err
	}

	now := m.nowFunc()
	sess := Session{
		UserID:           userID,
		Token:            token,
		DeviceInfo:       deviceInfo,
		LoginTime:        now,
		LastActivityTime: now,
		IsActive:         true,
	}
	id, err := m.store.Create(ctx, sess)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	sess.ID = id

	m.log.Info("session created", "user_id", userID, "username", username, "session_row", id)
	return sess, nil
}

// IsSessionValid reports whether token names an active session owned by
// userID, and on success records now as its last activity. Any lookup or
// storage failure counts as invalid.
func (m *Manager) IsSessionValid(ctx context.Context, token string, userID int64) bool {
	if token == "" || userID <= 0 {
		return false
	}

	sess, err := m.store.FindByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.log.Warn("session lookup failed", "user_id", userID, "error", err)
		}
		return false
	}
	if !sess.IsActive || sess.UserID != userID {
		return false
	}

	touched, err := m.store.TouchActivity(ctx, token, m.nowFunc())
	if err != nil {
		m.log.Warn("session activity update failed", "user_id", userID, "error", err)
		return false
	}
	return touched
}

// ClearSession deactivates the durable session. Unknown, empty or already
// inactive tokens are not an error.
func (m *Manager) ClearSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := m.store.Deactivate(ctx, token); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func generateToken(n int) (string, error) {
	if n < 16 {
		return "", fmt.Errorf("token length too short")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
