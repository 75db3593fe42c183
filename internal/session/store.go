package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrStorage        = errors.New("session storage failure")
	ErrDuplicateToken = fmt.Errorf("%w: duplicate session token", ErrStorage)
)

// Store is durable CRUD over session rows. It does not enforce the
// single-active-session rule; Manager does.
type Store interface {
	Create(ctx context.Context, s Session) (int64, error)
	FindByToken(ctx context.Context, token string) (Session, error)
	FindActiveByUser(ctx context.Context, userID int64) (Session, error)
	Deactivate(ctx context.Context, token string) (bool, error)
	TouchActivity(ctx context.Context, token string, at time.Time) (bool, error)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Session)}
}

func (s *MemoryStore) Create(_ context.Context, sess Session) (int64, error) {
	if sess.Token == "" {
		return 0, fmt.Errorf("%w: token is required", ErrStorage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[sess.Token]; ok {
		return 0, ErrDuplicateToken
	}
	s.nextID++
	sess.ID = s.nextID
	s.rows[sess.Token] = sess
	return sess.ID, nil
}

func (s *MemoryStore) FindByToken(_ context.Context, token string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.rows[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) FindActiveByUser(_ context.Context, userID int64) (Session, error) {
	s.mu.RLock()
	matches := make([]Session, 0, 1)
	for _, sess := range s.rows {
		if sess.UserID == userID && sess.IsActive {
			matches = append(matches, sess)
		}
	}
	s.mu.RUnlock()

	if len(matches) == 0 {
		return Session{}, ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].LastActivityTime.Equal(matches[j].LastActivityTime) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].LastActivityTime.After(matches[j].LastActivityTime)
	})
	return matches[0], nil
}

func (s *MemoryStore) Deactivate(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.rows[token]
	if !ok {
		return false, nil
	}
	sess.IsActive = false
	s.rows[token] = sess
	return true, nil
}

func (s *MemoryStore) TouchActivity(_ context.Context, token string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.rows[token]
	if !ok {
		return false, nil
	}
	sess.LastActivityTime = at
	s.rows[token] = sess
	return true, nil
}
