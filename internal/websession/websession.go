// Package websession keeps the per-browser identifiers (user id, username,
// session token) that tie a cookie to a durable session row.
//
// Entries live in process memory and expire after an idle period; this is the
// absolute local lifetime, separate from the login recency window.
package websession

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultCookieName  = "vts_session"
	DefaultIdleTimeout = 3 * time.Hour
)

type Data struct {
	UserID   int64
	Username string
	Token    string
}

// HasIdentity reports whether both a user id and a session token are present.
func (d Data) HasIdentity() bool {
	return d.UserID > 0 && d.Token != ""
}

type Config struct {
	CookieName   string
	CookieSecure bool
	IdleTimeout  time.Duration
}

type entry struct {
	data     Data
	lastSeen time.Time
}

type Store struct {
	cookieName string
	secure     bool
	idle       time.Duration
	nowFunc    func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

func NewStore(cfg Config) *Store {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	return &Store{
		cookieName: cfg.CookieName,
		secure:     cfg.CookieSecure,
		idle:       cfg.IdleTimeout,
		nowFunc:    time.Now,
		entries:    make(map[string]entry),
	}
}

// SetClock replaces the store's time source.
func (s *Store) SetClock(now func() time.Time) {
	s.nowFunc = now
}

// Load returns the identifiers bound to the request's cookie and slides the
// entry's idle deadline forward.
func (s *Store) Load(r *http.Request) (Data, bool) {
	c, err := r.Cookie(s.cookieName)
	if err != nil || c.Value == "" {
		return Data{}, false
	}
	return s.get(c.Value)
}

func (s *Store) get(id string) (Data, bool) {
	now := s.nowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Data{}, false
	}
	if now.Sub(e.lastSeen) > s.idle {
		delete(s.entries, id)
		return Data{}, false
	}
	e.lastSeen = now
	s.entries[id] = e
	return e.data, true
}

// Establish binds data to a fresh cookie id, dropping any entry the request
// already carried.
func (s *Store) Establish(w http.ResponseWriter, r *http.Request, data Data) {
	if c, err := r.Cookie(s.cookieName); err == nil {
		s.remove(c.Value)
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = entry{data: data, lastSeen: s.nowFunc()}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear erases the request's identifiers and expires its cookie.
func (s *Store) Clear(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(s.cookieName); err == nil {
		s.remove(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Sweep drops idle entries and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.nowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if now.Sub(e.lastSeen) > s.idle {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// CurrentUserID returns the user id bound to the request, if any.
func (s *Store) CurrentUserID(r *http.Request) (int64, bool) {
	d, ok := s.Load(r)
	if !ok || d.UserID <= 0 {
		return 0, false
	}
	return d.UserID, true
}

// CurrentUsername returns the username bound to the request, if any.
func (s *Store) CurrentUsername(r *http.Request) (string, bool) {
	d, ok := s.Load(r)
	if !ok || d.Username == "" {
		return "", false
	}
	return d.Username, true
}
