package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"vtsecommerce/salesadmin/internal/credential"
	"vtsecommerce/salesadmin/internal/session"
)

type testEnv struct {
	svc      *Service
	users    *InMemoryUserStore
	sessions *session.MemoryStore
	manager  *session.Manager
	now      time.Time
}

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		users:    NewInMemoryUserStore(),
		sessions: session.NewMemoryStore(),
		now:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	manager, err := session.NewManager(env.sessions, session.ManagerConfig{Logger: logger})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	manager.SetClock(func() time.Time { return env.now })
	env.manager = manager

	svc, err := NewService(env.users, ServiceConfig{
		Cipher:   credential.New("service-test-key"),
		Sessions: manager,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	svc.nowFunc = func() time.Time { return env.now }
	env.svc = svc
	return env
}

func (e *testEnv) addUser(t *testing.T, username, password string, active bool) User {
	t.Helper()
	enc, err := e.svc.EncryptPassword(password)
	if err != nil {
		t.Fatalf("EncryptPassword() error: %v", err)
	}
	u := User{Username: username, Password: enc, IsActive: active, CreatedAt: e.now}
	id, err := e.users.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("users.Create() error: %v", err)
	}
	u.ID = id
	return u
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(nil, ServiceConfig{}); err == nil {
		t.Fatalf("expected error for nil user store")
	}
	if _, err := NewService(NewInMemoryUserStore(), ServiceConfig{}); err == nil {
		t.Fatalf("expected error for missing cipher")
	}
	if _, err := NewService(NewInMemoryUserStore(), ServiceConfig{Cipher: credential.New("")}); err == nil {
		t.Fatalf("expected error for missing session manager")
	}
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	username := gofakeit.Username()
	password := gofakeit.Password(true, true, true, true, false, 14)
	userAgent := gofakeit.UserAgent()
	u := env.addUser(t, username, password, true)

	res, err := env.svc.Login(context.Background(), username, password, userAgent)
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if res.User.ID != u.ID || res.Session.UserID != u.ID {
		t.Fatalf("expected session for user %d, got %+v", u.ID, res)
	}
	if res.Session.DeviceInfo != userAgent {
		t.Fatalf("expected verbatim user agent, got %q", res.Session.DeviceInfo)
	}
	if !env.svc.IsSessionValid(context.Background(), res.Session.Token, u.ID) {
		t.Fatalf("expected new session to be valid")
	}
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)
	for _, c := range [][2]string{{"", "x"}, {"admin", ""}, {"  ", "  "}} {
		if _, err := env.svc.Login(context.Background(), c[0], c[1], ""); !errors.Is(err, ErrValidation) {
			t.Fatalf("Login(%q, %q) expected ErrValidation, got %v", c[0], c[1], err)
		}
	}
}

func TestLoginInvalidCredentialsAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin", "Admin@123", true)
	env.addUser(t, "retired", "Retired@123", false)

	cases := [][2]string{
		{"admin", "wrong"},
		{"nobody", "Admin@123"},
		{"retired", "Retired@123"},
		{"ADMIN", "Admin@123"},
	}
	for _, c := range cases {
		_, err := env.svc.Login(context.Background(), c[0], c[1], "")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login(%q) expected ErrInvalidCredentials, got %v", c[0], err)
		}
	}
	if _, err := env.sessions.FindActiveByUser(context.Background(), 1); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected no session after failed logins, got %v", err)
	}
}

func TestLoginCorruptStoredPassword(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.users.Create(context.Background(), User{Username: "broken", Password: "%%%", IsActive: true}); err != nil {
		t.Fatalf("users.Create() error: %v", err)
	}

	_, err := env.svc.Login(context.Background(), "broken", "anything", "")
	if !errors.Is(err, credential.ErrDecoding) {
		t.Fatalf("expected ErrDecoding, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("corrupt ciphertext must not look like a bad password")
	}
}

func TestLoginBlockedWhileActiveElsewhere(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "Alice@123", true)
	ctx := context.Background()

	first, err := env.svc.Login(ctx, "alice", "Alice@123", "device-a")
	if err != nil {
		t.Fatalf("first Login() error: %v", err)
	}

	env.advance(5 * time.Minute)
	_, err = env.svc.Login(ctx, "alice", "Alice@123", "device-b")
	if !errors.Is(err, ErrActiveElsewhere) {
		t.Fatalf("expected ErrActiveElsewhere, got %v", err)
	}
	if !env.svc.IsSessionValid(ctx, first.Session.Token, first.User.ID) {
		t.Fatalf("expected first session to remain valid")
	}
}

func TestLoginSupersedesStaleSession(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "Alice@123", true)
	ctx := context.Background()

	first, err := env.svc.Login(ctx, "alice", "Alice@123", "device-a")
	if err != nil {
		t.Fatalf("first Login() error: %v", err)
	}

	env.advance(25 * time.Minute)
	second, err := env.svc.Login(ctx, "alice", "Alice@123", "device-b")
	if err != nil {
		t.Fatalf("second Login() error: %v", err)
	}
	if env.svc.IsSessionValid(ctx, first.Session.Token, first.User.ID) {
		t.Fatalf("expected superseded session to be invalid")
	}
	if !env.svc.IsSessionValid(ctx, second.Session.Token, second.User.ID) {
		t.Fatalf("expected new session to be valid")
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "Alice@123", true)
	ctx := context.Background()

	res, err := env.svc.Login(ctx, "alice", "Alice@123", "")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := env.svc.Logout(ctx, res.Session.Token); err != nil {
			t.Fatalf("Logout() #%d error: %v", i+1, err)
		}
	}
	if err := env.svc.Logout(ctx, "unknown"); err != nil {
		t.Fatalf("Logout(unknown) error: %v", err)
	}

	// Logging out frees the user to sign in again immediately.
	if _, err := env.svc.Login(ctx, "alice", "Alice@123", ""); err != nil {
		t.Fatalf("Login() after logout error: %v", err)
	}
}

func TestSeedUsersOnlyWhenEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seeds := []SeedUser{
		{Username: "admin", Password: "Admin@123", Email: "admin@vts.com"},
		{Username: "salesman1", Password: "Sales@123", Email: "salesman1@vts.com"},
		{Username: "", Password: "skipped"},
	}

	n, err := env.svc.SeedUsers(ctx, seeds)
	if err != nil {
		t.Fatalf("SeedUsers() error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 seeded users, got %d", n)
	}

	u, err := env.users.GetByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("GetByUsername() error: %v", err)
	}
	if u.Password == "Admin@123" {
		t.Fatalf("expected seeded password to be stored encrypted")
	}
	if _, err := env.svc.Login(ctx, "admin", "Admin@123", ""); err != nil {
		t.Fatalf("Login() with seeded user error: %v", err)
	}

	n, err = env.svc.SeedUsers(ctx, seeds)
	if err != nil {
		t.Fatalf("second SeedUsers() error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no users seeded into non-empty store, got %d", n)
	}
}
