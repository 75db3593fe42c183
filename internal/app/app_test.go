package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vtsecommerce/salesadmin/internal/config"
	"vtsecommerce/salesadmin/internal/websession"
)

func fileModeConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		HTTP: config.HTTPConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second},
		Auth: config.AuthConfig{
			LoginRecency:      20 * time.Minute,
			LocalSessionIdle:  time.Hour,
			LocalSessionSweep: 10 * time.Millisecond,
			CookieName:        "vts_session",
			SeedUsername:      "admin",
			SeedPassword:      "Admin@123",
			SeedEmail:         "admin@vts.com",
		},
		UserStateFile:     filepath.Join(dir, "users.json"),
		CategoryStateFile: filepath.Join(dir, "categories.json"),
		ProductStateFile:  filepath.Join(dir, "products.json"),
		CustomerStateFile: filepath.Join(dir, "customers.json"),
		InvoiceStateFile:  filepath.Join(dir, "invoices.json"),
		AuditLogFile:      filepath.Join(dir, "audit.log"),
		LogLevel:          "error",
	}
}

func TestBuildFileModeSeedsOnce(t *testing.T) {
	cfg := fileModeConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := build(context.Background(), cfg, logger, nil); err != nil {
		t.Fatalf("build() error: %v", err)
	}
	// A second start over the same user file must not fail on the existing seed user.
	a, err := build(context.Background(), cfg, logger, nil)
	if err != nil {
		t.Fatalf("second build() error: %v", err)
	}
	if a.server == nil || a.local == nil {
		t.Fatalf("expected server and local session store to be wired")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := fileModeConfig(t)
	a, err := build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	if err != nil {
		t.Fatalf("build() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run() did not return after cancel")
	}
}

// syncBuffer lets the sweeper goroutine log while the test polls.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSweepLocalSessions(t *testing.T) {
	cfg := fileModeConfig(t)
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a, err := build(context.Background(), cfg, logger, nil)
	if err != nil {
		t.Fatalf("build() error: %v", err)
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	a.local.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})
	rec := httptest.NewRecorder()
	a.local.Establish(rec, httptest.NewRequest(http.MethodPost, "/", nil), websession.Data{UserID: 1, Token: "t"})
	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.sweepLocalSessions(ctx, cfg.Auth.LocalSessionSweep)

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(logs.String(), "expired local sessions removed") {
		if time.Now().After(deadline) {
			t.Fatalf("expected idle local session to be swept")
		}
		time.Sleep(5 * time.Millisecond)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	if _, ok := a.local.Load(req); ok {
		t.Fatalf("expected swept session to be gone")
	}
}
