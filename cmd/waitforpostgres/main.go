package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"

	"vtsecommerce/salesadmin/internal/observability"
)

const pingInterval = 2 * time.Second

func main() {
	logger := observability.NewLogger(os.Getenv("LOG_LEVEL"))

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		logger.Error("TEST_POSTGRES_DSN or DATABASE_URL is required")
		os.Exit(2)
	}

	timeout := 60 * time.Second
	if raw := os.Getenv("WAIT_FOR_POSTGRES_TIMEOUT_SEC"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			logger.Error("invalid WAIT_FOR_POSTGRES_TIMEOUT_SEC", "value", raw)
			os.Exit(2)
		}
		timeout = time.Duration(secs) * time.Second
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("open postgres failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := waitReady(ctx, db, logger); err != nil {
		logger.Error("postgres not ready", "timeout", timeout.String(), "error", err)
		os.Exit(1)
	}
	logger.Info("postgres ready")
}

// waitReady pings until the database answers or ctx expires.
func waitReady(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingInterval)
		lastErr = db.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		logger.Debug("postgres ping failed", "attempt", attempt, "error", lastErr)

		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), lastErr)
		case <-time.After(pingInterval):
		}
	}
}
