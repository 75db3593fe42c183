package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"vtsecommerce/salesadmin/internal/app"
	"vtsecommerce/salesadmin/internal/config"
	"vtsecommerce/salesadmin/internal/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("salesadmin exited", "error", err)
		os.Exit(1)
	}
}

// run owns the process lifetime so deferred cleanup happens before exit.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(observability.NewLogger(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	slog.Info("salesadmin configured",
		"addr", cfg.HTTP.Addr,
		"postgres", cfg.DatabaseURL != "",
		"login_recency", cfg.Auth.LoginRecency.String(),
	)
	return a.Run(ctx)
}
