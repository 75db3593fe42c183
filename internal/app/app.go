package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"vtsecommerce/salesadmin/internal/audit"
	"vtsecommerce/salesadmin/internal/auth"
	"vtsecommerce/salesadmin/internal/catalog"
	"vtsecommerce/salesadmin/internal/config"
	"vtsecommerce/salesadmin/internal/credential"
	"vtsecommerce/salesadmin/internal/customer"
	"vtsecommerce/salesadmin/internal/httpserver"
	"vtsecommerce/salesadmin/internal/migrations"
	"vtsecommerce/salesadmin/internal/observability"
	"vtsecommerce/salesadmin/internal/sales"
	"vtsecommerce/salesadmin/internal/session"
	"vtsecommerce/salesadmin/internal/websession"
)

type App struct {
	cfg    config.Config
	log    *slog.Logger
	db     *sql.DB
	local  *websession.Store
	server *httpserver.Server
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := observability.NewLogger(cfg.LogLevel)

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
	}

	a, err := build(ctx, cfg, logger, db)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger, db *sql.DB) (*App, error) {
	var (
		userStore    auth.UserStore
		sessionStore session.Store
		categories   httpserver.CategoryService
		products     httpserver.ProductService
		customers    httpserver.CustomerService
		invoiceRepo  sales.Repository
		migrationSvc httpserver.MigrationService
	)
	if db != nil {
		m, err := migrations.NewServiceWithPostgres(db, logger)
		if err != nil {
			return nil, fmt.Errorf("create migration service: %w", err)
		}
		if _, err := m.Apply(ctx); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		migrationSvc = m

		if userStore, err = auth.NewPostgresUserStore(db); err != nil {
			return nil, fmt.Errorf("create postgres user store: %w", err)
		}
		if sessionStore, err = session.NewPostgresStore(db); err != nil {
			return nil, fmt.Errorf("create postgres session store: %w", err)
		}
		if categories, err = catalog.NewPGService(db); err != nil {
			return nil, fmt.Errorf("create postgres category service: %w", err)
		}
		if products, err = catalog.NewPGProductService(db); err != nil {
			return nil, fmt.Errorf("create postgres product service: %w", err)
		}
		if customers, err = customer.NewPGService(db); err != nil {
			return nil, fmt.Errorf("create postgres customer service: %w", err)
		}
		if invoiceRepo, err = sales.NewPostgresRepository(db); err != nil {
			return nil, fmt.Errorf("create postgres invoice repository: %w", err)
		}
	} else {
		logger.Warn("DATABASE_URL not set; sessions are kept in memory and users in a local file")
		var err error
		if userStore, err = auth.NewFileUserStore(cfg.UserStateFile); err != nil {
			return nil, fmt.Errorf("create user store: %w", err)
		}
		sessionStore = session.NewMemoryStore()
		fileCategories, err := catalog.NewServiceWithFile(cfg.CategoryStateFile)
		if err != nil {
			return nil, fmt.Errorf("create category service: %w", err)
		}
		fileProducts, err := catalog.NewProductServiceWithFile(fileCategories, cfg.ProductStateFile)
		if err != nil {
			return nil, fmt.Errorf("create product service: %w", err)
		}
		fileCustomers, err := customer.NewServiceWithFile(cfg.CustomerStateFile)
		if err != nil {
			return nil, fmt.Errorf("create customer service: %w", err)
		}
		fileInvoices, err := sales.NewMemoryRepositoryWithFile(cfg.InvoiceStateFile)
		if err != nil {
			return nil, fmt.Errorf("create invoice repository: %w", err)
		}
		// Foreign keys guard these deletes in Postgres.
		fileProducts.SetUsageCheck(fileInvoices.ProductReferenced)
		fileCustomers.SetUsageCheck(fileInvoices.CustomerReferenced)
		categories, products, customers, invoiceRepo = fileCategories, fileProducts, fileCustomers, fileInvoices
	}

	if credential.UsesDefaultKey(cfg.EncryptionKey) {
		logger.Warn("ENCRYPTION_KEY not set; falling back to the built-in default key")
	}
	manager, err := session.NewManager(sessionStore, session.ManagerConfig{
		RecencyWindow: cfg.Auth.LoginRecency,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create session manager: %w", err)
	}
	authService, err := auth.NewService(userStore, auth.ServiceConfig{
		Cipher:   credential.New(cfg.EncryptionKey),
		Sessions: manager,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create auth service: %w", err)
	}

	seeded, err := authService.SeedUsers(ctx, []auth.SeedUser{{
		Username: cfg.Auth.SeedUsername,
		Password: cfg.Auth.SeedPassword,
		Email:    cfg.Auth.SeedEmail,
	}})
	if err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	if seeded > 0 {
		logger.Info("seeded initial users", "count", seeded)
	}

	invoices, err := sales.NewService(invoiceRepo, sales.ServiceConfig{
		Products:  products,
		Customers: customers,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice service: %w", err)
	}

	local := websession.NewStore(websession.Config{
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.Auth.CookieSecure,
		IdleTimeout:  cfg.Auth.LocalSessionIdle,
	})

	server := httpserver.New(cfg.HTTP, httpserver.Deps{
		Auth:       authService,
		Sessions:   local,
		Categories: categories,
		Products:   products,
		Customers:  customers,
		Invoices:   invoices,
		Migrations: migrationSvc,
		Audit:      audit.NewLogger(cfg.AuditLogFile),
		Logger:     logger,
	})

	return &App{
		cfg:    cfg,
		log:    logger,
		db:     db,
		local:  local,
		server: server,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer func() {
		if a.db != nil {
			_ = a.db.Close()
		}
	}()

	errCh := make(chan error, 1)

	go func() {
		a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)
		errCh <- a.server.Start()
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.sweepLocalSessions(sweepCtx, a.cfg.Auth.LocalSessionSweep)

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}

// sweepLocalSessions drops idle cookie-bound entries. Durable session rows
// are never swept; they go stale lazily.
func (a *App) sweepLocalSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.local.Sweep(); n > 0 {
				a.log.Debug("expired local sessions removed", "count", n)
			}
		}
	}
}
