package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTP              HTTPConfig
	DatabaseURL       string
	EncryptionKey     string
	Auth              AuthConfig
	UserStateFile     string
	CategoryStateFile string
	ProductStateFile  string
	CustomerStateFile string
	InvoiceStateFile  string
	AuditLogFile      string
	LogLevel          string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type AuthConfig struct {
	// LoginRecency is how recent another active session's activity must be
	// to block a new login.
	LoginRecency      time.Duration
	LocalSessionIdle  time.Duration
	LocalSessionSweep time.Duration
	CookieName        string
	CookieSecure      bool
	SeedUsername      string
	SeedPassword      string
	SeedEmail         string
}

func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:     time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SEC", 10)) * time.Second,
			WriteTimeout:    time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SEC", 15)) * time.Second,
			ShutdownTimeout: time.Duration(getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SEC", 20)) * time.Second,
		},
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		Auth: AuthConfig{
			LoginRecency:      time.Duration(getEnvInt("AUTH_LOGIN_RECENCY_MIN", 20)) * time.Minute,
			LocalSessionIdle:  time.Duration(getEnvInt("AUTH_LOCAL_SESSION_IDLE_MIN", 180)) * time.Minute,
			LocalSessionSweep: time.Duration(getEnvInt("AUTH_LOCAL_SESSION_SWEEP_SEC", 300)) * time.Second,
			CookieName:        getEnv("AUTH_COOKIE_NAME", "vts_session"),
			CookieSecure:      getEnvBool("AUTH_COOKIE_SECURE", false),
			SeedUsername:      getEnv("AUTH_SEED_USERNAME", "admin"),
			SeedPassword:      getEnv("AUTH_SEED_PASSWORD", "Admin@123"),
			SeedEmail:         getEnv("AUTH_SEED_EMAIL", "admin@vts.com"),
		},
		UserStateFile:     getEnv("USER_STATE_FILE", "./data/users.json"),
		CategoryStateFile: getEnv("CATEGORY_STATE_FILE", "./data/categories.json"),
		ProductStateFile:  getEnv("PRODUCT_STATE_FILE", "./data/products.json"),
		CustomerStateFile: getEnv("CUSTOMER_STATE_FILE", "./data/customers.json"),
		InvoiceStateFile:  getEnv("INVOICE_STATE_FILE", "./data/invoices.json"),
		AuditLogFile:      getEnv("AUDIT_LOG_FILE", "./data/audit.log"),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if cfg.HTTP.Addr == "" {
		return Config{}, fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.Auth.LoginRecency <= 0 {
		return Config{}, fmt.Errorf("AUTH_LOGIN_RECENCY_MIN must be > 0")
	}
	if cfg.Auth.LocalSessionIdle <= 0 {
		return Config{}, fmt.Errorf("AUTH_LOCAL_SESSION_IDLE_MIN must be > 0")
	}
	if cfg.Auth.LocalSessionSweep <= 0 {
		return Config{}, fmt.Errorf("AUTH_LOCAL_SESSION_SWEEP_SEC must be > 0")
	}
	if cfg.Auth.CookieName == "" {
		return Config{}, fmt.Errorf("AUTH_COOKIE_NAME must not be empty")
	}
	if cfg.DatabaseURL == "" && cfg.UserStateFile == "" {
		return Config{}, fmt.Errorf("USER_STATE_FILE must not be empty without DATABASE_URL")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}
