package httpserver

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"vtsecommerce/salesadmin/internal/auth"
	"vtsecommerce/salesadmin/internal/catalog"
	"vtsecommerce/salesadmin/internal/config"
	"vtsecommerce/salesadmin/internal/customer"
	"vtsecommerce/salesadmin/internal/migrations"
	"vtsecommerce/salesadmin/internal/sales"
	"vtsecommerce/salesadmin/internal/websession"
)

//go:embed static templates
var assets embed.FS

type AuthService interface {
	Login(ctx context.Context, username, password, deviceInfo string) (auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
	IsSessionValid(ctx context.Context, token string, userID int64) bool
}

// LocalSessions holds the per-browser identifiers bound to the session cookie.
type LocalSessions interface {
	Load(r *http.Request) (websession.Data, bool)
	Establish(w http.ResponseWriter, r *http.Request, data websession.Data)
	Clear(w http.ResponseWriter, r *http.Request)
	CurrentUserID(r *http.Request) (int64, bool)
	CurrentUsername(r *http.Request) (string, bool)
}

type CategoryService interface {
	Create(ctx context.Context, in catalog.Input) (catalog.Category, error)
	List(ctx context.Context) ([]catalog.Category, error)
	Get(ctx context.Context, id int64) (catalog.Category, error)
	Update(ctx context.Context, id int64, in catalog.Input) (catalog.Category, error)
	Delete(ctx context.Context, id int64) error
}

type ProductService interface {
	Create(ctx context.Context, in catalog.ProductInput) (catalog.Product, error)
	List(ctx context.Context, f catalog.ProductFilter) ([]catalog.Product, error)
	Get(ctx context.Context, id int64) (catalog.Product, error)
	Update(ctx context.Context, id int64, in catalog.ProductInput) (catalog.Product, error)
	Delete(ctx context.Context, id int64) error
}

type CustomerService interface {
	Create(ctx context.Context, in customer.Input) (customer.Customer, error)
	List(ctx context.Context, f customer.Filter) ([]customer.Customer, error)
	Get(ctx context.Context, id int64) (customer.Customer, error)
	Update(ctx context.Context, id int64, in customer.Input) (customer.Customer, error)
	Delete(ctx context.Context, id int64) error
}

type InvoiceService interface {
	Create(ctx context.Context, in sales.CreateInput, createdBy int64) (sales.Invoice, error)
	List(ctx context.Context, f sales.Filter) ([]sales.Invoice, error)
	Get(ctx context.Context, id int64) (sales.Invoice, error)
	Delete(ctx context.Context, id int64) error
	Summary(ctx context.Context) (sales.Summary, error)
}

type MigrationService interface {
	Status(ctx context.Context) ([]migrations.Status, error)
}

type AuditLogger interface {
	Log(actor, action, target, outcome, detail string) error
}

type Deps struct {
	Auth       AuthService
	Sessions   LocalSessions
	Categories CategoryService
	Products   ProductService
	Customers  CustomerService
	Invoices   InvoiceService
	Migrations MigrationService
	Audit      AuditLogger
	Logger     *slog.Logger
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewHandler(deps),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// NewHandler builds the full handler chain: request logging, then the
// session gate, then the routes.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	pages := template.Must(template.ParseFS(assets, "templates/*.html"))
	static, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		handleReady(w, r, deps)
	})
	mux.Handle("/js/", http.FileServer(http.FS(static)))

	registerAccountHandlers(mux, deps, pages)
	registerCategoryHandlers(mux, deps)
	registerProductHandlers(mux, deps)
	registerCustomerHandlers(mux, deps)
	registerInvoiceHandlers(mux, deps)
	registerMigrationHandlers(mux, deps)

	return loggingMiddleware(deps.Logger, sessionGate(deps, mux))
}

func handleReady(w http.ResponseWriter, r *http.Request, deps Deps) {
	if deps.Migrations == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	status, err := deps.Migrations.Status(r.Context())
	if err != nil {
		deps.Logger.Error("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	for _, st := range status {
		if !st.Applied {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "pending migrations"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func registerMigrationHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/system/migrations/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if _, ok := requireSession(w, r, deps); !ok {
			return
		}
		if deps.Migrations == nil {
			writeError(w, http.StatusServiceUnavailable, "migration service unavailable")
			return
		}
		status, err := deps.Migrations.Status(r.Context())
		if err != nil {
			deps.Logger.Error("migration status failed", "error", err)
			writeError(w, http.StatusInternalServerError, "migration status failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": status})
	})
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Info("http request",
			"rid", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", clientIP(r),
		)
	})
}

type requestIDKey struct{}

func requestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(requestIDKey{}).(string); ok {
		return s
	}
	return ""
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func auditReq(a AuditLogger, r *http.Request, actor, action, target, outcome, detail string) {
	parts := []string{
		"rid=" + requestIDFromContext(r.Context()),
		"ip=" + clientIP(r),
		"ua=" + strings.TrimSpace(r.UserAgent()),
	}
	if strings.TrimSpace(detail) != "" {
		parts = append(parts, "detail="+strings.TrimSpace(detail))
	}
	auditSafe(a, actor, action, target, outcome, strings.Join(parts, " | "))
}

func auditSafe(a AuditLogger, actor, action, target, outcome, detail string) {
	if a == nil {
		return
	}
	_ = a.Log(actor, action, target, outcome, detail)
}
