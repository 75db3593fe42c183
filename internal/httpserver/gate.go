package httpserver

import (
	"context"
	"net/http"
	"strings"

	"vtsecommerce/salesadmin/internal/audit"
	"vtsecommerce/salesadmin/internal/websession"
)

const (
	loginPath   = "/account/login"
	expiredPath = "/account/login?expired=true"
)

var publicPrefixes = []string{
	"/account/login",
	"/account/logout",
	"/css/",
	"/js/",
	"/lib/",
	"/home/",
	"/healthz",
	"/readyz",
}

// isPublicPath reports whether the gate lets a path through without looking
// at the caller's session. Matching is case-insensitive.
func isPublicPath(p string) bool {
	p = strings.ToLower(p)
	if p == "/" {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

type validatedKey struct{}

// sessionGate revalidates the durable session on every non-public request
// that carries local identifiers. Requests without identifiers pass through;
// protected handlers reject them through requireSession.
func sessionGate(deps Deps, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) || deps.Sessions == nil {
			next.ServeHTTP(w, r)
			return
		}
		data, ok := deps.Sessions.Load(r)
		if !ok || !data.HasIdentity() {
			next.ServeHTTP(w, r)
			return
		}

		if deps.Auth == nil || !deps.Auth.IsSessionValid(r.Context(), data.Token, data.UserID) {
			expireSession(w, r, deps, data)
			http.Redirect(w, r, expiredPath, http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), validatedKey{}, data)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func expireSession(w http.ResponseWriter, r *http.Request, deps Deps, data websession.Data) {
	deps.Sessions.Clear(w, r)
	if deps.Auth != nil {
		if err := deps.Auth.Logout(r.Context(), data.Token); err != nil {
			deps.Logger.Warn("deactivate expired session failed", "user_id", data.UserID, "error", err)
		}
	}
	auditReq(deps.Audit, r, data.Username, audit.ActionExpired, r.URL.Path, audit.OutcomeSuccess, "")
}

// requireSession guards a protected handler. It reuses the gate's validation
// for this request when present and validates itself otherwise.
func requireSession(w http.ResponseWriter, r *http.Request, deps Deps) (websession.Data, bool) {
	if data, ok := r.Context().Value(validatedKey{}).(websession.Data); ok {
		return data, true
	}
	if deps.Sessions == nil || deps.Auth == nil {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return websession.Data{}, false
	}
	data, ok := deps.Sessions.Load(r)
	if !ok || !data.HasIdentity() || !deps.Auth.IsSessionValid(r.Context(), data.Token, data.UserID) {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return websession.Data{}, false
	}
	return data, true
}
