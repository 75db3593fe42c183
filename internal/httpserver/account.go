package httpserver

import (
	"crypto/subtle"
	"errors"
	"html/template"
	"net/http"

	"github.com/google/uuid"

	"vtsecommerce/salesadmin/internal/audit"
	"vtsecommerce/salesadmin/internal/auth"
	"vtsecommerce/salesadmin/internal/websession"
)

const (
	csrfCookieName = "vts_csrf"
	csrfFieldName  = "csrf_token"
	maxFormBytes   = 64 << 10
)

const (
	msgRequired    = "Username and password are required."
	msgInvalid     = "Invalid username or password."
	msgActive      = "User is already active in another session."
	msgLoginFailed = "An error occurred during login."
	msgFormExpired = "Your sign-in form expired. Please try again."
)

type loginView struct {
	Error     string
	Expired   bool
	Username  string
	CSRFToken string
}

type homeView struct {
	Username string
}

func registerAccountHandlers(mux *http.ServeMux, deps Deps, pages *template.Template) {
	mux.HandleFunc("/account/login", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if data, ok := currentLocal(r, deps); ok && deps.Auth != nil &&
				deps.Auth.IsSessionValid(r.Context(), data.Token, data.UserID) {
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}
			renderLogin(w, pages, http.StatusOK, loginView{
				Expired:   r.URL.Query().Get("expired") == "true",
				CSRFToken: ensureCSRFToken(w, r),
			})
		case http.MethodPost:
			handleLoginPost(w, r, deps, pages)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/account/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		data, ok := currentLocal(r, deps)
		if ok && data.Token != "" && deps.Auth != nil {
			if err := deps.Auth.Logout(r.Context(), data.Token); err != nil {
				deps.Logger.Warn("logout deactivate failed", "user_id", data.UserID, "error", err)
			}
		}
		if deps.Sessions != nil {
			deps.Sessions.Clear(w, r)
		}
		if ok {
			auditReq(deps.Audit, r, data.Username, audit.ActionLogout, "", audit.OutcomeSuccess, "")
		}
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
	})

	mux.HandleFunc("/account/keepalive", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		// The gate has already validated and touched the session by now.
		if deps.Sessions == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]bool{"success": false})
			return
		}
		if _, ok := deps.Sessions.CurrentUserID(r); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]bool{"success": false})
			return
		}
		username, _ := deps.Sessions.CurrentUsername(r)
		auditReq(deps.Audit, r, username, audit.ActionKeepalive, "", audit.OutcomeSuccess, "")
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var view homeView
		if deps.Sessions != nil {
			view.Username, _ = deps.Sessions.CurrentUsername(r)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := pages.ExecuteTemplate(w, "home.html", view); err != nil {
			deps.Logger.Error("render home failed", "error", err)
		}
	})
}

func handleLoginPost(w http.ResponseWriter, r *http.Request, deps Deps, pages *template.Template) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		renderLogin(w, pages, http.StatusBadRequest, loginView{Error: msgRequired, CSRFToken: ensureCSRFToken(w, r)})
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	view := loginView{Username: username, CSRFToken: ensureCSRFToken(w, r)}

	if !validCSRF(r) {
		view.Error = msgFormExpired
		renderLogin(w, pages, http.StatusBadRequest, view)
		return
	}
	if deps.Auth == nil || deps.Sessions == nil {
		view.Error = msgLoginFailed
		renderLogin(w, pages, http.StatusServiceUnavailable, view)
		return
	}

	res, err := deps.Auth.Login(r.Context(), username, password, r.UserAgent())
	if err != nil {
		status, outcome := http.StatusInternalServerError, audit.OutcomeFailed
		switch {
		case errors.Is(err, auth.ErrValidation):
			status, view.Error = http.StatusBadRequest, msgRequired
		case errors.Is(err, auth.ErrInvalidCredentials):
			status, view.Error = http.StatusUnauthorized, msgInvalid
		case errors.Is(err, auth.ErrActiveElsewhere):
			status, view.Error, outcome = http.StatusConflict, msgActive, audit.OutcomeBlocked
		default:
			view.Error = msgLoginFailed
			deps.Logger.Error("login failed", "username", username, "error", err)
		}
		auditReq(deps.Audit, r, username, audit.ActionLogin, "", outcome, http.StatusText(status))
		renderLogin(w, pages, status, view)
		return
	}

	deps.Sessions.Establish(w, r, websession.Data{
		UserID:   res.User.ID,
		Username: res.User.Username,
		Token:    res.Session.Token,
	})
	auditReq(deps.Audit, r, res.User.Username, audit.ActionLogin, "", audit.OutcomeSuccess, "")
	deps.Logger.Info("user logged in", "user_id", res.User.ID, "session_row", res.Session.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func renderLogin(w http.ResponseWriter, pages *template.Template, status int, view loginView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = pages.ExecuteTemplate(w, "login.html", view)
}

func currentLocal(r *http.Request, deps Deps) (websession.Data, bool) {
	if deps.Sessions == nil {
		return websession.Data{}, false
	}
	return deps.Sessions.Load(r)
}

// ensureCSRFToken returns the request's anti-forgery token, issuing a new
// cookie when the request has none.
func ensureCSRFToken(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(csrfCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	token := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     loginPath,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return token
}

func validCSRF(r *http.Request) bool {
	c, err := r.Cookie(csrfCookieName)
	if err != nil || c.Value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(r.PostFormValue(csrfFieldName))) == 1
}
