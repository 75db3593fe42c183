package httpserver

import (
	"errors"
	"net/http"

	"vtsecommerce/salesadmin/internal/audit"
	"vtsecommerce/salesadmin/internal/sales"
)

const (
	actionInvoiceCreate = "invoice.create"
	actionInvoiceDelete = "invoice.delete"
)

// Invoices are created and deleted, never edited. The signed-in user is
// recorded as the creator.
func registerInvoiceHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/invoices", func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		if deps.Invoices == nil {
			writeError(w, http.StatusServiceUnavailable, "invoice service unavailable")
			return
		}

		switch r.Method {
		case http.MethodGet:
			customerID, ok := queryID(r, "customer_id")
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid customer_id")
				return
			}
			items, err := deps.Invoices.List(r.Context(), sales.Filter{CustomerID: customerID})
			if err != nil {
				deps.Logger.Error("list invoices failed", "error", err)
				writeError(w, http.StatusInternalServerError, "list invoices failed")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
		case http.MethodPost:
			var req sales.CreateInput
			if !decodeBody(w, r, &req) {
				return
			}
			created, err := deps.Invoices.Create(r.Context(), req, user.UserID)
			if err != nil {
				auditReq(deps.Audit, r, user.Username, actionInvoiceCreate, "", audit.OutcomeFailed, err.Error())
				writeInvoiceError(w, deps, err, "create invoice failed")
				return
			}
			auditReq(deps.Audit, r, user.Username, actionInvoiceCreate, created.Number, audit.OutcomeSuccess, "total="+created.Total.StringFixed(2))
			writeJSON(w, http.StatusCreated, created)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/v1/invoices/summary", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if _, ok := requireSession(w, r, deps); !ok {
			return
		}
		if deps.Invoices == nil {
			writeError(w, http.StatusServiceUnavailable, "invoice service unavailable")
			return
		}
		sum, err := deps.Invoices.Summary(r.Context())
		if err != nil {
			deps.Logger.Error("invoice summary failed", "error", err)
			writeError(w, http.StatusInternalServerError, "invoice summary failed")
			return
		}
		writeJSON(w, http.StatusOK, sum)
	})

	mux.HandleFunc("/v1/invoices/", func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		if deps.Invoices == nil {
			writeError(w, http.StatusServiceUnavailable, "invoice service unavailable")
			return
		}
		id, rawID, ok := resourceID(r, "/v1/invoices/")
		if !ok {
			writeError(w, http.StatusNotFound, "invoice not found")
			return
		}

		switch r.Method {
		case http.MethodGet:
			inv, err := deps.Invoices.Get(r.Context(), id)
			if err != nil {
				writeInvoiceError(w, deps, err, "get invoice failed")
				return
			}
			writeJSON(w, http.StatusOK, inv)
		case http.MethodDelete:
			if err := deps.Invoices.Delete(r.Context(), id); err != nil {
				writeInvoiceError(w, deps, err, "delete invoice failed")
				return
			}
			auditReq(deps.Audit, r, user.Username, actionInvoiceDelete, rawID, audit.OutcomeSuccess, "")
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
}

func writeInvoiceError(w http.ResponseWriter, deps Deps, err error, fallback string) {
	switch {
	case errors.Is(err, sales.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sales.ErrNotFound):
		writeError(w, http.StatusNotFound, "invoice not found")
	default:
		deps.Logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
