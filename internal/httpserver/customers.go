package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"vtsecommerce/salesadmin/internal/audit"
	"vtsecommerce/salesadmin/internal/customer"
)

const (
	actionCustomerCreate = "customer.create"
	actionCustomerUpdate = "customer.update"
	actionCustomerDelete = "customer.delete"
)

func registerCustomerHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/customers", func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		if deps.Customers == nil {
			writeError(w, http.StatusServiceUnavailable, "customer service unavailable")
			return
		}

		switch r.Method {
		case http.MethodGet:
			items, err := deps.Customers.List(r.Context(), customer.Filter{ActiveOnly: queryBool(r, "active")})
			if err != nil {
				deps.Logger.Error("list customers failed", "error", err)
				writeError(w, http.StatusInternalServerError, "list customers failed")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
		case http.MethodPost:
			var req customer.Input
			if !decodeBody(w, r, &req) {
				return
			}
			created, err := deps.Customers.Create(r.Context(), req)
			if err != nil {
				writeCustomerError(w, deps, err, "create customer failed")
				return
			}
			auditReq(deps.Audit, r, user.Username, actionCustomerCreate, strconv.FormatInt(created.ID, 10), audit.OutcomeSuccess, "")
			writeJSON(w, http.StatusCreated, created)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/v1/customers/", func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		if deps.Customers == nil {
			writeError(w, http.StatusServiceUnavailable, "customer service unavailable")
			return
		}
		id, rawID, ok := resourceID(r, "/v1/customers/")
		if !ok {
			writeError(w, http.StatusNotFound, "customer not found")
			return
		}

		switch r.Method {
		case http.MethodGet:
			c, err := deps.Customers.Get(r.Context(), id)
			if err != nil {
				writeCustomerError(w, deps, err, "get customer failed")
				return
			}
			writeJSON(w, http.StatusOK, c)
		case http.MethodPut:
			var req customer.Input
			if !decodeBody(w, r, &req) {
				return
			}
			updated, err := deps.Customers.Update(r.Context(), id, req)
			if err != nil {
				writeCustomerError(w, deps, err, "update customer failed")
				return
			}
			auditReq(deps.Audit, r, user.Username, actionCustomerUpdate, rawID, audit.OutcomeSuccess, "")
			writeJSON(w, http.StatusOK, updated)
		case http.MethodDelete:
			if err := deps.Customers.Delete(r.Context(), id); err != nil {
				writeCustomerError(w, deps, err, "delete customer failed")
				return
			}
			auditReq(deps.Audit, r, user.Username, actionCustomerDelete, rawID, audit.OutcomeSuccess, "")
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
}

func writeCustomerError(w http.ResponseWriter, deps Deps, err error, fallback string) {
	switch {
	case errors.Is(err, customer.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, customer.ErrNotFound):
		writeError(w, http.StatusNotFound, "customer not found")
	case errors.Is(err, customer.ErrInUse):
		writeError(w, http.StatusConflict, "customer has invoices")
	default:
		deps.Logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
