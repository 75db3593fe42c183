package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"vtsecommerce/salesadmin/internal/audit"
	"vtsecommerce/salesadmin/internal/catalog"
)

const (
	actionProductCreate = "product.create"
	actionProductUpdate = "product.update"
	actionProductDelete = "product.delete"
)

func registerProductHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/products", func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		if deps.Products == nil {
			writeError(w, http.StatusServiceUnavailable, "product service unavailable")
			return
		}

		switch r.Method {
		case http.MethodGet:
			categoryID, ok := queryID(r, "category_id")
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid category_id")
				return
			}
			items, err := deps.Products.List(r.Context(), catalog.ProductFilter{
				CategoryID: categoryID,
				ActiveOnly: queryBool(r, "active"),
			})
			if err != nil {
				deps.Logger.Error("list products failed", "error", err)
				writeError(w, http.StatusInternalServerError, "list products failed")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
		case http.MethodPost:
			var req catalog.ProductInput
			if !decodeBody(w, r, &req) {
				return
			}
			created, err := deps.Products.Create(r.Context(), req)
			if err != nil {
				writeProductError(w, deps, err, "create product failed")
				return
			}
			auditReq(deps.Audit, r, user.Username, actionProductCreate, strconv.FormatInt(created.ID, 10), audit.OutcomeSuccess, "")
			writeJSON(w, http.StatusCreated, created)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/v1/products/", func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		if deps.Products == nil {
			writeError(w, http.StatusServiceUnavailable, "product service unavailable")
			return
		}
		id, rawID, ok := resourceID(r, "/v1/products/")
		if !ok {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}

		switch r.Method {
		case http.MethodGet:
			p, err := deps.Products.Get(r.Context(), id)
			if err != nil {
				writeProductError(w, deps, err, "get product failed")
				return
			}
			writeJSON(w, http.StatusOK, p)
		case http.MethodPut:
			var req catalog.ProductInput
			if !decodeBody(w, r, &req) {
				return
			}
			updated, err := deps.Products.Update(r.Context(), id, req)
			if err != nil {
				writeProductError(w, deps, err, "update product failed")
				return
			}
			auditReq(deps.Audit, r, user.Username, actionProductUpdate, rawID, audit.OutcomeSuccess, "")
			writeJSON(w, http.StatusOK, updated)
		case http.MethodDelete:
			if err := deps.Products.Delete(r.Context(), id); err != nil {
				writeProductError(w, deps, err, "delete product failed")
				return
			}
			auditReq(deps.Audit, r, user.Username, actionProductDelete, rawID, audit.OutcomeSuccess, "")
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
}

func writeProductError(w http.ResponseWriter, deps Deps, err error, fallback string) {
	switch {
	case errors.Is(err, catalog.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, catalog.ErrInUse):
		writeError(w, http.StatusConflict, "product is referenced by an invoice")
	default:
		deps.Logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
