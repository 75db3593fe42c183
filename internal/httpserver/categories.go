package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"vtsecommerce/salesadmin/internal/audit"
	"vtsecommerce/salesadmin/internal/catalog"
)

const (
	actionCategoryCreate = "catalog.create"
	actionCategoryUpdate = "catalog.update"
	actionCategoryDelete = "catalog.delete"
)

func registerCategoryHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/categories", func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		if deps.Categories == nil {
			writeError(w, http.StatusServiceUnavailable, "category service unavailable")
			return
		}

		switch r.Method {
		case http.MethodGet:
			items, err := deps.Categories.List(r.Context())
			if err != nil {
				deps.Logger.Error("list categories failed", "error", err)
				writeError(w, http.StatusInternalServerError, "list categories failed")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
		case http.MethodPost:
			var req catalog.Input
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			created, err := deps.Categories.Create(r.Context(), req)
			if err != nil {
				if errors.Is(err, catalog.ErrInvalidInput) {
					writeError(w, http.StatusBadRequest, err.Error())
					return
				}
				deps.Logger.Error("create category failed", "error", err)
				writeError(w, http.StatusInternalServerError, "create category failed")
				return
			}
			auditReq(deps.Audit, r, user.Username, actionCategoryCreate, strconv.FormatInt(created.ID, 10), audit.OutcomeSuccess, "")
			writeJSON(w, http.StatusCreated, created)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/v1/categories/", func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		if deps.Categories == nil {
			writeError(w, http.StatusServiceUnavailable, "category service unavailable")
			return
		}

		rawID := strings.TrimPrefix(r.URL.Path, "/v1/categories/")
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}

		switch r.Method {
		case http.MethodGet:
			c, err := deps.Categories.Get(r.Context(), id)
			if err != nil {
				writeCategoryError(w, deps, err, "get category failed")
				return
			}
			writeJSON(w, http.StatusOK, c)
		case http.MethodPut:
			var req catalog.Input
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			updated, err := deps.Categories.Update(r.Context(), id, req)
			if err != nil {
				writeCategoryError(w, deps, err, "update category failed")
				return
			}
			auditReq(deps.Audit, r, user.Username, actionCategoryUpdate, rawID, audit.OutcomeSuccess, "")
			writeJSON(w, http.StatusOK, updated)
		case http.MethodDelete:
			if err := deps.Categories.Delete(r.Context(), id); err != nil {
				writeCategoryError(w, deps, err, "delete category failed")
				return
			}
			auditReq(deps.Audit, r, user.Username, actionCategoryDelete, rawID, audit.OutcomeSuccess, "")
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
}

func writeCategoryError(w http.ResponseWriter, deps Deps, err error, fallback string) {
	switch {
	case errors.Is(err, catalog.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "category not found")
	case errors.Is(err, catalog.ErrInUse):
		writeError(w, http.StatusConflict, "category still has products")
	default:
		deps.Logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
