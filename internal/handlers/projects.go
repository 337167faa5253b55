package handlers

import (
	"net/http"

	"github.com/bluecarbon-mrv/portal/internal/services"
	"github.com/bluecarbon-mrv/portal/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProjectHandler serves the public listing of restoration sites.
type ProjectHandler struct {
	sites  *services.SiteService
	logger *zap.Logger
}

func NewProjectHandler(sites *services.SiteService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{sites: sites, logger: logger}
}

// ProjectRouter registers project routes on the given router.
func ProjectRouter(r chi.Router, sites *services.SiteService, logger *zap.Logger) {
	handler := NewProjectHandler(sites, logger)
	r.Get("/", handler.ListProjects)
}

func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.sites.List(r.Context(), offset, limit)
	if err != nil {
		h.logger.Error("list projects failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[types.Site]{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}
