package handlers

import (
	"errors"
	"net/http"

	"github.com/bluecarbon-mrv/portal/internal/services"
	"github.com/bluecarbon-mrv/portal/internal/store"
	"github.com/bluecarbon-mrv/portal/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PortalHandler serves the role-gated portal views and field worker forms.
type PortalHandler struct {
	onboarding *services.Onboarding
	ngos       *services.NGOService
	sites      *services.SiteService
	purchases  *services.PurchaseService
	logger     *zap.Logger
}

func NewPortalHandler(
	onboarding *services.Onboarding,
	ngos *services.NGOService,
	sites *services.SiteService,
	purchases *services.PurchaseService,
	logger *zap.Logger,
) *PortalHandler {
	return &PortalHandler{
		onboarding: onboarding,
		ngos:       ngos,
		sites:      sites,
		purchases:  purchases,
		logger:     logger,
	}
}

// PortalRouter registers the gated views on the given router.
func PortalRouter(r chi.Router, gate *services.Gate, handler *PortalHandler, logger *zap.Logger) {
	r.With(RequirePortal(gate, services.GenericPortal, logger)).Get("/dashboard", handler.Dashboard)
	r.With(RequirePortal(gate, services.BuyerPortal, logger)).Get("/buyer", handler.BuyerHome)
	r.Route("/field-worker", func(r chi.Router) {
		r.Use(RequirePortal(gate, services.FieldWorkerPortal, logger))
		r.Get("/", handler.FieldWorkerHome)
		r.Get("/onboarding", handler.OnboardingState)
		r.Post("/onboarding", handler.RegisterNGO)
		r.Post("/onboarding/skip", handler.SkipOnboarding)
		r.Get("/onboarding/documents/{slot}", handler.DocumentLink)
		r.Post("/sites", handler.SubmitSite)
	})
}

// Dashboard is open to any signed-in identity.
func (h *PortalHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	resolved, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, DashboardResponse{
		Identity: resolved.Identity(),
		Profile:  resolved.Profile,
	})
}

func (h *PortalHandler) BuyerHome(w http.ResponseWriter, r *http.Request) {
	resolved, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	purchases, err := h.purchases.ListByBuyer(r.Context(), resolved.Identity().ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load purchases")
		return
	}

	writeJSON(w, http.StatusOK, BuyerResponse{
		Identity:  resolved.Identity(),
		Profile:   resolved.Profile,
		Purchases: purchases,
	})
}

func (h *PortalHandler) FieldWorkerHome(w http.ResponseWriter, r *http.Request) {
	resolved, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sites, err := h.sites.ListByFieldWorker(r.Context(), resolved.Identity().ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load sites")
		return
	}
	if sites == nil {
		sites = []types.Site{}
	}

	resp := FieldWorkerResponse{
		Identity: resolved.Identity(),
		Profile:  resolved.Profile,
		Sites:    sites,
	}
	ngo, err := h.ngos.Get(r.Context(), resolved.Identity().ID)
	switch {
	case err == nil:
		resp.NGO = &ngo
	case !errors.Is(err, store.ErrNotFound):
		h.logger.Warn("load ngo failed", zap.String("user_id", resolved.Identity().ID), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, resp)
}

type DashboardResponse struct {
	Identity types.Identity `json:"identity"`
	Profile  *types.Profile `json:"profile,omitempty"`
}

type BuyerResponse struct {
	Identity  types.Identity         `json:"identity"`
	Profile   *types.Profile         `json:"profile"`
	Purchases []types.CreditPurchase `json:"purchases"`
}

type FieldWorkerResponse struct {
	Identity types.Identity `json:"identity"`
	Profile  *types.Profile `json:"profile"`
	NGO      *types.NGO     `json:"ngo,omitempty"`
	Sites    []types.Site   `json:"sites"`
}
