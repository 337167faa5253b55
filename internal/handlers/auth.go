package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bluecarbon-mrv/portal/internal/services"
	"github.com/bluecarbon-mrv/portal/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AuthHandler serves the per-portal login endpoints.
type AuthHandler struct {
	gate   *services.Gate
	logger *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(gate *services.Gate, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{gate: gate, logger: logger}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, gate *services.Gate, logger *zap.Logger) {
	handler := NewAuthHandler(gate, logger)

	for _, portal := range []services.Portal{services.GenericPortal, services.FieldWorkerPortal, services.BuyerPortal} {
		r.Get(portal.LoginPath, handler.Entry(portal))
		r.Post(portal.LoginPath, handler.Login(portal))
	}
	r.Post("/logout", handler.Logout)
	r.Post("/password-reset", handler.PasswordReset)
	r.Post("/password-reset/confirm", handler.ConfirmPasswordReset)
}

// Entry tells a visitor of a login page whether they are already signed in
// to that portal.
func (h *AuthHandler) Entry(portal services.Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := bearerToken(r)
		writeJSON(w, http.StatusOK, EntryResponse{
			Portal:   portal.Name,
			Redirect: h.gate.CheckEntry(r.Context(), token, portal),
		})
	}
}

// Login signs in and verifies the role for portal.
func (h *AuthHandler) Login(portal services.Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req services.SignInForm
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}

		result, err := h.gate.SignIn(r.Context(), req, portal)
		if err != nil {
			writeServiceError(w, h.logger, err, "failed to sign in")
			return
		}

		message := "Successfully signed in!"
		if portal.Role != "" {
			message = fmt.Sprintf("Successfully signed in as %s!", portal.Audience)
		}

		writeJSON(w, http.StatusOK, LoginResponse{
			Token:      result.Session.Token,
			ExpiresAt:  result.Session.ExpiresAt,
			Identity:   result.Session.Identity,
			Profile:    result.Profile,
			Onboarding: result.Onboarding.String(),
			Redirect:   result.Redirect,
			Message:    message,
		})
	}
}

// Logout ends the caller's session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.gate.SignOut(r.Context(), token); err != nil {
		writeServiceError(w, h.logger, err, "failed to sign out")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "You have been signed out."})
}

// PasswordReset sends a reset link that returns to the requested portal.
func (h *AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	portal, ok := services.PortalByName(req.Portal)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown portal")
		return
	}

	if err := h.gate.ResetPassword(r.Context(), req.Email, portal); err != nil {
		writeServiceError(w, h.logger, err, "failed to request password reset")
		return
	}
	writeJSON(w, http.StatusAccepted, MessageResponse{Message: "Check your email for password reset instructions"})
}

// ConfirmPasswordReset sets a new password from a reset mail token.
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req services.PasswordResetForm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.gate.ConfirmPasswordReset(r.Context(), req); err != nil {
		writeServiceError(w, h.logger, err, "failed to reset password")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Your password has been updated. Please sign in again."})
}

type PasswordResetRequest struct {
	Email  string `json:"email"`
	Portal string `json:"portal"`
}

type EntryResponse struct {
	Portal   string `json:"portal"`
	Redirect string `json:"redirect,omitempty"`
}

type LoginResponse struct {
	Token      string         `json:"token"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Identity   types.Identity `json:"identity"`
	Profile    *types.Profile `json:"profile,omitempty"`
	Onboarding string         `json:"onboarding"`
	Redirect   string         `json:"redirect"`
	Message    string         `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
