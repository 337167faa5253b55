package handlers

import (
	"net/http"
	"time"

	"github.com/bluecarbon-mrv/portal/internal/services"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequirePortal admits only sessions allowed into portal and stores the
// resolved session in the request context. Sessions with the wrong role are
// signed out by the gate.
func RequirePortal(gate *services.Gate, portal services.Portal, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, _ := bearerToken(r)

			resolved, err := gate.Enforce(r.Context(), token, portal)
			if err != nil {
				writeServiceError(w, logger, err, "failed to verify session")
				return
			}
			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), resolved)))
		})
	}
}

// RequestLogger writes one zap entry per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
