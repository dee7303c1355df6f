// Package httpapi assembles the HTTP surface: identity queries behind bearer
// auth, plus unauthenticated health and metrics endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"idstatus/internal/identity/handler"
	"idstatus/internal/platform/metrics"
	"idstatus/internal/platform/middleware"
	"idstatus/pkg/platform/httputil"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the router mounts.
type Deps struct {
	Identities *handler.Handler
	Validator  middleware.JWTValidator
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Checks     map[string]HealthCheck
}

const healthTimeout = 2 * time.Second

// NewRouter wires all public endpoints.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger, d.Metrics))

	r.Get("/healthz", healthz(d.Checks))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Validator, d.Logger))
		d.Identities.Register(r)
	})
	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		result := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": result,
		})
	}
}
