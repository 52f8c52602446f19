package router

import (
	"github.com/go-chi/chi/v5"
)

// registerHealthRoutes registra /health y /metrics. Sin logging (muy frecuentes).
func registerHealthRoutes(r chi.Router, d Deps) {
	r.Get("/health", d.Health.Health)
	if d.Metrics != nil {
		r.Method("GET", "/metrics", d.Metrics.Handler())
	}
}
