// Package health contiene el controller para health checks.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/store"
)

// Response de GET /health.
type Response struct {
	Status     string            `json:"status"`             // healthy|unhealthy
	Database   string            `json:"database"`           // connected|disconnected
	Components map[string]string `json:"components,omitempty"`
	Version    string            `json:"version,omitempty"`
}

// Controller maneja las rutas de health check.
type Controller struct {
	pingers map[string]store.Pinger
	timeout time.Duration
	version string
}

func NewController(pingers map[string]store.Pinger, version string) *Controller {
	return &Controller{pingers: pingers, timeout: 2 * time.Second, version: version}
}

// Health maneja GET /health. 503 si algún backend no responde.
func (c *Controller) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Health"))

	resp := Response{Status: "healthy", Database: "connected", Components: map[string]string{}, Version: c.version}

	names := make([]string, 0, len(c.pingers))
	for name := range c.pingers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.pingers[name].Ping(ctx); err != nil {
			log.Warn("health ping failed", logger.Component(name), logger.Err(err))
			resp.Components[name] = "disconnected"
			resp.Status = "unhealthy"
			resp.Database = "disconnected"
			continue
		}
		resp.Components[name] = "connected"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
