// Package health expone los endpoints de liveness y readiness.
package health

import (
	"net/http"

	"github.com/dropDatabas3/johnboard/internal/cache"
	httperrors "github.com/dropDatabas3/johnboard/internal/http/errors"
	"github.com/dropDatabas3/johnboard/internal/observability/logger"
)

// Controller maneja /healthz y /readyz.
type Controller struct {
	store cache.Client
}

// NewController crea el controller de health.
func NewController(store cache.Client) *Controller {
	return &Controller{store: store}
}

// Live maneja GET /healthz: el proceso responde.
func (c *Controller) Live(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready maneja GET /readyz: el store durable responde.
func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	if err := c.store.Ping(r.Context()); err != nil {
		logger.From(r.Context()).Warn("store not ready", logger.Err(err))
		httperrors.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"store":  err.Error(),
		})
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
