package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// serviceName identifies this process in health responses so probes
// against the wrong port fail loudly.
const serviceName = "costsim"

// HealthHandler serves the liveness endpoint. Richer operational state
// (feed connectivity, active strategies) lives on /api/status.
type HealthHandler struct {
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler reporting uptime relative to
// startedAt.
func NewHealthHandler(logger *slog.Logger, startedAt time.Time) *HealthHandler {
	return &HealthHandler{
		startedAt: startedAt,
		logger:    logger,
	}
}

// HealthCheck responds with the service identity and uptime.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        serviceName,
		"uptime_seconds": int64(now.Sub(h.startedAt).Seconds()),
		"timestamp":      now.Format(time.RFC3339),
	})
}
