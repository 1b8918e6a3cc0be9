package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/okquant/costsim/internal/domain"
)

// SignalSource exposes recently emitted trade signals. The strategy
// engine satisfies it.
type SignalSource interface {
	RecentSignals(limit int) []domain.TradeSignal
}

// StatusHandler reports operational state and recent strategy signals.
type StatusHandler struct {
	status  func() domain.ServiceStatus
	signals SignalSource // optional
	logger  *slog.Logger
}

// NewStatusHandler creates a StatusHandler. signals may be nil when no
// strategy engine is running.
func NewStatusHandler(status func() domain.ServiceStatus, signals SignalSource, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		status:  status,
		signals: signals,
		logger:  logHandler(logger, "status"),
	}
}

// Status returns the process's operational summary.
// GET /api/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

// Signals returns the most recently emitted trade signals, newest first.
// GET /api/signals
func (h *StatusHandler) Signals(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	signals := []domain.TradeSignal{}
	if h.signals != nil {
		signals = h.signals.RecentSignals(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"signals": signals,
		"count":   len(signals),
	})
}
