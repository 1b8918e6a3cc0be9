package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/okquant/costsim/internal/sim"
)

// ADVHandler manages the average-daily-volume table backing the impact
// model.
type ADVHandler struct {
	impact *sim.ImpactModel
	logger *slog.Logger
}

// NewADVHandler creates an ADVHandler.
func NewADVHandler(impact *sim.ImpactModel, logger *slog.Logger) *ADVHandler {
	return &ADVHandler{
		impact: impact,
		logger: logHandler(logger, "adv"),
	}
}

type advRequest struct {
	ADV float64 `json:"adv"`
}

// UpdateADV sets the average daily volume for a symbol. Non-positive
// values are rejected and leave the table unchanged.
// PUT /api/adv/{symbol}
func (h *ADVHandler) UpdateADV(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	var req advRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.impact.UpdateADV(symbol, req.ADV); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("adv updated",
		slog.String("symbol", symbol),
		slog.Float64("adv", req.ADV))
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"adv":    req.ADV,
	})
}

// GetADV returns the effective average daily volume for a symbol,
// falling back to the default when the symbol has no explicit entry.
// GET /api/adv/{symbol}
func (h *ADVHandler) GetADV(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"adv":    h.impact.ADV(symbol),
	})
}
