package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/okquant/costsim/internal/domain"
	"github.com/okquant/costsim/internal/sim"
)

// EstimateHandler serves pre-trade cost estimates.
type EstimateHandler struct {
	estimator *sim.Estimator
	books     BookProvider
	logger    *slog.Logger
}

// NewEstimateHandler creates an EstimateHandler.
func NewEstimateHandler(estimator *sim.Estimator, books BookProvider, logger *slog.Logger) *EstimateHandler {
	return &EstimateHandler{
		estimator: estimator,
		books:     books,
		logger:    logHandler(logger, "estimate"),
	}
}

// Estimate returns the expected cost breakdown for a prospective order
// without simulating a full fill.
// POST /api/estimate
func (h *EstimateHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var order domain.OrderSpec
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if order.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	book, err := h.books.GetSnapshot(r.Context(), order.Symbol)
	if err != nil {
		if errors.Is(err, domain.ErrNoBook) || errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no orderbook for "+order.Symbol)
			return
		}
		h.logger.Error("book lookup failed",
			slog.String("symbol", order.Symbol),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "book lookup failed")
		return
	}

	est, err := h.estimator.Estimate(order, book)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidOrder):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNoBook), errors.Is(err, domain.ErrEmptyBook):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, est)
}
