package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/okquant/costsim/internal/domain"
)

// ResultsHandler serves stored simulation records.
type ResultsHandler struct {
	store  domain.ResultStore
	logger *slog.Logger
}

// NewResultsHandler creates a ResultsHandler.
func NewResultsHandler(store domain.ResultStore, logger *slog.Logger) *ResultsHandler {
	return &ResultsHandler{
		store:  store,
		logger: logHandler(logger, "results"),
	}
}

// List returns stored records newest first, optionally filtered by
// symbol and time range.
// GET /api/results
func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	opts := parseListOpts(r)

	recs, err := h.store.List(r.Context(), symbol, opts)
	if err != nil {
		h.logger.Error("list simulations failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "list simulations failed")
		return
	}
	if recs == nil {
		recs = []domain.SimulationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": recs,
		"count":   len(recs),
	})
}

// Get returns a single record by id.
// GET /api/results/{id}
func (h *ResultsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	rec, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "simulation not found")
			return
		}
		h.logger.Error("get simulation failed",
			slog.String("id", id),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "get simulation failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
