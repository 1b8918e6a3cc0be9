package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/okquant/costsim/internal/domain"
)

// BookHandler exposes the live orderbook the feed maintains.
type BookHandler struct {
	books  BookProvider
	logger *slog.Logger
}

// NewBookHandler creates a BookHandler.
func NewBookHandler(books BookProvider, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		books:  books,
		logger: logHandler(logger, "book"),
	}
}

// Get returns the current book snapshot for an instrument.
// GET /api/book/{instId}
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	instID := pathParam(r, "instId")
	snap, err := h.books.GetSnapshot(r.Context(), instID)
	if err != nil {
		if errors.Is(err, domain.ErrNoBook) || errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no orderbook for "+instID)
			return
		}
		h.logger.Error("book lookup failed",
			slog.String("inst_id", instID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "book lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
