package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/okquant/costsim/internal/domain"
	"github.com/okquant/costsim/internal/sim"
)

// SimulationsStream is the durable stream simulation records are appended
// to for downstream consumers.
const SimulationsStream = "simulations"

// SimulateHandler runs execution simulations against the current book.
type SimulateHandler struct {
	engine *sim.Engine
	books  BookProvider
	store  domain.ResultStore // optional
	bus    domain.SignalBus   // optional
	logger *slog.Logger

	defaultLatencyMs int
	defaultFees      *domain.FeeProfile
}

// NewSimulateHandler creates a SimulateHandler. store and bus may be nil;
// persistence and streaming are then skipped.
func NewSimulateHandler(engine *sim.Engine, books BookProvider, store domain.ResultStore, bus domain.SignalBus, logger *slog.Logger) *SimulateHandler {
	return &SimulateHandler{
		engine: engine,
		books:  books,
		store:  store,
		bus:    bus,
		logger: logHandler(logger, "simulate"),
	}
}

// WithOrderDefaults sets a latency and fee profile applied to incoming
// orders that leave those fields unset.
func (h *SimulateHandler) WithOrderDefaults(latencyMs int, fees *domain.FeeProfile) *SimulateHandler {
	h.defaultLatencyMs = latencyMs
	h.defaultFees = fees
	return h
}

// Simulate decodes an order, fetches the instrument's book, runs the
// execution engine against it, and returns the persisted record.
// POST /api/simulate
func (h *SimulateHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var order domain.OrderSpec
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if order.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if order.LatencyMs == 0 && h.defaultLatencyMs > 0 {
		order.LatencyMs = h.defaultLatencyMs
	}
	if order.Fees == nil && h.defaultFees != nil {
		order.Fees = h.defaultFees
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

	result := h.engine.Simulate(order, book)
	rec := domain.SimulationRecord{
		ID:        uuid.NewString(),
		Order:     order,
		Result:    result,
		BestBid:   book.BestBid(),
		BestAsk:   book.BestAsk(),
		MidPrice:  book.MidPrice(),
		CreatedAt: time.Now().UTC(),
	}

	if h.store != nil {
		if err := h.store.Insert(r.Context(), rec); err != nil {
			// The simulation itself succeeded; log and keep serving.
			h.logger.Error("persist simulation failed",
				slog.String("id", rec.ID),
				slog.String("error", err.Error()))
		}
	}
	if h.bus != nil {
		if payload, err := json.Marshal(rec); err == nil {
			// Live subscribers (websocket hub) and the durable stream.
			if err := h.bus.Publish(r.Context(), SimulationsStream, payload); err != nil {
				h.logger.Debug("publish failed", slog.String("error", err.Error()))
			}
			if err := h.bus.StreamAppend(r.Context(), SimulationsStream, payload); err != nil {
				h.logger.Debug("stream append failed", slog.String("error", err.Error()))
			}
		}
	}

	writeJSON(w, http.StatusOK, rec)
}
