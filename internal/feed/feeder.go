package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/okquant/costsim/internal/domain"
)

// BooksChannel is the signal-bus channel carrying book update events.
const BooksChannel = "books"

// bookEvent is the JSON shape published to the books channel. Consumers
// that need full depth read the orderbook cache; the event itself only
// carries top-of-book.
type bookEvent struct {
	Event     string  `json:"event"`
	InstID    string  `json:"inst_id"`
	BestBid   float64 `json:"best_bid"`
	BestAsk   float64 `json:"best_ask"`
	MidPrice  float64 `json:"mid_price"`
	Timestamp string  `json:"timestamp"`
}

// Feeder folds raw feed updates into the Keeper and fans the resulting
// snapshots out to the orderbook cache and the signal bus. Cache and bus
// are optional; a nil dependency is skipped.
type Feeder struct {
	keeper *Keeper
	cache  domain.OrderbookCache
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewFeeder creates a Feeder over the given keeper.
func NewFeeder(keeper *Keeper, cache domain.OrderbookCache, bus domain.SignalBus, logger *slog.Logger) *Feeder {
	return &Feeder{
		keeper: keeper,
		cache:  cache,
		bus:    bus,
		logger: logger.With(slog.String("component", "feeder")),
	}
}

// HandleUpdate applies one feed update and publishes the refreshed book.
// Suitable as the OKXFeed update handler.
func (f *Feeder) HandleUpdate(ctx context.Context, upd domain.BookUpdate) {
	f.keeper.Apply(upd)

	snap, err := f.keeper.Snapshot(upd.InstID)
	if err != nil {
		return
	}

	if f.cache != nil {
		if err := f.cache.SetSnapshot(ctx, upd.InstID, snap); err != nil {
			f.logger.Warn("orderbook cache write failed",
				slog.String("inst_id", upd.InstID),
				slog.String("error", err.Error()))
		}
	}

	if f.bus != nil {
		ev := bookEvent{
			Event:     "book_update",
			InstID:    snap.InstID,
			BestBid:   snap.BestBid(),
			BestAsk:   snap.BestAsk(),
			MidPrice:  snap.MidPrice(),
			Timestamp: snap.Timestamp.UTC().Format(time.RFC3339Nano),
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if err := f.bus.Publish(ctx, BooksChannel, payload); err != nil {
			f.logger.Debug("book event publish failed", slog.String("error", err.Error()))
		}
	}
}
