package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/okquant/costsim/internal/domain"
	"github.com/okquant/costsim/internal/strategy"
)

// EngineFeeder subscribes to the books channel on the signal bus and
// feeds full book snapshots into the strategy engine. It lets the
// strategy side run decoupled from the websocket side, including in a
// separate process.
type EngineFeeder struct {
	bus       domain.SignalBus
	bookCache domain.OrderbookCache
	engine    *strategy.Engine
	logger    *slog.Logger
}

// NewEngineFeeder creates an EngineFeeder.
func NewEngineFeeder(bus domain.SignalBus, bookCache domain.OrderbookCache, engine *strategy.Engine, logger *slog.Logger) *EngineFeeder {
	return &EngineFeeder{
		bus:       bus,
		bookCache: bookCache,
		engine:    engine,
		logger:    logger.With(slog.String("component", "engine_feeder")),
	}
}

// Run subscribes to the books channel and dispatches each event to the
// engine until ctx is cancelled.
func (f *EngineFeeder) Run(ctx context.Context) error {
	ch, err := f.bus.Subscribe(ctx, BooksChannel)
	if err != nil {
		return err
	}
	f.logger.Info("engine feeder started")
	defer f.logger.Info("engine feeder stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			if err := f.handleMessage(ctx, data); err != nil {
				f.logger.Debug("engine feeder handle message failed",
					slog.String("error", err.Error()),
					slog.Int("payload_len", len(data)),
				)
			}
		}
	}
}

func (f *EngineFeeder) handleMessage(ctx context.Context, data []byte) error {
	var ev bookEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	instID := strings.TrimSpace(ev.InstID)
	if instID == "" {
		return nil
	}
	ts := time.Now()
	if ev.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, ev.Timestamp); err == nil {
			ts = t
		}
	}

	snap, err := f.bookCache.GetSnapshot(ctx, instID)
	if err != nil || snap.InstID == "" {
		// Fall back to a top-of-book-only snapshot from the event.
		snap = domain.OrderBookSnapshot{
			InstID:    instID,
			Timestamp: ts,
		}
		if ev.BestBid > 0 {
			snap.Bids = []domain.PriceLevel{{Price: ev.BestBid, Size: 0}}
		}
		if ev.BestAsk > 0 {
			snap.Asks = []domain.PriceLevel{{Price: ev.BestAsk, Size: 0}}
		}
	}
	return f.engine.HandleBookUpdate(ctx, snap)
}
