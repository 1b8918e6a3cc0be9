package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okquant/costsim/internal/domain"
)

const (
	defaultZScoreEntry = 2.0
	defaultMinHistory  = 30
)

// MeanReversionParams tunes the mean_reversion strategy.
type MeanReversionParams struct {
	// ZScoreEntry is the number of standard deviations the mid must sit
	// from the rolling mean before a signal fires.
	ZScoreEntry float64
	// MinHistory is the minimum number of tracked points before the
	// statistics are trusted.
	MinHistory int
	// Cooldown is the minimum gap between signals per instrument.
	Cooldown time.Duration
}

// MeanReversion buys when the mid price sits well below the rolling mean
// and sells when it sits well above, but only when the estimated
// execution cost of acting leaves the edge intact.
type MeanReversion struct {
	cfg     Config
	params  MeanReversionParams
	tracker *PriceTracker
	gate    CostGate
	logger  *slog.Logger

	mu         sync.Mutex
	lastSignal map[string]time.Time
}

var _ Strategy = (*MeanReversion)(nil)

// NewMeanReversion creates a MeanReversion strategy.
func NewMeanReversion(cfg Config, params MeanReversionParams, tracker *PriceTracker, gate CostGate, logger *slog.Logger) *MeanReversion {
	if params.ZScoreEntry <= 0 {
		params.ZScoreEntry = defaultZScoreEntry
	}
	if params.MinHistory <= 0 {
		params.MinHistory = defaultMinHistory
	}
	return &MeanReversion{
		cfg:        cfg,
		params:     params,
		tracker:    tracker,
		gate:       gate,
		logger:     logger.With(slog.String("strategy", "mean_reversion")),
		lastSignal: make(map[string]time.Time),
	}
}

// Name returns the strategy identifier.
func (mr *MeanReversion) Name() string { return "mean_reversion" }

// Init performs one-time setup. For MeanReversion this is a no-op.
func (mr *MeanReversion) Init(_ context.Context) error { return nil }

// OnBookUpdate tracks the mid price and evaluates whether the deviation
// from the rolling mean warrants a cost-gated entry signal.
func (mr *MeanReversion) OnBookUpdate(ctx context.Context, snap domain.OrderBookSnapshot) ([]domain.TradeSignal, error) {
	mid := snap.MidPrice()
	if mid <= 0 {
		return nil, nil
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	mr.tracker.Track(snap.InstID, mid, ts)

	if mr.tracker.Len(snap.InstID) < mr.params.MinHistory {
		return nil, nil
	}
	avg := mr.tracker.Average(snap.InstID)
	vol := mr.tracker.Volatility(snap.InstID)
	if avg == 0 || vol == 0 {
		return nil, nil
	}
	z := (mid - avg) / vol

	var side domain.OrderSide
	switch {
	case z <= -mr.params.ZScoreEntry:
		side = domain.OrderSideBuy
	case z >= mr.params.ZScoreEntry:
		side = domain.OrderSideSell
	default:
		return nil, nil
	}

	if !mr.cooldownElapsed(snap.InstID, ts) {
		return nil, nil
	}

	est, ok := affordableEntry(ctx, mr.gate, mr.cfg, side, snap, mr.logger)
	if !ok {
		return nil, nil
	}

	mr.markSignalled(snap.InstID, ts)
	reason := fmt.Sprintf("mean reversion %s: mid=%.2f avg=%.2f z=%.2f", side, mid, avg, z)
	sig := domain.TradeSignal{
		ID:           uuid.NewString(),
		Source:       mr.Name(),
		InstID:       snap.InstID,
		Side:         side,
		Price:        mid,
		SizeQuote:    mr.cfg.SizeQuote,
		ExpectedCost: est.TotalCostUSD,
		Reason:       reason,
		CreatedAt:    ts,
	}
	return []domain.TradeSignal{sig}, nil
}

// OnSignal is a no-op; MeanReversion does not react to external signals.
func (mr *MeanReversion) OnSignal(_ context.Context, _ domain.TradeSignal) ([]domain.TradeSignal, error) {
	return nil, nil
}

// Close releases resources. MeanReversion has nothing to release.
func (mr *MeanReversion) Close() error { return nil }

func (mr *MeanReversion) cooldownElapsed(instID string, now time.Time) bool {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	last, ok := mr.lastSignal[instID]
	return !ok || now.Sub(last) >= mr.params.Cooldown
}

func (mr *MeanReversion) markSignalled(instID string, now time.Time) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.lastSignal[instID] = now
}
