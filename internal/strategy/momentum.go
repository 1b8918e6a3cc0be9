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

const defaultMinMovePct = 0.2

// MomentumParams tunes the momentum strategy.
type MomentumParams struct {
	// MinMovePct is the percent move over the tracking window required
	// before the strategy joins the trend.
	MinMovePct float64
	// MinHistory is the minimum number of tracked points before the
	// window change is trusted.
	MinHistory int
	// Cooldown is the minimum gap between signals per instrument.
	Cooldown time.Duration
}

// Momentum joins a sustained directional move: it buys after the mid has
// risen by at least MinMovePct over the window and sells after an equal
// fall, subject to the same cost gate as the other strategies.
type Momentum struct {
	cfg     Config
	params  MomentumParams
	tracker *PriceTracker
	gate    CostGate
	logger  *slog.Logger

	mu         sync.Mutex
	lastSignal map[string]time.Time
}

var _ Strategy = (*Momentum)(nil)

// NewMomentum creates a Momentum strategy.
func NewMomentum(cfg Config, params MomentumParams, tracker *PriceTracker, gate CostGate, logger *slog.Logger) *Momentum {
	if params.MinMovePct <= 0 {
		params.MinMovePct = defaultMinMovePct
	}
	if params.MinHistory <= 0 {
		params.MinHistory = defaultMinHistory
	}
	return &Momentum{
		cfg:        cfg,
		params:     params,
		tracker:    tracker,
		gate:       gate,
		logger:     logger.With(slog.String("strategy", "momentum")),
		lastSignal: make(map[string]time.Time),
	}
}

// Name returns the strategy identifier.
func (m *Momentum) Name() string { return "momentum" }

// Init performs one-time setup. For Momentum this is a no-op.
func (m *Momentum) Init(_ context.Context) error { return nil }

// OnBookUpdate tracks the mid price and signals when the windowed move
// exceeds the threshold and the entry clears the cost gate.
func (m *Momentum) OnBookUpdate(ctx context.Context, snap domain.OrderBookSnapshot) ([]domain.TradeSignal, error) {
	mid := snap.MidPrice()
	if mid <= 0 {
		return nil, nil
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	m.tracker.Track(snap.InstID, mid, ts)

	if m.tracker.Len(snap.InstID) < m.params.MinHistory {
		return nil, nil
	}
	move := m.tracker.Change(snap.InstID)

	var side domain.OrderSide
	switch {
	case move >= m.params.MinMovePct:
		side = domain.OrderSideBuy
	case move <= -m.params.MinMovePct:
		side = domain.OrderSideSell
	default:
		return nil, nil
	}

	if !m.cooldownElapsed(snap.InstID, ts) {
		return nil, nil
	}

	est, ok := affordableEntry(ctx, m.gate, m.cfg, side, snap, m.logger)
	if !ok {
		return nil, nil
	}

	m.markSignalled(snap.InstID, ts)
	reason := fmt.Sprintf("momentum %s: mid=%.2f move=%.2f%%", side, mid, move)
	sig := domain.TradeSignal{
		ID:           uuid.NewString(),
		Source:       m.Name(),
		InstID:       snap.InstID,
		Side:         side,
		Price:        mid,
		SizeQuote:    m.cfg.SizeQuote,
		ExpectedCost: est.TotalCostUSD,
		Reason:       reason,
		CreatedAt:    ts,
	}
	return []domain.TradeSignal{sig}, nil
}

// OnSignal is a no-op; Momentum does not react to external signals.
func (m *Momentum) OnSignal(_ context.Context, _ domain.TradeSignal) ([]domain.TradeSignal, error) {
	return nil, nil
}

// Close releases resources. Momentum has nothing to release.
func (m *Momentum) Close() error { return nil }

func (m *Momentum) cooldownElapsed(instID string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.lastSignal[instID]
	return !ok || now.Sub(last) >= m.params.Cooldown
}

func (m *Momentum) markSignalled(instID string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSignal[instID] = now
}
