package sim

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/okquant/costsim/internal/domain"
)

// Almgren-Chriss power-law coefficients and impact decomposition
// weights.
const (
	impactGamma = 0.1
	impactDelta = 0.5

	permanentWeight = 0.1
	temporaryWeight = 0.9

	liquidityFactorMin     = 0.5
	liquidityFactorMax     = 3.0
	liquidityFactorDefault = 1.5

	imbalanceDepth = 5 // levels per side in the imbalance measure

	defaultADV = 1e8
)

// defaultADVTable seeds the per-symbol average-daily-volume reference,
// in quote currency.
var defaultADVTable = map[string]float64{
	"BTC-USDT": 1e9,
	"ETH-USDT": 5e8,
}

// ImpactModel estimates market impact with an Almgren-Chriss style power
// law, gamma * (size/ADV)^delta, scaled by a liquidity factor read from
// the live book. The ADV table is instance state; there is no package
// level mutable configuration.
type ImpactModel struct {
	mu     sync.RWMutex
	adv    map[string]float64
	logger *slog.Logger
}

// NewImpactModel creates an ImpactModel seeded with the built-in ADV
// table.
func NewImpactModel(logger *slog.Logger) *ImpactModel {
	adv := make(map[string]float64, len(defaultADVTable))
	for k, v := range defaultADVTable {
		adv[k] = v
	}
	return &ImpactModel{
		adv:    adv,
		logger: logger.With(slog.String("component", "impact_model")),
	}
}

// ADV returns the average-daily-volume reference for the symbol, falling
// back to the default when the symbol is unknown.
func (m *ImpactModel) ADV(symbol string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.adv[symbol]; ok {
		return v
	}
	return defaultADV
}

// UpdateADV sets the ADV reference for a symbol. Non-positive values are
// rejected with a warning and leave the table unchanged.
func (m *ImpactModel) UpdateADV(symbol string, value float64) error {
	if value <= 0 {
		m.logger.Warn("rejected adv update",
			slog.String("symbol", symbol),
			slog.Float64("value", value))
		return fmt.Errorf("impact: adv for %s must be positive, got %v", symbol, value)
	}
	m.mu.Lock()
	m.adv[symbol] = value
	m.mu.Unlock()
	return nil
}

// Estimate returns the expected market impact in percent for an order of
// the given quote size against the book.
func (m *ImpactModel) Estimate(side domain.OrderSide, sizeQuote float64, book domain.OrderBookSnapshot, symbol string) float64 {
	if sizeQuote <= 0 {
		return 0
	}
	adv := m.ADV(symbol)
	raw := impactGamma * math.Pow(sizeQuote/adv, impactDelta)
	return raw * liquidityFactor(side, book)
}

// PermanentImpact is the slice of the impact estimate attributed to a
// lasting price shift. Auxiliary output for strategy consumers.
func (m *ImpactModel) PermanentImpact(side domain.OrderSide, sizeQuote float64, book domain.OrderBookSnapshot, symbol string) float64 {
	return permanentWeight * m.Estimate(side, sizeQuote, book, symbol)
}

// TemporaryImpact is the slice of the impact estimate that decays after
// execution.
func (m *ImpactModel) TemporaryImpact(side domain.OrderSide, sizeQuote float64, book domain.OrderBookSnapshot, symbol string) float64 {
	return temporaryWeight * m.Estimate(side, sizeQuote, book, symbol)
}

// liquidityFactor scales raw impact by current book conditions: a wider
// spread and top-of-book volume imbalanced against the order both raise
// the factor. Clamped to [0.5, 3.0]; a book with unusable prices gets
// the neutral-ish default of 1.5.
func liquidityFactor(side domain.OrderSide, book domain.OrderBookSnapshot) float64 {
	bid, ask := book.BestBid(), book.BestAsk()
	if bid <= 0 || ask <= 0 || ask <= bid {
		return liquidityFactorDefault
	}

	mid := (bid + ask) / 2
	spreadBps := (ask - bid) / mid * 10000
	spreadFactor := 1 + spreadBps/100

	var bidVol, askVol float64
	for i := 0; i < imbalanceDepth && i < len(book.Bids); i++ {
		bidVol += book.Bids[i].Size
	}
	for i := 0; i < imbalanceDepth && i < len(book.Asks); i++ {
		askVol += book.Asks[i].Size
	}

	imbalanceFactor := 1.0
	if total := bidVol + askVol; total > 0 {
		// Positive imbalance means bid-heavy. A bid-heavy book works
		// against buyers (thin asks) and for sellers.
		imbalance := (bidVol - askVol) / total
		if side == domain.OrderSideBuy {
			imbalanceFactor = 1 + imbalance
		} else {
			imbalanceFactor = 1 - imbalance
		}
	}

	factor := spreadFactor * imbalanceFactor
	if factor < liquidityFactorMin {
		return liquidityFactorMin
	}
	if factor > liquidityFactorMax {
		return liquidityFactorMax
	}
	return factor
}
