package strategy

import (
	"context"

	"github.com/okquant/costsim/internal/domain"
)

// Strategy defines the contract for signal-generating strategies.
type Strategy interface {
	Name() string
	Init(ctx context.Context) error
	OnBookUpdate(ctx context.Context, snap domain.OrderBookSnapshot) ([]domain.TradeSignal, error)
	OnSignal(ctx context.Context, signal domain.TradeSignal) ([]domain.TradeSignal, error)
	Close() error
}

// CostGate estimates the all-in cost of a prospective order so strategies
// can refuse entries whose expected execution cost eats the edge.
type CostGate interface {
	Estimate(order domain.OrderSpec, book domain.OrderBookSnapshot) (domain.CostEstimate, error)
}

// Config holds strategy configuration shared by all strategies.
type Config struct {
	// SizeQuote is the notional, in quote currency, each signal proposes.
	SizeQuote float64
	// MaxCostPct caps the estimated total cost (as percent of notional)
	// a strategy will accept before suppressing its signal.
	MaxCostPct float64
	Params     map[string]any
}
