package strategy

import (
	"context"
	"log/slog"

	"github.com/okquant/costsim/internal/domain"
)

// affordableEntry runs a prospective market order through the cost gate
// and reports whether the estimated all-in cost stays within
// cfg.MaxCostPct of the notional. Returns the estimate so callers can
// attach it to the signal.
func affordableEntry(_ context.Context, gate CostGate, cfg Config, side domain.OrderSide, snap domain.OrderBookSnapshot, logger *slog.Logger) (domain.CostEstimate, bool) {
	if gate == nil {
		return domain.CostEstimate{}, true
	}
	order := domain.OrderSpec{
		Symbol:        snap.InstID,
		Side:          side,
		Type:          domain.OrderTypeMarket,
		QuantityQuote: cfg.SizeQuote,
	}
	est, err := gate.Estimate(order, snap)
	if err != nil {
		logger.Debug("cost gate estimate failed",
			slog.String("inst_id", snap.InstID),
			slog.String("error", err.Error()))
		return domain.CostEstimate{}, false
	}
	if cfg.SizeQuote <= 0 {
		return est, false
	}
	costPct := est.TotalCostUSD / cfg.SizeQuote * 100
	if cfg.MaxCostPct > 0 && costPct > cfg.MaxCostPct {
		logger.Debug("signal suppressed by cost gate",
			slog.String("inst_id", snap.InstID),
			slog.String("side", string(side)),
			slog.Float64("cost_pct", costPct),
			slog.Float64("max_cost_pct", cfg.MaxCostPct))
		return est, false
	}
	return est, true
}
