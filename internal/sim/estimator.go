package sim

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/okquant/costsim/internal/domain"
)

// Estimator produces pre-trade cost breakdowns without simulating a full
// fill: expected slippage, impact and fees for a notional against the
// current book, composed into expected execution and net prices.
type Estimator struct {
	slippage SlippageEstimator
	impact   *ImpactModel
	fees     *FeeModel
	logger   *slog.Logger
}

// NewEstimator creates a pre-trade estimator over the given models. The
// slippage strategy is chosen by the caller: book-walk for accuracy,
// parametric for hot paths.
func NewEstimator(slippage SlippageEstimator, impact *ImpactModel, fees *FeeModel, logger *slog.Logger) *Estimator {
	return &Estimator{
		slippage: slippage,
		impact:   impact,
		fees:     fees,
		logger:   logger.With(slog.String("component", "estimator")),
	}
}

// Estimate computes the expected cost of trading order.QuantityQuote at
// market against the book. Unlike Engine.Simulate this path reports
// errors: it is a query, not a simulation, and a missing book is the
// caller's problem.
func (e *Estimator) Estimate(order domain.OrderSpec, book domain.OrderBookSnapshot) (domain.CostEstimate, error) {
	if order.QuantityQuote <= 0 {
		return domain.CostEstimate{}, fmt.Errorf("estimator: quantity %v: %w", order.QuantityQuote, domain.ErrInvalidOrder)
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return domain.CostEstimate{}, fmt.Errorf("estimator: %s: %w", order.Symbol, domain.ErrNoBook)
	}

	mid := book.MidPrice()
	dir := 1.0
	if order.Side == domain.OrderSideSell {
		dir = -1.0
	}

	slip := e.slippage.Estimate(order.Side, order.QuantityQuote, book)
	impact := e.impact.Estimate(order.Side, order.QuantityQuote, book, order.Symbol)
	takerProb := e.fees.TakerProbability(order.QuantityQuote, book)
	feePct := e.fees.BlendedRate(order.QuantityQuote, book, order.Fees)

	executedPrice := mid * (1 + dir*slip/100)
	netPrice := executedPrice * (1 + dir*impact/100) * (1 + dir*feePct/100)
	feeUSD := e.fees.CalculateFee(order.QuantityQuote, feePct)
	totalCost := order.QuantityQuote*(slip+impact)/100 + feeUSD

	return domain.CostEstimate{
		Symbol:        order.Symbol,
		MidPrice:      round2(mid),
		ExecutedPrice: round2(executedPrice),
		NetPrice:      round2(netPrice),
		SlippagePct:   round2(slip),
		ImpactPct:     round2(impact),
		FeePct:        round2(feePct),
		FeeUSD:        round2(feeUSD),
		TotalCostUSD:  round2(totalCost),
		TakerProb:     math.Round(takerProb*10000) / 10000,
	}, nil
}
