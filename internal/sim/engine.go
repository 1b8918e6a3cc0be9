package sim

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/okquant/costsim/internal/domain"
)

// ImpactWarnPct is the impact level, in percent, above which a result
// carries a large-impact warning.
const ImpactWarnPct = 1.0

// Engine runs fill simulations: it validates the order, optionally ages
// the book to model latency, walks the contra side, classifies the
// execution, and composes slippage, impact and fees into one result.
// An Engine is stateless per call and safe for concurrent use as long as
// each call gets its own snapshot.
type Engine struct {
	impact *ImpactModel
	fees   *FeeModel
	rng    RandSource
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRandSource injects the randomness used for latency perturbation.
// Tests pass a seeded source to make perturbed runs deterministic.
func WithRandSource(rng RandSource) Option {
	return func(e *Engine) { e.rng = rng }
}

// NewEngine creates an execution engine over the given cost models.
func NewEngine(impact *ImpactModel, fees *FeeModel, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		impact: impact,
		fees:   fees,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger.With(slog.String("component", "execution_engine")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Simulate runs one fill simulation. It never returns an error: invalid
// input produces a fail-classified result with a descriptive warning and
// zeroed numerics.
func (e *Engine) Simulate(order domain.OrderSpec, book domain.OrderBookSnapshot) domain.ExecutionResult {
	if warn := validateOrder(order, book); warn != "" {
		e.logger.Warn("rejected order", slog.String("reason", warn))
		return failResult(warn)
	}

	if order.LatencyMs > 0 {
		book = PerturbBook(book, order.LatencyMs, e.rng)
	}

	bestBid, bestAsk := book.BestBid(), book.BestAsk()
	mid := (bestBid + bestAsk) / 2

	if order.Type == domain.OrderTypeLimit && !marketable(order, bestBid, bestAsk) {
		return domain.ExecutionResult{
			Type: domain.ExecutionMaker,
			Warnings: []string{fmt.Sprintf(
				"limit order at %.2f is not marketable; rests on the book unfilled", order.LimitPrice)},
		}
	}

	levels := book.Asks
	if order.Side == domain.OrderSideSell {
		levels = book.Bids
	}
	limit := 0.0
	if order.Type == domain.OrderTypeLimit {
		limit = order.LimitPrice
	}
	walk := WalkBook(order.Side, order.QuantityQuote, levels, limit)

	if walk.ExecutedQuote <= 0 {
		return failResult("insufficient liquidity: no levels executable")
	}

	class := domain.ExecutionTaker
	var warnings []string
	if !walk.Filled() {
		class = domain.ExecutionPartial
		warnings = append(warnings, fmt.Sprintf(
			"partial fill: %.2f of %.2f quote executed", walk.ExecutedQuote, order.QuantityQuote))
	}

	avg := walk.AveragePrice()
	slippage := CalculateSlippage(order.Side, mid, avg)
	impact := e.impact.Estimate(order.Side, walk.ExecutedQuote, book, order.Symbol)
	feeRate := e.fees.Rate(order.Fees, class)
	fee := e.fees.CalculateFee(walk.ExecutedQuote, feeRate)

	if impact > ImpactWarnPct {
		warnings = append(warnings, fmt.Sprintf("market impact %.2f%% exceeds %.2f%%", impact, ImpactWarnPct))
	}

	return domain.ExecutionResult{
		ExecutedBase:  round8(walk.ExecutedBase),
		ExecutedQuote: round2(walk.ExecutedQuote),
		AveragePrice:  round2(avg),
		SlippagePct:   round2(slippage),
		ImpactPct:     round2(impact),
		FeePaid:       round2(fee),
		Type:          class,
		Warnings:      warnings,
	}
}

// validateOrder returns a warning string describing the first problem
// found, or "" when the order and book are usable.
func validateOrder(order domain.OrderSpec, book domain.OrderBookSnapshot) string {
	switch order.Side {
	case domain.OrderSideBuy, domain.OrderSideSell:
	default:
		return fmt.Sprintf("invalid order side: %q", order.Side)
	}
	switch order.Type {
	case domain.OrderTypeMarket, domain.OrderTypeLimit:
	default:
		return fmt.Sprintf("invalid order type: %q", order.Type)
	}
	if order.QuantityQuote <= 0 {
		return "order quantity must be positive"
	}
	if order.Type == domain.OrderTypeLimit && order.LimitPrice <= 0 {
		return "limit price must be positive"
	}
	if order.LatencyMs < 0 {
		return "latency must be non-negative"
	}
	if len(book.Bids) == 0 {
		return "orderbook has no bid levels"
	}
	if len(book.Asks) == 0 {
		return "orderbook has no ask levels"
	}
	return ""
}

// marketable reports whether a limit order crosses the spread. Market
// orders never reach this check.
func marketable(order domain.OrderSpec, bestBid, bestAsk float64) bool {
	if order.Side == domain.OrderSideBuy {
		return order.LimitPrice >= bestAsk
	}
	return order.LimitPrice <= bestBid
}

// failResult builds the zeroed fail-classified result.
func failResult(warning string) domain.ExecutionResult {
	return domain.ExecutionResult{
		Type:     domain.ExecutionFail,
		Warnings: []string{warning},
	}
}

// round2 and round8 are presentation rounding, applied once per result,
// never between intermediate steps.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
