package sim

import (
	"math"

	"github.com/okquant/costsim/internal/domain"
)

// SlippageEstimator computes expected slippage, in percent of the mid
// price, for an order of the given quote-denominated size.
type SlippageEstimator interface {
	Estimate(side domain.OrderSide, sizeQuote float64, book domain.OrderBookSnapshot) float64
}

var (
	_ SlippageEstimator = (*BookWalkSlippage)(nil)
	_ SlippageEstimator = (*ParametricSlippage)(nil)
)

// CalculateSlippage returns the realized slippage of an average fill
// price against the pre-trade mid, floored at 0: a fill better than mid
// reports zero rather than a negative value. This is the convention the
// execution engine uses for its results; BookWalkSlippage keeps the
// signed form for pre-trade estimates.
func CalculateSlippage(side domain.OrderSide, mid, avgPrice float64) float64 {
	if mid <= 0 || avgPrice <= 0 {
		return 0
	}
	var pct float64
	if side == domain.OrderSideBuy {
		pct = (avgPrice - mid) / mid * 100
	} else {
		pct = (mid - avgPrice) / mid * 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// BookWalkSlippage estimates slippage by walking the contra side of the
// book exactly as an execution would. The result is signed: a fill
// inside the mid comes back negative.
type BookWalkSlippage struct{}

// NewBookWalkSlippage returns the deterministic book-walk estimator.
func NewBookWalkSlippage() *BookWalkSlippage {
	return &BookWalkSlippage{}
}

// Estimate walks the contra side and compares the average fill price to
// the current mid. When the book is exhausted before the size is filled,
// the remainder is assumed to fill at the worst level seen, which keeps
// the estimate monotonic in order size.
func (s *BookWalkSlippage) Estimate(side domain.OrderSide, sizeQuote float64, book domain.OrderBookSnapshot) float64 {
	mid := book.MidPrice()
	if mid <= 0 || sizeQuote <= 0 {
		return 0
	}

	levels := book.Asks
	if side == domain.OrderSideSell {
		levels = book.Bids
	}
	if len(levels) == 0 {
		return 0
	}

	res := WalkBook(side, sizeQuote, levels, 0)
	if !res.Filled() {
		// Fill the remainder at the worst available price.
		worst := levels[len(levels)-1].Price
		if worst > 0 {
			res.ExecutedBase += res.RemainingQuote / worst
			res.ExecutedQuote += res.RemainingQuote
			res.RemainingQuote = 0
		}
	}

	avg := res.AveragePrice()
	if avg <= 0 {
		return 0
	}
	if side == domain.OrderSideBuy {
		return (avg - mid) / mid * 100
	}
	return (mid - avg) / mid * 100
}

// Parametric slippage coefficients. The power law is a fixed formula,
// not a fitted model.
const (
	parametricCoeff    = 0.5
	parametricExponent = 1.5
	parametricCapPct   = 5.0
	parametricDepth    = 5 // levels of contra-side depth considered
)

// ParametricSlippage is the lightweight estimator: order size relative
// to near-touch depth through a power law, capped. It never walks the
// book level-by-level, so it suits hot paths that only need a rough
// figure.
type ParametricSlippage struct{}

// NewParametricSlippage returns the parametric estimator.
func NewParametricSlippage() *ParametricSlippage {
	return &ParametricSlippage{}
}

// Estimate applies coeff * relative_size^exponent where relative size is
// the order's quote notional over the contra side's top-level depth.
// An empty or degenerate contra side reports the cap.
func (s *ParametricSlippage) Estimate(side domain.OrderSide, sizeQuote float64, book domain.OrderBookSnapshot) float64 {
	if sizeQuote <= 0 {
		return 0
	}

	levels := book.Asks
	if side == domain.OrderSideSell {
		levels = book.Bids
	}

	var depthQuote float64
	for i, lvl := range levels {
		if i >= parametricDepth {
			break
		}
		if lvl.Price > 0 && lvl.Size > 0 {
			depthQuote += lvl.Price * lvl.Size
		}
	}
	if depthQuote <= 0 {
		return parametricCapPct
	}

	pct := parametricCoeff * math.Pow(sizeQuote/depthQuote, parametricExponent)
	if pct > parametricCapPct {
		return parametricCapPct
	}
	return pct
}
