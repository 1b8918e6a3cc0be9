package sim

import (
	"github.com/okquant/costsim/internal/domain"
)

// quoteEpsilon absorbs floating-point residue when deciding whether an
// order is fully filled, in quote currency.
const quoteEpsilon = 0.01

// WalkResult accumulates one traversal of a book side.
type WalkResult struct {
	ExecutedBase   float64
	ExecutedQuote  float64
	RemainingQuote float64
	LevelsUsed     int
}

// Filled reports whether the walk consumed the whole requested amount,
// up to the epsilon tolerance.
func (w WalkResult) Filled() bool {
	return w.RemainingQuote <= quoteEpsilon
}

// AveragePrice returns executed quote over executed base, or 0 when
// nothing executed.
func (w WalkResult) AveragePrice() float64 {
	if w.ExecutedBase <= 0 {
		return 0
	}
	return w.ExecutedQuote / w.ExecutedBase
}

// WalkBook traverses the contra-side levels best-to-worst, filling up to
// quantityQuote (denominated in quote currency). For buys the levels are
// asks and the executable amount at each level is capped by the level's
// notional; for sells the levels are bids and the cap is the level's base
// size. A positive limitPrice stops the walk at the first level beyond
// the limit: above it for buys, below it for sells. The walk never
// partially crosses past the limit.
func WalkBook(side domain.OrderSide, quantityQuote float64, levels []domain.PriceLevel, limitPrice float64) WalkResult {
	res := WalkResult{RemainingQuote: quantityQuote}
	if quantityQuote <= 0 {
		return res
	}

	for _, lvl := range levels {
		if res.RemainingQuote <= quoteEpsilon {
			break
		}
		if lvl.Price <= 0 || lvl.Size <= 0 {
			continue
		}
		if limitPrice > 0 {
			if side == domain.OrderSideBuy && lvl.Price > limitPrice {
				break
			}
			if side == domain.OrderSideSell && lvl.Price < limitPrice {
				break
			}
		}

		if side == domain.OrderSideBuy {
			execQuote := lvl.Price * lvl.Size
			if execQuote > res.RemainingQuote {
				execQuote = res.RemainingQuote
			}
			res.ExecutedBase += execQuote / lvl.Price
			res.ExecutedQuote += execQuote
			res.RemainingQuote -= execQuote
		} else {
			execBase := res.RemainingQuote / lvl.Price
			if execBase > lvl.Size {
				execBase = lvl.Size
			}
			execQuote := execBase * lvl.Price
			res.ExecutedBase += execBase
			res.ExecutedQuote += execQuote
			res.RemainingQuote -= execQuote
		}
		res.LevelsUsed++
	}

	return res
}
