package sim

import (
	"github.com/okquant/costsim/internal/domain"
)

// maxPerturbation caps how far latency can move the book, as a fraction.
const maxPerturbation = 0.1

// RandSource yields uniform floats in [0, 1). *math/rand.Rand satisfies
// it; tests inject a fixed sequence for deterministic perturbation.
type RandSource interface {
	Float64() float64
}

// PerturbBook returns a copy of the book adjusted to model execution
// against a snapshot that is latencyMs old. Prices drift against the
// would-be order (bids down, asks up) and sizes wobble both ways, with
// magnitude scaled by min(latencyMs/1000, 0.1). The caller's snapshot is
// never touched.
func PerturbBook(book domain.OrderBookSnapshot, latencyMs int, rng RandSource) domain.OrderBookSnapshot {
	out := book.Clone()
	if latencyMs <= 0 || rng == nil {
		return out
	}

	factor := float64(latencyMs) / 1000
	if factor > maxPerturbation {
		factor = maxPerturbation
	}

	for i := range out.Bids {
		out.Bids[i].Price *= 1 - factor*rng.Float64()
		out.Bids[i].Size = perturbSize(out.Bids[i].Size, factor, rng)
	}
	for i := range out.Asks {
		out.Asks[i].Price *= 1 + factor*rng.Float64()
		out.Asks[i].Size = perturbSize(out.Asks[i].Size, factor, rng)
	}
	return out
}

// perturbSize shifts a level size by up to ±factor, floored at zero.
func perturbSize(size, factor float64, rng RandSource) float64 {
	shift := (rng.Float64()*2 - 1) * factor
	s := size * (1 + shift)
	if s < 0 {
		return 0
	}
	return s
}
