package strategy

import (
	"math"
	"sync"
	"time"
)

// PricePoint is a single observed mid price.
type PricePoint struct {
	Price     float64
	Timestamp time.Time
}

// PriceTracker keeps a sliding time window of mid prices per instrument
// and derives rolling statistics from it. Safe for concurrent use.
type PriceTracker struct {
	mu      sync.RWMutex
	history map[string][]PricePoint
	window  time.Duration
}

// NewPriceTracker creates a tracker with the given window duration.
func NewPriceTracker(window time.Duration) *PriceTracker {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &PriceTracker{
		history: make(map[string][]PricePoint),
		window:  window,
	}
}

// Track records a price observation and drops points older than the window.
func (t *PriceTracker) Track(instID string, price float64, ts time.Time) {
	if price <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	pts := append(t.history[instID], PricePoint{Price: price, Timestamp: ts})
	cutoff := ts.Add(-t.window)
	start := 0
	for start < len(pts) && pts[start].Timestamp.Before(cutoff) {
		start++
	}
	t.history[instID] = pts[start:]
}

// Len returns the number of points currently tracked for an instrument.
func (t *PriceTracker) Len(instID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.history[instID])
}

// History returns a copy of the tracked points for an instrument.
func (t *PriceTracker) History(instID string) []PricePoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pts := t.history[instID]
	out := make([]PricePoint, len(pts))
	copy(out, pts)
	return out
}

// Average returns the mean price over the window, or 0 with no data.
func (t *PriceTracker) Average(instID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pts := t.history[instID]
	if len(pts) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range pts {
		sum += p.Price
	}
	return sum / float64(len(pts))
}

// Volatility returns the population standard deviation of prices over
// the window, or 0 with fewer than two points.
func (t *PriceTracker) Volatility(instID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pts := t.history[instID]
	if len(pts) < 2 {
		return 0
	}
	mean := 0.0
	for _, p := range pts {
		mean += p.Price
	}
	mean /= float64(len(pts))

	variance := 0.0
	for _, p := range pts {
		d := p.Price - mean
		variance += d * d
	}
	variance /= float64(len(pts))
	return math.Sqrt(variance)
}

// Change returns the percent move from the oldest to the newest point in
// the window. Returns 0 with fewer than two points.
func (t *PriceTracker) Change(instID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pts := t.history[instID]
	if len(pts) < 2 || pts[0].Price <= 0 {
		return 0
	}
	return (pts[len(pts)-1].Price - pts[0].Price) / pts[0].Price * 100
}
