package strategy

import (
	"math"
	"testing"
	"time"
)

func TestPriceTrackerStats(t *testing.T) {
	tr := NewPriceTracker(5 * time.Minute)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, p := range []float64{100, 102, 98, 101, 99} {
		tr.Track("BTC-USDT", p, base.Add(time.Duration(i)*time.Second))
	}

	if got := tr.Len("BTC-USDT"); got != 5 {
		t.Fatalf("len = %d, want 5", got)
	}
	if got := tr.Average("BTC-USDT"); got != 100 {
		t.Errorf("average = %v, want 100", got)
	}
	// Population stddev of {100,102,98,101,99} is sqrt(2).
	if got := tr.Volatility("BTC-USDT"); math.Abs(got-math.Sqrt2) > 1e-9 {
		t.Errorf("volatility = %v, want sqrt(2)", got)
	}
	// Oldest 100 to newest 99 is a -1% move.
	if got := tr.Change("BTC-USDT"); math.Abs(got-(-1)) > 1e-9 {
		t.Errorf("change = %v, want -1", got)
	}
}

func TestPriceTrackerWindowTrim(t *testing.T) {
	tr := NewPriceTracker(time.Minute)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tr.Track("BTC-USDT", 100, base)
	tr.Track("BTC-USDT", 200, base.Add(2*time.Minute))

	if got := tr.Len("BTC-USDT"); got != 1 {
		t.Fatalf("len = %d, want 1 after trim", got)
	}
	if got := tr.Average("BTC-USDT"); got != 200 {
		t.Errorf("average = %v, want only the in-window point", got)
	}
}

func TestPriceTrackerIgnoresBadPrices(t *testing.T) {
	tr := NewPriceTracker(time.Minute)
	tr.Track("BTC-USDT", 0, time.Now())
	tr.Track("BTC-USDT", -5, time.Now())
	if got := tr.Len("BTC-USDT"); got != 0 {
		t.Errorf("len = %d, want 0", got)
	}
}

func TestPriceTrackerEmptyInstrument(t *testing.T) {
	tr := NewPriceTracker(time.Minute)
	if tr.Average("none") != 0 || tr.Volatility("none") != 0 || tr.Change("none") != 0 {
		t.Error("stats for unknown instrument should all be zero")
	}
}
