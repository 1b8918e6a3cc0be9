package strategy

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/okquant/costsim/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// stubGate returns a fixed estimate, or an error when set.
type stubGate struct {
	est domain.CostEstimate
	err error
}

func (g stubGate) Estimate(_ domain.OrderSpec, _ domain.OrderBookSnapshot) (domain.CostEstimate, error) {
	return g.est, g.err
}

func bookAt(instID string, mid float64, ts time.Time) domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{
		InstID:    instID,
		Bids:      []domain.PriceLevel{{Price: mid - 0.1, Size: 5}},
		Asks:      []domain.PriceLevel{{Price: mid + 0.1, Size: 5}},
		Timestamp: ts,
	}
}

func feedPrices(t *testing.T, s Strategy, instID string, prices []float64, base time.Time) []domain.TradeSignal {
	t.Helper()
	var last []domain.TradeSignal
	for i, p := range prices {
		sigs, err := s.OnBookUpdate(context.Background(), bookAt(instID, p, base.Add(time.Duration(i)*time.Second)))
		if err != nil {
			t.Fatalf("on book update: %v", err)
		}
		last = sigs
	}
	return last
}

func TestMeanReversionEmitsBuyOnDip(t *testing.T) {
	cfg := Config{SizeQuote: 1000, MaxCostPct: 0.25}
	params := MeanReversionParams{ZScoreEntry: 2.0, MinHistory: 5, Cooldown: 10 * time.Second}
	gate := stubGate{est: domain.CostEstimate{TotalCostUSD: 1.5}}
	mr := NewMeanReversion(cfg, params, NewPriceTracker(5*time.Minute), gate, testLogger())

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	sigs := feedPrices(t, mr, "BTC-USDT", []float64{100, 100.2, 99.8, 100.1, 99.9, 99.0}, base)

	if len(sigs) != 1 {
		t.Fatalf("signals = %d, want 1 on the dip", len(sigs))
	}
	sig := sigs[0]
	if sig.Side != domain.OrderSideBuy {
		t.Errorf("side = %s, want buy below the mean", sig.Side)
	}
	if sig.InstID != "BTC-USDT" || sig.Source != "mean_reversion" {
		t.Errorf("signal identity wrong: %+v", sig)
	}
	if sig.SizeQuote != 1000 || sig.ExpectedCost != 1.5 {
		t.Errorf("size/cost = %v/%v, want 1000/1.5", sig.SizeQuote, sig.ExpectedCost)
	}
	if sig.ID == "" {
		t.Error("signal must carry an id")
	}
}

func TestMeanReversionCooldownSuppressesRepeat(t *testing.T) {
	cfg := Config{SizeQuote: 1000, MaxCostPct: 0.25}
	params := MeanReversionParams{ZScoreEntry: 2.0, MinHistory: 5, Cooldown: time.Minute}
	gate := stubGate{est: domain.CostEstimate{TotalCostUSD: 1.5}}
	mr := NewMeanReversion(cfg, params, NewPriceTracker(5*time.Minute), gate, testLogger())

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	sigs := feedPrices(t, mr, "BTC-USDT", []float64{100, 100.2, 99.8, 100.1, 99.9, 99.0}, base)
	if len(sigs) != 1 {
		t.Fatalf("first dip did not signal")
	}

	// Still stretched a second later, but inside the cooldown.
	again, err := mr.OnBookUpdate(context.Background(), bookAt("BTC-USDT", 98.5, base.Add(7*time.Second)))
	if err != nil {
		t.Fatalf("on book update: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("signals = %d during cooldown, want 0", len(again))
	}
}

func TestMeanReversionCostGateSuppresses(t *testing.T) {
	cfg := Config{SizeQuote: 1000, MaxCostPct: 0.25}
	params := MeanReversionParams{ZScoreEntry: 2.0, MinHistory: 5, Cooldown: 0}
	// 50 USD on a 1000 USD order is 5%, far over the 0.25% cap.
	gate := stubGate{est: domain.CostEstimate{TotalCostUSD: 50}}
	mr := NewMeanReversion(cfg, params, NewPriceTracker(5*time.Minute), gate, testLogger())

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	sigs := feedPrices(t, mr, "BTC-USDT", []float64{100, 100.2, 99.8, 100.1, 99.9, 99.0}, base)
	if len(sigs) != 0 {
		t.Errorf("signals = %d, want 0 when cost gate rejects", len(sigs))
	}
}

func TestMeanReversionNeedsHistory(t *testing.T) {
	cfg := Config{SizeQuote: 1000, MaxCostPct: 0.25}
	params := MeanReversionParams{ZScoreEntry: 2.0, MinHistory: 50, Cooldown: 0}
	mr := NewMeanReversion(cfg, params, NewPriceTracker(5*time.Minute), stubGate{}, testLogger())

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	sigs := feedPrices(t, mr, "BTC-USDT", []float64{100, 100.2, 99.8, 100.1, 99.9, 90.0}, base)
	if len(sigs) != 0 {
		t.Errorf("signals = %d with thin history, want 0", len(sigs))
	}
}

func TestMomentumEmitsBuyOnUptrend(t *testing.T) {
	cfg := Config{SizeQuote: 500, MaxCostPct: 1.0}
	params := MomentumParams{MinMovePct: 0.2, MinHistory: 3, Cooldown: 0}
	gate := stubGate{est: domain.CostEstimate{TotalCostUSD: 2}}
	m := NewMomentum(cfg, params, NewPriceTracker(5*time.Minute), gate, testLogger())

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	sigs := feedPrices(t, m, "ETH-USDT", []float64{100, 100.1, 100.3}, base)

	if len(sigs) != 1 {
		t.Fatalf("signals = %d, want 1 on a 0.3%% move", len(sigs))
	}
	if sigs[0].Side != domain.OrderSideBuy {
		t.Errorf("side = %s, want buy with rising prices", sigs[0].Side)
	}
}

func TestMomentumEmitsSellOnDowntrend(t *testing.T) {
	cfg := Config{SizeQuote: 500, MaxCostPct: 1.0}
	params := MomentumParams{MinMovePct: 0.2, MinHistory: 3, Cooldown: 0}
	m := NewMomentum(cfg, params, NewPriceTracker(5*time.Minute), stubGate{}, testLogger())

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	sigs := feedPrices(t, m, "ETH-USDT", []float64{100, 99.9, 99.7}, base)

	if len(sigs) != 1 || sigs[0].Side != domain.OrderSideSell {
		t.Fatalf("signals = %+v, want one sell", sigs)
	}
}

func TestMomentumFlatMarketStaysQuiet(t *testing.T) {
	cfg := Config{SizeQuote: 500, MaxCostPct: 1.0}
	params := MomentumParams{MinMovePct: 0.2, MinHistory: 3, Cooldown: 0}
	m := NewMomentum(cfg, params, NewPriceTracker(5*time.Minute), stubGate{}, testLogger())

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	sigs := feedPrices(t, m, "ETH-USDT", []float64{100, 100.05, 100.02, 100.04}, base)
	if len(sigs) != 0 {
		t.Errorf("signals = %d in a flat market, want 0", len(sigs))
	}
}
