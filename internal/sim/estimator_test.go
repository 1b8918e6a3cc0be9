package sim

import (
	"errors"
	"testing"

	"github.com/okquant/costsim/internal/domain"
)

func newTestEstimator() *Estimator {
	logger := testLogger()
	return NewEstimator(NewBookWalkSlippage(), NewImpactModel(logger), NewFeeModel(logger), logger)
}

func TestEstimateBuyCostBreakdown(t *testing.T) {
	e := newTestEstimator()
	order := marketBuy(50_000)
	est, err := e.Estimate(order, sampleBook())
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}

	if est.MidPrice != 27352.75 {
		t.Errorf("mid = %v, want 27352.75", est.MidPrice)
	}
	if est.ExecutedPrice < est.MidPrice {
		t.Errorf("buy executed price %v below mid %v", est.ExecutedPrice, est.MidPrice)
	}
	if est.NetPrice < est.ExecutedPrice {
		t.Errorf("buy net price %v below executed price %v", est.NetPrice, est.ExecutedPrice)
	}
	if est.FeeUSD <= 0 {
		t.Errorf("fee = %v, want positive", est.FeeUSD)
	}
	if est.TakerProb <= 0 || est.TakerProb >= 1 {
		t.Errorf("taker probability = %v, want in (0, 1)", est.TakerProb)
	}
	if est.TotalCostUSD <= 0 {
		t.Errorf("total cost = %v, want positive", est.TotalCostUSD)
	}
}

func TestEstimateSellPricesBelowMid(t *testing.T) {
	e := newTestEstimator()
	order := domain.OrderSpec{
		Symbol:        "BTC-USDT",
		Side:          domain.OrderSideSell,
		Type:          domain.OrderTypeMarket,
		QuantityQuote: 50_000,
	}
	est, err := e.Estimate(order, sampleBook())
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	if est.ExecutedPrice > est.MidPrice {
		t.Errorf("sell executed price %v above mid %v", est.ExecutedPrice, est.MidPrice)
	}
	if est.NetPrice > est.ExecutedPrice {
		t.Errorf("sell net price %v above executed price %v", est.NetPrice, est.ExecutedPrice)
	}
}

func TestEstimateEmptyBook(t *testing.T) {
	e := newTestEstimator()
	book := sampleBook()
	book.Asks = nil
	_, err := e.Estimate(marketBuy(1000), book)
	if !errors.Is(err, domain.ErrNoBook) {
		t.Errorf("err = %v, want ErrNoBook", err)
	}
}

func TestEstimateInvalidQuantity(t *testing.T) {
	e := newTestEstimator()
	_, err := e.Estimate(marketBuy(0), sampleBook())
	if !errors.Is(err, domain.ErrInvalidOrder) {
		t.Errorf("err = %v, want ErrInvalidOrder", err)
	}
}

func TestEstimateParametricStrategy(t *testing.T) {
	logger := testLogger()
	e := NewEstimator(NewParametricSlippage(), NewImpactModel(logger), NewFeeModel(logger), logger)
	est, err := e.Estimate(marketBuy(50_000), sampleBook())
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	if est.SlippagePct < 0 || est.SlippagePct > parametricCapPct {
		t.Errorf("parametric slippage = %v, want within [0, %v]", est.SlippagePct, parametricCapPct)
	}
}
