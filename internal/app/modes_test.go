package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/okquant/costsim/internal/config"
	"github.com/okquant/costsim/internal/domain"
	"github.com/okquant/costsim/internal/notify"
)

type countingSender struct {
	alerts []notify.Alert
}

func (s *countingSender) Send(_ context.Context, alert notify.Alert) error {
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *countingSender) Name() string { return "counting" }

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newSimulateApp(t *testing.T) (*App, *countingSender, *Dependencies) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Feed.UseSample = true
	sender := &countingSender{}
	deps := &Dependencies{
		Notifier: notify.NewNotifier([]notify.Sender{sender}, nil, testLogger()),
	}
	return New(&cfg, testLogger()), sender, deps
}

func TestSimulateModeNoAlertOnPartialFill(t *testing.T) {
	a, sender, deps := newSimulateApp(t)

	// Far more than the sample book holds: the result carries a
	// partial-fill warning, but impact against the default ADV stays
	// negligible.
	a.SetSimulateOrder(domain.OrderSpec{
		Symbol:        "BTC-USDT",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeMarket,
		QuantityQuote: 500_000,
	})
	if err := a.SimulateMode(context.Background(), deps); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if len(sender.alerts) != 0 {
		t.Fatalf("partial fill raised %d alerts, want none", len(sender.alerts))
	}
}

func TestSimulateModeNoAlertOnRestingLimit(t *testing.T) {
	a, sender, deps := newSimulateApp(t)

	// Non-marketable limit: warned, zero impact, no alert.
	a.SetSimulateOrder(domain.OrderSpec{
		Symbol:        "BTC-USDT",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeLimit,
		QuantityQuote: 500,
		LimitPrice:    1000,
	})
	if err := a.SimulateMode(context.Background(), deps); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if len(sender.alerts) != 0 {
		t.Fatalf("resting limit raised %d alerts, want none", len(sender.alerts))
	}
}

func TestSimulateModeRequiresOrder(t *testing.T) {
	a, _, deps := newSimulateApp(t)
	if err := a.SimulateMode(context.Background(), deps); err == nil {
		t.Fatal("simulate without an order should fail")
	}
}
