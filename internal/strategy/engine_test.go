package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/okquant/costsim/internal/domain"
)

// echoStrategy emits one signal per book update.
type echoStrategy struct {
	name  string
	count int
}

func (s *echoStrategy) Name() string                 { return s.name }
func (s *echoStrategy) Init(_ context.Context) error { return nil }
func (s *echoStrategy) Close() error                 { return nil }
func (s *echoStrategy) OnSignal(_ context.Context, _ domain.TradeSignal) ([]domain.TradeSignal, error) {
	return nil, nil
}

func (s *echoStrategy) OnBookUpdate(_ context.Context, snap domain.OrderBookSnapshot) ([]domain.TradeSignal, error) {
	s.count++
	return []domain.TradeSignal{{
		ID:        s.name + "-sig",
		Source:    s.name,
		InstID:    snap.InstID,
		Side:      domain.OrderSideBuy,
		Price:     snap.MidPrice(),
		CreatedAt: time.Now(),
	}}, nil
}

func TestEngineRejectsUnknownActiveName(t *testing.T) {
	e := NewEngine(NewRegistry(), testLogger())
	if err := e.SetActiveNames([]string{"nope"}); err == nil {
		t.Fatal("expected error for unregistered strategy")
	}
}

func TestEngineInlineDispatchEmits(t *testing.T) {
	reg := NewRegistry()
	s := &echoStrategy{name: "echo"}
	reg.Register(s)

	e := NewEngine(reg, testLogger())
	if err := e.SetActiveNames([]string{"echo"}); err != nil {
		t.Fatalf("set active: %v", err)
	}
	sigCh := make(chan domain.TradeSignal, 1)
	e.SetSignalChannel(sigCh)

	snap := bookAt("BTC-USDT", 100, time.Now())
	if err := e.HandleBookUpdate(context.Background(), snap); err != nil {
		t.Fatalf("handle book update: %v", err)
	}

	if s.count != 1 {
		t.Errorf("strategy saw %d updates, want 1", s.count)
	}
	select {
	case sig := <-sigCh:
		if sig.Source != "echo" || sig.InstID != "BTC-USDT" {
			t.Errorf("forwarded signal wrong: %+v", sig)
		}
	default:
		t.Error("signal not forwarded to channel")
	}

	recent := e.RecentSignals(10)
	if len(recent) != 1 || recent[0].ID != "echo-sig" {
		t.Errorf("recent signals = %+v", recent)
	}
}

func TestEngineRecentSignalsNewestFirst(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&echoStrategy{name: "a"})
	reg.Register(&echoStrategy{name: "b"})

	e := NewEngine(reg, testLogger())
	if err := e.SetActiveNames([]string{"a", "b"}); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := e.HandleBookUpdate(context.Background(), bookAt("BTC-USDT", 100, time.Now())); err != nil {
		t.Fatalf("handle book update: %v", err)
	}

	recent := e.RecentSignals(1)
	if len(recent) != 1 || recent[0].Source != "b" {
		t.Errorf("recent = %+v, want just the latest signal", recent)
	}
}

func TestEngineRunAllConsumesChannel(t *testing.T) {
	reg := NewRegistry()
	s := &echoStrategy{name: "echo"}
	reg.Register(s)

	e := NewEngine(reg, testLogger())
	if err := e.SetActiveNames([]string{"echo"}); err != nil {
		t.Fatalf("set active: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.RunAll(ctx) }()

	// Wait until the engine has installed the per-strategy channel.
	deadline := time.After(2 * time.Second)
	for {
		e.mu.RLock()
		installed := len(e.bookChs) == 1
		e.mu.RUnlock()
		if installed {
			break
		}
		select {
		case <-deadline:
			t.Fatal("strategy loop never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := e.HandleBookUpdate(ctx, bookAt("BTC-USDT", 100, time.Now())); err != nil {
		t.Fatalf("handle book update: %v", err)
	}

	// The loop processes the update asynchronously.
	deadline = time.After(2 * time.Second)
	for len(e.RecentSignals(1)) == 0 {
		select {
		case <-deadline:
			t.Fatal("signal never emitted by running strategy")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("run all returned %v, want context.Canceled", err)
	}
}
