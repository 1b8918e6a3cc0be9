package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okquant/costsim/internal/domain"
)

type recordingSender struct {
	name   string
	alerts []Alert
}

func (s *recordingSender) Send(_ context.Context, alert Alert) error {
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *recordingSender) Name() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNotifierFiltersByEvent(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{EventArchiveSweep}, testLogger())

	n.Signal(context.Background(), domain.TradeSignal{Source: "momentum", InstID: "BTC-USDT"})
	if len(sender.alerts) != 0 {
		t.Fatalf("signal should be filtered, got %v", sender.alerts)
	}

	n.SweepComplete(context.Background(), 10, 10, time.Now())
	if len(sender.alerts) != 1 {
		t.Fatalf("sweep should pass the filter, got %v", sender.alerts)
	}
	if sender.alerts[0].Event != EventArchiveSweep {
		t.Errorf("event = %q, want %q", sender.alerts[0].Event, EventArchiveSweep)
	}
}

func TestNotifierEmptyAllowListPassesAll(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	n.Signal(context.Background(), domain.TradeSignal{Source: "mean_reversion", Side: domain.OrderSideBuy, InstID: "ETH-USDT"})
	n.ImpactWarning(context.Background(), "ETH-USDT", 1.4, 250000)
	n.Error(context.Background(), "archive failed", context.DeadlineExceeded)

	if len(sender.alerts) != 3 {
		t.Fatalf("want 3 notifications, got %v", sender.alerts)
	}
	if sender.alerts[0].Title != "Signal: mean_reversion buy ETH-USDT" {
		t.Errorf("title = %q", sender.alerts[0].Title)
	}
	if sender.alerts[1].Event != EventImpactWarning {
		t.Errorf("event = %q, want %q", sender.alerts[1].Event, EventImpactWarning)
	}
	if sender.alerts[2].At.IsZero() {
		t.Error("alert timestamp not set")
	}
}

func TestNotifierDisabledWithoutSenders(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger())
	if n.Enabled() {
		t.Fatal("notifier with no senders must report disabled")
	}
	// Must not panic.
	n.Signal(context.Background(), domain.TradeSignal{})
}

func TestDiscordSenderRendersEmbed(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	err := s.Send(context.Background(), Alert{
		Event: EventImpactWarning,
		Title: "High market impact: BTC-USDT",
		Body:  "estimated impact 2.10% for 500000.00 quote notional",
		At:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(got.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(got.Embeds))
	}
	e := got.Embeds[0]
	if e.Color != discordEventColor[EventImpactWarning] {
		t.Errorf("color = %#x, want impact-warning color", e.Color)
	}
	if e.Footer == nil || e.Footer.Text != EventImpactWarning {
		t.Errorf("footer = %+v, want event class", e.Footer)
	}
	if e.Timestamp != "2026-08-01T12:00:00Z" {
		t.Errorf("timestamp = %q", e.Timestamp)
	}
}
