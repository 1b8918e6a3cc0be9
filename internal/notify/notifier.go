// Package notify delivers operator alerts over webhook channels
// (Telegram, Discord). Alerts carry an event type so operators can
// subscribe to only the classes they care about: strategy signals,
// impact warnings, or archive sweeps.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/okquant/costsim/internal/domain"
)

// Event types emitted by the simulator.
const (
	EventSignal        = "signal"
	EventImpactWarning = "impact_warning"
	EventArchiveSweep  = "archive_sweep"
	EventError         = "error"
)

// Alert is one operator notification: the event class plus a title and
// body each channel renders in its own format.
type Alert struct {
	Event string
	Title string
	Body  string
	At    time.Time
}

// Sender is the interface each notification channel implements.
type Sender interface {
	// Send delivers one alert.
	Send(ctx context.Context, alert Alert) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Notifier dispatches alerts to one or more Senders, filtered by event
// type. An empty allow-list passes everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only
// events whose type appears in events are forwarded; an empty slice
// allows all types.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Signal alerts on an emitted trade signal.
func (n *Notifier) Signal(ctx context.Context, sig domain.TradeSignal) {
	title := fmt.Sprintf("Signal: %s %s %s", sig.Source, sig.Side, sig.InstID)
	msg := fmt.Sprintf("size %.2f quote, expected cost %.2f USD\n%s",
		sig.SizeQuote, sig.ExpectedCost, sig.Reason)
	n.notify(ctx, EventSignal, title, msg)
}

// ImpactWarning alerts when a simulated order's market impact crosses
// the warning threshold.
func (n *Notifier) ImpactWarning(ctx context.Context, symbol string, impactPct, sizeQuote float64) {
	title := "High market impact: " + symbol
	msg := fmt.Sprintf("estimated impact %.2f%% for %.2f quote notional", impactPct, sizeQuote)
	n.notify(ctx, EventImpactWarning, title, msg)
}

// SweepComplete alerts on a finished archive sweep.
func (n *Notifier) SweepComplete(ctx context.Context, archived, deleted int64, cutoff time.Time) {
	title := "Archive sweep complete"
	msg := fmt.Sprintf("archived %d records, deleted %d rows older than %s",
		archived, deleted, cutoff.Format(time.RFC3339))
	n.notify(ctx, EventArchiveSweep, title, msg)
}

// Error alerts on an operational failure that needs attention.
func (n *Notifier) Error(ctx context.Context, title string, err error) {
	n.notify(ctx, EventError, title, err.Error())
}

// notify applies the event filter and fans the alert out to every
// sender. A single sender failure does not block the others.
func (n *Notifier) notify(ctx context.Context, event, title, message string) {
	if !n.Enabled() {
		return
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return
	}

	alert := Alert{Event: event, Title: title, Body: message, At: time.Now().UTC()}
	for _, s := range n.senders {
		if err := s.Send(ctx, alert); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
}
