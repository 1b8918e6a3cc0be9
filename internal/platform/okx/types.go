package okx

import (
	"strconv"
	"time"

	"github.com/okquant/costsim/internal/domain"
)

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSCommand is the JSON payload sent to the public WebSocket to
// subscribe/unsubscribe.
type WSCommand struct {
	Op   string            `json:"op"` // "subscribe" or "unsubscribe"
	Args []SubscriptionArg `json:"args"`
}

// SubscriptionArg identifies one channel subscription.
type SubscriptionArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// WSEnvelope is the outer shape of every frame from the public WebSocket:
// either an event acknowledgement or a data push.
type WSEnvelope struct {
	Event  string          `json:"event,omitempty"` // "subscribe", "unsubscribe", "error"
	Code   string          `json:"code,omitempty"`
	Msg    string          `json:"msg,omitempty"`
	Arg    SubscriptionArg `json:"arg,omitempty"`
	Action string          `json:"action,omitempty"` // "snapshot" or "update" for books
}

// BookMessage is a push on the "books" channel.
type BookMessage struct {
	Arg    SubscriptionArg `json:"arg"`
	Action string          `json:"action"`
	Data   []BookData      `json:"data"`
}

// BookData carries one book snapshot or delta. Levels are arrays of
// strings: [price, size, liquidated orders, order count]; only the first
// two matter here. TS is a millisecond epoch string.
type BookData struct {
	Asks     [][]string `json:"asks"`
	Bids     [][]string `json:"bids"`
	TS       string     `json:"ts"`
	Checksum int32      `json:"checksum"`
}

// --------------------------------------------------------------------------
// Conversion helpers: wire types -> domain types
// --------------------------------------------------------------------------

// ToDomainUpdates converts a BookMessage into domain book updates, one
// per data entry. Levels that fail to parse are dropped.
func (m *BookMessage) ToDomainUpdates() []domain.BookUpdate {
	action := domain.BookActionUpdate
	if m.Action == "snapshot" {
		action = domain.BookActionSnapshot
	}

	updates := make([]domain.BookUpdate, 0, len(m.Data))
	for _, d := range m.Data {
		upd := domain.BookUpdate{
			InstID:    m.Arg.InstID,
			Action:    action,
			Bids:      parseLevels(d.Bids),
			Asks:      parseLevels(d.Asks),
			Timestamp: parseMillis(d.TS),
		}
		updates = append(updates, upd)
	}
	return updates
}

// parseLevels converts raw [price, size, ...] string arrays to price
// levels. A size of "0" is kept: it marks level removal in deltas.
func parseLevels(raw [][]string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			continue
		}
		price, err := strconv.ParseFloat(entry[0], 64)
		if err != nil || price <= 0 {
			continue
		}
		size, err := strconv.ParseFloat(entry[1], 64)
		if err != nil || size < 0 {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	return levels
}

// parseMillis converts a millisecond epoch string, falling back to now.
func parseMillis(ts string) time.Time {
	if ms, err := strconv.ParseInt(ts, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	return time.Now()
}
