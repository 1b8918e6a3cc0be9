package domain

import "time"

// TradeSignal is emitted by a strategy when an entry or exit looks
// attractive after costs.
type TradeSignal struct {
	ID            string    `json:"id"` // UUID for dedup
	Source        string    `json:"source"`
	InstID        string    `json:"inst_id"`
	Side          OrderSide `json:"side"`
	Price         float64   `json:"price"`
	SizeQuote     float64   `json:"size_quote"`
	ExpectedCost  float64   `json:"expected_cost_usd"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// ServiceStatus is a summary of the process's operational state.
type ServiceStatus struct {
	Mode          string   `json:"mode"`
	FeedConnected bool     `json:"feed_connected"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Instruments   []string `json:"instruments"`
	Strategies    []string `json:"strategies"`
}
