package domain

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType distinguishes market from limit orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// FeeProfile carries maker and taker rates in percent. Negative values
// denote rebates. VIPTier and Volume30d, when set, select tiered rates
// instead of the explicit pair: a named VIP tier wins over the 30-day
// volume tier, which wins over MakerPct/TakerPct.
type FeeProfile struct {
	MakerPct  float64 `json:"maker"`
	TakerPct  float64 `json:"taker"`
	VIPTier   string  `json:"vip_tier,omitempty"`
	Volume30d float64 `json:"volume_30d,omitempty"`
}

// OrderSpec describes one order to simulate. Quantity is denominated in
// the quote currency (e.g. USDT for BTC-USDT). LimitPrice is required
// for limit orders and ignored for market orders. LatencyMs, when
// positive, makes the engine simulate execution against a stale book.
// Fees overrides the engine's default fee profile when non-nil.
type OrderSpec struct {
	Symbol        string      `json:"symbol"`
	Side          OrderSide   `json:"side"`
	Type          OrderType   `json:"type"`
	QuantityQuote float64     `json:"quantity"`
	LimitPrice    float64     `json:"limit_price,omitempty"`
	LatencyMs     int         `json:"latency_ms,omitempty"`
	Fees          *FeeProfile `json:"fee_profile,omitempty"`
}
