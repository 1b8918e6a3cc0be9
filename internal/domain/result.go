package domain

import "time"

// ExecutionType classifies how a simulated order executed.
type ExecutionType string

const (
	ExecutionTaker   ExecutionType = "taker"
	ExecutionMaker   ExecutionType = "maker"
	ExecutionPartial ExecutionType = "partial"
	ExecutionFail    ExecutionType = "fail"
)

// ExecutionResult is the outcome of one simulation call. Quantities and
// prices are presentation-rounded (base to 8 decimals, quote amounts,
// prices and percentages to 2). A result is constructed once and never
// mutated afterwards.
type ExecutionResult struct {
	ExecutedBase  float64       `json:"executed_quantity_base"`
	ExecutedQuote float64       `json:"executed_quantity_quote"`
	AveragePrice  float64       `json:"average_price"`
	SlippagePct   float64       `json:"slippage_pct"`
	ImpactPct     float64       `json:"market_impact_pct"`
	FeePaid       float64       `json:"fee_paid"`
	Type          ExecutionType `json:"execution_type"`
	Warnings      []string      `json:"warnings"`
}

// CostEstimate is the pre-trade cost breakdown produced without walking
// a full fill: expected costs for an order of the given notional against
// the current book.
type CostEstimate struct {
	Symbol        string  `json:"symbol"`
	MidPrice      float64 `json:"mid_price"`
	ExecutedPrice float64 `json:"executed_price"`
	NetPrice      float64 `json:"net_price"`
	SlippagePct   float64 `json:"slippage_pct"`
	ImpactPct     float64 `json:"market_impact_pct"`
	FeePct        float64 `json:"fee_pct"`
	FeeUSD        float64 `json:"fee_usd"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
	TakerProb     float64 `json:"taker_probability"`
}

// SimulationRecord is a persisted simulation: the order, its result, and
// the top-of-book context it ran against.
type SimulationRecord struct {
	ID        string          `json:"id"`
	Order     OrderSpec       `json:"order"`
	Result    ExecutionResult `json:"result"`
	BestBid   float64         `json:"best_bid"`
	BestAsk   float64         `json:"best_ask"`
	MidPrice  float64         `json:"mid_price"`
	CreatedAt time.Time       `json:"created_at"`
}
