package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderBookSnapshot is a point-in-time view of both sides of a book.
// Bids are sorted descending by price, asks ascending. The simulation
// engine treats a snapshot as immutable input; anything that needs to
// modify a book works on a Clone.
type OrderBookSnapshot struct {
	InstID    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// BestBid returns the highest bid price, or 0 when the side is empty.
func (s OrderBookSnapshot) BestBid() float64 {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 when the side is empty.
func (s OrderBookSnapshot) BestAsk() float64 {
	if len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}

// MidPrice returns the midpoint of the best bid and ask.
func (s OrderBookSnapshot) MidPrice() float64 {
	return (s.BestBid() + s.BestAsk()) / 2
}

// SpreadBps returns the bid/ask spread in basis points of the mid price,
// or 0 when either side is empty or prices are degenerate.
func (s OrderBookSnapshot) SpreadBps() float64 {
	bid, ask := s.BestBid(), s.BestAsk()
	if bid <= 0 || ask <= 0 || ask <= bid {
		return 0
	}
	mid := (bid + ask) / 2
	return (ask - bid) / mid * 10000
}

// Clone returns a deep copy of the snapshot. Level slices are copied so
// the caller's book is never aliased.
func (s OrderBookSnapshot) Clone() OrderBookSnapshot {
	out := s
	out.Bids = make([]PriceLevel, len(s.Bids))
	copy(out.Bids, s.Bids)
	out.Asks = make([]PriceLevel, len(s.Asks))
	copy(out.Asks, s.Asks)
	return out
}

// BookUpdateAction distinguishes full snapshots from incremental deltas
// on the feed channel.
type BookUpdateAction string

const (
	BookActionSnapshot BookUpdateAction = "snapshot"
	BookActionUpdate   BookUpdateAction = "update"
)

// BookUpdate is one message from the market-data feed. For snapshot
// actions the level slices replace the book; for update actions a level
// with Size 0 removes the price from its side.
type BookUpdate struct {
	InstID    string
	Action    BookUpdateAction
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}
