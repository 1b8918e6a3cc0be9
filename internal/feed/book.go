package feed

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/okquant/costsim/internal/domain"
)

// Keeper maintains the current two-sided book per instrument from feed
// snapshots and deltas, and hands out consistent point-in-time copies.
// It is the only stateful, concurrently-mutated piece between the feed
// and the simulation engine; the engine itself only ever sees copies.
type Keeper struct {
	mu     sync.RWMutex
	books  map[string]*bookState
	depth  int
	logger *slog.Logger
}

// bookState holds one instrument's book as price-keyed maps, which makes
// delta application O(1); sorting happens on snapshot reads.
type bookState struct {
	bids    map[float64]float64
	asks    map[float64]float64
	updated time.Time
}

// NewKeeper creates a Keeper that trims snapshots to at most depth
// levels per side.
func NewKeeper(depth int, logger *slog.Logger) *Keeper {
	return &Keeper{
		books:  make(map[string]*bookState),
		depth:  depth,
		logger: logger.With(slog.String("component", "book_keeper")),
	}
}

// Apply folds one feed update into the book. Snapshot actions replace
// the instrument's book wholesale; update actions set levels, removing
// any with size 0.
func (k *Keeper) Apply(upd domain.BookUpdate) {
	k.mu.Lock()
	defer k.mu.Unlock()

	state, ok := k.books[upd.InstID]
	if !ok || upd.Action == domain.BookActionSnapshot {
		state = &bookState{
			bids: make(map[float64]float64),
			asks: make(map[float64]float64),
		}
		k.books[upd.InstID] = state
	}

	applyLevels(state.bids, upd.Bids)
	applyLevels(state.asks, upd.Asks)
	state.updated = upd.Timestamp
	if state.updated.IsZero() {
		state.updated = time.Now()
	}
}

// applyLevels merges levels into a side map; size 0 removes the price.
func applyLevels(side map[float64]float64, levels []domain.PriceLevel) {
	for _, lvl := range levels {
		if lvl.Size == 0 {
			delete(side, lvl.Price)
			continue
		}
		side[lvl.Price] = lvl.Size
	}
}

// Snapshot returns a sorted, depth-trimmed copy of the instrument's
// book: bids descending, asks ascending. Unknown instruments report
// ErrNoBook.
func (k *Keeper) Snapshot(instID string) (domain.OrderBookSnapshot, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	state, ok := k.books[instID]
	if !ok {
		return domain.OrderBookSnapshot{}, fmt.Errorf("feed: %s: %w", instID, domain.ErrNoBook)
	}

	snap := domain.OrderBookSnapshot{
		InstID:    instID,
		Bids:      sortedLevels(state.bids, true, k.depth),
		Asks:      sortedLevels(state.asks, false, k.depth),
		Timestamp: state.updated,
	}
	return snap, nil
}

// Instruments returns the IDs with book state, in sorted order.
func (k *Keeper) Instruments() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	ids := make([]string, 0, len(k.books))
	for id := range k.books {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sortedLevels converts a side map into an ordered, trimmed slice.
func sortedLevels(side map[float64]float64, descending bool, depth int) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(side))
	for price, size := range side {
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price > levels[j].Price
		}
		return levels[i].Price < levels[j].Price
	})
	if depth > 0 && len(levels) > depth {
		levels = levels[:depth]
	}
	return levels
}
