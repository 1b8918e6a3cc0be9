package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okquant/costsim/internal/domain"
)

// bookReplaceLua atomically swaps a book's level hashes and metadata so
// readers never observe a half-written snapshot.
//
// KEYS[1] = bids hash (price -> size)
// KEYS[2] = asks hash (price -> size)
// KEYS[3] = meta hash (ts, bid, ask, mid)
// ARGV[1..4] = ts, best bid, best ask, mid
// ARGV[5] = number of bid levels
// ARGV[6..] = price, size pairs: bids first, then asks
const bookReplaceLua = `
redis.call('DEL', KEYS[1], KEYS[2], KEYS[3])
local nbids = tonumber(ARGV[5])
local i = 6
for n = 1, nbids do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
  i = i + 2
end
while i < #ARGV do
  redis.call('HSET', KEYS[2], ARGV[i], ARGV[i+1])
  i = i + 2
end
redis.call('HSET', KEYS[3], 'ts', ARGV[1], 'bid', ARGV[2], 'ask', ARGV[3], 'mid', ARGV[4])
return 1
`

// OrderbookCache implements domain.OrderbookCache on Redis.
//
// Key schema:
//
//	book:{instID}:bids - hash mapping price -> size
//	book:{instID}:asks - hash mapping price -> size
//	book:{instID}:meta - hash with "ts" (unix nanos), "bid", "ask", "mid"
type OrderbookCache struct {
	rdb         *redis.Client
	bookReplace *redis.Script
}

// NewOrderbookCache creates an OrderbookCache backed by the given Client.
func NewOrderbookCache(c *Client) *OrderbookCache {
	return &OrderbookCache{
		rdb:         c.Underlying(),
		bookReplace: redis.NewScript(bookReplaceLua),
	}
}

var _ domain.OrderbookCache = (*OrderbookCache)(nil)

func bookBidsKey(instID string) string { return "book:" + instID + ":bids" }
func bookAsksKey(instID string) string { return "book:" + instID + ":asks" }
func bookMetaKey(instID string) string { return "book:" + instID + ":meta" }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SetSnapshot atomically replaces the cached book for an instrument.
func (oc *OrderbookCache) SetSnapshot(ctx context.Context, instID string, snap domain.OrderBookSnapshot) error {
	keys := []string{bookBidsKey(instID), bookAsksKey(instID), bookMetaKey(instID)}

	args := make([]interface{}, 0, 5+2*(len(snap.Bids)+len(snap.Asks)))
	args = append(args,
		strconv.FormatInt(snap.Timestamp.UnixNano(), 10),
		formatFloat(snap.BestBid()),
		formatFloat(snap.BestAsk()),
		formatFloat(snap.MidPrice()),
		strconv.Itoa(len(snap.Bids)),
	)
	for _, lvl := range snap.Bids {
		args = append(args, formatFloat(lvl.Price), formatFloat(lvl.Size))
	}
	for _, lvl := range snap.Asks {
		args = append(args, formatFloat(lvl.Price), formatFloat(lvl.Size))
	}

	if err := oc.bookReplace.Run(ctx, oc.rdb, keys, args...).Err(); err != nil {
		return fmt.Errorf("redis: set book snapshot %s: %w", instID, err)
	}
	return nil
}

// GetSnapshot reconstructs a full OrderBookSnapshot from Redis. It
// returns domain.ErrNotFound when no book exists for the instrument.
func (oc *OrderbookCache) GetSnapshot(ctx context.Context, instID string) (domain.OrderBookSnapshot, error) {
	pipe := oc.rdb.Pipeline()
	bidsCmd := pipe.HGetAll(ctx, bookBidsKey(instID))
	asksCmd := pipe.HGetAll(ctx, bookAsksKey(instID))
	metaCmd := pipe.HGetAll(ctx, bookMetaKey(instID))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: get book snapshot %s: %w", instID, err)
	}

	meta, _ := metaCmd.Result()
	if len(meta) == 0 {
		return domain.OrderBookSnapshot{}, domain.ErrNotFound
	}

	snap := domain.OrderBookSnapshot{InstID: instID}
	if tsStr, ok := meta["ts"]; ok {
		if nanos, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			snap.Timestamp = time.Unix(0, nanos)
		}
	}

	bids, _ := bidsCmd.Result()
	asks, _ := asksCmd.Result()
	snap.Bids = parseSide(bids, true)
	snap.Asks = parseSide(asks, false)
	return snap, nil
}

// parseSide converts a price->size hash into sorted levels, best first.
func parseSide(raw map[string]string, descending bool) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for priceStr, sizeStr := range raw {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil || price <= 0 {
			continue
		}
		size, err := strconv.ParseFloat(sizeStr, 64)
		if err != nil || size < 0 {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price > levels[j].Price
		}
		return levels[i].Price < levels[j].Price
	})
	return levels
}

// GetBBO retrieves the best bid and ask from the metadata hash. It
// returns domain.ErrNotFound when no book exists.
func (oc *OrderbookCache) GetBBO(ctx context.Context, instID string) (bestBid, bestAsk float64, err error) {
	vals, err := oc.rdb.HGetAll(ctx, bookMetaKey(instID)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: get bbo %s: %w", instID, err)
	}
	if len(vals) == 0 {
		return 0, 0, domain.ErrNotFound
	}
	if bidStr, ok := vals["bid"]; ok {
		bestBid, _ = strconv.ParseFloat(bidStr, 64)
	}
	if askStr, ok := vals["ask"]; ok {
		bestAsk, _ = strconv.ParseFloat(askStr, 64)
	}
	return bestBid, bestAsk, nil
}
