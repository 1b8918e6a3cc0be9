package domain

import (
	"context"
	"time"
)

// OrderbookCache stores live orderbook state so other processes (and the
// HTTP API) can read the book the feed maintains.
type OrderbookCache interface {
	SetSnapshot(ctx context.Context, instID string, snap OrderBookSnapshot) error
	GetSnapshot(ctx context.Context, instID string) (OrderBookSnapshot, error)
	GetBBO(ctx context.Context, instID string) (bestBid, bestAsk float64, err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams for simulation results
// and strategy signals.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// LockManager provides distributed locks so only one process runs an
// exclusive job (such as an archive sweep) at a time. Acquire returns
// ErrLockHeld when another holder owns the lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter enforces a sliding-window request limit per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
