package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/okquant/costsim/internal/domain"
	"github.com/okquant/costsim/internal/platform/okx"
)

// UpdateHandler is called for each book update delivered by the feed.
type UpdateHandler func(ctx context.Context, upd domain.BookUpdate)

// OKXFeed connects to the OKX public WebSocket, subscribes to the books
// channel for the configured instruments, and invokes the handler on
// each update. It reconnects on disconnect.
type OKXFeed struct {
	wsURL     string
	instIDs   []string
	onUpdate  UpdateHandler
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewOKXFeed creates a feed for the given instrument IDs.
func NewOKXFeed(wsURL string, instIDs []string, onUpdate UpdateHandler, logger *slog.Logger) *OKXFeed {
	return &OKXFeed{
		wsURL:    wsURL,
		instIDs:  instIDs,
		onUpdate: onUpdate,
		logger:   logger.With(slog.String("component", "okx_feed")),
		done:     make(chan struct{}),
	}
}

// Run connects, subscribes, and runs until ctx is cancelled. Reconnects
// with backoff on disconnect.
func (f *OKXFeed) Run(ctx context.Context) error {
	if len(f.instIDs) == 0 {
		f.logger.Info("no instruments to subscribe, exiting")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}
		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("okx ws disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *OKXFeed) runConnection(ctx context.Context) error {
	client := okx.NewWSClient(f.wsURL)
	defer client.Close()

	client.OnBookUpdate(func(upd domain.BookUpdate) {
		if f.onUpdate != nil {
			f.onUpdate(context.Background(), upd)
		}
	})

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(connCtx)
	cancel()
	if err != nil {
		return err
	}
	if err := client.SubscribeBooks(ctx, f.instIDs); err != nil {
		return err
	}
	f.logger.Info("okx ws subscribed", slog.Int("instruments", len(f.instIDs)))

	<-ctx.Done()
	return ctx.Err()
}

// Close stops the feed.
func (f *OKXFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
