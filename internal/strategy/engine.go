package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/okquant/costsim/internal/domain"
)

const (
	bookChanBuffer = 64
	recentLimit    = 500
)

// Engine runs the active strategies concurrently and fans book updates
// out to them. Signals the strategies emit are remembered for status
// queries and forwarded to an optional signal channel.
type Engine struct {
	registry *Registry
	logger   *slog.Logger

	mu            sync.RWMutex
	activeNames   []string
	bookChs       map[string]chan domain.OrderBookSnapshot
	recentSignals []domain.TradeSignal
	signalCh      chan<- domain.TradeSignal
}

// NewEngine creates an Engine over the given registry.
func NewEngine(registry *Registry, logger *slog.Logger) *Engine {
	return &Engine{
		registry: registry,
		logger:   logger.With(slog.String("component", "strategy_engine")),
		bookChs:  make(map[string]chan domain.OrderBookSnapshot),
	}
}

// SetSignalChannel sets the channel signals are forwarded to. A full
// channel drops the signal rather than stalling the strategy.
func (e *Engine) SetSignalChannel(ch chan<- domain.TradeSignal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signalCh = ch
}

// SetActiveNames selects which registered strategies run. Unknown names
// are rejected before any state changes.
func (e *Engine) SetActiveNames(names []string) error {
	for _, n := range names {
		if _, err := e.registry.Get(n); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeNames = append([]string(nil), names...)
	return nil
}

// ActiveNames returns the currently selected strategy names.
func (e *Engine) ActiveNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.activeNames...)
}

// RecentSignals returns up to limit of the most recently emitted signals,
// newest first.
func (e *Engine) RecentSignals(limit int) []domain.TradeSignal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if limit <= 0 || limit > len(e.recentSignals) {
		limit = len(e.recentSignals)
	}
	out := make([]domain.TradeSignal, 0, limit)
	for i := len(e.recentSignals) - 1; i >= len(e.recentSignals)-limit; i-- {
		out = append(out, e.recentSignals[i])
	}
	return out
}

// HandleBookUpdate routes a book snapshot to every running strategy. When
// no strategy loop is running the update is dispatched inline, which is
// what tests and the one-shot simulate mode use.
func (e *Engine) HandleBookUpdate(ctx context.Context, snap domain.OrderBookSnapshot) error {
	e.mu.RLock()
	chs := make([]chan domain.OrderBookSnapshot, 0, len(e.bookChs))
	for _, ch := range e.bookChs {
		chs = append(chs, ch)
	}
	names := e.activeNames
	e.mu.RUnlock()

	if len(chs) > 0 {
		for _, ch := range chs {
			select {
			case ch <- snap:
			default:
				// Strategy is behind; skip this tick rather than block
				// the feed.
			}
		}
		return nil
	}

	for _, name := range names {
		s, err := e.registry.Get(name)
		if err != nil {
			return err
		}
		signals, err := s.OnBookUpdate(ctx, snap)
		if err != nil {
			return fmt.Errorf("strategy %s: %w", name, err)
		}
		e.emit(ctx, signals)
	}
	return nil
}

// RunAll starts the active strategies, each in its own goroutine, and
// blocks until ctx is cancelled or a strategy fails.
func (e *Engine) RunAll(ctx context.Context) error {
	names := e.ActiveNames()
	if len(names) == 0 {
		e.logger.Info("no active strategies configured")
		<-ctx.Done()
		return ctx.Err()
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		s, err := e.registry.Get(name)
		if err != nil {
			return err
		}
		ch := make(chan domain.OrderBookSnapshot, bookChanBuffer)
		e.mu.Lock()
		e.bookChs[name] = ch
		e.mu.Unlock()

		g.Go(func() error {
			defer func() {
				e.mu.Lock()
				delete(e.bookChs, s.Name())
				e.mu.Unlock()
			}()
			return e.runStrategy(ctx, s, ch)
		})
	}
	e.logger.Info("strategy engine started", slog.Any("strategies", names))
	return g.Wait()
}

func (e *Engine) runStrategy(ctx context.Context, s Strategy, books <-chan domain.OrderBookSnapshot) error {
	if err := s.Init(ctx); err != nil {
		return fmt.Errorf("strategy %s init: %w", s.Name(), err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			e.logger.Warn("strategy close failed",
				slog.String("strategy", s.Name()),
				slog.String("error", err.Error()))
		}
	}()
	e.logger.Info("strategy running", slog.String("strategy", s.Name()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-books:
			if !ok {
				return nil
			}
			signals, err := s.OnBookUpdate(ctx, snap)
			if err != nil {
				e.logger.Error("strategy book handler failed",
					slog.String("strategy", s.Name()),
					slog.String("inst_id", snap.InstID),
					slog.String("error", err.Error()))
				continue
			}
			e.emit(ctx, signals)
		}
	}
}

func (e *Engine) emit(ctx context.Context, signals []domain.TradeSignal) {
	for _, sig := range signals {
		e.logger.Info("trade signal",
			slog.String("source", sig.Source),
			slog.String("inst_id", sig.InstID),
			slog.String("side", string(sig.Side)),
			slog.Float64("price", sig.Price),
			slog.Float64("size_quote", sig.SizeQuote),
			slog.Float64("expected_cost_usd", sig.ExpectedCost),
			slog.String("reason", sig.Reason))

		e.mu.Lock()
		e.recentSignals = append(e.recentSignals, sig)
		if len(e.recentSignals) > recentLimit {
			e.recentSignals = e.recentSignals[len(e.recentSignals)-recentLimit:]
		}
		ch := e.signalCh
		e.mu.Unlock()

		if ch == nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case ch <- sig:
		default:
			e.logger.Warn("signal channel full, dropping signal",
				slog.String("id", sig.ID))
		}
	}
}
