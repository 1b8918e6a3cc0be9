package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okquant/costsim/internal/domain"
	"github.com/okquant/costsim/internal/feed"
	"github.com/okquant/costsim/internal/server"
	"github.com/okquant/costsim/internal/server/handler"
	"github.com/okquant/costsim/internal/server/ws"
	"github.com/okquant/costsim/internal/sim"
	"github.com/okquant/costsim/internal/strategy"
)

// SignalsChannel is the signal-bus channel carrying strategy signals.
const SignalsChannel = "signals"

// archiveLockKey serializes archive sweeps across processes.
const archiveLockKey = "archive:sweep"

// simStack groups the simulation models built from config.
type simStack struct {
	impact    *sim.ImpactModel
	fees      *sim.FeeModel
	engine    *sim.Engine
	estimator *sim.Estimator
}

func (a *App) buildSimStack() simStack {
	impact := sim.NewImpactModel(a.logger)
	fees := sim.NewFeeModel(a.logger)

	var slippage sim.SlippageEstimator
	switch a.cfg.Sim.SlippageStrategy {
	case "parametric":
		slippage = sim.NewParametricSlippage()
	default:
		slippage = sim.NewBookWalkSlippage()
	}

	return simStack{
		impact:    impact,
		fees:      fees,
		engine:    sim.NewEngine(impact, fees, a.logger),
		estimator: sim.NewEstimator(slippage, impact, fees, a.logger),
	}
}

// defaultFeeProfile returns the configured fee profile, or nil when the
// config leaves both rates at zero so the model defaults apply.
func (a *App) defaultFeeProfile() *domain.FeeProfile {
	if a.cfg.Sim.MakerFeePct == 0 && a.cfg.Sim.TakerFeePct == 0 {
		return nil
	}
	return &domain.FeeProfile{
		MakerPct: a.cfg.Sim.MakerFeePct,
		TakerPct: a.cfg.Sim.TakerFeePct,
	}
}

// bookSource resolves the freshest available snapshot for an instrument:
// the in-process keeper first, then the shared cache, then the built-in
// sample book when offline use is enabled.
type bookSource struct {
	keeper    *feed.Keeper          // optional
	cache     domain.OrderbookCache // optional
	useSample bool
}

func (b *bookSource) GetSnapshot(ctx context.Context, instID string) (domain.OrderBookSnapshot, error) {
	if b.keeper != nil {
		if snap, err := b.keeper.Snapshot(instID); err == nil {
			return snap, nil
		}
	}
	if b.cache != nil {
		if snap, err := b.cache.GetSnapshot(ctx, instID); err == nil {
			return snap, nil
		}
	}
	if b.useSample {
		return feed.SampleBook(instID), nil
	}
	return domain.OrderBookSnapshot{}, domain.ErrNoBook
}

// ServeMode runs the full stack: the websocket feed, the strategy
// engine, the archive loop when enabled, and the HTTP + WebSocket API.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	startedAt := time.Now().UTC()

	stack := a.buildSimStack()

	// Book keeper and feed.
	keeper := feed.NewKeeper(a.cfg.Feed.Depth, a.logger)
	if a.cfg.Feed.WsHost != "" {
		feeder := feed.NewFeeder(keeper, deps.BookCache, deps.SignalBus, a.logger)
		wsFeed := feed.NewOKXFeed(a.cfg.Feed.WsHost, a.cfg.Feed.Instruments, feeder.HandleUpdate, a.logger)
		g.Go(func() error {
			defer wsFeed.Close()
			return wsFeed.Run(ctx)
		})
	}

	books := &bookSource{keeper: keeper, cache: deps.BookCache, useSample: a.cfg.Feed.UseSample}

	// Strategy engine.
	engine := strategy.NewEngine(a.newStrategyRegistry(stack.estimator), a.logger)
	signalCh := make(chan domain.TradeSignal, 32)
	engine.SetSignalChannel(signalCh)

	active := a.cfg.Strategy.Active
	if len(active) == 0 {
		active = a.enabledStrategyNames()
	}
	if len(active) > 0 {
		if err := engine.SetActiveNames(active); err != nil {
			a.logger.WarnContext(ctx, "failed to set active strategies, engine will idle",
				slog.Any("active", active),
				slog.String("error", err.Error()),
			)
		} else {
			g.Go(func() error {
				return engine.RunAll(ctx)
			})
		}
	}

	// Engine feeder: subscribe to the books channel and feed the engine,
	// so strategies see updates published by any process.
	if deps.SignalBus != nil {
		engineFeeder := feed.NewEngineFeeder(deps.SignalBus, deps.BookCache, engine, a.logger)
		g.Go(func() error {
			return engineFeeder.Run(ctx)
		})
	}

	// Signal pump: strategy signals flow out to the bus for websocket
	// clients, to the durable stream, and to operator alert channels.
	g.Go(func() error {
		return a.pumpSignals(ctx, signalCh, deps)
	})

	// Periodic archival when enabled.
	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps, books)
		})
	}

	// HTTP server.
	if a.cfg.Server.Enabled {
		status := func() domain.ServiceStatus {
			return domain.ServiceStatus{
				Mode:          "serve",
				FeedConnected: len(keeper.Instruments()) > 0,
				UptimeSeconds: int64(time.Since(startedAt).Seconds()),
				Instruments:   a.cfg.Feed.Instruments,
				Strategies:    engine.ActiveNames(),
			}
		}
		a.startHTTPServer(ctx, g, deps, stack, books, status, engine, startedAt)
	}

	return g.Wait()
}

// SimulateMode runs one simulation against the cached or sample book,
// prints the record to stdout, and exits. Postgres persistence is
// best-effort when reachable.
func (a *App) SimulateMode(ctx context.Context, deps *Dependencies) error {
	if a.simOrder == nil {
		return fmt.Errorf("simulate mode: no order supplied")
	}
	order := *a.simOrder
	if order.Symbol == "" && len(a.cfg.Feed.Instruments) > 0 {
		order.Symbol = a.cfg.Feed.Instruments[0]
	}
	if order.LatencyMs == 0 && a.cfg.Sim.DefaultLatencyMs > 0 {
		order.LatencyMs = a.cfg.Sim.DefaultLatencyMs
	}
	if order.Fees == nil {
		order.Fees = a.defaultFeeProfile()
	}

	stack := a.buildSimStack()
	books := &bookSource{cache: deps.BookCache, useSample: a.cfg.Feed.UseSample}

	book, err := books.GetSnapshot(ctx, order.Symbol)
	if err != nil {
		return fmt.Errorf("simulate mode: %s: %w", order.Symbol, err)
	}

	result := stack.engine.Simulate(order, book)
	// Partial fills and rejected orders carry warnings too; only alert
	// when the impact itself crossed the threshold.
	if result.ImpactPct > sim.ImpactWarnPct {
		deps.Notifier.ImpactWarning(ctx, order.Symbol, result.ImpactPct, order.QuantityQuote)
	}
	rec := domain.SimulationRecord{
		ID:        uuid.NewString(),
		Order:     order,
		Result:    result,
		BestBid:   book.BestBid(),
		BestAsk:   book.BestAsk(),
		MidPrice:  book.MidPrice(),
		CreatedAt: time.Now().UTC(),
	}

	if deps.Results != nil {
		if err := deps.Results.Insert(ctx, rec); err != nil {
			a.logger.WarnContext(ctx, "persist simulation failed",
				slog.String("id", rec.ID),
				slog.String("error", err.Error()))
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// ArchiveMode runs the archive sweep on a fixed interval until the
// context is cancelled. A distributed lock keeps concurrent deployments
// from sweeping twice.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: object storage is not wired")
	}
	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Duration("interval", a.cfg.Archive.Interval.Duration),
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)

	books := &bookSource{cache: deps.BookCache, useSample: false}
	return a.runArchiveLoop(ctx, deps, books)
}

// pumpSignals drains the strategy engine's signal channel onto the bus
// and the notifier.
func (a *App) pumpSignals(ctx context.Context, signalCh <-chan domain.TradeSignal, deps *Dependencies) error {
	bus := deps.SignalBus
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signalCh:
			if !ok {
				return nil
			}
			a.logger.InfoContext(ctx, "trade signal",
				slog.String("signal_id", sig.ID),
				slog.String("source", sig.Source),
				slog.String("inst_id", sig.InstID),
				slog.String("side", string(sig.Side)),
			)
			deps.Notifier.Signal(ctx, sig)
			if bus == nil {
				continue
			}
			payload, err := json.Marshal(sig)
			if err != nil {
				continue
			}
			if err := bus.Publish(ctx, SignalsChannel, payload); err != nil {
				a.logger.Debug("signal publish failed", slog.String("error", err.Error()))
			}
			if err := bus.StreamAppend(ctx, SignalsChannel, payload); err != nil {
				a.logger.Debug("signal stream append failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runArchiveLoop sweeps immediately, then on every interval tick.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies, books *bookSource) error {
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	a.runArchiveSweep(ctx, deps, books, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.runArchiveSweep(ctx, deps, books, interval)
		}
	}
}

// runArchiveSweep snapshots current books to cold storage, archives aged
// simulation records, and deletes the archived rows. Errors are logged,
// not returned; the next tick retries.
func (a *App) runArchiveSweep(ctx context.Context, deps *Dependencies, books *bookSource, ttl time.Duration) {
	if deps.LockManager != nil {
		unlock, err := deps.LockManager.Acquire(ctx, archiveLockKey, ttl)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				a.logger.Debug("archive sweep skipped, lock held elsewhere")
			} else {
				a.logger.WarnContext(ctx, "archive lock acquire failed",
					slog.String("error", err.Error()))
			}
			return
		}
		defer unlock()
	}

	// Book snapshots.
	for _, instID := range a.cfg.Feed.Instruments {
		snap, err := books.GetSnapshot(ctx, instID)
		if err != nil {
			continue
		}
		if err := deps.Archiver.ArchiveSnapshot(ctx, snap); err != nil {
			a.logger.WarnContext(ctx, "snapshot archive failed",
				slog.String("inst_id", instID),
				slog.String("error", err.Error()))
		}
	}

	// Aged simulation records.
	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
	archived, err := deps.Archiver.ArchiveResults(ctx, cutoff)
	if err != nil {
		a.logger.ErrorContext(ctx, "result archive failed",
			slog.String("error", err.Error()))
		deps.Notifier.Error(ctx, "result archive failed", err)
		return
	}
	if archived == 0 {
		return
	}

	deleted, err := deps.Results.DeleteBefore(ctx, cutoff)
	if err != nil {
		a.logger.ErrorContext(ctx, "archived row cleanup failed",
			slog.String("error", err.Error()))
		return
	}
	a.logger.InfoContext(ctx, "archive sweep complete",
		slog.Int64("archived", archived),
		slog.Int64("deleted", deleted),
		slog.Time("cutoff", cutoff),
	)
	deps.Notifier.SweepComplete(ctx, archived, deleted, cutoff)
}

// startHTTPServer adds the API server and WebSocket hub goroutines to
// the given errgroup and shuts them down when the context is cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	stack simStack,
	books *bookSource,
	status func() domain.ServiceStatus,
	signals handler.SignalSource,
	startedAt time.Time,
) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: startedAt,
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.logger, startedAt),
		Simulate: handler.NewSimulateHandler(stack.engine, books, deps.Results, deps.SignalBus, a.logger).
			WithOrderDefaults(a.cfg.Sim.DefaultLatencyMs, a.defaultFeeProfile()),
		Estimate: handler.NewEstimateHandler(stack.estimator, books, a.logger),
		ADV:      handler.NewADVHandler(stack.impact, a.logger),
		Book:     handler.NewBookHandler(books, a.logger),
		Status:   handler.NewStatusHandler(status, signals, a.logger),
	}
	if deps.Results != nil {
		handlers.Results = handler.NewResultsHandler(deps.Results, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  time.Second,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// newStrategyRegistry builds the registry with every known strategy
// registered; SetActiveNames decides which actually run.
func (a *App) newStrategyRegistry(gate strategy.CostGate) *strategy.Registry {
	scfg := a.cfg.Strategy
	baseCfg := strategy.Config{
		SizeQuote:  scfg.SizeQuote,
		MaxCostPct: scfg.MaxCostPct,
	}
	window := scfg.WindowSize.Duration

	reg := strategy.NewRegistry()
	reg.Register(strategy.NewMeanReversion(baseCfg, strategy.MeanReversionParams{
		ZScoreEntry: scfg.MeanReversion.ZScoreEntry,
		MinHistory:  scfg.MeanReversion.MinHistory,
		Cooldown:    time.Duration(scfg.MeanReversion.CooldownSec) * time.Second,
	}, strategy.NewPriceTracker(window), gate, a.logger))
	reg.Register(strategy.NewMomentum(baseCfg, strategy.MomentumParams{
		MinMovePct: scfg.Momentum.MinMovePct,
		MinHistory: scfg.Momentum.MinHistory,
		Cooldown:   time.Duration(scfg.Momentum.CooldownSec) * time.Second,
	}, strategy.NewPriceTracker(window), gate, a.logger))
	return reg
}

// enabledStrategyNames derives the active list from per-strategy enable
// flags when strategy.active is not set explicitly.
func (a *App) enabledStrategyNames() []string {
	var names []string
	if a.cfg.Strategy.MeanReversion.Enabled {
		names = append(names, "mean_reversion")
	}
	if a.cfg.Strategy.Momentum.Enabled {
		names = append(names, "momentum")
	}
	return names
}
