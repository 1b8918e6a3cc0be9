// Command costsim is the entry point for the trade cost simulator. It
// loads configuration, validates it, wires dependencies, sets up signal
// handling, and starts the application in the configured mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/okquant/costsim/internal/app"
	"github.com/okquant/costsim/internal/config"
	"github.com/okquant/costsim/internal/domain"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	mode := flag.String("mode", "", "override configured mode (serve, simulate, archive)")

	// Order flags for simulate mode.
	symbol := flag.String("symbol", "", "instrument to simulate (defaults to the first configured instrument)")
	side := flag.String("side", "buy", "order side: buy or sell")
	orderType := flag.String("type", "market", "order type: market or limit")
	quantity := flag.Float64("quantity", 0, "order notional in quote currency")
	limitPrice := flag.Float64("limit-price", 0, "limit price (limit orders only)")
	latencyMs := flag.Int("latency-ms", 0, "simulated feed latency in milliseconds")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("cost simulator starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	// Create the application.
	application := app.New(cfg, logger)
	defer application.Close()

	if strings.EqualFold(cfg.Mode, "simulate") {
		if *quantity <= 0 {
			fmt.Fprintln(os.Stderr, "simulate mode requires -quantity > 0")
			os.Exit(2)
		}
		application.SetSimulateOrder(domain.OrderSpec{
			Symbol:        *symbol,
			Side:          domain.OrderSide(strings.ToLower(*side)),
			Type:          domain.OrderType(strings.ToLower(*orderType)),
			QuantityQuote: *quantity,
			LimitPrice:    *limitPrice,
			LatencyMs:     *latencyMs,
		})
	}

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run the application.
	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if err == context.Canceled {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("cost simulator stopped")
}
