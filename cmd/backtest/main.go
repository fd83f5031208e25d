package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Jetpackjules/Kalshi-Trader/backtest"
	"github.com/Jetpackjules/Kalshi-Trader/internal/infra"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	dataDir := flag.String("data", "", "override market data directory")
	flag.Parse()

	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		slog.Error("❌ Config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}
	// Backtests never place live orders or need a snapshot warm start.
	cfg.Trading.Mode = "sim"
	cfg.Engine.SnapshotIntervalSec = 0

	slog.SetDefault(infra.NewLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := backtest.NewRunner(cfg).Run(ctx)
	if err != nil {
		slog.Error("❌ Backtest failed", slog.Any("error", err))
		os.Exit(1)
	}
	result.Report()
}
