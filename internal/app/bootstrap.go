package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Jetpackjules/Kalshi-Trader/internal/engine"
	"github.com/Jetpackjules/Kalshi-Trader/internal/execution"
	"github.com/Jetpackjules/Kalshi-Trader/internal/infra"
	"github.com/Jetpackjules/Kalshi-Trader/internal/infra/kalshi"
	"github.com/Jetpackjules/Kalshi-Trader/internal/ledger"
	"github.com/Jetpackjules/Kalshi-Trader/internal/storage"
	"github.com/Jetpackjules/Kalshi-Trader/internal/strategy"
	"github.com/Jetpackjules/Kalshi-Trader/internal/ticks"
)

// Bootstrap wires the trading engine together from configuration: config
// file, logger, warm-start snapshot, ledger, strategy, tick source,
// execution adapter, trade log.
type Bootstrap struct {
	Config   *infra.Config
	Ledger   *ledger.Ledger
	Loop     *engine.EngineLoop
	TradeLog *storage.TradeLog

	feed        *infra.BaseWSWorker
	liveAdapter *execution.LiveAdapter
}

// NewBootstrap creates an empty bootstrap.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and builds the full engine stack.
func (b *Bootstrap) Initialize(configPath string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("🚀 Bootstrapping", slog.String("app", cfg.App.Name), slog.String("mode", cfg.Trading.Mode))

	limits := ledger.Limits{
		MaxTradeNotional: cfg.Limits.MaxTradeNotionalCents,
		MaxDailySpend:    cfg.Limits.MaxDailySpendCents,
		MaxInventory:     cfg.Limits.MaxInventory,
		AllowHedged:      cfg.Limits.AllowHedged,
	}
	if err := limits.Validate(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}

	strat, err := strategy.New(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	recCfg := engine.ReconcilerConfig{
		PriceTolerance:     cfg.Engine.PriceToleranceCents,
		QtyTolerance:       cfg.Engine.QtyTolerance,
		MinRequoteInterval: time.Duration(cfg.Engine.MinRequoteIntervalSec) * time.Second,
		MaxOrderAge:        time.Duration(cfg.Engine.MaxOrderAgeSec) * time.Second,
	}
	if err := recCfg.Validate(); err != nil {
		return fmt.Errorf("reconciler: %w", err)
	}

	snapMgr := storage.NewSnapshotManager(cfg.Data.SnapshotDir)
	snap, err := snapMgr.LoadLatest()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	var led *ledger.Ledger
	var resumeFrom time.Time
	if snap != nil {
		led = ledger.Restore(snap.Ledger, limits)
		resumeFrom = snap.LastTick
		slog.Info("warm start",
			slog.Time("last_tick", snap.LastTick),
			slog.Int64("cash", led.Cash()),
			slog.Int("open_orders", len(snap.OpenOrders)))
	} else {
		led = ledger.New(cfg.Limits.StartingCashCents, limits)
		slog.Info("cold start", slog.Int64("cash", led.Cash()))
	}

	adapter, err := execution.New(cfg)
	if err != nil {
		return err
	}
	if snap != nil && len(snap.OpenOrders) > 0 {
		if r, ok := adapter.(execution.Restorer); ok {
			r.Restore(snap.OpenOrders)
		}
	}
	if live, ok := adapter.(*execution.LiveAdapter); ok {
		b.liveAdapter = live
	}

	source, err := b.buildSource(cfg)
	if err != nil {
		return err
	}

	tradeLog, err := storage.NewTradeLog(cfg.Data.TradeLog)
	if err != nil {
		return fmt.Errorf("trade log: %w", err)
	}
	b.TradeLog = tradeLog

	b.Ledger = led
	b.Loop = engine.NewEngineLoop(engine.LoopConfig{
		Source:           source,
		Strategy:         strat,
		Ledger:           led,
		Reconciler:       engine.NewReconciler(recCfg),
		Adapter:          adapter,
		TradeLog:         tradeLog,
		Snapshots:        snapMgr,
		SnapshotInterval: time.Duration(cfg.Engine.SnapshotIntervalSec) * time.Second,
		ResumeFrom:       resumeFrom,
	})
	return nil
}

// buildSource picks historical replay for sim mode and a polling live
// source (with websocket cache when configured) for live mode.
func (b *Bootstrap) buildSource(cfg *infra.Config) (ticks.Source, error) {
	if strings.ToLower(cfg.Trading.Mode) != "live" {
		return ticks.NewHistoricalSource(cfg.Data.Dir)
	}

	signer, err := kalshi.NewSigner(cfg.API.Kalshi.AccessKey, cfg.API.Kalshi.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("kalshi signer: %w", err)
	}
	client := kalshi.NewClient(cfg.API.Kalshi.RestURL, signer)

	var feedCache ticks.FeedCache
	if cfg.API.Kalshi.WSURL != "" {
		feed := kalshi.NewTickerFeed(cfg.API.Kalshi.WSURL, signer, cfg.API.Kalshi.Tickers)
		b.feed = infra.NewBaseWSWorker(feed)
		feedCache = feed
	}

	return ticks.NewLiveSource(client, feedCache, cfg.API.Kalshi.Tickers, cfg.PollInterval()), nil
}

// Run starts background workers, drives the engine loop until the context
// is canceled or the source is exhausted, then flushes state.
func (b *Bootstrap) Run(ctx context.Context) error {
	if b.feed != nil {
		b.feed.Start(ctx)
		defer b.feed.Stop()
	}
	if b.liveAdapter != nil {
		b.liveAdapter.Start(ctx)
		defer b.liveAdapter.Stop()
	}

	err := b.Loop.Run(ctx)

	if closeErr := b.TradeLog.Close(); closeErr != nil {
		slog.Warn("trade log close failed", slog.Any("error", closeErr))
	}
	return err
}
