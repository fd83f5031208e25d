package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
	"github.com/Jetpackjules/Kalshi-Trader/internal/engine"
	"github.com/Jetpackjules/Kalshi-Trader/internal/execution"
	"github.com/Jetpackjules/Kalshi-Trader/internal/infra"
	"github.com/Jetpackjules/Kalshi-Trader/internal/ledger"
	"github.com/Jetpackjules/Kalshi-Trader/internal/storage"
	"github.com/Jetpackjules/Kalshi-Trader/internal/strategy"
	"github.com/Jetpackjules/Kalshi-Trader/internal/ticks"
)

// Result summarizes one backtest run.
type Result struct {
	StartingCash domain.Cents
	FinalCash    domain.Cents
	FinalEquity  domain.Cents
	Fills        int64
	Inventory    map[string]int64
	Blocked      map[string]string
	Elapsed      time.Duration
}

// PnL is the mark-to-market profit over the run.
func (r Result) PnL() domain.Cents {
	return r.FinalEquity - r.StartingCash
}

// Runner replays historical market data files through the simulated
// adapter and the full engine loop, then reports equity.
type Runner struct {
	cfg *infra.Config
}

// NewRunner creates a runner for the given configuration. The trading
// mode in the config is ignored; backtests are always simulated.
func NewRunner(cfg *infra.Config) *Runner {
	return &Runner{cfg: cfg}
}

// Run replays every market data file under the data directory and
// returns the run summary.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.cfg

	limits := ledger.Limits{
		MaxTradeNotional: cfg.Limits.MaxTradeNotionalCents,
		MaxDailySpend:    cfg.Limits.MaxDailySpendCents,
		MaxInventory:     cfg.Limits.MaxInventory,
		AllowHedged:      cfg.Limits.AllowHedged,
	}
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("limits: %w", err)
	}
	led := ledger.New(cfg.Limits.StartingCashCents, limits)

	strat, err := strategy.New(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}

	recCfg := engine.ReconcilerConfig{
		PriceTolerance:     cfg.Engine.PriceToleranceCents,
		QtyTolerance:       cfg.Engine.QtyTolerance,
		MinRequoteInterval: time.Duration(cfg.Engine.MinRequoteIntervalSec) * time.Second,
		MaxOrderAge:        time.Duration(cfg.Engine.MaxOrderAgeSec) * time.Second,
	}
	if err := recCfg.Validate(); err != nil {
		return nil, fmt.Errorf("reconciler: %w", err)
	}

	source, err := ticks.NewHistoricalSource(cfg.Data.Dir)
	if err != nil {
		return nil, err
	}

	var tradeLog *storage.TradeLog
	loopCfg := engine.LoopConfig{
		Source:     source,
		Strategy:   strat,
		Ledger:     led,
		Reconciler: engine.NewReconciler(recCfg),
		Adapter:    execution.NewSimAdapter(),
	}
	if cfg.Data.TradeLog != "" {
		tradeLog, err = storage.NewTradeLog(cfg.Data.TradeLog)
		if err != nil {
			return nil, fmt.Errorf("trade log: %w", err)
		}
		defer tradeLog.Close()
		loopCfg.TradeLog = tradeLog
	}

	loop := engine.NewEngineLoop(loopCfg)

	start := time.Now()
	if err := loop.Run(ctx); err != nil {
		return nil, err
	}

	state := led.Snapshot()
	res := &Result{
		StartingCash: cfg.Limits.StartingCashCents,
		FinalCash:    state.Cash,
		FinalEquity:  led.Equity(loop.LastMids()),
		Inventory:    state.Inventory,
		Blocked:      loop.BlockedTickers(),
		Elapsed:      time.Since(start),
	}
	if tradeLog != nil {
		if n, err := tradeLog.TotalFills(ctx); err == nil {
			res.Fills = n
		}
	}
	return res, nil
}

// Report logs the run summary in cents and whole dollars.
func (r Result) Report() {
	slog.Info("📊 Backtest complete",
		slog.Duration("elapsed", r.Elapsed),
		slog.Int64("starting_cash", r.StartingCash),
		slog.Int64("final_cash", r.FinalCash),
		slog.Int64("final_equity", r.FinalEquity),
		slog.String("pnl", fmt.Sprintf("$%.2f", float64(r.PnL())/100)),
		slog.Int64("fills", r.Fills))

	tickers := make([]string, 0, len(r.Inventory))
	for t := range r.Inventory {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	for _, t := range tickers {
		if r.Inventory[t] != 0 {
			slog.Info("open position", slog.String("ticker", t), slog.Int64("contracts", r.Inventory[t]))
		}
	}
	for t, reason := range r.Blocked {
		slog.Warn("ticker was blocked", slog.String("ticker", t), slog.String("reason", reason))
	}
}
