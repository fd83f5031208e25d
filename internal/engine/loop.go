package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
	"github.com/Jetpackjules/Kalshi-Trader/internal/execution"
	"github.com/Jetpackjules/Kalshi-Trader/internal/ledger"
	"github.com/Jetpackjules/Kalshi-Trader/internal/storage"
	"github.com/Jetpackjules/Kalshi-Trader/internal/strategy"
	"github.com/Jetpackjules/Kalshi-Trader/internal/ticks"
)

// TradeLogger is the append-only sink for fills and actions.
type TradeLogger interface {
	AppendFill(ctx context.Context, f domain.Fill) error
	AppendAction(ctx context.Context, a domain.OrderAction, status domain.ActionStatus) error
}

// SnapshotStore persists engine state for warm starts.
type SnapshotStore interface {
	Save(snap *storage.EngineSnapshot) error
	Cleanup(keepCount int) error
}

// snapshotSubmitter is implemented by the simulator so crossing limits
// fill on the same tick they were placed.
type snapshotSubmitter interface {
	SubmitAgainst(ctx context.Context, action domain.OrderAction, snap domain.MarketSnapshot) domain.ActionResult
}

// openOrderLister is implemented by both adapters for snapshotting.
type openOrderLister interface {
	OpenOrders() []domain.LiveOrder
}

// LoopConfig wires an engine loop together. TradeLog and Snapshots are
// optional; everything else is required.
type LoopConfig struct {
	Source     ticks.Source
	Strategy   strategy.Strategy
	Ledger     *ledger.Ledger
	Reconciler *Reconciler
	Adapter    execution.Adapter

	TradeLog         TradeLogger
	Snapshots        SnapshotStore
	SnapshotInterval time.Duration
	SnapshotKeep     int

	// ResumeFrom makes a warm start skip batches at or before the last
	// snapshotted tick, so restored fills are never applied twice.
	ResumeFrom time.Time
}

// EngineLoop drives one synchronous evaluation pass per tick batch:
// adapter fills, settlement, strategy evaluation, reconciliation,
// submission, ledger update. It is single-threaded; no two ticks are ever
// reconciled concurrently against the same ledger. Identical inputs
// produce an identical action log regardless of adapter or source.
type EngineLoop struct {
	cfg LoopConfig

	blocked  map[string]string // ticker -> invariant violation reason
	lastMid  map[string]domain.Cents
	lastTick time.Time
	lastSnap time.Time
}

// NewEngineLoop builds a loop from its wiring.
func NewEngineLoop(cfg LoopConfig) *EngineLoop {
	if cfg.SnapshotKeep <= 0 {
		cfg.SnapshotKeep = 5
	}
	return &EngineLoop{
		cfg:     cfg,
		blocked: make(map[string]string),
		lastMid: make(map[string]domain.Cents),
	}
}

// BlockedTickers returns the tickers halted by an invariant violation,
// sorted, with reasons.
func (l *EngineLoop) BlockedTickers() map[string]string {
	out := make(map[string]string, len(l.blocked))
	for k, v := range l.blocked {
		out[k] = v
	}
	return out
}

// LastMids returns the last observed mid per ticker, for marking open
// positions after the source is exhausted.
func (l *EngineLoop) LastMids() map[string]domain.Cents {
	out := make(map[string]domain.Cents, len(l.lastMid))
	for k, v := range l.lastMid {
		out[k] = v
	}
	return out
}

// Run consumes the tick source until it is exhausted (historical) or the
// context is canceled (live). The current batch always completes before
// shutdown; a final snapshot is saved on the way out.
func (l *EngineLoop) Run(ctx context.Context) error {
	slog.Info("engine loop started",
		slog.String("strategy", l.cfg.Strategy.Name()),
		slog.Int64("cash", l.cfg.Ledger.Cash()))

	for {
		select {
		case <-ctx.Done():
			return l.finish("shutdown signal")
		default:
		}

		batch, err := l.cfg.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return l.finish("tick source exhausted")
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return l.finish("shutdown signal")
		}
		if err != nil {
			l.finish("terminal source error")
			return err
		}

		if !l.cfg.ResumeFrom.IsZero() && !batch.Time.After(l.cfg.ResumeFrom) {
			continue
		}

		l.processBatch(ctx, batch)

		if l.cfg.Snapshots != nil && l.cfg.SnapshotInterval > 0 &&
			batch.Time.Sub(l.lastSnap) >= l.cfg.SnapshotInterval {
			l.saveSnapshot()
			l.lastSnap = batch.Time
		}
	}
}

func (l *EngineLoop) finish(reason string) error {
	slog.Info("engine loop stopping", slog.String("reason", reason))
	l.saveSnapshot()
	return nil
}

func (l *EngineLoop) processBatch(ctx context.Context, batch ticks.Batch) {
	if l.cfg.Ledger.Roll(batch.Time) {
		slog.Info("daily equity mark",
			slog.String("day", domain.TradingDay(batch.Time)),
			slog.Int64("equity", l.cfg.Ledger.Equity(l.lastMid)))
	}
	l.lastTick = batch.Time

	for _, snap := range batch.Snapshots {
		l.processTicker(ctx, batch.Time, snap)
	}

	l.settleExpired(batch.Time)
}

// processTicker runs the full evaluate/reconcile/submit pass for one
// snapshot. Failures here affect only this ticker; the rest of the batch
// proceeds.
func (l *EngineLoop) processTicker(ctx context.Context, now time.Time, snap domain.MarketSnapshot) {
	ticker := snap.Ticker

	for _, fill := range l.cfg.Adapter.OnTick(ctx, snap) {
		l.applyFill(ctx, fill)
	}

	if mid := snap.Mid(); mid > 0 {
		l.lastMid[ticker] = mid
	}

	if _, bad := l.blocked[ticker]; bad {
		l.cancelResting(ctx, now, ticker)
		return
	}

	var desired []domain.OrderIntent
	if snap.Status == domain.StatusOpen && domain.MarketLive(ticker, now) {
		view := strategy.LedgerView{
			Inventory:       l.cfg.Ledger.Inventory(ticker),
			RemainingBudget: l.cfg.Ledger.RemainingBudget(),
			MaxInventory:    l.cfg.Ledger.Limits().MaxInventory,
		}
		desired = l.filterBudget(l.cfg.Strategy.Evaluate(snap, view))
	}

	actions := l.cfg.Reconciler.Reconcile(now, ticker, desired, l.cfg.Adapter.KnownOrders(ticker))
	for _, action := range actions {
		res := l.submit(ctx, action, snap)
		l.logAction(ctx, action, res)
		if res.Fill != nil {
			l.applyFill(ctx, *res.Fill)
		}
	}
}

// cancelResting pulls any orders still resting on a blocked ticker so they
// cannot fill while placement is halted.
func (l *EngineLoop) cancelResting(ctx context.Context, now time.Time, ticker string) {
	for _, o := range l.cfg.Adapter.KnownOrders(ticker) {
		action := domain.OrderAction{
			Type:    domain.ActionCancel,
			Ticker:  ticker,
			Side:    o.Side,
			Price:   o.Price,
			Qty:     o.Qty,
			OrderID: o.ID,
			Time:    now,
		}
		res := l.cfg.Adapter.Submit(ctx, action)
		l.logAction(ctx, action, res)
	}
}

// filterBudget drops intents the ledger cannot afford. The strategy sizes
// against its budget view already; this is the authoritative check.
func (l *EngineLoop) filterBudget(intents []domain.OrderIntent) []domain.OrderIntent {
	var kept []domain.OrderIntent
	for _, intent := range intents {
		if err := l.cfg.Ledger.CheckBudget(intent.Notional()); err != nil {
			slog.Debug("intent dropped by budget",
				slog.String("ticker", intent.Ticker),
				slog.Any("reason", err))
			continue
		}
		kept = append(kept, intent)
	}
	return kept
}

func (l *EngineLoop) submit(ctx context.Context, action domain.OrderAction, snap domain.MarketSnapshot) domain.ActionResult {
	if ss, ok := l.cfg.Adapter.(snapshotSubmitter); ok {
		return ss.SubmitAgainst(ctx, action, snap)
	}
	return l.cfg.Adapter.Submit(ctx, action)
}

func (l *EngineLoop) logAction(ctx context.Context, action domain.OrderAction, res domain.ActionResult) {
	logged := action
	if logged.OrderID == "" {
		logged.OrderID = res.OrderID
	}

	if res.Status == domain.ActionFailed {
		slog.Warn("action failed",
			slog.String("type", string(action.Type)),
			slog.String("ticker", action.Ticker),
			slog.String("side", string(action.Side)),
			slog.String("error", res.Err))
	} else {
		slog.Info("action",
			slog.String("type", string(action.Type)),
			slog.String("ticker", action.Ticker),
			slog.String("side", string(action.Side)),
			slog.Int64("price", action.Price),
			slog.Int64("qty", action.Qty),
			slog.String("status", string(res.Status)))
	}

	if l.cfg.TradeLog != nil {
		if err := l.cfg.TradeLog.AppendAction(ctx, logged, res.Status); err != nil {
			slog.Error("trade log append failed", slog.Any("error", err))
		}
	}
}

func (l *EngineLoop) applyFill(ctx context.Context, fill domain.Fill) {
	if err := l.cfg.Ledger.ApplyFill(fill); err != nil {
		var inv *ledger.InvariantError
		if errors.As(err, &inv) {
			l.blocked[fill.Ticker] = inv.Reason
			slog.Error("ticker blocked: invariant violation",
				slog.String("ticker", fill.Ticker),
				slog.String("reason", inv.Reason))
		} else {
			slog.Error("fill rejected",
				slog.String("ticker", fill.Ticker),
				slog.Any("error", err))
		}
		return
	}

	slog.Info("fill applied",
		slog.String("ticker", fill.Ticker),
		slog.String("side", string(fill.Side)),
		slog.Int64("price", fill.Price),
		slog.Int64("qty", fill.Qty))

	if l.cfg.TradeLog != nil {
		if err := l.cfg.TradeLog.AppendFill(ctx, fill); err != nil {
			slog.Error("trade log append failed", slog.Any("error", err))
		}
	}
}

// settleExpired converts inventory on expired markets into payouts at the
// frozen last mid, snapped at the extremes. Tickers are visited in sorted
// order so payout logs replay identically.
func (l *EngineLoop) settleExpired(now time.Time) {
	tickers := make([]string, 0, len(l.lastMid))
	for tkr := range l.lastMid {
		tickers = append(tickers, tkr)
	}
	sort.Strings(tickers)

	for _, tkr := range tickers {
		settleAt, ok := domain.SettleTime(tkr)
		if !ok || now.Before(settleAt) {
			continue
		}
		if _, done := l.cfg.Ledger.SettledPayout(tkr); done {
			continue
		}
		yesValue, ok := domain.SettleValue(l.lastMid[tkr])
		if !ok {
			continue
		}
		if payout := l.cfg.Ledger.Settle(tkr, yesValue); payout != 0 {
			slog.Info("market settled",
				slog.String("ticker", tkr),
				slog.Int64("yes_value", yesValue),
				slog.Int64("payout", payout))
		}
	}
}

func (l *EngineLoop) saveSnapshot() {
	if l.cfg.Snapshots == nil || l.lastTick.IsZero() {
		return
	}

	snap := &storage.EngineSnapshot{
		LastTick: l.lastTick,
		Ledger:   l.cfg.Ledger.Snapshot(),
	}
	if lister, ok := l.cfg.Adapter.(openOrderLister); ok {
		snap.OpenOrders = lister.OpenOrders()
	}

	if err := l.cfg.Snapshots.Save(snap); err != nil {
		slog.Error("snapshot save failed", slog.Any("error", err))
		return
	}
	if err := l.cfg.Snapshots.Cleanup(l.cfg.SnapshotKeep); err != nil {
		slog.Warn("snapshot cleanup failed", slog.Any("error", err))
	}
}
