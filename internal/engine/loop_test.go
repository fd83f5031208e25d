package engine

import (
	"context"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
	"github.com/Jetpackjules/Kalshi-Trader/internal/execution"
	"github.com/Jetpackjules/Kalshi-Trader/internal/ledger"
	"github.com/Jetpackjules/Kalshi-Trader/internal/strategy"
	"github.com/Jetpackjules/Kalshi-Trader/internal/ticks"
)

const (
	tickerA = "KXHIGHNY-25DEC04-B49.5"
	tickerB = "KXHIGHNY-25DEC04-B51.5"
)

// 10:00 ET on the market's trading day.
var loopT0 = time.Date(2025, time.December, 4, 15, 0, 0, 0, time.UTC)

type recordedAction struct {
	Action domain.OrderAction
	Status domain.ActionStatus
}

type memLog struct {
	actions []recordedAction
	fills   []domain.Fill
}

func (m *memLog) AppendFill(_ context.Context, f domain.Fill) error {
	m.fills = append(m.fills, f)
	return nil
}

func (m *memLog) AppendAction(_ context.Context, a domain.OrderAction, s domain.ActionStatus) error {
	m.actions = append(m.actions, recordedAction{Action: a, Status: s})
	return nil
}

type sliceSource struct {
	batches []ticks.Batch
	pos     int
}

func (s *sliceSource) Next(_ context.Context) (ticks.Batch, error) {
	if s.pos >= len(s.batches) {
		return ticks.Batch{}, io.EOF
	}
	b := s.batches[s.pos]
	s.pos++
	return b, nil
}

func snapAt(ticker string, at time.Time, yesBid, yesAsk domain.Cents) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Ticker: ticker,
		Time:   at,
		YesBid: yesBid,
		YesAsk: yesAsk,
		NoBid:  100 - yesAsk,
		NoAsk:  100 - yesBid,
		Status: domain.StatusOpen,
	}
}

func makerBatches() []ticks.Batch {
	// Two warmup ticks at mid 45, then a drop to mid 40 giving YES edge,
	// then an ask below the resting limit so it fills.
	return []ticks.Batch{
		{Time: loopT0, Snapshots: []domain.MarketSnapshot{snapAt(tickerA, loopT0, 44, 46)}},
		{Time: loopT0.Add(time.Minute), Snapshots: []domain.MarketSnapshot{snapAt(tickerA, loopT0.Add(time.Minute), 44, 46)}},
		{Time: loopT0.Add(2 * time.Minute), Snapshots: []domain.MarketSnapshot{snapAt(tickerA, loopT0.Add(2*time.Minute), 38, 42)}},
		{Time: loopT0.Add(3 * time.Minute), Snapshots: []domain.MarketSnapshot{snapAt(tickerA, loopT0.Add(3*time.Minute), 37, 39)}},
	}
}

func newMakerLoop(t *testing.T, log *memLog) *EngineLoop {
	t.Helper()
	strat, err := strategy.New("maker", map[string]float64{
		"window": 2, "spread_cents": 0, "quantity": 10, "max_price": 95,
	})
	if err != nil {
		t.Fatal(err)
	}
	led := ledger.New(100000, ledger.Limits{
		MaxTradeNotional: 10000,
		MaxDailySpend:    100000,
		MaxInventory:     100,
	})
	rec := NewReconciler(ReconcilerConfig{
		PriceTolerance:     0,
		QtyTolerance:       0,
		MinRequoteInterval: 0,
		MaxOrderAge:        time.Hour,
	})
	return NewEngineLoop(LoopConfig{
		Source:     &sliceSource{batches: makerBatches()},
		Strategy:   strat,
		Ledger:     led,
		Reconciler: rec,
		Adapter:    execution.NewSimAdapter(),
		TradeLog:   log,
	})
}

func TestLoop_ReplayProducesIdenticalActionLog(t *testing.T) {
	var logs [2]*memLog
	for i := range logs {
		logs[i] = &memLog{}
		if err := newMakerLoop(t, logs[i]).Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if len(logs[0].actions) == 0 {
		t.Fatal("replay produced no actions; fixture is inert")
	}
	if !reflect.DeepEqual(logs[0].actions, logs[1].actions) {
		t.Errorf("action logs differ:\n%+v\n%+v", logs[0].actions, logs[1].actions)
	}
	if !reflect.DeepEqual(logs[0].fills, logs[1].fills) {
		t.Errorf("fill logs differ:\n%+v\n%+v", logs[0].fills, logs[1].fills)
	}
}

func TestLoop_MakerPlacesAndFills(t *testing.T) {
	log := &memLog{}
	if err := newMakerLoop(t, log).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	var placed bool
	for _, a := range log.actions {
		if a.Action.Type == domain.ActionPlace && a.Action.Price == 40 && a.Action.Qty == 10 {
			placed = true
		}
	}
	if !placed {
		t.Errorf("no place at 40x10 in %+v", log.actions)
	}

	// The resting 40 limit crosses the 39 ask on the final tick.
	if len(log.fills) == 0 {
		t.Fatal("no fills recorded")
	}
	f := log.fills[len(log.fills)-1]
	if f.Price != 39 || f.Qty != 10 || f.Side != domain.SideYes {
		t.Errorf("fill = %+v, want YES 10 @ 39", f)
	}
	// Fill timestamps come from the tick stream, not the wall clock.
	if f.Time.After(loopT0.Add(3 * time.Minute)) {
		t.Errorf("fill time %v is outside the tick stream", f.Time)
	}
}

func trendBatch(at time.Time) ticks.Batch {
	// NO ask inside the (50, 75) default band on both tickers.
	return ticks.Batch{Time: at, Snapshots: []domain.MarketSnapshot{
		snapAt(tickerA, at, 40, 42), // NoAsk 60
		snapAt(tickerB, at, 40, 42),
	}}
}

func newTrendLoop(t *testing.T, led *ledger.Ledger, log *memLog) *EngineLoop {
	t.Helper()
	strat, err := strategy.New("trendno", nil)
	if err != nil {
		t.Fatal(err)
	}
	rec := NewReconciler(ReconcilerConfig{MaxOrderAge: time.Hour})
	return NewEngineLoop(LoopConfig{
		Source:     &sliceSource{batches: []ticks.Batch{trendBatch(loopT0)}},
		Strategy:   strat,
		Ledger:     led,
		Reconciler: rec,
		Adapter:    execution.NewSimAdapter(),
		TradeLog:   log,
	})
}

func trendLimits() ledger.Limits {
	return ledger.Limits{MaxTradeNotional: 10000, MaxDailySpend: 100000, MaxInventory: 70}
}

func TestLoop_ColdStartBuys(t *testing.T) {
	log := &memLog{}
	if err := newTrendLoop(t, ledger.New(100000, trendLimits()), log).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(log.actions) == 0 {
		t.Error("cold start placed nothing")
	}
}

func TestLoop_WarmStartSuppressesTopUpBuys(t *testing.T) {
	// Half the daily budget already spent, inventory at the 70-contract
	// cap on both tickers: a resumed engine must not buy again.
	led := ledger.Restore(ledger.State{
		Cash:       50000,
		Inventory:  map[string]int64{tickerA: 70, tickerB: 70},
		DailySpent: 50000,
		Day:        domain.TradingDay(loopT0),
	}, trendLimits())

	log := &memLog{}
	if err := newTrendLoop(t, led, log).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, a := range log.actions {
		if a.Action.Type == domain.ActionPlace {
			t.Errorf("warm start placed order: %+v", a.Action)
		}
	}
	if len(log.fills) != 0 {
		t.Errorf("warm start produced fills: %+v", log.fills)
	}
}

func TestLoop_ResumeFromSkipsReplayedBatches(t *testing.T) {
	spy := &spyStrategy{}
	led := ledger.New(100000, trendLimits())
	rec := NewReconciler(ReconcilerConfig{MaxOrderAge: time.Hour})
	loop := NewEngineLoop(LoopConfig{
		Source: &sliceSource{batches: []ticks.Batch{
			trendBatch(loopT0),
			trendBatch(loopT0.Add(time.Minute)),
			trendBatch(loopT0.Add(2 * time.Minute)),
		}},
		Strategy:   spy,
		Ledger:     led,
		Reconciler: rec,
		Adapter:    execution.NewSimAdapter(),
		ResumeFrom: loopT0.Add(time.Minute),
	})
	if err := loop.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, at := range spy.times {
		if !at.After(loopT0.Add(time.Minute)) {
			t.Errorf("evaluated batch at %v, at or before the resume point", at)
		}
	}
	if len(spy.times) == 0 {
		t.Error("no batch evaluated after the resume point")
	}
}

type spyStrategy struct {
	tickers []string
	times   []time.Time
}

func (s *spyStrategy) Name() string { return "spy" }

func (s *spyStrategy) Evaluate(snap domain.MarketSnapshot, _ strategy.LedgerView) []domain.OrderIntent {
	s.tickers = append(s.tickers, snap.Ticker)
	s.times = append(s.times, snap.Time)
	return nil
}

// fillInjector returns canned fills for one ticker on its first tick.
type fillInjector struct {
	execution.Adapter
	ticker string
	fills  []domain.Fill
}

func (f *fillInjector) OnTick(ctx context.Context, snap domain.MarketSnapshot) []domain.Fill {
	if snap.Ticker == f.ticker && f.fills != nil {
		out := f.fills
		f.fills = nil
		for i := range out {
			out[i].Time = snap.Time
		}
		return out
	}
	return f.Adapter.OnTick(ctx, snap)
}

func TestLoop_InvariantViolationBlocksOnlyThatTicker(t *testing.T) {
	// Ticker A holds YES; an unexpected NO buy fill arrives for it. The
	// sign flip blocks A while B keeps trading.
	led := ledger.Restore(ledger.State{
		Cash:      100000,
		Inventory: map[string]int64{tickerA: 5},
		Day:       domain.TradingDay(loopT0),
	}, trendLimits())

	spy := &spyStrategy{}
	adapter := &fillInjector{
		Adapter: execution.NewSimAdapter(),
		ticker:  tickerA,
		fills: []domain.Fill{{
			Ticker: tickerA, Side: domain.SideNo, Action: domain.Buy,
			Price: 60, Qty: 5, OrderID: "EX-9",
		}},
	}
	loop := NewEngineLoop(LoopConfig{
		Source: &sliceSource{batches: []ticks.Batch{
			trendBatch(loopT0),
			trendBatch(loopT0.Add(time.Minute)),
		}},
		Strategy:   spy,
		Ledger:     led,
		Reconciler: NewReconciler(ReconcilerConfig{MaxOrderAge: time.Hour}),
		Adapter:    adapter,
	})
	if err := loop.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, blocked := loop.BlockedTickers()[tickerA]; !blocked {
		t.Fatal("ticker A not blocked after invariant violation")
	}
	for _, tkr := range spy.tickers {
		if tkr == tickerA {
			t.Error("blocked ticker was still evaluated")
		}
	}
	var sawB bool
	for _, tkr := range spy.tickers {
		if tkr == tickerB {
			sawB = true
		}
	}
	if !sawB {
		t.Error("healthy ticker stopped trading with the blocked one")
	}
	// The rejected fill never touched the ledger.
	if led.Inventory(tickerA) != 5 {
		t.Errorf("inventory on A = %d, want untouched 5", led.Inventory(tickerA))
	}
}

func TestLoop_ThrottledEntryDefersToNextEligibleTick(t *testing.T) {
	// A stale resting order is canceled on the first tick, which starts
	// the requote clock. The band is hit one second later, inside the
	// throttle window; the buy must land on the next eligible tick
	// instead of being lost for the day.
	strat, err := strategy.New("trendno", nil)
	if err != nil {
		t.Fatal(err)
	}
	sim := execution.NewSimAdapter()
	sim.Restore([]domain.LiveOrder{{
		ID: "SIM-1", Ticker: tickerA, Side: domain.SideYes,
		Price: 10, Qty: 5, PlacedAt: loopT0.Add(-time.Minute),
	}})
	log := &memLog{}
	loop := NewEngineLoop(LoopConfig{
		Source: &sliceSource{batches: []ticks.Batch{
			// NO ask 80: outside the band, so the stale order is pulled.
			{Time: loopT0, Snapshots: []domain.MarketSnapshot{snapAt(tickerA, loopT0, 20, 22)}},
			// In band, but within the requote interval.
			{Time: loopT0.Add(time.Second), Snapshots: []domain.MarketSnapshot{snapAt(tickerA, loopT0.Add(time.Second), 40, 42)}},
			// Past the interval: the deferred entry goes out.
			{Time: loopT0.Add(30 * time.Second), Snapshots: []domain.MarketSnapshot{snapAt(tickerA, loopT0.Add(30*time.Second), 40, 42)}},
		}},
		Strategy: strat,
		Ledger:   ledger.New(100000, trendLimits()),
		Reconciler: NewReconciler(ReconcilerConfig{
			MinRequoteInterval: 10 * time.Second,
			MaxOrderAge:        time.Hour,
		}),
		Adapter:  sim,
		TradeLog: log,
	})
	if err := loop.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	var canceled bool
	var places []recordedAction
	for _, a := range log.actions {
		switch a.Action.Type {
		case domain.ActionCancel:
			if a.Action.OrderID == "SIM-1" {
				canceled = true
			}
		case domain.ActionPlace:
			places = append(places, a)
		}
	}
	if !canceled {
		t.Error("stale order not canceled")
	}
	if len(places) != 1 {
		t.Fatalf("got %d places, want 1: %+v", len(places), places)
	}
	if got := places[0].Action; got.Side != domain.SideNo || !got.Time.Equal(loopT0.Add(30*time.Second)) {
		t.Errorf("entry = %+v, want BUY NO at %v", got, loopT0.Add(30*time.Second))
	}
}

func TestLoop_BlockedTickerRestingOrdersPulled(t *testing.T) {
	// An invariant violation blocks ticker A while it still has an order
	// resting. The order must be pulled, not left live to fill later.
	led := ledger.Restore(ledger.State{
		Cash:      100000,
		Inventory: map[string]int64{tickerA: 5},
		Day:       domain.TradingDay(loopT0),
	}, trendLimits())

	sim := execution.NewSimAdapter()
	sim.Restore([]domain.LiveOrder{{
		ID: "SIM-1", Ticker: tickerA, Side: domain.SideYes,
		Price: 30, Qty: 5, PlacedAt: loopT0.Add(-time.Minute),
	}})
	adapter := &fillInjector{
		Adapter: sim,
		ticker:  tickerA,
		fills: []domain.Fill{{
			Ticker: tickerA, Side: domain.SideNo, Action: domain.Buy,
			Price: 60, Qty: 5, OrderID: "EX-9",
		}},
	}
	log := &memLog{}
	loop := NewEngineLoop(LoopConfig{
		Source:     &sliceSource{batches: []ticks.Batch{trendBatch(loopT0)}},
		Strategy:   &spyStrategy{},
		Ledger:     led,
		Reconciler: NewReconciler(ReconcilerConfig{MaxOrderAge: time.Hour}),
		Adapter:    adapter,
		TradeLog:   log,
	})
	if err := loop.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, blocked := loop.BlockedTickers()[tickerA]; !blocked {
		t.Fatal("ticker A not blocked after invariant violation")
	}
	var canceled bool
	for _, a := range log.actions {
		if a.Action.Type == domain.ActionCancel && a.Action.OrderID == "SIM-1" {
			canceled = true
		}
	}
	if !canceled {
		t.Error("resting order left live on blocked ticker")
	}
	if n := len(adapter.KnownOrders(tickerA)); n != 0 {
		t.Errorf("%d orders still resting on blocked ticker", n)
	}
}
