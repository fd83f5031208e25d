package execution

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
	"github.com/Jetpackjules/Kalshi-Trader/internal/infra/kalshi"
)

// OrderAPI is the slice of the Kalshi client the live adapter needs.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req kalshi.CreateOrderRequest) (kalshi.Order, error)
	AmendOrder(ctx context.Context, orderID string, req kalshi.AmendOrderRequest) (kalshi.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetRestingOrders(ctx context.Context, ticker string) ([]kalshi.Order, error)
}

// LiveAdapter executes reconciliation actions against the exchange. A
// background poller reconciles the local order cache with exchange state;
// orders that disappear or shrink on the exchange become pending fills,
// drained by OnTick on the next tick for their ticker. The cache read by
// the reconciler never blocks on network I/O.
type LiveAdapter struct {
	client  OrderAPI
	tickers []string

	mu           sync.RWMutex
	orders       map[string]domain.LiveOrder // exchange order id -> cached order
	pendingFills map[string][]domain.Fill    // ticker -> fills awaiting drain

	pollInterval time.Duration
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewLiveAdapter builds a live adapter over the given order API.
func NewLiveAdapter(client OrderAPI, tickers []string, pollInterval time.Duration) *LiveAdapter {
	return &LiveAdapter{
		client:       client,
		tickers:      append([]string(nil), tickers...),
		orders:       make(map[string]domain.LiveOrder),
		pendingFills: make(map[string][]domain.Fill),
		pollInterval: pollInterval,
	}
}

// Restore seeds the order cache from an engine snapshot. The first poll
// reconciles it against actual exchange state.
func (a *LiveAdapter) Restore(orders []domain.LiveOrder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, o := range orders {
		a.orders[o.ID] = o
	}
}

// Start launches the background order poller.
func (a *LiveAdapter) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go a.pollLoop(ctx)
}

// Stop terminates the poller and waits for it to exit.
func (a *LiveAdapter) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

func (a *LiveAdapter) pollLoop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.syncOrders(ctx)
		}
	}
}

// syncOrders folds exchange order state into the cache. A cached order
// missing from the exchange's resting set is assumed executed; one with a
// smaller remaining count was partially executed. Either way the delta
// becomes a pending fill.
func (a *LiveAdapter) syncOrders(ctx context.Context) {
	for _, ticker := range a.tickers {
		exchOrders, err := a.client.GetRestingOrders(ctx, ticker)
		if err != nil {
			slog.Warn("order poll failed",
				slog.String("ticker", ticker),
				slog.Any("error", err))
			continue
		}

		remaining := make(map[string]kalshi.Order, len(exchOrders))
		for _, o := range exchOrders {
			remaining[o.OrderID] = o
		}

		a.mu.Lock()
		for id, cached := range a.orders {
			if cached.Ticker != ticker {
				continue
			}
			exch, stillResting := remaining[id]
			if stillResting && exch.RemainingCount >= cached.Qty {
				continue
			}

			filled := cached.Qty
			if stillResting {
				filled = cached.Qty - exch.RemainingCount
			}
			if filled > 0 {
				a.pendingFills[ticker] = append(a.pendingFills[ticker], domain.Fill{
					Ticker:  cached.Ticker,
					Side:    cached.Side,
					Action:  domain.Buy,
					Price:   cached.Price,
					Qty:     filled,
					OrderID: id,
				})
				slog.Info("exchange fill detected",
					slog.String("ticker", ticker),
					slog.String("order_id", id),
					slog.Int64("qty", filled))
			}

			if stillResting {
				cached.Qty = exch.RemainingCount
				a.orders[id] = cached
			} else {
				delete(a.orders, id)
			}
		}
		a.mu.Unlock()
	}
}

// OnTick drains pending fills for the snapshot's ticker. Fill timestamps
// are taken from the tick so logs replay deterministically.
func (a *LiveAdapter) OnTick(_ context.Context, snap domain.MarketSnapshot) []domain.Fill {
	a.mu.Lock()
	defer a.mu.Unlock()

	pending := a.pendingFills[snap.Ticker]
	if len(pending) == 0 {
		return nil
	}
	delete(a.pendingFills, snap.Ticker)

	for i := range pending {
		pending[i].Time = snap.Time
	}
	return pending
}

// Submit executes one reconciliation action against the exchange.
func (a *LiveAdapter) Submit(ctx context.Context, action domain.OrderAction) domain.ActionResult {
	switch action.Type {
	case domain.ActionCancel:
		return a.submitCancel(ctx, action)
	case domain.ActionPlace:
		return a.submitPlace(ctx, action)
	case domain.ActionAmend:
		return a.submitAmend(ctx, action)
	default:
		return domain.ActionResult{Status: domain.ActionFailed, Err: "unknown action type"}
	}
}

func (a *LiveAdapter) submitCancel(ctx context.Context, action domain.OrderAction) domain.ActionResult {
	if err := a.client.CancelOrder(ctx, action.OrderID); err != nil {
		return domain.ActionResult{Status: domain.ActionFailed, OrderID: action.OrderID, Err: err.Error()}
	}
	a.mu.Lock()
	delete(a.orders, action.OrderID)
	a.mu.Unlock()
	return domain.ActionResult{Status: domain.ActionCanceled, OrderID: action.OrderID}
}

func (a *LiveAdapter) submitPlace(ctx context.Context, action domain.OrderAction) domain.ActionResult {
	req := kalshi.CreateOrderRequest{
		Action:        "buy",
		Count:         action.Qty,
		Side:          string(action.Side),
		Ticker:        action.Ticker,
		Type:          "limit",
		ClientOrderID: uuid.NewString(),
	}
	if action.Side == domain.SideNo {
		req.NoPrice = action.Price
	} else {
		req.YesPrice = action.Price
	}

	order, err := a.client.CreateOrder(ctx, req)
	if err != nil {
		return domain.ActionResult{Status: domain.ActionFailed, Err: err.Error()}
	}

	if order.Status == "executed" {
		fill := domain.Fill{
			Ticker:  action.Ticker,
			Side:    action.Side,
			Action:  domain.Buy,
			Price:   action.Price,
			Qty:     action.Qty,
			Time:    action.Time,
			OrderID: order.OrderID,
		}
		return domain.ActionResult{Status: domain.ActionExecuted, OrderID: order.OrderID, Fill: &fill}
	}

	a.mu.Lock()
	a.orders[order.OrderID] = domain.LiveOrder{
		ID:       order.OrderID,
		Ticker:   action.Ticker,
		Side:     action.Side,
		Price:    action.Price,
		Qty:      action.Qty,
		PlacedAt: action.Time,
	}
	a.mu.Unlock()
	return domain.ActionResult{Status: domain.ActionResting, OrderID: order.OrderID}
}

func (a *LiveAdapter) submitAmend(ctx context.Context, action domain.OrderAction) domain.ActionResult {
	req := kalshi.AmendOrderRequest{Count: action.Qty}
	if action.Side == domain.SideNo {
		req.NoPrice = action.Price
	} else {
		req.YesPrice = action.Price
	}

	order, err := a.client.AmendOrder(ctx, action.OrderID, req)
	if err != nil {
		return domain.ActionResult{Status: domain.ActionFailed, OrderID: action.OrderID, Err: err.Error()}
	}

	a.mu.Lock()
	a.orders[order.OrderID] = domain.LiveOrder{
		ID:       order.OrderID,
		Ticker:   action.Ticker,
		Side:     action.Side,
		Price:    action.Price,
		Qty:      action.Qty,
		PlacedAt: action.Time,
	}
	if order.OrderID != action.OrderID {
		delete(a.orders, action.OrderID)
	}
	a.mu.Unlock()
	return domain.ActionResult{Status: domain.ActionResting, OrderID: order.OrderID}
}

// KnownOrders returns a sorted copy of the cached resting orders for one
// ticker. This is a pure cache read.
func (a *LiveAdapter) KnownOrders(ticker string) []domain.LiveOrder {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []domain.LiveOrder
	for _, o := range a.orders {
		if o.Ticker == ticker {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OpenOrders returns every cached resting order, sorted by id.
func (a *LiveAdapter) OpenOrders() []domain.LiveOrder {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.LiveOrder, 0, len(a.orders))
	for _, o := range a.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
