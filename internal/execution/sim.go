package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
)

// SimAdapter fills orders against market snapshots. A placed or amended
// order fills immediately and completely when its limit crosses the opposing
// best ask; otherwise it rests until a later snapshot crosses it, it is
// canceled, or it ages out upstream. There are no partial fills and no
// queue position modeling.
//
// All timestamps come from actions and snapshots, never the wall clock, so
// replayed runs are byte-identical.
type SimAdapter struct {
	orders map[string]*domain.LiveOrder // order id -> resting order
	lastID int
}

// NewSimAdapter creates an empty simulator.
func NewSimAdapter() *SimAdapter {
	return &SimAdapter{orders: make(map[string]*domain.LiveOrder)}
}

// Restore seeds the simulator with open orders from an engine snapshot.
func (s *SimAdapter) Restore(orders []domain.LiveOrder) {
	for _, o := range orders {
		cp := o
		s.orders[o.ID] = &cp
		// Keep generated ids ahead of anything restored.
		var n int
		if _, err := fmt.Sscanf(o.ID, "SIM-%d", &n); err == nil && n > s.lastID {
			s.lastID = n
		}
	}
}

func (s *SimAdapter) nextID() string {
	s.lastID++
	return fmt.Sprintf("SIM-%d", s.lastID)
}

// OnTick checks every resting order on the snapshot's ticker against the new
// prices and returns the fills, in deterministic (order id) order.
func (s *SimAdapter) OnTick(_ context.Context, snap domain.MarketSnapshot) []domain.Fill {
	ids := make([]string, 0, len(s.orders))
	for id, o := range s.orders {
		if o.Ticker == snap.Ticker {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var fills []domain.Fill
	for _, id := range ids {
		o := s.orders[id]
		if fill, ok := s.cross(*o, snap); ok {
			fills = append(fills, fill)
			delete(s.orders, id)
		}
	}
	return fills
}

// cross fills the order at the opposing ask when the limit reaches it.
func (s *SimAdapter) cross(o domain.LiveOrder, snap domain.MarketSnapshot) (domain.Fill, bool) {
	ask := snap.Ask(o.Side)
	if ask <= 0 || o.Price < ask {
		return domain.Fill{}, false
	}
	return domain.Fill{
		Ticker:  o.Ticker,
		Side:    o.Side,
		Action:  domain.Buy,
		Price:   ask,
		Qty:     o.Qty,
		Time:    snap.Time,
		OrderID: o.ID,
	}, true
}

// Submit applies one reconciliation action synchronously. Placed and
// amended orders rest; use SubmitAgainst to also test the new order against
// the current snapshot so crossing limits fill on the same tick.
func (s *SimAdapter) Submit(_ context.Context, action domain.OrderAction) domain.ActionResult {
	switch action.Type {
	case domain.ActionCancel:
		if _, ok := s.orders[action.OrderID]; !ok {
			return domain.ActionResult{Status: domain.ActionFailed, OrderID: action.OrderID, Err: "order not found"}
		}
		delete(s.orders, action.OrderID)
		return domain.ActionResult{Status: domain.ActionCanceled, OrderID: action.OrderID}

	case domain.ActionPlace, domain.ActionAmend:
		if action.Type == domain.ActionAmend {
			if _, ok := s.orders[action.OrderID]; !ok {
				return domain.ActionResult{Status: domain.ActionFailed, OrderID: action.OrderID, Err: "order not found"}
			}
			delete(s.orders, action.OrderID)
		}
		o := domain.LiveOrder{
			ID:       s.nextID(),
			Ticker:   action.Ticker,
			Side:     action.Side,
			Price:    action.Price,
			Qty:      action.Qty,
			PlacedAt: action.Time,
		}
		s.orders[o.ID] = &o
		return domain.ActionResult{Status: domain.ActionResting, OrderID: o.ID}

	default:
		return domain.ActionResult{Status: domain.ActionFailed, Err: fmt.Sprintf("unknown action type %q", action.Type)}
	}
}

// SubmitAgainst applies an action and immediately tests a place/amend
// against the given snapshot, so a crossing limit fills on the same tick it
// was decided. This is the entry point the engine loop uses.
func (s *SimAdapter) SubmitAgainst(ctx context.Context, action domain.OrderAction, snap domain.MarketSnapshot) domain.ActionResult {
	res := s.Submit(ctx, action)
	if res.Status != domain.ActionResting {
		return res
	}
	o := s.orders[res.OrderID]
	fill, ok := s.cross(*o, snap)
	if !ok {
		slog.Debug("sim order resting",
			slog.String("ticker", action.Ticker),
			slog.String("side", string(action.Side)),
			slog.Int64("price", action.Price),
			slog.Int64("qty", action.Qty))
		return res
	}
	delete(s.orders, res.OrderID)
	res.Status = domain.ActionExecuted
	res.Fill = &fill
	return res
}

// KnownOrders returns a sorted copy of the resting orders for one ticker.
func (s *SimAdapter) KnownOrders(ticker string) []domain.LiveOrder {
	var out []domain.LiveOrder
	for _, o := range s.orders {
		if o.Ticker == ticker {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OpenOrders returns every resting order, sorted by id, for snapshotting.
func (s *SimAdapter) OpenOrders() []domain.LiveOrder {
	out := make([]domain.LiveOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
