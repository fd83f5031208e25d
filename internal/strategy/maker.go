package strategy

import (
	"fmt"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
	"github.com/Jetpackjules/Kalshi-Trader/pkg/safe"
)

// maker is an inventory-aware market maker. It keeps a rolling mean of the
// YES mid as a mean-reversion fair value, quotes the side with positive edge
// once that edge clears fee plus margin, and skews its fair value against
// held inventory so a loaded book quotes less aggressively.
type maker struct {
	window      int
	spreadCents domain.Cents // required margin over fee, in cents per contract
	quantity    int64
	maxPrice    domain.Cents
	skewFactor  float64 // cents of fair-value shift per held contract

	mids map[string]*midWindow
}

func newMaker(params map[string]float64) (Strategy, error) {
	if err := rejectUnknown(params, "window", "spread_cents", "quantity", "max_price", "skew_factor"); err != nil {
		return nil, err
	}
	m := &maker{
		window:      int(intParam(params, "window", 20)),
		spreadCents: intParam(params, "spread_cents", 4),
		quantity:    intParam(params, "quantity", 10),
		maxPrice:    intParam(params, "max_price", 95),
		skewFactor:  floatParam(params, "skew_factor", 0.1),
		mids:        make(map[string]*midWindow),
	}
	if m.window < 2 {
		return nil, fmt.Errorf("window must be at least 2, got %d", m.window)
	}
	if m.quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", m.quantity)
	}
	if m.maxPrice < 1 || m.maxPrice > 99 {
		return nil, fmt.Errorf("max_price must be in [1, 99], got %d", m.maxPrice)
	}
	if m.spreadCents < 0 {
		return nil, fmt.Errorf("spread_cents must be non-negative, got %d", m.spreadCents)
	}
	return m, nil
}

func (m *maker) Name() string { return "maker" }

func (m *maker) Evaluate(snap domain.MarketSnapshot, view LedgerView) []domain.OrderIntent {
	mid := snap.Mid()
	if mid <= 0 {
		return nil
	}

	w, ok := m.mids[snap.Ticker]
	if !ok {
		w = newMidWindow(m.window)
		m.mids[snap.Ticker] = w
	}
	w.push(mid)
	if !w.full() {
		return nil // warmup
	}

	// Fair value: rolling mean, shifted against inventory.
	fair := w.mean() - domain.Cents(m.skewFactor*float64(view.Inventory))

	yesPrice := mid
	noPrice := 100 - mid

	// At complementary prices exactly one side can have positive edge.
	edgeYes := fair - yesPrice
	edgeNo := (100 - fair) - noPrice

	var side domain.Side
	var price, edge domain.Cents
	switch {
	case edgeYes > 0 && view.Inventory >= 0:
		side, price, edge = domain.SideYes, yesPrice, edgeYes
	case edgeNo > 0 && view.Inventory <= 0:
		side, price, edge = domain.SideNo, noPrice, edgeNo
	default:
		return nil
	}
	if price < 1 || price > m.maxPrice {
		return nil
	}

	qty := m.sizeFor(price, view)
	if qty <= 0 {
		return nil
	}

	// Edge must clear the taker fee plus the configured margin.
	required := safe.Add(domain.ConvexFee(price, qty), safe.Mul(m.spreadCents, qty))
	if safe.Mul(edge, qty) <= required {
		return nil
	}

	return []domain.OrderIntent{{Ticker: snap.Ticker, Side: side, Price: price, Qty: qty}}
}

// sizeFor caps the configured quantity by inventory room and by what the
// remaining daily budget can pay for, fee included.
func (m *maker) sizeFor(price domain.Cents, view LedgerView) int64 {
	held := view.Inventory
	if held < 0 {
		held = -held
	}
	room := view.MaxInventory - held
	if room <= 0 {
		return 0
	}

	qty := m.quantity
	if qty > room {
		qty = room
	}
	// Per-contract cost, with the worst-case fee of a single contract.
	unit := safe.Add(price, domain.ConvexFee(price, 1))
	if affordable := safe.Div(view.RemainingBudget, unit); qty > affordable {
		qty = affordable
	}
	return qty
}

// midWindow is a fixed-size ring buffer with a running sum.
type midWindow struct {
	vals  []domain.Cents
	head  int
	count int
	sum   int64
}

func newMidWindow(size int) *midWindow {
	return &midWindow{vals: make([]domain.Cents, size)}
}

func (w *midWindow) push(v domain.Cents) {
	if w.count == len(w.vals) {
		w.sum = safe.Sub(w.sum, w.vals[w.head])
	} else {
		w.count++
	}
	w.vals[w.head] = v
	w.sum = safe.Add(w.sum, v)
	w.head = (w.head + 1) % len(w.vals)
}

func (w *midWindow) full() bool { return w.count == len(w.vals) }

func (w *midWindow) mean() domain.Cents {
	if w.count == 0 {
		return 0
	}
	return safe.Div(w.sum, int64(w.count))
}
