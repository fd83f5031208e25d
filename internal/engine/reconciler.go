package engine

import (
	"fmt"
	"time"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
)

// ReconcilerConfig tunes how aggressively live orders chase desired quotes.
type ReconcilerConfig struct {
	// PriceTolerance is the largest price drift (cents) left untouched.
	PriceTolerance domain.Cents
	// QtyTolerance is the largest quantity drift left untouched.
	QtyTolerance int64
	// MinRequoteInterval is the shortest allowed gap between reconciliation
	// actions on one ticker. Work arriving inside the window is deferred to
	// the next eligible tick, never dropped.
	MinRequoteInterval time.Duration
	// MaxOrderAge forces a cancel on any order resting longer than this,
	// regardless of tolerance.
	MaxOrderAge time.Duration
}

// Validate rejects configurations that would disable required safeguards.
func (c ReconcilerConfig) Validate() error {
	if c.PriceTolerance < 0 || c.QtyTolerance < 0 {
		return fmt.Errorf("tolerances must be non-negative")
	}
	if c.MinRequoteInterval < 0 {
		return fmt.Errorf("min_requote_interval must be non-negative")
	}
	if c.MaxOrderAge <= 0 {
		return fmt.Errorf("max_order_age must be positive")
	}
	return nil
}

// Reconciler computes the minimal action set converging live orders to the
// desired quote set. Matching is by (ticker, side); at most one resting order
// per side per ticker is permitted. The logic is identical for live and
// simulated execution; only the adapter downstream differs.
type Reconciler struct {
	cfg        ReconcilerConfig
	lastAction map[string]time.Time
}

// NewReconciler creates a reconciler with per-ticker rate limiting state.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	return &Reconciler{
		cfg:        cfg,
		lastAction: make(map[string]time.Time),
	}
}

// Reconcile returns the actions needed to converge live state to desired
// state for one ticker at the given tick time. Desired intents beyond the
// first per side are ignored; live duplicates per side are canceled before
// anything is placed. Returns nil while the ticker is inside its requote
// interval; because the desired set is recomputed every tick, deferral is
// simply re-emergence of the same actions at the next eligible tick.
func (r *Reconciler) Reconcile(now time.Time, ticker string, desired []domain.OrderIntent, live []domain.LiveOrder) []domain.OrderAction {
	if last, ok := r.lastAction[ticker]; ok && now.Sub(last) < r.cfg.MinRequoteInterval {
		return nil
	}

	want := make(map[domain.Side]domain.OrderIntent, 2)
	for _, it := range desired {
		if it.Ticker != ticker || !it.Side.Valid() || it.Qty <= 0 {
			continue
		}
		if _, dup := want[it.Side]; !dup {
			want[it.Side] = it
		}
	}

	var actions []domain.OrderAction
	have := make(map[domain.Side]domain.LiveOrder, 2)
	for _, o := range live {
		if o.Ticker != ticker {
			continue
		}
		if _, dup := have[o.Side]; dup {
			// Duplicate resting order on one side: cancel the extra.
			actions = append(actions, domain.OrderAction{
				Type: domain.ActionCancel, Ticker: ticker, Side: o.Side, OrderID: o.ID, Time: now,
			})
			continue
		}
		have[o.Side] = o
	}

	for _, side := range []domain.Side{domain.SideYes, domain.SideNo} {
		cur, haveOrder := have[side]
		intent, wantOrder := want[side]

		switch {
		case haveOrder && cur.Age(now) > r.cfg.MaxOrderAge:
			// Stale orders go regardless of tolerance; a replacement, if
			// still desired, is placed on a later tick.
			actions = append(actions, domain.OrderAction{
				Type: domain.ActionCancel, Ticker: ticker, Side: side, OrderID: cur.ID, Time: now,
			})

		case haveOrder && !wantOrder:
			actions = append(actions, domain.OrderAction{
				Type: domain.ActionCancel, Ticker: ticker, Side: side, OrderID: cur.ID, Time: now,
			})

		case !haveOrder && wantOrder:
			actions = append(actions, domain.OrderAction{
				Type: domain.ActionPlace, Ticker: ticker, Side: side,
				Price: intent.Price, Qty: intent.Qty, Time: now,
			})

		case haveOrder && wantOrder:
			if driftExceeded(cur, intent, r.cfg) {
				actions = append(actions, domain.OrderAction{
					Type: domain.ActionAmend, Ticker: ticker, Side: side,
					Price: intent.Price, Qty: intent.Qty, OrderID: cur.ID, Time: now,
				})
			}
			// Within tolerance: no-op, to avoid churn and fee drag.
		}
	}

	if len(actions) > 0 {
		r.lastAction[ticker] = now
	}
	return actions
}

func driftExceeded(cur domain.LiveOrder, want domain.OrderIntent, cfg ReconcilerConfig) bool {
	dp := cur.Price - want.Price
	if dp < 0 {
		dp = -dp
	}
	dq := cur.Qty - want.Qty
	if dq < 0 {
		dq = -dq
	}
	return dp > cfg.PriceTolerance || dq > cfg.QtyTolerance
}

// LastActionAt reports when the ticker last emitted actions, for snapshots
// and diagnostics.
func (r *Reconciler) LastActionAt(ticker string) (time.Time, bool) {
	t, ok := r.lastAction[ticker]
	return t, ok
}
