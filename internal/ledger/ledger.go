// Package ledger owns cash, per-ticker inventory, and daily budget
// consumption. It is the single source of truth for "can we afford this
// trade" and the only engine state that survives restarts.
package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
	"github.com/Jetpackjules/Kalshi-Trader/pkg/safe"
)

// Limits are the externally configured risk caps.
type Limits struct {
	MaxTradeNotional domain.Cents `yaml:"max_trade_notional_cents"`
	MaxDailySpend    domain.Cents `yaml:"max_daily_spend_cents"`
	MaxInventory     int64        `yaml:"max_inventory"`
	AllowHedged      bool         `yaml:"allow_hedged"`
}

// Validate rejects non-positive caps at startup.
func (l Limits) Validate() error {
	if l.MaxTradeNotional <= 0 {
		return fmt.Errorf("max_trade_notional_cents must be positive, got %d", l.MaxTradeNotional)
	}
	if l.MaxDailySpend <= 0 {
		return fmt.Errorf("max_daily_spend_cents must be positive, got %d", l.MaxDailySpend)
	}
	if l.MaxInventory <= 0 {
		return fmt.Errorf("max_inventory must be positive, got %d", l.MaxInventory)
	}
	return nil
}

// InvariantError is a ledger consistency violation: the affected ticker is
// blocked from further placement, but the engine loop keeps running.
type InvariantError struct {
	Ticker string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("ledger invariant violated on %s: %s", e.Ticker, e.Reason)
}

// BudgetError reports that a prospective order does not fit the caps.
type BudgetError struct {
	Reason string
}

func (e *BudgetError) Error() string {
	return "budget exceeded: " + e.Reason
}

// State is the serializable ledger content, embedded in engine snapshots.
type State struct {
	Cash       domain.Cents            `json:"cash_cents"`
	Inventory  map[string]int64        `json:"inventory"` // signed: + YES, - NO
	DailySpent domain.Cents            `json:"daily_spent_cents"`
	Day        string                  `json:"day"` // exchange-local date of DailySpent
	Settled    map[string]domain.Cents `json:"settled,omitempty"`
}

// Ledger tracks cash and signed per-ticker inventory. Positive inventory is
// YES contracts held, negative is NO: a ticker position is mutually exclusive
// between the two sides unless Limits.AllowHedged is set.
//
// Not safe for concurrent use. Owned exclusively by the engine loop.
type Ledger struct {
	cash       domain.Cents
	inventory  map[string]int64
	dailySpent domain.Cents
	day        string
	settled    map[string]domain.Cents // ticker -> payout already credited
	limits     Limits
}

// New creates a ledger with the given starting cash.
func New(initialCash domain.Cents, limits Limits) *Ledger {
	return &Ledger{
		cash:      initialCash,
		inventory: make(map[string]int64),
		settled:   make(map[string]domain.Cents),
		limits:    limits,
	}
}

// Restore creates a ledger seeded from a snapshot state, so budget and
// inventory constraints already reflect prior activity.
func Restore(st State, limits Limits) *Ledger {
	l := New(st.Cash, limits)
	for tkr, qty := range st.Inventory {
		if qty != 0 {
			l.inventory[tkr] = qty
		}
	}
	for tkr, payout := range st.Settled {
		l.settled[tkr] = payout
	}
	l.dailySpent = st.DailySpent
	l.day = st.Day
	return l
}

// Snapshot returns a deep copy of the ledger state for serialization.
func (l *Ledger) Snapshot() State {
	inv := make(map[string]int64, len(l.inventory))
	for tkr, qty := range l.inventory {
		if qty != 0 {
			inv[tkr] = qty
		}
	}
	settled := make(map[string]domain.Cents, len(l.settled))
	for tkr, payout := range l.settled {
		settled[tkr] = payout
	}
	return State{
		Cash:       l.cash,
		Inventory:  inv,
		DailySpent: l.dailySpent,
		Day:        l.day,
		Settled:    settled,
	}
}

// Cash returns the current cash balance in cents.
func (l *Ledger) Cash() domain.Cents { return l.cash }

// Inventory returns the signed position for a ticker.
func (l *Ledger) Inventory(ticker string) int64 { return l.inventory[ticker] }

// DailySpent returns the notional+fees consumed against today's budget.
func (l *Ledger) DailySpent() domain.Cents { return l.dailySpent }

// RemainingBudget returns how much of the daily cap is left, floored at the
// available cash and zero.
func (l *Ledger) RemainingBudget() domain.Cents {
	rem := safe.Sub(l.limits.MaxDailySpend, l.dailySpent)
	if rem > l.cash {
		rem = l.cash
	}
	if rem < 0 {
		rem = 0
	}
	return rem
}

// Limits returns the configured caps.
func (l *Ledger) Limits() Limits { return l.limits }

// Roll advances the ledger to the trading day containing now, resetting the
// daily-spend counter exactly once per new exchange-local calendar day.
// Returns true when a day boundary was crossed.
func (l *Ledger) Roll(now time.Time) bool {
	day := domain.TradingDay(now)
	if day == l.day {
		return false
	}
	crossed := l.day != ""
	if crossed {
		slog.Info("day boundary: daily budget reset",
			slog.String("from", l.day),
			slog.String("to", day),
			slog.Int64("spent", l.dailySpent))
	}
	l.day = day
	l.dailySpent = 0
	return crossed
}

// CheckBudget reports whether a prospective order of the given notional
// (price*qty, excluding fee) fits the per-trade cap and the remaining daily
// budget. Does not mutate state.
func (l *Ledger) CheckBudget(notional domain.Cents) error {
	if notional > l.limits.MaxTradeNotional {
		return &BudgetError{Reason: fmt.Sprintf("notional %d over per-trade cap %d", notional, l.limits.MaxTradeNotional)}
	}
	if safe.Add(l.dailySpent, notional) > l.limits.MaxDailySpend {
		return &BudgetError{Reason: fmt.Sprintf("notional %d over remaining daily budget %d", notional, safe.Sub(l.limits.MaxDailySpend, l.dailySpent))}
	}
	if notional > l.cash {
		return &BudgetError{Reason: fmt.Sprintf("notional %d over cash %d", notional, l.cash)}
	}
	return nil
}

// RoomFor returns how many more contracts may be held on the given side of
// the ticker before hitting the inventory cap, 0 when the opposite side is
// already held (and hedging is off).
func (l *Ledger) RoomFor(ticker string, side domain.Side) int64 {
	inv := l.inventory[ticker]
	if !l.limits.AllowHedged {
		if side == domain.SideYes && inv < 0 {
			return 0
		}
		if side == domain.SideNo && inv > 0 {
			return 0
		}
	}
	held := inv
	if held < 0 {
		held = -held
	}
	room := l.limits.MaxInventory - held
	if room < 0 {
		return 0
	}
	return room
}

// ApplyFill atomically updates cash, inventory, and the daily budget for one
// fill. A fill that would create simultaneous YES and NO holdings (or sell
// more than is held) is rejected with an InvariantError and leaves the ledger
// untouched.
func (l *Ledger) ApplyFill(f domain.Fill) error {
	if !f.Side.Valid() {
		return &InvariantError{Ticker: f.Ticker, Reason: fmt.Sprintf("unknown side %q", f.Side)}
	}
	if f.Qty <= 0 || f.Price <= 0 || f.Price >= 100 {
		return &InvariantError{Ticker: f.Ticker, Reason: fmt.Sprintf("malformed fill price=%d qty=%d", f.Price, f.Qty)}
	}

	inv := l.inventory[f.Ticker]
	delta := f.Qty
	if f.Side == domain.SideNo {
		delta = -delta
	}
	if f.Action == domain.Sell {
		delta = -delta
	}
	next := safe.Add(inv, delta)

	if !l.limits.AllowHedged {
		switch {
		case f.Action == domain.Buy && f.Side == domain.SideYes && inv < 0:
			return &InvariantError{Ticker: f.Ticker, Reason: fmt.Sprintf("buy YES while holding %d NO", -inv)}
		case f.Action == domain.Buy && f.Side == domain.SideNo && inv > 0:
			return &InvariantError{Ticker: f.Ticker, Reason: fmt.Sprintf("buy NO while holding %d YES", inv)}
		case f.Action == domain.Sell && f.Side == domain.SideYes && (inv < f.Qty):
			return &InvariantError{Ticker: f.Ticker, Reason: fmt.Sprintf("sell %d YES with only %d held", f.Qty, inv)}
		case f.Action == domain.Sell && f.Side == domain.SideNo && (-inv < f.Qty):
			return &InvariantError{Ticker: f.Ticker, Reason: fmt.Sprintf("sell %d NO with only %d held", f.Qty, -inv)}
		}
	}

	held := next
	if held < 0 {
		held = -held
	}
	if f.Action == domain.Buy && held > l.limits.MaxInventory {
		return &InvariantError{Ticker: f.Ticker, Reason: fmt.Sprintf("inventory %d over cap %d", held, l.limits.MaxInventory)}
	}

	fee := domain.ConvexFee(f.Price, f.Qty)
	if f.Action == domain.Buy {
		cost := safe.Add(f.Notional(), fee)
		if cost > l.cash {
			return &InvariantError{Ticker: f.Ticker, Reason: fmt.Sprintf("cost %d over cash %d", cost, l.cash)}
		}
		l.cash = safe.Sub(l.cash, cost)
		l.dailySpent = safe.Add(l.dailySpent, cost)
	} else {
		proceeds := safe.Sub(f.Notional(), fee)
		if proceeds < 0 {
			proceeds = 0
		}
		l.cash = safe.Add(l.cash, proceeds)
	}

	if next == 0 {
		delete(l.inventory, f.Ticker)
	} else {
		l.inventory[f.Ticker] = next
	}
	return nil
}

// Settle converts held inventory on a ticker into a cash payout at the final
// YES value (cents per contract). Credited at most once per ticker; repeat
// calls are no-ops. Returns the payout applied.
func (l *Ledger) Settle(ticker string, yesValue domain.Cents) domain.Cents {
	if _, done := l.settled[ticker]; done {
		return 0
	}
	inv := l.inventory[ticker]
	if inv == 0 {
		return 0
	}

	var payout domain.Cents
	if inv > 0 {
		payout = safe.Mul(inv, yesValue)
	} else {
		payout = safe.Mul(-inv, safe.Sub(100, yesValue))
	}
	l.cash = safe.Add(l.cash, payout)
	l.settled[ticker] = payout
	delete(l.inventory, ticker)
	return payout
}

// SettledPayout returns the payout already credited for a ticker, if any.
func (l *Ledger) SettledPayout(ticker string) (domain.Cents, bool) {
	p, ok := l.settled[ticker]
	return p, ok
}

// Equity marks the ledger to market: cash plus inventory valued at the given
// last YES mids. Tickers without a known mid contribute nothing.
func (l *Ledger) Equity(lastMids map[string]domain.Cents) domain.Cents {
	eq := l.cash
	for tkr, inv := range l.inventory {
		mid, ok := lastMids[tkr]
		if !ok || mid <= 0 {
			continue
		}
		if inv > 0 {
			eq = safe.Add(eq, safe.Mul(inv, mid))
		} else {
			eq = safe.Add(eq, safe.Mul(-inv, safe.Sub(100, mid)))
		}
	}
	return eq
}
