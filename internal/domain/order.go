package domain

import "time"

// Side is one of the two complementary outcomes of a binary contract.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Opposite returns the complementary side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// OrderIntent is a desired resting order produced by a strategy evaluation.
// Intents live for exactly one evaluation cycle: never mutated, only superseded.
type OrderIntent struct {
	Ticker string
	Side   Side
	Price  Cents // limit price in [1, 99]
	Qty    int64 // positive contract count
}

// Notional returns price * qty in cents, the cash exposure of the intent.
func (i OrderIntent) Notional() Cents {
	return i.Price * i.Qty
}

// LiveOrder is a resting order as known to an execution adapter.
// The reconciler only ever reads a per-tick copy of these.
type LiveOrder struct {
	ID       string    `json:"id"`
	Ticker   string    `json:"ticker"`
	Side     Side      `json:"side"`
	Price    Cents     `json:"price"`
	Qty      int64     `json:"qty"` // remaining quantity
	PlacedAt time.Time `json:"placed_at"`
}

// Age returns the time the order has been resting as of now.
func (o LiveOrder) Age(now time.Time) time.Duration {
	return now.Sub(o.PlacedAt)
}

// TradeAction distinguishes buys from sells on a fill.
type TradeAction string

const (
	Buy  TradeAction = "buy"
	Sell TradeAction = "sell"
)

// Fill is the result of an execution action, applied exactly once to the ledger.
type Fill struct {
	Ticker  string      `json:"ticker"`
	Side    Side        `json:"side"`
	Action  TradeAction `json:"action"`
	Price   Cents       `json:"price"`
	Qty     int64       `json:"qty"`
	Time    time.Time   `json:"time"`
	OrderID string      `json:"order_id,omitempty"`
}

// Notional returns price * qty in cents.
func (f Fill) Notional() Cents {
	return f.Price * f.Qty
}
