package domain

import "time"

// ActionType is a reconciliation action kind.
type ActionType string

const (
	ActionPlace  ActionType = "place"
	ActionAmend  ActionType = "amend"
	ActionCancel ActionType = "cancel"
)

// OrderAction is one step of converging live orders to desired orders.
// Time is the tick time the action was decided at, never the wall clock,
// so that replayed runs log identical records.
type OrderAction struct {
	Type    ActionType
	Ticker  string
	Side    Side
	Price   Cents  // place/amend only
	Qty     int64  // place/amend only
	OrderID string // amend/cancel only: the live order being touched
	Time    time.Time
}

// ActionStatus is the adapter-reported outcome of a submitted action.
type ActionStatus string

const (
	// ActionResting means a placed/amended order is now resting unfilled.
	ActionResting ActionStatus = "resting"
	// ActionExecuted means a placed/amended order crossed and filled.
	ActionExecuted ActionStatus = "executed"
	// ActionCanceled means the order was removed.
	ActionCanceled ActionStatus = "canceled"
	// ActionFailed means the action could not be applied after retries.
	ActionFailed ActionStatus = "failed"
)

// ActionResult reports what an execution adapter did with one action.
type ActionResult struct {
	Status  ActionStatus
	OrderID string // exchange or simulator id of the affected order
	Fill    *Fill  // non-nil when the action produced an immediate fill
	Err     string // populated when Status == ActionFailed
}
