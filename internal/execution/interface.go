// Package execution provides the two execution backends behind one
// interface: an in-process fill simulator and a live exchange adapter. The
// reconciliation logic upstream never branches on which one is plugged in.
package execution

import (
	"context"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
)

// Adapter executes reconciliation actions and reports resulting order state
// and fills back to the engine loop.
type Adapter interface {
	// OnTick lets the adapter observe a new market snapshot and returns the
	// fills produced since the last call for that ticker (resting orders
	// crossed by the new prices, or exchange-reported fills on the live
	// side). Must not block on network I/O.
	OnTick(ctx context.Context, snap domain.MarketSnapshot) []domain.Fill

	// Submit applies a single reconciliation action. Transient failures are
	// retried internally with bounded backoff; a persistent failure is
	// reported in the result with StatusFailed, never as a panic.
	Submit(ctx context.Context, action domain.OrderAction) domain.ActionResult

	// KnownOrders returns the adapter's current view of resting orders for
	// one ticker. The returned slice is a copy the caller may keep.
	KnownOrders(ticker string) []domain.LiveOrder
}

// Restorer is implemented by adapters that can be seeded with open orders
// from an engine snapshot during a warm start.
type Restorer interface {
	Restore(orders []domain.LiveOrder)
}
