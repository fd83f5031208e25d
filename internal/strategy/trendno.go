package strategy

import (
	"fmt"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
	"github.com/Jetpackjules/Kalshi-Trader/pkg/safe"
)

// trendNo buys NO once when the NO ask trades inside a configured band,
// betting that an already-unlikely outcome stays unlikely. One entry per
// ticker per trading day, latched when the position appears in inventory
// rather than when the intent is emitted: an intent held back downstream
// (requote throttle, budget filter) re-emerges on the next tick instead
// of burning the day's entry.
type trendNo struct {
	minPrice domain.Cents
	maxPrice domain.Cents
	quantity int64

	entered map[string]bool // ticker+day -> entry fill observed
}

func newTrendNo(params map[string]float64) (Strategy, error) {
	s := &trendNo{
		minPrice: intParam(params, "min_price", 50),
		maxPrice: intParam(params, "max_price", 75),
		quantity: intParam(params, "quantity", 10),
		entered:  make(map[string]bool),
	}
	if err := rejectUnknown(params, "min_price", "max_price", "quantity"); err != nil {
		return nil, err
	}
	if s.minPrice < 1 || s.maxPrice > 99 || s.minPrice >= s.maxPrice {
		return nil, fmt.Errorf("price band [%d, %d] invalid", s.minPrice, s.maxPrice)
	}
	if s.quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", s.quantity)
	}
	return s, nil
}

func (s *trendNo) Name() string { return "trendno" }

func (s *trendNo) Evaluate(snap domain.MarketSnapshot, view LedgerView) []domain.OrderIntent {
	key := snap.Ticker + "|" + domain.TradingDay(snap.Time)
	if view.Inventory != 0 {
		// A held position is the day's entry, whether it came from this
		// strategy or a warm start.
		s.entered[key] = true
		return nil
	}
	if s.entered[key] {
		return nil
	}
	noAsk := snap.NoAsk
	if noAsk <= s.minPrice || noAsk >= s.maxPrice {
		return nil
	}

	// Cross the book: one cent through the ask, capped at 99.
	price := noAsk + 1
	if price > 99 {
		price = 99
	}

	qty := s.quantity
	if qty > view.MaxInventory {
		qty = view.MaxInventory
	}
	unit := safe.Add(price, domain.ConvexFee(price, 1))
	if affordable := safe.Div(view.RemainingBudget, unit); qty > affordable {
		qty = affordable
	}
	if qty <= 0 {
		return nil
	}

	return []domain.OrderIntent{{Ticker: snap.Ticker, Side: domain.SideNo, Price: price, Qty: qty}}
}
