package domain

import "time"

// Cents is a contract price or money amount in integer US cents.
// Contract prices are always in [1, 99]; 0 means "unknown / no quote".
type Cents = int64

// MarketStatus is the lifecycle phase of a market.
type MarketStatus string

const (
	StatusOpen    MarketStatus = "open"
	StatusClosed  MarketStatus = "closed"
	StatusSettled MarketStatus = "settled"
)

// MarketSnapshot is one observation of a single market at a point in time.
// Immutable once produced; the engine consumes one per ticker per tick.
type MarketSnapshot struct {
	Ticker    string       `json:"ticker"`
	Time      time.Time    `json:"time"`
	YesBid    Cents        `json:"yes_bid"`
	YesAsk    Cents        `json:"yes_ask"`
	NoBid     Cents        `json:"no_bid"`
	NoAsk     Cents        `json:"no_ask"`
	LastPrice Cents        `json:"last_price"`
	Volume    int64        `json:"volume"`
	Status    MarketStatus `json:"status"`
}

// BestYesBid returns the direct YES bid, or the bid implied by the NO ask
// (YES bid = 100 - NO ask) when the direct side is missing.
func (s *MarketSnapshot) BestYesBid() Cents {
	if s.YesBid > 0 {
		return s.YesBid
	}
	if s.NoAsk > 0 {
		return 100 - s.NoAsk
	}
	return 0
}

// BestNoBid returns the direct NO bid or the one implied by the YES ask.
func (s *MarketSnapshot) BestNoBid() Cents {
	if s.NoBid > 0 {
		return s.NoBid
	}
	if s.YesAsk > 0 {
		return 100 - s.YesAsk
	}
	return 0
}

// Ask returns the best ask for the given side, 0 if unknown.
func (s *MarketSnapshot) Ask(side Side) Cents {
	if side == SideYes {
		return s.YesAsk
	}
	return s.NoAsk
}

// Mid returns the YES mid price, or 0 when either side is missing.
func (s *MarketSnapshot) Mid() Cents {
	bid := s.BestYesBid()
	if bid <= 0 || s.YesAsk <= 0 {
		return 0
	}
	return (bid + s.YesAsk) / 2
}

// Spread returns yes_ask - yes_bid, or -1 when either side is missing.
func (s *MarketSnapshot) Spread() Cents {
	bid := s.BestYesBid()
	if bid <= 0 || s.YesAsk <= 0 {
		return -1
	}
	return s.YesAsk - bid
}
