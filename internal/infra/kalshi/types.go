package kalshi

// Market is one market object from the REST API. Prices are integer cents.
type Market struct {
	Ticker    string `json:"ticker"`
	YesBid    int64  `json:"yes_bid"`
	YesAsk    int64  `json:"yes_ask"`
	NoBid     int64  `json:"no_bid"`
	NoAsk     int64  `json:"no_ask"`
	LastPrice int64  `json:"last_price"`
	Volume    int64  `json:"volume"`
	Status    string `json:"status"` // "active", "closed", "settled"
	Result    string `json:"result"` // "yes" or "no" once settled
}

type marketsResponse struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

type marketResponse struct {
	Market Market `json:"market"`
}

type balanceResponse struct {
	Balance int64 `json:"balance"` // cents
}

// Position is one market position from the portfolio API. Position is
// signed: positive YES contracts, negative NO contracts.
type Position struct {
	Ticker         string `json:"ticker"`
	Position       int64  `json:"position"`
	MarketExposure int64  `json:"market_exposure"`
}

type positionsResponse struct {
	MarketPositions []Position `json:"market_positions"`
	Cursor          string     `json:"cursor"`
}

// Order is one resting or historical order from the portfolio API.
type Order struct {
	OrderID        string `json:"order_id"`
	ClientOrderID  string `json:"client_order_id"`
	Ticker         string `json:"ticker"`
	Side           string `json:"side"`   // "yes" or "no"
	Action         string `json:"action"` // "buy" or "sell"
	YesPrice       int64  `json:"yes_price"`
	NoPrice        int64  `json:"no_price"`
	RemainingCount int64  `json:"remaining_count"`
	Status         string `json:"status"` // "resting", "executed", "canceled"
	CreatedTime    string `json:"created_time"`
}

// Price returns the limit price on the order's own side.
func (o Order) Price() int64 {
	if o.Side == "no" {
		return o.NoPrice
	}
	return o.YesPrice
}

type ordersResponse struct {
	Orders []Order `json:"orders"`
	Cursor string  `json:"cursor"`
}

type orderResponse struct {
	Order Order `json:"order"`
}

// CreateOrderRequest is the body for POST /portfolio/orders. Exactly one
// of YesPrice or NoPrice is set, matching Side.
type CreateOrderRequest struct {
	Action        string `json:"action"`
	Count         int64  `json:"count"`
	Side          string `json:"side"`
	Ticker        string `json:"ticker"`
	Type          string `json:"type"`
	YesPrice      int64  `json:"yes_price,omitempty"`
	NoPrice       int64  `json:"no_price,omitempty"`
	ClientOrderID string `json:"client_order_id"`
}

// AmendOrderRequest is the body for POST /portfolio/orders/{id}/amend.
type AmendOrderRequest struct {
	Count    int64 `json:"count"`
	YesPrice int64 `json:"yes_price,omitempty"`
	NoPrice  int64 `json:"no_price,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
