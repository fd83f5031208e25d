package domain

import "github.com/Jetpackjules/Kalshi-Trader/pkg/safe"

// ConvexFee is the exchange taker fee for a trade:
// $0.07 * qty * p * (1-p), rounded up to the next cent.
// With p = price/100 this is 7*qty*price*(100-price) / 10000 cents.
func ConvexFee(price Cents, qty int64) Cents {
	if price <= 0 || price >= 100 || qty <= 0 {
		return 0
	}
	raw := safe.Mul(safe.Mul(7, qty), safe.Mul(price, 100-price))
	return safe.CeilDiv(raw, 10000)
}
