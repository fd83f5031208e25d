package domain

import (
	"strings"
	"sync"
	"time"
)

// Markets settle on the exchange's calendar, which is US Eastern time.
// Day-boundary budget resets and market end times all use this location.

const (
	// marketEndHour: a market for date D stops trading at 00:00 ET on D+1.
	marketEndHour = 0
	// settleHour: positions pay out at 01:00 ET on D+1.
	settleHour = 1
)

var (
	exchangeLoc  *time.Location
	exchangeOnce sync.Once
)

// ExchangeLocation returns the exchange-local time zone.
func ExchangeLocation() *time.Location {
	exchangeOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			// tzdata missing on the host; fall back to fixed EST.
			loc = time.FixedZone("EST", -5*3600)
		}
		exchangeLoc = loc
	})
	return exchangeLoc
}

// TradingDay returns the exchange-local calendar date of t, formatted
// as 2006-01-02. Used as the daily-budget reset key.
func TradingDay(t time.Time) string {
	return t.In(ExchangeLocation()).Format("2006-01-02")
}

// ParseMarketDate extracts the market date embedded in a ticker such as
// KXHIGHNY-25DEC04-B49.5. The date segment is 7 chars: YYMONDD.
func ParseMarketDate(ticker string) (time.Time, bool) {
	for _, part := range strings.Split(strings.TrimSpace(ticker), "-") {
		if len(part) != 7 {
			continue
		}
		d, err := time.ParseInLocation("06Jan02", canonicalMonthCase(part), ExchangeLocation())
		if err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// canonicalMonthCase rewrites 25DEC04 as 25Dec04 so time.Parse accepts it.
func canonicalMonthCase(s string) string {
	if len(s) != 7 {
		return s
	}
	return s[:2] + strings.ToUpper(s[2:3]) + strings.ToLower(s[3:5]) + s[5:]
}

// MarketEndTime returns the instant the market stops trading, or false
// when the ticker carries no parseable date.
func MarketEndTime(ticker string) (time.Time, bool) {
	d, ok := ParseMarketDate(ticker)
	if !ok {
		return time.Time{}, false
	}
	return d.AddDate(0, 0, 1).Add(time.Duration(marketEndHour) * time.Hour), true
}

// SettleTime returns the instant held positions pay out.
func SettleTime(ticker string) (time.Time, bool) {
	d, ok := ParseMarketDate(ticker)
	if !ok {
		return time.Time{}, false
	}
	return d.AddDate(0, 0, 1).Add(time.Duration(settleHour) * time.Hour), true
}

// MarketLive reports whether the ticker's market is still trading at now.
// Tickers without an embedded date are treated as always live.
func MarketLive(ticker string, now time.Time) bool {
	end, ok := MarketEndTime(ticker)
	if !ok {
		return true
	}
	return now.Before(end)
}

// SettleValue freezes the final YES value from the last known mid:
// snap to 100 at >= 99, to 0 at <= 1, else the mid itself.
func SettleValue(lastMid Cents) (Cents, bool) {
	if lastMid <= 0 {
		return 0, false
	}
	if lastMid >= 99 {
		return 100, true
	}
	if lastMid <= 1 {
		return 0, true
	}
	return lastMid, true
}
