package infra

import (
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter.
// Thread-safe and suitable for concurrent API calls.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter.
// maxRequests: maximum burst size
// perSecond: refill rate (requests per second)
func NewRateLimiter(maxRequests int, perSecond float64) *RateLimiter {
	return &RateLimiter{
		tokens:     float64(maxRequests),
		maxTokens:  float64(maxRequests),
		refillRate: perSecond,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available.
// Returns immediately if a token is available.
func (r *RateLimiter) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	for r.tokens < 1 {
		waitTime := time.Duration(float64(time.Second) / r.refillRate)
		r.mu.Unlock()
		time.Sleep(waitTime)
		r.mu.Lock()
		r.refill()
	}

	r.tokens--
}

// TryAcquire attempts to acquire a token without blocking.
// Returns true if a token was acquired, false otherwise.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// refill adds tokens based on elapsed time.
// Must be called with mutex held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.tokens += elapsed * r.refillRate

	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}

	r.lastRefill = now
}

// Kalshi basic tier allows roughly 10 read requests and 5 order
// transactions per second. The limiters below stay under those caps.
var (
	kalshiOrderLimiter     *RateLimiter
	kalshiPortfolioLimiter *RateLimiter
	kalshiMarketLimiter    *RateLimiter
	rateLimiterOnce        sync.Once
)

// GetKalshiOrderLimiter returns the rate limiter for order create/amend/
// cancel endpoints. Limit: 5 requests/second with burst of 2.
func GetKalshiOrderLimiter() *RateLimiter {
	rateLimiterOnce.Do(initKalshiLimiters)
	return kalshiOrderLimiter
}

// GetKalshiPortfolioLimiter returns the rate limiter for balance and
// position endpoints. Limit: 8 requests/second with burst of 4.
func GetKalshiPortfolioLimiter() *RateLimiter {
	rateLimiterOnce.Do(initKalshiLimiters)
	return kalshiPortfolioLimiter
}

// GetKalshiMarketLimiter returns the rate limiter for market data
// endpoints. Limit: 8 requests/second with burst of 4.
func GetKalshiMarketLimiter() *RateLimiter {
	rateLimiterOnce.Do(initKalshiLimiters)
	return kalshiMarketLimiter
}

func initKalshiLimiters() {
	// Conservative limits to stay clear of 429 responses
	kalshiOrderLimiter = NewRateLimiter(2, 5)
	kalshiPortfolioLimiter = NewRateLimiter(4, 8)
	kalshiMarketLimiter = NewRateLimiter(4, 8)
}
