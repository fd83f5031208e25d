package infra

import (
	"time"
)

const (
	backoffBase = 1 * time.Second
	backoffCap  = 60 * time.Second
)

// CalculateBackoff returns the delay before retry number attempt, doubling
// from one second and capped at one minute. Shared by the REST client, the
// websocket worker, and the live tick source so every Kalshi-facing retry
// paces the same way.
func CalculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return backoffBase
	}
	// The cap is reached at attempt 6; clamp before the shift can overflow.
	if attempt > 6 {
		return backoffCap
	}
	d := backoffBase * time.Duration(1<<attempt)
	if d > backoffCap {
		return backoffCap
	}
	return d
}
