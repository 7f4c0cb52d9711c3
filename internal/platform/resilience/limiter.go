package resilience

import (
	"time"

	"golang.org/x/time/rate"
)

// NewRequestLimiter spaces request starts at least interval apart with no
// bursting. With waitFirst the initial token is spent up front, so the first
// Wait blocks too. A non-positive interval never blocks.
func NewRequestLimiter(interval time.Duration, waitFirst bool) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	if waitFirst {
		limiter.Allow()
	}
	return limiter
}
