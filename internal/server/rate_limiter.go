package server

import (
	"time"

	"golang.org/x/time/rate"
)

// newRateLimiter allows burst messages at once and refills the whole burst
// every interval.
func newRateLimiter(burst int, interval time.Duration) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	every := interval / time.Duration(burst)
	if every <= 0 {
		every = time.Nanosecond
	}
	return rate.NewLimiter(rate.Every(every), burst)
}
