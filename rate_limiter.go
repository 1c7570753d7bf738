package flagrelay

import "golang.org/x/time/rate"

// newDispatchLimiter builds the optional client-side dispatch throttle.
// eventsPerSecond is the sustained rate, burst the instantaneous allowance.
// A denied dispatch fails through the callback with ErrorTypeRateLimit; the
// client never queues or retries on its own.
func newDispatchLimiter(eventsPerSecond float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(eventsPerSecond), burst)
}
