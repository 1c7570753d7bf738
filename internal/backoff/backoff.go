// Package backoff computes reconnect delays for the streaming channel:
// exponential growth with uniform jitter, capped at a maximum.
package backoff

import (
	"math/rand"
	"time"
)

// Delay returns the wait before reconnect attempt number attempt (0-based).
// The base delay is initial * multiplier^attempt, capped at max, with up to
// jitter (a fraction in [0,1]) of uniform random spread added on top.
func Delay(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Cap the exponent so the float math cannot overflow into negatives.
	if attempt > 30 {
		attempt = 30
	}

	d := time.Duration(float64(initial) * pow(multiplier, attempt))
	if d < 0 || d > max {
		d = max
	}

	jitter = clamp(jitter)
	if jitter > 0 {
		extra := time.Duration(float64(d) * jitter * rand.Float64())
		if d+extra > max {
			d = max
		} else {
			d += extra
		}
	}
	return d
}

func clamp(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
