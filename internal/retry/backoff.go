package retry

import "time"

// ExponentialBackoff returns the delay before the given attempt, doubling
// from base: base * 2^attempt.
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	return base * (1 << attempt)
}
