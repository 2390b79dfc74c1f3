package engine

import "time"

// BackoffPolicy maps an attempt number (1 for the first retry) to the delay
// applied before that retry starts.
type BackoffPolicy func(attempt int) time.Duration

// FixedBackoff waits the same delay before every retry.
func FixedBackoff(delay time.Duration) BackoffPolicy {
	return func(int) time.Duration {
		return delay
	}
}

// ExponentialBackoff doubles the delay on each retry, capped at max.
func ExponentialBackoff(base, max time.Duration) BackoffPolicy {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}

// NoBackoff retries immediately.
func NoBackoff() BackoffPolicy {
	return func(int) time.Duration {
		return 0
	}
}
