package fetch

import "time"

// Policy controls how many times a request is attempted and how long to wait
// between attempts.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// Backoff returns the wait before retry k (0-based).
	Backoff func(k int) time.Duration
}

// DefaultPolicy is 3 retries, a 10s per-attempt timeout and 1s/2s/4s waits.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		Timeout:    10 * time.Second,
		Backoff:    ExponentialBackoff,
	}
}

// ExponentialBackoff waits 2^k seconds before retry k. No jitter is applied.
func ExponentialBackoff(k int) time.Duration {
	if k < 0 {
		k = 0
	}
	return time.Duration(1<<k) * time.Second
}

// ConstantBackoff returns a backoff that always waits d.
func ConstantBackoff(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

func (p Policy) backoff(k int) time.Duration {
	if p.Backoff == nil {
		return ExponentialBackoff(k)
	}
	return p.Backoff(k)
}
