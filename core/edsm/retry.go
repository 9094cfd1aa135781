package edsm

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures backoff for transient enrichment failures.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including initial)
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// Multiplier is applied to delay after each retry
	Multiplier float64

	// JitterFactor adds randomness to delays (0.0 to 1.0)
	JitterFactor float64
}

// DefaultRetryPolicy returns sensible defaults for a remote web API.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// NoRetryPolicy disables retries.
func NoRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// calculateDelay computes the delay for a given attempt
func calculateDelay(policy RetryPolicy, attempt int) time.Duration {
	// Exponential backoff: initialDelay * (multiplier ^ (attempt - 1))
	delay := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt-1))

	// Cap at max delay
	if delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}

	// Add jitter
	if policy.JitterFactor > 0 {
		jitter := delay * policy.JitterFactor
		delay = delay - jitter + (rand.Float64() * 2 * jitter)
	}

	return time.Duration(delay)
}
