package models

import (
	"math/rand"
	"time"
)

// RetryPolicy bounds retries against a provider. The delay grows
// exponentially per attempt with random jitter, capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Backoff returns the delay to wait before the given attempt, where attempt 1
// is the first retry.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay << uint(attempt-1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.BaseDelay > 0 {
		d += time.Duration(rand.Int63n(int64(p.BaseDelay)))
	}
	return d
}
