package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures the exponential-backoff-with-jitter retry loop
// for one Kind. Adapted from the teacher's RetryConfig
// (retry_decorator.go), narrowed to max attempts, base delay, a delay
// ceiling, and a symmetric jitter factor — the teacher's
// BackoffFactor is fixed at 2.0 here since the spec doesn't expose it as
// a knob.
type RetryPolicy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

const backoffFactor = 2.0

// backoffDelay computes the delay before the given attempt (0-indexed),
// applying exponential growth capped at MaxDelay and a uniform
// +/-JitterFactor jitter, mirroring the teacher's calculateDelay.
func (p RetryPolicy) backoffDelay(attempt int, rng *rand.Rand) time.Duration {
	base := float64(p.BaseDelay) * math.Pow(backoffFactor, float64(attempt))
	if base > float64(p.MaxDelay) {
		base = float64(p.MaxDelay)
	}
	jitter := p.JitterFactor * base * (rng.Float64()*2 - 1)
	delay := base + jitter
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// sleep waits for d or returns ctx.Err() if the context is cancelled first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
