package gatesession

import (
	"context"
	"math/rand/v2"
	"time"
)

const jitterPercent = 30 // ±30% jitter

// backoff computes retry delays for idempotent store calls.
type backoff struct {
	base time.Duration
	max  time.Duration
}

// delay returns the delay before retry attempt n (0-indexed) with jitter.
func (b backoff) delay(attempt int) time.Duration {
	d := b.base
	for range attempt {
		d *= 2
		if d >= b.max {
			break
		}
	}
	if d > b.max {
		d = b.max
	}
	spread := int64(d) * jitterPercent * 2 / 100
	if spread <= 0 {
		return d
	}
	return d + time.Duration(rand.Int64N(spread)) - time.Duration(spread/2)
}

// sleepWithContext sleeps for d, but returns early if ctx is done.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
