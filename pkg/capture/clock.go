package capture

import (
	"context"
	"time"
)

// TickerClock ticks at a fixed frame rate.
type TickerClock struct {
	interval time.Duration
}

// NewTickerClock returns a clock ticking fps times per second.
// Non-positive rates fall back to DefaultFrameRate.
func NewTickerClock(fps int) *TickerClock {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return &TickerClock{interval: time.Second / time.Duration(fps)}
}

// Interval returns the time between ticks.
func (c *TickerClock) Interval() time.Duration {
	return c.interval
}

// Wait sleeps for one frame interval.
func (c *TickerClock) Wait(ctx context.Context) error {
	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
