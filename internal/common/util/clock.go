package util

import (
	"context"
	"time"
)

// Clock abstracts time for components that sleep between polls and runs
// (readiness waiter, sweep cool-down, tunnel probes), so tests can run them
// without real delays.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is cancelled, whichever comes first.
	Sleep(ctx context.Context, d time.Duration)
}

type DefaultClock struct{}

func (c *DefaultClock) Now() time.Time { return time.Now() }

func (c *DefaultClock) Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// DummyClock reports a fixed time and records requested sleeps without blocking.
type DummyClock struct {
	T     time.Time
	Slept []time.Duration
}

func (c *DummyClock) Now() time.Time { return c.T }

func (c *DummyClock) Sleep(ctx context.Context, d time.Duration) {
	c.Slept = append(c.Slept, d)
}
