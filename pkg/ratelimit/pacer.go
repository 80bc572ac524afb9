package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Pacer spaces out outbound work. Pause blocks for the pacer's interval
// or until ctx is cancelled.
type Pacer interface {
	Pause(ctx context.Context) error
}

// PacerFunc adapts a function to the Pacer interface
type PacerFunc func(ctx context.Context) error

// Pause calls f(ctx)
func (f PacerFunc) Pause(ctx context.Context) error {
	return f(ctx)
}

// FixedDelay sleeps the same interval on every Pause
type FixedDelay struct {
	interval time.Duration

	mu     sync.Mutex
	pauses int
}

// NewFixedDelay creates a pacer that sleeps interval per Pause.
// A non-positive interval never sleeps.
func NewFixedDelay(interval time.Duration) *FixedDelay {
	return &FixedDelay{interval: interval}
}

// Pause sleeps the configured interval
func (d *FixedDelay) Pause(ctx context.Context) error {
	d.mu.Lock()
	d.pauses++
	d.mu.Unlock()

	if d.interval <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interval returns the configured delay
func (d *FixedDelay) Interval() time.Duration {
	return d.interval
}

// Pauses returns how many times Pause was called
func (d *FixedDelay) Pauses() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pauses
}

// NoDelay never waits
var NoDelay Pacer = PacerFunc(func(ctx context.Context) error { return ctx.Err() })

// OrNoDelay returns p, or NoDelay when p is nil
func OrNoDelay(p Pacer) Pacer {
	if p == nil {
		return NoDelay
	}
	return p
}
