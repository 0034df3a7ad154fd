// Package ratelimit provides the blocking pacers that keep the pipeline
// polite: page fetch delay, classifier batch delay, outbound message delay,
// and the inter-alert stagger. The clock is injectable so tests run without
// real sleeps.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Clock abstracts time for the pacer.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall-clock implementation used outside tests.
var SystemClock Clock = systemClock{}

// Pacer enforces a minimum delay between consecutive events.
type Pacer struct {
	clock    Clock
	minDelay time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewPacer creates a pacer on the system clock.
func NewPacer(minDelay time.Duration) *Pacer {
	return NewPacerWithClock(minDelay, SystemClock)
}

// NewPacerWithClock creates a pacer on the given clock.
func NewPacerWithClock(minDelay time.Duration, clock Clock) *Pacer {
	return &Pacer{clock: clock, minDelay: minDelay}
}

// Wait blocks until minDelay has elapsed since the previous call. The first
// call passes immediately. Returns an error if ctx is cancelled while
// waiting.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := p.clock.Now()
	if p.last.IsZero() || now.Sub(p.last) >= p.minDelay {
		p.last = now
		p.mu.Unlock()
		return nil
	}
	remaining := p.minDelay - now.Sub(p.last)
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("pacer wait: %w", ctx.Err())
	case <-p.clock.After(remaining):
	}

	p.mu.Lock()
	p.last = p.clock.Now()
	p.mu.Unlock()
	return nil
}
