package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fakeClock advances manually and releases After waiters immediately while
// recording the requested durations.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	wakeup chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestFirstWaitPassesImmediately(t *testing.T) {
	clock := newFakeClock()
	p := NewPacerWithClock(5*time.Second, clock)

	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(clock.slept) != 0 {
		t.Errorf("first Wait slept %v, want no sleep", clock.slept)
	}
}

func TestWaitBlocksForRemainder(t *testing.T) {
	clock := newFakeClock()
	p := NewPacerWithClock(5*time.Second, clock)

	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	clock.advance(2 * time.Second)
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait: %v", err)
	}

	if len(clock.slept) != 1 || clock.slept[0] != 3*time.Second {
		t.Errorf("slept %v, want [3s]", clock.slept)
	}
}

func TestWaitSkipsSleepAfterEnoughElapsed(t *testing.T) {
	clock := newFakeClock()
	p := NewPacerWithClock(5*time.Second, clock)

	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	clock.advance(10 * time.Second)
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if len(clock.slept) != 0 {
		t.Errorf("slept %v, want no sleep", clock.slept)
	}
}

func TestWaitCancelledContext(t *testing.T) {
	p := NewPacer(time.Hour)
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}
