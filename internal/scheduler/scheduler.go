package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alwinjoseph/jobquest/internal/model"
)

// AlertEvaluator runs one evaluation cycle for a single alert.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, alert model.Alert) error
}

// Scheduler owns the main loop: ticks on an interval, loads the active
// alerts, and evaluates each sequentially.
type Scheduler struct {
	alerts    model.AlertStore
	evaluator AlertEvaluator
	interval  time.Duration
	stagger   time.Duration
	logger    *slog.Logger

	// Guards against a tick firing while the previous pass is still
	// working through a long alert list.
	running atomic.Bool
}

// NewScheduler creates a scheduler that evaluates all active alerts at the
// given interval, pausing stagger between alerts to bound the aggregate
// request rate against the source.
func NewScheduler(alerts model.AlertStore, ev AlertEvaluator, interval, stagger time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		alerts:    alerts,
		evaluator: ev,
		interval:  interval,
		stagger:   stagger,
		logger:    logger,
	}
}

// Run starts the evaluation loop. It runs one immediate pass, then ticks on
// the configured interval. It returns nil when ctx is cancelled (graceful
// shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", "interval", s.interval.String())

	// Run one immediate pass.
	s.evaluateAll(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			s.evaluateAll(ctx)
		}
	}
}

// evaluateAll runs one pass over every active alert sequentially. If a
// previous pass is still in flight, the tick is skipped.
func (s *Scheduler) evaluateAll(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous pass still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	alerts, err := s.alerts.ActiveAlerts()
	if err != nil {
		s.logger.Error("loading active alerts failed", "error", err)
		return
	}
	s.logger.Info("starting pass", "alerts", len(alerts))

	for i, alert := range alerts {
		if ctx.Err() != nil {
			return
		}

		if err := s.evaluator.Evaluate(ctx, alert); err != nil {
			s.logger.Error("alert evaluation failed",
				"alert_id", alert.ID,
				"error", err,
			)
		}

		// Pause between alerts to be polite, except after the last one.
		if i < len(alerts)-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.stagger):
			}
		}
	}
}
