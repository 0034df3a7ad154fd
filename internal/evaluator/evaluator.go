package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alwinjoseph/jobquest/internal/model"
	"github.com/alwinjoseph/jobquest/internal/ratelimit"
)

// staleGrace is how far before an alert's last check a posting may be
// dated and still be delivered. Covers clock skew between the source's
// relative timestamps and our checkpoint times.
const staleGrace = 5 * time.Minute

// Evaluator owns the full evaluation cycle for a single alert:
// crawl → filter → dedup → stale-check → notify → checkpoint.
type Evaluator struct {
	crawler  model.Crawler
	filter   model.RelevanceFilter
	ledger   model.Ledger
	alerts   model.AlertStore
	notifier model.Notifier
	pacer    *ratelimit.Pacer
	logger   *slog.Logger
	maxPages int

	now func() time.Time
}

// NewEvaluator creates an evaluator wired with all its dependencies.
// pacer spaces outbound notifications to respect per-chat messaging limits.
// maxPages bounds the crawl depth per cycle; 0 means crawl to the source's
// pagination ceiling.
func NewEvaluator(
	crawler model.Crawler,
	filter model.RelevanceFilter,
	ledger model.Ledger,
	alerts model.AlertStore,
	notifier model.Notifier,
	pacer *ratelimit.Pacer,
	logger *slog.Logger,
	maxPages int,
) *Evaluator {
	return &Evaluator{
		crawler:  crawler,
		filter:   filter,
		ledger:   ledger,
		alerts:   alerts,
		notifier: notifier,
		pacer:    pacer,
		logger:   logger,
		maxPages: maxPages,
		now:      time.Now,
	}
}

// Evaluate runs one cycle for alert. Crawl and filter failures degrade to
// an empty or partial candidate set; the checkpoint is always advanced.
func (e *Evaluator) Evaluate(ctx context.Context, alert model.Alert) error {
	candidates := e.gather(ctx, alert)

	seenIDs, err := e.ledger.SeenIdentities(alert.ChatID)
	if err != nil {
		return fmt.Errorf("evaluating alert %d: %w", alert.ID, err)
	}
	seenPairs, err := e.ledger.SeenCanonicalPairs(alert.ChatID)
	if err != nil {
		return fmt.Errorf("evaluating alert %d: %w", alert.ID, err)
	}

	sent := 0
	for _, p := range candidates {
		if _, dup := seenIDs[p.Identity]; dup {
			continue
		}
		pair := model.CanonicalPair{Title: p.CanonicalTitle, Company: p.CanonicalCompany}
		if _, dup := seenPairs[pair]; dup {
			continue
		}
		if e.isStale(alert, p) {
			continue
		}

		if err := e.pacer.Wait(ctx); err != nil {
			return fmt.Errorf("evaluating alert %d: %w", alert.ID, err)
		}

		if err := e.notifier.Notify(alert, p); err != nil {
			// No ledger record on failed delivery; the posting is
			// retried next cycle.
			e.logger.Warn("notification failed",
				"alert_id", alert.ID,
				"identity", p.Identity,
				"error", err,
			)
			continue
		}

		if err := e.ledger.InsertSeen(e.record(alert, p)); err != nil {
			e.logger.Error("recording sent job failed",
				"alert_id", alert.ID,
				"identity", p.Identity,
				"error", err,
			)
		}

		// Later candidates in this cycle must not double-fire for the
		// same chat.
		seenIDs[p.Identity] = struct{}{}
		seenPairs[pair] = struct{}{}
		sent++
	}

	if err := e.alerts.TouchLastChecked(alert.ID, e.now()); err != nil {
		return fmt.Errorf("evaluating alert %d: %w", alert.ID, err)
	}

	e.logger.Info("evaluated alert",
		"alert_id", alert.ID,
		"chat_id", alert.ChatID,
		"keywords", alert.Keywords,
		"candidates", len(candidates),
		"sent", sent,
	)
	return nil
}

// PopulateBaseline runs one crawl+filter pass for a freshly created alert
// and records every result as already seen, without notifying. The
// subscriber's first real cycle then reports only postings that appear
// afterward. Returns the number of ledger rows written.
func (e *Evaluator) PopulateBaseline(ctx context.Context, alert model.Alert) (int, error) {
	postings, err := e.crawler.Crawl(ctx, e.query(alert))
	if err != nil {
		return 0, fmt.Errorf("baseline for alert %d: %w", alert.ID, err)
	}
	postings = e.filter.Filter(ctx, postings, alert.Keywords)

	inserted := 0
	for _, p := range postings {
		if err := e.ledger.InsertSeen(e.record(alert, p)); err != nil {
			return inserted, fmt.Errorf("baseline for alert %d: %w", alert.ID, err)
		}
		inserted++
	}

	if err := e.alerts.TouchLastChecked(alert.ID, e.now()); err != nil {
		return inserted, fmt.Errorf("baseline for alert %d: %w", alert.ID, err)
	}

	e.logger.Info("baseline populated", "alert_id", alert.ID, "postings", inserted)
	return inserted, nil
}

// gather crawls and filters, degrading to whatever subset survives.
func (e *Evaluator) gather(ctx context.Context, alert model.Alert) []model.JobPosting {
	postings, err := e.crawler.Crawl(ctx, e.query(alert))
	if err != nil {
		e.logger.Warn("crawl failed", "alert_id", alert.ID, "error", err)
	}
	if len(postings) == 0 {
		return nil
	}
	return e.filter.Filter(ctx, postings, alert.Keywords)
}

func (e *Evaluator) query(alert model.Alert) model.Query {
	return model.Query{
		Keywords: alert.Keywords,
		Location: alert.Location,
		Filters:  alert.Filters,
		MaxPages: e.maxPages,
	}
}

// isStale reports whether p predates the alert's previous check by more
// than the grace window. Postings with unparseable dates are never stale.
func (e *Evaluator) isStale(alert model.Alert, p model.JobPosting) bool {
	if alert.LastChecked == nil || p.PostedAt == nil {
		return false
	}
	return p.PostedAt.Before(alert.LastChecked.Add(-staleGrace))
}

func (e *Evaluator) record(alert model.Alert, p model.JobPosting) model.SeenRecord {
	return model.SeenRecord{
		AlertID:          alert.ID,
		ChatID:           alert.ChatID,
		Link:             p.Link,
		Identity:         p.Identity,
		Title:            p.Title,
		Company:          p.Company,
		CanonicalTitle:   p.CanonicalTitle,
		CanonicalCompany: p.CanonicalCompany,
		SentAt:           e.now(),
	}
}
