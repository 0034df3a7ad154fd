package evaluator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alwinjoseph/jobquest/internal/model"
	"github.com/alwinjoseph/jobquest/internal/ratelimit"
)

var evalNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCrawler struct {
	postings []model.JobPosting
	err      error
	calls    int
}

func (f *fakeCrawler) Crawl(_ context.Context, _ model.Query) ([]model.JobPosting, error) {
	f.calls++
	return f.postings, f.err
}

// passFilter keeps everything, like a classifier that judged all relevant.
type passFilter struct{}

func (passFilter) Filter(_ context.Context, postings []model.JobPosting, _ string) []model.JobPosting {
	return postings
}

// memLedger is an in-memory chat-scoped ledger.
type memLedger struct {
	records []model.SeenRecord
}

func (l *memLedger) SeenIdentities(chatID int64) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	for _, r := range l.records {
		if r.ChatID == chatID {
			seen[r.Identity] = struct{}{}
		}
	}
	return seen, nil
}

func (l *memLedger) SeenCanonicalPairs(chatID int64) (map[model.CanonicalPair]struct{}, error) {
	seen := make(map[model.CanonicalPair]struct{})
	for _, r := range l.records {
		if r.ChatID == chatID {
			seen[model.CanonicalPair{Title: r.CanonicalTitle, Company: r.CanonicalCompany}] = struct{}{}
		}
	}
	return seen, nil
}

func (l *memLedger) InsertSeen(rec model.SeenRecord) error {
	for _, r := range l.records {
		if r.AlertID == rec.AlertID && r.Identity == rec.Identity {
			return nil
		}
	}
	l.records = append(l.records, rec)
	return nil
}

type fakeAlertStore struct {
	touched []int64
}

func (s *fakeAlertStore) CreateAlert(model.Alert) (int64, error)        { return 0, nil }
func (s *fakeAlertStore) AlertByID(int64) (model.Alert, error)          { return model.Alert{}, nil }
func (s *fakeAlertStore) AlertsForChat(int64) ([]model.Alert, error)    { return nil, nil }
func (s *fakeAlertStore) ActiveAlerts() ([]model.Alert, error)          { return nil, nil }
func (s *fakeAlertStore) SetActive(int64, bool) error                   { return nil }
func (s *fakeAlertStore) UpdateFilters(int64, model.FilterSpec) error   { return nil }
func (s *fakeAlertStore) DeleteAlert(int64) error                       { return nil }
func (s *fakeAlertStore) TouchLastChecked(id int64, _ time.Time) error {
	s.touched = append(s.touched, id)
	return nil
}

type fakeNotifier struct {
	sent    []string // identities, in delivery order
	failFor map[string]bool
}

func (n *fakeNotifier) Notify(_ model.Alert, p model.JobPosting) error {
	if n.failFor[p.Identity] {
		return errors.New("delivery failed")
	}
	n.sent = append(n.sent, p.Identity)
	return nil
}

func posting(identity, title, company string, postedAt *time.Time) model.JobPosting {
	return model.JobPosting{
		Title:            title,
		Company:          company,
		Location:         "Remote",
		Link:             "https://example.com/jobs/view/" + identity,
		Identity:         identity,
		CanonicalTitle:   title,
		CanonicalCompany: company,
		PostedAt:         postedAt,
	}
}

func newTestEvaluator(crawler *fakeCrawler, ledger *memLedger, alerts *fakeAlertStore, notifier *fakeNotifier) *Evaluator {
	e := NewEvaluator(crawler, passFilter{}, ledger, alerts, notifier, ratelimit.NewPacer(0), discardLogger(), 0)
	e.now = func() time.Time { return evalNow }
	return e
}

func TestEvaluateNotifiesNewPostings(t *testing.T) {
	ts := evalNow.Add(-time.Hour)
	crawler := &fakeCrawler{postings: []model.JobPosting{
		posting("111", "backend engineer", "acme", &ts),
		posting("222", "platform engineer", "globex", &ts),
	}}
	ledger := &memLedger{}
	alerts := &fakeAlertStore{}
	notifier := &fakeNotifier{}
	e := newTestEvaluator(crawler, ledger, alerts, notifier)

	alert := model.Alert{ID: 1, ChatID: 7, Keywords: "engineer"}
	if err := e.Evaluate(context.Background(), alert); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(notifier.sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifier.sent))
	}
	if len(ledger.records) != 2 {
		t.Fatalf("expected 2 ledger records, got %d", len(ledger.records))
	}
	if len(alerts.touched) != 1 || alerts.touched[0] != 1 {
		t.Errorf("expected checkpoint for alert 1, got %v", alerts.touched)
	}
}

func TestEvaluateNeverRenotifiesSeenIdentity(t *testing.T) {
	ts := evalNow.Add(-time.Hour)
	crawler := &fakeCrawler{postings: []model.JobPosting{
		posting("111", "backend engineer", "acme", &ts),
	}}
	ledger := &memLedger{records: []model.SeenRecord{
		{AlertID: 1, ChatID: 7, Identity: "111", CanonicalTitle: "backend engineer", CanonicalCompany: "acme"},
	}}
	alerts := &fakeAlertStore{}
	notifier := &fakeNotifier{}
	e := newTestEvaluator(crawler, ledger, alerts, notifier)

	alert := model.Alert{ID: 1, ChatID: 7, Keywords: "engineer"}
	if err := e.Evaluate(context.Background(), alert); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("expected 0 notifications for seen identity, got %d", len(notifier.sent))
	}
}

func TestEvaluateCrossAlertSingleNotificationPerChat(t *testing.T) {
	// Two alerts on the same chat both surface posting X. The chat must
	// hear about X exactly once.
	ts := evalNow.Add(-time.Hour)
	crawler := &fakeCrawler{postings: []model.JobPosting{
		posting("X", "ai engineer", "acme", &ts),
	}}
	ledger := &memLedger{}
	alerts := &fakeAlertStore{}
	notifier := &fakeNotifier{}
	e := newTestEvaluator(crawler, ledger, alerts, notifier)

	a1 := model.Alert{ID: 1, ChatID: 7, Keywords: "ai"}
	a2 := model.Alert{ID: 2, ChatID: 7, Keywords: "engineer"}
	if err := e.Evaluate(context.Background(), a1); err != nil {
		t.Fatalf("Evaluate a1: %v", err)
	}
	if err := e.Evaluate(context.Background(), a2); err != nil {
		t.Fatalf("Evaluate a2: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected exactly 1 notification across both alerts, got %d", len(notifier.sent))
	}
}

func TestEvaluateSuppressesCanonicalPairDuplicate(t *testing.T) {
	// Same job listed twice under different links in one cycle.
	ts := evalNow.Add(-time.Hour)
	crawler := &fakeCrawler{postings: []model.JobPosting{
		posting("111", "backend engineer", "acme", &ts),
		posting("999", "backend engineer", "acme", &ts),
	}}
	ledger := &memLedger{}
	alerts := &fakeAlertStore{}
	notifier := &fakeNotifier{}
	e := newTestEvaluator(crawler, ledger, alerts, notifier)

	alert := model.Alert{ID: 1, ChatID: 7, Keywords: "engineer"}
	if err := e.Evaluate(context.Background(), alert); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 notification for canonical duplicates, got %d", len(notifier.sent))
	}
}

func TestEvaluateStaleness(t *testing.T) {
	lastChecked := evalNow.Add(-30 * time.Minute)
	stale := lastChecked.Add(-10 * time.Minute)   // well before the window
	inGrace := lastChecked.Add(-2 * time.Minute)  // inside the 5-minute grace
	fresh := lastChecked.Add(10 * time.Minute)

	crawler := &fakeCrawler{postings: []model.JobPosting{
		posting("old", "backend engineer", "acme", &stale),
		posting("grace", "platform engineer", "globex", &inGrace),
		posting("new", "infra engineer", "initech", &fresh),
		posting("undated", "sre", "hooli", nil),
	}}
	ledger := &memLedger{}
	alerts := &fakeAlertStore{}
	notifier := &fakeNotifier{}
	e := newTestEvaluator(crawler, ledger, alerts, notifier)

	alert := model.Alert{ID: 1, ChatID: 7, Keywords: "engineer", LastChecked: &lastChecked}
	if err := e.Evaluate(context.Background(), alert); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(notifier.sent) != 3 {
		t.Fatalf("expected 3 notifications (grace, new, undated), got %d: %v", len(notifier.sent), notifier.sent)
	}
	for _, id := range notifier.sent {
		if id == "old" {
			t.Error("stale posting was delivered")
		}
	}
}

func TestEvaluateFirstCycleHasNoStalenessFilter(t *testing.T) {
	old := evalNow.Add(-72 * time.Hour)
	crawler := &fakeCrawler{postings: []model.JobPosting{
		posting("111", "backend engineer", "acme", &old),
	}}
	ledger := &memLedger{}
	alerts := &fakeAlertStore{}
	notifier := &fakeNotifier{}
	e := newTestEvaluator(crawler, ledger, alerts, notifier)

	// LastChecked nil: nothing is stale yet.
	alert := model.Alert{ID: 1, ChatID: 7, Keywords: "engineer"}
	if err := e.Evaluate(context.Background(), alert); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 notification on first cycle, got %d", len(notifier.sent))
	}
}

func TestEvaluateFailedDeliveryIsRetriedNextCycle(t *testing.T) {
	ts := evalNow.Add(-time.Hour)
	crawler := &fakeCrawler{postings: []model.JobPosting{
		posting("111", "backend engineer", "acme", &ts),
	}}
	ledger := &memLedger{}
	alerts := &fakeAlertStore{}
	notifier := &fakeNotifier{failFor: map[string]bool{"111": true}}
	e := newTestEvaluator(crawler, ledger, alerts, notifier)

	alert := model.Alert{ID: 1, ChatID: 7, Keywords: "engineer"}
	if err := e.Evaluate(context.Background(), alert); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(ledger.records) != 0 {
		t.Fatalf("expected no ledger record for failed delivery, got %d", len(ledger.records))
	}

	// Delivery recovers; the same posting goes out next cycle.
	notifier.failFor = nil
	if err := e.Evaluate(context.Background(), alert); err != nil {
		t.Fatalf("second Evaluate: %v", err)
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != "111" {
		t.Fatalf("expected retried delivery of 111, got %v", notifier.sent)
	}
	if len(ledger.records) != 1 {
		t.Fatalf("expected 1 ledger record after successful retry, got %d", len(ledger.records))
	}
}

func TestEvaluateCrawlFailureStillAdvancesCheckpoint(t *testing.T) {
	crawler := &fakeCrawler{err: errors.New("network down")}
	ledger := &memLedger{}
	alerts := &fakeAlertStore{}
	notifier := &fakeNotifier{}
	e := newTestEvaluator(crawler, ledger, alerts, notifier)

	alert := model.Alert{ID: 5, ChatID: 7, Keywords: "engineer"}
	if err := e.Evaluate(context.Background(), alert); err != nil {
		t.Fatalf("Evaluate should contain crawl failure, got %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("expected no notifications, got %d", len(notifier.sent))
	}
	if len(alerts.touched) != 1 {
		t.Errorf("expected checkpoint despite crawl failure, got %v", alerts.touched)
	}
}

func TestPopulateBaselineInsertsWithoutNotifying(t *testing.T) {
	ts := evalNow.Add(-time.Hour)
	crawler := &fakeCrawler{postings: []model.JobPosting{
		posting("111", "backend engineer", "acme", &ts),
		posting("222", "platform engineer", "globex", &ts),
	}}
	ledger := &memLedger{}
	alerts := &fakeAlertStore{}
	notifier := &fakeNotifier{}
	e := newTestEvaluator(crawler, ledger, alerts, notifier)

	alert := model.Alert{ID: 1, ChatID: 7, Keywords: "engineer"}
	n, err := e.PopulateBaseline(context.Background(), alert)
	if err != nil {
		t.Fatalf("PopulateBaseline: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected baseline of 2, got %d", n)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("baseline must not notify, got %d notifications", len(notifier.sent))
	}

	// With no new upstream postings, the next cycle is silent.
	if err := e.Evaluate(context.Background(), alert); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("expected zero notifications after baseline, got %d", len(notifier.sent))
	}
}
