package model

import (
	"context"
	"sort"
	"time"
)

// JobPosting is one listing parsed from a search-results page. It lives for a
// single evaluation cycle; only the derived dedup keys are persisted.
type JobPosting struct {
	Title      string
	Company    string
	Location   string
	DatePosted string     // raw relative-time text, e.g. "3 days ago"
	Link       string     // tracking params already stripped
	PostedAt   *time.Time // best-effort absolute time, nil if DatePosted is unparseable

	// Derived by the canonicalizer at parse time.
	Identity         string
	CanonicalTitle   string
	CanonicalCompany string
}

// Query describes one crawl of the job source.
type Query struct {
	Keywords string
	Location string
	Filters  FilterSpec
	MaxPages int // 0 = crawl until the source runs out
}

// CanonicalPair is the secondary dedup key for same-job-different-link cases.
type CanonicalPair struct {
	Title   string
	Company string
}

// Crawler fetches and parses all result pages for a query, newest first,
// deduplicated within the batch.
type Crawler interface {
	Crawl(ctx context.Context, q Query) ([]JobPosting, error)
}

// RelevanceFilter narrows a posting list to those matching the subscriber's
// keywords. Implementations must return the input unchanged when
// classification is unavailable.
type RelevanceFilter interface {
	Filter(ctx context.Context, postings []JobPosting, keywords string) []JobPosting
}

// Ledger is the persisted record of postings already reported. The unique
// constraint on (alert, identity) lives in storage; in-memory tracking is a
// same-cycle optimization only.
type Ledger interface {
	SeenIdentities(chatID int64) (map[string]struct{}, error)
	SeenCanonicalPairs(chatID int64) (map[CanonicalPair]struct{}, error)
	// InsertSeen is idempotent: a duplicate (alertID, identity) is a no-op.
	InsertSeen(rec SeenRecord) error
}

// Notifier delivers one posting to the subscriber behind an alert.
type Notifier interface {
	Notify(alert Alert, posting JobPosting) error
}

// SortNewestFirst orders postings by best-effort post time descending.
// Postings without a parsed time sort as most recent so an unparseable date
// never buries or suppresses a listing.
func SortNewestFirst(postings []JobPosting) {
	sort.SliceStable(postings, func(i, j int) bool {
		ti, tj := postings[i].PostedAt, postings[j].PostedAt
		switch {
		case ti == nil:
			return tj != nil
		case tj == nil:
			return false
		default:
			return ti.After(*tj)
		}
	})
}
