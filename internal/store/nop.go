package store

import (
	"time"

	"github.com/alwinjoseph/jobquest/internal/model"
)

// NopLedger is a no-op ledger used in dry-run mode. It reports nothing as
// seen and records nothing, so every posting appears new on each cycle.
type NopLedger struct{}

func NewNopLedger() *NopLedger { return &NopLedger{} }

func (l *NopLedger) SeenIdentities(chatID int64) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (l *NopLedger) SeenCanonicalPairs(chatID int64) (map[model.CanonicalPair]struct{}, error) {
	return map[model.CanonicalPair]struct{}{}, nil
}

func (l *NopLedger) InsertSeen(rec model.SeenRecord) error { return nil }

// DryRunAlerts wraps an AlertStore for dry-run mode: reads pass through,
// checkpoint writes are dropped so last_checked stays untouched.
type DryRunAlerts struct {
	model.AlertStore
}

func NewDryRunAlerts(inner model.AlertStore) *DryRunAlerts {
	return &DryRunAlerts{AlertStore: inner}
}

func (a *DryRunAlerts) TouchLastChecked(id int64, t time.Time) error { return nil }
