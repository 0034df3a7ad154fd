package model

import "time"

// Alert is a subscriber's standing request: notify me once per genuinely new
// posting matching these criteria.
type Alert struct {
	ID          int64
	ChatID      int64
	Keywords    string
	Location    string
	Filters     FilterSpec
	IsActive    bool
	LastChecked *time.Time // nil until the first cycle completes
}

// SeenRecord is one row of the dedup ledger.
type SeenRecord struct {
	AlertID          int64
	ChatID           int64
	Link             string
	Identity         string
	Title            string
	Company          string
	CanonicalTitle   string
	CanonicalCompany string
	SentAt           time.Time
}

// AlertStore persists alerts and their checkpoint timestamps.
type AlertStore interface {
	CreateAlert(a Alert) (int64, error)
	AlertByID(id int64) (Alert, error)
	AlertsForChat(chatID int64) ([]Alert, error)
	ActiveAlerts() ([]Alert, error)
	SetActive(id int64, active bool) error
	UpdateFilters(id int64, f FilterSpec) error
	// DeleteAlert removes the alert and its ledger rows.
	DeleteAlert(id int64) error
	TouchLastChecked(id int64, t time.Time) error
}
