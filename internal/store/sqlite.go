package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alwinjoseph/jobquest/internal/model"
)

// SQLiteStore persists alerts, the sent-jobs dedup ledger, and per-chat
// settings in a single SQLite database. It implements model.AlertStore
// and model.Ledger.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id      INTEGER NOT NULL,
	keywords     TEXT NOT NULL,
	location     TEXT NOT NULL,
	filters      TEXT NOT NULL DEFAULT '{}',
	is_active    INTEGER NOT NULL DEFAULT 1,
	last_checked TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sent_jobs (
	alert_id          INTEGER NOT NULL REFERENCES alerts(id) ON DELETE CASCADE,
	chat_id           INTEGER NOT NULL,
	job_link          TEXT NOT NULL,
	job_id            TEXT NOT NULL,
	job_title         TEXT NOT NULL,
	company           TEXT NOT NULL,
	canonical_title   TEXT NOT NULL,
	canonical_company TEXT NOT NULL,
	sent_at           TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_alert_jobid ON sent_jobs(alert_id, job_id);
CREATE INDEX IF NOT EXISTS idx_chat_jobid ON sent_jobs(chat_id, job_id);
CREATE INDEX IF NOT EXISTS idx_canonical ON sent_jobs(chat_id, canonical_title, canonical_company);

CREATE TABLE IF NOT EXISTS user_settings (
	chat_id  INTEGER PRIMARY KEY,
	timezone TEXT
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	// Cascading delete of ledger rows relies on foreign keys being on.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// CreateAlert inserts an alert and returns its id.
func (s *SQLiteStore) CreateAlert(a model.Alert) (int64, error) {
	filters, err := json.Marshal(a.Filters)
	if err != nil {
		return 0, fmt.Errorf("marshaling filters: %w", err)
	}

	res, err := s.db.Exec(
		"INSERT INTO alerts (chat_id, keywords, location, filters, is_active) VALUES (?, ?, ?, ?, ?)",
		a.ChatID, a.Keywords, a.Location, string(filters), boolToInt(a.IsActive),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading alert id: %w", err)
	}
	return id, nil
}

const alertColumns = "id, chat_id, keywords, location, filters, is_active, last_checked"

// AlertByID fetches a single alert.
func (s *SQLiteStore) AlertByID(id int64) (model.Alert, error) {
	row := s.db.QueryRow("SELECT "+alertColumns+" FROM alerts WHERE id = ?", id)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return model.Alert{}, fmt.Errorf("alert %d not found", id)
	}
	if err != nil {
		return model.Alert{}, fmt.Errorf("fetching alert %d: %w", id, err)
	}
	return a, nil
}

// AlertsForChat returns all alerts belonging to a chat, oldest first.
func (s *SQLiteStore) AlertsForChat(chatID int64) ([]model.Alert, error) {
	rows, err := s.db.Query("SELECT "+alertColumns+" FROM alerts WHERE chat_id = ? ORDER BY id", chatID)
	if err != nil {
		return nil, fmt.Errorf("querying alerts for chat %d: %w", chatID, err)
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// ActiveAlerts returns every alert with is_active set, oldest first.
func (s *SQLiteStore) ActiveAlerts() ([]model.Alert, error) {
	rows, err := s.db.Query("SELECT " + alertColumns + " FROM alerts WHERE is_active = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying active alerts: %w", err)
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// SetActive pauses or resumes an alert.
func (s *SQLiteStore) SetActive(id int64, active bool) error {
	res, err := s.db.Exec("UPDATE alerts SET is_active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("updating alert %d active state: %w", id, err)
	}
	return requireRow(res, id)
}

// UpdateFilters replaces an alert's filter spec.
func (s *SQLiteStore) UpdateFilters(id int64, f model.FilterSpec) error {
	filters, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling filters: %w", err)
	}
	res, err := s.db.Exec("UPDATE alerts SET filters = ? WHERE id = ?", string(filters), id)
	if err != nil {
		return fmt.Errorf("updating alert %d filters: %w", id, err)
	}
	return requireRow(res, id)
}

// DeleteAlert removes the alert; its ledger rows go with it via the
// foreign-key cascade.
func (s *SQLiteStore) DeleteAlert(id int64) error {
	res, err := s.db.Exec("DELETE FROM alerts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting alert %d: %w", id, err)
	}
	return requireRow(res, id)
}

// TouchLastChecked records the end of an evaluation cycle.
func (s *SQLiteStore) TouchLastChecked(id int64, t time.Time) error {
	res, err := s.db.Exec("UPDATE alerts SET last_checked = ? WHERE id = ?", t.UTC(), id)
	if err != nil {
		return fmt.Errorf("updating alert %d last_checked: %w", id, err)
	}
	return requireRow(res, id)
}

// SeenIdentities returns every job identity already sent to a chat,
// across all of its alerts.
func (s *SQLiteStore) SeenIdentities(chatID int64) (map[string]struct{}, error) {
	rows, err := s.db.Query("SELECT job_id FROM sent_jobs WHERE chat_id = ?", chatID)
	if err != nil {
		return nil, fmt.Errorf("querying seen identities for chat %d: %w", chatID, err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning seen identity: %w", err)
		}
		seen[id] = struct{}{}
	}
	return seen, rows.Err()
}

// SeenCanonicalPairs returns every (canonical title, canonical company)
// pair already sent to a chat.
func (s *SQLiteStore) SeenCanonicalPairs(chatID int64) (map[model.CanonicalPair]struct{}, error) {
	rows, err := s.db.Query("SELECT canonical_title, canonical_company FROM sent_jobs WHERE chat_id = ?", chatID)
	if err != nil {
		return nil, fmt.Errorf("querying seen pairs for chat %d: %w", chatID, err)
	}
	defer rows.Close()

	seen := make(map[model.CanonicalPair]struct{})
	for rows.Next() {
		var p model.CanonicalPair
		if err := rows.Scan(&p.Title, &p.Company); err != nil {
			return nil, fmt.Errorf("scanning seen pair: %w", err)
		}
		seen[p] = struct{}{}
	}
	return seen, rows.Err()
}

// InsertSeen records a notified posting. A conflict on (alert_id, job_id)
// is silently ignored: the ledger is idempotent.
func (s *SQLiteStore) InsertSeen(rec model.SeenRecord) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO sent_jobs
		 (alert_id, chat_id, job_link, job_id, job_title, company, canonical_title, canonical_company, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.AlertID, rec.ChatID, rec.Link, rec.Identity, rec.Title, rec.Company,
		rec.CanonicalTitle, rec.CanonicalCompany, rec.SentAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording sent job %s for alert %d: %w", rec.Identity, rec.AlertID, err)
	}
	return nil
}

// CountSent returns how many postings the ledger holds for an alert.
func (s *SQLiteStore) CountSent(alertID int64) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sent_jobs WHERE alert_id = ?", alertID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting sent jobs for alert %d: %w", alertID, err)
	}
	return count, nil
}

// SentHistory returns up to limit ledger rows for an alert, newest first.
func (s *SQLiteStore) SentHistory(alertID int64, limit int) ([]model.SeenRecord, error) {
	rows, err := s.db.Query(
		`SELECT alert_id, chat_id, job_link, job_id, job_title, company, canonical_title, canonical_company, sent_at
		 FROM sent_jobs WHERE alert_id = ? ORDER BY sent_at DESC, rowid DESC LIMIT ?`,
		alertID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sent history for alert %d: %w", alertID, err)
	}
	defer rows.Close()

	var records []model.SeenRecord
	for rows.Next() {
		var rec model.SeenRecord
		if err := rows.Scan(&rec.AlertID, &rec.ChatID, &rec.Link, &rec.Identity, &rec.Title,
			&rec.Company, &rec.CanonicalTitle, &rec.CanonicalCompany, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("scanning sent history row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SetTimezone stores a chat's display timezone, replacing any previous value.
func (s *SQLiteStore) SetTimezone(chatID int64, tz string) error {
	_, err := s.db.Exec(
		"INSERT INTO user_settings (chat_id, timezone) VALUES (?, ?) ON CONFLICT(chat_id) DO UPDATE SET timezone = excluded.timezone",
		chatID, tz,
	)
	if err != nil {
		return fmt.Errorf("setting timezone for chat %d: %w", chatID, err)
	}
	return nil
}

// Timezone returns a chat's display timezone, or "" when unset.
func (s *SQLiteStore) Timezone(chatID int64) (string, error) {
	var tz sql.NullString
	err := s.db.QueryRow("SELECT timezone FROM user_settings WHERE chat_id = ?", chatID).Scan(&tz)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("fetching timezone for chat %d: %w", chatID, err)
	}
	return tz.String, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (model.Alert, error) {
	var (
		a           model.Alert
		filters     string
		isActive    int
		lastChecked sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.ChatID, &a.Keywords, &a.Location, &filters, &isActive, &lastChecked); err != nil {
		return model.Alert{}, err
	}
	if err := json.Unmarshal([]byte(filters), &a.Filters); err != nil {
		return model.Alert{}, fmt.Errorf("unmarshaling filters: %w", err)
	}
	a.IsActive = isActive != 0
	if lastChecked.Valid {
		t := lastChecked.Time.UTC()
		a.LastChecked = &t
	}
	return a, nil
}

func collectAlerts(rows *sql.Rows) ([]model.Alert, error) {
	var alerts []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("alert %d not found", id)
	}
	return nil
}
