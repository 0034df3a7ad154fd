package notifier

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alwinjoseph/jobquest/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleAlert() model.Alert {
	return model.Alert{ID: 1, ChatID: 42, Keywords: "golang developer"}
}

func samplePosting() model.JobPosting {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return model.JobPosting{
		Title:      "Backend Engineer <Go>",
		Company:    "Acme & Sons",
		Location:   "Berlin",
		DatePosted: "2 hours ago",
		Link:       "https://example.com/jobs/view/12345",
		PostedAt:   &ts,
	}
}

func TestNotifySendsMessageWithButton(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/bottest-token/sendMessage") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	n := NewTelegramNotifier(srv.URL, "test-token", srv.Client(), discardLogger())
	if err := n.Notify(sampleAlert(), samplePosting()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if got.ChatID != 42 {
		t.Errorf("unexpected chat_id: %d", got.ChatID)
	}
	if got.ParseMode != "HTML" {
		t.Errorf("unexpected parse_mode: %q", got.ParseMode)
	}
	// HTML-special characters in posting fields must be escaped.
	if !strings.Contains(got.Text, "Backend Engineer &lt;Go&gt;") {
		t.Errorf("title not escaped in message: %q", got.Text)
	}
	if !strings.Contains(got.Text, "Acme &amp; Sons") {
		t.Errorf("company not escaped in message: %q", got.Text)
	}
	if !strings.Contains(got.Text, "golang developer") {
		t.Errorf("alert keywords missing from message: %q", got.Text)
	}
	if got.ReplyMarkup == nil || len(got.ReplyMarkup.InlineKeyboard) != 1 {
		t.Fatal("expected one inline keyboard row")
	}
	btn := got.ReplyMarkup.InlineKeyboard[0][0]
	if btn.Text != "View Job" || btn.URL != "https://example.com/jobs/view/12345" {
		t.Errorf("unexpected button: %+v", btn)
	}
}

func TestBuildMessageIncludesAlertLocation(t *testing.T) {
	alert := sampleAlert()
	alert.Location = "Berlin & Brandenburg"

	msg := buildMessage(alert, samplePosting())
	if !strings.Contains(msg, "<b>golang developer</b> in <b>Berlin &amp; Brandenburg</b>") {
		t.Errorf("alert location missing or unescaped in message: %q", msg)
	}

	// An alert without a location keeps the plain header.
	msg = buildMessage(sampleAlert(), samplePosting())
	if strings.Contains(msg, "</b> in <b>") {
		t.Errorf("unexpected location clause in message: %q", msg)
	}
}

func TestNotifyRetriesOnceOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	n := NewTelegramNotifier(srv.URL, "test-token", srv.Client(), discardLogger())
	if err := n.Notify(sampleAlert(), samplePosting()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls (original + retry), got %d", calls.Load())
	}
}

func TestNotifyFailsOnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	n := NewTelegramNotifier(srv.URL, "test-token", srv.Client(), discardLogger())
	err := n.Notify(sampleAlert(), samplePosting())
	if err == nil {
		t.Fatal("expected error for ok=false response, got nil")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("expected API description in error, got: %v", err)
	}
}

func TestSendTestMessageUsesNotifier(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	n := NewTelegramNotifier(srv.URL, "test-token", srv.Client(), discardLogger())
	if err := SendTestMessage(n, 99); err != nil {
		t.Fatalf("SendTestMessage: %v", err)
	}
	if got.ChatID != 99 {
		t.Errorf("unexpected chat_id: %d", got.ChatID)
	}
}
