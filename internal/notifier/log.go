package notifier

import (
	"log/slog"

	"github.com/alwinjoseph/jobquest/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes would-be notifications to the given logger as
// structured messages. Used in dry-run mode.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each posting via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the posting with its alert context. Returns nil (stdout
// logging does not fail).
func (n *LogNotifier) Notify(alert model.Alert, p model.JobPosting) error {
	args := []any{
		"chat_id", alert.ChatID,
		"keywords", alert.Keywords,
		"title", p.Title,
		"company", p.Company,
		"location", p.Location,
		"link", p.Link,
	}
	if p.PostedAt != nil {
		args = append(args, "posted_at", *p.PostedAt)
	}
	n.logger.Info("new job", args...)
	return nil
}
