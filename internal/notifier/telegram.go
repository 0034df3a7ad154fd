package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alwinjoseph/jobquest/internal/model"
)

// DefaultTelegramBaseURL is the Telegram Bot API endpoint.
const DefaultTelegramBaseURL = "https://api.telegram.org"

// Ensure TelegramNotifier implements model.Notifier.
var _ model.Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier delivers job postings to a chat via the Telegram Bot API.
type TelegramNotifier struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTelegramNotifier returns a notifier that sends each posting as a
// Telegram message with an inline "View Job" button.
func NewTelegramNotifier(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// sendMessageRequest mirrors the Bot API sendMessage body.
type sendMessageRequest struct {
	ChatID                int64        `json:"chat_id"`
	Text                  string       `json:"text"`
	ParseMode             string       `json:"parse_mode"`
	DisableWebPagePreview bool         `json:"disable_web_page_preview"`
	ReplyMarkup           *replyMarkup `json:"reply_markup,omitempty"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type inlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// apiResponse mirrors the Bot API envelope.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends one message for the posting to the alert's chat. A single
// 429 is retried once after the server's requested backoff.
func (t *TelegramNotifier) Notify(alert model.Alert, p model.JobPosting) error {
	req := sendMessageRequest{
		ChatID:                alert.ChatID,
		Text:                  buildMessage(alert, p),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
		ReplyMarkup: &replyMarkup{
			InlineKeyboard: [][]inlineButton{
				{{Text: "View Job", URL: p.Link}},
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	resp, err := t.httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to telegram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		secs, _ := strconv.Atoi(retryAfter)
		if secs <= 0 {
			secs = 1
		}
		t.logger.Warn("telegram rate limited, retrying", "retry_after_secs", secs)
		time.Sleep(time.Duration(secs) * time.Second)

		resp2, err := t.httpClient.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post to telegram (retry): %w", err)
		}
		defer resp2.Body.Close()

		if err := checkResponse(resp2); err != nil {
			return fmt.Errorf("telegram retry: %w", err)
		}
		t.logger.Info("telegram message sent", "chat_id", alert.ChatID, "title", p.Title, "retried", true)
		return nil
	}

	if err := checkResponse(resp); err != nil {
		return err
	}
	t.logger.Info("telegram message sent", "chat_id", alert.ChatID, "title", p.Title)
	return nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned %d", resp.StatusCode)
	}
	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("decode telegram response: %w", err)
	}
	if !api.OK {
		return fmt.Errorf("telegram rejected message: %s", api.Description)
	}
	return nil
}

// buildMessage renders the posting as a Telegram HTML message.
func buildMessage(alert model.Alert, p model.JobPosting) string {
	posted := p.DatePosted
	if posted == "" {
		posted = "just detected"
	}

	var buf bytes.Buffer
	if alert.Location != "" {
		fmt.Fprintf(&buf, "🔔 New job for <b>%s</b> in <b>%s</b>\n\n",
			html.EscapeString(alert.Keywords), html.EscapeString(alert.Location))
	} else {
		fmt.Fprintf(&buf, "🔔 New job for <b>%s</b>\n\n", html.EscapeString(alert.Keywords))
	}
	fmt.Fprintf(&buf, "<b>%s</b>\n", html.EscapeString(p.Title))
	fmt.Fprintf(&buf, "🏢 %s\n", html.EscapeString(p.Company))
	if p.Location != "" {
		fmt.Fprintf(&buf, "📍 %s\n", html.EscapeString(p.Location))
	}
	fmt.Fprintf(&buf, "🕐 %s", html.EscapeString(posted))
	return buf.String()
}

// SendTestMessage sends a dummy posting to verify the integration works.
func SendTestMessage(n model.Notifier, chatID int64) error {
	now := time.Now()
	alert := model.Alert{ChatID: chatID, Keywords: "test alert"}
	posting := model.JobPosting{
		Title:      "Test Notification — Integration Verified",
		Company:    "JobQuest",
		Location:   "Everywhere",
		DatePosted: "just now",
		Link:       "https://www.linkedin.com/jobs",
		PostedAt:   &now,
	}
	return n.Notify(alert, posting)
}
