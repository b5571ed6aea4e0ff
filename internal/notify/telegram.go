package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultSendTimeout bounds one sendMessage round trip.
const DefaultSendTimeout = 10 * time.Second

// Telegram delivers messages through the Bot API sendMessage endpoint as a
// form-encoded POST with Markdown parse mode.
type Telegram struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

// TelegramOption configures Telegram.
type TelegramOption func(*Telegram)

// WithBaseURL overrides the API host. Used by tests.
func WithBaseURL(u string) TelegramOption {
	return func(t *Telegram) {
		t.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) TelegramOption {
	return func(t *Telegram) {
		t.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) TelegramOption {
	return func(t *Telegram) {
		t.client = client
	}
}

// NewTelegram creates the transport for one bot token and chat.
func NewTelegram(token, chatID string, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		baseURL: "https://api.telegram.org",
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: DefaultSendTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send performs one sendMessage call. Client-side rejections (bad request,
// bad credentials) come back wrapped in ErrPermanent; everything else is
// left retryable for the Dispatcher.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", msg.Text)
	form.Set("parse_mode", "Markdown")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", ErrPermanent, resp.StatusCode, truncateBody(body))
	default:
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, truncateBody(body))
	}
}

// truncateBody keeps error messages bounded.
func truncateBody(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// Verify interface compliance at compile time.
var _ Notifier = (*Telegram)(nil)
