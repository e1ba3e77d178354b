package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTelegramAPI is the Bot API endpoint.
const DefaultTelegramAPI = "https://api.telegram.org"

// telegramResponse is the envelope every Bot API method returns.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Telegram sends messages to one chat through the Bot API's sendMessage.
type Telegram struct {
	apiURL string
	token  string
	chatID string
	client *http.Client
}

// NewTelegram creates a notifier for chatID. An empty apiURL means
// DefaultTelegramAPI.
func NewTelegram(apiURL, token, chatID string, timeout time.Duration) *Telegram {
	if apiURL == "" {
		apiURL = DefaultTelegramAPI
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Telegram{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: timeout},
	}
}

// Notify sends text as-is. The message is delivered when the API answers
// with "ok": true; anything else is a *NotifyError.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	params := url.Values{}
	params.Set("chat_id", t.chatID)
	params.Set("text", text)
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage?%s", t.apiURL, t.token, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &NotifyError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// The request URL carries the bot token; keep it out of logs
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return &NotifyError{Err: fmt.Errorf("failed to send message: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &NotifyError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var result telegramResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return &NotifyError{Err: fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)}
	}

	if !result.OK {
		return &NotifyError{Err: fmt.Errorf("telegram error %d: %s", result.ErrorCode, result.Description)}
	}

	return nil
}
