// Package notify delivers reminder messages to users.
//
// The Telegram client is outbound-only: blockmated never polls or
// receives updates, it only pushes a fixed reminder text when a usage
// window elapses. Delivery is best-effort with no internal retry.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTelegramBaseURL = "https://api.telegram.org"
	defaultTimeout         = 15 * time.Second
)

// TelegramConfig holds the outbound Telegram Bot API client configuration.
type TelegramConfig struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// Telegram sends messages through the Telegram Bot API.
type Telegram struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewTelegram creates an outbound Telegram notifier.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTelegramBaseURL
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	return &Telegram{
		token:   cfg.Token,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// sendMessageRequest is the Bot API sendMessage payload.
type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Notify sends text to chatID. It reports failure and never retries;
// retry policy, if any, belongs to the caller.
func (t *Telegram) Notify(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("notify: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("notify: read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("notify: parse response (%d): %w", resp.StatusCode, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("notify: telegram API error (%d): %s", resp.StatusCode, apiResp.Description)
	}
	return nil
}
