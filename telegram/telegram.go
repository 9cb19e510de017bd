// Package telegram talks to the Telegram Bot API. The API is treated as an
// opaque boundary: send a message, get back a status that classifies into
// success, bad request, or rate limited.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// BadRequestError indicates the API rejected the message content (HTTP 400),
// usually malformed HTML entities.
type BadRequestError struct {
	Description string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("telegram bad request: %s", e.Description)
}

// IsBadRequest checks if an error is a malformed-content rejection.
func IsBadRequest(err error) bool {
	var br *BadRequestError
	return errors.As(err, &br)
}

// RateLimitedError indicates flood control kicked in (HTTP 429).
type RateLimitedError struct {
	RetryAfter  time.Duration
	Description string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("telegram rate limited (retry after %s): %s", e.RetryAfter, e.Description)
}

// IsRateLimited checks if an error is a flood-control rejection.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// BotClient sends messages through the Bot API.
type BotClient struct {
	client  *http.Client
	logger  *slog.Logger
	baseURL string
	token   string
	chatID  string
}

// NewBot creates a client for one bot token and one target chat.
func NewBot(token, chatID string, logger *slog.Logger) *BotClient {
	return &BotClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		baseURL: defaultBaseURL,
		token:   token,
		chatID:  chatID,
	}
}

// sendMessageRequest is the Bot API sendMessage payload.
type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// Send delivers one message to the configured chat. When html is set the
// message is sent with HTML parse mode. Classification of failures is the
// caller's concern; Send itself never retries.
func (b *BotClient) Send(ctx context.Context, text string, html bool) error {
	reqBody := sendMessageRequest{
		ChatID: b.chatID,
		Text:   text,
	}
	if html {
		reqBody.ParseMode = "HTML"
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	b.logger.Info("Bot API request starting",
		"method", "POST",
		"endpoint", "sendMessage",
		"parse_mode", reqBody.ParseMode,
		"text_length", len(text))

	startTime := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/bot"+b.token+"/sendMessage", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			b.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var apiResp apiResponse
	if unmarshalErr := json.Unmarshal(body, &apiResp); unmarshalErr != nil {
		apiResp.Description = string(body)
	}

	b.logger.Info("Bot API request completed",
		"endpoint", "sendMessage",
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"ok", apiResp.OK)

	switch {
	case resp.StatusCode == http.StatusOK && apiResp.OK:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return &BadRequestError{Description: apiResp.Description}
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if apiResp.Parameters != nil {
			retryAfter = time.Duration(apiResp.Parameters.RetryAfter) * time.Second
		}
		return &RateLimitedError{RetryAfter: retryAfter, Description: apiResp.Description}
	default:
		return fmt.Errorf("telegram API HTTP %d: %s", resp.StatusCode, apiResp.Description)
	}
}

// botUser is the subset of the getMe result worth reporting.
type botUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Me verifies the token by asking the API who the bot is.
func (b *BotClient) Me(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		b.baseURL+"/bot"+b.token+"/getMe", http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get me: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			b.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !apiResp.OK {
		return "", fmt.Errorf("telegram API HTTP %d: %s", resp.StatusCode, apiResp.Description)
	}

	var me botUser
	if err := json.Unmarshal(apiResp.Result, &me); err != nil {
		return "", fmt.Errorf("decode bot user: %w", err)
	}
	return me.Username, nil
}
