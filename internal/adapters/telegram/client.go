// Package telegram is the outbound notification adapter: a thin Bot API
// client that sends text to a chat. The reconciliation loop treats it as
// fire-and-forget; failures are logged, never fatal.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vend-service/vend_service/pkg/logger"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	defaultTimeout = 10 * time.Second
)

// Config represents Telegram Bot API configuration.
type Config struct {
	BotToken       string
	BaseURL        string
	Timeout        time.Duration
	OperatorChatID int64
}

// Client sends messages through the Telegram Bot API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new Telegram Bot API client.
func NewClient(config Config, log *logger.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     log,
	}
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers a text message to the given chat.
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.config.BaseURL, c.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var result sendMessageResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram API error: status %d, %s", resp.StatusCode, result.Description)
	}

	c.logger.Debug("Telegram message sent", "chat_id", chatID)
	return nil
}

// SendOperator delivers a text message to the operator channel.
func (c *Client) SendOperator(ctx context.Context, text string) error {
	if c.config.OperatorChatID == 0 {
		c.logger.Debug("Operator chat not configured, dropping message")
		return nil
	}
	return c.Send(ctx, c.config.OperatorChatID, text)
}
