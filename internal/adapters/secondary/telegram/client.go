package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"log/slog"
)

const (
	telegramAPIBaseURL = "https://api.telegram.org/bot"
	apiTimeout         = 30 * time.Second
)

// Client talks to the Telegram Bot API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	log        *slog.Logger
}

func NewClient(token string, log *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: apiTimeout,
		},
		baseURL: telegramAPIBaseURL + token,
		token:   token,
		log:     log,
	}
}

// SendMessageRequest is the sendMessage payload.
type SendMessageRequest struct {
	ChatID          int64  `json:"chat_id"`
	Text            string `json:"text"`
	ParseMode       string `json:"parse_mode,omitempty"` // "HTML", "Markdown", "MarkdownV2"
	MessageThreadID *int64 `json:"message_thread_id,omitempty"`
}

// SendMessageResult is the message Telegram echoes back.
type SendMessageResult struct {
	MessageID int64 `json:"message_id"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
	Date int64  `json:"date"`
}

// SendMessageResponse is the full sendMessage API response.
type SendMessageResponse struct {
	APIResponse
	Result SendMessageResult `json:"result"`
}

// Send delivers a plain text message. Recipient is the chat id in string
// form, matching the messaging port.
func (c *Client) Send(ctx context.Context, recipient string, text string) error {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", recipient, err)
	}
	return c.SendMessage(ctx, chatID, text)
}

// SendMessage delivers a plain text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	req := SendMessageRequest{
		ChatID: chatID,
		Text:   text,
	}

	_, err := c.SendMessageWithRequest(ctx, req)
	return err
}

// SendMessageWithRequest executes sendMessage with a full request payload.
func (c *Client) SendMessageWithRequest(ctx context.Context, req SendMessageRequest) (*SendMessageResult, error) {
	url := c.baseURL + "/sendMessage"

	jsonData, err := json.Marshal(req)
	if err != nil {
		c.log.Error("failed to marshal request",
			"error", err,
			"chat_id", req.ChatID,
		)
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		c.log.Error("failed to create request",
			"error", err,
			"chat_id", req.ChatID,
		)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Error("failed to send request to telegram",
			"error", err,
			"chat_id", req.ChatID,
		)
		return nil, fmt.Errorf("failed to send request to telegram: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Error("failed to read response body",
			"error", err,
			"chat_id", req.ChatID,
			"status_code", resp.StatusCode,
		)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp SendMessageResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		c.log.Error("failed to unmarshal response",
			"error", err,
			"chat_id", req.ChatID,
			"status_code", resp.StatusCode,
			"body", string(body),
		)
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !apiResp.OK {
		c.log.Error("telegram API returned error",
			"chat_id", req.ChatID,
			"error_code", apiResp.ErrorCode,
			"description", apiResp.Description,
		)
		return nil, fmt.Errorf("telegram API error [code=%d]: %s", apiResp.ErrorCode, apiResp.Description)
	}

	c.log.Debug("message sent",
		"chat_id", req.ChatID,
		"message_id", apiResp.Result.MessageID,
	)

	return &apiResp.Result, nil
}

// SetWebhook registers the webhook URL with a secret token.
func (c *Client) SetWebhook(ctx context.Context, webhookURL string, secretToken string) error {
	payload := map[string]string{
		"url":          webhookURL,
		"secret_token": secretToken,
	}

	return c.callMethod(ctx, "setWebhook", payload)
}

// DeleteWebhook removes a previously registered webhook.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.callMethod(ctx, "deleteWebhook", map[string]string{})
}

// callMethod executes a simple Bot API method that returns only ok/description.
func (c *Client) callMethod(ctx context.Context, method string, payload interface{}) error {
	url := c.baseURL + "/" + method

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", method, err)
	}

	if !apiResp.OK {
		return fmt.Errorf("telegram API error on %s [code=%d]: %s", method, apiResp.ErrorCode, apiResp.Description)
	}

	return nil
}
