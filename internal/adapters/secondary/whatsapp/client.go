package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"
)

const apiTimeout = 30 * time.Second

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Client talks to the WhatsApp Cloud API.
type Client struct {
	cfg        *Config
	HTTPClient *http.Client
	Log        *slog.Logger
}

func NewClient(cfg *Config, log *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		HTTPClient: &http.Client{
			Timeout: apiTimeout,
		},
		Log: log,
	}
}

func (c *Client) buildURL(endpoint string) string {
	baseURL := strings.TrimSuffix(c.cfg.BaseURL, "/")
	return baseURL + "/" + path.Join(c.cfg.ApiVersion, c.cfg.PhoneNumberID, endpoint)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}
}

type textMessageRequest struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textPayload `json:"text"`
}

type textPayload struct {
	Body string `json:"body"`
}

// Send delivers a text message. Recipient is the phone in E.164 form with or
// without the leading '+'; the Cloud API expects bare digits.
func (c *Client) Send(ctx context.Context, recipient string, text string) error {
	reqBody := textMessageRequest{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(recipient, "+"),
		Type:             "text",
		Text:             textPayload{Body: text},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal whatsapp request: %w", err)
	}

	url := c.buildURL("messages")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create whatsapp request: %w", err)
	}

	c.setHeaders(httpReq)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read whatsapp response: %w", err)
	}

	rawJSON := string(body)

	if resp.StatusCode != http.StatusOK {
		c.Log.Debug("whatsapp API returned non-200 status",
			"status_code", resp.StatusCode,
			"body_preview", truncateString(rawJSON, 200),
		)
		return fmt.Errorf("whatsapp API error [status=%d]: %s", resp.StatusCode, truncateString(rawJSON, 500))
	}

	c.Log.Debug("whatsapp message sent",
		"to", reqBody.To,
		"text_length", len(text),
	)

	return nil
}

// VerifyToken matches the webhook verification challenge token.
func (c *Client) VerifyToken(token string) bool {
	return c.cfg.VerifyToken != "" && token == c.cfg.VerifyToken
}
