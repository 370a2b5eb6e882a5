package extractor

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
)

const extractEndpoint = "/extract"

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Client calls the external structured-extraction service. All failures
// degrade to domain.ErrExtractionUnavailable / ErrExtractionLowConfidence so
// the state machine can fall back deterministically; nothing panics past this
// boundary.
type Client struct {
	cfg        *Config
	HTTPClient *http.Client
	Log        *slog.Logger
}

func NewClient(cfg *Config, log *slog.Logger) *Client {
	transport := &http.Transport{}

	if cfg.ShouldSkipSSL() {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &Client{
		cfg: cfg,
		HTTPClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout(),
		},
		Log: log,
	}
}

func (c *Client) buildURL() string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + extractEndpoint
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ApiKey)
	}
}

// Extract sends the raw message plus conversation context and interprets the
// structured answer.
func (c *Client) Extract(ctx context.Context, query string, previousContext string) (*domain.ExtractionResult, error) {
	jsonData, err := json.Marshal(extractRequest{
		Query:   query,
		Context: previousContext,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrExtractionUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrExtractionUnavailable, err)
	}

	c.setHeaders(httpReq)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		c.Log.Debug("extraction request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrExtractionUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.Log.Debug("extraction service returned non-200 status",
			"status_code", resp.StatusCode,
			"body_preview", truncateString(string(body), 200),
		)
		return nil, fmt.Errorf("%w: status %d", domain.ErrExtractionUnavailable, resp.StatusCode)
	}

	result, err := ParseResponse(body)
	if err != nil {
		c.Log.Debug("failed to parse extraction response",
			"error", err,
			"body_preview", truncateString(string(body), 200),
		)
		return nil, err
	}

	if !result.Successful() {
		c.Log.Debug("extraction below confidence threshold",
			"confidence", result.Confidence,
		)
		return nil, fmt.Errorf("%w: %.2f", domain.ErrExtractionLowConfidence, result.Confidence)
	}

	return result, nil
}

// ParseResponse validates the service payload into a domain result. The model
// sometimes wraps JSON in markdown fences; normalize before parsing.
func ParseResponse(body []byte) (*domain.ExtractionResult, error) {
	normalized := NormalizeModelOutput(string(body))

	var resp extractResponse
	if err := json.Unmarshal([]byte(normalized), &resp); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", domain.ErrExtractionUnavailable, err)
	}

	result := &domain.ExtractionResult{
		Name:            trimPtr(resp.Name),
		Lastname:        trimPtr(resp.Lastname),
		City:            trimPtr(resp.City),
		State:           trimPtr(resp.State),
		AcceptsTerms:    resp.AcceptsTerms,
		ReferredByPhone: trimPtr(resp.ReferredByPhone),
		ReferralCode:    trimPtr(resp.ReferralCode),
		PreviousValue:   trimPtr(resp.PreviousValue),
		Confidence:      resp.Confidence,
		TonePrefix:      trimPtr(resp.TonePrefix),
	}

	if resp.Correction != nil && *resp.Correction {
		result.IsCorrection = true
	}

	if resp.Clarification != nil {
		switch {
		case resp.Clarification.City != nil && *resp.Clarification.City != "":
			result.Clarification = &domain.Clarification{
				Slot:   domain.ClarificationSlotCity,
				Prompt: *resp.Clarification.City,
			}
		case resp.Clarification.Other != nil && *resp.Clarification.Other != "":
			result.Clarification = &domain.Clarification{
				Slot:   domain.ClarificationSlotOther,
				Prompt: *resp.Clarification.Other,
			}
		}
	}

	return result, nil
}

// NormalizeModelOutput strips markdown fences and surrounding noise from a
// model answer so it parses as plain JSON.
func NormalizeModelOutput(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Some models prepend prose before the JSON object.
	if !strings.HasPrefix(s, "{") {
		if idx := strings.Index(s, "{"); idx != -1 {
			s = s[idx:]
		}
	}
	if !strings.HasSuffix(s, "}") {
		if idx := strings.LastIndex(s, "}"); idx != -1 {
			s = s[:idx+1]
		}
	}

	return s
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
