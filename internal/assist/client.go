// Package assist proxies chat-completion requests to an OpenAI-compatible API
// so the browser never sees the API key.
package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/config"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("OpenAI API key not configured")

// Client forwards chat-completion bodies upstream.
type Client struct {
	http        *resty.Client
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	logger      claimer.Logger
}

// NewClientFromConfig creates a Client. A missing API key is not an error
// here; Chat reports it so the rest of the server keeps working.
func NewClientFromConfig(cfg config.OpenAIConfig, logger claimer.Logger) *Client {
	if logger == nil {
		logger = claimer.NewNopLogger()
	}
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:        rc,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Configured reports whether an API key is available.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Chat forwards body to /chat/completions and returns the upstream response
// unchanged. Missing model, max_tokens and temperature are filled from config.
func (c *Client) Chat(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, &claimer.RemoteError{Service: "openai", Status: http.StatusInternalServerError, Detail: ErrNotConfigured.Error(), Err: ErrNotConfigured}
	}

	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &claimer.ValidationError{Field: "body", Reason: "must be a JSON object"}
	}
	if _, ok := req["model"]; !ok && c.model != "" {
		req["model"] = c.model
	}
	if _, ok := req["max_tokens"]; !ok && c.maxTokens > 0 {
		req["max_tokens"] = c.maxTokens
	}
	if _, ok := req["temperature"]; !ok {
		req["temperature"] = c.temperature
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(req).
		Post("/chat/completions")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &claimer.RemoteError{Service: "openai", Status: http.StatusRequestTimeout, Detail: "OpenAI API request timed out", Err: err}
		}
		return nil, &claimer.RemoteError{Service: "openai", Detail: fmt.Sprintf("Failed to connect to OpenAI API: %v", err), Err: err}
	}
	if resp.IsError() {
		c.logger.Warn("openai request failed", "status", resp.StatusCode(), "duration", time.Since(start))
		return nil, &claimer.RemoteError{Service: "openai", Status: resp.StatusCode(), Detail: upstreamDetail(resp)}
	}

	c.logger.Debug("openai request completed", "duration", time.Since(start))
	return json.RawMessage(resp.Body()), nil
}

// upstreamDetail prefers the OpenAI error message over the raw body.
func upstreamDetail(resp *resty.Response) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	if s := strings.TrimSpace(resp.String()); s != "" {
		return s
	}
	return resp.Status()
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
