package completion

import (
	"context"
	"fmt"

	"resty.dev/v3"
)

// messagesPath is the completion endpoint, Anthropic messages API shaped.
const messagesPath = "/v1/messages"

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiResponse struct {
	Content []apiContentBlock `json:"content"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// HTTPClient implements Client against an HTTP messages endpoint.
type HTTPClient struct {
	cfg   Config
	resty *resty.Client
}

// NewHTTPClient builds a client from a resolved Config.
func NewHTTPClient(cfg Config) *HTTPClient {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetHeader("content-type", "application/json")
	return &HTTPClient{cfg: cfg, resty: rc}
}

// Close releases the underlying transport.
func (c *HTTPClient) Close() error {
	return c.resty.Close()
}

// Complete implements Client with a single request/response exchange.
// Transport errors, non-2xx statuses, and context expiry all surface as
// errors; the caller decides what a failure means for its node.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	body := apiRequest{
		Model:     c.cfg.Model(req.Tier),
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []apiMessage{{Role: "user", Content: req.Message}},
	}

	var out apiResponse
	var apiErr apiError
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post(messagesPath)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error.Message != "" {
			return "", fmt.Errorf("completion service: %s", apiErr.Error.Message)
		}
		return "", fmt.Errorf("completion service: unexpected status %d", resp.StatusCode())
	}

	text := ""
	for _, block := range out.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
