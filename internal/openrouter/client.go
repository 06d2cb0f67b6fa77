// Package openrouter is a minimal chat-completions client for the
// OpenRouter API. Plugins use it for generated replies; callers are
// expected to fall back to canned text when the client is disabled
// or the request fails.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
	"boobot/pkg/constants"
)

const (
	// DefaultBaseURL is the OpenRouter chat completions endpoint
	DefaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	// DefaultModel is the free-tier model used for all generated replies
	DefaultModel = "cognitivecomputations/dolphin3.0-mistral-24b:free"

	refererHeader = "https://github.com/boobot/boobot"
	titleHeader   = "boo_bot"
)

// Message is one turn of a chat completion conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion request. Zero values are omitted
// from the payload so the API defaults apply.
type Options struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Client calls the OpenRouter chat completions API
type Client struct {
	BaseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// New creates an OpenRouter client. An empty model selects DefaultModel.
func New(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		BaseURL: DefaultBaseURL,
		apiKey:  apiKey,
		model:   model,
		client: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
	}
}

// Enabled reports whether an API key is configured
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Model returns the model used for completions
func (c *Client) Model() string {
	return c.model
}

// Chat sends the messages and returns the first choice's content with
// surrounding whitespace and wrapping quotes removed.
func (c *Client) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("openrouter api key not set")
	}

	payload := map[string]interface{}{
		"model":    c.model,
		"messages": messages,
	}
	if opts.MaxTokens > 0 {
		payload["max_tokens"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		payload["temperature"] = opts.Temperature
	}
	if opts.TopP > 0 {
		payload["top_p"] = opts.TopP
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", refererHeader)
	req.Header.Set("X-Title", titleHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"model": c.model,
			"error": err,
		}).Error("openrouter-request-failed")
		return "", fmt.Errorf("openrouter request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		logger.WithFields(logrus.Fields{
			"model":  c.model,
			"status": resp.StatusCode,
		}).Error("openrouter-api-error")
		return "", fmt.Errorf("openrouter api error: status %d: %s", resp.StatusCode, truncateBody(body))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("openrouter response parse failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openrouter returned no choices")
	}

	reply := cleanReply(parsed.Choices[0].Message.Content)

	logger.WithFields(logrus.Fields{
		"model":        c.model,
		"reply_length": len(reply),
	}).Debug("openrouter-completion-received")

	return reply, nil
}

// cleanReply strips whitespace and the quote wrapping models tend to
// put around short generated lines.
func cleanReply(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	s = strings.Trim(s, "'")
	return strings.TrimSpace(s)
}

func truncateBody(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}
