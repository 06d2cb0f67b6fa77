// Package memories is the client for the boo_memories chat database
// API. The archive sink stores every message through it; the auth and
// database plugins expose its PIN and stats endpoints as commands.
package memories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
	"boobot/pkg/constants"
)

// APIError carries the HTTP status so callers can map specific
// failures (rate limited, disabled, bad key) to user-facing replies.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("memories api error: status %d: %s", e.StatusCode, e.Body)
}

// StoredMessage is one archived chat message
type StoredMessage struct {
	RoomID      string    `json:"room_id"`
	EventID     string    `json:"event_id"`
	Sender      string    `json:"sender"`
	MessageType string    `json:"message_type"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

// PIN is a room access PIN issued by the API
type PIN struct {
	PIN       string `json:"pin"`
	ExpiresAt string `json:"expires_at"`
}

// Client talks to the boo_memories API
type Client struct {
	BaseURL string
	apiKey  string
	client  *http.Client
}

// New creates a memories client. Trailing slashes are stripped from
// the base URL to prevent double-slash request paths.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
	}
}

// HealthCheck reports whether the API server says it is healthy
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	body, err := c.get(ctx, "/health")
	if err != nil {
		return false, err
	}

	var parsed struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, fmt.Errorf("health response parse failed: %w", err)
	}
	return parsed.Status == "healthy", nil
}

// StoreMessage archives one message
func (c *Client) StoreMessage(ctx context.Context, msg StoredMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if _, err := c.post(ctx, "/messages", data); err != nil {
		logger.WithFields(logrus.Fields{
			"room_id": msg.RoomID,
			"error":   err,
		}).Error("memories-store-message-failed")
		return err
	}
	return nil
}

// Stats returns the raw database statistics document
func (c *Client) Stats(ctx context.Context) (map[string]interface{}, error) {
	body, err := c.get(ctx, "/stats")
	if err != nil {
		return nil, err
	}

	var stats map[string]interface{}
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("stats response parse failed: %w", err)
	}
	return stats, nil
}

// RoomPIN requests an access PIN for a room. Rate limits and disabled
// auth come back as *APIError with the server's status code.
func (c *Client) RoomPIN(ctx context.Context, roomID string) (*PIN, error) {
	logger.WithFields(logrus.Fields{
		"room_id": roomID,
	}).Info("requesting-room-pin")

	body, err := c.post(ctx, "/rooms/"+roomID+"/pin", nil)
	if err != nil {
		return nil, err
	}

	var pin PIN
	if err := json.Unmarshal(body, &pin); err != nil {
		return nil, fmt.Errorf("pin response parse failed: %w", err)
	}
	return &pin, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("memories request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       truncateBody(body),
		}
	}
	return body, nil
}

func truncateBody(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}
