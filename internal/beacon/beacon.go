// Package beacon reads the NIST Randomness Beacon. The 8-ball style
// commands use its latest pulse to pick a positive or negative answer,
// so outages degrade to the current time instead of failing.
package beacon

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
	"boobot/pkg/constants"
)

// DefaultBaseURL is the NIST Randomness Beacon last-pulse endpoint
const DefaultBaseURL = "https://beacon.nist.gov/beacon/2.0/pulse/last"

// Client fetches pulses from the NIST Randomness Beacon
type Client struct {
	BaseURL string
	client  *http.Client
}

// New creates a beacon client
func New() *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		client: &http.Client{
			Timeout: constants.BeaconHTTPTimeout,
		},
	}
}

// RandomInt returns the latest beacon output value as a big integer.
// When the beacon is unreachable it falls back to the current Unix
// time so callers always get a usable value.
func (c *Client) RandomInt(ctx context.Context) *big.Int {
	value, err := c.fetchPulse(ctx)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"error": err,
		}).Warn("nist-beacon-unreachable-using-fallback")
		return big.NewInt(time.Now().Unix())
	}

	logger.WithFields(logrus.Fields{
		"beacon_bits": value.BitLen(),
	}).Debug("nist-beacon-pulse-received")
	return value
}

// Positive reports whether the latest beacon value is even, which the
// oracle commands read as a positive answer.
func (c *Client) Positive(ctx context.Context) bool {
	return c.RandomInt(ctx).Bit(0) == 0
}

func (c *Client) fetchPulse(ctx context.Context) (*big.Int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("beacon request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("beacon api error: status %d", resp.StatusCode)
	}

	var parsed struct {
		Pulse struct {
			OutputValue string `json:"outputValue"`
		} `json:"pulse"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("beacon response parse failed: %w", err)
	}
	if parsed.Pulse.OutputValue == "" {
		return nil, fmt.Errorf("beacon pulse has no output value")
	}

	value, ok := new(big.Int).SetString(parsed.Pulse.OutputValue, 16)
	if !ok {
		return nil, fmt.Errorf("beacon output value is not hex: %q", parsed.Pulse.OutputValue)
	}
	return value, nil
}
