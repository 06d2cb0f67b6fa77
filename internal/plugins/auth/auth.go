// Package auth issues web-interface access PINs for rooms through the
// boo-memories API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
	"boobot/internal/memories"
	"boobot/internal/plugin"
)

// Plugin owns the pin and getpin commands.
type Plugin struct {
	name        string
	version     string
	description string
	apiKey      string
	api         *memories.Client
	host        plugin.Host
	log         *logrus.Entry
}

// New builds the auth plugin from its manifest. The API endpoint and key
// come from the manifest config with environment fallbacks.
func New(m plugin.Manifest) (plugin.Plugin, error) {
	baseURL := m.String("api_url", envOr("DATABASE_API_URL", envOr("DATABASE_URL", "http://localhost:8000")))
	apiKey := m.String("api_key", envOr("DATABASE_API_KEY", os.Getenv("API_KEY")))

	p := &Plugin{
		name:        m.Name,
		version:     "1.0.0",
		description: "PIN authentication for database access - Request PINs for rooms",
		apiKey:      apiKey,
		api:         memories.New(baseURL, apiKey),
	}
	if m.Version != "" {
		p.version = m.Version
	}
	if m.Description != "" {
		p.description = m.Description
	}
	return p, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (p *Plugin) Name() string        { return p.name }
func (p *Plugin) Version() string     { return p.version }
func (p *Plugin) Description() string { return p.description }

func (p *Plugin) Commands() []string {
	return []string{"pin", "getpin"}
}

// Initialize fails without an API key so the plugin lands in the failed
// map instead of serving commands it cannot complete.
func (p *Plugin) Initialize(ctx context.Context, host plugin.Host) error {
	if p.apiKey == "" {
		return errors.New("DATABASE_API_KEY not configured")
	}
	p.host = host
	p.log = logger.WithField("plugin", p.name)
	p.log.WithField("api", p.api.BaseURL).Info("auth-plugin-initialized")
	return nil
}

func (p *Plugin) HandleCommand(ctx context.Context, inv plugin.Invocation) (string, error) {
	switch inv.Command {
	case "pin", "getpin":
		return p.pinRequest(ctx, inv), nil
	}
	return "", nil
}

func (p *Plugin) Cleanup(ctx context.Context) error {
	p.log.Info("auth-plugin-cleanup-complete")
	return nil
}

func (p *Plugin) pinRequest(ctx context.Context, inv plugin.Invocation) string {
	p.log.WithFields(logrus.Fields{
		"room": inv.RoomID,
		"user": inv.UserID,
	}).Info("pin-requested")

	pin, err := p.api.RoomPIN(ctx, inv.RoomID)
	if err != nil {
		return p.pinErrorReply(err)
	}

	expires := "24 hours"
	if t, perr := time.Parse(time.RFC3339, pin.ExpiresAt); perr == nil {
		expires = t.UTC().Format("15:04") + " UTC"
	}

	return fmt.Sprintf("🔐 **Room Access PIN**: `%s`\n\n"+
		"📝 Use this PIN in the web interface to access messages from this room.\n"+
		"⏰ **Expires**: %s\n"+
		"🔄 **Rate limit**: 3 requests per hour per room\n\n"+
		"💡 Enter this PIN when prompted in the web dashboard to view room messages.",
		pin.PIN, expires)
}

func (p *Plugin) pinErrorReply(err error) string {
	var apiErr *memories.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return "⏱️ **Rate limit exceeded**\n\n" +
				"This room has reached the maximum of 3 PIN requests per hour.\n" +
				"Please wait and try again later, or use the existing PIN if it hasn't expired."
		case http.StatusServiceUnavailable:
			return "🚫 **PIN authentication is currently disabled**\n\n" +
				"Please contact the administrator."
		case http.StatusUnauthorized:
			p.log.Error("pin-request-unauthorized")
			return "❌ **Authentication failed**\n\n" +
				"Bot is not properly configured for PIN requests. Please contact the administrator."
		default:
			p.log.WithField("status", apiErr.StatusCode).Error("pin-request-failed")
			return fmt.Sprintf("❌ **PIN request failed**\n\n"+
				"Server responded with error %d. Please try again later.", apiErr.StatusCode)
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		p.log.WithField("error", err).Error("pin-request-timed-out")
		return "⏰ **Request timed out**\n\n" +
			"The database server is not responding. Please try again later."
	}

	p.log.WithField("error", err).Error("pin-request-network-error")
	return "🌐 **Network error**\n\n" +
		"Could not connect to database server. Please try again later."
}
