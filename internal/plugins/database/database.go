// Package database is the message archive plugin. It stores every
// inbound text event through the boo-memories API and exposes the `db`
// command for health checks and storage statistics.
package database

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
	"boobot/internal/memories"
	"boobot/internal/plugin"
)

// Plugin archives messages and answers `db health` / `db stats`.
type Plugin struct {
	name        string
	version     string
	description string

	apiKey string
	api    *memories.Client

	host plugin.Host
	log  *logrus.Logger
}

// New builds the database plugin from its manifest. The API endpoint and
// key come from manifest config, falling back to the environment.
func New(m plugin.Manifest) (plugin.Plugin, error) {
	baseURL := m.String("api_url", envOr("DATABASE_API_URL", envOr("DATABASE_URL", "http://localhost:8000")))
	apiKey := m.String("api_key", envOr("DATABASE_API_KEY", os.Getenv("API_KEY")))

	p := &Plugin{
		name:        m.Name,
		version:     "1.0.0",
		description: "Message archiving and database statistics via the boo-memories API",
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

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return p.name }

// Version implements plugin.Plugin.
func (p *Plugin) Version() string { return p.version }

// Description implements plugin.Plugin.
func (p *Plugin) Description() string { return p.description }

// Commands implements plugin.Plugin.
func (p *Plugin) Commands() []string {
	return []string{"db"}
}

// Initialize implements plugin.Plugin. A missing API key is a hard error
// so the plugin lands in the failed map instead of archiving nothing.
func (p *Plugin) Initialize(ctx context.Context, host plugin.Host) error {
	if p.apiKey == "" {
		return fmt.Errorf("DATABASE_API_KEY not configured")
	}

	p.host = host
	p.log = logger.GetLogger()
	p.log.WithFields(logrus.Fields{
		"plugin": p.name,
	}).Info("database-plugin-initialized")
	return nil
}

// HandleCommand implements plugin.Plugin.
func (p *Plugin) HandleCommand(ctx context.Context, inv plugin.Invocation) (string, error) {
	if inv.Command != "db" {
		return "", nil
	}

	switch inv.Args {
	case "health":
		return p.health(ctx), nil
	case "stats":
		return p.stats(ctx), nil
	default:
		return "❌ Unknown database command. Use 'db health' or 'db stats'", nil
	}
}

// Cleanup implements plugin.Plugin.
func (p *Plugin) Cleanup(ctx context.Context) error {
	return nil
}

// ObserveMessage implements plugin.Observer: every inbound text event is
// archived. Store failures are logged by the client and never reach chat.
func (p *Plugin) ObserveMessage(ctx context.Context, msg plugin.Message) {
	if msg.Body == "" {
		return
	}
	_ = p.api.StoreMessage(ctx, memories.StoredMessage{
		RoomID:      msg.RoomID,
		EventID:     msg.EventID,
		Sender:      msg.UserID,
		MessageType: "text",
		Content:     msg.Body,
		Timestamp:   msg.Timestamp,
	})
}

func (p *Plugin) health(ctx context.Context) string {
	healthy, err := p.api.HealthCheck(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Database health check failed: %s", err)
	}
	if healthy {
		return "✅ Database is healthy!"
	}
	return "❌ Database is unhealthy"
}

func (p *Plugin) stats(ctx context.Context) string {
	stats, err := p.api.Stats(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Database stats failed: %s", err)
	}
	if len(stats) == 0 {
		return "❌ Could not retrieve database statistics"
	}

	return fmt.Sprintf(`📊 **DATABASE STATISTICS**
💬 Total Messages: %s
📎 Total Media Files: %s
💾 Database Size: %s`,
		statValue(stats, "total_messages"),
		statValue(stats, "total_media_files"),
		statValue(stats, "database_size"))
}

// statValue renders one statistic. JSON numbers decode as float64;
// integral values must print without an exponent.
func statValue(stats map[string]interface{}, key string) string {
	v, ok := stats[key]
	if !ok {
		return "Unknown"
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
