// Package core implements the bot's built-in diagnostics and plugin
// management commands.
package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
	"boobot/internal/plugin"
)

const notAuthorized = "❌ You are not authorized to manage plugins."

// Plugin owns the help, diagnostics and plugin management commands. An
// optional admins list in the manifest config restricts the management
// commands to the named user IDs; an empty list leaves them open.
type Plugin struct {
	name        string
	version     string
	description string
	admins      []string
	host        plugin.Host
	log         *logrus.Entry
}

// New builds the core plugin from its manifest.
func New(m plugin.Manifest) (plugin.Plugin, error) {
	p := &Plugin{
		name:        m.Name,
		version:     "1.0.0",
		description: "Core bot commands (help, debug, ping, plugin management)",
		admins:      m.StringList("admins"),
	}
	if m.Version != "" {
		p.version = m.Version
	}
	if m.Description != "" {
		p.description = m.Description
	}
	return p, nil
}

func (p *Plugin) Name() string        { return p.name }
func (p *Plugin) Version() string     { return p.version }
func (p *Plugin) Description() string { return p.description }

func (p *Plugin) Commands() []string {
	return []string{
		"debug", "talk", "help", "ping", "room", "refresh", "update",
		"name", "status", "plugins", "reload", "enable", "disable", "config",
	}
}

func (p *Plugin) Initialize(ctx context.Context, host plugin.Host) error {
	p.host = host
	p.log = logger.WithField("plugin", p.name)
	p.log.WithField("admins", len(p.admins)).Info("core-plugin-initialized")
	return nil
}

func (p *Plugin) HandleCommand(ctx context.Context, inv plugin.Invocation) (string, error) {
	p.log.WithFields(logrus.Fields{
		"command": inv.Command,
		"user":    inv.UserID,
		"room":    inv.RoomID,
	}).Debug("core-command")

	switch inv.Command {
	case "ping":
		return "Pong! 🏓", nil
	case "talk":
		return "Hello! 👋 I'm your friendly Matrix bot. How can I help you today?", nil
	case "debug":
		return p.debugInfo(inv), nil
	case "help":
		return p.helpText(inv), nil
	case "status":
		return p.statusText(), nil
	case "plugins":
		return p.pluginsText(), nil
	case "reload":
		return p.reload(ctx, inv), nil
	case "enable":
		return p.enable(inv), nil
	case "disable":
		return p.disable(inv), nil
	case "config":
		return p.config(ctx, inv), nil
	case "room":
		return p.roomInfo(inv), nil
	case "refresh", "update":
		if strings.TrimSpace(inv.Args) == "name" {
			return p.refreshName(ctx, inv), nil
		}
	case "name":
		args := strings.TrimSpace(inv.Args)
		if args == "refresh" || args == "update" {
			return p.refreshName(ctx, inv), nil
		}
	}
	return "", nil
}

func (p *Plugin) Cleanup(ctx context.Context) error {
	p.log.Info("core-plugin-cleanup-complete")
	return nil
}

// authorized reports whether userID may run management commands.
func (p *Plugin) authorized(userID string) bool {
	if len(p.admins) == 0 {
		return true
	}
	for _, admin := range p.admins {
		if admin == userID {
			return true
		}
	}
	return false
}

func (p *Plugin) debugInfo(inv plugin.Invocation) string {
	counters := p.host.Counters()
	uptime := time.Since(p.host.StartedAt()).Round(time.Second)

	return fmt.Sprintf(`🔍 **DEBUG INFO**

📊 **Event Counters:**
• Messages received: %d
• Commands dispatched: %d
• Commands failed: %d
• Unknown commands: %d
• Replies sent: %d

🤖 **Bot Info:**
• Display name: %s
• Platform: %s
• Room: %s
• User: %s
• Uptime: %s`,
		counters["messages_received"], counters["commands_dispatched"],
		counters["commands_failed"], counters["unknown_commands"],
		counters["replies_sent"], p.host.DisplayName(inv.Platform),
		inv.Platform, inv.RoomID, inv.UserID, uptime)
}

func (p *Plugin) helpText(inv plugin.Invocation) string {
	byPlugin := make(map[string][]string)
	for cmd, owner := range p.host.AllCommands() {
		byPlugin[owner] = append(byPlugin[owner], cmd)
	}

	owners := make([]string, 0, len(byPlugin))
	for owner := range byPlugin {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	var b strings.Builder
	fmt.Fprintf(&b, "🤖 **%s Commands:**\n\n", p.host.DisplayName(inv.Platform))
	for _, owner := range owners {
		cmds := byPlugin[owner]
		sort.Strings(cmds)
		fmt.Fprintf(&b, "**%s:** %s\n", title(owner), strings.Join(cmds, ", "))
	}
	return b.String()
}

func (p *Plugin) statusText() string {
	status := p.host.PluginStatus()
	counters := p.host.Counters()
	uptime := time.Since(p.host.StartedAt()).Round(time.Second)

	return fmt.Sprintf(`📊 **Bot Status**

🟢 **Online:** up %s
🔌 **Plugins:** %d loaded, %d failed
🔥 **Hot Reloading:** %s
📨 **Messages processed:** %d`,
		uptime, status.Loaded(), len(status.Failed), p.hotReloadStatus(),
		counters["messages_received"])
}

func (p *Plugin) pluginsText() string {
	status := p.host.PluginStatus()

	var b strings.Builder
	b.WriteString("🔌 **Plugin Status:**\n\n")
	for _, info := range status.Plugins {
		mark := "✅"
		if !info.Enabled {
			mark = "❌"
		}
		fmt.Fprintf(&b, "%s **%s** v%s\n", mark, info.Name, info.Version)
		fmt.Fprintf(&b, "   %s\n", info.Description)
		fmt.Fprintf(&b, "   Commands: %s\n\n", strings.Join(info.Commands, ", "))
	}

	if len(status.Failed) > 0 {
		b.WriteString("❌ **Failed Plugins:**\n")
		names := make([]string, 0, len(status.Failed))
		for name := range status.Failed {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "• %s: %s\n", name, status.Failed[name])
		}
	}

	fmt.Fprintf(&b, "\n🔥 **Hot Reloading:** %s", p.hotReloadStatus())
	return b.String()
}

func (p *Plugin) hotReloadStatus() string {
	if p.host.ConfigValue("hot_reload") == "true" {
		return "🔥 Active"
	}
	return "❄️ Inactive"
}

func (p *Plugin) reload(ctx context.Context, inv plugin.Invocation) string {
	if !p.authorized(inv.UserID) {
		return notAuthorized
	}

	name := strings.TrimSpace(inv.Args)
	if name == "" {
		if err := p.host.ReloadPlugin(ctx, ""); err != nil {
			return "❌ Failed to reload plugins: " + err.Error()
		}
		return "✅ All plugins reloaded"
	}

	if err := p.host.ReloadPlugin(ctx, name); err != nil {
		p.log.WithFields(logrus.Fields{
			"target": name,
			"error":  err,
		}).Warn("plugin-reload-command-failed")
		return fmt.Sprintf("❌ Failed to reload plugin `%s`", name)
	}
	return fmt.Sprintf("✅ Plugin `%s` reloaded successfully", name)
}

func (p *Plugin) enable(inv plugin.Invocation) string {
	if !p.authorized(inv.UserID) {
		return notAuthorized
	}

	name := strings.TrimSpace(inv.Args)
	if name == "" {
		return "❌ Please specify a plugin name to enable. Example: `enable youtube`"
	}
	if p.host.EnablePlugin(name) {
		return fmt.Sprintf("✅ Plugin `%s` enabled", name)
	}
	return fmt.Sprintf("❌ Plugin `%s` not found", name)
}

func (p *Plugin) disable(inv plugin.Invocation) string {
	if !p.authorized(inv.UserID) {
		return notAuthorized
	}

	name := strings.TrimSpace(inv.Args)
	if name == "" {
		return "❌ Please specify a plugin name to disable. Example: `disable youtube`"
	}
	if p.host.DisablePlugin(name) {
		return fmt.Sprintf("⏸️ Plugin `%s` disabled", name)
	}
	return fmt.Sprintf("❌ Plugin `%s` not found", name)
}

func (p *Plugin) config(ctx context.Context, inv plugin.Invocation) string {
	switch strings.ToLower(strings.TrimSpace(inv.Args)) {
	case "":
		return fmt.Sprintf("⚙️ **Configuration:**\n\n"+
			"• Platforms: %s\n"+
			"• Plugins dir: %s\n"+
			"• Hot reload: %s\n"+
			"• Log level: %s\n\n"+
			"Use `config reload` to reload every plugin.",
			p.host.ConfigValue("platforms"), p.host.ConfigValue("plugins_dir"),
			p.host.ConfigValue("hot_reload"), p.host.ConfigValue("log_level"))
	case "reload":
		if !p.authorized(inv.UserID) {
			return notAuthorized
		}
		if err := p.host.ReloadPlugin(ctx, ""); err != nil {
			return "❌ Error reloading configuration: " + err.Error()
		}
		return "✅ Configuration reloaded - all plugins restarted with new config"
	default:
		return "❌ Unknown config command. Use `config` for help."
	}
}

func (p *Plugin) roomInfo(inv plugin.Invocation) string {
	channel := strings.TrimPrefix(inv.RoomID, inv.Platform+"/")
	return fmt.Sprintf("🏠 ROOM INFO:\nID: %s\nPlatform: %s\nChannel: %s",
		inv.RoomID, inv.Platform, channel)
}

func (p *Plugin) refreshName(ctx context.Context, inv plugin.Invocation) string {
	name, err := p.host.RefreshDisplayName(ctx, inv.Platform)
	if err != nil {
		return "❌ Error refreshing name: " + err.Error()
	}
	return "✅ Display name refreshed: " + name
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
