// Package example is a skeleton plugin that echoes user messages. It ships
// disabled and is the template to copy when writing a new plugin.
package example

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
	"boobot/internal/plugin"
)

const defaultMaxEchoLength = 1000

// Plugin implements the echo, repeat and example commands.
type Plugin struct {
	name          string
	version       string
	description   string
	demoMode      bool
	maxEchoLength int
	host          plugin.Host
	log           *logrus.Entry
}

// New builds the example plugin from its manifest.
func New(m plugin.Manifest) (plugin.Plugin, error) {
	p := &Plugin{
		name:          m.Name,
		version:       "1.0.0",
		description:   "Example skeleton plugin that echoes user messages",
		demoMode:      m.Bool("demo_mode", true),
		maxEchoLength: m.Int("max_echo_length", defaultMaxEchoLength),
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
	return []string{"echo", "repeat", "example"}
}

func (p *Plugin) Initialize(ctx context.Context, host plugin.Host) error {
	p.host = host
	p.log = logger.WithField("plugin", p.name)
	p.log.WithFields(logrus.Fields{
		"demo_mode":       p.demoMode,
		"max_echo_length": p.maxEchoLength,
	}).Info("example-plugin-initialized")
	return nil
}

func (p *Plugin) HandleCommand(ctx context.Context, inv plugin.Invocation) (string, error) {
	switch inv.Command {
	case "echo":
		return p.echo(inv), nil
	case "repeat":
		return p.repeat(inv), nil
	case "example":
		return p.demo(inv), nil
	}
	return "", nil
}

func (p *Plugin) Cleanup(ctx context.Context) error {
	p.log.Info("example-plugin-cleanup-complete")
	return nil
}

func (p *Plugin) echo(inv plugin.Invocation) string {
	if inv.Args == "" {
		return "🔊 **Echo Command**\n\nUsage: `echo <message>`\nI'll repeat whatever you type!"
	}

	args := inv.Args
	if len(args) > p.maxEchoLength {
		args = args[:p.maxEchoLength] + "... (truncated)"
	}

	demoInfo := ""
	if p.demoMode {
		demoInfo = "\n🎯 *Demo mode active - this is a template plugin!*"
	}
	return fmt.Sprintf("🔊 **Echo from %s:**\n%s%s", inv.UserID, args, demoInfo)
}

func (p *Plugin) repeat(inv plugin.Invocation) string {
	if inv.Args == "" {
		return "🔁 **Repeat Command**\n\nUsage: `repeat <message>`\nI'll repeat your message 3 times!"
	}

	lines := make([]string, 0, 3)
	for i := 1; i <= 3; i++ {
		lines = append(lines, fmt.Sprintf("%d. %s", i, inv.Args))
	}
	return fmt.Sprintf("🔁 **Repeating message from %s:**\n%s", inv.UserID, strings.Join(lines, "\n"))
}

func (p *Plugin) demo(inv plugin.Invocation) string {
	enabled := false
	for _, info := range p.host.PluginStatus().Plugins {
		if info.Name == p.name {
			enabled = info.Enabled
			break
		}
	}

	args := inv.Args
	if args == "" {
		args = "(none)"
	}

	return fmt.Sprintf("🎯 **Example Plugin Demo**\n\n"+
		"**Available Commands:**\n"+
		"• `echo <message>` - Echo back your message\n"+
		"• `repeat <message>` - Repeat your message 3 times\n"+
		"• `example` - Show this demo\n\n"+
		"**Plugin Info:**\n"+
		"• Name: %s\n"+
		"• Version: %s\n"+
		"• Enabled: %t\n"+
		"• User: %s\n\n"+
		"**Configuration:**\n"+
		"• Demo Mode: %t\n"+
		"• Max Echo Length: %d\n\n"+
		"**Arguments received:** %s\n\n"+
		"This is a skeleton plugin for developers to use as a template! 🚀",
		p.name, p.version, enabled, inv.UserID, p.demoMode, p.maxEchoLength, args)
}
