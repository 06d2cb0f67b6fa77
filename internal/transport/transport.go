// Package transport provides chat platform adapters.
//
// This package implements a unified interface for connecting the bot to
// multiple chat platforms, including Discord, Telegram, Feishu (Lark), and
// DingTalk. Each adapter handles platform-specific connection logic,
// message normalization, and delivery limits.
//
// # Supported Platforms
//
//   - Discord: WebSocket connection with real-time message handling
//   - Telegram: Long polling for message updates
//   - Feishu/Lark: WebSocket long connection for enterprise messaging
//   - DingTalk: WebSocket long connection for enterprise messaging
//
// # Room addressing
//
// Adapters deal only in their own channel identifiers. The engine layers a
// composite room address "platform/channel" on top so plugins can reply to
// any room on any connected platform.
//
// # Thread Safety
//
// All adapters are thread-safe and use internal mutexes to protect shared
// state. The event handler callback may be called concurrently from
// multiple goroutines.
package transport

import (
	"context"
	"time"
)

// Adapter is the contract every platform adapter satisfies.
type Adapter interface {
	// Platform returns the adapter's platform name (discord/telegram/...).
	Platform() string

	// Start connects to the platform and begins delivering events to the
	// handler. Adapters with blocking receive loops run them in their own
	// goroutines; Start returns once the connection is underway.
	Start(handler func(Event)) error

	// SendMessage sends text to a platform channel. The adapter truncates
	// to its platform limit.
	SendMessage(channel, message string) error

	// DisplayName returns the bot's own display name on this platform.
	DisplayName(ctx context.Context) (string, error)

	// Stop disconnects and cleans up resources.
	Stop() error
}

// FileSender is implemented by adapters whose platform supports file
// uploads. Callers fall back to plain text when the adapter does not.
type FileSender interface {
	SendFile(channel, filename string, data []byte) error
}

// Event is a normalized inbound message.
type Event struct {
	Platform   string    // feishu/discord/telegram/dingtalk
	UserID     string    // unique sender identifier on the platform
	SenderName string    // sender display name, may be empty
	Channel    string    // channel/chat/conversation ID
	EventID    string    // platform message ID, generated when absent
	Body       string    // message text
	IsEdit     bool      // the platform flagged this as an edited message
	Timestamp  time.Time
}
