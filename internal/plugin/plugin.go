package plugin

import (
	"context"
	"time"
)

// Plugin is the contract every command plugin satisfies.
//
// Lifecycle: a factory builds the instance from its manifest, Initialize
// runs exactly once before the plugin serves commands, HandleCommand runs
// for every invocation of a command the plugin owns, and Cleanup runs when
// the plugin is unloaded, replaced by a reload, or the bot shuts down.
type Plugin interface {
	// Name returns the plugin's stable identity. It must equal the base
	// name of the plugin directory it was loaded from.
	Name() string

	// Version returns the plugin version string.
	Version() string

	// Description returns a one-line human-readable description.
	Description() string

	// Commands returns the lowercase command words this plugin owns. An
	// empty list is legal: the plugin loads but is never routed to. The
	// result must be callable any time after a successful Initialize.
	Commands() []string

	// Initialize prepares the plugin for serving commands. The host grants
	// send and lookup capabilities. Returning an error keeps the plugin
	// out of the registry.
	Initialize(ctx context.Context, host Host) error

	// HandleCommand handles one invocation. Returning an empty reply with
	// a nil error declines the command so dispatch continues to the next
	// owner. Args may be empty.
	HandleCommand(ctx context.Context, inv Invocation) (string, error)

	// Cleanup releases plugin resources.
	Cleanup(ctx context.Context) error
}

// Observer is an optional interface for plugins that want to see every
// inbound text message, command or not. Observation runs isolated from the
// dispatch path: an observer error or panic never affects routing.
type Observer interface {
	ObserveMessage(ctx context.Context, msg Message)
}

// Invocation is one parsed command handed to a plugin.
type Invocation struct {
	// Command is the lowercased command word.
	Command string
	// Args is the trimmed remainder after the command word, possibly empty.
	Args string
	// RoomID is the composite room address in the form "platform/channel".
	RoomID string
	// UserID identifies the sender on its platform.
	UserID string
	// Platform names the transport the message arrived on.
	Platform string
	// IsEdit marks invocations parsed from an edited message.
	IsEdit bool
}

// Message is the inbound event view given to observers.
type Message struct {
	RoomID     string
	UserID     string
	SenderName string
	EventID    string
	Body       string
	Platform   string
	IsEdit     bool
	Timestamp  time.Time
}

// Host is the capability surface the bot shell hands to plugins.
type Host interface {
	// SendMessage sends text to a composite room address.
	SendMessage(ctx context.Context, roomID, text string) error

	// SendFile uploads a file to a room. Transports without file support
	// return an error so callers can fall back to text.
	SendFile(ctx context.Context, roomID, filename string, data []byte) error

	// DisplayName returns the cached bot display name for a platform, or
	// an empty string when none is known yet.
	DisplayName(platform string) string

	// RefreshDisplayName re-fetches the bot display name for a platform.
	RefreshDisplayName(ctx context.Context, platform string) (string, error)

	// PluginStatus returns a snapshot of the plugin registry.
	PluginStatus() Status

	// AllCommands returns command word to owning plugin name for every
	// enabled plugin.
	AllCommands() map[string]string

	// ReloadPlugin reloads one plugin directory by name, or every plugin
	// when name is empty.
	ReloadPlugin(ctx context.Context, name string) error

	// EnablePlugin and DisablePlugin flip routing for a loaded plugin.
	// Unknown names return false.
	EnablePlugin(name string) bool
	DisablePlugin(name string) bool

	// Counters returns a copy of the bot's event counters.
	Counters() map[string]uint64

	// StartedAt returns the bot start time.
	StartedAt() time.Time

	// ConfigValue exposes selected non-secret configuration values by key.
	ConfigValue(key string) string
}

// Info describes one registered plugin in a status snapshot.
type Info struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Enabled     bool     `json:"enabled"`
	Commands    []string `json:"commands"`
}

// Status is a point-in-time snapshot of the registry: loaded plugins in
// registration order plus the failed map.
type Status struct {
	Plugins []Info            `json:"plugins"`
	Failed  map[string]string `json:"failed"`
}

// Loaded returns the number of registered plugins.
func (s Status) Loaded() int { return len(s.Plugins) }

// EnabledCount returns the number of registered plugins with routing on.
func (s Status) EnabledCount() int {
	n := 0
	for _, p := range s.Plugins {
		if p.Enabled {
			n++
		}
	}
	return n
}
