package constants

import "time"

// Message length limits for different platforms
const (
	// MaxDiscordMessageLength is Discord's message character limit
	MaxDiscordMessageLength = 2000
	// MaxTelegramMessageLength is Telegram's message character limit
	MaxTelegramMessageLength = 4096
	// MaxFeishuMessageLength is Feishu's message character limit
	MaxFeishuMessageLength = 20000
	// MaxDingTalkMessageLength is DingTalk's message character limit
	MaxDingTalkMessageLength = 20000
)

// Plugin lifecycle defaults
const (
	// DefaultPluginsDir is the default plugin directory relative to the working directory
	DefaultPluginsDir = "./plugins"
	// DefaultReloadDebounce is the quiet period before a changed plugin is reloaded
	DefaultReloadDebounce = 1 * time.Second
	// MinReloadDebounce is the lower bound accepted for the reload debounce
	MinReloadDebounce = 100 * time.Millisecond
	// MaxReloadDebounce is the upper bound accepted for the reload debounce
	MaxReloadDebounce = 30 * time.Second
)

// Display name cache
const (
	// DefaultNameRefreshInterval is how long a cached bot display name stays fresh
	DefaultNameRefreshInterval = 5 * time.Minute
	// NameFetchAttempts is the number of attempts when fetching a display name
	NameFetchAttempts = 3
	// NameFetchRetryDelay is the delay between display name fetch attempts
	NameFetchRetryDelay = 1 * time.Second
)

// Timeouts and delays
const (
	// DefaultConnectionTimeout is the timeout for establishing connections
	DefaultConnectionTimeout = 2 * time.Second
	// DefaultPollTimeout is the timeout for long polling operations
	DefaultPollTimeout = 60 * time.Second
	// DefaultHTTPTimeout is the timeout for outbound HTTP API calls
	DefaultHTTPTimeout = 30 * time.Second
	// BeaconHTTPTimeout is the timeout for NIST beacon requests
	BeaconHTTPTimeout = 10 * time.Second
)

// Message buffer sizes
const (
	// MessageChannelBufferSize is the buffer size for the message channel
	MessageChannelBufferSize = 100
)

// Token masking
const (
	// MinTokenLengthForMasking is the minimum token length to apply masking
	MinTokenLengthForMasking = 10
	// TokenMaskPrefixLength is the length of prefix to show before masking
	TokenMaskPrefixLength = 7
	// TokenMaskSuffixLength is the length of suffix to show after masking
	TokenMaskSuffixLength = 4
)

// Logging defaults
const (
	// DefaultLogMaxSize is the default maximum log file size in MB
	DefaultLogMaxSize = 100
	// DefaultLogMaxAge is the default maximum number of days to retain old logs
	DefaultLogMaxAge = 30
)

// AppID masking
const (
	// MinAppIDLengthForMasking is the minimum app ID length to apply masking
	MinAppIDLengthForMasking = 8
	// AppIDMaskPrefixLength is the length of prefix to show before masking
	AppIDMaskPrefixLength = 4
	// AppIDMaskSuffixLength is the length of suffix to show after masking
	AppIDMaskSuffixLength = 4
)
