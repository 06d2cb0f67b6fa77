// Package bot implements the host shell: it owns the transports, the
// plugin loader and registry, the message parser, the event counters and
// the status server, and it hands plugins their capability surface.
//
// # Main Components
//
//   - Bot: composition root and event loop
//   - Config: configuration structure and loading
//   - parseCommand: display-name addressing and command extraction
//
// # Configuration
//
// Configuration is loaded from a YAML file with the following main sections:
//
//   - bot: bot-wide settings (display-name cache TTL)
//   - plugins: plugin directory, hot reload, reload debounce
//   - transports: per-platform connection settings
//   - status_server: local HTTP status endpoint
//   - logging: log configuration
//
// # Example Configuration
//
//	bot:
//	  name_refresh: 5m
//	plugins:
//	  dir: ./plugins
//	  hot_reload: true
//	  debounce: 1s
//	transports:
//	  discord:
//	    enabled: true
//	    token: "${DISCORD_BOT_TOKEN}"
//	status_server:
//	  enabled: true
//	  port: 8220
package bot

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"boobot/pkg/constants"
)

const (
	DefaultStatusPort      = 8220
	DefaultLogLevel        = "info"
	DefaultLogMaxSize      = 10 // MB
	DefaultLogMaxBackups   = 5
	DefaultLogMaxAge       = 30 // days
	DefaultLogCompress     = true
	DefaultLogEnableStdout = true

	// Default interval values
	DefaultNameRefresh = "5m"
	DefaultDebounce    = "1s"
)

// Config represents the complete boobot configuration structure
type Config struct {
	Bot          BotConfig                  `yaml:"bot"`
	Plugins      PluginsConfig              `yaml:"plugins"`
	Transports   map[string]TransportConfig `yaml:"transports"`
	StatusServer StatusServerConfig         `yaml:"status_server"`
	Logging      LoggingConfig              `yaml:"logging"`
}

// BotConfig represents bot-wide settings
type BotConfig struct {
	NameRefresh string `yaml:"name_refresh"` // Display-name cache TTL (default: 5m)
}

// PluginsConfig represents plugin discovery and hot-reload settings
type PluginsConfig struct {
	Dir       string `yaml:"dir"`        // Plugin root directory (default: ./plugins)
	HotReload bool   `yaml:"hot_reload"` // Watch manifests and reload on change
	Debounce  string `yaml:"debounce"`   // Reload quiet period (default: 1s, clamped to [100ms, 30s])
}

// TransportConfig represents one platform connection
type TransportConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Token        string `yaml:"token"`         // Discord/Telegram bot token
	AppID        string `yaml:"app_id"`        // Feishu app ID
	AppSecret    string `yaml:"app_secret"`    // Feishu app secret
	ClientID     string `yaml:"client_id"`     // DingTalk client ID
	ClientSecret string `yaml:"client_secret"` // DingTalk client secret
	BotName      string `yaml:"bot_name"`      // Feishu/DingTalk: display name (no lookup API without extra scopes)
}

// StatusServerConfig represents the local status HTTP server
type StatusServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	File         string `yaml:"file"`          // Log file path
	MaxSize      int    `yaml:"max_size"`      // Single file max size in MB (default: 10)
	MaxBackups   int    `yaml:"max_backups"`   // Number of backups to keep (default: 5)
	MaxAge       int    `yaml:"max_age"`       // Maximum days to retain (default: 30)
	Compress     bool   `yaml:"compress"`      // Whether to compress old logs (default: true)
	EnableStdout bool   `yaml:"enable_stdout"` // Also output to stdout (default: true)
}

// LoadConfig loads configuration from file and expands environment variables
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData, err := expandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// expandEnv replaces ${VAR_NAME} patterns with environment variable values
func expandEnv(input string) (string, error) {
	var missingVars []string

	result := os.Expand(input, func(key string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		missingVars = append(missingVars, key)
		return "" // Return empty string to let config parsing fail
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s",
			strings.Join(missingVars, ", "))
	}

	return result, nil
}

// validateConfig fills defaults and range-checks the configuration. It does
// not require an enabled transport: validate-only callers accept a config
// the start path would reject (see EnabledTransports).
func validateConfig(config *Config) error {
	if config.Bot.NameRefresh == "" {
		config.Bot.NameRefresh = DefaultNameRefresh
	}
	if _, err := time.ParseDuration(config.Bot.NameRefresh); err != nil {
		return fmt.Errorf("invalid bot.name_refresh: %w", err)
	}

	if config.Plugins.Dir == "" {
		config.Plugins.Dir = constants.DefaultPluginsDir
	}
	if config.Plugins.Debounce == "" {
		config.Plugins.Debounce = DefaultDebounce
	}
	debounce, err := time.ParseDuration(config.Plugins.Debounce)
	if err != nil {
		return fmt.Errorf("invalid plugins.debounce: %w", err)
	}
	if debounce < constants.MinReloadDebounce {
		config.Plugins.Debounce = constants.MinReloadDebounce.String()
	}
	if debounce > constants.MaxReloadDebounce {
		config.Plugins.Debounce = constants.MaxReloadDebounce.String()
	}

	if config.StatusServer.Port == 0 {
		config.StatusServer.Port = DefaultStatusPort
	}
	if config.StatusServer.Port < 1 || config.StatusServer.Port > 65535 {
		return fmt.Errorf("invalid status_server.port: %d", config.StatusServer.Port)
	}

	for platform, tc := range config.Transports {
		if !tc.Enabled {
			continue
		}
		switch platform {
		case "discord", "telegram":
			if tc.Token == "" {
				return fmt.Errorf("transports.%s.token is required when enabled", platform)
			}
		case "feishu":
			if tc.AppID == "" || tc.AppSecret == "" {
				return fmt.Errorf("transports.feishu.app_id and app_secret are required when enabled")
			}
		case "dingtalk":
			if tc.ClientID == "" || tc.ClientSecret == "" {
				return fmt.Errorf("transports.dingtalk.client_id and client_secret are required when enabled")
			}
		default:
			return fmt.Errorf("unknown transport: %s", platform)
		}
	}

	// Set default logging configuration
	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLogLevel
	}
	if config.Logging.MaxSize == 0 {
		config.Logging.MaxSize = DefaultLogMaxSize
	}
	if config.Logging.MaxBackups == 0 {
		config.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if config.Logging.MaxAge == 0 {
		config.Logging.MaxAge = DefaultLogMaxAge
	}
	if !config.Logging.Compress {
		config.Logging.Compress = DefaultLogCompress
	}
	if !config.Logging.EnableStdout {
		config.Logging.EnableStdout = DefaultLogEnableStdout
	}

	return nil
}

// NameRefreshInterval returns the parsed display-name cache TTL.
func (c *Config) NameRefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.Bot.NameRefresh)
	if err != nil || d <= 0 {
		return constants.DefaultNameRefreshInterval
	}
	return d
}

// DebounceInterval returns the parsed plugin-reload quiet period.
func (c *Config) DebounceInterval() time.Duration {
	d, err := time.ParseDuration(c.Plugins.Debounce)
	if err != nil || d <= 0 {
		return constants.DefaultReloadDebounce
	}
	return d
}

// EnabledTransports returns the platform names with enabled: true, sorted.
func (c *Config) EnabledTransports() []string {
	var platforms []string
	for platform, tc := range c.Transports {
		if tc.Enabled {
			platforms = append(platforms, platform)
		}
	}
	sort.Strings(platforms)
	return platforms
}

// GetTransportConfig retrieves configuration for a specific transport
func (c *Config) GetTransportConfig(platform string) (TransportConfig, error) {
	tc, exists := c.Transports[platform]
	if !exists {
		return TransportConfig{}, fmt.Errorf("transport %s not found in configuration", platform)
	}

	if !tc.Enabled {
		return TransportConfig{}, fmt.Errorf("transport %s is disabled", platform)
	}

	return tc, nil
}
