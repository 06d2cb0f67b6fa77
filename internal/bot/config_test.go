package bot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boobot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, "transports:\n  discord:\n    enabled: true\n    token: abc\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "5m", cfg.Bot.NameRefresh)
	assert.Equal(t, "./plugins", cfg.Plugins.Dir)
	assert.Equal(t, "1s", cfg.Plugins.Debounce)
	assert.False(t, cfg.Plugins.HotReload)
	assert.Equal(t, 8220, cfg.StatusServer.Port)
	assert.False(t, cfg.StatusServer.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10, cfg.Logging.MaxSize)
	assert.Equal(t, 5, cfg.Logging.MaxBackups)
	assert.Equal(t, 30, cfg.Logging.MaxAge)
	assert.True(t, cfg.Logging.Compress)
	assert.True(t, cfg.Logging.EnableStdout)

	assert.Equal(t, 5*time.Minute, cfg.NameRefreshInterval())
	assert.Equal(t, time.Second, cfg.DebounceInterval())
}

func TestLoadConfigExpandsEnvVars(t *testing.T) {
	t.Setenv("BOOBOT_TEST_TOKEN", "secret-token")
	path := writeConfigFile(t, "transports:\n  discord:\n    enabled: true\n    token: \"${BOOBOT_TEST_TOKEN}\"\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Transports["discord"].Token)
}

func TestLoadConfigMissingEnvVar(t *testing.T) {
	path := writeConfigFile(t, "transports:\n  discord:\n    enabled: true\n    token: \"${BOOBOT_TEST_MISSING}\"\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required environment variables")
	assert.Contains(t, err.Error(), "BOOBOT_TEST_MISSING")
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfigBadYAML(t *testing.T) {
	_, err := LoadConfig(writeConfigFile(t, "transports: [\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadConfigDebounceClamping(t *testing.T) {
	tests := []struct {
		name     string
		debounce string
		want     string
	}{
		{"below minimum", "10ms", "100ms"},
		{"above maximum", "5m", "30s"},
		{"in range", "2s", "2s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfigFile(t, "plugins:\n  debounce: "+tt.debounce+"\n"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Plugins.Debounce)
		})
	}
}

func TestLoadConfigRejectsBadDurations(t *testing.T) {
	_, err := LoadConfig(writeConfigFile(t, "plugins:\n  debounce: fast\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid plugins.debounce")

	_, err = LoadConfig(writeConfigFile(t, "bot:\n  name_refresh: soon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid bot.name_refresh")
}

func TestLoadConfigRejectsBadPort(t *testing.T) {
	_, err := LoadConfig(writeConfigFile(t, "status_server:\n  enabled: true\n  port: 70000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status_server.port")

	_, err = LoadConfig(writeConfigFile(t, "status_server:\n  port: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status_server.port")
}

func TestLoadConfigTransportRequirements(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			"discord token missing",
			"transports:\n  discord:\n    enabled: true\n",
			"transports.discord.token is required",
		},
		{
			"telegram token missing",
			"transports:\n  telegram:\n    enabled: true\n",
			"transports.telegram.token is required",
		},
		{
			"feishu secret missing",
			"transports:\n  feishu:\n    enabled: true\n    app_id: cli_123\n",
			"transports.feishu.app_id and app_secret are required",
		},
		{
			"dingtalk secret missing",
			"transports:\n  dingtalk:\n    enabled: true\n    client_id: ding123\n",
			"transports.dingtalk.client_id and client_secret are required",
		},
		{
			"unknown platform",
			"transports:\n  slack:\n    enabled: true\n    token: abc\n",
			"unknown transport: slack",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfigFile(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigSkipsDisabledTransports(t *testing.T) {
	// Disabled transports need no credentials, unknown names included.
	cfg, err := LoadConfig(writeConfigFile(t, "transports:\n  discord:\n    enabled: false\n  slack:\n    enabled: false\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.EnabledTransports())
}

func TestLoadConfigWithoutTransports(t *testing.T) {
	// A transport-less config passes validation; the start command is what
	// requires at least one enabled transport.
	cfg, err := LoadConfig(writeConfigFile(t, "plugins:\n  dir: ./plugins\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.EnabledTransports())
}

func TestEnabledTransportsSorted(t *testing.T) {
	cfg := &Config{Transports: map[string]TransportConfig{
		"telegram": {Enabled: true, Token: "t"},
		"discord":  {Enabled: true, Token: "d"},
		"feishu":   {Enabled: false},
	}}
	assert.Equal(t, []string{"discord", "telegram"}, cfg.EnabledTransports())
}

func TestGetTransportConfig(t *testing.T) {
	cfg := &Config{Transports: map[string]TransportConfig{
		"discord":  {Enabled: true, Token: "d"},
		"telegram": {Enabled: false, Token: "t"},
	}}

	tc, err := cfg.GetTransportConfig("discord")
	require.NoError(t, err)
	assert.Equal(t, "d", tc.Token)

	_, err = cfg.GetTransportConfig("telegram")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")

	_, err = cfg.GetTransportConfig("feishu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestIntervalFallbacks(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 5*time.Minute, cfg.NameRefreshInterval())
	assert.Equal(t, time.Second, cfg.DebounceInterval())
}
