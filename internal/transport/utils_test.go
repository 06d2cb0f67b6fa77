package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		expected string
	}{
		{
			name:     "normal secret",
			secret:   "cli_1234567890abcdef",
			expected: "cli_123***cdef",
		},
		{
			name:     "boundary length secret",
			secret:   "1234567890",
			expected: "***",
		},
		{
			name:     "very short secret",
			secret:   "1234",
			expected: "***",
		},
		{
			name:     "empty secret",
			secret:   "",
			expected: "***",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskSecret(tt.secret)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestMaskAppID(t *testing.T) {
	tests := []struct {
		name     string
		appID    string
		expected string
	}{
		{
			name:     "normal app id",
			appID:    "cli_a1b2c3d4e5",
			expected: "cli_***d4e5",
		},
		{
			name:     "boundary length app id",
			appID:    "12345678",
			expected: "***",
		},
		{
			name:     "short app id",
			appID:    "short",
			expected: "***",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAppID(tt.appID)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEventID(t *testing.T) {
	assert.Equal(t, "msg-123", eventID("msg-123"))

	generated := eventID("")
	assert.NotEmpty(t, generated)

	// Generated IDs must be unique per call
	assert.NotEqual(t, generated, eventID(""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))
	assert.Equal(t, "", truncate("", 100))

	long := strings.Repeat("x", 150)
	got := truncate(long, 100)
	assert.Len(t, got, 100)
	assert.Equal(t, long[:100], got)
}
