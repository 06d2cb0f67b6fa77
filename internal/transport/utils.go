package transport

import (
	"github.com/google/uuid"

	"boobot/pkg/constants"
)

// maskSecret masks sensitive information for logging
func maskSecret(s string) string {
	if len(s) <= constants.MinTokenLengthForMasking {
		return "***"
	}
	return s[:constants.TokenMaskPrefixLength] + "***" + s[len(s)-constants.TokenMaskSuffixLength:]
}

// maskAppID masks sensitive app or client ID information for logging
func maskAppID(appID string) string {
	if len(appID) <= constants.MinAppIDLengthForMasking {
		return "***"
	}
	return appID[:constants.AppIDMaskPrefixLength] + "***" + appID[len(appID)-constants.AppIDMaskSuffixLength:]
}

// eventID returns the platform message ID, or a generated one when the
// platform did not supply any. Downstream consumers (the archive sink)
// need a unique ID per event.
func eventID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// truncate shortens a message to a platform limit, keeping the head.
func truncate(message string, max int) string {
	if len(message) <= max {
		return message
	}
	return message[:max]
}
