package bot

import (
	"strings"
	"unicode"
)

// editMarker prefixes the body of an edited message on platforms that
// re-deliver edits as plain text. Transports with native edit events set
// Event.IsEdit instead; both paths converge in the engine.
const editMarker = "* "

// stripEditMarker removes the leading edit marker, reporting whether the
// body carried one.
func stripEditMarker(body string) (string, bool) {
	if strings.HasPrefix(body, editMarker) {
		return body[len(editMarker):], true
	}
	return body, false
}

// parseCommand extracts a command from a message addressed to displayName.
//
// A message is addressed when it starts with the display name followed by
// a colon, compared case-insensitively: "boo: help", "BOO: HELP" and
// "boo:help" all address "Boo", while "boot: help" and a mid-string
// mention do not. addressed=false means the message is not for the bot.
//
// For addressed messages the text after the colon is split on the first
// run of whitespace: the first token lowercased is the command word, the
// trimmed remainder is args. An addressed message with nothing after the
// colon returns an empty word so the shell can prompt for a command.
func parseCommand(body, displayName string) (word, args string, addressed bool) {
	if displayName == "" {
		return "", "", false
	}

	trimmed := strings.TrimSpace(body)
	if len(trimmed) < len(displayName)+1 {
		return "", "", false
	}
	if !strings.EqualFold(trimmed[:len(displayName)], displayName) {
		return "", "", false
	}
	if trimmed[len(displayName)] != ':' {
		return "", "", false
	}

	rest := strings.TrimSpace(trimmed[len(displayName)+1:])
	if rest == "" {
		return "", "", true
	}

	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		word = strings.ToLower(rest[:i])
		args = strings.TrimSpace(rest[i:])
	} else {
		word = strings.ToLower(rest)
	}
	return word, args, true
}
