package ai

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"boobot/internal/plugin"
)

// Verse is one reference/text pair parsed from the KJV text file.
type Verse struct {
	Reference string
	Text      string
}

func (p *Plugin) bible(ctx context.Context, inv plugin.Invocation) string {
	p.progress(ctx, inv, "📖 *Consulting the NIST quantum scripture selector...*")

	if _, err := os.Stat(p.bibleFile); err != nil {
		return "❌ Bible file (kjv.txt) not found. Please download it from https://openbible.com/textfiles/kjv.txt"
	}

	verses, err := ParseBibleFile(p.bibleFile)
	if err != nil {
		return "📖 Error accessing the quantum scriptures: " + err.Error()
	}
	if len(verses) == 0 {
		return "❌ Could not parse Bible verses from kjv.txt"
	}

	value := p.beacon.RandomInt(ctx)
	index := new(big.Int).Mod(value, big.NewInt(int64(len(verses)))).Int64()
	verse := verses[index]

	beaconInfo := "✨ *Verse selected by NIST Randomness Beacon quantum entropy*"
	if inv.IsEdit {
		beaconInfo += " (responding to edit)"
	}
	return fmt.Sprintf("📖 **%s**\n\n*%s*\n\n%s", verse.Reference, verse.Text, beaconInfo)
}

// ParseBibleFile reads a KJV-format verse file: one verse per line as
// "Book Chapter:Verse<tab>text", with a space-separated fallback. Header
// lines and anything that does not look like a single-colon reference are
// skipped.
func ParseBibleFile(path string) ([]Verse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var verses []Verse
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "KJV") || strings.HasPrefix(line, "King James") {
			continue
		}
		if !strings.Contains(line, ":") {
			continue
		}

		reference, text, ok := splitVerseLine(line)
		if !ok {
			continue
		}
		if reference != "" && text != "" && strings.Count(reference, ":") == 1 {
			verses = append(verses, Verse{Reference: reference, Text: text})
		}
	}
	return verses, nil
}

func splitVerseLine(line string) (reference, text string, ok bool) {
	if tab := strings.IndexByte(line, '\t'); tab >= 0 {
		return strings.TrimSpace(line[:tab]), strings.TrimSpace(line[tab+1:]), true
	}

	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return "", "", false
	}

	// Find the first separator after the verse number.
	remaining := line[colon+1:]
	for i := 0; i < len(remaining); i++ {
		ch := remaining[i]
		if (ch == ' ' || ch == '\t') && isAllDigits(strings.TrimSpace(remaining[:i])) {
			return strings.TrimSpace(line[:colon+1+i]), strings.TrimSpace(line[colon+1+i:]), true
		}
	}

	if space := strings.IndexByte(remaining, ' '); space > 0 && isAllDigits(remaining[:space]) {
		return strings.TrimSpace(line[:colon+1+space]), strings.TrimSpace(remaining[space:]), true
	}
	return "", "", false
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
