// Package ai implements the oracle commands: the magic 8-ball, advice in
// two registers, random Bible verses, YouTube song search and the raw NIST
// beacon value. Fortune polarity comes from the NIST Randomness Beacon,
// text generation from OpenRouter.
package ai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"boobot/internal/beacon"
	"boobot/internal/logger"
	"boobot/internal/openrouter"
	"boobot/internal/plugin"
	"boobot/internal/ytdlp"
)

// Plugin owns the 8ball, advice, advise, bible, song and nist commands.
type Plugin struct {
	name        string
	version     string
	description string
	ai          *openrouter.Client
	beacon      *beacon.Client
	bibleFile   string
	host        plugin.Host
	log         *logrus.Entry
}

// New builds the AI plugin from its manifest. The OpenRouter key comes
// from the manifest config or the OPENROUTER_API_KEY environment variable;
// without one the generative commands reply with a setup hint.
func New(m plugin.Manifest) (plugin.Plugin, error) {
	apiKey := m.String("openrouter_api_key", os.Getenv("OPENROUTER_API_KEY"))

	p := &Plugin{
		name:        m.Name,
		version:     "1.0.0",
		description: "AI-powered features including magic 8-ball, advice, and Bible verses",
		ai:          openrouter.New(apiKey, m.String("model", "")),
		beacon:      beacon.New(),
		bibleFile:   m.String("bible_file", filepath.Join(m.Dir, "kjv.txt")),
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
	return []string{"8ball", "advice", "advise", "bible", "song", "nist"}
}

func (p *Plugin) Initialize(ctx context.Context, host plugin.Host) error {
	p.host = host
	p.log = logger.WithField("plugin", p.name)
	p.log.WithFields(logrus.Fields{
		"ai_enabled": p.ai.Enabled(),
		"model":      p.ai.Model(),
		"bible_file": p.bibleFile,
	}).Info("ai-plugin-initialized")
	return nil
}

func (p *Plugin) HandleCommand(ctx context.Context, inv plugin.Invocation) (string, error) {
	switch inv.Command {
	case "8ball":
		return p.magic8Ball(ctx, inv), nil
	case "advice", "advise":
		return p.advice(ctx, inv), nil
	case "bible":
		return p.bible(ctx, inv), nil
	case "song":
		return p.song(inv), nil
	case "nist":
		return p.nist(ctx), nil
	}
	return "", nil
}

func (p *Plugin) Cleanup(ctx context.Context) error {
	p.log.Info("ai-plugin-cleanup-complete")
	return nil
}

// progress sends an interim message while a slow oracle call runs. Replies
// to edited commands carry the edit marker here too, since these sends
// bypass the engine's reply path.
func (p *Plugin) progress(ctx context.Context, inv plugin.Invocation, text string) {
	if inv.IsEdit {
		text = "✏️ " + text
	}
	if err := p.host.SendMessage(ctx, inv.RoomID, text); err != nil {
		p.log.WithFields(logrus.Fields{
			"room":  inv.RoomID,
			"error": err,
		}).Warn("ai-progress-send-failed")
	}
}

func (p *Plugin) magic8Ball(ctx context.Context, inv plugin.Invocation) string {
	if !p.ai.Enabled() {
		return "❌ Magic 8-ball requires OPENROUTER_API_KEY in .env file"
	}

	question := strings.TrimSpace(inv.Args)
	if question != "" {
		p.progress(ctx, inv, fmt.Sprintf("🎱 *Consulting the NIST quantum oracle for: '%s'...*", question))
	} else {
		p.progress(ctx, inv, "🎱 *Consulting the NIST quantum oracle...*")
	}

	isPositive := p.beacon.Positive(ctx)
	fortune, err := p.ai.Chat(ctx, []openrouter.Message{
		{Role: "user", Content: fortunePrompt(question, isPositive)},
	}, openrouter.Options{MaxTokens: 150, Temperature: 1.1, TopP: 0.9})
	if err != nil {
		p.log.WithField("error", err).Warn("fortune-generation-failed")
		return "🎱 The quantum spirits are unclear... try again later."
	}

	beaconInfo := "✨ *Determined by NIST Randomness Beacon quantum entropy*"
	if inv.IsEdit {
		beaconInfo += " (responding to edit)"
	}
	return fmt.Sprintf("🎱 %s\n\n%s", fortune, beaconInfo)
}

func (p *Plugin) advice(ctx context.Context, inv plugin.Invocation) string {
	question := strings.TrimSpace(inv.Args)
	if question == "" {
		return fmt.Sprintf("❌ Please provide a question for advice. Usage: %s <your question>", inv.Command)
	}
	if !p.ai.Enabled() {
		return "❌ Advice features require OPENROUTER_API_KEY in .env file"
	}

	// "advise" gives thoughtful advice, "advice" the unhinged kind.
	serious := inv.Command == "advise"
	adviceType, adviceTitle := "creative advice", "Creative Advice"
	if serious {
		adviceType, adviceTitle = "thoughtful advice", "Thoughtful Advice"
	}

	p.progress(ctx, inv, fmt.Sprintf("🤔 *Consulting the NIST quantum oracle for %s...*", adviceType))

	isPositive := p.beacon.Positive(ctx)

	var prompt string
	var opts openrouter.Options
	emoji := "🎭"
	if serious {
		emoji = "💭"
		prompt = consideratePrompt(question, isPositive)
		opts = openrouter.Options{MaxTokens: 200, Temperature: 0.7, TopP: 0.9}
	} else {
		prompt = funnyPrompt(question, isPositive)
		opts = openrouter.Options{MaxTokens: 200, Temperature: 1.2, TopP: 0.95}
	}

	text, err := p.ai.Chat(ctx, []openrouter.Message{{Role: "user", Content: prompt}}, opts)
	if err != nil {
		p.log.WithField("error", err).Warn("advice-generation-failed")
		return "🤔 The quantum advice generator is experiencing interference... try again later."
	}

	polarityText := "cautionary"
	if isPositive {
		polarityText = "encouraging"
	}
	beaconInfo := fmt.Sprintf("✨ *Quantum-determined %s perspective from NIST Randomness Beacon*", polarityText)
	if inv.IsEdit {
		beaconInfo += " (responding to edit)"
	}
	return fmt.Sprintf("%s **%s:**\n%s\n\n%s", emoji, adviceTitle, text, beaconInfo)
}

func (p *Plugin) song(inv plugin.Invocation) string {
	query := strings.TrimSpace(inv.Args)
	if query == "" {
		return "❌ Please provide a song to search for. Usage: song <song name>"
	}
	return fmt.Sprintf("🎵 YouTube search for '%s':\n%s", query, ytdlp.SearchURL(query))
}

func (p *Plugin) nist(ctx context.Context) string {
	value := p.beacon.RandomInt(ctx)
	return fmt.Sprintf("🔢 **Current NIST Randomness Beacon Value:**\n```\n%s\n```\n\nThis is a cryptographically secure random number from the U.S. National Institute of Standards and Technology.", value)
}

func fortunePrompt(question string, isPositive bool) string {
	if question != "" {
		polarity := "NEGATIVE/NO"
		label := "NEGATIVE/NO examples:"
		example := `"The quantum realm SCREAMS warning - avoid this path!"`
		if isPositive {
			polarity = "POSITIVE/YES"
			label = "POSITIVE/YES examples:"
			example = `"The cosmic winds STRONGLY favor this venture - quantum forces align!"`
		}
		return fmt.Sprintf(`You are a bold, decisive magic 8-ball oracle powered by NIST quantum randomness. Someone asks: "%s"
The NIST Randomness Beacon has determined this answer should be %s.
Give a CLEAR %s answer with mystical flair:
%s
%s
Be mystical, dramatic, and CLEARLY %s! Reference quantum/cosmic forces. 1-2 sentences max.`,
			question, polarity, strings.ToLower(polarity), label, example, strings.ToLower(polarity))
	}

	polarity := "NEGATIVE"
	label := "NEGATIVE examples:"
	example := `"Dark quantum fluctuations gather around your path!"`
	if isPositive {
		polarity = "POSITIVE"
		label = "POSITIVE examples:"
		example = `"Quantum entanglement brings tremendous fortune to your timeline!"`
	}
	return fmt.Sprintf(`You are a dramatic magic 8-ball oracle powered by NIST quantum randomness.
The quantum realm has determined this fortune should be %s.
Give a %s mystical fortune with cosmic flair:
%s
%s
Reference quantum/cosmic forces and be CLEARLY %s! 1-2 sentences max.`,
		polarity, strings.ToLower(polarity), label, example, strings.ToLower(polarity))
}

func consideratePrompt(question string, isPositive bool) string {
	instruction := "CAUTIONARY and REALISTIC"
	if isPositive {
		instruction = "ENCOURAGING and OPTIMISTIC"
	}
	return fmt.Sprintf(`Someone asked for thoughtful advice: "%s"
The NIST Randomness Beacon has determined this should be %s advice.
Give SERIOUS, CONSIDERATE advice that's: %s in tone, thoughtful and empathetic, practical and actionable, wise and mature, 2-3 sentences.
Be genuinely helpful, empathetic, and maintain the %s tone.`,
		question, instruction, instruction, strings.ToLower(instruction))
}

func funnyPrompt(question string, isPositive bool) string {
	instruction := "CAUTIONARY and SKEPTICAL"
	if isPositive {
		instruction = "POSITIVE and ENCOURAGING"
	}
	return fmt.Sprintf(`Someone asked for advice: "%s"
The NIST Randomness Beacon has determined this should be %s advice.
Give FUNNY, UNCONVENTIONAL advice that's: %s in tone, hilariously absurd but somehow makes weird sense, creative and unexpected. 2-3 sentences max.
Be creative, weird, and funny while maintaining the %s tone determined by quantum randomness!`,
		question, instruction, instruction, strings.ToLower(instruction))
}
