package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
	"boobot/pkg/constants"
)

// DiscordSessionInterface defines the interface we need from discordgo.Session
// This allows us to mock it in tests without depending on concrete types
type DiscordSessionInterface interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelFileSend(channelID, name string, r io.Reader, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordBot implements the Adapter interface for Discord
type DiscordBot struct {
	mu       sync.RWMutex
	token    string
	session  DiscordSessionInterface
	handler  func(Event)
	selfID   string
	selfName string
}

// NewDiscordBot creates a new Discord bot instance
func NewDiscordBot(token string) *DiscordBot {
	return &DiscordBot{
		token:   token,
		session: nil, // Will be created in Start()
	}
}

// Platform returns the platform name
func (d *DiscordBot) Platform() string { return "discord" }

// Start establishes connection to Discord and begins listening for messages
func (d *DiscordBot) Start(handler func(Event)) error {
	d.setHandler(handler)

	logger.WithFields(logrus.Fields{
		"token": maskSecret(d.token),
	}).Info("starting-discord-bot")

	// Create Discord session if not already set (allows mocking in tests)
	d.mu.Lock()
	session := d.session
	d.mu.Unlock()
	if session == nil {
		s, err := discordgo.New("Bot " + d.token)
		if err != nil {
			return fmt.Errorf("failed to create discord session: %w", err)
		}
		session = s
		d.mu.Lock()
		d.session = session
		d.mu.Unlock()
	}

	// The Ready event carries the bot's own identity; cache it for the
	// display name lookup and self-message filtering.
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		if r.User == nil {
			return
		}
		d.mu.Lock()
		d.selfID = r.User.ID
		d.selfName = r.User.Username
		d.mu.Unlock()
		logger.WithFields(logrus.Fields{
			"platform": "discord",
			"name":     r.User.Username,
		}).Info("discord-bot-identity-ready")
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		d.deliver(m.Message, false)
	})

	// Message edits arrive as updates; deliver them flagged so the intake
	// treats the new content as an edited command.
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageUpdate) {
		if m.Author == nil || m.Author.Bot || m.Content == "" {
			return
		}
		d.deliver(m.Message, true)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open discord connection: %w", err)
	}

	return nil
}

func (d *DiscordBot) deliver(m *discordgo.Message, isEdit bool) {
	logger.WithFields(logrus.Fields{
		"platform": "discord",
		"user_id":  m.Author.ID,
		"username": m.Author.Username,
		"channel":  m.ChannelID,
		"is_edit":  isEdit,
	}).Debug("received-discord-message")

	handler := d.getHandler()
	if handler == nil {
		return
	}
	handler(Event{
		Platform:   "discord",
		UserID:     m.Author.ID,
		SenderName: m.Author.Username,
		Channel:    m.ChannelID,
		EventID:    eventID(m.ID),
		Body:       m.Content,
		IsEdit:     isEdit,
		Timestamp:  time.Now(),
	})
}

// SendMessage sends a message to a Discord channel
func (d *DiscordBot) SendMessage(channel, message string) error {
	d.mu.RLock()
	session := d.session
	d.mu.RUnlock()

	if session == nil {
		return fmt.Errorf("discord session not initialized")
	}
	if channel == "" {
		return fmt.Errorf("channel ID is required for Discord")
	}

	if len(message) > constants.MaxDiscordMessageLength {
		logger.WithFields(logrus.Fields{
			"original_length": len(message),
			"max_length":      constants.MaxDiscordMessageLength,
		}).Info("truncating-message-for-discord-limit")
		message = truncate(message, constants.MaxDiscordMessageLength)
	}

	if _, err := session.ChannelMessageSend(channel, message); err != nil {
		logger.WithFields(logrus.Fields{
			"channel": channel,
			"error":   err,
		}).Error("failed-to-send-message-to-discord")
		return fmt.Errorf("failed to send message to channel %s: %w", channel, err)
	}

	logger.WithField("channel", channel).Debug("message-sent-to-discord")
	return nil
}

// SendFile uploads a file to a Discord channel
func (d *DiscordBot) SendFile(channel, filename string, data []byte) error {
	d.mu.RLock()
	session := d.session
	d.mu.RUnlock()

	if session == nil {
		return fmt.Errorf("discord session not initialized")
	}

	if _, err := session.ChannelFileSend(channel, filename, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to send file to channel %s: %w", channel, err)
	}

	logger.WithFields(logrus.Fields{
		"channel":  channel,
		"filename": filename,
		"size":     len(data),
	}).Info("file-sent-to-discord")
	return nil
}

// DisplayName returns the bot's own Discord username
func (d *DiscordBot) DisplayName(ctx context.Context) (string, error) {
	d.mu.RLock()
	name := d.selfName
	d.mu.RUnlock()

	if name == "" {
		return "", fmt.Errorf("discord bot identity not ready yet")
	}
	return name, nil
}

// Stop closes the Discord connection and cleans up resources
func (d *DiscordBot) Stop() error {
	d.mu.Lock()
	session := d.session
	d.session = nil
	d.mu.Unlock()

	if session == nil {
		return nil
	}

	if err := session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

func (d *DiscordBot) setHandler(handler func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = handler
}

func (d *DiscordBot) getHandler() func(Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handler
}
