package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
	"boobot/pkg/constants"
)

// TelegramBot implements the Adapter interface for Telegram using long polling
type TelegramBot struct {
	mu      sync.RWMutex
	token   string
	bot     *tgbotapi.BotAPI
	handler func(Event)
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewTelegramBot creates a new Telegram bot instance
func NewTelegramBot(token string) *TelegramBot {
	return &TelegramBot{
		token: token,
	}
}

// Platform returns the platform name
func (t *TelegramBot) Platform() string { return "telegram" }

// Start establishes long polling connection to Telegram and begins listening for messages
func (t *TelegramBot) Start(handler func(Event)) error {
	t.setHandler(handler)
	t.ctx, t.cancel = context.WithCancel(context.Background())

	logger.WithFields(logrus.Fields{
		"token": maskSecret(t.token),
	}).Info("starting-telegram-bot-with-long-polling")

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"error": err,
		}).Error("failed-to-initialize-telegram-bot")
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	t.mu.Lock()
	t.bot = bot
	t.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"bot_username": bot.Self.UserName,
		"bot_id":       bot.Self.ID,
	}).Info("telegram-bot-initialized-successfully")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(constants.DefaultPollTimeout.Seconds()) // Long poll timeout in seconds

	updates := bot.GetUpdatesChan(u)

	// Process updates in background
	go func() {
		for {
			select {
			case <-t.ctx.Done():
				logger.Info("telegram-long-polling-stopped")
				return
			case update, ok := <-updates:
				if !ok {
					logger.Info("telegram-updates-channel-closed")
					return
				}

				switch {
				case update.Message != nil:
					t.handleMessage(update.Message, false)
				case update.EditedMessage != nil:
					t.handleMessage(update.EditedMessage, true)
				}
			}
		}
	}()

	logger.Info("telegram-long-polling-connection-started")
	return nil
}

// handleMessage normalizes one Telegram message into an Event
func (t *TelegramBot) handleMessage(message *tgbotapi.Message, isEdit bool) {
	if message == nil || message.Text == "" {
		return
	}

	var userID, senderName string
	if message.From != nil {
		userID = fmt.Sprintf("%d", message.From.ID)
		senderName = message.From.UserName
		if senderName == "" {
			senderName = message.From.FirstName
		}
	}

	var chatID string
	if message.Chat != nil {
		chatID = fmt.Sprintf("%d", message.Chat.ID)
	}

	logger.WithFields(logrus.Fields{
		"platform":   "telegram",
		"user_id":    userID,
		"username":   senderName,
		"chat_id":    chatID,
		"message_id": message.MessageID,
		"is_edit":    isEdit,
	}).Debug("received-telegram-message")

	handler := t.getHandler()
	if handler == nil {
		return
	}
	handler(Event{
		Platform:   "telegram",
		UserID:     userID,
		SenderName: senderName,
		Channel:    chatID,
		EventID:    eventID(fmt.Sprintf("%d", message.MessageID)),
		Body:       message.Text,
		IsEdit:     isEdit,
		Timestamp:  time.Now(),
	})
}

// SendMessage sends a message to a Telegram chat
func (t *TelegramBot) SendMessage(chatID, message string) error {
	t.mu.RLock()
	bot := t.bot
	t.mu.RUnlock()

	if bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}
	if chatID == "" {
		return fmt.Errorf("chat ID is required for Telegram")
	}

	if len(message) > constants.MaxTelegramMessageLength {
		logger.WithFields(logrus.Fields{
			"original_length": len(message),
			"max_length":      constants.MaxTelegramMessageLength,
		}).Info("truncating-message-for-telegram-limit")
		message = truncate(message, constants.MaxTelegramMessageLength)
	}

	// Parse chat ID (convert string to int64)
	var chatIDInt int64
	if _, err := fmt.Sscanf(chatID, "%d", &chatIDInt); err != nil {
		return fmt.Errorf("invalid chat ID format: %w", err)
	}

	msg := tgbotapi.NewMessage(chatIDInt, message)
	msg.ParseMode = "Markdown" // Support markdown formatting

	if _, err := bot.Send(msg); err != nil {
		logger.WithFields(logrus.Fields{
			"chat_id": chatID,
			"error":   err,
		}).Error("failed-to-send-message-to-telegram")
		return fmt.Errorf("failed to send message to chat %s: %w", chatID, err)
	}

	logger.WithField("chat_id", chatID).Debug("message-sent-to-telegram")
	return nil
}

// SendFile uploads a document to a Telegram chat
func (t *TelegramBot) SendFile(chatID, filename string, data []byte) error {
	t.mu.RLock()
	bot := t.bot
	t.mu.RUnlock()

	if bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}

	var chatIDInt int64
	if _, err := fmt.Sscanf(chatID, "%d", &chatIDInt); err != nil {
		return fmt.Errorf("invalid chat ID format: %w", err)
	}

	doc := tgbotapi.NewDocument(chatIDInt, tgbotapi.FileBytes{Name: filename, Bytes: data})
	if _, err := bot.Send(doc); err != nil {
		return fmt.Errorf("failed to send document to chat %s: %w", chatID, err)
	}

	logger.WithFields(logrus.Fields{
		"chat_id":  chatID,
		"filename": filename,
		"size":     len(data),
	}).Info("document-sent-to-telegram")
	return nil
}

// DisplayName returns the bot's own Telegram name
func (t *TelegramBot) DisplayName(ctx context.Context) (string, error) {
	t.mu.RLock()
	bot := t.bot
	t.mu.RUnlock()

	if bot == nil {
		return "", fmt.Errorf("telegram bot not initialized")
	}
	if bot.Self.FirstName != "" {
		return bot.Self.FirstName, nil
	}
	if bot.Self.UserName != "" {
		return bot.Self.UserName, nil
	}
	return "", fmt.Errorf("telegram bot has no display name")
}

// Stop closes the Telegram long polling connection and cleans up resources
func (t *TelegramBot) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}

	t.mu.Lock()
	bot := t.bot
	t.bot = nil
	t.mu.Unlock()

	if bot != nil {
		bot.StopReceivingUpdates()
		logger.Info("telegram-long-polling-stopped")
	}

	logger.Info("telegram-bot-stopped")
	return nil
}

func (t *TelegramBot) setHandler(handler func(Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

func (t *TelegramBot) getHandler() func(Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.handler
}
