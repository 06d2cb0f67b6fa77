package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/open-dingtalk/dingtalk-stream-sdk-go/chatbot"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/client"
	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
	"boobot/pkg/constants"
)

// sessionWebhook is the per-conversation reply endpoint DingTalk hands us
// with each inbound message. Webhooks expire, so the expiry travels with it.
type sessionWebhook struct {
	url       string
	expiresAt time.Time
}

// DingTalkBot implements the Adapter interface for DingTalk using WebSocket long connection
type DingTalkBot struct {
	mu           sync.RWMutex
	clientID     string
	clientSecret string
	streamClient *client.StreamClient
	replier      *chatbot.ChatbotReplier
	webhooks     map[string]sessionWebhook
	botName      string
	handler      func(Event)
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewDingTalkBot creates a new DingTalk bot instance. The bot name comes
// from configuration since the stream API carries no bot identity.
func NewDingTalkBot(clientID, clientSecret, botName string) *DingTalkBot {
	return &DingTalkBot{
		clientID:     clientID,
		clientSecret: clientSecret,
		replier:      chatbot.NewChatbotReplier(),
		webhooks:     make(map[string]sessionWebhook),
		botName:      botName,
	}
}

// Platform returns the platform name
func (d *DingTalkBot) Platform() string { return "dingtalk" }

// Start establishes WebSocket long connection to DingTalk and begins listening for messages
func (d *DingTalkBot) Start(handler func(Event)) error {
	d.setHandler(handler)
	d.ctx, d.cancel = context.WithCancel(context.Background())

	logger.WithFields(logrus.Fields{
		"client_id": maskAppID(d.clientID),
	}).Info("starting-dingtalk-bot-with-websocket-long-connection")

	credential := client.NewAppCredentialConfig(d.clientID, d.clientSecret)

	d.mu.Lock()
	d.streamClient = client.NewStreamClient(client.WithAppCredential(credential))
	streamClient := d.streamClient
	d.mu.Unlock()

	streamClient.RegisterChatBotCallbackRouter(d.handleMessageReceive)

	// Start long connection
	go func() {
		if err := streamClient.Start(d.ctx); err != nil {
			logger.WithFields(logrus.Fields{
				"client_id": maskAppID(d.clientID),
				"error":     err,
			}).Error("dingtalk-websocket-connection-failed")
		}
	}()

	// Give connection time to establish
	time.Sleep(constants.DefaultConnectionTimeout)

	logger.Info("dingtalk-websocket-long-connection-started")
	return nil
}

// handleMessageReceive handles incoming message events from DingTalk
func (d *DingTalkBot) handleMessageReceive(ctx context.Context, data *chatbot.BotCallbackDataModel) ([]byte, error) {
	if data == nil {
		return []byte(""), nil
	}

	logger.WithFields(logrus.Fields{
		"platform":          "dingtalk",
		"conversation_id":   data.ConversationId,
		"conversation_type": data.ConversationType,
		"sender_nick":       data.SenderNick,
		"sender_staff_id":   data.SenderStaffId,
		"msg_id":            data.MsgId,
		"msg_type":          data.Msgtype,
	}).Debug("received-dingtalk-message-event")

	// Replies go through the session webhook attached to each message
	if data.SessionWebhook != "" {
		d.storeWebhook(data.ConversationId, data.SessionWebhook, data.SessionWebhookExpiredTime)
	}

	content := ""
	if data.Msgtype == "text" {
		content = data.Text.Content
	}

	handler := d.getHandler()
	if handler != nil {
		handler(Event{
			Platform:   "dingtalk",
			UserID:     data.SenderStaffId,
			SenderName: data.SenderNick,
			Channel:    data.ConversationId,
			EventID:    eventID(data.MsgId),
			Body:       content,
			Timestamp:  time.Now(),
		})
	}

	return []byte(""), nil
}

// SendMessage sends a message to a DingTalk conversation via its session webhook
func (d *DingTalkBot) SendMessage(conversationID, message string) error {
	if conversationID == "" {
		return fmt.Errorf("conversation ID is required for DingTalk")
	}

	wh, ok := d.lookupWebhook(conversationID)
	if !ok {
		return fmt.Errorf("no session webhook for conversation %s: the bot can only reply to conversations it has received messages from", conversationID)
	}
	if !wh.expiresAt.IsZero() && time.Now().After(wh.expiresAt) {
		return fmt.Errorf("session webhook for conversation %s expired", conversationID)
	}

	if len(message) > constants.MaxDingTalkMessageLength {
		logger.WithFields(logrus.Fields{
			"original_length": len(message),
			"max_length":      constants.MaxDingTalkMessageLength,
		}).Info("truncating-message-for-dingtalk-limit")
		message = truncate(message, constants.MaxDingTalkMessageLength)
	}

	ctx := d.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := d.replier.SimpleReplyText(ctx, wh.url, []byte(message)); err != nil {
		logger.WithFields(logrus.Fields{
			"conversation_id": conversationID,
			"error":           err,
		}).Error("failed-to-send-message-to-dingtalk")
		return fmt.Errorf("failed to send message to conversation %s: %w", conversationID, err)
	}

	logger.WithField("conversation_id", conversationID).Debug("message-sent-to-dingtalk")
	return nil
}

// DisplayName returns the configured bot name for DingTalk
func (d *DingTalkBot) DisplayName(ctx context.Context) (string, error) {
	if d.botName == "" {
		return "", fmt.Errorf("dingtalk bot name not configured")
	}
	return d.botName, nil
}

// Stop closes the DingTalk WebSocket connection and cleans up resources
func (d *DingTalkBot) Stop() error {
	if d.cancel != nil {
		d.cancel()
	}

	d.mu.Lock()
	streamClient := d.streamClient
	d.streamClient = nil
	d.mu.Unlock()

	if streamClient != nil {
		streamClient.Close()
		logger.Info("dingtalk-websocket-connection-stopped")
	}

	logger.Info("dingtalk-bot-stopped")
	return nil
}

func (d *DingTalkBot) storeWebhook(conversationID, url string, expiredAtMillis int64) {
	wh := sessionWebhook{url: url}
	if expiredAtMillis > 0 {
		wh.expiresAt = time.UnixMilli(expiredAtMillis)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.webhooks[conversationID] = wh
}

func (d *DingTalkBot) lookupWebhook(conversationID string) (sessionWebhook, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	wh, ok := d.webhooks[conversationID]
	return wh, ok
}

func (d *DingTalkBot) setHandler(handler func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = handler
}

func (d *DingTalkBot) getHandler() func(Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handler
}
