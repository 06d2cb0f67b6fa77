package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
	"boobot/pkg/constants"
)

// FeishuBot implements the Adapter interface for Feishu (Lark) using WebSocket long connection
type FeishuBot struct {
	mu                sync.RWMutex
	AppID             string
	AppSecret         string
	EncryptKey        string // Optional, for encrypted events
	VerificationToken string // Optional, for event verification
	WSClient          *ws.Client
	LarkClient        *lark.Client
	Dispatcher        *dispatcher.EventDispatcher
	botName           string
	handler           func(Event)
	ctx               context.Context
	cancel            context.CancelFunc
}

// NewFeishuBot creates a new Feishu bot instance. Tenant display name
// lookups need extra scopes, so the bot name comes from configuration.
func NewFeishuBot(appID, appSecret, botName string) *FeishuBot {
	return &FeishuBot{
		AppID:      appID,
		AppSecret:  appSecret,
		LarkClient: lark.NewClient(appID, appSecret),
		botName:    botName,
	}
}

// Platform returns the platform name
func (f *FeishuBot) Platform() string { return "feishu" }

// Start establishes WebSocket long connection to Feishu and begins listening for messages
func (f *FeishuBot) Start(handler func(Event)) error {
	f.setHandler(handler)
	f.ctx, f.cancel = context.WithCancel(context.Background())

	logger.WithFields(logrus.Fields{
		"app_id": maskAppID(f.AppID),
	}).Info("starting-feishu-bot-with-websocket-long-connection")

	f.Dispatcher = dispatcher.NewEventDispatcher(f.VerificationToken, f.EncryptKey)

	f.Dispatcher.OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
		return f.handleMessageReceive(ctx, event)
	})

	f.WSClient = ws.NewClient(f.AppID, f.AppSecret,
		ws.WithEventHandler(f.Dispatcher),
		ws.WithLogLevel(larkcore.LogLevelInfo),
		ws.WithAutoReconnect(true),
	)

	// Start long connection (this blocks)
	go func() {
		if err := f.WSClient.Start(f.ctx); err != nil {
			logger.WithFields(logrus.Fields{
				"app_id": maskAppID(f.AppID),
				"error":  err,
			}).Error("feishu-websocket-connection-failed")
		}
	}()

	// Give connection time to establish
	time.Sleep(constants.DefaultConnectionTimeout)

	logger.Info("feishu-websocket-long-connection-started")
	return nil
}

// handleMessageReceive handles incoming message events from Feishu
func (f *FeishuBot) handleMessageReceive(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
	if event == nil || event.Event == nil {
		return nil
	}
	ev := event.Event

	var messageID, chatID, senderID, content, messageType string

	if ev.Message != nil {
		if ev.Message.MessageId != nil {
			messageID = *ev.Message.MessageId
		}
		if ev.Message.ChatId != nil {
			chatID = *ev.Message.ChatId
		}
		if ev.Message.MessageType != nil {
			messageType = *ev.Message.MessageType
		}
		// For text messages content is a JSON string like {"text":"actual message"}
		if ev.Message.Content != nil {
			content = extractTextContent(*ev.Message.Content)
		}
	}
	if ev.Sender != nil && ev.Sender.SenderId != nil && ev.Sender.SenderId.UserId != nil {
		senderID = *ev.Sender.SenderId.UserId
	}

	logger.WithFields(logrus.Fields{
		"platform":     "feishu",
		"user_id":      senderID,
		"chat_id":      chatID,
		"message_id":   messageID,
		"message_type": messageType,
		"content_len":  len(content),
	}).Debug("received-feishu-message")

	if messageType != "" && messageType != "text" {
		return nil
	}

	handler := f.getHandler()
	if handler == nil {
		return nil
	}
	handler(Event{
		Platform:  "feishu",
		UserID:    senderID,
		Channel:   chatID,
		EventID:   eventID(messageID),
		Body:      content,
		Timestamp: time.Now(),
	})
	return nil
}

// SendMessage sends a message to a Feishu chat
func (f *FeishuBot) SendMessage(chatID, message string) error {
	if f.LarkClient == nil {
		return fmt.Errorf("feishu client not initialized")
	}
	if chatID == "" {
		return fmt.Errorf("chat ID is required for Feishu")
	}

	if len(message) > constants.MaxFeishuMessageLength {
		logger.WithFields(logrus.Fields{
			"original_length": len(message),
			"max_length":      constants.MaxFeishuMessageLength,
		}).Info("truncating-message-for-feishu-limit")
		message = truncate(message, constants.MaxFeishuMessageLength)
	}

	// For text messages, content format: {"text":"actual content"}
	contentJSON := fmt.Sprintf(`{"text":"%s"}`, escapeJSONString(message))

	body := larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(chatID).
		MsgType(larkim.MsgTypeText).
		Content(contentJSON).
		Build()

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(body).
		Build()

	resp, err := f.LarkClient.Im.Message.Create(f.ctx, req)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"chat_id": chatID,
			"error":   err,
		}).Error("failed-to-send-message-to-feishu")
		return fmt.Errorf("failed to send message to chat %s: %w", chatID, err)
	}
	if !resp.Success() {
		logger.WithFields(logrus.Fields{
			"chat_id":    chatID,
			"code":       resp.Code,
			"msg":        resp.Msg,
			"request_id": resp.RequestId,
		}).Error("failed-to-send-message-to-feishu-api-error")
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	logger.WithField("chat_id", chatID).Debug("message-sent-to-feishu")
	return nil
}

// DisplayName returns the configured bot name for Feishu
func (f *FeishuBot) DisplayName(ctx context.Context) (string, error) {
	if f.botName == "" {
		return "", fmt.Errorf("feishu bot name not configured")
	}
	return f.botName, nil
}

// Stop closes the Feishu WebSocket connection and cleans up resources
func (f *FeishuBot) Stop() error {
	if f.cancel != nil {
		f.cancel()
	}

	if f.WSClient != nil {
		// ws.Client has no Stop method; the connection follows the context
		logger.Info("feishu-websocket-connection-stopped")
	}

	logger.Info("feishu-bot-stopped")
	return nil
}

func (f *FeishuBot) setHandler(handler func(Event)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
}

func (f *FeishuBot) getHandler() func(Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.handler
}

// extractTextContent extracts actual text from Feishu message content
// Feishu text message format: {"text":"actual message"}
func extractTextContent(content string) string {
	if len(content) > 10 && content[:1] == "{" {
		textStart := findInString(content, `"text":"`, 0)
		if textStart > 0 {
			textStart += 8 // len(`"text":"`)
			textEnd := findInString(content, `"`, textStart)
			if textEnd > textStart {
				return content[textStart:textEnd]
			}
		}
	}
	return content
}

// findInString finds substring in string starting from index
func findInString(s, substr string, start int) int {
	if start >= len(s) {
		return -1
	}
	for i := start; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

// escapeJSONString escapes special characters for JSON string content
func escapeJSONString(s string) string {
	result := ""
	for _, c := range s {
		switch c {
		case '"':
			result += "\\\""
		case '\\':
			result += "\\\\"
		case '\n':
			result += "\\n"
		case '\r':
			result += "\\r"
		case '\t':
			result += "\\t"
		default:
			result += string(c)
		}
	}
	return result
}
