package transport

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"boobot/pkg/constants"
)

// MockDiscordSession is a mock implementation of DiscordSessionInterface for testing
type MockDiscordSession struct {
	shouldFailOnOpen bool
	shouldFailOnSend bool
	openCalled       bool
	closed           bool
	sentMessages     []SentDiscordMessage
	sentFiles        []SentDiscordFile
	handlers         []interface{}
}

type SentDiscordMessage struct {
	Channel string
	Message string
}

type SentDiscordFile struct {
	Channel string
	Name    string
	Size    int
}

func (m *MockDiscordSession) AddHandler(handler interface{}) func() {
	m.handlers = append(m.handlers, handler)
	return func() {} // Return a remove handler function
}

func (m *MockDiscordSession) Open() error {
	m.openCalled = true
	if m.shouldFailOnOpen {
		return errors.New("failed to open discord connection")
	}
	return nil
}

func (m *MockDiscordSession) Close() error {
	m.closed = true
	return nil
}

func (m *MockDiscordSession) ChannelMessageSend(channel, message string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.shouldFailOnSend {
		return nil, errors.New("failed to send message")
	}
	m.sentMessages = append(m.sentMessages, SentDiscordMessage{
		Channel: channel,
		Message: message,
	})
	return &discordgo.Message{ID: "msg-id"}, nil
}

func (m *MockDiscordSession) ChannelFileSend(channel, name string, r io.Reader, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.shouldFailOnSend {
		return nil, errors.New("failed to send file")
	}
	data, _ := io.ReadAll(r)
	m.sentFiles = append(m.sentFiles, SentDiscordFile{
		Channel: channel,
		Name:    name,
		Size:    len(data),
	})
	return &discordgo.Message{ID: "file-msg-id"}, nil
}

// Helpers to drive the registered handlers through the mock session

func (m *MockDiscordSession) SimulateReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, h := range m.handlers {
		if fn, ok := h.(func(*discordgo.Session, *discordgo.Ready)); ok {
			fn(s, r)
		}
	}
}

func (m *MockDiscordSession) SimulateMessage(s *discordgo.Session, msg *discordgo.MessageCreate) {
	for _, h := range m.handlers {
		if fn, ok := h.(func(*discordgo.Session, *discordgo.MessageCreate)); ok {
			fn(s, msg)
		}
	}
}

func (m *MockDiscordSession) SimulateUpdate(s *discordgo.Session, msg *discordgo.MessageUpdate) {
	for _, h := range m.handlers {
		if fn, ok := h.(func(*discordgo.Session, *discordgo.MessageUpdate)); ok {
			fn(s, msg)
		}
	}
}

func TestNewDiscordBot_WithValidToken_CreatesBot(t *testing.T) {
	bot := NewDiscordBot("test-token")

	if bot == nil {
		t.Fatal("Expected bot to be created, got nil")
	}

	if bot.token != "test-token" {
		t.Errorf("Expected token 'test-token', got '%s'", bot.token)
	}

	if bot.session != nil {
		t.Error("Expected session to be nil initially")
	}

	if bot.Platform() != "discord" {
		t.Errorf("Expected platform 'discord', got '%s'", bot.Platform())
	}
}

func TestDiscordBot_Start_DeliversMessages(t *testing.T) {
	mockSession := &MockDiscordSession{}

	bot := NewDiscordBot("test-token")
	bot.session = mockSession

	var received []Event
	err := bot.Start(func(ev Event) {
		received = append(received, ev)
	})
	if err != nil {
		t.Fatalf("Expected no error on start, got %v", err)
	}

	if !mockSession.openCalled {
		t.Error("Expected session.Open() to be called")
	}

	dgSession := &discordgo.Session{}
	mockSession.SimulateMessage(dgSession, &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "msg-1",
			Content:   "Hello, bot!",
			ChannelID: "123456789",
			Author: &discordgo.User{
				ID:       "user-123",
				Bot:      false,
				Username: "testuser",
			},
		},
	})

	if len(received) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(received))
	}

	ev := received[0]
	if ev.Body != "Hello, bot!" {
		t.Errorf("Expected body 'Hello, bot!', got '%s'", ev.Body)
	}
	if ev.Platform != "discord" {
		t.Errorf("Expected platform 'discord', got '%s'", ev.Platform)
	}
	if ev.Channel != "123456789" {
		t.Errorf("Expected channel '123456789', got '%s'", ev.Channel)
	}
	if ev.UserID != "user-123" {
		t.Errorf("Expected UserID 'user-123', got '%s'", ev.UserID)
	}
	if ev.SenderName != "testuser" {
		t.Errorf("Expected SenderName 'testuser', got '%s'", ev.SenderName)
	}
	if ev.EventID != "msg-1" {
		t.Errorf("Expected EventID 'msg-1', got '%s'", ev.EventID)
	}
	if ev.IsEdit {
		t.Error("Expected IsEdit to be false for a fresh message")
	}

	bot.Stop()
}

func TestDiscordBot_Start_IgnoresBotMessages(t *testing.T) {
	mockSession := &MockDiscordSession{}

	bot := NewDiscordBot("test-token")
	bot.session = mockSession

	handlerCalled := false
	err := bot.Start(func(ev Event) {
		handlerCalled = true
	})
	if err != nil {
		t.Fatalf("Expected no error on start, got %v", err)
	}

	dgSession := &discordgo.Session{}
	mockSession.SimulateMessage(dgSession, &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "msg-2",
			Content:   "Bot message",
			ChannelID: "123456789",
			Author: &discordgo.User{
				ID:       "bot-123",
				Bot:      true,
				Username: "testbot",
			},
		},
	})

	if handlerCalled {
		t.Error("Expected bot messages to be ignored, but handler was called")
	}

	bot.Stop()
}

func TestDiscordBot_Start_DeliversEditsFlagged(t *testing.T) {
	mockSession := &MockDiscordSession{}

	bot := NewDiscordBot("test-token")
	bot.session = mockSession

	var received []Event
	err := bot.Start(func(ev Event) {
		received = append(received, ev)
	})
	if err != nil {
		t.Fatalf("Expected no error on start, got %v", err)
	}

	dgSession := &discordgo.Session{}
	mockSession.SimulateUpdate(dgSession, &discordgo.MessageUpdate{
		Message: &discordgo.Message{
			ID:        "msg-3",
			Content:   "corrected command",
			ChannelID: "123456789",
			Author: &discordgo.User{
				ID:       "user-123",
				Username: "testuser",
			},
		},
	})

	if len(received) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(received))
	}
	if !received[0].IsEdit {
		t.Error("Expected IsEdit to be true for an edited message")
	}
	if received[0].Body != "corrected command" {
		t.Errorf("Expected edited body 'corrected command', got '%s'", received[0].Body)
	}

	bot.Stop()
}

func TestDiscordBot_Start_SkipsEmptyEdits(t *testing.T) {
	mockSession := &MockDiscordSession{}

	bot := NewDiscordBot("test-token")
	bot.session = mockSession

	handlerCalled := false
	err := bot.Start(func(ev Event) {
		handlerCalled = true
	})
	if err != nil {
		t.Fatalf("Expected no error on start, got %v", err)
	}

	// Embed and attachment updates arrive with empty content
	dgSession := &discordgo.Session{}
	mockSession.SimulateUpdate(dgSession, &discordgo.MessageUpdate{
		Message: &discordgo.Message{
			ID:        "msg-4",
			Content:   "",
			ChannelID: "123456789",
			Author: &discordgo.User{
				ID:       "user-123",
				Username: "testuser",
			},
		},
	})

	if handlerCalled {
		t.Error("Expected empty-content edits to be skipped")
	}

	bot.Stop()
}

func TestDiscordBot_Start_WithSessionOpenError_ReturnsError(t *testing.T) {
	mockSession := &MockDiscordSession{
		shouldFailOnOpen: true,
	}

	bot := NewDiscordBot("test-token")
	bot.session = mockSession

	err := bot.Start(func(ev Event) {})
	if err == nil {
		t.Error("Expected error on session open failure, got nil")
	}

	if !mockSession.openCalled {
		t.Error("Expected session.Open() to be called even on failure")
	}
}

func TestDiscordBot_DisplayName_FollowsReadyEvent(t *testing.T) {
	mockSession := &MockDiscordSession{}

	bot := NewDiscordBot("test-token")
	bot.session = mockSession

	err := bot.Start(func(ev Event) {})
	if err != nil {
		t.Fatalf("Expected no error on start, got %v", err)
	}

	if _, err := bot.DisplayName(context.Background()); err == nil {
		t.Error("Expected error before the ready event, got nil")
	}

	dgSession := &discordgo.Session{}
	mockSession.SimulateReady(dgSession, &discordgo.Ready{
		User: &discordgo.User{
			ID:       "bot-self",
			Username: "boo",
		},
	})

	name, err := bot.DisplayName(context.Background())
	if err != nil {
		t.Fatalf("Expected no error after ready event, got %v", err)
	}
	if name != "boo" {
		t.Errorf("Expected display name 'boo', got '%s'", name)
	}

	bot.Stop()
}

func TestDiscordBot_SendMessage_WithValidChannel_SendsSuccessfully(t *testing.T) {
	mockSession := &MockDiscordSession{}

	bot := NewDiscordBot("test-token")
	bot.session = mockSession

	err := bot.SendMessage("test-channel", "Hello, world!")
	if err != nil {
		t.Fatalf("Expected no error sending message, got %v", err)
	}

	if len(mockSession.sentMessages) != 1 {
		t.Fatalf("Expected 1 message sent, got %d", len(mockSession.sentMessages))
	}

	if mockSession.sentMessages[0].Channel != "test-channel" {
		t.Errorf("Expected channel 'test-channel', got '%s'", mockSession.sentMessages[0].Channel)
	}

	if mockSession.sentMessages[0].Message != "Hello, world!" {
		t.Errorf("Expected message 'Hello, world!', got '%s'", mockSession.sentMessages[0].Message)
	}
}

func TestDiscordBot_SendMessage_TruncatesLongMessages(t *testing.T) {
	mockSession := &MockDiscordSession{}

	bot := NewDiscordBot("test-token")
	bot.session = mockSession

	long := strings.Repeat("a", constants.MaxDiscordMessageLength+500)
	err := bot.SendMessage("test-channel", long)
	if err != nil {
		t.Fatalf("Expected no error sending message, got %v", err)
	}

	if len(mockSession.sentMessages) != 1 {
		t.Fatalf("Expected 1 message sent, got %d", len(mockSession.sentMessages))
	}

	if got := len(mockSession.sentMessages[0].Message); got != constants.MaxDiscordMessageLength {
		t.Errorf("Expected message truncated to %d, got %d", constants.MaxDiscordMessageLength, got)
	}
}

func TestDiscordBot_SendMessage_WithSendError_ReturnsError(t *testing.T) {
	mockSession := &MockDiscordSession{
		shouldFailOnSend: true,
	}

	bot := NewDiscordBot("test-token")
	bot.session = mockSession

	err := bot.SendMessage("test-channel", "Hello, world!")
	if err == nil {
		t.Error("Expected error on send failure, got nil")
	}
}

func TestDiscordBot_SendMessage_WithNilSession_ReturnsError(t *testing.T) {
	bot := NewDiscordBot("test-token")

	err := bot.SendMessage("test-channel", "Hello, world!")
	if err == nil {
		t.Error("Expected error with nil session, got nil")
	}
}

func TestDiscordBot_SendMessage_WithEmptyChannel_ReturnsError(t *testing.T) {
	mockSession := &MockDiscordSession{}

	bot := NewDiscordBot("test-token")
	bot.session = mockSession

	err := bot.SendMessage("", "Hello, world!")
	if err == nil {
		t.Error("Expected error with empty channel, got nil")
	}
}

func TestDiscordBot_SendFile_UploadsData(t *testing.T) {
	mockSession := &MockDiscordSession{}

	bot := NewDiscordBot("test-token")
	bot.session = mockSession

	data := []byte("subtitle file contents")
	err := bot.SendFile("test-channel", "subs.vtt", data)
	if err != nil {
		t.Fatalf("Expected no error sending file, got %v", err)
	}

	if len(mockSession.sentFiles) != 1 {
		t.Fatalf("Expected 1 file sent, got %d", len(mockSession.sentFiles))
	}

	sent := mockSession.sentFiles[0]
	if sent.Channel != "test-channel" {
		t.Errorf("Expected channel 'test-channel', got '%s'", sent.Channel)
	}
	if sent.Name != "subs.vtt" {
		t.Errorf("Expected filename 'subs.vtt', got '%s'", sent.Name)
	}
	if sent.Size != len(data) {
		t.Errorf("Expected file size %d, got %d", len(data), sent.Size)
	}
}

func TestDiscordBot_Stop_WithActiveSession_ClosesSuccessfully(t *testing.T) {
	mockSession := &MockDiscordSession{}

	bot := NewDiscordBot("test-token")
	bot.session = mockSession

	err := bot.Stop()
	if err != nil {
		t.Fatalf("Expected no error on stop, got %v", err)
	}

	if !mockSession.closed {
		t.Error("Expected session.Close() to be called")
	}
}

func TestDiscordBot_Stop_WithNilSession_NoError(t *testing.T) {
	bot := NewDiscordBot("test-token")

	err := bot.Stop()
	if err != nil {
		t.Fatalf("Expected no error on stop with nil session, got %v", err)
	}
}
