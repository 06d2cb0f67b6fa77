package plugin

import (
	"context"
	"sync"
	"time"
)

// MockPlugin is a configurable Plugin implementation for testing
type MockPlugin struct {
	mu           sync.Mutex
	name         string
	version      string
	description  string
	commands     []string
	initErr      error
	initPanic    bool
	handleFunc   func(inv Invocation) (string, error)
	cleanupErr   error
	initCalls    int
	handleCalls  []Invocation
	cleanupCalls int
	host         Host
}

func newMockPlugin(name string, commands ...string) *MockPlugin {
	return &MockPlugin{
		name:        name,
		version:     "1.0.0",
		description: "mock plugin " + name,
		commands:    commands,
	}
}

func (m *MockPlugin) Name() string        { return m.name }
func (m *MockPlugin) Version() string     { return m.version }
func (m *MockPlugin) Description() string { return m.description }

func (m *MockPlugin) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

func (m *MockPlugin) Initialize(ctx context.Context, host Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initCalls++
	m.host = host
	if m.initPanic {
		panic("mock initialize panic")
	}
	return m.initErr
}

func (m *MockPlugin) HandleCommand(ctx context.Context, inv Invocation) (string, error) {
	m.mu.Lock()
	m.handleCalls = append(m.handleCalls, inv)
	handler := m.handleFunc
	m.mu.Unlock()

	if handler != nil {
		return handler(inv)
	}
	return "reply from " + m.name, nil
}

func (m *MockPlugin) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupCalls++
	return m.cleanupErr
}

func (m *MockPlugin) InitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initCalls
}

func (m *MockPlugin) HandleCalls() []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]Invocation, len(m.handleCalls))
	copy(calls, m.handleCalls)
	return calls
}

func (m *MockPlugin) CleanupCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleanupCalls
}

// MockObserver is a MockPlugin that also records observed messages.
type MockObserver struct {
	*MockPlugin
	obsMu        sync.Mutex
	observed     []Message
	observePanic bool
}

func newMockObserver(name string, commands ...string) *MockObserver {
	return &MockObserver{MockPlugin: newMockPlugin(name, commands...)}
}

func (o *MockObserver) ObserveMessage(ctx context.Context, msg Message) {
	o.obsMu.Lock()
	defer o.obsMu.Unlock()
	if o.observePanic {
		panic("mock observer panic")
	}
	o.observed = append(o.observed, msg)
}

func (o *MockObserver) Observed() []Message {
	o.obsMu.Lock()
	defer o.obsMu.Unlock()
	out := make([]Message, len(o.observed))
	copy(out, o.observed)
	return out
}

// MockHost is a no-op Host that records sent messages
type MockHost struct {
	mu       sync.Mutex
	sent     []SentMessage
	started  time.Time
	statusFn func() Status
}

type SentMessage struct {
	RoomID string
	Text   string
}

func newMockHost() *MockHost {
	return &MockHost{started: time.Now()}
}

func (h *MockHost) SendMessage(ctx context.Context, roomID, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, SentMessage{RoomID: roomID, Text: text})
	return nil
}

func (h *MockHost) SendFile(ctx context.Context, roomID, filename string, data []byte) error {
	return nil
}

func (h *MockHost) DisplayName(platform string) string { return "Boo" }

func (h *MockHost) RefreshDisplayName(ctx context.Context, platform string) (string, error) {
	return "Boo", nil
}

func (h *MockHost) PluginStatus() Status {
	if h.statusFn != nil {
		return h.statusFn()
	}
	return Status{Failed: map[string]string{}}
}

func (h *MockHost) AllCommands() map[string]string            { return map[string]string{} }
func (h *MockHost) ReloadPlugin(ctx context.Context, name string) error { return nil }
func (h *MockHost) EnablePlugin(name string) bool             { return false }
func (h *MockHost) DisablePlugin(name string) bool            { return false }
func (h *MockHost) Counters() map[string]uint64               { return map[string]uint64{} }
func (h *MockHost) StartedAt() time.Time                      { return h.started }
func (h *MockHost) ConfigValue(key string) string             { return "" }

func (h *MockHost) Sent() []SentMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SentMessage, len(h.sent))
	copy(out, h.sent)
	return out
}
