package bot

import (
	"context"
	"sync"

	"boobot/internal/plugin"
	"boobot/internal/transport"
)

// fakeAdapter is an in-memory transport.Adapter. Tests inject inbound
// events through the handler the bot registered and read back the
// messages the bot sent.
type fakeAdapter struct {
	platform string

	mu        sync.Mutex
	name      string
	nameErr   error
	nameCalls int
	startErr  error
	sendErr   error
	handler   func(transport.Event)
	sent      []sentMessage
	stopped   bool
}

type sentMessage struct {
	channel string
	text    string
}

func newFakeAdapter(platform, name string) *fakeAdapter {
	return &fakeAdapter{platform: platform, name: name}
}

func (a *fakeAdapter) Platform() string { return a.platform }

func (a *fakeAdapter) Start(handler func(transport.Event)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startErr != nil {
		return a.startErr
	}
	a.handler = handler
	return nil
}

func (a *fakeAdapter) SendMessage(channel, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sendErr != nil {
		return a.sendErr
	}
	a.sent = append(a.sent, sentMessage{channel: channel, text: message})
	return nil
}

func (a *fakeAdapter) DisplayName(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nameCalls++
	if a.nameErr != nil {
		return "", a.nameErr
	}
	return a.name, nil
}

func (a *fakeAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	return nil
}

func (a *fakeAdapter) Sent() []sentMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]sentMessage, len(a.sent))
	copy(out, a.sent)
	return out
}

func (a *fakeAdapter) Handler() func(transport.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handler
}

func (a *fakeAdapter) NameCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nameCalls
}

func (a *fakeAdapter) Stopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

func (a *fakeAdapter) setNameErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nameErr = err
}

// fakeFileAdapter is a fakeAdapter with file upload support.
type fakeFileAdapter struct {
	*fakeAdapter
	filesMu sync.Mutex
	files   map[string][]byte
	fileErr error
}

func newFakeFileAdapter(platform, name string) *fakeFileAdapter {
	return &fakeFileAdapter{
		fakeAdapter: newFakeAdapter(platform, name),
		files:       make(map[string][]byte),
	}
}

func (a *fakeFileAdapter) SendFile(channel, filename string, data []byte) error {
	a.filesMu.Lock()
	defer a.filesMu.Unlock()
	if a.fileErr != nil {
		return a.fileErr
	}
	a.files[filename] = append([]byte(nil), data...)
	return nil
}

func (a *fakeFileAdapter) Files() map[string][]byte {
	a.filesMu.Lock()
	defer a.filesMu.Unlock()
	out := make(map[string][]byte, len(a.files))
	for name, data := range a.files {
		out[name] = data
	}
	return out
}

// stubPlugin is a minimal plugin for engine tests.
type stubPlugin struct {
	name     string
	commands []string
	handle   func(inv plugin.Invocation) (string, error)

	mu    sync.Mutex
	calls []plugin.Invocation
}

func newStubPlugin(name string, commands ...string) *stubPlugin {
	return &stubPlugin{name: name, commands: commands}
}

func (p *stubPlugin) Name() string        { return p.name }
func (p *stubPlugin) Version() string     { return "1.0.0" }
func (p *stubPlugin) Description() string { return "stub plugin " + p.name }

func (p *stubPlugin) Commands() []string {
	return append([]string(nil), p.commands...)
}

func (p *stubPlugin) Initialize(ctx context.Context, host plugin.Host) error { return nil }

func (p *stubPlugin) HandleCommand(ctx context.Context, inv plugin.Invocation) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, inv)
	handler := p.handle
	p.mu.Unlock()

	if handler != nil {
		return handler(inv)
	}
	return "reply from " + p.name, nil
}

func (p *stubPlugin) Cleanup(ctx context.Context) error { return nil }

func (p *stubPlugin) Calls() []plugin.Invocation {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]plugin.Invocation, len(p.calls))
	copy(out, p.calls)
	return out
}

// stubObserver is a stubPlugin that also records observed messages.
type stubObserver struct {
	*stubPlugin
	obsMu        sync.Mutex
	observed     []plugin.Message
	observePanic bool
}

func newStubObserver(name string, commands ...string) *stubObserver {
	return &stubObserver{stubPlugin: newStubPlugin(name, commands...)}
}

func (o *stubObserver) ObserveMessage(ctx context.Context, msg plugin.Message) {
	o.obsMu.Lock()
	defer o.obsMu.Unlock()
	if o.observePanic {
		panic("stub observer panic")
	}
	o.observed = append(o.observed, msg)
}

func (o *stubObserver) Observed() []plugin.Message {
	o.obsMu.Lock()
	defer o.obsMu.Unlock()
	out := make([]plugin.Message, len(o.observed))
	copy(out, o.observed)
	return out
}
