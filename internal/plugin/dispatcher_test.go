package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchRoutesToOwner(t *testing.T) {
	reg := NewRegistry()
	core := newMockPlugin("core", "ping")
	core.handleFunc = func(inv Invocation) (string, error) { return "Pong! 🏓", nil }
	reg.Add(core, true)

	d := NewDispatcher(reg)
	result := d.Dispatch(context.Background(), Invocation{Command: "ping"})

	assert.True(t, result.Matched)
	assert.Equal(t, "Pong! 🏓", result.Reply)
	assert.Equal(t, "core", result.PluginName)
	assert.NoError(t, result.Err)
}

func TestDispatchUnknownCommand(t *testing.T) {
	reg := NewRegistry()
	reg.Add(newMockPlugin("core", "ping"), true)

	d := NewDispatcher(reg)
	result := d.Dispatch(context.Background(), Invocation{Command: "fly"})

	assert.False(t, result.Matched)
	assert.Empty(t, result.Reply)
	assert.NoError(t, result.Err)
}

func TestDispatchSkipsDisabledPlugins(t *testing.T) {
	reg := NewRegistry()
	reg.Add(newMockPlugin("example", "echo"), true)
	reg.Disable("example")

	d := NewDispatcher(reg)
	result := d.Dispatch(context.Background(), Invocation{Command: "echo"})

	assert.False(t, result.Matched)
	assert.Empty(t, result.Reply)
}

func TestDispatchFirstRegisteredWins(t *testing.T) {
	reg := NewRegistry()
	first := newMockPlugin("first", "dup")
	first.handleFunc = func(inv Invocation) (string, error) { return "from first", nil }
	second := newMockPlugin("second", "dup")
	second.handleFunc = func(inv Invocation) (string, error) { return "from second", nil }
	reg.Add(first, true)
	reg.Add(second, true)

	d := NewDispatcher(reg)
	result := d.Dispatch(context.Background(), Invocation{Command: "dup"})

	assert.Equal(t, "from first", result.Reply)
	assert.Equal(t, "first", result.PluginName)
	assert.Empty(t, second.HandleCalls())

	// Disabling the first owner shifts the command to the next one.
	reg.Disable("first")
	result = d.Dispatch(context.Background(), Invocation{Command: "dup"})
	assert.Equal(t, "from second", result.Reply)
}

func TestDispatchContinuesPastError(t *testing.T) {
	reg := NewRegistry()
	broken := newMockPlugin("broken", "dup")
	broken.handleFunc = func(inv Invocation) (string, error) { return "", errors.New("handler exploded") }
	healthy := newMockPlugin("healthy", "dup")
	healthy.handleFunc = func(inv Invocation) (string, error) { return "rescued", nil }
	reg.Add(broken, true)
	reg.Add(healthy, true)

	d := NewDispatcher(reg)
	result := d.Dispatch(context.Background(), Invocation{Command: "dup"})

	assert.True(t, result.Matched)
	assert.Equal(t, "rescued", result.Reply)
	assert.Equal(t, "healthy", result.PluginName)
	assert.NoError(t, result.Err)
}

func TestDispatchContinuesPastPanic(t *testing.T) {
	reg := NewRegistry()
	panicky := newMockPlugin("panicky", "dup")
	panicky.handleFunc = func(inv Invocation) (string, error) { panic("handler panic") }
	healthy := newMockPlugin("healthy", "dup")
	healthy.handleFunc = func(inv Invocation) (string, error) { return "still alive", nil }
	reg.Add(panicky, true)
	reg.Add(healthy, true)

	d := NewDispatcher(reg)
	result := d.Dispatch(context.Background(), Invocation{Command: "dup"})

	assert.Equal(t, "still alive", result.Reply)
	assert.NoError(t, result.Err)
}

func TestDispatchAllOwnersFailed(t *testing.T) {
	reg := NewRegistry()
	broken := newMockPlugin("broken", "boom")
	broken.handleFunc = func(inv Invocation) (string, error) { return "", errors.New("kaput") }
	reg.Add(broken, true)

	d := NewDispatcher(reg)
	result := d.Dispatch(context.Background(), Invocation{Command: "boom"})

	assert.True(t, result.Matched)
	assert.Empty(t, result.Reply)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "kaput")
}

func TestDispatchDeclineContinues(t *testing.T) {
	reg := NewRegistry()
	shy := newMockPlugin("shy", "dup")
	shy.handleFunc = func(inv Invocation) (string, error) { return "", nil }
	eager := newMockPlugin("eager", "dup")
	eager.handleFunc = func(inv Invocation) (string, error) { return "answered", nil }
	reg.Add(shy, true)
	reg.Add(eager, true)

	d := NewDispatcher(reg)
	result := d.Dispatch(context.Background(), Invocation{Command: "dup"})

	assert.True(t, result.Matched)
	assert.Equal(t, "answered", result.Reply)
	assert.NoError(t, result.Err)
}

func TestDispatchAllDeclined(t *testing.T) {
	reg := NewRegistry()
	shy := newMockPlugin("shy", "quiet")
	shy.handleFunc = func(inv Invocation) (string, error) { return "", nil }
	reg.Add(shy, true)

	d := NewDispatcher(reg)
	result := d.Dispatch(context.Background(), Invocation{Command: "quiet"})

	assert.True(t, result.Matched)
	assert.Empty(t, result.Reply)
	assert.NoError(t, result.Err)
}

func TestDispatchFailureDoesNotAffectLaterCommands(t *testing.T) {
	reg := NewRegistry()
	broken := newMockPlugin("broken", "bad")
	broken.handleFunc = func(inv Invocation) (string, error) { panic("boom") }
	core := newMockPlugin("core", "ping")
	core.handleFunc = func(inv Invocation) (string, error) { return "Pong! 🏓", nil }
	reg.Add(broken, true)
	reg.Add(core, true)

	d := NewDispatcher(reg)
	_ = d.Dispatch(context.Background(), Invocation{Command: "bad"})

	result := d.Dispatch(context.Background(), Invocation{Command: "ping"})
	assert.Equal(t, "Pong! 🏓", result.Reply)
}

func TestDispatchPassesInvocation(t *testing.T) {
	reg := NewRegistry()
	p := newMockPlugin("core", "debug")
	reg.Add(p, true)

	inv := Invocation{
		Command:  "debug",
		Args:     "verbose on",
		RoomID:   "discord/123",
		UserID:   "user-1",
		Platform: "discord",
		IsEdit:   true,
	}
	NewDispatcher(reg).Dispatch(context.Background(), inv)

	calls := p.HandleCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, inv, calls[0])
}

func TestDispatchCaseInsensitiveOwnership(t *testing.T) {
	reg := NewRegistry()
	p := newMockPlugin("shouty", "PING")
	reg.Add(p, true)

	result := NewDispatcher(reg).Dispatch(context.Background(), Invocation{Command: "ping"})
	assert.True(t, result.Matched)
}

func TestNotifyObserversDelivers(t *testing.T) {
	reg := NewRegistry()
	archive := newMockObserver("archive")
	reg.Add(archive, true)
	reg.Add(newMockPlugin("core", "ping"), true)

	msg := Message{RoomID: "discord/123", UserID: "user-1", Body: "hello"}
	panicked := NewDispatcher(reg).NotifyObservers(context.Background(), msg)

	assert.Zero(t, panicked)
	observed := archive.Observed()
	require.Len(t, observed, 1)
	assert.Equal(t, msg, observed[0])
}

func TestNotifyObserversSkipsDisabled(t *testing.T) {
	reg := NewRegistry()
	archive := newMockObserver("archive")
	reg.Add(archive, true)
	reg.Disable("archive")

	NewDispatcher(reg).NotifyObservers(context.Background(), Message{Body: "hello"})

	assert.Empty(t, archive.Observed())
}

func TestNotifyObserversIsolatesPanic(t *testing.T) {
	reg := NewRegistry()
	panicky := newMockObserver("panicky")
	panicky.observePanic = true
	healthy := newMockObserver("healthy")
	reg.Add(panicky, true)
	reg.Add(healthy, true)

	panicked := NewDispatcher(reg).NotifyObservers(context.Background(), Message{Body: "hello"})

	assert.Equal(t, 1, panicked)
	assert.Len(t, healthy.Observed(), 1)
}

// A reload that swaps the registry entry mid-call must not disturb the
// in-flight handler: dispatch works on the snapshot taken at lookup.
func TestDispatchSnapshotSurvivesReload(t *testing.T) {
	reg := NewRegistry()

	started := make(chan struct{})
	release := make(chan struct{})
	old := newMockPlugin("core", "slow")
	old.handleFunc = func(inv Invocation) (string, error) {
		close(started)
		<-release
		return "from old instance", nil
	}
	reg.Add(old, true)

	d := NewDispatcher(reg)
	done := make(chan Result, 1)
	go func() {
		done <- d.Dispatch(context.Background(), Invocation{Command: "slow"})
	}()

	<-started
	// Swap in a replacement while the old handler is still running.
	replacement := newMockPlugin("core", "slow")
	replacement.handleFunc = func(inv Invocation) (string, error) { return "from new instance", nil }
	reg.Add(replacement, true)
	close(release)

	result := <-done
	assert.Equal(t, "from old instance", result.Reply)

	// New dispatches see the replacement.
	result = d.Dispatch(context.Background(), Invocation{Command: "slow"})
	assert.Equal(t, "from new instance", result.Reply)
}
