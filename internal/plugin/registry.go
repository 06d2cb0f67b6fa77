package plugin

import (
	"sort"
	"strings"
	"sync"
)

// Registry holds the loaded plugins plus the failed map. All methods are
// safe for concurrent use. The registry never invokes plugin code while
// holding its lock: snapshots are taken under the lock and plugin methods
// run outside it.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	failed  map[string]string
}

type entry struct {
	plugin  Plugin
	enabled bool
}

// registered pairs a plugin with its registration metadata for snapshots.
type registered struct {
	name    string
	plugin  Plugin
	enabled bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		failed:  make(map[string]string),
	}
}

// Add registers a plugin under its name, replacing any existing entry. A
// replacement keeps the original registration position; a new name is
// appended to the registration order. Any failed entry for the name is
// cleared.
func (r *Registry) Add(p Plugin, enabled bool) {
	name := p.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = &entry{plugin: p, enabled: enabled}
	delete(r.failed, name)
}

// Remove unregisters a plugin and returns the removed instance. The caller
// owns running Cleanup on it.
func (r *Registry) Remove(name string) (Plugin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return e.plugin, true
}

// Get returns the registered plugin instance for name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.plugin, true
}

// Names returns the registered plugin names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Enable turns routing on for a loaded plugin. Unknown names return false.
func (r *Registry) Enable(name string) bool {
	return r.setEnabled(name, true)
}

// Disable turns routing off without unloading. The plugin keeps its state,
// stays listed in status, and is skipped by dispatch and AllCommands.
func (r *Registry) Disable(name string) bool {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return false
	}
	e.enabled = enabled
	return true
}

// IsEnabled reports whether name is registered with routing on.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return ok && e.enabled
}

// RecordFailure stores the most recent load or reload failure for name.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[name] = err.Error()
}

// ClearFailure drops the failed entry for name, if any.
func (r *Registry) ClearFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failed, name)
}

// Failures returns a copy of the failed map: plugin name to reason.
func (r *Registry) Failures() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.failed))
	for name, reason := range r.failed {
		out[name] = reason
	}
	return out
}

// snapshot returns the registered plugins in registration order. When
// enabledOnly is set, disabled plugins are skipped.
func (r *Registry) snapshot(enabledOnly bool) []registered {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]registered, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		if enabledOnly && !e.enabled {
			continue
		}
		out = append(out, registered{name: name, plugin: e.plugin, enabled: e.enabled})
	}
	return out
}

// AllCommands maps each command word to its owning plugin name, enabled
// plugins only. When two plugins claim the same word the first registered
// owns it, matching dispatch order.
func (r *Registry) AllCommands() map[string]string {
	out := make(map[string]string)
	for _, reg := range r.snapshot(true) {
		for _, cmd := range reg.plugin.Commands() {
			cmd = strings.ToLower(cmd)
			if _, taken := out[cmd]; !taken {
				out[cmd] = reg.name
			}
		}
	}
	return out
}

// Status returns a point-in-time snapshot of the registry.
func (r *Registry) Status() Status {
	regs := r.snapshot(false)

	status := Status{
		Plugins: make([]Info, 0, len(regs)),
		Failed:  r.Failures(),
	}
	for _, reg := range regs {
		commands := append([]string(nil), reg.plugin.Commands()...)
		sort.Strings(commands)
		status.Plugins = append(status.Plugins, Info{
			Name:        reg.name,
			Version:     reg.plugin.Version(),
			Description: reg.plugin.Description(),
			Enabled:     reg.enabled,
			Commands:    commands,
		})
	}
	return status
}
