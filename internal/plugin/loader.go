package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
)

// ErrUnknownKind means a manifest names a kind with no registered factory.
var ErrUnknownKind = errors.New("unknown plugin kind")

// Factory builds a plugin instance from its manifest. Factories run at
// load time, once per load or reload.
type Factory func(m Manifest) (Plugin, error)

// Loader activates plugin directories against the compiled-in factory
// table and keeps the registry in sync. Loads and unloads are serialized;
// the registry stays safe for concurrent readers throughout.
type Loader struct {
	mu        sync.Mutex
	factories map[string]Factory
	registry  *Registry
	host      Host
}

// NewLoader returns a loader that registers plugins into registry and
// hands host to every Initialize call.
func NewLoader(registry *Registry, host Host) *Loader {
	return &Loader{
		factories: make(map[string]Factory),
		registry:  registry,
		host:      host,
	}
}

// RegisterFactory adds a plugin kind to the factory table. Registering an
// empty kind or the same kind twice is an error.
func (l *Loader) RegisterFactory(kind string, factory Factory) error {
	if kind == "" {
		return fmt.Errorf("plugin kind cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory for kind %q cannot be nil", kind)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.factories[kind]; exists {
		return fmt.Errorf("plugin kind %q already registered", kind)
	}
	l.factories[kind] = factory
	return nil
}

// Kinds returns the registered factory kinds, sorted.
func (l *Loader) Kinds() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	kinds := make([]string, 0, len(l.factories))
	for kind := range l.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Registry returns the registry this loader feeds.
func (l *Loader) Registry() *Registry {
	return l.registry
}

// Discover lists the plugin directories under root: immediate
// subdirectories containing at least one manifest candidate, sorted so
// load order is deterministic. Plain files and bare directories are
// skipped silently.
func (l *Loader) Discover(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugins directory: %w", err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if hasManifestCandidate(dir) {
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func hasManifestCandidate(dir string) bool {
	for _, candidate := range manifestCandidates {
		if info, err := os.Stat(filepath.Join(dir, candidate)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// Load activates or reloads the plugin directory at dir. On failure the
// reason lands in the failed map and any previously registered instance of
// the same name keeps serving. On success a previous instance is cleaned
// up and replaced in place, keeping its registration position.
func (l *Loader) Load(ctx context.Context, dir string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx, dir)
}

func (l *Loader) load(ctx context.Context, dir string) error {
	name := filepath.Base(filepath.Clean(dir))

	fail := func(err error) error {
		l.registry.RecordFailure(name, err)
		logger.WithFields(logrus.Fields{
			"plugin": name,
			"dir":    dir,
			"error":  err,
		}).Error("plugin-load-failed")
		return err
	}

	path, err := ResolveManifest(dir)
	if err != nil {
		return fail(err)
	}
	manifest, err := ParseManifest(path)
	if err != nil {
		return fail(err)
	}

	factory, ok := l.factories[manifest.Kind]
	if !ok {
		return fail(fmt.Errorf("%w: %q", ErrUnknownKind, manifest.Kind))
	}

	instance, err := construct(factory, manifest)
	if err != nil {
		return fail(fmt.Errorf("failed to construct plugin: %w", err))
	}
	if instance.Name() != name {
		return fail(fmt.Errorf("plugin name %q does not match directory %q", instance.Name(), name))
	}
	if err := initialize(ctx, instance, l.host); err != nil {
		return fail(fmt.Errorf("failed to initialize plugin: %w", err))
	}

	// The new instance is live; retire the previous one, if any.
	if old, ok := l.registry.Get(name); ok {
		cleanup(ctx, name, old)
	}
	l.registry.Add(instance, manifest.IsEnabled())

	logger.WithFields(logrus.Fields{
		"plugin":   name,
		"kind":     manifest.Kind,
		"version":  instance.Version(),
		"enabled":  manifest.IsEnabled(),
		"commands": instance.Commands(),
	}).Info("plugin-loaded")
	return nil
}

// Unload removes a plugin from the registry and runs its Cleanup. It
// returns whether a registered instance was removed. The failed entry for
// the name is dropped either way.
func (l *Loader) Unload(ctx context.Context, name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.registry.ClearFailure(name)
	instance, ok := l.registry.Remove(name)
	if !ok {
		return false
	}
	cleanup(ctx, name, instance)
	logger.WithField("plugin", name).Info("plugin-unloaded")
	return true
}

// LoadAll discovers and loads every plugin directory under root. Failures
// are isolated per plugin: one broken directory never stops the rest.
func (l *Loader) LoadAll(ctx context.Context, root string) (loaded, failed int, err error) {
	dirs, err := l.Discover(root)
	if err != nil {
		return 0, 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, dir := range dirs {
		if err := l.load(ctx, dir); err != nil {
			failed++
			continue
		}
		loaded++
	}

	logger.WithFields(logrus.Fields{
		"root":   root,
		"loaded": loaded,
		"failed": failed,
	}).Info("plugins-load-complete")
	return loaded, failed, nil
}

// CleanupAll unloads every registered plugin in reverse registration
// order, used at shutdown.
func (l *Loader) CleanupAll(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := l.registry.Names()
	for i := len(names) - 1; i >= 0; i-- {
		if instance, ok := l.registry.Remove(names[i]); ok {
			cleanup(ctx, names[i], instance)
		}
	}
}

func construct(factory Factory, m Manifest) (instance Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = fmt.Errorf("factory panicked: %v", r)
		}
	}()
	instance, err = factory(m)
	if err == nil && instance == nil {
		err = fmt.Errorf("factory returned no plugin")
	}
	return instance, err
}

func initialize(ctx context.Context, p Plugin, host Host) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("initialize panicked: %v", r)
		}
	}()
	return p.Initialize(ctx, host)
}

func cleanup(ctx context.Context, name string, p Plugin) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"plugin": name,
				"panic":  r,
			}).Error("plugin-cleanup-panicked")
		}
	}()
	if err := p.Cleanup(ctx); err != nil {
		logger.WithFields(logrus.Fields{
			"plugin": name,
			"error":  err,
		}).Warn("plugin-cleanup-failed")
	}
}
