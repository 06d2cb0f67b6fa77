package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
)

// Watcher hot-reloads plugins when their manifests change on disk.
//
// Reload storms are debounced per plugin: every new event for a name
// re-arms its timer, so the reload runs only after a quiet period. A
// manifest deletion unloads the plugin directly; a failed reload leaves
// the previous instance serving (loader semantics).
type Watcher struct {
	loader   *Loader
	root     string
	debounce time.Duration

	fsw *fsnotify.Watcher
	ctx context.Context

	mu      sync.Mutex
	timers  map[string]*time.Timer
	watched map[string]bool
	closed  bool

	done chan struct{}
	once sync.Once
}

// NewWatcher returns a watcher over the plugin root directory. A zero
// debounce falls back to one second.
func NewWatcher(loader *Loader, root string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &Watcher{
		loader:   loader,
		root:     root,
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
		watched:  make(map[string]bool),
		done:     make(chan struct{}),
	}
}

// Start begins watching the root and every discovered plugin directory,
// then consumes events until Close or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fsw.Add(w.root); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch plugins directory: %w", err)
	}
	dirs, err := w.loader.Discover(w.root)
	if err != nil {
		fsw.Close()
		return err
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			logger.WithFields(logrus.Fields{
				"dir":   dir,
				"error": err,
			}).Warn("failed-to-watch-plugin-dir")
			continue
		}
		w.watched[dir] = true
	}

	w.fsw = fsw
	w.ctx = ctx
	go w.run(ctx)

	logger.WithFields(logrus.Fields{
		"root":     w.root,
		"debounce": w.debounce,
	}).Info("plugin-watcher-started")
	return nil
}

// Close stops the watcher and cancels pending reloads.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)

		w.mu.Lock()
		w.closed = true
		for _, t := range w.timers {
			t.Stop()
		}
		w.timers = make(map[string]*time.Timer)
		w.mu.Unlock()

		if w.fsw != nil {
			err = w.fsw.Close()
		}
	})
	return err
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.WithField("error", err).Warn("plugin-watcher-error")
		case <-ctx.Done():
			return
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	parent := filepath.Dir(event.Name)
	base := filepath.Base(event.Name)

	// A new directory at the root may become a plugin; watch it and load
	// right away when it already carries a manifest (moved in wholesale).
	if parent == filepath.Clean(w.root) {
		if event.Op&fsnotify.Create == fsnotify.Create && isDir(event.Name) {
			if err := w.fsw.Add(event.Name); err == nil {
				w.mu.Lock()
				w.watched[event.Name] = true
				w.mu.Unlock()
			}
			if hasManifestCandidate(event.Name) {
				w.schedule(base, event.Name)
			}
			return
		}
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && !isManifestName(base) {
			w.mu.Lock()
			known := w.watched[event.Name]
			delete(w.watched, event.Name)
			w.mu.Unlock()
			if known {
				w.unloadNow(base)
			}
			return
		}
	}

	if !isManifestName(base) || parent == filepath.Clean(w.root) {
		return
	}

	name := filepath.Base(parent)
	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		w.schedule(name, parent)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Atomic-replace saves remove then recreate; only a directory left
		// with no manifest at all means the plugin is gone.
		if hasManifestCandidate(parent) {
			w.schedule(name, parent)
		} else {
			w.unloadNow(name)
		}
	}
}

// schedule arms (or re-arms) the reload timer for one plugin. The pending
// timer is stopped and replaced on every new event, so rapid successive
// writes collapse into a single reload after the quiet period.
func (w *Watcher) schedule(name, dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if t, ok := w.timers[name]; ok {
		t.Stop()
	}
	w.timers[name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, name)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}

		logger.WithField("plugin", name).Info("plugin-change-detected")
		if err := w.loader.Load(w.ctx, dir); err != nil {
			logger.WithFields(logrus.Fields{
				"plugin": name,
				"error":  err,
			}).Warn("plugin-reload-failed-keeping-previous-version")
		}
	})
}

func (w *Watcher) unloadNow(name string) {
	w.mu.Lock()
	if t, ok := w.timers[name]; ok {
		t.Stop()
		delete(w.timers, name)
	}
	w.mu.Unlock()

	if w.loader.Unload(w.ctx, name) {
		logger.WithField("plugin", name).Info("plugin-removed-from-disk")
	}
}

func isManifestName(base string) bool {
	for _, candidate := range manifestCandidates {
		if base == candidate {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
