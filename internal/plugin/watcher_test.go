package plugin

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 150 * time.Millisecond

// startWatcher wires a loader with a call-counting factory and starts a
// watcher over root.
func startWatcher(t *testing.T, root string, kinds ...string) (*Watcher, *Registry, *atomic.Int32) {
	t.Helper()

	reg := NewRegistry()
	ld := NewLoader(reg, newMockHost())
	var loads atomic.Int32
	for _, kind := range kinds {
		k := kind
		require.NoError(t, ld.RegisterFactory(k, func(m Manifest) (Plugin, error) {
			loads.Add(1)
			return newMockPlugin(m.Name, "cmd"), nil
		}))
	}

	w := NewWatcher(ld, root, testDebounce)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { w.Close() })
	return w, reg, &loads
}

func TestWatcherLoadsChangedManifest(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "core")
	writeManifest(t, dir, "plugin.yaml", "kind: core\n")

	_, reg, loads := startWatcher(t, root, "core")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte("kind: core\n"), 0644))

	require.Eventually(t, func() bool {
		_, ok := reg.Get("core")
		return ok
	}, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, loads.Load(), int32(1))
}

// Rapid successive writes within the debounce window must collapse into a
// single reload.
func TestWatcherDebouncesBurstOfWrites(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "core")
	writeManifest(t, dir, "plugin.yaml", "kind: core\n")

	_, reg, loads := startWatcher(t, root, "core")

	path := filepath.Join(dir, "plugin.yaml")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("kind: core\n"), 0644))
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return loads.Load() >= 1
	}, 3*time.Second, 10*time.Millisecond)

	// Let any stray timers fire; the burst must still count as one load.
	time.Sleep(3 * testDebounce)
	assert.Equal(t, int32(1), loads.Load())

	_, ok := reg.Get("core")
	assert.True(t, ok)
}

func TestWatcherUnloadsOnManifestDeletion(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "core")
	writeManifest(t, dir, "plugin.yaml", "kind: core\n")

	w, reg, _ := startWatcher(t, root, "core")

	require.NoError(t, w.loader.Load(context.Background(), dir))
	_, ok := reg.Get("core")
	require.True(t, ok)

	require.NoError(t, os.Remove(filepath.Join(dir, "plugin.yaml")))

	require.Eventually(t, func() bool {
		_, ok := reg.Get("core")
		return !ok
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatcherUnloadsOnPluginDirRemoval(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "core")
	writeManifest(t, dir, "plugin.yaml", "kind: core\n")

	w, reg, _ := startWatcher(t, root, "core")
	require.NoError(t, w.loader.Load(context.Background(), dir))

	require.NoError(t, os.RemoveAll(dir))

	require.Eventually(t, func() bool {
		_, ok := reg.Get("core")
		return !ok
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatcherPicksUpNewPluginDir(t *testing.T) {
	root := t.TempDir()
	_, reg, _ := startWatcher(t, root, "example")

	dir := filepath.Join(root, "example")
	require.NoError(t, os.MkdirAll(dir, 0755))
	// Give the watcher a beat to add the new directory to its watch set.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte("kind: example\n"), 0644))

	require.Eventually(t, func() bool {
		_, ok := reg.Get("example")
		return ok
	}, 3*time.Second, 10*time.Millisecond)
}

// A reload that fails must leave the previously loaded instance serving
// and record the failure.
func TestWatcherFailedReloadKeepsPreviousVersion(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "core")
	writeManifest(t, dir, "plugin.yaml", "kind: core\n")

	w, reg, _ := startWatcher(t, root, "core")
	require.NoError(t, w.loader.Load(context.Background(), dir))
	oldInstance, ok := reg.Get("core")
	require.True(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte("kind: [broken\n"), 0644))

	require.Eventually(t, func() bool {
		_, failed := reg.Failures()["core"]
		return failed
	}, 3*time.Second, 10*time.Millisecond)

	current, ok := reg.Get("core")
	require.True(t, ok)
	assert.Same(t, oldInstance.(*MockPlugin), current.(*MockPlugin))
}

func TestWatcherStartMissingRoot(t *testing.T) {
	reg := NewRegistry()
	ld := NewLoader(reg, newMockHost())
	w := NewWatcher(ld, filepath.Join(t.TempDir(), "absent"), testDebounce)

	err := w.Start(context.Background())
	require.Error(t, err)
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w, _, _ := startWatcher(t, root)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWatcherDefaultDebounce(t *testing.T) {
	reg := NewRegistry()
	ld := NewLoader(reg, newMockHost())

	w := NewWatcher(ld, t.TempDir(), 0)
	assert.Equal(t, time.Second, w.debounce)
}
