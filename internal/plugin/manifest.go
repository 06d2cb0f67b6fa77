package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest resolution errors.
var (
	// ErrNoManifest means a plugin directory has no manifest file.
	ErrNoManifest = errors.New("no plugin manifest found")
	// ErrAmbiguousManifest means a plugin directory has more than one
	// manifest candidate.
	ErrAmbiguousManifest = errors.New("ambiguous plugin manifest")
)

// manifestCandidates are the accepted manifest file names, in preference
// order. Exactly one may exist per plugin directory.
var manifestCandidates = []string{"plugin.yaml", "plugin.yml"}

// Manifest activates one compiled-in plugin kind for a plugin directory.
type Manifest struct {
	// Kind selects the factory. Defaults to the directory base name.
	Kind string `yaml:"kind"`
	// Enabled controls routing. Missing means enabled.
	Enabled *bool `yaml:"enabled"`
	// Version and Description override the plugin's own metadata when set.
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
	// Config is free-form plugin configuration.
	Config map[string]any `yaml:"config"`

	// Name is the directory base name, set by the loader.
	Name string `yaml:"-"`
	// Dir is the plugin directory path, set by the loader.
	Dir string `yaml:"-"`
}

// ResolveManifest locates the single manifest file in a plugin directory.
func ResolveManifest(dir string) (string, error) {
	var found []string
	for _, candidate := range manifestCandidates {
		path := filepath.Join(dir, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			found = append(found, path)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w in %s", ErrNoManifest, dir)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: both plugin.yaml and plugin.yml exist in %s", ErrAmbiguousManifest, dir)
	}
}

// ParseManifest reads and validates the manifest at path. Name and Dir are
// derived from the directory; Kind defaults to Name.
func ParseManifest(path string) (Manifest, error) {
	var m Manifest

	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to parse manifest: %w", err)
	}

	m.Dir = filepath.Dir(path)
	m.Name = filepath.Base(m.Dir)
	if m.Kind == "" {
		m.Kind = m.Name
	}
	return m, nil
}

// IsEnabled reports the manifest's enabled flag, defaulting to true.
func (m Manifest) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// String returns the string config value for key, or def when missing or
// not a string.
func (m Manifest) String(key, def string) string {
	if v, ok := m.Config[key].(string); ok {
		return v
	}
	return def
}

// Int returns the integer config value for key, or def. YAML integers
// decode as int; float values with no fraction are accepted too.
func (m Manifest) Int(key string, def int) int {
	switch v := m.Config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return def
}

// Bool returns the boolean config value for key, or def.
func (m Manifest) Bool(key string, def bool) bool {
	if v, ok := m.Config[key].(bool); ok {
		return v
	}
	return def
}

// StringList returns the string slice config value for key. Non-string
// elements are skipped.
func (m Manifest) StringList(key string) []string {
	raw, ok := m.Config[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
