// Package plugins wires the built-in plugin kinds into a loader. A plugin
// directory's manifest selects one of these kinds; dropping a new package
// here and registering its factory is all a new built-in needs.
package plugins

import (
	"fmt"

	"boobot/internal/plugin"
	"boobot/internal/plugins/ai"
	"boobot/internal/plugins/auth"
	"boobot/internal/plugins/core"
	"boobot/internal/plugins/database"
	"boobot/internal/plugins/example"
	"boobot/internal/plugins/youtube"
)

// builtins maps plugin kind to factory.
var builtins = map[string]plugin.Factory{
	"core":     core.New,
	"example":  example.New,
	"ai":       ai.New,
	"youtube":  youtube.New,
	"auth":     auth.New,
	"database": database.New,
}

// Register adds every built-in factory to the loader.
func Register(ld *plugin.Loader) error {
	for kind, factory := range builtins {
		if err := ld.RegisterFactory(kind, factory); err != nil {
			return fmt.Errorf("failed to register %s plugin: %w", kind, err)
		}
	}
	return nil
}

// Kinds returns the built-in plugin kind names.
func Kinds() []string {
	kinds := make([]string, 0, len(builtins))
	for kind := range builtins {
		kinds = append(kinds, kind)
	}
	return kinds
}
