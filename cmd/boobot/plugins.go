package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"boobot/internal/bot"
	"boobot/internal/plugin"
	"boobot/internal/plugins"
)

var pluginsConfigPath string

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List compiled-in plugin kinds and discovered plugin directories",
	Long: `List the plugin kinds compiled into this binary and the plugin
directories discovered under the configured plugins directory, with the
kind and enabled flag each manifest selects.`,
	Run: func(cmd *cobra.Command, args []string) {
		kinds := plugins.Kinds()
		sort.Strings(kinds)
		fmt.Printf("Compiled-in plugin kinds (%d):\n", len(kinds))
		for _, kind := range kinds {
			fmt.Printf("  - %s\n", kind)
		}

		pluginsDir := "./plugins"
		if pluginsConfigPath != "" {
			cfg, err := bot.LoadConfig(pluginsConfigPath)
			if err != nil {
				fmt.Printf("\n❌ Failed to load config %s: %v\n", pluginsConfigPath, err)
				os.Exit(1)
			}
			pluginsDir = cfg.Plugins.Dir
		}

		ld := plugin.NewLoader(plugin.NewRegistry(), nil)
		dirs, err := ld.Discover(pluginsDir)
		if err != nil {
			fmt.Printf("\nPlugins directory %s: %v\n", pluginsDir, err)
			os.Exit(1)
		}

		fmt.Printf("\nPlugin directories under %s (%d):\n", pluginsDir, len(dirs))
		for _, dir := range dirs {
			name := filepath.Base(dir)
			path, err := plugin.ResolveManifest(dir)
			if err != nil {
				fmt.Printf("  - %s: ❌ %v\n", name, err)
				continue
			}
			m, err := plugin.ParseManifest(path)
			if err != nil {
				fmt.Printf("  - %s: ❌ %v\n", name, err)
				continue
			}
			status := "enabled"
			if !m.IsEnabled() {
				status = "disabled"
			}
			fmt.Printf("  - %s: kind=%s %s\n", name, m.Kind, status)
		}
	},
}

func init() {
	pluginsCmd.Flags().StringVarP(&pluginsConfigPath, "config", "c", "", "Configuration file path (for plugins.dir)")
}
