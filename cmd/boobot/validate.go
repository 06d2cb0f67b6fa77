package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"boobot/internal/bot"
)

var (
	validateConfigPath string
	validateShow       bool
	validateJSON       bool
)

// ValidationResult represents the validation result
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Config     string   `json:"config"`
	Transports int      `json:"transports"`
	PluginDirs int      `json:"plugin_dirs"`
	Errors     []string `json:"errors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the boobot configuration file",
	Long: `Validate the boobot configuration file without starting the bot.

This command checks:
  - YAML syntax
  - Environment variable references
  - Transport credentials
  - Plugin directory layout

Exit codes:
  0 - Configuration is valid
  1 - Configuration has errors`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: could not load .env file: %v\n", err)
		}

		configFile := validateConfigPath
		if configFile == "" {
			for _, loc := range []string{
				"boobot.yaml",
				filepath.Join(os.Getenv("HOME"), ".config/boobot/boobot.yaml"),
				"/etc/boobot/boobot.yaml",
			} {
				if _, err := os.Stat(loc); err == nil {
					configFile = loc
					break
				}
			}
		}

		if configFile == "" {
			fmt.Println("❌ No configuration file found")
			fmt.Println("\nSpecify a config file with --config or ensure one exists at:")
			fmt.Println("  - ./boobot.yaml")
			fmt.Println("  - ~/.config/boobot/boobot.yaml")
			fmt.Println("  - /etc/boobot/boobot.yaml")
			os.Exit(1)
		}

		cfg, err := bot.LoadConfig(configFile)
		if err != nil {
			result := ValidationResult{
				Valid:  false,
				Config: configFile,
				Errors: []string{err.Error()},
			}
			outputValidationResult(result, validateJSON)
			os.Exit(1)
		}

		pluginDirs := countPluginDirs(cfg.Plugins.Dir)
		result := ValidationResult{
			Valid:      true,
			Config:     configFile,
			Transports: len(cfg.EnabledTransports()),
			PluginDirs: pluginDirs,
			Warnings:   validateConfigDetails(cfg, pluginDirs),
		}
		if len(result.Warnings) > 0 {
			result.Valid = false
		}

		if validateShow {
			fmt.Printf("✓ Configuration loaded: %s\n\n", configFile)
			fmt.Printf("Transports (%d enabled):\n", len(cfg.EnabledTransports()))
			for platform, tc := range cfg.Transports {
				status := "disabled"
				if tc.Enabled {
					status = "enabled"
				}
				fmt.Printf("  - %s: %s\n", platform, status)
			}
			fmt.Printf("\nPlugins:\n")
			fmt.Printf("  - dir: %s (%d plugin directories)\n", cfg.Plugins.Dir, pluginDirs)
			fmt.Printf("  - hot_reload: %v\n", cfg.Plugins.HotReload)
			fmt.Printf("  - debounce: %s\n", cfg.Plugins.Debounce)
			fmt.Printf("\nStatus server: enabled=%v port=%d\n", cfg.StatusServer.Enabled, cfg.StatusServer.Port)
			fmt.Println()
		}

		outputValidationResult(result, validateJSON)

		if !result.Valid {
			os.Exit(1)
		}
	},
}

func outputValidationResult(result ValidationResult, jsonFormat bool) {
	if jsonFormat {
		output, err := json.Marshal(result)
		if err != nil {
			fmt.Printf("{\"error\": \"failed to marshal json: %v\"}\n", err)
			return
		}
		fmt.Println(string(output))
		return
	}

	if result.Valid {
		fmt.Println("✓ Configuration is valid")
		fmt.Printf("  - Config: %s\n", result.Config)
		fmt.Printf("  - Transports enabled: %d\n", result.Transports)
		fmt.Printf("  - Plugin directories: %d\n", result.PluginDirs)
	} else {
		fmt.Println("❌ Configuration validation failed:")
		if len(result.Errors) > 0 {
			fmt.Println("\nErrors:")
			for _, errMsg := range result.Errors {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Println("\n⚠️  Warnings:")
		for _, warning := range result.Warnings {
			fmt.Printf("  - %s\n", warning)
		}
	}
}

func validateConfigDetails(cfg *bot.Config, pluginDirs int) []string {
	var warnings []string

	if len(cfg.EnabledTransports()) == 0 {
		warnings = append(warnings, "No transports are enabled - the bot cannot start")
	}

	if _, err := os.Stat(cfg.Plugins.Dir); err != nil {
		warnings = append(warnings, fmt.Sprintf("Plugins directory %s does not exist", cfg.Plugins.Dir))
	} else if pluginDirs == 0 {
		warnings = append(warnings, fmt.Sprintf("Plugins directory %s contains no plugin manifests", cfg.Plugins.Dir))
	}

	return warnings
}

// countPluginDirs counts the immediate subdirectories of root that carry a
// plugin manifest. A missing root counts as zero; validateConfigDetails
// reports it separately.
func countPluginDirs(root string) int {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		for _, manifest := range []string{"plugin.yaml", "plugin.yml"} {
			if _, err := os.Stat(filepath.Join(root, entry.Name(), manifest)); err == nil {
				count++
				break
			}
		}
	}
	return count
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigPath, "config", "c", "", "Configuration file path")
	validateCmd.Flags().BoolVar(&validateShow, "show", false, "Show full configuration details")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output in JSON format")
}
