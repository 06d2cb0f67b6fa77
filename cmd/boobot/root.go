package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "boobot",
	Short: "boobot is a multi-platform chat bot with hot-reloadable command plugins",
	Long: `boobot connects to messaging platforms (Discord, Telegram, Feishu,
DingTalk), listens for messages addressed to it by display name, and routes
the commands it recognizes to a set of plugins that can be added, reloaded,
enabled and disabled while the bot is running.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add subcommands here
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(pluginsCmd)
}
