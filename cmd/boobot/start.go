package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"boobot/internal/bot"
	"boobot/internal/logger"
	"boobot/internal/plugins"
	"boobot/internal/transport"
)

var (
	configFile string

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the boobot main process",
		Long:  "Start the boobot main process: connect transports, load plugins and serve commands",
		Run: func(cmd *cobra.Command, args []string) {
			// Secrets live in .env; the config file references them via ${VAR}
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				log.Printf("Warning: could not load .env file: %v", err)
			}

			config, err := bot.LoadConfig(configFile)
			if err != nil {
				log.Fatalf("Failed to load config: %v", err)
			}

			enabled := config.EnabledTransports()
			if len(enabled) == 0 {
				log.Fatalf("No transports enabled in %s - enable at least one under transports:", configFile)
			}

			fmt.Printf("Starting boobot with config: %s\n", configFile)
			fmt.Printf("Plugins directory: %s\n", config.Plugins.Dir)
			fmt.Printf("Hot reload enabled: %v\n", config.Plugins.HotReload)

			logConfig := logger.Config{
				Level:        config.Logging.Level,
				File:         config.Logging.File,
				MaxSize:      config.Logging.MaxSize,
				MaxBackups:   config.Logging.MaxBackups,
				MaxAge:       config.Logging.MaxAge,
				Compress:     config.Logging.Compress,
				EnableStdout: config.Logging.EnableStdout,
			}
			if err := logger.InitLogger(logConfig); err != nil {
				log.Fatalf("Failed to initialize logger: %v", err)
			}

			logger.WithFields(logrus.Fields{
				"config_file": configFile,
				"log_level":   config.Logging.Level,
				"log_file":    config.Logging.File,
			}).Info("logger-initialized")

			b := bot.New(config)

			if err := plugins.Register(b.Loader()); err != nil {
				log.Fatalf("Failed to register plugin kinds: %v", err)
			}

			for _, platform := range enabled {
				tc, err := config.GetTransportConfig(platform)
				if err != nil {
					log.Fatalf("Failed to read %s transport config: %v", platform, err)
				}

				switch platform {
				case "discord":
					b.RegisterAdapter(transport.NewDiscordBot(tc.Token))
				case "telegram":
					b.RegisterAdapter(transport.NewTelegramBot(tc.Token))
				case "feishu":
					b.RegisterAdapter(transport.NewFeishuBot(tc.AppID, tc.AppSecret, tc.BotName))
				case "dingtalk":
					b.RegisterAdapter(transport.NewDingTalkBot(tc.ClientID, tc.ClientSecret, tc.BotName))
				default:
					log.Fatalf("Unknown transport type: %s", platform)
				}
				log.Printf("Registered %s transport adapter", platform)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			botErrChan := make(chan error, 1)
			go func() {
				fmt.Println("\nboobot starting...")
				fmt.Println("Press Ctrl+C to stop")
				botErrChan <- b.Run(ctx)
			}()

			select {
			case sig := <-sigChan:
				log.Printf("Received signal: %v, shutting down gracefully...", sig)
				cancel()
				if err := <-botErrChan; err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			case err := <-botErrChan:
				if err != nil {
					log.Fatalf("Bot error: %v", err)
				}
			}

			log.Println("boobot stopped")
		},
	}
)

func init() {
	startCmd.Flags().StringVarP(&configFile, "config", "c", "boobot.yaml", "Configuration file path")
}
