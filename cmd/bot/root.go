package main

import (
	"github.com/spf13/cobra"

	"macroBot/internal/infrastructure/config"
	"macroBot/internal/infrastructure/logger"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "macrobot",
	Short: "macroBot is a chat bot with per-channel custom commands",
	Long: `macroBot connects to Twitch, Kick and a local web chat and lets each
channel define its own text commands with !command <name> [response].`,
	SilenceUsage: true,
}

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "read settings from these .env files (default ./.env)")
}

// loadConfig reads the configuration and sets up the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}
