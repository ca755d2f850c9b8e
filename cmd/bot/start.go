package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"macroBot/internal/app/runtime"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().StringVar(&addrOverride, "addr", "", "override CHAT_WS_ADDR")
	rootCmd.AddCommand(startCmd)
}

var (
	addrOverride string

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Connect to the configured chats and serve the web gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addrOverride != "" {
				cfg.ChatWSAddr = addrOverride
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := runtime.New(cfg, runtime.Options{})
			if err != nil {
				return err
			}
			return rt.Run(ctx)
		},
	}
)
