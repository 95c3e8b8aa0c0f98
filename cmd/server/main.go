package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pixelclasses/chat-server/internal/app"
	"github.com/pixelclasses/chat-server/internal/config"
	"github.com/pixelclasses/chat-server/internal/log"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:          "pixelchat-server",
		Short:        "Real-time messaging and presence server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLogger := log.New("info")

			cfg, path, err := config.Load(bootLogger, configPath)
			if err != nil {
				return err
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting pixelchat server")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}

			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to config.yaml")

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
