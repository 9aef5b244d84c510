package cmd

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/99minutos/upload-gateway/internal/app"
	"github.com/99minutos/upload-gateway/internal/pkg/config"
	"github.com/99minutos/upload-gateway/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Authenticated file upload gateway",
	Long: `gateway serves the upload API and manages its user accounts.
Configuration is read from the environment (and a .env file when present).`,
	SilenceUsage: true,
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
}

// bootstrap loads configuration, initialises the logger and assembles the App.
func bootstrap(ctx context.Context) (*app.App, zerolog.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	a, err := app.New(ctx, cfg, logger.Component("app"))
	if err != nil {
		return nil, log, err
	}
	return a, log, nil
}
