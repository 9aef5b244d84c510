package cmd

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, log, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		if err := a.SeedUsers(ctx); err != nil {
			return err
		}

		if err := a.Run(ctx); err != nil {
			return err
		}
		log.Info().Msg("gateway stopped")
		return nil
	},
}
