package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gitlab.com/tng-miniapp/ledger_api/service"
)

func init() {
	rootCmd.AddCommand(sweepHoldsCmd)
}

var sweepHoldsCmd = &cobra.Command{
	Use:   "sweep-holds",
	Short: "Expire the holds past their expiration time once and exit",
	Long:  `Meant for external schedulers when the process_expired_holds cron is disabled`,
	Run: func(cmd *cobra.Command, args []string) {
		srv, err := service.NewService(loadConfig())
		if err != nil {
			log.Fatal().Err(err).Str("section", "sweep-holds").Msg("Unable to init services")
		}
		defer srv.Close()

		processed, err := srv.Holds.ProcessExpiredHolds(context.Background())
		if err != nil {
			log.Fatal().Err(err).Str("section", "sweep-holds").Int("processed", processed).Msg("Unable to process expired holds")
		}
		log.Info().Str("section", "sweep-holds").Int("processed", processed).Msg("Expired holds processed")
	},
}
