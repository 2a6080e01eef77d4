package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gitlab.com/tng-miniapp/ledger_api/cmd/commands"
	"gitlab.com/tng-miniapp/ledger_api/server"
)

var skipMigrations bool

func init() {
	startCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not run the database migrations before starting")
	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ledger API",
	Long:  `Serve the internal ledger API, run the crons and publish the transfer notifications`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if !skipMigrations && cfg.DatabaseCluster.Driver != "memory" {
			log.Debug().Msg("Running migrations")
			commands.Migrate(cfg)
		}

		// start a new server
		log.Debug().Str("section", "init").Msg("Starting new server instance")
		srv := server.NewServer(cfg)
		log.Info().Str("section", "init").Msg("Listening for incoming requests")
		srv.Listen()
	},
}
