package cmd

import (
	"github.com/spf13/cobra"

	"gitlab.com/tng-miniapp/ledger_api/cmd/commands"
)

var rollbackSteps int

func init() {
	migrateCmd.Flags().IntVar(&rollbackSteps, "rollback", 0, "revert this many migrations instead of migrating up")
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run the database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if rollbackSteps > 0 {
			commands.Rollback(cfg, rollbackSteps)
			return
		}
		commands.Migrate(cfg)
	},
}
