package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gitlab.com/tng-miniapp/ledger_api/conv"
	"gitlab.com/tng-miniapp/ledger_api/service"
)

var recalculateAsset string

func init() {
	recalculateCmd.Flags().StringVar(&recalculateAsset, "asset", "", "only recalculate the balance of this asset")
	rootCmd.AddCommand(recalculateCmd)
}

var recalculateCmd = &cobra.Command{
	Use:   "recalculate [user_id...]",
	Short: "Rebuild the cached balances of the given users from their ledger entries",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		srv, err := service.NewService(loadConfig())
		if err != nil {
			log.Fatal().Err(err).Str("section", "recalculate").Msg("Unable to init services")
		}
		defer srv.Close()

		ctx := context.Background()
		failed := 0
		for _, userID := range args {
			logger := log.With().Str("section", "recalculate").Str("user_id", userID).Logger()
			if recalculateAsset != "" {
				balance, err := srv.Balances.RecalculateBalance(ctx, userID, recalculateAsset)
				if err != nil {
					failed++
					logger.Error().Err(err).Str("symbol", recalculateAsset).Msg("Unable to recalculate balance")
					continue
				}
				logger.Info().Str("symbol", balance.AssetSymbol).Str("amount_cached", conv.FormatUnits(balance.AmountCached)).Msg("Balance recalculated")
				continue
			}

			balances, err := srv.Balances.RecalculateUser(ctx, userID)
			if err != nil {
				failed++
				logger.Error().Err(err).Msg("Unable to recalculate balances")
				continue
			}
			for _, balance := range balances {
				logger.Info().Str("symbol", balance.AssetSymbol).Str("amount_cached", conv.FormatUnits(balance.AmountCached)).Msg("Balance recalculated")
			}
		}
		if failed > 0 {
			log.Fatal().Str("section", "recalculate").Int("failed", failed).Msg("Some balances could not be recalculated")
		}
	},
}
