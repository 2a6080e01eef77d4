package fms

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gitlab.com/tng-miniapp/ledger_api/conv"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/queries"
)

// RecalculateBalance rebuilds the balance of the user from the posted entries and the active holds.
//
// The row is locked for the whole computation so the result is consistent with every committed
// mutation. Totals breaking the balance invariants are reported as LEDGER_IMBALANCE and not written.
func (bs *BalanceStore) RecalculateBalance(ctx context.Context, userID, symbol string) (*model.UserBalance, error) {
	logger := log.With().Str("service", "fms").Str("method", "RecalculateBalance").Str("user_id", userID).Str("symbol", symbol).Logger()
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	asset, err := bs.assets.ResolveForValidation(ctx, symbol)
	if err != nil {
		return nil, err
	}

	balance, err := bs.recalculate(ctx, userID, asset)
	if err != nil {
		return nil, failure(logger, err, "Unable to recalculate balance")
	}
	return balance, nil
}

// RecalculateUser rebuilds every balance row of the user, inactive assets included
func (bs *BalanceStore) RecalculateUser(ctx context.Context, userID string) ([]*model.UserBalance, error) {
	logger := log.With().Str("service", "fms").Str("method", "RecalculateUser").Str("user_id", userID).Logger()
	if err := checkUser(userID); err != nil {
		return nil, err
	}

	reader := bs.store.Reader()
	rows, err := reader.ListBalances(ctx, userID)
	if err != nil {
		return nil, failure(logger, err, "Unable to load balances")
	}

	balances := make([]*model.UserBalance, 0, len(rows))
	for _, row := range rows {
		asset, err := reader.GetAssetByID(ctx, row.AssetID)
		if err != nil {
			return nil, failure(logger, err, "Unable to load asset")
		}
		balance, err := bs.recalculate(ctx, userID, asset)
		if err != nil {
			return nil, failure(logger, err, "Unable to recalculate balance")
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

func (bs *BalanceStore) recalculate(ctx context.Context, userID string, asset *model.Asset) (*model.UserBalance, error) {
	logger := log.With().Str("service", "fms").Str("method", "recalculate").Str("user_id", userID).Str("symbol", asset.Symbol).Logger()

	var balance *model.Balance
	err := bs.store.Transaction(ctx, func(tx queries.Tx) error {
		var err error
		balance, err = tx.LockBalance(ctx, userID, asset.ID)
		if err != nil {
			return err
		}
		cached, err := tx.SumPostedEntries(ctx, userID, asset.ID)
		if err != nil {
			return err
		}
		locked, err := tx.SumActiveHolds(ctx, userID, asset.ID)
		if err != nil {
			return err
		}

		if cached.Sign() < 0 || locked.Cmp(cached) > 0 {
			logger.Error().
				Str("amount_cached", conv.FormatUnits(cached)).
				Str("locked_amount", conv.FormatUnits(locked)).
				Msg("Recalculated balance breaks the balance invariants")
			return model.NewLedgerError(model.ErrCodeLedgerImbalance, "recalculated balance is inconsistent", map[string]interface{}{
				"userId":       userID,
				"assetSymbol":  asset.Symbol,
				"amountCached": conv.FormatUnits(cached),
				"lockedAmount": conv.FormatUnits(locked),
			})
		}

		if balance.Cached().Cmp(cached) != 0 || balance.Locked().Cmp(locked) != 0 {
			logger.Warn().
				Str("previous_amount_cached", conv.FormatUnits(balance.Cached())).
				Str("previous_locked_amount", conv.FormatUnits(balance.Locked())).
				Str("amount_cached", conv.FormatUnits(cached)).
				Str("locked_amount", conv.FormatUnits(locked)).
				Msg("Balance drift repaired")
		}

		balance.Set(cached, locked)
		now := time.Now()
		balance.UpdatedAt = now
		balance.SyncedAt = &now
		if err := tx.SaveBalance(ctx, balance); err != nil {
			return err
		}
		tx.AfterCommit(func() { bs.invalidateUser(context.Background(), userID) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return balance.ToUserBalance(asset.Symbol), nil
}
