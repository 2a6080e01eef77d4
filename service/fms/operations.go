package fms

import (
	"context"
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gitlab.com/tng-miniapp/ledger_api/conv"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/queries"
)

// UpdateBalanceInTransaction applies a signed delta to the cached amount of the balance.
// It is the only way to change AmountCached and must run in the transaction that writes the matching entries.
func (bs *BalanceStore) UpdateBalanceInTransaction(ctx context.Context, tx queries.Tx, userID string, assetID uint64, delta *decimal.Big) (*model.Balance, error) {
	if delta == nil || delta.IsNaN(0) || delta.IsInf(0) || !delta.IsInt() {
		return nil, model.NewLedgerError(model.ErrCodeInvalidAmount, "delta must be an integer", nil)
	}

	balance, err := tx.LockBalance(ctx, userID, assetID)
	if err != nil {
		return nil, err
	}

	cached := conv.NewUnits().Add(balance.Cached(), delta)
	locked := balance.Locked()
	if cached.Sign() < 0 {
		return nil, model.NewLedgerError(model.ErrCodeInsufficientBalance, "insufficient balance", map[string]interface{}{
			"userId":       userID,
			"assetId":      assetID,
			"amountCached": conv.FormatUnits(balance.Cached()),
			"delta":        conv.FormatUnits(delta),
		})
	}
	if cached.Cmp(locked) < 0 {
		return nil, model.NewLedgerError(model.ErrCodeInsufficientAvailableBalance, "insufficient available balance", map[string]interface{}{
			"userId":          userID,
			"assetId":         assetID,
			"availableAmount": conv.FormatUnits(balance.Available()),
			"delta":           conv.FormatUnits(delta),
		})
	}

	return bs.save(ctx, tx, balance, cached, locked)
}

// LockBalanceInTransaction moves amount from the available to the locked part of the balance
func (bs *BalanceStore) LockBalanceInTransaction(ctx context.Context, tx queries.Tx, userID string, assetID uint64, amount *decimal.Big) (*model.Balance, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	balance, err := tx.LockBalance(ctx, userID, assetID)
	if err != nil {
		return nil, err
	}

	if balance.Available().Cmp(amount) < 0 {
		return nil, model.NewLedgerError(model.ErrCodeInsufficientAvailableBalance, "insufficient available balance", map[string]interface{}{
			"userId":          userID,
			"assetId":         assetID,
			"availableAmount": conv.FormatUnits(balance.Available()),
			"amount":          conv.FormatUnits(amount),
		})
	}

	locked := conv.NewUnits().Add(balance.Locked(), amount)
	return bs.save(ctx, tx, balance, balance.Cached(), locked)
}

// UnlockBalanceInTransaction returns amount from the locked to the available part of the balance
func (bs *BalanceStore) UnlockBalanceInTransaction(ctx context.Context, tx queries.Tx, userID string, assetID uint64, amount *decimal.Big) (*model.Balance, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	balance, err := tx.LockBalance(ctx, userID, assetID)
	if err != nil {
		return nil, err
	}

	if balance.Locked().Cmp(amount) < 0 {
		return nil, model.NewLedgerError(model.ErrCodeInvalidHoldAmount, "unlock amount exceeds locked amount", map[string]interface{}{
			"userId":       userID,
			"assetId":      assetID,
			"lockedAmount": conv.FormatUnits(balance.Locked()),
			"amount":       conv.FormatUnits(amount),
		})
	}

	locked := conv.NewUnits().Sub(balance.Locked(), amount)
	return bs.save(ctx, tx, balance, balance.Cached(), locked)
}

// LockBalance locks amount of the user balance in its own transaction
func (bs *BalanceStore) LockBalance(ctx context.Context, userID, symbol string, amount *decimal.Big) (*model.UserBalance, error) {
	logger := log.With().Str("service", "fms").Str("method", "LockBalance").Str("user_id", userID).Str("symbol", symbol).Logger()
	return bs.wrap(ctx, logger, userID, symbol, amount, func(tx queries.Tx, asset *model.Asset) (*model.Balance, error) {
		return bs.LockBalanceInTransaction(ctx, tx, userID, asset.ID, amount)
	})
}

// UnlockBalance unlocks amount of the user balance in its own transaction
func (bs *BalanceStore) UnlockBalance(ctx context.Context, userID, symbol string, amount *decimal.Big) (*model.UserBalance, error) {
	logger := log.With().Str("service", "fms").Str("method", "UnlockBalance").Str("user_id", userID).Str("symbol", symbol).Logger()
	return bs.wrap(ctx, logger, userID, symbol, amount, func(tx queries.Tx, asset *model.Asset) (*model.Balance, error) {
		return bs.UnlockBalanceInTransaction(ctx, tx, userID, asset.ID, amount)
	})
}

// wrap validates the request and runs op in a new transaction
func (bs *BalanceStore) wrap(ctx context.Context, logger zerolog.Logger, userID, symbol string, amount *decimal.Big, op func(tx queries.Tx, asset *model.Asset) (*model.Balance, error)) (*model.UserBalance, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	asset, err := bs.assets.ResolveForValidation(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var balance *model.Balance
	err = bs.store.Transaction(ctx, func(tx queries.Tx) error {
		var err error
		balance, err = op(tx, asset)
		return err
	})
	if err != nil {
		return nil, failure(logger, err, "Unable to update balance")
	}
	return balance.ToUserBalance(asset.Symbol), nil
}

// save writes the new amounts after checking the balance invariants
// and drops the cached views of the user once the transaction committed
func (bs *BalanceStore) save(ctx context.Context, tx queries.Tx, balance *model.Balance, cached, locked *decimal.Big) (*model.Balance, error) {
	balance.Set(cached, locked)
	if err := balance.Validate(); err != nil {
		return nil, model.NewLedgerError(model.ErrCodeLedgerImbalance, err.Error(), map[string]interface{}{
			"userId":  balance.UserID,
			"assetId": balance.AssetID,
		})
	}
	balance.UpdatedAt = time.Now()
	if err := tx.SaveBalance(ctx, balance); err != nil {
		return nil, err
	}

	userID := balance.UserID
	tx.AfterCommit(func() { bs.invalidateUser(context.Background(), userID) })
	return balance, nil
}
