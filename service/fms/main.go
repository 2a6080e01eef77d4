package fms

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gitlab.com/tng-miniapp/ledger_api/cache"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/queries"
)

// Init creates the balance store. ttl bounds how stale a cached balance read can be.
func Init(store queries.Store, assets AssetResolver, c cache.Cache, ttl time.Duration) *BalanceStore {
	return &BalanceStore{
		store:  store,
		assets: assets,
		cache:  c,
		ttl:    ttl,
	}
}

// GetUserBalance returns the balance of the user for one asset, creating a zero balance when missing
func (bs *BalanceStore) GetUserBalance(ctx context.Context, userID, symbol string) (*model.UserBalance, error) {
	logger := log.With().Str("service", "fms").Str("method", "GetUserBalance").Str("user_id", userID).Str("symbol", symbol).Logger()
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	asset, err := bs.assets.ResolveForValidation(ctx, symbol)
	if err != nil {
		return nil, err
	}

	balance, err := cache.GetOrSet(ctx, bs.cache, balanceKey(userID, asset.Symbol), bs.ttl, []string{UserTag(userID)}, func(ctx context.Context) (*model.UserBalance, error) {
		row, err := bs.loadOrCreate(ctx, userID, asset.ID)
		if err != nil {
			return nil, err
		}
		return row.ToUserBalance(asset.Symbol), nil
	})
	if err != nil {
		return nil, failure(logger, err, "Unable to load balance")
	}
	return balance, nil
}

// GetUserBalances returns every balance row of the user
func (bs *BalanceStore) GetUserBalances(ctx context.Context, userID string) ([]*model.UserBalance, error) {
	logger := log.With().Str("service", "fms").Str("method", "GetUserBalances").Str("user_id", userID).Logger()
	if err := checkUser(userID); err != nil {
		return nil, err
	}

	balances, err := cache.GetOrSet(ctx, bs.cache, balancesKey(userID), bs.ttl, []string{UserTag(userID)}, func(ctx context.Context) ([]*model.UserBalance, error) {
		reader := bs.store.Reader()
		rows, err := reader.ListBalances(ctx, userID)
		if err != nil {
			return nil, err
		}
		symbols := map[uint64]string{}
		balances := make([]*model.UserBalance, 0, len(rows))
		for _, row := range rows {
			symbol, ok := symbols[row.AssetID]
			if !ok {
				asset, err := reader.GetAssetByID(ctx, row.AssetID)
				if err != nil {
					return nil, err
				}
				symbol = asset.Symbol
				symbols[row.AssetID] = symbol
			}
			balances = append(balances, row.ToUserBalance(symbol))
		}
		return balances, nil
	})
	if err != nil {
		return nil, failure(logger, err, "Unable to load balances")
	}
	return balances, nil
}

func (bs *BalanceStore) loadOrCreate(ctx context.Context, userID string, assetID uint64) (*model.Balance, error) {
	balance, err := bs.store.Reader().GetBalance(ctx, userID, assetID)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, queries.ErrNotFound) {
		return nil, err
	}

	err = bs.store.Transaction(ctx, func(tx queries.Tx) error {
		balance, err = tx.LockBalance(ctx, userID, assetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	// the user list has to include the new row
	bs.invalidateUser(ctx, userID)
	return balance, nil
}

// InvalidateUser drops the cached balance views of the user
func (bs *BalanceStore) InvalidateUser(ctx context.Context, userID string) error {
	return bs.cache.InvalidateTags(ctx, UserTag(userID))
}

func (bs *BalanceStore) invalidateUser(ctx context.Context, userID string) {
	if err := bs.InvalidateUser(ctx, userID); err != nil {
		log.Error().Err(err).Str("service", "fms").Str("user_id", userID).Msg("Unable to invalidate balances cache")
	}
}
