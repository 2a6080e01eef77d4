package fms

import (
	"context"
	"time"

	"gitlab.com/tng-miniapp/ledger_api/cache"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/queries"
)

// AssetResolver resolves the asset symbols supplied by callers
type AssetResolver interface {
	ResolveForValidation(ctx context.Context, symbol string) (*model.Asset, error)
}

// BalanceStore maintains the cached balance of every (user, asset) pair.
// It is the only component writing the amounts of a balance row.
type BalanceStore struct {
	store  queries.Store
	assets AssetResolver
	cache  cache.Cache
	ttl    time.Duration
}
