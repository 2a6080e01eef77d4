package ledger

import (
	"context"
	"strings"

	"github.com/ericlagergren/decimal"
	"github.com/rs/zerolog"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/queries"
	"gitlab.com/tng-miniapp/ledger_api/service/notifications"
)

// DefaultHistoryLimit is used when the caller does not ask for a page size
const DefaultHistoryLimit = 20

// AssetResolver resolves the asset symbols supplied by callers
type AssetResolver interface {
	ResolveForValidation(ctx context.Context, symbol string) (*model.Asset, error)
}

// BalanceUpdater applies posted amounts to the cached balances
type BalanceUpdater interface {
	UpdateBalanceInTransaction(ctx context.Context, tx queries.Tx, userID string, assetID uint64, delta *decimal.Big) (*model.Balance, error)
}

// Ledger posts double-entry transactions and serves the entry history
type Ledger struct {
	store     queries.Store
	assets    AssetResolver
	balances  BalanceUpdater
	publisher notifications.Publisher
	maxLimit  int
}

// New godoc
func New(store queries.Store, assets AssetResolver, balances BalanceUpdater, publisher notifications.Publisher, maxLimit int) *Ledger {
	if publisher == nil {
		publisher = notifications.Nop{}
	}
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &Ledger{
		store:     store,
		assets:    assets,
		balances:  balances,
		publisher: publisher,
		maxLimit:  maxLimit,
	}
}

func checkUser(userID, field string) error {
	if strings.TrimSpace(userID) == "" {
		return model.NewLedgerError(model.ErrCodeInvalidUser, field+" is required", nil)
	}
	return nil
}

func checkIdempotencyKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return model.NewLedgerError(model.ErrCodeInvalidRequest, "idempotency key is required", nil)
	}
	return nil
}

// failure passes ledger errors through and hides everything else behind an internal error
func failure(logger zerolog.Logger, err error, msg string) error {
	if le, ok := model.AsLedgerError(err); ok {
		return le
	}
	logger.Error().Err(err).Msg(msg)
	return model.NewInternalError()
}

func keyReused(key string) error {
	return model.NewLedgerError(model.ErrCodeDuplicateIdempotencyKey, "idempotency key was used for a different request", map[string]interface{}{
		"idempotencyKey": key,
	})
}
