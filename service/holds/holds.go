package holds

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gitlab.com/tng-miniapp/ledger_api/conv"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/monitor"
	"gitlab.com/tng-miniapp/ledger_api/queries"
)

// AssetResolver resolves the asset symbols supplied by callers
type AssetResolver interface {
	ResolveForValidation(ctx context.Context, symbol string) (*model.Asset, error)
}

// BalanceLocker moves funds between the available and locked parts of a balance
type BalanceLocker interface {
	LockBalanceInTransaction(ctx context.Context, tx queries.Tx, userID string, assetID uint64, amount *decimal.Big) (*model.Balance, error)
	UnlockBalanceInTransaction(ctx context.Context, tx queries.Tx, userID string, assetID uint64, amount *decimal.Big) (*model.Balance, error)
}

// Manager handles the lifecycle of fund holds
type Manager struct {
	store    queries.Store
	assets   AssetResolver
	balances BalanceLocker
	// number of expired holds loaded per sweep query
	batch int
	now   func() time.Time
}

// NewManager godoc
func NewManager(store queries.Store, assets AssetResolver, balances BalanceLocker, batch int) *Manager {
	if batch <= 0 {
		batch = 500
	}
	return &Manager{
		store:    store,
		assets:   assets,
		balances: balances,
		batch:    batch,
		now:      time.Now,
	}
}

// CreateHold locks part of the available balance of a user
func (m *Manager) CreateHold(ctx context.Context, req model.CreateHoldRequest) (*model.Hold, error) {
	defer monitor.ObserveDuration("create_hold", time.Now())
	logger := log.With().Str("service", "holds").Str("method", "CreateHold").Str("user_id", req.UserID).Str("symbol", req.AssetSymbol).Logger()

	if !conv.IsPositiveUnits(req.Amount) {
		return nil, model.NewLedgerError(model.ErrCodeInvalidAmount, "amount must be a positive integer", nil)
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, model.NewLedgerError(model.ErrCodeInvalidUser, "user id is required", nil)
	}
	asset, err := m.assets.ResolveForValidation(ctx, req.AssetSymbol)
	if err != nil {
		return nil, err
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(m.now()) {
		return nil, model.NewLedgerError(model.ErrCodeInvalidRequest, "expiration must be in the future", map[string]interface{}{
			"expiresAt": req.ExpiresAt,
		})
	}
	purpose := req.Purpose
	if purpose == "" {
		purpose = model.HoldPurposeOther
	}
	if !purpose.IsValid() {
		return nil, model.NewLedgerError(model.ErrCodeInvalidRequest, "unknown hold purpose", map[string]interface{}{
			"purpose": req.Purpose,
		})
	}

	available, err := m.available(ctx, req.UserID, asset.ID)
	if err != nil {
		return nil, failure(logger, err, "Unable to load balance")
	}
	if available.Cmp(req.Amount) < 0 {
		return nil, insufficientForHold(available, req.Amount)
	}

	hold := model.NewHold(req.UserID, asset, req.Amount, purpose, req.ReferenceID, req.Description, req.Metadata, req.ExpiresAt)
	err = m.store.Transaction(ctx, func(tx queries.Tx) error {
		if err := tx.CreateHold(ctx, hold); err != nil {
			return err
		}
		_, err := m.balances.LockBalanceInTransaction(ctx, tx, req.UserID, asset.ID, req.Amount)
		return err
	})
	if model.HasCode(err, model.ErrCodeInsufficientAvailableBalance) {
		le, _ := model.AsLedgerError(err)
		return nil, model.NewLedgerError(model.ErrCodeInsufficientAvailableBalance, "insufficient available balance for hold", le.Details)
	}
	if err != nil {
		return nil, failure(logger, err, "Unable to create hold")
	}

	monitor.HoldsCount.WithLabelValues(asset.Symbol, "create").Inc()
	logger.Info().Str("hold_id", hold.ID).Str("amount", conv.FormatUnits(req.Amount)).Str("purpose", string(purpose)).Msg("Hold created")
	return hold, nil
}

// ReleaseHold returns all or part of a hold to the available balance
func (m *Manager) ReleaseHold(ctx context.Context, req model.ReleaseHoldRequest) (*model.Hold, error) {
	defer monitor.ObserveDuration("release_hold", time.Now())
	logger := log.With().Str("service", "holds").Str("method", "ReleaseHold").Str("hold_id", req.HoldID).Logger()

	if req.ReleaseAmount != nil && !conv.IsPositiveUnits(req.ReleaseAmount) {
		return nil, model.NewLedgerError(model.ErrCodeInvalidHoldAmount, "release amount must be a positive integer", nil)
	}

	var hold *model.Hold
	var released *decimal.Big
	err := m.store.Transaction(ctx, func(tx queries.Tx) error {
		var err error
		hold, err = m.lockActive(ctx, tx, req.HoldID)
		if err != nil {
			return err
		}
		now := m.now()
		if hold.IsPastExpiry(now) {
			return model.NewLedgerError(model.ErrCodeHoldExpired, "hold has expired", map[string]interface{}{
				"holdId":    hold.ID,
				"expiresAt": hold.ExpiresAt,
			})
		}

		remaining := hold.GetAmount()
		released = remaining
		if req.ReleaseAmount != nil {
			released = conv.CloneUnits(req.ReleaseAmount)
		}
		if released.Cmp(remaining) > 0 {
			return model.NewLedgerError(model.ErrCodeInvalidHoldAmount, "release amount exceeds hold amount", map[string]interface{}{
				"holdId":        hold.ID,
				"amount":        conv.FormatUnits(remaining),
				"releaseAmount": conv.FormatUnits(released),
			})
		}

		if released.Cmp(remaining) == 0 {
			hold.Close(model.HoldStatusReleased, now)
		} else {
			hold.Amount = model.NewUnitsColumn(conv.NewUnits().Sub(remaining, released))
			hold.UpdatedAt = now
		}
		if req.Reason != "" {
			hold.AppendMeta(model.HoldMetaReleaseReasons, map[string]interface{}{
				"amount": conv.FormatUnits(released),
				"reason": req.Reason,
				"at":     now,
			})
		}
		if err := tx.SaveHold(ctx, hold); err != nil {
			return err
		}
		_, err = m.balances.UnlockBalanceInTransaction(ctx, tx, hold.UserID, hold.AssetID, released)
		return err
	})
	if err != nil {
		return nil, failure(logger, err, "Unable to release hold")
	}

	monitor.HoldsCount.WithLabelValues(hold.AssetSymbol, "release").Inc()
	logger.Info().Str("released", conv.FormatUnits(released)).Str("status", string(hold.Status)).Msg("Hold released")
	return hold, nil
}

// CancelHold aborts a hold and unlocks its whole remaining amount
func (m *Manager) CancelHold(ctx context.Context, holdID, reason string) (*model.Hold, error) {
	defer monitor.ObserveDuration("cancel_hold", time.Now())
	logger := log.With().Str("service", "holds").Str("method", "CancelHold").Str("hold_id", holdID).Logger()

	var hold *model.Hold
	err := m.store.Transaction(ctx, func(tx queries.Tx) error {
		var err error
		hold, err = m.lockActive(ctx, tx, holdID)
		if err != nil {
			return err
		}
		amount := hold.GetAmount()
		hold.Close(model.HoldStatusCancelled, m.now())
		if reason != "" {
			hold.SetMeta(model.HoldMetaCancelReason, reason)
		}
		if err := tx.SaveHold(ctx, hold); err != nil {
			return err
		}
		_, err = m.balances.UnlockBalanceInTransaction(ctx, tx, hold.UserID, hold.AssetID, amount)
		return err
	})
	if err != nil {
		return nil, failure(logger, err, "Unable to cancel hold")
	}

	monitor.HoldsCount.WithLabelValues(hold.AssetSymbol, "cancel").Inc()
	logger.Info().Str("reason", reason).Msg("Hold cancelled")
	return hold, nil
}

// GetHold godoc
func (m *Manager) GetHold(ctx context.Context, holdID string) (*model.Hold, error) {
	logger := log.With().Str("service", "holds").Str("method", "GetHold").Str("hold_id", holdID).Logger()
	hold, err := m.store.Reader().GetHold(ctx, holdID)
	if errors.Is(err, queries.ErrNotFound) {
		return nil, holdNotFound(holdID)
	}
	if err != nil {
		return nil, failure(logger, err, "Unable to load hold")
	}
	return hold, nil
}

// GetUserActiveHolds lists the active holds of a user, optionally for a single asset
func (m *Manager) GetUserActiveHolds(ctx context.Context, userID, symbol string) ([]*model.Hold, error) {
	logger := log.With().Str("service", "holds").Str("method", "GetUserActiveHolds").Str("user_id", userID).Logger()
	if strings.TrimSpace(userID) == "" {
		return nil, model.NewLedgerError(model.ErrCodeInvalidUser, "user id is required", nil)
	}

	filter := queries.HoldFilter{UserID: userID, Status: model.HoldStatusActive}
	if symbol != "" {
		asset, err := m.assets.ResolveForValidation(ctx, symbol)
		if err != nil {
			return nil, err
		}
		filter.AssetID = asset.ID
	}

	holds, err := m.store.Reader().ListHolds(ctx, filter)
	if err != nil {
		return nil, failure(logger, err, "Unable to load holds")
	}
	return holds, nil
}

// lockActive locks the hold row and checks it can still change
func (m *Manager) lockActive(ctx context.Context, tx queries.Tx, holdID string) (*model.Hold, error) {
	if holdID == "" {
		return nil, holdNotFound(holdID)
	}
	hold, err := tx.LockHold(ctx, holdID)
	if errors.Is(err, queries.ErrNotFound) {
		return nil, holdNotFound(holdID)
	}
	if err != nil {
		return nil, err
	}
	if !hold.IsActive() {
		return nil, model.NewLedgerError(model.ErrCodeHoldAlreadyReleased, "hold is no longer active", map[string]interface{}{
			"holdId": hold.ID,
			"status": hold.Status,
		})
	}
	return hold, nil
}

// available reads the committed available amount, a missing row counts as zero
func (m *Manager) available(ctx context.Context, userID string, assetID uint64) (*decimal.Big, error) {
	balance, err := m.store.Reader().GetBalance(ctx, userID, assetID)
	if errors.Is(err, queries.ErrNotFound) {
		return conv.NewUnits(), nil
	}
	if err != nil {
		return nil, err
	}
	return balance.Available(), nil
}

func insufficientForHold(available, amount *decimal.Big) error {
	return model.NewLedgerError(model.ErrCodeInsufficientAvailableBalance, "insufficient available balance for hold", map[string]interface{}{
		"availableAmount": conv.FormatUnits(available),
		"amount":          conv.FormatUnits(amount),
	})
}

func holdNotFound(holdID string) error {
	return model.NewLedgerError(model.ErrCodeHoldNotFound, "hold not found", map[string]interface{}{
		"holdId": holdID,
	})
}

func failure(logger zerolog.Logger, err error, msg string) error {
	if le, ok := model.AsLedgerError(err); ok {
		return le
	}
	logger.Error().Err(err).Msg(msg)
	return model.NewInternalError()
}
