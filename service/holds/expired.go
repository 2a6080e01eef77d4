package holds

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/monitor"
	"gitlab.com/tng-miniapp/ledger_api/queries"
)

// ProcessExpiredHolds expires every active hold past its expiration and unlocks its amount.
// Each hold is expired in its own transaction. Failures are logged and skipped, the number of expired holds is returned.
func (m *Manager) ProcessExpiredHolds(ctx context.Context) (int, error) {
	defer monitor.ObserveDuration("process_expired_holds", time.Now())
	logger := log.With().Str("service", "holds").Str("method", "ProcessExpiredHolds").Logger()

	now := m.now()
	expired := 0
	for {
		holds, err := m.store.Reader().ListHolds(ctx, queries.HoldFilter{
			Status:        model.HoldStatusActive,
			ExpiresBefore: &now,
			Limit:         m.batch,
		})
		if err != nil {
			return expired, failure(logger, err, "Unable to load expired holds")
		}

		processed := 0
		for _, hold := range holds {
			if err := ctx.Err(); err != nil {
				return expired, err
			}
			ok, err := m.expire(ctx, hold.ID, now)
			if err != nil {
				monitor.ExpiredHoldsCount.WithLabelValues("failed").Inc()
				logger.Error().Err(err).Str("hold_id", hold.ID).Str("user_id", hold.UserID).Msg("Unable to expire hold")
				continue
			}
			if ok {
				processed++
				monitor.ExpiredHoldsCount.WithLabelValues("expired").Inc()
			}
		}
		expired += processed

		// a short batch means nothing is left, a batch without progress only holds failing rows
		if len(holds) < m.batch || processed == 0 {
			break
		}
	}

	if expired > 0 {
		logger.Info().Int("count", expired).Msg("Expired holds processed")
	}
	return expired, nil
}

// expire returns false when the hold changed since it was listed
func (m *Manager) expire(ctx context.Context, holdID string, now time.Time) (bool, error) {
	changed := false
	err := m.store.Transaction(ctx, func(tx queries.Tx) error {
		hold, err := tx.LockHold(ctx, holdID)
		if err != nil {
			return err
		}
		if !hold.IsActive() || !hold.IsPastExpiry(now) {
			return nil
		}
		amount := hold.GetAmount()
		hold.Close(model.HoldStatusExpired, now)
		hold.SetMeta(model.HoldMetaExpiredAt, now)
		if err := tx.SaveHold(ctx, hold); err != nil {
			return err
		}
		if _, err := m.balances.UnlockBalanceInTransaction(ctx, tx, hold.UserID, hold.AssetID, amount); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}
