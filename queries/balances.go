package queries

import (
	"context"

	"github.com/ericlagergren/decimal"
	"github.com/ericlagergren/decimal/sql/postgres"
	"gitlab.com/tng-miniapp/ledger_api/conv"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gorm.io/gorm/clause"
)

func (s *session) GetBalance(ctx context.Context, userID string, assetID uint64) (*model.Balance, error) {
	balance := &model.Balance{}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND asset_id = ?", userID, assetID).
		First(balance).Error
	if err != nil {
		return nil, wrapError(err, "unable to load balance of %s for asset %d", userID, assetID)
	}
	return balance, nil
}

func (s *session) ListBalances(ctx context.Context, userID string) ([]*model.Balance, error) {
	balances := make([]*model.Balance, 0)
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("asset_id ASC").Find(&balances).Error; err != nil {
		return nil, wrapError(err, "unable to load balances of %s", userID)
	}
	return balances, nil
}

func (tx *gormTx) LockBalance(ctx context.Context, userID string, assetID uint64) (*model.Balance, error) {
	db := tx.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(model.NewBalance(userID, assetID)).Error; err != nil {
		return nil, wrapError(err, "unable to init balance of %s for asset %d", userID, assetID)
	}

	balance := &model.Balance{}
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND asset_id = ?", userID, assetID).
		First(balance).Error
	if err != nil {
		return nil, wrapError(err, "unable to lock balance of %s for asset %d", userID, assetID)
	}
	return balance, nil
}

func (tx *gormTx) SaveBalance(ctx context.Context, balance *model.Balance) error {
	err := tx.db.WithContext(ctx).Model(balance).
		Select("amount_cached", "locked_amount", "available_amount", "updated_at", "synced_at").
		Updates(balance).Error
	if err != nil {
		return wrapError(err, "unable to save balance %d", balance.ID)
	}
	return nil
}

func (s *session) sum(ctx context.Context, table, expr, where string, args ...interface{}) (*decimal.Big, error) {
	total := &postgres.Decimal{V: conv.NewUnits()}
	row := s.db.WithContext(ctx).Table(table).Select("COALESCE(SUM(" + expr + "), 0)").Where(where, args...).Row()
	if err := row.Scan(total); err != nil {
		return nil, wrapError(err, "unable to sum %s", table)
	}
	return conv.CloneUnits(total.V), nil
}
