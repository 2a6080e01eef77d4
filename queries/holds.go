package queries

import (
	"context"

	"github.com/ericlagergren/decimal"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gorm.io/gorm/clause"
)

func (s *session) GetHold(ctx context.Context, id string) (*model.Hold, error) {
	hold := &model.Hold{}
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(hold).Error; err != nil {
		return nil, wrapError(err, "unable to load hold %s", id)
	}
	return hold, nil
}

func (s *session) ListHolds(ctx context.Context, filter HoldFilter) ([]*model.Hold, error) {
	db := s.db.WithContext(ctx)
	if filter.UserID != "" {
		db = db.Where("user_id = ?", filter.UserID)
	}
	if filter.AssetID != 0 {
		db = db.Where("asset_id = ?", filter.AssetID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.ExpiresBefore != nil {
		db = db.Where("expires_at IS NOT NULL AND expires_at <= ?", *filter.ExpiresBefore)
	}
	if filter.Limit > 0 {
		db = db.Limit(filter.Limit)
	}

	holds := make([]*model.Hold, 0)
	if err := db.Order("created_at ASC, id ASC").Find(&holds).Error; err != nil {
		return nil, wrapError(err, "unable to load holds")
	}
	return holds, nil
}

func (s *session) SumActiveHolds(ctx context.Context, userID string, assetID uint64) (*decimal.Big, error) {
	return s.sum(ctx, "holds", "amount",
		"user_id = ? AND asset_id = ? AND status = ?", userID, assetID, model.HoldStatusActive)
}

func (tx *gormTx) CreateHold(ctx context.Context, hold *model.Hold) error {
	if err := tx.db.WithContext(ctx).Create(hold).Error; err != nil {
		return wrapError(err, "unable to create hold for %s", hold.UserID)
	}
	return nil
}

func (tx *gormTx) LockHold(ctx context.Context, id string) (*model.Hold, error) {
	hold := &model.Hold{}
	err := tx.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(hold).Error
	if err != nil {
		return nil, wrapError(err, "unable to lock hold %s", id)
	}
	return hold, nil
}

func (tx *gormTx) SaveHold(ctx context.Context, hold *model.Hold) error {
	err := tx.db.WithContext(ctx).Model(hold).
		Select("amount", "status", "metadata", "updated_at", "released_at").
		Updates(hold).Error
	if err != nil {
		return wrapError(err, "unable to save hold %s", hold.ID)
	}
	return nil
}
