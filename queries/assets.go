package queries

import (
	"context"
	"time"

	"gitlab.com/tng-miniapp/ledger_api/model"
	"gorm.io/gorm/clause"
)

func (s *session) GetAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error) {
	asset := &model.Asset{}
	if err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(asset).Error; err != nil {
		return nil, wrapError(err, "unable to load asset %s", symbol)
	}
	return asset, nil
}

func (s *session) GetAssetByID(ctx context.Context, id uint64) (*model.Asset, error) {
	asset := &model.Asset{}
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(asset).Error; err != nil {
		return nil, wrapError(err, "unable to load asset %d", id)
	}
	return asset, nil
}

func (s *session) ListActiveAssets(ctx context.Context) ([]*model.Asset, error) {
	assets := make([]*model.Asset, 0)
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("symbol ASC").Find(&assets).Error; err != nil {
		return nil, wrapError(err, "unable to load active assets")
	}
	return assets, nil
}

func (tx *gormTx) UpdateAssetMintAddress(ctx context.Context, symbol, mintAddress string) (*model.Asset, error) {
	asset := &model.Asset{}
	err := tx.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("symbol = ?", symbol).
		First(asset).Error
	if err != nil {
		return nil, wrapError(err, "unable to lock asset %s", symbol)
	}

	asset.MintAddress = &mintAddress
	asset.UpdatedAt = time.Now()
	err = tx.db.WithContext(ctx).Model(asset).
		Updates(map[string]interface{}{"mint_address": mintAddress, "updated_at": asset.UpdatedAt}).Error
	if err != nil {
		return nil, wrapError(err, "unable to update mint address of %s", symbol)
	}
	return asset, nil
}
