package queries

import (
	"context"

	"github.com/ericlagergren/decimal"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gorm.io/gorm"
)

const signedAmountExpr = "CASE WHEN direction = 'CREDIT' THEN amount ELSE -amount END"

func (s *session) FindEntryByIdempotencyKey(ctx context.Context, key string) (*model.LedgerEntry, error) {
	entry := &model.LedgerEntry{}
	if err := s.db.WithContext(ctx).Where("idempotency_key = ?", key).First(entry).Error; err != nil {
		return nil, wrapError(err, "unable to load entry with key %s", key)
	}
	return entry, nil
}

func (s *session) ListEntriesByTxRef(ctx context.Context, txRef string) ([]*model.LedgerEntry, error) {
	entries := make([]*model.LedgerEntry, 0)
	if err := s.db.WithContext(ctx).Where("tx_ref = ?", txRef).Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, wrapError(err, "unable to load entries of transaction %s", txRef)
	}
	return entries, nil
}

func (s *session) ListEntries(ctx context.Context, filter EntryFilter) ([]*model.LedgerEntry, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", filter.UserID)
		if filter.AssetID != 0 {
			db = db.Where("asset_id = ?", filter.AssetID)
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.LedgerEntry{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, wrapError(err, "unable to count entries of %s", filter.UserID)
	}

	entries := make([]*model.LedgerEntry, 0)
	err := s.db.WithContext(ctx).Scopes(scope).
		Order("created_at DESC, id DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, wrapError(err, "unable to load entries of %s", filter.UserID)
	}
	return entries, total, nil
}

func (s *session) SumPostedEntries(ctx context.Context, userID string, assetID uint64) (*decimal.Big, error) {
	return s.sum(ctx, "ledger_entries", signedAmountExpr,
		"user_id = ? AND asset_id = ? AND status = ?", userID, assetID, model.EntryStatusPosted)
}

func (tx *gormTx) CreateEntry(ctx context.Context, entry *model.LedgerEntry) error {
	if err := tx.db.WithContext(ctx).Create(entry).Error; err != nil {
		return wrapError(err, "unable to create entry %s", entry.IdempotencyKey)
	}
	return nil
}
