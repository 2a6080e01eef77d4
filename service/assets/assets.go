package assets

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gitlab.com/tng-miniapp/ledger_api/cache"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/queries"
)

// Tag groups every cached asset view
const Tag = "assets"

const activeKey = "assets:active"

func assetKey(symbol string) string {
	return "asset:" + symbol
}

// Registry resolves asset symbols to asset metadata
type Registry struct {
	store queries.Store
	cache cache.Cache
	ttl   time.Duration
}

// NewRegistry godoc
func NewRegistry(store queries.Store, c cache.Cache, ttl time.Duration) *Registry {
	return &Registry{
		store: store,
		cache: c,
		ttl:   ttl,
	}
}

// GetAssetBySymbol returns an active asset. Unknown and inactive symbols fail with ASSET_NOT_FOUND.
func (r *Registry) GetAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error) {
	logger := log.With().Str("service", "assets").Str("method", "GetAssetBySymbol").Str("symbol", symbol).Logger()
	symbol = model.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, notFound(symbol)
	}

	asset, err := cache.GetOrSet(ctx, r.cache, assetKey(symbol), r.ttl, []string{Tag}, func(ctx context.Context) (*model.Asset, error) {
		return r.store.Reader().GetAssetBySymbol(ctx, symbol)
	})
	if errors.Is(err, queries.ErrNotFound) {
		return nil, notFound(symbol)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Unable to load asset")
		return nil, model.NewInternalError()
	}
	if !asset.IsActive {
		return nil, notFound(symbol)
	}
	return asset, nil
}

// GetAllActiveAssets returns the active assets ordered by symbol
func (r *Registry) GetAllActiveAssets(ctx context.Context) ([]*model.Asset, error) {
	logger := log.With().Str("service", "assets").Str("method", "GetAllActiveAssets").Logger()

	loaded := false
	assets, err := cache.GetOrSet(ctx, r.cache, activeKey, r.ttl, []string{Tag}, func(ctx context.Context) ([]*model.Asset, error) {
		loaded = true
		return r.store.Reader().ListActiveAssets(ctx)
	})
	if err != nil {
		logger.Error().Err(err).Msg("Unable to load active assets")
		return nil, model.NewInternalError()
	}

	if loaded {
		for _, asset := range assets {
			if err := r.cache.Set(ctx, assetKey(asset.Symbol), asset, r.ttl, Tag); err != nil {
				logger.Warn().Err(err).Str("symbol", asset.Symbol).Msg("Unable to cache asset")
			}
		}
	}
	return assets, nil
}

// UpdateAssetMintAddress backfills the on-chain mint address of an asset
func (r *Registry) UpdateAssetMintAddress(ctx context.Context, symbol, mintAddress string) (*model.Asset, error) {
	logger := log.With().Str("service", "assets").Str("method", "UpdateAssetMintAddress").Str("symbol", symbol).Logger()
	symbol = model.NormalizeSymbol(symbol)
	mintAddress = strings.TrimSpace(mintAddress)
	if mintAddress == "" {
		return nil, model.NewLedgerError(model.ErrCodeInvalidRequest, "mint address is required", nil)
	}

	var asset *model.Asset
	err := r.store.Transaction(ctx, func(tx queries.Tx) error {
		var err error
		asset, err = tx.UpdateAssetMintAddress(ctx, symbol, mintAddress)
		if err != nil {
			return err
		}
		tx.AfterCommit(func() { r.invalidate(ctx) })
		return nil
	})
	if errors.Is(err, queries.ErrNotFound) {
		return nil, notFound(symbol)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Unable to update mint address")
		return nil, model.NewInternalError()
	}

	logger.Info().Str("mint_address", mintAddress).Msg("Asset mint address updated")
	return asset, nil
}

// IsValidSymbol reports whether the symbol belongs to an active asset
func (r *Registry) IsValidSymbol(ctx context.Context, symbol string) bool {
	_, err := r.ResolveForValidation(ctx, symbol)
	return err == nil
}

// ResolveForValidation resolves a symbol supplied by a caller.
// Symbols outside the active asset set are invalid input and fail with INVALID_ASSET.
func (r *Registry) ResolveForValidation(ctx context.Context, symbol string) (*model.Asset, error) {
	normalized := model.NormalizeSymbol(symbol)
	if normalized == "" {
		return nil, model.NewLedgerError(model.ErrCodeInvalidAsset, "asset symbol is required", nil)
	}

	assets, err := r.GetAllActiveAssets(ctx)
	if err != nil {
		return nil, err
	}
	for _, asset := range assets {
		if asset.Symbol == normalized {
			return asset, nil
		}
	}
	return nil, model.NewLedgerError(model.ErrCodeInvalidAsset, "unsupported asset", map[string]interface{}{
		"assetSymbol": symbol,
	})
}

// InvalidateAll drops every cached asset view
func (r *Registry) InvalidateAll(ctx context.Context) error {
	return r.cache.InvalidateTags(ctx, Tag)
}

// Warm reloads the active assets into the cache
func (r *Registry) Warm(ctx context.Context) error {
	if err := r.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Str("service", "assets").Str("method", "Warm").Msg("Unable to invalidate assets cache")
	}
	_, err := r.GetAllActiveAssets(ctx)
	return err
}

func (r *Registry) invalidate(ctx context.Context) {
	if err := r.InvalidateAll(ctx); err != nil {
		log.Error().Err(err).Str("service", "assets").Msg("Unable to invalidate assets cache")
	}
}

func notFound(symbol string) *model.LedgerError {
	return model.NewLedgerError(model.ErrCodeAssetNotFound, "asset not found", map[string]interface{}{
		"assetSymbol": symbol,
	})
}
