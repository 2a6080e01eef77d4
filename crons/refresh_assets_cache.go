package crons

import (
	"context"

	"github.com/rs/zerolog/log"
)

// CronRefreshAssetsCache drops the cached assets and loads the active ones again
func CronRefreshAssetsCache(ctx context.Context, assets AssetsCache) {
	if err := assets.InvalidateAll(ctx); err != nil {
		log.Error().Err(err).Str("cron", RefreshAssetsCache).Msg("Unable to invalidate cached assets")
	}
	if err := assets.Warm(ctx); err != nil {
		log.Error().Err(err).Str("cron", RefreshAssetsCache).Msg("Unable to update cached asset list")
	}
}
