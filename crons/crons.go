package crons

import (
	"context"

	"github.com/robfig/cron"
	"github.com/rs/zerolog/log"
	"gitlab.com/tng-miniapp/ledger_api/config"
)

// Cron ids
const (
	ProcessExpiredHolds = "process_expired_holds"
	RefreshAssetsCache  = "refresh_assets_cache"
)

// HoldsSweeper expires the holds past their expiration time
type HoldsSweeper interface {
	ProcessExpiredHolds(ctx context.Context) (int, error)
}

// AssetsCache is refreshed periodically so deactivated assets disappear from the allow-list
type AssetsCache interface {
	InvalidateAll(ctx context.Context) error
	Warm(ctx context.Context) error
}

var cronService *cron.Cron

// Start Initiate the crons based on the given configuration file
func Start(ctx context.Context, crons config.Crons, holds HoldsSweeper, assets AssetsCache) error {
	cronService = cron.New()
	for id, schedule := range crons {
		callback := GetCronByID(ctx, id, holds, assets)
		if callback == nil {
			log.Warn().Str("section", "crons").Str("cron", id).Msg("Unknown cron id, skipping")
			continue
		}
		if err := cronService.AddFunc(schedule, callback); err != nil {
			return err
		}
		// warm the caches once at startup
		if id == RefreshAssetsCache {
			callback()
		}
	}
	cronService.Start()
	return nil
}

// GetCronByID get a function to execute based on the id
func GetCronByID(ctx context.Context, id string, holds HoldsSweeper, assets AssetsCache) func() {
	switch id {
	case ProcessExpiredHolds:
		return func() {
			CronProcessExpiredHolds(ctx, holds)
		}
	case RefreshAssetsCache:
		return func() {
			CronRefreshAssetsCache(ctx, assets)
		}
	}
	return nil
}

// Close godoc
func Close() {
	if cronService != nil {
		cronService.Stop()
	}
}
