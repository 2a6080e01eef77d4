package crons

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

var sweeping int32

// CronProcessExpiredHolds releases the funds of expired holds. Overlapping runs are skipped.
func CronProcessExpiredHolds(ctx context.Context, holds HoldsSweeper) {
	if !atomic.CompareAndSwapInt32(&sweeping, 0, 1) {
		log.Debug().Str("cron", ProcessExpiredHolds).Msg("Previous sweep still running")
		return
	}
	defer atomic.StoreInt32(&sweeping, 0)

	processed, err := holds.ProcessExpiredHolds(ctx)
	if err != nil {
		log.Error().Err(err).Str("cron", ProcessExpiredHolds).Int("processed", processed).Msg("Unable to process expired holds")
		return
	}
	if processed > 0 {
		log.Info().Str("cron", ProcessExpiredHolds).Int("processed", processed).Msg("Expired holds processed")
	}
}
