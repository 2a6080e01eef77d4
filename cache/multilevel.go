package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// l1BackfillTTL bounds how long a value read from the remote level stays local
const l1BackfillTTL = 5 * time.Second

// MultiLevelCache puts a local cache (L1) in front of a shared one (L2)
type MultiLevelCache struct {
	local  Cache
	remote Cache
}

// NewMultiLevelCache godoc
func NewMultiLevelCache(local, remote Cache) *MultiLevelCache {
	return &MultiLevelCache{
		local:  local,
		remote: remote,
	}
}

func (m *MultiLevelCache) Get(ctx context.Context, key string, target interface{}) error {
	if err := m.local.Get(ctx, key, target); err == nil {
		return nil
	}
	if err := m.remote.Get(ctx, key, target); err != nil {
		return err
	}
	// the local copy must carry the remote tags or InvalidateTags would miss it
	tagger, ok := m.remote.(Tagger)
	if !ok {
		return nil
	}
	tags, err := tagger.KeyTags(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("section", "cache").Str("key", key).Msg("Unable to read the tags of a remote key")
		return nil
	}
	_ = m.local.Set(ctx, key, target, l1BackfillTTL, tags...)
	return nil
}

// Set writes both levels, the local one with half the ttl
func (m *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error {
	if err := m.local.Set(ctx, key, value, ttl/2, tags...); err != nil {
		log.Warn().Err(err).Str("section", "cache").Str("key", key).Msg("Unable to write to local cache")
	}
	return m.remote.Set(ctx, key, value, ttl, tags...)
}

func (m *MultiLevelCache) Delete(ctx context.Context, keys ...string) error {
	_ = m.local.Delete(ctx, keys...)
	return m.remote.Delete(ctx, keys...)
}

func (m *MultiLevelCache) InvalidateTags(ctx context.Context, tags ...string) error {
	_ = m.local.InvalidateTags(ctx, tags...)
	return m.remote.InvalidateTags(ctx, tags...)
}
