// Package cache holds the read-through caches placed in front of the ledger store.
//
// Values are stored JSON encoded so every driver hands back private copies.
// Keys can be grouped by tags and a whole group invalidated at once, which is how
// balance and asset views are dropped after a committed mutation.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mediocregopher/radix/v3"
	"github.com/rs/zerolog/log"
	"gitlab.com/tng-miniapp/ledger_api/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMiss is returned by Get when the key is not cached
var ErrMiss = errors.New("cache miss")

// Cache godoc
type Cache interface {
	// Get decodes the cached value of key into target
	Get(ctx context.Context, key string, target interface{}) error
	// Set stores value under key for ttl and attaches it to the given tags
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error
	Delete(ctx context.Context, keys ...string) error
	// InvalidateTags deletes every key attached to one of the tags
	InvalidateTags(ctx context.Context, tags ...string) error
}

// Tagger is implemented by the drivers that remember the tags attached to a key
type Tagger interface {
	KeyTags(ctx context.Context, key string) ([]string, error)
}

// Drivers
const (
	DriverMemory     = "memory"
	DriverRedis      = "redis"
	DriverMultiLevel = "multilevel"
	DriverNop        = "nop"
)

// New creates the cache selected by the configuration.
// The redis client is only used by the redis and multilevel drivers.
func New(cfg config.CacheConfig, client radix.Client) (Cache, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemoryCache(cfg.AssetTTL, cfg.CleanupInterval), nil
	case DriverRedis:
		if client == nil {
			return nil, errors.New("redis cache requires a redis connection")
		}
		return NewRedisCache(client), nil
	case DriverMultiLevel:
		if client == nil {
			return nil, errors.New("multilevel cache requires a redis connection")
		}
		return NewMultiLevelCache(NewMemoryCache(cfg.AssetTTL, cfg.CleanupInterval), NewRedisCache(client)), nil
	case DriverNop:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// GetOrSet returns the cached value of key or loads, caches and returns it.
// Cache failures are logged and never fail the call.
func GetOrSet[T any](ctx context.Context, c Cache, key string, ttl time.Duration, tags []string, load func(ctx context.Context) (T, error)) (T, error) {
	var value T
	err := c.Get(ctx, key, &value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrMiss) {
		log.Warn().Err(err).Str("section", "cache").Str("key", key).Msg("Unable to read from cache")
	}

	value, err = load(ctx)
	if err != nil {
		return value, err
	}
	if err := c.Set(ctx, key, value, ttl, tags...); err != nil {
		log.Warn().Err(err).Str("section", "cache").Str("key", key).Msg("Unable to write to cache")
	}
	return value, nil
}

// Nop never stores anything
type Nop struct{}

func (Nop) Get(context.Context, string, interface{}) error { return ErrMiss }

func (Nop) Set(context.Context, string, interface{}, time.Duration, ...string) error { return nil }

func (Nop) Delete(context.Context, ...string) error { return nil }

func (Nop) InvalidateTags(context.Context, ...string) error { return nil }
