package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mediocregopher/radix/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tng-miniapp/ledger_api/config"
)

type cachedAsset struct {
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	var got cachedAsset
	assert.Equal(t, ErrMiss, c.Get(ctx, "asset:TNG", &got))

	require.NoError(t, c.Set(ctx, "asset:TNG", cachedAsset{Symbol: "TNG", Decimals: 9}, time.Minute))
	require.NoError(t, c.Get(ctx, "asset:TNG", &got))
	assert.Equal(t, cachedAsset{Symbol: "TNG", Decimals: 9}, got)

	require.NoError(t, c.Delete(ctx, "asset:TNG"))
	assert.Equal(t, ErrMiss, c.Get(ctx, "asset:TNG", &got))
}

func TestMemoryCache_ValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	value := &cachedAsset{Symbol: "SOL", Decimals: 9}
	require.NoError(t, c.Set(ctx, "asset:SOL", value, time.Minute))
	value.Decimals = 1

	var got cachedAsset
	require.NoError(t, c.Get(ctx, "asset:SOL", &got))
	assert.Equal(t, 9, got.Decimals)
}

func TestMemoryCache_InvalidateTags(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	require.NoError(t, c.Set(ctx, "balance:alice:SOL", "1", time.Minute, "balances:alice"))
	require.NoError(t, c.Set(ctx, "balance:alice:TNG", "2", time.Minute, "balances:alice"))
	require.NoError(t, c.Set(ctx, "balance:bob:TNG", "3", time.Minute, "balances:bob"))

	require.NoError(t, c.InvalidateTags(ctx, "balances:alice"))

	var got string
	assert.Equal(t, ErrMiss, c.Get(ctx, "balance:alice:SOL", &got))
	assert.Equal(t, ErrMiss, c.Get(ctx, "balance:alice:TNG", &got))
	require.NoError(t, c.Get(ctx, "balance:bob:TNG", &got))
	assert.Equal(t, "3", got)
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	require.NoError(t, c.Set(ctx, "short", 1, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var got int
	assert.Equal(t, ErrMiss, c.Get(ctx, "short", &got))
}

func TestGetOrSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	loads := 0
	load := func(ctx context.Context) (cachedAsset, error) {
		loads++
		return cachedAsset{Symbol: "USDC", Decimals: 6}, nil
	}

	for i := 0; i < 3; i++ {
		value, err := GetOrSet(ctx, c, "asset:USDC", time.Minute, []string{"assets"}, load)
		require.NoError(t, err)
		assert.Equal(t, "USDC", value.Symbol)
	}
	assert.Equal(t, 1, loads)

	require.NoError(t, c.InvalidateTags(ctx, "assets"))
	_, err := GetOrSet(ctx, c, "asset:USDC", time.Minute, []string{"assets"}, load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestGetOrSet_LoadError(t *testing.T) {
	ctx := context.Background()
	failure := errors.New("db down")

	_, err := GetOrSet(ctx, Nop{}, "asset:SOL", time.Minute, nil, func(ctx context.Context) (*cachedAsset, error) {
		return nil, failure
	})
	assert.Equal(t, failure, err)
}

func TestMultiLevelCache(t *testing.T) {
	ctx := context.Background()
	local := NewMemoryCache(time.Minute, time.Minute)
	remote := NewMemoryCache(time.Minute, time.Minute)
	c := NewMultiLevelCache(local, remote)

	require.NoError(t, c.Set(ctx, "asset:TNG", cachedAsset{Symbol: "TNG"}, time.Minute, "assets"))

	var got cachedAsset
	require.NoError(t, local.Get(ctx, "asset:TNG", &got))
	require.NoError(t, remote.Get(ctx, "asset:TNG", &got))

	// a value only present remotely is copied to the local level
	require.NoError(t, remote.Set(ctx, "asset:SOL", cachedAsset{Symbol: "SOL"}, time.Minute))
	require.NoError(t, c.Get(ctx, "asset:SOL", &got))
	assert.Equal(t, "SOL", got.Symbol)
	require.NoError(t, local.Get(ctx, "asset:SOL", &got))

	require.NoError(t, c.InvalidateTags(ctx, "assets"))
	assert.Equal(t, ErrMiss, local.Get(ctx, "asset:TNG", &got))
	assert.Equal(t, ErrMiss, remote.Get(ctx, "asset:TNG", &got))
	assert.Equal(t, ErrMiss, c.Get(ctx, "asset:TNG", &got))
}

func TestMultiLevelCache_BackfillKeepsTags(t *testing.T) {
	ctx := context.Background()

	remotes := map[string]Cache{
		"memory": NewMemoryCache(time.Minute, time.Minute),
		"redis":  NewRedisCache(stubRedis()),
	}
	for name, remote := range remotes {
		t.Run(name, func(t *testing.T) {
			local := NewMemoryCache(time.Minute, time.Minute)
			c := NewMultiLevelCache(local, remote)

			// written by another instance
			require.NoError(t, remote.Set(ctx, "balance:u1", "old", time.Minute, "user:u1"))

			var got string
			require.NoError(t, c.Get(ctx, "balance:u1", &got))
			assert.Equal(t, "old", got)
			require.NoError(t, local.Get(ctx, "balance:u1", &got))

			require.NoError(t, c.InvalidateTags(ctx, "user:u1"))
			assert.Equal(t, ErrMiss, local.Get(ctx, "balance:u1", &got))
			assert.Equal(t, ErrMiss, c.Get(ctx, "balance:u1", &got))
		})
	}
}

func TestRedisCache_KeyTags(t *testing.T) {
	ctx := context.Background()
	c := NewRedisCache(stubRedis())

	require.NoError(t, c.Set(ctx, "balance:u1", "v", time.Minute, "user:u1", "balances"))
	tags, err := c.KeyTags(ctx, "balance:u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user:u1", "balances"}, tags)

	require.NoError(t, c.Set(ctx, "balance:u1", "v", time.Minute, "user:u1"))
	tags, err = c.KeyTags(ctx, "balance:u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"user:u1"}, tags)

	require.NoError(t, c.Delete(ctx, "balance:u1"))
	tags, err = c.KeyTags(ctx, "balance:u1")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

// stubRedis answers the handful of commands used by RedisCache
func stubRedis() radix.Conn {
	lock := sync.Mutex{}
	values := map[string]string{}
	sets := map[string]map[string]struct{}{}

	return radix.Stub("tcp", "127.0.0.1:6379", func(args []string) interface{} {
		lock.Lock()
		defer lock.Unlock()
		switch args[0] {
		case "GET":
			if v, ok := values[args[1]]; ok {
				return v
			}
			return nil
		case "SET":
			values[args[1]] = args[2]
			return "OK"
		case "DEL":
			deleted := 0
			for _, key := range args[1:] {
				if _, ok := values[key]; ok {
					deleted++
				}
				delete(values, key)
				delete(sets, key)
			}
			return deleted
		case "SADD":
			members, ok := sets[args[1]]
			if !ok {
				members = map[string]struct{}{}
				sets[args[1]] = members
			}
			for _, m := range args[2:] {
				members[m] = struct{}{}
			}
			return len(args) - 2
		case "PEXPIRE":
			return 1
		case "SMEMBERS":
			members := []string{}
			for m := range sets[args[1]] {
				members = append(members, m)
			}
			return members
		}
		return errors.New("unsupported command " + args[0])
	})
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	c := NewRedisCache(stubRedis())

	var got cachedAsset
	assert.Equal(t, ErrMiss, c.Get(ctx, "asset:TNG", &got))

	require.NoError(t, c.Set(ctx, "asset:TNG", cachedAsset{Symbol: "TNG", Decimals: 9}, time.Minute, "assets"))
	require.NoError(t, c.Get(ctx, "asset:TNG", &got))
	assert.Equal(t, cachedAsset{Symbol: "TNG", Decimals: 9}, got)

	require.NoError(t, c.InvalidateTags(ctx, "assets"))
	assert.Equal(t, ErrMiss, c.Get(ctx, "asset:TNG", &got))
}

func TestNew(t *testing.T) {
	c, err := New(config.CacheConfig{Driver: DriverMemory, AssetTTL: time.Minute}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	c, err = New(config.CacheConfig{Driver: DriverNop}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, c)

	_, err = New(config.CacheConfig{Driver: DriverRedis}, nil)
	assert.Error(t, err)

	c, err = New(config.CacheConfig{Driver: DriverMultiLevel}, stubRedis())
	require.NoError(t, err)
	assert.IsType(t, &MultiLevelCache{}, c)

	_, err = New(config.CacheConfig{Driver: "memcached"}, nil)
	assert.Error(t, err)
}
