package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/mediocregopher/radix/v3"
)

const (
	tagPrefix     = "tag:"
	keyTagsPrefix = "keytags:"
)

// RedisCache shares the cached values between the API instances
type RedisCache struct {
	client radix.Client
}

// NewRedisCache godoc
func NewRedisCache(client radix.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string, target interface{}) error {
	var data []byte
	if err := c.client.Do(radix.Cmd(&data, "GET", key)); err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrMiss
	}
	return json.Unmarshal(data, target)
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	args := []string{key, string(data)}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	if err := c.client.Do(radix.Cmd(nil, "SET", args...)); err != nil {
		return err
	}
	for _, tag := range tags {
		if err := c.client.Do(radix.Cmd(nil, "SADD", tagPrefix+tag, key)); err != nil {
			return err
		}
	}
	return c.setKeyTags(key, ttl, tags)
}

func (c *RedisCache) setKeyTags(key string, ttl time.Duration, tags []string) error {
	if err := c.client.Do(radix.Cmd(nil, "DEL", keyTagsPrefix+key)); err != nil {
		return err
	}
	if len(tags) == 0 {
		return nil
	}
	if err := c.client.Do(radix.Cmd(nil, "SADD", append([]string{keyTagsPrefix + key}, tags...)...)); err != nil {
		return err
	}
	if ttl > 0 {
		return c.client.Do(radix.Cmd(nil, "PEXPIRE", keyTagsPrefix+key, strconv.FormatInt(ttl.Milliseconds(), 10)))
	}
	return nil
}

// KeyTags returns the tags key was last stored with
func (c *RedisCache) KeyTags(ctx context.Context, key string) ([]string, error) {
	var tags []string
	if err := c.client.Do(radix.Cmd(&tags, "SMEMBERS", keyTagsPrefix+key)); err != nil {
		return nil, err
	}
	return tags, nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	all := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		all = append(all, key, keyTagsPrefix+key)
	}
	return c.client.Do(radix.Cmd(nil, "DEL", all...))
}

func (c *RedisCache) InvalidateTags(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		var keys []string
		if err := c.client.Do(radix.Cmd(&keys, "SMEMBERS", tagPrefix+tag)); err != nil {
			return err
		}
		if err := c.Delete(ctx, append(keys, tagPrefix+tag)...); err != nil {
			return err
		}
	}
	return nil
}
