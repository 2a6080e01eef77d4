package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps the encoded values in process memory
type MemoryCache struct {
	c *gocache.Cache
	// tag -> set of keys
	tags map[string]map[string]struct{}
	// key -> tags
	keyTags map[string][]string
	lock    *sync.RWMutex
}

// NewMemoryCache godoc
func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		c:       gocache.New(defaultExpiration, cleanupInterval),
		tags:    make(map[string]map[string]struct{}),
		keyTags: make(map[string][]string),
		lock:    &sync.RWMutex{},
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string, target interface{}) error {
	val, found := m.c.Get(key)
	if !found {
		return ErrMiss
	}
	data, ok := val.([]byte)
	if !ok {
		return ErrMiss
	}
	return json.Unmarshal(data, target)
}

func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}

	m.lock.Lock()
	m.c.Set(key, data, ttl)
	if len(tags) > 0 {
		m.keyTags[key] = append([]string(nil), tags...)
	} else {
		delete(m.keyTags, key)
	}
	for _, tag := range tags {
		keys, ok := m.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	m.lock.Unlock()
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	m.lock.Lock()
	for _, key := range keys {
		m.c.Delete(key)
		delete(m.keyTags, key)
	}
	m.lock.Unlock()
	return nil
}

// KeyTags returns the tags key was last stored with
func (m *MemoryCache) KeyTags(ctx context.Context, key string) ([]string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if _, found := m.c.Get(key); !found {
		return nil, ErrMiss
	}
	return append([]string(nil), m.keyTags[key]...), nil
}

func (m *MemoryCache) InvalidateTags(ctx context.Context, tags ...string) error {
	m.lock.Lock()
	for _, tag := range tags {
		for key := range m.tags[tag] {
			m.c.Delete(key)
			delete(m.keyTags, key)
		}
		delete(m.tags, tag)
	}
	m.lock.Unlock()
	return nil
}
