package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
	lastUsed uint64
}

// MemoryCache implements Service in process with TTL expiry and LRU eviction.
type MemoryCache struct {
	mu      sync.Mutex
	data    map[string]*memoryItem
	maxSize int
	now     Clock
	tick    uint64
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &memoryConfig{maxSize: 1000, cleanup: 5 * time.Minute, clock: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	mc := &MemoryCache{
		data:    make(map[string]*memoryItem),
		maxSize: max(cfg.maxSize, 1),
		now:     cfg.clock,
		stop:    make(chan struct{}),
	}
	if cfg.cleanup > 0 {
		go mc.cleanupLoop(cfg.cleanup)
	}
	return mc
}

// Set stores value until expiration elapses; expiration <= 0 never expires.
func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, exists := mc.data[key]; !exists && len(mc.data) >= mc.maxSize {
		mc.evictLRU()
	}
	var expireAt time.Time
	if expiration > 0 {
		expireAt = mc.now().Add(expiration)
	}
	mc.tick++
	mc.data[key] = &memoryItem{data: data, expireAt: expireAt, lastUsed: mc.tick}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	item, ok := mc.data[key]
	if ok && mc.expired(item) {
		delete(mc.data, key)
		ok = false
	}
	if !ok {
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	mc.tick++
	item.lastUsed = mc.tick
	data := item.data
	mc.mu.Unlock()

	return json.Unmarshal(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.data, key)
	}
	return nil
}

func (mc *MemoryCache) DeleteByPrefix(_ context.Context, prefix string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for key := range mc.data {
		if strings.HasPrefix(key, prefix) {
			delete(mc.data, key)
		}
	}
	return nil
}

// Len reports live and not yet swept entries.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.data)
}

// Sweep drops expired entries now.
func (mc *MemoryCache) Sweep() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for key, item := range mc.data {
		if mc.expired(item) {
			delete(mc.data, key)
		}
	}
}

// Close stops the background sweep.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() { close(mc.stop) })
	return nil
}

func (mc *MemoryCache) expired(item *memoryItem) bool {
	return !item.expireAt.IsZero() && !mc.now().Before(item.expireAt)
}

func (mc *MemoryCache) evictLRU() {
	var oldestKey string
	var oldest uint64
	for key, item := range mc.data {
		if oldestKey == "" || item.lastUsed < oldest {
			oldestKey, oldest = key, item.lastUsed
		}
	}
	if oldestKey != "" {
		delete(mc.data, oldestKey)
	}
}

func (mc *MemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mc.Sweep()
		case <-mc.stop:
			return
		}
	}
}
