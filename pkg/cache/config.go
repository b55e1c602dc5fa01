package cache

import "time"

// RedisConfig is the connection half of the redis settings; key prefixes are chosen per use.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	PoolTimeout  time.Duration
	DialTimeout  time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.PoolTimeout <= 0 {
		c.PoolTimeout = 30 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	return c
}

// MemoryOption configures MemoryCache.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	maxSize int
	cleanup time.Duration
	clock   Clock
}

// WithMemoryMaxSize caps the entry count; the least recently used entry is evicted first.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *memoryConfig) { c.maxSize = size }
}

// WithMemoryCleanup sets the sweep interval. Zero disables the background sweep.
func WithMemoryCleanup(interval time.Duration) MemoryOption {
	return func(c *memoryConfig) { c.cleanup = interval }
}

// WithClock injects the time source used for expiry.
func WithClock(clock Clock) MemoryOption {
	return func(c *memoryConfig) { c.clock = clock }
}
