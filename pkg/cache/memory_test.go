package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMemory(t *testing.T, opts ...MemoryOption) (*MemoryCache, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	opts = append([]MemoryOption{WithClock(clk.Now), WithMemoryCleanup(0)}, opts...)
	mc := NewMemoryCache(opts...)
	t.Cleanup(func() { _ = mc.Close() })
	return mc, clk
}

type payload struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestMemory(t)

	require.NoError(t, mc.Set(ctx, "p:AAPL", payload{Symbol: "AAPL", Price: 190.5}, time.Minute))

	var got payload
	require.NoError(t, mc.Get(ctx, "p:AAPL", &got))
	assert.Equal(t, payload{Symbol: "AAPL", Price: 190.5}, got)

	var missing payload
	assert.ErrorIs(t, mc.Get(ctx, "p:MSFT", &missing), ErrCacheMiss)
}

func TestMemoryCacheExpiresWithClock(t *testing.T) {
	ctx := context.Background()
	mc, clk := newTestMemory(t)

	require.NoError(t, mc.Set(ctx, "short", 1, 30*time.Second))
	require.NoError(t, mc.Set(ctx, "forever", 2, 0))

	clk.Advance(29 * time.Second)
	var v int
	require.NoError(t, mc.Get(ctx, "short", &v))
	assert.Equal(t, 1, v)

	clk.Advance(time.Second)
	assert.ErrorIs(t, mc.Get(ctx, "short", &v), ErrCacheMiss)

	clk.Advance(24 * time.Hour)
	require.NoError(t, mc.Get(ctx, "forever", &v))
	assert.Equal(t, 2, v)
}

func TestMemoryCacheSweep(t *testing.T) {
	ctx := context.Background()
	mc, clk := newTestMemory(t)

	require.NoError(t, mc.Set(ctx, "a", "x", time.Second))
	require.NoError(t, mc.Set(ctx, "b", "y", time.Hour))
	clk.Advance(time.Minute)
	mc.Sweep()
	assert.Equal(t, 1, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestMemory(t, WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	require.NoError(t, mc.Set(ctx, "b", 2, 0))

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &v))
	assert.NoError(t, mc.Get(ctx, "c", &v))
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCacheDeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestMemory(t)

	require.NoError(t, mc.Set(ctx, "predictions:list:a", 1, 0))
	require.NoError(t, mc.Set(ctx, "predictions:AAPL", 2, 0))
	require.NoError(t, mc.Set(ctx, "other", 3, 0))

	require.NoError(t, mc.DeleteByPrefix(ctx, "predictions:"))
	assert.Equal(t, 1, mc.Len())
}

func TestLayeredCachePromotesFromSecondTier(t *testing.T) {
	ctx := context.Background()
	l1, clk := newTestMemory(t)
	l2, _ := newTestMemory(t)
	lc := NewLayeredCache(l1, l2, 10*time.Second)

	require.NoError(t, l2.Set(ctx, "k", payload{Symbol: "NVDA", Price: 1}, time.Hour))

	var got payload
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "NVDA", got.Symbol)
	assert.Equal(t, 1, l1.Len())

	clk.Advance(11 * time.Second)
	var again payload
	assert.ErrorIs(t, l1.Get(ctx, "k", &again), ErrCacheMiss)
	require.NoError(t, lc.Get(ctx, "k", &again))
	assert.Equal(t, got, again)
}

func TestGetOrLoadCallsLoaderOnce(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestMemory(t)

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"Energy", "Technology"}, nil
	}

	first, err := GetOrLoad(ctx, mc, "sectors", time.Minute, load)
	require.NoError(t, err)
	second, err := GetOrLoad(ctx, mc, "sectors", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	boom := errors.New("db down")
	_, err = GetOrLoad(ctx, mc, "stats", time.Minute, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}
