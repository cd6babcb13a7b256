package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamidbarzin/cryptobarzin/internal/clock"
)

func newTestCache(ttl time.Duration) (*Manager, *clock.Fake) {
	clk := clock.NewFake(time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC))
	return New("test", ttl, WithClock(clk)), clk
}

func TestSetGet(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("price_BTC/USDT", 82000.0, time.Minute)

	v, ok := c.Get("price_BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, 82000.0, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestExpiryEvictsOnGet(t *testing.T) {
	c, clk := newTestCache(time.Minute)
	c.Set("k", "v", 10*time.Second)

	clk.Advance(9 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clk.Advance(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry should be evicted")
}

func TestNonPositiveTTLIsImmediatelyExpired(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("zero", 1, 0)
	c.Set("negative", 2, -time.Second)

	_, ok := c.Get("zero")
	assert.False(t, ok)
	_, ok = c.Get("negative")
	assert.False(t, ok)
}

func TestOverwriteReplacesValueAndExpiry(t *testing.T) {
	c, clk := newTestCache(time.Minute)
	c.Set("k", "old", 5*time.Second)
	clk.Advance(4 * time.Second)
	c.Set("k", "new", 10*time.Second)
	clk.Advance(5 * time.Second)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.SetDefault("a", 1)
	c.SetDefault("b", 2)

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCleanup(t *testing.T) {
	c, clk := newTestCache(time.Minute)
	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)
	clk.Advance(2 * time.Second)

	assert.Equal(t, 1, c.Cleanup())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, c.Cleanup())
}

func TestGetSetMultiple(t *testing.T) {
	c, clk := newTestCache(30 * time.Second)
	c.SetMultiple(map[string]any{"a": 1, "b": 2}, 0)
	c.Set("c", 3, time.Second)
	clk.Advance(2 * time.Second)

	got := c.GetMultiple([]string{"a", "b", "c", "d"})
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, got)

	clk.Advance(29 * time.Second)
	assert.Empty(t, c.GetMultiple([]string{"a", "b"}), "ttl 0 should use the default")
}

func TestStats(t *testing.T) {
	c, clk := newTestCache(time.Minute)
	c.Set("a", 1, 10*time.Second)
	c.Set("b", 2, 30*time.Second)
	c.Set("c", 3, time.Second)
	clk.Advance(2 * time.Second)

	s := c.Stats()
	assert.Equal(t, "test", s.Name)
	assert.Equal(t, 3, s.TotalItems)
	assert.Equal(t, 2, s.ValidItems)
	assert.Equal(t, 1, s.ExpiredItems)
	assert.Equal(t, 18*time.Second, s.AvgRemainingTTL)
}

func TestGetAs(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.SetDefault("n", 42.5)

	f, ok := GetAs[float64](c, "n")
	require.True(t, ok)
	assert.Equal(t, 42.5, f)

	_, ok = GetAs[string](c, "n")
	assert.False(t, ok)
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, RedisOptions{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d_%d", i, j)
				c.Set(key, j, time.Minute)
				v, ok := c.Get(key)
				assert.True(t, ok)
				assert.Equal(t, j, v)
				_ = c.GetMultiple([]string{key, "missing"})
				_ = c.Stats()
				_ = c.Cleanup()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 800, c.Len())
	assert.Equal(t, 800, c.Stats().ValidItems)
}
