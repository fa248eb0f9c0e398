package ratelimit

import (
	"context"
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

func TestMemoryBlocksAfterMaxFailures(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	limiter := NewMemory(Policy{MaxAttempts: 3, Window: time.Minute}).WithClock(clock.Now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Allow(ctx, "10.0.0.1|admin"))
		limiter.Record(ctx, "10.0.0.1|admin", false)
	}
	assert.False(t, limiter.Allow(ctx, "10.0.0.1|admin"))
	assert.True(t, limiter.Allow(ctx, "10.0.0.2|admin"))

	clock.Advance(61 * time.Second)
	assert.True(t, limiter.Allow(ctx, "10.0.0.1|admin"))
}

func TestMemorySuccessClearsFailures(t *testing.T) {
	limiter := NewMemory(Policy{MaxAttempts: 2, Window: time.Hour})
	ctx := context.Background()

	limiter.Record(ctx, "k", false)
	limiter.Record(ctx, "k", true)
	limiter.Record(ctx, "k", false)
	assert.True(t, limiter.Allow(ctx, "k"))
}

func TestMemorySweepDropsStaleKeys(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	limiter := NewMemory(Policy{MaxAttempts: 5, Window: time.Minute}).WithClock(clock.Now)
	ctx := context.Background()

	limiter.Record(ctx, "old", false)
	clock.Advance(45 * time.Second)
	limiter.Record(ctx, "fresh", false)
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, limiter.Sweep())
	assert.Equal(t, 1, limiter.Len())
}

func TestMemoryConcurrentRecord(t *testing.T) {
	limiter := NewMemory(Policy{MaxAttempts: 1000, Window: time.Hour})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Record(ctx, "shared", false)
			limiter.Allow(ctx, "shared")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, limiter.Len())
}
