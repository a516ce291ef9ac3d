package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(10)

	require.True(t, limiter.Allow())
	assert.Equal(t, int64(1), limiter.Current())

	limiter.Release()
	assert.Equal(t, int64(0), limiter.Current())
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := NewLimiter(100)
	var wg sync.WaitGroup
	var mu sync.Mutex
	peak := int64(0)

	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow() {
				mu.Lock()
				if c := limiter.Current(); c > peak {
					peak = c
				}
				mu.Unlock()
				limiter.Release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), limiter.Current(), "all slots released")
	assert.LessOrEqual(t, peak, int64(100))
}

func TestLimiter_MaxConnections(t *testing.T) {
	limiter := NewLimiter(5)
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(), "connection %d", i)
	}
	assert.False(t, limiter.Allow(), "at max")

	limiter.SetMax(6)
	assert.True(t, limiter.Allow())
	assert.Equal(t, int64(6), limiter.Max())
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0)
	for i := 0; i < 1000; i++ {
		require.True(t, limiter.Allow())
	}
}

func TestIPLimiter_ConcurrentCap(t *testing.T) {
	l := NewIPLimiter(2, 0)

	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"), "limits are per IP")

	l.Release("1.1.1.1")
	assert.True(t, l.Allow("1.1.1.1"))

	conns, _ := l.GetStats("1.1.1.1")
	assert.Equal(t, 2, conns)
}

func TestIPLimiter_Rate(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPLimiter(0, 3)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("1.1.1.1"))
		l.Release("1.1.1.1")
	}
	assert.False(t, l.Allow("1.1.1.1"), "burst exhausted")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("1.1.1.1"), "tokens refill")
}

func TestIPLimiter_Cleanup(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPLimiter(1, 0)
	l.now = func() time.Time { return now }
	l.lastCleanup = now

	require.True(t, l.Allow("1.1.1.1"))
	l.Release("1.1.1.1")
	require.True(t, l.Allow("2.2.2.2"))

	now = now.Add(idleEntryTTL + time.Second)
	require.True(t, l.Allow("3.3.3.3"))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.entries, "1.1.1.1")
	assert.Contains(t, l.entries, "2.2.2.2", "entries with live connections stay")
}
