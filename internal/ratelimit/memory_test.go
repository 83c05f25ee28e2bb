package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginPolicy() Policy {
	return Policy{MaxAttempts: 5, Window: 15 * time.Minute, Block: 30 * time.Minute}
}

func TestMemoryLimiter_WindowCeiling(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(loginPolicy(), clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := l.Check(ctx, "login:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "attempt %d should be allowed", i+1)
		assert.Equal(t, 4-i, res.Remaining)
	}

	// 6th attempt inside the window crosses the ceiling and blocks.
	res, err := l.Check(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, clock.Now().Add(30*time.Minute), res.ResetAt)
}

func TestMemoryLimiter_WindowExpiryWithoutBlock(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(loginPolicy(), clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := l.Check(ctx, "k")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	// The ceiling was never crossed; after the window elapses the key is fresh.
	clock.Advance(15*time.Minute + time.Second)
	res, err := l.Check(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
}

func TestMemoryLimiter_BlockOutlivesWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(loginPolicy(), clock)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := l.Check(ctx, "k")
		require.NoError(t, err)
	}

	// Window would have reset, but the block is still active.
	clock.Advance(16 * time.Minute)
	res, err := l.Check(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	// Block expired: fresh key.
	clock.Advance(15 * time.Minute)
	res, err = l.Check(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
}

func TestMemoryLimiter_Reset(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(loginPolicy(), clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := l.Check(ctx, "k")
		require.NoError(t, err)
	}
	require.NoError(t, l.Reset(ctx, "k"))

	// The very next attempt is attempt #1 again.
	res, err := l.Check(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(loginPolicy(), clock)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := l.Check(ctx, "login:1.1.1.1")
		require.NoError(t, err)
	}
	res, err := l.Check(ctx, "login:2.2.2.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryLimiter_ConcurrentCeiling(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(Policy{MaxAttempts: 5, Window: time.Minute, Block: time.Minute}, clock)
	ctx := context.Background()

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Check(ctx, "k")
			if err == nil && res.Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	// The check-then-increment is atomic per key: exactly N get through.
	assert.Equal(t, int64(5), allowed)
}

func TestMemoryLimiter_SweepRemovesStaleEntries(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(loginPolicy(), clock)
	ctx := context.Background()

	_, err := l.Check(ctx, "stale")
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err = l.Check(ctx, "blocked")
		require.NoError(t, err)
	}
	require.Equal(t, 2, l.Len())

	// Window gone, block still running: only the unblocked key is reaped.
	clock.Advance(16 * time.Minute)
	l.Sweep()
	assert.Equal(t, 1, l.Len())

	clock.Advance(15 * time.Minute)
	l.Sweep()
	assert.Equal(t, 0, l.Len())
}

func TestMemoryLimiter_SweepDoesNotAffectCorrectness(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(loginPolicy(), clock)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := l.Check(ctx, "k")
		require.NoError(t, err)
	}
	l.Sweep() // entry is live, must survive

	res, err := l.Check(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}
