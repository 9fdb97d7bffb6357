package ratelimit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterWaitSpacesCalls(t *testing.T) {
	t.Parallel()

	var delays atomic.Int32
	l := New(Config{
		MinInterval: 100 * time.Millisecond,
		OnDelay:     func(string, time.Duration) { delays.Add(1) },
	})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "srrdb"))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "first call uses the burst token")

	start = time.Now()
	require.NoError(t, l.Wait(ctx, "srrdb"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.EqualValues(t, 1, delays.Load())

	// Another channel has its own bucket.
	start = time.Now()
	require.NoError(t, l.Wait(ctx, "coc"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterContextCanceled(t *testing.T) {
	t.Parallel()

	l := New(Config{MinInterval: time.Hour})
	require.NoError(t, l.Wait(context.Background(), "cr"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, l.Wait(ctx, "cr"))
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for range 5 {
		require.NoError(t, l.Wait(context.Background(), "any"))
	}
	var nilLimiter *Limiter
	require.NoError(t, nilLimiter.Wait(context.Background(), "any"))
	assert.Zero(t, l.Interval())
}
