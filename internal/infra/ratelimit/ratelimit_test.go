package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chloe-bot/internal/domain"
)

func TestAcquireRelease(t *testing.T) {
	l := New(WithMaxConcurrent(2), WithMinInterval(time.Millisecond))
	release, err := l.Acquire(context.Background(), "chan-1")
	require.NoError(t, err)
	release()
}

func TestReleaseIdempotent(t *testing.T) {
	l := New(WithMaxConcurrent(1), WithMinInterval(time.Millisecond))
	release, err := l.Acquire(context.Background(), "chan-1")
	require.NoError(t, err)
	release()
	release() // second call must not free a slot twice

	// Slot count intact: exactly one acquire succeeds at a time.
	r2, err := l.Acquire(context.Background(), "chan-2")
	require.NoError(t, err)
	defer r2()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "chan-3")
	assert.ErrorIs(t, err, domain.ErrLimiterTimeout)
}

func TestConcurrencyCap(t *testing.T) {
	const cap = 3
	l := New(WithMaxConcurrent(cap), WithMinInterval(time.Nanosecond))

	var inFlight, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "shared")
			if err != nil {
				t.Error(err)
				return
			}
			cur := atomic.AddInt64(&inFlight, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if cur <= p || atomic.CompareAndSwapInt64(&peak, p, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			release()
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(cap))
}

func TestPerKeyPacing(t *testing.T) {
	l := New(WithMaxConcurrent(5), WithMinInterval(50*time.Millisecond))

	start := time.Now()
	for i := 0; i < 3; i++ {
		release, err := l.Acquire(context.Background(), "same-key")
		require.NoError(t, err)
		release()
	}
	// Third acquire on the same key waits at least two intervals.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestDistinctKeysNotPaced(t *testing.T) {
	l := New(WithMaxConcurrent(5), WithMinInterval(200*time.Millisecond))

	start := time.Now()
	for _, key := range []string{"a", "b", "c"} {
		release, err := l.Acquire(context.Background(), key)
		require.NoError(t, err)
		release()
	}
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestAcquireTimeoutWhileWaitingForSlot(t *testing.T) {
	l := New(WithMaxConcurrent(1), WithMinInterval(time.Millisecond))
	release, err := l.Acquire(context.Background(), "hold")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "blocked")
	assert.ErrorIs(t, err, domain.ErrLimiterTimeout)
	assert.False(t, errors.Is(err, domain.ErrRateLimited))
}

func TestAcquireTimeoutDuringPacing(t *testing.T) {
	l := New(WithMaxConcurrent(2), WithMinInterval(500*time.Millisecond))
	release, err := l.Acquire(context.Background(), "key")
	require.NoError(t, err)
	release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "key")
	require.ErrorIs(t, err, domain.ErrLimiterTimeout)

	// The slot taken for the failed pacing wait must have been returned.
	r2, err := l.Acquire(context.Background(), "other")
	require.NoError(t, err)
	r2()
	r3, err := l.Acquire(context.Background(), "another")
	require.NoError(t, err)
	r3()
}
