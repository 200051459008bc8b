// Package ratelimit bounds outbound LLM traffic: a global cap on concurrent
// requests plus a minimum interval between requests sharing a key.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"chloe-bot/internal/domain"
)

const (
	DefaultMaxConcurrent = 5
	DefaultMinInterval   = 200 * time.Millisecond
)

// Limiter serializes access to the LLM providers. Acquire blocks until a
// concurrency slot is free and the per-key pacing interval has elapsed.
type Limiter struct {
	sem         *semaphore.Weighted
	minInterval time.Duration

	mu   sync.Mutex
	keys map[string]*rate.Limiter
}

// Option configures a Limiter.
type Option func(*options)

type options struct {
	maxConcurrent int64
	minInterval   time.Duration
}

// WithMaxConcurrent sets the global in-flight request cap.
func WithMaxConcurrent(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithMinInterval sets the minimum spacing between requests for one key.
func WithMinInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.minInterval = d
		}
	}
}

// New creates a Limiter with the given options.
func New(opts ...Option) *Limiter {
	o := options{
		maxConcurrent: DefaultMaxConcurrent,
		minInterval:   DefaultMinInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Limiter{
		sem:         semaphore.NewWeighted(o.maxConcurrent),
		minInterval: o.minInterval,
		keys:        make(map[string]*rate.Limiter),
	}
}

// Acquire blocks until a slot is available and key pacing allows another
// request, then returns a release func. The release func is idempotent.
// Context expiry maps to domain.ErrLimiterTimeout so callers can tell a
// local wait timeout apart from a provider-side 429.
func (l *Limiter) Acquire(ctx context.Context, key string) (func(), error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, domain.NewDomainError("Limiter.Acquire", domain.ErrLimiterTimeout, "waiting for slot: "+key)
	}
	if err := l.keyLimiter(key).Wait(ctx); err != nil {
		l.sem.Release(1)
		return nil, domain.NewDomainError("Limiter.Acquire", domain.ErrLimiterTimeout, "pacing key: "+key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.sem.Release(1) })
	}, nil
}

func (l *Limiter) keyLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.keys[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.minInterval), 1)
		l.keys[key] = lim
	}
	return lim
}
