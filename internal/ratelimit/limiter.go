// Package ratelimit spaces out dispatches per notification channel.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter manages one token bucket per channel.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
	onDelay  func(channel string, d time.Duration)
}

// Config holds rate limiter configuration.
type Config struct {
	// MinInterval is the minimum spacing between two dispatches on the same
	// channel. Zero disables limiting.
	MinInterval time.Duration
	// OnDelay, if set, observes waits longer than a millisecond.
	OnDelay func(channel string, d time.Duration)
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		interval: cfg.MinInterval,
		onDelay:  cfg.OnDelay,
	}
}

// Interval reports the configured spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until channel may dispatch again, respecting ctx.
func (l *Limiter) Wait(ctx context.Context, channel string) error {
	if l == nil || l.interval <= 0 {
		return nil
	}
	l.mu.Lock()
	limiter, exists := l.limiters[channel]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[channel] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond && l.onDelay != nil {
		l.onDelay(channel, d)
	}
	return nil
}
