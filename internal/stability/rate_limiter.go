package stability

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig sizes the token bucket handed to each key.
type RateLimiterConfig struct {
	RequestsPerSec float64
	Burst          int
	// IdleTimeout drops limiters of keys that were not seen for this long.
	IdleTimeout time.Duration
}

type RateLimitStats struct {
	Allowed int64
	Limited int64
	Keys    int
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key, created on first use.
type RateLimiter struct {
	mu       sync.Mutex
	config   RateLimiterConfig
	limiters map[string]*keyedLimiter
	allowed  int64
	limited  int64
	now      func() time.Time
}

// NewRateLimiter creates a per-key token bucket limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 10 * time.Minute
	}
	return &RateLimiter{
		config:   config,
		limiters: make(map[string]*keyedLimiter),
		now:      time.Now,
	}
}

// Allow consumes one token for key and reports whether the call may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	kl, ok := rl.limiters[key]
	if !ok {
		kl = &keyedLimiter{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSec), rl.config.Burst)}
		rl.limiters[key] = kl
	}
	kl.lastSeen = now

	if kl.limiter.AllowN(now, 1) {
		rl.allowed++
		return true
	}
	rl.limited++
	return false
}

// Cleanup removes limiters idle for longer than IdleTimeout.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.config.IdleTimeout)
	removed := 0
	for key, kl := range rl.limiters {
		if kl.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Stats reports request counters and the number of tracked keys.
func (rl *RateLimiter) Stats() RateLimitStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return RateLimitStats{
		Allowed: rl.allowed,
		Limited: rl.limited,
		Keys:    len(rl.limiters),
	}
}
