// Package ratelimit implements a per-key token-bucket rate limiter.
package ratelimit

import (
	"sync"
	"time"
)

// Config mirrors ratelimit_config_t.
type Config struct {
	RequestsPerSecond float64
	BurstSize         float64
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// Limiter holds one bucket per key. Buckets are created lazily on first
// use with a full burst allowance, matching get_bucket's
// `bucket->tokens = rl->config.burst_size` initialization.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket
	allowed uint64
	denied  uint64
	now     func() time.Time
}

func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *Limiter) getBucket(key string) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.cfg.BurstSize, lastUpdate: l.now()}
		l.buckets[key] = b
	}
	return b
}

// refill applies tokens_per_us = requests_per_second / 1,000,000, capped at
// BurstSize, matching refill_tokens exactly.
func (l *Limiter) refill(b *bucket) {
	now := l.now()
	elapsedUs := float64(now.Sub(b.lastUpdate).Microseconds())
	tokensPerUs := l.cfg.RequestsPerSecond / 1_000_000.0
	b.tokens += elapsedUs * tokensPerUs
	if b.tokens > l.cfg.BurstSize {
		b.tokens = l.cfg.BurstSize
	}
	b.lastUpdate = now
}

// Check reports whether key currently has at least one token, without
// consuming it.
func (l *Limiter) Check(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.getBucket(key)
	l.refill(b)
	return b.tokens >= 1.0
}

// Acquire checks and, if allowed, consumes one token.
func (l *Limiter) Acquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.getBucket(key)
	l.refill(b)
	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		l.allowed++
		return true
	}
	l.denied++
	return false
}

// Remaining returns the current token count for key after refilling.
func (l *Limiter) Remaining(key string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.getBucket(key)
	l.refill(b)
	return b.tokens
}

// Reset restores key's bucket to a full burst allowance.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.getBucket(key)
	b.tokens = l.cfg.BurstSize
	b.lastUpdate = l.now()
}

// Clear drops all bucket state.
func (l *Limiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*bucket)
}

// Stats returns cumulative allow/deny counts.
func (l *Limiter) Stats() (allowed, denied uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowed, l.denied
}
