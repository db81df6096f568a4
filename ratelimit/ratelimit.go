// Package ratelimit implements the fixed-window request limiter applied to
// the database API. Each caller gets a fresh allowance at the start of
// every window; counters of past windows are swept in the background.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter counts requests per caller in fixed time windows.
type Limiter struct {
	mutex    sync.Mutex
	counters map[string]*counter
	limit    int
	window   time.Duration
	cancel   context.CancelFunc
}

type counter struct {
	windowStart time.Time
	count       int
}

// New creates a limiter allowing limit requests per window. The standard
// configuration is 60 requests per minute.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		panic("ratelimit: limit must be positive")
	}
	if window <= 0 {
		panic("ratelimit: window must be positive")
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Limiter{
		counters: map[string]*counter{},
		limit:    limit,
		window:   window,
		cancel:   cancel,
	}
	go l.sweep(ctx)
	return l
}

// Allow records one request for key and reports whether it is within the
// limit. It also returns how many requests remain in the current window.
func (l *Limiter) Allow(key string) (bool, int) {
	now := time.Now()

	l.mutex.Lock()
	defer l.mutex.Unlock()

	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowStart) >= l.window {
		c = &counter{windowStart: now}
		l.counters[key] = c
	}
	if c.count >= l.limit {
		return false, 0
	}
	c.count++
	return true, l.limit - c.count
}

// Close stops the background sweeper.
func (l *Limiter) Close() {
	l.cancel()
}

func (l *Limiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			l.mutex.Lock()
			for key, c := range l.counters {
				if now.Sub(c.windowStart) >= l.window {
					delete(l.counters, key)
				}
			}
			l.mutex.Unlock()
		}
	}
}
