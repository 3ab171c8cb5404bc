package handlers

import (
	"strings"
	"sync"
	"time"
)

// rateLimiter gates the public tracking endpoint per client key.
type rateLimiter interface {
	Allow(key string) bool
}

// fixedWindowLimiter allows up to limit requests per key in each window.
// Counters reset when their window elapses; stale keys are swept lazily
// whenever a new window starts, keeping the map bounded by active clients.
type fixedWindowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]*windowCounter
}

type windowCounter struct {
	count     int
	expiresAt time.Time
}

func newFixedWindowLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &fixedWindowLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]*windowCounter),
	}
}

func (l *fixedWindowLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	if key = strings.TrimSpace(key); key == "" {
		key = "anonymous"
	}

	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	counter, ok := l.windows[key]
	if !ok || !now.Before(counter.expiresAt) {
		l.sweep(now)
		l.windows[key] = &windowCounter{count: 1, expiresAt: now.Add(l.window)}
		return true
	}
	if counter.count >= l.limit {
		return false
	}
	counter.count++
	return true
}

func (l *fixedWindowLimiter) sweep(now time.Time) {
	for key, counter := range l.windows {
		if !now.Before(counter.expiresAt) {
			delete(l.windows, key)
		}
	}
}
