package security

import (
	"container/list"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter keyed by client IP.
// Entries are bounded: when maxKeys is exceeded the least recently seen
// key is evicted, so memory stays bounded under adversarial traffic with
// unique keys. Injected as a dependency rather than held as a global.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*list.Element
	order    *list.List // front = most recently seen
	rate     int
	window   time.Duration
	maxKeys  int
	now      func() time.Time
}

type visitor struct {
	key        string
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter.
// rate: requests allowed per window; maxKeys: cap on tracked client keys.
func NewRateLimiter(rate int, window time.Duration, maxKeys int) *RateLimiter {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &RateLimiter{
		visitors: make(map[string]*list.Element),
		order:    list.New(),
		rate:     rate,
		window:   window,
		maxKeys:  maxKeys,
		now:      time.Now,
	}
}

// Allow checks if a request from the given key should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	elem, exists := rl.visitors[key]
	if !exists {
		rl.evictLocked(now)
		v := &visitor{key: key, tokens: rl.rate, lastRefill: now}
		rl.visitors[key] = rl.order.PushFront(v)
		elem = rl.visitors[key]
	} else {
		rl.order.MoveToFront(elem)
	}

	v := elem.Value.(*visitor)

	// Refill tokens based on time passed
	if now.Sub(v.lastRefill) >= rl.window {
		v.tokens = rl.rate
		v.lastRefill = now
	}

	if v.tokens > 0 {
		v.tokens--
		return true
	}

	return false
}

// Len returns the number of tracked keys
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// evictLocked drops stale entries, then the oldest entry if still at capacity
func (rl *RateLimiter) evictLocked(now time.Time) {
	for elem := rl.order.Back(); elem != nil && len(rl.visitors) >= rl.maxKeys; {
		prev := elem.Prev()
		v := elem.Value.(*visitor)
		if now.Sub(v.lastRefill) > rl.window*2 || len(rl.visitors) >= rl.maxKeys {
			rl.order.Remove(elem)
			delete(rl.visitors, v.key)
		}
		elem = prev
	}
}
