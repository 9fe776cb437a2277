// Package ratelimit provides an in-memory, per-key token-bucket limiter
// shared by the HTTP middleware and the Discord command router.
//
// Buckets are created on demand and evicted opportunistically once idle for
// longer than the TTL. The limiter is process-local.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTTL   = 10 * time.Minute
	cleanupEvery = 5000
)

// visitor holds a single bucket and the last time it was used.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed is a set of token buckets indexed by an arbitrary string key
// (a user id, a client IP). Safe for concurrent use.
type Keyed struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
	now      func() time.Time
}

// New returns a Keyed limiter refilling rps tokens per second up to burst.
// A burst <= 0 is coerced to 1; rps <= 0 disables limiting.
func New(rps float64, burst int) *Keyed {
	if burst <= 0 {
		burst = 1
	}
	return &Keyed{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		ttl:      defaultTTL,
		now:      time.Now,
	}
}

// Allow reports whether one event for key may happen now.
func (k *Keyed) Allow(key string) bool {
	if k == nil || k.rps <= 0 {
		return true
	}
	return k.limiter(key).Allow()
}

// Len returns the number of live buckets.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.visitors)
}

// limiter returns the bucket for key, creating it if absent. Idle buckets
// are swept every cleanupEvery lookups, before the requested key is touched.
func (k *Keyed) limiter(key string) *rate.Limiter {
	now := k.now()

	k.mu.Lock()
	defer k.mu.Unlock()

	k.lookups++
	if k.lookups >= cleanupEvery {
		for key, v := range k.visitors {
			if now.Sub(v.lastSeen) >= k.ttl {
				delete(k.visitors, key)
			}
		}
		k.lookups = 0
	}

	if v, ok := k.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(k.rps, k.burst)
	k.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}
