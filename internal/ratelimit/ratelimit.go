// Package ratelimit implements a per-client token-bucket limiter, keyed on
// the IP portion of the peer address so one client sharded across
// ephemeral ports still shares a bucket.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

const (
	cleanupInterval = 300 * time.Second
	bucketExpiry    = 3600 * time.Second
)

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter is a concurrent token-bucket rate limiter.
type Limiter struct {
	rate    float64
	burst   float64
	enabled bool

	mu      sync.Mutex
	buckets map[string]*bucket
	lastGC  time.Time

	totalRequests   uint64
	blockedRequests uint64
}

// New creates a limiter. rate is tokens/sec, burst is bucket capacity.
func New(rate, burst float64, enabled bool) *Limiter {
	return &Limiter{
		rate:    rate,
		burst:   burst,
		enabled: enabled,
		buckets: make(map[string]*bucket),
		lastGC:  time.Now(),
	}
}

// ClientKey extracts the IP portion of a peer address ("host:port"),
// collapsing different ephemeral ports from the same client onto one key.
func ClientKey(remoteAddr string) string {
	if idx := strings.LastIndexByte(remoteAddr, ':'); idx >= 0 {
		return remoteAddr[:idx]
	}
	return remoteAddr
}

// Check reports whether a request from client is allowed right now,
// consuming one token if so. Disabled limiters always allow and never
// mutate state.
func (l *Limiter) Check(client string) bool {
	if !l.enabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.totalRequests++
	l.maybeCleanupLocked(now)

	b, ok := l.buckets[client]
	if !ok {
		b = &bucket{tokens: l.burst, lastRefill: now}
		l.buckets[client] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = min(l.burst, b.tokens+elapsed*l.rate)
		b.lastRefill = now
	}

	if b.tokens >= 1.0 {
		b.tokens--
		return true
	}

	l.blockedRequests++
	return false
}

// maybeCleanupLocked drops buckets idle longer than bucketExpiry. Runs
// lazily from inside Check so the limiter needs no dedicated goroutine.
func (l *Limiter) maybeCleanupLocked(now time.Time) {
	if now.Sub(l.lastGC) < cleanupInterval {
		return
	}
	l.lastGC = now
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) > bucketExpiry {
			delete(l.buckets, key)
		}
	}
}

// Stats are the observable limiter counters.
type Stats struct {
	TotalRequests   uint64
	BlockedRequests uint64
	ActiveClients   int
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		TotalRequests:   l.totalRequests,
		BlockedRequests: l.blockedRequests,
		ActiveClients:   len(l.buckets),
	}
}
