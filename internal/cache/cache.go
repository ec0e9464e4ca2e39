// Package cache implements the size-bounded, TTL-bounded content cache
// that guards file-system reads on the static responder's hot path.
//
// It is grounded on github.com/javi11/altmount's
// internal/fuse/cache/lru_cache.go, which wraps
// github.com/hashicorp/golang-lru/v2 with a TTL check performed outside
// the library. That cache bounds by item count; this one bounds by total
// byte size, so eviction here is driven manually (RemoveOldest in a loop)
// rather than by the library's fixed-capacity constructor — the library
// still supplies the recency-ordered map, O(1) promote-on-get, and the
// eviction callback used for byte-total bookkeeping.
package cache

import (
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hyperreactor/reactord/internal/rlog"
)

// Entry is one cached file body. Bytes is immutable once inserted.
type Entry struct {
	Bytes       []byte
	ContentType string
	CreatedAt   time.Time
	LastAccess  time.Time
	AccessCount uint64
}

// Stats are the observable cache counters exposed via /api/status.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Entries     int
	MemoryUsage int64
	HitRatioPct float64
}

// Cache is a concurrent, size-bounded, TTL-bounded key->bytes cache.
type Cache struct {
	logger *rlog.Logger

	mu             sync.Mutex
	index          *lru.Cache[string, *Entry]
	maxSizeBytes   int64
	ttl            time.Duration
	currentBytes   int64
	hits           uint64
	misses         uint64
	loggedOversize bool
}

// New creates a cache bounded by maxSizeBytes. ttl <= 0 disables expiry.
func New(maxSizeBytes int64, ttl time.Duration, logger *rlog.Logger) *Cache {
	if logger == nil {
		logger = rlog.Default()
	}
	c := &Cache{
		logger:       logger,
		maxSizeBytes: maxSizeBytes,
		ttl:          ttl,
	}

	// Capacity is effectively unbounded; actual eviction is byte-size
	// driven and happens explicitly in Put, not via the library's
	// count-based auto-eviction.
	idx, err := lru.NewWithEvict[string, *Entry](math.MaxInt32, c.onEvicted)
	if err != nil {
		// Only fails for size <= 0, which math.MaxInt32 never is.
		panic(err)
	}
	c.index = idx
	return c
}

func (c *Cache) onEvicted(key string, entry *Entry) {
	c.currentBytes -= int64(len(entry.Bytes))
}

// Get returns the cached entry for key if present and unexpired. An
// expired entry is evicted atomically with the reported miss.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.CreatedAt) >= c.ttl {
		c.index.Remove(key)
		c.misses++
		return nil, false
	}

	entry.LastAccess = time.Now()
	entry.AccessCount++
	c.hits++
	return entry, true
}

// Put inserts or overwrites key. Empty keys and empty bodies are no-ops.
// A body larger than the cache's total budget is skipped (logged once).
// Otherwise LRU entries are evicted until the new entry fits.
func (c *Cache) Put(key string, data []byte, contentType string) {
	if key == "" || len(data) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(data))
	if size > c.maxSizeBytes {
		if !c.loggedOversize {
			c.logger.Warnf("cache: entry %q (%d bytes) exceeds max_size_bytes=%d, will not be cached", key, size, c.maxSizeBytes)
			c.loggedOversize = true
		}
		return
	}

	if _, ok := c.index.Peek(key); ok {
		c.index.Remove(key) // onEvicted subtracts the old size
	}

	for c.currentBytes+size > c.maxSizeBytes {
		if _, _, ok := c.index.RemoveOldest(); !ok {
			break
		}
	}

	entry := &Entry{
		Bytes:       data,
		ContentType: contentType,
		CreatedAt:   time.Now(),
		LastAccess:  time.Now(),
	}
	c.index.Add(key, entry)
	c.currentBytes += size
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ratio float64
	if total := c.hits + c.misses; total > 0 {
		ratio = float64(c.hits) / float64(total) * 100
	}

	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Entries:     c.index.Len(),
		MemoryUsage: c.currentBytes,
		HitRatioPct: ratio,
	}
}
