// Package cache provides a two-level response cache for LLM completions.
//
// Level 1 is an in-process LRU, level 2 an optional Redis backend shared
// across instances. A level-2 hit backfills level 1.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/llm"
)

const keyPrefix = "meshflow:llm:"

// Key derives a cache key from the model and message sequence.
func Key(model string, messages []llm.Message) string {
	h := sha256.New()
	h.Write([]byte(model))
	for _, m := range messages {
		h.Write([]byte{0})
		h.Write([]byte(m.Role))
		h.Write([]byte{0})
		h.Write([]byte(m.Content))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Stats counts cache outcomes since process start.
type Stats struct {
	L1Hits    uint64 `json:"l1_hits"`
	L2Hits    uint64 `json:"l2_hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

type lruEntry struct {
	key       string
	value     *llm.ChatResponse
	expiresAt time.Time
	prev      *lruEntry
	next      *lruEntry
}

// ResponseCache is the two-level completion cache.
type ResponseCache struct {
	mu       sync.Mutex
	entries  map[string]*lruEntry
	head     *lruEntry
	tail     *lruEntry
	capacity int
	localTTL time.Duration
	redisTTL time.Duration

	rdb    redis.UniversalClient
	logger *zap.Logger
	stats  Stats
}

// Options configures a ResponseCache.
type Options struct {
	// Capacity bounds the in-process level. Defaults to 1000 entries.
	Capacity int

	// LocalTTL bounds in-process entry lifetime. Defaults to 5m.
	LocalTTL time.Duration

	// RedisTTL bounds shared entry lifetime. Defaults to 1h.
	RedisTTL time.Duration

	// Redis enables the shared level when non-nil.
	Redis redis.UniversalClient

	Logger *zap.Logger
}

// New creates a ResponseCache.
func New(opts Options) *ResponseCache {
	if opts.Capacity <= 0 {
		opts.Capacity = 1000
	}
	if opts.LocalTTL <= 0 {
		opts.LocalTTL = 5 * time.Minute
	}
	if opts.RedisTTL <= 0 {
		opts.RedisTTL = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &ResponseCache{
		entries:  make(map[string]*lruEntry),
		capacity: opts.Capacity,
		localTTL: opts.LocalTTL,
		redisTTL: opts.RedisTTL,
		rdb:      opts.Redis,
		logger:   opts.Logger.With(zap.String("component", "llm.cache")),
	}
}

// Get looks up a cached completion.
func (c *ResponseCache) Get(ctx context.Context, key string) (*llm.ChatResponse, bool) {
	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		if time.Now().Before(entry.expiresAt) {
			c.moveToFront(entry)
			c.stats.L1Hits++
			resp := entry.value
			c.mu.Unlock()
			return resp, true
		}
		c.remove(entry)
	}
	c.mu.Unlock()

	if c.rdb == nil {
		c.miss()
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis lookup failed", zap.Error(err))
		}
		c.miss()
		return nil, false
	}

	var resp llm.ChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.Warn("corrupt cache entry", zap.String("key", key), zap.Error(err))
		c.miss()
		return nil, false
	}

	c.mu.Lock()
	c.stats.L2Hits++
	c.insert(key, &resp)
	c.mu.Unlock()
	return &resp, true
}

// Set stores a completion on both levels.
func (c *ResponseCache) Set(ctx context.Context, key string, resp *llm.ChatResponse) {
	c.mu.Lock()
	c.insert(key, resp)
	c.mu.Unlock()

	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("failed to marshal response for cache", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, raw, c.redisTTL).Err(); err != nil {
		c.logger.Warn("redis store failed", zap.Error(err))
	}
}

// Stats returns a snapshot of the hit counters.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Len reports the number of in-process entries.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResponseCache) miss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
}

// insert adds or refreshes an entry. Caller holds the lock.
func (c *ResponseCache) insert(key string, resp *llm.ChatResponse) {
	if existing, ok := c.entries[key]; ok {
		existing.value = resp
		existing.expiresAt = time.Now().Add(c.localTTL)
		c.moveToFront(existing)
		return
	}

	entry := &lruEntry{
		key:       key,
		value:     resp,
		expiresAt: time.Now().Add(c.localTTL),
	}
	c.entries[key] = entry
	c.pushFront(entry)

	for len(c.entries) > c.capacity {
		c.remove(c.tail)
		c.stats.Evictions++
	}
}

func (c *ResponseCache) pushFront(entry *lruEntry) {
	entry.prev = nil
	entry.next = c.head
	if c.head != nil {
		c.head.prev = entry
	}
	c.head = entry
	if c.tail == nil {
		c.tail = entry
	}
}

func (c *ResponseCache) moveToFront(entry *lruEntry) {
	if c.head == entry {
		return
	}
	c.unlink(entry)
	c.pushFront(entry)
}

func (c *ResponseCache) remove(entry *lruEntry) {
	if entry == nil {
		return
	}
	c.unlink(entry)
	delete(c.entries, entry.key)
}

func (c *ResponseCache) unlink(entry *lruEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		c.head = entry.next
	}
	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		c.tail = entry.prev
	}
	entry.prev = nil
	entry.next = nil
}
