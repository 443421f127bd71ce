package cache

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/assetiq/assetiq/internal/core/domain"
)

const (
	DefaultMaxEntries = 512
	DefaultTTL        = 5 * time.Minute
)

type entry struct {
	payload   *domain.AnswerResult
	expiresAt time.Time
}

// ResultCache is a bounded LRU of answered retrieval queries. Expired
// entries are dropped lazily on lookup; eviction order follows recency of
// use, so a frequently read entry outlives colder inserts.
type ResultCache struct {
	entries *lru.Cache[string, entry]
	ttl     time.Duration
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

func NewResultCache(maxEntries int, ttl time.Duration) (*ResultCache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	entries, err := lru.New[string, entry](maxEntries)
	if err != nil {
		return nil, err
	}
	return &ResultCache{entries: entries, ttl: ttl, now: time.Now}, nil
}

func (c *ResultCache) Get(key string) (*domain.AnswerResult, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.entries.Remove(key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.payload, true
}

func (c *ResultCache) Put(key string, payload *domain.AnswerResult) {
	if payload == nil {
		return
	}
	c.entries.Add(key, entry{payload: payload, expiresAt: c.now().Add(c.ttl)})
}

func (c *ResultCache) InvalidateAll() {
	c.entries.Purge()
}

func (c *ResultCache) Len() int { return c.entries.Len() }

// Stats reports lifetime hit and miss counts for the metrics layer.
func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
