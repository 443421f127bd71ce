package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/assetiq/assetiq/internal/core/domain"
)

func payload(mode domain.Mode) *domain.AnswerResult {
	return &domain.AnswerResult{Mode: mode}
}

func TestResultCacheRoundTrip(t *testing.T) {
	c, err := NewResultCache(4, time.Minute)
	if err != nil {
		t.Fatalf("NewResultCache() error = %v", err)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("unexpected hit on empty cache")
	}

	c.Put("k1", payload(domain.ModeAnalytical))
	got, ok := c.Get("k1")
	if !ok || got.Mode != domain.ModeAnalytical {
		t.Fatalf("Get(k1) = %+v, %v", got, ok)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("stats = %d hits, %d misses", hits, misses)
	}
}

func TestResultCacheExpiresLazily(t *testing.T) {
	c, err := NewResultCache(4, time.Minute)
	if err != nil {
		t.Fatalf("NewResultCache() error = %v", err)
	}

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put("k1", payload(domain.ModeAnalytical))

	c.now = func() time.Time { return base.Add(time.Minute + time.Second) }
	if _, ok := c.Get("k1"); ok {
		t.Fatalf("expired entry served")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not removed, len = %d", c.Len())
	}
}

func TestResultCacheEvictionRespectsReads(t *testing.T) {
	c, err := NewResultCache(3, time.Minute)
	if err != nil {
		t.Fatalf("NewResultCache() error = %v", err)
	}

	for i := 1; i <= 3; i++ {
		c.Put(fmt.Sprintf("k%d", i), payload(domain.ModeAnalytical))
	}
	// Touch the oldest entry so the unread middle one becomes LRU.
	if _, ok := c.Get("k1"); !ok {
		t.Fatalf("expected k1 present")
	}

	c.Put("k4", payload(domain.ModeKnowledge))

	if _, ok := c.Get("k2"); ok {
		t.Fatalf("expected the unread entry evicted")
	}
	for _, key := range []string{"k1", "k3", "k4"} {
		if _, ok := c.Get(key); !ok {
			t.Fatalf("expected %s retained", key)
		}
	}
}

func TestResultCacheInvalidateAll(t *testing.T) {
	c, err := NewResultCache(4, time.Minute)
	if err != nil {
		t.Fatalf("NewResultCache() error = %v", err)
	}
	c.Put("k1", payload(domain.ModeAnalytical))
	c.Put("k2", payload(domain.ModeKnowledge))

	c.InvalidateAll()

	if c.Len() != 0 {
		t.Fatalf("expected empty cache after invalidation, len = %d", c.Len())
	}
	if _, ok := c.Get("k1"); ok {
		t.Fatalf("stale entry survived invalidation")
	}
}

func TestResultCacheIgnoresNilPayload(t *testing.T) {
	c, err := NewResultCache(4, time.Minute)
	if err != nil {
		t.Fatalf("NewResultCache() error = %v", err)
	}
	c.Put("k1", nil)
	if c.Len() != 0 {
		t.Fatalf("nil payload stored")
	}
}
