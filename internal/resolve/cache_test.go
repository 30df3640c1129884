package resolve

import (
	"testing"
	"time"

	"github.com/gabriel/anime-watchlist/backend/internal/catalog"
)

func cachedRecord(id int, romaji string) *catalog.Record {
	return &catalog.Record{ID: id, Title: catalog.Title{Romaji: &romaji}}
}

func TestCacheGetSet(t *testing.T) {
	cache := NewCache(time.Minute)

	if _, ok := cache.Get("missing"); ok {
		t.Fatal("empty cache should miss")
	}

	cache.Set("attackontitan", cachedRecord(7, "Attack on Titan"))

	got, ok := cache.Get("attackontitan")
	if !ok || got == nil || got.ID != 7 {
		t.Fatalf("expected cached record 7, got %+v ok=%v", got, ok)
	}
}

func TestCacheIgnoresEmptyKeyAndNilRecord(t *testing.T) {
	cache := NewCache(time.Minute)

	cache.Set("", cachedRecord(1, "x"))
	cache.Set("key", nil)

	if _, ok := cache.Get(""); ok {
		t.Error("empty key should never hit")
	}
	if _, ok := cache.Get("key"); ok {
		t.Error("nil records should not be stored")
	}
}

func TestCacheReturnsCopies(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Set("key", cachedRecord(1, "Original"))

	first, _ := cache.Get("key")
	mutated := "Mutated"
	first.Title.Romaji = &mutated
	first.ID = 99

	second, ok := cache.Get("key")
	if !ok {
		t.Fatal("expected a hit")
	}
	if second.ID != 1 || second.Title.Romaji == nil || *second.Title.Romaji != "Original" {
		t.Fatalf("caller mutation leaked into the cache: %+v", second)
	}
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(time.Minute)

	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("key", cachedRecord(1, "Show"))
	if _, ok := cache.Get("key"); !ok {
		t.Fatal("fresh entry should hit")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := cache.Get("key"); ok {
		t.Fatal("expired entry should miss")
	}
}

func TestCachePrune(t *testing.T) {
	cache := NewCache(time.Minute)

	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("old", cachedRecord(1, "Old Show"))
	current = current.Add(2 * time.Minute)
	cache.Set("fresh", cachedRecord(2, "Fresh Show"))

	if remaining := cache.Prune(); remaining != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", remaining)
	}
	if _, ok := cache.Get("fresh"); !ok {
		t.Error("fresh entry should survive pruning")
	}
	if _, ok := cache.Get("old"); ok {
		t.Error("old entry should be gone")
	}
}
