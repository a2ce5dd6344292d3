package main

import (
	"fmt"
	"testing"

	"sindarinc/internal/engine"
)

func TestFreshnessCacheSetGet(t *testing.T) {
	cache := NewModuleFreshnessCache(16)
	key := engine.HashStringKey("src/main.sn")

	if _, ok := cache.Get(key); ok {
		t.Fatal("empty cache should miss")
	}
	cache.Set(key, 100.5)
	got, ok := cache.Get(key)
	if !ok || got != 100.5 {
		t.Fatalf("expected 100.5, got %v (ok=%v)", got, ok)
	}
	cache.Set(key, 200.0)
	if got, _ := cache.Get(key); got != 200.0 {
		t.Fatalf("overwrite failed, got %v", got)
	}
	if cache.Count() != 1 {
		t.Fatalf("overwriting the same key must not grow the count, got %d", cache.Count())
	}
}

func TestFreshnessCacheGrowth(t *testing.T) {
	cache := NewModuleFreshnessCache(16)
	for i := 0; i < 200; i++ {
		cache.Set(engine.HashStringKey(fmt.Sprintf("mod_%d.sn", i)), float64(i))
	}
	if cache.Count() != 200 {
		t.Fatalf("expected 200 entries after resize, got %d", cache.Count())
	}
	for i := 0; i < 200; i++ {
		got, ok := cache.Get(engine.HashStringKey(fmt.Sprintf("mod_%d.sn", i)))
		if !ok || got != float64(i) {
			t.Fatalf("entry %d lost across resize: got %v ok=%v", i, got, ok)
		}
	}
}

func TestFreshnessStale(t *testing.T) {
	cache := NewModuleFreshnessCache(16)
	if !cache.Stale("a.sn", 10) {
		t.Fatal("first observation of a path is always stale")
	}
	if cache.Stale("a.sn", 10) {
		t.Fatal("unchanged mtime is fresh")
	}
	if !cache.Stale("a.sn", 11) {
		t.Fatal("a newer mtime is stale")
	}
	if cache.Stale("a.sn", 11) {
		t.Fatal("Stale must record the mtime it just saw")
	}
}
