package application

import (
	"testing"
	"time"
)

func TestConflictCacheStoresAndReturnsCopies(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	current := fixed
	cache := newConflictCache(time.Minute, 4, func() time.Time { return current })

	original := []Conflict{{BookingID: "booking-1", ArtistName: "The Band"}}
	cache.Store("key", original, cache.Generation())

	// Mutating the original slice should not affect the cached copy.
	original[0].BookingID = "mutated"

	cached, ok := cache.Get("key")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if cached[0].BookingID != "booking-1" {
		t.Fatalf("expected cached booking id to remain unchanged, got %s", cached[0].BookingID)
	}

	cached[0].BookingID = "changed"
	cachedAgain, ok := cache.Get("key")
	if !ok {
		t.Fatalf("expected cache hit on second read")
	}
	if cachedAgain[0].BookingID != "booking-1" {
		t.Fatalf("expected cache to return independent copy, got %s", cachedAgain[0].BookingID)
	}
}

func TestConflictCacheExpiresEntries(t *testing.T) {
	current := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newConflictCache(time.Second, 4, func() time.Time { return current })

	cache.Store("key", []Conflict{{BookingID: "booking-1"}}, cache.Generation())
	if _, ok := cache.Get("key"); !ok {
		t.Fatalf("expected cache hit before expiry")
	}

	current = current.Add(2 * time.Second)
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected cache entry to expire")
	}
}

func TestConflictCacheInvalidate(t *testing.T) {
	cache := newConflictCache(time.Minute, 4, time.Now)
	cache.Store("key", []Conflict{{BookingID: "booking-1"}}, cache.Generation())
	cache.Invalidate()
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected cache to be empty after invalidation")
	}
}

func TestConflictCacheCachesEmptyResults(t *testing.T) {
	cache := newConflictCache(time.Minute, 4, time.Now)
	cache.Store("key", nil, cache.Generation())
	conflicts, ok := cache.Get("key")
	if !ok {
		t.Fatalf("expected empty result to be cached")
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %d", len(conflicts))
	}
}

func TestConflictCacheEvictsWhenFull(t *testing.T) {
	cache := newConflictCache(time.Minute, 2, time.Now)
	cache.Store("a", nil, cache.Generation())
	cache.Store("b", nil, cache.Generation())
	cache.Store("c", nil, cache.Generation())

	cache.mu.RLock()
	size := len(cache.entries)
	cache.mu.RUnlock()
	if size != 2 {
		t.Fatalf("expected cache to hold 2 entries, got %d", size)
	}
	if _, ok := cache.Get("c"); !ok {
		t.Fatalf("expected newest entry to be present")
	}
}

func TestConflictCacheKeyNormalisesToUTC(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	start := time.Date(2024, 7, 4, 20, 0, 0, 0, chicago)
	end := start.Add(2 * time.Hour)

	local := conflictCacheKey("venue-1", start, end, "")
	utc := conflictCacheKey("venue-1", start.UTC(), end.UTC(), "")
	if local != utc {
		t.Fatalf("expected equal keys, got %q and %q", local, utc)
	}
	if conflictCacheKey("venue-1", start, end, "booking-1") == local {
		t.Fatalf("expected exclude id to change the key")
	}
}

func TestConflictCacheDropsResultsFromBeforeInvalidate(t *testing.T) {
	cache := newConflictCache(time.Minute, 4, time.Now)

	stale := cache.Generation()
	cache.Invalidate()
	if cache.Store("key", nil, stale) {
		t.Fatalf("expected store with a stale generation to be refused")
	}
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected stale result not to be cached")
	}

	if !cache.Store("key", nil, cache.Generation()) {
		t.Fatalf("expected store with the current generation to succeed")
	}
}
