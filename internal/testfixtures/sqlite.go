package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/venue-booking/internal/persistence"
	"github.com/example/venue-booking/internal/persistence/memory"
	"github.com/example/venue-booking/internal/persistence/sqlite"
)

// StoreHarness provides repository access backed by a throwaway store for
// integration-style persistence tests.
type StoreHarness struct {
	Venues   persistence.VenueRepository
	Bookings persistence.BookingRepository
	Imports  persistence.ImportRepository
	Store    persistence.Store

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *StoreHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewStoreHarness wraps an already migrated store and registers its cleanup.
func NewStoreHarness(tb testing.TB, store persistence.Store) *StoreHarness {
	tb.Helper()
	harness := &StoreHarness{
		Venues:   store,
		Bookings: store,
		Imports:  store,
		Store:    store,
		cleanup: func() {
			_ = store.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// NewSQLiteHarness constructs a StoreHarness using a temporary SQLite file
// that is migrated automatically. Callers may optionally invoke Close, but the
// helper also registers a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *StoreHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "venuebook.db")
	storage, err := sqlite.Open(sqlite.TestConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return NewStoreHarness(tb, storage)
}

// NewMemoryHarness constructs a StoreHarness over an in-memory store.
func NewMemoryHarness(tb testing.TB) *StoreHarness {
	tb.Helper()
	return NewStoreHarness(tb, memory.New())
}
