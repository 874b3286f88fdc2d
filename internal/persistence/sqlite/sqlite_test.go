package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/example/venue-booking/internal/persistence"
	"github.com/example/venue-booking/internal/persistence/sqlite"
	"github.com/example/venue-booking/internal/testfixtures"
)

func newTestStorage(t *testing.T, cfg sqlite.Config) *sqlite.Storage {
	t.Helper()

	storage, err := sqlite.Open(cfg, nil)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return storage
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venuebook.db")
	storage := newTestStorage(t, sqlite.TestConfig(path))

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	if err := storage.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     sqlite.Config
		wantErr bool
	}{
		{name: "default", cfg: sqlite.DefaultConfig("data/venuebook.db")},
		{name: "empty path", cfg: sqlite.DefaultConfig(" "), wantErr: true},
		{name: "negative timeout", cfg: func() sqlite.Config {
			cfg := sqlite.DefaultConfig("x.db")
			cfg.BusyTimeout = -time.Second
			return cfg
		}(), wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

// Writers on separate connections bypass any in-process lock, so only the
// triggers stand between them and a double booking.
func TestOverlapTriggersAcrossConnections(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "venuebook.db")
	storage := newTestStorage(t, sqlite.DefaultConfig(path))

	venue := testfixtures.NewVenueFixture().Persistence()
	if err := storage.CreateVenue(ctx, venue); err != nil {
		t.Fatalf("CreateVenue failed: %v", err)
	}

	start := time.Date(2024, time.June, 1, 20, 0, 0, 0, time.UTC)
	const writers = 6
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			offset := time.Duration(i) * 30 * time.Minute
			booking := testfixtures.NewBookingFixture(
				testfixtures.WithBookingVenue(venue.ID),
				testfixtures.WithBookingInterval(start.Add(offset), start.Add(offset+3*time.Hour)),
			).Persistence()
			errs[i] = storage.CreateBooking(ctx, booking)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && !errors.Is(err, persistence.ErrOverlap) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	bookings, err := storage.ListBookings(ctx, persistence.BookingFilter{VenueID: venue.ID})
	if err != nil {
		t.Fatalf("ListBookings failed: %v", err)
	}
	for i := 1; i < len(bookings); i++ {
		if bookings[i].Start.Before(bookings[i-1].End) {
			t.Fatalf("stored bookings overlap: %#v and %#v", bookings[i-1], bookings[i])
		}
	}
	if len(bookings) == 0 {
		t.Fatal("expected at least one booking to be stored")
	}
}

func TestStoresInstantsAsUTC(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t, sqlite.TestConfig(filepath.Join(t.TempDir(), "venuebook.db")))

	venue := testfixtures.NewVenueFixture().Persistence()
	if err := storage.CreateVenue(ctx, venue); err != nil {
		t.Fatalf("CreateVenue failed: %v", err)
	}

	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	localStart := time.Date(2024, time.June, 1, 22, 0, 0, 0, loc)
	booking := testfixtures.NewBookingFixture(testfixtures.WithBookingVenue(venue.ID)).Persistence()
	booking.Start = localStart
	booking.End = localStart.Add(3 * time.Hour)
	if err := storage.CreateBooking(ctx, booking); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	fetched, err := storage.GetBooking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	want := time.Date(2024, time.June, 2, 3, 0, 0, 0, time.UTC)
	if !fetched.Start.Equal(want) || fetched.Start.Location() != time.UTC {
		t.Fatalf("expected %v in UTC, got %v", want, fetched.Start)
	}
}
