// Package persistencetest holds the behaviour every persistence.Store must
// share. Backend packages run it against their own storage.
package persistencetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/venue-booking/internal/persistence"
	"github.com/example/venue-booking/internal/testfixtures"
)

// Factory returns an empty, migrated store. The store is closed by the
// harness cleanup.
type Factory func(t *testing.T) persistence.Store

// Run exercises the repository contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("venues", func(t *testing.T) { testVenues(t, newStore) })
	t.Run("bookings", func(t *testing.T) { testBookings(t, newStore) })
	t.Run("overlap", func(t *testing.T) { testOverlap(t, newStore) })
	t.Run("concurrent writers", func(t *testing.T) { testConcurrentWriters(t, newStore) })
	t.Run("imports", func(t *testing.T) { testImports(t, newStore) })
}

func harness(t *testing.T, newStore Factory) *testfixtures.StoreHarness {
	t.Helper()
	return testfixtures.NewStoreHarness(t, newStore(t))
}

func seedVenue(t *testing.T, h *testfixtures.StoreHarness, opts ...testfixtures.VenueOption) persistence.Venue {
	t.Helper()
	venue := testfixtures.NewVenueFixture(opts...).Persistence()
	if err := h.Venues.CreateVenue(context.Background(), venue); err != nil {
		t.Fatalf("CreateVenue failed: %v", err)
	}
	return venue
}

func at(hour int) time.Time {
	return time.Date(2024, time.June, 1, hour, 0, 0, 0, time.UTC)
}

func testVenues(t *testing.T, newStore Factory) {
	t.Run("creates, reads, and updates venues", func(t *testing.T) {
		ctx := context.Background()
		h := harness(t, newStore)

		venue := seedVenue(t, h,
			testfixtures.WithVenueName("Main Hall"),
			testfixtures.WithVenueSlug("main-hall"),
			testfixtures.WithVenueCoordinates(41.88, -87.63),
		)

		fetched, err := h.Venues.GetVenue(ctx, venue.ID)
		if err != nil {
			t.Fatalf("GetVenue failed: %v", err)
		}
		if fetched.Name != "Main Hall" || fetched.TimeZone != "America/Chicago" {
			t.Fatalf("unexpected venue: %#v", fetched)
		}
		if fetched.Latitude == nil || *fetched.Latitude != 41.88 {
			t.Fatalf("latitude not round-tripped: %#v", fetched.Latitude)
		}

		venue.Name = "Main Hall East"
		venue.Slug = "main-hall-east"
		venue.TimeZone = "America/New_York"
		if err := h.Venues.UpdateVenue(ctx, venue); err != nil {
			t.Fatalf("UpdateVenue failed: %v", err)
		}

		bySlug, err := h.Venues.GetVenueBySlug(ctx, "main-hall-east")
		if err != nil {
			t.Fatalf("GetVenueBySlug failed: %v", err)
		}
		if bySlug.ID != venue.ID || bySlug.TimeZone != "America/New_York" {
			t.Fatalf("unexpected updated venue: %#v", bySlug)
		}
		if _, err := h.Venues.GetVenueBySlug(ctx, "main-hall"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected old slug to be gone, got %v", err)
		}
	})

	t.Run("rejects duplicate slugs", func(t *testing.T) {
		ctx := context.Background()
		h := harness(t, newStore)

		seedVenue(t, h, testfixtures.WithVenueSlug("taken"))
		other := testfixtures.NewVenueFixture(testfixtures.WithVenueSlug("taken")).Persistence()
		if err := h.Venues.CreateVenue(ctx, other); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("lists venues by name", func(t *testing.T) {
		ctx := context.Background()
		h := harness(t, newStore)

		seedVenue(t, h, testfixtures.WithVenueName("Zephyr"))
		seedVenue(t, h, testfixtures.WithVenueName("Aurora"))

		venues, err := h.Venues.ListVenues(ctx)
		if err != nil {
			t.Fatalf("ListVenues failed: %v", err)
		}
		if len(venues) != 2 || venues[0].Name != "Aurora" || venues[1].Name != "Zephyr" {
			t.Fatalf("unexpected venue order: %#v", venues)
		}
	})

	t.Run("reports missing venues", func(t *testing.T) {
		ctx := context.Background()
		h := harness(t, newStore)

		if _, err := h.Venues.GetVenue(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		missing := testfixtures.NewVenueFixture().Persistence()
		if err := h.Venues.UpdateVenue(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on update, got %v", err)
		}
	})
}

func testBookings(t *testing.T, newStore Factory) {
	t.Run("creates, reads, updates, and deletes bookings", func(t *testing.T) {
		ctx := context.Background()
		h := harness(t, newStore)
		venue := seedVenue(t, h)

		booking := testfixtures.NewBookingFixture(
			testfixtures.WithBookingVenue(venue.ID),
			testfixtures.WithBookingArtist("The Band"),
			testfixtures.WithBookingInterval(at(20), at(23)),
			testfixtures.WithBookingLocalDate("2024-06-01"),
		).Persistence()
		if err := h.Bookings.CreateBooking(ctx, booking); err != nil {
			t.Fatalf("CreateBooking failed: %v", err)
		}

		fetched, err := h.Bookings.GetBooking(ctx, booking.ID)
		if err != nil {
			t.Fatalf("GetBooking failed: %v", err)
		}
		if !fetched.Start.Equal(at(20)) || !fetched.End.Equal(at(23)) || fetched.LocalDate != "2024-06-01" {
			t.Fatalf("unexpected booking: %#v", fetched)
		}
		if fetched.Start.Location() != time.UTC {
			t.Fatalf("expected UTC start, got %v", fetched.Start.Location())
		}

		booking.ArtistName = "The Band (late show)"
		booking.Start = at(21)
		booking.End = at(23).Add(30 * time.Minute)
		if err := h.Bookings.UpdateBooking(ctx, booking); err != nil {
			t.Fatalf("UpdateBooking failed: %v", err)
		}
		fetched, err = h.Bookings.GetBooking(ctx, booking.ID)
		if err != nil {
			t.Fatalf("GetBooking after update failed: %v", err)
		}
		if fetched.ArtistName != "The Band (late show)" || !fetched.Start.Equal(at(21)) {
			t.Fatalf("unexpected updated booking: %#v", fetched)
		}

		count, err := h.Bookings.CountBookings(ctx, venue.ID)
		if err != nil || count != 1 {
			t.Fatalf("CountBookings = %d, %v; want 1", count, err)
		}

		if err := h.Bookings.DeleteBooking(ctx, booking.ID); err != nil {
			t.Fatalf("DeleteBooking failed: %v", err)
		}
		if _, err := h.Bookings.GetBooking(ctx, booking.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if err := h.Bookings.DeleteBooking(ctx, booking.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("rejects non-positive intervals", func(t *testing.T) {
		ctx := context.Background()
		h := harness(t, newStore)
		venue := seedVenue(t, h)

		booking := testfixtures.NewBookingFixture(
			testfixtures.WithBookingVenue(venue.ID),
			testfixtures.WithBookingInterval(at(20), at(20)),
		).Persistence()
		if err := h.Bookings.CreateBooking(ctx, booking); !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
	})

	t.Run("rejects bookings for unknown venues", func(t *testing.T) {
		ctx := context.Background()
		h := harness(t, newStore)

		booking := testfixtures.NewBookingFixture(testfixtures.WithBookingVenue("nowhere")).Persistence()
		if err := h.Bookings.CreateBooking(ctx, booking); !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
		}
	})

	t.Run("filters listings by end instant", func(t *testing.T) {
		ctx := context.Background()
		h := harness(t, newStore)
		venue := seedVenue(t, h)
		other := seedVenue(t, h)

		early := testfixtures.NewBookingFixture(testfixtures.WithBookingVenue(venue.ID), testfixtures.WithBookingInterval(at(10), at(12))).Persistence()
		late := testfixtures.NewBookingFixture(testfixtures.WithBookingVenue(venue.ID), testfixtures.WithBookingInterval(at(14), at(16))).Persistence()
		elsewhere := testfixtures.NewBookingFixture(testfixtures.WithBookingVenue(other.ID), testfixtures.WithBookingInterval(at(10), at(12))).Persistence()
		for _, b := range []persistence.Booking{late, early, elsewhere} {
			if err := h.Bookings.CreateBooking(ctx, b); err != nil {
				t.Fatalf("CreateBooking(%s) failed: %v", b.ID, err)
			}
		}

		all, err := h.Bookings.ListBookings(ctx, persistence.BookingFilter{VenueID: venue.ID})
		if err != nil {
			t.Fatalf("ListBookings failed: %v", err)
		}
		if len(all) != 2 || all[0].ID != early.ID || all[1].ID != late.ID {
			t.Fatalf("expected [early late], got %#v", all)
		}

		cutoff := at(12)
		upcoming, err := h.Bookings.ListBookings(ctx, persistence.BookingFilter{VenueID: venue.ID, EndsAfter: &cutoff})
		if err != nil {
			t.Fatalf("ListBookings upcoming failed: %v", err)
		}
		if len(upcoming) != 1 || upcoming[0].ID != late.ID {
			t.Fatalf("a booking ending at the cutoff is not upcoming, got %#v", upcoming)
		}

		past, err := h.Bookings.ListBookings(ctx, persistence.BookingFilter{VenueID: venue.ID, EndsBefore: &cutoff})
		if err != nil {
			t.Fatalf("ListBookings past failed: %v", err)
		}
		if len(past) != 0 {
			t.Fatalf("a booking ending at the cutoff is not past yet, got %#v", past)
		}
	})
}

func testOverlap(t *testing.T, newStore Factory) {
	ctx := context.Background()
	h := harness(t, newStore)
	venue := seedVenue(t, h)
	other := seedVenue(t, h)

	existing := testfixtures.NewBookingFixture(
		testfixtures.WithBookingVenue(venue.ID),
		testfixtures.WithBookingInterval(at(20), at(23)),
	).Persistence()
	if err := h.Bookings.CreateBooking(ctx, existing); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	cases := []struct {
		name    string
		venueID string
		start   time.Time
		end     time.Time
		wantErr error
	}{
		{name: "inside", venueID: venue.ID, start: at(21), end: at(22), wantErr: persistence.ErrOverlap},
		{name: "covering", venueID: venue.ID, start: at(19), end: at(23).Add(time.Hour), wantErr: persistence.ErrOverlap},
		{name: "straddling start", venueID: venue.ID, start: at(19), end: at(21), wantErr: persistence.ErrOverlap},
		{name: "identical", venueID: venue.ID, start: at(20), end: at(23), wantErr: persistence.ErrOverlap},
		{name: "adjacent before", venueID: venue.ID, start: at(17), end: at(20)},
		{name: "adjacent after", venueID: venue.ID, start: at(23), end: at(23).Add(2 * time.Hour)},
		{name: "other venue", venueID: other.ID, start: at(20), end: at(23)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := persistence.OverlapQuery{VenueID: tc.venueID, Start: tc.start, End: tc.end}
			found, err := h.Bookings.FindOverlapping(ctx, q)
			if err != nil {
				t.Fatalf("FindOverlapping failed: %v", err)
			}
			if want := tc.wantErr != nil; (len(found) > 0) != want {
				t.Fatalf("FindOverlapping returned %d bookings, want overlap=%v", len(found), want)
			}

			candidate := testfixtures.NewBookingFixture(
				testfixtures.WithBookingVenue(tc.venueID),
				testfixtures.WithBookingInterval(tc.start, tc.end),
			).Persistence()
			err = h.Bookings.CreateBooking(ctx, candidate)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateBooking failed: %v", err)
			}
			if err := h.Bookings.DeleteBooking(ctx, candidate.ID); err != nil {
				t.Fatalf("cleanup delete failed: %v", err)
			}
		})
	}

	t.Run("update ignores its own interval", func(t *testing.T) {
		moved := existing
		moved.End = at(23).Add(time.Hour)
		if err := h.Bookings.UpdateBooking(ctx, moved); err != nil {
			t.Fatalf("UpdateBooking failed: %v", err)
		}

		q := persistence.OverlapQuery{VenueID: venue.ID, Start: at(20), End: at(21), ExcludeID: existing.ID}
		found, err := h.Bookings.FindOverlapping(ctx, q)
		if err != nil {
			t.Fatalf("FindOverlapping failed: %v", err)
		}
		if len(found) != 0 {
			t.Fatalf("expected excluded booking to be ignored, got %#v", found)
		}
	})

	t.Run("update into another booking is rejected", func(t *testing.T) {
		second := testfixtures.NewBookingFixture(
			testfixtures.WithBookingVenue(venue.ID),
			testfixtures.WithBookingInterval(at(10), at(12)),
		).Persistence()
		if err := h.Bookings.CreateBooking(ctx, second); err != nil {
			t.Fatalf("CreateBooking failed: %v", err)
		}
		second.Start = at(11)
		second.End = at(21)
		if err := h.Bookings.UpdateBooking(ctx, second); !errors.Is(err, persistence.ErrOverlap) {
			t.Fatalf("expected ErrOverlap, got %v", err)
		}
	})
}

func testConcurrentWriters(t *testing.T, newStore Factory) {
	ctx := context.Background()
	h := harness(t, newStore)
	venue := seedVenue(t, h)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			booking := testfixtures.NewBookingFixture(
				testfixtures.WithBookingVenue(venue.ID),
				testfixtures.WithBookingInterval(at(20), at(23)),
			).Persistence()
			errs[i] = h.Bookings.CreateBooking(ctx, booking)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, persistence.ErrOverlap):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one booking to win, got %d", created)
	}
}

func testImports(t *testing.T, newStore Factory) {
	t.Run("stores batches with ordered rows", func(t *testing.T) {
		ctx := context.Background()
		h := harness(t, newStore)
		venue := seedVenue(t, h)

		batch := testfixtures.NewImportBatch(venue.ID)
		late := testfixtures.NewImportRow(batch, testfixtures.WithRowSchedule("2024-06-02", "21:00"))
		early := testfixtures.NewImportRow(batch, testfixtures.WithRowSchedule("2024-06-02", "18:00"))
		first := testfixtures.NewImportRow(batch)
		first.Date = "2024-06-01"
		if err := h.Imports.CreateBatch(ctx, batch, []persistence.ImportRow{late, early, first}); err != nil {
			t.Fatalf("CreateBatch failed: %v", err)
		}

		fetched, err := h.Imports.GetBatch(ctx, batch.ID)
		if err != nil {
			t.Fatalf("GetBatch failed: %v", err)
		}
		if fetched.VenueID != venue.ID || fetched.SourceName != batch.SourceName {
			t.Fatalf("unexpected batch: %#v", fetched)
		}

		rows, err := h.Imports.ListRows(ctx, batch.ID)
		if err != nil {
			t.Fatalf("ListRows failed: %v", err)
		}
		if len(rows) != 3 || rows[0].ID != first.ID || rows[1].ID != early.ID || rows[2].ID != late.ID {
			t.Fatalf("unexpected row order: %#v", rows)
		}
		if rows[0].StartUTC == nil || !rows[0].StartUTC.Equal(*first.StartUTC) {
			t.Fatalf("start instant not round-tripped: %#v", rows[0].StartUTC)
		}
		if rows[1].StartUTC != nil || rows[1].Status != persistence.ImportRowProposed {
			t.Fatalf("unexpected schedule-only row: %#v", rows[1])
		}
	})

	t.Run("updates and deletes rows", func(t *testing.T) {
		ctx := context.Background()
		h := harness(t, newStore)
		venue := seedVenue(t, h)

		booking := testfixtures.NewBookingFixture(testfixtures.WithBookingVenue(venue.ID)).Persistence()
		if err := h.Bookings.CreateBooking(ctx, booking); err != nil {
			t.Fatalf("CreateBooking failed: %v", err)
		}

		batch := testfixtures.NewImportBatch(venue.ID)
		created := testfixtures.NewImportRow(batch)
		rejected := testfixtures.NewImportRow(batch)
		if err := h.Imports.CreateBatch(ctx, batch, []persistence.ImportRow{created, rejected}); err != nil {
			t.Fatalf("CreateBatch failed: %v", err)
		}

		created.Status = persistence.ImportRowCreated
		created.BookingID = &booking.ID
		if err := h.Imports.UpdateRow(ctx, created); err != nil {
			t.Fatalf("UpdateRow failed: %v", err)
		}
		rejected.Status = persistence.ImportRowRejected
		rejected.RejectionReason = "conflicts with Artist"
		if err := h.Imports.UpdateRow(ctx, rejected); err != nil {
			t.Fatalf("UpdateRow failed: %v", err)
		}

		rows, err := h.Imports.ListRows(ctx, batch.ID)
		if err != nil {
			t.Fatalf("ListRows failed: %v", err)
		}
		byID := map[string]persistence.ImportRow{}
		for _, row := range rows {
			byID[row.ID] = row
		}
		if got := byID[created.ID]; got.Status != persistence.ImportRowCreated || got.BookingID == nil || *got.BookingID != booking.ID {
			t.Fatalf("unexpected created row: %#v", got)
		}
		if got := byID[rejected.ID]; got.Status != persistence.ImportRowRejected || got.RejectionReason != "conflicts with Artist" {
			t.Fatalf("unexpected rejected row: %#v", got)
		}

		if err := h.Bookings.DeleteBooking(ctx, booking.ID); err != nil {
			t.Fatalf("DeleteBooking failed: %v", err)
		}
		rows, err = h.Imports.ListRows(ctx, batch.ID)
		if err != nil {
			t.Fatalf("ListRows after booking delete failed: %v", err)
		}
		for _, row := range rows {
			if row.ID == created.ID && row.BookingID != nil {
				t.Fatalf("expected booking link to be cleared, got %v", *row.BookingID)
			}
		}

		if err := h.Imports.DeleteRow(ctx, rejected.ID); err != nil {
			t.Fatalf("DeleteRow failed: %v", err)
		}
		if err := h.Imports.DeleteRow(ctx, rejected.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("purges batches by age", func(t *testing.T) {
		ctx := context.Background()
		h := harness(t, newStore)
		venue := seedVenue(t, h)

		old := testfixtures.NewImportBatch(venue.ID)
		old.CreatedAt = testfixtures.ReferenceTime().Add(-48 * time.Hour)
		recent := testfixtures.NewImportBatch(venue.ID)
		recent.CreatedAt = testfixtures.ReferenceTime()
		for _, batch := range []persistence.ImportBatch{old, recent} {
			if err := h.Imports.CreateBatch(ctx, batch, []persistence.ImportRow{testfixtures.NewImportRow(batch)}); err != nil {
				t.Fatalf("CreateBatch failed: %v", err)
			}
		}

		stale, err := h.Imports.ListBatchesCreatedBefore(ctx, testfixtures.ReferenceTime().Add(-time.Hour))
		if err != nil {
			t.Fatalf("ListBatchesCreatedBefore failed: %v", err)
		}
		if len(stale) != 1 || stale[0].ID != old.ID {
			t.Fatalf("expected only the old batch, got %#v", stale)
		}

		if err := h.Imports.DeleteBatch(ctx, old.ID); err != nil {
			t.Fatalf("DeleteBatch failed: %v", err)
		}
		if _, err := h.Imports.ListRows(ctx, old.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for deleted batch, got %v", err)
		}
		if err := h.Imports.DeleteBatch(ctx, old.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
		if _, err := h.Imports.GetBatch(ctx, recent.ID); err != nil {
			t.Fatalf("recent batch should survive: %v", err)
		}
	})
}
