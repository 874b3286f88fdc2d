package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/venue-booking/internal/locking"
	"github.com/example/venue-booking/internal/timeslot"
)

func newBookingServiceForTest(t *testing.T, bookings *bookingRepoStub, venues ...Venue) *BookingService {
	t.Helper()
	if len(venues) == 0 {
		venues = []Venue{chicagoVenue()}
	}
	return NewBookingService(
		bookings,
		newVenueRepoStub(venues...),
		bookings,
		newTestResolver(t),
		locking.NewMutexLocker(),
		sequentialIDs("booking"),
		func() time.Time { return testReference },
	)
}

func bookingInput(date, start, end string) BookingInput {
	return BookingInput{
		VenueID:    "venue-1",
		ArtistName: "The Band",
		Date:       date,
		Start:      timeslot.FromString(start),
		End:        timeslot.FromString(end),
	}
}

func TestBookingService_CreateBooking(t *testing.T) {
	t.Run("applies the default duration when no end is given", func(t *testing.T) {
		repo := newBookingRepoStub()
		svc := newBookingServiceForTest(t, repo)

		booking, err := svc.CreateBooking(context.Background(), bookingInput("2024-07-04", "20:00", ""))
		if err != nil {
			t.Fatalf("CreateBooking returned error: %v", err)
		}

		wantStart := time.Date(2024, 7, 5, 1, 0, 0, 0, time.UTC)
		if !booking.Start.Equal(wantStart) {
			t.Fatalf("expected start %s, got %s", wantStart, booking.Start)
		}
		if got := booking.End.Sub(booking.Start); got != 3*time.Hour {
			t.Fatalf("expected 3h duration, got %s", got)
		}
		if booking.LocalDate != "2024-07-04" {
			t.Fatalf("expected local date 2024-07-04, got %s", booking.LocalDate)
		}
		if booking.ID != "booking-1" {
			t.Fatalf("expected generated id, got %q", booking.ID)
		}
		if !booking.CreatedAt.Equal(testReference) {
			t.Fatalf("expected created at %s, got %s", testReference, booking.CreatedAt)
		}
	})

	t.Run("moves an end before the start to the next day", func(t *testing.T) {
		repo := newBookingRepoStub()
		svc := newBookingServiceForTest(t, repo)

		booking, err := svc.CreateBooking(context.Background(), bookingInput("2024-07-04", "22:00", "01:30"))
		if err != nil {
			t.Fatalf("CreateBooking returned error: %v", err)
		}
		if got := booking.End.Sub(booking.Start); got != 3*time.Hour+30*time.Minute {
			t.Fatalf("expected 3h30m duration, got %s", got)
		}
	})

	t.Run("allows back to back bookings", func(t *testing.T) {
		repo := newBookingRepoStub()
		svc := newBookingServiceForTest(t, repo)

		if _, err := svc.CreateBooking(context.Background(), bookingInput("2024-07-04", "18:00", "20:00")); err != nil {
			t.Fatalf("first booking: %v", err)
		}
		if _, err := svc.CreateBooking(context.Background(), bookingInput("2024-07-04", "20:00", "22:00")); err != nil {
			t.Fatalf("adjacent booking should be accepted: %v", err)
		}
		if repo.count() != 2 {
			t.Fatalf("expected 2 bookings, got %d", repo.count())
		}
	})

	t.Run("rejects overlapping bookings with conflict details", func(t *testing.T) {
		existing := Booking{
			ID:         "existing",
			VenueID:    "venue-1",
			ArtistName: "Headliner",
			Start:      time.Date(2024, 7, 5, 1, 0, 0, 0, time.UTC),
			End:        time.Date(2024, 7, 5, 4, 0, 0, 0, time.UTC),
		}
		repo := newBookingRepoStub(existing)
		svc := newBookingServiceForTest(t, repo)

		_, err := svc.CreateBooking(context.Background(), bookingInput("2024-07-04", "21:00", "23:30"))

		var conflictErr *SchedulingConflictError
		if !errors.As(err, &conflictErr) {
			t.Fatalf("expected SchedulingConflictError, got %v", err)
		}
		if len(conflictErr.Conflicts) != 1 {
			t.Fatalf("expected 1 conflict, got %d", len(conflictErr.Conflicts))
		}
		c := conflictErr.Conflicts[0]
		if c.BookingID != "existing" || c.ArtistName != "Headliner" {
			t.Fatalf("unexpected conflict %+v", c)
		}
		if c.StartLabel != "8:00 PM" || c.EndLabel != "11:00 PM" || c.Date != "Thu Jul 4" {
			t.Fatalf("expected venue-local labels, got %q %q %q", c.Date, c.StartLabel, c.EndLabel)
		}
		if repo.count() != 1 {
			t.Fatalf("expected conflicting booking not to be stored")
		}
	})

	t.Run("rejects a late set overlapping an evening booking", func(t *testing.T) {
		repo := newBookingRepoStub()
		svc := newBookingServiceForTest(t, repo)
		ctx := context.Background()

		existing, err := svc.CreateBooking(ctx, bookingInput("2024-07-04", "21:00", "23:00"))
		if err != nil {
			t.Fatalf("seed booking: %v", err)
		}

		_, err = svc.CreateBooking(ctx, bookingInput("2024-07-04", "22:30", "23:30"))
		var conflictErr *SchedulingConflictError
		if !errors.As(err, &conflictErr) {
			t.Fatalf("expected SchedulingConflictError, got %v", err)
		}
		if len(conflictErr.Conflicts) != 1 {
			t.Fatalf("expected 1 conflict, got %d", len(conflictErr.Conflicts))
		}
		c := conflictErr.Conflicts[0]
		if c.BookingID != existing.ID {
			t.Fatalf("expected conflict with %s, got %s", existing.ID, c.BookingID)
		}
		if c.StartLabel != "9:00 PM" || c.EndLabel != "11:00 PM" {
			t.Fatalf("expected 9:00 PM - 11:00 PM, got %q - %q", c.StartLabel, c.EndLabel)
		}
		if repo.count() != 1 {
			t.Fatalf("expected the late set not to be stored")
		}
	})

	t.Run("reports missing required fields", func(t *testing.T) {
		repo := newBookingRepoStub()
		svc := newBookingServiceForTest(t, repo)

		_, err := svc.CreateBooking(context.Background(), BookingInput{TicketURL: "not a url"})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"venue_id", "artist_name", "date", "start_time", "ticket_url"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
		if repo.findCalls != 0 {
			t.Fatalf("expected conflict check to be skipped")
		}
	})

	t.Run("reports malformed dates and times per field", func(t *testing.T) {
		repo := newBookingRepoStub()
		svc := newBookingServiceForTest(t, repo)

		_, err := svc.CreateBooking(context.Background(), bookingInput("2024-02-30", "20:00", ""))
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["date"]; !ok {
			t.Fatalf("expected date error, got %v", vErr.FieldErrors)
		}

		_, err = svc.CreateBooking(context.Background(), bookingInput("2024-07-04", "20:00", "25:00"))
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["end_time"]; !ok {
			t.Fatalf("expected end_time error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("returns ErrVenueNotFound for unknown venues", func(t *testing.T) {
		repo := newBookingRepoStub()
		svc := newBookingServiceForTest(t, repo)

		input := bookingInput("2024-07-04", "20:00", "")
		input.VenueID = "missing"
		_, err := svc.CreateBooking(context.Background(), input)
		if !errors.Is(err, ErrVenueNotFound) {
			t.Fatalf("expected ErrVenueNotFound, got %v", err)
		}
	})

	t.Run("accepts a venue slug", func(t *testing.T) {
		repo := newBookingRepoStub()
		svc := newBookingServiceForTest(t, repo)

		input := bookingInput("2024-07-04", "20:00", "")
		input.VenueID = "main-hall"
		booking, err := svc.CreateBooking(context.Background(), input)
		if err != nil {
			t.Fatalf("CreateBooking returned error: %v", err)
		}
		if booking.VenueID != "venue-1" {
			t.Fatalf("expected venue id to be resolved, got %q", booking.VenueID)
		}
	})

	t.Run("translates a storage overlap into a conflict", func(t *testing.T) {
		repo := newBookingRepoStub()
		repo.hidden = []Booking{{
			ID:      "other-process",
			VenueID: "venue-1",
			Start:   time.Date(2024, 7, 5, 1, 0, 0, 0, time.UTC),
			End:     time.Date(2024, 7, 5, 2, 0, 0, 0, time.UTC),
		}}
		svc := newBookingServiceForTest(t, repo)

		_, err := svc.CreateBooking(context.Background(), bookingInput("2024-07-04", "20:00", ""))
		var conflictErr *SchedulingConflictError
		if !errors.As(err, &conflictErr) {
			t.Fatalf("expected SchedulingConflictError, got %v", err)
		}
	})

	t.Run("notifies change listeners after a write", func(t *testing.T) {
		repo := newBookingRepoStub()
		svc := newBookingServiceForTest(t, repo)
		calls := 0
		svc.OnChange(func() { calls++ })

		if _, err := svc.CreateBooking(context.Background(), bookingInput("2024-07-04", "20:00", "")); err != nil {
			t.Fatalf("CreateBooking returned error: %v", err)
		}
		if _, err := svc.CreateBooking(context.Background(), bookingInput("2024-07-04", "21:00", "")); err == nil {
			t.Fatalf("expected conflict")
		}
		if calls != 1 {
			t.Fatalf("expected 1 notification, got %d", calls)
		}
	})
}

func TestBookingService_CreateBookingConcurrent(t *testing.T) {
	repo := newBookingRepoStub()
	svc := newBookingServiceForTest(t, repo)

	const writers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, conflicted := 0, 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateBooking(context.Background(), bookingInput("2024-07-04", "20:00", "23:00"))
			mu.Lock()
			defer mu.Unlock()
			var conflictErr *SchedulingConflictError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &conflictErr):
				conflicted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicted != writers-1 {
		t.Fatalf("expected exactly one success, got %d successes and %d conflicts", succeeded, conflicted)
	}
}

func TestBookingService_UpdateBooking(t *testing.T) {
	own := Booking{
		ID:         "own",
		VenueID:    "venue-1",
		ArtistName: "Opener",
		LocalDate:  "2024-07-04",
		Start:      time.Date(2024, 7, 5, 1, 0, 0, 0, time.UTC),
		End:        time.Date(2024, 7, 5, 3, 0, 0, 0, time.UTC),
	}
	other := Booking{
		ID:         "other",
		VenueID:    "venue-1",
		ArtistName: "Headliner",
		Start:      time.Date(2024, 7, 5, 4, 0, 0, 0, time.UTC),
		End:        time.Date(2024, 7, 5, 6, 0, 0, 0, time.UTC),
	}

	t.Run("ignores the booking's own interval", func(t *testing.T) {
		repo := newBookingRepoStub(own, other)
		svc := newBookingServiceForTest(t, repo)

		input := bookingInput("2024-07-04", "20:30", "22:30")
		input.VenueID = ""
		updated, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{BookingID: "own", Input: input})
		if err != nil {
			t.Fatalf("UpdateBooking returned error: %v", err)
		}
		if !updated.Start.Equal(time.Date(2024, 7, 5, 1, 30, 0, 0, time.UTC)) {
			t.Fatalf("unexpected start %s", updated.Start)
		}
		if updated.VenueID != "venue-1" {
			t.Fatalf("expected venue to default to the existing one")
		}
		if !updated.UpdatedAt.Equal(testReference) {
			t.Fatalf("expected updated at to be refreshed")
		}
	})

	t.Run("rejects moving onto another booking", func(t *testing.T) {
		repo := newBookingRepoStub(own, other)
		svc := newBookingServiceForTest(t, repo)

		_, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{
			BookingID: "own",
			Input:     bookingInput("2024-07-04", "22:00", "23:30"),
		})
		var conflictErr *SchedulingConflictError
		if !errors.As(err, &conflictErr) {
			t.Fatalf("expected SchedulingConflictError, got %v", err)
		}
		if conflictErr.Conflicts[0].BookingID != "other" {
			t.Fatalf("expected conflict with other, got %+v", conflictErr.Conflicts)
		}
	})

	t.Run("returns ErrNotFound for unknown bookings", func(t *testing.T) {
		repo := newBookingRepoStub()
		svc := newBookingServiceForTest(t, repo)

		_, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{
			BookingID: "missing",
			Input:     bookingInput("2024-07-04", "20:00", ""),
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestBookingService_DeleteBooking(t *testing.T) {
	repo := newBookingRepoStub(Booking{ID: "b1", VenueID: "venue-1"})
	svc := newBookingServiceForTest(t, repo)
	notified := false
	svc.OnChange(func() { notified = true })

	if err := svc.DeleteBooking(context.Background(), "b1"); err != nil {
		t.Fatalf("DeleteBooking returned error: %v", err)
	}
	if !notified {
		t.Fatalf("expected change notification")
	}
	if err := svc.DeleteBooking(context.Background(), "b1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestBookingService_ListVenueBookings(t *testing.T) {
	past1 := Booking{ID: "p1", VenueID: "venue-1", Start: testReference.Add(-72 * time.Hour), End: testReference.Add(-70 * time.Hour)}
	past2 := Booking{ID: "p2", VenueID: "venue-1", Start: testReference.Add(-48 * time.Hour), End: testReference.Add(-46 * time.Hour)}
	running := Booking{ID: "r1", VenueID: "venue-1", Start: testReference.Add(-time.Hour), End: testReference.Add(time.Hour)}
	future := Booking{ID: "f1", VenueID: "venue-1", Start: testReference.Add(24 * time.Hour), End: testReference.Add(26 * time.Hour)}
	elsewhere := Booking{ID: "x1", VenueID: "venue-2", Start: testReference.Add(24 * time.Hour), End: testReference.Add(26 * time.Hour)}

	repo := newBookingRepoStub(past1, past2, running, future, elsewhere)
	svc := newBookingServiceForTest(t, repo)

	cases := []struct {
		name  string
		scope BookingScope
		want  []string
	}{
		{name: "upcoming", scope: ScopeUpcoming, want: []string{"r1", "f1"}},
		{name: "default is upcoming", scope: "", want: []string{"r1", "f1"}},
		{name: "past", scope: ScopePast, want: []string{"p2", "p1"}},
		{name: "all", scope: ScopeAll, want: []string{"p1", "p2", "r1", "f1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.ListVenueBookings(context.Background(), ListVenueBookingsParams{VenueRef: "main-hall", Scope: tc.scope})
			if err != nil {
				t.Fatalf("ListVenueBookings returned error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d bookings, got %d", len(tc.want), len(got))
			}
			for i, id := range tc.want {
				if got[i].ID != id {
					t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
				}
				if got[i].StartLocal.Location().String() != "America/Chicago" {
					t.Fatalf("expected venue-local rendering, got %s", got[i].StartLocal.Location())
				}
			}
		})
	}

	t.Run("rejects unknown scopes", func(t *testing.T) {
		_, err := svc.ListVenueBookings(context.Background(), ListVenueBookingsParams{VenueRef: "venue-1", Scope: "later"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}
