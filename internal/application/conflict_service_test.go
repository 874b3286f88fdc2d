package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/venue-booking/internal/scheduler"
	"github.com/example/venue-booking/internal/timeslot"
)

func TestConflictQueryService_FindConflicts(t *testing.T) {
	existing := Booking{
		ID:         "existing",
		VenueID:    "venue-1",
		ArtistName: "",
		Start:      time.Date(2024, 7, 5, 1, 0, 0, 0, time.UTC),
		End:        time.Date(2024, 7, 5, 4, 0, 0, 0, time.UTC),
	}

	newService := func(t *testing.T, repo *bookingRepoStub, opts ConflictQueryOptions) *ConflictQueryService {
		t.Helper()
		return NewConflictQueryServiceWithLogger(newVenueRepoStub(chicagoVenue()), repo, newTestResolver(t), opts, nil)
	}

	t.Run("returns empty results for incomplete queries", func(t *testing.T) {
		repo := newBookingRepoStub(existing)
		svc := newService(t, repo, ConflictQueryOptions{})

		queries := []ConflictQuery{
			{},
			{Date: "2024-07-04", StartTime: "20:00", EndTime: "22:00"},
			{VenueID: "venue-1", StartTime: "20:00", EndTime: "22:00"},
			{VenueID: "venue-1", Date: "2024-07-04", EndTime: "22:00"},
			{VenueID: "venue-1", Date: "2024-07-04", StartTime: "20:00"},
		}
		for _, q := range queries {
			conflicts, err := svc.FindConflicts(context.Background(), q)
			if err != nil {
				t.Fatalf("query %+v returned error: %v", q, err)
			}
			if conflicts == nil || len(conflicts) != 0 {
				t.Fatalf("query %+v: expected empty non-nil result, got %v", q, conflicts)
			}
		}
		if repo.findCalls != 0 {
			t.Fatalf("expected detector not to run, got %d calls", repo.findCalls)
		}
	})

	t.Run("reports overlaps rendered in the venue zone", func(t *testing.T) {
		svc := newService(t, newBookingRepoStub(existing), ConflictQueryOptions{})

		conflicts, err := svc.FindConflicts(context.Background(), ConflictQuery{
			VenueSlug: "main-hall",
			Date:      "2024-07-04",
			StartTime: "22:00",
			EndTime:   "01:00",
		})
		if err != nil {
			t.Fatalf("FindConflicts returned error: %v", err)
		}
		if len(conflicts) != 1 {
			t.Fatalf("expected 1 conflict, got %d", len(conflicts))
		}
		if conflicts[0].ArtistName != "Event" {
			t.Fatalf("expected placeholder artist name, got %q", conflicts[0].ArtistName)
		}
		if conflicts[0].StartLabel != "8:00 PM" || conflicts[0].EndLabel != "11:00 PM" {
			t.Fatalf("unexpected labels %q - %q", conflicts[0].StartLabel, conflicts[0].EndLabel)
		}
	})

	t.Run("treats touching intervals as free", func(t *testing.T) {
		svc := newService(t, newBookingRepoStub(existing), ConflictQueryOptions{})

		conflicts, err := svc.FindConflicts(context.Background(), ConflictQuery{
			VenueID: "venue-1", Date: "2024-07-04", StartTime: "23:00", EndTime: "23:30",
		})
		if err != nil {
			t.Fatalf("FindConflicts returned error: %v", err)
		}
		if len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %v", conflicts)
		}
	})

	t.Run("excludes the edited booking", func(t *testing.T) {
		svc := newService(t, newBookingRepoStub(existing), ConflictQueryOptions{})

		conflicts, err := svc.FindConflicts(context.Background(), ConflictQuery{
			VenueID: "venue-1", Date: "2024-07-04", StartTime: "21:00", EndTime: "22:00", ExcludeID: "existing",
		})
		if err != nil {
			t.Fatalf("FindConflicts returned error: %v", err)
		}
		if len(conflicts) != 0 {
			t.Fatalf("expected own booking to be excluded, got %v", conflicts)
		}
	})

	t.Run("surfaces parse and lookup errors", func(t *testing.T) {
		svc := newService(t, newBookingRepoStub(existing), ConflictQueryOptions{})

		_, err := svc.FindConflicts(context.Background(), ConflictQuery{VenueID: "venue-1", Date: "07/04/2024", StartTime: "20:00", EndTime: "21:00"})
		if !errors.Is(err, timeslot.ErrInvalidDate) {
			t.Fatalf("expected ErrInvalidDate, got %v", err)
		}
		_, err = svc.FindConflicts(context.Background(), ConflictQuery{VenueID: "venue-1", Date: "2024-07-04", StartTime: "8pmish", EndTime: "21:00"})
		if !errors.Is(err, timeslot.ErrInvalidTimeFormat) {
			t.Fatalf("expected ErrInvalidTimeFormat, got %v", err)
		}
		_, err = svc.FindConflicts(context.Background(), ConflictQuery{VenueID: "unknown", Date: "2024-07-04", StartTime: "20:00", EndTime: "21:00"})
		if !errors.Is(err, ErrVenueNotFound) {
			t.Fatalf("expected ErrVenueNotFound, got %v", err)
		}
	})

	t.Run("does not hide storage failures", func(t *testing.T) {
		repo := newBookingRepoStub(existing)
		repo.findErr = errors.New("database unavailable")
		svc := newService(t, repo, ConflictQueryOptions{})

		_, err := svc.FindConflicts(context.Background(), ConflictQuery{VenueID: "venue-1", Date: "2024-07-04", StartTime: "20:00", EndTime: "21:00"})
		if err == nil {
			t.Fatalf("expected storage error to be returned")
		}
	})

	t.Run("caches results until invalidated", func(t *testing.T) {
		repo := newBookingRepoStub(existing)
		svc := newService(t, repo, ConflictQueryOptions{CacheTTL: time.Minute})
		query := ConflictQuery{VenueID: "venue-1", Date: "2024-07-04", StartTime: "20:00", EndTime: "21:00"}

		for i := 0; i < 3; i++ {
			if _, err := svc.FindConflicts(context.Background(), query); err != nil {
				t.Fatalf("FindConflicts returned error: %v", err)
			}
		}
		if repo.findCalls != 1 {
			t.Fatalf("expected one detector call, got %d", repo.findCalls)
		}

		svc.Invalidate()
		if _, err := svc.FindConflicts(context.Background(), query); err != nil {
			t.Fatalf("FindConflicts returned error: %v", err)
		}
		if repo.findCalls != 2 {
			t.Fatalf("expected detector to run after invalidation, got %d", repo.findCalls)
		}
	})
}

func TestConflictQueryService_MatchesWritePath(t *testing.T) {
	repo := newBookingRepoStub()
	venues := newVenueRepoStub(chicagoVenue())
	resolver := newTestResolver(t)
	query := NewConflictQueryService(venues, repo, resolver)
	bookings := NewBookingService(repo, venues, repo, resolver, nil, sequentialIDs("b"), func() time.Time { return testReference })
	bookings.OnChange(query.Invalidate)

	if _, err := bookings.CreateBooking(context.Background(), bookingInput("2024-11-02", "22:00", "02:00")); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	slots := []struct {
		start, end string
	}{
		{"21:00", "22:00"},
		{"21:00", "22:30"},
		{"01:00", "03:00"},
		{"02:00", "03:00"},
		{"23:00", "23:30"},
	}
	for _, slot := range slots {
		conflicts, err := query.FindConflicts(context.Background(), ConflictQuery{VenueID: "venue-1", Date: "2024-11-02", StartTime: slot.start, EndTime: slot.end})
		if err != nil {
			t.Fatalf("query %v: %v", slot, err)
		}
		created, writeErr := bookings.CreateBooking(context.Background(), bookingInput("2024-11-02", slot.start, slot.end))
		var conflictErr *SchedulingConflictError
		rejected := errors.As(writeErr, &conflictErr)
		if writeErr != nil && !rejected {
			t.Fatalf("slot %v: unexpected write error %v", slot, writeErr)
		}
		if (len(conflicts) > 0) != rejected {
			t.Fatalf("slot %v: query reported %d conflicts but write rejected=%v", slot, len(conflicts), rejected)
		}
		if writeErr == nil {
			// Keep the calendar unchanged for the next slot.
			if err := repo.DeleteBooking(context.Background(), created.ID); err != nil {
				t.Fatalf("cleanup: %v", err)
			}
		}
	}
}

// writeDuringFind answers from repo, then runs during once before returning,
// so a booking commits while the query is still in flight.
type writeDuringFind struct {
	repo   *bookingRepoStub
	during func()
}

func (f *writeDuringFind) FindConflicts(ctx context.Context, query scheduler.Query) ([]scheduler.Booking, error) {
	found, err := f.repo.FindConflicts(ctx, query)
	if f.during != nil {
		during := f.during
		f.during = nil
		during()
	}
	return found, err
}

func TestConflictQueryService_DoesNotCacheResultsOverlappingAWrite(t *testing.T) {
	repo := newBookingRepoStub()
	venues := newVenueRepoStub(chicagoVenue())
	resolver := newTestResolver(t)
	finder := &writeDuringFind{repo: repo}
	query := NewConflictQueryServiceWithLogger(venues, finder, resolver, ConflictQueryOptions{CacheTTL: time.Minute}, nil)
	bookings := NewBookingService(repo, venues, repo, resolver, nil, sequentialIDs("b"), func() time.Time { return testReference })
	bookings.OnChange(query.Invalidate)

	finder.during = func() {
		if _, err := bookings.CreateBooking(context.Background(), bookingInput("2024-07-04", "21:00", "23:00")); err != nil {
			t.Errorf("create booking during query: %v", err)
		}
	}
	slot := ConflictQuery{VenueID: "venue-1", Date: "2024-07-04", StartTime: "22:30", EndTime: "23:30"}

	first, err := query.FindConflicts(context.Background(), slot)
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	if len(first) != 0 {
		t.Fatalf("expected the in-flight query to miss the new booking, got %v", first)
	}

	second, err := query.FindConflicts(context.Background(), slot)
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	_, writeErr := bookings.CreateBooking(context.Background(), bookingInput("2024-07-04", "22:30", "23:30"))
	var conflictErr *SchedulingConflictError
	if !errors.As(writeErr, &conflictErr) {
		t.Fatalf("expected write path to reject the slot, got %v", writeErr)
	}
	if len(second) != 1 {
		t.Fatalf("expected query after the write to report 1 conflict, got %d", len(second))
	}
}
