package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

func floatPtr(v float64) *float64 { return &v }

func newVenueServiceForTest(t *testing.T, venues *venueRepoStub, bookings *bookingRepoStub) *VenueService {
	t.Helper()
	return NewVenueService(venues, bookings, newTestResolver(t), sequentialIDs("venue"), func() time.Time { return testReference })
}

func TestVenueService_CreateVenue(t *testing.T) {
	t.Run("assigns slug and normalises website", func(t *testing.T) {
		svc := newVenueServiceForTest(t, newVenueRepoStub(), newBookingRepoStub())

		venue, err := svc.CreateVenue(context.Background(), VenueInput{
			Name:     "  The Blue Room!  ",
			TimeZone: "America/Chicago",
			Website:  "blueroom.example.com",
		})
		if err != nil {
			t.Fatalf("CreateVenue returned error: %v", err)
		}
		if venue.Slug != "the-blue-room" {
			t.Fatalf("expected slug the-blue-room, got %q", venue.Slug)
		}
		if venue.Website != "https://blueroom.example.com" {
			t.Fatalf("expected https website, got %q", venue.Website)
		}
		if venue.Name != "The Blue Room!" {
			t.Fatalf("expected trimmed name, got %q", venue.Name)
		}
		if venue.ID != "venue-1" || !venue.CreatedAt.Equal(testReference) {
			t.Fatalf("expected generated id and timestamp, got %+v", venue)
		}
	})

	t.Run("suffixes colliding slugs", func(t *testing.T) {
		repo := newVenueRepoStub(Venue{ID: "existing", Name: "Main Hall", Slug: "main-hall"})
		svc := newVenueServiceForTest(t, repo, newBookingRepoStub())

		venue, err := svc.CreateVenue(context.Background(), VenueInput{Name: "Main Hall"})
		if err != nil {
			t.Fatalf("CreateVenue returned error: %v", err)
		}
		if venue.Slug != "main-hall-2" {
			t.Fatalf("expected main-hall-2, got %q", venue.Slug)
		}
	})

	t.Run("derives the zone from coordinates", func(t *testing.T) {
		svc := newVenueServiceForTest(t, newVenueRepoStub(), newBookingRepoStub())

		venue, err := svc.CreateVenue(context.Background(), VenueInput{
			Name:      "Coast Club",
			Latitude:  floatPtr(34.05),
			Longitude: floatPtr(-118.25),
		})
		if err != nil {
			t.Fatalf("CreateVenue returned error: %v", err)
		}
		if venue.TimeZone != "America/Los_Angeles" {
			t.Fatalf("expected Los Angeles zone, got %q", venue.TimeZone)
		}
	})

	t.Run("keeps an explicit zone over coordinates", func(t *testing.T) {
		svc := newVenueServiceForTest(t, newVenueRepoStub(), newBookingRepoStub())

		venue, err := svc.CreateVenue(context.Background(), VenueInput{
			Name:      "Coast Club",
			TimeZone:  "America/Denver",
			Latitude:  floatPtr(34.05),
			Longitude: floatPtr(-118.25),
		})
		if err != nil {
			t.Fatalf("CreateVenue returned error: %v", err)
		}
		if venue.TimeZone != "America/Denver" {
			t.Fatalf("expected explicit zone, got %q", venue.TimeZone)
		}
	})

	t.Run("validates input", func(t *testing.T) {
		svc := newVenueServiceForTest(t, newVenueRepoStub(), newBookingRepoStub())

		_, err := svc.CreateVenue(context.Background(), VenueInput{
			Name:     " ",
			TimeZone: "Mars/Olympus",
			Latitude: floatPtr(120),
			Website:  "http://",
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"name", "time_zone", "coordinates", "latitude", "website"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})
}

func TestVenueService_UpdateVenue(t *testing.T) {
	t.Run("regenerates the slug when the name changes", func(t *testing.T) {
		repo := newVenueRepoStub(chicagoVenue())
		svc := newVenueServiceForTest(t, repo, newBookingRepoStub())

		venue, err := svc.UpdateVenue(context.Background(), UpdateVenueParams{
			VenueRef: "main-hall",
			Input:    VenueInput{Name: "Grand Hall", TimeZone: "America/Chicago"},
		})
		if err != nil {
			t.Fatalf("UpdateVenue returned error: %v", err)
		}
		if venue.Slug != "grand-hall" {
			t.Fatalf("expected grand-hall, got %q", venue.Slug)
		}
		if !venue.UpdatedAt.Equal(testReference) {
			t.Fatalf("expected updated timestamp")
		}
	})

	t.Run("keeps stored booking instants on zone change", func(t *testing.T) {
		start := time.Date(2024, 7, 5, 1, 0, 0, 0, time.UTC)
		bookings := newBookingRepoStub(Booking{ID: "b1", VenueID: "venue-1", Start: start, End: start.Add(3 * time.Hour)})
		repo := newVenueRepoStub(chicagoVenue())
		svc := newVenueServiceForTest(t, repo, bookings)

		venue, err := svc.UpdateVenue(context.Background(), UpdateVenueParams{
			VenueRef: "venue-1",
			Input:    VenueInput{Name: "Main Hall", TimeZone: "America/New_York"},
		})
		if err != nil {
			t.Fatalf("UpdateVenue returned error: %v", err)
		}
		if venue.TimeZone != "America/New_York" || venue.Slug != "main-hall" {
			t.Fatalf("unexpected venue %+v", venue)
		}
		stored, _ := bookings.GetBooking(context.Background(), "b1")
		if !stored.Start.Equal(start) {
			t.Fatalf("expected booking start to stay %s, got %s", start, stored.Start)
		}
	})

	t.Run("returns ErrVenueNotFound", func(t *testing.T) {
		svc := newVenueServiceForTest(t, newVenueRepoStub(), newBookingRepoStub())
		_, err := svc.UpdateVenue(context.Background(), UpdateVenueParams{VenueRef: "nope", Input: VenueInput{Name: "X"}})
		if !errors.Is(err, ErrVenueNotFound) {
			t.Fatalf("expected ErrVenueNotFound, got %v", err)
		}
	})
}

func TestVenueService_ListAndLocation(t *testing.T) {
	repo := newVenueRepoStub(
		Venue{ID: "b", Name: "Zebra Lounge"},
		Venue{ID: "a", Name: "Attic", TimeZone: "America/Denver"},
	)
	svc := newVenueServiceForTest(t, repo, newBookingRepoStub())

	venues, err := svc.ListVenues(context.Background())
	if err != nil {
		t.Fatalf("ListVenues returned error: %v", err)
	}
	if len(venues) != 2 || venues[0].Name != "Attic" {
		t.Fatalf("expected venues ordered by name, got %+v", venues)
	}
	if got := svc.Location(venues[0]).String(); got != "America/Denver" {
		t.Fatalf("expected Denver, got %s", got)
	}
	if got := svc.Location(venues[1]).String(); got != "America/Chicago" {
		t.Fatalf("expected default zone, got %s", got)
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Main Hall":          "main-hall",
		"  Rock & Roll  ":    "rock-roll",
		"already-slugged_ok": "already-slugged_ok",
		"!!!":                "venue",
		"Café Nord":          "caf-nord",
	}
	for input, want := range cases {
		if got := Slugify(input); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}
