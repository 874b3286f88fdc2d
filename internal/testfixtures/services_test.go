package testfixtures

import (
	"context"
	"testing"

	"github.com/example/venue-booking/internal/application"
)

type capturingVenueRepo struct {
	created application.Venue
}

func (c *capturingVenueRepo) CreateVenue(ctx context.Context, venue application.Venue) (application.Venue, error) {
	c.created = venue
	return venue, nil
}

func (c *capturingVenueRepo) UpdateVenue(ctx context.Context, venue application.Venue) (application.Venue, error) {
	return venue, nil
}

func (c *capturingVenueRepo) GetVenue(ctx context.Context, id string) (application.Venue, error) {
	return application.Venue{}, application.ErrNotFound
}

func (c *capturingVenueRepo) GetVenueBySlug(ctx context.Context, slug string) (application.Venue, error) {
	return application.Venue{}, application.ErrNotFound
}

func (c *capturingVenueRepo) ListVenues(ctx context.Context) ([]application.Venue, error) {
	return nil, nil
}

func TestServiceFactoryNewVenueService(t *testing.T) {
	factory := NewServiceFactory()
	repo := &capturingVenueRepo{}

	svc := factory.NewVenueService(VenueServiceDeps{Venues: repo})
	venue, err := svc.CreateVenue(context.Background(), application.VenueInput{Name: "Main Hall", TimeZone: "America/Chicago"})
	if err != nil {
		t.Fatalf("CreateVenue returned error: %v", err)
	}

	if want := SequentialID(0, 1); venue.ID != want {
		t.Fatalf("expected generated ID %s, got %q", want, venue.ID)
	}
	if venue.Slug != "main-hall" {
		t.Fatalf("expected slug main-hall, got %q", venue.Slug)
	}
	if repo.created.ID != venue.ID {
		t.Fatalf("repository received unexpected ID: %q", repo.created.ID)
	}
	if !venue.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), venue.CreatedAt)
	}
}
