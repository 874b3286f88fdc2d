package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/example/venue-booking/internal/locking"
	"github.com/example/venue-booking/internal/persistence"
	"github.com/example/venue-booking/internal/scheduler"
	"github.com/example/venue-booking/internal/timezone"
)

// VenueRepository captures the persistence operations needed for venues.
type VenueRepository interface {
	CreateVenue(ctx context.Context, venue Venue) (Venue, error)
	UpdateVenue(ctx context.Context, venue Venue) (Venue, error)
	GetVenue(ctx context.Context, id string) (Venue, error)
	GetVenueBySlug(ctx context.Context, slug string) (Venue, error)
	ListVenues(ctx context.Context) ([]Venue, error)
}

// VenueLookup is the read side of VenueRepository.
type VenueLookup interface {
	GetVenue(ctx context.Context, id string) (Venue, error)
	GetVenueBySlug(ctx context.Context, slug string) (Venue, error)
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	VenueID    string
	EndsAfter  *time.Time
	EndsBefore *time.Time
}

// BookingRepository captures the persistence operations needed for bookings.
// Create and Update report an overlapping write with persistence.ErrOverlap.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) (Booking, error)
	UpdateBooking(ctx context.Context, booking Booking) (Booking, error)
	GetBooking(ctx context.Context, id string) (Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	CountBookings(ctx context.Context, venueID string) (int, error)
}

// ImportRepository captures the persistence operations needed for imports.
type ImportRepository interface {
	CreateBatch(ctx context.Context, batch ImportBatch, rows []ImportRow) error
	GetBatch(ctx context.Context, id string) (ImportBatch, error)
	ListRows(ctx context.Context, batchID string) ([]ImportRow, error)
	UpdateRow(ctx context.Context, row ImportRow) error
	DeleteRow(ctx context.Context, id string) error
	DeleteBatch(ctx context.Context, id string) error
	ListBatchesCreatedBefore(ctx context.Context, cutoff time.Time) ([]ImportBatch, error)
}

// ConflictFinder runs the shared overlap query. *scheduler.Detector
// implements it.
type ConflictFinder interface {
	FindConflicts(ctx context.Context, query scheduler.Query) ([]scheduler.Booking, error)
}

// ZoneResolver maps a venue to its time zone. *timezone.Resolver implements it.
type ZoneResolver interface {
	Location(venue timezone.VenueZone) *time.Location
	FromCoordinates(coords *timezone.Coordinates) (string, bool)
	Valid(name string) bool
}

// ZoneNamer names the zone option lists are computed in. *timezone.Resolver
// implements it.
type ZoneNamer interface {
	DefaultZone() string
	Resolve(venue timezone.VenueZone) string
	LocationFor(name string) *time.Location
}

// VenueLocker serialises writes per venue. locking.Locker implementations
// satisfy it.
type VenueLocker = locking.Locker

func venueZone(venue Venue) timezone.VenueZone {
	zone := timezone.VenueZone{TimeZone: venue.TimeZone}
	if venue.Latitude != nil && venue.Longitude != nil {
		zone.Coordinates = &timezone.Coordinates{Latitude: *venue.Latitude, Longitude: *venue.Longitude}
	}
	return zone
}

// resolveVenue finds a venue by id, then by slug.
func resolveVenue(ctx context.Context, venues VenueLookup, ref string) (Venue, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || venues == nil {
		return Venue{}, ErrVenueNotFound
	}
	venue, err := venues.GetVenue(ctx, ref)
	if err == nil {
		return venue, nil
	}
	if !isNotFoundError(err) {
		return Venue{}, err
	}
	venue, err = venues.GetVenueBySlug(ctx, ref)
	if err == nil {
		return venue, nil
	}
	if isNotFoundError(err) {
		return Venue{}, ErrVenueNotFound
	}
	return Venue{}, err
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
