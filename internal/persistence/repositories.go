package persistence

import (
	"context"
	"time"
)

// VenueRepository exposes CRUD operations for venues.
type VenueRepository interface {
	CreateVenue(ctx context.Context, venue Venue) error
	UpdateVenue(ctx context.Context, venue Venue) error
	GetVenue(ctx context.Context, id string) (Venue, error)
	GetVenueBySlug(ctx context.Context, slug string) (Venue, error)
	ListVenues(ctx context.Context) ([]Venue, error)
}

// BookingFilter narrows booking listings. Zero values do not filter.
type BookingFilter struct {
	VenueID    string
	EndsAfter  *time.Time
	EndsBefore *time.Time
}

// OverlapQuery selects bookings at a venue overlapping [Start, End).
type OverlapQuery struct {
	VenueID   string
	Start     time.Time
	End       time.Time
	ExcludeID string
}

// BookingRepository stores bookings. Create and Update must reject a booking
// whose interval overlaps another booking at the same venue with ErrOverlap.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) error
	UpdateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	FindOverlapping(ctx context.Context, query OverlapQuery) ([]Booking, error)
	CountBookings(ctx context.Context, venueID string) (int, error)
}

// ImportRepository stores import batches and their candidate rows.
type ImportRepository interface {
	CreateBatch(ctx context.Context, batch ImportBatch, rows []ImportRow) error
	GetBatch(ctx context.Context, id string) (ImportBatch, error)
	ListRows(ctx context.Context, batchID string) ([]ImportRow, error)
	UpdateRow(ctx context.Context, row ImportRow) error
	DeleteRow(ctx context.Context, id string) error
	DeleteBatch(ctx context.Context, id string) error
	ListBatchesCreatedBefore(ctx context.Context, cutoff time.Time) ([]ImportBatch, error)
}

// Store bundles every repository a storage backend provides.
type Store interface {
	VenueRepository
	BookingRepository
	ImportRepository
	Close() error
}

// MatchesOverlap applies the half-open overlap rule used by every backend.
func MatchesOverlap(booking Booking, query OverlapQuery) bool {
	if booking.VenueID != query.VenueID {
		return false
	}
	if query.ExcludeID != "" && booking.ID == query.ExcludeID {
		return false
	}
	return booking.Start.Before(query.End) && query.Start.Before(booking.End)
}
