package scheduler

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/example/venue-booking/internal/timeslot"
)

// Booking is the slice of a persisted booking the detector needs.
type Booking struct {
	ID         string
	VenueID    string
	ArtistName string
	Start      time.Time
	End        time.Time
}

// Interval returns the booking's half-open occupancy.
func (b Booking) Interval() timeslot.Interval {
	return timeslot.Interval{Start: b.Start, End: b.End}
}

// Query asks for bookings at one venue that overlap Interval.
type Query struct {
	VenueID   string
	Interval  timeslot.Interval
	ExcludeID string
}

// OverlapFinder is the storage query behind conflict detection. Implementations
// should return bookings at the venue whose interval overlaps the query, but
// the detector re-checks every row so a wider match is harmless.
type OverlapFinder interface {
	FindOverlapping(ctx context.Context, query Query) ([]Booking, error)
}

// ErrMissingVenue is returned for a query without a venue identifier.
var ErrMissingVenue = errors.New("scheduler: venue id is required")

// DetectConflicts returns the existing bookings that overlap candidate at the
// same venue, ordered by start then id. The candidate's own id is ignored so
// an edited booking never conflicts with its previous interval.
func DetectConflicts(existing []Booking, candidate Booking) []Booking {
	interval := candidate.Interval()
	var conflicts []Booking
	for _, booking := range existing {
		if booking.VenueID != candidate.VenueID {
			continue
		}
		if candidate.ID != "" && booking.ID == candidate.ID {
			continue
		}
		if !booking.Interval().Overlaps(interval) {
			continue
		}
		conflicts = append(conflicts, booking)
	}
	sortByStart(conflicts)
	return conflicts
}

// Detector finds conflicting bookings through an OverlapFinder.
type Detector struct {
	finder OverlapFinder
}

// NewDetector wires the storage query.
func NewDetector(finder OverlapFinder) *Detector {
	return &Detector{finder: finder}
}

// FindConflicts is a pure read: it never mutates storage.
func (d *Detector) FindConflicts(ctx context.Context, query Query) ([]Booking, error) {
	if d == nil || d.finder == nil {
		return nil, errors.New("scheduler: overlap finder not configured")
	}
	if strings.TrimSpace(query.VenueID) == "" {
		return nil, ErrMissingVenue
	}
	if _, err := timeslot.NewInterval(query.Interval.Start, query.Interval.End); err != nil {
		return nil, err
	}

	rows, err := d.finder.FindOverlapping(ctx, query)
	if err != nil {
		return nil, err
	}

	candidate := Booking{
		ID:      query.ExcludeID,
		VenueID: query.VenueID,
		Start:   query.Interval.Start,
		End:     query.Interval.End,
	}
	return DetectConflicts(rows, candidate), nil
}

func sortByStart(bookings []Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})
}
