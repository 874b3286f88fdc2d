package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/example/venue-booking/internal/persistence"
	"github.com/example/venue-booking/internal/scheduler"
	"github.com/example/venue-booking/internal/timezone"
)

var testReference = time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

type venueRepoStub struct {
	mu     sync.Mutex
	venues map[string]Venue

	createErr error
	updateErr error
	getErr    error
}

func newVenueRepoStub(venues ...Venue) *venueRepoStub {
	stub := &venueRepoStub{venues: make(map[string]Venue)}
	for _, v := range venues {
		stub.venues[v.ID] = v
	}
	return stub
}

func (r *venueRepoStub) CreateVenue(ctx context.Context, venue Venue) (Venue, error) {
	if r.createErr != nil {
		return Venue{}, r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.venues[venue.ID] = venue
	return venue, nil
}

func (r *venueRepoStub) UpdateVenue(ctx context.Context, venue Venue) (Venue, error) {
	if r.updateErr != nil {
		return Venue{}, r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.venues[venue.ID]; !ok {
		return Venue{}, persistence.ErrNotFound
	}
	r.venues[venue.ID] = venue
	return venue, nil
}

func (r *venueRepoStub) GetVenue(ctx context.Context, id string) (Venue, error) {
	if r.getErr != nil {
		return Venue{}, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	venue, ok := r.venues[id]
	if !ok {
		return Venue{}, persistence.ErrNotFound
	}
	return venue, nil
}

func (r *venueRepoStub) GetVenueBySlug(ctx context.Context, slug string) (Venue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, venue := range r.venues {
		if venue.Slug == slug {
			return venue, nil
		}
	}
	return Venue{}, persistence.ErrNotFound
}

func (r *venueRepoStub) ListVenues(ctx context.Context) ([]Venue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Venue, 0, len(r.venues))
	for _, venue := range r.venues {
		out = append(out, venue)
	}
	return out, nil
}

// bookingRepoStub stores bookings in memory and doubles as the conflict
// finder, mirroring the shared overlap query of the real stores.
type bookingRepoStub struct {
	mu       sync.Mutex
	bookings map[string]Booking

	createErr  error
	updateErr  error
	findErr    error
	findCalls  int
	lastFilter BookingFilter
	// hidden bookings are invisible to the finder but still make writes fail
	// with ErrOverlap, simulating a writer outside the process lock.
	hidden []Booking
}

func newBookingRepoStub(bookings ...Booking) *bookingRepoStub {
	stub := &bookingRepoStub{bookings: make(map[string]Booking)}
	for _, b := range bookings {
		stub.bookings[b.ID] = b
	}
	return stub
}

func (r *bookingRepoStub) overlapsLocked(candidate Booking) bool {
	all := make([]Booking, 0, len(r.bookings)+len(r.hidden))
	for _, b := range r.bookings {
		all = append(all, b)
	}
	all = append(all, r.hidden...)
	for _, b := range all {
		if b.ID == candidate.ID || b.VenueID != candidate.VenueID {
			continue
		}
		if b.Start.Before(candidate.End) && candidate.Start.Before(b.End) {
			return true
		}
	}
	return false
}

func (r *bookingRepoStub) CreateBooking(ctx context.Context, booking Booking) (Booking, error) {
	if r.createErr != nil {
		return Booking{}, r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.overlapsLocked(booking) {
		return Booking{}, fmt.Errorf("insert booking: %w", persistence.ErrOverlap)
	}
	r.bookings[booking.ID] = booking
	return booking, nil
}

func (r *bookingRepoStub) UpdateBooking(ctx context.Context, booking Booking) (Booking, error) {
	if r.updateErr != nil {
		return Booking{}, r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[booking.ID]; !ok {
		return Booking{}, persistence.ErrNotFound
	}
	if r.overlapsLocked(booking) {
		return Booking{}, persistence.ErrOverlap
	}
	r.bookings[booking.ID] = booking
	return booking, nil
}

func (r *bookingRepoStub) GetBooking(ctx context.Context, id string) (Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[id]
	if !ok {
		return Booking{}, persistence.ErrNotFound
	}
	return booking, nil
}

func (r *bookingRepoStub) DeleteBooking(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.bookings, id)
	return nil
}

func (r *bookingRepoStub) ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	var out []Booking
	for _, b := range r.bookings {
		if filter.VenueID != "" && b.VenueID != filter.VenueID {
			continue
		}
		if filter.EndsAfter != nil && !b.End.After(*filter.EndsAfter) {
			continue
		}
		if filter.EndsBefore != nil && !b.End.Before(*filter.EndsBefore) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *bookingRepoStub) CountBookings(ctx context.Context, venueID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, b := range r.bookings {
		if b.VenueID == venueID {
			count++
		}
	}
	return count, nil
}

func (r *bookingRepoStub) FindConflicts(ctx context.Context, query scheduler.Query) ([]scheduler.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	if r.findErr != nil {
		return nil, r.findErr
	}
	existing := make([]scheduler.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		existing = append(existing, scheduler.Booking{ID: b.ID, VenueID: b.VenueID, ArtistName: b.ArtistName, Start: b.Start, End: b.End})
	}
	return scheduler.DetectConflicts(existing, scheduler.Booking{
		ID:      query.ExcludeID,
		VenueID: query.VenueID,
		Start:   query.Interval.Start,
		End:     query.Interval.End,
	}), nil
}

func (r *bookingRepoStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bookings)
}

type importRepoStub struct {
	mu      sync.Mutex
	batches map[string]ImportBatch
	rows    map[string]ImportRow
	order   []string
}

func newImportRepoStub() *importRepoStub {
	return &importRepoStub{batches: make(map[string]ImportBatch), rows: make(map[string]ImportRow)}
}

func (r *importRepoStub) CreateBatch(ctx context.Context, batch ImportBatch, rows []ImportRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batch.ID] = batch
	for _, row := range rows {
		r.rows[row.ID] = row
		r.order = append(r.order, row.ID)
	}
	return nil
}

func (r *importRepoStub) GetBatch(ctx context.Context, id string) (ImportBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[id]
	if !ok {
		return ImportBatch{}, persistence.ErrNotFound
	}
	return batch, nil
}

func (r *importRepoStub) ListRows(ctx context.Context, batchID string) ([]ImportRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[batchID]; !ok {
		return nil, persistence.ErrNotFound
	}
	var out []ImportRow
	for _, id := range r.order {
		row, ok := r.rows[id]
		if ok && row.BatchID == batchID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *importRepoStub) UpdateRow(ctx context.Context, row ImportRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[row.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.rows[row.ID] = row
	return nil
}

func (r *importRepoStub) DeleteRow(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *importRepoStub) DeleteBatch(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[id]; !ok {
		return persistence.ErrNotFound
	}
	for rowID, row := range r.rows {
		if row.BatchID == id {
			delete(r.rows, rowID)
		}
	}
	delete(r.batches, id)
	return nil
}

func (r *importRepoStub) ListBatchesCreatedBefore(ctx context.Context, cutoff time.Time) ([]ImportBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ImportBatch
	for _, batch := range r.batches {
		if batch.CreatedAt.Before(cutoff) {
			out = append(out, batch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// newTestResolver defaults to Chicago and maps longitudes west of -115 to
// Los Angeles.
func newTestResolver(t *testing.T) *timezone.Resolver {
	t.Helper()
	lookup := timezone.CoordinateLookupFunc(func(lat, lng float64) (string, bool) {
		if lng < -115 {
			return "America/Los_Angeles", true
		}
		return "America/New_York", true
	})
	resolver, err := timezone.NewResolver("America/Chicago", lookup)
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return resolver
}

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func chicagoVenue() Venue {
	return Venue{ID: "venue-1", Name: "Main Hall", Slug: "main-hall", TimeZone: "America/Chicago"}
}
