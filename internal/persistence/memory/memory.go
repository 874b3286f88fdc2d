// Package memory provides a map-backed persistence.Store for tests and
// single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/venue-booking/internal/persistence"
)

// Storage keeps every record in process memory behind one lock, which also
// makes the overlap check and the write a single atomic step.
type Storage struct {
	mu       sync.RWMutex
	venues   map[string]persistence.Venue
	bookings map[string]persistence.Booking
	batches  map[string]persistence.ImportBatch
	rows     map[string]persistence.ImportRow
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		venues:   make(map[string]persistence.Venue),
		bookings: make(map[string]persistence.Booking),
		batches:  make(map[string]persistence.ImportBatch),
		rows:     make(map[string]persistence.ImportRow),
	}
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// --- VenueRepository implementation ---

// CreateVenue stores a new venue.
func (s *Storage) CreateVenue(ctx context.Context, venue persistence.Venue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if venue.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.venues[venue.ID]; ok {
		return persistence.ErrDuplicate
	}
	if err := s.ensureUniqueSlugLocked(venue.ID, venue.Slug); err != nil {
		return err
	}
	s.venues[venue.ID] = cloneVenue(venue)
	return nil
}

// UpdateVenue replaces an existing venue.
func (s *Storage) UpdateVenue(ctx context.Context, venue persistence.Venue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.venues[venue.ID]; !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueSlugLocked(venue.ID, venue.Slug); err != nil {
		return err
	}
	s.venues[venue.ID] = cloneVenue(venue)
	return nil
}

// GetVenue retrieves a venue by ID.
func (s *Storage) GetVenue(ctx context.Context, id string) (persistence.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	venue, ok := s.venues[id]
	if !ok {
		return persistence.Venue{}, persistence.ErrNotFound
	}
	return cloneVenue(venue), nil
}

// GetVenueBySlug retrieves a venue by its URL slug.
func (s *Storage) GetVenueBySlug(ctx context.Context, slug string) (persistence.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, venue := range s.venues {
		if venue.Slug == slug {
			return cloneVenue(venue), nil
		}
	}
	return persistence.Venue{}, persistence.ErrNotFound
}

// ListVenues returns venues ordered by name then ID.
func (s *Storage) ListVenues(ctx context.Context) ([]persistence.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	venues := make([]persistence.Venue, 0, len(s.venues))
	for _, venue := range s.venues {
		venues = append(venues, cloneVenue(venue))
	}
	sort.Slice(venues, func(i, j int) bool {
		if venues[i].Name == venues[j].Name {
			return venues[i].ID < venues[j].ID
		}
		return venues[i].Name < venues[j].Name
	})
	return venues, nil
}

func (s *Storage) ensureUniqueSlugLocked(id, slug string) error {
	if slug == "" {
		return persistence.ErrConstraintViolation
	}
	for _, existing := range s.venues {
		if existing.ID != id && existing.Slug == slug {
			return persistence.ErrDuplicate
		}
	}
	return nil
}

// --- BookingRepository implementation ---

// CreateBooking stores a booking unless it overlaps another at the venue.
func (s *Storage) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if booking.ID == "" || !booking.End.After(booking.Start) {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.bookings[booking.ID]; ok {
		return persistence.ErrDuplicate
	}
	if _, ok := s.venues[booking.VenueID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if s.overlapsLocked(booking) {
		return persistence.ErrOverlap
	}
	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

// UpdateBooking replaces a booking unless the new interval overlaps another.
func (s *Storage) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[booking.ID]; !ok {
		return persistence.ErrNotFound
	}
	if !booking.End.After(booking.Start) {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.venues[booking.VenueID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if s.overlapsLocked(booking) {
		return persistence.ErrOverlap
	}
	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, ok := s.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return cloneBooking(booking), nil
}

// DeleteBooking removes a booking.
func (s *Storage) DeleteBooking(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.bookings, id)
	for rowID, row := range s.rows {
		if row.BookingID != nil && *row.BookingID == id {
			row.BookingID = nil
			s.rows[rowID] = row
		}
	}
	return nil
}

// ListBookings returns bookings matching the filter ordered by start then ID.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := make([]persistence.Booking, 0)
	for _, booking := range s.bookings {
		if matchesBookingFilter(booking, filter) {
			bookings = append(bookings, cloneBooking(booking))
		}
	}
	sortBookings(bookings)
	return bookings, nil
}

// FindOverlapping returns bookings overlapping the query ordered by start.
func (s *Storage) FindOverlapping(ctx context.Context, query persistence.OverlapQuery) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]persistence.Booking, 0)
	for _, booking := range s.bookings {
		if persistence.MatchesOverlap(booking, query) {
			matches = append(matches, cloneBooking(booking))
		}
	}
	sortBookings(matches)
	return matches, nil
}

// CountBookings returns the number of bookings at a venue.
func (s *Storage) CountBookings(ctx context.Context, venueID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, booking := range s.bookings {
		if booking.VenueID == venueID {
			count++
		}
	}
	return count, nil
}

func (s *Storage) overlapsLocked(candidate persistence.Booking) bool {
	query := persistence.OverlapQuery{
		VenueID:   candidate.VenueID,
		Start:     candidate.Start,
		End:       candidate.End,
		ExcludeID: candidate.ID,
	}
	for _, existing := range s.bookings {
		if persistence.MatchesOverlap(existing, query) {
			return true
		}
	}
	return false
}

// --- ImportRepository implementation ---

// CreateBatch stores a batch with its rows.
func (s *Storage) CreateBatch(ctx context.Context, batch persistence.ImportBatch, rows []persistence.ImportRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if batch.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.batches[batch.ID]; ok {
		return persistence.ErrDuplicate
	}
	if _, ok := s.venues[batch.VenueID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	for _, row := range rows {
		if row.ID == "" {
			return persistence.ErrConstraintViolation
		}
		if _, ok := s.rows[row.ID]; ok {
			return persistence.ErrDuplicate
		}
	}

	s.batches[batch.ID] = batch
	for _, row := range rows {
		row.BatchID = batch.ID
		if row.Status == "" {
			row.Status = persistence.ImportRowProposed
		}
		s.rows[row.ID] = cloneRow(row)
	}
	return nil
}

// GetBatch retrieves a batch by ID.
func (s *Storage) GetBatch(ctx context.Context, id string) (persistence.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, ok := s.batches[id]
	if !ok {
		return persistence.ImportBatch{}, persistence.ErrNotFound
	}
	return batch, nil
}

// ListRows returns a batch's rows ordered by date, start time, then ID.
func (s *Storage) ListRows(ctx context.Context, batchID string) ([]persistence.ImportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.batches[batchID]; !ok {
		return nil, persistence.ErrNotFound
	}
	rows := make([]persistence.ImportRow, 0)
	for _, row := range s.rows {
		if row.BatchID == batchID {
			rows = append(rows, cloneRow(row))
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		if rows[i].StartTime != rows[j].StartTime {
			return rows[i].StartTime < rows[j].StartTime
		}
		return rows[i].ID < rows[j].ID
	})
	return rows, nil
}

// UpdateRow replaces a row.
func (s *Storage) UpdateRow(ctx context.Context, row persistence.ImportRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rows[row.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	row.BatchID = existing.BatchID
	s.rows[row.ID] = cloneRow(row)
	return nil
}

// DeleteRow removes one row.
func (s *Storage) DeleteRow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

// DeleteBatch removes a batch and its rows.
func (s *Storage) DeleteBatch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[id]; !ok {
		return persistence.ErrNotFound
	}
	for rowID, row := range s.rows {
		if row.BatchID == id {
			delete(s.rows, rowID)
		}
	}
	delete(s.batches, id)
	return nil
}

// ListBatchesCreatedBefore returns batches older than cutoff, oldest first.
func (s *Storage) ListBatchesCreatedBefore(ctx context.Context, cutoff time.Time) ([]persistence.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batches := make([]persistence.ImportBatch, 0)
	for _, batch := range s.batches {
		if batch.CreatedAt.Before(cutoff) {
			batches = append(batches, batch)
		}
	}
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].CreatedAt.Equal(batches[j].CreatedAt) {
			return batches[i].ID < batches[j].ID
		}
		return batches[i].CreatedAt.Before(batches[j].CreatedAt)
	})
	return batches, nil
}

func cloneVenue(venue persistence.Venue) persistence.Venue {
	clone := venue
	clone.Latitude = cloneFloat(venue.Latitude)
	clone.Longitude = cloneFloat(venue.Longitude)
	return clone
}

func cloneBooking(booking persistence.Booking) persistence.Booking {
	clone := booking
	clone.Start = booking.Start.UTC()
	clone.End = booking.End.UTC()
	return clone
}

func cloneRow(row persistence.ImportRow) persistence.ImportRow {
	clone := row
	clone.StartUTC = cloneTime(row.StartUTC)
	clone.EndUTC = cloneTime(row.EndUTC)
	if row.BookingID != nil {
		id := *row.BookingID
		clone.BookingID = &id
	}
	return clone
}

func cloneFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := value.UTC()
	return &clone
}

func matchesBookingFilter(booking persistence.Booking, filter persistence.BookingFilter) bool {
	if filter.VenueID != "" && booking.VenueID != filter.VenueID {
		return false
	}
	if filter.EndsAfter != nil && !booking.End.After(*filter.EndsAfter) {
		return false
	}
	if filter.EndsBefore != nil && !booking.End.Before(*filter.EndsBefore) {
		return false
	}
	return true
}

func sortBookings(bookings []persistence.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})
}
