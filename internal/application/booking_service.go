package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/venue-booking/internal/locking"
	"github.com/example/venue-booking/internal/persistence"
	"github.com/example/venue-booking/internal/scheduler"
	"github.com/example/venue-booking/internal/timeslot"
)

// BookingService validates and persists bookings. Every create and update
// runs the strict interval policy and the conflict check under a per-venue
// lock; storage rejects any overlap that slips past it.
type BookingService struct {
	bookings    BookingRepository
	venues      VenueLookup
	conflicts   ConflictFinder
	zones       ZoneResolver
	locker      VenueLocker
	policy      timeslot.StrictIntervalPolicy
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger

	listenersMu sync.RWMutex
	listeners   []func()
}

// NewBookingService constructs a booking service with the provided dependencies.
func NewBookingService(bookings BookingRepository, venues VenueLookup, conflicts ConflictFinder, zones ZoneResolver, locker VenueLocker, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, venues, conflicts, zones, locker, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(bookings BookingRepository, venues VenueLookup, conflicts ConflictFinder, zones ZoneResolver, locker VenueLocker, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if locker == nil {
		locker = locking.NewMutexLocker()
	}
	return &BookingService{
		bookings:    bookings,
		venues:      venues,
		conflicts:   conflicts,
		zones:       zones,
		locker:      locker,
		policy:      timeslot.StrictIntervalPolicy{Builder: timeslot.Builder{DefaultDuration: timeslot.DefaultDuration}},
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// OnChange registers fn to run after every successful booking write.
func (s *BookingService) OnChange(fn func()) {
	if s == nil || fn == nil {
		return
	}
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

func (s *BookingService) notifyChange() {
	s.listenersMu.RLock()
	listeners := append([]func(){}, s.listeners...)
	s.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// CreateBooking validates the input, rejects conflicting intervals and
// persists the booking.
func (s *BookingService) CreateBooking(ctx context.Context, input BookingInput) (booking Booking, err error) {
	if s == nil || s.bookings == nil {
		err = fmt.Errorf("BookingService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateBooking", "venue_id", input.VenueID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "booking rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID).InfoContext(ctx, "booking created")
	}()

	var venue Venue
	var interval timeslot.Interval
	venue, interval, err = s.prepare(ctx, input)
	if err != nil {
		return
	}

	createdAt := s.now()
	candidate := Booking{
		ID:          s.idGenerator(),
		VenueID:     venue.ID,
		ArtistName:  strings.TrimSpace(input.ArtistName),
		Description: input.Description,
		TicketURL:   strings.TrimSpace(input.TicketURL),
		LocalDate:   localDate(interval, s.location(venue)),
		Start:       interval.Start,
		End:         interval.End,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	booking, err = s.writeChecked(ctx, venue, candidate, "", s.bookings.CreateBooking)
	return
}

// UpdateBooking re-validates the booking, ignoring its own previous interval.
func (s *BookingService) UpdateBooking(ctx context.Context, params UpdateBookingParams) (booking Booking, err error) {
	if s == nil || s.bookings == nil {
		err = fmt.Errorf("BookingService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateBooking", "booking_id", params.BookingID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "booking update rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking updated")
	}()

	var existing Booking
	existing, err = s.bookings.GetBooking(ctx, params.BookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	input := params.Input
	if strings.TrimSpace(input.VenueID) == "" {
		input.VenueID = existing.VenueID
	}

	var venue Venue
	var interval timeslot.Interval
	venue, interval, err = s.prepare(ctx, input)
	if err != nil {
		return
	}

	updated := existing
	updated.VenueID = venue.ID
	updated.ArtistName = strings.TrimSpace(input.ArtistName)
	updated.Description = input.Description
	updated.TicketURL = strings.TrimSpace(input.TicketURL)
	updated.LocalDate = localDate(interval, s.location(venue))
	updated.Start = interval.Start
	updated.End = interval.End
	updated.UpdatedAt = s.now()

	booking, err = s.writeChecked(ctx, venue, updated, existing.ID, s.bookings.UpdateBooking)
	return
}

// DeleteBooking removes a booking.
func (s *BookingService) DeleteBooking(ctx context.Context, id string) (err error) {
	if s == nil || s.bookings == nil {
		return fmt.Errorf("BookingService is not configured")
	}

	logger := s.loggerWith(ctx, "DeleteBooking", "booking_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking deleted")
	}()

	if err = s.bookings.DeleteBooking(ctx, id); err != nil {
		err = mapBookingRepoError(err)
		return
	}
	s.notifyChange()
	return nil
}

// GetBooking returns a booking with venue-local renderings.
func (s *BookingService) GetBooking(ctx context.Context, id string) (LocalBooking, error) {
	if s == nil || s.bookings == nil {
		return LocalBooking{}, fmt.Errorf("BookingService is not configured")
	}
	booking, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return LocalBooking{}, mapBookingRepoError(err)
	}
	venue, err := resolveVenue(ctx, s.venues, booking.VenueID)
	if err != nil {
		return LocalBooking{}, err
	}
	return s.localize(venue, booking), nil
}

// ListVenueBookings lists a venue's bookings for the requested scope.
// Upcoming bookings have not yet ended and come soonest first; past bookings
// have ended and come most recent first.
func (s *BookingService) ListVenueBookings(ctx context.Context, params ListVenueBookingsParams) ([]LocalBooking, error) {
	if s == nil || s.bookings == nil {
		return nil, fmt.Errorf("BookingService is not configured")
	}
	venue, err := resolveVenue(ctx, s.venues, params.VenueRef)
	if err != nil {
		return nil, err
	}

	now := s.now()
	filter := BookingFilter{VenueID: venue.ID}
	switch params.Scope {
	case ScopeUpcoming, "":
		filter.EndsAfter = &now
	case ScopePast:
		filter.EndsBefore = &now
	case ScopeAll:
	default:
		vErr := &ValidationError{}
		vErr.add("scope", "must be upcoming, past or all")
		return nil, vErr
	}

	bookings, err := s.bookings.ListBookings(ctx, filter)
	if err != nil {
		return nil, err
	}

	ordered := make([]Booking, len(bookings))
	copy(ordered, bookings)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start.Equal(ordered[j].Start) {
			return ordered[i].ID < ordered[j].ID
		}
		if params.Scope == ScopePast {
			return ordered[i].Start.After(ordered[j].Start)
		}
		return ordered[i].Start.Before(ordered[j].Start)
	})

	result := make([]LocalBooking, 0, len(ordered))
	for _, booking := range ordered {
		result = append(result, s.localize(venue, booking))
	}
	return result, nil
}

// prepare runs required-field validation and the strict interval policy.
func (s *BookingService) prepare(ctx context.Context, input BookingInput) (Venue, timeslot.Interval, error) {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.VenueID) == "" {
		vErr.add("venue_id", "venue is required")
	}
	if strings.TrimSpace(input.ArtistName) == "" {
		vErr.add("artist_name", "artist name is required")
	}
	if strings.TrimSpace(input.Date) == "" {
		vErr.add("date", "date is required")
	}
	if !input.Start.Present() {
		vErr.add("start_time", "start time is required")
	}
	if ticket := strings.TrimSpace(input.TicketURL); ticket != "" {
		if u, err := url.ParseRequestURI(ticket); err != nil || u.Host == "" {
			vErr.add("ticket_url", "must be a valid URL")
		}
	}

	var venue Venue
	if strings.TrimSpace(input.VenueID) != "" {
		var err error
		venue, err = resolveVenue(ctx, s.venues, input.VenueID)
		if err != nil {
			return Venue{}, timeslot.Interval{}, err
		}
	}

	loc := s.location(venue)
	interval, ok, err := s.policy.Interval(loc, timeslot.Request{Date: input.Date, Start: input.Start, End: input.End})
	if err != nil {
		if errors.Is(err, timeslot.ErrNonPositiveDuration) {
			return Venue{}, timeslot.Interval{}, err
		}
		vErr.merge(intervalValidationError(err))
	}

	if vErr.HasErrors() {
		return Venue{}, timeslot.Interval{}, vErr
	}
	if !ok {
		// Required-field validation guarantees a date and start by now.
		return Venue{}, timeslot.Interval{}, fmt.Errorf("interval policy skipped a complete request")
	}
	return venue, interval, nil
}

type bookingWriter func(ctx context.Context, booking Booking) (Booking, error)

// writeChecked holds the venue lock across the conflict check and the write.
func (s *BookingService) writeChecked(ctx context.Context, venue Venue, candidate Booking, excludeID string, write bookingWriter) (Booking, error) {
	release, err := s.locker.Lock(ctx, venue.ID)
	if err != nil {
		return Booking{}, fmt.Errorf("acquire venue lock: %w", err)
	}
	defer release()

	query := scheduler.Query{
		VenueID:   venue.ID,
		Interval:  timeslot.Interval{Start: candidate.Start, End: candidate.End},
		ExcludeID: excludeID,
	}
	if err := s.checkConflicts(ctx, venue, query); err != nil {
		return Booking{}, err
	}

	persisted, err := write(ctx, candidate)
	if err != nil {
		if errors.Is(err, persistence.ErrOverlap) {
			// Another writer won the race outside this process's lock.
			if cErr := s.checkConflicts(ctx, venue, query); cErr != nil {
				return Booking{}, cErr
			}
			return Booking{}, &SchedulingConflictError{}
		}
		return Booking{}, mapBookingRepoError(err)
	}

	s.notifyChange()
	return persisted, nil
}

func (s *BookingService) checkConflicts(ctx context.Context, venue Venue, query scheduler.Query) error {
	if s.conflicts == nil {
		return nil
	}
	found, err := s.conflicts.FindConflicts(ctx, query)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return nil
	}
	return &SchedulingConflictError{Conflicts: toConflicts(venue, s.location(venue), found)}
}

func (s *BookingService) location(venue Venue) *time.Location {
	if s.zones == nil {
		return time.UTC
	}
	return s.zones.Location(venueZone(venue))
}

func (s *BookingService) localize(venue Venue, booking Booking) LocalBooking {
	loc := s.location(venue)
	return LocalBooking{
		Booking:    booking,
		Venue:      venue,
		StartLocal: booking.Start.In(loc),
		EndLocal:   booking.End.In(loc),
	}
}

func localDate(interval timeslot.Interval, loc *time.Location) string {
	start, _ := interval.In(loc)
	return timeslot.DateOf(start).String()
}

func toConflicts(venue Venue, loc *time.Location, bookings []scheduler.Booking) []Conflict {
	conflicts := make([]Conflict, 0, len(bookings))
	for _, b := range bookings {
		conflicts = append(conflicts, Conflict{
			BookingID:  b.ID,
			ArtistName: displayName(b.ArtistName),
			VenueID:    venue.ID,
			VenueName:  venue.Name,
			VenueSlug:  venue.Slug,
			Start:      b.Start,
			End:        b.End,
			Date:       timeslot.FormatDate(b.Start, loc),
			StartLabel: timeslot.FormatClock(b.Start, loc),
			EndLabel:   timeslot.FormatClock(b.End, loc),
		})
	}
	return conflicts
}

func displayName(artist string) string {
	if strings.TrimSpace(artist) == "" {
		return "Event"
	}
	return artist
}

// intervalValidationError turns normalizer failures into field messages.
func intervalValidationError(err error) *ValidationError {
	vErr := &ValidationError{}
	field := baseField
	var fieldErr *timeslot.FieldError
	if errors.As(err, &fieldErr) {
		field = fieldErr.Field
	}
	switch {
	case errors.Is(err, timeslot.ErrInvalidDate):
		vErr.add(field, "is not a valid date (expected YYYY-MM-DD)")
	case errors.Is(err, timeslot.ErrInvalidTimeFormat):
		vErr.add(field, "is not a valid time (expected HH:MM)")
	default:
		vErr.add(field, err.Error())
	}
	return vErr
}

func mapBookingRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFoundError(err) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrOverlap) {
		return &SchedulingConflictError{}
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return ErrVenueNotFound
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("end_time", "end must be after start")
		return vErr
	}
	return err
}
