package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/venue-booking/internal/scheduler"
	"github.com/example/venue-booking/internal/timeslot"
)

// ConflictQueryService answers advisory "is this slot free" queries. It
// shares the normalizer and detector with BookingService, so a slot it
// reports free is accepted by the write path unless a booking lands first.
type ConflictQueryService struct {
	venues    VenueLookup
	conflicts ConflictFinder
	zones     ZoneResolver
	policy    timeslot.AdvisoryIntervalPolicy
	cache     *conflictCache
	logger    *slog.Logger
}

// ConflictQueryOptions tunes the result cache. A zero CacheTTL disables it.
type ConflictQueryOptions struct {
	CacheTTL        time.Duration
	CacheMaxEntries int
	Now             func() time.Time
}

// NewConflictQueryService constructs a conflict query service without a cache.
func NewConflictQueryService(venues VenueLookup, conflicts ConflictFinder, zones ZoneResolver) *ConflictQueryService {
	return NewConflictQueryServiceWithLogger(venues, conflicts, zones, ConflictQueryOptions{}, nil)
}

// NewConflictQueryServiceWithLogger constructs a conflict query service with
// cache options and a specified logger.
func NewConflictQueryServiceWithLogger(venues VenueLookup, conflicts ConflictFinder, zones ZoneResolver, opts ConflictQueryOptions, logger *slog.Logger) *ConflictQueryService {
	svc := &ConflictQueryService{
		venues:    venues,
		conflicts: conflicts,
		zones:     zones,
		logger:    defaultLogger(logger),
	}
	if opts.CacheTTL > 0 {
		svc.cache = newConflictCache(opts.CacheTTL, opts.CacheMaxEntries, opts.Now)
	}
	return svc
}

func (s *ConflictQueryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ConflictQueryService", operation, attrs...)
}

// Invalidate drops cached results. BookingService calls it after every write.
func (s *ConflictQueryService) Invalidate() {
	if s == nil {
		return
	}
	s.cache.Invalidate()
}

// FindConflicts returns the bookings overlapping the queried slot, rendered in
// the venue's zone. Incomplete queries return no conflicts. An unknown venue
// yields ErrVenueNotFound; malformed dates and times yield errors wrapping
// timeslot.ErrInvalidDate or timeslot.ErrInvalidTimeFormat.
func (s *ConflictQueryService) FindConflicts(ctx context.Context, query ConflictQuery) (conflicts []Conflict, err error) {
	if s == nil || s.conflicts == nil {
		err = fmt.Errorf("ConflictQueryService is not configured")
		return
	}

	ref := strings.TrimSpace(query.VenueID)
	if ref == "" {
		ref = strings.TrimSpace(query.VenueSlug)
	}
	if ref == "" {
		return []Conflict{}, nil
	}

	logger := s.loggerWith(ctx, "FindConflicts", "venue_ref", ref)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "conflict query failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "conflict query answered", "conflicts", len(conflicts))
	}()

	var venue Venue
	venue, err = resolveVenue(ctx, s.venues, ref)
	if err != nil {
		return
	}

	loc := s.location(venue)
	request := timeslot.Request{
		Date:  query.Date,
		Start: timeslot.FromString(query.StartTime),
		End:   timeslot.FromString(query.EndTime),
	}
	interval, ok, policyErr := s.policy.Interval(loc, request)
	if policyErr != nil {
		err = policyErr
		return
	}
	if !ok {
		conflicts = []Conflict{}
		return
	}

	excludeID := strings.TrimSpace(query.ExcludeID)
	key := conflictCacheKey(venue.ID, interval.Start, interval.End, excludeID)
	if cached, hit := s.cache.Get(key); hit {
		conflicts = cached
		if conflicts == nil {
			conflicts = []Conflict{}
		}
		return
	}

	generation := s.cache.Generation()
	var found []scheduler.Booking
	found, err = s.conflicts.FindConflicts(ctx, scheduler.Query{
		VenueID:   venue.ID,
		Interval:  interval,
		ExcludeID: excludeID,
	})
	if err != nil {
		return
	}

	conflicts = toConflicts(venue, loc, found)
	s.cache.Store(key, conflicts, generation)
	return
}

func (s *ConflictQueryService) location(venue Venue) *time.Location {
	if s.zones == nil {
		return time.UTC
	}
	return s.zones.Location(venueZone(venue))
}
