package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/example/venue-booking/internal/persistence"
)

const maxSlugAttempts = 100

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9_-]+`)
var slugRepeatedDashes = regexp.MustCompile(`-{2,}`)

// VenueService orchestrates validation and persistence for venues.
type VenueService struct {
	venues      VenueRepository
	bookings    BookingRepository
	zones       ZoneResolver
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewVenueService constructs a venue service with the provided dependencies.
func NewVenueService(venues VenueRepository, bookings BookingRepository, zones ZoneResolver, idGenerator func() string, now func() time.Time) *VenueService {
	return NewVenueServiceWithLogger(venues, bookings, zones, idGenerator, now, nil)
}

// NewVenueServiceWithLogger constructs a venue service with a specified logger.
func NewVenueServiceWithLogger(venues VenueRepository, bookings BookingRepository, zones ZoneResolver, idGenerator func() string, now func() time.Time, logger *slog.Logger) *VenueService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &VenueService{
		venues:      venues,
		bookings:    bookings,
		zones:       zones,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *VenueService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "VenueService", operation, attrs...)
}

// CreateVenue validates input, assigns a unique slug and persists the venue.
func (s *VenueService) CreateVenue(ctx context.Context, input VenueInput) (venue Venue, err error) {
	if s == nil || s.venues == nil {
		err = fmt.Errorf("VenueService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateVenue", "venue_name", input.Name)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create venue", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("venue_id", venue.ID, "slug", venue.Slug).InfoContext(ctx, "venue created")
	}()

	vErr := s.validateVenueInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var slug string
	slug, err = s.uniqueSlug(ctx, input.Name, "")
	if err != nil {
		return
	}

	createdAt := s.now()
	venue = Venue{
		ID:        s.idGenerator(),
		Name:      strings.TrimSpace(input.Name),
		Slug:      slug,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		Address:   strings.TrimSpace(input.Address),
		Website:   normalizeWebsite(input.Website),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	venue.TimeZone = s.assignZone(strings.TrimSpace(input.TimeZone), venue)

	var persisted Venue
	persisted, err = s.venues.CreateVenue(ctx, venue)
	if err != nil {
		err = mapVenueRepoError(err)
		return
	}
	venue = persisted
	return
}

// UpdateVenue validates input and updates a venue. Existing bookings keep
// their stored UTC instants when the zone changes; the service only logs how
// many bookings will now render at a different local time.
func (s *VenueService) UpdateVenue(ctx context.Context, params UpdateVenueParams) (venue Venue, err error) {
	if s == nil || s.venues == nil {
		err = fmt.Errorf("VenueService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateVenue", "venue_ref", params.VenueRef)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update venue", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("venue_id", venue.ID).InfoContext(ctx, "venue updated")
	}()

	var existing Venue
	existing, err = resolveVenue(ctx, s.venues, params.VenueRef)
	if err != nil {
		return
	}

	vErr := s.validateVenueInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = strings.TrimSpace(params.Input.Name)
	updated.Latitude = params.Input.Latitude
	updated.Longitude = params.Input.Longitude
	updated.Address = strings.TrimSpace(params.Input.Address)
	updated.Website = normalizeWebsite(params.Input.Website)
	updated.UpdatedAt = s.now()
	if updated.Name != existing.Name {
		updated.Slug, err = s.uniqueSlug(ctx, updated.Name, existing.ID)
		if err != nil {
			return
		}
	}
	updated.TimeZone = s.assignZone(strings.TrimSpace(params.Input.TimeZone), updated)

	var persisted Venue
	persisted, err = s.venues.UpdateVenue(ctx, updated)
	if err != nil {
		err = mapVenueRepoError(err)
		return
	}
	venue = persisted

	if existing.TimeZone != venue.TimeZone {
		s.warnZoneChange(ctx, logger, existing, venue)
	}
	return
}

// GetVenue returns a venue by id or slug.
func (s *VenueService) GetVenue(ctx context.Context, ref string) (Venue, error) {
	if s == nil || s.venues == nil {
		return Venue{}, fmt.Errorf("VenueService is not configured")
	}
	return resolveVenue(ctx, s.venues, ref)
}

// ListVenues returns every venue ordered by name.
func (s *VenueService) ListVenues(ctx context.Context) ([]Venue, error) {
	if s == nil || s.venues == nil {
		return nil, fmt.Errorf("VenueService is not configured")
	}
	venues, err := s.venues.ListVenues(ctx)
	if err != nil {
		return nil, err
	}
	ordered := make([]Venue, len(venues))
	copy(ordered, venues)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Name == ordered[j].Name {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Name < ordered[j].Name
	})
	return ordered, nil
}

// Location returns the venue's resolved time zone.
func (s *VenueService) Location(venue Venue) *time.Location {
	if s == nil || s.zones == nil {
		return time.UTC
	}
	return s.zones.Location(venueZone(venue))
}

func (s *VenueService) validateVenueInput(input VenueInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if zone := strings.TrimSpace(input.TimeZone); zone != "" && s.zones != nil && !s.zones.Valid(zone) {
		vErr.add("time_zone", "unknown time zone")
	}
	if (input.Latitude == nil) != (input.Longitude == nil) {
		vErr.add("coordinates", "latitude and longitude must be given together")
	}
	if input.Latitude != nil && (*input.Latitude < -90 || *input.Latitude > 90) {
		vErr.add("latitude", "must be between -90 and 90")
	}
	if input.Longitude != nil && (*input.Longitude < -180 || *input.Longitude > 180) {
		vErr.add("longitude", "must be between -180 and 180")
	}
	if website := normalizeWebsite(input.Website); website != "" {
		if u, err := url.ParseRequestURI(website); err != nil || u.Host == "" {
			vErr.add("website", "must be a valid URL")
		}
	}
	return vErr
}

// assignZone keeps an explicit zone, otherwise derives one from coordinates.
// An empty result means the resolver default applies at read time.
func (s *VenueService) assignZone(explicit string, venue Venue) string {
	if explicit != "" {
		return explicit
	}
	if s.zones == nil {
		return ""
	}
	zone := venueZone(venue)
	if name, ok := s.zones.FromCoordinates(zone.Coordinates); ok {
		return name
	}
	return ""
}

func (s *VenueService) warnZoneChange(ctx context.Context, logger *slog.Logger, before, after Venue) {
	if s.bookings == nil {
		return
	}
	count, err := s.bookings.CountBookings(ctx, after.ID)
	if err != nil {
		logger.WarnContext(ctx, "could not count bookings after time zone change", "error", err)
		return
	}
	if count == 0 {
		return
	}
	logger.WarnContext(ctx, "venue time zone changed; existing bookings keep their UTC instants",
		"previous_time_zone", before.TimeZone,
		"time_zone", after.TimeZone,
		"affected_bookings", count,
	)
}

func (s *VenueService) uniqueSlug(ctx context.Context, name, selfID string) (string, error) {
	base := Slugify(name)
	candidate := base
	for i := 2; i < maxSlugAttempts+2; i++ {
		existing, err := s.venues.GetVenueBySlug(ctx, candidate)
		if err != nil {
			if isNotFoundError(err) {
				return candidate, nil
			}
			return "", err
		}
		if existing.ID == selfID {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("could not find a free slug for %q", name)
}

// Slugify lowercases name and replaces runs of other characters with dashes.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugInvalidChars.ReplaceAllString(slug, "-")
	slug = slugRepeatedDashes.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "venue"
	}
	return slug
}

func normalizeWebsite(raw string) string {
	website := strings.TrimSpace(raw)
	if website == "" {
		return ""
	}
	lower := strings.ToLower(website)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return website
	}
	return "https://" + website
}

func mapVenueRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFoundError(err) {
		return ErrVenueNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		vErr := &ValidationError{}
		vErr.add("slug", "slug is already taken")
		return vErr
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add(baseField, "venue is invalid")
		return vErr
	}
	return err
}
