package application

import (
	"context"
	"fmt"
	"time"

	"github.com/example/venue-booking/internal/timeslot"
)

// SlotOptions is a picker list together with the zone it was computed in.
type SlotOptions struct {
	TimeZone string
	Options  []timeslot.Option
}

// SlotOptionsService lists the dates and times offered to a booking form in
// the venue's zone. Without a venue the resolver's default zone is used.
type SlotOptionsService struct {
	venues VenueLookup
	zones  ZoneNamer
	now    func() time.Time
}

// NewSlotOptionsService constructs a slot options service.
func NewSlotOptionsService(venues VenueLookup, zones ZoneNamer, now func() time.Time) *SlotOptionsService {
	if now == nil {
		now = time.Now
	}
	return &SlotOptionsService{venues: venues, zones: zones, now: now}
}

// DateOptions lists today and the following days.
func (s *SlotOptionsService) DateOptions(ctx context.Context, venueRef string) (SlotOptions, error) {
	name, loc, err := s.zoneFor(ctx, venueRef)
	if err != nil {
		return SlotOptions{}, err
	}
	return SlotOptions{TimeZone: name, Options: timeslot.DateOptions(s.now(), loc)}, nil
}

// StartOptions lists start times for date.
func (s *SlotOptionsService) StartOptions(ctx context.Context, venueRef, date string) (SlotOptions, error) {
	name, loc, err := s.zoneFor(ctx, venueRef)
	if err != nil {
		return SlotOptions{}, err
	}
	return SlotOptions{TimeZone: name, Options: timeslot.StartOptions(s.now(), loc, date)}, nil
}

// EndOptions lists end times following start on date. Malformed input yields
// errors wrapping the timeslot sentinels.
func (s *SlotOptionsService) EndOptions(ctx context.Context, venueRef, date, start string) (SlotOptions, error) {
	name, loc, err := s.zoneFor(ctx, venueRef)
	if err != nil {
		return SlotOptions{}, err
	}
	options, err := timeslot.EndOptions(loc, date, start)
	if err != nil {
		return SlotOptions{}, err
	}
	return SlotOptions{TimeZone: name, Options: options}, nil
}

func (s *SlotOptionsService) zoneFor(ctx context.Context, venueRef string) (string, *time.Location, error) {
	if s == nil || s.zones == nil {
		return "", nil, fmt.Errorf("SlotOptionsService is not configured")
	}
	if venueRef == "" {
		name := s.zones.DefaultZone()
		return name, s.zones.LocationFor(name), nil
	}
	venue, err := resolveVenue(ctx, s.venues, venueRef)
	if err != nil {
		return "", nil, err
	}
	name := s.zones.Resolve(venueZone(venue))
	return name, s.zones.LocationFor(name), nil
}
