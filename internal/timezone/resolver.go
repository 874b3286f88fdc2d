// Package timezone resolves the IANA zone a venue's wall-clock times are
// interpreted in.
package timezone

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// CoordinateLookup maps a geographic point to the IANA zone covering it.
type CoordinateLookup interface {
	ZoneAt(lat, lng float64) (string, bool)
}

// CoordinateLookupFunc adapts a plain function to CoordinateLookup.
type CoordinateLookupFunc func(lat, lng float64) (string, bool)

// ZoneAt implements CoordinateLookup.
func (f CoordinateLookupFunc) ZoneAt(lat, lng float64) (string, bool) {
	return f(lat, lng)
}

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Valid reports whether the pair lies within the geographic ranges.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// VenueZone carries the venue attributes that participate in zone resolution.
type VenueZone struct {
	TimeZone    string
	Coordinates *Coordinates
}

// Resolver picks a zone for a venue: explicit zone, then coordinates, then the
// configured default. It never fails once constructed.
type Resolver struct {
	defaultZone string
	lookup      CoordinateLookup

	mu        sync.RWMutex
	locations map[string]*time.Location
}

// NewResolver validates the default zone and wires the coordinate lookup.
func NewResolver(defaultZone string, lookup CoordinateLookup) (*Resolver, error) {
	defaultZone = strings.TrimSpace(defaultZone)
	if defaultZone == "" {
		return nil, fmt.Errorf("timezone: default zone is required")
	}
	loc, err := time.LoadLocation(defaultZone)
	if err != nil {
		return nil, fmt.Errorf("timezone: load default zone %q: %w", defaultZone, err)
	}
	return &Resolver{
		defaultZone: defaultZone,
		lookup:      lookup,
		locations:   map[string]*time.Location{defaultZone: loc},
	}, nil
}

// DefaultZone returns the configured fallback zone name.
func (r *Resolver) DefaultZone() string {
	return r.defaultZone
}

// Resolve returns the zone identifier for the venue.
func (r *Resolver) Resolve(venue VenueZone) string {
	if name := strings.TrimSpace(venue.TimeZone); name != "" {
		if _, ok := r.load(name); ok {
			return name
		}
	}
	if name, ok := r.FromCoordinates(venue.Coordinates); ok {
		return name
	}
	return r.defaultZone
}

// FromCoordinates looks the point up in the injected dataset. Zones the
// runtime cannot load are ignored.
func (r *Resolver) FromCoordinates(coords *Coordinates) (string, bool) {
	if coords == nil || r.lookup == nil || !coords.Valid() {
		return "", false
	}
	name, ok := r.lookup.ZoneAt(coords.Latitude, coords.Longitude)
	if !ok || name == "" {
		return "", false
	}
	if _, ok := r.load(name); !ok {
		return "", false
	}
	return name, true
}

// Location returns the loaded location for the venue's resolved zone.
func (r *Resolver) Location(venue VenueZone) *time.Location {
	loc, _ := r.load(r.Resolve(venue))
	return loc
}

// LocationFor loads a zone by name, falling back to the default zone.
func (r *Resolver) LocationFor(name string) *time.Location {
	if loc, ok := r.load(strings.TrimSpace(name)); ok {
		return loc
	}
	loc, _ := r.load(r.defaultZone)
	return loc
}

// Valid reports whether name is a loadable IANA zone.
func (r *Resolver) Valid(name string) bool {
	_, ok := r.load(strings.TrimSpace(name))
	return ok
}

func (r *Resolver) load(name string) (*time.Location, bool) {
	if name == "" {
		return nil, false
	}
	r.mu.RLock()
	loc, ok := r.locations[name]
	r.mu.RUnlock()
	if ok {
		return loc, true
	}

	loaded, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	r.mu.Lock()
	r.locations[name] = loaded
	r.mu.Unlock()
	return loaded, true
}
