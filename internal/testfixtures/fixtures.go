package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/venue-booking/internal/application"
	"github.com/example/venue-booking/internal/persistence"
)

var (
	venueCounter   uint64
	bookingCounter uint64
	batchCounter   uint64
	rowCounter     uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Venue fixtures -----------------------------

// VenueFixture represents a deterministic venue record that can be
// materialised for application or persistence tests.
type VenueFixture struct {
	ID        string
	Name      string
	Slug      string
	TimeZone  string
	Latitude  *float64
	Longitude *float64
	Address   string
	Website   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VenueOption configures the generated venue fixture.
type VenueOption func(*VenueFixture)

// NewVenueFixture returns a deterministic venue fixture with optional overrides.
// Venues default to America/Chicago.
func NewVenueFixture(opts ...VenueOption) VenueFixture {
	idx := atomic.AddUint64(&venueCounter, 1)
	id := fmt.Sprintf("venue-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := VenueFixture{
		ID:        id,
		Name:      fmt.Sprintf("Venue %03d", idx),
		Slug:      id,
		TimeZone:  "America/Chicago",
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithVenueID overrides the generated venue ID.
func WithVenueID(id string) VenueOption {
	return func(f *VenueFixture) {
		f.ID = id
	}
}

// WithVenueName overrides the generated name.
func WithVenueName(name string) VenueOption {
	return func(f *VenueFixture) {
		f.Name = name
	}
}

// WithVenueSlug overrides the generated slug.
func WithVenueSlug(slug string) VenueOption {
	return func(f *VenueFixture) {
		f.Slug = slug
	}
}

// WithVenueTimeZone overrides the IANA zone.
func WithVenueTimeZone(zone string) VenueOption {
	return func(f *VenueFixture) {
		f.TimeZone = zone
	}
}

// WithVenueCoordinates sets both latitude and longitude.
func WithVenueCoordinates(lat, lng float64) VenueOption {
	return func(f *VenueFixture) {
		f.Latitude = &lat
		f.Longitude = &lng
	}
}

// WithVenueAddress sets the street address.
func WithVenueAddress(address string) VenueOption {
	return func(f *VenueFixture) {
		f.Address = address
	}
}

// WithVenueTimestamps sets both created and updated timestamps.
func WithVenueTimestamps(created, updated time.Time) VenueOption {
	return func(f *VenueFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Venue value.
func (f VenueFixture) Application() application.Venue {
	return application.Venue{
		ID:        f.ID,
		Name:      f.Name,
		Slug:      f.Slug,
		TimeZone:  f.TimeZone,
		Latitude:  copyFloatPtr(f.Latitude),
		Longitude: copyFloatPtr(f.Longitude),
		Address:   f.Address,
		Website:   f.Website,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Venue value.
func (f VenueFixture) Persistence() persistence.Venue {
	return persistence.Venue{
		ID:        f.ID,
		Name:      f.Name,
		Slug:      f.Slug,
		TimeZone:  f.TimeZone,
		Latitude:  copyFloatPtr(f.Latitude),
		Longitude: copyFloatPtr(f.Longitude),
		Address:   f.Address,
		Website:   f.Website,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Input returns the fixture as an application.VenueInput.
func (f VenueFixture) Input() application.VenueInput {
	return application.VenueInput{
		Name:      f.Name,
		TimeZone:  f.TimeZone,
		Latitude:  copyFloatPtr(f.Latitude),
		Longitude: copyFloatPtr(f.Longitude),
		Address:   f.Address,
		Website:   f.Website,
	}
}

// ---------------------------- Booking fixtures ----------------------------

// BookingFixture represents a deterministic booking. Start and End are UTC.
type BookingFixture struct {
	ID          string
	VenueID     string
	ArtistName  string
	Description string
	TicketURL   string
	LocalDate   string
	Start       time.Time
	End         time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BookingOption configures the generated booking fixture.
type BookingOption func(*BookingFixture)

// NewBookingFixture returns a deterministic three hour booking. Each fixture
// starts one day after the previous one so defaults never overlap.
func NewBookingFixture(opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	id := fmt.Sprintf("booking-%03d", idx)
	start := referenceTime.Truncate(time.Hour).Add(time.Duration(idx) * 24 * time.Hour)
	fixture := BookingFixture{
		ID:         id,
		VenueID:    "venue-001",
		ArtistName: fmt.Sprintf("Artist %03d", idx),
		LocalDate:  start.Format("2006-01-02"),
		Start:      start,
		End:        start.Add(3 * time.Hour),
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBookingID overrides the booking ID.
func WithBookingID(id string) BookingOption {
	return func(f *BookingFixture) {
		f.ID = id
	}
}

// WithBookingVenue sets the venue the booking occupies.
func WithBookingVenue(venueID string) BookingOption {
	return func(f *BookingFixture) {
		f.VenueID = venueID
	}
}

// WithBookingArtist overrides the artist name.
func WithBookingArtist(name string) BookingOption {
	return func(f *BookingFixture) {
		f.ArtistName = name
	}
}

// WithBookingInterval sets the UTC interval and derives the local date from
// start in UTC.
func WithBookingInterval(start, end time.Time) BookingOption {
	return func(f *BookingFixture) {
		f.Start = start.UTC()
		f.End = end.UTC()
		f.LocalDate = f.Start.Format("2006-01-02")
	}
}

// WithBookingLocalDate overrides the stored venue-local date.
func WithBookingLocalDate(date string) BookingOption {
	return func(f *BookingFixture) {
		f.LocalDate = date
	}
}

// WithBookingTicketURL sets the ticket link.
func WithBookingTicketURL(url string) BookingOption {
	return func(f *BookingFixture) {
		f.TicketURL = url
	}
}

// Application returns the fixture as an application.Booking value.
func (f BookingFixture) Application() application.Booking {
	return application.Booking{
		ID:          f.ID,
		VenueID:     f.VenueID,
		ArtistName:  f.ArtistName,
		Description: f.Description,
		TicketURL:   f.TicketURL,
		LocalDate:   f.LocalDate,
		Start:       f.Start,
		End:         f.End,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Booking value.
func (f BookingFixture) Persistence() persistence.Booking {
	return persistence.Booking{
		ID:          f.ID,
		VenueID:     f.VenueID,
		ArtistName:  f.ArtistName,
		Description: f.Description,
		TicketURL:   f.TicketURL,
		LocalDate:   f.LocalDate,
		Start:       f.Start,
		End:         f.End,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ----------------------------- Import fixtures ----------------------------

// NewImportBatch returns a deterministic batch for venueID.
func NewImportBatch(venueID string) persistence.ImportBatch {
	idx := atomic.AddUint64(&batchCounter, 1)
	return persistence.ImportBatch{
		ID:         fmt.Sprintf("batch-%03d", idx),
		VenueID:    venueID,
		SourceName: fmt.Sprintf("feed-%03d.ics", idx),
		CreatedAt:  referenceTime,
	}
}

// ImportRowOption configures a generated import row.
type ImportRowOption func(*persistence.ImportRow)

// NewImportRow returns a proposed row in batch for venueID.
func NewImportRow(batch persistence.ImportBatch, opts ...ImportRowOption) persistence.ImportRow {
	idx := atomic.AddUint64(&rowCounter, 1)
	start := referenceTime.Truncate(time.Hour).Add(time.Duration(idx) * 24 * time.Hour)
	end := start.Add(3 * time.Hour)
	row := persistence.ImportRow{
		ID:         fmt.Sprintf("row-%03d", idx),
		BatchID:    batch.ID,
		VenueID:    batch.VenueID,
		ArtistName: fmt.Sprintf("Imported %03d", idx),
		Date:       start.Format("2006-01-02"),
		StartTime:  start.Format("15:04"),
		EndTime:    end.Format("15:04"),
		StartUTC:   &start,
		EndUTC:     &end,
		Status:     persistence.ImportRowProposed,
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
	for _, opt := range opts {
		opt(&row)
	}
	return row
}

// WithRowID overrides the row ID.
func WithRowID(id string) ImportRowOption {
	return func(r *persistence.ImportRow) {
		r.ID = id
	}
}

// WithRowSchedule sets the local date and clock strings without UTC instants.
func WithRowSchedule(date, start string) ImportRowOption {
	return func(r *persistence.ImportRow) {
		r.Date = date
		r.StartTime = start
		r.EndTime = ""
		r.StartUTC = nil
		r.EndUTC = nil
	}
}

// WithRowStatus overrides the row status.
func WithRowStatus(status persistence.ImportRowStatus) ImportRowOption {
	return func(r *persistence.ImportRow) {
		r.Status = status
	}
}

func copyFloatPtr(src *float64) *float64 {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
