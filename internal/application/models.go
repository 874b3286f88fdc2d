package application

import (
	"time"

	"github.com/example/venue-booking/internal/timeslot"
)

// Venue is a bookable location with its own time zone.
type Venue struct {
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

// VenueInput captures caller provided venue fields.
type VenueInput struct {
	Name      string
	TimeZone  string
	Latitude  *float64
	Longitude *float64
	Address   string
	Website   string
}

// UpdateVenueParams wraps the data required to update a venue.
type UpdateVenueParams struct {
	VenueRef string
	Input    VenueInput
}

// Booking occupies a venue for [Start, End). Both instants are UTC.
type Booking struct {
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

// BookingInput captures caller provided booking fields. Date and times are
// venue-local; End may be absent.
type BookingInput struct {
	VenueID     string
	ArtistName  string
	Description string
	TicketURL   string
	Date        string
	Start       timeslot.TimeInput
	End         timeslot.TimeInput
}

// UpdateBookingParams wraps the data required to update a booking.
type UpdateBookingParams struct {
	BookingID string
	Input     BookingInput
}

// BookingScope selects which part of a venue's calendar to list.
type BookingScope string

const (
	// ScopeUpcoming lists bookings that have not ended, soonest first.
	ScopeUpcoming BookingScope = "upcoming"
	// ScopePast lists bookings that have ended, most recent first.
	ScopePast BookingScope = "past"
	// ScopeAll lists every booking by start.
	ScopeAll BookingScope = "all"
)

// ListVenueBookingsParams wraps the data required to list a venue's bookings.
type ListVenueBookingsParams struct {
	VenueRef string
	Scope    BookingScope
}

// LocalBooking pairs a booking with venue-local renderings of its interval.
type LocalBooking struct {
	Booking
	Venue      Venue
	StartLocal time.Time
	EndLocal   time.Time
}

// Conflict describes an existing booking that overlaps a candidate interval,
// rendered in the venue's zone for display.
type Conflict struct {
	BookingID  string
	ArtistName string
	VenueID    string
	VenueName  string
	VenueSlug  string
	Start      time.Time
	End        time.Time
	Date       string
	StartLabel string
	EndLabel   string
}

// ConflictQuery is the raw input of a live conflict check.
type ConflictQuery struct {
	VenueID   string
	VenueSlug string
	Date      string
	StartTime string
	EndTime   string
	ExcludeID string
}

// ImportRowStatus tracks an imported candidate through approval.
type ImportRowStatus string

const (
	ImportRowProposed ImportRowStatus = "proposed"
	ImportRowCreated  ImportRowStatus = "created"
	ImportRowRejected ImportRowStatus = "rejected"
)

// ImportBatch groups candidate bookings read from one external feed.
type ImportBatch struct {
	ID         string
	VenueID    string
	SourceName string
	CreatedAt  time.Time
}

// ImportRow is one candidate booking awaiting approval.
type ImportRow struct {
	ID              string
	BatchID         string
	VenueID         string
	ArtistName      string
	Date            string
	StartTime       string
	EndTime         string
	StartUTC        *time.Time
	EndUTC          *time.Time
	Status          ImportRowStatus
	SourceURL       string
	RawData         string
	BookingID       *string
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ImportCandidate is one event read from an external feed.
type ImportCandidate struct {
	ArtistName string
	Start      time.Time
	End        *time.Time
	SourceURL  string
	RawData    string
}

// CreateImportParams wraps the data required to create an import batch.
type CreateImportParams struct {
	VenueRef   string
	SourceName string
	Candidates []ImportCandidate
}

// ImportRowView is a row annotated with whether it overlaps a persisted booking.
type ImportRowView struct {
	ImportRow
	HasConflict bool
}

// ImportBatchView is a batch with its annotated rows.
type ImportBatchView struct {
	Batch ImportBatch
	Venue Venue
	Rows  []ImportRowView
}

// ApprovalResult reports the outcome of approving a batch.
type ApprovalResult struct {
	Created  int
	Rejected int
	Skipped  int
}

// VenueImportSummary counts created bookings per venue for a batch.
type VenueImportSummary struct {
	VenueID   string
	VenueName string
	Created   int
}

// PurgeResult reports what a purge removed.
type PurgeResult struct {
	Batches int
}
