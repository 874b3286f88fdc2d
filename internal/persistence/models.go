package persistence

import "time"

// Venue is a bookable location.
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

// Booking occupies a venue for the half-open interval [Start, End). Both
// instants are UTC.
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
