package http

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/example/venue-booking/internal/application"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubVenueService struct {
	venues   []application.Venue
	created  application.VenueInput
	createFn func(application.VenueInput) (application.Venue, error)
	getErr   error
	loc      *time.Location
}

func (s *stubVenueService) CreateVenue(_ context.Context, input application.VenueInput) (application.Venue, error) {
	s.created = input
	if s.createFn != nil {
		return s.createFn(input)
	}
	return application.Venue{ID: "venue-1", Name: input.Name, Slug: application.Slugify(input.Name)}, nil
}

func (s *stubVenueService) UpdateVenue(_ context.Context, params application.UpdateVenueParams) (application.Venue, error) {
	for _, v := range s.venues {
		if v.ID == params.VenueRef || v.Slug == params.VenueRef {
			v.Name = params.Input.Name
			return v, nil
		}
	}
	return application.Venue{}, application.ErrVenueNotFound
}

func (s *stubVenueService) GetVenue(_ context.Context, ref string) (application.Venue, error) {
	if s.getErr != nil {
		return application.Venue{}, s.getErr
	}
	for _, v := range s.venues {
		if v.ID == ref || v.Slug == ref {
			return v, nil
		}
	}
	return application.Venue{}, application.ErrVenueNotFound
}

func (s *stubVenueService) ListVenues(context.Context) ([]application.Venue, error) {
	return s.venues, nil
}

func (s *stubVenueService) Location(application.Venue) *time.Location {
	if s.loc == nil {
		return time.UTC
	}
	return s.loc
}

type stubBookingService struct {
	createInput application.BookingInput
	createErr   error
	updateErr   error
	deleteErr   error
	deleted     string
	bookings    map[string]application.LocalBooking
	listParams  application.ListVenueBookingsParams
	listed      []application.LocalBooking
	listErr     error
}

func (s *stubBookingService) CreateBooking(_ context.Context, input application.BookingInput) (application.Booking, error) {
	s.createInput = input
	if s.createErr != nil {
		return application.Booking{}, s.createErr
	}
	return application.Booking{ID: "booking-1", VenueID: input.VenueID, ArtistName: input.ArtistName}, nil
}

func (s *stubBookingService) UpdateBooking(_ context.Context, params application.UpdateBookingParams) (application.Booking, error) {
	if s.updateErr != nil {
		return application.Booking{}, s.updateErr
	}
	return application.Booking{ID: params.BookingID, VenueID: params.Input.VenueID, ArtistName: params.Input.ArtistName}, nil
}

func (s *stubBookingService) DeleteBooking(_ context.Context, id string) error {
	s.deleted = id
	return s.deleteErr
}

func (s *stubBookingService) GetBooking(_ context.Context, id string) (application.LocalBooking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return application.LocalBooking{}, application.ErrNotFound
	}
	return b, nil
}

func (s *stubBookingService) ListVenueBookings(_ context.Context, params application.ListVenueBookingsParams) ([]application.LocalBooking, error) {
	s.listParams = params
	return s.listed, s.listErr
}

type stubConflictService struct {
	query     application.ConflictQuery
	conflicts []application.Conflict
	err       error
}

func (s *stubConflictService) FindConflicts(_ context.Context, query application.ConflictQuery) ([]application.Conflict, error) {
	s.query = query
	return s.conflicts, s.err
}

type stubSlotService struct {
	ref     string
	date    string
	start   string
	options application.SlotOptions
	err     error
}

func (s *stubSlotService) DateOptions(_ context.Context, ref string) (application.SlotOptions, error) {
	s.ref = ref
	return s.options, s.err
}

func (s *stubSlotService) StartOptions(_ context.Context, ref, date string) (application.SlotOptions, error) {
	s.ref, s.date = ref, date
	return s.options, s.err
}

func (s *stubSlotService) EndOptions(_ context.Context, ref, date, start string) (application.SlotOptions, error) {
	s.ref, s.date, s.start = ref, date, start
	return s.options, s.err
}

type stubImportService struct {
	params     application.CreateImportParams
	view       application.ImportBatchView
	approval   application.ApprovalResult
	summaries  []application.VenueImportSummary
	purged     string
	deletedRow [2]string
	err        error
}

func (s *stubImportService) CreateBatch(_ context.Context, params application.CreateImportParams) (application.ImportBatchView, error) {
	s.params = params
	return s.view, s.err
}

func (s *stubImportService) ShowBatch(context.Context, string) (application.ImportBatchView, error) {
	return s.view, s.err
}

func (s *stubImportService) ApproveAll(context.Context, string) (application.ApprovalResult, error) {
	return s.approval, s.err
}

func (s *stubImportService) Summary(context.Context, string) ([]application.VenueImportSummary, error) {
	return s.summaries, s.err
}

func (s *stubImportService) DeleteRow(_ context.Context, batchID, rowID string) error {
	s.deletedRow = [2]string{batchID, rowID}
	return s.err
}

func (s *stubImportService) PurgeBatch(_ context.Context, batchID string) error {
	s.purged = batchID
	return s.err
}

type stubVerifier struct {
	token string
}

func (v stubVerifier) VerifyAdmin(_ context.Context, token string) error {
	if token != v.token {
		return application.ErrUnauthorized
	}
	return nil
}
