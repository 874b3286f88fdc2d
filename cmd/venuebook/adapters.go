package main

import (
	"context"
	"time"

	"github.com/example/venue-booking/internal/application"
	"github.com/example/venue-booking/internal/persistence"
	"github.com/example/venue-booking/internal/scheduler"
)

type venueRepositoryAdapter struct {
	repo persistence.VenueRepository
}

func newVenueRepositoryAdapter(repo persistence.VenueRepository) *venueRepositoryAdapter {
	return &venueRepositoryAdapter{repo: repo}
}

func (a *venueRepositoryAdapter) CreateVenue(ctx context.Context, venue application.Venue) (application.Venue, error) {
	if err := a.repo.CreateVenue(ctx, toPersistenceVenue(venue)); err != nil {
		return application.Venue{}, err
	}
	return a.GetVenue(ctx, venue.ID)
}

func (a *venueRepositoryAdapter) UpdateVenue(ctx context.Context, venue application.Venue) (application.Venue, error) {
	if err := a.repo.UpdateVenue(ctx, toPersistenceVenue(venue)); err != nil {
		return application.Venue{}, err
	}
	return a.GetVenue(ctx, venue.ID)
}

func (a *venueRepositoryAdapter) GetVenue(ctx context.Context, id string) (application.Venue, error) {
	stored, err := a.repo.GetVenue(ctx, id)
	if err != nil {
		return application.Venue{}, err
	}
	return toApplicationVenue(stored), nil
}

func (a *venueRepositoryAdapter) GetVenueBySlug(ctx context.Context, slug string) (application.Venue, error) {
	stored, err := a.repo.GetVenueBySlug(ctx, slug)
	if err != nil {
		return application.Venue{}, err
	}
	return toApplicationVenue(stored), nil
}

func (a *venueRepositoryAdapter) ListVenues(ctx context.Context) ([]application.Venue, error) {
	models, err := a.repo.ListVenues(ctx)
	if err != nil {
		return nil, err
	}
	venues := make([]application.Venue, 0, len(models))
	for _, model := range models {
		venues = append(venues, toApplicationVenue(model))
	}
	return venues, nil
}

type bookingRepositoryAdapter struct {
	repo persistence.BookingRepository
}

func newBookingRepositoryAdapter(repo persistence.BookingRepository) *bookingRepositoryAdapter {
	return &bookingRepositoryAdapter{repo: repo}
}

func (a *bookingRepositoryAdapter) CreateBooking(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := a.repo.CreateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, err
	}
	return a.GetBooking(ctx, booking.ID)
}

func (a *bookingRepositoryAdapter) UpdateBooking(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := a.repo.UpdateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, err
	}
	return a.GetBooking(ctx, booking.ID)
}

func (a *bookingRepositoryAdapter) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	stored, err := a.repo.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (a *bookingRepositoryAdapter) DeleteBooking(ctx context.Context, id string) error {
	return a.repo.DeleteBooking(ctx, id)
}

func (a *bookingRepositoryAdapter) ListBookings(ctx context.Context, filter application.BookingFilter) ([]application.Booking, error) {
	models, err := a.repo.ListBookings(ctx, persistence.BookingFilter{
		VenueID:    filter.VenueID,
		EndsAfter:  filter.EndsAfter,
		EndsBefore: filter.EndsBefore,
	})
	if err != nil {
		return nil, err
	}
	bookings := make([]application.Booking, 0, len(models))
	for _, model := range models {
		bookings = append(bookings, toApplicationBooking(model))
	}
	return bookings, nil
}

func (a *bookingRepositoryAdapter) CountBookings(ctx context.Context, venueID string) (int, error) {
	return a.repo.CountBookings(ctx, venueID)
}

// overlapFinderAdapter feeds the conflict detector from the storage overlap
// query.
type overlapFinderAdapter struct {
	repo persistence.BookingRepository
}

func (a overlapFinderAdapter) FindOverlapping(ctx context.Context, query scheduler.Query) ([]scheduler.Booking, error) {
	models, err := a.repo.FindOverlapping(ctx, persistence.OverlapQuery{
		VenueID:   query.VenueID,
		Start:     query.Interval.Start,
		End:       query.Interval.End,
		ExcludeID: query.ExcludeID,
	})
	if err != nil {
		return nil, err
	}
	bookings := make([]scheduler.Booking, 0, len(models))
	for _, model := range models {
		bookings = append(bookings, scheduler.Booking{
			ID:         model.ID,
			VenueID:    model.VenueID,
			ArtistName: model.ArtistName,
			Start:      model.Start,
			End:        model.End,
		})
	}
	return bookings, nil
}

type importRepositoryAdapter struct {
	repo persistence.ImportRepository
}

func newImportRepositoryAdapter(repo persistence.ImportRepository) *importRepositoryAdapter {
	return &importRepositoryAdapter{repo: repo}
}

func (a *importRepositoryAdapter) CreateBatch(ctx context.Context, batch application.ImportBatch, rows []application.ImportRow) error {
	models := make([]persistence.ImportRow, 0, len(rows))
	for _, row := range rows {
		models = append(models, toPersistenceImportRow(row))
	}
	return a.repo.CreateBatch(ctx, toPersistenceImportBatch(batch), models)
}

func (a *importRepositoryAdapter) GetBatch(ctx context.Context, id string) (application.ImportBatch, error) {
	stored, err := a.repo.GetBatch(ctx, id)
	if err != nil {
		return application.ImportBatch{}, err
	}
	return toApplicationImportBatch(stored), nil
}

func (a *importRepositoryAdapter) ListRows(ctx context.Context, batchID string) ([]application.ImportRow, error) {
	models, err := a.repo.ListRows(ctx, batchID)
	if err != nil {
		return nil, err
	}
	rows := make([]application.ImportRow, 0, len(models))
	for _, model := range models {
		rows = append(rows, toApplicationImportRow(model))
	}
	return rows, nil
}

func (a *importRepositoryAdapter) UpdateRow(ctx context.Context, row application.ImportRow) error {
	return a.repo.UpdateRow(ctx, toPersistenceImportRow(row))
}

func (a *importRepositoryAdapter) DeleteRow(ctx context.Context, id string) error {
	return a.repo.DeleteRow(ctx, id)
}

func (a *importRepositoryAdapter) DeleteBatch(ctx context.Context, id string) error {
	return a.repo.DeleteBatch(ctx, id)
}

func (a *importRepositoryAdapter) ListBatchesCreatedBefore(ctx context.Context, cutoff time.Time) ([]application.ImportBatch, error) {
	models, err := a.repo.ListBatchesCreatedBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	batches := make([]application.ImportBatch, 0, len(models))
	for _, model := range models {
		batches = append(batches, toApplicationImportBatch(model))
	}
	return batches, nil
}

func toApplicationVenue(model persistence.Venue) application.Venue {
	return application.Venue{
		ID:        model.ID,
		Name:      model.Name,
		Slug:      model.Slug,
		TimeZone:  model.TimeZone,
		Latitude:  cloneFloat(model.Latitude),
		Longitude: cloneFloat(model.Longitude),
		Address:   model.Address,
		Website:   model.Website,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceVenue(venue application.Venue) persistence.Venue {
	return persistence.Venue{
		ID:        venue.ID,
		Name:      venue.Name,
		Slug:      venue.Slug,
		TimeZone:  venue.TimeZone,
		Latitude:  cloneFloat(venue.Latitude),
		Longitude: cloneFloat(venue.Longitude),
		Address:   venue.Address,
		Website:   venue.Website,
		CreatedAt: venue.CreatedAt,
		UpdatedAt: venue.UpdatedAt,
	}
}

func toApplicationBooking(model persistence.Booking) application.Booking {
	return application.Booking{
		ID:          model.ID,
		VenueID:     model.VenueID,
		ArtistName:  model.ArtistName,
		Description: model.Description,
		TicketURL:   model.TicketURL,
		LocalDate:   model.LocalDate,
		Start:       model.Start,
		End:         model.End,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:          booking.ID,
		VenueID:     booking.VenueID,
		ArtistName:  booking.ArtistName,
		Description: booking.Description,
		TicketURL:   booking.TicketURL,
		LocalDate:   booking.LocalDate,
		Start:       booking.Start,
		End:         booking.End,
		CreatedAt:   booking.CreatedAt,
		UpdatedAt:   booking.UpdatedAt,
	}
}

func toApplicationImportBatch(model persistence.ImportBatch) application.ImportBatch {
	return application.ImportBatch{
		ID:         model.ID,
		VenueID:    model.VenueID,
		SourceName: model.SourceName,
		CreatedAt:  model.CreatedAt,
	}
}

func toPersistenceImportBatch(batch application.ImportBatch) persistence.ImportBatch {
	return persistence.ImportBatch{
		ID:         batch.ID,
		VenueID:    batch.VenueID,
		SourceName: batch.SourceName,
		CreatedAt:  batch.CreatedAt,
	}
}

func toApplicationImportRow(model persistence.ImportRow) application.ImportRow {
	return application.ImportRow{
		ID:              model.ID,
		BatchID:         model.BatchID,
		VenueID:         model.VenueID,
		ArtistName:      model.ArtistName,
		Date:            model.Date,
		StartTime:       model.StartTime,
		EndTime:         model.EndTime,
		StartUTC:        cloneTime(model.StartUTC),
		EndUTC:          cloneTime(model.EndUTC),
		Status:          application.ImportRowStatus(model.Status),
		SourceURL:       model.SourceURL,
		RawData:         model.RawData,
		BookingID:       cloneString(model.BookingID),
		RejectionReason: model.RejectionReason,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toPersistenceImportRow(row application.ImportRow) persistence.ImportRow {
	return persistence.ImportRow{
		ID:              row.ID,
		BatchID:         row.BatchID,
		VenueID:         row.VenueID,
		ArtistName:      row.ArtistName,
		Date:            row.Date,
		StartTime:       row.StartTime,
		EndTime:         row.EndTime,
		StartUTC:        cloneTime(row.StartUTC),
		EndUTC:          cloneTime(row.EndUTC),
		Status:          persistence.ImportRowStatus(row.Status),
		SourceURL:       row.SourceURL,
		RawData:         row.RawData,
		BookingID:       cloneString(row.BookingID),
		RejectionReason: row.RejectionReason,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func cloneString(value *string) *string {
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
	clone := *value
	return &clone
}

func cloneFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
