package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/venue-booking/internal/scheduler"
	"github.com/example/venue-booking/internal/timeslot"
)

// maxBookingSpan is the first span a date plus two clocks cannot express.
const maxBookingSpan = 24 * time.Hour

// BookingCreator is the write path imports approve rows through.
// *BookingService implements it.
type BookingCreator interface {
	CreateBooking(ctx context.Context, input BookingInput) (Booking, error)
}

// ImportService manages batches of candidate bookings read from external
// feeds. Approval goes through the same validation as manual bookings.
type ImportService struct {
	imports     ImportRepository
	venues      VenueLookup
	creator     BookingCreator
	conflicts   ConflictFinder
	zones       ZoneResolver
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewImportService constructs an import service with the provided dependencies.
func NewImportService(imports ImportRepository, venues VenueLookup, creator BookingCreator, conflicts ConflictFinder, zones ZoneResolver, idGenerator func() string, now func() time.Time) *ImportService {
	return NewImportServiceWithLogger(imports, venues, creator, conflicts, zones, idGenerator, now, nil)
}

// NewImportServiceWithLogger constructs an import service with a specified logger.
func NewImportServiceWithLogger(imports ImportRepository, venues VenueLookup, creator BookingCreator, conflicts ConflictFinder, zones ZoneResolver, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ImportService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ImportService{
		imports:     imports,
		venues:      venues,
		creator:     creator,
		conflicts:   conflicts,
		zones:       zones,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ImportService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ImportService", operation, attrs...)
}

// CreateBatch stores every candidate as a proposed row. Each row keeps the
// venue-local date and clock strings alongside the resolved UTC instants.
func (s *ImportService) CreateBatch(ctx context.Context, params CreateImportParams) (view ImportBatchView, err error) {
	if s == nil || s.imports == nil {
		err = fmt.Errorf("ImportService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateBatch", "venue_ref", params.VenueRef, "source", params.SourceName)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create import batch", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("batch_id", view.Batch.ID).InfoContext(ctx, "import batch created", "rows", len(view.Rows))
	}()

	var venue Venue
	venue, err = resolveVenue(ctx, s.venues, params.VenueRef)
	if err != nil {
		return
	}
	if len(params.Candidates) == 0 {
		vErr := &ValidationError{}
		vErr.add("events", "no events to import")
		err = vErr
		return
	}

	loc := s.location(venue)
	createdAt := s.now()
	batch := ImportBatch{
		ID:         s.idGenerator(),
		VenueID:    venue.ID,
		SourceName: strings.TrimSpace(params.SourceName),
		CreatedAt:  createdAt,
	}

	rows := make([]ImportRow, 0, len(params.Candidates))
	for _, candidate := range params.Candidates {
		if candidate.Start.IsZero() {
			continue
		}
		rows = append(rows, s.proposedRow(batch, loc, candidate, createdAt))
	}

	if err = s.imports.CreateBatch(ctx, batch, rows); err != nil {
		err = mapImportRepoError(err)
		return
	}

	view = ImportBatchView{Batch: batch, Venue: venue, Rows: make([]ImportRowView, 0, len(rows))}
	for _, row := range rows {
		view.Rows = append(view.Rows, ImportRowView{ImportRow: row})
	}
	return
}

func (s *ImportService) proposedRow(batch ImportBatch, loc *time.Location, candidate ImportCandidate, createdAt time.Time) ImportRow {
	startLocal := candidate.Start.In(loc)
	startUTC := candidate.Start.UTC()
	row := ImportRow{
		ID:         s.idGenerator(),
		BatchID:    batch.ID,
		VenueID:    batch.VenueID,
		ArtistName: strings.TrimSpace(candidate.ArtistName),
		Date:       timeslot.DateOf(startLocal).String(),
		StartTime:  startLocal.Format("15:04"),
		StartUTC:   &startUTC,
		Status:     ImportRowProposed,
		SourceURL:  strings.TrimSpace(candidate.SourceURL),
		RawData:    candidate.RawData,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	if candidate.End != nil && candidate.End.After(candidate.Start) {
		endUTC := candidate.End.UTC()
		row.EndTime = candidate.End.In(loc).Format("15:04")
		row.EndUTC = &endUTC
	}
	return row
}

// ShowBatch returns the batch with each row flagged when it overlaps a
// persisted booking.
func (s *ImportService) ShowBatch(ctx context.Context, batchID string) (ImportBatchView, error) {
	if s == nil || s.imports == nil {
		return ImportBatchView{}, fmt.Errorf("ImportService is not configured")
	}
	batch, err := s.imports.GetBatch(ctx, batchID)
	if err != nil {
		return ImportBatchView{}, mapImportRepoError(err)
	}
	venue, err := resolveVenue(ctx, s.venues, batch.VenueID)
	if err != nil {
		return ImportBatchView{}, err
	}
	rows, err := s.imports.ListRows(ctx, batch.ID)
	if err != nil {
		return ImportBatchView{}, mapImportRepoError(err)
	}
	flags, err := s.ConflictFlags(ctx, rows)
	if err != nil {
		return ImportBatchView{}, err
	}

	view := ImportBatchView{Batch: batch, Venue: venue, Rows: make([]ImportRowView, 0, len(rows))}
	for _, row := range rows {
		view.Rows = append(view.Rows, ImportRowView{ImportRow: row, HasConflict: flags[row.ID]})
	}
	return view, nil
}

// ConflictFlags reports, per row id, whether the row overlaps a persisted
// booking at its venue. Rows without both UTC instants are reported false.
// The flags are informational and never block approval.
func (s *ImportService) ConflictFlags(ctx context.Context, rows []ImportRow) (map[string]bool, error) {
	flags := make(map[string]bool, len(rows))
	for _, row := range rows {
		flags[row.ID] = false
		if row.StartUTC == nil || row.EndUTC == nil || s.conflicts == nil {
			continue
		}
		if !row.EndUTC.After(*row.StartUTC) {
			continue
		}
		found, err := s.conflicts.FindConflicts(ctx, scheduler.Query{
			VenueID:  row.VenueID,
			Interval: timeslot.Interval{Start: row.StartUTC.UTC(), End: row.EndUTC.UTC()},
		})
		if err != nil {
			return nil, fmt.Errorf("check import row %s: %w", row.ID, err)
		}
		flags[row.ID] = len(found) > 0
	}
	return flags, nil
}

// ApproveAll turns every proposed row into a booking. Rows the write path
// rejects are marked rejected with the reason; rows already decided are
// skipped. Storage failures abort the run.
func (s *ImportService) ApproveAll(ctx context.Context, batchID string) (result ApprovalResult, err error) {
	if s == nil || s.imports == nil || s.creator == nil {
		err = fmt.Errorf("ImportService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "ApproveAll", "batch_id", batchID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "import approval aborted", "error", err, "error_kind", ErrorKind(err),
				"created", result.Created, "rejected", result.Rejected)
			return
		}
		logger.InfoContext(ctx, "import batch approved",
			"created", result.Created, "rejected", result.Rejected, "skipped", result.Skipped)
	}()

	var batch ImportBatch
	batch, err = s.imports.GetBatch(ctx, batchID)
	if err != nil {
		err = mapImportRepoError(err)
		return
	}
	var venue Venue
	venue, err = resolveVenue(ctx, s.venues, batch.VenueID)
	if err != nil {
		return
	}
	var rows []ImportRow
	rows, err = s.imports.ListRows(ctx, batch.ID)
	if err != nil {
		err = mapImportRepoError(err)
		return
	}

	loc := s.location(venue)
	for _, row := range rows {
		if row.Status != ImportRowProposed {
			result.Skipped++
			continue
		}

		row.UpdatedAt = s.now()
		if reason := unrepresentableSpan(row); reason != "" {
			row.Status = ImportRowRejected
			row.RejectionReason = reason
			result.Rejected++
			logger.WarnContext(ctx, "import row rejected", "row_id", row.ID, "artist_name", row.ArtistName,
				"reason", row.RejectionReason)
			if err = s.imports.UpdateRow(ctx, row); err != nil {
				err = mapImportRepoError(err)
				return
			}
			continue
		}

		booking, createErr := s.creator.CreateBooking(ctx, approvalInput(row, loc))
		switch {
		case createErr == nil:
			id := booking.ID
			row.Status = ImportRowCreated
			row.BookingID = &id
			row.RejectionReason = ""
			result.Created++
		case isRejection(createErr):
			row.Status = ImportRowRejected
			row.RejectionReason = rejectionReason(createErr)
			result.Rejected++
			logger.WarnContext(ctx, "import row rejected", "row_id", row.ID, "artist_name", row.ArtistName,
				"reason", row.RejectionReason)
		default:
			err = fmt.Errorf("approve import row %s: %w", row.ID, createErr)
			return
		}

		if err = s.imports.UpdateRow(ctx, row); err != nil {
			err = mapImportRepoError(err)
			return
		}
	}
	return
}

// unrepresentableSpan reports why a row cannot be booked as one date with a
// start and end clock. Spans of a day or more would be shortened by the
// overnight rule.
func unrepresentableSpan(row ImportRow) string {
	if row.StartUTC == nil || row.EndUTC == nil {
		return ""
	}
	if row.EndUTC.Sub(*row.StartUTC) >= maxBookingSpan {
		return "event spans 24 hours or more"
	}
	return ""
}

// approvalInput rebuilds a booking request from a row. The start comes from
// the resolved UTC instant when present, else from the stored date and
// clock. The end comes from the resolved UTC instant when present, else the
// write path's default duration applies.
func approvalInput(row ImportRow, loc *time.Location) BookingInput {
	input := BookingInput{
		VenueID:    row.VenueID,
		ArtistName: row.ArtistName,
		Date:       row.Date,
		Start:      timeslot.FromString(row.StartTime),
	}
	if source := strings.ToLower(row.SourceURL); strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		input.TicketURL = row.SourceURL
	}
	if row.StartUTC == nil {
		return input
	}
	start := row.StartUTC.UTC()
	if row.EndUTC != nil && row.EndUTC.After(start) {
		req := timeslot.LocalRequest(timeslot.Interval{Start: start, End: row.EndUTC.UTC()}, loc)
		input.Date, input.Start, input.End = req.Date, req.Start, req.End
		return input
	}
	local := start.In(loc)
	input.Date = timeslot.DateOf(local).String()
	input.Start = timeslot.FromTime(local)
	return input
}

func isRejection(err error) bool {
	if errors.Is(err, ErrVenueNotFound) || errors.Is(err, timeslot.ErrNonPositiveDuration) {
		return true
	}
	var conflictErr *SchedulingConflictError
	if errors.As(err, &conflictErr) {
		return true
	}
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

func rejectionReason(err error) string {
	var vErr *ValidationError
	if errors.As(err, &vErr) && vErr.HasErrors() {
		fields := make([]string, 0, len(vErr.FieldErrors))
		for field := range vErr.FieldErrors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		parts := make([]string, 0, len(fields))
		for _, field := range fields {
			parts = append(parts, field+": "+vErr.FieldErrors[field])
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}

// Summary counts created bookings per venue for a batch.
func (s *ImportService) Summary(ctx context.Context, batchID string) ([]VenueImportSummary, error) {
	if s == nil || s.imports == nil {
		return nil, fmt.Errorf("ImportService is not configured")
	}
	rows, err := s.imports.ListRows(ctx, batchID)
	if err != nil {
		return nil, mapImportRepoError(err)
	}

	counts := make(map[string]int)
	for _, row := range rows {
		if row.Status == ImportRowCreated {
			counts[row.VenueID]++
		}
	}

	summaries := make([]VenueImportSummary, 0, len(counts))
	for venueID, created := range counts {
		summary := VenueImportSummary{VenueID: venueID, Created: created}
		if venue, err := resolveVenue(ctx, s.venues, venueID); err == nil {
			summary.VenueName = venue.Name
		} else if !errors.Is(err, ErrVenueNotFound) {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].VenueName == summaries[j].VenueName {
			return summaries[i].VenueID < summaries[j].VenueID
		}
		return summaries[i].VenueName < summaries[j].VenueName
	})
	return summaries, nil
}

// DeleteRow removes one row from a batch.
func (s *ImportService) DeleteRow(ctx context.Context, batchID, rowID string) error {
	if s == nil || s.imports == nil {
		return fmt.Errorf("ImportService is not configured")
	}
	rows, err := s.imports.ListRows(ctx, batchID)
	if err != nil {
		return mapImportRepoError(err)
	}
	for _, row := range rows {
		if row.ID == rowID {
			return mapImportRepoError(s.imports.DeleteRow(ctx, rowID))
		}
	}
	return ErrNotFound
}

// PurgeBatch deletes a batch and its rows. Bookings created from it remain.
func (s *ImportService) PurgeBatch(ctx context.Context, batchID string) (err error) {
	if s == nil || s.imports == nil {
		return fmt.Errorf("ImportService is not configured")
	}
	logger := s.loggerWith(ctx, "PurgeBatch", "batch_id", batchID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to purge import batch", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "import batch purged")
	}()
	return mapImportRepoError(s.imports.DeleteBatch(ctx, batchID))
}

// PurgeOlderThan deletes batches created more than retention ago.
func (s *ImportService) PurgeOlderThan(ctx context.Context, retention time.Duration) (result PurgeResult, err error) {
	if s == nil || s.imports == nil {
		err = fmt.Errorf("ImportService is not configured")
		return
	}
	if retention <= 0 {
		err = fmt.Errorf("retention must be positive")
		return
	}

	cutoff := s.now().Add(-retention)
	logger := s.loggerWith(ctx, "PurgeOlderThan", "cutoff", cutoff.UTC().Format(time.RFC3339))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "import purge failed", "error", err, "purged", result.Batches)
			return
		}
		if result.Batches > 0 {
			logger.InfoContext(ctx, "import batches purged", "purged", result.Batches)
		}
	}()

	var batches []ImportBatch
	batches, err = s.imports.ListBatchesCreatedBefore(ctx, cutoff)
	if err != nil {
		return
	}
	for _, batch := range batches {
		if err = ctx.Err(); err != nil {
			return
		}
		if err = s.imports.DeleteBatch(ctx, batch.ID); err != nil {
			if isNotFoundError(err) {
				err = nil
				continue
			}
			return
		}
		result.Batches++
	}
	return
}

func (s *ImportService) location(venue Venue) *time.Location {
	if s.zones == nil {
		return time.UTC
	}
	return s.zones.Location(venueZone(venue))
}

func mapImportRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFoundError(err) {
		return ErrNotFound
	}
	return err
}
