package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/venue-booking/internal/application"
	"github.com/example/venue-booking/internal/calendar"
)

// maxFeedBytes caps an uploaded iCalendar document.
const maxFeedBytes = 5 << 20

type importService interface {
	CreateBatch(ctx context.Context, params application.CreateImportParams) (application.ImportBatchView, error)
	ShowBatch(ctx context.Context, batchID string) (application.ImportBatchView, error)
	ApproveAll(ctx context.Context, batchID string) (application.ApprovalResult, error)
	Summary(ctx context.Context, batchID string) ([]application.VenueImportSummary, error)
	DeleteRow(ctx context.Context, batchID, rowID string) error
	PurgeBatch(ctx context.Context, batchID string) error
}

type venueLocator interface {
	GetVenue(ctx context.Context, ref string) (application.Venue, error)
	Location(venue application.Venue) *time.Location
}

// ImportHandler serves the admin import workflow.
type ImportHandler struct {
	service   importService
	venues    venueLocator
	responder responder
	logger    *slog.Logger
}

func NewImportHandler(service importService, venues venueLocator, logger *slog.Logger) *ImportHandler {
	base := defaultLogger(logger)
	return &ImportHandler{service: service, venues: venues, responder: newResponder(base), logger: base}
}

func (h *ImportHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ImportHandler", operation, attrs...)
}

// Create reads an iCalendar body and stores its events as proposed rows for
// the venue named by the venue query parameter.
func (h *ImportHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil || h.venues == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	ref := strings.TrimSpace(q.Get("venue"))
	if ref == "" {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "import without venue")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingVenue)
		return
	}
	logger := h.log(r.Context(), "Create", "venue_ref", ref)

	venue, err := h.venues.GetVenue(r.Context(), ref)
	if err != nil {
		logger.WarnContext(r.Context(), "import venue lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	feed, err := calendar.Parse(http.MaxBytesReader(w, r.Body, maxFeedBytes), h.venues.Location(venue))
	if err != nil {
		logger.With("error_kind", "bad_request").WarnContext(r.Context(), "failed to parse import feed", "error", err)
		if errors.Is(err, calendar.ErrEmptyFeed) {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("feed is empty"))
			return
		}
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("feed is not a valid iCalendar document"))
		return
	}

	source := strings.TrimSpace(q.Get("source"))
	if source == "" {
		source = feed.Name
	}

	candidates := make([]application.ImportCandidate, 0, len(feed.Events))
	for _, ev := range feed.Events {
		candidates = append(candidates, application.ImportCandidate{
			ArtistName: ev.Summary,
			Start:      ev.Start,
			End:        ev.End,
			SourceURL:  ev.URL,
			RawData:    ev.Raw,
		})
	}

	view, err := h.service.CreateBatch(r.Context(), application.CreateImportParams{
		VenueRef:   venue.ID,
		SourceName: source,
		Candidates: candidates,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "import batch creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("batch_id", view.Batch.ID, "rows", len(view.Rows), "skipped", feed.Skipped).InfoContext(r.Context(), "import batch created")
	resp := toImportBatchResponse(view)
	resp.Skipped = feed.Skipped
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, resp)
}

func (h *ImportHandler) Show(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	view, err := h.service.ShowBatch(r.Context(), id)
	if err != nil {
		h.log(r.Context(), "Show", "batch_id", id).WarnContext(r.Context(), "import batch lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toImportBatchResponse(view))
}

func (h *ImportHandler) ApproveAll(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	logger := h.log(r.Context(), "ApproveAll", "batch_id", id)
	result, err := h.service.ApproveAll(r.Context(), id)
	if err != nil {
		logger.ErrorContext(r.Context(), "import approval failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "import batch approved", "created", result.Created, "rejected", result.Rejected, "skipped", result.Skipped)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, approvalResponse{
		Created:  result.Created,
		Rejected: result.Rejected,
		Skipped:  result.Skipped,
	})
}

func (h *ImportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	summaries, err := h.service.Summary(r.Context(), id)
	if err != nil {
		h.log(r.Context(), "Summary", "batch_id", id).WarnContext(r.Context(), "import summary failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]venueSummaryDTO, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, venueSummaryDTO{VenueID: s.VenueID, VenueName: s.VenueName, Created: s.Created})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, summaryResponse{Venues: out})
}

func (h *ImportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	logger := h.log(r.Context(), "Delete", "batch_id", id)
	if err := h.service.PurgeBatch(r.Context(), id); err != nil {
		logger.ErrorContext(r.Context(), "import batch delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "import batch deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ImportHandler) DeleteRow(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	batchID := strings.TrimSpace(chi.URLParam(r, "id"))
	rowID := strings.TrimSpace(chi.URLParam(r, "rowID"))
	logger := h.log(r.Context(), "DeleteRow", "batch_id", batchID, "row_id", rowID)
	if err := h.service.DeleteRow(r.Context(), batchID, rowID); err != nil {
		logger.ErrorContext(r.Context(), "import row delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "import row deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type importBatchResponse struct {
	Batch   importBatchDTO `json:"batch"`
	Venue   venueDTO       `json:"venue"`
	Rows    []importRowDTO `json:"rows"`
	Skipped int            `json:"skipped,omitempty"`
}

type importBatchDTO struct {
	ID         string `json:"id"`
	VenueID    string `json:"venue_id"`
	SourceName string `json:"source_name,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type importRowDTO struct {
	ID              string  `json:"id"`
	ArtistName      string  `json:"artist_name"`
	Date            string  `json:"date"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time,omitempty"`
	StartAt         string  `json:"start_at,omitempty"`
	EndAt           string  `json:"end_at,omitempty"`
	Status          string  `json:"status"`
	SourceURL       string  `json:"source_url,omitempty"`
	BookingID       *string `json:"booking_id,omitempty"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
	HasConflict     bool    `json:"has_conflict"`
}

type approvalResponse struct {
	Created  int `json:"created"`
	Rejected int `json:"rejected"`
	Skipped  int `json:"skipped"`
}

type summaryResponse struct {
	Venues []venueSummaryDTO `json:"venues"`
}

type venueSummaryDTO struct {
	VenueID   string `json:"venue_id"`
	VenueName string `json:"venue_name"`
	Created   int    `json:"created"`
}

func toImportBatchResponse(view application.ImportBatchView) importBatchResponse {
	rows := make([]importRowDTO, 0, len(view.Rows))
	for _, row := range view.Rows {
		rows = append(rows, importRowDTO{
			ID:              row.ID,
			ArtistName:      row.ArtistName,
			Date:            row.Date,
			StartTime:       row.StartTime,
			EndTime:         row.EndTime,
			StartAt:         formatOptionalUTC(row.StartUTC),
			EndAt:           formatOptionalUTC(row.EndUTC),
			Status:          string(row.Status),
			SourceURL:       row.SourceURL,
			BookingID:       row.BookingID,
			RejectionReason: row.RejectionReason,
			HasConflict:     row.HasConflict,
		})
	}
	return importBatchResponse{
		Batch: importBatchDTO{
			ID:         view.Batch.ID,
			VenueID:    view.Batch.VenueID,
			SourceName: view.Batch.SourceName,
			CreatedAt:  view.Batch.CreatedAt.UTC().Format(time.RFC3339),
		},
		Venue: toVenueDTO(view.Venue),
		Rows:  rows,
	}
}

func formatOptionalUTC(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
