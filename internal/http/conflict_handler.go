package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/venue-booking/internal/application"
	"github.com/example/venue-booking/internal/timeslot"
)

type conflictQueryService interface {
	FindConflicts(ctx context.Context, query application.ConflictQuery) ([]application.Conflict, error)
}

type slotOptionsService interface {
	DateOptions(ctx context.Context, venueRef string) (application.SlotOptions, error)
	StartOptions(ctx context.Context, venueRef, date string) (application.SlotOptions, error)
	EndOptions(ctx context.Context, venueRef, date, start string) (application.SlotOptions, error)
}

// ConflictHandler serves the read-only helpers behind the booking form: the
// advisory conflict check and the date and time pickers.
type ConflictHandler struct {
	conflicts conflictQueryService
	slots     slotOptionsService
	responder responder
	logger    *slog.Logger
}

func NewConflictHandler(conflicts conflictQueryService, slots slotOptionsService, logger *slog.Logger) *ConflictHandler {
	base := defaultLogger(logger)
	return &ConflictHandler{conflicts: conflicts, slots: slots, responder: newResponder(base), logger: base}
}

func (h *ConflictHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ConflictHandler", operation, attrs...)
}

// Conflicts reports bookings overlapping the slot described by the query
// string. Incomplete input is not an error.
func (h *ConflictHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.conflicts == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	query := application.ConflictQuery{
		VenueID:   strings.TrimSpace(q.Get("venue_id")),
		VenueSlug: strings.TrimSpace(q.Get("venue_slug")),
		Date:      strings.TrimSpace(q.Get("date")),
		StartTime: strings.TrimSpace(q.Get("start_time")),
		EndTime:   strings.TrimSpace(q.Get("end_time")),
		ExcludeID: strings.TrimSpace(q.Get("exclude_id")),
	}

	conflicts, err := h.conflicts.FindConflicts(r.Context(), query)
	if err != nil {
		h.log(r.Context(), "Conflicts", "venue_id", query.VenueID, "venue_slug", query.VenueSlug).
			WarnContext(r.Context(), "conflict check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.writeConflictError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, conflictsResponse{OK: true, Conflicts: toConflictDTOs(conflicts)})
}

func (h *ConflictHandler) writeConflictError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timeslot.ErrInvalidDate):
		h.responder.writeJSON(ctx, w, http.StatusUnprocessableEntity, conflictsFailure{Error: badDateMessage})
	case errors.Is(err, timeslot.ErrInvalidTimeFormat):
		h.responder.writeJSON(ctx, w, http.StatusUnprocessableEntity, conflictsFailure{Error: badTimeMessage})
	case errors.Is(err, application.ErrVenueNotFound):
		h.responder.writeJSON(ctx, w, http.StatusNotFound, conflictsFailure{Error: "Venue not found"})
	default:
		h.responder.writeJSON(ctx, w, http.StatusInternalServerError, conflictsFailure{Error: "internal server error"})
	}
}

func (h *ConflictHandler) DateOptions(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.slots == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ref := venueRefFromQuery(r)
	options, err := h.slots.DateOptions(r.Context(), ref)
	if err != nil {
		h.log(r.Context(), "DateOptions", "venue_ref", ref).WarnContext(r.Context(), "date options failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, dateOptionsResponse{DateOptions: nonNilOptions(options.Options), VenueTimeZone: options.TimeZone})
}

func (h *ConflictHandler) StartTimeOptions(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.slots == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ref := venueRefFromQuery(r)
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	options, err := h.slots.StartOptions(r.Context(), ref, date)
	if err != nil {
		h.log(r.Context(), "StartTimeOptions", "venue_ref", ref).WarnContext(r.Context(), "start time options failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, startTimesResponse{StartTimes: nonNilOptions(options.Options), VenueTimeZone: options.TimeZone})
}

func (h *ConflictHandler) EndTimeOptions(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.slots == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ref := venueRefFromQuery(r)
	q := r.URL.Query()
	options, err := h.slots.EndOptions(r.Context(), ref, strings.TrimSpace(q.Get("date")), strings.TrimSpace(q.Get("start_time")))
	if err != nil {
		h.log(r.Context(), "EndTimeOptions", "venue_ref", ref).WarnContext(r.Context(), "end time options failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, endTimesResponse{EndTimes: nonNilOptions(options.Options), VenueTimeZone: options.TimeZone})
}

// venueRefFromQuery prefers venue_slug over venue_id.
func venueRefFromQuery(r *http.Request) string {
	q := r.URL.Query()
	if slug := strings.TrimSpace(q.Get("venue_slug")); slug != "" {
		return slug
	}
	return strings.TrimSpace(q.Get("venue_id"))
}

func nonNilOptions(options []timeslot.Option) []timeslot.Option {
	if options == nil {
		return []timeslot.Option{}
	}
	return options
}

type conflictsResponse struct {
	OK        bool          `json:"ok"`
	Conflicts []conflictDTO `json:"conflicts"`
}

type conflictsFailure struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type dateOptionsResponse struct {
	DateOptions   []timeslot.Option `json:"date_options"`
	VenueTimeZone string            `json:"venue_timezone"`
}

type startTimesResponse struct {
	StartTimes    []timeslot.Option `json:"start_times"`
	VenueTimeZone string            `json:"venue_timezone"`
}

type endTimesResponse struct {
	EndTimes      []timeslot.Option `json:"end_times"`
	VenueTimeZone string            `json:"venue_timezone"`
}
