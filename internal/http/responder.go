package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/venue-booking/internal/application"
	"github.com/example/venue-booking/internal/timeslot"
)

var (
	errBadRequestBody   = errors.New("invalid request body")
	errMissingID        = errors.New("missing identifier")
	errMissingVenue     = errors.New("venue is required")
	errMissingAdminAuth = errors.New("admin token required")
)

// Messages the form scripts match on.
const (
	badDateMessage         = "Bad date"
	badTimeMessage         = "Bad time"
	tooManyRequestsMessage = "Too many requests"
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var conflictErr *application.SchedulingConflictError
	if errors.As(err, &conflictErr) {
		r.writeJSON(ctx, w, http.StatusConflict, conflictErrorResponse{
			ErrorCode: "SCHEDULING_CONFLICT",
			Message:   conflictErr.Error(),
			Conflicts: toConflictDTOs(conflictErr.Conflicts),
		})
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "validation failed",
			Errors:    vErr.FieldErrors,
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{ErrorCode: "UNAUTHORIZED", Message: "not authorised"})
	case errors.Is(err, application.ErrVenueNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{ErrorCode: "VENUE_NOT_FOUND", Message: "venue not found"})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: "not found"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "ALREADY_EXISTS", Message: "already exists"})
	case errors.Is(err, timeslot.ErrInvalidDate):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{ErrorCode: "INVALID_DATE", Message: badDateMessage})
	case errors.Is(err, timeslot.ErrInvalidTimeFormat):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{ErrorCode: "INVALID_TIME", Message: badTimeMessage})
	default:
		// Includes timeslot.ErrNonPositiveDuration, which the write path
		// must never produce for valid input.
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err, "error_kind", application.ErrorKind(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	return requestLogger(ctx, r.logger)
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type conflictErrorResponse struct {
	ErrorCode string        `json:"error_code"`
	Message   string        `json:"message"`
	Conflicts []conflictDTO `json:"conflicts"`
}

type conflictDTO struct {
	ID         string `json:"id"`
	ArtistName string `json:"artist_name"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Venue      string `json:"venue"`
	URL        string `json:"url"`
}

func toConflictDTOs(conflicts []application.Conflict) []conflictDTO {
	out := make([]conflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictDTO{
			ID:         c.BookingID,
			ArtistName: c.ArtistName,
			Date:       c.Date,
			StartTime:  c.StartLabel,
			EndTime:    c.EndLabel,
			Venue:      c.VenueName,
			URL:        "/events/" + c.BookingID,
		})
	}
	return out
}
