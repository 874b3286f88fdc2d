package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/venue-booking/internal/application"
	"github.com/example/venue-booking/internal/timeslot"
)

type bookingService interface {
	CreateBooking(ctx context.Context, input application.BookingInput) (application.Booking, error)
	UpdateBooking(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	GetBooking(ctx context.Context, id string) (application.LocalBooking, error)
}

type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "venue_id", req.VenueID)
	booking, err := h.service.CreateBooking(r.Context(), req.toInput())
	if err != nil {
		logger.WarnContext(r.Context(), "booking creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("booking_id", booking.ID).InfoContext(r.Context(), "booking created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{Event: toBookingDTO(application.LocalBooking{Booking: booking})})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	logger := h.log(r.Context(), "Get", "booking_id", id)
	booking, err := h.service.GetBooking(r.Context(), id)
	if err != nil {
		logger.WarnContext(r.Context(), "booking lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Event: toBookingDTO(booking)})
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing booking id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "booking_id", id, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode booking update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "booking_id", id, "venue_id", req.VenueID)
	booking, err := h.service.UpdateBooking(r.Context(), application.UpdateBookingParams{BookingID: id, Input: req.toInput()})
	if err != nil {
		logger.WarnContext(r.Context(), "booking update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Event: toBookingDTO(application.LocalBooking{Booking: booking})})
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	logger := h.log(r.Context(), "Delete", "booking_id", id)
	if err := h.service.DeleteBooking(r.Context(), id); err != nil {
		logger.ErrorContext(r.Context(), "booking delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// bookingRequest carries venue-local wall-clock values as typed in a form.
type bookingRequest struct {
	VenueID     string `json:"venue_id"`
	ArtistName  string `json:"artist_name"`
	Description string `json:"description"`
	TicketURL   string `json:"ticket_url"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

func (r bookingRequest) toInput() application.BookingInput {
	return application.BookingInput{
		VenueID:     strings.TrimSpace(r.VenueID),
		ArtistName:  strings.TrimSpace(r.ArtistName),
		Description: strings.TrimSpace(r.Description),
		TicketURL:   strings.TrimSpace(r.TicketURL),
		Date:        strings.TrimSpace(r.Date),
		Start:       timeslot.FromString(r.StartTime),
		End:         timeslot.FromString(r.EndTime),
	}
}

type bookingResponse struct {
	Event bookingDTO `json:"event"`
}

type listBookingsResponse struct {
	Events []bookingDTO `json:"events"`
}

type bookingDTO struct {
	ID            string `json:"id"`
	VenueID       string `json:"venue_id"`
	ArtistName    string `json:"artist_name"`
	Description   string `json:"description,omitempty"`
	TicketURL     string `json:"ticket_url,omitempty"`
	LocalDate     string `json:"local_date"`
	StartAt       string `json:"start_at"`
	EndAt         string `json:"end_at"`
	StartsAtLocal string `json:"starts_at_local,omitempty"`
	EndsAtLocal   string `json:"ends_at_local,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func toBookingDTO(b application.LocalBooking) bookingDTO {
	return bookingDTO{
		ID:            b.ID,
		VenueID:       b.VenueID,
		ArtistName:    b.ArtistName,
		Description:   b.Description,
		TicketURL:     b.TicketURL,
		LocalDate:     b.LocalDate,
		StartAt:       b.Start.UTC().Format(time.RFC3339),
		EndAt:         b.End.UTC().Format(time.RFC3339),
		StartsAtLocal: formatLocal(b.StartLocal),
		EndsAtLocal:   formatLocal(b.EndLocal),
		CreatedAt:     b.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     b.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toBookingDTOs(bookings []application.LocalBooking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingDTO(b))
	}
	return out
}

func formatLocal(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
