package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/venue-booking/internal/application"
	"github.com/example/venue-booking/internal/calendar"
)

type venueService interface {
	CreateVenue(ctx context.Context, input application.VenueInput) (application.Venue, error)
	UpdateVenue(ctx context.Context, params application.UpdateVenueParams) (application.Venue, error)
	GetVenue(ctx context.Context, ref string) (application.Venue, error)
	ListVenues(ctx context.Context) ([]application.Venue, error)
	Location(venue application.Venue) *time.Location
}

type venueBookingLister interface {
	ListVenueBookings(ctx context.Context, params application.ListVenueBookingsParams) ([]application.LocalBooking, error)
}

type VenueHandler struct {
	service       venueService
	bookings      venueBookingLister
	publicBaseURL string
	now           func() time.Time
	responder     responder
	logger        *slog.Logger
}

// NewVenueHandler builds the venue endpoints. publicBaseURL prefixes event
// links in calendar feeds.
func NewVenueHandler(service venueService, bookings venueBookingLister, publicBaseURL string, logger *slog.Logger) *VenueHandler {
	base := defaultLogger(logger)
	return &VenueHandler{
		service:       service,
		bookings:      bookings,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
		responder:     newResponder(base),
		logger:        base,
	}
}

func (h *VenueHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "VenueHandler", operation, attrs...)
}

func (h *VenueHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := h.log(r.Context(), "List")
	venues, err := h.service.ListVenues(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "venue list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(venues)).DebugContext(r.Context(), "venues listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listVenuesResponse{Venues: toVenueDTOs(venues)})
}

func (h *VenueHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req venueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode venue request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create")
	venue, err := h.service.CreateVenue(r.Context(), req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "venue creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("venue_id", venue.ID).InfoContext(r.Context(), "venue created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, venueResponse{Venue: toVenueDTO(venue)})
}

func (h *VenueHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ref := strings.TrimSpace(chi.URLParam(r, "ref"))
	logger := h.log(r.Context(), "Get", "venue_ref", ref)
	venue, err := h.service.GetVenue(r.Context(), ref)
	if err != nil {
		logger.WarnContext(r.Context(), "venue lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, venueResponse{Venue: toVenueDTO(venue)})
}

func (h *VenueHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ref := strings.TrimSpace(chi.URLParam(r, "ref"))
	if ref == "" {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing venue ref for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req venueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "venue_ref", ref, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode venue update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "venue_ref", ref)
	venue, err := h.service.UpdateVenue(r.Context(), application.UpdateVenueParams{VenueRef: ref, Input: req.toInput()})
	if err != nil {
		logger.ErrorContext(r.Context(), "venue update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("venue_id", venue.ID).InfoContext(r.Context(), "venue updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, venueResponse{Venue: toVenueDTO(venue)})
}

// Events lists a venue's bookings. The scope query parameter selects
// upcoming (default), past or all.
func (h *VenueHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ref := strings.TrimSpace(chi.URLParam(r, "ref"))
	scope := application.BookingScope(strings.TrimSpace(r.URL.Query().Get("scope")))
	logger := h.log(r.Context(), "Events", "venue_ref", ref, "scope", scope)

	bookings, err := h.bookings.ListVenueBookings(r.Context(), application.ListVenueBookingsParams{VenueRef: ref, Scope: scope})
	if err != nil {
		logger.WarnContext(r.Context(), "venue events failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(bookings)).DebugContext(r.Context(), "venue events listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Events: toBookingDTOs(bookings)})
}

// Calendar publishes the venue's upcoming bookings as an iCalendar feed.
func (h *VenueHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ref := strings.TrimSpace(chi.URLParam(r, "ref"))
	logger := h.log(r.Context(), "Calendar", "venue_ref", ref)

	venue, err := h.service.GetVenue(r.Context(), ref)
	if err != nil {
		logger.WarnContext(r.Context(), "calendar venue lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	bookings, err := h.bookings.ListVenueBookings(r.Context(), application.ListVenueBookingsParams{VenueRef: venue.ID, Scope: application.ScopeUpcoming})
	if err != nil {
		logger.ErrorContext(r.Context(), "calendar bookings failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	events := make([]calendar.Event, 0, len(bookings))
	for _, b := range bookings {
		events = append(events, calendar.Event{
			UID:         b.ID,
			Summary:     b.ArtistName,
			Description: b.Description,
			URL:         h.eventURL(b.ID),
			Location:    venueLocation(venue),
			Start:       b.Start,
			End:         b.End,
			Updated:     b.UpdatedAt,
		})
	}

	var buf bytes.Buffer
	if err := calendar.Export(&buf, venue.Name, h.service.Location(venue).String(), events, h.now()); err != nil {
		logger.ErrorContext(r.Context(), "calendar export failed", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	logger.With("venue_id", venue.ID, "result_count", len(events)).DebugContext(r.Context(), "calendar exported")
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="`+venue.Slug+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *VenueHandler) eventURL(id string) string {
	return h.publicBaseURL + "/events/" + id
}

func venueLocation(venue application.Venue) string {
	if venue.Address == "" {
		return venue.Name
	}
	return venue.Name + ", " + venue.Address
}

type venueRequest struct {
	Name      string   `json:"name"`
	TimeZone  string   `json:"time_zone"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address"`
	Website   string   `json:"website"`
}

func (r venueRequest) toInput() application.VenueInput {
	return application.VenueInput{
		Name:      strings.TrimSpace(r.Name),
		TimeZone:  strings.TrimSpace(r.TimeZone),
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Address:   strings.TrimSpace(r.Address),
		Website:   strings.TrimSpace(r.Website),
	}
}

type venueResponse struct {
	Venue venueDTO `json:"venue"`
}

type listVenuesResponse struct {
	Venues []venueDTO `json:"venues"`
}

type venueDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Slug      string   `json:"slug"`
	TimeZone  string   `json:"time_zone,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `json:"address,omitempty"`
	Website   string   `json:"website,omitempty"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

func toVenueDTO(venue application.Venue) venueDTO {
	return venueDTO{
		ID:        venue.ID,
		Name:      venue.Name,
		Slug:      venue.Slug,
		TimeZone:  venue.TimeZone,
		Latitude:  venue.Latitude,
		Longitude: venue.Longitude,
		Address:   venue.Address,
		Website:   venue.Website,
		CreatedAt: venue.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: venue.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toVenueDTOs(venues []application.Venue) []venueDTO {
	out := make([]venueDTO, 0, len(venues))
	for _, venue := range venues {
		out = append(out, toVenueDTO(venue))
	}
	return out
}
