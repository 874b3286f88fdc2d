// Package http provides HTTP handlers and middleware for the venue booking API.
//
// The router exposes the following endpoints:
//   - GET /healthz: liveness plus a storage ping.
//   - GET /venues, POST /venues, GET /venues/{ref}, PUT /venues/{ref}: venue
//     management exchanging the `venueDTO` payload defined in venue_handler.go.
//     {ref} is a venue id or slug.
//   - GET /venues/{ref}/events?scope=upcoming|past|all: a venue's bookings with
//     venue-local renderings.
//   - GET /venues/{ref}/calendar.ics: upcoming bookings as an iCalendar feed.
//   - POST /events, GET /events/{id}, PUT /events/{id}, DELETE /events/{id}:
//     booking writes go through the conflict validator. A conflicting write
//     answers 409 with the overlapping bookings.
//   - GET /events/conflicts: advisory conflict check for a form. Incomplete
//     input answers {"ok":true,"conflicts":[]}; malformed input answers 422
//     with "Bad date" or "Bad time". Rate limited per client IP.
//   - GET /events/date_options, /events/time_options, /events/end_time_options:
//     picker values in the venue's zone.
//   - /admin/imports...: iCalendar import batches. Requires the X-Admin-Token
//     header.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
