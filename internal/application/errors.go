package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the caller lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrVenueNotFound is returned when a referenced venue does not exist.
	ErrVenueNotFound = errors.New("application: venue not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
)

// baseField is the key for errors that belong to the record rather than a field.
const baseField = "base"

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// SchedulingConflictError rejects a booking write because the venue is
// already booked during part of the requested interval. It belongs to the
// booking as a whole, not to a field.
type SchedulingConflictError struct {
	Conflicts []Conflict
}

// Error implements the error interface.
func (e *SchedulingConflictError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Conflicts) == 1 {
		c := e.Conflicts[0]
		return fmt.Sprintf("conflicts with %s at %s (%s - %s)", c.ArtistName, c.VenueName, c.StartLabel, c.EndLabel)
	}
	return fmt.Sprintf("conflicts with %d existing bookings", len(e.Conflicts))
}
