package timeslot

import "errors"

var (
	// ErrInvalidDate is returned when a date string is not a YYYY-MM-DD calendar date.
	ErrInvalidDate = errors.New("timeslot: invalid date")
	// ErrInvalidTimeFormat is returned when a time input cannot be read as hour and minute.
	ErrInvalidTimeFormat = errors.New("timeslot: invalid time format")
	// ErrNonPositiveDuration signals an interval whose end does not follow its start.
	// Builders guarantee this never happens for parsed input, so seeing it is a bug.
	ErrNonPositiveDuration = errors.New("timeslot: non-positive duration")
)

// FieldError ties a parse failure to the input field it came from.
type FieldError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Field + ": " + e.Err.Error()
}

// Unwrap exposes the sentinel for errors.Is.
func (e *FieldError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func fieldError(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}
