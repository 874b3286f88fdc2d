package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/example/venue-booking/internal/timeslot"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "venue not found", err: fmt.Errorf("wrap: %w", ErrVenueNotFound), want: "venue_not_found"},
		{name: "not found", err: ErrNotFound, want: "not_found"},
		{name: "unauthorized", err: ErrUnauthorized, want: "unauthorized"},
		{name: "invalid date", err: &timeslot.FieldError{Field: "date", Err: timeslot.ErrInvalidDate}, want: "invalid_date"},
		{name: "invalid time", err: timeslot.ErrInvalidTimeFormat, want: "invalid_time"},
		{name: "non positive", err: timeslot.ErrNonPositiveDuration, want: "non_positive_duration"},
		{name: "cancelled", err: context.Canceled, want: "cancelled"},
		{name: "conflict", err: &SchedulingConflictError{}, want: "scheduling_conflict"},
		{name: "validation", err: &ValidationError{FieldErrors: map[string]string{"name": "required"}}, want: "validation"},
		{name: "unexpected", err: errors.New("boom"), want: "unexpected"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ErrorKind(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
