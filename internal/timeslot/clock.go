package timeslot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock accepts "HH:MM", "H:MM" and "HH:MM:SS" as well as the
// "3:04 PM" labels produced by FormatClock. Seconds are accepted but
// dropped.
func ParseClock(raw string) (Clock, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Clock{}, ErrInvalidTimeFormat
	}

	if clock, ok := parseMeridiem(value); ok {
		return clock, nil
	}

	parts := strings.Split(value, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	if len(parts[0]) < 1 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	hour, err := strictAtoi(parts[0])
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	minute, err := strictAtoi(parts[1])
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	if len(parts) == 3 {
		second, err := strictAtoi(parts[2])
		if err != nil || len(parts[2]) != 2 || second > 59 {
			return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
		}
	}

	clock := Clock{Hour: hour, Minute: minute}
	if !clock.Valid() {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	return clock, nil
}

func parseMeridiem(value string) (Clock, bool) {
	upper := strings.ToUpper(strings.Join(strings.Fields(value), ""))
	if !strings.HasSuffix(upper, "AM") && !strings.HasSuffix(upper, "PM") {
		return Clock{}, false
	}
	parsed, err := time.Parse("3:04PM", upper)
	if err != nil {
		return Clock{}, false
	}
	return Clock{Hour: parsed.Hour(), Minute: parsed.Minute()}, true
}

func strictAtoi(s string) (int, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a digit: %q", r)
		}
	}
	return strconv.Atoi(s)
}

// ClockOf returns the wall-clock reading of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// Valid reports whether the clock lies within 00:00 and 23:59.
func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// TimeInput is a time of day supplied either as raw text or as an
// already-typed value. The zero value is absent.
type TimeInput struct {
	raw   string
	clock Clock
	typed bool
}

// FromString wraps raw user input. Blank strings are absent.
func FromString(raw string) TimeInput {
	return TimeInput{raw: strings.TrimSpace(raw)}
}

// FromClock wraps a typed clock value.
func FromClock(c Clock) TimeInput {
	return TimeInput{clock: c, typed: true}
}

// FromTime takes the wall-clock reading of t in its own location.
func FromTime(t time.Time) TimeInput {
	return FromClock(ClockOf(t))
}

// Present reports whether any input was supplied.
func (in TimeInput) Present() bool {
	return in.typed || in.raw != ""
}

// Clock parses the input into an hour and minute.
func (in TimeInput) Clock() (Clock, error) {
	if in.typed {
		if !in.clock.Valid() {
			return Clock{}, fmt.Errorf("%w: %s", ErrInvalidTimeFormat, in.clock)
		}
		return in.clock, nil
	}
	return ParseClock(in.raw)
}
