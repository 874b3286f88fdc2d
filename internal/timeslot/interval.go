package timeslot

import (
	"fmt"
	"strings"
	"time"
)

// DefaultDuration is applied on the write path when no end time is given.
const DefaultDuration = 3 * time.Hour

// Interval is a half-open [Start, End) range of UTC instants.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval normalises both ends to UTC and rejects empty or inverted ranges.
func NewInterval(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, fmt.Errorf("%w: %s to %s", ErrNonPositiveDuration, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports strict overlap. Intervals that only touch at an endpoint
// do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Duration returns End minus Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// In returns both ends converted to loc.
func (i Interval) In(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	return i.Start.In(loc), i.End.In(loc)
}

// Request is the raw triple a client submits for one booking slot.
type Request struct {
	Date  string
	Start TimeInput
	End   TimeInput
}

// Builder turns a venue-local request into a canonical interval.
type Builder struct {
	DefaultDuration time.Duration
}

// Build normalises the request. A missing end time yields start plus the
// builder's default duration.
func (b Builder) Build(loc *time.Location, req Request) (Interval, error) {
	date, err := ParseDate(req.Date)
	if err != nil {
		return Interval{}, fieldError("date", err)
	}
	startClock, err := req.Start.Clock()
	if err != nil {
		return Interval{}, fieldError("start_time", err)
	}
	start := date.At(loc, startClock)

	var end time.Time
	if req.End.Present() {
		end, err = EndAfter(loc, date, startClock, req.End)
		if err != nil {
			return Interval{}, fieldError("end_time", err)
		}
	} else {
		duration := b.DefaultDuration
		if duration <= 0 {
			duration = DefaultDuration
		}
		end = start.Add(duration)
	}

	return NewInterval(start, end)
}

// Policy decides whether a request yields an interval at all. A false
// second return means there is nothing to check yet.
type Policy interface {
	Interval(loc *time.Location, req Request) (Interval, bool, error)
}

// StrictIntervalPolicy is used on the write path. It skips requests missing a
// date or start time and applies the default duration when the end is absent.
type StrictIntervalPolicy struct {
	Builder Builder
}

// Interval implements Policy.
func (p StrictIntervalPolicy) Interval(loc *time.Location, req Request) (Interval, bool, error) {
	if !datePresent(req.Date) || !req.Start.Present() {
		return Interval{}, false, nil
	}
	interval, err := p.Builder.Build(loc, req)
	if err != nil {
		return Interval{}, false, err
	}
	return interval, true, nil
}

// AdvisoryIntervalPolicy is used by live conflict queries. It needs an
// explicit end time and never applies a default duration.
type AdvisoryIntervalPolicy struct{}

// Interval implements Policy.
func (AdvisoryIntervalPolicy) Interval(loc *time.Location, req Request) (Interval, bool, error) {
	if !datePresent(req.Date) || !req.Start.Present() || !req.End.Present() {
		return Interval{}, false, nil
	}
	interval, err := Builder{}.Build(loc, req)
	if err != nil {
		return Interval{}, false, err
	}
	return interval, true, nil
}

func datePresent(raw string) bool {
	return strings.TrimSpace(raw) != ""
}
