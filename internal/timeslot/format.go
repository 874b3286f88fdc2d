package timeslot

import "time"

const (
	clockLabelLayout     = "3:04 PM"
	clockValueLayout     = "15:04"
	shortDateLabelLayout = "Mon Jan 2"
	longDateLabelLayout  = "Monday, Jan 2"
)

// FormatClock renders t in loc as a 12-hour label such as "9:00 PM".
func FormatClock(t time.Time, loc *time.Location) string {
	return inLocation(t, loc).Format(clockLabelLayout)
}

// FormatDate renders t in loc as a short date label such as "Thu Jul 4".
func FormatDate(t time.Time, loc *time.Location) string {
	return inLocation(t, loc).Format(shortDateLabelLayout)
}

// LocalRequest renders an interval back into the request that produced it,
// so re-building it reproduces the same instants.
func LocalRequest(i Interval, loc *time.Location) Request {
	start, end := i.In(loc)
	return Request{
		Date:  DateOf(start).String(),
		Start: FromString(start.Format(clockValueLayout)),
		End:   FromString(end.Format(clockValueLayout)),
	}
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}
