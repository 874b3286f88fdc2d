package timeslot

import "time"

// ToLocal combines a venue-local date with a time input.
func ToLocal(loc *time.Location, date Date, input TimeInput) (time.Time, error) {
	clock, err := input.Clock()
	if err != nil {
		return time.Time{}, err
	}
	return date.At(loc, clock), nil
}

// EndAfter computes the end instant for a booking starting at start on date.
// An end wall clock at or before the start wall clock belongs to the next
// calendar day.
func EndAfter(loc *time.Location, date Date, start Clock, input TimeInput) (time.Time, error) {
	end, err := input.Clock()
	if err != nil {
		return time.Time{}, err
	}
	if end.Minutes() <= start.Minutes() {
		date = date.AddDays(1)
	}
	return date.At(loc, end), nil
}
