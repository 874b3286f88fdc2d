package timeslot

import "time"

const (
	// SlotStep is the spacing of offered start and end times.
	SlotStep = 15 * time.Minute
	// DateHorizonDays is how many days after today are offered.
	DateHorizonDays = 60

	openingHour = 8
	lastStart   = 23*60 + 45
	latestEnd   = 4 * 60
)

// Option is a value/label pair for a picker.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// DateOptions lists today and the following DateHorizonDays days in loc.
func DateOptions(now time.Time, loc *time.Location) []Option {
	today := DateOf(inLocation(now, loc))
	options := make([]Option, 0, DateHorizonDays+1)
	for i := 0; i <= DateHorizonDays; i++ {
		day := today.AddDays(i)
		options = append(options, Option{
			Value: day.String(),
			Label: day.At(time.UTC, Clock{Hour: 12}).Format(longDateLabelLayout),
		})
	}
	return options
}

// StartOptions lists start times from opening until 23:45 on date. For today
// the list begins at the next free slot after now. An unparsable date means
// today.
func StartOptions(now time.Time, loc *time.Location, rawDate string) []Option {
	local := inLocation(now, loc)
	date, err := ParseDate(rawDate)
	if err != nil {
		date = DateOf(local)
	}

	first := openingHour * 60
	if date == DateOf(local) {
		nowMinutes := local.Hour()*60 + local.Minute()
		next := roundUp(nowMinutes, int(SlotStep/time.Minute))
		if next > first {
			first = next
		}
	}

	var options []Option
	for minutes := first; minutes <= lastStart; minutes += int(SlotStep / time.Minute) {
		at := date.At(loc, Clock{Hour: minutes / 60, Minute: minutes % 60})
		options = append(options, slotOption(at))
	}
	return options
}

// EndOptions lists end times from one slot after start until 04:00 the
// next day, and never a full day or more after start. Each clock value
// appears once.
func EndOptions(loc *time.Location, rawDate, rawStart string) ([]Option, error) {
	date, err := ParseDate(rawDate)
	if err != nil {
		return nil, err
	}
	start, err := ParseClock(rawStart)
	if err != nil {
		return nil, err
	}

	startAt := date.At(loc, start)
	limit := date.AddDays(1).At(loc, Clock{Hour: latestEnd / 60, Minute: latestEnd % 60})
	if dayCap := startAt.Add(24*time.Hour - SlotStep); limit.After(dayCap) {
		limit = dayCap
	}

	var options []Option
	seen := make(map[string]bool)
	for at := startAt.Add(SlotStep); !at.After(limit); at = at.Add(SlotStep) {
		option := slotOption(at)
		if seen[option.Value] {
			continue
		}
		seen[option.Value] = true
		options = append(options, option)
	}
	return options, nil
}

func slotOption(at time.Time) Option {
	return Option{Value: at.Format(clockValueLayout), Label: at.Format(clockLabelLayout)}
}

func roundUp(value, step int) int {
	if rem := value % step; rem != 0 {
		return value + step - rem
	}
	return value
}
