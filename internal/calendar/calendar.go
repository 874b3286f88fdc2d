// Package calendar converts bookings to and from iCalendar documents. Export
// publishes a venue's upcoming bookings as a feed; Parse reads an external
// feed into import candidates.
package calendar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

const productID = "-//venuebook//venue calendar//EN"

// Event is one booking rendered into a feed.
type Event struct {
	UID         string
	Summary     string
	Description string
	URL         string
	Location    string
	Start       time.Time
	End         time.Time
	Updated     time.Time
}

// Export writes events as a published iCalendar document. Times are written
// in UTC.
func Export(w io.Writer, name, zone string, events []Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}
	if zone != "" {
		cal.SetXWRTimezone(zone)
	}

	for _, e := range events {
		ev := cal.AddEvent(e.UID)
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(e.Start.UTC())
		ev.SetEndAt(e.End.UTC())
		ev.SetSummary(e.Summary)
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}
		if e.URL != "" {
			ev.SetURL(e.URL)
		}
		if e.Location != "" {
			ev.SetLocation(e.Location)
		}
		if !e.Updated.IsZero() {
			ev.SetLastModifiedAt(e.Updated.UTC())
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

// ParsedEvent is a VEVENT read from an external feed.
type ParsedEvent struct {
	UID         string
	Summary     string
	Description string
	URL         string
	Start       time.Time
	End         *time.Time
	Raw         string
}

// Feed is the result of parsing a document.
type Feed struct {
	Name   string
	Events []ParsedEvent
	// Skipped counts VEVENTs without a usable timed start, such as
	// all-day entries.
	Skipped int
}

// ErrEmptyFeed is returned for an empty body.
var ErrEmptyFeed = errors.New("calendar: empty feed")

// Parse reads an iCalendar document. Floating times (no TZID and no UTC
// suffix) are read as wall-clock times in loc. Events are returned ordered
// by start.
func Parse(r io.Reader, loc *time.Location) (Feed, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return Feed{}, fmt.Errorf("calendar: read feed: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Feed{}, ErrEmptyFeed
	}
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return Feed{}, fmt.Errorf("calendar: parse feed: %w", err)
	}

	var feed Feed
	for _, prop := range cal.CalendarProperties {
		if prop.IANAToken == string(ical.PropertyXWRCalName) {
			feed.Name = prop.Value
		}
	}

	for _, ve := range cal.Events() {
		event, ok := parseEvent(ve, loc)
		if !ok {
			feed.Skipped++
			continue
		}
		feed.Events = append(feed.Events, event)
	}

	sort.SliceStable(feed.Events, func(i, j int) bool {
		return feed.Events[i].Start.Before(feed.Events[j].Start)
	})
	return feed, nil
}

func parseEvent(ve *ical.VEvent, loc *time.Location) (ParsedEvent, bool) {
	var out ParsedEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyUrl); p != nil {
		out.URL = strings.TrimSpace(p.Value)
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return ParsedEvent{}, false
	}
	start, ok := propertyTime(startProp, loc)
	if !ok {
		return ParsedEvent{}, false
	}
	out.Start = start.UTC()

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		if end, ok := propertyTime(endProp, loc); ok && end.After(start) {
			endUTC := end.UTC()
			out.End = &endUTC
		}
	}

	out.Raw = rawProperties(ve)
	return out, true
}

// propertyTime reads a DATE-TIME property. DATE values are rejected.
func propertyTime(prop *ical.IANAProperty, loc *time.Location) (time.Time, bool) {
	value := strings.TrimSpace(prop.Value)
	if value == "" || !strings.Contains(value, "T") {
		return time.Time{}, false
	}
	if vs, ok := prop.ICalParameters[string(ical.ParameterValue)]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return time.Time{}, false
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse("20060102T150405Z", value)
		return t, err == nil
	}

	zone := loc
	if tzids, ok := prop.ICalParameters[string(ical.ParameterTzid)]; ok && len(tzids) > 0 {
		if named, err := time.LoadLocation(strings.Trim(tzids[0], `"`)); err == nil {
			zone = named
		}
	}
	t, err := time.ParseInLocation("20060102T150405", value, zone)
	return t, err == nil
}

func rawProperties(ve *ical.VEvent) string {
	var b strings.Builder
	for _, p := range ve.Properties {
		b.WriteString(p.IANAToken)
		b.WriteString(":")
		b.WriteString(p.Value)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
