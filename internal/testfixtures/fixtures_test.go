package testfixtures

import (
	"testing"
	"time"
)

func TestBookingFixturesDoNotOverlapByDefault(t *testing.T) {
	first := NewBookingFixture()
	second := NewBookingFixture()

	if !first.End.After(first.Start) {
		t.Fatalf("expected positive duration, got %v - %v", first.Start, first.End)
	}
	if first.Start.Before(second.End) && second.Start.Before(first.End) {
		t.Fatalf("default fixtures overlap: %v-%v and %v-%v", first.Start, first.End, second.Start, second.End)
	}
}

func TestWithBookingIntervalNormalisesToUTC(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	start := time.Date(2024, time.March, 1, 20, 0, 0, 0, loc)
	fixture := NewBookingFixture(WithBookingInterval(start, start.Add(2*time.Hour)))

	if fixture.Start.Location() != time.UTC || fixture.End.Location() != time.UTC {
		t.Fatalf("expected UTC instants, got %v and %v", fixture.Start.Location(), fixture.End.Location())
	}
	if fixture.LocalDate != "2024-03-02" {
		t.Fatalf("expected UTC date 2024-03-02, got %q", fixture.LocalDate)
	}
}

func TestImportRowInheritsBatch(t *testing.T) {
	batch := NewImportBatch("venue-x")
	row := NewImportRow(batch, WithRowSchedule("2024-05-01", "20:00"))

	if row.BatchID != batch.ID || row.VenueID != "venue-x" {
		t.Fatalf("row not linked to batch: %#v", row)
	}
	if row.StartUTC != nil || row.EndUTC != nil || row.EndTime != "" {
		t.Fatalf("expected schedule without instants, got %#v", row)
	}
}
