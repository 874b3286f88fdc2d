package testfixtures

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	t.Parallel()

	t.Run("zero start uses the reference time", func(t *testing.T) {
		t.Parallel()
		if got := NewClock(time.Time{}).Now(); !got.Equal(ReferenceTime()) {
			t.Fatalf("expected ReferenceTime, got %v", got)
		}
	})

	t.Run("advance is visible through NowFunc", func(t *testing.T) {
		t.Parallel()

		start := time.Date(2024, time.June, 1, 18, 0, 0, 0, time.UTC)
		clock := NewClock(start)
		now := clock.NowFunc()

		if got := clock.Advance(15 * time.Minute); !got.Equal(start.Add(15 * time.Minute)) {
			t.Fatalf("advance returned %v", got)
		}
		if got := now(); !got.Equal(start.Add(15 * time.Minute)) {
			t.Fatalf("NowFunc returned %v", got)
		}
	})

	t.Run("wall clock is stored as UTC", func(t *testing.T) {
		t.Parallel()

		chicago, err := time.LoadLocation("America/Chicago")
		if err != nil {
			t.Skipf("zoneinfo unavailable: %v", err)
		}
		clock := NewClock(time.Time{})
		got := clock.SetWallClock(chicago, 2024, time.June, 1, 19, 50)

		want := time.Date(2024, time.June, 2, 0, 50, 0, 0, time.UTC)
		if !got.Equal(want) || got.Location() != time.UTC || !clock.Now().Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("nil clock falls back to time.Now", func(t *testing.T) {
		t.Parallel()

		var clock *Clock
		before := time.Now()
		if got := clock.NowFunc()(); got.Before(before) {
			t.Fatalf("expected wall time, got %v", got)
		}
	})
}
