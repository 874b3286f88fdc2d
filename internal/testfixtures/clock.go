package testfixtures

import (
	"sync"
	"time"
)

// Clock is a settable time source. Services take its Now method wherever
// production code passes time.Now.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts at start, or at ReferenceTime for the zero value.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc returns c.Now, or time.Now for a nil clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// SetWallClock moves the clock to a wall-clock time in loc, such as 19:50 on
// show night at a venue. The stored instant is UTC.
func (c *Clock) SetWallClock(loc *time.Location, year int, month time.Month, day, hour, minute int) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := time.Date(year, month, day, hour, minute, 0, 0, loc).UTC()
	c.Set(t)
	return t
}

// Advance moves the clock forward and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
