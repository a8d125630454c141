// Package civiltime pins all date arithmetic to a single civil calendar.
// Every eligibility rule compares dates in the exam administration's
// timezone, whatever timezone the input timestamps carry.
package civiltime

import "time"

// Clock allows injecting time in services.
type Clock interface {
	Now() time.Time
}

type systemClock struct {
	loc *time.Location
}

// NewSystemClock returns a clock backed by time.Now, expressed in loc.
func NewSystemClock(loc *time.Location) Clock {
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

type fixedClock struct {
	now time.Time
}

// NewFixedClock returns a clock that always returns the same instant
// (useful for tests).
func NewFixedClock(t time.Time) Clock {
	return fixedClock{now: t}
}

func (f fixedClock) Now() time.Time {
	return f.now
}

// Calendar performs whole-day arithmetic in one fixed location.
type Calendar struct {
	loc *time.Location
}

// NewCalendar builds a calendar for the named IANA timezone.
func NewCalendar(name string) (Calendar, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, err
	}
	return Calendar{loc: loc}, nil
}

// MustCalendar is NewCalendar for wiring code and tests where the zone name
// is a constant.
func MustCalendar(name string) Calendar {
	c, err := NewCalendar(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Location returns the calendar's location.
func (c Calendar) Location() *time.Location { return c.loc }

// In re-expresses t in the calendar's location.
func (c Calendar) In(t time.Time) time.Time { return t.In(c.loc) }

// StartOfDay returns t's civil date at 00:00:00.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// EndOfDay returns t's civil date at 23:59:59.999999999.
func (c Calendar) EndOfDay(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), c.loc)
}

// AddDays advances t by n civil days, preserving the time of day.
// Crossing a DST change keeps the wall clock, not the duration.
func (c Calendar) AddDays(t time.Time, n int) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day()+n, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.loc)
}

// AddMonths advances t by n civil months.
func (c Calendar) AddMonths(t time.Time, n int) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month()+time.Month(n), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.loc)
}

// AddYears advances t by n civil years.
func (c Calendar) AddYears(t time.Time, n int) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year()+n, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.loc)
}

// DaysBetween returns the number of whole civil days from a's date to b's
// date. Fractions of a day never count: 23:59 to 00:01 the next day is one
// day. Negative when b's date precedes a's.
func (c Calendar) DaysBetween(a, b time.Time) int {
	a0 := c.StartOfDay(a)
	b0 := c.StartOfDay(b)
	// Round, not truncate: DST transitions make some civil days 23h or 25h.
	hours := b0.Sub(a0).Hours()
	if hours >= 0 {
		return int(hours/24 + 0.5)
	}
	return -int(-hours/24 + 0.5)
}

// SameDay reports whether a and b fall on the same civil date.
func (c Calendar) SameDay(a, b time.Time) bool {
	return c.DaysBetween(a, b) == 0
}
