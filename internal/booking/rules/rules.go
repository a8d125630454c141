// Package rules is the temporal eligibility engine. Every function is pure
// and deterministic: the caller supplies "now", the engine owns the civil
// calendar, and configuration is an explicit value rather than ambient state.
package rules

import (
	"errors"
	"time"

	"candilib/internal/booking/models"
	"candilib/internal/civiltime"
)

// ErrETGExpired signals that the theory-test validity window closed before
// the requested visibility window starts. Controllers surface it as a
// dedicated error, never as an empty slot list.
var ErrETGExpired = errors.New("epreuve theorique expiree")

// ErrETGMissing signals a candidate with no recorded theory-test success.
var ErrETGMissing = errors.New("epreuve theorique manquante")

// Rules holds the configured delays, in civil-day units unless noted.
type Rules struct {
	// DelayToBookDays is the minimum lead time before a bookable slot. Zero
	// means "any slot after the end of today".
	DelayToBookDays int

	// ForbidCancelDays is the blackout: cancelling fewer than this many days
	// before the exam applies a penalty.
	ForbidCancelDays int

	// RetryTimeoutDays is the cool-down after a failed or penalized exam
	// before the candidate may book again.
	RetryTimeoutDays int

	// ETGValidityYears is the theory-test validity window.
	ETGValidityYears int

	// VisibleMonths caps how far ahead slot listings reach.
	VisibleMonths int
}

// Default mirrors the production configuration.
func Default() Rules {
	return Rules{
		DelayToBookDays:  7,
		ForbidCancelDays: 7,
		RetryTimeoutDays: 45,
		ETGValidityYears: 5,
		VisibleMonths:    3,
	}
}

// Engine evaluates the rules against a fixed civil calendar.
type Engine struct {
	rules Rules
	cal   civiltime.Calendar
}

// NewEngine builds an engine from explicit configuration.
func NewEngine(r Rules, cal civiltime.Calendar) Engine {
	return Engine{rules: r, cal: cal}
}

// Rules returns the engine's configuration.
func (e Engine) Rules() Rules { return e.rules }

// Calendar returns the engine's civil calendar.
func (e Engine) Calendar() civiltime.Calendar { return e.cal }

// EarliestBookableDate returns the first instant the candidate may book:
// the configured lead time from now (start of day), or the end of the current
// day when no lead time is configured. A stored CanBookFrom restriction only
// wins when strictly later.
func (e Engine) EarliestBookableDate(c models.Candidate, now time.Time) time.Time {
	var earliest time.Time
	if e.rules.DelayToBookDays > 0 {
		earliest = e.cal.StartOfDay(e.cal.AddDays(now, e.rules.DelayToBookDays))
	} else {
		earliest = e.cal.EndOfDay(now)
	}
	if c.CanBookFrom != nil && c.CanBookFrom.After(earliest) {
		return e.cal.In(*c.CanBookFrom)
	}
	return earliest
}

// LastPenaltyFreeCancelDate is the last day (start of day) on which the slot
// can still be cancelled without penalty.
func (e Engine) LastPenaltyFreeCancelDate(placeAt time.Time) time.Time {
	return e.cal.StartOfDay(e.cal.AddDays(placeAt, -e.rules.ForbidCancelDays))
}

// CanCancelWithoutPenalty reports whether cancelling at instant now incurs no
// penalty: true iff the last penalty-free date is on or after now's date.
func (e Engine) CanCancelWithoutPenalty(placeAt, now time.Time) bool {
	return e.cal.DaysBetween(now, e.LastPenaltyFreeCancelDate(placeAt)) >= 0
}

// NextEligibleDateAfterFailure computes the post-failure (or post-penalty)
// restriction: the exam day's end plus the retry timeout. An already-stored
// later CanBookFrom wins; the restriction never moves earlier.
func (e Engine) NextEligibleDateAfterFailure(c models.Candidate, examAt time.Time) time.Time {
	next := e.cal.AddDays(e.cal.EndOfDay(examAt), e.rules.RetryTimeoutDays)
	if c.CanBookFrom != nil && c.CanBookFrom.After(next) {
		return e.cal.In(*c.CanBookFrom)
	}
	return next
}

// ETGExpiryCutoff returns the end of the theory-test validity window.
// ok is false when the candidate has no recorded theory success.
func (e Engine) ETGExpiryCutoff(c models.Candidate) (cutoff time.Time, ok bool) {
	if c.ETGSucceededAt == nil {
		return time.Time{}, false
	}
	return e.cal.EndOfDay(e.cal.AddYears(*c.ETGSucceededAt, e.rules.ETGValidityYears)), true
}

// VisibleWindow clamps a requested [begin, end] listing range for a
// candidate. Missing or out-of-range bounds fall back to computed defaults,
// never to an unclamped range. Returns ErrETGMissing when the candidate has
// no theory success, and ErrETGExpired when the clamped begin would exceed
// the theory validity cutoff.
func (e Engine) VisibleWindow(reqBegin, reqEnd *time.Time, c models.Candidate, now time.Time) (time.Time, time.Time, error) {
	cutoff, ok := e.ETGExpiryCutoff(c)
	if !ok {
		return time.Time{}, time.Time{}, ErrETGMissing
	}

	begin := e.EarliestBookableDate(c, now)
	if reqBegin != nil && reqBegin.After(begin) {
		begin = e.cal.In(*reqBegin)
	}

	end := e.cal.EndOfDay(e.cal.AddMonths(now, e.rules.VisibleMonths))
	if reqEnd != nil && reqEnd.Before(end) {
		end = e.cal.In(*reqEnd)
	}
	if end.After(cutoff) {
		end = cutoff
	}

	if begin.After(cutoff) {
		return time.Time{}, time.Time{}, ErrETGExpired
	}
	return begin, end, nil
}
