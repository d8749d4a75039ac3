// Package policy holds the calendar rules deciding when a check-in may be
// written and when it may be rated.
//
// Dates are plain YYYY-MM-DD strings in a single calendar chosen by the
// Clock. The service runs on UTC unless configured with another IANA zone.
package policy

import (
	"time"
)

// DateLayout is the calendar-day format used for every date in the system.
const DateLayout = "2006-01-02"

// Clock yields the current calendar day.
type Clock interface {
	Today() string
}

// SystemClock reads wall time in Location. A nil Location means UTC.
type SystemClock struct {
	Location *time.Location
}

// Today returns the current date in the clock's calendar
func (c SystemClock) Today() string {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc).Format(DateLayout)
}

// FixedClock always reports the same day.
type FixedClock string

// Today returns the fixed date
func (c FixedClock) Today() string {
	return string(c)
}

// Evaluator applies the check-in and rating windows against a Clock.
type Evaluator struct {
	clock Clock
}

// NewEvaluator creates an evaluator reading "today" from clock
func NewEvaluator(clock Clock) *Evaluator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Evaluator{clock: clock}
}

// Today returns the clock's current date
func (e *Evaluator) Today() string {
	return e.clock.Today()
}

// Yesterday returns the day before today
func (e *Evaluator) Yesterday() string {
	return AddDays(e.clock.Today(), -1)
}

// CanCheckIn reports whether a check-in for date may be written: only today.
func (e *Evaluator) CanCheckIn(date string) bool {
	if !ValidDate(date) {
		return false
	}
	return date == e.clock.Today()
}

// CanRate reports whether today is no later than the day after checkInDate.
// Future dates pass; callers deciding whether a rating is accepted use
// InRatingWindow.
func (e *Evaluator) CanRate(checkInDate string) bool {
	if !ValidDate(checkInDate) {
		return false
	}
	return e.clock.Today() <= AddDays(checkInDate, 1)
}

// IsRatingExpired reports whether two or more days have passed since checkInDate.
func (e *Evaluator) IsRatingExpired(checkInDate string) bool {
	if !ValidDate(checkInDate) {
		return true
	}
	return e.clock.Today() >= AddDays(checkInDate, 2)
}

// InRatingWindow is true only on checkInDate and the following day.
func (e *Evaluator) InRatingWindow(checkInDate string) bool {
	if !e.CanRate(checkInDate) || e.IsRatingExpired(checkInDate) {
		return false
	}
	// a future check-in date passes both checks above
	return checkInDate <= e.clock.Today()
}

// ValidDate reports whether date is a well formed calendar day
func ValidDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

// AddDays shifts a YYYY-MM-DD date by n calendar days. A malformed date is
// returned unchanged.
func AddDays(date string, n int) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, n).Format(DateLayout)
}
