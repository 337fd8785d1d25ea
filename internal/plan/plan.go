// Package plan computes a client's diet window: the first and last diet day,
// today's 1-based day index and whether the programme has lapsed.
//
// All arithmetic runs on calendar dates.  Instants (enrollment, "now") are
// first converted to the configured zone and truncated; admin-set dates are
// already calendar dates and are used as-is.  Dates are represented as
// time.Time values at midnight UTC so that subtraction yields whole days.
package plan

import (
	"regexp"
	"strconv"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Input carries the already-fetched account fields.  Compute performs no I/O.
type Input struct {
	EnrollAt      time.Time  // account creation instant
	ExplicitStart *time.Time // admin override, calendar date
	ExplicitEnd   *time.Time // admin override, calendar date
	DurationText  string     // free text such as "21 days"
	Now           time.Time  // current instant
}

// Window is the derived plan state.  EndDate is nil when neither an explicit
// end nor a positive duration is known.
type Window struct {
	EnrollDate   time.Time
	StartDate    time.Time
	EndDate      *time.Time
	DurationDays int // 0 means unbounded/unknown
	TodayIndex   int // 0 before the start date
	Expired      bool
}

// Compute derives the plan window in loc.  Identical inputs always give the
// same window, so the server gate and any calendar rendering agree.
func Compute(in Input, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	enroll := DateIn(in.EnrollAt, loc)
	today := DateIn(in.Now, loc)

	w := Window{EnrollDate: enroll}

	var end *time.Time
	switch {
	case in.ExplicitStart != nil && in.ExplicitEnd != nil:
		w.StartDate = Civil(*in.ExplicitStart)
		e := Civil(*in.ExplicitEnd)
		end = &e
		w.DurationDays = clampZero(DaysBetween(w.StartDate, e) + 1)
	case in.ExplicitStart != nil:
		w.StartDate = Civil(*in.ExplicitStart)
		w.DurationDays = ParseDurationDays(in.DurationText)
	case in.ExplicitEnd != nil:
		w.StartDate = AddDays(enroll, 1)
		e := Civil(*in.ExplicitEnd)
		end = &e
		w.DurationDays = clampZero(DaysBetween(w.StartDate, e) + 1)
	default:
		w.StartDate = AddDays(enroll, 1)
		w.DurationDays = ParseDurationDays(in.DurationText)
	}

	if end == nil && w.DurationDays > 0 {
		e := AddDays(w.StartDate, w.DurationDays-1)
		end = &e
	}
	w.EndDate = end

	if !today.Before(w.StartDate) {
		w.TodayIndex = DaysBetween(w.StartDate, today) + 1
		if w.DurationDays > 0 && w.TodayIndex > w.DurationDays {
			w.TodayIndex = w.DurationDays
		}
	}
	w.Expired = w.EndDate != nil && today.After(*w.EndDate)
	return w
}

var digitRun = regexp.MustCompile(`\d+`)

// ParseDurationDays extracts the first run of digits from text ("21 days" ->
// 21).  Absent or unparsable input yields 0, meaning unbounded.
func ParseDurationDays(text string) int {
	m := digitRun.FindString(text)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// DateIn returns the calendar date of instant t as observed in loc.
func DateIn(t time.Time, loc *time.Location) time.Time {
	return Civil(t.In(loc))
}

// Civil drops the time of day and zone of t, keeping its own calendar date.
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays moves a calendar date by n days.
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// DaysBetween returns to-from in whole days for two calendar dates.
func DaysBetween(from, to time.Time) int {
	return int(Civil(to).Sub(Civil(from)) / (24 * time.Hour))
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

func clampZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
