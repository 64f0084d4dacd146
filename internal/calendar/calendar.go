package calendar

import (
	"errors"
	"time"
)

const dateLayout = "2006-01-02"

// ErrInvalidRange is returned when start falls after end. Callers are
// expected to validate ranges up front; a negative count is never returned.
var ErrInvalidRange = errors.New("start date is after end date")

// DefaultHolidays is the built-in company holiday calendar, used when no
// HOLIDAYS override is configured.
var DefaultHolidays = []string{
	"2025-01-01",
	"2025-01-14",
	"2025-08-15",
	"2025-08-24",
	"2025-10-02",
	"2025-10-24",
}

// HolidaySet is an immutable set of ISO dates excluded from working-day
// counts, on top of the universal weekend exclusion.
type HolidaySet map[string]struct{}

func NewHolidaySet(dates []string) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

func (h HolidaySet) Contains(day time.Time) bool {
	_, ok := h[day.Format(dateLayout)]
	return ok
}

// WorkingDays counts the calendar days in the inclusive interval
// [start, end] that are neither weekends nor configured holidays.
// A single-day range counts as 1 when that day is a working day.
func WorkingDays(start, end time.Time, holidays HolidaySet) (int, error) {
	start = truncateToDate(start)
	end = truncateToDate(end)
	if start.After(end) {
		return 0, ErrInvalidRange
	}

	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if isWeekend(d) {
			continue
		}
		if holidays.Contains(d) {
			continue
		}
		count++
	}
	return count, nil
}

func isWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
