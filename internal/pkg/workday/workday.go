// Package workday implements the logical work-day calendar used by the
// attendance pipeline. A punch is attributed to the civil calendar date of its
// instant in the tenant's timezone, except punches inside the tenant's early
// hours window (default 00:00-05:00 local) which belong to the previous
// calendar date. Night shift workers clocking out after midnight therefore
// stay on the day their shift started.
package workday

import (
	"fmt"
	"sort"
	"time"
)

// DefaultEarlyWindowEndHour is the exclusive end of the carry-back window in
// local hours. Punches at [00:00, 05:00) local belong to the previous day.
const DefaultEarlyWindowEndHour = 5

// Date is a timezone-free calendar date. It is the only representation of a
// logical work day in the system; every write path goes through Time() so the
// stored value is always UTC midnight of the same calendar date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns the date at UTC midnight, the canonical storage instant.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

func (d Date) Equal(other Date) bool {
	return d == other
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// FixedZone returns the fixed location for a tenant's UTC offset in minutes.
// Tenant time is always a fixed offset, never a named zone; the pipeline must
// not depend on the host timezone database.
func FixedZone(offsetMinutes int) *time.Location {
	sign := "+"
	mins := offsetMinutes
	if mins < 0 {
		sign = "-"
		mins = -mins
	}
	name := fmt.Sprintf("UTC%s%02d:%02d", sign, mins/60, mins%60)
	return time.FixedZone(name, offsetMinutes*60)
}

// LogicalDate computes the logical work day for a UTC instant under the given
// tenant offset and early-hours window end (exclusive, local hours).
func LogicalDate(utc time.Time, offsetMinutes int, earlyWindowEndHour int) Date {
	local := utc.In(FixedZone(offsetMinutes))
	d := DateOf(local)
	if local.Hour() < earlyWindowEndHour {
		return d.AddDays(-1)
	}
	return d
}

// Group partitions items into logical work days. Items are stable-sorted by
// instant first, so ties keep the order of the input slice (ingestion order).
func Group[T any](items []T, at func(T) time.Time, offsetMinutes int, earlyWindowEndHour int) map[Date][]T {
	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return at(sorted[i]).Before(at(sorted[j]))
	})

	groups := make(map[Date][]T)
	for _, item := range sorted {
		d := LogicalDate(at(item).UTC(), offsetMinutes, earlyWindowEndHour)
		groups[d] = append(groups[d], item)
	}
	return groups
}

// FetchWindow widens a logical date range to the UTC instant range that can
// contain contributing punches. Punches up to earlyWindowEndHour local after
// the end date still carry back into the range, and the range start in local
// time precedes its UTC midnight for positive offsets, so the window extends
// 12 hours before the start and 36 hours after the end.
func FetchWindow(start, end Date) (time.Time, time.Time) {
	return start.Time().Add(-12 * time.Hour), end.Time().Add(36 * time.Hour)
}
