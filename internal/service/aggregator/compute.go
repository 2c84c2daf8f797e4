package aggregator

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/apextime/attendance-backend-go/internal/domain/summary"
	"github.com/apextime/attendance-backend-go/internal/pkg/workday"
	"github.com/shopspring/decimal"
)

// Compute derives the attendance summary for one employee's work day from
// the punch instants of that day. It is deterministic: the same set of
// instants always yields a byte-identical summary regardless of arrival
// order, so re-aggregation is idempotent.
//
// Policy: a single punch records attendance as Present with zero hours and
// no last-out (the pairing is indeterminate, the presence is not). Two or
// more punches span first to last; under fullDayThreshold hours is Half Day.
func Compute(tenantID, employeeID string, date workday.Date, punches []time.Time, fullDayThreshold float64) summary.AttendanceSummary {
	instants := sortedInstants(punches)

	s := summary.AttendanceSummary{
		TenantID:     tenantID,
		EmployeeID:   employeeID,
		Date:         date,
		TotalPunches: len(instants),
		WorkingHours: decimal.Zero.Round(2),
		Status:       summary.StatusAbsent,
		PunchLog:     punchLog(instants),
	}
	if len(instants) == 0 {
		return s
	}

	s.FirstIn = instants[0]
	s.Status = summary.StatusPresent

	if len(instants) == 1 {
		return s
	}

	last := instants[len(instants)-1]
	s.LastOut = &last

	span := last.Sub(s.FirstIn)
	s.WorkingHours = decimal.NewFromFloat(span.Hours()).Round(2)

	if s.WorkingHours.LessThan(decimal.NewFromFloat(fullDayThreshold)) {
		s.Status = summary.StatusHalfDay
	}
	return s
}

// sortedInstants normalizes to UTC and sorts ascending. Coincident instants
// are kept: the store already collapses same-device re-delivery, so two equal
// instants here are two devices reporting the same person and both count.
func sortedInstants(punches []time.Time) []time.Time {
	instants := make([]time.Time, len(punches))
	for i, p := range punches {
		instants[i] = p.UTC()
	}
	sort.SliceStable(instants, func(i, j int) bool { return instants[i].Before(instants[j]) })
	return instants
}

// punchLog renders the audit trail as a JSON array of RFC3339 UTC instants.
func punchLog(instants []time.Time) string {
	entries := make([]string, len(instants))
	for i, p := range instants {
		entries[i] = p.Format(time.RFC3339)
	}
	raw, _ := json.Marshal(entries)
	return string(raw)
}
