package summary

import (
	"time"

	"github.com/apextime/attendance-backend-go/internal/pkg/workday"
	"github.com/shopspring/decimal"
)

// Attendance statuses. A single-punch day records attendance with
// indeterminate hours and stays Present; see the aggregator policy table.
const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
	StatusHalfDay = "Half Day"
)

// AttendanceSummary is one row per (employee, logical work day, tenant),
// created and updated only by the aggregator. Re-aggregation over an
// unchanged raw-event set must reproduce every field byte for byte.
type AttendanceSummary struct {
	ID           string
	TenantID     string
	EmployeeID   string
	Date         workday.Date
	FirstIn      time.Time
	LastOut      *time.Time // nil on single-punch days
	WorkingHours decimal.Decimal
	TotalPunches int
	Status       string
	PunchLog     string // JSON array of RFC3339 punch instants, for audit
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Joined for reporting responses
	EmployeeName  *string
	EmployeeCode  *string
	AutoGenerated *bool
}
