package summary

import (
	"context"

	"github.com/apextime/attendance-backend-go/internal/pkg/workday"
)

// Filter selects summaries for reporting consumers.
type Filter struct {
	StartDate   workday.Date
	EndDate     workday.Date
	EmployeeIDs []string
	ExcludeAuto bool
	Page        int
	Limit       int
}

// SummaryRepository is the attendance-summary store, keyed on
// (employee_id, date, tenant_id).
type SummaryRepository interface {
	// Upsert writes a summary. The update path overwrites every computed
	// field, including clearing last_out when the new computation has none.
	// Returns true when a new row was created.
	Upsert(ctx context.Context, s AttendanceSummary) (bool, error)

	GetByKey(ctx context.Context, tenantID, employeeID string, date workday.Date) (AttendanceSummary, error)

	List(ctx context.Context, tenantID string, filter Filter) ([]AttendanceSummary, int64, error)

	// DeleteRange removes summaries in [start, end], optionally restricted
	// to the given employees. Returns the number of rows deleted.
	DeleteRange(ctx context.Context, tenantID string, start, end workday.Date, employeeIDs []string) (int64, error)

	// DeletePreJoin removes summaries dated before each employee's join
	// date. With employeeID empty the whole tenant is repaired. Returns
	// deleted counts per employee id.
	DeletePreJoin(ctx context.Context, tenantID string, employeeID string) (map[string]int64, error)
}
