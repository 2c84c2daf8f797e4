// Package reprocess rebuilds attendance history after rule or directory
// changes. It relies on raw events being immutable: summaries in the window
// are deleted, processed flags reset, and the aggregator recomputes the same
// state any number of times.
package reprocess

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apextime/attendance-backend-go/internal/domain/identity"
	"github.com/apextime/attendance-backend-go/internal/domain/punch"
	"github.com/apextime/attendance-backend-go/internal/domain/summary"
	"github.com/apextime/attendance-backend-go/internal/domain/tenant"
	"github.com/apextime/attendance-backend-go/internal/pkg/workday"
	"github.com/apextime/attendance-backend-go/internal/service/aggregator"
	"github.com/apextime/attendance-backend-go/internal/service/resolver"
)

// Scope bounds a reprocessing run. With EmployeeID nil the whole tenant is
// rebuilt over [Start, End].
type Scope struct {
	EmployeeID *string
	Start      workday.Date
	End        workday.Date
}

// Report counts what a reprocessing run touched.
type Report struct {
	TenantID         string `json:"tenant_id"`
	Employees        int    `json:"employees"`
	SummariesDeleted int64  `json:"summaries_deleted"`
	EventsReset      int64  `json:"events_reset"`
	DaysCreated      int    `json:"days_created"`
	DaysUpdated      int    `json:"days_updated"`
	JoinRejected     int    `json:"join_rejected"`
}

type Service interface {
	// Reprocess rebuilds the summaries in scope from raw events.
	Reprocess(ctx context.Context, tenantID string, scope Scope) (Report, error)

	// PurgePreJoinSummaries deletes summaries dated before each employee's
	// join date. With employeeID empty the whole tenant is repaired.
	// Returns deleted counts per employee.
	PurgePreJoinSummaries(ctx context.Context, tenantID, employeeID string) (map[string]int64, error)
}

type reprocessImpl struct {
	tenants    tenant.TenantRepository
	directory  identity.DirectoryRepository
	events     punch.RawEventRepository
	summaries  summary.SummaryRepository
	aggregator aggregator.Service
	resolver   resolver.Service
}

func NewReprocessService(
	tenants tenant.TenantRepository,
	directory identity.DirectoryRepository,
	events punch.RawEventRepository,
	summaries summary.SummaryRepository,
	aggregatorSvc aggregator.Service,
	resolverSvc resolver.Service,
) Service {
	return &reprocessImpl{
		tenants:    tenants,
		directory:  directory,
		events:     events,
		summaries:  summaries,
		aggregator: aggregatorSvc,
		resolver:   resolverSvc,
	}
}

// Reprocess implements Service.
func (r *reprocessImpl) Reprocess(ctx context.Context, tenantID string, scope Scope) (Report, error) {
	report := Report{TenantID: tenantID}

	if scope.Start.IsZero() || scope.End.IsZero() || scope.End.Before(scope.Start) {
		return report, fmt.Errorf("invalid reprocessing window %s..%s", scope.Start, scope.End)
	}

	t, err := r.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return report, err
	}

	employees, err := r.scopedEmployees(ctx, tenantID, scope)
	if err != nil {
		return report, err
	}
	report.Employees = len(employees)

	// Directory links may have changed since the summaries were built, so
	// stale token resolutions must not leak into the rebuild.
	r.resolver.Invalidate(tenantID)

	var employeeIDs []string
	var tokens []string
	if scope.EmployeeID != nil {
		for _, e := range employees {
			employeeIDs = append(employeeIDs, e.ID)
			tokens = append(tokens, e.Tokens()...)
		}
	}

	deleted, err := r.summaries.DeleteRange(ctx, tenantID, scope.Start, scope.End, employeeIDs)
	if err != nil {
		return report, fmt.Errorf("failed to delete summaries: %w", err)
	}
	report.SummariesDeleted = deleted

	// Reset over the padded fetch window so boundary-crossing events are
	// picked up again too.
	from, to := workday.FetchWindow(scope.Start, scope.End)
	reset, err := r.events.ResetProcessed(ctx, tenantID, from, to, tokens)
	if err != nil {
		return report, fmt.Errorf("failed to reset processed flags: %w", err)
	}
	report.EventsReset = reset

	for _, e := range employees {
		dayReport, err := r.aggregator.RebuildWindow(ctx, t, e, scope.Start, scope.End)
		if err != nil {
			return report, fmt.Errorf("failed to rebuild employee %s: %w", e.ID, err)
		}
		report.DaysCreated += dayReport.DaysCreated
		report.DaysUpdated += dayReport.DaysUpdated
		report.JoinRejected += dayReport.JoinRejected
	}

	slog.Info("Reprocessing finished", "tenant_id", tenantID,
		"window", scope.Start.String()+".."+scope.End.String(),
		"employees", report.Employees, "summaries_deleted", report.SummariesDeleted,
		"events_reset", report.EventsReset, "days_created", report.DaysCreated,
		"days_updated", report.DaysUpdated)
	return report, nil
}

func (r *reprocessImpl) scopedEmployees(ctx context.Context, tenantID string, scope Scope) ([]identity.EmployeeIdentity, error) {
	if scope.EmployeeID != nil {
		ident, err := r.directory.GetByID(ctx, tenantID, *scope.EmployeeID)
		if err != nil {
			return nil, err
		}
		return []identity.EmployeeIdentity{ident}, nil
	}
	employees, err := r.directory.ListActive(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return employees, nil
}

// PurgePreJoinSummaries implements Service.
func (r *reprocessImpl) PurgePreJoinSummaries(ctx context.Context, tenantID, employeeID string) (map[string]int64, error) {
	counts, err := r.summaries.DeletePreJoin(ctx, tenantID, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to purge pre-join summaries: %w", err)
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	if total > 0 {
		slog.Info("Purged pre-join summaries", "tenant_id", tenantID,
			"employees", len(counts), "deleted", total)
	}
	return counts, nil
}
