// Package aggregator rebuilds attendance summaries from raw punch events.
// The sweep is the only writer of summary rows: ingestion stays cheap and the
// aggregation is idempotent, so crashed or repeated sweeps converge to the
// same state.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/apextime/attendance-backend-go/internal/config"
	"github.com/apextime/attendance-backend-go/internal/domain/identity"
	"github.com/apextime/attendance-backend-go/internal/domain/punch"
	"github.com/apextime/attendance-backend-go/internal/domain/summary"
	"github.com/apextime/attendance-backend-go/internal/domain/tenant"
	"github.com/apextime/attendance-backend-go/internal/pkg/database"
	"github.com/apextime/attendance-backend-go/internal/pkg/metrics"
	"github.com/apextime/attendance-backend-go/internal/pkg/workday"
	"github.com/apextime/attendance-backend-go/internal/repository/postgresql"
	"github.com/apextime/attendance-backend-go/internal/service/resolver"
	"github.com/jackc/pgx/v5"
)

// SweepReport summarizes one aggregation pass over a tenant.
type SweepReport struct {
	TenantID     string `json:"tenant_id"`
	Events       int    `json:"events"`
	DaysCreated  int    `json:"days_created"`
	DaysUpdated  int    `json:"days_updated"`
	DaysSkipped  int    `json:"days_skipped"`
	JoinRejected int    `json:"join_rejected"`
}

type Service interface {
	// SweepAll runs one aggregation pass over every active tenant.
	SweepAll(ctx context.Context) error

	// SweepTenant picks up unprocessed events for a tenant, rebuilds every
	// affected (employee, day) and marks the events processed.
	SweepTenant(ctx context.Context, t tenant.Tenant) (SweepReport, error)

	// RebuildWindow recomputes every work day in [start, end] for one
	// employee from the raw events, processed or not. Used by reprocessing.
	RebuildWindow(ctx context.Context, t tenant.Tenant, ident identity.EmployeeIdentity, start, end workday.Date) (SweepReport, error)
}

type aggregatorImpl struct {
	db        *database.DB
	events    punch.RawEventRepository
	summaries summary.SummaryRepository
	tenants   tenant.TenantRepository
	resolver  resolver.Service
	cfg       config.AttendanceConfig
}

func NewAggregatorService(
	db *database.DB,
	events punch.RawEventRepository,
	summaries summary.SummaryRepository,
	tenants tenant.TenantRepository,
	resolverSvc resolver.Service,
	cfg config.AttendanceConfig,
) Service {
	return &aggregatorImpl{
		db:        db,
		events:    events,
		summaries: summaries,
		tenants:   tenants,
		resolver:  resolverSvc,
		cfg:       cfg,
	}
}

// SweepAll implements Service.
func (a *aggregatorImpl) SweepAll(ctx context.Context) error {
	tenants, err := a.tenants.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active tenants: %w", err)
	}
	for _, t := range tenants {
		if _, err := a.SweepTenant(ctx, t); err != nil {
			slog.Error("Aggregation sweep failed for tenant", "tenant_id", t.ID, "error", err)
		}
	}
	return nil
}

// SweepTenant implements Service.
func (a *aggregatorImpl) SweepTenant(ctx context.Context, t tenant.Tenant) (SweepReport, error) {
	report := SweepReport{TenantID: t.ID}

	batch, err := a.events.ListUnprocessed(ctx, t.ID, a.cfg.SweepBatchSize)
	if err != nil {
		return report, fmt.Errorf("failed to list unprocessed events: %w", err)
	}
	if len(batch) == 0 {
		return report, nil
	}
	report.Events = len(batch)

	// Resolve each distinct token once, then bucket the new events per
	// identity. Resolution failures leave events unprocessed for the next
	// sweep instead of failing the batch.
	identities := make(map[string]identity.EmployeeIdentity)
	byIdentity := make(map[string][]punch.RawPunchEvent)
	for _, evt := range batch {
		ident, ok := identities[evt.DeviceUserToken]
		if !ok {
			resolved, err := a.resolver.Resolve(ctx, t.ID, evt.DeviceUserToken)
			if err != nil {
				slog.Warn("Token resolution failed, event deferred",
					"tenant_id", t.ID, "token", evt.DeviceUserToken, "error", err)
				continue
			}
			ident = resolved
			identities[evt.DeviceUserToken] = ident
		}
		byIdentity[ident.ID] = append(byIdentity[ident.ID], evt)
	}

	for _, ident := range identities {
		newEvents := byIdentity[ident.ID]
		if len(newEvents) == 0 {
			continue
		}
		if err := a.rebuildAffectedDays(ctx, t, ident, newEvents, &report); err != nil {
			slog.Error("Failed to rebuild days for employee",
				"tenant_id", t.ID, "employee_id", ident.ID, "error", err)
		}
	}

	if report.Events > 0 {
		slog.Info("Aggregation sweep finished", "tenant_id", t.ID,
			"events", report.Events, "created", report.DaysCreated,
			"updated", report.DaysUpdated, "join_rejected", report.JoinRejected)
	}
	return report, nil
}

// rebuildAffectedDays recomputes exactly the work days the new events touch.
// A new late-night event can move punches across a day boundary, so each
// affected day is rebuilt from all events in a padded fetch window, not just
// from the new arrivals.
func (a *aggregatorImpl) rebuildAffectedDays(ctx context.Context, t tenant.Tenant, ident identity.EmployeeIdentity, newEvents []punch.RawPunchEvent, report *SweepReport) error {
	offset, earlyEnd, threshold := a.civilParams(t)

	affected := make(map[workday.Date][]string) // date -> new event ids
	var minDate, maxDate workday.Date
	for _, evt := range newEvents {
		date := workday.LogicalDate(evt.PunchTime, offset, earlyEnd)
		affected[date] = append(affected[date], evt.ID)
		if minDate.IsZero() || date.Before(minDate) {
			minDate = date
		}
		if maxDate.IsZero() || date.After(maxDate) {
			maxDate = date
		}
	}

	from, to := workday.FetchWindow(minDate, maxDate)
	all, err := a.events.ListByTokensInWindow(ctx, t.ID, ident.Tokens(), from, to)
	if err != nil {
		return fmt.Errorf("failed to fetch events in window: %w", err)
	}

	days := workday.Group(all, func(e punch.RawPunchEvent) time.Time { return e.PunchTime }, offset, earlyEnd)

	for date, eventIDs := range affected {
		if err := a.writeDay(ctx, t, ident, date, days[date], eventIDs, threshold, report); err != nil {
			return err
		}
	}
	return nil
}

// writeDay upserts one summary and marks the day's new events processed in a
// single transaction, so a crash re-runs both or neither.
func (a *aggregatorImpl) writeDay(ctx context.Context, t tenant.Tenant, ident identity.EmployeeIdentity, date workday.Date, dayEvents []punch.RawPunchEvent, newEventIDs []string, threshold float64, report *SweepReport) error {
	// Punches dated before the join date are device clock damage or a
	// recycled token; they must never create pre-employment attendance.
	if !ident.JoinDate.IsZero() && date.Before(workday.DateOf(ident.JoinDate.UTC())) {
		metrics.JoinDateViolations.Inc()
		report.JoinRejected++
		slog.Warn("Punch predates employee join date, day skipped",
			"tenant_id", t.ID, "employee_id", ident.ID,
			"date", date.String(), "join_date", ident.JoinDate.Format("2006-01-02"))
		return a.events.MarkProcessed(ctx, t.ID, newEventIDs)
	}

	if len(dayEvents) == 0 {
		report.DaysSkipped++
		return a.events.MarkProcessed(ctx, t.ID, newEventIDs)
	}

	punches := make([]time.Time, len(dayEvents))
	for i, evt := range dayEvents {
		punches[i] = evt.PunchTime
	}
	s := Compute(t.ID, ident.ID, date, punches, threshold)

	return postgresql.WithTransaction(ctx, a.db, func(tx pgx.Tx) error {
		txCtx := context.WithValue(ctx, "tx", tx)

		created, err := a.summaries.Upsert(txCtx, s)
		if err != nil {
			return fmt.Errorf("failed to upsert summary: %w", err)
		}
		if created {
			report.DaysCreated++
			metrics.SummariesUpserted.WithLabelValues("create").Inc()
		} else {
			report.DaysUpdated++
			metrics.SummariesUpserted.WithLabelValues("update").Inc()
		}

		if err := a.events.MarkProcessed(txCtx, t.ID, newEventIDs); err != nil {
			return fmt.Errorf("failed to mark events processed: %w", err)
		}
		return nil
	})
}

// RebuildWindow implements Service.
func (a *aggregatorImpl) RebuildWindow(ctx context.Context, t tenant.Tenant, ident identity.EmployeeIdentity, start, end workday.Date) (SweepReport, error) {
	report := SweepReport{TenantID: t.ID}
	offset, earlyEnd, threshold := a.civilParams(t)

	from, to := workday.FetchWindow(start, end)
	all, err := a.events.ListByTokensInWindow(ctx, t.ID, ident.Tokens(), from, to)
	if err != nil {
		return report, fmt.Errorf("failed to fetch events in window: %w", err)
	}
	report.Events = len(all)

	days := workday.Group(all, func(e punch.RawPunchEvent) time.Time { return e.PunchTime }, offset, earlyEnd)

	for date := start; !date.After(end); date = date.AddDays(1) {
		dayEvents, ok := days[date]
		if !ok {
			continue
		}
		ids := make([]string, len(dayEvents))
		for i, evt := range dayEvents {
			ids[i] = evt.ID
		}
		if err := a.writeDay(ctx, t, ident, date, dayEvents, ids, threshold, &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// civilParams returns the tenant's civil-time settings with config fallbacks
// for unset values.
func (a *aggregatorImpl) civilParams(t tenant.Tenant) (offset, earlyEnd int, threshold float64) {
	offset = t.TZOffsetMinutes
	earlyEnd = t.EarlyWindowEndHour
	if earlyEnd <= 0 {
		earlyEnd = a.cfg.EarlyWindowEndHour
	}
	threshold = t.FullDayThreshold
	if threshold <= 0 {
		threshold = a.cfg.FullDayThresholdHours
	}
	return offset, earlyEnd, threshold
}
