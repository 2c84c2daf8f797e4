package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apextime/attendance-backend-go/internal/domain/summary"
	"github.com/apextime/attendance-backend-go/internal/pkg/database"
	"github.com/apextime/attendance-backend-go/internal/pkg/workday"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type summaryRepository struct {
	db *database.DB
}

func NewSummaryRepository(db *database.DB) summary.SummaryRepository {
	return &summaryRepository{db: db}
}

// Upsert implements summary.SummaryRepository. The update path overwrites
// every computed field so a re-aggregation that loses last_out clears it
// instead of leaving the stale value.
func (r *summaryRepository) Upsert(ctx context.Context, s summary.AttendanceSummary) (bool, error) {
	q := GetQuerier(ctx, r.db)

	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	query := `
		INSERT INTO attendance_summaries (
			id, tenant_id, employee_id, date, first_in, last_out,
			working_hours, total_punches, status, punch_log
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (employee_id, date, tenant_id) DO UPDATE SET
			first_in = EXCLUDED.first_in,
			last_out = EXCLUDED.last_out,
			working_hours = EXCLUDED.working_hours,
			total_punches = EXCLUDED.total_punches,
			status = EXCLUDED.status,
			punch_log = EXCLUDED.punch_log,
			updated_at = NOW()
		RETURNING (xmax = 0)
	`

	var lastOut *time.Time
	if s.LastOut != nil {
		t := s.LastOut.UTC()
		lastOut = &t
	}

	var created bool
	err := q.QueryRow(ctx, query,
		s.ID,
		s.TenantID,
		s.EmployeeID,
		s.Date.Time(),
		s.FirstIn.UTC(),
		lastOut,
		s.WorkingHours,
		s.TotalPunches,
		s.Status,
		s.PunchLog,
	).Scan(&created)

	if err != nil {
		return false, fmt.Errorf("failed to upsert attendance summary: %w", err)
	}

	return created, nil
}

// GetByKey implements summary.SummaryRepository.
func (r *summaryRepository) GetByKey(ctx context.Context, tenantID, employeeID string, date workday.Date) (summary.AttendanceSummary, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, tenant_id, employee_id, date, first_in, last_out,
			   working_hours, total_punches, status, punch_log,
			   created_at, updated_at
		FROM attendance_summaries
		WHERE tenant_id = $1 AND employee_id = $2 AND date = $3
	`

	var s summary.AttendanceSummary
	var d time.Time
	err := q.QueryRow(ctx, query, tenantID, employeeID, date.Time()).Scan(
		&s.ID, &s.TenantID, &s.EmployeeID, &d, &s.FirstIn, &s.LastOut,
		&s.WorkingHours, &s.TotalPunches, &s.Status, &s.PunchLog,
		&s.CreatedAt, &s.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return summary.AttendanceSummary{}, summary.ErrSummaryNotFound
		}
		return summary.AttendanceSummary{}, fmt.Errorf("failed to get attendance summary: %w", err)
	}

	s.Date = workday.DateOf(d.UTC())
	return s, nil
}

// List implements summary.SummaryRepository.
func (r *summaryRepository) List(ctx context.Context, tenantID string, filter summary.Filter) ([]summary.AttendanceSummary, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseWhere := "s.tenant_id = $1 AND s.date >= $2 AND s.date <= $3"
	args := []interface{}{tenantID, filter.StartDate.Time(), filter.EndDate.Time()}
	argIdx := 4

	if len(filter.EmployeeIDs) > 0 {
		baseWhere += fmt.Sprintf(" AND s.employee_id = ANY($%d)", argIdx)
		args = append(args, filter.EmployeeIDs)
		argIdx++
	}
	if filter.ExcludeAuto {
		baseWhere += " AND e.auto_generated = false"
	}

	var total int64
	countQuery := `
		SELECT COUNT(*)
		FROM attendance_summaries s
		LEFT JOIN employees e ON e.id = s.employee_id
		WHERE ` + baseWhere
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendance summaries: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	query := fmt.Sprintf(`
		SELECT s.id, s.tenant_id, s.employee_id, s.date, s.first_in, s.last_out,
			   s.working_hours, s.total_punches, s.status, s.punch_log,
			   s.created_at, s.updated_at,
			   e.first_name || ' ' || e.last_name AS employee_name,
			   e.employee_code,
			   e.auto_generated
		FROM attendance_summaries s
		LEFT JOIN employees e ON e.id = s.employee_id
		WHERE `+baseWhere+`
		ORDER BY s.date ASC, e.employee_code ASC
		LIMIT $%d OFFSET $%d
	`, argIdx, argIdx+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attendance summaries: %w", err)
	}
	defer rows.Close()

	var summaries []summary.AttendanceSummary
	for rows.Next() {
		var s summary.AttendanceSummary
		var d time.Time
		err := rows.Scan(
			&s.ID, &s.TenantID, &s.EmployeeID, &d, &s.FirstIn, &s.LastOut,
			&s.WorkingHours, &s.TotalPunches, &s.Status, &s.PunchLog,
			&s.CreatedAt, &s.UpdatedAt,
			&s.EmployeeName, &s.EmployeeCode, &s.AutoGenerated,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance summary: %w", err)
		}
		s.Date = workday.DateOf(d.UTC())
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read attendance summaries: %w", err)
	}

	return summaries, total, nil
}

// DeleteRange implements summary.SummaryRepository.
func (r *summaryRepository) DeleteRange(ctx context.Context, tenantID string, start, end workday.Date, employeeIDs []string) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		DELETE FROM attendance_summaries
		WHERE tenant_id = $1 AND date >= $2 AND date <= $3
	`
	args := []interface{}{tenantID, start.Time(), end.Time()}

	if len(employeeIDs) > 0 {
		query += " AND employee_id = ANY($4)"
		args = append(args, employeeIDs)
	}

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete summaries in range: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeletePreJoin implements summary.SummaryRepository. Summaries dated before
// the owning employee's join date are ghosts left by device-token
// reassignment; only the named employee (or the whole tenant) is touched.
func (r *summaryRepository) DeletePreJoin(ctx context.Context, tenantID string, employeeID string) (map[string]int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		DELETE FROM attendance_summaries s
		USING employees e
		WHERE s.employee_id = e.id
		  AND s.tenant_id = $1
		  AND s.date < e.join_date
	`
	args := []interface{}{tenantID}

	if employeeID != "" {
		query += " AND s.employee_id = $2"
		args = append(args, employeeID)
	}
	query += " RETURNING s.employee_id"

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to purge pre-join summaries: %w", err)
	}
	defer rows.Close()

	deleted := make(map[string]int64)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan purged summary: %w", err)
		}
		deleted[id]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read purged summaries: %w", err)
	}

	return deleted, nil
}
