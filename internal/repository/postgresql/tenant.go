package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/apextime/attendance-backend-go/internal/domain/tenant"
	"github.com/apextime/attendance-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type tenantRepository struct {
	db *database.DB
}

func NewTenantRepository(db *database.DB) tenant.TenantRepository {
	return &tenantRepository{db: db}
}

const tenantColumns = `
	id, name, tz_offset_minutes, early_window_end_hour, full_day_threshold,
	is_active, created_at, updated_at`

// GetByID implements tenant.TenantRepository.
func (r *tenantRepository) GetByID(ctx context.Context, id string) (tenant.Tenant, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	t, err := scanTenant(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tenant.Tenant{}, tenant.ErrTenantNotFound
		}
		return tenant.Tenant{}, fmt.Errorf("failed to get tenant by ID: %w", err)
	}
	return t, nil
}

// ListActive implements tenant.TenantRepository.
func (r *tenantRepository) ListActive(ctx context.Context) ([]tenant.Tenant, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE is_active = true ORDER BY name ASC`
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tenants: %w", err)
	}
	return tenants, nil
}

func scanTenant(row pgx.Row) (tenant.Tenant, error) {
	var t tenant.Tenant
	err := row.Scan(
		&t.ID, &t.Name, &t.TZOffsetMinutes, &t.EarlyWindowEndHour,
		&t.FullDayThreshold, &t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}
