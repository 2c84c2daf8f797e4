package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apextime/attendance-backend-go/internal/domain/identity"
	"github.com/apextime/attendance-backend-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type directoryRepository struct {
	db *database.DB
}

func NewDirectoryRepository(db *database.DB) identity.DirectoryRepository {
	return &directoryRepository{db: db}
}

const identityColumns = `
	id, tenant_id, employee_code, first_name, last_name, device_user_id,
	source_employee_id, is_active, auto_generated, join_date, created_at, updated_at`

var namespaceColumn = map[identity.Namespace]string{
	identity.NamespaceDeviceUserID: "device_user_id",
	identity.NamespaceEmployeeCode: "employee_code",
	identity.NamespaceSourceID:     "source_employee_id",
}

// FindActiveByToken implements identity.DirectoryRepository. Results are
// ordered by (created_at, id) so concurrent resolvers always pick the same
// row when a token is registered twice.
func (r *directoryRepository) FindActiveByToken(ctx context.Context, tenantID, token string, ns identity.Namespace) ([]identity.EmployeeIdentity, error) {
	col, ok := namespaceColumn[ns]
	if !ok {
		return nil, fmt.Errorf("unknown token namespace %q", ns)
	}
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + identityColumns + `
		FROM employees
		WHERE tenant_id = $1
		  AND is_active = true
		  AND ` + col + ` = $2
		ORDER BY created_at ASC, id ASC
	`

	rows, err := q.Query(ctx, query, tenantID, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find identities by %s: %w", col, err)
	}
	defer rows.Close()

	return scanIdentities(rows)
}

// CreatePlaceholder implements identity.DirectoryRepository. The partial
// unique index on (tenant_id, device_user_id) makes the find-or-create
// atomic: two workers racing on a new token get the same row back.
func (r *directoryRepository) CreatePlaceholder(ctx context.Context, tenantID, token string, joinDate time.Time) (identity.EmployeeIdentity, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO employees (
			id, tenant_id, employee_code, first_name, last_name,
			device_user_id, is_active, auto_generated, join_date
		) VALUES ($1, $2, $3, $4, $5, $6, true, true, $7)
		ON CONFLICT (tenant_id, device_user_id)
		DO UPDATE SET device_user_id = EXCLUDED.device_user_id
		RETURNING ` + identityColumns + `
	`

	id := uuid.NewString()
	firstName := "Auto-User"
	lastName := token

	row := q.QueryRow(ctx, query,
		id, tenantID, token, firstName, lastName, token,
		joinDate.UTC().Truncate(24*time.Hour),
	)

	ident, err := scanIdentity(row)
	if err != nil {
		return identity.EmployeeIdentity{}, fmt.Errorf("failed to create placeholder identity: %w", err)
	}
	return ident, nil
}

// GetByID implements identity.DirectoryRepository.
func (r *directoryRepository) GetByID(ctx context.Context, tenantID, id string) (identity.EmployeeIdentity, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + identityColumns + `
		FROM employees
		WHERE tenant_id = $1 AND id = $2
	`

	ident, err := scanIdentity(q.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.EmployeeIdentity{}, identity.ErrIdentityNotFound
		}
		return identity.EmployeeIdentity{}, fmt.Errorf("failed to get identity by ID: %w", err)
	}
	return ident, nil
}

// GetJoinDate implements identity.DirectoryRepository.
func (r *directoryRepository) GetJoinDate(ctx context.Context, tenantID, id string) (time.Time, error) {
	q := GetQuerier(ctx, r.db)

	var joinDate time.Time
	err := q.QueryRow(ctx,
		`SELECT join_date FROM employees WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&joinDate)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, identity.ErrIdentityNotFound
		}
		return time.Time{}, fmt.Errorf("failed to get join date: %w", err)
	}
	return joinDate, nil
}

// UpdateName implements identity.DirectoryRepository.
func (r *directoryRepository) UpdateName(ctx context.Context, tenantID, id, firstName, lastName string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE employees
		SET first_name = $3, last_name = $4, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, firstName, lastName)

	if err != nil {
		return fmt.Errorf("failed to update identity name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrIdentityNotFound
	}
	return nil
}

// ListActive implements identity.DirectoryRepository.
func (r *directoryRepository) ListActive(ctx context.Context, tenantID string) ([]identity.EmployeeIdentity, error) {
	return r.list(ctx, tenantID, "is_active = true")
}

// ListAutoGenerated implements identity.DirectoryRepository.
func (r *directoryRepository) ListAutoGenerated(ctx context.Context, tenantID string) ([]identity.EmployeeIdentity, error) {
	return r.list(ctx, tenantID, "auto_generated = true")
}

func (r *directoryRepository) list(ctx context.Context, tenantID, where string) ([]identity.EmployeeIdentity, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + identityColumns + `
		FROM employees
		WHERE tenant_id = $1 AND ` + where + `
		ORDER BY employee_code ASC
	`

	rows, err := q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	defer rows.Close()

	return scanIdentities(rows)
}

func scanIdentity(row pgx.Row) (identity.EmployeeIdentity, error) {
	var e identity.EmployeeIdentity
	err := row.Scan(
		&e.ID, &e.TenantID, &e.EmployeeCode, &e.FirstName, &e.LastName,
		&e.DeviceUserID, &e.SourceEmployeeID, &e.IsActive, &e.AutoGenerated,
		&e.JoinDate, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func scanIdentities(rows pgx.Rows) ([]identity.EmployeeIdentity, error) {
	var identities []identity.EmployeeIdentity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read identities: %w", err)
	}
	return identities, nil
}
