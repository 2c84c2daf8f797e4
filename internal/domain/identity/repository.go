package identity

import (
	"context"
	"time"
)

// DirectoryRepository is the employee-directory collaborator surface consumed
// by the pipeline. The directory itself (CRUD, org structure) is external.
type DirectoryRepository interface {
	// FindActiveByToken returns active identities whose field for the given
	// namespace equals token, ordered deterministically (created_at, id).
	// More than one result signals a duplicate registration the caller must
	// report, not merge.
	FindActiveByToken(ctx context.Context, tenantID, token string, ns Namespace) ([]EmployeeIdentity, error)

	// CreatePlaceholder atomically finds or creates an auto-generated
	// identity linked to the token by device_user_id. Concurrent calls for
	// the same (tenant, token) return the same row.
	CreatePlaceholder(ctx context.Context, tenantID, token string, joinDate time.Time) (EmployeeIdentity, error)

	GetByID(ctx context.Context, tenantID, id string) (EmployeeIdentity, error)

	GetJoinDate(ctx context.Context, tenantID, id string) (time.Time, error)

	// UpdateName replaces the display name. Callers only invoke this for
	// auto-generated or numerically named identities.
	UpdateName(ctx context.Context, tenantID, id, firstName, lastName string) error

	// ListActive returns all active identities for a tenant.
	ListActive(ctx context.Context, tenantID string) ([]EmployeeIdentity, error)

	// ListAutoGenerated returns placeholder identities pending human
	// reconciliation.
	ListAutoGenerated(ctx context.Context, tenantID string) ([]EmployeeIdentity, error)
}
