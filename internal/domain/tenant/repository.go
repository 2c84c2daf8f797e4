package tenant

import "context"

type TenantRepository interface {
	GetByID(ctx context.Context, id string) (Tenant, error)
	ListActive(ctx context.Context) ([]Tenant, error)
}
