package middleware

import (
	"context"
	"net/http"

	"github.com/apextime/attendance-backend-go/internal/handler/http/response"
)

type contextKey string

const tenantKey contextKey = "tenant_id"

// TenantRequired reads the tenant from the X-Tenant-ID header and rejects
// requests without one. Device transports are exempt; their tenant comes from
// the device registry row.
func TenantRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get("X-Tenant-ID")
		if tenantID == "" {
			response.BadRequest(w, "X-Tenant-ID header is required", nil)
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantID returns the tenant id set by TenantRequired, or empty.
func TenantID(ctx context.Context) string {
	if id, ok := ctx.Value(tenantKey).(string); ok {
		return id
	}
	return ""
}
