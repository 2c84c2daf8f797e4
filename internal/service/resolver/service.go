package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apextime/attendance-backend-go/internal/config"
	"github.com/apextime/attendance-backend-go/internal/domain/identity"
	"github.com/apextime/attendance-backend-go/internal/pkg/metrics"
	"github.com/apextime/attendance-backend-go/internal/pkg/validator"
)

// Service maps device-local user tokens to canonical employee identities.
// A token that matches nothing gets a placeholder identity so its punches are
// never dropped; placeholders carry the auto-generated flag for later human
// reconciliation.
type Service interface {
	// Resolve returns the best-matching active identity for a token,
	// creating a placeholder on a total miss.
	Resolve(ctx context.Context, tenantID, token string) (identity.EmployeeIdentity, error)

	// BackfillName upgrades the display name of an auto-generated or
	// numerically named identity from a device-supplied name. Real names
	// are never overwritten.
	BackfillName(ctx context.Context, tenantID, token, displayName string) error

	// Invalidate drops cached resolutions for a tenant.
	Invalidate(tenantID string)
}

type resolverImpl struct {
	directory identity.DirectoryRepository
	cache     *tokenCache
	cfg       config.AttendanceConfig
}

func NewResolverService(directory identity.DirectoryRepository, cfg config.AttendanceConfig) Service {
	return &resolverImpl{
		directory: directory,
		cache:     newTokenCache(cfg.ResolverCacheTTL),
		cfg:       cfg,
	}
}

// resolution namespace order: device user id, employee code, legacy source id.
var namespaceOrder = []identity.Namespace{
	identity.NamespaceDeviceUserID,
	identity.NamespaceEmployeeCode,
	identity.NamespaceSourceID,
}

// Resolve implements Service.
func (r *resolverImpl) Resolve(ctx context.Context, tenantID, token string) (identity.EmployeeIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return identity.EmployeeIdentity{}, fmt.Errorf("empty device user token")
	}

	if id, ok := r.cache.get(tenantID, token); ok {
		ident, err := r.directory.GetByID(ctx, tenantID, id)
		if err == nil {
			return ident, nil
		}
		// Cached identity vanished; fall through to a fresh lookup.
	}

	if ident, ok, err := r.lookup(ctx, tenantID, token); err != nil {
		return identity.EmployeeIdentity{}, err
	} else if ok {
		r.cache.put(tenantID, token, ident.ID)
		return ident, nil
	}

	// Legacy short numeric codes: token "4" may be registered as "HO004".
	if padded, ok := r.legacyCode(token); ok {
		if ident, ok, err := r.lookup(ctx, tenantID, padded); err != nil {
			return identity.EmployeeIdentity{}, err
		} else if ok {
			r.cache.put(tenantID, token, ident.ID)
			return ident, nil
		}
	}

	ident, err := r.directory.CreatePlaceholder(ctx, tenantID, token, time.Now().UTC())
	if err != nil {
		return identity.EmployeeIdentity{}, fmt.Errorf("failed to create placeholder for token %q: %w", token, err)
	}

	metrics.PlaceholdersCreated.Inc()
	slog.Info("Created placeholder identity for unresolved token",
		"tenant_id", tenantID, "token", token, "identity_id", ident.ID)

	r.cache.put(tenantID, token, ident.ID)
	return ident, nil
}

// lookup walks the namespaces in fixed order; first match wins, no fuzzy
// scoring. Multiple matches in one namespace are reported and the first
// deterministic row is used so ingestion never blocks.
func (r *resolverImpl) lookup(ctx context.Context, tenantID, token string) (identity.EmployeeIdentity, bool, error) {
	for _, ns := range namespaceOrder {
		matches, err := r.directory.FindActiveByToken(ctx, tenantID, token, ns)
		if err != nil {
			return identity.EmployeeIdentity{}, false, fmt.Errorf("failed to find identity by %s: %w", ns, err)
		}
		if len(matches) == 0 {
			continue
		}
		if len(matches) > 1 {
			slog.Warn("Multiple active identities match token, using first",
				"tenant_id", tenantID, "token", token, "namespace", string(ns),
				"matches", len(matches), "error", identity.ErrIdentityAmbiguous)
		}
		return matches[0], true, nil
	}
	return identity.EmployeeIdentity{}, false, nil
}

// legacyCode builds the zero-padded, prefixed form of a short numeric token.
func (r *resolverImpl) legacyCode(token string) (string, bool) {
	if !validator.IsNumeric(token) || len(token) > r.cfg.LegacyCodePadWidth+1 {
		return "", false
	}
	padded := token
	for len(padded) < r.cfg.LegacyCodePadWidth {
		padded = "0" + padded
	}
	return r.cfg.LegacyCodePrefix + padded, true
}

// BackfillName implements Service.
func (r *resolverImpl) BackfillName(ctx context.Context, tenantID, token, displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" || validator.IsNumeric(displayName) {
		return nil
	}

	ident, err := r.Resolve(ctx, tenantID, token)
	if err != nil {
		return err
	}

	// Only placeholder-ish names get upgraded; once a person has a real
	// name the device can no longer change it.
	if ident.FirstName != "Auto-User" && !validator.IsNumeric(ident.FirstName) {
		return nil
	}

	firstName, lastName := splitName(displayName)
	if err := r.directory.UpdateName(ctx, tenantID, ident.ID, firstName, lastName); err != nil {
		return fmt.Errorf("failed to backfill name for token %q: %w", token, err)
	}

	slog.Info("Backfilled identity name from device payload",
		"tenant_id", tenantID, "token", token, "identity_id", ident.ID)
	return nil
}

// Invalidate implements Service.
func (r *resolverImpl) Invalidate(tenantID string) {
	r.cache.invalidateTenant(tenantID)
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
