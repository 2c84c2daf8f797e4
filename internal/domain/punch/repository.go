package punch

import (
	"context"
	"time"
)

// Filter selects raw events for the read-only query surface.
type Filter struct {
	DeviceID  *string
	Token     *string
	StartTime *time.Time
	EndTime   *time.Time
	Processed *bool
	Page      int
	Limit     int
}

// RawEventRepository is the raw-event store. All methods are tenant scoped.
type RawEventRepository interface {
	// Upsert stores an event keyed by (device_id, device_user_token,
	// punch_time, tenant_id). Returns false when the row already existed.
	Upsert(ctx context.Context, event RawPunchEvent) (bool, error)

	// ListUnprocessed returns unprocessed events ordered by ingestion
	// sequence, up to limit.
	ListUnprocessed(ctx context.Context, tenantID string, limit int) ([]RawPunchEvent, error)

	// ListByTokensInWindow returns all events (processed or not) for any of
	// the given tokens with punch_time in [from, to), ordered by punch_time
	// then ingestion sequence. Used to rebuild whole days around new events.
	ListByTokensInWindow(ctx context.Context, tenantID string, tokens []string, from, to time.Time) ([]RawPunchEvent, error)

	// ListInWindow returns all events in [from, to) for a tenant.
	ListInWindow(ctx context.Context, tenantID string, from, to time.Time) ([]RawPunchEvent, error)

	// MarkProcessed flips processed=true on the given events. Runs inside
	// the caller's transaction when one is on the context.
	MarkProcessed(ctx context.Context, tenantID string, ids []string) error

	// ResetProcessed flips processed=false on all events in [from, to),
	// optionally restricted to the given tokens. Returns the number of
	// events reset.
	ResetProcessed(ctx context.Context, tenantID string, from, to time.Time, tokens []string) (int64, error)

	// List retrieves events for reporting consumers.
	List(ctx context.Context, tenantID string, filter Filter) ([]RawPunchEvent, int64, error)
}
