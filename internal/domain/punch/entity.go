package punch

import (
	"time"
)

// RawPunchEvent is one physical clock event exactly as received from a
// device, after timestamp normalization to UTC. Rows are immutable except for
// the Processed flag; the audit payload is retained verbatim.
//
// An event is uniquely identified by (device_id, device_user_token,
// punch_time, tenant_id). Re-delivery of the same physical event upserts into
// the existing row instead of creating a duplicate.
type RawPunchEvent struct {
	ID              string
	TenantID        string
	DeviceID        string
	DeviceUserToken string
	PunchTime       time.Time // always UTC
	Direction       *string   // device-supplied hint, unreliable
	RawPayload      *string
	Processed       bool
	Seq             int64 // ingestion order, assigned by the store
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}
