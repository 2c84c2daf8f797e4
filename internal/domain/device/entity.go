package device

import "time"

// Device protocols supported by the ingestion endpoints.
const (
	ProtocolPush       = "PUSH"        // iclock-style text command channel
	ProtocolDirectPush = "DIRECT_PUSH" // access controller HTTP callbacks
	ProtocolLegacySQL  = "LEGACY_SQL"  // rows pulled from a terminal database
	ProtocolManual     = "MANUAL"      // CSV / workbook / USB imports
)

// Device is a registered physical terminal. The registry is externally
// administered; the pipeline reads it and touches online status on check-in.
type Device struct {
	ID           string
	TenantID     string
	SerialNumber string
	Name         string
	Protocol     string
	Status       string
	LastSeen     *time.Time
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Command types, ordered here roughly by delivery priority.
const (
	CommandTimeSync   = "TIME_SYNC"
	CommandRestart    = "RESTART"
	CommandDataPull   = "DATA_PULL"
	CommandUploadUser = "UPLOAD_USER"
	CommandDeleteUser = "DELETE_USER"
	CommandClearUsers = "CLEAR_USERS"
)

// Command statuses. Failed commands are never retried automatically.
const (
	CommandPending   = "PENDING"
	CommandSent      = "SENT"
	CommandCompleted = "COMPLETED"
	CommandFailed    = "FAILED"
)

// DeviceCommand is an outbound instruction queued for a device. Completion of
// a data pull is a trigger, not a guarantee, that new raw events will arrive.
type DeviceCommand struct {
	ID          string
	TenantID    string
	DeviceID    string
	CommandType string
	Payload     string // serialized JSON
	Status      string
	Priority    int
	Response    *string
	CreatedAt   time.Time
	SentAt      *time.Time
	CompletedAt *time.Time
}
