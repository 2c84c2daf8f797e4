package device

import (
	"context"
	"time"
)

// DeviceRepository is the device-registry collaborator surface.
type DeviceRepository interface {
	GetByID(ctx context.Context, id string) (Device, error)
	GetBySerial(ctx context.Context, serial string) (Device, error)
	ListActive(ctx context.Context, tenantID string) ([]Device, error)

	// TouchSeen marks a device online and records the check-in instant.
	TouchSeen(ctx context.Context, id string, at time.Time) error
}

// CommandRepository is the outbound command queue store.
type CommandRepository interface {
	Create(ctx context.Context, cmd DeviceCommand) (DeviceCommand, error)

	// ListPending returns up to limit pending commands ordered by priority
	// descending then created_at ascending, without changing their state.
	ListPending(ctx context.Context, deviceID string, limit int) ([]DeviceCommand, error)

	// NextForDelivery returns the top pending command and marks it sent, or
	// ErrNoPendingCommand.
	NextForDelivery(ctx context.Context, deviceID string) (DeviceCommand, error)

	// LastSent returns the most recently sent, still-open command for a
	// device. Push terminals report results without echoing our command id.
	LastSent(ctx context.Context, deviceID string) (DeviceCommand, error)

	GetByID(ctx context.Context, id string) (DeviceCommand, error)

	// Complete transitions Sent to Completed or Failed and stores the raw
	// device response.
	Complete(ctx context.Context, id string, success bool, response string) error

	// ExpireStuckSent fails commands sent before the cutoff that never got a
	// result. Returns the number of commands expired.
	ExpireStuckSent(ctx context.Context, cutoff time.Time) (int64, error)
}
