// Package devicecmd manages the outbound command queue for push-protocol
// terminals. Devices cannot be dialed; commands wait in the queue until the
// device polls, so completion of a data pull is a trigger for new events, not
// a guarantee.
package devicecmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apextime/attendance-backend-go/internal/config"
	"github.com/apextime/attendance-backend-go/internal/domain/device"
	"github.com/apextime/attendance-backend-go/internal/domain/identity"
)

// Delivery priorities. Operational commands outrank data movement so a
// restart never queues behind a bulk user upload.
var commandPriorities = map[string]int{
	device.CommandRestart:    10,
	device.CommandTimeSync:   9,
	device.CommandClearUsers: 8,
	device.CommandDeleteUser: 7,
	device.CommandUploadUser: 5,
	device.CommandDataPull:   3,
}

const defaultPriority = 1

// pendingPollLimit bounds commands returned per device poll.
const pendingPollLimit = 10

type Service interface {
	// Enqueue queues a command for a device. The payload is serialized as
	// JSON; priority is derived from the command type.
	Enqueue(ctx context.Context, tenantID, deviceID, commandType string, payload map[string]any) (device.DeviceCommand, error)

	// UploadEmployee queues an UPLOAD_USER carrying the employee's device
	// enrollment record.
	UploadEmployee(ctx context.Context, tenantID, deviceID, employeeID string) (device.DeviceCommand, error)

	// UploadAllEmployees queues one UPLOAD_USER per active employee.
	// Failures on individual employees are logged and skipped.
	UploadAllEmployees(ctx context.Context, tenantID, deviceID string) ([]device.DeviceCommand, error)

	// DeleteEmployee queues a DELETE_USER for the employee's device token.
	DeleteEmployee(ctx context.Context, tenantID, deviceID, employeeID string) (device.DeviceCommand, error)

	// SyncTime queues a TIME_SYNC carrying the current instant.
	SyncTime(ctx context.Context, tenantID, deviceID string) (device.DeviceCommand, error)

	// ListPending returns the queue head for a device without delivering.
	ListPending(ctx context.Context, deviceID string) ([]device.DeviceCommand, error)

	// NextForDelivery claims the top pending command and renders its wire
	// form for the polling device. Returns ErrNoPendingCommand on empty.
	NextForDelivery(ctx context.Context, deviceID string) (device.DeviceCommand, string, error)

	// Complete records a device-reported result for a command.
	Complete(ctx context.Context, commandID string, success bool, response string) error

	// CompleteLastSent records a result against the most recently sent open
	// command, for terminals that do not echo the command id.
	CompleteLastSent(ctx context.Context, deviceID string, success bool, response string) error

	// ExpireStuck fails sent commands older than the configured timeout.
	ExpireStuck(ctx context.Context) (int64, error)
}

type devicecmdImpl struct {
	devices   device.DeviceRepository
	commands  device.CommandRepository
	directory identity.DirectoryRepository
	cfg       config.AttendanceConfig
}

func NewDeviceCommandService(
	devices device.DeviceRepository,
	commands device.CommandRepository,
	directory identity.DirectoryRepository,
	cfg config.AttendanceConfig,
) Service {
	return &devicecmdImpl{
		devices:   devices,
		commands:  commands,
		directory: directory,
		cfg:       cfg,
	}
}

// Enqueue implements Service.
func (s *devicecmdImpl) Enqueue(ctx context.Context, tenantID, deviceID, commandType string, payload map[string]any) (device.DeviceCommand, error) {
	if _, ok := commandPriorities[commandType]; !ok {
		return device.DeviceCommand{}, fmt.Errorf("%w: %s", device.ErrUnknownCommandType, commandType)
	}

	dev, err := s.tenantDevice(ctx, tenantID, deviceID)
	if err != nil {
		return device.DeviceCommand{}, err
	}

	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return device.DeviceCommand{}, fmt.Errorf("failed to serialize command payload: %w", err)
	}

	cmd, err := s.commands.Create(ctx, device.DeviceCommand{
		TenantID:    tenantID,
		DeviceID:    dev.ID,
		CommandType: commandType,
		Payload:     string(raw),
		Status:      device.CommandPending,
		Priority:    priorityOf(commandType),
	})
	if err != nil {
		return device.DeviceCommand{}, fmt.Errorf("failed to enqueue command: %w", err)
	}

	slog.Info("Device command queued", "device", dev.SerialNumber,
		"command_type", commandType, "command_id", cmd.ID, "priority", cmd.Priority)
	return cmd, nil
}

// UploadEmployee implements Service.
func (s *devicecmdImpl) UploadEmployee(ctx context.Context, tenantID, deviceID, employeeID string) (device.DeviceCommand, error) {
	ident, err := s.directory.GetByID(ctx, tenantID, employeeID)
	if err != nil {
		return device.DeviceCommand{}, err
	}
	return s.Enqueue(ctx, tenantID, deviceID, device.CommandUploadUser, enrollmentPayload(ident))
}

// UploadAllEmployees implements Service.
func (s *devicecmdImpl) UploadAllEmployees(ctx context.Context, tenantID, deviceID string) ([]device.DeviceCommand, error) {
	employees, err := s.directory.ListActive(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}

	var queued []device.DeviceCommand
	for _, ident := range employees {
		cmd, err := s.Enqueue(ctx, tenantID, deviceID, device.CommandUploadUser, enrollmentPayload(ident))
		if err != nil {
			slog.Error("Failed to queue employee upload", "employee_id", ident.ID, "error", err)
			continue
		}
		queued = append(queued, cmd)
	}
	return queued, nil
}

// DeleteEmployee implements Service.
func (s *devicecmdImpl) DeleteEmployee(ctx context.Context, tenantID, deviceID, employeeID string) (device.DeviceCommand, error) {
	ident, err := s.directory.GetByID(ctx, tenantID, employeeID)
	if err != nil {
		return device.DeviceCommand{}, err
	}
	return s.Enqueue(ctx, tenantID, deviceID, device.CommandDeleteUser, map[string]any{
		"user_id": deviceToken(ident),
	})
}

// SyncTime implements Service.
func (s *devicecmdImpl) SyncTime(ctx context.Context, tenantID, deviceID string) (device.DeviceCommand, error) {
	return s.Enqueue(ctx, tenantID, deviceID, device.CommandTimeSync, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ListPending implements Service.
func (s *devicecmdImpl) ListPending(ctx context.Context, deviceID string) ([]device.DeviceCommand, error) {
	return s.commands.ListPending(ctx, deviceID, pendingPollLimit)
}

// NextForDelivery implements Service.
func (s *devicecmdImpl) NextForDelivery(ctx context.Context, deviceID string) (device.DeviceCommand, string, error) {
	cmd, err := s.commands.NextForDelivery(ctx, deviceID)
	if err != nil {
		return device.DeviceCommand{}, "", err
	}

	wire := WireFormat(cmd)
	slog.Info("Device command delivered", "device_id", deviceID,
		"command_id", cmd.ID, "command_type", cmd.CommandType)
	return cmd, wire, nil
}

// Complete implements Service.
func (s *devicecmdImpl) Complete(ctx context.Context, commandID string, success bool, response string) error {
	if err := s.commands.Complete(ctx, commandID, success, response); err != nil {
		return err
	}
	slog.Info("Device command completed", "command_id", commandID, "success", success)
	return nil
}

// CompleteLastSent implements Service.
func (s *devicecmdImpl) CompleteLastSent(ctx context.Context, deviceID string, success bool, response string) error {
	cmd, err := s.commands.LastSent(ctx, deviceID)
	if err != nil {
		if errors.Is(err, device.ErrCommandNotFound) {
			// A result with nothing open is a late duplicate; ignore it.
			slog.Debug("Command result with no open command", "device_id", deviceID)
			return nil
		}
		return err
	}
	return s.Complete(ctx, cmd.ID, success, response)
}

// ExpireStuck implements Service.
func (s *devicecmdImpl) ExpireStuck(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.CommandSentTimeout)
	expired, err := s.commands.ExpireStuckSent(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stuck commands: %w", err)
	}
	if expired > 0 {
		slog.Warn("Expired sent commands without results", "count", expired)
	}
	return expired, nil
}

func (s *devicecmdImpl) tenantDevice(ctx context.Context, tenantID, deviceID string) (device.Device, error) {
	dev, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return device.Device{}, err
	}
	if dev.TenantID != tenantID {
		return device.Device{}, device.ErrDeviceNotFound
	}
	return dev, nil
}

func priorityOf(commandType string) int {
	if p, ok := commandPriorities[commandType]; ok {
		return p
	}
	return defaultPriority
}

// enrollmentPayload builds the UPLOAD_USER payload from the directory record.
func enrollmentPayload(ident identity.EmployeeIdentity) map[string]any {
	enabled := 0
	if ident.IsActive {
		enabled = 1
	}
	return map[string]any{
		"user_id":   deviceToken(ident),
		"name":      ident.FullName(),
		"privilege": 0,
		"password":  "",
		"card_no":   "",
		"enabled":   enabled,
	}
}

// deviceToken picks the token the terminal knows the employee by.
func deviceToken(ident identity.EmployeeIdentity) string {
	if ident.DeviceUserID != nil && *ident.DeviceUserID != "" {
		return *ident.DeviceUserID
	}
	return ident.EmployeeCode
}
