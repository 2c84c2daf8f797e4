package devicecmd

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/apextime/attendance-backend-go/internal/config"
	"github.com/apextime/attendance-backend-go/internal/domain/device"
	"github.com/apextime/attendance-backend-go/internal/domain/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevices struct {
	devices map[string]device.Device
}

func (f *fakeDevices) GetByID(_ context.Context, id string) (device.Device, error) {
	if d, ok := f.devices[id]; ok {
		return d, nil
	}
	return device.Device{}, device.ErrDeviceNotFound
}
func (f *fakeDevices) GetBySerial(context.Context, string) (device.Device, error) {
	return device.Device{}, device.ErrDeviceNotFound
}
func (f *fakeDevices) ListActive(context.Context, string) ([]device.Device, error) {
	return nil, nil
}
func (f *fakeDevices) TouchSeen(context.Context, string, time.Time) error { return nil }

type fakeCommands struct {
	created   []device.DeviceCommand
	completed map[string]bool
	lastSent  *device.DeviceCommand
	expired   int64
}

func (f *fakeCommands) Create(_ context.Context, cmd device.DeviceCommand) (device.DeviceCommand, error) {
	cmd.ID = "cmd-" + cmd.CommandType
	cmd.CreatedAt = time.Now()
	f.created = append(f.created, cmd)
	return cmd, nil
}

func (f *fakeCommands) ListPending(_ context.Context, deviceID string, _ int) ([]device.DeviceCommand, error) {
	var out []device.DeviceCommand
	for _, c := range f.created {
		if c.DeviceID == deviceID && c.Status == device.CommandPending {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCommands) NextForDelivery(_ context.Context, deviceID string) (device.DeviceCommand, error) {
	best := -1
	for i, c := range f.created {
		if c.DeviceID != deviceID || c.Status != device.CommandPending {
			continue
		}
		if best < 0 || c.Priority > f.created[best].Priority {
			best = i
		}
	}
	if best < 0 {
		return device.DeviceCommand{}, device.ErrNoPendingCommand
	}
	f.created[best].Status = device.CommandSent
	return f.created[best], nil
}

func (f *fakeCommands) LastSent(context.Context, string) (device.DeviceCommand, error) {
	if f.lastSent == nil {
		return device.DeviceCommand{}, device.ErrCommandNotFound
	}
	return *f.lastSent, nil
}

func (f *fakeCommands) GetByID(context.Context, string) (device.DeviceCommand, error) {
	return device.DeviceCommand{}, device.ErrCommandNotFound
}

func (f *fakeCommands) Complete(_ context.Context, id string, success bool, _ string) error {
	if f.completed == nil {
		f.completed = map[string]bool{}
	}
	f.completed[id] = success
	return nil
}

func (f *fakeCommands) ExpireStuckSent(context.Context, time.Time) (int64, error) {
	return f.expired, nil
}

type fakeDirectory struct {
	employees []identity.EmployeeIdentity
}

func (f *fakeDirectory) FindActiveByToken(context.Context, string, string, identity.Namespace) ([]identity.EmployeeIdentity, error) {
	return nil, nil
}
func (f *fakeDirectory) CreatePlaceholder(context.Context, string, string, time.Time) (identity.EmployeeIdentity, error) {
	return identity.EmployeeIdentity{}, nil
}
func (f *fakeDirectory) GetByID(_ context.Context, tenantID, id string) (identity.EmployeeIdentity, error) {
	for _, e := range f.employees {
		if e.TenantID == tenantID && e.ID == id {
			return e, nil
		}
	}
	return identity.EmployeeIdentity{}, identity.ErrIdentityNotFound
}
func (f *fakeDirectory) GetJoinDate(context.Context, string, string) (time.Time, error) {
	return time.Time{}, nil
}
func (f *fakeDirectory) UpdateName(context.Context, string, string, string, string) error {
	return nil
}
func (f *fakeDirectory) ListActive(_ context.Context, tenantID string) ([]identity.EmployeeIdentity, error) {
	var out []identity.EmployeeIdentity
	for _, e := range f.employees {
		if e.TenantID == tenantID && e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}
func (f *fakeDirectory) ListAutoGenerated(context.Context, string) ([]identity.EmployeeIdentity, error) {
	return nil, nil
}

func strPtr(s string) *string { return &s }

func newTestService(commands *fakeCommands, dir *fakeDirectory) Service {
	devices := &fakeDevices{devices: map[string]device.Device{
		"d1": {ID: "d1", TenantID: "t1", SerialNumber: "SN100", Protocol: device.ProtocolPush},
	}}
	return NewDeviceCommandService(devices, commands, dir, config.AttendanceConfig{
		CommandSentTimeout: time.Hour,
	})
}

func TestEnqueue_AssignsPriorityByType(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	commands := &fakeCommands{}
	svc := newTestService(commands, &fakeDirectory{})

	restart, err := svc.Enqueue(ctx, "t1", "d1", device.CommandRestart, nil)
	require.NoError(t, err)
	pull, err := svc.Enqueue(ctx, "t1", "d1", device.CommandDataPull, nil)
	require.NoError(t, err)

	assert.Greater(t, restart.Priority, pull.Priority)
	assert.Equal(t, device.CommandPending, restart.Status)
	assert.JSONEq(t, "{}", restart.Payload)
}

func TestEnqueue_RejectsUnknownTypeAndForeignDevice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := newTestService(&fakeCommands{}, &fakeDirectory{})

	_, err := svc.Enqueue(ctx, "t1", "d1", "FORMAT_DISK", nil)
	assert.ErrorIs(t, err, device.ErrUnknownCommandType)

	_, err = svc.Enqueue(ctx, "t2", "d1", device.CommandRestart, nil)
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)
}

func TestNextForDelivery_HighestPriorityFirstAndWireForm(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	commands := &fakeCommands{}
	svc := newTestService(commands, &fakeDirectory{})

	_, err := svc.Enqueue(ctx, "t1", "d1", device.CommandDataPull, nil)
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, "t1", "d1", device.CommandRestart, nil)
	require.NoError(t, err)

	cmd, wire, err := svc.NextForDelivery(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, device.CommandRestart, cmd.CommandType)
	assert.Equal(t, "C:"+cmd.ID+":DATA RESTART", wire)

	cmd, wire, err = svc.NextForDelivery(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, device.CommandDataPull, cmd.CommandType)
	assert.Equal(t, "C:"+cmd.ID+":DATA QUERY ATTLOG", wire)

	_, _, err = svc.NextForDelivery(ctx, "d1")
	assert.ErrorIs(t, err, device.ErrNoPendingCommand)
}

func TestUploadEmployee_BuildsEnrollmentPayload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	commands := &fakeCommands{}
	dir := &fakeDirectory{employees: []identity.EmployeeIdentity{
		{ID: "e1", TenantID: "t1", EmployeeCode: "HO042", DeviceUserID: strPtr("42"),
			FirstName: "Kavya", LastName: "Rao", IsActive: true},
	}}
	svc := newTestService(commands, dir)

	cmd, err := svc.UploadEmployee(ctx, "t1", "d1", "e1")
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(cmd.Payload), &payload))
	assert.Equal(t, "42", payload["user_id"])
	assert.Equal(t, "Kavya Rao", payload["name"])
	assert.Equal(t, float64(1), payload["enabled"])

	wire := WireFormat(cmd)
	assert.True(t, strings.HasPrefix(wire, "C:"+cmd.ID+":DATA USER PIN=42\tName=Kavya Rao"), wire)
}

func TestDeleteEmployee_FallsBackToEmployeeCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	commands := &fakeCommands{}
	dir := &fakeDirectory{employees: []identity.EmployeeIdentity{
		{ID: "e1", TenantID: "t1", EmployeeCode: "HO042", IsActive: true},
	}}
	svc := newTestService(commands, dir)

	cmd, err := svc.DeleteEmployee(ctx, "t1", "d1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "C:"+cmd.ID+":DATA DELETE USER PIN=HO042", WireFormat(cmd))
}

func TestUploadAllEmployees_SkipsInactive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	commands := &fakeCommands{}
	dir := &fakeDirectory{employees: []identity.EmployeeIdentity{
		{ID: "e1", TenantID: "t1", EmployeeCode: "HO001", IsActive: true},
		{ID: "e2", TenantID: "t1", EmployeeCode: "HO002", IsActive: false},
		{ID: "e3", TenantID: "t1", EmployeeCode: "HO003", IsActive: true},
	}}
	svc := newTestService(commands, dir)

	queued, err := svc.UploadAllEmployees(ctx, "t1", "d1")
	require.NoError(t, err)
	assert.Len(t, queued, 2)
}

func TestWireFormat_TimeSync(t *testing.T) {
	t.Parallel()

	cmd := device.DeviceCommand{
		ID:          "c1",
		CommandType: device.CommandTimeSync,
		Payload:     `{"timestamp":"2026-02-06T09:15:30Z"}`,
	}
	assert.Equal(t, "C:c1:DATA UPDATE STIME 2026-02-06 09:15:30", WireFormat(cmd))
}

func TestCompleteLastSent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	commands := &fakeCommands{lastSent: &device.DeviceCommand{ID: "c9", Status: device.CommandSent}}
	svc := newTestService(commands, &fakeDirectory{})

	require.NoError(t, svc.CompleteLastSent(ctx, "d1", true, "ID=c9&Return=0"))
	assert.True(t, commands.completed["c9"])

	// No open command: the result is ignored, not an error.
	commands.lastSent = nil
	require.NoError(t, svc.CompleteLastSent(ctx, "d1", true, "ID=zz&Return=0"))
}
