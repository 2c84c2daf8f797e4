package normalizer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/apextime/attendance-backend-go/internal/config"
	"github.com/apextime/attendance-backend-go/internal/domain/device"
	"github.com/apextime/attendance-backend-go/internal/domain/identity"
	"github.com/apextime/attendance-backend-go/internal/domain/punch"
	"github.com/apextime/attendance-backend-go/internal/domain/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// fakeEvents is an in-memory punch.RawEventRepository covering the upsert
// path the normalizer uses.
type fakeEvents struct {
	stored []punch.RawPunchEvent
	keys   map[string]bool
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{keys: map[string]bool{}}
}

func (f *fakeEvents) Upsert(_ context.Context, event punch.RawPunchEvent) (bool, error) {
	key := event.DeviceID + "|" + event.DeviceUserToken + "|" +
		event.PunchTime.Format(time.RFC3339) + "|" + event.TenantID
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	f.stored = append(f.stored, event)
	return true, nil
}

func (f *fakeEvents) ListUnprocessed(context.Context, string, int) ([]punch.RawPunchEvent, error) {
	return nil, nil
}

func (f *fakeEvents) ListByTokensInWindow(context.Context, string, []string, time.Time, time.Time) ([]punch.RawPunchEvent, error) {
	return nil, nil
}

func (f *fakeEvents) ListInWindow(context.Context, string, time.Time, time.Time) ([]punch.RawPunchEvent, error) {
	return nil, nil
}

func (f *fakeEvents) MarkProcessed(context.Context, string, []string) error { return nil }

func (f *fakeEvents) ResetProcessed(context.Context, string, time.Time, time.Time, []string) (int64, error) {
	return 0, nil
}

func (f *fakeEvents) List(context.Context, string, punch.Filter) ([]punch.RawPunchEvent, int64, error) {
	return nil, 0, nil
}

type fakeTenants struct {
	offset int
}

func (f *fakeTenants) GetByID(_ context.Context, id string) (tenant.Tenant, error) {
	return tenant.Tenant{ID: id, TZOffsetMinutes: f.offset, EarlyWindowEndHour: 5, IsActive: true}, nil
}

func (f *fakeTenants) ListActive(context.Context) ([]tenant.Tenant, error) { return nil, nil }

type fakeResolver struct {
	backfills map[string]string
}

func (f *fakeResolver) Resolve(_ context.Context, tenantID, token string) (identity.EmployeeIdentity, error) {
	return identity.EmployeeIdentity{ID: "id-" + token, TenantID: tenantID}, nil
}

func (f *fakeResolver) BackfillName(_ context.Context, _, token, displayName string) error {
	if f.backfills == nil {
		f.backfills = map[string]string{}
	}
	f.backfills[token] = displayName
	return nil
}

func (f *fakeResolver) Invalidate(string) {}

func testDevice() device.Device {
	return device.Device{ID: "d1", TenantID: "t1", SerialNumber: "SN100", Protocol: device.ProtocolPush}
}

func newTestService(events *fakeEvents, offsetMinutes int) (Service, *fakeResolver) {
	res := &fakeResolver{}
	svc := NewNormalizerService(events, &fakeTenants{offset: offsetMinutes}, res, config.AttendanceConfig{})
	return svc, res
}

func TestParsePushLines(t *testing.T) {
	t.Parallel()

	body := "101\t2026-02-06 09:00:05\t0\t1\r\n" +
		"102\t2026-02-06 09:01:00\t1\n" +
		"\n" +
		"garbage-without-tabs\n" +
		"103\t2026-02-06 09:02:00\t9\n"

	records, malformed := parsePushLines(body)

	require.Len(t, records, 3)
	assert.Equal(t, 1, malformed)

	assert.Equal(t, "101", records[0].Token)
	assert.Equal(t, "2026-02-06 09:00:05", records[0].Timestamp)
	require.NotNil(t, records[0].Direction)
	assert.Equal(t, "in", *records[0].Direction)

	require.NotNil(t, records[1].Direction)
	assert.Equal(t, "out", *records[1].Direction)

	// Unknown state code: kept, direction unset.
	assert.Nil(t, records[2].Direction)
}

func TestIngestPushData_AnchorsToTenantOffset(t *testing.T) {
	t.Parallel()
	events := newFakeEvents()
	svc, _ := newTestService(events, 330)

	result, err := svc.IngestPushData(context.Background(), testDevice(),
		"101\t2026-02-06 09:00:00\t0\n")

	require.NoError(t, err)
	assert.Equal(t, Result{Received: 1, Stored: 1}, result)
	require.Len(t, events.stored, 1)

	// 09:00 at UTC+05:30 is 03:30 UTC.
	want := time.Date(2026, 2, 6, 3, 30, 0, 0, time.UTC)
	assert.True(t, events.stored[0].PunchTime.Equal(want),
		"got %s", events.stored[0].PunchTime)
	assert.Equal(t, "t1", events.stored[0].TenantID)
	assert.Equal(t, "d1", events.stored[0].DeviceID)
}

func TestIngestPushData_CountsDuplicatesAndDrops(t *testing.T) {
	t.Parallel()
	events := newFakeEvents()
	svc, _ := newTestService(events, 0)

	body := "101\t2026-02-06 09:00:00\n" +
		"101\t2026-02-06 09:00:00\n" +
		"101\tnot-a-timestamp\n"
	result, err := svc.IngestPushData(context.Background(), testDevice(), body)

	require.NoError(t, err)
	assert.Equal(t, Result{Received: 3, Stored: 1, Duplicates: 1, Dropped: 1}, result)
}

func TestParseDirectPush_FlatJSON(t *testing.T) {
	t.Parallel()

	body := []byte(`{"serialNo":123,"employeeNo":7,"time":"2026-02-06T09:00:00+05:30","name":"Ravi"}`)
	evt, err := ParseDirectPush(body, "application/json")

	require.NoError(t, err)
	assert.Equal(t, "123", evt.SerialNo)
	assert.Equal(t, "7", evt.UserToken)
	assert.Equal(t, "Ravi", evt.Name)
	assert.Equal(t, "2026-02-06T09:00:00+05:30", evt.Time)
	assert.True(t, evt.Verified())
}

func TestParseDirectPush_AccessControllerEvent(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"EventNotificationAlert": {
			"serialNo": 555,
			"dateTime": "2026-02-06T09:15:00+05:30",
			"eventType": "AccessControllerEvent",
			"AccessControllerEvent": {
				"employeeNoString": "HO042",
				"name": "Kavya Rao",
				"subEventType": 75
			}
		}
	}`)
	evt, err := ParseDirectPush(body, "application/json")

	require.NoError(t, err)
	assert.Equal(t, "HO042", evt.UserToken)
	assert.Equal(t, "Kavya Rao", evt.Name)
	assert.Equal(t, "2026-02-06T09:15:00+05:30", evt.Time)
	assert.Equal(t, 75, evt.SubEventType)
	assert.True(t, evt.Verified())
}

func TestParseDirectPush_XML(t *testing.T) {
	t.Parallel()

	body := []byte(`<EventNotificationAlert>
		<serialNo>777</serialNo>
		<dateTime>2026-02-06T18:30:00+05:30</dateTime>
		<eventType>AccessControllerEvent</eventType>
		<AccessControllerEvent>
			<employeeNoString>88</employeeNoString>
			<name>Arun</name>
			<subEventType>38</subEventType>
		</AccessControllerEvent>
	</EventNotificationAlert>`)
	evt, err := ParseDirectPush(body, "application/xml")

	require.NoError(t, err)
	assert.Equal(t, "777", evt.SerialNo)
	assert.Equal(t, "88", evt.UserToken)
	assert.Equal(t, 38, evt.SubEventType)
	assert.True(t, evt.Verified())
}

func TestDirectPushEvent_UnverifiedSubTypeFiltered(t *testing.T) {
	t.Parallel()

	evt := DirectPushEvent{UserToken: "7", Time: "2026-02-06T09:00:00Z", SubEventType: 21}
	assert.False(t, evt.Verified())

	events := newFakeEvents()
	svc, _ := newTestService(events, 0)
	result, err := svc.IngestDirectPush(context.Background(), testDevice(), evt)

	require.NoError(t, err)
	assert.Equal(t, Result{Received: 1, Dropped: 1}, result)
	assert.Empty(t, events.stored)
}

func TestIngestDirectPush_StoresAndBackfillsName(t *testing.T) {
	t.Parallel()
	events := newFakeEvents()
	svc, res := newTestService(events, 330)

	evt := DirectPushEvent{
		UserToken:    "HO042",
		Name:         "Kavya Rao",
		Time:         "2026-02-06T09:15:00+05:30",
		SubEventType: 75,
		Raw:          `{"x":1}`,
	}
	result, err := svc.IngestDirectPush(context.Background(), testDevice(), evt)

	require.NoError(t, err)
	assert.Equal(t, Result{Received: 1, Stored: 1}, result)
	require.Len(t, events.stored, 1)

	want := time.Date(2026, 2, 6, 3, 45, 0, 0, time.UTC)
	assert.True(t, events.stored[0].PunchTime.Equal(want))
	assert.Equal(t, "Kavya Rao", res.backfills["HO042"])
}

func TestIngestDirectPush_MissingFieldsDropped(t *testing.T) {
	t.Parallel()
	events := newFakeEvents()
	svc, _ := newTestService(events, 0)

	result, err := svc.IngestDirectPush(context.Background(), testDevice(),
		DirectPushEvent{Time: "2026-02-06T09:00:00Z"})

	require.NoError(t, err)
	assert.Equal(t, Result{Received: 1, Dropped: 1}, result)
}

func TestParseCSV(t *testing.T) {
	t.Parallel()

	input := "token,timestamp,direction\n" +
		"101,2026-02-06 09:00:00,in\n" +
		"102,2026-02-06 18:30:00,OUT\n" +
		"103,2026-02-06 12:00:00,lunch\n"
	rows, err := ParseCSV(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "101", rows[1].Token)
	require.NotNil(t, rows[1].Direction)
	assert.Equal(t, "in", *rows[1].Direction)
	require.NotNil(t, rows[2].Direction)
	assert.Equal(t, "out", *rows[2].Direction)
	assert.Nil(t, rows[3].Direction)
}

func TestIngestImportRows_SkipsHeaderRow(t *testing.T) {
	t.Parallel()
	events := newFakeEvents()
	svc, _ := newTestService(events, 330)

	rows := []ImportRow{
		{Token: "token", Timestamp: "timestamp"},
		{Token: "101", Timestamp: "2026-02-06 09:00:00"},
		{Token: "", Timestamp: "2026-02-06 10:00:00"},
	}
	result, err := svc.IngestImportRows(context.Background(), testDevice(), rows)

	require.NoError(t, err)
	assert.Equal(t, Result{Received: 2, Stored: 1, Dropped: 1}, result)
}

func TestIngestLegacyRows_AnchorsAndBackfills(t *testing.T) {
	t.Parallel()
	events := newFakeEvents()
	svc, res := newTestService(events, 330)

	out := "out"
	rows := []LegacyRow{
		{Token: "101", Timestamp: "2026-02-06 09:00:00", Name: "Ravi", SourceLogID: "42"},
		{Token: "101", Timestamp: "2026-02-06 18:30:00", Direction: &out},
		{Token: "", Timestamp: "2026-02-06 10:00:00"},
		{Token: "103", Timestamp: "nonsense"},
	}
	result, err := svc.IngestLegacyRows(context.Background(), testDevice(), rows)

	require.NoError(t, err)
	assert.Equal(t, Result{Received: 4, Stored: 2, Dropped: 2}, result)
	require.Len(t, events.stored, 2)

	// 09:00 at UTC+05:30 is 03:30 UTC.
	want := time.Date(2026, 2, 6, 3, 30, 0, 0, time.UTC)
	assert.True(t, events.stored[0].PunchTime.Equal(want))
	require.NotNil(t, events.stored[0].RawPayload)
	assert.Equal(t, "42", *events.stored[0].RawPayload)
	assert.Equal(t, "Ravi", res.backfills["101"])

	require.NotNil(t, events.stored[1].Direction)
	assert.Equal(t, "out", *events.stored[1].Direction)
	assert.Nil(t, events.stored[1].RawPayload)
}

func TestIngestLegacyRows_DuplicateRelayCounted(t *testing.T) {
	t.Parallel()
	events := newFakeEvents()
	svc, _ := newTestService(events, 0)

	rows := []LegacyRow{
		{Token: "101", Timestamp: "2026-02-06 09:00:00"},
		{Token: "101", Timestamp: "2026-02-06 09:00:00"},
	}
	result, err := svc.IngestLegacyRows(context.Background(), testDevice(), rows)

	require.NoError(t, err)
	assert.Equal(t, Result{Received: 2, Stored: 1, Duplicates: 1}, result)
}

func TestParseWorkbook(t *testing.T) {
	t.Parallel()

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	require.NoError(t, book.SetCellValue(sheet, "A1", "101"))
	require.NoError(t, book.SetCellValue(sheet, "B1", "2026-02-06 09:00:00"))
	require.NoError(t, book.SetCellValue(sheet, "A2", "102"))
	require.NoError(t, book.SetCellValue(sheet, "B2", "2026-02-06 18:30:00"))

	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	rows, err := ParseWorkbook(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "101", rows[0].Token)
	assert.Equal(t, "2026-02-06 18:30:00", rows[1].Timestamp)
}

func TestParseLocalTimestamp_Formats(t *testing.T) {
	t.Parallel()

	for _, value := range []string{
		"2026-02-06 09:00:00",
		"2026-02-06T09:00:00",
		"2026-02-06 09:00",
		"06-02-2026 09:00:00",
	} {
		got, err := parseLocalTimestamp(value, 330)
		require.NoError(t, err, value)
		assert.Equal(t, time.Date(2026, 2, 6, 3, 30, 0, 0, time.UTC), got, value)
	}

	_, err := parseLocalTimestamp("06/02/2026", 330)
	assert.ErrorIs(t, err, punch.ErrMalformedPayload)
}
