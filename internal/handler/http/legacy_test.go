package http

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apextime/attendance-backend-go/internal/domain/device"
	"github.com/apextime/attendance-backend-go/internal/handler/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLegacyFixture() (*fakeNormalizer, *chi.Mux) {
	devices := &fakeDeviceRepo{byID: map[string]device.Device{
		"d-legacy": {ID: "d-legacy", TenantID: "t1", SerialNumber: "LG01", Protocol: device.ProtocolLegacySQL},
		"d-push":   {ID: "d-push", TenantID: "t1", SerialNumber: "SN100", Protocol: device.ProtocolPush},
	}}
	norm := &fakeNormalizer{}
	h := NewLegacySyncHandler(devices, norm)

	r := chi.NewRouter()
	r.With(middleware.TenantRequired).Post("/api/v1/devices/{deviceID}/legacy-logs", h.Receive)
	return norm, r
}

func TestLegacySync_ForwardsRows(t *testing.T) {
	t.Parallel()
	norm, r := newLegacyFixture()

	body := `{"rows":[
		{"user_sn":"101","logged_at":"2026-02-06 09:00:00","name":"Ravi","source_log_id":"42"},
		{"user_sn":"102","logged_at":"2026-02-06 18:30:00","direction":"out"}
	]}`
	req := httptest.NewRequest("POST", "/api/v1/devices/d-legacy/legacy-logs", strings.NewReader(body))
	req.Header.Set("X-Tenant-ID", "t1")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	require.Len(t, norm.legacyRows, 1)
	require.Len(t, norm.legacyRows[0], 2)
	assert.Equal(t, "101", norm.legacyRows[0][0].Token)
	assert.Equal(t, "Ravi", norm.legacyRows[0][0].Name)
	assert.Equal(t, "42", norm.legacyRows[0][0].SourceLogID)
	require.NotNil(t, norm.legacyRows[0][1].Direction)
	assert.Equal(t, "out", *norm.legacyRows[0][1].Direction)
}

func TestLegacySync_WrongProtocolRejected(t *testing.T) {
	t.Parallel()
	norm, r := newLegacyFixture()

	req := httptest.NewRequest("POST", "/api/v1/devices/d-push/legacy-logs",
		strings.NewReader(`{"rows":[{"user_sn":"101","logged_at":"2026-02-06 09:00:00"}]}`))
	req.Header.Set("X-Tenant-ID", "t1")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
	assert.Empty(t, norm.legacyRows)
}

func TestLegacySync_ForeignTenantNotFound(t *testing.T) {
	t.Parallel()
	norm, r := newLegacyFixture()

	req := httptest.NewRequest("POST", "/api/v1/devices/d-legacy/legacy-logs",
		strings.NewReader(`{"rows":[{"user_sn":"101","logged_at":"2026-02-06 09:00:00"}]}`))
	req.Header.Set("X-Tenant-ID", "t2")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
	assert.Empty(t, norm.legacyRows)
}

func TestLegacySync_EmptyBatchRejected(t *testing.T) {
	t.Parallel()
	_, r := newLegacyFixture()

	req := httptest.NewRequest("POST", "/api/v1/devices/d-legacy/legacy-logs",
		strings.NewReader(`{"rows":[]}`))
	req.Header.Set("X-Tenant-ID", "t1")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
}
