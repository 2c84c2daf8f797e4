package http

import (
	"encoding/json"
	"net/http"

	"github.com/apextime/attendance-backend-go/internal/domain/device"
	"github.com/apextime/attendance-backend-go/internal/handler/http/middleware"
	"github.com/apextime/attendance-backend-go/internal/handler/http/response"
	"github.com/apextime/attendance-backend-go/internal/service/normalizer"
	"github.com/go-chi/chi/v5"
)

// LegacySyncHandler accepts batches of attendance rows that an on-premise
// agent pulled from a legacy terminal database and relayed over HTTP.
type LegacySyncHandler interface {
	Receive(w http.ResponseWriter, r *http.Request)
}

type legacySyncHandlerImpl struct {
	devices    device.DeviceRepository
	normalizer normalizer.Service
}

func NewLegacySyncHandler(devices device.DeviceRepository, normalizerSvc normalizer.Service) LegacySyncHandler {
	return &legacySyncHandlerImpl{
		devices:    devices,
		normalizer: normalizerSvc,
	}
}

type legacyBatchRequest struct {
	Rows []normalizer.LegacyRow `json:"rows"`
}

// Receive implements LegacySyncHandler. POST /api/v1/devices/{deviceID}/legacy-logs.
func (h *legacySyncHandlerImpl) Receive(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	deviceID := chi.URLParam(r, "deviceID")

	dev, err := h.devices.GetByID(r.Context(), deviceID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if dev.TenantID != tenantID {
		response.HandleError(w, device.ErrDeviceNotFound)
		return
	}
	if dev.Protocol != device.ProtocolLegacySQL {
		response.BadRequest(w, "Device is not registered for legacy SQL sync", nil)
		return
	}

	var req legacyBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body", nil)
		return
	}
	if len(req.Rows) == 0 {
		response.BadRequest(w, "Field 'rows' is required", nil)
		return
	}

	result, err := h.normalizer.IngestLegacyRows(r.Context(), dev, req.Rows)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Legacy batch processed", result)
}
