package http

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/apextime/attendance-backend-go/internal/domain/device"
	"github.com/apextime/attendance-backend-go/internal/handler/http/response"
	"github.com/apextime/attendance-backend-go/internal/service/normalizer"
)

// DirectPushHandler receives access-controller event callbacks. The
// controller treats any 2xx as delivered; errors in the payload are acked and
// dropped so the controller does not re-send them forever.
type DirectPushHandler interface {
	Receive(w http.ResponseWriter, r *http.Request)
}

type directPushHandlerImpl struct {
	devices    device.DeviceRepository
	normalizer normalizer.Service
}

func NewDirectPushHandler(devices device.DeviceRepository, normalizerSvc normalizer.Service) DirectPushHandler {
	return &directPushHandlerImpl{
		devices:    devices,
		normalizer: normalizerSvc,
	}
}

// Receive implements DirectPushHandler. POST /api/v1/events/direct-push.
func (h *directPushHandlerImpl) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.BadRequest(w, "Failed to read request body", nil)
		return
	}

	evt, err := normalizer.ParseDirectPush(body, r.Header.Get("Content-Type"))
	if err != nil {
		slog.Warn("Unparseable direct-push payload dropped", "error", err)
		response.Success(w, map[string]any{"dropped": 1})
		return
	}

	serial := evt.SerialNo
	if header := r.Header.Get("X-Device-Serial"); header != "" {
		serial = header
	}
	if serial == "" {
		response.BadRequest(w, "Device serial missing from payload and headers", nil)
		return
	}

	dev, err := h.devices.GetBySerial(r.Context(), serial)
	if err != nil {
		slog.Warn("Direct push from unknown device", "serial", serial)
		response.Success(w, map[string]any{"dropped": 1})
		return
	}
	if err := h.devices.TouchSeen(r.Context(), dev.ID, time.Now().UTC()); err != nil {
		slog.Error("Failed to touch device last-seen", "serial", serial, "error", err)
	}

	result, err := h.normalizer.IngestDirectPush(r.Context(), dev, evt)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
