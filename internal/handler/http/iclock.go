package http

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/apextime/attendance-backend-go/internal/domain/device"
	"github.com/apextime/attendance-backend-go/internal/service/devicecmd"
	"github.com/apextime/attendance-backend-go/internal/service/normalizer"
)

// DeviceChannelHandler serves the push-protocol endpoints terminals poll.
// Responses are plain text and almost always "OK": a non-OK answer makes the
// terminal retry forever and can wedge its upload queue, so unknown serials
// and bad payloads are acked and dropped.
type DeviceChannelHandler interface {
	Handshake(w http.ResponseWriter, r *http.Request)
	ReceiveData(w http.ResponseWriter, r *http.Request)
	CommandPoll(w http.ResponseWriter, r *http.Request)
	CommandResult(w http.ResponseWriter, r *http.Request)
}

type deviceChannelHandlerImpl struct {
	devices    device.DeviceRepository
	normalizer normalizer.Service
	commands   devicecmd.Service
}

func NewDeviceChannelHandler(
	devices device.DeviceRepository,
	normalizerSvc normalizer.Service,
	commandsSvc devicecmd.Service,
) DeviceChannelHandler {
	return &deviceChannelHandlerImpl{
		devices:    devices,
		normalizer: normalizerSvc,
		commands:   commandsSvc,
	}
}

func plainText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(body))
}

// checkIn looks up the device by serial and records the contact. A miss
// returns false and the caller acks OK.
func (h *deviceChannelHandlerImpl) checkIn(r *http.Request) (device.Device, bool) {
	serial := r.URL.Query().Get("SN")
	if serial == "" {
		return device.Device{}, false
	}

	dev, err := h.devices.GetBySerial(r.Context(), serial)
	if err != nil {
		slog.Warn("Unknown device serial checking in", "serial", serial)
		return device.Device{}, false
	}

	if err := h.devices.TouchSeen(r.Context(), dev.ID, time.Now().UTC()); err != nil {
		slog.Error("Failed to touch device last-seen", "serial", serial, "error", err)
	}
	return dev, true
}

// Handshake implements DeviceChannelHandler. GET /iclock/cdata.
func (h *deviceChannelHandlerImpl) Handshake(w http.ResponseWriter, r *http.Request) {
	serial := r.URL.Query().Get("SN")
	if serial == "" {
		w.WriteHeader(http.StatusBadRequest)
		plainText(w, "Missing SN")
		return
	}

	if _, ok := h.checkIn(r); !ok {
		plainText(w, "OK")
		return
	}

	if r.URL.Query().Get("options") == "all" {
		// Option block the terminal expects on first contact. Stamp=9999
		// asks for a full re-upload of attendance logs.
		plainText(w, strings.Join([]string{
			"GET OPTION FROM: " + serial,
			"Stamp=9999",
			"OpStamp=9999",
			"PhotoStamp=9999",
			"ErrorDelay=30",
			"Delay=30",
			"TransTimes=00:00;14:00",
			"TransInterval=1",
			"TransFlag=1111111111",
			"Realtime=1",
			"Encrypt=0",
		}, "\n"))
		return
	}

	plainText(w, "OK")
}

// ReceiveData implements DeviceChannelHandler. POST /iclock/cdata.
func (h *deviceChannelHandlerImpl) ReceiveData(w http.ResponseWriter, r *http.Request) {
	dev, ok := h.checkIn(r)
	if !ok {
		plainText(w, "OK")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("Failed to read push body", "serial", dev.SerialNumber, "error", err)
		plainText(w, "OK")
		return
	}

	if _, err := h.normalizer.IngestPushData(r.Context(), dev, string(body)); err != nil {
		// Store unavailability is the one case the device should retry.
		slog.Error("Push ingestion failed", "serial", dev.SerialNumber, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		plainText(w, "ERROR")
		return
	}

	plainText(w, "OK")
}

// CommandPoll implements DeviceChannelHandler. GET /iclock/getrequest.
func (h *deviceChannelHandlerImpl) CommandPoll(w http.ResponseWriter, r *http.Request) {
	dev, ok := h.checkIn(r)
	if !ok {
		plainText(w, "OK")
		return
	}

	_, wire, err := h.commands.NextForDelivery(r.Context(), dev.ID)
	if err != nil {
		plainText(w, "OK")
		return
	}
	plainText(w, wire)
}

// CommandResult implements DeviceChannelHandler. POST /iclock/devicecmd.
// The body is form-style text: "ID=<id>&Return=<code>", Return=0 on success.
func (h *deviceChannelHandlerImpl) CommandResult(w http.ResponseWriter, r *http.Request) {
	dev, ok := h.checkIn(r)
	if !ok {
		plainText(w, "OK")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		plainText(w, "OK")
		return
	}

	returnCode := parseResultField(string(body), "Return")
	// Terminals echo a truncated id, so the result lands on the most
	// recently sent open command instead.
	if err := h.commands.CompleteLastSent(r.Context(), dev.ID, returnCode == "0", string(body)); err != nil {
		slog.Error("Failed to record command result",
			"serial", dev.SerialNumber, "error", err)
	}

	plainText(w, "OK")
}

func parseResultField(body, key string) string {
	for _, part := range strings.Split(strings.TrimSpace(body), "&") {
		if v, ok := strings.CutPrefix(part, key+"="); ok {
			return v
		}
	}
	return ""
}
