package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/apextime/attendance-backend-go/internal/domain/device"
	"github.com/apextime/attendance-backend-go/internal/handler/http/middleware"
	"github.com/apextime/attendance-backend-go/internal/handler/http/response"
	"github.com/apextime/attendance-backend-go/internal/service/devicecmd"
	"github.com/go-chi/chi/v5"
)

// DeviceCommandHandler is the operator surface of the command queue.
type DeviceCommandHandler interface {
	Enqueue(w http.ResponseWriter, r *http.Request)
	ListPending(w http.ResponseWriter, r *http.Request)
	UploadEmployee(w http.ResponseWriter, r *http.Request)
	UploadAllEmployees(w http.ResponseWriter, r *http.Request)
	DeleteEmployee(w http.ResponseWriter, r *http.Request)
	SyncTime(w http.ResponseWriter, r *http.Request)
}

type deviceCommandHandlerImpl struct {
	commands devicecmd.Service
}

func NewDeviceCommandHandler(commandsSvc devicecmd.Service) DeviceCommandHandler {
	return &deviceCommandHandlerImpl{commands: commandsSvc}
}

func toCommandResponse(cmd device.DeviceCommand) device.CommandResponse {
	resp := device.CommandResponse{
		ID:          cmd.ID,
		DeviceID:    cmd.DeviceID,
		CommandType: cmd.CommandType,
		Payload:     cmd.Payload,
		Status:      cmd.Status,
		Priority:    cmd.Priority,
		Response:    cmd.Response,
		CreatedAt:   cmd.CreatedAt.Format(time.RFC3339),
	}
	if cmd.SentAt != nil {
		at := cmd.SentAt.Format(time.RFC3339)
		resp.SentAt = &at
	}
	if cmd.CompletedAt != nil {
		at := cmd.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &at
	}
	return resp
}

// Enqueue implements DeviceCommandHandler.
// POST /api/v1/devices/{deviceID}/commands
func (h *deviceCommandHandlerImpl) Enqueue(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	deviceID := chi.URLParam(r, "deviceID")

	var req device.EnqueueCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	cmd, err := h.commands.Enqueue(r.Context(), tenantID, deviceID, req.CommandType, req.Payload)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Command queued", toCommandResponse(cmd))
}

// ListPending implements DeviceCommandHandler.
// GET /api/v1/devices/{deviceID}/commands/pending
func (h *deviceCommandHandlerImpl) ListPending(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	pending, err := h.commands.ListPending(r.Context(), deviceID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	items := make([]device.CommandResponse, len(pending))
	for i, cmd := range pending {
		items[i] = toCommandResponse(cmd)
	}
	response.Success(w, items)
}

// UploadEmployee implements DeviceCommandHandler.
// POST /api/v1/devices/{deviceID}/commands/upload-employee/{employeeID}
func (h *deviceCommandHandlerImpl) UploadEmployee(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	cmd, err := h.commands.UploadEmployee(r.Context(), tenantID,
		chi.URLParam(r, "deviceID"), chi.URLParam(r, "employeeID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Employee upload queued", toCommandResponse(cmd))
}

// UploadAllEmployees implements DeviceCommandHandler.
// POST /api/v1/devices/{deviceID}/commands/upload-all
func (h *deviceCommandHandlerImpl) UploadAllEmployees(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	queued, err := h.commands.UploadAllEmployees(r.Context(), tenantID, chi.URLParam(r, "deviceID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Employee uploads queued", map[string]any{"queued": len(queued)})
}

// DeleteEmployee implements DeviceCommandHandler.
// POST /api/v1/devices/{deviceID}/commands/delete-employee/{employeeID}
func (h *deviceCommandHandlerImpl) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	cmd, err := h.commands.DeleteEmployee(r.Context(), tenantID,
		chi.URLParam(r, "deviceID"), chi.URLParam(r, "employeeID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Employee removal queued", toCommandResponse(cmd))
}

// SyncTime implements DeviceCommandHandler.
// POST /api/v1/devices/{deviceID}/commands/sync-time
func (h *deviceCommandHandlerImpl) SyncTime(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	cmd, err := h.commands.SyncTime(r.Context(), tenantID, chi.URLParam(r, "deviceID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Time sync queued", toCommandResponse(cmd))
}
