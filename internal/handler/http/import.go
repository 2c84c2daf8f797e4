package http

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/apextime/attendance-backend-go/internal/domain/device"
	"github.com/apextime/attendance-backend-go/internal/handler/http/middleware"
	"github.com/apextime/attendance-backend-go/internal/handler/http/response"
	"github.com/apextime/attendance-backend-go/internal/service/normalizer"
	"github.com/go-chi/chi/v5"
)

// ImportHandler accepts manually uploaded punch files (CSV or XLSX) against a
// registered MANUAL device.
type ImportHandler interface {
	Upload(w http.ResponseWriter, r *http.Request)
}

type importHandlerImpl struct {
	devices    device.DeviceRepository
	normalizer normalizer.Service
}

func NewImportHandler(devices device.DeviceRepository, normalizerSvc normalizer.Service) ImportHandler {
	return &importHandlerImpl{
		devices:    devices,
		normalizer: normalizerSvc,
	}
}

// Upload implements ImportHandler. POST /api/v1/devices/{deviceID}/import.
func (h *importHandlerImpl) Upload(w http.ResponseWriter, r *http.Request) {
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

	// Parse multipart form (max 10MB)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		slog.Error("Failed to parse multipart form", "error", err)
		response.BadRequest(w, "Failed to parse form data", nil)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "Field 'file' is required", nil)
		return
	}
	defer file.Close()

	var rows []normalizer.ImportRow
	switch strings.ToLower(filepath.Ext(fileHeader.Filename)) {
	case ".xlsx":
		rows, err = normalizer.ParseWorkbook(file)
	case ".csv", ".txt", "":
		rows, err = normalizer.ParseCSV(file)
	default:
		response.BadRequest(w, "Unsupported file type, expected .csv or .xlsx", nil)
		return
	}
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.normalizer.IngestImportRows(r.Context(), dev, rows)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Import processed", result)
}
