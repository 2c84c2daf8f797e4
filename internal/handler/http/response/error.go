package response

import (
	"errors"
	"net/http"

	"github.com/apextime/attendance-backend-go/internal/domain/device"
	"github.com/apextime/attendance-backend-go/internal/domain/identity"
	"github.com/apextime/attendance-backend-go/internal/domain/punch"
	"github.com/apextime/attendance-backend-go/internal/domain/summary"
	"github.com/apextime/attendance-backend-go/internal/domain/tenant"
	"github.com/apextime/attendance-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses. Device transports never
// use this; they ack in plain text regardless of outcome.
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Tenant / registry errors
	case errors.Is(err, tenant.ErrTenantNotFound):
		NotFound(w, "Tenant not found")
	case errors.Is(err, device.ErrDeviceNotFound):
		NotFound(w, "Device not found")

	// Identity errors
	case errors.Is(err, identity.ErrIdentityNotFound):
		NotFound(w, "Employee not found")

	// Raw event / summary errors
	case errors.Is(err, punch.ErrMalformedPayload):
		BadRequest(w, "Malformed payload", nil)
	case errors.Is(err, punch.ErrEventNotFound):
		NotFound(w, "Punch event not found")
	case errors.Is(err, summary.ErrSummaryNotFound):
		NotFound(w, "Attendance summary not found")
	case errors.Is(err, summary.ErrJoinDateViolation):
		Conflict(w, "Attendance predates employee join date")

	// Command queue errors
	case errors.Is(err, device.ErrUnknownCommandType):
		BadRequest(w, "Unknown command type", nil)
	case errors.Is(err, device.ErrCommandNotFound):
		NotFound(w, "Device command not found")
	case errors.Is(err, device.ErrCommandNotOpen):
		Conflict(w, "Device command is not awaiting a result")
	case errors.Is(err, device.ErrNoPendingCommand):
		NotFound(w, "No pending command for device")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
