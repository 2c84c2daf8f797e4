package device

import (
	"github.com/apextime/attendance-backend-go/internal/pkg/validator"
)

// ========================================
// DEVICE COMMAND DTOs
// ========================================

var validCommandTypes = map[string]bool{
	CommandTimeSync:   true,
	CommandRestart:    true,
	CommandDataPull:   true,
	CommandUploadUser: true,
	CommandDeleteUser: true,
	CommandClearUsers: true,
}

type EnqueueCommandRequest struct {
	CommandType string         `json:"command_type"`
	Payload     map[string]any `json:"payload"`
}

func (r *EnqueueCommandRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.CommandType) {
		errs = append(errs, validator.ValidationError{
			Field:   "command_type",
			Message: "command_type is required",
		})
	} else if !validCommandTypes[r.CommandType] {
		errs = append(errs, validator.ValidationError{
			Field:   "command_type",
			Message: "unknown command_type",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type CompleteCommandRequest struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
}

type CommandResponse struct {
	ID          string  `json:"id"`
	DeviceID    string  `json:"device_id"`
	CommandType string  `json:"command_type"`
	Payload     string  `json:"payload"`
	Status      string  `json:"status"`
	Priority    int     `json:"priority"`
	Response    *string `json:"response,omitempty"`
	CreatedAt   string  `json:"created_at"`
	SentAt      *string `json:"sent_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}
