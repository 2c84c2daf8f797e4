package http

import (
	"encoding/json"
	"net/http"

	"github.com/apextime/attendance-backend-go/internal/handler/http/middleware"
	"github.com/apextime/attendance-backend-go/internal/handler/http/response"
	"github.com/apextime/attendance-backend-go/internal/pkg/validator"
	"github.com/apextime/attendance-backend-go/internal/pkg/workday"
	"github.com/apextime/attendance-backend-go/internal/service/reprocess"
)

// ReprocessHandler triggers attendance rebuilds for operators.
type ReprocessHandler interface {
	Reprocess(w http.ResponseWriter, r *http.Request)
	PurgePreJoin(w http.ResponseWriter, r *http.Request)
}

type reprocessHandlerImpl struct {
	reprocess reprocess.Service
}

func NewReprocessHandler(reprocessSvc reprocess.Service) ReprocessHandler {
	return &reprocessHandlerImpl{reprocess: reprocessSvc}
}

type reprocessRequest struct {
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	EmployeeID *string `json:"employee_id,omitempty"`
}

func (req *reprocessRequest) validate() (reprocess.Scope, error) {
	var errs validator.ValidationErrors

	start, err := workday.ParseDate(req.StartDate)
	if err != nil {
		errs = append(errs, validator.ValidationError{
			Field:   "start_date",
			Message: "start_date must be YYYY-MM-DD",
		})
	}
	end, err := workday.ParseDate(req.EndDate)
	if err != nil {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must be YYYY-MM-DD",
		})
	}
	if len(errs) == 0 && end.Before(start) {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must not precede start_date",
		})
	}

	if len(errs) > 0 {
		return reprocess.Scope{}, errs
	}
	return reprocess.Scope{EmployeeID: req.EmployeeID, Start: start, End: end}, nil
}

// Reprocess implements ReprocessHandler. POST /api/v1/attendance/reprocess
func (h *reprocessHandlerImpl) Reprocess(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	var req reprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	scope, err := req.validate()
	if err != nil {
		response.HandleError(w, err)
		return
	}

	report, err := h.reprocess.Reprocess(r.Context(), tenantID, scope)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Reprocessing finished", report)
}

// PurgePreJoin implements ReprocessHandler.
// POST /api/v1/attendance/purge-pre-join?employee_id=
func (h *reprocessHandlerImpl) PurgePreJoin(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	counts, err := h.reprocess.PurgePreJoinSummaries(r.Context(), tenantID, r.URL.Query().Get("employee_id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Pre-join summaries purged", map[string]any{
		"deleted_per_employee": counts,
	})
}
