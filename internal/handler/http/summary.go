package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/apextime/attendance-backend-go/internal/domain/punch"
	"github.com/apextime/attendance-backend-go/internal/domain/summary"
	"github.com/apextime/attendance-backend-go/internal/handler/http/middleware"
	"github.com/apextime/attendance-backend-go/internal/handler/http/response"
	"github.com/apextime/attendance-backend-go/internal/pkg/workday"
	"github.com/go-chi/chi/v5"
)

// AttendanceQueryHandler is the read-only reporting surface over summaries
// and raw events.
type AttendanceQueryHandler interface {
	ListSummaries(w http.ResponseWriter, r *http.Request)
	GetSummary(w http.ResponseWriter, r *http.Request)
	ListRawEvents(w http.ResponseWriter, r *http.Request)
}

type attendanceQueryHandlerImpl struct {
	summaries summary.SummaryRepository
	events    punch.RawEventRepository
}

func NewAttendanceQueryHandler(summaries summary.SummaryRepository, events punch.RawEventRepository) AttendanceQueryHandler {
	return &attendanceQueryHandlerImpl{
		summaries: summaries,
		events:    events,
	}
}

type summaryResponse struct {
	ID            string  `json:"id"`
	EmployeeID    string  `json:"employee_id"`
	EmployeeName  *string `json:"employee_name,omitempty"`
	EmployeeCode  *string `json:"employee_code,omitempty"`
	AutoGenerated *bool   `json:"auto_generated,omitempty"`
	Date          string  `json:"date"`
	FirstIn       string  `json:"first_in"`
	LastOut       *string `json:"last_out,omitempty"`
	WorkingHours  string  `json:"working_hours"`
	TotalPunches  int     `json:"total_punches"`
	Status        string  `json:"status"`
	PunchLog      string  `json:"punch_log"`
}

func toSummaryResponse(s summary.AttendanceSummary) summaryResponse {
	resp := summaryResponse{
		ID:            s.ID,
		EmployeeID:    s.EmployeeID,
		EmployeeName:  s.EmployeeName,
		EmployeeCode:  s.EmployeeCode,
		AutoGenerated: s.AutoGenerated,
		Date:          s.Date.String(),
		FirstIn:       s.FirstIn.Format(time.RFC3339),
		WorkingHours:  s.WorkingHours.String(),
		TotalPunches:  s.TotalPunches,
		Status:        s.Status,
		PunchLog:      s.PunchLog,
	}
	if s.LastOut != nil {
		out := s.LastOut.Format(time.RFC3339)
		resp.LastOut = &out
	}
	return resp
}

// ListSummaries implements AttendanceQueryHandler.
// GET /api/v1/attendance/summaries?start_date=&end_date=&employee_id=&exclude_auto=
func (h *attendanceQueryHandlerImpl) ListSummaries(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	start, err := workday.ParseDate(r.URL.Query().Get("start_date"))
	if err != nil {
		response.BadRequest(w, "start_date must be YYYY-MM-DD", nil)
		return
	}
	end, err := workday.ParseDate(r.URL.Query().Get("end_date"))
	if err != nil {
		response.BadRequest(w, "end_date must be YYYY-MM-DD", nil)
		return
	}
	if end.Before(start) {
		response.BadRequest(w, "end_date must not precede start_date", nil)
		return
	}

	filter := summary.Filter{
		StartDate:   start,
		EndDate:     end,
		ExcludeAuto: r.URL.Query().Get("exclude_auto") == "true",
		Page:        queryInt(r, "page", 1),
		Limit:       queryInt(r, "limit", 50),
	}
	if employeeID := r.URL.Query().Get("employee_id"); employeeID != "" {
		filter.EmployeeIDs = []string{employeeID}
	}

	summaries, total, err := h.summaries.List(r.Context(), tenantID, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	items := make([]summaryResponse, len(summaries))
	for i, s := range summaries {
		items[i] = toSummaryResponse(s)
	}

	response.SuccessWithMeta(w, items, &response.Meta{
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalItems: total,
		TotalPages: totalPages(total, filter.Limit),
	})
}

// GetSummary implements AttendanceQueryHandler.
// GET /api/v1/attendance/summaries/{employeeID}/{date}
func (h *attendanceQueryHandlerImpl) GetSummary(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	employeeID := chi.URLParam(r, "employeeID")

	date, err := workday.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		response.BadRequest(w, "date must be YYYY-MM-DD", nil)
		return
	}

	s, err := h.summaries.GetByKey(r.Context(), tenantID, employeeID, date)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, toSummaryResponse(s))
}

type rawEventResponse struct {
	ID              string  `json:"id"`
	DeviceID        string  `json:"device_id"`
	DeviceUserToken string  `json:"device_user_token"`
	PunchTime       string  `json:"punch_time"`
	Direction       *string `json:"direction,omitempty"`
	Processed       bool    `json:"processed"`
	ProcessedAt     *string `json:"processed_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// ListRawEvents implements AttendanceQueryHandler.
// GET /api/v1/attendance/events?device_id=&token=&start_time=&end_time=&processed=
func (h *attendanceQueryHandlerImpl) ListRawEvents(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	filter := punch.Filter{
		Page:  queryInt(r, "page", 1),
		Limit: queryInt(r, "limit", 100),
	}
	if deviceID := r.URL.Query().Get("device_id"); deviceID != "" {
		filter.DeviceID = &deviceID
	}
	if token := r.URL.Query().Get("token"); token != "" {
		filter.Token = &token
	}
	if raw := r.URL.Query().Get("start_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "start_time must be RFC3339", nil)
			return
		}
		filter.StartTime = &t
	}
	if raw := r.URL.Query().Get("end_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "end_time must be RFC3339", nil)
			return
		}
		filter.EndTime = &t
	}
	if raw := r.URL.Query().Get("processed"); raw != "" {
		processed := raw == "true"
		filter.Processed = &processed
	}

	events, total, err := h.events.List(r.Context(), tenantID, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	items := make([]rawEventResponse, len(events))
	for i, e := range events {
		items[i] = rawEventResponse{
			ID:              e.ID,
			DeviceID:        e.DeviceID,
			DeviceUserToken: e.DeviceUserToken,
			PunchTime:       e.PunchTime.Format(time.RFC3339),
			Direction:       e.Direction,
			Processed:       e.Processed,
			CreatedAt:       e.CreatedAt.Format(time.RFC3339),
		}
		if e.ProcessedAt != nil {
			at := e.ProcessedAt.Format(time.RFC3339)
			items[i].ProcessedAt = &at
		}
	}

	response.SuccessWithMeta(w, items, &response.Meta{
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalItems: total,
		TotalPages: totalPages(total, filter.Limit),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	return pages
}
