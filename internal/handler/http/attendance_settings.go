package http

import (
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-sync/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
	"github.com/goccy/go-json"
)

type AttendanceSettingsHandler interface {
	Get(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	History(w http.ResponseWriter, r *http.Request)
}

type attendanceSettingsHandlerImpl struct {
	settingsService settings.SettingsService
}

func NewAttendanceSettingsHandler(settingsService settings.SettingsService) AttendanceSettingsHandler {
	return &attendanceSettingsHandlerImpl{
		settingsService: settingsService,
	}
}

// Get implements AttendanceSettingsHandler.
func (h *attendanceSettingsHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	companyID, err := jwt.CompanyID(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.settingsService.GetCurrent(r.Context(), companyID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Update implements AttendanceSettingsHandler.
func (h *attendanceSettingsHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	var req settings.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	companyID, err := jwt.CompanyID(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}
	req.CompanyID = companyID

	_, claims, _ := jwtauth.FromContext(r.Context())
	if sub, ok := claims[jwt.ClaimSubject].(string); ok && sub != "" {
		req.UpdatedBy = &sub
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.settingsService.Update(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Attendance settings updated", result)
}

// History implements AttendanceSettingsHandler.
func (h *attendanceSettingsHandlerImpl) History(w http.ResponseWriter, r *http.Request) {
	companyID, err := jwt.CompanyID(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	result, err := h.settingsService.History(r.Context(), companyID, limit)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
