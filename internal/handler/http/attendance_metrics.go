package http

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/metrics"
	"github.com/cmlabs-hris/attendance-sync/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
)

type AttendanceMetricsHandler interface {
	Leaderboard(w http.ResponseWriter, r *http.Request)
	Employee(w http.ResponseWriter, r *http.Request)
}

type attendanceMetricsHandlerImpl struct {
	metricsService metrics.MetricsService
}

func NewAttendanceMetricsHandler(metricsService metrics.MetricsService) AttendanceMetricsHandler {
	return &attendanceMetricsHandlerImpl{
		metricsService: metricsService,
	}
}

// Leaderboard implements AttendanceMetricsHandler.
func (h *attendanceMetricsHandlerImpl) Leaderboard(w http.ResponseWriter, r *http.Request) {
	companyID, err := jwt.CompanyID(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	req := metrics.LeaderboardRequest{CompanyID: companyID}
	query := r.URL.Query()

	if deviceAddress := query.Get("deviceAddress"); deviceAddress != "" {
		req.DeviceAddress = &deviceAddress
	}
	if startDate := query.Get("startDate"); startDate != "" {
		req.StartDate = &startDate
	}
	if endDate := query.Get("endDate"); endDate != "" {
		req.EndDate = &endDate
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	req.Limit = limit

	result, err := h.metricsService.Leaderboard(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Employee implements AttendanceMetricsHandler.
func (h *attendanceMetricsHandlerImpl) Employee(w http.ResponseWriter, r *http.Request) {
	companyID, err := jwt.CompanyID(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	req := metrics.EmployeeReportRequest{
		CompanyID:        companyID,
		EmployeeDeviceID: chi.URLParam(r, "employeeDeviceId"),
	}
	query := r.URL.Query()

	if deviceAddress := query.Get("deviceAddress"); deviceAddress != "" {
		req.DeviceAddress = &deviceAddress
	}
	if startDate := query.Get("startDate"); startDate != "" {
		req.StartDate = &startDate
	}
	if endDate := query.Get("endDate"); endDate != "" {
		req.EndDate = &endDate
	}

	result, err := h.metricsService.EmployeeReport(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
