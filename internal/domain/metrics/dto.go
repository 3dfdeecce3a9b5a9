package metrics

import (
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/validator"
)

// EmployeeMetric is derived on every request and never persisted.
type EmployeeMetric struct {
	Rank               int               `json:"rank"`
	EmployeeDeviceID   string            `json:"employeeDeviceId"`
	WorkingDays        int               `json:"workingDays"`
	PresentDays        int               `json:"presentDays"`
	AbsentDays         int               `json:"absentDays"`
	LateDays           int               `json:"lateDays"`
	WeekendDays        int               `json:"weekendDays"`
	TotalWorkMinutes   int               `json:"totalWorkMinutes"`
	AverageWorkMinutes float64           `json:"averageWorkMinutes"`
	TotalLateMinutes   int               `json:"totalLateMinutes"`
	AttendanceRate     float64           `json:"attendanceRate"`
	PunctualityScore   float64           `json:"punctualityScore"`
	ConsistencyScore   float64           `json:"consistencyScore"`
	Score              float64           `json:"score"`
	Tier               string            `json:"tier"`
	Badges             []string          `json:"badges"`
	Days               []DailyAttendance `json:"days,omitempty"`
}

// DailyAttendance is one calendar date of an employee.
type DailyAttendance struct {
	Date        string `json:"date"`
	CheckIn     string `json:"checkIn"`
	CheckOut    string `json:"checkOut"`
	PunchCount  int    `json:"punchCount"`
	WorkMinutes int    `json:"workMinutes"`
	LateMinutes int    `json:"lateMinutes"`
	Late        bool   `json:"late"`
	Weekend     bool   `json:"weekend"`
}

type PolicySummary struct {
	CutoffTime    string         `json:"cutoffTime"`
	GraceMinutes  int            `json:"graceMinutes"`
	CountWeekends bool           `json:"countWeekends"`
	Timezone      string         `json:"timezone"`
	Weights       Weights        `json:"weights"`
	Tiers         TierThresholds `json:"tiers"`
	Source        string         `json:"source"`
}

func NewPolicySummary(p Policy) PolicySummary {
	tz := "UTC"
	if p.Location != nil {
		tz = p.Location.String()
	}
	return PolicySummary{
		CutoffTime:    p.Cutoff.String(),
		GraceMinutes:  p.GraceMinutes,
		CountWeekends: p.CountWeekends,
		Timezone:      tz,
		Weights:       p.Weights,
		Tiers:         p.Tiers,
		Source:        p.Source,
	}
}

type LeaderboardRequest struct {
	CompanyID     string  `json:"-"`
	DeviceAddress *string `json:"deviceAddress,omitempty"`
	StartDate     *string `json:"startDate,omitempty"`
	EndDate       *string `json:"endDate,omitempty"`
	Limit         int     `json:"limit"`
}

func (r *LeaderboardRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.CompanyID) {
		errs = append(errs, validator.ValidationError{
			Field:   "companyId",
			Message: "companyId is required",
		})
	}
	if r.DeviceAddress != nil && *r.DeviceAddress != "" && !validator.IsValidDeviceAddress(*r.DeviceAddress) {
		errs = append(errs, validator.ValidationError{
			Field:   "deviceAddress",
			Message: "deviceAddress must be an IP address or hostname",
		})
	}
	errs = append(errs, validateWindow(r.StartDate, r.EndDate)...)

	if r.Limit < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be a positive number",
		})
	}
	if r.Limit == 0 {
		r.Limit = 10
	}
	if r.Limit > 100 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must not exceed 100",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type LeaderboardResponse struct {
	StartDate   string           `json:"startDate"`
	EndDate     string           `json:"endDate"`
	WorkingDays int              `json:"workingDays"`
	TotalCount  int              `json:"totalCount"`
	Policy      PolicySummary    `json:"policy"`
	Employees   []EmployeeMetric `json:"employees"`
}

type EmployeeReportRequest struct {
	CompanyID        string  `json:"-"`
	EmployeeDeviceID string  `json:"-"`
	DeviceAddress    *string `json:"deviceAddress,omitempty"`
	StartDate        *string `json:"startDate,omitempty"`
	EndDate          *string `json:"endDate,omitempty"`
}

func (r *EmployeeReportRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.CompanyID) {
		errs = append(errs, validator.ValidationError{
			Field:   "companyId",
			Message: "companyId is required",
		})
	}
	if validator.IsEmpty(r.EmployeeDeviceID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employeeDeviceId",
			Message: "employeeDeviceId is required",
		})
	}
	if r.DeviceAddress != nil && *r.DeviceAddress != "" && !validator.IsValidDeviceAddress(*r.DeviceAddress) {
		errs = append(errs, validator.ValidationError{
			Field:   "deviceAddress",
			Message: "deviceAddress must be an IP address or hostname",
		})
	}
	errs = append(errs, validateWindow(r.StartDate, r.EndDate)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type EmployeeReportResponse struct {
	StartDate string         `json:"startDate"`
	EndDate   string         `json:"endDate"`
	Policy    PolicySummary  `json:"policy"`
	Employee  EmployeeMetric `json:"employee"`
}

func validateWindow(start, end *string) validator.ValidationErrors {
	var errs validator.ValidationErrors
	if start != nil && *start != "" {
		if _, ok := validator.IsValidDate(*start); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "startDate",
				Message: "startDate must be in YYYY-MM-DD format",
			})
		}
	}
	if end != nil && *end != "" {
		if _, ok := validator.IsValidDate(*end); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "endDate",
				Message: "endDate must be in YYYY-MM-DD format",
			})
		}
	}
	if len(errs) == 0 && start != nil && end != nil && *start != "" && *end != "" && *end < *start {
		errs = append(errs, validator.ValidationError{
			Field:   "endDate",
			Message: "endDate must not be before startDate",
		})
	}
	return errs
}
