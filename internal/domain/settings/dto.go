package settings

import (
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/pkg/validator"
)

type UpdateSettingsRequest struct {
	CompanyID         string  `json:"-"`
	UpdatedBy         *string `json:"-"`
	UseCustomCutoff   *bool   `json:"useCustomCutoff,omitempty"`
	CutoffTime        string  `json:"cutoffTime"`
	GraceMinutes      *int    `json:"graceMinutes,omitempty"`
	CountWeekends     *bool   `json:"countWeekends,omitempty"`
	UseDeviceDefaults *bool   `json:"useDeviceDefaults,omitempty"`
	DevicePort        int     `json:"devicePort,omitempty"`
}

func (r *UpdateSettingsRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.CompanyID) {
		errs = append(errs, validator.ValidationError{
			Field:   "companyId",
			Message: "companyId is required",
		})
	}

	if !validator.IsEmpty(r.CutoffTime) && !validator.IsValidClock(r.CutoffTime) {
		errs = append(errs, validator.ValidationError{
			Field:   "cutoffTime",
			Message: "cutoffTime must be in HH:MM format",
		})
	}

	if r.GraceMinutes != nil && (*r.GraceMinutes < 0 || *r.GraceMinutes > 240) {
		errs = append(errs, validator.ValidationError{
			Field:   "graceMinutes",
			Message: "graceMinutes must be between 0 and 240",
		})
	}

	if r.DevicePort < 0 || r.DevicePort > 65535 {
		errs = append(errs, validator.ValidationError{
			Field:   "devicePort",
			Message: "devicePort must be between 1 and 65535",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type SettingsResponse struct {
	ID                string  `json:"id"`
	CompanyID         string  `json:"companyId"`
	Version           int     `json:"version"`
	UseCustomCutoff   bool    `json:"useCustomCutoff"`
	CutoffTime        string  `json:"cutoffTime"`
	GraceMinutes      int     `json:"graceMinutes"`
	CountWeekends     bool    `json:"countWeekends"`
	UseDeviceDefaults bool    `json:"useDeviceDefaults"`
	DevicePort        int     `json:"devicePort"`
	IsActive          bool    `json:"isActive"`
	CreatedBy         *string `json:"createdBy,omitempty"`
	CreatedAt         string  `json:"createdAt"`
}

func NewSettingsResponse(s AttendanceSettings) SettingsResponse {
	return SettingsResponse{
		ID:                s.ID,
		CompanyID:         s.CompanyID,
		Version:           s.Version,
		UseCustomCutoff:   s.UseCustomCutoff,
		CutoffTime:        s.CutoffTime,
		GraceMinutes:      s.GraceMinutes,
		CountWeekends:     s.CountWeekends,
		UseDeviceDefaults: s.UseDeviceDefaults,
		DevicePort:        s.DevicePort,
		IsActive:          s.IsActive,
		CreatedBy:         s.CreatedBy,
		CreatedAt:         s.CreatedAt.UTC().Format(time.RFC3339),
	}
}
