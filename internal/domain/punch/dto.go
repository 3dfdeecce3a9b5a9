package punch

import (
	"encoding/json"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/pkg/validator"
)

// ========================================
// SYNC DTOs
// ========================================

type FullSyncRequest struct {
	DeviceAddress string  `json:"-"`
	CompanyID     string  `json:"-"`
	Port          int     `json:"port,omitempty"`
	StartDate     *string `json:"startDate,omitempty"` // YYYY-MM-DD
	EndDate       *string `json:"endDate,omitempty"`   // YYYY-MM-DD
}

func (r *FullSyncRequest) Validate() error {
	var errs validator.ValidationErrors

	errs = append(errs, validateDevice(r.DeviceAddress, r.Port)...)
	errs = append(errs, validateCompany(r.CompanyID)...)
	errs = append(errs, validateOptionalRange(r.StartDate, r.EndDate)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type IncrementalSyncRequest struct {
	DeviceAddress string `json:"-"`
	CompanyID     string `json:"-"`
	Port          int    `json:"port,omitempty"`
}

func (r *IncrementalSyncRequest) Validate() error {
	var errs validator.ValidationErrors

	errs = append(errs, validateDevice(r.DeviceAddress, r.Port)...)
	errs = append(errs, validateCompany(r.CompanyID)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SyncResult reports one sync run. TotalSeen counts every punch the device
// returned, including the ones excluded as invalid.
type SyncResult struct {
	DeviceAddress         string  `json:"deviceAddress"`
	CompanyID             string  `json:"companyId"`
	Mode                  string  `json:"mode"`
	RangeStart            *string `json:"rangeStart,omitempty"`
	RangeEnd              *string `json:"rangeEnd,omitempty"`
	InsertedCount         int     `json:"insertedCount"`
	SkippedDuplicateCount int     `json:"skippedDuplicateCount"`
	InvalidCount          int     `json:"invalidCount"`
	TotalSeen             int     `json:"totalSeen"`
	DurationSeconds       float64 `json:"durationSeconds"`
}

const (
	SyncModeFull        = "full"
	SyncModeIncremental = "incremental"
)

// ========================================
// READ DTOs
// ========================================

type SyncStatsRequest struct {
	DeviceAddress string
	CompanyID     string
}

func (r *SyncStatsRequest) Validate() error {
	var errs validator.ValidationErrors

	errs = append(errs, validateDevice(r.DeviceAddress, 0)...)
	errs = append(errs, validateCompany(r.CompanyID)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type SyncStatsResponse struct {
	DeviceAddress string  `json:"deviceAddress"`
	CompanyID     string  `json:"companyId"`
	TotalPunches  int64   `json:"totalPunches"`
	LastSyncTime  *string `json:"lastSyncTime"`
	OldestRecord  *string `json:"oldestRecord"`
	NewestRecord  *string `json:"newestRecord"`
}

type QueryRangeRequest struct {
	DeviceAddress string
	CompanyID     string
	StartDate     string // YYYY-MM-DD, required
	EndDate       string // YYYY-MM-DD, required
}

func (r *QueryRangeRequest) Validate() error {
	var errs validator.ValidationErrors

	errs = append(errs, validateDevice(r.DeviceAddress, 0)...)
	errs = append(errs, validateCompany(r.CompanyID)...)

	if validator.IsEmpty(r.StartDate) {
		errs = append(errs, validator.ValidationError{
			Field:   "startDate",
			Message: "startDate is required",
		})
	}
	if validator.IsEmpty(r.EndDate) {
		errs = append(errs, validator.ValidationError{
			Field:   "endDate",
			Message: "endDate is required",
		})
	}
	if len(errs) == 0 {
		errs = append(errs, validateOptionalRange(&r.StartDate, &r.EndDate)...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type PunchResponse struct {
	DeviceAddress    string          `json:"deviceAddress"`
	EmployeeDeviceID string          `json:"employeeDeviceId"`
	Timestamp        string          `json:"timestamp"`
	CalendarDate     string          `json:"calendarDate"`
	PunchType        string          `json:"punchType"`
	PunchMode        string          `json:"punchMode"`
	RawPayload       json.RawMessage `json:"rawPayload,omitempty"`
	CompanyID        string          `json:"companyId"`
	IngestedAt       string          `json:"ingestedAt"`
}

type ListPunchResponse struct {
	DeviceAddress string          `json:"deviceAddress"`
	StartDate     string          `json:"startDate"`
	EndDate       string          `json:"endDate"`
	TotalCount    int             `json:"totalCount"`
	Punches       []PunchResponse `json:"punches"`
}

// NewPunchResponse maps a record to its wire shape.
func NewPunchResponse(p PunchRecord) PunchResponse {
	resp := PunchResponse{
		DeviceAddress:    p.DeviceAddress,
		EmployeeDeviceID: p.EmployeeDeviceID,
		Timestamp:        p.Timestamp.UTC().Format(time.RFC3339),
		CalendarDate:     p.CalendarDate.Format("2006-01-02"),
		PunchType:        p.PunchType,
		PunchMode:        p.PunchMode,
		CompanyID:        p.CompanyID,
		IngestedAt:       p.IngestedAt.UTC().Format(time.RFC3339),
	}
	if len(p.RawPayload) > 0 {
		resp.RawPayload = json.RawMessage(p.RawPayload)
	}
	return resp
}

// ========================================
// DEVICE INFO DTOs
// ========================================

type DeviceInfoRequest struct {
	DeviceAddress string
	CompanyID     string
	Port          int
}

func (r *DeviceInfoRequest) Validate() error {
	var errs validator.ValidationErrors

	errs = append(errs, validateDevice(r.DeviceAddress, r.Port)...)
	errs = append(errs, validateCompany(r.CompanyID)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type DeviceInfoResponse struct {
	DeviceAddress    string `json:"deviceAddress"`
	SerialNumber     string `json:"serialNumber"`
	FirmwareVersion  string `json:"firmwareVersion"`
	DeviceTime       string `json:"deviceTime"`
	ServerTime       string `json:"serverTime"`
	ClockSkewSeconds int64  `json:"clockSkewSeconds"`
	RecordCount      int    `json:"recordCount"`
}

// ========================================
// HELPERS
// ========================================

func validateDevice(address string, port int) validator.ValidationErrors {
	var errs validator.ValidationErrors
	if validator.IsEmpty(address) {
		errs = append(errs, validator.ValidationError{
			Field:   "deviceAddress",
			Message: "deviceAddress is required",
		})
	} else if !validator.IsValidDeviceAddress(address) {
		errs = append(errs, validator.ValidationError{
			Field:   "deviceAddress",
			Message: "deviceAddress must be an IP address or hostname",
		})
	}
	if port < 0 || port > 65535 {
		errs = append(errs, validator.ValidationError{
			Field:   "port",
			Message: "port must be between 1 and 65535",
		})
	}
	return errs
}

func validateCompany(companyID string) validator.ValidationErrors {
	if validator.IsEmpty(companyID) {
		return validator.ValidationErrors{{
			Field:   "companyId",
			Message: "companyId is required",
		}}
	}
	return nil
}

func validateOptionalRange(start, end *string) validator.ValidationErrors {
	var errs validator.ValidationErrors
	var startDate, endDate time.Time
	var startOK, endOK bool

	if start != nil && *start != "" {
		if startDate, startOK = validator.IsValidDate(*start); !startOK {
			errs = append(errs, validator.ValidationError{
				Field:   "startDate",
				Message: "startDate must be in YYYY-MM-DD format",
			})
		}
	}
	if end != nil && *end != "" {
		if endDate, endOK = validator.IsValidDate(*end); !endOK {
			errs = append(errs, validator.ValidationError{
				Field:   "endDate",
				Message: "endDate must be in YYYY-MM-DD format",
			})
		}
	}
	if startOK && endOK && endDate.Before(startDate) {
		errs = append(errs, validator.ValidationError{
			Field:   "endDate",
			Message: "endDate must not be before startDate",
		})
	}
	return errs
}
