package punch

import (
	"time"
)

// PunchRecord is one normalized clock-in/out event persisted from a terminal.
//
// EmployeeDeviceID is the user id enrolled on the terminal. It lives in a
// different namespace than the company's employee records and is never
// resolved against them here.
type PunchRecord struct {
	ID               string
	DeviceAddress    string
	EmployeeDeviceID string
	Timestamp        time.Time
	CalendarDate     time.Time // date-only projection of Timestamp in the reporting timezone
	PunchType        string
	PunchMode        string
	RawPayload       []byte
	CompanyID        string
	IngestedAt       time.Time
}

// DedupeKey is the natural identity of a punch. Two records with the same key
// are the same physical event.
type DedupeKey struct {
	DeviceAddress    string
	EmployeeDeviceID string
	Timestamp        time.Time
	CompanyID        string
}

// Key returns the dedupe key of the record.
func (p PunchRecord) Key() DedupeKey {
	return DedupeKey{
		DeviceAddress:    p.DeviceAddress,
		EmployeeDeviceID: p.EmployeeDeviceID,
		Timestamp:        p.Timestamp.UTC(),
		CompanyID:        p.CompanyID,
	}
}

// Validate reports the first missing required field.
func (p PunchRecord) Validate() error {
	switch {
	case p.EmployeeDeviceID == "":
		return ErrMissingEmployeeDeviceID
	case p.Timestamp.IsZero():
		return ErrMissingTimestamp
	case p.DeviceAddress == "":
		return ErrMissingDeviceAddress
	case p.CompanyID == "":
		return ErrMissingCompanyID
	}
	return nil
}

// Punch types as decoded from the terminal state code.
const (
	PunchTypeCheckIn     = "check_in"
	PunchTypeCheckOut    = "check_out"
	PunchTypeBreakOut    = "break_out"
	PunchTypeBreakIn     = "break_in"
	PunchTypeOvertimeIn  = "overtime_in"
	PunchTypeOvertimeOut = "overtime_out"
	PunchTypeUnknown     = "unknown"
)

// Punch modes as decoded from the terminal verification code.
const (
	PunchModePassword    = "password"
	PunchModeFingerprint = "fingerprint"
	PunchModeCard        = "card"
	PunchModeFace        = "face"
	PunchModeUnknown     = "unknown"
)

var punchTypeCodes = map[int]string{
	0: PunchTypeCheckIn,
	1: PunchTypeCheckOut,
	2: PunchTypeBreakOut,
	3: PunchTypeBreakIn,
	4: PunchTypeOvertimeIn,
	5: PunchTypeOvertimeOut,
}

var punchModeCodes = map[int]string{
	0:  PunchModePassword,
	1:  PunchModeFingerprint,
	2:  PunchModeCard,
	15: PunchModeFace,
}

// PunchTypeFromCode maps a device state code. Codes the system doesn't
// interpret map to PunchTypeUnknown.
func PunchTypeFromCode(code int) string {
	if t, ok := punchTypeCodes[code]; ok {
		return t
	}
	return PunchTypeUnknown
}

// PunchModeFromCode maps a device verification code.
func PunchModeFromCode(code int) string {
	if m, ok := punchModeCodes[code]; ok {
		return m
	}
	return PunchModeUnknown
}

// CalendarDate projects t onto a date in loc. The result is midnight UTC of
// that local date so it compares cleanly with DATE columns.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// LastSync describes the most recent persisted punch of a device.
type LastSync struct {
	Timestamp  time.Time
	IngestedAt time.Time
}

// Stats summarizes the persisted punch log of a device.
type Stats struct {
	TotalPunches int64
	LastSyncTime *time.Time
	OldestRecord *time.Time
	NewestRecord *time.Time
}
