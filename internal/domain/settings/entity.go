package settings

import (
	"fmt"
	"strings"
	"time"
)

// AttendanceSettings is the versioned attendance policy of one tenant. Exactly
// one version per company is active; a new version replaces the previous one
// atomically.
type AttendanceSettings struct {
	ID                string
	CompanyID         string
	Version           int
	UseCustomCutoff   bool
	CutoffTime        string // HH:MM
	GraceMinutes      int
	CountWeekends     bool
	UseDeviceDefaults bool
	DevicePort        int
	IsActive          bool
	CreatedBy         *string
	CreatedAt         time.Time
}

// Cutoff parses the stored cutoff. A malformed stored value is a
// configuration error, not a validation error.
func (s AttendanceSettings) Cutoff() (ClockTime, error) {
	c, err := ParseClock(s.CutoffTime)
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: company %s settings v%d: %v", ErrConfiguration, s.CompanyID, s.Version, err)
	}
	return c, nil
}

// ClockTime is a wall clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock accepts "15:04" and "15:04:05"; seconds are dropped.
func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("15:04", s)
	if err != nil {
		t, err = time.Parse("15:04:05", s)
	}
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: %q must be HH:MM", ErrInvalidCutoff, s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// MustParseClock panics on malformed input. Meant for constants.
func MustParseClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// On places the clock time on the calendar day of day, in loc.
func (c ClockTime) On(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, loc)
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}
