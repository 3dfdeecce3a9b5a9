package metrics

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/settings"
)

// Weights blend the three score components. They are configuration and must
// stay stable within a deployment so scores remain comparable.
type Weights struct {
	Attendance  float64 `json:"attendance"`
	Punctuality float64 `json:"punctuality"`
	Consistency float64 `json:"consistency"`
}

// DefaultWeights is the documented default blend.
var DefaultWeights = Weights{Attendance: 0.6, Punctuality: 0.25, Consistency: 0.15}

func (w Weights) Validate() error {
	if w.Attendance < 0 || w.Punctuality < 0 || w.Consistency < 0 {
		return fmt.Errorf("score weights must not be negative: %+v", w)
	}
	if w.Attendance+w.Punctuality+w.Consistency <= 0 {
		return fmt.Errorf("score weights must not all be zero")
	}
	return nil
}

// TierThresholds bucket attendance rates into performance tiers.
type TierThresholds struct {
	Excellent float64 `json:"excellent"`
	Good      float64 `json:"good"`
	Average   float64 `json:"average"`
}

var DefaultTiers = TierThresholds{Excellent: 95, Good: 85, Average: 75}

const (
	TierExcellent        = "excellent"
	TierGood             = "good"
	TierAverage          = "average"
	TierNeedsImprovement = "needs_improvement"
)

// Tier returns the bucket of an attendance rate.
func (t TierThresholds) Tier(rate float64) string {
	switch {
	case rate >= t.Excellent:
		return TierExcellent
	case rate >= t.Good:
		return TierGood
	case rate >= t.Average:
		return TierAverage
	default:
		return TierNeedsImprovement
	}
}

const (
	BadgePerfectAttendance = "perfect_attendance"
	BadgeAlwaysOnTime      = "always_on_time"
	BadgeHardWorker        = "hard_worker"
	BadgeFrequentLate      = "frequent_late"
)

// Policy is everything the metrics engine needs to turn punches into figures.
//
// Check-in is the first punch of a day and check-out the last one. Device
// punch types are not trusted for pairing.
type Policy struct {
	Cutoff        settings.ClockTime
	GraceMinutes  int
	CountWeekends bool
	Location      *time.Location
	Weights       Weights
	Tiers         TierThresholds

	// Source tells callers where the cutoff came from: "settings" or "default".
	Source string
}

const (
	PolicySourceSettings = "settings"
	PolicySourceDefault  = "default"
)

// DefaultPolicy is the route-level policy used when a tenant has no settings.
func DefaultPolicy() Policy {
	return Policy{
		Cutoff:       settings.MustParseClock("09:00"),
		GraceMinutes: 15,
		Location:     time.UTC,
		Weights:      DefaultWeights,
		Tiers:        DefaultTiers,
		Source:       PolicySourceDefault,
	}
}

// WithSettings overlays a tenant settings document on p.
func (p Policy) WithSettings(s settings.AttendanceSettings) (Policy, error) {
	if s.UseCustomCutoff {
		cutoff, err := s.Cutoff()
		if err != nil {
			return Policy{}, err
		}
		p.Cutoff = cutoff
	}
	if s.GraceMinutes < 0 {
		return Policy{}, fmt.Errorf("%w: negative grace minutes %d", settings.ErrConfiguration, s.GraceMinutes)
	}
	p.GraceMinutes = s.GraceMinutes
	p.CountWeekends = p.CountWeekends || s.CountWeekends
	p.Source = PolicySourceSettings
	return p, nil
}
