package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/metrics"
	"github.com/cmlabs-hris/attendance-sync/internal/domain/punch"
	"github.com/cmlabs-hris/attendance-sync/internal/domain/settings"
	promMetrics "github.com/cmlabs-hris/attendance-sync/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/validator"
)

type Config struct {
	// Policy applies when a company has no attendance settings.
	Policy metrics.Policy
	// WindowDays is the length of the default trailing window.
	WindowDays int
}

type MetricsServiceImpl struct {
	store    punch.PunchStore
	settings settings.SettingsRepository
	cfg      Config
	now      func() time.Time
}

func NewMetricsService(store punch.PunchStore, settingsRepo settings.SettingsRepository, cfg Config) metrics.MetricsService {
	if cfg.Policy.Location == nil {
		cfg.Policy.Location = time.UTC
	}
	if cfg.WindowDays < 1 {
		cfg.WindowDays = 30
	}
	return &MetricsServiceImpl{
		store:    store,
		settings: settingsRepo,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Leaderboard implements metrics.MetricsService.
func (s *MetricsServiceImpl) Leaderboard(ctx context.Context, req metrics.LeaderboardRequest) (metrics.LeaderboardResponse, error) {
	if err := req.Validate(); err != nil {
		return metrics.LeaderboardResponse{}, err
	}
	defer observe(time.Now())

	window, err := s.window(req.StartDate, req.EndDate)
	if err != nil {
		return metrics.LeaderboardResponse{}, err
	}

	policy, err := s.policy(ctx, req.CompanyID)
	if err != nil {
		return metrics.LeaderboardResponse{}, err
	}

	records, err := s.store.QueryRange(ctx, punch.RangeFilter{
		DeviceAddress: deref(req.DeviceAddress),
		CompanyID:     req.CompanyID,
		StartDate:     window.Start,
		EndDate:       window.End,
	})
	if err != nil {
		return metrics.LeaderboardResponse{}, fmt.Errorf("failed to query punches: %w", err)
	}

	ranked := Compute(records, window, policy, false)
	total := len(ranked)
	if len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}

	return metrics.LeaderboardResponse{
		StartDate:   window.Start.Format("2006-01-02"),
		EndDate:     window.End.Format("2006-01-02"),
		WorkingDays: window.WorkingDays(),
		TotalCount:  total,
		Policy:      metrics.NewPolicySummary(policy),
		Employees:   ranked,
	}, nil
}

// EmployeeReport implements metrics.MetricsService. An employee without
// punches in the window gets a report with every working day absent.
func (s *MetricsServiceImpl) EmployeeReport(ctx context.Context, req metrics.EmployeeReportRequest) (metrics.EmployeeReportResponse, error) {
	if err := req.Validate(); err != nil {
		return metrics.EmployeeReportResponse{}, err
	}
	defer observe(time.Now())

	window, err := s.window(req.StartDate, req.EndDate)
	if err != nil {
		return metrics.EmployeeReportResponse{}, err
	}

	policy, err := s.policy(ctx, req.CompanyID)
	if err != nil {
		return metrics.EmployeeReportResponse{}, err
	}

	records, err := s.store.QueryRange(ctx, punch.RangeFilter{
		DeviceAddress: deref(req.DeviceAddress),
		CompanyID:     req.CompanyID,
		StartDate:     window.Start,
		EndDate:       window.End,
	})
	if err != nil {
		return metrics.EmployeeReportResponse{}, fmt.Errorf("failed to query punches: %w", err)
	}

	return metrics.EmployeeReportResponse{
		StartDate: window.Start.Format("2006-01-02"),
		EndDate:   window.End.Format("2006-01-02"),
		Policy:    metrics.NewPolicySummary(policy),
		Employee:  ComputeEmployee(req.EmployeeDeviceID, records, window, policy, true),
	}, nil
}

// policy overlays the company's active settings on the configured default.
// A stored policy that cannot be applied is an error, never a silent fallback.
func (s *MetricsServiceImpl) policy(ctx context.Context, companyID string) (metrics.Policy, error) {
	base := s.cfg.Policy
	if s.settings == nil {
		return base, nil
	}

	active, err := s.settings.GetActive(ctx, companyID)
	if err != nil {
		if errors.Is(err, settings.ErrSettingsNotFound) {
			return base, nil
		}
		return metrics.Policy{}, fmt.Errorf("failed to get attendance settings: %w", err)
	}

	return base.WithSettings(active)
}

// window resolves the requested dates; missing ends default to a trailing
// window ending today in the reporting timezone.
func (s *MetricsServiceImpl) window(start, end *string) (Window, error) {
	today := punch.CalendarDate(s.now(), s.cfg.Policy.Location)

	w := Window{End: today}
	if end != nil && *end != "" {
		w.End, _ = validator.IsValidDate(*end)
	}
	w.Start = w.End.AddDate(0, 0, -(s.cfg.WindowDays - 1))
	if start != nil && *start != "" {
		w.Start, _ = validator.IsValidDate(*start)
	}

	if w.End.Before(w.Start) {
		return Window{}, fmt.Errorf("%w: %s is after %s", metrics.ErrInvalidWindow,
			w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
	}
	if w.End.Sub(w.Start) > 366*24*time.Hour {
		return Window{}, fmt.Errorf("%w: windows are limited to one year", metrics.ErrInvalidWindow)
	}
	return w, nil
}

func observe(start time.Time) {
	promMetrics.LeaderboardDuration.Observe(time.Since(start).Seconds())
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
