package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/settings"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Defaults seed fields an update leaves out when no settings exist yet.
type Defaults struct {
	CutoffTime   string
	GraceMinutes int
	DevicePort   int
}

type SettingsServiceImpl struct {
	repo     settings.SettingsRepository
	defaults Defaults
}

func NewSettingsService(repo settings.SettingsRepository, defaults Defaults) settings.SettingsService {
	return &SettingsServiceImpl{repo: repo, defaults: defaults}
}

// GetCurrent implements settings.SettingsService.
func (s *SettingsServiceImpl) GetCurrent(ctx context.Context, companyID string) (settings.SettingsResponse, error) {
	active, err := s.repo.GetActive(ctx, companyID)
	if err != nil {
		return settings.SettingsResponse{}, err
	}
	return settings.NewSettingsResponse(active), nil
}

// Update implements settings.SettingsService. Every update creates a new
// version; fields left out keep their current value.
func (s *SettingsServiceImpl) Update(ctx context.Context, req settings.UpdateSettingsRequest) (settings.SettingsResponse, error) {
	if err := req.Validate(); err != nil {
		return settings.SettingsResponse{}, err
	}

	current, err := s.repo.GetActive(ctx, req.CompanyID)
	if err != nil {
		if !errors.Is(err, settings.ErrSettingsNotFound) {
			return settings.SettingsResponse{}, fmt.Errorf("failed to get current settings: %w", err)
		}
		current = settings.AttendanceSettings{
			CompanyID:         req.CompanyID,
			CutoffTime:        s.defaults.CutoffTime,
			GraceMinutes:      s.defaults.GraceMinutes,
			UseDeviceDefaults: true,
			DevicePort:        s.defaults.DevicePort,
		}
	}

	next := settings.AttendanceSettings{
		CompanyID:         req.CompanyID,
		UseCustomCutoff:   valueOr(req.UseCustomCutoff, current.UseCustomCutoff),
		CutoffTime:        current.CutoffTime,
		GraceMinutes:      valueOr(req.GraceMinutes, current.GraceMinutes),
		CountWeekends:     valueOr(req.CountWeekends, current.CountWeekends),
		UseDeviceDefaults: valueOr(req.UseDeviceDefaults, current.UseDeviceDefaults),
		DevicePort:        current.DevicePort,
		CreatedBy:         req.UpdatedBy,
	}
	if req.CutoffTime != "" {
		next.CutoffTime = req.CutoffTime
	}
	if req.DevicePort > 0 {
		next.DevicePort = req.DevicePort
	}

	// Stored cutoffs must always parse.
	if _, err := settings.ParseClock(next.CutoffTime); err != nil {
		return settings.SettingsResponse{}, err
	}

	created, err := s.repo.ReplaceActive(ctx, next)
	if err != nil {
		return settings.SettingsResponse{}, fmt.Errorf("failed to save settings: %w", err)
	}

	slog.Info("Attendance settings updated",
		"company_id", created.CompanyID,
		"version", created.Version,
		"cutoff", created.CutoffTime,
		"use_custom_cutoff", created.UseCustomCutoff,
	)
	return settings.NewSettingsResponse(created), nil
}

// History implements settings.SettingsService.
func (s *SettingsServiceImpl) History(ctx context.Context, companyID string, limit int) ([]settings.SettingsResponse, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	versions, err := s.repo.ListHistory(ctx, companyID, limit)
	if err != nil {
		return nil, err
	}

	resp := make([]settings.SettingsResponse, 0, len(versions))
	for _, v := range versions {
		resp = append(resp, settings.NewSettingsResponse(v))
	}
	return resp, nil
}

func valueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
