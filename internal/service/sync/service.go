package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/device"
	"github.com/cmlabs-hris/attendance-sync/internal/domain/punch"
	"github.com/cmlabs-hris/attendance-sync/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/validator"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// incrementalOverlap is re-fetched before the newest persisted punch to absorb
// device clock skew and day boundary truncation. Duplicates are dropped by
// the store.
const incrementalOverlap = 24 * time.Hour

// Publisher receives the outcome of every sync run.
type Publisher interface {
	Publish(event sse.Event)
}

const (
	EventSyncCompleted = "sync.completed"
	EventSyncFailed    = "sync.failed"
)

type Config struct {
	DefaultPort int
	// Location is the reporting timezone used for calendar dates and for
	// interpreting startDate/endDate.
	Location *time.Location
	// Events is optional.
	Events Publisher
}

type SyncServiceImpl struct {
	client   device.Client
	store    punch.PunchStore
	settings settings.SettingsRepository
	cfg      Config
	now      func() time.Time
}

// NewSyncService wires the sync engine. settingsRepo may be nil, in which case
// the configured default port is always used.
func NewSyncService(client device.Client, store punch.PunchStore, settingsRepo settings.SettingsRepository, cfg Config) punch.SyncService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultPort == 0 {
		cfg.DefaultPort = 4370
	}
	return &SyncServiceImpl{
		client:   client,
		store:    store,
		settings: settingsRepo,
		cfg:      cfg,
		now:      time.Now,
	}
}

// FullSync implements punch.SyncService.
func (s *SyncServiceImpl) FullSync(ctx context.Context, req punch.FullSyncRequest) (punch.SyncResult, error) {
	if err := req.Validate(); err != nil {
		return punch.SyncResult{}, err
	}

	var since, until *time.Time
	if req.StartDate != nil && *req.StartDate != "" {
		t := s.dayStart(*req.StartDate)
		since = &t
	}
	if req.EndDate != nil && *req.EndDate != "" {
		t := s.dayStart(*req.EndDate).AddDate(0, 0, 1).Add(-time.Nanosecond)
		until = &t
	}

	port := s.resolvePort(ctx, req.CompanyID, req.Port)
	return s.run(ctx, punch.SyncModeFull, req.DeviceAddress, port, req.CompanyID, since, until)
}

// IncrementalSync implements punch.SyncService.
func (s *SyncServiceImpl) IncrementalSync(ctx context.Context, req punch.IncrementalSyncRequest) (punch.SyncResult, error) {
	if err := req.Validate(); err != nil {
		return punch.SyncResult{}, err
	}

	last, err := s.store.LastSyncInfo(ctx, req.DeviceAddress, req.CompanyID)
	if err != nil {
		return punch.SyncResult{}, fmt.Errorf("failed to get last sync info: %w", err)
	}

	port := s.resolvePort(ctx, req.CompanyID, req.Port)
	if last == nil {
		slog.Info("No persisted punches for device, running full sync",
			"device", req.DeviceAddress,
			"company_id", req.CompanyID,
		)
		return s.run(ctx, punch.SyncModeFull, req.DeviceAddress, port, req.CompanyID, nil, nil)
	}

	since := last.Timestamp.Add(-incrementalOverlap)
	return s.run(ctx, punch.SyncModeIncremental, req.DeviceAddress, port, req.CompanyID, &since, nil)
}

func (s *SyncServiceImpl) run(ctx context.Context, mode, address string, port int, companyID string, since, until *time.Time) (punch.SyncResult, error) {
	start := s.now()
	logger := slog.With("device", address, "company_id", companyID, "mode", mode)

	raw, err := s.fetch(ctx, address, port, since, until)
	if err != nil {
		metrics.RecordSync(mode, address, time.Since(start), 0, 0, 0, err)
		logger.Error("Device sync failed", "error", err)
		s.publishFailure(mode, address, companyID, err)
		return punch.SyncResult{}, err
	}

	records, invalid := s.transform(raw, address, companyID)

	inserted, err := s.store.BulkInsert(ctx, records)
	if err != nil {
		metrics.RecordSync(mode, address, time.Since(start), 0, 0, 0, err)
		logger.Error("Failed to store punches", "error", err, "fetched", len(raw))
		err = fmt.Errorf("failed to store punches: %w", err)
		s.publishFailure(mode, address, companyID, err)
		return punch.SyncResult{}, err
	}

	elapsed := time.Since(start)
	result := punch.SyncResult{
		DeviceAddress:         address,
		CompanyID:             companyID,
		Mode:                  mode,
		RangeStart:            formatTimePtr(since),
		RangeEnd:              formatTimePtr(until),
		InsertedCount:         inserted.Inserted,
		SkippedDuplicateCount: inserted.Skipped,
		InvalidCount:          invalid,
		TotalSeen:             len(raw),
		DurationSeconds:       math.Round(elapsed.Seconds()*1000) / 1000,
	}

	metrics.RecordSync(mode, address, elapsed, result.InsertedCount, result.SkippedDuplicateCount, invalid, nil)
	logger.Info("Device sync finished",
		"total_seen", result.TotalSeen,
		"inserted", result.InsertedCount,
		"skipped", result.SkippedDuplicateCount,
		"invalid", invalid,
		"duration", elapsed,
	)
	if s.cfg.Events != nil {
		s.cfg.Events.Publish(sse.Event{CompanyID: companyID, Event: EventSyncCompleted, Data: result})
	}
	return result, nil
}

// SyncFailure is the payload of EventSyncFailed.
type SyncFailure struct {
	DeviceAddress string `json:"deviceAddress"`
	Mode          string `json:"mode"`
	Error         string `json:"error"`
}

func (s *SyncServiceImpl) publishFailure(mode, address, companyID string, err error) {
	if s.cfg.Events == nil {
		return
	}
	s.cfg.Events.Publish(sse.Event{
		CompanyID: companyID,
		Event:     EventSyncFailed,
		Data:      SyncFailure{DeviceAddress: address, Mode: mode, Error: err.Error()},
	})
}

// fetch owns one exclusive session for its lifetime.
func (s *SyncServiceImpl) fetch(ctx context.Context, address string, port int, since, until *time.Time) ([]device.RawPunch, error) {
	sess, err := s.client.Connect(ctx, address, port)
	if err != nil {
		return nil, err
	}
	defer s.disconnect(ctx, sess)

	return s.client.FetchPunches(ctx, sess, since, until)
}

func (s *SyncServiceImpl) disconnect(ctx context.Context, sess device.Session) {
	// Released even when the request was cancelled.
	if err := s.client.Disconnect(context.WithoutCancel(ctx), sess); err != nil {
		slog.Warn("Failed to disconnect from device", "device", sess.Address(), "error", err)
	}
}

// transform normalizes raw punches in fetch order. Records that fail
// validation are logged and counted instead of failing the batch.
func (s *SyncServiceImpl) transform(raw []device.RawPunch, address, companyID string) ([]punch.PunchRecord, int) {
	ingestedAt := s.now().UTC()
	records := make([]punch.PunchRecord, 0, len(raw))
	invalid := 0

	for i, r := range raw {
		var ts time.Time
		if !r.RecordTime.IsZero() {
			ts = r.RecordTime.UTC()
		}

		payload, err := json.Marshal(r)
		if err != nil {
			slog.Warn("Failed to encode raw punch", "device", address, "index", i, "error", err)
			payload = nil
		}

		record := punch.PunchRecord{
			ID:               newID(),
			DeviceAddress:    address,
			EmployeeDeviceID: strings.TrimSpace(r.DeviceUser),
			Timestamp:        ts,
			PunchType:        punch.PunchTypeFromCode(r.State),
			PunchMode:        punch.PunchModeFromCode(r.VerifyMode),
			RawPayload:       payload,
			CompanyID:        companyID,
			IngestedAt:       ingestedAt,
		}
		if err := record.Validate(); err != nil {
			invalid++
			slog.Warn("Skipping invalid punch", "device", address, "index", i, "user_sn", r.UserSN, "error", err)
			continue
		}
		record.CalendarDate = punch.CalendarDate(ts, s.cfg.Location)
		records = append(records, record)
	}

	return records, invalid
}

// SyncStats implements punch.SyncService.
func (s *SyncServiceImpl) SyncStats(ctx context.Context, req punch.SyncStatsRequest) (punch.SyncStatsResponse, error) {
	if err := req.Validate(); err != nil {
		return punch.SyncStatsResponse{}, err
	}

	stats, err := s.store.Stats(ctx, req.DeviceAddress, req.CompanyID)
	if err != nil {
		return punch.SyncStatsResponse{}, fmt.Errorf("failed to get sync stats: %w", err)
	}

	return punch.SyncStatsResponse{
		DeviceAddress: req.DeviceAddress,
		CompanyID:     req.CompanyID,
		TotalPunches:  stats.TotalPunches,
		LastSyncTime:  formatTimePtr(stats.LastSyncTime),
		OldestRecord:  formatTimePtr(stats.OldestRecord),
		NewestRecord:  formatTimePtr(stats.NewestRecord),
	}, nil
}

// QueryRange implements punch.SyncService.
func (s *SyncServiceImpl) QueryRange(ctx context.Context, req punch.QueryRangeRequest) (punch.ListPunchResponse, error) {
	if err := req.Validate(); err != nil {
		return punch.ListPunchResponse{}, err
	}

	startDate, _ := validator.IsValidDate(req.StartDate)
	endDate, _ := validator.IsValidDate(req.EndDate)

	records, err := s.store.QueryRange(ctx, punch.RangeFilter{
		DeviceAddress: req.DeviceAddress,
		CompanyID:     req.CompanyID,
		StartDate:     startDate,
		EndDate:       endDate,
	})
	if err != nil {
		return punch.ListPunchResponse{}, fmt.Errorf("failed to query punches: %w", err)
	}

	punches := make([]punch.PunchResponse, 0, len(records))
	for _, r := range records {
		punches = append(punches, punch.NewPunchResponse(r))
	}

	return punch.ListPunchResponse{
		DeviceAddress: req.DeviceAddress,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		TotalCount:    len(punches),
		Punches:       punches,
	}, nil
}

// DeviceInfo implements punch.SyncService.
func (s *SyncServiceImpl) DeviceInfo(ctx context.Context, req punch.DeviceInfoRequest) (punch.DeviceInfoResponse, error) {
	if err := req.Validate(); err != nil {
		return punch.DeviceInfoResponse{}, err
	}

	port := s.resolvePort(ctx, req.CompanyID, req.Port)

	sess, err := s.client.Connect(ctx, req.DeviceAddress, port)
	if err != nil {
		return punch.DeviceInfoResponse{}, err
	}
	defer s.disconnect(ctx, sess)

	info, err := s.client.Info(ctx, sess)
	if err != nil {
		return punch.DeviceInfoResponse{}, err
	}

	serverTime := s.now().UTC()
	return punch.DeviceInfoResponse{
		DeviceAddress:    req.DeviceAddress,
		SerialNumber:     info.SerialNumber,
		FirmwareVersion:  info.FirmwareVersion,
		DeviceTime:       info.DeviceTime.Format(time.RFC3339),
		ServerTime:       serverTime.Format(time.RFC3339),
		ClockSkewSeconds: int64(info.DeviceTime.Sub(serverTime).Round(time.Second) / time.Second),
		RecordCount:      info.RecordCount,
	}, nil
}

// resolvePort prefers the request, then the tenant settings, then config.
func (s *SyncServiceImpl) resolvePort(ctx context.Context, companyID string, requested int) int {
	if requested > 0 {
		return requested
	}
	if s.settings != nil {
		active, err := s.settings.GetActive(ctx, companyID)
		switch {
		case err == nil:
			if !active.UseDeviceDefaults && active.DevicePort > 0 {
				return active.DevicePort
			}
		case !errors.Is(err, settings.ErrSettingsNotFound):
			slog.Warn("Failed to read attendance settings, using default device port", "company_id", companyID, "error", err)
		}
	}
	return s.cfg.DefaultPort
}

func (s *SyncServiceImpl) dayStart(date string) time.Time {
	d, _ := validator.IsValidDate(date)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.cfg.Location)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}
