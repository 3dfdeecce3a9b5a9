package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/metrics"
	"github.com/cmlabs-hris/attendance-sync/internal/domain/punch"
	"github.com/cmlabs-hris/attendance-sync/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	records []punch.PunchRecord
	filters []punch.RangeFilter
}

func (s *stubStore) BulkInsert(context.Context, []punch.PunchRecord) (punch.BulkInsertResult, error) {
	return punch.BulkInsertResult{}, errors.New("read only")
}

func (s *stubStore) QueryRange(_ context.Context, f punch.RangeFilter) ([]punch.PunchRecord, error) {
	s.filters = append(s.filters, f)
	var out []punch.PunchRecord
	for _, r := range s.records {
		if r.CalendarDate.Before(f.StartDate) || r.CalendarDate.After(f.EndDate) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *stubStore) LastSyncInfo(context.Context, string, string) (*punch.LastSync, error) {
	return nil, nil
}

func (s *stubStore) Stats(context.Context, string, string) (punch.Stats, error) {
	return punch.Stats{}, nil
}

type stubSettings struct {
	active *settings.AttendanceSettings
	err    error
}

func (s *stubSettings) GetActive(context.Context, string) (settings.AttendanceSettings, error) {
	if s.err != nil {
		return settings.AttendanceSettings{}, s.err
	}
	if s.active == nil {
		return settings.AttendanceSettings{}, settings.ErrSettingsNotFound
	}
	return *s.active, nil
}

func (s *stubSettings) ReplaceActive(context.Context, settings.AttendanceSettings) (settings.AttendanceSettings, error) {
	return settings.AttendanceSettings{}, errors.New("read only")
}

func (s *stubSettings) ListHistory(context.Context, string, int) ([]settings.AttendanceSettings, error) {
	return nil, nil
}

func newTestService(store *stubStore, repo *stubSettings, today string) *MetricsServiceImpl {
	svc := NewMetricsService(store, repo, Config{Policy: metrics.DefaultPolicy(), WindowDays: 7}).(*MetricsServiceImpl)
	now := day(today).Add(15 * time.Hour)
	svc.now = func() time.Time { return now }
	return svc
}

func weekOfPunches() []punch.PunchRecord {
	var records []punch.PunchRecord
	for _, d := range []string{"08", "09", "10", "11", "12"} {
		records = append(records,
			record("7", "2024-01-"+d+"T08:50:00Z"),
			record("7", "2024-01-"+d+"T17:00:00Z"),
			record("9", "2024-01-"+d+"T09:30:00Z"),
		)
	}
	return records
}

func TestLeaderboard_DefaultWindowAndLimit(t *testing.T) {
	store := &stubStore{records: weekOfPunches()}
	svc := newTestService(store, &stubSettings{}, "2024-01-14")

	resp, err := svc.Leaderboard(context.Background(), metrics.LeaderboardRequest{CompanyID: "C1", Limit: 1})
	require.NoError(t, err)

	assert.Equal(t, "2024-01-08", resp.StartDate)
	assert.Equal(t, "2024-01-14", resp.EndDate)
	assert.Equal(t, 5, resp.WorkingDays)
	assert.Equal(t, 2, resp.TotalCount)
	require.Len(t, resp.Employees, 1)
	assert.Equal(t, "7", resp.Employees[0].EmployeeDeviceID)
	assert.Equal(t, 1, resp.Employees[0].Rank)
	assert.Equal(t, metrics.PolicySourceDefault, resp.Policy.Source)
	assert.Equal(t, "09:00", resp.Policy.CutoffTime)

	require.Len(t, store.filters, 1)
	assert.Equal(t, "C1", store.filters[0].CompanyID)
	assert.Empty(t, store.filters[0].DeviceAddress)
}

func TestLeaderboard_UsesCompanySettings(t *testing.T) {
	store := &stubStore{records: weekOfPunches()}
	repo := &stubSettings{active: &settings.AttendanceSettings{
		CompanyID:       "C1",
		UseCustomCutoff: true,
		CutoffTime:      "09:30",
		GraceMinutes:    0,
	}}
	svc := newTestService(store, repo, "2024-01-14")

	resp, err := svc.Leaderboard(context.Background(), metrics.LeaderboardRequest{CompanyID: "C1"})
	require.NoError(t, err)

	assert.Equal(t, metrics.PolicySourceSettings, resp.Policy.Source)
	assert.Equal(t, "09:30", resp.Policy.CutoffTime)
	for _, m := range resp.Employees {
		assert.Zero(t, m.LateDays, "employee %s", m.EmployeeDeviceID)
	}
}

func TestLeaderboard_MisconfiguredSettings(t *testing.T) {
	repo := &stubSettings{active: &settings.AttendanceSettings{
		CompanyID:       "C1",
		UseCustomCutoff: true,
		CutoffTime:      "9am",
	}}
	svc := newTestService(&stubStore{}, repo, "2024-01-14")

	_, err := svc.Leaderboard(context.Background(), metrics.LeaderboardRequest{CompanyID: "C1"})
	assert.ErrorIs(t, err, settings.ErrConfiguration)
}

func TestLeaderboard_SettingsReadFailure(t *testing.T) {
	repo := &stubSettings{err: errors.New("connection reset")}
	svc := newTestService(&stubStore{}, repo, "2024-01-14")

	_, err := svc.Leaderboard(context.Background(), metrics.LeaderboardRequest{CompanyID: "C1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, settings.ErrSettingsNotFound)
}

func TestLeaderboard_InvalidWindow(t *testing.T) {
	svc := newTestService(&stubStore{}, &stubSettings{}, "2024-01-14")

	start := "2024-02-01"
	_, err := svc.Leaderboard(context.Background(), metrics.LeaderboardRequest{CompanyID: "C1", StartDate: &start})
	assert.ErrorIs(t, err, metrics.ErrInvalidWindow)

	end := "2024-01-01"
	_, err = svc.Leaderboard(context.Background(), metrics.LeaderboardRequest{CompanyID: "C1", StartDate: &start, EndDate: &end})
	var validationErrs validator.ValidationErrors
	assert.ErrorAs(t, err, &validationErrs)

	_, err = svc.Leaderboard(context.Background(), metrics.LeaderboardRequest{CompanyID: "C1", Limit: 500})
	assert.ErrorAs(t, err, &validationErrs)
}

func TestEmployeeReport(t *testing.T) {
	store := &stubStore{records: weekOfPunches()}
	svc := newTestService(store, &stubSettings{}, "2024-01-14")
	start, end := "2024-01-08", "2024-01-12"

	resp, err := svc.EmployeeReport(context.Background(), metrics.EmployeeReportRequest{
		CompanyID:        "C1",
		EmployeeDeviceID: "9",
		StartDate:        &start,
		EndDate:          &end,
	})
	require.NoError(t, err)

	m := resp.Employee
	assert.Equal(t, "9", m.EmployeeDeviceID)
	assert.Equal(t, 5, m.PresentDays)
	assert.Equal(t, 5, m.LateDays)
	assert.Equal(t, 75, m.TotalLateMinutes)
	assert.Contains(t, m.Badges, metrics.BadgeFrequentLate)
	assert.Len(t, m.Days, 5)

	t.Run("unknown employee is absent every working day", func(t *testing.T) {
		resp, err := svc.EmployeeReport(context.Background(), metrics.EmployeeReportRequest{
			CompanyID:        "C1",
			EmployeeDeviceID: "404",
			StartDate:        &start,
			EndDate:          &end,
		})
		require.NoError(t, err)
		assert.Equal(t, 5, resp.Employee.AbsentDays)
		assert.Empty(t, resp.Employee.Days)
	})
}
