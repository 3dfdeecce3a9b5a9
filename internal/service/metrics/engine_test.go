package metrics

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/metrics"
	"github.com/cmlabs-hris/attendance-sync/internal/domain/punch"
	"github.com/cmlabs-hris/attendance-sync/internal/domain/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(ts string) time.Time {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return t
}

func record(employee, ts string) punch.PunchRecord {
	t := at(ts)
	return punch.PunchRecord{
		DeviceAddress:    "10.0.0.5",
		EmployeeDeviceID: employee,
		Timestamp:        t,
		CalendarDate:     punch.CalendarDate(t, time.UTC),
		CompanyID:        "C1",
	}
}

func day(date string) time.Time {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return t
}

func window(start, end string) Window {
	return Window{Start: day(start), End: day(end)}
}

func TestComputeEmployee_OnTimeWithinGrace(t *testing.T) {
	records := []punch.PunchRecord{
		record("7", "2024-01-08T09:12:00Z"),
		record("7", "2024-01-08T17:30:00Z"),
	}

	m := ComputeEmployee("7", records, window("2024-01-08", "2024-01-08"), metrics.DefaultPolicy(), true)

	assert.Equal(t, 1, m.PresentDays)
	assert.Equal(t, 0, m.LateDays)
	assert.Equal(t, 0, m.TotalLateMinutes)
	assert.Equal(t, 498, m.TotalWorkMinutes)
	require.Len(t, m.Days, 1)
	assert.Equal(t, 498, m.Days[0].WorkMinutes)
	assert.Equal(t, "2024-01-08T09:12:00Z", m.Days[0].CheckIn)
	assert.Equal(t, "2024-01-08T17:30:00Z", m.Days[0].CheckOut)
}

func TestComputeEmployee_LateBeyondGrace(t *testing.T) {
	records := []punch.PunchRecord{
		record("7", "2024-01-08T09:20:00Z"),
		record("7", "2024-01-08T17:30:00Z"),
	}

	m := ComputeEmployee("7", records, window("2024-01-08", "2024-01-08"), metrics.DefaultPolicy(), true)

	assert.Equal(t, 1, m.LateDays)
	assert.Equal(t, 5, m.TotalLateMinutes)
	assert.True(t, m.Days[0].Late)
	assert.NotContains(t, m.Badges, metrics.BadgeAlwaysOnTime)
}

func TestComputeEmployee_CutoffFromSettings(t *testing.T) {
	policy, err := metrics.DefaultPolicy().WithSettings(settings.AttendanceSettings{
		UseCustomCutoff: true,
		CutoffTime:      "08:00",
		GraceMinutes:    0,
	})
	require.NoError(t, err)

	m := ComputeEmployee("7", []punch.PunchRecord{record("7", "2024-01-08T08:30:00Z")},
		window("2024-01-08", "2024-01-08"), policy, false)

	assert.Equal(t, 30, m.TotalLateMinutes)
	assert.Equal(t, metrics.PolicySourceSettings, policy.Source)
}

func TestComputeEmployee_ReportingTimezone(t *testing.T) {
	policy := metrics.DefaultPolicy()
	policy.Location = time.FixedZone("WIB", 7*3600)

	// 02:20Z is 09:20 in UTC+7.
	m := ComputeEmployee("7", []punch.PunchRecord{
		record("7", "2024-01-08T02:20:00Z"),
		record("7", "2024-01-08T10:20:00Z"),
	}, window("2024-01-08", "2024-01-08"), policy, true)

	assert.Equal(t, 5, m.TotalLateMinutes)
	assert.Equal(t, 480, m.TotalWorkMinutes)
	assert.Equal(t, "2024-01-08", m.Days[0].Date)
}

func TestComputeEmployee_SinglePunchCountsAsPresent(t *testing.T) {
	m := ComputeEmployee("7", []punch.PunchRecord{record("7", "2024-01-08T08:55:00Z")},
		window("2024-01-08", "2024-01-12"), metrics.DefaultPolicy(), false)

	assert.Equal(t, 1, m.PresentDays)
	assert.Equal(t, 0, m.TotalWorkMinutes)
	assert.Equal(t, 5, m.WorkingDays)
	assert.Equal(t, 4, m.AbsentDays)
	assert.Equal(t, 20.0, m.AttendanceRate)
	assert.Equal(t, 60.0, m.ConsistencyScore)
	assert.Equal(t, metrics.TierNeedsImprovement, m.Tier)
}

func TestComputeEmployee_WeekendPunches(t *testing.T) {
	records := []punch.PunchRecord{
		record("7", "2024-01-13T10:00:00Z"), // Saturday
		record("7", "2024-01-13T14:00:00Z"),
	}
	w := window("2024-01-13", "2024-01-14")

	t.Run("excluded by default", func(t *testing.T) {
		m := ComputeEmployee("7", records, w, metrics.DefaultPolicy(), true)
		assert.Equal(t, 0, m.WorkingDays)
		assert.Equal(t, 0, m.PresentDays)
		assert.Equal(t, 1, m.WeekendDays)
		assert.Equal(t, 0, m.TotalLateMinutes)
		assert.Equal(t, 0.0, m.AttendanceRate)
		require.Len(t, m.Days, 1)
		assert.True(t, m.Days[0].Weekend)
	})

	t.Run("counted when policy says so", func(t *testing.T) {
		policy := metrics.DefaultPolicy()
		policy.CountWeekends = true
		m := ComputeEmployee("7", records, w, policy, false)
		assert.Equal(t, 1, m.PresentDays)
		assert.Equal(t, 0, m.AbsentDays)
		assert.Equal(t, 240, m.TotalWorkMinutes)
		assert.Equal(t, 0.0, m.AttendanceRate, "no working days means a zero rate")
	})
}

func TestComputeEmployee_NoPunches(t *testing.T) {
	m := ComputeEmployee("7", nil, window("2024-01-08", "2024-01-12"), metrics.DefaultPolicy(), true)

	assert.Equal(t, 5, m.AbsentDays)
	assert.Equal(t, 0.0, m.AttendanceRate)
	assert.Equal(t, 50.0, m.ConsistencyScore)
	assert.Empty(t, m.Badges)
	assert.NotNil(t, m.Badges)
}

func TestComputeEmployee_Badges(t *testing.T) {
	var records []punch.PunchRecord
	for _, d := range []string{"08", "09", "10", "11", "12"} {
		records = append(records,
			record("7", "2024-01-"+d+"T08:45:00Z"),
			record("7", "2024-01-"+d+"T17:15:00Z"),
		)
	}

	m := ComputeEmployee("7", records, window("2024-01-08", "2024-01-12"), metrics.DefaultPolicy(), false)

	assert.Equal(t, 100.0, m.AttendanceRate)
	assert.Equal(t, 100.0, m.Score)
	assert.Equal(t, metrics.TierExcellent, m.Tier)
	assert.Equal(t, []string{
		metrics.BadgePerfectAttendance,
		metrics.BadgeAlwaysOnTime,
		metrics.BadgeHardWorker,
	}, m.Badges)
}

func TestCompute_RankingIsDeterministic(t *testing.T) {
	records := []punch.PunchRecord{
		record("b", "2024-01-08T08:50:00Z"),
		record("a", "2024-01-08T08:50:00Z"),
		record("c", "2024-01-08T10:00:00Z"),
		record("d", "2024-01-09T08:00:00Z"),
		record("d", "2024-01-08T08:00:00Z"),
		record("e", "2024-01-20T08:00:00Z"), // outside the window
	}
	w := window("2024-01-08", "2024-01-09")

	first := Compute(records, w, metrics.DefaultPolicy(), false)

	shuffled := append([]punch.PunchRecord(nil), records...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	second := Compute(shuffled, w, metrics.DefaultPolicy(), false)

	assert.Equal(t, first, second)

	ids := make([]string, len(first))
	for i, m := range first {
		ids[i] = m.EmployeeDeviceID
		assert.Equal(t, i+1, m.Rank)
	}
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids, "ties on score fall back to id order")
}

func TestCompute_ZeroWorkingDays(t *testing.T) {
	records := []punch.PunchRecord{
		record("7", "2024-01-13T09:00:00Z"),
		record("8", "2024-01-14T09:00:00Z"),
	}
	policy := metrics.DefaultPolicy()
	policy.CountWeekends = true

	for _, m := range Compute(records, window("2024-01-13", "2024-01-14"), policy, false) {
		assert.Equal(t, 0.0, m.AttendanceRate)
		assert.Equal(t, 0, m.AbsentDays)
	}
}

func TestCompute_DerivedQuantitiesAreNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	base := day("2024-01-01")

	for i := 0; i < 200; i++ {
		var records []punch.PunchRecord
		for j := 0; j < rng.IntN(40); j++ {
			ts := base.Add(time.Duration(rng.IntN(21*24*60)) * time.Minute)
			records = append(records, punch.PunchRecord{
				EmployeeDeviceID: string(rune('a' + rng.IntN(5))),
				Timestamp:        ts,
			})
		}
		start := base.AddDate(0, 0, rng.IntN(14))
		w := Window{Start: start, End: start.AddDate(0, 0, rng.IntN(10))}

		policy := metrics.DefaultPolicy()
		policy.CountWeekends = rng.IntN(2) == 0

		for _, m := range Compute(records, w, policy, true) {
			assert.GreaterOrEqual(t, m.AbsentDays, 0)
			assert.GreaterOrEqual(t, m.TotalWorkMinutes, 0)
			assert.GreaterOrEqual(t, m.PunctualityScore, 0.0)
			assert.GreaterOrEqual(t, m.ConsistencyScore, 0.0)
			assert.LessOrEqual(t, m.AttendanceRate, 100.0)
			for _, d := range m.Days {
				assert.GreaterOrEqual(t, d.WorkMinutes, 0)
				assert.GreaterOrEqual(t, d.LateMinutes, 0)
			}
		}
	}
}

func TestWindow_WorkingDays(t *testing.T) {
	assert.Equal(t, 5, window("2024-01-08", "2024-01-14").WorkingDays())
	assert.Equal(t, 0, window("2024-01-13", "2024-01-14").WorkingDays())
	assert.Equal(t, 23, window("2024-01-01", "2024-01-31").WorkingDays())
	assert.Equal(t, 0, window("2024-01-10", "2024-01-09").WorkingDays())
}
