package metrics

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/metrics"
	"github.com/cmlabs-hris/attendance-sync/internal/domain/punch"
)

// Window is an inclusive range of calendar dates, each at midnight UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// Days returns every date of the window in order.
func (w Window) Days() []time.Time {
	var days []time.Time
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// WorkingDays counts Monday to Friday dates in the window.
func (w Window) WorkingDays() int {
	n := 0
	for _, d := range w.Days() {
		if !isWeekend(d) {
			n++
		}
	}
	return n
}

func (w Window) contains(d time.Time) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

func isWeekend(d time.Time) bool {
	return d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
}

// dayGroup holds the punches of one employee on one calendar date, sorted.
type dayGroup struct {
	date    time.Time
	punches []punch.PunchRecord
}

func (g dayGroup) checkIn() time.Time  { return g.punches[0].Timestamp }
func (g dayGroup) checkOut() time.Time { return g.punches[len(g.punches)-1].Timestamp }

func groupBy[T any, K comparable](items []T, key func(T) K) map[K][]T {
	groups := make(map[K][]T)
	for _, item := range items {
		k := key(item)
		groups[k] = append(groups[k], item)
	}
	return groups
}

// Compute derives ranked metrics for every employee with at least one punch
// in the window. Output depends only on its inputs.
func Compute(records []punch.PunchRecord, window Window, policy metrics.Policy, withDays bool) []metrics.EmployeeMetric {
	byEmployee := groupBy(records, func(p punch.PunchRecord) string { return p.EmployeeDeviceID })

	ids := make([]string, 0, len(byEmployee))
	for id := range byEmployee {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	result := make([]metrics.EmployeeMetric, 0, len(ids))
	for _, id := range ids {
		m := ComputeEmployee(id, byEmployee[id], window, policy, withDays)
		if m.PresentDays == 0 && m.WeekendDays == 0 {
			continue
		}
		result = append(result, m)
	}

	Rank(result)
	return result
}

// Rank orders by score descending, ties by employee id ascending, and
// assigns 1-based ranks.
func Rank(ms []metrics.EmployeeMetric) {
	slices.SortStableFunc(ms, func(a, b metrics.EmployeeMetric) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.EmployeeDeviceID, b.EmployeeDeviceID)
	})
	for i := range ms {
		ms[i].Rank = i + 1
	}
}

// ComputeEmployee derives the metric of one employee. records may contain
// other employees and dates outside the window; they are ignored.
func ComputeEmployee(id string, records []punch.PunchRecord, window Window, policy metrics.Policy, withDays bool) metrics.EmployeeMetric {
	loc := policy.Location
	if loc == nil {
		loc = time.UTC
	}

	var mine []punch.PunchRecord
	for _, p := range records {
		if p.EmployeeDeviceID == id {
			mine = append(mine, p)
		}
	}

	byDate := groupBy(mine, func(p punch.PunchRecord) time.Time {
		return punch.CalendarDate(p.Timestamp, loc)
	})

	var days []dayGroup
	for date, ps := range byDate {
		if !window.contains(date) {
			continue
		}
		slices.SortFunc(ps, func(a, b punch.PunchRecord) int { return a.Timestamp.Compare(b.Timestamp) })
		days = append(days, dayGroup{date: date, punches: ps})
	}
	slices.SortFunc(days, func(a, b dayGroup) int { return a.date.Compare(b.date) })

	m := metrics.EmployeeMetric{
		EmployeeDeviceID: id,
		WorkingDays:      window.WorkingDays(),
		Badges:           []string{},
	}

	for _, day := range days {
		weekend := isWeekend(day.date)
		counted := !weekend || policy.CountWeekends

		checkIn := day.checkIn().In(loc)
		checkOut := day.checkOut().In(loc)
		work := max(0, int(math.Floor(checkOut.Sub(checkIn).Minutes())))

		late := 0
		if counted {
			past := int(math.Floor(checkIn.Sub(policy.Cutoff.On(checkIn, loc)).Minutes()))
			late = max(0, past-policy.GraceMinutes)
		}

		if weekend {
			m.WeekendDays++
		}
		if counted {
			m.PresentDays++
			m.TotalWorkMinutes += work
			m.TotalLateMinutes += late
			if late > 0 {
				m.LateDays++
			}
		}

		if withDays {
			m.Days = append(m.Days, metrics.DailyAttendance{
				Date:        day.date.Format("2006-01-02"),
				CheckIn:     checkIn.Format(time.RFC3339),
				CheckOut:    checkOut.Format(time.RFC3339),
				PunchCount:  len(day.punches),
				WorkMinutes: work,
				LateMinutes: late,
				Late:        late > 0,
				Weekend:     weekend,
			})
		}
	}

	m.AbsentDays = max(0, m.WorkingDays-m.PresentDays)
	if m.PresentDays > 0 {
		m.AverageWorkMinutes = round2(float64(m.TotalWorkMinutes) / float64(m.PresentDays))
	}
	if m.WorkingDays > 0 {
		m.AttendanceRate = round2(min(100, float64(m.PresentDays)/float64(m.WorkingDays)*100))
	}
	m.PunctualityScore = round2(max(0, 100-float64(m.TotalLateMinutes)/2))
	m.ConsistencyScore = round2(max(0, 100-10*float64(m.AbsentDays)))
	m.Score = score(m, policy.Weights)
	m.Tier = policy.Tiers.Tier(m.AttendanceRate)
	m.Badges = badges(m)

	return m
}

// score blends the components. Weights are normalized so the score stays on
// a 0-100 scale whatever their sum.
func score(m metrics.EmployeeMetric, w metrics.Weights) float64 {
	total := w.Attendance + w.Punctuality + w.Consistency
	if total <= 0 {
		return 0
	}
	blended := w.Attendance*m.AttendanceRate +
		w.Punctuality*m.PunctualityScore +
		w.Consistency*m.ConsistencyScore
	return round2(blended / total)
}

func badges(m metrics.EmployeeMetric) []string {
	out := []string{}
	if m.WorkingDays > 0 && m.PresentDays > 0 && m.AbsentDays == 0 {
		out = append(out, metrics.BadgePerfectAttendance)
	}
	if m.PresentDays > 0 && m.LateDays == 0 {
		out = append(out, metrics.BadgeAlwaysOnTime)
	}
	if m.AverageWorkMinutes >= 480 {
		out = append(out, metrics.BadgeHardWorker)
	}
	if m.LateDays >= 3 {
		out = append(out, metrics.BadgeFrequentLate)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
