package metrics

import "context"

// MetricsService derives attendance figures from the persisted punch log.
// It only reads punches and settings.
type MetricsService interface {
	Leaderboard(ctx context.Context, req LeaderboardRequest) (LeaderboardResponse, error)
	EmployeeReport(ctx context.Context, req EmployeeReportRequest) (EmployeeReportResponse, error)
}
