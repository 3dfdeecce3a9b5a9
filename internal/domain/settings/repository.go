package settings

import "context"

// SettingsRepository persists versioned attendance settings.
type SettingsRepository interface {
	// GetActive returns ErrSettingsNotFound when the company has no settings yet.
	GetActive(ctx context.Context, companyID string) (AttendanceSettings, error)

	// ReplaceActive stores s as the next version and makes it the only active
	// one in a single transaction.
	ReplaceActive(ctx context.Context, s AttendanceSettings) (AttendanceSettings, error)

	// ListHistory returns versions newest first.
	ListHistory(ctx context.Context, companyID string, limit int) ([]AttendanceSettings, error)
}
