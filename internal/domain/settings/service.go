package settings

import "context"

// SettingsService manages the attendance policy of a tenant.
type SettingsService interface {
	GetCurrent(ctx context.Context, companyID string) (SettingsResponse, error)
	Update(ctx context.Context, req UpdateSettingsRequest) (SettingsResponse, error)
	History(ctx context.Context, companyID string, limit int) ([]SettingsResponse, error)
}
