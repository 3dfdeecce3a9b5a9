package punch

import (
	"context"
)

// SyncService orchestrates device reads and punch persistence. It is the only
// writer of punch records.
type SyncService interface {
	// FullSync fetches every punch in the optional range and stores them idempotently.
	FullSync(ctx context.Context, req FullSyncRequest) (SyncResult, error)

	// IncrementalSync resumes one day before the newest persisted punch.
	IncrementalSync(ctx context.Context, req IncrementalSyncRequest) (SyncResult, error)

	// SyncStats reads persisted state only; it never contacts the device.
	SyncStats(ctx context.Context, req SyncStatsRequest) (SyncStatsResponse, error)

	// QueryRange lists persisted punches of a device.
	QueryRange(ctx context.Context, req QueryRangeRequest) (ListPunchResponse, error)

	// DeviceInfo probes the terminal clock and identity.
	DeviceInfo(ctx context.Context, req DeviceInfoRequest) (DeviceInfoResponse, error)
}
