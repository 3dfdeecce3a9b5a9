package punch

import (
	"context"
	"time"
)

// BulkInsertResult counts the outcome of one bulk write.
type BulkInsertResult struct {
	Inserted int
	Skipped  int
	Total    int
}

// RangeFilter selects punches by inclusive calendar date range. An empty
// DeviceAddress selects every device of the company.
type RangeFilter struct {
	DeviceAddress string
	CompanyID     string
	StartDate     time.Time
	EndDate       time.Time
}

// PunchStore is the durable punch log. The dedupe key is the only concurrency
// mechanism: writes are conditional insert-if-absent per record, so
// overlapping syncs of the same device are safe without application locks.
type PunchStore interface {
	// BulkInsert writes records in order. A record whose key already exists is
	// a no-op counted as skipped.
	BulkInsert(ctx context.Context, records []PunchRecord) (BulkInsertResult, error)

	// QueryRange returns punches ordered by timestamp ascending.
	QueryRange(ctx context.Context, filter RangeFilter) ([]PunchRecord, error)

	// LastSyncInfo returns nil when the device has no persisted punches.
	LastSyncInfo(ctx context.Context, deviceAddress string, companyID string) (*LastSync, error)

	// Stats summarizes the punches of one device.
	Stats(ctx context.Context, deviceAddress string, companyID string) (Stats, error)
}
