package punch

import "errors"

// Per-record validation errors. They exclude a record from a batch and are
// never returned from a sync.
var (
	ErrMissingEmployeeDeviceID = errors.New("punch is missing the device employee id")
	ErrMissingTimestamp        = errors.New("punch is missing a timestamp")
	ErrMissingDeviceAddress    = errors.New("punch is missing the device address")
	ErrMissingCompanyID        = errors.New("punch is missing the company id")
)

// Sync errors
var (
	ErrCompanyRequired = errors.New("company id is required")
)
