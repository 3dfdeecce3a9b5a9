package settings

import "errors"

// Settings domain errors
var (
	ErrSettingsNotFound = errors.New("attendance settings not found")
	ErrInvalidCutoff    = errors.New("invalid cutoff time")

	// ErrConfiguration marks a stored policy that cannot be applied.
	ErrConfiguration = errors.New("attendance policy misconfigured")
)
