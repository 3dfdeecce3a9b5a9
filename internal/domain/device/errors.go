package device

import "errors"

// Device domain errors
var (
	ErrDeviceUnreachable = errors.New("device unreachable")
	ErrDeviceTimeout     = errors.New("device did not respond in time")
	ErrDeviceProtocol    = errors.New("device returned a malformed response")

	// ErrPortInUse is raised when the local ephemeral port of a session is
	// already bound. Adapters retry it internally; it never reaches callers.
	ErrPortInUse = errors.New("local session port already in use")
)

// IsDeviceError reports whether err originates at the device boundary.
func IsDeviceError(err error) bool {
	return errors.Is(err, ErrDeviceUnreachable) ||
		errors.Is(err, ErrDeviceTimeout) ||
		errors.Is(err, ErrDeviceProtocol)
}
