package device

import (
	"context"
	"time"
)

// RawPunch is an undecoded attendance log entry as reported by a terminal.
// Fields stay close to the device shape so the original record can be
// preserved verbatim next to the normalized punch.
type RawPunch struct {
	UserSN     int       `json:"user_sn"`
	DeviceUser string    `json:"device_user_id"`
	RecordTime time.Time `json:"record_time"`
	State      int       `json:"state"`
	VerifyMode int       `json:"verify_mode"`
	WorkCode   int       `json:"work_code"`
}

// Info describes the terminal behind a session.
type Info struct {
	SerialNumber    string    `json:"serial_number"`
	FirmwareVersion string    `json:"firmware_version"`
	DeviceTime      time.Time `json:"device_time"`
	RecordCount     int       `json:"record_count"`
}

// Session is an exclusive handle to one terminal. It is never shared between
// sync calls.
type Session interface {
	Address() string
}

// Client is the narrow contract the sync engine consumes. Vendor SDKs are
// adapted behind it; callers never probe for vendor specific methods.
type Client interface {
	// Connect opens a session. Fails with ErrDeviceUnreachable or ErrDeviceTimeout.
	Connect(ctx context.Context, address string, port int) (Session, error)

	// Info reads the device clock and identity.
	Info(ctx context.Context, session Session) (Info, error)

	// FetchPunches returns the attendance log, optionally bounded by since/until
	// (inclusive). Fails with ErrDeviceProtocol or ErrDeviceTimeout.
	FetchPunches(ctx context.Context, session Session, since, until *time.Time) ([]RawPunch, error)

	// Disconnect is best effort. Callers log failures and never propagate them.
	Disconnect(ctx context.Context, session Session) error
}
