package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/device"
	"github.com/cmlabs-hris/attendance-sync/internal/domain/metrics"
	"github.com/cmlabs-hris/attendance-sync/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Device errors. Each gets its own code so operators can tell an
	// unreachable terminal from one that answered garbage.
	case errors.Is(err, device.ErrDeviceUnreachable):
		Failure(w, http.StatusInternalServerError, "DEVICE_UNREACHABLE", "Device is unreachable", err)
	case errors.Is(err, device.ErrDeviceTimeout):
		Failure(w, http.StatusInternalServerError, "DEVICE_TIMEOUT", "Device did not respond in time", err)
	case errors.Is(err, device.ErrDeviceProtocol):
		Failure(w, http.StatusInternalServerError, "DEVICE_PROTOCOL_ERROR", "Device returned an unreadable response", err)

	// Settings errors
	case errors.Is(err, settings.ErrConfiguration):
		Failure(w, http.StatusInternalServerError, "CONFIGURATION_ERROR", "Attendance policy is misconfigured", err)
	case errors.Is(err, settings.ErrSettingsNotFound):
		NotFound(w, "Attendance settings not found")
	case errors.Is(err, settings.ErrInvalidCutoff):
		BadRequest(w, "Invalid cutoff time", nil)

	// Metrics errors
	case errors.Is(err, metrics.ErrInvalidWindow):
		BadRequest(w, err.Error(), nil)

	// Auth errors
	case errors.Is(err, jwt.ErrMissingCompany):
		Forbidden(w, "Token is not bound to a company")

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
