package tracking

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied is reported when the device revokes location access mid-session.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrPositionUnavailable is reported when the device cannot determine its position.
	ErrPositionUnavailable = errors.New("position unavailable")

	// ErrLocationTimeout is reported when a position fix takes too long.
	ErrLocationTimeout = errors.New("location request timeout")

	// ErrGeolocationUnsupported is reported when the device has no location capability.
	ErrGeolocationUnsupported = errors.New("geolocation not available")

	// ErrLocationGeneric covers every other location failure.
	ErrLocationGeneric = errors.New("location error")
)

// Messages stored in TrackingState.ErrorMessage.
const (
	MessagePermissionDenied        = "Location permission denied"
	MessagePermissionRequestFailed = "Failed to request location permission"
	MessageSourceDenied            = "Permission denied"
	MessagePositionUnavailable     = "Position unavailable"
	MessageLocationTimeout         = "Location request timeout"
	MessageUnsupported             = "Geolocation not available"
	MessageLocationError           = "Location error"
)

// ErrorMessage turns a location source error into a human-readable message.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return MessageSourceDenied
	case errors.Is(err, ErrPositionUnavailable):
		return MessagePositionUnavailable
	case errors.Is(err, ErrLocationTimeout), errors.Is(err, context.DeadlineExceeded):
		return MessageLocationTimeout
	case errors.Is(err, ErrGeolocationUnsupported):
		return MessageUnsupported
	default:
		return MessageLocationError
	}
}
