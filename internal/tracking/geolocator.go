package tracking

import (
	"context"

	"ridetrack/internal/domain"
)

// Geolocator is the device location capability a Tracker consumes.
type Geolocator interface {
	// RequestPermission asks the device for location access. It returns false
	// with a nil error when the user declines. The context bounds the wait.
	RequestPermission(ctx context.Context) (bool, error)

	// Subscribe opens a continuous stream of position samples. The context
	// only bounds establishing the stream; the subscription lives until
	// Unsubscribe is called.
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is a cancellable stream of location samples.
type Subscription interface {
	Updates() <-chan domain.LocationPoint
	Errors() <-chan error

	// Unsubscribe releases the stream. Calling it more than once is safe.
	Unsubscribe()
}
