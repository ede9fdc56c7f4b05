package service

import "errors"

var (
	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidPickupLocation is returned when pickup coordinates are invalid.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidDropoffLocation is returned when dropoff coordinates are invalid.
	ErrInvalidDropoffLocation = errors.New("invalid dropoff location")

	// ErrInvalidDistance is returned when a distance is negative or not a number.
	ErrInvalidDistance = errors.New("invalid distance")

	// ErrInvalidWaitingTime is returned when a waiting time is negative or not a number.
	ErrInvalidWaitingTime = errors.New("invalid waiting time")

	// ErrInvalidLocation is returned when a location sample has invalid coordinates.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrRouteUnavailable is returned when no route could be computed between two points.
	ErrRouteUnavailable = errors.New("route unavailable")

	// ErrRideAlreadyCancelled is returned when trying to cancel an already cancelled ride.
	ErrRideAlreadyCancelled = errors.New("ride already cancelled")

	// ErrRideCannotBeCancelled is returned when ride is in a state that cannot be cancelled.
	ErrRideCannotBeCancelled = errors.New("ride cannot be cancelled in current state")

	// ErrRideNotInProgress is returned when completing a ride that has not started.
	ErrRideNotInProgress = errors.New("ride not in progress")

	// ErrRideNotActive is returned when tracking a ride that is completed or cancelled.
	ErrRideNotActive = errors.New("ride not active")

	// ErrTrackingHeldElsewhere is returned when another instance is tracking the ride.
	ErrTrackingHeldElsewhere = errors.New("ride is tracked by another instance")
)
