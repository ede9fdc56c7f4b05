package domain

import "time"

// RideStatus represents the current status of a booked ride.
type RideStatus string

const (
	RideStatusBooked     RideStatus = "BOOKED"
	RideStatusInProgress RideStatus = "IN_PROGRESS"
	RideStatusCompleted  RideStatus = "COMPLETED"
	RideStatusCancelled  RideStatus = "CANCELLED"
)

// IsActive reports whether the ride still belongs on the dashboard's active list.
func (s RideStatus) IsActive() bool {
	return s == RideStatusBooked || s == RideStatusInProgress
}

// Ride represents a booking made by a rider.
type Ride struct {
	ID             string
	RiderID        string
	PickupAddress  string
	DropoffAddress string
	Pickup         RoutePoint
	Dropoff        RoutePoint
	DistanceKm     float64
	DurationMin    float64
	RoutePoints    []RoutePoint
	Fare           FareEstimate
	Status         RideStatus
	CreatedAt      time.Time
	StartedAt      time.Time
	CompletedAt    time.Time
	CancelledAt    time.Time
	CancelReason   string
}

// Receipt summarizes a completed ride.
type Receipt struct {
	ID          string
	RideID      string
	RiderID     string
	Fare        FareEstimate
	DistanceKm  float64
	Duration    time.Duration
	Language    Language
	Disclaimer  string
	StartedAt   time.Time
	CompletedAt time.Time
	CreatedAt   time.Time
}
