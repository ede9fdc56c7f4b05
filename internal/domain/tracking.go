package domain

import "time"

// TrackingPhase represents where a tracker is in its lifecycle.
type TrackingPhase string

const (
	TrackingPhaseIdle               TrackingPhase = "IDLE"
	TrackingPhaseAwaitingPermission TrackingPhase = "AWAITING_PERMISSION"
	TrackingPhaseTracking           TrackingPhase = "TRACKING"
)

// TrackingState is the observable progress of a trip.
type TrackingState struct {
	Phase                TrackingPhase
	CurrentLocation      *LocationPoint
	RemainingDistanceKm  float64
	RemainingDurationMin int
	EstimatedArrival     time.Time // zero when unknown
	IsTracking           bool
	HasPermission        bool
	ErrorMessage         string // empty when there is no error
	ProgressPercent      float64
}

// InitialTrackingState returns the state of a tracker that has never run.
func InitialTrackingState() TrackingState {
	return TrackingState{Phase: TrackingPhaseIdle}
}
