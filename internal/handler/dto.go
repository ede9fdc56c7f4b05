package handler

import (
	"time"

	"ridetrack/internal/domain"
)

// PointJSON is a coordinate pair on the wire.
type PointJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p PointJSON) toDomain() domain.RoutePoint {
	return domain.RoutePoint{Lat: p.Lat, Lng: p.Lng}
}

func newPointJSON(p domain.RoutePoint) PointJSON {
	return PointJSON{Lat: p.Lat, Lng: p.Lng}
}

func newPointsJSON(points []domain.RoutePoint) []PointJSON {
	out := make([]PointJSON, len(points))
	for i, p := range points {
		out[i] = newPointJSON(p)
	}
	return out
}

// FareResponse is an itemized fare.
type FareResponse struct {
	BaseFare       float64 `json:"base_fare"`
	DistanceKm     float64 `json:"distance_km"`
	DistanceRate   float64 `json:"distance_rate"`
	DistanceFare   float64 `json:"distance_fare"`
	WaitingMinutes float64 `json:"waiting_minutes"`
	WaitingRate    float64 `json:"waiting_rate"`
	WaitingFare    float64 `json:"waiting_fare"`
	Total          float64 `json:"total"`
	RateType       string  `json:"rate_type"`
}

func newFareResponse(f domain.FareEstimate) FareResponse {
	return FareResponse{
		BaseFare:       f.BaseFare,
		DistanceKm:     f.DistanceKm,
		DistanceRate:   f.DistanceRate,
		DistanceFare:   f.DistanceFare,
		WaitingMinutes: f.WaitingMinutes,
		WaitingRate:    f.WaitingRate,
		WaitingFare:    f.WaitingFare,
		Total:          f.Total,
		RateType:       string(f.RateType),
	}
}

// LocationJSON is a device location sample on the wire.
type LocationJSON struct {
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Accuracy    float64  `json:"accuracy"`
	TimestampMs int64    `json:"timestamp"`
	Speed       *float64 `json:"speed,omitempty"` // m/s
}

// TrackingStateResponse is the observable progress of a trip.
type TrackingStateResponse struct {
	Phase                string        `json:"phase"`
	CurrentLocation      *LocationJSON `json:"current_location"`
	RemainingDistanceKm  float64       `json:"remaining_distance_km"`
	RemainingDurationMin int           `json:"remaining_duration_min"`
	EstimatedArrival     *string       `json:"estimated_arrival"`
	IsTracking           bool          `json:"is_tracking"`
	HasPermission        bool          `json:"has_permission"`
	ErrorMessage         *string       `json:"error_message"`
	ProgressPercent      float64       `json:"progress_percent"`
}

func newTrackingStateResponse(s domain.TrackingState) TrackingStateResponse {
	resp := TrackingStateResponse{
		Phase:                string(s.Phase),
		RemainingDistanceKm:  s.RemainingDistanceKm,
		RemainingDurationMin: s.RemainingDurationMin,
		IsTracking:           s.IsTracking,
		HasPermission:        s.HasPermission,
		ProgressPercent:      s.ProgressPercent,
	}
	if s.CurrentLocation != nil {
		resp.CurrentLocation = &LocationJSON{
			Lat:         s.CurrentLocation.Lat,
			Lng:         s.CurrentLocation.Lng,
			Accuracy:    s.CurrentLocation.Accuracy,
			TimestampMs: s.CurrentLocation.TimestampMs,
			Speed:       s.CurrentLocation.Speed,
		}
	}
	if !s.EstimatedArrival.IsZero() {
		eta := s.EstimatedArrival.Format(time.RFC3339)
		resp.EstimatedArrival = &eta
	}
	if s.ErrorMessage != "" {
		msg := s.ErrorMessage
		resp.ErrorMessage = &msg
	}
	return resp
}

// RideResponse is a ride as shown on the dashboard.
type RideResponse struct {
	ID             string       `json:"id"`
	RiderID        string       `json:"rider_id"`
	PickupAddress  string       `json:"pickup_address"`
	DropoffAddress string       `json:"dropoff_address"`
	Pickup         PointJSON    `json:"pickup"`
	Dropoff        PointJSON    `json:"dropoff"`
	DistanceKm     float64      `json:"distance_km"`
	DurationMin    float64      `json:"duration_min"`
	Route          []PointJSON  `json:"route,omitempty"`
	Fare           FareResponse `json:"fare"`
	Status         string       `json:"status"`
	Active         bool         `json:"active"`
	CreatedAt      string       `json:"created_at"`
	StartedAt      string       `json:"started_at,omitempty"`
	CompletedAt    string       `json:"completed_at,omitempty"`
	CancelledAt    string       `json:"cancelled_at,omitempty"`
	CancelReason   string       `json:"cancel_reason,omitempty"`
}

func newRideResponse(r *domain.Ride, withRoute bool) RideResponse {
	resp := RideResponse{
		ID:             r.ID,
		RiderID:        r.RiderID,
		PickupAddress:  r.PickupAddress,
		DropoffAddress: r.DropoffAddress,
		Pickup:         newPointJSON(r.Pickup),
		Dropoff:        newPointJSON(r.Dropoff),
		DistanceKm:     r.DistanceKm,
		DurationMin:    r.DurationMin,
		Fare:           newFareResponse(r.Fare),
		Status:         string(r.Status),
		Active:         r.Status.IsActive(),
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		StartedAt:      formatTime(r.StartedAt),
		CompletedAt:    formatTime(r.CompletedAt),
		CancelledAt:    formatTime(r.CancelledAt),
		CancelReason:   r.CancelReason,
	}
	if withRoute {
		resp.Route = newPointsJSON(r.RoutePoints)
	}
	return resp
}

// ReceiptResponse is a completed ride's receipt.
type ReceiptResponse struct {
	ID              string       `json:"id"`
	RideID          string       `json:"ride_id"`
	RiderID         string       `json:"rider_id"`
	Fare            FareResponse `json:"fare"`
	DistanceKm      float64      `json:"distance_km"`
	DurationMinutes float64      `json:"duration_minutes"`
	Language        string       `json:"language"`
	Disclaimer      string       `json:"disclaimer"`
	StartedAt       string       `json:"started_at,omitempty"`
	CompletedAt     string       `json:"completed_at,omitempty"`
	Text            string       `json:"text"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
