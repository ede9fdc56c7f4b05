package service

import (
	"context"
	"math"

	"ridetrack/internal/domain"
	"ridetrack/internal/redis"
	"ridetrack/internal/repository"
)

// LocationService accepts what the rider's device reports: its answer to the
// permission prompt, position samples and location failures.
type LocationService struct {
	rideRepo repository.RideRepository
	feed     redis.LocationFeedInterface
}

// NewLocationService creates a new LocationService.
func NewLocationService(rideRepo repository.RideRepository, feed redis.LocationFeedInterface) *LocationService {
	return &LocationService{rideRepo: rideRepo, feed: feed}
}

// SetConsent records whether the rider allows location access for a ride.
func (s *LocationService) SetConsent(ctx context.Context, rideID string, granted bool) error {
	if err := s.requireActiveRide(ctx, rideID); err != nil {
		return err
	}
	return s.feed.SetConsent(ctx, rideID, granted)
}

// ReportSample relays a device position to the ride's tracker.
func (s *LocationService) ReportSample(ctx context.Context, rideID string, p domain.LocationPoint) error {
	if rideID == "" {
		return ErrInvalidRideID
	}
	if !validCoordinates(domain.RoutePoint{Lat: p.Lat, Lng: p.Lng}) {
		return ErrInvalidLocation
	}
	if p.Speed != nil && (math.IsNaN(*p.Speed) || math.IsInf(*p.Speed, 0)) {
		p.Speed = nil
	}
	if err := s.requireActiveRide(ctx, rideID); err != nil {
		return err
	}
	return s.feed.PublishSample(ctx, rideID, p)
}

// ReportError relays a device location failure to the ride's tracker.
func (s *LocationService) ReportError(ctx context.Context, rideID, code string) error {
	if err := s.requireActiveRide(ctx, rideID); err != nil {
		return err
	}
	return s.feed.PublishError(ctx, rideID, code)
}

func (s *LocationService) requireActiveRide(ctx context.Context, rideID string) error {
	if rideID == "" {
		return ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if !ride.Status.IsActive() {
		return ErrRideNotActive
	}
	return nil
}
