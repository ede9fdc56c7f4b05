package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"ridetrack/internal/domain"
	"ridetrack/internal/maps"
	"ridetrack/internal/repository"
)

// dashboardLimit caps how many rides the dashboard lists.
const dashboardLimit = 50

// RouteProvider computes the route between two points.
type RouteProvider interface {
	GetRoute(ctx context.Context, pickup, dropoff domain.RoutePoint) (*domain.Route, error)
}

// TrackingEnder tears down live tracking for a ride.
type TrackingEnder interface {
	End(ctx context.Context, rideID string) error
}

// BookingService handles quotes, bookings and the ride dashboard.
type BookingService struct {
	rideRepo            repository.RideRepository
	routes              RouteProvider
	fares               *FareService
	receipts            *ReceiptService
	notificationService *NotificationService
	tracking            TrackingEnder
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	rideRepo repository.RideRepository,
	routes RouteProvider,
	fares *FareService,
	receipts *ReceiptService,
	notificationService *NotificationService,
	tracking TrackingEnder,
) *BookingService {
	return &BookingService{
		rideRepo:            rideRepo,
		routes:              routes,
		fares:               fares,
		receipts:            receipts,
		notificationService: notificationService,
		tracking:            tracking,
	}
}

// QuoteRequest contains the parameters for quoting a trip.
type QuoteRequest struct {
	Pickup         domain.RoutePoint
	Dropoff        domain.RoutePoint
	WaitingMinutes float64
	Language       domain.Language
}

// Quote is a priced route.
type Quote struct {
	Route      domain.Route
	Fare       domain.FareEstimate
	RateLabel  string
	Disclaimer string
	Language   domain.Language
}

// Quote computes the route and fare for a pickup/dropoff pair.
func (s *BookingService) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if !validCoordinates(req.Pickup) {
		return nil, ErrInvalidPickupLocation
	}
	if !validCoordinates(req.Dropoff) {
		return nil, ErrInvalidDropoffLocation
	}
	if math.IsNaN(req.WaitingMinutes) || req.WaitingMinutes < 0 {
		return nil, ErrInvalidWaitingTime
	}

	route, err := s.route(ctx, req.Pickup, req.Dropoff)
	if err != nil {
		return nil, err
	}

	fare := s.fares.Calculate(route.DistanceKm, req.WaitingMinutes)
	return &Quote{
		Route:      *route,
		Fare:       fare,
		RateLabel:  s.receipts.RateLabel(fare, req.Language),
		Disclaimer: Disclaimer(req.Language),
		Language:   req.Language,
	}, nil
}

// BookRideRequest contains the parameters for booking a ride.
type BookRideRequest struct {
	RiderID        string
	PickupAddress  string
	DropoffAddress string
	Pickup         domain.RoutePoint
	Dropoff        domain.RoutePoint
	WaitingMinutes float64
}

// BookRide prices the route and stores a ride in BOOKED state.
func (s *BookingService) BookRide(ctx context.Context, req BookRideRequest) (*domain.Ride, error) {
	if req.RiderID == "" {
		return nil, ErrInvalidRiderID
	}
	if !validCoordinates(req.Pickup) {
		return nil, ErrInvalidPickupLocation
	}
	if !validCoordinates(req.Dropoff) {
		return nil, ErrInvalidDropoffLocation
	}
	if math.IsNaN(req.WaitingMinutes) || req.WaitingMinutes < 0 {
		return nil, ErrInvalidWaitingTime
	}

	route, err := s.route(ctx, req.Pickup, req.Dropoff)
	if err != nil {
		return nil, err
	}

	ride := &domain.Ride{
		ID:             uuid.New().String(),
		RiderID:        req.RiderID,
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		Pickup:         req.Pickup,
		Dropoff:        req.Dropoff,
		DistanceKm:     route.DistanceKm,
		DurationMin:    route.DurationMin,
		RoutePoints:    route.Points,
		Fare:           s.fares.Calculate(route.DistanceKm, req.WaitingMinutes),
		Status:         domain.RideStatusBooked,
		CreatedAt:      time.Now(),
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, err
	}

	log.Printf("[BOOKING] Ride %s booked for rider %s: %.1f km, $%.2f (%s)",
		ride.ID, ride.RiderID, ride.DistanceKm, ride.Fare.Total, ride.Fare.RateType)

	if s.notificationService != nil {
		_ = s.notificationService.NotifyRideBooked(ctx, ride)
	}

	return ride, nil
}

// GetRide retrieves a ride by ID.
func (s *BookingService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	return s.rideRepo.GetByID(ctx, rideID)
}

// ListRides returns a rider's dashboard: active rides first, then past
// rides, each group newest first.
func (s *BookingService) ListRides(ctx context.Context, riderID string) ([]*domain.Ride, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}

	rides, err := s.rideRepo.ListByRiderID(ctx, riderID, dashboardLimit)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(rides, func(i, j int) bool {
		ai, aj := rides[i].Status.IsActive(), rides[j].Status.IsActive()
		if ai != aj {
			return ai
		}
		return rides[i].CreatedAt.After(rides[j].CreatedAt)
	})

	return rides, nil
}

// CancelRide cancels a booked or in-progress ride.
func (s *BookingService) CancelRide(ctx context.Context, rideID, reason string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	switch ride.Status {
	case domain.RideStatusCancelled:
		return nil, ErrRideAlreadyCancelled
	case domain.RideStatusCompleted:
		return nil, ErrRideCannotBeCancelled
	case domain.RideStatusInProgress:
		s.endTracking(ctx, ride.ID)
	}

	ride.Status = domain.RideStatusCancelled
	ride.CancelledAt = time.Now()
	ride.CancelReason = reason

	if err := s.rideRepo.Update(ctx, ride); err != nil {
		return nil, err
	}

	log.Printf("[BOOKING] Ride %s cancelled: %s", ride.ID, reason)

	if s.notificationService != nil {
		_ = s.notificationService.NotifyRideCancelled(ctx, ride)
	}

	return ride, nil
}

// CompleteRide ends an in-progress ride, stops its tracking and issues a
// receipt in the requested language.
func (s *BookingService) CompleteRide(ctx context.Context, rideID string, lang domain.Language) (*domain.Ride, *domain.Receipt, error) {
	if rideID == "" {
		return nil, nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, nil, err
	}

	if ride.Status != domain.RideStatusInProgress {
		return nil, nil, ErrRideNotInProgress
	}

	s.endTracking(ctx, ride.ID)

	ride.Status = domain.RideStatusCompleted
	ride.CompletedAt = time.Now()

	if err := s.rideRepo.Update(ctx, ride); err != nil {
		return nil, nil, err
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyTripCompleted(ctx, ride)
	}

	receipt, err := s.receipts.GenerateReceipt(ctx, ride, lang)
	if err != nil {
		return nil, nil, err
	}

	return ride, receipt, nil
}

// MarkInProgress moves a booked ride to IN_PROGRESS. It is a no-op for a
// ride already in progress.
func (s *BookingService) MarkInProgress(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if err := markInProgress(ctx, s.rideRepo, ride); err != nil {
		return nil, err
	}
	return ride, nil
}

func markInProgress(ctx context.Context, rideRepo repository.RideRepository, ride *domain.Ride) error {
	switch ride.Status {
	case domain.RideStatusInProgress:
		return nil
	case domain.RideStatusBooked:
	default:
		return ErrRideNotActive
	}

	ride.Status = domain.RideStatusInProgress
	ride.StartedAt = time.Now()
	return rideRepo.Update(ctx, ride)
}

func (s *BookingService) endTracking(ctx context.Context, rideID string) {
	if s.tracking == nil {
		return
	}
	if err := s.tracking.End(ctx, rideID); err != nil {
		log.Printf("[BOOKING] Failed to end tracking for ride %s: %v", rideID, err)
	}
}

func (s *BookingService) route(ctx context.Context, pickup, dropoff domain.RoutePoint) (*domain.Route, error) {
	route, err := s.routes.GetRoute(ctx, pickup, dropoff)
	if err != nil {
		if errors.Is(err, maps.ErrNoRoute) {
			return nil, ErrRouteUnavailable
		}
		return nil, fmt.Errorf("get route: %w", err)
	}
	return route, nil
}

func validCoordinates(p domain.RoutePoint) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
