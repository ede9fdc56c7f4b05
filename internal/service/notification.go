package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"ridetrack/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationRideBooked          NotificationType = "RIDE_BOOKED"
	NotificationTripStarted         NotificationType = "TRIP_STARTED"
	NotificationArrivingSoon        NotificationType = "ARRIVING_SOON"
	NotificationTrackingInterrupted NotificationType = "TRACKING_INTERRUPTED"
	NotificationTripCompleted       NotificationType = "TRIP_COMPLETED"
	NotificationRideCancelled       NotificationType = "RIDE_CANCELLED"
	NotificationReceiptReady        NotificationType = "RECEIPT_READY"
)

// Notification represents a notification to be sent.
type Notification struct {
	ID          string
	Type        NotificationType
	RecipientID string
	Title       string
	Message     string
	Data        map[string]interface{}
	CreatedAt   time.Time
}

// Sender delivers notifications to riders.
type Sender interface {
	Send(ctx context.Context, notification Notification) error
}

// NotificationService handles notification delivery.
type NotificationService struct {
	sender Sender
}

// NewNotificationService creates a new NotificationService. A nil sender
// logs notifications instead of delivering them.
func NewNotificationService(sender Sender) *NotificationService {
	return &NotificationService{sender: sender}
}

// NotifyRideBooked confirms a booking to the rider.
func (s *NotificationService) NotifyRideBooked(ctx context.Context, ride *domain.Ride) error {
	notification := Notification{
		Type:        NotificationRideBooked,
		RecipientID: ride.RiderID,
		Title:       "Ride Booked",
		Message:     fmt.Sprintf("Your ride to %s is booked. Estimated fare: $%.2f", ride.DropoffAddress, ride.Fare.Total),
		Data: map[string]interface{}{
			"ride_id":     ride.ID,
			"distance_km": ride.DistanceKm,
			"total_fare":  ride.Fare.Total,
			"rate_type":   ride.Fare.RateType,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyTripStarted notifies the rider that live tracking has started.
func (s *NotificationService) NotifyTripStarted(ctx context.Context, ride *domain.Ride) error {
	notification := Notification{
		Type:        NotificationTripStarted,
		RecipientID: ride.RiderID,
		Title:       "Trip Started",
		Message:     "Your trip has started. Enjoy your ride!",
		Data: map[string]interface{}{
			"ride_id":    ride.ID,
			"started_at": ride.StartedAt,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyArrivingSoon notifies the rider that the destination is close.
func (s *NotificationService) NotifyArrivingSoon(ctx context.Context, rideID, riderID string, state domain.TrackingState) error {
	notification := Notification{
		Type:        NotificationArrivingSoon,
		RecipientID: riderID,
		Title:       "Arriving",
		Message:     "You are arriving at your destination.",
		Data: map[string]interface{}{
			"ride_id":          rideID,
			"remaining_km":     state.RemainingDistanceKm,
			"progress_percent": state.ProgressPercent,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyTrackingInterrupted notifies the rider that their position is no
// longer being received.
func (s *NotificationService) NotifyTrackingInterrupted(ctx context.Context, rideID, riderID, reason string) error {
	notification := Notification{
		Type:        NotificationTrackingInterrupted,
		RecipientID: riderID,
		Title:       "Tracking Interrupted",
		Message:     reason,
		Data: map[string]interface{}{
			"ride_id": rideID,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyTripCompleted notifies the rider that the trip has ended.
func (s *NotificationService) NotifyTripCompleted(ctx context.Context, ride *domain.Ride) error {
	notification := Notification{
		Type:        NotificationTripCompleted,
		RecipientID: ride.RiderID,
		Title:       "Trip Completed",
		Message:     fmt.Sprintf("Your trip has ended. Total fare: $%.2f", ride.Fare.Total),
		Data: map[string]interface{}{
			"ride_id":      ride.ID,
			"fare":         ride.Fare.Total,
			"completed_at": ride.CompletedAt,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyRideCancelled confirms a cancellation to the rider.
func (s *NotificationService) NotifyRideCancelled(ctx context.Context, ride *domain.Ride) error {
	notification := Notification{
		Type:        NotificationRideCancelled,
		RecipientID: ride.RiderID,
		Title:       "Ride Cancelled",
		Message:     "Your ride has been cancelled",
		Data: map[string]interface{}{
			"ride_id": ride.ID,
			"reason":  ride.CancelReason,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyReceiptReady notifies the rider that the receipt is ready.
func (s *NotificationService) NotifyReceiptReady(ctx context.Context, receipt *domain.Receipt) error {
	notification := Notification{
		Type:        NotificationReceiptReady,
		RecipientID: receipt.RiderID,
		Title:       "Receipt Ready",
		Message:     fmt.Sprintf("Your receipt for $%.2f is ready", receipt.Fare.Total),
		Data: map[string]interface{}{
			"receipt_id": receipt.ID,
			"ride_id":    receipt.RideID,
			"total_fare": receipt.Fare.Total,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

func (s *NotificationService) send(ctx context.Context, notification Notification) error {
	log.Printf("[NOTIFICATION] Type=%s, Recipient=%s, Title=%s, Message=%s",
		notification.Type, notification.RecipientID, notification.Title, notification.Message)

	if s == nil || s.sender == nil {
		return nil
	}
	return s.sender.Send(ctx, notification)
}
