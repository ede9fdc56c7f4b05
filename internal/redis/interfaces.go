package redis

import (
	"context"
	"time"

	"ridetrack/internal/domain"
	"ridetrack/internal/tracking"
)

// LocationFeedInterface defines the interface for relaying device positions.
type LocationFeedInterface interface {
	SetConsent(ctx context.Context, rideID string, granted bool) error
	ClearConsent(ctx context.Context, rideID string) error
	PublishSample(ctx context.Context, rideID string, p domain.LocationPoint) error
	PublishError(ctx context.Context, rideID, code string) error
	Geolocator(rideID string) tracking.Geolocator
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireTrackingLock(ctx context.Context, rideID, owner string, ttl time.Duration) (bool, error)
	ReleaseTrackingLock(ctx context.Context, rideID, owner string) error
}

// CacheStoreInterface defines the interface for tracking snapshot caching.
type CacheStoreInterface interface {
	GetTrackingState(ctx context.Context, rideID string) (*domain.TrackingState, error)
	SetTrackingState(ctx context.Context, rideID string, state domain.TrackingState, ttl time.Duration) error
	InvalidateTrackingState(ctx context.Context, rideID string) error
}

// ResponseStoreInterface defines the interface for idempotent response replay.
type ResponseStoreInterface interface {
	GetResponse(ctx context.Context, key string) (*StoredResponse, error)
	SaveResponse(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationFeedInterface  = (*LocationFeed)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ CacheStoreInterface    = (*CacheStore)(nil)
	_ ResponseStoreInterface = (*ResponseStore)(nil)
)
