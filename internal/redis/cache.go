package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"ridetrack/internal/domain"
)

// CacheStore handles tracking snapshot caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

const trackingCachePrefix = "cache:tracking:"

// CachedLocation is the cached form of a location sample.
type CachedLocation struct {
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Accuracy    float64  `json:"accuracy"`
	TimestampMs int64    `json:"timestamp"`
	Speed       *float64 `json:"speed,omitempty"`
}

// CachedTrackingState is the cached form of a ride's tracking state.
type CachedTrackingState struct {
	Phase                string          `json:"phase"`
	CurrentLocation      *CachedLocation `json:"current_location,omitempty"`
	RemainingDistanceKm  float64         `json:"remaining_distance_km"`
	RemainingDurationMin int             `json:"remaining_duration_min"`
	EstimatedArrival     *time.Time      `json:"estimated_arrival,omitempty"`
	IsTracking           bool            `json:"is_tracking"`
	HasPermission        bool            `json:"has_permission"`
	ErrorMessage         string          `json:"error_message,omitempty"`
	ProgressPercent      float64         `json:"progress_percent"`
}

// GetTrackingState retrieves the last tracking state of a ride from cache.
// Returns nil on a cache miss.
func (s *CacheStore) GetTrackingState(ctx context.Context, rideID string) (*domain.TrackingState, error) {
	data, err := s.client.Get(ctx, trackingCachePrefix+rideID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var cached CachedTrackingState
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	state := cached.toDomain()
	return &state, nil
}

// SetTrackingState stores a ride's tracking state in cache.
func (s *CacheStore) SetTrackingState(ctx context.Context, rideID string, state domain.TrackingState, ttl time.Duration) error {
	data, err := json.Marshal(newCachedTrackingState(state))
	if err != nil {
		return err
	}
	return s.client.Set(ctx, trackingCachePrefix+rideID, data, ttl).Err()
}

// InvalidateTrackingState removes a ride's tracking state from cache.
func (s *CacheStore) InvalidateTrackingState(ctx context.Context, rideID string) error {
	return s.client.Del(ctx, trackingCachePrefix+rideID).Err()
}

func newCachedTrackingState(s domain.TrackingState) CachedTrackingState {
	cached := CachedTrackingState{
		Phase:                string(s.Phase),
		RemainingDistanceKm:  s.RemainingDistanceKm,
		RemainingDurationMin: s.RemainingDurationMin,
		IsTracking:           s.IsTracking,
		HasPermission:        s.HasPermission,
		ErrorMessage:         s.ErrorMessage,
		ProgressPercent:      s.ProgressPercent,
	}
	if s.CurrentLocation != nil {
		cached.CurrentLocation = &CachedLocation{
			Lat:         s.CurrentLocation.Lat,
			Lng:         s.CurrentLocation.Lng,
			Accuracy:    s.CurrentLocation.Accuracy,
			TimestampMs: s.CurrentLocation.TimestampMs,
			Speed:       s.CurrentLocation.Speed,
		}
	}
	if !s.EstimatedArrival.IsZero() {
		eta := s.EstimatedArrival
		cached.EstimatedArrival = &eta
	}
	return cached
}

func (c CachedTrackingState) toDomain() domain.TrackingState {
	state := domain.TrackingState{
		Phase:                domain.TrackingPhase(c.Phase),
		RemainingDistanceKm:  c.RemainingDistanceKm,
		RemainingDurationMin: c.RemainingDurationMin,
		IsTracking:           c.IsTracking,
		HasPermission:        c.HasPermission,
		ErrorMessage:         c.ErrorMessage,
		ProgressPercent:      c.ProgressPercent,
	}
	if c.CurrentLocation != nil {
		state.CurrentLocation = &domain.LocationPoint{
			Lat:         c.CurrentLocation.Lat,
			Lng:         c.CurrentLocation.Lng,
			Accuracy:    c.CurrentLocation.Accuracy,
			TimestampMs: c.CurrentLocation.TimestampMs,
			Speed:       c.CurrentLocation.Speed,
		}
	}
	if c.EstimatedArrival != nil {
		state.EstimatedArrival = *c.EstimatedArrival
	}
	return state
}
