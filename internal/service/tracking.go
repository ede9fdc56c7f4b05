package service

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ridetrack/internal/config"
	"ridetrack/internal/domain"
	"ridetrack/internal/redis"
	"ridetrack/internal/repository"
	"ridetrack/internal/tracking"
)

// sideEffectTimeout bounds the cache and notification calls made on every
// tracking state change.
const sideEffectTimeout = 2 * time.Second

// StateBroadcaster fans tracking state out to live subscribers of a ride.
type StateBroadcaster interface {
	BroadcastState(rideID string, state domain.TrackingState)
}

// trackingSession is the live tracker of one ride in this process.
type trackingSession struct {
	tracker    *tracking.Tracker
	riderID    string
	arrived    atomic.Bool
	wasRunning atomic.Bool

	// lockRenewedAt is the UnixNano time the tracking lock was last extended.
	lockRenewedAt atomic.Int64
}

// TrackingService owns the trip progress trackers of this process, one per
// ride, and coordinates with other instances through a Redis lock.
type TrackingService struct {
	rideRepo            repository.RideRepository
	feed                redis.LocationFeedInterface
	lockStore           redis.LockStoreInterface
	cacheStore          redis.CacheStoreInterface
	broadcaster         StateBroadcaster
	notificationService *NotificationService
	cfg                 config.TrackingConfig
	owner               string
	now                 func() time.Time

	mu       sync.Mutex
	sessions map[string]*trackingSession
}

// NewTrackingService creates a new TrackingService.
func NewTrackingService(
	rideRepo repository.RideRepository,
	feed redis.LocationFeedInterface,
	lockStore redis.LockStoreInterface,
	cacheStore redis.CacheStoreInterface,
	broadcaster StateBroadcaster,
	notificationService *NotificationService,
	cfg config.TrackingConfig,
) *TrackingService {
	return &TrackingService{
		rideRepo:            rideRepo,
		feed:                feed,
		lockStore:           lockStore,
		cacheStore:          cacheStore,
		broadcaster:         broadcaster,
		notificationService: notificationService,
		cfg:                 cfg,
		owner:               uuid.New().String(),
		now:                 time.Now,
		sessions:            make(map[string]*trackingSession),
	}
}

// Start begins tracking a ride. A refused permission is not an error: it is
// reported in the returned state.
func (s *TrackingService) Start(ctx context.Context, rideID string) (domain.TrackingState, error) {
	if rideID == "" {
		return domain.TrackingState{}, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return domain.TrackingState{}, err
	}
	if !ride.Status.IsActive() {
		return domain.TrackingState{}, ErrRideNotActive
	}

	acquired, err := s.lockStore.AcquireTrackingLock(ctx, rideID, s.owner, s.cfg.LockTTL)
	if err != nil {
		return domain.TrackingState{}, err
	}
	if !acquired {
		return domain.TrackingState{}, ErrTrackingHeldElsewhere
	}

	sess, created := s.session(ride)
	sess.lockRenewedAt.Store(s.now().UnixNano())
	if !sess.tracker.Start(ctx) {
		state := sess.tracker.State()
		log.Printf("[TRACKING] Ride %s not tracking: %s", rideID, state.ErrorMessage)
		if created {
			s.discard(rideID, sess)
		}
		s.releaseLock(ctx, rideID)
		return state, nil
	}

	wasBooked := ride.Status == domain.RideStatusBooked
	if err := markInProgress(ctx, s.rideRepo, ride); err != nil {
		sess.tracker.Stop()
		if created {
			s.discard(rideID, sess)
		}
		s.releaseLock(ctx, rideID)
		return domain.TrackingState{}, err
	}
	if wasBooked && s.notificationService != nil {
		_ = s.notificationService.NotifyTripStarted(ctx, ride)
	}

	log.Printf("[TRACKING] Ride %s tracking started", rideID)
	return sess.tracker.State(), nil
}

// Stop pauses tracking of a ride. Stopping a ride that is not tracked is a
// no-op.
func (s *TrackingService) Stop(ctx context.Context, rideID string) (domain.TrackingState, error) {
	if rideID == "" {
		return domain.TrackingState{}, ErrInvalidRideID
	}

	sess := s.lookup(rideID)
	if sess == nil {
		return s.State(ctx, rideID)
	}

	sess.tracker.Stop()
	s.releaseLock(ctx, rideID)

	return sess.tracker.State(), nil
}

// Reset stops tracking of a ride and clears its progress.
func (s *TrackingService) Reset(ctx context.Context, rideID string) (domain.TrackingState, error) {
	if rideID == "" {
		return domain.TrackingState{}, ErrInvalidRideID
	}

	sess := s.lookup(rideID)
	if sess == nil {
		if _, err := s.rideRepo.GetByID(ctx, rideID); err != nil {
			return domain.TrackingState{}, err
		}
		if err := s.cacheStore.InvalidateTrackingState(ctx, rideID); err != nil {
			log.Printf("[TRACKING] Failed to invalidate state of ride %s: %v", rideID, err)
		}
		return domain.InitialTrackingState(), nil
	}

	sess.tracker.Reset()
	sess.arrived.Store(false)
	s.releaseLock(ctx, rideID)

	return sess.tracker.State(), nil
}

// State returns the live state of a ride tracked here, else its last cached
// state, else the initial state.
func (s *TrackingService) State(ctx context.Context, rideID string) (domain.TrackingState, error) {
	if rideID == "" {
		return domain.TrackingState{}, ErrInvalidRideID
	}

	if sess := s.lookup(rideID); sess != nil {
		return sess.tracker.State(), nil
	}

	cached, err := s.cacheStore.GetTrackingState(ctx, rideID)
	if err != nil {
		log.Printf("[TRACKING] Failed to read cached state of ride %s: %v", rideID, err)
	}
	if cached != nil {
		return *cached, nil
	}

	if _, err := s.rideRepo.GetByID(ctx, rideID); err != nil {
		return domain.TrackingState{}, err
	}
	return domain.InitialTrackingState(), nil
}

// End tears down tracking of a finished ride.
func (s *TrackingService) End(ctx context.Context, rideID string) error {
	s.mu.Lock()
	sess := s.sessions[rideID]
	delete(s.sessions, rideID)
	s.mu.Unlock()

	if sess != nil {
		sess.tracker.Close()
		s.releaseLock(ctx, rideID)
	}

	return s.feed.ClearConsent(ctx, rideID)
}

// Shutdown stops every tracker of this process.
func (s *TrackingService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*trackingSession)
	s.mu.Unlock()

	for rideID, sess := range sessions {
		sess.tracker.Close()
		s.releaseLock(ctx, rideID)
	}

	log.Printf("[TRACKING] Stopped %d trackers", len(sessions))
}

// ActiveSessions returns how many rides have a tracker in this process.
func (s *TrackingService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *TrackingService) lookup(rideID string) *trackingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[rideID]
}

// session returns the tracker of a ride, creating it from the stored route
// on first use. The progress baseline is the booked route distance.
func (s *TrackingService) session(ride *domain.Ride) (*trackingSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[ride.ID]; ok {
		return sess, false
	}

	sess := &trackingSession{riderID: ride.RiderID}
	dest := ride.Dropoff
	sess.tracker = tracking.NewTracker(s.feed.Geolocator(ride.ID), tracking.Options{
		TotalDistanceKm:   ride.DistanceKm,
		Destination:       &dest,
		Route:             ride.RoutePoints,
		FallbackSpeedKmh:  s.cfg.FallbackSpeedKmh,
		PermissionTimeout: s.cfg.PermissionTimeout,
		Now:               s.now,
		OnChange:          s.onChange(ride.ID, sess),
	})
	s.sessions[ride.ID] = sess

	return sess, true
}

// discard drops a session that never started tracking.
func (s *TrackingService) discard(rideID string, sess *trackingSession) {
	s.mu.Lock()
	if s.sessions[rideID] == sess {
		delete(s.sessions, rideID)
	}
	s.mu.Unlock()

	sess.tracker.Close()
}

func (s *TrackingService) onChange(rideID string, sess *trackingSession) func(domain.TrackingState) {
	return func(state domain.TrackingState) {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if err := s.cacheStore.SetTrackingState(ctx, rideID, state, s.cfg.SnapshotTTL); err != nil {
			log.Printf("[TRACKING] Failed to cache state of ride %s: %v", rideID, err)
		}

		if s.broadcaster != nil {
			s.broadcaster.BroadcastState(rideID, state)
		}

		if state.IsTracking {
			s.renewLock(ctx, rideID, sess)
		}

		wasRunning := sess.wasRunning.Swap(state.IsTracking)
		if s.notificationService == nil {
			return
		}

		if state.IsTracking && !state.EstimatedArrival.IsZero() &&
			state.RemainingDistanceKm <= s.cfg.ArrivalThresholdKm &&
			sess.arrived.CompareAndSwap(false, true) {
			_ = s.notificationService.NotifyArrivingSoon(ctx, rideID, sess.riderID, state)
		}

		if wasRunning && !state.IsTracking && state.ErrorMessage != "" {
			_ = s.notificationService.NotifyTrackingInterrupted(ctx, rideID, sess.riderID, state.ErrorMessage)
		}
	}
}

// renewLock extends the tracking lock once half of its TTL has elapsed.
func (s *TrackingService) renewLock(ctx context.Context, rideID string, sess *trackingSession) {
	now := s.now()
	last := sess.lockRenewedAt.Load()
	if now.Sub(time.Unix(0, last)) < s.cfg.LockTTL/2 {
		return
	}
	if !sess.lockRenewedAt.CompareAndSwap(last, now.UnixNano()) {
		return
	}

	held, err := s.lockStore.AcquireTrackingLock(ctx, rideID, s.owner, s.cfg.LockTTL)
	switch {
	case err != nil:
		log.Printf("[TRACKING] Failed to renew lock of ride %s: %v", rideID, err)
	case !held:
		log.Printf("[TRACKING] Lock of ride %s is now held by another instance", rideID)
	}
}

func (s *TrackingService) releaseLock(ctx context.Context, rideID string) {
	if err := s.lockStore.ReleaseTrackingLock(ctx, rideID, s.owner); err != nil {
		log.Printf("[TRACKING] Failed to release lock of ride %s: %v", rideID, err)
	}
}
