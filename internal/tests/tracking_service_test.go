package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"ridetrack/internal/config"
	"ridetrack/internal/domain"
	"ridetrack/internal/redis"
	"ridetrack/internal/repository"
	"ridetrack/internal/service"
	"ridetrack/internal/tracking"
)

// ──────────────────────────────────────────────
// SETUP
// ──────────────────────────────────────────────

type trackingFixture struct {
	rideRepo    *MockRideRepository
	feed        *MockLocationFeed
	locks       *MockLockStore
	cache       *MockCacheStore
	broadcaster *MockBroadcaster
	sender      *MockSender
	service     *service.TrackingService
}

func newTrackingFixture() *trackingFixture {
	return newTrackingFixtureWithConfig(config.TrackingConfig{
		FallbackSpeedKmh:   35,
		PermissionTimeout:  time.Second,
		LockTTL:            time.Hour,
		SnapshotTTL:        time.Hour,
		ArrivalThresholdKm: 0.05,
	})
}

func newTrackingFixtureWithConfig(cfg config.TrackingConfig) *trackingFixture {
	f := &trackingFixture{
		rideRepo:    NewMockRideRepository(),
		feed:        NewMockLocationFeed(),
		locks:       NewMockLockStore(),
		cache:       NewMockCacheStore(),
		broadcaster: NewMockBroadcaster(),
		sender:      &MockSender{},
	}
	f.service = service.NewTrackingService(
		f.rideRepo, f.feed, f.locks, f.cache, f.broadcaster,
		service.NewNotificationService(f.sender),
		cfg,
	)
	return f
}

// startTracked books ride-1 with consent granted and starts tracking it.
func (f *trackingFixture) startTracked(t *testing.T) domain.TrackingState {
	t.Helper()
	f.rideRepo.AddRide(bookedRide("ride-1", "rider-1", afternoon))
	_ = f.feed.SetConsent(context.Background(), "ride-1", true)

	state, err := f.service.Start(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if !state.IsTracking {
		t.Fatalf("expected tracking to start, got %+v", state)
	}
	return state
}

func (f *trackingFixture) waitForState(t *testing.T, cond func(domain.TrackingState) bool) domain.TrackingState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		state, err := f.service.State(context.Background(), "ride-1")
		if err != nil {
			t.Fatalf("unexpected state error: %v", err)
		}
		if cond(state) {
			return state
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for state, last: %+v", state)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ──────────────────────────────────────────────
// 1. STARTING
// ──────────────────────────────────────────────

func TestTrackingStart_MarksRideInProgress(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()

	state := f.startTracked(t)

	if !state.HasPermission || state.Phase != domain.TrackingPhaseTracking {
		t.Errorf("expected granted permission in TRACKING phase, got %+v", state)
	}
	ride := f.rideRepo.GetRide("ride-1")
	if ride.Status != domain.RideStatusInProgress || ride.StartedAt.IsZero() {
		t.Errorf("expected ride IN_PROGRESS with a start time, got %s", ride.Status)
	}
	if !f.locks.IsLocked("ride-1") {
		t.Error("expected tracking lock to be held")
	}
	if f.sender.Count(service.NotificationTripStarted) != 1 {
		t.Error("expected a trip started notification")
	}
	if f.service.ActiveSessions() != 1 {
		t.Errorf("expected 1 active session, got %d", f.service.ActiveSessions())
	}
}

func TestTrackingStart_DeniedPermissionIsReportedInState(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()
	f.rideRepo.AddRide(bookedRide("ride-1", "rider-1", afternoon))
	_ = f.feed.SetConsent(context.Background(), "ride-1", false)

	state, err := f.service.Start(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("expected denial in state, got error %v", err)
	}

	if state.IsTracking || state.HasPermission {
		t.Errorf("expected no tracking and no permission, got %+v", state)
	}
	if state.ErrorMessage != tracking.MessagePermissionDenied {
		t.Errorf("expected %q, got %q", tracking.MessagePermissionDenied, state.ErrorMessage)
	}
	if f.rideRepo.GetRide("ride-1").Status != domain.RideStatusBooked {
		t.Error("expected ride to stay BOOKED")
	}
	if f.locks.IsLocked("ride-1") {
		t.Error("expected tracking lock to be released")
	}
	if f.service.ActiveSessions() != 0 {
		t.Errorf("expected no session for a denied ride, got %d", f.service.ActiveSessions())
	}

	cached, err := f.service.State(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("unexpected state error: %v", err)
	}
	if cached.ErrorMessage != tracking.MessagePermissionDenied {
		t.Errorf("expected the denial to stay visible, got %q", cached.ErrorMessage)
	}
}

func TestTrackingStart_GrantedAfterDenial(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()
	f.rideRepo.AddRide(bookedRide("ride-1", "rider-1", afternoon))
	_ = f.feed.SetConsent(context.Background(), "ride-1", false)

	if _, err := f.service.Start(context.Background(), "ride-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = f.feed.SetConsent(context.Background(), "ride-1", true)

	state, err := f.service.Start(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.IsTracking || state.ErrorMessage != "" {
		t.Errorf("expected tracking without error, got %+v", state)
	}
	if f.service.ActiveSessions() != 1 {
		t.Errorf("expected 1 active session, got %d", f.service.ActiveSessions())
	}
}

func TestTrackingStart_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		setup   func(f *trackingFixture)
		rideID  string
		wantErr error
	}{
		{
			name:    "empty ride id",
			setup:   func(f *trackingFixture) {},
			rideID:  "",
			wantErr: service.ErrInvalidRideID,
		},
		{
			name:    "unknown ride",
			setup:   func(f *trackingFixture) {},
			rideID:  "missing",
			wantErr: repository.ErrNotFound,
		},
		{
			name: "completed ride",
			setup: func(f *trackingFixture) {
				ride := bookedRide("ride-1", "rider-1", afternoon)
				ride.Status = domain.RideStatusCompleted
				f.rideRepo.AddRide(ride)
			},
			rideID:  "ride-1",
			wantErr: service.ErrRideNotActive,
		},
		{
			name: "tracked by another instance",
			setup: func(f *trackingFixture) {
				f.rideRepo.AddRide(bookedRide("ride-1", "rider-1", afternoon))
				f.locks.HoldLock("ride-1", "other-instance")
			},
			rideID:  "ride-1",
			wantErr: service.ErrTrackingHeldElsewhere,
		},
		{
			name: "lock store unavailable",
			setup: func(f *trackingFixture) {
				f.rideRepo.AddRide(bookedRide("ride-1", "rider-1", afternoon))
				f.locks.AcquireError = ErrMockRedis
			},
			rideID:  "ride-1",
			wantErr: ErrMockRedis,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newTrackingFixture()
			tc.setup(f)

			_, err := f.service.Start(context.Background(), tc.rideID)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
			if f.service.ActiveSessions() != 0 {
				t.Error("expected no session to be created")
			}
		})
	}
}

// ──────────────────────────────────────────────
// 2. SAMPLES
// ──────────────────────────────────────────────

func TestTracking_SampleUpdatesCachesAndBroadcasts(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()
	f.startTracked(t)

	mid := testRoute().Points[1]
	_ = f.feed.PublishSample(context.Background(), "ride-1", domain.LocationPoint{Lat: mid.Lat, Lng: mid.Lng, Accuracy: 5})

	state := f.waitForState(t, func(s domain.TrackingState) bool { return s.CurrentLocation != nil })

	if state.RemainingDistanceKm <= 0 || state.RemainingDistanceKm >= testRoute().DistanceKm {
		t.Errorf("expected remaining distance within the route, got %.3f", state.RemainingDistanceKm)
	}
	if state.ProgressPercent <= 0 || state.ProgressPercent >= 100 {
		t.Errorf("expected partial progress, got %.1f", state.ProgressPercent)
	}
	if state.EstimatedArrival.IsZero() || state.RemainingDurationMin < 1 {
		t.Errorf("expected an arrival estimate, got %+v", state)
	}

	eventually(t, "latest state cached", func() bool {
		cached, _ := f.cache.GetTrackingState(context.Background(), "ride-1")
		return cached != nil && cached.CurrentLocation != nil
	})
	if len(f.broadcaster.States("ride-1")) < 2 {
		t.Error("expected start and sample states to be broadcast")
	}
}

func TestTracking_LockIsRenewedWhileTracking(t *testing.T) {
	t.Parallel()
	f := newTrackingFixtureWithConfig(config.TrackingConfig{
		FallbackSpeedKmh:   35,
		PermissionTimeout:  time.Second,
		LockTTL:            10 * time.Millisecond,
		SnapshotTTL:        time.Hour,
		ArrivalThresholdKm: 0.05,
	})
	f.startTracked(t)
	acquired := atomic.LoadInt32(&f.locks.AcquireCallCount)

	time.Sleep(20 * time.Millisecond)
	mid := testRoute().Points[1]
	_ = f.feed.PublishSample(context.Background(), "ride-1", domain.LocationPoint{Lat: mid.Lat, Lng: mid.Lng})

	eventually(t, "lock renewal", func() bool {
		return atomic.LoadInt32(&f.locks.AcquireCallCount) > acquired
	})
	if !f.locks.IsLocked("ride-1") {
		t.Error("expected the lock to stay held")
	}
}

func TestTracking_LockIsNotRenewedBeforeHalfTTL(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()
	f.startTracked(t)
	acquired := atomic.LoadInt32(&f.locks.AcquireCallCount)

	mid := testRoute().Points[1]
	_ = f.feed.PublishSample(context.Background(), "ride-1", domain.LocationPoint{Lat: mid.Lat, Lng: mid.Lng})
	f.waitForState(t, func(s domain.TrackingState) bool { return s.CurrentLocation != nil })
	eventually(t, "sample cached", func() bool {
		cached, _ := f.cache.GetTrackingState(context.Background(), "ride-1")
		return cached != nil && cached.CurrentLocation != nil
	})

	if got := atomic.LoadInt32(&f.locks.AcquireCallCount); got != acquired {
		t.Errorf("expected no renewal within the TTL, got %d acquire calls", got)
	}
}

func TestTracking_ArrivalNotifiesOnce(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()
	f.startTracked(t)

	for i := 0; i < 3; i++ {
		_ = f.feed.PublishSample(context.Background(), "ride-1", domain.LocationPoint{
			Lat: montrealDropoff.Lat, Lng: montrealDropoff.Lng, TimestampMs: int64(i),
		})
	}

	f.waitForState(t, func(s domain.TrackingState) bool {
		return s.CurrentLocation != nil && s.CurrentLocation.TimestampMs == 2
	})

	if n := f.sender.Count(service.NotificationArrivingSoon); n != 1 {
		t.Errorf("expected exactly 1 arrival notification, got %d", n)
	}
}

func TestTracking_DeviceErrorStopsAndNotifies(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()
	f.startTracked(t)

	_ = f.feed.PublishError(context.Background(), "ride-1", redis.LocationErrorPermissionDenied)

	state := f.waitForState(t, func(s domain.TrackingState) bool { return !s.IsTracking })

	if state.ErrorMessage != tracking.MessageSourceDenied {
		t.Errorf("expected %q, got %q", tracking.MessageSourceDenied, state.ErrorMessage)
	}
	eventually(t, "subscription released", func() bool {
		return f.feed.OpenSubscriptions("ride-1") == 0
	})
	eventually(t, "tracking interrupted notification", func() bool {
		return f.sender.Count(service.NotificationTrackingInterrupted) == 1
	})
}

// ──────────────────────────────────────────────
// 3. STOP / RESET / STATE
// ──────────────────────────────────────────────

func TestTrackingStop_ReleasesSubscriptionAndLock(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()
	f.startTracked(t)

	state, err := f.service.Stop(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.IsTracking {
		t.Error("expected tracking to stop")
	}
	if f.feed.OpenSubscriptions("ride-1") != 0 {
		t.Error("expected the subscription to be released")
	}
	if f.locks.IsLocked("ride-1") {
		t.Error("expected the lock to be released")
	}

	// A second stop is a no-op.
	if _, err := f.service.Stop(context.Background(), "ride-1"); err != nil {
		t.Errorf("expected second stop to succeed, got %v", err)
	}
}

func TestTrackingStop_UntrackedRideReturnsInitialState(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()
	f.rideRepo.AddRide(bookedRide("ride-1", "rider-1", afternoon))

	state, err := f.service.Stop(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != domain.InitialTrackingState() {
		t.Errorf("expected initial state, got %+v", state)
	}
}

func TestTrackingReset_RestoresInitialState(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()
	f.startTracked(t)

	mid := testRoute().Points[2]
	_ = f.feed.PublishSample(context.Background(), "ride-1", domain.LocationPoint{Lat: mid.Lat, Lng: mid.Lng})
	f.waitForState(t, func(s domain.TrackingState) bool { return s.CurrentLocation != nil })

	state, err := f.service.Reset(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != domain.InitialTrackingState() {
		t.Errorf("expected initial state, got %+v", state)
	}
	if f.locks.IsLocked("ride-1") {
		t.Error("expected the lock to be released")
	}
}

func TestTrackingState_FallsBackToCache(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()
	f.rideRepo.AddRide(bookedRide("ride-1", "rider-1", afternoon))

	snapshot := domain.TrackingState{
		Phase:               domain.TrackingPhaseIdle,
		RemainingDistanceKm: 1.5,
		ProgressPercent:     40,
		HasPermission:       true,
	}
	_ = f.cache.SetTrackingState(context.Background(), "ride-1", snapshot, time.Hour)

	state, err := f.service.State(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != snapshot {
		t.Errorf("expected cached state %+v, got %+v", snapshot, state)
	}
}

func TestTrackingState_CacheErrorFallsBackToInitial(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()
	f.rideRepo.AddRide(bookedRide("ride-1", "rider-1", afternoon))
	f.cache.GetError = ErrMockRedis

	state, err := f.service.State(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != domain.InitialTrackingState() {
		t.Errorf("expected initial state, got %+v", state)
	}
}

// ──────────────────────────────────────────────
// LOCATION INTAKE
// ──────────────────────────────────────────────

func TestLocationReports_RequireActiveRide(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		status  domain.RideStatus
		addRide bool
		wantErr error
	}{
		{name: "booked ride accepted", status: domain.RideStatusBooked, addRide: true},
		{name: "in progress ride accepted", status: domain.RideStatusInProgress, addRide: true},
		{name: "completed ride rejected", status: domain.RideStatusCompleted, addRide: true, wantErr: service.ErrRideNotActive},
		{name: "cancelled ride rejected", status: domain.RideStatusCancelled, addRide: true, wantErr: service.ErrRideNotActive},
		{name: "unknown ride rejected", wantErr: repository.ErrNotFound},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newTrackingFixture()
			if tc.addRide {
				ride := bookedRide("ride-1", "rider-1", afternoon)
				ride.Status = tc.status
				f.rideRepo.AddRide(ride)
			}
			locations := service.NewLocationService(f.rideRepo, f.feed)

			p := domain.LocationPoint{Lat: montrealPickup.Lat, Lng: montrealPickup.Lng}
			if err := locations.ReportSample(context.Background(), "ride-1", p); !errors.Is(err, tc.wantErr) {
				t.Errorf("ReportSample: expected %v, got %v", tc.wantErr, err)
			}
			if err := locations.ReportError(context.Background(), "ride-1", redis.LocationErrorTimeout); !errors.Is(err, tc.wantErr) {
				t.Errorf("ReportError: expected %v, got %v", tc.wantErr, err)
			}

			wantCalls := int32(1)
			if tc.wantErr != nil {
				wantCalls = 0
			}
			if got := atomic.LoadInt32(&f.feed.SampleCallCount); got != wantCalls {
				t.Errorf("expected %d published samples, got %d", wantCalls, got)
			}
			if got := atomic.LoadInt32(&f.feed.ErrorCallCount); got != wantCalls {
				t.Errorf("expected %d published errors, got %d", wantCalls, got)
			}
		})
	}
}

// ──────────────────────────────────────────────
// 4. TEARDOWN
// ──────────────────────────────────────────────

func TestTrackingEnd_RemovesSessionAndConsent(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()
	f.startTracked(t)

	if err := f.service.End(context.Background(), "ride-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.service.ActiveSessions() != 0 {
		t.Error("expected the session to be removed")
	}
	if f.feed.ClearCallCount != 1 {
		t.Errorf("expected consent to be cleared once, got %d", f.feed.ClearCallCount)
	}
	if f.feed.OpenSubscriptions("ride-1") != 0 || f.locks.IsLocked("ride-1") {
		t.Error("expected subscription and lock to be released")
	}
}

func TestTrackingShutdown_StopsEverySession(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()
	f.startTracked(t)

	f.rideRepo.AddRide(bookedRide("ride-2", "rider-2", afternoon))
	_ = f.feed.SetConsent(context.Background(), "ride-2", true)
	if _, err := f.service.Start(context.Background(), "ride-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.service.Shutdown(context.Background())

	if f.service.ActiveSessions() != 0 {
		t.Errorf("expected no sessions, got %d", f.service.ActiveSessions())
	}
	for _, id := range []string{"ride-1", "ride-2"} {
		if f.feed.OpenSubscriptions(id) != 0 || f.locks.IsLocked(id) {
			t.Errorf("expected %s to be released", id)
		}
	}
}

func TestCompleteRide_EndsLiveTracking(t *testing.T) {
	t.Parallel()
	f := newTrackingFixture()
	f.startTracked(t)

	notifications := service.NewNotificationService(f.sender)
	receipts := service.NewReceiptService(notifications, domain.LanguageFrench)
	fares := service.NewFareService(testFareConfig(), func() time.Time { return afternoon })
	booking := service.NewBookingService(f.rideRepo, &MockRouteProvider{}, fares, receipts, notifications, f.service)

	if _, _, err := booking.CompleteRide(context.Background(), "ride-1", domain.LanguageFrench); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.service.ActiveSessions() != 0 {
		t.Error("expected tracking to end with the ride")
	}
	if f.feed.OpenSubscriptions("ride-1") != 0 {
		t.Error("expected the subscription to be released")
	}
}
