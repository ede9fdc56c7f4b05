// Package tracking follows a trip in progress: it turns a stream of device
// location samples into remaining distance, a dynamic ETA and a progress
// percentage against the planned route.
package tracking

import (
	"context"
	"log"
	"sync"
	"time"

	"ridetrack/internal/domain"
	"ridetrack/internal/geo"
)

const (
	// DefaultFallbackSpeedKmh is the average speed assumed when a sample
	// carries no usable speed.
	DefaultFallbackSpeedKmh = 35.0

	// DefaultPermissionTimeout bounds how long a permission request may wait.
	DefaultPermissionTimeout = 10 * time.Second
)

// Options configures a Tracker.
type Options struct {
	TotalDistanceKm float64
	Destination     *domain.RoutePoint

	// Route is the planned path. Progress is computed only when both
	// Destination and Route are set; an empty non-nil Route counts as set
	// and leaves nothing remaining.
	Route []domain.RoutePoint

	FallbackSpeedKmh  float64
	PermissionTimeout time.Duration
	Now               func() time.Time

	// OnChange receives a copy of the state after every transition, in
	// order. It must not call back into the Tracker.
	OnChange func(domain.TrackingState)
}

// Tracker is the progress state machine for a single trip. All methods are
// safe for concurrent use. Failures never surface as errors; they are
// recorded on the state instead.
type Tracker struct {
	geolocator Geolocator
	opts       Options

	mu                sync.Mutex
	notifyMu          sync.Mutex
	state             domain.TrackingState
	totalDistanceKm   float64
	initialDistanceKm float64
	baselineSet       bool
	sub               Subscription
	done              chan struct{}
	generation        uint64
	closed            bool
}

// NewTracker creates a new idle Tracker.
func NewTracker(geolocator Geolocator, opts Options) *Tracker {
	if opts.FallbackSpeedKmh <= 0 {
		opts.FallbackSpeedKmh = DefaultFallbackSpeedKmh
	}
	if opts.PermissionTimeout <= 0 {
		opts.PermissionTimeout = DefaultPermissionTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Route != nil {
		opts.Route = append(make([]domain.RoutePoint, 0, len(opts.Route)), opts.Route...)
	}
	if opts.Destination != nil {
		dest := *opts.Destination
		opts.Destination = &dest
	}

	return &Tracker{
		geolocator:      geolocator,
		opts:            opts,
		state:           domain.InitialTrackingState(),
		totalDistanceKm: opts.TotalDistanceKm,
	}
}

// State returns a copy of the current tracking state.
func (t *Tracker) State() domain.TrackingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyState(t.state)
}

// Phase returns the current lifecycle phase.
func (t *Tracker) Phase() domain.TrackingPhase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Phase
}

// BaselineKm returns the distance progress is measured against.
func (t *Tracker) BaselineKm() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.baselineSet {
		return t.totalDistanceKm
	}
	return t.initialDistanceKm
}

// SetTotalDistance updates the total distance input. The progress baseline
// already captured is kept until Reset.
func (t *Tracker) SetTotalDistance(km float64) {
	t.mu.Lock()
	t.totalDistanceKm = km
	t.mu.Unlock()
}

// RequestPermission asks the geolocator for access and records the outcome.
func (t *Tracker) RequestPermission(ctx context.Context) bool {
	granted, _ := t.requestPermission(ctx)
	return granted
}

func (t *Tracker) requestPermission(ctx context.Context) (bool, uint64) {
	t.mu.Lock()
	gen := t.generation
	if !t.state.IsTracking {
		t.state.Phase = domain.TrackingPhaseAwaitingPermission
	}
	t.unlockAndNotify()

	granted, err := t.askPermission(ctx)
	if err != nil {
		log.Printf("[TRACKING] Permission request failed: %v", err)
		granted = false
	}

	t.mu.Lock()
	if t.generation != gen {
		// Stopped or reset while waiting.
		t.mu.Unlock()
		return granted, gen
	}
	t.state.HasPermission = granted
	switch {
	case err != nil:
		t.state.ErrorMessage = MessagePermissionRequestFailed
	case !granted:
		t.state.ErrorMessage = MessagePermissionDenied
	default:
		t.state.ErrorMessage = ""
	}
	if !t.state.IsTracking {
		t.state.Phase = domain.TrackingPhaseIdle
	}
	t.unlockAndNotify()

	return granted, gen
}

type permissionResult struct {
	granted bool
	err     error
}

// askPermission waits at most PermissionTimeout for the geolocator, even one
// that ignores its context.
func (t *Tracker) askPermission(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.opts.PermissionTimeout)
	defer cancel()

	result := make(chan permissionResult, 1)
	go func() {
		granted, err := t.geolocator.RequestPermission(ctx)
		result <- permissionResult{granted: granted, err: err}
	}()

	select {
	case r := <-result:
		return r.granted, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Start requests permission and, once granted, subscribes to location
// samples. It reports whether tracking is running when it returns. Calling
// Start while already tracking is a no-op.
func (t *Tracker) Start(ctx context.Context) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	if t.state.IsTracking {
		t.mu.Unlock()
		return true
	}
	t.mu.Unlock()

	granted, gen := t.requestPermission(ctx)
	if !granted {
		return false
	}

	sub, err := t.geolocator.Subscribe(ctx)

	t.mu.Lock()
	if t.state.IsTracking {
		t.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
		return true
	}
	if t.closed || t.generation != gen {
		t.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
		return false
	}
	if err != nil {
		log.Printf("[TRACKING] Subscribe failed: %v", err)
		t.state.ErrorMessage = ErrorMessage(err)
		t.state.IsTracking = false
		t.state.Phase = domain.TrackingPhaseIdle
		t.unlockAndNotify()
		return false
	}

	if !t.baselineSet {
		t.initialDistanceKm = t.totalDistanceKm
		t.baselineSet = true
	}
	t.generation++
	t.sub = sub
	t.done = make(chan struct{})
	t.state.IsTracking = true
	t.state.ErrorMessage = ""
	t.state.Phase = domain.TrackingPhaseTracking
	go t.run(sub, t.done, t.generation)
	t.unlockAndNotify()

	return true
}

// Stop cancels the subscription. It is safe to call when not tracking.
func (t *Tracker) Stop() {
	t.mu.Lock()
	sub := t.detachLocked()
	changed := t.state.IsTracking || t.state.Phase != domain.TrackingPhaseIdle
	t.state.IsTracking = false
	t.state.Phase = domain.TrackingPhaseIdle
	if changed {
		t.unlockAndNotify()
	} else {
		t.mu.Unlock()
	}

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Reset stops tracking, re-captures the progress baseline from the current
// total distance and restores the initial state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	sub := t.detachLocked()
	t.initialDistanceKm = t.totalDistanceKm
	t.baselineSet = true
	t.state = domain.InitialTrackingState()
	t.unlockAndNotify()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Close stops tracking for good. Later calls to Start return false.
func (t *Tracker) Close() {
	t.Stop()
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

func (t *Tracker) run(sub Subscription, done <-chan struct{}, gen uint64) {
	updates := sub.Updates()
	errs := sub.Errors()

	for updates != nil || errs != nil {
		select {
		case <-done:
			return
		case p, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			t.handleSample(gen, p)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			t.handleError(gen, err)
			return
		}
	}
}

func (t *Tracker) handleSample(gen uint64, p domain.LocationPoint) {
	t.mu.Lock()
	if t.generation != gen || !t.state.IsTracking {
		t.mu.Unlock()
		return
	}

	loc := copyLocation(p)
	t.state.CurrentLocation = &loc

	if t.opts.Destination != nil && t.opts.Route != nil {
		remaining := geo.RemainingDistanceKm(p.Lat, p.Lng, t.opts.Route)

		var speedKmh float64
		if p.Speed != nil {
			speedKmh = geo.MetersPerSecondToKmh(*p.Speed)
		}
		eta := geo.DynamicETAMinutes(remaining, speedKmh, t.opts.FallbackSpeedKmh)

		t.state.RemainingDistanceKm = remaining
		t.state.RemainingDurationMin = eta
		t.state.EstimatedArrival = t.opts.Now().Add(time.Duration(eta) * time.Minute)
		t.state.ProgressPercent = progressPercent(t.initialDistanceKm, remaining)
	} else {
		t.state.EstimatedArrival = time.Time{}
		t.state.ProgressPercent = 0
	}

	t.unlockAndNotify()
}

func (t *Tracker) handleError(gen uint64, err error) {
	t.mu.Lock()
	if t.generation != gen {
		t.mu.Unlock()
		return
	}

	log.Printf("[TRACKING] Location source error: %v", err)
	sub := t.detachLocked()
	t.state.ErrorMessage = ErrorMessage(err)
	t.state.IsTracking = false
	t.state.Phase = domain.TrackingPhaseIdle
	t.unlockAndNotify()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// detachLocked ends the current session and hands back its subscription for
// the caller to release once mu is dropped.
func (t *Tracker) detachLocked() Subscription {
	t.generation++
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
	sub := t.sub
	t.sub = nil
	return sub
}

// unlockAndNotify releases mu and delivers the state to OnChange. Holding
// notifyMu across the hand-off keeps deliveries in mutation order.
func (t *Tracker) unlockAndNotify() {
	if t.opts.OnChange == nil {
		t.mu.Unlock()
		return
	}

	snapshot := copyState(t.state)
	t.notifyMu.Lock()
	t.mu.Unlock()
	defer t.notifyMu.Unlock()

	t.opts.OnChange(snapshot)
}

func progressPercent(initialKm, remainingKm float64) float64 {
	if initialKm <= 0 {
		return 0
	}
	p := (initialKm - remainingKm) / initialKm * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func copyLocation(p domain.LocationPoint) domain.LocationPoint {
	if p.Speed != nil {
		speed := *p.Speed
		p.Speed = &speed
	}
	return p
}

func copyState(s domain.TrackingState) domain.TrackingState {
	if s.CurrentLocation != nil {
		loc := copyLocation(*s.CurrentLocation)
		s.CurrentLocation = &loc
	}
	return s
}
