package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ridetrack/internal/domain"
	"ridetrack/internal/geo"
	"ridetrack/internal/maps"
	"ridetrack/internal/redis"
	"ridetrack/internal/repository"
	"ridetrack/internal/service"
	"ridetrack/internal/tracking"
)

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *ride
	m.rides[ride.ID] = &copy
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rides[ride.ID]; exists {
		return ErrMockDBConstraint
	}
	copy := *ride
	m.rides[ride.ID] = &copy
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *ride
	return &copy, nil
}

func (m *MockRideRepository) ListByRiderID(ctx context.Context, riderID string, limit int) ([]*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Ride, 0)
	for _, r := range m.rides {
		if r.RiderID == riderID {
			copy := *r
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockRideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[ride.ID]; !ok {
		return repository.ErrNotFound
	}
	copy := *ride
	m.rides[ride.ID] = &copy
	return nil
}

// GetRide returns the stored ride for test assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil
	}
	copy := *ride
	return &copy
}

// ──────────────────────────────────────────────
// MOCK ROUTE PROVIDER
// ──────────────────────────────────────────────

// MockRouteProvider returns a fixed route, or the straight line between the
// requested points when Route is nil.
type MockRouteProvider struct {
	Route *domain.Route
	Err   error

	CallCount int32
}

func (m *MockRouteProvider) GetRoute(ctx context.Context, pickup, dropoff domain.RoutePoint) (*domain.Route, error) {
	atomic.AddInt32(&m.CallCount, 1)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Route != nil {
		route := *m.Route
		route.Points = append([]domain.RoutePoint(nil), m.Route.Points...)
		return &route, nil
	}
	return maps.NewDirectRouteService(35).GetRoute(ctx, pickup, dropoff)
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]string // ride ID -> owner

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]string),
	}
}

func (m *MockLockStore) AcquireTrackingLock(ctx context.Context, rideID, owner string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if holder, held := m.locks[rideID]; held && holder != owner {
		return false, nil
	}
	m.locks[rideID] = owner
	return true, nil
}

func (m *MockLockStore) ReleaseTrackingLock(ctx context.Context, rideID, owner string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[rideID] == owner {
		delete(m.locks, rideID)
	}
	return nil
}

// HoldLock makes another instance the holder of a ride's lock.
func (m *MockLockStore) HoldLock(rideID, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[rideID] = owner
}

// IsLocked checks if a ride's tracking lock is held (for test assertions).
func (m *MockLockStore) IsLocked(rideID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.locks[rideID]
	return held
}

// ──────────────────────────────────────────────
// MOCK CACHE STORE
// ──────────────────────────────────────────────

// MockCacheStore is a mock implementation of CacheStore.
type MockCacheStore struct {
	mu     sync.Mutex
	states map[string]domain.TrackingState

	SetCallCount        int32
	InvalidateCallCount int32

	GetError error
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		states: make(map[string]domain.TrackingState),
	}
}

func (m *MockCacheStore) GetTrackingState(ctx context.Context, rideID string) (*domain.TrackingState, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[rideID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (m *MockCacheStore) SetTrackingState(ctx context.Context, rideID string, state domain.TrackingState, ttl time.Duration) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[rideID] = state
	return nil
}

func (m *MockCacheStore) InvalidateTrackingState(ctx context.Context, rideID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, rideID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK LOCATION FEED
// ──────────────────────────────────────────────

// MockLocationFeed is an in-memory LocationFeed. Published samples and
// errors are delivered to the ride's open subscriptions.
type MockLocationFeed struct {
	mu      sync.Mutex
	consent map[string]bool
	subs    map[string][]*MockSubscription

	SampleCallCount int32
	ErrorCallCount  int32
	ClearCallCount  int32
}

// NewMockLocationFeed creates a new mock location feed.
func NewMockLocationFeed() *MockLocationFeed {
	return &MockLocationFeed{
		consent: make(map[string]bool),
		subs:    make(map[string][]*MockSubscription),
	}
}

func (m *MockLocationFeed) SetConsent(ctx context.Context, rideID string, granted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consent[rideID] = granted
	return nil
}

func (m *MockLocationFeed) ClearConsent(ctx context.Context, rideID string) error {
	atomic.AddInt32(&m.ClearCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.consent, rideID)
	return nil
}

func (m *MockLocationFeed) PublishSample(ctx context.Context, rideID string, p domain.LocationPoint) error {
	atomic.AddInt32(&m.SampleCallCount, 1)
	for _, sub := range m.openSubs(rideID) {
		sub.push(p)
	}
	return nil
}

func (m *MockLocationFeed) PublishError(ctx context.Context, rideID, code string) error {
	atomic.AddInt32(&m.ErrorCallCount, 1)
	for _, sub := range m.openSubs(rideID) {
		sub.fail(redis.LocationErrorFromCode(code))
	}
	return nil
}

// Geolocator answers permission from the stored consent; a ride without an
// answer is refused.
func (m *MockLocationFeed) Geolocator(rideID string) tracking.Geolocator {
	return &mockGeolocator{feed: m, rideID: rideID}
}

// OpenSubscriptions returns how many subscriptions of a ride are live.
func (m *MockLocationFeed) OpenSubscriptions(rideID string) int {
	return len(m.openSubs(rideID))
}

func (m *MockLocationFeed) openSubs(rideID string) []*MockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	var open []*MockSubscription
	for _, sub := range m.subs[rideID] {
		if !sub.closed.Load() {
			open = append(open, sub)
		}
	}
	return open
}

type mockGeolocator struct {
	feed   *MockLocationFeed
	rideID string
}

func (g *mockGeolocator) RequestPermission(ctx context.Context) (bool, error) {
	g.feed.mu.Lock()
	defer g.feed.mu.Unlock()
	return g.feed.consent[g.rideID], nil
}

func (g *mockGeolocator) Subscribe(ctx context.Context) (tracking.Subscription, error) {
	sub := &MockSubscription{
		updates: make(chan domain.LocationPoint, 16),
		errs:    make(chan error, 1),
	}
	g.feed.mu.Lock()
	g.feed.subs[g.rideID] = append(g.feed.subs[g.rideID], sub)
	g.feed.mu.Unlock()
	return sub, nil
}

// MockSubscription is a subscription of MockLocationFeed.
type MockSubscription struct {
	updates chan domain.LocationPoint
	errs    chan error
	closed  atomic.Bool
}

func (s *MockSubscription) Updates() <-chan domain.LocationPoint { return s.updates }
func (s *MockSubscription) Errors() <-chan error                 { return s.errs }
func (s *MockSubscription) Unsubscribe()                         { s.closed.Store(true) }

func (s *MockSubscription) push(p domain.LocationPoint) {
	select {
	case s.updates <- p:
	default:
	}
}

func (s *MockSubscription) fail(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

// ──────────────────────────────────────────────
// MOCK BROADCASTER / SENDER
// ──────────────────────────────────────────────

// MockBroadcaster records broadcast tracking states.
type MockBroadcaster struct {
	mu     sync.Mutex
	states map[string][]domain.TrackingState
}

// NewMockBroadcaster creates a new mock broadcaster.
func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{states: make(map[string][]domain.TrackingState)}
}

func (m *MockBroadcaster) BroadcastState(rideID string, state domain.TrackingState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[rideID] = append(m.states[rideID], state)
}

// States returns the states broadcast for a ride.
func (m *MockBroadcaster) States(rideID string) []domain.TrackingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TrackingState(nil), m.states[rideID]...)
}

// MockSender records sent notifications.
type MockSender struct {
	mu   sync.Mutex
	sent []service.Notification
}

func (m *MockSender) Send(ctx context.Context, n service.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

// Count returns how many notifications of a type were sent.
func (m *MockSender) Count(t service.NotificationType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.Type == t {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────
// MOCK TRACKING ENDER
// ──────────────────────────────────────────────

// MockTrackingEnder records rides whose tracking was ended.
type MockTrackingEnder struct {
	mu    sync.Mutex
	ended []string
}

func (m *MockTrackingEnder) End(ctx context.Context, rideID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = append(m.ended, rideID)
	return nil
}

// Ended returns the rides whose tracking was ended.
func (m *MockTrackingEnder) Ended() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ended...)
}

// ──────────────────────────────────────────────
// MOCK RESPONSE STORE
// ──────────────────────────────────────────────

// MockResponseStore is an in-memory idempotency store.
type MockResponseStore struct {
	mu        sync.Mutex
	responses map[string]redis.StoredResponse
}

// NewMockResponseStore creates a new mock response store.
func NewMockResponseStore() *MockResponseStore {
	return &MockResponseStore{responses: make(map[string]redis.StoredResponse)}
}

func (m *MockResponseStore) GetResponse(ctx context.Context, key string) (*redis.StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.responses[key]
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

func (m *MockResponseStore) SaveResponse(ctx context.Context, key string, resp redis.StoredResponse, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.responses[key]; !exists {
		m.responses[key] = resp
	}
	return nil
}

// ──────────────────────────────────────────────
// FIXTURES
// ──────────────────────────────────────────────

var (
	montrealPickup  = domain.RoutePoint{Lat: 45.5017, Lng: -73.5673}
	montrealDropoff = domain.RoutePoint{Lat: 45.5200, Lng: -73.5550}
)

// testRoute is a short route ending at montrealDropoff.
func testRoute() domain.Route {
	points := []domain.RoutePoint{
		montrealPickup,
		{Lat: 45.5080, Lng: -73.5630},
		{Lat: 45.5140, Lng: -73.5590},
		montrealDropoff,
	}
	return domain.Route{
		DistanceKm:  geo.RouteLengthKm(points),
		DurationMin: 6,
		Points:      points,
	}
}

// bookedRide returns a ride in BOOKED state on testRoute.
func bookedRide(id, riderID string, createdAt time.Time) *domain.Ride {
	route := testRoute()
	return &domain.Ride{
		ID:          id,
		RiderID:     riderID,
		Pickup:      montrealPickup,
		Dropoff:     montrealDropoff,
		DistanceKm:  route.DistanceKm,
		DurationMin: route.DurationMin,
		RoutePoints: route.Points,
		Fare:        domain.FareEstimate{Total: 12.34, RateType: domain.RateTypeDay},
		Status:      domain.RideStatusBooked,
		CreatedAt:   createdAt,
	}
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockRedis        = errors.New("mock: redis unavailable")
)

// Ensure mocks implement interfaces.
var (
	_ repository.RideRepository    = (*MockRideRepository)(nil)
	_ service.RouteProvider        = (*MockRouteProvider)(nil)
	_ service.StateBroadcaster     = (*MockBroadcaster)(nil)
	_ service.Sender               = (*MockSender)(nil)
	_ service.TrackingEnder        = (*MockTrackingEnder)(nil)
	_ redis.LockStoreInterface     = (*MockLockStore)(nil)
	_ redis.CacheStoreInterface    = (*MockCacheStore)(nil)
	_ redis.LocationFeedInterface  = (*MockLocationFeed)(nil)
	_ redis.ResponseStoreInterface = (*MockResponseStore)(nil)
)
