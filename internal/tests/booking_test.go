package tests

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ridetrack/internal/config"
	"ridetrack/internal/domain"
	"ridetrack/internal/maps"
	"ridetrack/internal/repository"
	"ridetrack/internal/service"
)

// ──────────────────────────────────────────────
// SETUP
// ──────────────────────────────────────────────

var afternoon = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

func testFareConfig() config.FareConfig {
	return config.FareConfig{
		Day:            config.RateConfig{Base: 4.10, PerKm: 2.05, PerMin: 0.77},
		Night:          config.RateConfig{Base: 4.70, PerKm: 2.35, PerMin: 0.89},
		NightStartHour: 23,
		NightEndHour:   5,
		Timezone:       "UTC",
	}
}

type bookingFixture struct {
	rideRepo *MockRideRepository
	routes   *MockRouteProvider
	sender   *MockSender
	ender    *MockTrackingEnder
	service  *service.BookingService
}

func newBookingFixture() *bookingFixture {
	f := &bookingFixture{
		rideRepo: NewMockRideRepository(),
		routes:   &MockRouteProvider{},
		sender:   &MockSender{},
		ender:    &MockTrackingEnder{},
	}
	route := testRoute()
	f.routes.Route = &route

	notifications := service.NewNotificationService(f.sender)
	receipts := service.NewReceiptService(notifications, domain.LanguageFrench)
	fares := service.NewFareService(testFareConfig(), func() time.Time { return afternoon })
	f.service = service.NewBookingService(f.rideRepo, f.routes, fares, receipts, notifications, f.ender)
	return f
}

func validBookRequest() service.BookRideRequest {
	return service.BookRideRequest{
		RiderID:        "rider-1",
		PickupAddress:  "1 Rue Sainte-Catherine",
		DropoffAddress: "200 Avenue du Mont-Royal",
		Pickup:         montrealPickup,
		Dropoff:        montrealDropoff,
	}
}

// ──────────────────────────────────────────────
// 1. QUOTES
// ──────────────────────────────────────────────

func TestQuote_PricesRouteDistance(t *testing.T) {
	t.Parallel()
	f := newBookingFixture()
	f.routes.Route = &domain.Route{DistanceKm: 10, DurationMin: 18, Points: testRoute().Points}

	quote, err := f.service.Quote(context.Background(), service.QuoteRequest{
		Pickup:   montrealPickup,
		Dropoff:  montrealDropoff,
		Language: domain.LanguageEnglish,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if quote.Fare.Total != 24.60 {
		t.Errorf("expected total 24.60, got %.2f", quote.Fare.Total)
	}
	if quote.Route.DurationMin != 18 {
		t.Errorf("expected route duration 18, got %v", quote.Route.DurationMin)
	}
	if quote.Disclaimer != service.Disclaimer(domain.LanguageEnglish) {
		t.Errorf("expected English disclaimer, got %q", quote.Disclaimer)
	}
	if quote.RateLabel == "" {
		t.Error("expected a rate label")
	}
}

func TestQuote_ValidatesInput(t *testing.T) {
	t.Parallel()
	f := newBookingFixture()

	testCases := []struct {
		name    string
		req     service.QuoteRequest
		wantErr error
	}{
		{"pickup latitude too high", service.QuoteRequest{Pickup: domain.RoutePoint{Lat: 91}, Dropoff: montrealDropoff}, service.ErrInvalidPickupLocation},
		{"dropoff longitude too low", service.QuoteRequest{Pickup: montrealPickup, Dropoff: domain.RoutePoint{Lng: -181}}, service.ErrInvalidDropoffLocation},
		{"negative waiting time", service.QuoteRequest{Pickup: montrealPickup, Dropoff: montrealDropoff, WaitingMinutes: -1}, service.ErrInvalidWaitingTime},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Quote(context.Background(), tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	if calls := f.routes.CallCount; calls != 0 {
		t.Errorf("expected no route lookups for invalid input, got %d", calls)
	}
}

func TestQuote_NoRouteIsUnavailable(t *testing.T) {
	t.Parallel()
	f := newBookingFixture()
	f.routes.Err = maps.ErrNoRoute

	_, err := f.service.Quote(context.Background(), service.QuoteRequest{Pickup: montrealPickup, Dropoff: montrealDropoff})
	if !errors.Is(err, service.ErrRouteUnavailable) {
		t.Errorf("expected ErrRouteUnavailable, got %v", err)
	}
}

// ──────────────────────────────────────────────
// 2. BOOKING
// ──────────────────────────────────────────────

func TestBookRide_PersistsBookedRide(t *testing.T) {
	t.Parallel()
	f := newBookingFixture()

	ride, err := f.service.BookRide(context.Background(), validBookRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ride.ID == "" {
		t.Error("expected a ride ID")
	}
	if ride.Status != domain.RideStatusBooked {
		t.Errorf("expected BOOKED, got %s", ride.Status)
	}

	stored := f.rideRepo.GetRide(ride.ID)
	if stored == nil {
		t.Fatal("expected ride to be stored")
	}
	if len(stored.RoutePoints) != len(testRoute().Points) {
		t.Errorf("expected %d route points, got %d", len(testRoute().Points), len(stored.RoutePoints))
	}
	if stored.Fare.DistanceKm != stored.DistanceKm {
		t.Errorf("fare distance %.3f does not match route distance %.3f", stored.Fare.DistanceKm, stored.DistanceKm)
	}
	if f.sender.Count(service.NotificationRideBooked) != 1 {
		t.Error("expected a booking notification")
	}
}

func TestBookRide_ValidatesRiderID(t *testing.T) {
	t.Parallel()
	f := newBookingFixture()

	req := validBookRequest()
	req.RiderID = ""

	_, err := f.service.BookRide(context.Background(), req)
	if err != service.ErrInvalidRiderID {
		t.Errorf("expected ErrInvalidRiderID, got %v", err)
	}
	if f.rideRepo.CreateCallCount != 0 {
		t.Error("expected no ride to be created")
	}
}

func TestBookRide_RepositoryErrorIsReturned(t *testing.T) {
	t.Parallel()
	f := newBookingFixture()
	f.rideRepo.CreateError = ErrMockDBConstraint

	_, err := f.service.BookRide(context.Background(), validBookRequest())
	if !errors.Is(err, ErrMockDBConstraint) {
		t.Errorf("expected constraint error, got %v", err)
	}
	if f.sender.Count(service.NotificationRideBooked) != 0 {
		t.Error("expected no notification for a failed booking")
	}
}

// ──────────────────────────────────────────────
// 3. DASHBOARD
// ──────────────────────────────────────────────

func TestListRides_ActiveFirstThenNewest(t *testing.T) {
	t.Parallel()
	f := newBookingFixture()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	old := bookedRide("old-completed", "rider-1", base)
	old.Status = domain.RideStatusCompleted
	recent := bookedRide("recent-cancelled", "rider-1", base.Add(3*time.Hour))
	recent.Status = domain.RideStatusCancelled
	active := bookedRide("active", "rider-1", base.Add(time.Hour))
	inProgress := bookedRide("in-progress", "rider-1", base.Add(2*time.Hour))
	inProgress.Status = domain.RideStatusInProgress
	other := bookedRide("other-rider", "rider-2", base.Add(4*time.Hour))

	for _, r := range []*domain.Ride{old, recent, active, inProgress, other} {
		f.rideRepo.AddRide(r)
	}

	rides, err := f.service.ListRides(context.Background(), "rider-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"in-progress", "active", "recent-cancelled", "old-completed"}
	if len(rides) != len(want) {
		t.Fatalf("expected %d rides, got %d", len(want), len(rides))
	}
	for i, id := range want {
		if rides[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, rides[i].ID)
		}
	}
}

func TestListRides_RequiresRiderID(t *testing.T) {
	t.Parallel()
	f := newBookingFixture()

	if _, err := f.service.ListRides(context.Background(), ""); err != service.ErrInvalidRiderID {
		t.Errorf("expected ErrInvalidRiderID, got %v", err)
	}
}

func TestGetRide_NotFound(t *testing.T) {
	t.Parallel()
	f := newBookingFixture()

	_, err := f.service.GetRide(context.Background(), "missing")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────
// 4. CANCELLATION
// ──────────────────────────────────────────────

func TestCancelRide_Transitions(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		status     domain.RideStatus
		wantErr    error
		wantEnding bool
	}{
		{"booked", domain.RideStatusBooked, nil, false},
		{"in progress ends tracking", domain.RideStatusInProgress, nil, true},
		{"already cancelled", domain.RideStatusCancelled, service.ErrRideAlreadyCancelled, false},
		{"completed", domain.RideStatusCompleted, service.ErrRideCannotBeCancelled, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newBookingFixture()
			ride := bookedRide("ride-1", "rider-1", afternoon)
			ride.Status = tc.status
			f.rideRepo.AddRide(ride)

			got, err := f.service.CancelRide(context.Background(), "ride-1", "changed plans")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if tc.wantErr == nil {
				if got.Status != domain.RideStatusCancelled {
					t.Errorf("expected CANCELLED, got %s", got.Status)
				}
				if stored := f.rideRepo.GetRide("ride-1"); stored.CancelReason != "changed plans" {
					t.Errorf("expected cancel reason to be stored, got %q", stored.CancelReason)
				}
			}
			if ended := len(f.ender.Ended()) == 1; ended != tc.wantEnding {
				t.Errorf("expected tracking ended=%v, got %v", tc.wantEnding, ended)
			}
		})
	}
}

// ──────────────────────────────────────────────
// 5. COMPLETION
// ──────────────────────────────────────────────

func TestCompleteRide_IssuesReceipt(t *testing.T) {
	t.Parallel()
	f := newBookingFixture()

	ride := bookedRide("ride-1", "rider-1", afternoon)
	ride.Status = domain.RideStatusInProgress
	ride.StartedAt = time.Now().Add(-20 * time.Minute)
	ride.PickupAddress = "1 Rue Sainte-Catherine"
	f.rideRepo.AddRide(ride)

	completed, receipt, err := f.service.CompleteRide(context.Background(), "ride-1", domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if completed.Status != domain.RideStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", completed.Status)
	}
	if receipt.Fare.Total != ride.Fare.Total {
		t.Errorf("expected receipt total %.2f, got %.2f", ride.Fare.Total, receipt.Fare.Total)
	}
	if receipt.Duration < 19*time.Minute {
		t.Errorf("expected a ~20 minute duration, got %v", receipt.Duration)
	}
	if receipt.Language != domain.LanguageEnglish {
		t.Errorf("expected English receipt, got %s", receipt.Language)
	}
	if ended := f.ender.Ended(); len(ended) != 1 || ended[0] != "ride-1" {
		t.Errorf("expected tracking of ride-1 to end, got %v", ended)
	}
	if f.sender.Count(service.NotificationTripCompleted) != 1 || f.sender.Count(service.NotificationReceiptReady) != 1 {
		t.Error("expected completion and receipt notifications")
	}
}

func TestCompleteRide_RequiresInProgress(t *testing.T) {
	t.Parallel()
	f := newBookingFixture()
	f.rideRepo.AddRide(bookedRide("ride-1", "rider-1", afternoon))

	_, _, err := f.service.CompleteRide(context.Background(), "ride-1", domain.LanguageFrench)
	if err != service.ErrRideNotInProgress {
		t.Errorf("expected ErrRideNotInProgress, got %v", err)
	}
	if len(f.ender.Ended()) != 0 {
		t.Error("expected tracking to be left alone")
	}
}

func TestMarkInProgress(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		status  domain.RideStatus
		wantErr error
	}{
		{"booked starts", domain.RideStatusBooked, nil},
		{"in progress is a no-op", domain.RideStatusInProgress, nil},
		{"completed is not active", domain.RideStatusCompleted, service.ErrRideNotActive},
		{"cancelled is not active", domain.RideStatusCancelled, service.ErrRideNotActive},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newBookingFixture()
			ride := bookedRide("ride-1", "rider-1", afternoon)
			ride.Status = tc.status
			f.rideRepo.AddRide(ride)

			got, err := f.service.MarkInProgress(context.Background(), "ride-1")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if err == nil && got.Status != domain.RideStatusInProgress {
				t.Errorf("expected IN_PROGRESS, got %s", got.Status)
			}
		})
	}
}

// ──────────────────────────────────────────────
// 6. RECEIPT TEXT
// ──────────────────────────────────────────────

func TestFormatReceipt_UsesRequestedLanguage(t *testing.T) {
	t.Parallel()
	receipts := service.NewReceiptService(nil, domain.LanguageFrench)

	ride := bookedRide("ride-1", "rider-1", afternoon)
	ride.PickupAddress = "Gare Centrale"

	for _, lang := range []domain.Language{domain.LanguageFrench, domain.LanguageEnglish} {
		receipt, err := receipts.GenerateReceipt(context.Background(), ride, lang)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		text := receipts.FormatReceipt(receipt, ride)
		if !strings.Contains(text, service.Disclaimer(lang)) {
			t.Errorf("%s receipt is missing its disclaimer", lang)
		}
		if !strings.Contains(text, "Gare Centrale") {
			t.Errorf("%s receipt is missing the pickup address", lang)
		}
		if !strings.Contains(text, "12.34") {
			t.Errorf("%s receipt is missing the total", lang)
		}
	}
}

func TestReceiptLanguage_FallsBackToDefault(t *testing.T) {
	t.Parallel()
	receipts := service.NewReceiptService(nil, domain.LanguageEnglish)

	if got := receipts.Language("de"); got != domain.LanguageEnglish {
		t.Errorf("expected fallback to en, got %s", got)
	}
	if got := receipts.Language("fr"); got != domain.LanguageFrench {
		t.Errorf("expected fr, got %s", got)
	}
}
