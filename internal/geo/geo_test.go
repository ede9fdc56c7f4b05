package geo

import (
	"math"
	"testing"

	"ridetrack/internal/domain"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 45.5017, lng1: -73.5673,
			lat2: 45.5017, lng2: -73.5673,
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name: "Montreal to Quebec City (~233km)",
			lat1: 45.5017, lng1: -73.5673,
			lat2: 46.8139, lng2: -71.2080,
			wantKm:    233,
			tolerance: 5,
		},
		{
			name: "one degree of latitude (~111km)",
			lat1: 0, lng1: 0,
			lat2: 1, lng2: 0,
			wantKm:    111.19,
			tolerance: 0.05,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := HaversineKm(45.0, -73.0, 46.0, -72.0)
	d2 := HaversineKm(46.0, -72.0, 45.0, -73.0)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func testRoute() []domain.RoutePoint {
	return []domain.RoutePoint{
		{Lat: 45.5000, Lng: -73.5700},
		{Lat: 45.5100, Lng: -73.5700},
		{Lat: 45.5200, Lng: -73.5600},
		{Lat: 45.5300, Lng: -73.5500},
	}
}

func TestRemainingDistanceKm_AtRoutePoint(t *testing.T) {
	route := testRoute()

	for k := range route {
		var want float64
		for i := k; i < len(route)-1; i++ {
			want += HaversineKm(route[i].Lat, route[i].Lng, route[i+1].Lat, route[i+1].Lng)
		}

		got := RemainingDistanceKm(route[k].Lat, route[k].Lng, route)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("point %d: RemainingDistanceKm() = %f, want %f", k, got, want)
		}
	}
}

func TestRemainingDistanceKm_AtDestinationIsZero(t *testing.T) {
	route := testRoute()
	last := route[len(route)-1]

	if got := RemainingDistanceKm(last.Lat, last.Lng, route); got != 0 {
		t.Errorf("expected 0 at destination, got %f", got)
	}
}

func TestRemainingDistanceKm_EmptyRoute(t *testing.T) {
	if got := RemainingDistanceKm(45.5, -73.5, nil); got != 0 {
		t.Errorf("expected 0 for empty route, got %f", got)
	}
}

func TestRemainingDistanceKm_StartEqualsRouteLength(t *testing.T) {
	route := testRoute()
	got := RemainingDistanceKm(route[0].Lat, route[0].Lng, route)
	if math.Abs(got-RouteLengthKm(route)) > 1e-9 {
		t.Errorf("remaining from start %f != route length %f", got, RouteLengthKm(route))
	}
}

func TestNearestPointIndex_TieResolvesToFirst(t *testing.T) {
	// Points 0 and 2 coincide with the position.
	route := []domain.RoutePoint{
		{Lat: 45.0, Lng: -73.0},
		{Lat: 45.2, Lng: -73.0},
		{Lat: 45.0, Lng: -73.0},
	}

	if got := NearestPointIndex(45.0, -73.0, route); got != 0 {
		t.Errorf("expected first occurrence 0, got %d", got)
	}
}

func TestNearestPointIndex_Empty(t *testing.T) {
	if got := NearestPointIndex(0, 0, nil); got != -1 {
		t.Errorf("expected -1 for empty route, got %d", got)
	}
}

func TestDynamicETAMinutes(t *testing.T) {
	tests := []struct {
		name        string
		remainingKm float64
		speedKmh    float64
		want        int
	}{
		{name: "fallback speed", remainingKm: 35, speedKmh: 0, want: 60},
		{name: "negative speed uses fallback", remainingKm: 35, speedKmh: -4, want: 60},
		{name: "zero distance floors to one minute", remainingKm: 0, speedKmh: 0, want: 1},
		{name: "tiny distance floors to one minute", remainingKm: 0.01, speedKmh: 50, want: 1},
		{name: "live speed", remainingKm: 10, speedKmh: 60, want: 10},
		{name: "rounds up", remainingKm: 10.1, speedKmh: 60, want: 11},
		{name: "NaN speed uses fallback", remainingKm: 35, speedKmh: math.NaN(), want: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DynamicETAMinutes(tt.remainingKm, tt.speedKmh, 35); got != tt.want {
				t.Errorf("DynamicETAMinutes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMetersPerSecondToKmh(t *testing.T) {
	if got := MetersPerSecondToKmh(10); math.Abs(got-36) > 1e-9 {
		t.Errorf("MetersPerSecondToKmh(10) = %f, want 36", got)
	}
}
