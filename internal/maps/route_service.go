// Package maps is the routing collaborator: it turns a pickup/dropoff pair
// into a distance, a duration and a route polyline.
package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"ridetrack/internal/domain"
	"ridetrack/internal/geo"
)

// ErrNoRoute is returned when the provider finds no drivable route.
var ErrNoRoute = errors.New("no route found")

// RouteService handles interactions with the Google Maps Directions API.
type RouteService struct {
	client   *maps.Client
	language string
	region   string
}

// NewRouteService creates a new RouteService with the given API key.
func NewRouteService(apiKey, language, region string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client, language: language, region: region}, nil
}

// GetRoute returns the driving route between pickup and dropoff.
func (s *RouteService) GetRoute(ctx context.Context, pickup, dropoff domain.RoutePoint) (*domain.Route, error) {
	r := &maps.DirectionsRequest{
		Origin:      latLngString(pickup),
		Destination: latLngString(dropoff),
		Mode:        maps.TravelModeDriving,
		Language:    s.language,
		Region:      s.region,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("maps api error: %w", err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, ErrNoRoute
	}

	return routeFromDirections(routes[0])
}

func routeFromDirections(r maps.Route) (*domain.Route, error) {
	var meters int
	var minutes float64
	for _, leg := range r.Legs {
		meters += leg.Distance.Meters
		minutes += leg.Duration.Minutes()
	}

	path, err := r.OverviewPolyline.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode overview polyline: %w", err)
	}

	return &domain.Route{
		DistanceKm:  float64(meters) / 1000,
		DurationMin: minutes,
		Points:      fromLatLngs(path),
	}, nil
}

func latLngString(p domain.RoutePoint) string {
	return (&maps.LatLng{Lat: p.Lat, Lng: p.Lng}).String()
}

// DirectRouteService is a provider-less fallback: a straight segment between
// the two points driven at a constant average speed.
type DirectRouteService struct {
	speedKmh float64
}

// NewDirectRouteService creates a new DirectRouteService.
func NewDirectRouteService(speedKmh float64) *DirectRouteService {
	return &DirectRouteService{speedKmh: speedKmh}
}

// GetRoute returns the straight line between pickup and dropoff.
func (s *DirectRouteService) GetRoute(ctx context.Context, pickup, dropoff domain.RoutePoint) (*domain.Route, error) {
	if s.speedKmh <= 0 {
		return nil, ErrNoRoute
	}

	km := geo.HaversineKm(pickup.Lat, pickup.Lng, dropoff.Lat, dropoff.Lng)
	return &domain.Route{
		DistanceKm:  km,
		DurationMin: km / s.speedKmh * 60,
		Points:      []domain.RoutePoint{pickup, dropoff},
	}, nil
}
