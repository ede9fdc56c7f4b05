package maps

import (
	"googlemaps.github.io/maps"

	"ridetrack/internal/domain"
)

// EncodePolyline encodes route points with the Google polyline algorithm.
// Coordinates are kept to five decimal places.
func EncodePolyline(points []domain.RoutePoint) string {
	path := make([]maps.LatLng, len(points))
	for i, p := range points {
		path[i] = maps.LatLng{Lat: p.Lat, Lng: p.Lng}
	}
	return maps.Encode(path)
}

// DecodePolyline decodes an encoded polyline into route points.
func DecodePolyline(encoded string) ([]domain.RoutePoint, error) {
	if encoded == "" {
		return nil, nil
	}
	path, err := maps.DecodePolyline(encoded)
	if err != nil {
		return nil, err
	}
	return fromLatLngs(path), nil
}

func fromLatLngs(path []maps.LatLng) []domain.RoutePoint {
	points := make([]domain.RoutePoint, len(path))
	for i, ll := range path {
		points[i] = domain.RoutePoint{Lat: ll.Lat, Lng: ll.Lng}
	}
	return points
}
