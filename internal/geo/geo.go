// Package geo contains pure geographic computation helpers used to follow a
// trip along its planned route.
package geo

import (
	"math"

	"ridetrack/internal/domain"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// NearestPointIndex returns the index of the route point closest to the given
// position. Equidistant points resolve to the lowest index. It returns -1 for
// an empty route.
func NearestPointIndex(lat, lng float64, route []domain.RoutePoint) int {
	nearest := -1
	best := math.Inf(1)
	for i, p := range route {
		d := HaversineKm(lat, lng, p.Lat, p.Lng)
		if d < best {
			best = d
			nearest = i
		}
	}
	return nearest
}

// RemainingDistanceKm approximates the distance left along the route by
// projecting the position onto its nearest route point and summing the
// segments from there to the last point.
func RemainingDistanceKm(lat, lng float64, route []domain.RoutePoint) float64 {
	start := NearestPointIndex(lat, lng, route)
	if start < 0 {
		return 0
	}
	return lengthFrom(route, start)
}

// RouteLengthKm returns the total length of the polyline.
func RouteLengthKm(route []domain.RoutePoint) float64 {
	return lengthFrom(route, 0)
}

func lengthFrom(route []domain.RoutePoint, start int) float64 {
	var total float64
	for i := start; i < len(route)-1; i++ {
		total += HaversineKm(route[i].Lat, route[i].Lng, route[i+1].Lat, route[i+1].Lng)
	}
	return total
}

// DynamicETAMinutes estimates the minutes needed to cover remainingKm. A
// non-positive or NaN speed falls back to fallbackKmh. The result is never
// below one minute.
func DynamicETAMinutes(remainingKm, speedKmh, fallbackKmh float64) int {
	effective := fallbackKmh
	if speedKmh > 0 && !math.IsInf(speedKmh, 0) {
		effective = speedKmh
	}
	if effective <= 0 || math.IsNaN(remainingKm) {
		return 1
	}
	minutes := math.Ceil(remainingKm / effective * 60)
	return int(math.Max(1, minutes))
}

// MetersPerSecondToKmh converts a device speed to km/h.
func MetersPerSecondToKmh(mps float64) float64 {
	return mps * 3.6
}
