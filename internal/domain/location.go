package domain

// LocationPoint is a single position sample from a device.
type LocationPoint struct {
	Lat         float64
	Lng         float64
	Accuracy    float64  // meters
	TimestampMs int64    // device clock, unix milliseconds
	Speed       *float64 // meters per second, nil when the device did not report one
}

// RoutePoint is one vertex of a planned route polyline.
type RoutePoint struct {
	Lat float64
	Lng float64
}

// Route is what the directions provider returns for a pickup/dropoff pair.
type Route struct {
	DistanceKm  float64
	DurationMin float64
	Points      []RoutePoint
}
