package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"ridetrack/internal/handler"
	"ridetrack/internal/middleware"
	"ridetrack/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	FareHandler     *handler.FareHandler
	RideHandler     *handler.RideHandler
	TrackingHandler *handler.TrackingHandler
	LocationHandler *handler.LocationHandler
	HealthHandler   *handler.HealthHandler
	ResponseStore   redis.ResponseStoreInterface
	NewRelicApp     *newrelic.Application
}

// NewRouter creates the HTTP handler with all routes registered, wrapped for
// cross-origin browser access.
func NewRouter(deps RouterDeps) http.Handler {
	return middleware.CORS(NewEngine(deps))
}

// NewEngine creates a new Gin engine with all routes registered.
func NewEngine(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.RideAttributes())
	}

	router.GET("/health", deps.HealthHandler.Health)

	v1 := router.Group("/v1")
	{
		// Fare estimates and quotes.
		v1.POST("/fares/estimate", deps.FareHandler.EstimateFare)
		v1.POST("/quotes", deps.FareHandler.Quote)

		// Ride routes. Mutations honour Idempotency-Key.
		rides := v1.Group("/rides")
		{
			rides.GET("", deps.RideHandler.ListRides)
			rides.GET("/:id", deps.RideHandler.GetRide)

			mutating := rides.Group("")
			if deps.ResponseStore != nil {
				mutating.Use(middleware.Idempotency(deps.ResponseStore))
			}
			mutating.POST("", deps.RideHandler.BookRide)
			mutating.POST("/:id/cancel", deps.RideHandler.CancelRide)
			mutating.POST("/:id/complete", deps.RideHandler.CompleteRide)

			// Live tracking.
			rides.GET("/:id/tracking", deps.TrackingHandler.GetTrackingState)
			rides.GET("/:id/tracking/stream", deps.TrackingHandler.StreamTracking)
			rides.POST("/:id/tracking/start", deps.TrackingHandler.StartTracking)
			rides.POST("/:id/tracking/stop", deps.TrackingHandler.StopTracking)
			rides.POST("/:id/tracking/reset", deps.TrackingHandler.ResetTracking)

			// Device reports.
			rides.POST("/:id/location/consent", deps.LocationHandler.SetConsent)
			rides.POST("/:id/location", deps.LocationHandler.ReportLocation)
		}
	}

	return router
}
