package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridetrack/internal/app"
	"ridetrack/internal/config"
	"ridetrack/internal/domain"
	"ridetrack/internal/handler"
	"ridetrack/internal/maps"
	internalRedis "ridetrack/internal/redis"
	"ridetrack/internal/repository/postgres"
	"ridetrack/internal/service"
)

// directRouteSpeedKmh is the average speed assumed for straight-line routes
// when no directions API key is configured.
const directRouteSpeedKmh = 35

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	routes, err := newRouteProvider(cfg.Maps)
	if err != nil {
		log.Fatalf("failed to create route service: %v", err)
	}

	server, trackingService, hub := wireServer(db, redisClient, routes, nrApp, cfg)

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Websocket connections are hijacked and not closed by server.Shutdown.
	hub.CloseAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	trackingService.Shutdown(shutdownCtx)

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Println("Server exited")
}

// newRouteProvider uses Google Directions when an API key is configured and
// straight-line routes otherwise.
func newRouteProvider(cfg config.MapsConfig) (service.RouteProvider, error) {
	if cfg.APIKey == "" {
		log.Println("MAPS_API_KEY not set, using straight-line routes")
		return maps.NewDirectRouteService(directRouteSpeedKmh), nil
	}
	return maps.NewRouteService(cfg.APIKey, cfg.Language, cfg.Region)
}

// wireServer wires all dependencies and returns the HTTP server together with
// the components that need an explicit shutdown.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	routes service.RouteProvider,
	nrApp *newrelic.Application,
	cfg *config.Config,
) (*http.Server, *service.TrackingService, *handler.Hub) {
	// Initialize Redis stores.
	locationFeed := internalRedis.NewLocationFeed(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)
	responseStore := internalRedis.NewResponseStore(redisClient)

	// Initialize repositories.
	rideRepo := postgres.NewRideRepository(db)

	// Live push to riders carries both tracking states and notifications.
	hub := handler.NewHub()

	// Initialize services.
	defaultLanguage := domain.ParseLanguage(cfg.DefaultLanguage, domain.LanguageFrench)
	notificationService := service.NewNotificationService(hub)
	receiptService := service.NewReceiptService(notificationService, defaultLanguage)
	fareService := service.NewFareService(cfg.Fare, time.Now)
	trackingService := service.NewTrackingService(rideRepo, locationFeed, lockStore, cacheStore, hub, notificationService, cfg.Tracking)
	bookingService := service.NewBookingService(rideRepo, routes, fareService, receiptService, notificationService, trackingService)
	locationService := service.NewLocationService(rideRepo, locationFeed)

	// Initialize handlers.
	healthHandler := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"postgres": db.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}, trackingService)

	router := app.NewRouter(app.RouterDeps{
		FareHandler:     handler.NewFareHandler(fareService, bookingService, receiptService),
		RideHandler:     handler.NewRideHandler(bookingService, receiptService),
		TrackingHandler: handler.NewTrackingHandler(trackingService, hub),
		LocationHandler: handler.NewLocationHandler(locationService),
		HealthHandler:   healthHandler,
		ResponseStore:   responseStore,
		NewRelicApp:     nrApp,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, trackingService, hub
}
