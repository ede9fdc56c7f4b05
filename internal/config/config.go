package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Fare     FareConfig
	Tracking TrackingConfig
	Maps     MapsConfig

	// DefaultLanguage is used for customer-facing text when a request does
	// not name one.
	DefaultLanguage string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// RateConfig is one tariff.
type RateConfig struct {
	Base   float64
	PerKm  float64
	PerMin float64
}

// FareConfig holds the day and night tariffs and the night window.
// Night applies for hours in [NightStartHour, 24) and [0, NightEndHour).
type FareConfig struct {
	Day            RateConfig
	Night          RateConfig
	NightStartHour int
	NightEndHour   int
	Timezone       string
}

// Location returns the timezone rate selection happens in. An empty or
// unknown name falls back to the process local zone.
func (c FareConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("[CONFIG] Unknown FARE_TIMEZONE %q, using local time: %v", c.Timezone, err)
		return time.Local
	}
	return loc
}

// TrackingConfig holds trip tracking configuration.
type TrackingConfig struct {
	FallbackSpeedKmh   float64
	PermissionTimeout  time.Duration
	LockTTL            time.Duration
	SnapshotTTL        time.Duration
	ArrivalThresholdKm float64
}

// MapsConfig holds directions provider configuration.
type MapsConfig struct {
	APIKey   string
	Language string
	Region   string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ride_tracking"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "ride-tracking-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Fare: FareConfig{
			Day: RateConfig{
				Base:   getFloatEnv("FARE_DAY_BASE", 4.10),
				PerKm:  getFloatEnv("FARE_DAY_PER_KM", 2.05),
				PerMin: getFloatEnv("FARE_DAY_PER_MIN", 0.77),
			},
			Night: RateConfig{
				Base:   getFloatEnv("FARE_NIGHT_BASE", 4.70),
				PerKm:  getFloatEnv("FARE_NIGHT_PER_KM", 2.35),
				PerMin: getFloatEnv("FARE_NIGHT_PER_MIN", 0.89),
			},
			NightStartHour: getIntEnv("FARE_NIGHT_START_HOUR", 23),
			NightEndHour:   getIntEnv("FARE_NIGHT_END_HOUR", 5),
			Timezone:       getEnv("FARE_TIMEZONE", ""),
		},
		Tracking: TrackingConfig{
			FallbackSpeedKmh:   getFloatEnv("TRACKING_FALLBACK_SPEED_KMH", 35),
			PermissionTimeout:  getDurationEnv("TRACKING_PERMISSION_TIMEOUT", 10*time.Second),
			LockTTL:            getDurationEnv("TRACKING_LOCK_TTL", 4*time.Hour),
			SnapshotTTL:        getDurationEnv("TRACKING_SNAPSHOT_TTL", 24*time.Hour),
			ArrivalThresholdKm: getFloatEnv("TRACKING_ARRIVAL_THRESHOLD_KM", 0.05),
		},
		Maps: MapsConfig{
			APIKey:   getEnv("MAPS_API_KEY", ""),
			Language: getEnv("MAPS_LANGUAGE", "fr"),
			Region:   getEnv("MAPS_REGION", "ca"),
		},
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "fr"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
