package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ridetrack/internal/domain"
	"ridetrack/internal/maps"
	"ridetrack/internal/repository"
)

const rideColumns = `id, rider_id, pickup_address, dropoff_address, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	distance_km, duration_min, route_polyline,
	fare_base, fare_distance_rate, fare_distance_fare, fare_waiting_minutes, fare_waiting_rate, fare_waiting_fare, fare_total, fare_rate_type,
	status, created_at, started_at, completed_at, cancelled_at, cancel_reason`

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.RiderID,
		ride.PickupAddress,
		ride.DropoffAddress,
		ride.Pickup.Lat,
		ride.Pickup.Lng,
		ride.Dropoff.Lat,
		ride.Dropoff.Lng,
		ride.DistanceKm,
		ride.DurationMin,
		maps.EncodePolyline(ride.RoutePoints),
		ride.Fare.BaseFare,
		ride.Fare.DistanceRate,
		ride.Fare.DistanceFare,
		ride.Fare.WaitingMinutes,
		ride.Fare.WaitingRate,
		ride.Fare.WaitingFare,
		ride.Fare.Total,
		ride.Fare.RateType,
		ride.Status,
		ride.CreatedAt,
		nullTime(ride.StartedAt),
		nullTime(ride.CompletedAt),
		nullTime(ride.CancelledAt),
		nullString(ride.CancelReason),
	)

	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return ride, nil
}

// ListByRiderID retrieves a rider's rides, newest first.
func (r *RideRepository) ListByRiderID(ctx context.Context, riderID string, limit int) ([]*domain.Ride, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + rideColumns + ` FROM rides WHERE rider_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, riderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// Update updates an existing ride.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	query := `
		UPDATE rides
		SET status = $1, started_at = $2, completed_at = $3, cancelled_at = $4, cancel_reason = $5,
			fare_waiting_minutes = $6, fare_waiting_fare = $7, fare_total = $8
		WHERE id = $9
	`

	result, err := r.q.ExecContext(ctx, query,
		ride.Status,
		nullTime(ride.StartedAt),
		nullTime(ride.CompletedAt),
		nullTime(ride.CancelledAt),
		nullString(ride.CancelReason),
		ride.Fare.WaitingMinutes,
		ride.Fare.WaitingFare,
		ride.Fare.Total,
		ride.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRide(s scanner) (*domain.Ride, error) {
	var ride domain.Ride
	var polyline string
	var startedAt, completedAt, cancelledAt sql.NullTime
	var cancelReason sql.NullString

	err := s.Scan(
		&ride.ID,
		&ride.RiderID,
		&ride.PickupAddress,
		&ride.DropoffAddress,
		&ride.Pickup.Lat,
		&ride.Pickup.Lng,
		&ride.Dropoff.Lat,
		&ride.Dropoff.Lng,
		&ride.DistanceKm,
		&ride.DurationMin,
		&polyline,
		&ride.Fare.BaseFare,
		&ride.Fare.DistanceRate,
		&ride.Fare.DistanceFare,
		&ride.Fare.WaitingMinutes,
		&ride.Fare.WaitingRate,
		&ride.Fare.WaitingFare,
		&ride.Fare.Total,
		&ride.Fare.RateType,
		&ride.Status,
		&ride.CreatedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
		&cancelReason,
	)
	if err != nil {
		return nil, err
	}

	points, err := maps.DecodePolyline(polyline)
	if err != nil {
		return nil, fmt.Errorf("decode route of ride %s: %w", ride.ID, err)
	}
	ride.RoutePoints = points
	ride.Fare.DistanceKm = ride.DistanceKm

	if startedAt.Valid {
		ride.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		ride.CompletedAt = completedAt.Time
	}
	if cancelledAt.Valid {
		ride.CancelledAt = cancelledAt.Time
	}
	if cancelReason.Valid {
		ride.CancelReason = cancelReason.String
	}

	return &ride, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
