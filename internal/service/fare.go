package service

import (
	"math"
	"time"

	"ridetrack/internal/config"
	"ridetrack/internal/domain"
)

// FareService computes itemized fare estimates. Rates are chosen from the
// wall-clock hour at calculation time, not the trip start.
type FareService struct {
	day        config.RateConfig
	night      config.RateConfig
	nightStart int
	nightEnd   int
	location   *time.Location
	now        func() time.Time
}

// NewFareService creates a new FareService. A nil clock uses time.Now.
func NewFareService(cfg config.FareConfig, now func() time.Time) *FareService {
	if now == nil {
		now = time.Now
	}
	return &FareService{
		day:        cfg.Day,
		night:      cfg.Night,
		nightStart: cfg.NightStartHour,
		nightEnd:   cfg.NightEndHour,
		location:   cfg.Location(),
		now:        now,
	}
}

// Calculate prices a trip at the current time.
func (s *FareService) Calculate(distanceKm, waitingMinutes float64) domain.FareEstimate {
	return s.CalculateAt(s.now(), distanceKm, waitingMinutes)
}

// CalculateAt prices a trip as if requested at t. Negative and non-finite
// inputs count as zero.
func (s *FareService) CalculateAt(t time.Time, distanceKm, waitingMinutes float64) domain.FareEstimate {
	distanceKm = clampNonNegative(distanceKm)
	waitingMinutes = clampNonNegative(waitingMinutes)

	rates, rateType := s.day, domain.RateTypeDay
	if s.IsNight(t) {
		rates, rateType = s.night, domain.RateTypeNight
	}

	distanceFare := distanceKm * rates.PerKm
	waitingFare := waitingMinutes * rates.PerMin

	return domain.FareEstimate{
		BaseFare:       rates.Base,
		DistanceKm:     distanceKm,
		DistanceRate:   rates.PerKm,
		DistanceFare:   distanceFare,
		WaitingMinutes: waitingMinutes,
		WaitingRate:    rates.PerMin,
		WaitingFare:    waitingFare,
		Total:          roundToCent(rates.Base + distanceFare + waitingFare),
		RateType:       rateType,
	}
}

// IsNight reports whether night rates apply at t.
func (s *FareService) IsNight(t time.Time) bool {
	hour := t.In(s.location).Hour()

	switch {
	case s.nightStart > s.nightEnd:
		// Window wraps midnight.
		return hour >= s.nightStart || hour < s.nightEnd
	case s.nightStart < s.nightEnd:
		return hour >= s.nightStart && hour < s.nightEnd
	default:
		return false
	}
}

func roundToCent(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampNonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
