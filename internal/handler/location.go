package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridetrack/internal/domain"
	"ridetrack/internal/redis"
	"ridetrack/internal/service"
)

// LocationHandler handles what rider devices report for a ride.
type LocationHandler struct {
	locationService *service.LocationService
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(locationService *service.LocationService) *LocationHandler {
	return &LocationHandler{locationService: locationService}
}

// ConsentRequest is the HTTP request body for the rider's permission answer.
type ConsentRequest struct {
	Granted *bool `json:"granted"`
}

// ReportLocationRequest is either a position sample or a device error code.
type ReportLocationRequest struct {
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Accuracy    float64  `json:"accuracy"`
	TimestampMs int64    `json:"timestamp"`
	Speed       *float64 `json:"speed"`
	Error       string   `json:"error,omitempty"`
}

// SetConsent handles POST /v1/rides/:id/location/consent
func (h *LocationHandler) SetConsent(c *gin.Context) {
	var req ConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Granted == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "granted is required"})
		return
	}

	if err := h.locationService.SetConsent(c.Request.Context(), c.Param("id"), *req.Granted); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReportLocation handles POST /v1/rides/:id/location
func (h *LocationHandler) ReportLocation(c *gin.Context) {
	var req ReportLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	rideID := c.Param("id")

	if req.Error != "" {
		if !knownLocationError(req.Error) {
			respondError(c, service.ErrInvalidLocation)
			return
		}
		if err := h.locationService.ReportError(ctx, rideID, req.Error); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
		return
	}

	if req.Lat == nil || req.Lng == nil {
		respondError(c, service.ErrInvalidLocation)
		return
	}

	err := h.locationService.ReportSample(ctx, rideID, domain.LocationPoint{
		Lat:         *req.Lat,
		Lng:         *req.Lng,
		Accuracy:    req.Accuracy,
		TimestampMs: req.TimestampMs,
		Speed:       req.Speed,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func knownLocationError(code string) bool {
	switch code {
	case redis.LocationErrorPermissionDenied,
		redis.LocationErrorPositionUnavailable,
		redis.LocationErrorTimeout,
		redis.LocationErrorUnsupported:
		return true
	default:
		return false
	}
}
