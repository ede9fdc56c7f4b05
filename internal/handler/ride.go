package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridetrack/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	bookingService *service.BookingService
	receiptService *service.ReceiptService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(bookingService *service.BookingService, receiptService *service.ReceiptService) *RideHandler {
	return &RideHandler{
		bookingService: bookingService,
		receiptService: receiptService,
	}
}

// BookRideRequest is the HTTP request body for booking a ride.
type BookRideRequest struct {
	RiderID        string    `json:"rider_id"`
	PickupAddress  string    `json:"pickup_address"`
	DropoffAddress string    `json:"dropoff_address"`
	Pickup         PointJSON `json:"pickup"`
	Dropoff        PointJSON `json:"dropoff"`
	WaitingMinutes float64   `json:"waiting_minutes"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CompleteRideRequest is the HTTP request body for completing a ride.
type CompleteRideRequest struct {
	Language string `json:"lang,omitempty"`
}

// ListRidesResponse is the HTTP response for the ride dashboard.
type ListRidesResponse struct {
	Active []RideResponse `json:"active"`
	Past   []RideResponse `json:"past"`
}

// CompleteRideResponse is the HTTP response for completing a ride.
type CompleteRideResponse struct {
	Ride    RideResponse    `json:"ride"`
	Receipt ReceiptResponse `json:"receipt"`
}

// BookRide handles POST /v1/rides
func (h *RideHandler) BookRide(c *gin.Context) {
	var req BookRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.bookingService.BookRide(c.Request.Context(), service.BookRideRequest{
		RiderID:        req.RiderID,
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		Pickup:         req.Pickup.toDomain(),
		Dropoff:        req.Dropoff.toDomain(),
		WaitingMinutes: req.WaitingMinutes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newRideResponse(ride, true))
}

// ListRides handles GET /v1/rides?rider_id=
func (h *RideHandler) ListRides(c *gin.Context) {
	rides, err := h.bookingService.ListRides(c.Request.Context(), c.Query("rider_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := ListRidesResponse{
		Active: make([]RideResponse, 0),
		Past:   make([]RideResponse, 0),
	}
	for _, ride := range rides {
		if ride.Status.IsActive() {
			resp.Active = append(resp.Active, newRideResponse(ride, false))
		} else {
			resp.Past = append(resp.Past, newRideResponse(ride, false))
		}
	}

	respondJSON(c, http.StatusOK, resp)
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.bookingService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newRideResponse(ride, true))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	// Body is optional.
	_ = c.ShouldBindJSON(&req)

	ride, err := h.bookingService.CancelRide(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newRideResponse(ride, false))
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	var req CompleteRideRequest
	// Body is optional.
	_ = c.ShouldBindJSON(&req)

	lang := h.receiptService.Language(req.Language)
	ride, receipt, err := h.bookingService.CompleteRide(c.Request.Context(), c.Param("id"), lang)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CompleteRideResponse{
		Ride: newRideResponse(ride, false),
		Receipt: ReceiptResponse{
			ID:              receipt.ID,
			RideID:          receipt.RideID,
			RiderID:         receipt.RiderID,
			Fare:            newFareResponse(receipt.Fare),
			DistanceKm:      receipt.DistanceKm,
			DurationMinutes: receipt.Duration.Minutes(),
			Language:        string(receipt.Language),
			Disclaimer:      receipt.Disclaimer,
			StartedAt:       formatTime(receipt.StartedAt),
			CompletedAt:     formatTime(receipt.CompletedAt),
			Text:            h.receiptService.FormatReceipt(receipt, ride),
		},
	})
}
