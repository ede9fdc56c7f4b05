package handler

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridetrack/internal/service"
)

// FareHandler handles HTTP requests for fare estimates and quotes.
type FareHandler struct {
	fareService    *service.FareService
	bookingService *service.BookingService
	receiptService *service.ReceiptService
}

// NewFareHandler creates a new FareHandler.
func NewFareHandler(
	fareService *service.FareService,
	bookingService *service.BookingService,
	receiptService *service.ReceiptService,
) *FareHandler {
	return &FareHandler{
		fareService:    fareService,
		bookingService: bookingService,
		receiptService: receiptService,
	}
}

// EstimateFareRequest is the HTTP request body for a fare estimate.
type EstimateFareRequest struct {
	DistanceKm     *float64 `json:"distance_km"`
	WaitingMinutes float64  `json:"waiting_minutes"`
	Language       string   `json:"lang,omitempty"`
}

// EstimateFareResponse is the HTTP response for a fare estimate.
type EstimateFareResponse struct {
	Fare       FareResponse `json:"fare"`
	RateLabel  string       `json:"rate_label"`
	Disclaimer string       `json:"disclaimer"`
	Language   string       `json:"language"`
}

// QuoteRequest is the HTTP request body for a route quote.
type QuoteRequest struct {
	Pickup         PointJSON `json:"pickup"`
	Dropoff        PointJSON `json:"dropoff"`
	WaitingMinutes float64   `json:"waiting_minutes"`
	Language       string    `json:"lang,omitempty"`
}

// QuoteResponse is the HTTP response for a route quote.
type QuoteResponse struct {
	DistanceKm  float64      `json:"distance_km"`
	DurationMin float64      `json:"duration_min"`
	Route       []PointJSON  `json:"route"`
	Fare        FareResponse `json:"fare"`
	RateLabel   string       `json:"rate_label"`
	Disclaimer  string       `json:"disclaimer"`
	Language    string       `json:"language"`
}

// EstimateFare handles POST /v1/fares/estimate
func (h *FareHandler) EstimateFare(c *gin.Context) {
	var req EstimateFareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.DistanceKm == nil || !validAmount(*req.DistanceKm) {
		respondError(c, service.ErrInvalidDistance)
		return
	}
	if !validAmount(req.WaitingMinutes) {
		respondError(c, service.ErrInvalidWaitingTime)
		return
	}

	lang := h.receiptService.Language(req.Language)
	fare := h.fareService.Calculate(*req.DistanceKm, req.WaitingMinutes)

	respondJSON(c, http.StatusOK, EstimateFareResponse{
		Fare:       newFareResponse(fare),
		RateLabel:  h.receiptService.RateLabel(fare, lang),
		Disclaimer: service.Disclaimer(lang),
		Language:   string(lang),
	})
}

// Quote handles POST /v1/quotes
func (h *FareHandler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	quote, err := h.bookingService.Quote(c.Request.Context(), service.QuoteRequest{
		Pickup:         req.Pickup.toDomain(),
		Dropoff:        req.Dropoff.toDomain(),
		WaitingMinutes: req.WaitingMinutes,
		Language:       h.receiptService.Language(req.Language),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, QuoteResponse{
		DistanceKm:  quote.Route.DistanceKm,
		DurationMin: quote.Route.DurationMin,
		Route:       newPointsJSON(quote.Route.Points),
		Fare:        newFareResponse(quote.Fare),
		RateLabel:   quote.RateLabel,
		Disclaimer:  quote.Disclaimer,
		Language:    string(quote.Language),
	})
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}
