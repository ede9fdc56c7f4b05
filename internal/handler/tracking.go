package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridetrack/internal/service"
)

// TrackingHandler handles HTTP requests for live trip progress.
type TrackingHandler struct {
	trackingService *service.TrackingService
	hub             *Hub
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(trackingService *service.TrackingService, hub *Hub) *TrackingHandler {
	return &TrackingHandler{
		trackingService: trackingService,
		hub:             hub,
	}
}

// StartTracking handles POST /v1/rides/:id/tracking/start
func (h *TrackingHandler) StartTracking(c *gin.Context) {
	state, err := h.trackingService.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newTrackingStateResponse(state))
}

// StopTracking handles POST /v1/rides/:id/tracking/stop
func (h *TrackingHandler) StopTracking(c *gin.Context) {
	state, err := h.trackingService.Stop(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newTrackingStateResponse(state))
}

// ResetTracking handles POST /v1/rides/:id/tracking/reset
func (h *TrackingHandler) ResetTracking(c *gin.Context) {
	state, err := h.trackingService.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newTrackingStateResponse(state))
}

// GetTrackingState handles GET /v1/rides/:id/tracking
func (h *TrackingHandler) GetTrackingState(c *gin.Context) {
	state, err := h.trackingService.State(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newTrackingStateResponse(state))
}

// StreamTracking handles GET /v1/rides/:id/tracking/stream (websocket)
func (h *TrackingHandler) StreamTracking(c *gin.Context) {
	rideID := c.Param("id")
	state, err := h.trackingService.State(c.Request.Context(), rideID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.hub.Serve(c.Writer, c.Request, rideID, &state)
}
