package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/changefeed"
	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// streamHeartbeat keeps idle event streams open through proxies.
const streamHeartbeat = 15 * time.Second

// RiderHandler handles HTTP requests for riders.
type RiderHandler struct {
	registry  *service.RegistryService
	lifecycle *service.LifecycleService
	hub       *changefeed.Hub
}

// NewRiderHandler creates a new RiderHandler.
func NewRiderHandler(registry *service.RegistryService, lifecycle *service.LifecycleService, hub *changefeed.Hub) *RiderHandler {
	return &RiderHandler{
		registry:  registry,
		lifecycle: lifecycle,
		hub:       hub,
	}
}

// RegisterRiderRequest is the HTTP request body for rider registration.
type RegisterRiderRequest struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
}

// SetAvailabilityRequest is the HTTP request body for going online or offline.
type SetAvailabilityRequest struct {
	Availability string `json:"availability"`
}

// UpdateLocationRequest is the HTTP request body for a position report.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Register handles POST /v1/riders/register
func (h *RiderHandler) Register(c *gin.Context) {
	var req RegisterRiderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	rider, err := h.registry.Register(c.Request.Context(), service.RegisterRiderRequest{
		AccountID: req.AccountID,
		Name:      req.Name,
		Phone:     req.Phone,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, rider)
}

// GetAll handles GET /v1/riders
func (h *RiderHandler) GetAll(c *gin.Context) {
	riders, err := h.registry.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, riders)
}

// Get handles GET /v1/riders/:id
func (h *RiderHandler) Get(c *gin.Context) {
	rider, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, rider)
}

// ActiveDelivery handles GET /v1/riders/:id/delivery
func (h *RiderHandler) ActiveDelivery(c *gin.Context) {
	delivery, err := h.lifecycle.GetActive(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if delivery == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no active delivery"})
		return
	}

	respondJSON(c, http.StatusOK, delivery)
}

// SetAvailability handles PUT /v1/riders/:id/availability
func (h *RiderHandler) SetAvailability(c *gin.Context) {
	var req SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	rider, err := h.registry.SetAvailability(c.Request.Context(), c.Param("id"), domain.Availability(req.Availability))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, rider)
}

// UpdateLocation handles POST /v1/riders/:id/location
func (h *RiderHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	loc, err := h.registry.UpdateLocation(c.Request.Context(), service.UpdateLocationRequest{
		RiderID: c.Param("id"),
		Lat:     req.Lat,
		Lng:     req.Lng,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, loc)
}

// Deactivate handles POST /v1/riders/:id/deactivate
func (h *RiderHandler) Deactivate(c *gin.Context) {
	rider, err := h.registry.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, rider)
}

// Nearby handles GET /v1/riders/nearby?lat=&lng=&radius_km=
func (h *RiderHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	radius, errRadius := strconv.ParseFloat(c.DefaultQuery("radius_km", "5"), 64)
	if errLat != nil || errLng != nil || errRadius != nil {
		badRequest(c, "lat, lng and radius_km must be numbers")
		return
	}

	locations, err := h.registry.Nearby(c.Request.Context(), lat, lng, radius)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, locations)
}

// Events handles GET /v1/riders/:id/events as a server-sent event stream of
// changes to the rider and its deliveries, orders and earnings.
func (h *RiderHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	riderID := c.Param("id")

	if _, err := h.registry.Get(ctx, riderID); err != nil {
		respondError(c, err)
		return
	}

	events, unsubscribe := h.hub.Subscribe("", changefeed.ForRider(riderID))
	defer unsubscribe()

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		case <-ctx.Done():
			return false
		}
	})
}
