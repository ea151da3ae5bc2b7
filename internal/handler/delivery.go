package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// DeliveryHandler handles HTTP requests for deliveries.
type DeliveryHandler struct {
	lifecycle *service.LifecycleService
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(lifecycle *service.LifecycleService) *DeliveryHandler {
	return &DeliveryHandler{lifecycle: lifecycle}
}

// CancelDeliveryRequest is the HTTP request body for cancelling a delivery.
type CancelDeliveryRequest struct {
	Reason string `json:"reason"`
}

// RateDeliveryRequest is the HTTP request body for a customer rating.
type RateDeliveryRequest struct {
	CustomerID string `json:"customer_id"`
	Rating     int    `json:"rating"`
	Feedback   string `json:"feedback,omitempty"`
}

// Get handles GET /v1/deliveries/:id
func (h *DeliveryHandler) Get(c *gin.Context) {
	delivery, err := h.lifecycle.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, delivery)
}

// Advance handles POST /v1/deliveries/:id/advance
func (h *DeliveryHandler) Advance(c *gin.Context) {
	delivery, err := h.lifecycle.Advance(c.Request.Context(), c.Param("id"), middleware.CallerRiderID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, delivery)
}

// Cancel handles POST /v1/deliveries/:id/cancel. A rider cancels their own
// delivery; an operator may cancel any.
func (h *DeliveryHandler) Cancel(c *gin.Context) {
	var req CancelDeliveryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	delivery, err := h.lifecycle.Cancel(c.Request.Context(), service.CancelRequest{
		DeliveryID: c.Param("id"),
		Reason:     req.Reason,
		RiderID:    cancellingRider(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, delivery)
}

// Rate handles POST /v1/deliveries/:id/rating
func (h *DeliveryHandler) Rate(c *gin.Context) {
	var req RateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	delivery, err := h.lifecycle.Rate(c.Request.Context(), service.RateRequest{
		DeliveryID: c.Param("id"),
		CustomerID: req.CustomerID,
		Rating:     req.Rating,
		Feedback:   req.Feedback,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, delivery)
}

// cancellingRider returns the rider a cancel is checked against. Operator
// calls are not bound to a rider.
func cancellingRider(c *gin.Context) string {
	if middleware.IsOperator(c) {
		return ""
	}
	return middleware.CallerRiderID(c)
}
