package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// OrderHandler handles HTTP requests for the order pool.
type OrderHandler struct {
	pool        *service.PoolService
	coordinator *service.CoordinatorService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(pool *service.PoolService, coordinator *service.CoordinatorService) *OrderHandler {
	return &OrderHandler{
		pool:        pool,
		coordinator: coordinator,
	}
}

// SubmitOrderRequest is the HTTP request body for a restaurant-confirmed order.
type SubmitOrderRequest struct {
	RestaurantID    string             `json:"restaurant_id"`
	CustomerID      string             `json:"customer_id"`
	Total           float64            `json:"total"`
	DeliveryAddress string             `json:"delivery_address"`
	Items           []domain.OrderItem `json:"items"`
}

// Submit handles POST /v1/orders
func (h *OrderHandler) Submit(c *gin.Context) {
	var req SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	order, err := h.pool.Submit(c.Request.Context(), service.SubmitOrderRequest{
		RestaurantID:    req.RestaurantID,
		CustomerID:      req.CustomerID,
		Total:           req.Total,
		DeliveryAddress: req.DeliveryAddress,
		Items:           req.Items,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, order)
}

// Available handles GET /v1/orders/available
func (h *OrderHandler) Available(c *gin.Context) {
	orders, err := h.pool.ListAvailable(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, orders)
}

// Get handles GET /v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.pool.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, order)
}

// Accept handles POST /v1/orders/:id/accept for the calling rider.
func (h *OrderHandler) Accept(c *gin.Context) {
	delivery, err := h.coordinator.AcceptOrder(c.Request.Context(), middleware.CallerRiderID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, delivery)
}
