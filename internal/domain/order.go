package domain

import "time"

// OrderStatus represents the fulfillment stage of an order.
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "PENDING"
	OrderStatusAwaitingRider OrderStatus = "AWAITING_RIDER"
	OrderStatusRiderAssigned OrderStatus = "RIDER_ASSIGNED"
	OrderStatusDelivered     OrderStatus = "DELIVERED"
	OrderStatusCancelled     OrderStatus = "CANCELLED"
)

// OrderItem is a single line of an order.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order is the subset of a customer order relevant to delivery.
type Order struct {
	ID              string         `json:"id"`
	RestaurantID    string         `json:"restaurant_id"`
	CustomerID      string         `json:"customer_id"`
	Total           float64        `json:"total"`
	DeliveryAddress string         `json:"delivery_address"`
	Items           []OrderItem    `json:"items,omitempty"`
	Status          OrderStatus    `json:"status"`
	RiderID         string         `json:"rider_id"`        // empty when unassigned
	DeliveryStatus  DeliveryStatus `json:"delivery_status"` // mirror of the owning delivery's status
	CreatedAt       time.Time      `json:"created_at"`
}

// Available reports whether the order can be offered to riders.
func (o *Order) Available() bool {
	return o.RiderID == "" && o.Status == OrderStatusAwaitingRider
}
