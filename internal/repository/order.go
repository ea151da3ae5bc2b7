package repository

import (
	"context"

	"dispatch/internal/domain"
)

// OrderRepository defines the persistence operations for orders.
type OrderRepository interface {
	// Create persists a new order.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by ID.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// ListAvailable returns up to limit unassigned orders awaiting a rider,
	// oldest first.
	ListAvailable(ctx context.Context, limit int) ([]*domain.Order, error)

	// AssignRider sets the order's rider if it has none and is awaiting a rider.
	AssignRider(ctx context.Context, id, riderID string) (bool, error)

	// ReleaseRider clears the order's rider if it is riderID and puts the
	// order back to AWAITING_RIDER.
	ReleaseRider(ctx context.Context, id, riderID string) (bool, error)

	// UpdateDeliveryStatus mirrors a delivery's status onto the order.
	UpdateDeliveryStatus(ctx context.Context, id string, status domain.OrderStatus, deliveryStatus domain.DeliveryStatus) error
}
