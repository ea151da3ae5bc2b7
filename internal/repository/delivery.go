package repository

import (
	"context"

	"dispatch/internal/domain"
)

// DeliveryRepository defines the persistence operations for deliveries.
type DeliveryRepository interface {
	// Create persists a new delivery.
	Create(ctx context.Context, delivery *domain.Delivery) error

	// GetByID retrieves a delivery by ID.
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)

	// GetActiveByRiderID retrieves the non-terminal delivery of a rider.
	// Returns nil if no active delivery exists.
	GetActiveByRiderID(ctx context.Context, riderID string) (*domain.Delivery, error)

	// UpdateStatus writes the delivery's status, timestamps and cancel reason
	// if its stored status is still from.
	UpdateStatus(ctx context.Context, delivery *domain.Delivery, from domain.DeliveryStatus) (bool, error)

	// SetRating records the customer rating of a delivered, unrated delivery.
	SetRating(ctx context.Context, id string, rating int, feedback string) (bool, error)

	// ListUncredited returns up to limit delivered deliveries without an earning.
	ListUncredited(ctx context.Context, limit int) ([]*domain.Delivery, error)
}
