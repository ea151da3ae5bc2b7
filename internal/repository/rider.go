package repository

import (
	"context"

	"dispatch/internal/domain"
)

// RiderRepository defines the persistence operations for riders.
//
// Methods returning a bool perform a conditional update and report whether
// the condition matched.
type RiderRepository interface {
	// Create adds a new rider.
	Create(ctx context.Context, rider *domain.Rider) error

	// GetByID retrieves a rider by ID.
	GetByID(ctx context.Context, id string) (*domain.Rider, error)

	// GetByPhone retrieves a rider by phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.Rider, error)

	// GetAll retrieves all riders.
	GetAll(ctx context.Context) ([]*domain.Rider, error)

	// UpdateAvailability moves an active, unattached rider from one
	// availability to another.
	UpdateAvailability(ctx context.Context, id string, from, to domain.Availability) (bool, error)

	// Attach marks an online, unattached rider BUSY with the given delivery.
	Attach(ctx context.Context, id, deliveryID string) (bool, error)

	// Detach returns a rider attached to deliveryID to ONLINE.
	Detach(ctx context.Context, id, deliveryID string) (bool, error)

	// AddEarnings increments the delivery count and cumulative earnings.
	AddEarnings(ctx context.Context, id string, amount float64) error

	// AddRating folds a customer rating into the running average.
	AddRating(ctx context.Context, id string, rating int) error

	// Deactivate clears the active flag of an unattached rider and takes it offline.
	Deactivate(ctx context.Context, id string) (bool, error)
}
