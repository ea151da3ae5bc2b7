package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// EarningRepository defines the persistence operations for earnings.
type EarningRepository interface {
	// Create persists a new earning. Returns false without writing if the
	// delivery already has one.
	Create(ctx context.Context, earning *domain.Earning) (bool, error)

	// GetByDeliveryID retrieves the earning of a delivery.
	GetByDeliveryID(ctx context.Context, deliveryID string) (*domain.Earning, error)

	// ListByRider returns a rider's earnings accrued in [start, end), oldest first.
	ListByRider(ctx context.Context, riderID string, start, end time.Time) ([]*domain.Earning, error)

	// SumByStatus returns the total and count of a rider's earnings in a payment status.
	SumByStatus(ctx context.Context, riderID string, status domain.PaymentStatus) (float64, int, error)

	// MarkProcessing moves every PENDING earning of a rider to PROCESSING
	// under the given payout reference.
	MarkProcessing(ctx context.Context, riderID string, method domain.PayoutMethod, reference string) (int, float64, error)

	// CompletePayout moves PROCESSING earnings of a payout to status.
	CompletePayout(ctx context.Context, reference string, status domain.PaymentStatus, at time.Time) (int, error)
}
