package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// DeliveryRepository is a PostgreSQL implementation of repository.DeliveryRepository.
type DeliveryRepository struct {
	q Querier
}

// NewDeliveryRepository creates a new PostgreSQL delivery repository.
func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{q: db}
}

// NewDeliveryRepositoryWithTx creates a delivery repository using a transaction.
func NewDeliveryRepositoryWithTx(tx *sql.Tx) *DeliveryRepository {
	return &DeliveryRepository{q: tx}
}

const deliveryColumns = `id, order_id, rider_id, status, assigned_at, pickup_time, delivery_time, cancelled_at,
	earnings, customer_rating, COALESCE(customer_feedback, ''), COALESCE(cancel_reason, '')`

// Create persists a new delivery.
func (r *DeliveryRepository) Create(ctx context.Context, d *domain.Delivery) error {
	query := `
		INSERT INTO deliveries (id, order_id, rider_id, status, assigned_at, pickup_time, delivery_time, cancelled_at, earnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.q.ExecContext(ctx, query,
		d.ID,
		d.OrderID,
		d.RiderID,
		d.Status,
		d.AssignedAt,
		nullTime(d.PickupTime),
		nullTime(d.DeliveryTime),
		nullTime(d.CancelledAt),
		d.Earnings,
	)
	return classify(err)
}

// GetByID retrieves a delivery by ID.
func (r *DeliveryRepository) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`
	return scanDelivery(r.q.QueryRowContext(ctx, query, id))
}

// GetActiveByRiderID retrieves the non-terminal delivery of a rider.
// Returns nil if no active delivery exists.
func (r *DeliveryRepository) GetActiveByRiderID(ctx context.Context, riderID string) (*domain.Delivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM deliveries
		WHERE rider_id = $1 AND status NOT IN ($2, $3)
		ORDER BY assigned_at DESC
		LIMIT 1
	`
	d, err := scanDelivery(r.q.QueryRowContext(ctx, query, riderID, domain.DeliveryStatusDelivered, domain.DeliveryStatusCancelled))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return d, err
}

// UpdateStatus writes status, timestamps and cancel reason if the stored
// status is still from. Timestamps already set are never overwritten.
func (r *DeliveryRepository) UpdateStatus(ctx context.Context, d *domain.Delivery, from domain.DeliveryStatus) (bool, error) {
	query := `
		UPDATE deliveries
		SET status = $1,
			pickup_time = COALESCE(pickup_time, $2),
			delivery_time = COALESCE(delivery_time, $3),
			cancelled_at = COALESCE(cancelled_at, $4),
			cancel_reason = COALESCE(cancel_reason, $5)
		WHERE id = $6 AND status = $7
	`
	result, err := r.q.ExecContext(ctx, query,
		d.Status,
		nullTime(d.PickupTime),
		nullTime(d.DeliveryTime),
		nullTime(d.CancelledAt),
		nullString(d.CancelReason),
		d.ID,
		from,
	)
	if err != nil {
		return false, classify(err)
	}
	return affected(result)
}

// SetRating records the customer rating of a delivered, unrated delivery.
func (r *DeliveryRepository) SetRating(ctx context.Context, id string, rating int, feedback string) (bool, error) {
	query := `
		UPDATE deliveries SET customer_rating = $1, customer_feedback = $2
		WHERE id = $3 AND status = $4 AND customer_rating IS NULL
	`
	result, err := r.q.ExecContext(ctx, query, rating, nullString(feedback), id, domain.DeliveryStatusDelivered)
	if err != nil {
		return false, classify(err)
	}
	return affected(result)
}

// ListUncredited returns delivered deliveries without an earning.
func (r *DeliveryRepository) ListUncredited(ctx context.Context, limit int) ([]*domain.Delivery, error) {
	query := `
		SELECT d.id, d.order_id, d.rider_id, d.status, d.assigned_at, d.pickup_time, d.delivery_time, d.cancelled_at,
			d.earnings, d.customer_rating, COALESCE(d.customer_feedback, ''), COALESCE(d.cancel_reason, '')
		FROM deliveries d
		LEFT JOIN earnings e ON e.delivery_id = d.id
		WHERE d.status = $1 AND e.id IS NULL
		ORDER BY d.delivery_time ASC
		LIMIT $2
	`
	rows, err := r.q.QueryContext(ctx, query, domain.DeliveryStatusDelivered, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var deliveries []*domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, classify(rows.Err())
}

func scanDelivery(row rowScanner) (*domain.Delivery, error) {
	var d domain.Delivery
	var pickupTime, deliveryTime, cancelledAt sql.NullTime
	var rating sql.NullInt64

	err := row.Scan(
		&d.ID,
		&d.OrderID,
		&d.RiderID,
		&d.Status,
		&d.AssignedAt,
		&pickupTime,
		&deliveryTime,
		&cancelledAt,
		&d.Earnings,
		&rating,
		&d.CustomerFeedback,
		&d.CancelReason,
	)
	if err != nil {
		return nil, classify(err)
	}

	d.PickupTime = timePtr(pickupTime)
	d.DeliveryTime = timePtr(deliveryTime)
	d.CancelledAt = timePtr(cancelledAt)
	if rating.Valid {
		v := int(rating.Int64)
		d.CustomerRating = &v
	}
	return &d, nil
}

// Ensure DeliveryRepository implements repository.DeliveryRepository.
var _ repository.DeliveryRepository = (*DeliveryRepository)(nil)
