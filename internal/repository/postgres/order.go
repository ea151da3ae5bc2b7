package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	q Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{q: db}
}

// NewOrderRepositoryWithTx creates an order repository using a transaction.
func NewOrderRepositoryWithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{q: tx}
}

const orderColumns = `id, restaurant_id, customer_id, total, delivery_address, items, status, rider_id, delivery_status, created_at`

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, restaurant_id, customer_id, total, delivery_address, items, status, rider_id, delivery_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	_, err = r.q.ExecContext(ctx, query,
		order.ID,
		order.RestaurantID,
		order.CustomerID,
		order.Total,
		order.DeliveryAddress,
		items,
		order.Status,
		nullString(order.RiderID),
		nullString(string(order.DeliveryStatus)),
		order.CreatedAt,
	)
	return classify(err)
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(r.q.QueryRowContext(ctx, query, id))
}

// ListAvailable returns unassigned orders awaiting a rider, oldest first.
func (r *OrderRepository) ListAvailable(ctx context.Context, limit int) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE rider_id IS NULL AND status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`
	rows, err := r.q.QueryContext(ctx, query, domain.OrderStatusAwaitingRider, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, classify(rows.Err())
}

// AssignRider sets the order's rider if it has none and is awaiting a rider.
// This is the single conditional write that decides an assignment race.
func (r *OrderRepository) AssignRider(ctx context.Context, id, riderID string) (bool, error) {
	query := `
		UPDATE orders SET rider_id = $1, status = $2, delivery_status = $3
		WHERE id = $4 AND rider_id IS NULL AND status = $5
	`
	result, err := r.q.ExecContext(ctx, query,
		riderID,
		domain.OrderStatusRiderAssigned,
		domain.DeliveryStatusAssigned,
		id,
		domain.OrderStatusAwaitingRider,
	)
	if err != nil {
		return false, classify(err)
	}
	return affected(result)
}

// ReleaseRider clears the order's rider and re-lists it.
func (r *OrderRepository) ReleaseRider(ctx context.Context, id, riderID string) (bool, error) {
	query := `
		UPDATE orders SET rider_id = NULL, status = $1, delivery_status = NULL
		WHERE id = $2 AND rider_id = $3
	`
	result, err := r.q.ExecContext(ctx, query, domain.OrderStatusAwaitingRider, id, riderID)
	if err != nil {
		return false, classify(err)
	}
	return affected(result)
}

// UpdateDeliveryStatus mirrors a delivery's status onto the order.
func (r *OrderRepository) UpdateDeliveryStatus(ctx context.Context, id string, status domain.OrderStatus, deliveryStatus domain.DeliveryStatus) error {
	query := `UPDATE orders SET status = $1, delivery_status = $2 WHERE id = $3`

	result, err := r.q.ExecContext(ctx, query, status, deliveryStatus, id)
	if err != nil {
		return classify(err)
	}
	ok, err := affected(result)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var items []byte
	var riderID, deliveryStatus sql.NullString

	err := row.Scan(
		&order.ID,
		&order.RestaurantID,
		&order.CustomerID,
		&order.Total,
		&order.DeliveryAddress,
		&items,
		&order.Status,
		&riderID,
		&deliveryStatus,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, classify(err)
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &order.Items); err != nil {
			return nil, fmt.Errorf("decode order items: %w", err)
		}
	}
	if riderID.Valid {
		order.RiderID = riderID.String
	}
	if deliveryStatus.Valid {
		order.DeliveryStatus = domain.DeliveryStatus(deliveryStatus.String)
	}
	return &order, nil
}

// Ensure OrderRepository implements repository.OrderRepository.
var _ repository.OrderRepository = (*OrderRepository)(nil)
