package postgres

import (
	"context"
	"database/sql"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// RiderRepository is a PostgreSQL implementation of repository.RiderRepository.
type RiderRepository struct {
	q    Querier
	lock bool // GetByID takes a row lock inside a transaction
}

// NewRiderRepository creates a new PostgreSQL rider repository.
func NewRiderRepository(db *sql.DB) *RiderRepository {
	return &RiderRepository{q: db}
}

// NewRiderRepositoryWithTx creates a rider repository using a transaction.
func NewRiderRepositoryWithTx(tx *sql.Tx) *RiderRepository {
	return &RiderRepository{q: tx, lock: true}
}

const riderColumns = `id, account_id, COALESCE(name, ''), COALESCE(phone, ''), availability, current_delivery_id,
	delivery_count, total_earnings, rating, rating_count, active, created_at`

// Create adds a new rider.
func (r *RiderRepository) Create(ctx context.Context, rider *domain.Rider) error {
	query := `
		INSERT INTO riders (id, account_id, name, phone, availability, current_delivery_id, delivery_count, total_earnings, rating, rating_count, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.q.ExecContext(ctx, query,
		rider.ID,
		rider.AccountID,
		rider.Name,
		rider.Phone,
		rider.Availability,
		nullString(rider.CurrentDeliveryID),
		rider.DeliveryCount,
		rider.TotalEarnings,
		rider.Rating,
		rider.RatingCount,
		rider.Active,
		rider.CreatedAt,
	)
	return classify(err)
}

// GetByID retrieves a rider by ID.
func (r *RiderRepository) GetByID(ctx context.Context, id string) (*domain.Rider, error) {
	query := `SELECT ` + riderColumns + ` FROM riders WHERE id = $1`
	if r.lock {
		query += ` FOR UPDATE`
	}
	return scanRider(r.q.QueryRowContext(ctx, query, id))
}

// GetByPhone retrieves a rider by phone number.
func (r *RiderRepository) GetByPhone(ctx context.Context, phone string) (*domain.Rider, error) {
	query := `SELECT ` + riderColumns + ` FROM riders WHERE phone = $1`
	return scanRider(r.q.QueryRowContext(ctx, query, phone))
}

// GetAll retrieves all riders.
func (r *RiderRepository) GetAll(ctx context.Context) ([]*domain.Rider, error) {
	query := `SELECT ` + riderColumns + ` FROM riders ORDER BY created_at, id`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var riders []*domain.Rider
	for rows.Next() {
		rider, err := scanRider(rows)
		if err != nil {
			return nil, err
		}
		riders = append(riders, rider)
	}
	return riders, classify(rows.Err())
}

// UpdateAvailability moves an active, unattached rider between availability states.
func (r *RiderRepository) UpdateAvailability(ctx context.Context, id string, from, to domain.Availability) (bool, error) {
	query := `
		UPDATE riders SET availability = $1
		WHERE id = $2 AND availability = $3 AND current_delivery_id IS NULL AND active
	`
	result, err := r.q.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, classify(err)
	}
	return affected(result)
}

// Attach marks an online, unattached rider BUSY with the given delivery.
func (r *RiderRepository) Attach(ctx context.Context, id, deliveryID string) (bool, error) {
	query := `
		UPDATE riders SET availability = $1, current_delivery_id = $2
		WHERE id = $3 AND availability = $4 AND current_delivery_id IS NULL AND active
	`
	result, err := r.q.ExecContext(ctx, query, domain.AvailabilityBusy, deliveryID, id, domain.AvailabilityOnline)
	if err != nil {
		return false, classify(err)
	}
	return affected(result)
}

// Detach returns a rider attached to deliveryID to ONLINE.
func (r *RiderRepository) Detach(ctx context.Context, id, deliveryID string) (bool, error) {
	query := `
		UPDATE riders SET availability = $1, current_delivery_id = NULL
		WHERE id = $2 AND current_delivery_id = $3
	`
	result, err := r.q.ExecContext(ctx, query, domain.AvailabilityOnline, id, deliveryID)
	if err != nil {
		return false, classify(err)
	}
	return affected(result)
}

// AddEarnings increments the delivery count and cumulative earnings.
func (r *RiderRepository) AddEarnings(ctx context.Context, id string, amount float64) error {
	query := `
		UPDATE riders SET delivery_count = delivery_count + 1, total_earnings = total_earnings + $1
		WHERE id = $2
	`
	result, err := r.q.ExecContext(ctx, query, amount, id)
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

// AddRating folds a customer rating into the running average.
func (r *RiderRepository) AddRating(ctx context.Context, id string, rating int) error {
	query := `
		UPDATE riders
		SET rating = (rating * rating_count + $1) / (rating_count + 1), rating_count = rating_count + 1
		WHERE id = $2
	`
	result, err := r.q.ExecContext(ctx, query, float64(rating), id)
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

// Deactivate clears the active flag of an unattached rider.
func (r *RiderRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE riders SET active = FALSE, availability = $1
		WHERE id = $2 AND current_delivery_id IS NULL
	`
	result, err := r.q.ExecContext(ctx, query, domain.AvailabilityOffline, id)
	if err != nil {
		return false, classify(err)
	}
	return affected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRider(row rowScanner) (*domain.Rider, error) {
	var rider domain.Rider
	var currentDeliveryID sql.NullString
	err := row.Scan(
		&rider.ID,
		&rider.AccountID,
		&rider.Name,
		&rider.Phone,
		&rider.Availability,
		&currentDeliveryID,
		&rider.DeliveryCount,
		&rider.TotalEarnings,
		&rider.Rating,
		&rider.RatingCount,
		&rider.Active,
		&rider.CreatedAt,
	)
	if err != nil {
		return nil, classify(err)
	}
	if currentDeliveryID.Valid {
		rider.CurrentDeliveryID = currentDeliveryID.String
	}
	return &rider, nil
}

// Ensure RiderRepository implements repository.RiderRepository.
var _ repository.RiderRepository = (*RiderRepository)(nil)
