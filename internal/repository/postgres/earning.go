package postgres

import (
	"context"
	"database/sql"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// EarningRepository is a PostgreSQL implementation of repository.EarningRepository.
type EarningRepository struct {
	q Querier
}

// NewEarningRepository creates a new PostgreSQL earning repository.
func NewEarningRepository(db *sql.DB) *EarningRepository {
	return &EarningRepository{q: db}
}

// NewEarningRepositoryWithTx creates an earning repository using a transaction.
func NewEarningRepositoryWithTx(tx *sql.Tx) *EarningRepository {
	return &EarningRepository{q: tx}
}

const earningColumns = `id, delivery_id, rider_id, amount, accrued_on, payment_status, payout_date,
	COALESCE(payout_method, ''), COALESCE(payout_reference, '')`

// Create persists a new earning unless the delivery already has one.
func (r *EarningRepository) Create(ctx context.Context, e *domain.Earning) (bool, error) {
	query := `
		INSERT INTO earnings (id, delivery_id, rider_id, amount, accrued_on, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (delivery_id) DO NOTHING
	`
	result, err := r.q.ExecContext(ctx, query,
		e.ID,
		e.DeliveryID,
		e.RiderID,
		e.Amount,
		e.AccruedOn,
		e.PaymentStatus,
	)
	if err != nil {
		return false, classify(err)
	}
	return affected(result)
}

// GetByDeliveryID retrieves the earning of a delivery.
func (r *EarningRepository) GetByDeliveryID(ctx context.Context, deliveryID string) (*domain.Earning, error) {
	query := `SELECT ` + earningColumns + ` FROM earnings WHERE delivery_id = $1`
	return scanEarning(r.q.QueryRowContext(ctx, query, deliveryID))
}

// ListByRider returns a rider's earnings accrued in [start, end), oldest first.
func (r *EarningRepository) ListByRider(ctx context.Context, riderID string, start, end time.Time) ([]*domain.Earning, error) {
	query := `
		SELECT ` + earningColumns + `
		FROM earnings
		WHERE rider_id = $1 AND accrued_on >= $2 AND accrued_on < $3
		ORDER BY accrued_on ASC, id ASC
	`
	rows, err := r.q.QueryContext(ctx, query, riderID, start, end)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var earnings []*domain.Earning
	for rows.Next() {
		e, err := scanEarning(rows)
		if err != nil {
			return nil, err
		}
		earnings = append(earnings, e)
	}
	return earnings, classify(rows.Err())
}

// SumByStatus returns the total and count of a rider's earnings in a payment status.
func (r *EarningRepository) SumByStatus(ctx context.Context, riderID string, status domain.PaymentStatus) (float64, int, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM earnings
		WHERE rider_id = $1 AND payment_status = $2
	`
	var total float64
	var count int
	if err := r.q.QueryRowContext(ctx, query, riderID, status).Scan(&total, &count); err != nil {
		return 0, 0, classify(err)
	}
	return total, count, nil
}

// MarkProcessing moves every PENDING earning of a rider to PROCESSING.
func (r *EarningRepository) MarkProcessing(ctx context.Context, riderID string, method domain.PayoutMethod, reference string) (int, float64, error) {
	query := `
		WITH moved AS (
			UPDATE earnings
			SET payment_status = $1, payout_method = $2, payout_reference = $3
			WHERE rider_id = $4 AND payment_status = $5
			RETURNING amount
		)
		SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM moved
	`
	var count int
	var total float64
	err := r.q.QueryRowContext(ctx, query,
		domain.PaymentStatusProcessing,
		method,
		reference,
		riderID,
		domain.PaymentStatusPending,
	).Scan(&count, &total)
	if err != nil {
		return 0, 0, classify(err)
	}
	return count, total, nil
}

// CompletePayout moves PROCESSING earnings of a payout to status.
func (r *EarningRepository) CompletePayout(ctx context.Context, reference string, status domain.PaymentStatus, at time.Time) (int, error) {
	query := `
		UPDATE earnings
		SET payment_status = $1,
			payout_date = CASE WHEN $1::text = 'PAID' THEN $2 ELSE payout_date END
		WHERE payout_reference = $3 AND payment_status = $4
	`
	result, err := r.q.ExecContext(ctx, query, status, at, reference, domain.PaymentStatusProcessing)
	if err != nil {
		return 0, classify(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, classify(err)
	}
	return int(n), nil
}

func scanEarning(row rowScanner) (*domain.Earning, error) {
	var e domain.Earning
	var payoutDate sql.NullTime

	err := row.Scan(
		&e.ID,
		&e.DeliveryID,
		&e.RiderID,
		&e.Amount,
		&e.AccruedOn,
		&e.PaymentStatus,
		&payoutDate,
		&e.PayoutMethod,
		&e.PayoutReference,
	)
	if err != nil {
		return nil, classify(err)
	}
	e.PayoutDate = timePtr(payoutDate)
	return &e, nil
}

// Ensure EarningRepository implements repository.EarningRepository.
var _ repository.EarningRepository = (*EarningRepository)(nil)
