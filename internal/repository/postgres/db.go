package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/lib/pq"

	"dispatch/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// NewRepositories creates repositories bound to the connection pool.
func NewRepositories(db *sql.DB) repository.Repositories {
	return repository.Repositories{
		Riders:     NewRiderRepository(db),
		Orders:     NewOrderRepository(db),
		Deliveries: NewDeliveryRepository(db),
		Earnings:   NewEarningRepository(db),
	}
}

// txRepositories creates repositories bound to tx. Rider reads lock the row
// until the transaction ends.
func txRepositories(tx *sql.Tx) repository.Repositories {
	return repository.Repositories{
		Riders:     NewRiderRepositoryWithTx(tx),
		Orders:     NewOrderRepositoryWithTx(tx),
		Deliveries: NewDeliveryRepositoryWithTx(tx),
		Earnings:   NewEarningRepositoryWithTx(tx),
	}
}

// TxManager is a PostgreSQL implementation of repository.TxManager.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx runs fn inside a transaction.
func (m *TxManager) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(txRepositories(tx)); err != nil {
		return err
	}

	if cerr := tx.Commit(); cerr != nil {
		// The rollback in the deferred func is a no-op after Commit.
		err = fmt.Errorf("%w: %v", repository.ErrCommitUnknown, cerr)
		return err
	}
	return nil
}

var _ repository.TxManager = (*TxManager)(nil)

// classify maps driver errors to repository errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %v", repository.ErrTransient, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		return fmt.Errorf("%w: %s", repository.ErrConflict, pqErr.Constraint)
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08": // connection exception
			return true
		case pqErr.Code == "40001", pqErr.Code == "40P01": // serialization failure, deadlock
			return true
		case pqErr.Code == "57P01": // admin shutdown
			return true
		}
	}
	return false
}

// affected reports whether an exec touched at least one row.
func affected(result sql.Result) (bool, error) {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, classify(err)
	}
	return rowsAffected > 0, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
