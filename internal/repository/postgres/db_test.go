package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var riderRowColumns = []string{
	"id", "account_id", "name", "phone", "availability", "current_delivery_id",
	"delivery_count", "total_earnings", "rating", "rating_count", "active", "created_at",
}

func riderRow(id string, availability domain.Availability, deliveryID any) *sqlmock.Rows {
	return sqlmock.NewRows(riderRowColumns).
		AddRow(id, "acct-"+id, "Ada", "+2348000000001", string(availability), deliveryID,
			int64(3), 42.5, 4.5, int64(2), true, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
}

func TestTxManager_LocksRiderRows(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM riders WHERE id = $1 FOR UPDATE")).
		WithArgs("rider-1").
		WillReturnRows(riderRow("rider-1", domain.AvailabilityOnline, nil))
	mock.ExpectCommit()

	err := NewTxManager(db).WithinTx(ctx, func(repos repository.Repositories) error {
		rider, err := repos.Riders.GetByID(ctx, "rider-1")
		if err != nil {
			return err
		}
		require.Equal(t, domain.AvailabilityOnline, rider.Availability)
		require.Empty(t, rider.CurrentDeliveryID)
		return nil
	})
	require.NoError(t, err)
}

func TestRepositories_PlainReadsDoNotLock(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM riders WHERE id = $1") + "$").
		WithArgs("rider-1").
		WillReturnRows(riderRow("rider-1", domain.AvailabilityBusy, "delivery-1"))

	rider, err := NewRepositories(db).Riders.GetByID(ctx, "rider-1")
	require.NoError(t, err)
	require.Equal(t, "delivery-1", rider.CurrentDeliveryID)
	require.Equal(t, 3, rider.DeliveryCount)
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := NewTxManager(db).WithinTx(ctx, func(repository.Repositories) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}

func TestTxManager_CommitFailureIsUnknown(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset by peer"))

	err := NewTxManager(db).WithinTx(ctx, func(repository.Repositories) error {
		return nil
	})
	require.ErrorIs(t, err, repository.ErrCommitUnknown)
}

func TestTxManager_BeginFailureIsClassified(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)

	mock.ExpectBegin().WillReturnError(&pq.Error{Code: "40001"})

	called := false
	err := NewTxManager(db).WithinTx(ctx, func(repository.Repositories) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, repository.ErrTransient)
	require.False(t, called)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, repository.ErrNotFound},
		{"unique violation", &pq.Error{Code: "23505", Constraint: "riders_phone_key"}, repository.ErrConflict},
		{"serialization failure", &pq.Error{Code: "40001"}, repository.ErrTransient},
		{"deadlock", &pq.Error{Code: "40P01"}, repository.ErrTransient},
		{"connection exception", &pq.Error{Code: "08006"}, repository.ErrTransient},
		{"admin shutdown", &pq.Error{Code: "57P01"}, repository.ErrTransient},
		{"bad conn", sql.ErrConnDone, repository.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, classify(tt.err), tt.want)
		})
	}

	other := &pq.Error{Code: "23503"}
	require.Same(t, error(other), classify(other))
	require.NoError(t, classify(nil))
}
