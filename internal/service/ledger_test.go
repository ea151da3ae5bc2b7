package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/repository/memory"
)

func TestEstimate(t *testing.T) {
	testCases := []struct {
		name  string
		cfg   LedgerConfig
		total float64
		want  float64
	}{
		{name: "commission", cfg: LedgerConfig{CommissionRate: 0.15}, total: 40, want: 6},
		{name: "rounded to cents", cfg: LedgerConfig{CommissionRate: 0.1}, total: 33.33, want: 3.33},
		{name: "floor applies", cfg: LedgerConfig{CommissionRate: 0.15, MinDeliveryEarning: 2.5}, total: 10, want: 2.5},
		{name: "zero total", cfg: LedgerConfig{CommissionRate: 0.15}, total: 0, want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.NewStore()
			ledger := NewLedgerService(store, store.Repositories(), tc.cfg, nil, zerolog.Nop())
			require.InDelta(t, tc.want, ledger.Estimate(tc.total), 0.0001)
		})
	}
}

func deliveredDelivery(t *testing.T, e *engine, phone string, total float64) *domain.Delivery {
	t.Helper()
	rider := e.onlineRider(t, phone)
	order := e.submitOrder(t, total)

	delivery, err := e.coordinator.AcceptOrder(context.Background(), rider.ID, order.ID)
	require.NoError(t, err)
	return e.advanceTo(t, delivery, domain.DeliveryStatusDelivered)
}

func TestCredit_IsIdempotent(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	delivery := deliveredDelivery(t, e, "0801", 40)

	first, err := e.store.Repositories().Earnings.GetByDeliveryID(ctx, delivery.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := e.ledger.Credit(ctx, delivery.ID, delivery.RiderID, delivery.Earnings)
		require.NoError(t, err)
		require.Equal(t, first.ID, again.ID)
	}

	r := e.rider(t, delivery.RiderID)
	require.Equal(t, 1, r.DeliveryCount)
	require.InDelta(t, 6.0, r.TotalEarnings, 0.001)
	require.Equal(t, 1, e.events.count(domain.TableEarnings, domain.ChangeInsert))
}

func TestCredit_Validation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	rider := e.onlineRider(t, "0801")
	order := e.submitOrder(t, 40)

	delivery, err := e.coordinator.AcceptOrder(ctx, rider.ID, order.ID)
	require.NoError(t, err)

	_, err = e.ledger.Credit(ctx, delivery.ID, rider.ID, delivery.Earnings)
	require.ErrorIs(t, err, ErrDeliveryNotDelivered)

	_, err = e.ledger.Credit(ctx, delivery.ID, "other", delivery.Earnings)
	require.ErrorIs(t, err, ErrNotAuthorized)

	_, err = e.ledger.Credit(ctx, delivery.ID, rider.ID, -1)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSummarizeAndBuckets(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	rider := e.onlineRider(t, "0801")
	for i := 0; i < 3; i++ {
		order := e.submitOrder(t, 20*float64(i+1))
		delivery, err := e.coordinator.AcceptOrder(ctx, rider.ID, order.ID)
		require.NoError(t, err)
		e.advanceTo(t, delivery, domain.DeliveryStatusDelivered)
		e.clock.Advance(24 * time.Hour)
	}

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	summary, err := e.ledger.Summarize(ctx, rider.ID, start, end)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Count)
	require.InDelta(t, 18.0, summary.Total, 0.001) // 3 + 6 + 9
	require.InDelta(t, 6.0, summary.Average, 0.001)

	days, err := e.ledger.Buckets(ctx, rider.ID, start, end, GranularityDay)
	require.NoError(t, err)
	require.Len(t, days, 31)
	require.Equal(t, 1, days[3].Count, "first delivery on March 4")
	require.Equal(t, 1, days[4].Count)
	require.Equal(t, 1, days[5].Count)
	require.Zero(t, days[6].Count)

	weeks, err := e.ledger.Buckets(ctx, rider.ID, start, end, GranularityWeek)
	require.NoError(t, err)
	require.Equal(t, start, weeks[0].Start)
	require.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), weeks[0].End, "weeks start on Monday")
	require.Equal(t, 3, weeks[1].Count)
	require.Equal(t, end, weeks[len(weeks)-1].End)

	months, err := e.ledger.Buckets(ctx, rider.ID, start, end, GranularityMonth)
	require.NoError(t, err)
	require.Len(t, months, 1)
	require.InDelta(t, 18.0, months[0].Total, 0.001)

	_, err = e.ledger.Buckets(ctx, rider.ID, start, end, "hour")
	require.ErrorIs(t, err, ErrInvalidGranularity)

	_, err = e.ledger.Summarize(ctx, rider.ID, end, start)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestPayoutFlow(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	delivery := deliveredDelivery(t, e, "0801", 40)

	pending, err := e.ledger.PendingTotal(ctx, delivery.RiderID)
	require.NoError(t, err)
	require.Equal(t, 1, pending.Count)
	require.InDelta(t, 6.0, pending.Total, 0.001)

	_, err = e.ledger.RequestPayout(ctx, delivery.RiderID, "CHEQUE")
	require.ErrorIs(t, err, ErrInvalidPayoutMethod)

	payout, err := e.ledger.RequestPayout(ctx, delivery.RiderID, domain.PayoutMethodMobileMoney)
	require.NoError(t, err)
	require.NotEmpty(t, payout.Reference)
	require.Equal(t, 1, payout.Count)
	require.InDelta(t, 6.0, payout.Total, 0.001)

	_, err = e.ledger.RequestPayout(ctx, delivery.RiderID, domain.PayoutMethodMobileMoney)
	require.ErrorIs(t, err, ErrNoPendingEarnings)

	pending, err = e.ledger.PendingTotal(ctx, delivery.RiderID)
	require.NoError(t, err)
	require.Zero(t, pending.Count)

	n, err := e.ledger.CompletePayout(ctx, payout.Reference, true)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	earning, err := e.store.Repositories().Earnings.GetByDeliveryID(ctx, delivery.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPaid, earning.PaymentStatus)
	require.Equal(t, domain.PayoutMethodMobileMoney, earning.PayoutMethod)
	require.NotNil(t, earning.PayoutDate)

	_, err = e.ledger.CompletePayout(ctx, payout.Reference, true)
	require.ErrorIs(t, err, ErrPayoutNotFound)
}
