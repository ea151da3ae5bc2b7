package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// Granularity is the width of an earnings bucket.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

const maxBuckets = 1000

// LedgerConfig holds the earning rules.
type LedgerConfig struct {
	CommissionRate     float64 // share of the order total paid to the rider
	MinDeliveryEarning float64
}

// LedgerService records rider earnings and payouts.
type LedgerService struct {
	tx     repository.TxManager
	repos  repository.Repositories
	cfg    LedgerConfig
	events Publisher
	log    zerolog.Logger
	now    func() time.Time
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(
	tx repository.TxManager,
	repos repository.Repositories,
	cfg LedgerConfig,
	events Publisher,
	log zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		tx:     tx,
		repos:  repos,
		cfg:    cfg,
		events: publisherOrNop(events),
		log:    log.With().Str("component", "ledger").Logger(),
		now:    time.Now,
	}
}

// Estimate returns what a rider earns for delivering an order of the given total.
func (s *LedgerService) Estimate(orderTotal float64) float64 {
	earning := math.Round(orderTotal*s.cfg.CommissionRate*100) / 100
	if earning < s.cfg.MinDeliveryEarning {
		earning = s.cfg.MinDeliveryEarning
	}
	return earning
}

// Credit records the earning of a delivered delivery. Replays return the
// existing earning without touching the rider's totals.
func (s *LedgerService) Credit(ctx context.Context, deliveryID, riderID string, amount float64) (*domain.Earning, error) {
	if deliveryID == "" {
		return nil, ErrInvalidDeliveryID
	}
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	if amount < 0 {
		return nil, ErrInvalidAmount
	}

	var (
		earning *domain.Earning
		created bool
	)
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		delivery, err := repos.Deliveries.GetByID(ctx, deliveryID)
		if err != nil {
			return err
		}
		if delivery.RiderID != riderID {
			return ErrNotAuthorized
		}
		if delivery.Status != domain.DeliveryStatusDelivered {
			return ErrDeliveryNotDelivered
		}

		earning, created, err = s.credit(ctx, repos, delivery, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.publishCredit(earning)
	}
	return earning, nil
}

// credit runs inside the caller's transaction.
func (s *LedgerService) credit(ctx context.Context, repos repository.Repositories, delivery *domain.Delivery, amount float64) (*domain.Earning, bool, error) {
	accrued := s.now()
	if delivery.DeliveryTime != nil {
		accrued = *delivery.DeliveryTime
	}

	earning := &domain.Earning{
		ID:            uuid.New().String(),
		DeliveryID:    delivery.ID,
		RiderID:       delivery.RiderID,
		Amount:        amount,
		AccruedOn:     accrued,
		PaymentStatus: domain.PaymentStatusPending,
	}

	created, err := repos.Earnings.Create(ctx, earning)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := repos.Earnings.GetByDeliveryID(ctx, delivery.ID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if err := repos.Riders.AddEarnings(ctx, delivery.RiderID, amount); err != nil {
		return nil, false, err
	}
	return earning, true, nil
}

func (s *LedgerService) publishCredit(earning *domain.Earning) {
	s.events.Publish(changeEvent(domain.TableEarnings, domain.ChangeInsert, earning.ID, earning))
	s.log.Info().
		Str("delivery_id", earning.DeliveryID).
		Str("rider_id", earning.RiderID).
		Float64("amount", earning.Amount).
		Msg("earning credited")
}

// Summarize aggregates a rider's earnings accrued in [start, end).
func (s *LedgerService) Summarize(ctx context.Context, riderID string, start, end time.Time) (domain.EarningsSummary, error) {
	if riderID == "" {
		return domain.EarningsSummary{}, ErrInvalidRiderID
	}
	if !end.After(start) {
		return domain.EarningsSummary{}, ErrInvalidPeriod
	}

	earnings, err := s.repos.Earnings.ListByRider(ctx, riderID, start, end)
	if err != nil {
		return domain.EarningsSummary{}, err
	}
	return summarize(earnings), nil
}

// Buckets splits [start, end) into calendar buckets and summarizes each one.
// Buckets are aligned to the calendar in start's location and clipped to the period.
func (s *LedgerService) Buckets(ctx context.Context, riderID string, start, end time.Time, granularity Granularity) ([]domain.EarningsBucket, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	if !end.After(start) {
		return nil, ErrInvalidPeriod
	}

	bounds, err := bucketBounds(start, end, granularity)
	if err != nil {
		return nil, err
	}

	earnings, err := s.repos.Earnings.ListByRider(ctx, riderID, start, end)
	if err != nil {
		return nil, err
	}

	buckets := make([]domain.EarningsBucket, 0, len(bounds)-1)
	i := 0
	for b := 0; b < len(bounds)-1; b++ {
		lo, hi := bounds[b], bounds[b+1]
		var in []*domain.Earning
		for i < len(earnings) && earnings[i].AccruedOn.Before(hi) {
			if !earnings[i].AccruedOn.Before(lo) {
				in = append(in, earnings[i])
			}
			i++
		}
		buckets = append(buckets, domain.EarningsBucket{Start: lo, End: hi, EarningsSummary: summarize(in)})
	}
	return buckets, nil
}

// PendingTotal summarizes a rider's earnings that have not been paid out.
func (s *LedgerService) PendingTotal(ctx context.Context, riderID string) (domain.EarningsSummary, error) {
	if riderID == "" {
		return domain.EarningsSummary{}, ErrInvalidRiderID
	}

	total, count, err := s.repos.Earnings.SumByStatus(ctx, riderID, domain.PaymentStatusPending)
	if err != nil {
		return domain.EarningsSummary{}, err
	}
	return newSummary(total, count), nil
}

// RequestPayout moves every pending earning of a rider into one PROCESSING batch.
func (s *LedgerService) RequestPayout(ctx context.Context, riderID string, method domain.PayoutMethod) (*domain.Payout, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	if !method.Valid() {
		return nil, ErrInvalidPayoutMethod
	}

	payout := &domain.Payout{
		Reference:   uuid.New().String(),
		RiderID:     riderID,
		Method:      method,
		RequestedAt: s.now(),
	}

	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Riders.GetByID(ctx, riderID); err != nil {
			return err
		}

		count, total, err := repos.Earnings.MarkProcessing(ctx, riderID, method, payout.Reference)
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNoPendingEarnings
		}
		payout.Count = count
		payout.Total = math.Round(total*100) / 100
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(changeEvent(domain.TableEarnings, domain.ChangeUpdate, payout.Reference, payout))
	s.log.Info().
		Str("rider_id", riderID).
		Str("reference", payout.Reference).
		Int("count", payout.Count).
		Float64("total", payout.Total).
		Msg("payout requested")

	return payout, nil
}

// CompletePayout settles a payout batch as PAID or FAILED.
func (s *LedgerService) CompletePayout(ctx context.Context, reference string, succeeded bool) (int, error) {
	if reference == "" {
		return 0, ErrInvalidPayoutReference
	}

	status := domain.PaymentStatusFailed
	if succeeded {
		status = domain.PaymentStatusPaid
	}

	n, err := s.repos.Earnings.CompletePayout(ctx, reference, status, s.now())
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrPayoutNotFound
	}

	s.events.Publish(changeEvent(domain.TableEarnings, domain.ChangeUpdate, reference, map[string]any{
		"reference":      reference,
		"payment_status": status,
		"count":          n,
	}))
	s.log.Info().Str("reference", reference).Str("status", string(status)).Int("count", n).Msg("payout completed")

	return n, nil
}

func summarize(earnings []*domain.Earning) domain.EarningsSummary {
	var total float64
	for _, e := range earnings {
		total += e.Amount
	}
	return newSummary(total, len(earnings))
}

func newSummary(total float64, count int) domain.EarningsSummary {
	summary := domain.EarningsSummary{Total: math.Round(total*100) / 100, Count: count}
	if count > 0 {
		summary.Average = math.Round(total/float64(count)*100) / 100
	}
	return summary
}

// bucketBounds returns the edges of the buckets covering [start, end).
func bucketBounds(start, end time.Time, granularity Granularity) ([]time.Time, error) {
	var next func(time.Time) time.Time
	switch granularity {
	case GranularityDay:
		next = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	case GranularityWeek:
		next = func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }
	case GranularityMonth:
		next = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
	default:
		return nil, ErrInvalidGranularity
	}

	edge := alignBucket(start, granularity)
	bounds := []time.Time{start}
	for {
		edge = next(edge)
		if !edge.Before(end) {
			bounds = append(bounds, end)
			return bounds, nil
		}
		bounds = append(bounds, edge)
		if len(bounds) > maxBuckets {
			return nil, ErrInvalidPeriod
		}
	}
}

func alignBucket(t time.Time, granularity Granularity) time.Time {
	y, m, d := t.Date()
	switch granularity {
	case GranularityWeek:
		day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		offset := (int(day.Weekday()) + 6) % 7 // weeks start on Monday
		return day.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}
}
