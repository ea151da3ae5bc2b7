package memory

import (
	"context"
	"sort"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

type earningRepo struct {
	s  *Store
	tx *dataset
}

func (r *earningRepo) Create(ctx context.Context, earning *domain.Earning) (bool, error) {
	var ok bool
	err := r.s.with(r.tx, func(d *dataset) error {
		if _, exists := d.earningByDelivery[earning.DeliveryID]; exists {
			return nil
		}
		d.earnings[earning.ID] = copyEarning(earning)
		d.earningByDelivery[earning.DeliveryID] = earning.ID
		ok = true
		return nil
	})
	return ok, err
}

func (r *earningRepo) GetByDeliveryID(ctx context.Context, deliveryID string) (*domain.Earning, error) {
	var out *domain.Earning
	err := r.s.with(r.tx, func(d *dataset) error {
		id, ok := d.earningByDelivery[deliveryID]
		if !ok {
			return repository.ErrNotFound
		}
		out = copyEarning(d.earnings[id])
		return nil
	})
	return out, err
}

func (r *earningRepo) ListByRider(ctx context.Context, riderID string, start, end time.Time) ([]*domain.Earning, error) {
	var out []*domain.Earning
	err := r.s.with(r.tx, func(d *dataset) error {
		for _, e := range d.earnings {
			if e.RiderID != riderID || e.AccruedOn.Before(start) || !e.AccruedOn.Before(end) {
				continue
			}
			out = append(out, copyEarning(e))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccruedOn.Equal(out[j].AccruedOn) {
			return out[i].ID < out[j].ID
		}
		return out[i].AccruedOn.Before(out[j].AccruedOn)
	})
	return out, err
}

func (r *earningRepo) SumByStatus(ctx context.Context, riderID string, status domain.PaymentStatus) (float64, int, error) {
	var total float64
	var count int
	err := r.s.with(r.tx, func(d *dataset) error {
		for _, e := range d.earnings {
			if e.RiderID == riderID && e.PaymentStatus == status {
				total += e.Amount
				count++
			}
		}
		return nil
	})
	return total, count, err
}

func (r *earningRepo) MarkProcessing(ctx context.Context, riderID string, method domain.PayoutMethod, reference string) (int, float64, error) {
	var total float64
	var count int
	err := r.s.with(r.tx, func(d *dataset) error {
		for _, e := range d.earnings {
			if e.RiderID != riderID || e.PaymentStatus != domain.PaymentStatusPending {
				continue
			}
			e.PaymentStatus = domain.PaymentStatusProcessing
			e.PayoutMethod = method
			e.PayoutReference = reference
			total += e.Amount
			count++
		}
		return nil
	})
	return count, total, err
}

func (r *earningRepo) CompletePayout(ctx context.Context, reference string, status domain.PaymentStatus, at time.Time) (int, error) {
	var count int
	err := r.s.with(r.tx, func(d *dataset) error {
		for _, e := range d.earnings {
			if e.PayoutReference != reference || e.PaymentStatus != domain.PaymentStatusProcessing {
				continue
			}
			e.PaymentStatus = status
			if status == domain.PaymentStatusPaid {
				paid := at
				e.PayoutDate = &paid
			}
			count++
		}
		return nil
	})
	return count, err
}

var _ repository.EarningRepository = (*earningRepo)(nil)
