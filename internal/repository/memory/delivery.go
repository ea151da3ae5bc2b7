package memory

import (
	"context"
	"sort"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

type deliveryRepo struct {
	s  *Store
	tx *dataset
}

func (r *deliveryRepo) Create(ctx context.Context, delivery *domain.Delivery) error {
	return r.s.with(r.tx, func(d *dataset) error {
		d.deliveries[delivery.ID] = copyDelivery(delivery)
		return nil
	})
}

func (r *deliveryRepo) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	var out *domain.Delivery
	err := r.s.with(r.tx, func(d *dataset) error {
		delivery, ok := d.deliveries[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = copyDelivery(delivery)
		return nil
	})
	return out, err
}

func (r *deliveryRepo) GetActiveByRiderID(ctx context.Context, riderID string) (*domain.Delivery, error) {
	var out *domain.Delivery
	err := r.s.with(r.tx, func(d *dataset) error {
		for _, delivery := range d.deliveries {
			if delivery.RiderID == riderID && !delivery.Status.Terminal() {
				out = copyDelivery(delivery)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *deliveryRepo) UpdateStatus(ctx context.Context, delivery *domain.Delivery, from domain.DeliveryStatus) (bool, error) {
	var ok bool
	err := r.s.with(r.tx, func(d *dataset) error {
		stored, found := d.deliveries[delivery.ID]
		if !found || stored.Status != from {
			return nil
		}
		stored.Status = delivery.Status
		stored.PickupTime = firstTime(stored.PickupTime, delivery.PickupTime)
		stored.DeliveryTime = firstTime(stored.DeliveryTime, delivery.DeliveryTime)
		stored.CancelledAt = firstTime(stored.CancelledAt, delivery.CancelledAt)
		if stored.CancelReason == "" {
			stored.CancelReason = delivery.CancelReason
		}
		ok = true
		return nil
	})
	return ok, err
}

func (r *deliveryRepo) SetRating(ctx context.Context, id string, rating int, feedback string) (bool, error) {
	var ok bool
	err := r.s.with(r.tx, func(d *dataset) error {
		stored, found := d.deliveries[id]
		if !found || stored.Status != domain.DeliveryStatusDelivered || stored.CustomerRating != nil {
			return nil
		}
		v := rating
		stored.CustomerRating = &v
		stored.CustomerFeedback = feedback
		ok = true
		return nil
	})
	return ok, err
}

func (r *deliveryRepo) ListUncredited(ctx context.Context, limit int) ([]*domain.Delivery, error) {
	var out []*domain.Delivery
	err := r.s.with(r.tx, func(d *dataset) error {
		for _, delivery := range d.deliveries {
			if delivery.Status != domain.DeliveryStatusDelivered {
				continue
			}
			if _, credited := d.earningByDelivery[delivery.ID]; credited {
				continue
			}
			out = append(out, copyDelivery(delivery))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

var _ repository.DeliveryRepository = (*deliveryRepo)(nil)
