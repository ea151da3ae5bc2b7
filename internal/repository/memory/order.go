package memory

import (
	"context"
	"sort"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

type orderRepo struct {
	s  *Store
	tx *dataset
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	return r.s.with(r.tx, func(d *dataset) error {
		d.orders[order.ID] = copyOrder(order)
		return nil
	})
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.with(r.tx, func(d *dataset) error {
		order, ok := d.orders[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = copyOrder(order)
		return nil
	})
	return out, err
}

func (r *orderRepo) ListAvailable(ctx context.Context, limit int) ([]*domain.Order, error) {
	var out []*domain.Order
	err := r.s.with(r.tx, func(d *dataset) error {
		for _, order := range d.orders {
			if order.Available() {
				out = append(out, copyOrder(order))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *orderRepo) AssignRider(ctx context.Context, id, riderID string) (bool, error) {
	var ok bool
	err := r.s.with(r.tx, func(d *dataset) error {
		order, found := d.orders[id]
		if !found || !order.Available() {
			return nil
		}
		order.RiderID = riderID
		order.Status = domain.OrderStatusRiderAssigned
		order.DeliveryStatus = domain.DeliveryStatusAssigned
		ok = true
		return nil
	})
	return ok, err
}

func (r *orderRepo) ReleaseRider(ctx context.Context, id, riderID string) (bool, error) {
	var ok bool
	err := r.s.with(r.tx, func(d *dataset) error {
		order, found := d.orders[id]
		if !found || order.RiderID != riderID || riderID == "" {
			return nil
		}
		order.RiderID = ""
		order.Status = domain.OrderStatusAwaitingRider
		order.DeliveryStatus = ""
		ok = true
		return nil
	})
	return ok, err
}

func (r *orderRepo) UpdateDeliveryStatus(ctx context.Context, id string, status domain.OrderStatus, deliveryStatus domain.DeliveryStatus) error {
	return r.s.with(r.tx, func(d *dataset) error {
		order, found := d.orders[id]
		if !found {
			return repository.ErrNotFound
		}
		order.Status = status
		order.DeliveryStatus = deliveryStatus
		return nil
	})
}

var _ repository.OrderRepository = (*orderRepo)(nil)
