package memory

import (
	"context"
	"sort"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

type riderRepo struct {
	s  *Store
	tx *dataset
}

func (r *riderRepo) Create(ctx context.Context, rider *domain.Rider) error {
	return r.s.with(r.tx, func(d *dataset) error {
		for _, existing := range d.riders {
			if existing.ID == rider.ID || existing.AccountID == rider.AccountID ||
				(rider.Phone != "" && existing.Phone == rider.Phone) {
				return repository.ErrConflict
			}
		}
		d.riders[rider.ID] = copyRider(rider)
		return nil
	})
}

func (r *riderRepo) GetByID(ctx context.Context, id string) (*domain.Rider, error) {
	var out *domain.Rider
	err := r.s.with(r.tx, func(d *dataset) error {
		rider, ok := d.riders[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = copyRider(rider)
		return nil
	})
	return out, err
}

func (r *riderRepo) GetByPhone(ctx context.Context, phone string) (*domain.Rider, error) {
	var out *domain.Rider
	err := r.s.with(r.tx, func(d *dataset) error {
		for _, rider := range d.riders {
			if rider.Phone == phone {
				out = copyRider(rider)
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *riderRepo) GetAll(ctx context.Context) ([]*domain.Rider, error) {
	var out []*domain.Rider
	err := r.s.with(r.tx, func(d *dataset) error {
		for _, rider := range d.riders {
			out = append(out, copyRider(rider))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r *riderRepo) UpdateAvailability(ctx context.Context, id string, from, to domain.Availability) (bool, error) {
	var ok bool
	err := r.s.with(r.tx, func(d *dataset) error {
		rider, found := d.riders[id]
		if !found || rider.Availability != from || rider.Busy() || !rider.Active {
			return nil
		}
		rider.Availability = to
		ok = true
		return nil
	})
	return ok, err
}

func (r *riderRepo) Attach(ctx context.Context, id, deliveryID string) (bool, error) {
	var ok bool
	err := r.s.with(r.tx, func(d *dataset) error {
		rider, found := d.riders[id]
		if !found || rider.Availability != domain.AvailabilityOnline || rider.Busy() || !rider.Active {
			return nil
		}
		rider.Availability = domain.AvailabilityBusy
		rider.CurrentDeliveryID = deliveryID
		ok = true
		return nil
	})
	return ok, err
}

func (r *riderRepo) Detach(ctx context.Context, id, deliveryID string) (bool, error) {
	var ok bool
	err := r.s.with(r.tx, func(d *dataset) error {
		rider, found := d.riders[id]
		if !found || rider.CurrentDeliveryID != deliveryID || deliveryID == "" {
			return nil
		}
		rider.Availability = domain.AvailabilityOnline
		rider.CurrentDeliveryID = ""
		ok = true
		return nil
	})
	return ok, err
}

func (r *riderRepo) AddEarnings(ctx context.Context, id string, amount float64) error {
	return r.s.with(r.tx, func(d *dataset) error {
		rider, found := d.riders[id]
		if !found {
			return repository.ErrNotFound
		}
		rider.DeliveryCount++
		rider.TotalEarnings += amount
		return nil
	})
}

func (r *riderRepo) AddRating(ctx context.Context, id string, rating int) error {
	return r.s.with(r.tx, func(d *dataset) error {
		rider, found := d.riders[id]
		if !found {
			return repository.ErrNotFound
		}
		rider.Rating = (rider.Rating*float64(rider.RatingCount) + float64(rating)) / float64(rider.RatingCount+1)
		rider.RatingCount++
		return nil
	})
}

func (r *riderRepo) Deactivate(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.s.with(r.tx, func(d *dataset) error {
		rider, found := d.riders[id]
		if !found || rider.Busy() {
			return nil
		}
		rider.Active = false
		rider.Availability = domain.AvailabilityOffline
		ok = true
		return nil
	})
	return ok, err
}

var _ repository.RiderRepository = (*riderRepo)(nil)
