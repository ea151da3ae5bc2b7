// Package memory is a mutex-backed implementation of the repository
// interfaces. Conditional updates and transactions behave like the
// PostgreSQL store, so services can be exercised without a database.
package memory

import (
	"context"
	"fmt"
	"sync"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

type dataset struct {
	riders            map[string]*domain.Rider
	orders            map[string]*domain.Order
	deliveries        map[string]*domain.Delivery
	earnings          map[string]*domain.Earning
	earningByDelivery map[string]string
}

func newDataset() *dataset {
	return &dataset{
		riders:            make(map[string]*domain.Rider),
		orders:            make(map[string]*domain.Order),
		deliveries:        make(map[string]*domain.Delivery),
		earnings:          make(map[string]*domain.Earning),
		earningByDelivery: make(map[string]string),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.riders {
		c.riders[k] = copyRider(v)
	}
	for k, v := range d.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range d.deliveries {
		c.deliveries[k] = copyDelivery(v)
	}
	for k, v := range d.earnings {
		c.earnings[k] = copyEarning(v)
	}
	for k, v := range d.earningByDelivery {
		c.earningByDelivery[k] = v
	}
	return c
}

// Store holds all entities in memory.
type Store struct {
	mu   sync.Mutex
	data *dataset

	// Error injection
	txErr     error
	commitErr error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// Repositories returns repositories operating outside any transaction.
func (s *Store) Repositories() repository.Repositories {
	return s.repositories(nil)
}

func (s *Store) repositories(tx *dataset) repository.Repositories {
	return repository.Repositories{
		Riders:     &riderRepo{s: s, tx: tx},
		Orders:     &orderRepo{s: s, tx: tx},
		Deliveries: &deliveryRepo{s: s, tx: tx},
		Earnings:   &earningRepo{s: s, tx: tx},
	}
}

// WithinTx runs fn against a private copy of the data and publishes the
// copy only if fn succeeds. Transactions are serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.txErr; err != nil {
		s.txErr = nil
		return err
	}

	tx := s.data.clone()
	if err := fn(s.repositories(tx)); err != nil {
		return err
	}
	s.data = tx

	if err := s.commitErr; err != nil {
		s.commitErr = nil
		return fmt.Errorf("%w: %v", repository.ErrCommitUnknown, err)
	}
	return nil
}

// FailNextTx makes the next WithinTx return err without running.
func (s *Store) FailNextTx(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txErr = err
}

// FailNextCommit makes the next successful WithinTx apply its changes but
// report an unknown commit outcome.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

// Ensure Store implements repository.TxManager.
var _ repository.TxManager = (*Store)(nil)

// with runs fn on the transaction's data, or on the shared data under the lock.
func (s *Store) with(tx *dataset, fn func(d *dataset) error) error {
	if tx != nil {
		return fn(tx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func copyRider(r *domain.Rider) *domain.Rider {
	c := *r
	return &c
}

func copyOrder(o *domain.Order) *domain.Order {
	c := *o
	if o.Items != nil {
		c.Items = append([]domain.OrderItem(nil), o.Items...)
	}
	return &c
}

func copyDelivery(d *domain.Delivery) *domain.Delivery {
	c := *d
	c.PickupTime = copyTime(d.PickupTime)
	c.DeliveryTime = copyTime(d.DeliveryTime)
	c.CancelledAt = copyTime(d.CancelledAt)
	if d.CustomerRating != nil {
		v := *d.CustomerRating
		c.CustomerRating = &v
	}
	return &c
}

func copyEarning(e *domain.Earning) *domain.Earning {
	c := *e
	c.PayoutDate = copyTime(e.PayoutDate)
	return &c
}
