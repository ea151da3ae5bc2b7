package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/retry"
)

// LifecycleService drives deliveries through their status sequence.
type LifecycleService struct {
	tx       repository.TxManager
	repos    repository.Repositories
	registry *RegistryService
	ledger   *LedgerService
	pool     *PoolService
	events   Publisher
	policy   retry.Policy
	log      zerolog.Logger
	now      func() time.Time
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(
	tx repository.TxManager,
	repos repository.Repositories,
	registry *RegistryService,
	ledger *LedgerService,
	pool *PoolService,
	events Publisher,
	policy retry.Policy,
	log zerolog.Logger,
) *LifecycleService {
	return &LifecycleService{
		tx:       tx,
		repos:    repos,
		registry: registry,
		ledger:   ledger,
		pool:     pool,
		events:   publisherOrNop(events),
		policy:   policy,
		log:      log.With().Str("component", "lifecycle").Logger(),
		now:      time.Now,
	}
}

// Get retrieves a delivery by ID.
func (s *LifecycleService) Get(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	if deliveryID == "" {
		return nil, ErrInvalidDeliveryID
	}
	return s.repos.Deliveries.GetByID(ctx, deliveryID)
}

// GetActive returns the rider's non-terminal delivery, or nil.
func (s *LifecycleService) GetActive(ctx context.Context, riderID string) (*domain.Delivery, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	return s.repos.Deliveries.GetActiveByRiderID(ctx, riderID)
}

// committed is what a successful transition publishes.
type committed struct {
	delivery *domain.Delivery
	order    *domain.Order
	rider    *domain.Rider
	earning  *domain.Earning
}

// Advance moves a delivery one step forward. Reaching DELIVERED frees the
// rider, completes the order and credits the earning in one transaction.
func (s *LifecycleService) Advance(ctx context.Context, deliveryID, riderID string) (*domain.Delivery, error) {
	if deliveryID == "" {
		return nil, ErrInvalidDeliveryID
	}
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}

	var target domain.DeliveryStatus
	c, err := s.retryTransition(ctx, func(ctx context.Context) (*committed, error) {
		delivery, err := s.repos.Deliveries.GetByID(ctx, deliveryID)
		if err != nil {
			return nil, err
		}
		if delivery.RiderID != riderID {
			return nil, ErrNotAuthorized
		}
		if target != "" && delivery.Status == target {
			// An earlier attempt committed.
			return &committed{delivery: delivery}, nil
		}
		if delivery.Status.Terminal() {
			return nil, ErrDeliveryAlreadyTerminal
		}

		next, ok := delivery.Status.Next()
		if !ok {
			return nil, ErrInvalidStateTransition
		}
		if target != "" && next != target {
			return nil, ErrStaleDelivery
		}
		target = next

		return s.advance(ctx, delivery, next)
	})
	if err != nil {
		return nil, err
	}

	s.publish(c)
	s.log.Info().
		Str("delivery_id", deliveryID).
		Str("rider_id", riderID).
		Str("status", string(c.delivery.Status)).
		Msg("delivery advanced")

	return c.delivery, nil
}

func (s *LifecycleService) advance(ctx context.Context, delivery *domain.Delivery, next domain.DeliveryStatus) (*committed, error) {
	from := delivery.Status
	if !domain.CanTransition(from, next) {
		return nil, ErrInvalidStateTransition
	}

	updated := *delivery
	updated.Status = next
	now := s.stamp(delivery)
	switch next {
	case domain.DeliveryStatusPickedUp:
		if updated.PickupTime == nil {
			updated.PickupTime = &now
		}
	case domain.DeliveryStatusDelivered:
		updated.DeliveryTime = &now
	}

	orderStatus := domain.OrderStatusRiderAssigned
	if next == domain.DeliveryStatusDelivered {
		orderStatus = domain.OrderStatusDelivered
	}

	c := &committed{}
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		ok, err := repos.Deliveries.UpdateStatus(ctx, &updated, from)
		if err != nil {
			return err
		}
		if !ok {
			return ErrStaleDelivery
		}

		if err := repos.Orders.UpdateDeliveryStatus(ctx, delivery.OrderID, orderStatus, next); err != nil {
			return err
		}

		if next == domain.DeliveryStatusDelivered {
			if err := s.registry.detach(ctx, repos, delivery.RiderID, delivery.ID); err != nil {
				return err
			}
			earning, created, err := s.ledger.credit(ctx, repos, &updated, updated.Earnings)
			if err != nil {
				return err
			}
			if created {
				c.earning = earning
			}
		}

		return s.reload(ctx, repos, delivery, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CancelRequest contains the parameters for cancelling a delivery.
type CancelRequest struct {
	DeliveryID string
	Reason     string
	RiderID    string // empty when cancelled by operations
}

// Cancel stops a non-terminal delivery. The rider is freed and the order
// goes back to the pool.
func (s *LifecycleService) Cancel(ctx context.Context, req CancelRequest) (*domain.Delivery, error) {
	if req.DeliveryID == "" {
		return nil, ErrInvalidDeliveryID
	}

	attempted := false
	c, err := s.retryTransition(ctx, func(ctx context.Context) (*committed, error) {
		delivery, err := s.repos.Deliveries.GetByID(ctx, req.DeliveryID)
		if err != nil {
			return nil, err
		}
		if req.RiderID != "" && delivery.RiderID != req.RiderID {
			return nil, ErrNotAuthorized
		}
		if attempted && delivery.Status == domain.DeliveryStatusCancelled {
			return &committed{delivery: delivery}, nil
		}
		if delivery.Status.Terminal() {
			return nil, ErrDeliveryAlreadyTerminal
		}
		attempted = true

		return s.cancel(ctx, delivery, req.Reason)
	})
	if err != nil {
		return nil, err
	}

	s.pool.Invalidate(ctx)
	s.publish(c)
	s.log.Info().
		Str("delivery_id", req.DeliveryID).
		Str("rider_id", c.delivery.RiderID).
		Str("reason", req.Reason).
		Msg("delivery cancelled")

	return c.delivery, nil
}

func (s *LifecycleService) cancel(ctx context.Context, delivery *domain.Delivery, reason string) (*committed, error) {
	from := delivery.Status
	updated := *delivery
	updated.Status = domain.DeliveryStatusCancelled
	now := s.stamp(delivery)
	updated.CancelledAt = &now
	updated.CancelReason = reason

	c := &committed{}
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		ok, err := repos.Deliveries.UpdateStatus(ctx, &updated, from)
		if err != nil {
			return err
		}
		if !ok {
			return ErrStaleDelivery
		}

		if err := s.registry.detach(ctx, repos, delivery.RiderID, delivery.ID); err != nil {
			return err
		}

		released, err := repos.Orders.ReleaseRider(ctx, delivery.OrderID, delivery.RiderID)
		if err != nil {
			return err
		}
		if !released {
			s.log.Error().
				Str("delivery_id", delivery.ID).
				Str("order_id", delivery.OrderID).
				Str("rider_id", delivery.RiderID).
				Msg("cancelled delivery's order is not held by its rider")
			return ErrInconsistentAssignmentState
		}

		return s.reload(ctx, repos, delivery, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// RateRequest contains a customer's rating of a delivery.
type RateRequest struct {
	DeliveryID string
	CustomerID string // checked against the order when set
	Rating     int
	Feedback   string
}

// Rate records the customer's rating of a delivered delivery, once.
func (s *LifecycleService) Rate(ctx context.Context, req RateRequest) (*domain.Delivery, error) {
	if req.DeliveryID == "" {
		return nil, ErrInvalidDeliveryID
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrInvalidRating
	}

	delivery, err := s.repos.Deliveries.GetByID(ctx, req.DeliveryID)
	if err != nil {
		return nil, err
	}
	if req.CustomerID != "" {
		order, err := s.repos.Orders.GetByID(ctx, delivery.OrderID)
		if err != nil {
			return nil, err
		}
		if order.CustomerID != req.CustomerID {
			return nil, ErrNotAuthorized
		}
	}
	if delivery.Status != domain.DeliveryStatusDelivered {
		return nil, ErrDeliveryNotDelivered
	}
	if delivery.CustomerRating != nil {
		return nil, ErrAlreadyRated
	}

	c := &committed{}
	err = s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		ok, err := repos.Deliveries.SetRating(ctx, delivery.ID, req.Rating, req.Feedback)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyRated
		}
		if err := repos.Riders.AddRating(ctx, delivery.RiderID, req.Rating); err != nil {
			return err
		}

		if c.delivery, err = repos.Deliveries.GetByID(ctx, delivery.ID); err != nil {
			return err
		}
		c.rider, err = repos.Riders.GetByID(ctx, delivery.RiderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(c)
	s.log.Info().Str("delivery_id", delivery.ID).Int("rating", req.Rating).Msg("delivery rated")

	return c.delivery, nil
}

// retryTransition retries fn on transient failures. A commit with an unknown
// outcome is retried too: fn re-reads the delivery and recognises its own write.
func (s *LifecycleService) retryTransition(ctx context.Context, fn func(ctx context.Context) (*committed, error)) (*committed, error) {
	var c *committed
	err := retry.Do(ctx, s.policy, func(err error) bool {
		return retry.IsTransient(err) || errors.Is(err, repository.ErrCommitUnknown)
	}, func(ctx context.Context) error {
		var err error
		c, err = fn(ctx)
		return err
	})
	return c, err
}

func (s *LifecycleService) reload(ctx context.Context, repos repository.Repositories, delivery *domain.Delivery, c *committed) error {
	var err error
	if c.delivery, err = repos.Deliveries.GetByID(ctx, delivery.ID); err != nil {
		return err
	}
	if c.order, err = repos.Orders.GetByID(ctx, delivery.OrderID); err != nil {
		return err
	}
	c.rider, err = repos.Riders.GetByID(ctx, delivery.RiderID)
	return err
}

// stamp returns the current time, never earlier than the delivery's last stamp.
func (s *LifecycleService) stamp(delivery *domain.Delivery) time.Time {
	now := s.now()
	last := delivery.AssignedAt
	if delivery.PickupTime != nil && delivery.PickupTime.After(last) {
		last = *delivery.PickupTime
	}
	if now.Before(last) {
		return last
	}
	return now
}

func (s *LifecycleService) publish(c *committed) {
	if c.order != nil {
		s.events.Publish(changeEvent(domain.TableOrders, domain.ChangeUpdate, c.order.ID, c.order))
	}
	if c.delivery != nil {
		s.events.Publish(changeEvent(domain.TableDeliveries, domain.ChangeUpdate, c.delivery.ID, c.delivery))
	}
	if c.rider != nil {
		s.events.Publish(changeEvent(domain.TableRiders, domain.ChangeUpdate, c.rider.ID, c.rider))
	}
	if c.earning != nil {
		s.ledger.publishCredit(c.earning)
	}
}
