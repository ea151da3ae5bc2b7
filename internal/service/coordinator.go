package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/retry"
)

// CoordinatorService turns a rider's acceptance of a pooled order into a delivery.
type CoordinatorService struct {
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

// NewCoordinatorService creates a new CoordinatorService.
func NewCoordinatorService(
	tx repository.TxManager,
	repos repository.Repositories,
	registry *RegistryService,
	ledger *LedgerService,
	pool *PoolService,
	events Publisher,
	policy retry.Policy,
	log zerolog.Logger,
) *CoordinatorService {
	return &CoordinatorService{
		tx:       tx,
		repos:    repos,
		registry: registry,
		ledger:   ledger,
		pool:     pool,
		events:   publisherOrNop(events),
		policy:   policy,
		log:      log.With().Str("component", "coordinator").Logger(),
		now:      time.Now,
	}
}

// AcceptOrder assigns an order to a rider. Of any number of concurrent
// accepts for the same order exactly one succeeds; the rest get
// ErrOrderAlreadyAssigned.
func (s *CoordinatorService) AcceptOrder(ctx context.Context, riderID, orderID string) (*domain.Delivery, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	var (
		delivery *domain.Delivery
		order    *domain.Order
		rider    *domain.Rider
	)
	err := retry.Do(ctx, s.policy, retryBeforeCommit, func(ctx context.Context) error {
		var err error
		delivery, order, rider, err = s.accept(ctx, riderID, orderID)
		return err
	})
	if errors.Is(err, repository.ErrCommitUnknown) {
		s.log.Error().Err(err).
			Str("rider_id", riderID).
			Str("order_id", orderID).
			Msg("assignment commit outcome unknown")
		return nil, fmt.Errorf("%w: %v", ErrAssignmentOutcomeUnknown, err)
	}
	if err != nil {
		return nil, err
	}

	if err := s.pool.Remove(ctx, orderID); err != nil {
		s.log.Warn().Err(err).Str("order_id", orderID).Msg("failed to remove order from pool")
	}

	s.events.Publish(changeEvent(domain.TableOrders, domain.ChangeUpdate, order.ID, order))
	s.events.Publish(changeEvent(domain.TableDeliveries, domain.ChangeInsert, delivery.ID, delivery))
	s.events.Publish(changeEvent(domain.TableRiders, domain.ChangeUpdate, rider.ID, rider))
	s.log.Info().
		Str("delivery_id", delivery.ID).
		Str("rider_id", riderID).
		Str("order_id", orderID).
		Float64("earnings", delivery.Earnings).
		Msg("order accepted")

	return delivery, nil
}

func (s *CoordinatorService) accept(ctx context.Context, riderID, orderID string) (*domain.Delivery, *domain.Order, *domain.Rider, error) {
	rider, err := s.repos.Riders.GetByID(ctx, riderID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !rider.Active {
		return nil, nil, nil, ErrRiderInactive
	}
	if rider.Availability != domain.AvailabilityOnline || rider.Busy() {
		return nil, nil, nil, ErrRiderNotAvailable
	}

	order, err := s.repos.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !order.Available() {
		return nil, nil, nil, ErrOrderAlreadyAssigned
	}

	delivery := &domain.Delivery{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		RiderID:    riderID,
		Status:     domain.DeliveryStatusAssigned,
		AssignedAt: s.now(),
		Earnings:   s.ledger.Estimate(order.Total),
	}

	err = s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		// Re-check under the transaction; a concurrent accept may hold the rider.
		current, err := repos.Riders.GetByID(ctx, riderID)
		if err != nil {
			return err
		}
		if current.Availability != domain.AvailabilityOnline || current.Busy() {
			return ErrRiderNotAvailable
		}

		ok, err := repos.Orders.AssignRider(ctx, orderID, riderID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderAlreadyAssigned
		}

		if err := s.registry.attach(ctx, repos, riderID, delivery.ID); err != nil {
			return err
		}

		if err := repos.Deliveries.Create(ctx, delivery); err != nil {
			return err
		}

		if err := repos.Orders.UpdateDeliveryStatus(ctx, orderID, domain.OrderStatusRiderAssigned, delivery.Status); err != nil {
			return err
		}

		order, err = repos.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		rider, err = repos.Riders.GetByID(ctx, riderID)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return delivery, order, rider, nil
}

// retryBeforeCommit retries transient failures unless a commit may already
// have been applied.
func retryBeforeCommit(err error) bool {
	return retry.IsTransient(err) && !errors.Is(err, repository.ErrCommitUnknown)
}
