package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/retry"
)

// DefaultPoolPageSize caps ListAvailable when no page size is configured.
const DefaultPoolPageSize = 50

// ListingCache fronts the pool listing. A miss returns ok == false.
//
// Every InvalidateAvailable advances the generation. SetAvailable stores the
// listing only while the generation is still gen, so a listing read before
// an invalidation is never written back after it.
type ListingCache interface {
	GetAvailable(ctx context.Context) (orders []*domain.Order, ok bool, err error)
	Generation(ctx context.Context) (uint64, error)
	SetAvailable(ctx context.Context, orders []*domain.Order, gen uint64) error
	InvalidateAvailable(ctx context.Context) error
}

// PoolConfig holds the pool listing settings.
type PoolConfig struct {
	PageSize int
	Retry    retry.Policy
}

// PoolService exposes orders waiting for a rider.
type PoolService struct {
	repos  repository.Repositories
	cache  ListingCache
	cfg    PoolConfig
	events Publisher
	log    zerolog.Logger
	now    func() time.Time
}

// NewPoolService creates a new PoolService. cache may be nil.
func NewPoolService(
	repos repository.Repositories,
	cache ListingCache,
	cfg PoolConfig,
	events Publisher,
	log zerolog.Logger,
) *PoolService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPoolPageSize
	}
	return &PoolService{
		repos:  repos,
		cache:  cache,
		cfg:    cfg,
		events: publisherOrNop(events),
		log:    log.With().Str("component", "pool").Logger(),
		now:    time.Now,
	}
}

// SubmitOrderRequest contains a restaurant-confirmed order.
type SubmitOrderRequest struct {
	RestaurantID    string
	CustomerID      string
	Total           float64
	DeliveryAddress string
	Items           []domain.OrderItem
}

// Submit puts a confirmed order into the pool.
func (s *PoolService) Submit(ctx context.Context, req SubmitOrderRequest) (*domain.Order, error) {
	if req.RestaurantID == "" || req.CustomerID == "" || req.DeliveryAddress == "" {
		return nil, ErrInvalidOrder
	}
	if req.Total < 0 {
		return nil, ErrInvalidOrderTotal
	}

	order := &domain.Order{
		ID:              uuid.New().String(),
		RestaurantID:    req.RestaurantID,
		CustomerID:      req.CustomerID,
		Total:           req.Total,
		DeliveryAddress: req.DeliveryAddress,
		Items:           req.Items,
		Status:          domain.OrderStatusAwaitingRider,
		CreatedAt:       s.now(),
	}

	if err := s.repos.Orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.Invalidate(ctx)
	s.events.Publish(changeEvent(domain.TableOrders, domain.ChangeInsert, order.ID, order))
	s.log.Info().Str("order_id", order.ID).Float64("total", order.Total).Msg("order submitted")

	return order, nil
}

// Get retrieves an order by ID.
func (s *PoolService) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return s.repos.Orders.GetByID(ctx, orderID)
}

// ListAvailable returns unassigned orders awaiting a rider, oldest first.
func (s *PoolService) ListAvailable(ctx context.Context) ([]*domain.Order, error) {
	writeBack := false
	var gen uint64
	if s.cache != nil {
		orders, ok, err := s.cache.GetAvailable(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("pool cache read failed")
		} else if ok {
			return orders, nil
		}

		// Read before the store so a concurrent invalidation wins.
		if gen, err = s.cache.Generation(ctx); err != nil {
			s.log.Warn().Err(err).Msg("pool cache generation read failed")
		} else {
			writeBack = true
		}
	}

	var orders []*domain.Order
	err := retry.Do(ctx, s.cfg.Retry, retry.IsTransient, func(ctx context.Context) error {
		var err error
		orders, err = s.repos.Orders.ListAvailable(ctx, s.cfg.PageSize)
		return err
	})
	if err != nil {
		return nil, err
	}

	if writeBack {
		if err := s.cache.SetAvailable(ctx, orders, gen); err != nil {
			s.log.Warn().Err(err).Msg("pool cache write failed")
		}
	}
	return orders, nil
}

// Remove drops an order from the visible listing. Removing an order that is
// no longer listed is a no-op.
func (s *PoolService) Remove(ctx context.Context, orderID string) error {
	if orderID == "" {
		return ErrInvalidOrderID
	}
	s.Invalidate(ctx)
	return nil
}

// Invalidate drops the cached listing.
func (s *PoolService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAvailable(ctx); err != nil {
		s.log.Warn().Err(err).Msg("pool cache invalidation failed")
	}
}
