package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// LocationStore keeps the latest reported position of online riders.
type LocationStore interface {
	UpdateLocation(ctx context.Context, riderID string, lat, lng float64) error
	FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]domain.RiderLocation, error)
	RemoveLocation(ctx context.Context, riderID string) error
}

// RegistryService tracks riders and their availability.
type RegistryService struct {
	repos     repository.Repositories
	locations LocationStore
	events    Publisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewRegistryService creates a new RegistryService. locations may be nil.
func NewRegistryService(
	repos repository.Repositories,
	locations LocationStore,
	events Publisher,
	log zerolog.Logger,
) *RegistryService {
	return &RegistryService{
		repos:     repos,
		locations: locations,
		events:    publisherOrNop(events),
		log:       log.With().Str("component", "registry").Logger(),
		now:       time.Now,
	}
}

// RegisterRiderRequest contains the parameters for registering a rider.
type RegisterRiderRequest struct {
	AccountID string
	Name      string
	Phone     string
}

// Register creates an OFFLINE rider.
func (s *RegistryService) Register(ctx context.Context, req RegisterRiderRequest) (*domain.Rider, error) {
	if req.Name == "" {
		return nil, ErrInvalidRiderName
	}
	if req.Phone == "" {
		return nil, ErrInvalidPhone
	}

	rider := &domain.Rider{
		ID:           uuid.New().String(),
		AccountID:    req.AccountID,
		Name:         req.Name,
		Phone:        req.Phone,
		Availability: domain.AvailabilityOffline,
		Active:       true,
		CreatedAt:    s.now(),
	}
	if rider.AccountID == "" {
		rider.AccountID = rider.ID
	}

	if err := s.repos.Riders.Create(ctx, rider); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrRiderAlreadyRegistered
		}
		return nil, err
	}

	s.events.Publish(changeEvent(domain.TableRiders, domain.ChangeInsert, rider.ID, rider))
	s.log.Info().Str("rider_id", rider.ID).Msg("rider registered")

	return rider, nil
}

// Get retrieves a rider by ID.
func (s *RegistryService) Get(ctx context.Context, riderID string) (*domain.Rider, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	return s.repos.Riders.GetByID(ctx, riderID)
}

// List retrieves all riders.
func (s *RegistryService) List(ctx context.Context) ([]*domain.Rider, error) {
	return s.repos.Riders.GetAll(ctx)
}

// GetAvailability returns the rider's current availability.
func (s *RegistryService) GetAvailability(ctx context.Context, riderID string) (domain.Availability, error) {
	rider, err := s.Get(ctx, riderID)
	if err != nil {
		return "", err
	}
	return rider.Availability, nil
}

// SetAvailability moves a rider between OFFLINE and ONLINE. BUSY is owned by
// the assignment flow and cannot be entered or left here.
func (s *RegistryService) SetAvailability(ctx context.Context, riderID string, state domain.Availability) (*domain.Rider, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	if !state.Valid() {
		return nil, ErrInvalidAvailability
	}
	if state == domain.AvailabilityBusy {
		return nil, ErrInvalidStateTransition
	}

	rider, err := s.repos.Riders.GetByID(ctx, riderID)
	if err != nil {
		return nil, err
	}
	if !rider.Active {
		return nil, ErrRiderInactive
	}
	if rider.Availability == state {
		return rider, nil
	}
	if rider.Availability == domain.AvailabilityBusy || rider.Busy() {
		return nil, ErrInvalidStateTransition
	}

	ok, err := s.repos.Riders.UpdateAvailability(ctx, riderID, rider.Availability, state)
	if err != nil {
		return nil, err
	}

	current, err := s.repos.Riders.GetByID(ctx, riderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race: succeed only if someone else already made the same move.
		if current.Availability == state {
			return current, nil
		}
		return nil, ErrInvalidStateTransition
	}

	if state == domain.AvailabilityOffline {
		s.removeLocation(ctx, riderID)
	}

	s.events.Publish(changeEvent(domain.TableRiders, domain.ChangeUpdate, current.ID, current))
	s.log.Info().
		Str("rider_id", riderID).
		Str("from", string(rider.Availability)).
		Str("to", string(state)).
		Msg("rider availability changed")

	return current, nil
}

// Deactivate takes an unattached rider offline for good.
func (s *RegistryService) Deactivate(ctx context.Context, riderID string) (*domain.Rider, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}

	ok, err := s.repos.Riders.Deactivate(ctx, riderID)
	if err != nil {
		return nil, err
	}

	rider, err := s.repos.Riders.GetByID(ctx, riderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRiderNotAvailable
	}

	s.removeLocation(ctx, riderID)
	s.events.Publish(changeEvent(domain.TableRiders, domain.ChangeUpdate, rider.ID, rider))
	s.log.Info().Str("rider_id", riderID).Msg("rider deactivated")

	return rider, nil
}

// UpdateLocationRequest contains a rider's position report.
type UpdateLocationRequest struct {
	RiderID string
	Lat     float64
	Lng     float64
}

// UpdateLocation records the position of an online or busy rider.
func (s *RegistryService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) (*domain.RiderLocation, error) {
	if req.RiderID == "" {
		return nil, ErrInvalidRiderID
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		return nil, ErrInvalidLocation
	}

	rider, err := s.repos.Riders.GetByID(ctx, req.RiderID)
	if err != nil {
		return nil, err
	}
	if !rider.Active {
		return nil, ErrRiderInactive
	}
	if rider.Availability == domain.AvailabilityOffline {
		return nil, ErrRiderNotAvailable
	}

	if s.locations != nil {
		if err := s.locations.UpdateLocation(ctx, req.RiderID, req.Lat, req.Lng); err != nil {
			return nil, err
		}
	}

	return &domain.RiderLocation{
		RiderID:    req.RiderID,
		Lat:        req.Lat,
		Lng:        req.Lng,
		RecordedAt: s.now(),
	}, nil
}

// Nearby returns ONLINE riders within radiusKm of a point, nearest first.
func (s *RegistryService) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]domain.RiderLocation, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 || radiusKm <= 0 {
		return nil, ErrInvalidLocation
	}
	if s.locations == nil {
		return []domain.RiderLocation{}, nil
	}

	locations, err := s.locations.FindNearby(ctx, lat, lng, radiusKm)
	if err != nil {
		return nil, err
	}

	online := make([]domain.RiderLocation, 0, len(locations))
	for _, loc := range locations {
		rider, err := s.repos.Riders.GetByID(ctx, loc.RiderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if rider.Active && rider.Availability == domain.AvailabilityOnline {
			online = append(online, loc)
		}
	}
	return online, nil
}

func (s *RegistryService) removeLocation(ctx context.Context, riderID string) {
	if s.locations == nil {
		return
	}
	if err := s.locations.RemoveLocation(ctx, riderID); err != nil {
		s.log.Warn().Err(err).Str("rider_id", riderID).Msg("failed to remove rider location")
	}
}

// attach marks the rider BUSY with the delivery. It runs inside the caller's
// transaction.
func (s *RegistryService) attach(ctx context.Context, repos repository.Repositories, riderID, deliveryID string) error {
	ok, err := repos.Riders.Attach(ctx, riderID, deliveryID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	rider, err := repos.Riders.GetByID(ctx, riderID)
	if err != nil {
		return err
	}
	if !rider.Active {
		return ErrRiderInactive
	}
	if !rider.Busy() {
		return ErrRiderNotAvailable
	}

	s.log.Error().
		Str("rider_id", riderID).
		Str("delivery_id", deliveryID).
		Str("current_delivery_id", rider.CurrentDeliveryID).
		Msg("attach to rider that already owns a delivery")
	return ErrInconsistentAssignmentState
}

// detach frees the rider from the delivery. It runs inside the caller's
// transaction.
func (s *RegistryService) detach(ctx context.Context, repos repository.Repositories, riderID, deliveryID string) error {
	ok, err := repos.Riders.Detach(ctx, riderID, deliveryID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	current := ""
	if rider, err := repos.Riders.GetByID(ctx, riderID); err == nil {
		current = rider.CurrentDeliveryID
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	s.log.Error().
		Str("rider_id", riderID).
		Str("delivery_id", deliveryID).
		Str("current_delivery_id", current).
		Msg("detach from rider not attached to delivery")
	return ErrInconsistentAssignmentState
}
