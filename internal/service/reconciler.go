package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const defaultReconcileBatch = 100

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Credited int `json:"credited"`
	Detached int `json:"detached"`
	Failed   int `json:"failed"`
}

// Reconciler repairs state a crash between steps could leave behind:
// delivered deliveries without an earning and riders still attached to a
// finished delivery.
type Reconciler struct {
	tx       repository.TxManager
	repos    repository.Repositories
	registry *RegistryService
	ledger   *LedgerService
	events   Publisher
	batch    int
	log      zerolog.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(
	tx repository.TxManager,
	repos repository.Repositories,
	registry *RegistryService,
	ledger *LedgerService,
	events Publisher,
	log zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		tx:       tx,
		repos:    repos,
		registry: registry,
		ledger:   ledger,
		events:   publisherOrNop(events),
		batch:    defaultReconcileBatch,
		log:      log.With().Str("component", "reconciler").Logger(),
	}
}

// Run performs one pass.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	deliveries, err := r.repos.Deliveries.ListUncredited(ctx, r.batch)
	if err != nil {
		return report, err
	}
	for _, d := range deliveries {
		if _, err := r.ledger.Credit(ctx, d.ID, d.RiderID, d.Earnings); err != nil {
			r.log.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to credit delivery")
			report.Failed++
			continue
		}
		r.log.Warn().Str("delivery_id", d.ID).Str("rider_id", d.RiderID).Msg("credited uncredited delivery")
		report.Credited++
	}

	riders, err := r.repos.Riders.GetAll(ctx)
	if err != nil {
		return report, err
	}
	for _, rider := range riders {
		if rider.Consistent() && !rider.Busy() {
			continue
		}
		detached, err := r.release(ctx, rider)
		if err != nil {
			r.log.Error().Err(err).Str("rider_id", rider.ID).Msg("failed to release rider")
			report.Failed++
			continue
		}
		if detached {
			report.Detached++
		}
	}

	if report.Credited > 0 || report.Detached > 0 || report.Failed > 0 {
		r.log.Info().
			Int("credited", report.Credited).
			Int("detached", report.Detached).
			Int("failed", report.Failed).
			Msg("reconciliation pass finished")
	}
	return report, nil
}

// release detaches a rider whose delivery is finished.
func (r *Reconciler) release(ctx context.Context, rider *domain.Rider) (bool, error) {
	if !rider.Busy() {
		r.log.Error().
			Str("rider_id", rider.ID).
			Str("availability", string(rider.Availability)).
			Msg("rider busy without a delivery")
		return false, ErrInconsistentAssignmentState
	}

	delivery, err := r.repos.Deliveries.GetByID(ctx, rider.CurrentDeliveryID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	if delivery != nil && !delivery.Status.Terminal() {
		return false, nil
	}

	var updated *domain.Rider
	err = r.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := r.registry.detach(ctx, repos, rider.ID, rider.CurrentDeliveryID); err != nil {
			return err
		}
		var err error
		updated, err = repos.Riders.GetByID(ctx, rider.ID)
		return err
	})
	if err != nil {
		return false, err
	}

	r.events.Publish(changeEvent(domain.TableRiders, domain.ChangeUpdate, updated.ID, updated))
	r.log.Warn().
		Str("rider_id", rider.ID).
		Str("delivery_id", rider.CurrentDeliveryID).
		Msg("released rider attached to finished delivery")
	return true, nil
}
