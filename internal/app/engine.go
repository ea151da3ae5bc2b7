package app

import (
	"github.com/rs/zerolog"

	"dispatch/internal/config"
	"dispatch/internal/repository"
	"dispatch/internal/retry"
	"dispatch/internal/service"
)

// EngineDeps contains what the dispatch services are built from. Locations,
// Cache and Events may be nil.
type EngineDeps struct {
	Tx        repository.TxManager
	Repos     repository.Repositories
	Locations service.LocationStore
	Cache     service.ListingCache
	Events    service.Publisher
	Config    config.EngineConfig
	Logger    zerolog.Logger
}

// Engine groups the wired dispatch services.
type Engine struct {
	Ledger      *service.LedgerService
	Registry    *service.RegistryService
	Pool        *service.PoolService
	Coordinator *service.CoordinatorService
	Lifecycle   *service.LifecycleService
	Reconciler  *service.Reconciler
}

// NewEngine wires the services around one store.
func NewEngine(deps EngineDeps) *Engine {
	policy := RetryPolicy(deps.Config)

	ledger := service.NewLedgerService(deps.Tx, deps.Repos, service.LedgerConfig{
		CommissionRate:     deps.Config.CommissionRate,
		MinDeliveryEarning: deps.Config.MinDeliveryEarning,
	}, deps.Events, deps.Logger)
	registry := service.NewRegistryService(deps.Repos, deps.Locations, deps.Events, deps.Logger)
	pool := service.NewPoolService(deps.Repos, deps.Cache, service.PoolConfig{
		PageSize: deps.Config.PoolPageSize,
		Retry:    policy,
	}, deps.Events, deps.Logger)

	return &Engine{
		Ledger:      ledger,
		Registry:    registry,
		Pool:        pool,
		Coordinator: service.NewCoordinatorService(deps.Tx, deps.Repos, registry, ledger, pool, deps.Events, policy, deps.Logger),
		Lifecycle:   service.NewLifecycleService(deps.Tx, deps.Repos, registry, ledger, pool, deps.Events, policy, deps.Logger),
		Reconciler:  service.NewReconciler(deps.Tx, deps.Repos, registry, ledger, deps.Events, deps.Logger),
	}
}

// RetryPolicy derives the transient-failure policy from config.
func RetryPolicy(cfg config.EngineConfig) retry.Policy {
	p := retry.DefaultPolicy
	if cfg.RetryAttempts > 0 {
		p.Attempts = cfg.RetryAttempts
	}
	if cfg.RetryBaseDelay > 0 {
		p.BaseDelay = cfg.RetryBaseDelay
		p.MaxDelay = 20 * cfg.RetryBaseDelay
	}
	return p
}
