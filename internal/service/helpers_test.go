package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/repository/memory"
	"dispatch/internal/retry"
)

var fastRetry = retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (p *recordingPublisher) Publish(ev domain.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) count(table string, typ domain.ChangeType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Table == table && ev.Type == typ {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeLocations struct {
	mu      sync.Mutex
	byRider map[string][2]float64
	err     error
}

func newFakeLocations() *fakeLocations {
	return &fakeLocations{byRider: make(map[string][2]float64)}
}

func (f *fakeLocations) UpdateLocation(ctx context.Context, riderID string, lat, lng float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.byRider[riderID] = [2]float64{lat, lng}
	return nil
}

func (f *fakeLocations) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]domain.RiderLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RiderLocation, 0, len(f.byRider))
	for id, pos := range f.byRider {
		out = append(out, domain.RiderLocation{RiderID: id, Lat: pos[0], Lng: pos[1]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RiderID < out[j].RiderID })
	return out, nil
}

func (f *fakeLocations) RemoveLocation(ctx context.Context, riderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byRider, riderID)
	return nil
}

func (f *fakeLocations) has(riderID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byRider[riderID]
	return ok
}

type engine struct {
	store       *memory.Store
	events      *recordingPublisher
	clock       *fakeClock
	locations   *fakeLocations
	ledger      *LedgerService
	registry    *RegistryService
	pool        *PoolService
	coordinator *CoordinatorService
	lifecycle   *LifecycleService
	reconciler  *Reconciler
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	store := memory.NewStore()
	repos := store.Repositories()
	events := &recordingPublisher{}
	clock := newFakeClock()
	locations := newFakeLocations()
	log := zerolog.Nop()

	e := &engine{store: store, events: events, clock: clock, locations: locations}
	e.ledger = NewLedgerService(store, repos, LedgerConfig{CommissionRate: 0.15}, events, log)
	e.registry = NewRegistryService(repos, locations, events, log)
	e.pool = NewPoolService(repos, nil, PoolConfig{PageSize: 10, Retry: fastRetry}, events, log)
	e.coordinator = NewCoordinatorService(store, repos, e.registry, e.ledger, e.pool, events, fastRetry, log)
	e.lifecycle = NewLifecycleService(store, repos, e.registry, e.ledger, e.pool, events, fastRetry, log)
	e.reconciler = NewReconciler(store, repos, e.registry, e.ledger, events, log)

	e.ledger.now = clock.Now
	e.registry.now = clock.Now
	e.pool.now = clock.Now
	e.coordinator.now = clock.Now
	e.lifecycle.now = clock.Now

	return e
}

func (e *engine) onlineRider(t *testing.T, phone string) *domain.Rider {
	t.Helper()
	ctx := context.Background()

	rider, err := e.registry.Register(ctx, RegisterRiderRequest{Name: "Rider " + phone, Phone: phone})
	require.NoError(t, err)

	rider, err = e.registry.SetAvailability(ctx, rider.ID, domain.AvailabilityOnline)
	require.NoError(t, err)
	return rider
}

func (e *engine) submitOrder(t *testing.T, total float64) *domain.Order {
	t.Helper()

	order, err := e.pool.Submit(context.Background(), SubmitOrderRequest{
		RestaurantID:    "restaurant-1",
		CustomerID:      "customer-1",
		Total:           total,
		DeliveryAddress: "12 Market Street",
		Items:           []domain.OrderItem{{Name: "Jollof", Quantity: 2, Price: total / 2}},
	})
	require.NoError(t, err)

	e.clock.Advance(time.Second)
	return order
}

func (e *engine) rider(t *testing.T, id string) *domain.Rider {
	t.Helper()
	rider, err := e.registry.Get(context.Background(), id)
	require.NoError(t, err)
	return rider
}

func (e *engine) order(t *testing.T, id string) *domain.Order {
	t.Helper()
	order, err := e.pool.Get(context.Background(), id)
	require.NoError(t, err)
	return order
}

// advanceTo advances the delivery until it reaches status.
func (e *engine) advanceTo(t *testing.T, delivery *domain.Delivery, status domain.DeliveryStatus) *domain.Delivery {
	t.Helper()
	for delivery.Status != status {
		e.clock.Advance(time.Minute)
		var err error
		delivery, err = e.lifecycle.Advance(context.Background(), delivery.ID, delivery.RiderID)
		require.NoError(t, err)
	}
	return delivery
}
