package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dispatch/internal/app"
	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/repository/memory"
	"dispatch/internal/service"
)

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of service.LocationStore.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]domain.RiderLocation

	// Counters for verification
	UpdateCallCount int32
	RemoveCallCount int32

	// Error injection
	UpdateError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make(map[string]domain.RiderLocation),
	}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, riderID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[riderID] = domain.RiderLocation{RiderID: riderID, Lat: lat, Lng: lng, RecordedAt: time.Now()}
	return nil
}

// FindNearby returns every stored location; distance is not modelled.
func (m *MockLocationStore) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]domain.RiderLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.RiderLocation, 0, len(m.locations))
	for _, loc := range m.locations {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RiderID < out[j].RiderID })
	return out, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, riderID string) error {
	atomic.AddInt32(&m.RemoveCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, riderID)
	return nil
}

// HasLocation reports whether a position is stored for the rider.
func (m *MockLocationStore) HasLocation(riderID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[riderID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK LISTING CACHE
// ──────────────────────────────────────────────

// MockListingCache is a mock implementation of service.ListingCache.
type MockListingCache struct {
	mu     sync.Mutex
	orders []*domain.Order
	valid  bool
	gen    uint64

	// Counters for verification
	HitCount        int32
	InvalidateCount int32
	StaleSetCount   int32
}

// NewMockListingCache creates a new mock listing cache.
func NewMockListingCache() *MockListingCache {
	return &MockListingCache{}
}

func (m *MockListingCache) GetAvailable(ctx context.Context) ([]*domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.valid {
		return nil, false, nil
	}
	atomic.AddInt32(&m.HitCount, 1)
	return m.orders, true, nil
}

func (m *MockListingCache) Generation(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen, nil
}

func (m *MockListingCache) SetAvailable(ctx context.Context, orders []*domain.Order, gen uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		atomic.AddInt32(&m.StaleSetCount, 1)
		return nil
	}
	m.orders, m.valid = orders, true
	return nil
}

func (m *MockListingCache) InvalidateAvailable(ctx context.Context) error {
	atomic.AddInt32(&m.InvalidateCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders, m.valid = nil, false
	m.gen++
	return nil
}

// Valid reports whether a listing is cached.
func (m *MockListingCache) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published change events.
type MockPublisher struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (m *MockPublisher) Publish(ev domain.ChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Count returns the number of events for table and type.
func (m *MockPublisher) Count(table string, typ domain.ChangeType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.Table == table && ev.Type == typ {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────
// HARNESS
// ──────────────────────────────────────────────

// Harness is a fully wired engine over the in-memory store.
type Harness struct {
	*app.Engine
	Store     *memory.Store
	Locations *MockLocationStore
	Cache     *MockListingCache
	Events    service.Publisher
}

// NewHarness wires an engine. events may be nil.
func NewHarness(t *testing.T, events service.Publisher) *Harness {
	t.Helper()

	store := memory.NewStore()
	locations := NewMockLocationStore()
	cache := NewMockListingCache()

	engine := app.NewEngine(app.EngineDeps{
		Tx:        store,
		Repos:     store.Repositories(),
		Locations: locations,
		Cache:     cache,
		Events:    events,
		Config: config.EngineConfig{
			CommissionRate: 0.15,
			PoolPageSize:   50,
			RetryAttempts:  3,
			RetryBaseDelay: time.Millisecond,
		},
		Logger: zerolog.Nop(),
	})

	return &Harness{Engine: engine, Store: store, Locations: locations, Cache: cache, Events: events}
}

// OnlineRider registers a rider and takes it online.
func (h *Harness) OnlineRider(t *testing.T, phone string) *domain.Rider {
	t.Helper()
	ctx := context.Background()

	rider, err := h.Registry.Register(ctx, service.RegisterRiderRequest{Name: "Rider " + phone, Phone: phone})
	if err != nil {
		t.Fatalf("register rider: %v", err)
	}
	rider, err = h.Registry.SetAvailability(ctx, rider.ID, domain.AvailabilityOnline)
	if err != nil {
		t.Fatalf("rider online: %v", err)
	}
	return rider
}

// SubmitOrder adds an order to the pool.
func (h *Harness) SubmitOrder(t *testing.T, total float64) *domain.Order {
	t.Helper()

	order, err := h.Pool.Submit(context.Background(), service.SubmitOrderRequest{
		RestaurantID:    "restaurant-1",
		CustomerID:      "customer-1",
		Total:           total,
		DeliveryAddress: "4 Allen Avenue",
	})
	if err != nil {
		t.Fatalf("submit order: %v", err)
	}
	return order
}

// Rider reloads a rider.
func (h *Harness) Rider(t *testing.T, id string) *domain.Rider {
	t.Helper()
	rider, err := h.Registry.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get rider: %v", err)
	}
	return rider
}

// Order reloads an order.
func (h *Harness) Order(t *testing.T, id string) *domain.Order {
	t.Helper()
	order, err := h.Pool.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	return order
}

// Listed reports whether the order is in the available listing.
func (h *Harness) Listed(t *testing.T, orderID string) bool {
	t.Helper()
	orders, err := h.Pool.ListAvailable(context.Background())
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	for _, o := range orders {
		if o.ID == orderID {
			return true
		}
	}
	return false
}

// AssertBusyInvariant fails unless the rider is BUSY exactly when it holds a delivery.
func (h *Harness) AssertBusyInvariant(t *testing.T, riderID string) {
	t.Helper()
	rider := h.Rider(t, riderID)
	if !rider.Consistent() {
		t.Errorf("rider %s: availability %s with current delivery %q", riderID, rider.Availability, rider.CurrentDeliveryID)
	}
}
