package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// ──────────────────────────────────────────────
// 7. RIDER PRESENCE
// ──────────────────────────────────────────────

func TestRiderPresence_LocationFollowsAvailability(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := NewHarness(t, nil)

	rider := h.OnlineRider(t, "+2348700000001")

	if _, err := h.Registry.UpdateLocation(ctx, service.UpdateLocationRequest{RiderID: rider.ID, Lat: 6.5244, Lng: 3.3792}); err != nil {
		t.Fatalf("Failed to update location: %v", err)
	}
	if !h.Locations.HasLocation(rider.ID) {
		t.Fatal("Expected location stored")
	}

	nearby, err := h.Registry.Nearby(ctx, 6.52, 3.37, 5)
	if err != nil {
		t.Fatalf("Failed to find nearby riders: %v", err)
	}
	if len(nearby) != 1 || nearby[0].RiderID != rider.ID {
		t.Errorf("Expected the online rider nearby, got %+v", nearby)
	}

	if _, err := h.Registry.SetAvailability(ctx, rider.ID, domain.AvailabilityOffline); err != nil {
		t.Fatalf("Failed to go offline: %v", err)
	}
	if h.Locations.HasLocation(rider.ID) {
		t.Error("Expected location removed when going offline")
	}
	if n := atomic.LoadInt32(&h.Locations.RemoveCallCount); n != 1 {
		t.Errorf("Expected 1 remove call, got %d", n)
	}

	if _, err := h.Registry.UpdateLocation(ctx, service.UpdateLocationRequest{RiderID: rider.ID, Lat: 6.5, Lng: 3.3}); !errors.Is(err, service.ErrRiderNotAvailable) {
		t.Errorf("Expected offline rider to be refused, got %v", err)
	}
}

func TestRiderPresence_BusyRiderHiddenFromNearby(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := NewHarness(t, nil)

	busy := h.OnlineRider(t, "+2348700000002")
	free := h.OnlineRider(t, "+2348700000003")
	for _, id := range []string{busy.ID, free.ID} {
		if _, err := h.Registry.UpdateLocation(ctx, service.UpdateLocationRequest{RiderID: id, Lat: 6.5, Lng: 3.3}); err != nil {
			t.Fatalf("Failed to update location: %v", err)
		}
	}

	order := h.SubmitOrder(t, 15)
	if _, err := h.Coordinator.AcceptOrder(ctx, busy.ID, order.ID); err != nil {
		t.Fatalf("Failed to accept order: %v", err)
	}

	// Busy riders keep reporting positions.
	if _, err := h.Registry.UpdateLocation(ctx, service.UpdateLocationRequest{RiderID: busy.ID, Lat: 6.51, Lng: 3.31}); err != nil {
		t.Errorf("Expected busy rider location update to succeed, got %v", err)
	}

	nearby, err := h.Registry.Nearby(ctx, 6.5, 3.3, 5)
	if err != nil {
		t.Fatalf("Failed to find nearby riders: %v", err)
	}
	if len(nearby) != 1 || nearby[0].RiderID != free.ID {
		t.Errorf("Expected only the free rider nearby, got %+v", nearby)
	}
}

func TestRiderPresence_StoreErrorSurfaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := NewHarness(t, nil)

	rider := h.OnlineRider(t, "+2348700000004")
	h.Locations.UpdateError = errors.New("redis down")

	if _, err := h.Registry.UpdateLocation(ctx, service.UpdateLocationRequest{RiderID: rider.ID, Lat: 1, Lng: 1}); err == nil {
		t.Error("Expected location store error to surface")
	}
	if n := atomic.LoadInt32(&h.Locations.UpdateCallCount); n != 1 {
		t.Errorf("Expected 1 update call, got %d", n)
	}
}
