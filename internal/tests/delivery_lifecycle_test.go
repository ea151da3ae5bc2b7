package tests

import (
	"context"
	"errors"
	"testing"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ──────────────────────────────────────────────
// 1. HAPPY PATH
// ──────────────────────────────────────────────

func TestDeliveryLifecycle_HappyPath(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	events := &MockPublisher{}
	h := NewHarness(t, events)

	rider := h.OnlineRider(t, "+2348000000001")
	order := h.SubmitOrder(t, 40)

	if !h.Listed(t, order.ID) {
		t.Fatal("Expected submitted order to be listed")
	}

	delivery, err := h.Coordinator.AcceptOrder(ctx, rider.ID, order.ID)
	if err != nil {
		t.Fatalf("Failed to accept order: %v", err)
	}
	if delivery.Status != domain.DeliveryStatusAssigned {
		t.Errorf("Expected status ASSIGNED, got %s", delivery.Status)
	}
	if delivery.Earnings != 6 {
		t.Errorf("Expected earnings 6, got %v", delivery.Earnings)
	}
	if h.Listed(t, order.ID) {
		t.Error("Expected accepted order to leave the listing")
	}
	if got := h.Rider(t, rider.ID); got.Availability != domain.AvailabilityBusy || got.CurrentDeliveryID != delivery.ID {
		t.Errorf("Expected rider BUSY on %s, got %s on %q", delivery.ID, got.Availability, got.CurrentDeliveryID)
	}

	for i, want := range domain.DeliverySequence[1:] {
		delivery, err = h.Lifecycle.Advance(ctx, delivery.ID, rider.ID)
		if err != nil {
			t.Fatalf("Advance %d failed: %v", i+1, err)
		}
		if delivery.Status != want {
			t.Fatalf("Advance %d: expected %s, got %s", i+1, want, delivery.Status)
		}
		if got := h.Order(t, order.ID); got.DeliveryStatus != want {
			t.Errorf("Advance %d: order mirrors %s, expected %s", i+1, got.DeliveryStatus, want)
		}
		h.AssertBusyInvariant(t, rider.ID)
	}

	if delivery.PickupTime == nil || delivery.DeliveryTime == nil {
		t.Fatal("Expected pickup and delivery times to be stamped")
	}
	if delivery.DeliveryTime.Before(*delivery.PickupTime) || delivery.PickupTime.Before(delivery.AssignedAt) {
		t.Error("Expected assigned <= pickup <= delivery")
	}

	final := h.Rider(t, rider.ID)
	if final.Availability != domain.AvailabilityOnline || final.Busy() {
		t.Errorf("Expected rider freed and ONLINE, got %s on %q", final.Availability, final.CurrentDeliveryID)
	}
	if final.DeliveryCount != 1 || final.TotalEarnings != 6 {
		t.Errorf("Expected 1 delivery and 6 earned, got %d and %v", final.DeliveryCount, final.TotalEarnings)
	}
	if got := h.Order(t, order.ID); got.Status != domain.OrderStatusDelivered {
		t.Errorf("Expected order DELIVERED, got %s", got.Status)
	}

	earning, err := h.Store.Repositories().Earnings.GetByDeliveryID(ctx, delivery.ID)
	if err != nil {
		t.Fatalf("Expected an earning for the delivery: %v", err)
	}
	if earning.Amount != 6 || earning.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("Expected PENDING earning of 6, got %s of %v", earning.PaymentStatus, earning.Amount)
	}
	if n := events.Count(domain.TableEarnings, domain.ChangeInsert); n != 1 {
		t.Errorf("Expected 1 earning insert event, got %d", n)
	}

	if _, err := h.Lifecycle.Advance(ctx, delivery.ID, rider.ID); !errors.Is(err, service.ErrDeliveryAlreadyTerminal) {
		t.Errorf("Expected ErrDeliveryAlreadyTerminal, got %v", err)
	}
	if _, err := h.Lifecycle.Cancel(ctx, service.CancelRequest{DeliveryID: delivery.ID, Reason: "late"}); !errors.Is(err, service.ErrDeliveryAlreadyTerminal) {
		t.Errorf("Expected ErrDeliveryAlreadyTerminal on cancel, got %v", err)
	}
}

// ──────────────────────────────────────────────
// 2. CANCELLATION
// ──────────────────────────────────────────────

func TestDeliveryLifecycle_CancelMidFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := NewHarness(t, nil)

	rider := h.OnlineRider(t, "+2348000000002")
	order := h.SubmitOrder(t, 25)

	delivery, err := h.Coordinator.AcceptOrder(ctx, rider.ID, order.ID)
	if err != nil {
		t.Fatalf("Failed to accept order: %v", err)
	}
	for delivery.Status != domain.DeliveryStatusPickedUp {
		if delivery, err = h.Lifecycle.Advance(ctx, delivery.ID, rider.ID); err != nil {
			t.Fatalf("Failed to advance: %v", err)
		}
	}

	cancelled, err := h.Lifecycle.Cancel(ctx, service.CancelRequest{
		DeliveryID: delivery.ID,
		Reason:     "customer unreachable",
		RiderID:    rider.ID,
	})
	if err != nil {
		t.Fatalf("Failed to cancel: %v", err)
	}
	if cancelled.Status != domain.DeliveryStatusCancelled {
		t.Errorf("Expected CANCELLED, got %s", cancelled.Status)
	}
	if cancelled.CancelReason != "customer unreachable" {
		t.Errorf("Expected cancel reason to be kept, got %q", cancelled.CancelReason)
	}
	if cancelled.CancelledAt == nil {
		t.Error("Expected cancelled_at to be stamped")
	}

	freed := h.Rider(t, rider.ID)
	if freed.Busy() || freed.Availability != domain.AvailabilityOnline {
		t.Errorf("Expected rider freed, got %s on %q", freed.Availability, freed.CurrentDeliveryID)
	}

	reopened := h.Order(t, order.ID)
	if reopened.RiderID != "" {
		t.Errorf("Expected order rider cleared, got %q", reopened.RiderID)
	}
	if !h.Listed(t, order.ID) {
		t.Error("Expected cancelled order back in the listing")
	}

	if _, err := h.Store.Repositories().Earnings.GetByDeliveryID(ctx, delivery.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected no earning for a cancelled delivery, got %v", err)
	}

	if _, err := h.Lifecycle.Cancel(ctx, service.CancelRequest{DeliveryID: delivery.ID, Reason: "again"}); !errors.Is(err, service.ErrDeliveryAlreadyTerminal) {
		t.Errorf("Expected second cancel to fail as terminal, got %v", err)
	}
}

func TestDeliveryLifecycle_ReassignAfterCancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := NewHarness(t, nil)

	first := h.OnlineRider(t, "+2348000000003")
	second := h.OnlineRider(t, "+2348000000004")
	order := h.SubmitOrder(t, 30)

	delivery, err := h.Coordinator.AcceptOrder(ctx, first.ID, order.ID)
	if err != nil {
		t.Fatalf("Failed to accept order: %v", err)
	}
	if _, err := h.Lifecycle.Cancel(ctx, service.CancelRequest{DeliveryID: delivery.ID, Reason: "bike broke"}); err != nil {
		t.Fatalf("Failed to cancel: %v", err)
	}

	again, err := h.Coordinator.AcceptOrder(ctx, second.ID, order.ID)
	if err != nil {
		t.Fatalf("Expected re-listed order to be accepted: %v", err)
	}
	if again.ID == delivery.ID {
		t.Error("Expected a new delivery for the second assignment")
	}
	if got := h.Order(t, order.ID); got.RiderID != second.ID {
		t.Errorf("Expected order assigned to %s, got %q", second.ID, got.RiderID)
	}
}

// ──────────────────────────────────────────────
// 3. AUTHORIZATION AND AVAILABILITY
// ──────────────────────────────────────────────

func TestDeliveryLifecycle_OnlyOwnerAdvances(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := NewHarness(t, nil)

	owner := h.OnlineRider(t, "+2348000000005")
	other := h.OnlineRider(t, "+2348000000006")
	order := h.SubmitOrder(t, 20)

	delivery, err := h.Coordinator.AcceptOrder(ctx, owner.ID, order.ID)
	if err != nil {
		t.Fatalf("Failed to accept order: %v", err)
	}

	if _, err := h.Lifecycle.Advance(ctx, delivery.ID, other.ID); !errors.Is(err, service.ErrNotAuthorized) {
		t.Errorf("Expected ErrNotAuthorized, got %v", err)
	}
	if _, err := h.Lifecycle.Cancel(ctx, service.CancelRequest{DeliveryID: delivery.ID, Reason: "x", RiderID: other.ID}); !errors.Is(err, service.ErrNotAuthorized) {
		t.Errorf("Expected ErrNotAuthorized on cancel, got %v", err)
	}

	got, err := h.Lifecycle.Get(ctx, delivery.ID)
	if err != nil {
		t.Fatalf("Failed to get delivery: %v", err)
	}
	if got.Status != domain.DeliveryStatusAssigned {
		t.Errorf("Expected rejected calls to leave ASSIGNED, got %s", got.Status)
	}
}

func TestDeliveryLifecycle_BusyRiderCannotToggle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := NewHarness(t, nil)

	rider := h.OnlineRider(t, "+2348000000007")
	order := h.SubmitOrder(t, 20)

	if _, err := h.Coordinator.AcceptOrder(ctx, rider.ID, order.ID); err != nil {
		t.Fatalf("Failed to accept order: %v", err)
	}

	for _, state := range []domain.Availability{domain.AvailabilityOffline, domain.AvailabilityOnline} {
		if _, err := h.Registry.SetAvailability(ctx, rider.ID, state); !errors.Is(err, service.ErrInvalidStateTransition) {
			t.Errorf("SetAvailability(%s): expected ErrInvalidStateTransition, got %v", state, err)
		}
	}
	if _, err := h.Registry.SetAvailability(ctx, rider.ID, domain.AvailabilityBusy); !errors.Is(err, service.ErrInvalidStateTransition) {
		t.Errorf("Expected BUSY to be refused, got %v", err)
	}
	if _, err := h.Registry.Deactivate(ctx, rider.ID); err == nil {
		t.Error("Expected deactivating a busy rider to fail")
	}

	if got := h.Rider(t, rider.ID); got.Availability != domain.AvailabilityBusy {
		t.Errorf("Expected rider to stay BUSY, got %s", got.Availability)
	}
	h.AssertBusyInvariant(t, rider.ID)
}

func TestDeliveryLifecycle_OfflineRiderCannotAccept(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := NewHarness(t, nil)

	rider := h.OnlineRider(t, "+2348000000008")
	if _, err := h.Registry.SetAvailability(ctx, rider.ID, domain.AvailabilityOffline); err != nil {
		t.Fatalf("Failed to go offline: %v", err)
	}
	order := h.SubmitOrder(t, 20)

	if _, err := h.Coordinator.AcceptOrder(ctx, rider.ID, order.ID); !errors.Is(err, service.ErrRiderNotAvailable) {
		t.Errorf("Expected ErrRiderNotAvailable, got %v", err)
	}
	if !h.Listed(t, order.ID) {
		t.Error("Expected order to stay listed")
	}
	if got := h.Order(t, order.ID); got.RiderID != "" {
		t.Errorf("Expected order unassigned, got %q", got.RiderID)
	}
}

func TestDeliveryLifecycle_OneDeliveryPerRider(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := NewHarness(t, nil)

	rider := h.OnlineRider(t, "+2348000000009")
	first := h.SubmitOrder(t, 20)
	second := h.SubmitOrder(t, 22)

	if _, err := h.Coordinator.AcceptOrder(ctx, rider.ID, first.ID); err != nil {
		t.Fatalf("Failed to accept first order: %v", err)
	}
	if _, err := h.Coordinator.AcceptOrder(ctx, rider.ID, second.ID); !errors.Is(err, service.ErrRiderNotAvailable) {
		t.Errorf("Expected ErrRiderNotAvailable for a second order, got %v", err)
	}
	if got := h.Order(t, second.ID); !got.Available() {
		t.Error("Expected second order to remain available")
	}
}
