package service

import "errors"

var (
	// ErrRiderNotAvailable is returned when a rider is not ONLINE and unattached.
	ErrRiderNotAvailable = errors.New("rider not available")

	// ErrOrderAlreadyAssigned is returned when an order has a rider or left the pool.
	ErrOrderAlreadyAssigned = errors.New("order already assigned")

	// ErrInvalidStateTransition is returned for a transition the state machine forbids.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrDeliveryAlreadyTerminal is returned when a delivery is DELIVERED or CANCELLED.
	ErrDeliveryAlreadyTerminal = errors.New("delivery already terminal")

	// ErrInconsistentAssignmentState is returned when a rider's attachment does
	// not match the delivery being attached or detached.
	ErrInconsistentAssignmentState = errors.New("inconsistent assignment state")

	// ErrNotAuthorized is returned when the caller does not own the resource.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNoPendingEarnings is returned when a payout is requested with nothing pending.
	ErrNoPendingEarnings = errors.New("no pending earnings")

	// ErrAssignmentOutcomeUnknown is returned when an assignment commit could not
	// be confirmed. The caller should re-read the order before trying again.
	ErrAssignmentOutcomeUnknown = errors.New("assignment outcome unknown")

	// ErrRiderInactive is returned when a deactivated rider tries to work.
	ErrRiderInactive = errors.New("rider inactive")

	// ErrRiderAlreadyRegistered is returned when the account or phone is taken.
	ErrRiderAlreadyRegistered = errors.New("rider already registered")

	// ErrDeliveryNotDelivered is returned when an operation needs a DELIVERED delivery.
	ErrDeliveryNotDelivered = errors.New("delivery not delivered")

	// ErrAlreadyRated is returned when a delivery already has a customer rating.
	ErrAlreadyRated = errors.New("delivery already rated")

	// ErrStaleDelivery is returned when a delivery changed underneath an update.
	ErrStaleDelivery = errors.New("delivery changed concurrently")

	// ErrPayoutNotFound is returned when no PROCESSING earnings carry a payout reference.
	ErrPayoutNotFound = errors.New("payout not found")

	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrInvalidOrderID is returned when order ID is empty.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrInvalidDeliveryID is returned when delivery ID is empty.
	ErrInvalidDeliveryID = errors.New("invalid delivery id")

	// ErrInvalidRiderName is returned when a rider registers without a name.
	ErrInvalidRiderName = errors.New("invalid rider name")

	// ErrInvalidPhone is returned when a rider registers without a phone number.
	ErrInvalidPhone = errors.New("invalid phone")

	// ErrInvalidAvailability is returned for an unknown availability value.
	ErrInvalidAvailability = errors.New("invalid availability")

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidOrder is returned when an order is missing its restaurant, customer or address.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidOrderTotal is returned when an order total is negative.
	ErrInvalidOrderTotal = errors.New("invalid order total")

	// ErrInvalidRating is returned when a rating is outside 1..5.
	ErrInvalidRating = errors.New("invalid rating")

	// ErrInvalidAmount is returned when an earning amount is negative.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidPeriod is returned when a reporting period is empty or too long.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrInvalidGranularity is returned for an unknown bucket granularity.
	ErrInvalidGranularity = errors.New("invalid granularity")

	// ErrInvalidPayoutMethod is returned when payout method is invalid.
	ErrInvalidPayoutMethod = errors.New("invalid payout method")

	// ErrInvalidPayoutReference is returned when payout reference is empty.
	ErrInvalidPayoutReference = errors.New("invalid payout reference")
)
