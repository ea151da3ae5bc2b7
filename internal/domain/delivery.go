package domain

import "time"

// DeliveryStatus represents the current stage of a delivery.
type DeliveryStatus string

const (
	DeliveryStatusAssigned            DeliveryStatus = "ASSIGNED"
	DeliveryStatusHeadingToRestaurant DeliveryStatus = "HEADING_TO_RESTAURANT"
	DeliveryStatusArrivedAtRestaurant DeliveryStatus = "ARRIVED_AT_RESTAURANT"
	DeliveryStatusPickedUp            DeliveryStatus = "PICKED_UP"
	DeliveryStatusHeadingToCustomer   DeliveryStatus = "HEADING_TO_CUSTOMER"
	DeliveryStatusArrivedAtCustomer   DeliveryStatus = "ARRIVED_AT_CUSTOMER"
	DeliveryStatusDelivered           DeliveryStatus = "DELIVERED"
	DeliveryStatusCancelled           DeliveryStatus = "CANCELLED"
)

// DeliverySequence is the only forward path a delivery can take.
var DeliverySequence = []DeliveryStatus{
	DeliveryStatusAssigned,
	DeliveryStatusHeadingToRestaurant,
	DeliveryStatusArrivedAtRestaurant,
	DeliveryStatusPickedUp,
	DeliveryStatusHeadingToCustomer,
	DeliveryStatusArrivedAtCustomer,
	DeliveryStatusDelivered,
}

var nextDeliveryStatus = func() map[DeliveryStatus]DeliveryStatus {
	m := make(map[DeliveryStatus]DeliveryStatus, len(DeliverySequence)-1)
	for i := 0; i < len(DeliverySequence)-1; i++ {
		m[DeliverySequence[i]] = DeliverySequence[i+1]
	}
	return m
}()

// Terminal reports whether no further transition is possible.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusCancelled
}

// Valid reports whether s is a known delivery status.
func (s DeliveryStatus) Valid() bool {
	if s == DeliveryStatusCancelled {
		return true
	}
	return s.Index() >= 0
}

// Index returns the position of s in DeliverySequence, or -1.
func (s DeliveryStatus) Index() int {
	for i, st := range DeliverySequence {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the unique forward successor of s.
// ok is false for terminal or unknown statuses.
func (s DeliveryStatus) Next() (DeliveryStatus, bool) {
	next, ok := nextDeliveryStatus[s]
	return next, ok
}

// CanTransition reports whether a delivery may move from one status to another.
func CanTransition(from, to DeliveryStatus) bool {
	if from.Terminal() || !from.Valid() {
		return false
	}
	if to == DeliveryStatusCancelled {
		return true
	}
	next, ok := from.Next()
	return ok && next == to
}

// Delivery binds one order to one rider.
type Delivery struct {
	ID               string         `json:"id"`
	OrderID          string         `json:"order_id"`
	RiderID          string         `json:"rider_id"`
	Status           DeliveryStatus `json:"status"`
	AssignedAt       time.Time      `json:"assigned_at"`
	PickupTime       *time.Time     `json:"pickup_time"`
	DeliveryTime     *time.Time     `json:"delivery_time"`
	CancelledAt      *time.Time     `json:"cancelled_at"`
	Earnings         float64        `json:"earnings"` // fixed when the delivery is created
	CustomerRating   *int           `json:"customer_rating"`
	CustomerFeedback string         `json:"customer_feedback"`
	CancelReason     string         `json:"cancel_reason"`
}
