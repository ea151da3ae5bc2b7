package domain

import "time"

// Availability represents whether a rider can be offered orders.
type Availability string

const (
	AvailabilityOffline Availability = "OFFLINE"
	AvailabilityOnline  Availability = "ONLINE"
	AvailabilityBusy    Availability = "BUSY"
)

// Valid reports whether a is one of the known availability states.
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityOffline, AvailabilityOnline, AvailabilityBusy:
		return true
	}
	return false
}

// Rider represents a delivery courier.
type Rider struct {
	ID                string       `json:"id"`
	AccountID         string       `json:"account_id"`
	Name              string       `json:"name"`
	Phone             string       `json:"phone"`
	Availability      Availability `json:"availability"`
	CurrentDeliveryID string       `json:"current_delivery_id"` // empty when no delivery is attached
	DeliveryCount     int          `json:"delivery_count"`
	TotalEarnings     float64      `json:"total_earnings"`
	Rating            float64      `json:"rating"`
	RatingCount       int          `json:"rating_count"`
	Active            bool         `json:"active"`
	CreatedAt         time.Time    `json:"created_at"`
}

// Busy reports whether the rider currently owns a delivery.
func (r *Rider) Busy() bool {
	return r.CurrentDeliveryID != ""
}

// Consistent reports whether the busy invariant holds:
// availability is BUSY exactly when a delivery is attached.
func (r *Rider) Consistent() bool {
	return (r.Availability == AvailabilityBusy) == r.Busy()
}
