package domain

import "time"

// RiderLocation is a position report from a rider's device.
type RiderLocation struct {
	RiderID    string    `json:"rider_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	DistanceKm float64   `json:"distance_km,omitempty"` // set by nearby searches
	RecordedAt time.Time `json:"recorded_at"`
}
