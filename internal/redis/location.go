package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"dispatch/internal/domain"
)

const riderLocationKey = "riders:locations"

// LocationStore handles rider location operations in Redis.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a rider's location using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, riderID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, riderLocationKey, &redis.GeoLocation{
		Name:      riderID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearby returns riders within the given radius (in kilometers), nearest first.
func (s *LocationStore) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]domain.RiderLocation, error) {
	results, err := s.client.GeoSearchLocation(ctx, riderLocationKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]domain.RiderLocation, 0, len(results))
	for _, r := range results {
		locations = append(locations, domain.RiderLocation{
			RiderID:    r.Name,
			Lat:        r.Latitude,
			Lng:        r.Longitude,
			DistanceKm: r.Dist,
		})
	}

	return locations, nil
}

// RemoveLocation removes a rider's location from the geo index.
func (s *LocationStore) RemoveLocation(ctx context.Context, riderID string) error {
	return s.client.ZRem(ctx, riderLocationKey, riderID).Err()
}
