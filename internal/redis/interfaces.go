package redis

import (
	"github.com/go-co-op/gocron/v2"

	"dispatch/internal/service"
)

// Ensure concrete types implement interfaces.
var (
	_ service.LocationStore = (*LocationStore)(nil)
	_ service.ListingCache  = (*PoolCache)(nil)
	_ gocron.Locker         = (*LockStore)(nil)
)
