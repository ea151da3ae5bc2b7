// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/repository"
)

// Policy controls how many times and how fast an operation is retried.
type Policy struct {
	Attempts  int           // total attempts including the first; <= 0 means 1
	BaseDelay time.Duration // delay before the second attempt
	MaxDelay  time.Duration // cap for a single delay; 0 means no cap
}

// DefaultPolicy is used when no policy is configured.
var DefaultPolicy = Policy{Attempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, repository.ErrTransient)
}

// Do calls fn until it succeeds, returns an error retryable rejects,
// attempts are exhausted, or ctx is done. It returns the last error.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt == attempts-1 {
			return err
		}

		select {
		case <-time.After(p.delay(attempt)):
		case <-ctx.Done():
			return err
		}
	}
	return err
}

func (p Policy) delay(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	d := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		return p.MaxDelay
	}
	return d
}
