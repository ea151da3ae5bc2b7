package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dispatch/internal/repository"
)

var fast = Policy{Attempts: 4, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, IsTransient, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: connection reset", repository.ErrTransient)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("boom")
	calls := 0
	err := Do(context.Background(), fast, IsTransient, func(ctx context.Context) error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, calls)
}

func TestDo_ReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, IsTransient, func(ctx context.Context) error {
		calls++
		return repository.ErrTransient
	})
	require.ErrorIs(t, err, repository.ErrTransient)
	require.Equal(t, fast.Attempts, calls)
}

func TestDo_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Policy{Attempts: 5, BaseDelay: time.Hour}, IsTransient, func(ctx context.Context) error {
		calls++
		return repository.ErrTransient
	})
	require.ErrorIs(t, err, repository.ErrTransient)
	require.Equal(t, 1, calls)
}

func TestPolicy_DelayIsCapped(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
	require.Equal(t, 100*time.Millisecond, p.delay(0))
	require.Equal(t, 200*time.Millisecond, p.delay(1))
	require.Equal(t, 300*time.Millisecond, p.delay(2))
	require.Equal(t, 300*time.Millisecond, p.delay(40))
}
