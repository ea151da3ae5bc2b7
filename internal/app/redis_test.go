package app

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestKeyNamespace(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name string
		cmd  redis.Cmder
		want string
	}{
		{name: "pool cache", cmd: redis.NewStringCmd(ctx, "get", "cache:pool:available"), want: "cache"},
		{name: "idempotency", cmd: redis.NewStringCmd(ctx, "get", "idempotency:r1:POST:/v1/orders:k"), want: "idempotency"},
		{name: "no colon", cmd: redis.NewStringCmd(ctx, "get", "plain"), want: "plain"},
		{name: "script", cmd: redis.NewCmd(ctx, "evalsha", "abc123", 1, "lock:job:reconcile"), want: "script"},
		{name: "no key", cmd: redis.NewStatusCmd(ctx, "ping"), want: "redis"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, keyNamespace(tc.cmd))
		})
	}
}
