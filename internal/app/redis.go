package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/config"
)

const (
	redisDialTimeout = 3 * time.Second
	redisIOTimeout   = time.Second
)

// NewRedisClient connects to Redis. With nrApp set, commands are recorded as
// datastore segments on the request's transaction.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, nrApp *newrelic.Application) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisIOTimeout,
		WriteTimeout: redisIOTimeout,
	})

	if nrApp != nil {
		client.AddHook(datastoreHook{})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}

// datastoreHook implements redis.Hook. Segments are named after the first
// key's namespace, e.g. "cache" or "idempotency".
type datastoreHook struct{}

func (datastoreHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (datastoreHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if txn := newrelic.FromContext(ctx); txn != nil {
			defer startSegment(txn, cmd.Name(), keyNamespace(cmd)).End()
		}
		return next(ctx, cmd)
	}
}

func (datastoreHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if txn := newrelic.FromContext(ctx); txn != nil && len(cmds) > 0 {
			defer startSegment(txn, "pipeline", keyNamespace(cmds[0])).End()
		}
		return next(ctx, cmds)
	}
}

func startSegment(txn *newrelic.Transaction, op, collection string) *newrelic.DatastoreSegment {
	return &newrelic.DatastoreSegment{
		StartTime:  txn.StartSegmentNow(),
		Product:    newrelic.DatastoreRedis,
		Operation:  op,
		Collection: collection,
	}
}

// keyNamespace returns the key of cmd up to its first colon.
func keyNamespace(cmd redis.Cmder) string {
	switch cmd.Name() {
	case "eval", "evalsha":
		return "script"
	}
	args := cmd.Args()
	if len(args) < 2 {
		return "redis"
	}
	key, ok := args[1].(string)
	if !ok || key == "" {
		return "redis"
	}
	if i := strings.Index(key, ":"); i > 0 {
		return key[:i]
	}
	return key
}
