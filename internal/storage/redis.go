package storage

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var _ Storage = (*RedisStorage)(nil)

type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage wraps an existing client. Close closes the client.
func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{
		client: client,
	}
}

type NewRedisClientParams struct {
	Host           string
	Port           string
	Password       string
	DB             int
	TracingEnabled bool
}

func NewRedisClient(ctx context.Context, params NewRedisClientParams) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Host, params.Port),
		Password: params.Password,
		DB:       params.DB,
	})

	if params.TracingEnabled {
		rdb.AddHook(redisotel.NewTracingHook())
	}

	// not fatal: hydration will just come up empty and writes will be retried
	// with every next mutation
	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	return rdb
}

func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

func (r *RedisStorage) Get(ctx context.Context, key string) (_ []byte, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "storage.redis.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("key", key))

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get [%s]: %w", key, err)
	}
	return []byte(val), nil
}

func (r *RedisStorage) Set(ctx context.Context, key string, value []byte) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "storage.redis.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("key", key))

	if err := r.client.Set(ctx, key, string(value), 0).Err(); err != nil {
		return fmt.Errorf("redis set [%s]: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
