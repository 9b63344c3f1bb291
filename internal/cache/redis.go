package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/perch/internal/domain"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "perch:"

// RedisCache implements domain.Cache using Redis.
// Used as the Pro tier cache and as L2 in two-phase caching.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a value. Returns nil, nil on a miss.
func (c *RedisCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	val, err := c.client.Get(ctx, redisKey(tenantID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value with TTL.
func (c *RedisCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	return c.client.Set(ctx, redisKey(tenantID, key), value, ttl).Err()
}

// Delete removes a value.
func (c *RedisCache) Delete(ctx context.Context, tenantID string, key string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	return c.client.Del(ctx, redisKey(tenantID, key)).Err()
}

// GetRecord returns a cached snapshot, or nil on a miss.
func (c *RedisCache) GetRecord(ctx context.Context, tenantID string, clientID string) (*domain.ClientReliabilityRecord, error) {
	return getRecord(ctx, c, tenantID, clientID)
}

// SetRecord caches a snapshot.
func (c *RedisCache) SetRecord(ctx context.Context, tenantID string, rec *domain.ClientReliabilityRecord, ttl time.Duration) error {
	return setRecord(ctx, c, tenantID, rec, ttl)
}

// DeleteRecord drops a cached snapshot.
func (c *RedisCache) DeleteRecord(ctx context.Context, tenantID string, clientID string) error {
	return deleteRecord(ctx, c, tenantID, clientID)
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func redisKey(tenantID, key string) string {
	return redisKeyPrefix + tenantID + ":" + key
}
