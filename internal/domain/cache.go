package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetRecord retrieves a cached reliability snapshot.
	// Returns nil, nil on a miss.
	GetRecord(ctx context.Context, tenantID string, clientID string) (*ClientReliabilityRecord, error)

	// SetRecord caches a reliability snapshot.
	SetRecord(ctx context.Context, tenantID string, rec *ClientReliabilityRecord, ttl time.Duration) error

	// DeleteRecord drops a cached snapshot after the booking system updates it.
	DeleteRecord(ctx context.Context, tenantID string, clientID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RecordKey is the cache key for a client's reliability snapshot.
func RecordKey(clientID string) string {
	return "record:" + clientID
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `mapstructure:"type"`

	// Local LRU cache settings (Community tier)
	LocalMaxSize int           `mapstructure:"local_max_size"`
	LocalTTL     time.Duration `mapstructure:"local_ttl"`

	// RecordTTL bounds how stale a cached snapshot may be.
	RecordTTL time.Duration `mapstructure:"record_ttl"`

	// Redis settings (Pro tier)
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	// Two-phase settings
	EnableTwoPhase bool `mapstructure:"enable_two_phase"` // If true, check local first, then Redis
}
