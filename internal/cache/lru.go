// Package cache provides record snapshot caches for Perch.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/opensource-finance/perch/internal/domain"
)

// LRUCache is a thread-safe LRU cache with per-entry TTL.
// Used as the Community tier cache and as L1 in two-phase caching.
type LRUCache struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List
}

type lruEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *lruEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// NewLRUCache creates a new LRU cache holding at most maxSize entries.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &LRUCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get retrieves a value. Returns nil, nil on a miss or an expired entry.
func (c *LRUCache) Get(_ context.Context, tenantID string, key string) ([]byte, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[tenantKey(tenantID, key)]
	if !ok {
		return nil, nil
	}

	entry := elem.Value.(*lruEntry)
	if entry.expired(time.Now()) {
		c.remove(elem)
		return nil, nil
	}

	c.order.MoveToFront(elem)
	return entry.value, nil
}

// Set stores a value for ttl, evicting the least recently used entries when full.
func (c *LRUCache) Set(_ context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	fullKey := tenantKey(tenantID, key)
	expiresAt := time.Now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[fullKey]; ok {
		entry := elem.Value.(*lruEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return nil
	}

	c.items[fullKey] = c.order.PushFront(&lruEntry{
		key:       fullKey,
		value:     value,
		expiresAt: expiresAt,
	})

	for c.order.Len() > c.maxSize {
		c.remove(c.order.Back())
	}

	return nil
}

// Delete removes a value.
func (c *LRUCache) Delete(_ context.Context, tenantID string, key string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[tenantKey(tenantID, key)]; ok {
		c.remove(elem)
	}
	return nil
}

// GetRecord returns a cached snapshot, or nil on a miss.
func (c *LRUCache) GetRecord(ctx context.Context, tenantID string, clientID string) (*domain.ClientReliabilityRecord, error) {
	return getRecord(ctx, c, tenantID, clientID)
}

// SetRecord caches a snapshot.
func (c *LRUCache) SetRecord(ctx context.Context, tenantID string, rec *domain.ClientReliabilityRecord, ttl time.Duration) error {
	return setRecord(ctx, c, tenantID, rec, ttl)
}

// DeleteRecord drops a cached snapshot.
func (c *LRUCache) DeleteRecord(ctx context.Context, tenantID string, clientID string) error {
	return deleteRecord(ctx, c, tenantID, clientID)
}

// Ping checks cache health.
func (c *LRUCache) Ping(context.Context) error {
	return nil
}

// Close empties the cache.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order = list.New()
	return nil
}

// Stats returns the current size and capacity.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len(), c.maxSize
}

func (c *LRUCache) remove(elem *list.Element) {
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*lruEntry).key)
}

func tenantKey(tenantID, key string) string {
	return tenantID + ":" + key
}
