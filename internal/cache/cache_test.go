package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/perch/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("SetAndGet", func(t *testing.T) {
		if err := cache.Set(ctx, tenantID, "key1", []byte("value1"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, tenantID, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, tenantID, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, "key3", []byte("old"), time.Minute)
		_ = cache.Set(ctx, tenantID, "key3", []byte("new"), time.Minute)

		val, _ := cache.Get(ctx, tenantID, "key3")
		if string(val) != "new" {
			t.Errorf("expected 'new', got '%s'", string(val))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, "key2", []byte("value2"), time.Minute)

		if err := cache.Delete(ctx, tenantID, "key2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, tenantID, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, "expiring", []byte("temp"), 10*time.Millisecond)

		val, _ := cache.Get(ctx, tenantID, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, tenantID, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, tenantID, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, tenantID, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, tenantID, "c", []byte("3"), time.Minute)

		// 'a' becomes most recently used; 'b' is next out
		_, _ = smallCache.Get(ctx, tenantID, "a")
		_ = smallCache.Set(ctx, tenantID, "d", []byte("4"), time.Minute)

		if val, _ := smallCache.Get(ctx, tenantID, "b"); val != nil {
			t.Error("expected 'b' to be evicted")
		}
		if val, _ := smallCache.Get(ctx, tenantID, "a"); val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_ = cache.Set(ctx, "tenant-001", "shared-key", []byte("tenant1-value"), time.Minute)
		_ = cache.Set(ctx, "tenant-002", "shared-key", []byte("tenant2-value"), time.Minute)

		val1, _ := cache.Get(ctx, "tenant-001", "shared-key")
		val2, _ := cache.Get(ctx, "tenant-002", "shared-key")

		if string(val1) != "tenant1-value" {
			t.Errorf("expected 'tenant1-value', got '%s'", string(val1))
		}
		if string(val2) != "tenant2-value" {
			t.Errorf("expected 'tenant2-value', got '%s'", string(val2))
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		err := cache.Set(ctx, "", "key", []byte("value"), time.Minute)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}

		_, err = cache.Get(ctx, "", "key")
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, tenantID, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, tenantID, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, tenantID, "k", []byte("v"), time.Minute)

		if err := testCache.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}

		if val, _ := testCache.Get(ctx, tenantID, "k"); val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestRecordCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	tenantID := "tenant-001"

	override := 40
	rec := &domain.ClientReliabilityRecord{
		ClientID:                        "client-001",
		TotalAppointments:               10,
		TotalCancellations:              3,
		TotalNoShows:                    1,
		ConsecutiveCancellations:        1,
		CustomDepositOverridePercentage: &override,
	}

	t.Run("SetAndGet", func(t *testing.T) {
		if err := cache.SetRecord(ctx, tenantID, rec, time.Minute); err != nil {
			t.Fatalf("SetRecord failed: %v", err)
		}

		got, err := cache.GetRecord(ctx, tenantID, "client-001")
		if err != nil {
			t.Fatalf("GetRecord failed: %v", err)
		}
		if got == nil {
			t.Fatal("expected cached record")
		}
		if got.TotalCancellations != 3 || got.ConsecutiveCancellations != 1 {
			t.Errorf("unexpected record: %+v", got)
		}
		if got.CustomDepositOverridePercentage == nil || *got.CustomDepositOverridePercentage != 40 {
			t.Error("override lost in cache round trip")
		}
		if got == rec {
			t.Error("cache must return a copy of the snapshot")
		}
	})

	t.Run("Miss", func(t *testing.T) {
		got, err := cache.GetRecord(ctx, tenantID, "unknown")
		if err != nil {
			t.Fatalf("GetRecord failed: %v", err)
		}
		if got != nil {
			t.Error("expected nil on miss")
		}
	})

	t.Run("OtherTenant", func(t *testing.T) {
		got, _ := cache.GetRecord(ctx, "tenant-002", "client-001")
		if got != nil {
			t.Error("record leaked across tenants")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := cache.DeleteRecord(ctx, tenantID, "client-001"); err != nil {
			t.Fatalf("DeleteRecord failed: %v", err)
		}
		got, _ := cache.GetRecord(ctx, tenantID, "client-001")
		if got != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("CorruptEntry", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, domain.RecordKey("broken"), []byte("{not json"), time.Minute)
		if _, err := cache.GetRecord(ctx, tenantID, "broken"); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("RequiresClientID", func(t *testing.T) {
		if err := cache.SetRecord(ctx, tenantID, &domain.ClientReliabilityRecord{}, time.Minute); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := cache.SetRecord(ctx, tenantID, nil, time.Minute); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := cache.GetRecord(ctx, tenantID, ""); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cache, err := New(domain.CacheConfig{
			Type:         "memory",
			LocalMaxSize: 100,
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		if _, ok := cache.(*LRUCache); !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
