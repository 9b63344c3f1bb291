// Package history fetches client reliability snapshots for deposit evaluation.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/perch/internal/domain"
)

// RecordStore is the slice of the repository the lookup needs.
type RecordStore interface {
	GetRecord(ctx context.Context, tenantID, clientID string) (*domain.ClientReliabilityRecord, error)
}

// Service reads snapshots through the cache, falling back to the store.
type Service struct {
	store RecordStore
	cache domain.Cache
	ttl   time.Duration
}

// NewService creates a lookup service. cache may be nil.
func NewService(store RecordStore, cache domain.Cache, ttl time.Duration) *Service {
	return &Service{
		store: store,
		cache: cache,
		ttl:   ttl,
	}
}

// Lookup returns the client's snapshot, or nil if the client has no record.
func (s *Service) Lookup(ctx context.Context, tenantID, clientID string) (*domain.ClientReliabilityRecord, error) {
	if tenantID == "" || clientID == "" {
		return nil, fmt.Errorf("%w: tenantID and clientID are required", domain.ErrInvalidInput)
	}

	if s.cache != nil {
		rec, err := s.cache.GetRecord(ctx, tenantID, clientID)
		if err != nil {
			slog.Debug("record cache read failed", "tenant_id", tenantID, "client_id", clientID, "error", err)
		} else if rec != nil {
			return rec, nil
		}
	}

	if s.store == nil {
		return nil, fmt.Errorf("no data source available")
	}

	rec, err := s.store.GetRecord(ctx, tenantID, clientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.SetRecord(ctx, tenantID, rec, s.ttl); err != nil {
			slog.Debug("record cache write failed", "tenant_id", tenantID, "client_id", clientID, "error", err)
		}
	}

	return rec, nil
}

// LookupOrNew is Lookup for the booking path. A failed lookup never blocks a
// booking: the error is logged and the client is treated as new (nil record).
func (s *Service) LookupOrNew(ctx context.Context, tenantID, clientID string) *domain.ClientReliabilityRecord {
	rec, err := s.Lookup(ctx, tenantID, clientID)
	if err != nil {
		slog.Warn("record lookup failed, treating client as new",
			"tenant_id", tenantID,
			"client_id", clientID,
			"error", err,
		)
		return nil
	}
	return rec
}

// Invalidate drops a cached snapshot.
func (s *Service) Invalidate(ctx context.Context, tenantID, clientID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeleteRecord(ctx, tenantID, clientID)
}
