package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-finance/perch/internal/domain"
)

// byteStore is the raw key/value surface each cache implementation provides.
type byteStore interface {
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, tenantID string, key string) error
}

func getRecord(ctx context.Context, s byteStore, tenantID, clientID string) (*domain.ClientReliabilityRecord, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: clientID is required", domain.ErrInvalidInput)
	}

	data, err := s.Get(ctx, tenantID, domain.RecordKey(clientID))
	if err != nil || data == nil {
		return nil, err
	}

	var rec domain.ClientReliabilityRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode cached record: %w", err)
	}
	return &rec, nil
}

func setRecord(ctx context.Context, s byteStore, tenantID string, rec *domain.ClientReliabilityRecord, ttl time.Duration) error {
	if rec == nil || rec.ClientID == "" {
		return fmt.Errorf("%w: record with clientID is required", domain.ErrInvalidInput)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return s.Set(ctx, tenantID, domain.RecordKey(rec.ClientID), data, ttl)
}

func deleteRecord(ctx context.Context, s byteStore, tenantID, clientID string) error {
	if clientID == "" {
		return fmt.Errorf("%w: clientID is required", domain.ErrInvalidInput)
	}
	return s.Delete(ctx, tenantID, domain.RecordKey(clientID))
}

func requireTenant(tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	return nil
}
