package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/perch/internal/domain"
)

const recordColumns = `
	client_id, total_appointments, total_cancellations, total_no_shows,
	consecutive_cancellations, last_cancellation_date, deposit_override,
	reliability_score, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.ClientReliabilityRecord, error) {
	var rec domain.ClientReliabilityRecord
	var lastCancel sql.NullTime
	var override, score sql.NullInt64

	if err := row.Scan(
		&rec.ClientID, &rec.TotalAppointments, &rec.TotalCancellations, &rec.TotalNoShows,
		&rec.ConsecutiveCancellations, &lastCancel, &override,
		&score, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rec.LastCancellationDate = timePtr(lastCancel)
	rec.CustomDepositOverridePercentage = intPtr(override)
	rec.ReliabilityScore = intPtr(score)
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

// SaveRecord upserts a client reliability snapshot.
func (r *SQLRepository) SaveRecord(ctx context.Context, tenantID string, rec *domain.ClientReliabilityRecord) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if rec == nil || rec.ClientID == "" {
		return fmt.Errorf("%w: clientId is required", ErrInvalidInput)
	}

	updatedAt := rec.UpdatedAt.UTC()
	if rec.UpdatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO client_records (
			tenant_id, ` + recordColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, client_id) DO UPDATE SET
			total_appointments = excluded.total_appointments,
			total_cancellations = excluded.total_cancellations,
			total_no_shows = excluded.total_no_shows,
			consecutive_cancellations = excluded.consecutive_cancellations,
			last_cancellation_date = excluded.last_cancellation_date,
			deposit_override = excluded.deposit_override,
			reliability_score = excluded.reliability_score,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tenantID, rec.ClientID,
		rec.TotalAppointments, rec.TotalCancellations, rec.TotalNoShows,
		rec.ConsecutiveCancellations, nullTime(rec.LastCancellationDate),
		nullInt(rec.CustomDepositOverridePercentage), nullInt(rec.ReliabilityScore),
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// GetRecord retrieves a client's snapshot. Returns ErrNotFound for unknown clients.
func (r *SQLRepository) GetRecord(ctx context.Context, tenantID string, clientID string) (*domain.ClientReliabilityRecord, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + recordColumns + ` FROM client_records WHERE tenant_id = ? AND client_id = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, clientID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecords returns every snapshot for a tenant ordered by client ID.
func (r *SQLRepository) ListRecords(ctx context.Context, tenantID string) ([]*domain.ClientReliabilityRecord, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + recordColumns + ` FROM client_records WHERE tenant_id = ? ORDER BY client_id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*domain.ClientReliabilityRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
