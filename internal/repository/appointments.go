package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/perch/internal/domain"
)

const appointmentColumns = `
	id, tenant_id, client_id, service_price, scheduled_date,
	start_time, is_weekend_premium, status`

func scanAppointment(row rowScanner) (*domain.AppointmentContext, error) {
	var appt domain.AppointmentContext
	var weekend int

	if err := row.Scan(
		&appt.AppointmentID, &appt.TenantID, &appt.ClientID, &appt.ServicePrice, &appt.ScheduledDate,
		&appt.StartTime, &weekend, &appt.Status,
	); err != nil {
		return nil, err
	}

	appt.IsWeekendPremium = weekend == 1
	appt.ScheduledDate = appt.ScheduledDate.UTC()
	return &appt, nil
}

// SaveAppointment upserts an appointment. An empty status is stored as booked.
func (r *SQLRepository) SaveAppointment(ctx context.Context, tenantID string, appt *domain.AppointmentContext) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if appt == nil || appt.AppointmentID == "" {
		return fmt.Errorf("%w: appointmentId is required", ErrInvalidInput)
	}

	status := appt.Status
	if status == "" {
		status = domain.AppointmentBooked
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO appointments (
			` + appointmentColumns + `, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			client_id = excluded.client_id,
			service_price = excluded.service_price,
			scheduled_date = excluded.scheduled_date,
			start_time = excluded.start_time,
			is_weekend_premium = excluded.is_weekend_premium,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		appt.AppointmentID, tenantID, appt.ClientID, appt.ServicePrice.String(), appt.ScheduledDate.UTC(),
		appt.StartTime, boolToInt(appt.IsWeekendPremium), status,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save appointment: %w", err)
	}
	return nil
}

// GetAppointment retrieves an appointment by ID.
func (r *SQLRepository) GetAppointment(ctx context.Context, tenantID string, appointmentID string) (*domain.AppointmentContext, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE tenant_id = ? AND id = ?`

	appt, err := scanAppointment(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, appointmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// ListAppointments returns a tenant's appointments in schedule order.
// An empty status returns every appointment.
func (r *SQLRepository) ListAppointments(ctx context.Context, tenantID string, status string) ([]*domain.AppointmentContext, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE tenant_id = ?`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY scheduled_date, start_time, id`

	return r.queryAppointments(ctx, query, args...)
}

// ListAppointmentsByClient returns one client's appointments in schedule order.
func (r *SQLRepository) ListAppointmentsByClient(ctx context.Context, tenantID string, clientID string) ([]*domain.AppointmentContext, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE tenant_id = ? AND client_id = ?
		ORDER BY scheduled_date, start_time, id
	`

	return r.queryAppointments(ctx, query, tenantID, clientID)
}

func (r *SQLRepository) queryAppointments(ctx context.Context, query string, args ...any) ([]*domain.AppointmentContext, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appts := []*domain.AppointmentContext{}
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}

	return appts, rows.Err()
}
