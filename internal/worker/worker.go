// Package worker re-evaluates deposits when the booking system pushes a new
// client reliability snapshot.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/perch/internal/bus"
	"github.com/opensource-finance/perch/internal/domain"
	"github.com/opensource-finance/perch/internal/policy"
	"github.com/opensource-finance/perch/internal/report"
)

// Store is the slice of the repository the worker writes and reads.
type Store interface {
	SaveRecord(ctx context.Context, tenantID string, rec *domain.ClientReliabilityRecord) error
	ListAppointmentsByClient(ctx context.Context, tenantID string, clientID string) ([]*domain.AppointmentContext, error)
}

// Invalidator drops cached snapshots.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID, clientID string) error
}

// Worker consumes TopicRecordUpdated and publishes fresh deposit decisions.
type Worker struct {
	bus         domain.EventBus
	store       Store
	invalidator Invalidator
	evaluator   *policy.Evaluator

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs lists the tenants whose record updates are consumed.
	TenantIDs []string
}

// NewWorker creates a worker. invalidator may be nil; a nil evaluator
// uses the built-in policy only.
func NewWorker(eventBus domain.EventBus, store Store, invalidator Invalidator, evaluator *policy.Evaluator) *Worker {
	if evaluator == nil {
		evaluator = policy.Default
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:         eventBus,
		store:       store,
		invalidator: invalidator,
		evaluator:   evaluator,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start subscribes to record updates for every configured tenant.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		slog.Warn("worker enabled without tenants, nothing to consume")
		return nil
	}

	started := 0
	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		started++
	}
	if started == 0 {
		return fmt.Errorf("no tenant workers started")
	}

	slog.Info("workers started", "tenant_count", started)
	return nil
}

func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicRecordUpdated, func(ctx context.Context, msg *domain.Message) error {
		return w.processRecordUpdate(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicRecordUpdated,
	)
	return nil
}

// processRecordUpdate stores the snapshot and re-evaluates the client's
// upcoming appointments.
func (w *Worker) processRecordUpdate(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var rec domain.ClientReliabilityRecord
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		return fmt.Errorf("failed to parse record update %s: %w", msg.ID, err)
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("rejected record update %s: %w", msg.ID, err)
	}
	if rec.ClientID == "" {
		return fmt.Errorf("rejected record update %s: %w", msg.ID, &domain.ValidationError{Field: "clientId", Reason: "is required"})
	}

	if err := w.store.SaveRecord(ctx, tenantID, &rec); err != nil {
		return fmt.Errorf("failed to save record for %s: %w", rec.ClientID, err)
	}

	if w.invalidator != nil {
		if err := w.invalidator.Invalidate(ctx, tenantID, rec.ClientID); err != nil {
			slog.Warn("failed to invalidate cached record",
				"tenant_id", tenantID,
				"client_id", rec.ClientID,
				"error", err,
			)
		}
	}

	appts, err := w.store.ListAppointmentsByClient(ctx, tenantID, rec.ClientID)
	if err != nil {
		return fmt.Errorf("failed to list appointments for %s: %w", rec.ClientID, err)
	}

	evaluated, flagged := 0, 0
	for _, appt := range appts {
		if !appt.IsUpcoming() {
			continue
		}

		res, err := w.evaluator.Explain(appt, &rec)
		if err != nil {
			slog.Error("deposit evaluation failed",
				"tenant_id", tenantID,
				"appointment_id", appt.AppointmentID,
				"error", err,
			)
			continue
		}
		evaluated++

		event := domain.DecisionEvent{
			TenantID:      tenantID,
			AppointmentID: appt.AppointmentID,
			ClientID:      rec.ClientID,
			Decision:      res.Decision,
			DepositAmount: report.DepositAmount(appt.ServicePrice, res.Decision.Percentage).StringFixed(2),
			Score:         res.Score,
			Timestamp:     time.Now().UnixNano(),
		}

		if err := bus.PublishJSON(ctx, w.bus, tenantID, domain.TopicDepositDecision, event); err != nil {
			slog.Error("failed to publish decision",
				"appointment_id", appt.AppointmentID,
				"error", err,
			)
		}

		if res.Decision.Percentage > domain.AttentionDepositPercentage {
			flagged++
			if err := bus.PublishJSON(ctx, w.bus, tenantID, domain.TopicAttentionFlagged, event); err != nil {
				slog.Error("failed to publish attention flag",
					"appointment_id", appt.AppointmentID,
					"error", err,
				)
			}
		}
	}

	slog.Info("record update processed",
		"tenant_id", tenantID,
		"client_id", rec.ClientID,
		"appointments_evaluated", evaluated,
		"appointments_flagged", flagged,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop unsubscribes every tenant worker.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
