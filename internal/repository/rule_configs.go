package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/perch/internal/domain"
)

const ruleColumns = `
	id, tenant_id, name, description, version, expression,
	floor_percentage, reason, priority, enabled, created_at, updated_at`

func scanRule(row rowScanner) (*domain.RuleConfig, error) {
	var cfg domain.RuleConfig
	var description sql.NullString
	var reason string
	var enabled int

	if err := row.Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &description, &cfg.Version, &cfg.Expression,
		&cfg.Floor, &reason, &cfg.Priority, &enabled, &cfg.CreatedAt, &cfg.UpdatedAt,
	); err != nil {
		return nil, err
	}

	cfg.Description = description.String
	cfg.Reason = domain.ReasonCode(reason)
	cfg.Enabled = enabled == 1
	return &cfg, nil
}

// SaveRuleConfig upserts a custom rule. Disabled rules are kept so they can
// shadow a seeded rule with the same ID.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, tenantID string, rule *domain.RuleConfig) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	version := rule.Version
	if version == "" {
		version = "1.0.0"
	}
	name := rule.Name
	if name == "" {
		name = rule.ID
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			` + ruleColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version,
			expression = excluded.expression,
			floor_percentage = excluded.floor_percentage,
			reason = excluded.reason,
			priority = excluded.priority,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, name, rule.Description, version, rule.Expression,
		rule.Floor, string(rule.Reason), rule.Priority, boolToInt(rule.Enabled), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule config: %w", err)
	}
	return nil
}

// GetRuleConfig retrieves a rule by ID, enabled or not.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, tenantID string, ruleID string) (*domain.RuleConfig, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + ruleColumns + ` FROM rule_configs WHERE tenant_id = ? AND id = ?`

	cfg, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListRuleConfigs returns all stored rules for a tenant in evaluation order.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context, tenantID string) ([]*domain.RuleConfig, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + ruleColumns + ` FROM rule_configs WHERE tenant_id = ? ORDER BY priority, id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := []*domain.RuleConfig{}
	for rows.Next() {
		cfg, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	return configs, rows.Err()
}
