package domain

import "time"

// GlobalTenantID owns rules that apply to every tenant.
const GlobalTenantID = "*"

// RuleConfig defines an operator-configured deposit rule.
// Custom rules run after the built-in policy rules, in ascending Priority.
type RuleConfig struct {
	ID          string `json:"id" yaml:"id"`
	TenantID    string `json:"tenantId" yaml:"-"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Version     string `json:"version" yaml:"version"`

	// CEL expression; must evaluate to bool
	Expression string `json:"expression" yaml:"expression"`

	// Floor is the minimum deposit percentage applied when the rule fires.
	Floor int `json:"floor" yaml:"floor"`

	// Reason replaces the decision reason when the rule fires.
	Reason ReasonCode `json:"reason" yaml:"reason"`

	Priority int  `json:"priority" yaml:"priority"`
	Enabled  bool `json:"enabled" yaml:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"-"`
}

// Validate checks the non-expression fields of a rule.
func (c *RuleConfig) Validate() error {
	if c == nil {
		return &ValidationError{Field: "rule", Reason: "is required"}
	}
	if c.ID == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if c.Expression == "" {
		return &ValidationError{Field: "expression", Reason: "is required"}
	}
	if c.Floor < 0 || c.Floor > 100 {
		return &ValidationError{Field: "floor", Reason: "must be between 0 and 100"}
	}
	if !c.Reason.Valid() || c.Reason == ReasonCustomOverride {
		return &ValidationError{Field: "reason", Reason: "must be a rule reason code"}
	}
	return nil
}

// RuleTrace records whether a rule fired during one evaluation.
type RuleTrace struct {
	RuleID string     `json:"ruleId"`
	Fired  bool       `json:"fired"`
	Floor  int        `json:"floor,omitempty"`
	Reason ReasonCode `json:"reason,omitempty"`
	Error  string     `json:"error,omitempty"`
}
