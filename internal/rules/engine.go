// Package rules provides the CEL-Go based engine for custom deposit rules.
//
// Custom rules run after the built-in deposit policy. Each rule is a boolean
// CEL expression over the client's history and the booking; when it holds,
// the deposit is raised to the rule's floor and its reason replaces the
// current one.
package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/perch/internal/domain"
	"github.com/opensource-finance/perch/internal/policy"
)

// Engine compiles and holds custom deposit rules.
// It implements policy.RuleSource.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a new rule engine.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("total_appointments", cel.IntType),
		cel.Variable("total_cancellations", cel.IntType),
		cel.Variable("total_no_shows", cel.IntType),
		cel.Variable("consecutive_cancellations", cel.IntType),
		cel.Variable("score", cel.IntType),
		cel.Variable("cancellation_rate", cel.DoubleType),
		cel.Variable("no_show_rate", cel.DoubleType),
		cel.Variable("service_price", cel.DoubleType),
		cel.Variable("is_weekend_premium", cel.BoolType),
		cel.Variable("has_record", cel.BoolType),
		cel.Variable("start_time", cel.StringType),
		cel.Variable("status", cel.StringType),
		// Decision so far
		cel.Variable("percentage", cel.IntType),
		cel.Variable("reason", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
// Disabled rules are removed if present.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	if !cfg.Enabled {
		delete(e.compiledRules, cfg.ID)
		return nil
	}
	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules replaces all loaded rules atomically.
// On error the previously loaded rules stay in place.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the loaded rule configurations in evaluation order.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	compiled := e.ordered()
	configs := make([]*domain.RuleConfig, len(compiled))
	for i, c := range compiled {
		configs[i] = c.Config
	}
	return configs
}

// Rules returns the loaded rules as policy steps, ordered by priority then ID.
func (e *Engine) Rules() []policy.Rule {
	compiled := e.ordered()
	out := make([]policy.Rule, len(compiled))
	for i, c := range compiled {
		out[i] = policy.Rule{ID: c.Config.ID, Apply: c.apply}
	}
	return out
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) ordered() []*CompiledRule {
	e.mu.RLock()
	compiled := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, c := range e.compiledRules {
		compiled = append(compiled, c)
	}
	e.mu.RUnlock()

	sort.Slice(compiled, func(i, j int) bool {
		a, b := compiled[i].Config, compiled[j].Config
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.ID < b.ID
	})
	return compiled
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}

// apply evaluates the compiled expression against one policy input.
func (c *CompiledRule) apply(in *policy.Input, current domain.DepositDecision) (policy.Outcome, bool, error) {
	out, _, err := c.Program.Eval(activation(in, current))
	if err != nil {
		return policy.Outcome{}, false, fmt.Errorf("rule %s: evaluation error: %w", c.Config.ID, err)
	}

	fired, ok := out.(types.Bool)
	if !ok {
		return policy.Outcome{}, false, fmt.Errorf("rule %s: expected bool, got %s", c.Config.ID, out.Type().TypeName())
	}
	if !fired {
		return policy.Outcome{}, false, nil
	}

	return policy.Outcome{Floor: c.Config.Floor, Reason: c.Config.Reason}, true, nil
}

// activation builds the CEL variables for one evaluation.
func activation(in *policy.Input, current domain.DepositDecision) map[string]any {
	vars := map[string]any{
		"total_appointments":        int64(0),
		"total_cancellations":       int64(0),
		"total_no_shows":            int64(0),
		"consecutive_cancellations": int64(0),
		"score":                     int64(in.Score),
		"cancellation_rate":         in.CancellationRate,
		"no_show_rate":              in.NoShowRate,
		"service_price":             in.Appointment.ServicePrice.InexactFloat64(),
		"is_weekend_premium":        in.Appointment.IsWeekendPremium,
		"has_record":                in.Record != nil,
		"start_time":                in.Appointment.StartTime,
		"status":                    in.Appointment.Status,
		"percentage":                int64(current.Percentage),
		"reason":                    string(current.ReasonCode),
	}

	if rec := in.Record; rec != nil {
		vars["total_appointments"] = int64(rec.TotalAppointments)
		vars["total_cancellations"] = int64(rec.TotalCancellations)
		vars["total_no_shows"] = int64(rec.TotalNoShows)
		vars["consecutive_cancellations"] = int64(rec.ConsecutiveCancellations)
	}

	return vars
}
