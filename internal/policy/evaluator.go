// Package policy derives the deposit percentage a booking requires.
//
// Evaluation is a fixed, ordered fold over rules:
//
//  1. A client override short-circuits everything (CUSTOM_OVERRIDE).
//  2. Start at 20% with NEW_CLIENT (no record) or RELIABLE (record present).
//  3. Consecutive cancellations, reliability score, cancellation rate,
//     weekend premium, then any custom rules, in that order.
//
// Each firing rule raises the percentage to its floor via max and replaces
// the reason, so the reported reason is the last rule that matched.
package policy

import (
	"github.com/opensource-finance/perch/internal/domain"
	"github.com/opensource-finance/perch/internal/scoring"
)

// RuleSource supplies rules that run after the built-in ones.
// Implementations must return rules in evaluation order.
type RuleSource interface {
	Rules() []Rule
}

// Result is a decision plus how it was reached.
type Result struct {
	Decision domain.DepositDecision `json:"decision"`
	Score    int                    `json:"score"`
	Trace    []domain.RuleTrace     `json:"trace,omitempty"`
}

// Evaluator applies the built-in policy and, optionally, custom rules.
// It holds no per-call state and is safe for concurrent use.
type Evaluator struct {
	extra RuleSource
}

// NewEvaluator creates an evaluator. extra may be nil.
func NewEvaluator(extra RuleSource) *Evaluator {
	return &Evaluator{extra: extra}
}

// Default evaluates the built-in rules only.
var Default = NewEvaluator(nil)

// Evaluate runs the built-in deposit policy for one appointment.
// rec is nil for clients with no reliability record.
func Evaluate(appt *domain.AppointmentContext, rec *domain.ClientReliabilityRecord) (domain.DepositDecision, error) {
	return Default.Evaluate(appt, rec)
}

// Evaluate returns the deposit decision for one appointment.
func (e *Evaluator) Evaluate(appt *domain.AppointmentContext, rec *domain.ClientReliabilityRecord) (domain.DepositDecision, error) {
	res, err := e.Explain(appt, rec)
	if err != nil {
		return domain.DepositDecision{}, err
	}
	return res.Decision, nil
}

// Explain evaluates like Evaluate and also reports the score and which rules fired.
func (e *Evaluator) Explain(appt *domain.AppointmentContext, rec *domain.ClientReliabilityRecord) (*Result, error) {
	if err := appt.Validate(); err != nil {
		return nil, err
	}

	in := &Input{Appointment: appt, Score: scoring.MaxScore}
	decision := domain.DepositDecision{
		Percentage: domain.BaselineDepositPercentage,
		ReasonCode: domain.ReasonNewClient,
	}

	if rec != nil {
		score, err := scoring.ComputeScore(rec)
		if err != nil {
			return nil, err
		}

		if rec.HasOverride() {
			return &Result{
				Decision: domain.DepositDecision{
					Percentage: *rec.CustomDepositOverridePercentage,
					ReasonCode: domain.ReasonCustomOverride,
				},
				Score: score,
			}, nil
		}

		in.Record = rec
		in.Score = score
		in.CancellationRate = scoring.CancellationRate(rec)
		in.NoShowRate = scoring.NoShowRate(rec)
		decision.ReasonCode = domain.ReasonReliable
	}

	rules := BuiltinRules()
	if e.extra != nil {
		rules = append(rules, e.extra.Rules()...)
	}

	trace := make([]domain.RuleTrace, 0, len(rules))
	for _, rule := range rules {
		out, fired, err := rule.Apply(in, decision)
		entry := domain.RuleTrace{RuleID: rule.ID, Fired: fired && err == nil}
		if err != nil {
			// A broken custom rule is skipped; it never degrades the decision.
			entry.Error = err.Error()
			trace = append(trace, entry)
			continue
		}
		if fired {
			decision = apply(decision, out)
			entry.Floor = out.Floor
			entry.Reason = out.Reason
		}
		trace = append(trace, entry)
	}

	return &Result{Decision: decision, Score: in.Score, Trace: trace}, nil
}
