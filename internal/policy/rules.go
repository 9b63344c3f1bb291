package policy

import (
	"github.com/opensource-finance/perch/internal/domain"
)

// Input is the read-only view every rule evaluates against.
type Input struct {
	Appointment *domain.AppointmentContext

	// Record is nil for clients without history.
	Record *domain.ClientReliabilityRecord

	Score            int
	CancellationRate float64
	NoShowRate       float64
}

// consecutive returns the record's consecutive cancellations, 0 for new clients.
func (in *Input) consecutive() int {
	if in.Record == nil {
		return 0
	}
	return in.Record.ConsecutiveCancellations
}

// Outcome is what a firing rule contributes. The decision percentage is
// raised to at least Floor; an empty Reason leaves the current reason alone.
type Outcome struct {
	Floor  int
	Reason domain.ReasonCode
}

// ApplyFunc evaluates one rule against the input and the decision built so far.
// It reports whether the rule fired.
type ApplyFunc func(in *Input, current domain.DepositDecision) (Outcome, bool, error)

// Rule is a named step in the ordered policy.
type Rule struct {
	ID    string
	Apply ApplyFunc
}

// Built-in rule identifiers, in evaluation order.
const (
	RuleConsecutiveCancellations = "consecutive-cancellations"
	RuleReliabilityScore         = "reliability-score"
	RuleCancellationRate         = "cancellation-rate"
	RuleWeekendPremium           = "weekend-premium"
)

// Thresholds used by the built-in rules.
const (
	lowScoreThreshold         = 30
	mediumScoreThreshold      = 60
	highCancellationRateLimit = 30.0

	consecutiveHighFloor   = 70
	recentCancelFloor      = 50
	lowScoreFloor          = 70
	mediumScoreFloor       = 50
	highCancellationFloor  = 60
	weekendPremiumFloor    = 30
	consecutiveHighMinimum = 2
)

// BuiltinRules returns the fixed deposit rules in the order they must run.
// Every rule that fires overwrites the reason, so the reported reason is
// the last rule that matched, not necessarily the one that set the percentage.
func BuiltinRules() []Rule {
	return []Rule{
		{ID: RuleConsecutiveCancellations, Apply: consecutiveCancellationsRule},
		{ID: RuleReliabilityScore, Apply: reliabilityScoreRule},
		{ID: RuleCancellationRate, Apply: cancellationRateRule},
		{ID: RuleWeekendPremium, Apply: weekendPremiumRule},
	}
}

func consecutiveCancellationsRule(in *Input, _ domain.DepositDecision) (Outcome, bool, error) {
	switch n := in.consecutive(); {
	case n >= consecutiveHighMinimum:
		return Outcome{Floor: consecutiveHighFloor, Reason: domain.ReasonConsecutiveCancellations}, true, nil
	case n == 1:
		return Outcome{Floor: recentCancelFloor, Reason: domain.ReasonRecentCancellation}, true, nil
	}
	return Outcome{}, false, nil
}

func reliabilityScoreRule(in *Input, _ domain.DepositDecision) (Outcome, bool, error) {
	switch {
	case in.Score < lowScoreThreshold:
		return Outcome{Floor: lowScoreFloor, Reason: domain.ReasonLowReliabilityScore}, true, nil
	case in.Score < mediumScoreThreshold:
		return Outcome{Floor: mediumScoreFloor, Reason: domain.ReasonMediumReliabilityScore}, true, nil
	}
	return Outcome{}, false, nil
}

func cancellationRateRule(in *Input, _ domain.DepositDecision) (Outcome, bool, error) {
	if in.CancellationRate > highCancellationRateLimit {
		return Outcome{Floor: highCancellationFloor, Reason: domain.ReasonHighCancellationRate}, true, nil
	}
	return Outcome{}, false, nil
}

// weekendPremiumRule always applies its floor to premium slots, but only
// claims the reason when nothing else has and the floor is what the client pays.
func weekendPremiumRule(in *Input, current domain.DepositDecision) (Outcome, bool, error) {
	if !in.Appointment.IsWeekendPremium {
		return Outcome{}, false, nil
	}

	out := Outcome{Floor: weekendPremiumFloor}
	if max(current.Percentage, weekendPremiumFloor) == weekendPremiumFloor && current.ReasonCode.IsDefault() {
		out.Reason = domain.ReasonWeekendPremium
	}
	return out, true, nil
}

// apply folds an outcome into the decision.
func apply(d domain.DepositDecision, out Outcome) domain.DepositDecision {
	d.Percentage = max(d.Percentage, out.Floor)
	if out.Reason != "" {
		d.ReasonCode = out.Reason
	}
	return d
}
