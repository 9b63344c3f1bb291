// Package report builds the operator-facing risk and attention views.
//
// Scores and deposits are always recomputed from the record counters; a
// cached reliabilityScore on the record is never trusted.
package report

import (
	"github.com/opensource-finance/perch/internal/domain"
	"github.com/opensource-finance/perch/internal/policy"
	"github.com/opensource-finance/perch/internal/scoring"
)

// Tier boundaries: score < HighRiskBelow is high risk,
// score >= LowRiskFrom is low risk, everything between is medium.
const (
	HighRiskBelow = 30
	LowRiskFrom   = 70
)

// Reporter builds reports using a deposit evaluator.
type Reporter struct {
	evaluator *policy.Evaluator
}

// NewReporter creates a reporter. A nil evaluator uses the built-in policy only.
func NewReporter(evaluator *policy.Evaluator) *Reporter {
	if evaluator == nil {
		evaluator = policy.Default
	}
	return &Reporter{evaluator: evaluator}
}

// TierFor maps a score to its risk tier.
func TierFor(score int) domain.RiskTier {
	switch {
	case score < HighRiskBelow:
		return domain.TierHighRisk
	case score < LowRiskFrom:
		return domain.TierMediumRisk
	default:
		return domain.TierLowRisk
	}
}

// Categorize partitions records into risk tiers by recomputed score.
// Every record lands in exactly one bucket, in input order. An invalid
// record rejects the whole call.
func Categorize(records []*domain.ClientReliabilityRecord) (*domain.RiskReport, error) {
	rep := &domain.RiskReport{
		HighRisk:   []*domain.ClientReliabilityRecord{},
		MediumRisk: []*domain.ClientReliabilityRecord{},
		LowRisk:    []*domain.ClientReliabilityRecord{},
	}

	for _, rec := range records {
		score, err := scoring.ComputeScore(rec)
		if err != nil {
			return nil, err
		}

		switch TierFor(score) {
		case domain.TierHighRisk:
			rep.HighRisk = append(rep.HighRisk, rec)
		case domain.TierMediumRisk:
			rep.MediumRisk = append(rep.MediumRisk, rec)
		default:
			rep.LowRisk = append(rep.LowRisk, rec)
		}
	}

	return rep, nil
}
