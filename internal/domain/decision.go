package domain

// ReasonCode explains which rule produced a deposit decision.
type ReasonCode string

const (
	ReasonNewClient                ReasonCode = "NEW_CLIENT"
	ReasonReliable                 ReasonCode = "RELIABLE"
	ReasonRecentCancellation       ReasonCode = "RECENT_CANCELLATION"
	ReasonConsecutiveCancellations ReasonCode = "CONSECUTIVE_CANCELLATIONS_HIGH"
	ReasonLowReliabilityScore      ReasonCode = "LOW_RELIABILITY_SCORE"
	ReasonMediumReliabilityScore   ReasonCode = "MEDIUM_RELIABILITY_SCORE"
	ReasonHighCancellationRate     ReasonCode = "HIGH_CANCELLATION_RATE"
	ReasonWeekendPremium           ReasonCode = "WEEKEND_PREMIUM"
	ReasonCustomOverride           ReasonCode = "CUSTOM_OVERRIDE"
)

// ReasonCodes lists every known reason code.
func ReasonCodes() []ReasonCode {
	return []ReasonCode{
		ReasonNewClient,
		ReasonReliable,
		ReasonRecentCancellation,
		ReasonConsecutiveCancellations,
		ReasonLowReliabilityScore,
		ReasonMediumReliabilityScore,
		ReasonHighCancellationRate,
		ReasonWeekendPremium,
		ReasonCustomOverride,
	}
}

// Valid reports whether c is a known reason code.
func (c ReasonCode) Valid() bool {
	for _, known := range ReasonCodes() {
		if c == known {
			return true
		}
	}
	return false
}

// IsDefault reports whether c is one of the starting reasons,
// i.e. no rule has claimed the decision yet.
func (c ReasonCode) IsDefault() bool {
	return c == ReasonNewClient || c == ReasonReliable
}

// Deposit percentage constants.
const (
	// BaselineDepositPercentage is what every client starts at.
	BaselineDepositPercentage = 20

	// AttentionDepositPercentage is the level above which an appointment
	// is surfaced for operator review.
	AttentionDepositPercentage = 30
)

// DepositDecision is the required prepayment for one booking.
// It is recomputed on every call and never cached.
type DepositDecision struct {
	Percentage int        `json:"percentage"`
	ReasonCode ReasonCode `json:"reasonCode"`
}
