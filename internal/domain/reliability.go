package domain

import (
	"time"
)

// ClientReliabilityRecord is a snapshot of a client's appointment history.
// It is owned by the booking system; Perch only ever reads it.
type ClientReliabilityRecord struct {
	ClientID                 string     `json:"clientId"`
	TotalAppointments        int        `json:"totalAppointments"`
	TotalCancellations       int        `json:"totalCancellations"`
	TotalNoShows             int        `json:"totalNoShows"`
	ConsecutiveCancellations int        `json:"consecutiveCancellations"`
	LastCancellationDate     *time.Time `json:"lastCancellationDate,omitempty"`

	// CustomDepositOverridePercentage bypasses every deposit rule when set.
	CustomDepositOverridePercentage *int `json:"customDepositOverridePercentage,omitempty"`

	// ReliabilityScore is whatever the caller last cached. It is validated
	// but never trusted; the score is always recomputed from the counters.
	ReliabilityScore *int `json:"reliabilityScore,omitempty"`

	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// HasOverride reports whether a manual deposit percentage is configured.
func (r *ClientReliabilityRecord) HasOverride() bool {
	return r != nil && r.CustomDepositOverridePercentage != nil
}

// Validate checks the record invariants. Violations are rejected, never repaired.
func (r *ClientReliabilityRecord) Validate() error {
	if r == nil {
		return &ValidationError{Field: "record", Reason: "is required"}
	}

	counters := []struct {
		field string
		value int
	}{
		{"totalAppointments", r.TotalAppointments},
		{"totalCancellations", r.TotalCancellations},
		{"totalNoShows", r.TotalNoShows},
		{"consecutiveCancellations", r.ConsecutiveCancellations},
	}
	for _, c := range counters {
		if c.value < 0 {
			return &ValidationError{Field: c.field, Reason: "must not be negative"}
		}
	}

	if r.TotalCancellations > r.TotalAppointments {
		return &ValidationError{Field: "totalCancellations", Reason: "exceeds totalAppointments"}
	}
	if r.TotalNoShows > r.TotalAppointments {
		return &ValidationError{Field: "totalNoShows", Reason: "exceeds totalAppointments"}
	}

	if p := r.CustomDepositOverridePercentage; p != nil && (*p < 0 || *p > 100) {
		return &ValidationError{Field: "customDepositOverridePercentage", Reason: "must be between 0 and 100"}
	}
	if s := r.ReliabilityScore; s != nil && (*s < 0 || *s > 100) {
		return &ValidationError{Field: "reliabilityScore", Reason: "must be between 0 and 100"}
	}

	return nil
}

// RiskTier buckets clients by reliability score for reporting.
type RiskTier string

const (
	TierHighRisk   RiskTier = "highRisk"
	TierMediumRisk RiskTier = "mediumRisk"
	TierLowRisk    RiskTier = "lowRisk"
)

// RiskReport partitions client records into risk tiers.
// Every input record appears in exactly one bucket.
type RiskReport struct {
	HighRisk   []*ClientReliabilityRecord `json:"highRisk"`
	MediumRisk []*ClientReliabilityRecord `json:"mediumRisk"`
	LowRisk    []*ClientReliabilityRecord `json:"lowRisk"`
}

// Total returns the number of records across all tiers.
func (r *RiskReport) Total() int {
	return len(r.HighRisk) + len(r.MediumRisk) + len(r.LowRisk)
}
