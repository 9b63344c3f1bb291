// Package scoring turns a client's appointment history into a 0-100 trust score.
package scoring

import (
	"math"

	"github.com/opensource-finance/perch/internal/domain"
)

// Score weights.
const (
	MaxScore = 100
	MinScore = 0

	cancellationWeight = 0.8
	noShowWeight       = 1.2
	consecutivePenalty = 15
)

// ComputeScore returns the reliability score for rec.
// New clients (no appointments) start fully trusted at 100.
func ComputeScore(rec *domain.ClientReliabilityRecord) (int, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	return score(rec), nil
}

// score assumes rec has been validated.
func score(rec *domain.ClientReliabilityRecord) int {
	if rec.TotalAppointments == 0 {
		return MaxScore
	}

	raw := float64(MaxScore) -
		cancellationRate(rec)*cancellationWeight -
		noShowRate(rec)*noShowWeight -
		float64(rec.ConsecutiveCancellations)*consecutivePenalty

	return int(math.Round(clamp(raw)))
}

// CancellationRate returns cancellations as a percentage of appointments,
// or 0 when the client has no appointments.
func CancellationRate(rec *domain.ClientReliabilityRecord) float64 {
	if rec == nil {
		return 0
	}
	return cancellationRate(rec)
}

// NoShowRate returns no-shows as a percentage of appointments,
// or 0 when the client has no appointments.
func NoShowRate(rec *domain.ClientReliabilityRecord) float64 {
	if rec == nil {
		return 0
	}
	return noShowRate(rec)
}

func cancellationRate(rec *domain.ClientReliabilityRecord) float64 {
	if rec.TotalAppointments == 0 {
		return 0
	}
	return percentOf(rec.TotalCancellations, rec.TotalAppointments)
}

func noShowRate(rec *domain.ClientReliabilityRecord) float64 {
	if rec.TotalAppointments == 0 {
		return 0
	}
	return percentOf(rec.TotalNoShows, rec.TotalAppointments)
}

// percentOf converts before multiplying so large counters cannot wrap.
func percentOf(n, total int) float64 {
	return float64(n) * 100 / float64(total)
}

func clamp(v float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, v))
}
