package report

import (
	"github.com/opensource-finance/perch/internal/domain"
	"github.com/shopspring/decimal"
)

// AttentionItem is one appointment surfaced for operator review.
type AttentionItem struct {
	Appointment   *domain.AppointmentContext `json:"appointment"`
	Decision      domain.DepositDecision     `json:"decision"`
	DepositAmount decimal.Decimal            `json:"depositAmount"`
	Score         int                        `json:"score"`
}

// DepositAmount returns price × percentage / 100 rounded to 2 places,
// half away from zero.
func DepositAmount(price decimal.Decimal, percentage int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(percentage))).
		Div(decimal.NewFromInt(100)).
		Round(2)
}

// SelectNeedsAttention keeps the appointments whose built-in deposit
// exceeds the attention threshold, in input order.
func SelectNeedsAttention(appts []*domain.AppointmentContext, records map[string]*domain.ClientReliabilityRecord) ([]*domain.AppointmentContext, error) {
	items, err := NewReporter(nil).NeedsAttention(appts, records)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.AppointmentContext, len(items))
	for i, item := range items {
		out[i] = item.Appointment
	}
	return out, nil
}

// NeedsAttention evaluates every appointment and returns those with a deposit
// above domain.AttentionDepositPercentage. A missing record means a new client.
// Any invalid appointment or record rejects the whole call.
func (r *Reporter) NeedsAttention(appts []*domain.AppointmentContext, records map[string]*domain.ClientReliabilityRecord) ([]AttentionItem, error) {
	items := []AttentionItem{}

	for _, appt := range appts {
		var rec *domain.ClientReliabilityRecord
		if appt != nil {
			rec = records[appt.ClientID]
		}

		res, err := r.evaluator.Explain(appt, rec)
		if err != nil {
			return nil, err
		}
		if res.Decision.Percentage <= domain.AttentionDepositPercentage {
			continue
		}

		items = append(items, AttentionItem{
			Appointment:   appt,
			Decision:      res.Decision,
			DepositAmount: DepositAmount(appt.ServicePrice, res.Decision.Percentage),
			Score:         res.Score,
		})
	}

	return items, nil
}
