package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Appointment statuses as reported by the booking system.
const (
	AppointmentBooked    = "booked"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "no_show"
)

// AppointmentContext carries the per-booking attributes the deposit policy reads.
type AppointmentContext struct {
	AppointmentID string `json:"appointmentId"`
	TenantID      string `json:"tenantId,omitempty"`
	ClientID      string `json:"clientId"`

	// ServicePrice is a decimal amount in the salon's currency.
	ServicePrice decimal.Decimal `json:"servicePrice"`

	ScheduledDate    time.Time `json:"scheduledDate"`
	StartTime        string    `json:"startTime"` // HH:MM, salon local time
	IsWeekendPremium bool      `json:"isWeekendPremium"`
	Status           string    `json:"status"`
}

// Validate checks the appointment fields the policy depends on.
func (a *AppointmentContext) Validate() error {
	if a == nil {
		return &ValidationError{Field: "appointment", Reason: "is required"}
	}
	if a.ClientID == "" {
		return &ValidationError{Field: "clientId", Reason: "is required"}
	}
	if a.ServicePrice.IsNegative() {
		return &ValidationError{Field: "servicePrice", Reason: "must not be negative"}
	}
	return nil
}

// IsUpcoming reports whether the appointment still awaits its outcome.
func (a *AppointmentContext) IsUpcoming() bool {
	return a.Status == "" || a.Status == AppointmentBooked
}
