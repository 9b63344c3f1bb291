package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `mapstructure:"type"`

	// Channel settings (Community tier)
	ChannelBufferSize int `mapstructure:"channel_buffer_size"`

	// NATS settings (Pro tier)
	NATSUrl           string `mapstructure:"nats_url"`
	NATSToken         string `mapstructure:"nats_token"`
	NATSMaxReconnects int    `mapstructure:"nats_max_reconnects"`
	NATSReconnectWait int    `mapstructure:"nats_reconnect_wait"` // seconds

	// NATSQueueGroup, when set, load-balances subscriptions across replicas.
	NATSQueueGroup string `mapstructure:"nats_queue_group"`
}

// Topics published and consumed by Perch.
const (
	// TopicRecordUpdated carries a fresh ClientReliabilityRecord snapshot
	// from the booking system after an appointment outcome changes.
	TopicRecordUpdated = "perch.record.updated"

	// TopicDepositDecision carries a DecisionEvent for a re-evaluated appointment.
	TopicDepositDecision = "perch.deposit.decision"

	// TopicAttentionFlagged carries a DecisionEvent whose deposit exceeds
	// the attention threshold.
	TopicAttentionFlagged = "perch.attention.flagged"
)

// DecisionEvent is the payload published for a (re)computed deposit decision.
type DecisionEvent struct {
	TenantID      string          `json:"tenantId"`
	AppointmentID string          `json:"appointmentId"`
	ClientID      string          `json:"clientId"`
	Decision      DepositDecision `json:"decision"`
	DepositAmount string          `json:"depositAmount"`
	Score         int             `json:"score"`
	Timestamp     int64           `json:"timestamp"`
}
