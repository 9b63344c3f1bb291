// Package domain defines the core types and interfaces for Perch.
package domain

import (
	"context"
	"time"
)

// Repository stores the snapshots the booking system pushes to Perch.
// All methods require tenantID for strict multi-tenancy isolation.
// Deposit decisions are never stored.
type Repository interface {
	// Client reliability snapshots
	SaveRecord(ctx context.Context, tenantID string, rec *ClientReliabilityRecord) error
	GetRecord(ctx context.Context, tenantID string, clientID string) (*ClientReliabilityRecord, error)
	ListRecords(ctx context.Context, tenantID string) ([]*ClientReliabilityRecord, error)

	// Appointments
	SaveAppointment(ctx context.Context, tenantID string, appt *AppointmentContext) error
	GetAppointment(ctx context.Context, tenantID string, appointmentID string) (*AppointmentContext, error)
	ListAppointments(ctx context.Context, tenantID string, status string) ([]*AppointmentContext, error)
	ListAppointmentsByClient(ctx context.Context, tenantID string, clientID string) ([]*AppointmentContext, error)

	// Custom deposit rules
	SaveRuleConfig(ctx context.Context, tenantID string, rule *RuleConfig) error
	GetRuleConfig(ctx context.Context, tenantID string, ruleID string) (*RuleConfig, error)
	ListRuleConfigs(ctx context.Context, tenantID string) ([]*RuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `mapstructure:"driver"`

	// SQLite specific
	SQLitePath string `mapstructure:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDB       string `mapstructure:"postgres_db"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`

	// Connection pool settings
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}
