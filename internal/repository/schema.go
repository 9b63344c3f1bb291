package repository

// Schema definitions for the Perch database.
// Compatible with both SQLite and PostgreSQL.

const schemaClientRecords = `
CREATE TABLE IF NOT EXISTS client_records (
    tenant_id TEXT NOT NULL,
    client_id TEXT NOT NULL,
    total_appointments INTEGER NOT NULL DEFAULT 0,
    total_cancellations INTEGER NOT NULL DEFAULT 0,
    total_no_shows INTEGER NOT NULL DEFAULT 0,
    consecutive_cancellations INTEGER NOT NULL DEFAULT 0,
    last_cancellation_date TIMESTAMP,
    deposit_override INTEGER,
    reliability_score INTEGER,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, client_id)
);
`

// Prices are stored as decimal text so no precision is lost to REAL.
const schemaAppointments = `
CREATE TABLE IF NOT EXISTS appointments (
    tenant_id TEXT NOT NULL,
    id TEXT NOT NULL,
    client_id TEXT NOT NULL,
    service_price TEXT NOT NULL,
    scheduled_date TIMESTAMP NOT NULL,
    start_time TEXT NOT NULL DEFAULT '',
    is_weekend_premium INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_appointments_client ON appointments(tenant_id, client_id);
CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(tenant_id, status);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    floor_percentage INTEGER NOT NULL,
    reason TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_tenant ON rule_configs(tenant_id);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaClientRecords,
		schemaAppointments,
		schemaRuleConfigs,
	}
}
