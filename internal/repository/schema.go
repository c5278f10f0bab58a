package repository

import "strings"

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL; the only divergence is the
// auto-incrementing sequence column, substituted per driver below.

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    verification_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    outcome TEXT NOT NULL,
    risk_score TEXT NOT NULL,
    policy_industry TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL,
    PRIMARY KEY (verification_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_decisions_tenant ON decisions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_decisions_user ON decisions(tenant_id, user_id);
CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(tenant_id, timestamp);
`

const schemaFraudAlerts = `
CREATE TABLE IF NOT EXISTS fraud_alerts (
    alert_id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    verification_id TEXT NOT NULL,
    severity TEXT NOT NULL,
    category TEXT NOT NULL,
    alert_type TEXT NOT NULL,
    indicators TEXT NOT NULL,
    requires_action INTEGER NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fraud_alerts_tenant ON fraud_alerts(tenant_id);
CREATE INDEX IF NOT EXISTS idx_fraud_alerts_user ON fraud_alerts(tenant_id, user_id);
CREATE INDEX IF NOT EXISTS idx_fraud_alerts_severity ON fraud_alerts(tenant_id, severity);
`

// schemaAuditRecords stores the hash chain. seq preserves append order;
// the chain is verified by recomputing hashes in that order.
const schemaAuditRecords = `
CREATE TABLE IF NOT EXISTS audit_records (
    seq %SEQ%,
    record_id TEXT NOT NULL UNIQUE,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    verification_id TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    data_hash TEXT NOT NULL,
    previous_hash TEXT NOT NULL,
    block_hash TEXT NOT NULL,
    outcome TEXT NOT NULL,
    trust_score INTEGER NOT NULL,
    risk_tier TEXT NOT NULL,
    alert_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_audit_records_tenant ON audit_records(tenant_id);
CREATE INDEX IF NOT EXISTS idx_audit_records_user ON audit_records(tenant_id, user_id, seq);
`

const schemaPolicies = `
CREATE TABLE IF NOT EXISTS policies (
    industry TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    required_checks TEXT NOT NULL,
    thresholds TEXT NOT NULL,
    alert_severities TEXT NOT NULL,
    compliance TEXT NOT NULL,
    data_retention_days INTEGER NOT NULL DEFAULT 0,
    reverification_period_days INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (industry, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_policies_tenant ON policies(tenant_id);
`

const schemaAlertRules = `
CREATE TABLE IF NOT EXISTS alert_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    severity TEXT NOT NULL,
    category TEXT NOT NULL,
    alert_type TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_alert_rules_tenant ON alert_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_alert_rules_enabled ON alert_rules(tenant_id, enabled);
`

const schemaBehavioralBaselines = `
CREATE TABLE IF NOT EXISTS behavioral_baselines (
    seq %SEQ%,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    pattern TEXT NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_baselines_user ON behavioral_baselines(tenant_id, user_id, seq);
`

// AllSchemas returns all schema statements in order for the given driver.
func AllSchemas(driver string) []string {
	seq := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		seq = "BIGSERIAL PRIMARY KEY"
	}

	schemas := []string{
		schemaDecisions,
		schemaFraudAlerts,
		schemaAuditRecords,
		schemaPolicies,
		schemaAlertRules,
		schemaBehavioralBaselines,
	}
	for i, s := range schemas {
		schemas[i] = strings.ReplaceAll(s, "%SEQ%", seq)
	}
	return schemas
}
