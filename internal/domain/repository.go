package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Decision operations. Decisions are write-once: saving a second
	// decision for the same verification ID fails with a duplicate error.
	SaveDecision(ctx context.Context, tenantID string, decision *Decision) error
	GetDecision(ctx context.Context, tenantID string, verificationID string) (*Decision, error)
	ListDecisionsByUser(ctx context.Context, tenantID string, userID string, since time.Time) ([]*Decision, error)

	// Fraud alerts are append-only.
	SaveFraudAlert(ctx context.Context, tenantID string, alert *FraudAlert) error
	ListFraudAlerts(ctx context.Context, tenantID string, userID string, severity Severity) ([]*FraudAlert, error)

	// Audit ledger records, in append order.
	SaveAuditRecord(ctx context.Context, tenantID string, record *AuditRecord) error
	ListAuditRecords(ctx context.Context, tenantID string, userID string) ([]*AuditRecord, error)

	// Tenant policy operations.
	SavePolicy(ctx context.Context, tenantID string, policy *IndustryPolicy) error
	GetPolicy(ctx context.Context, tenantID string, industry Industry) (*IndustryPolicy, error)
	ListPolicies(ctx context.Context, tenantID string) ([]*IndustryPolicy, error)

	// Custom alert rule operations.
	SaveAlertRule(ctx context.Context, tenantID string, rule *AlertRuleConfig) error
	ListAlertRules(ctx context.Context, tenantID string) ([]*AlertRuleConfig, error)

	// Behavioral baseline history, append-only per user.
	AppendBaseline(ctx context.Context, tenantID string, userID string, pattern *BehavioralPattern) error
	GetBaseline(ctx context.Context, tenantID string, userID string, limit int) ([]*BehavioralPattern, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
