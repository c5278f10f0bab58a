// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-identity/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("record already exists")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas(r.driver) {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveDecision stores a decision with tenant isolation. Decisions are
// write-once; a second save for the same verification ID fails with
// ErrDuplicate.
func (r *SQLRepository) SaveDecision(ctx context.Context, tenantID string, decision *domain.Decision) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	riskScore, _ := json.Marshal(decision.RiskScore)
	metadata, _ := json.Marshal(decision.Metadata)

	query := `
		INSERT INTO decisions (
			verification_id, tenant_id, user_id, outcome,
			risk_score, policy_industry, timestamp, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		decision.VerificationID, tenantID, decision.UserID, decision.Outcome,
		string(riskScore), decision.PolicyIndustry, decision.Timestamp,
		string(metadata),
	)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: decision %s", ErrDuplicate, decision.VerificationID)
	}
	return err
}

// GetDecision retrieves a decision by verification ID with tenant isolation.
func (r *SQLRepository) GetDecision(ctx context.Context, tenantID string, verificationID string) (*domain.Decision, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT verification_id, tenant_id, user_id, outcome,
			   risk_score, policy_industry, timestamp, metadata
		FROM decisions
		WHERE tenant_id = ? AND verification_id = ?
	`

	var decision domain.Decision
	var riskScore, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, verificationID).Scan(
		&decision.VerificationID, &decision.TenantID, &decision.UserID, &decision.Outcome,
		&riskScore, &decision.PolicyIndustry, &decision.Timestamp, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(riskScore), &decision.RiskScore); err != nil {
		return nil, fmt.Errorf("failed to parse risk score: %w", err)
	}
	json.Unmarshal([]byte(metadata), &decision.Metadata)

	return &decision, nil
}

// ListDecisionsByUser retrieves decisions for a user with tenant isolation.
func (r *SQLRepository) ListDecisionsByUser(ctx context.Context, tenantID string, userID string, since time.Time) ([]*domain.Decision, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT verification_id, tenant_id, user_id, outcome,
			   risk_score, policy_industry, timestamp, metadata
		FROM decisions
		WHERE tenant_id = ? AND user_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*domain.Decision
	for rows.Next() {
		var decision domain.Decision
		var riskScore, metadata string

		if err := rows.Scan(
			&decision.VerificationID, &decision.TenantID, &decision.UserID, &decision.Outcome,
			&riskScore, &decision.PolicyIndustry, &decision.Timestamp, &metadata,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(riskScore), &decision.RiskScore); err != nil {
			return nil, fmt.Errorf("failed to parse risk score for %s: %w", decision.VerificationID, err)
		}
		json.Unmarshal([]byte(metadata), &decision.Metadata)
		decisions = append(decisions, &decision)
	}

	return decisions, rows.Err()
}

// SaveFraudAlert stores a fraud alert with tenant isolation.
func (r *SQLRepository) SaveFraudAlert(ctx context.Context, tenantID string, alert *domain.FraudAlert) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	indicators, _ := json.Marshal(alert.Indicators)

	requiresAction := 0
	if alert.RequiresAction {
		requiresAction = 1
	}

	query := `
		INSERT INTO fraud_alerts (
			alert_id, tenant_id, user_id, verification_id,
			severity, category, alert_type, indicators, requires_action, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.AlertID, tenantID, alert.UserID, alert.VerificationID,
		alert.Severity, alert.Category, alert.AlertType,
		string(indicators), requiresAction, alert.Timestamp,
	)
	return err
}

// ListFraudAlerts retrieves alerts with tenant isolation. userID and
// severity are optional filters; zero values match everything.
func (r *SQLRepository) ListFraudAlerts(ctx context.Context, tenantID string, userID string, severity domain.Severity) ([]*domain.FraudAlert, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT alert_id, tenant_id, user_id, verification_id,
			   severity, category, alert_type, indicators, requires_action, timestamp
		FROM fraud_alerts
		WHERE tenant_id = ?
	`
	args := []any{tenantID}

	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if severity != "" {
		query += " AND severity = ?"
		args = append(args, severity)
	}
	query += " ORDER BY timestamp DESC"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.FraudAlert
	for rows.Next() {
		var alert domain.FraudAlert
		var indicators string
		var requiresAction int

		if err := rows.Scan(
			&alert.AlertID, &alert.TenantID, &alert.UserID, &alert.VerificationID,
			&alert.Severity, &alert.Category, &alert.AlertType,
			&indicators, &requiresAction, &alert.Timestamp,
		); err != nil {
			return nil, err
		}

		alert.RequiresAction = requiresAction == 1
		json.Unmarshal([]byte(indicators), &alert.Indicators)
		alerts = append(alerts, &alert)
	}

	return alerts, rows.Err()
}

// SaveAuditRecord appends a block to the audit chain with tenant isolation.
func (r *SQLRepository) SaveAuditRecord(ctx context.Context, tenantID string, record *domain.AuditRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO audit_records (
			record_id, tenant_id, user_id, verification_id, timestamp,
			data_hash, previous_hash, block_hash,
			outcome, trust_score, risk_tier, alert_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		record.RecordID, tenantID, record.UserID, record.VerificationID, record.Timestamp,
		record.DataHash, record.PreviousHash, record.BlockHash,
		record.Outcome, record.TrustScore, record.RiskTier, record.AlertCount,
	)
	return err
}

// ListAuditRecords retrieves a user's audit chain in append order.
func (r *SQLRepository) ListAuditRecords(ctx context.Context, tenantID string, userID string) ([]*domain.AuditRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT record_id, tenant_id, user_id, verification_id, timestamp,
			   data_hash, previous_hash, block_hash,
			   outcome, trust_score, risk_tier, alert_count
		FROM audit_records
		WHERE tenant_id = ?
	`
	args := []any{tenantID}

	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY seq ASC"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.AuditRecord
	for rows.Next() {
		var record domain.AuditRecord

		if err := rows.Scan(
			&record.RecordID, &record.TenantID, &record.UserID, &record.VerificationID, &record.Timestamp,
			&record.DataHash, &record.PreviousHash, &record.BlockHash,
			&record.Outcome, &record.TrustScore, &record.RiskTier, &record.AlertCount,
		); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// SavePolicy stores or updates a tenant policy.
func (r *SQLRepository) SavePolicy(ctx context.Context, tenantID string, policy *domain.IndustryPolicy) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	requiredChecks, _ := json.Marshal(policy.RequiredChecks)
	thresholds, _ := json.Marshal(policy.Thresholds)
	severities, _ := json.Marshal(policy.FraudAlertSeverities)
	compliance, _ := json.Marshal(policy.Compliance)

	now := time.Now().UTC()

	query := `
		INSERT INTO policies (
			industry, tenant_id, required_checks, thresholds, alert_severities,
			compliance, data_retention_days, reverification_period_days,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(industry, tenant_id) DO UPDATE SET
			required_checks = excluded.required_checks,
			thresholds = excluded.thresholds,
			alert_severities = excluded.alert_severities,
			compliance = excluded.compliance,
			data_retention_days = excluded.data_retention_days,
			reverification_period_days = excluded.reverification_period_days,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		policy.Industry, tenantID, string(requiredChecks), string(thresholds),
		string(severities), string(compliance),
		policy.DataRetentionDays, policy.ReVerificationPeriodDays,
		now, now,
	)
	return err
}

// GetPolicy retrieves a tenant policy override for an industry.
func (r *SQLRepository) GetPolicy(ctx context.Context, tenantID string, industry domain.Industry) (*domain.IndustryPolicy, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT industry, tenant_id, required_checks, thresholds, alert_severities,
			   compliance, data_retention_days, reverification_period_days,
			   created_at, updated_at
		FROM policies
		WHERE tenant_id = ? AND industry = ?
	`

	policy, err := scanPolicy(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, industry))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return policy, err
}

// ListPolicies retrieves all policy overrides for a tenant.
func (r *SQLRepository) ListPolicies(ctx context.Context, tenantID string) ([]*domain.IndustryPolicy, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT industry, tenant_id, required_checks, thresholds, alert_severities,
			   compliance, data_retention_days, reverification_period_days,
			   created_at, updated_at
		FROM policies
		WHERE tenant_id = ?
		ORDER BY industry
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*domain.IndustryPolicy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}

	return policies, rows.Err()
}

// SaveAlertRule stores or updates a custom alert rule.
func (r *SQLRepository) SaveAlertRule(ctx context.Context, tenantID string, rule *domain.AlertRuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO alert_rules (
			id, tenant_id, name, description, version, expression,
			severity, category, alert_type, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version,
			expression = excluded.expression,
			severity = excluded.severity,
			category = excluded.category,
			alert_type = excluded.alert_type,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description, rule.Version,
		rule.Expression, rule.Severity, rule.Category, rule.AlertType,
		enabled, now, now,
	)
	return err
}

// ListAlertRules retrieves all alert rules for a tenant.
func (r *SQLRepository) ListAlertRules(ctx context.Context, tenantID string) ([]*domain.AlertRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression,
			   severity, category, alert_type, enabled
		FROM alert_rules
		WHERE tenant_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.AlertRuleConfig
	for rows.Next() {
		var rule domain.AlertRuleConfig
		var description sql.NullString
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &description, &rule.Version,
			&rule.Expression, &rule.Severity, &rule.Category, &rule.AlertType,
			&enabled,
		); err != nil {
			return nil, err
		}

		rule.Description = description.String
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// AppendBaseline appends a behavioral sample to a user's history.
func (r *SQLRepository) AppendBaseline(ctx context.Context, tenantID string, userID string, pattern *domain.BehavioralPattern) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	data, err := json.Marshal(pattern)
	if err != nil {
		return fmt.Errorf("failed to encode pattern: %w", err)
	}

	query := `
		INSERT INTO behavioral_baselines (tenant_id, user_id, pattern, recorded_at)
		VALUES (?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		tenantID, userID, string(data), pattern.RecordedAt,
	)
	return err
}

// GetBaseline retrieves up to limit most recent samples, newest first.
func (r *SQLRepository) GetBaseline(ctx context.Context, tenantID string, userID string, limit int) ([]*domain.BehavioralPattern, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT pattern
		FROM behavioral_baselines
		WHERE tenant_id = ? AND user_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []*domain.BehavioralPattern
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var pattern domain.BehavioralPattern
		if err := json.Unmarshal([]byte(data), &pattern); err != nil {
			return nil, fmt.Errorf("failed to parse baseline pattern: %w", err)
		}
		patterns = append(patterns, &pattern)
	}

	return patterns, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// isUniqueViolation detects primary key conflicts across both drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*domain.IndustryPolicy, error) {
	var policy domain.IndustryPolicy
	var requiredChecks, thresholds, severities, compliance string

	err := row.Scan(
		&policy.Industry, &policy.TenantID, &requiredChecks, &thresholds,
		&severities, &compliance,
		&policy.DataRetentionDays, &policy.ReVerificationPeriodDays,
		&policy.CreatedAt, &policy.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(requiredChecks), &policy.RequiredChecks); err != nil {
		return nil, fmt.Errorf("failed to parse required checks: %w", err)
	}
	if err := json.Unmarshal([]byte(thresholds), &policy.Thresholds); err != nil {
		return nil, fmt.Errorf("failed to parse thresholds: %w", err)
	}
	json.Unmarshal([]byte(severities), &policy.FraudAlertSeverities)
	json.Unmarshal([]byte(compliance), &policy.Compliance)

	return &policy, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
