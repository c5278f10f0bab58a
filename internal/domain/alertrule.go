package domain

// AlertRuleConfig defines a tenant-configurable fraud alert rule.
// The expression is a CEL formula evaluated over the score breakdown of a
// finished aggregation; a truthy result raises a FraudAlert with the
// configured severity.
type AlertRuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression over trust_score, document_score, biometric_score,
	// behavioral_score, historical_score, synthetic_risk, liveness, flags.
	Expression string `json:"expression"`

	Severity  Severity       `json:"severity"`
	Category  SignalCategory `json:"category"`
	AlertType string         `json:"alertType"`

	Enabled bool `json:"enabled"`
}
