package domain

import (
	"fmt"
	"time"
)

// Industry identifies a tenant policy preset.
type Industry string

const (
	IndustryBanking    Industry = "BANKING"
	IndustryFintech    Industry = "FINTECH"
	IndustryCrypto     Industry = "CRYPTOCURRENCY"
	IndustryGovernment Industry = "GOVERNMENT"
	IndustryHealthcare Industry = "HEALTHCARE"
	IndustryEcommerce  Industry = "ECOMMERCE"
	IndustryCustom     Industry = "CUSTOM"
)

// RiskThresholds are the tenant-configured decision thresholds.
// Invariant: AutoApprove > ManualReview > AutoReject.
//
// The outcome is a two-threshold split (>= AutoApprove approves,
// >= ManualReview reviews, anything below rejects). AutoReject is
// validated and surfaced for reporting but does not independently
// change the outcome.
type RiskThresholds struct {
	AutoApprove  int `json:"autoApprove"`
	ManualReview int `json:"manualReview"`
	AutoReject   int `json:"autoReject"`
}

// ComplianceFlags records which regimes the tenant is subject to.
type ComplianceFlags struct {
	GDPR   bool `json:"gdpr"`
	KYCAML bool `json:"kycAml"`
	CCPA   bool `json:"ccpa"`
	PCI    bool `json:"pci"`
	HIPAA  bool `json:"hipaa"`
	SOX    bool `json:"sox"`
}

// IndustryPolicy is the tenant configuration applied to a decision.
// Immutable for the duration of a decision; changes apply only to
// subsequent verifications.
type IndustryPolicy struct {
	Industry Industry `json:"industry"`
	TenantID string   `json:"tenantId,omitempty"`

	// RequiredChecks lists signal categories that must be supplied.
	// A missing required signal caps the outcome at MANUAL_REVIEW.
	RequiredChecks []SignalCategory `json:"requiredChecks"`

	Thresholds RiskThresholds `json:"thresholds"`

	// FraudAlertSeverities filters which alert severities are emitted.
	FraudAlertSeverities []Severity `json:"fraudAlertSeverities"`

	Compliance               ComplianceFlags `json:"compliance"`
	DataRetentionDays        int             `json:"dataRetentionDays"`
	ReVerificationPeriodDays int             `json:"reVerificationPeriodDays"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Validate checks the structural invariants of a policy.
func (p *IndustryPolicy) Validate() error {
	if p.Industry == "" {
		return fmt.Errorf("industry is required")
	}
	t := p.Thresholds
	if t.AutoApprove <= t.ManualReview || t.ManualReview <= t.AutoReject {
		return fmt.Errorf("thresholds must satisfy autoApprove > manualReview > autoReject, got %d/%d/%d",
			t.AutoApprove, t.ManualReview, t.AutoReject)
	}
	if t.AutoApprove > 100 || t.AutoReject < 0 {
		return fmt.Errorf("thresholds must lie in [0,100]")
	}
	for _, s := range p.FraudAlertSeverities {
		switch s {
		case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		default:
			return fmt.Errorf("unknown alert severity %q", s)
		}
	}
	return nil
}

// RequiresCheck reports whether the given category is mandatory.
func (p *IndustryPolicy) RequiresCheck(cat SignalCategory) bool {
	for _, c := range p.RequiredChecks {
		if c == cat {
			return true
		}
	}
	return false
}

// AllowsSeverity reports whether alerts of the given severity are emitted.
func (p *IndustryPolicy) AllowsSeverity(sev Severity) bool {
	for _, s := range p.FraudAlertSeverities {
		if s == sev {
			return true
		}
	}
	return false
}
