// Package policy maps tenant industry configuration to decision
// thresholds and turns aggregated trust scores into decisions and
// fraud alerts.
package policy

import (
	"fmt"

	"github.com/opensource-identity/kestrel/internal/domain"
)

// ErrPolicyNotFound is returned for an unknown industry. No default
// policy is silently substituted.
var ErrPolicyNotFound = fmt.Errorf("policy not found")

// presets are the built-in industry policies. Tenants start from a
// preset and may override it through the policy API.
var presets = map[domain.Industry]domain.IndustryPolicy{
	domain.IndustryBanking: {
		Industry: domain.IndustryBanking,
		RequiredChecks: []domain.SignalCategory{
			domain.CategoryDocument, domain.CategoryFace,
			domain.CategoryBehavioral, domain.CategorySynthetic,
		},
		Thresholds: domain.RiskThresholds{AutoApprove: 90, ManualReview: 70, AutoReject: 50},
		FraudAlertSeverities: []domain.Severity{
			domain.SeverityHigh, domain.SeverityCritical,
		},
		Compliance: domain.ComplianceFlags{
			GDPR: true, KYCAML: true, CCPA: true, PCI: true, SOX: true,
		},
		DataRetentionDays:        2555,
		ReVerificationPeriodDays: 365,
	},
	domain.IndustryGovernment: {
		Industry: domain.IndustryGovernment,
		RequiredChecks: []domain.SignalCategory{
			domain.CategoryDocument, domain.CategoryFace,
			domain.CategoryFingerprint, domain.CategoryPalmVein,
			domain.CategoryVoice, domain.CategoryBehavioral,
			domain.CategorySynthetic,
		},
		Thresholds: domain.RiskThresholds{AutoApprove: 95, ManualReview: 80, AutoReject: 60},
		FraudAlertSeverities: []domain.Severity{
			domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical,
		},
		Compliance: domain.ComplianceFlags{
			GDPR: true, KYCAML: true, CCPA: true, SOX: true,
		},
		DataRetentionDays:        3650,
		ReVerificationPeriodDays: 180,
	},
	domain.IndustryCrypto: {
		Industry: domain.IndustryCrypto,
		RequiredChecks: []domain.SignalCategory{
			domain.CategoryDocument, domain.CategoryFace,
			domain.CategoryBehavioral, domain.CategorySynthetic,
		},
		Thresholds: domain.RiskThresholds{AutoApprove: 85, ManualReview: 65, AutoReject: 45},
		FraudAlertSeverities: []domain.Severity{
			domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical,
		},
		Compliance: domain.ComplianceFlags{
			GDPR: true, KYCAML: true, CCPA: true,
		},
		DataRetentionDays:        1825,
		ReVerificationPeriodDays: 180,
	},
	domain.IndustryFintech: {
		Industry: domain.IndustryFintech,
		RequiredChecks: []domain.SignalCategory{
			domain.CategoryDocument, domain.CategoryFace,
			domain.CategoryBehavioral, domain.CategorySynthetic,
		},
		Thresholds: domain.RiskThresholds{AutoApprove: 85, ManualReview: 65, AutoReject: 45},
		FraudAlertSeverities: []domain.Severity{
			domain.SeverityHigh, domain.SeverityCritical,
		},
		Compliance: domain.ComplianceFlags{
			GDPR: true, KYCAML: true, CCPA: true, PCI: true,
		},
		DataRetentionDays:        2555,
		ReVerificationPeriodDays: 365,
	},
	domain.IndustryHealthcare: {
		Industry: domain.IndustryHealthcare,
		RequiredChecks: []domain.SignalCategory{
			domain.CategoryDocument, domain.CategoryFace,
			domain.CategorySynthetic,
		},
		Thresholds: domain.RiskThresholds{AutoApprove: 85, ManualReview: 70, AutoReject: 50},
		FraudAlertSeverities: []domain.Severity{
			domain.SeverityHigh, domain.SeverityCritical,
		},
		Compliance: domain.ComplianceFlags{
			GDPR: true, CCPA: true, HIPAA: true,
		},
		DataRetentionDays:        2555,
		ReVerificationPeriodDays: 730,
	},
	domain.IndustryEcommerce: {
		Industry: domain.IndustryEcommerce,
		RequiredChecks: []domain.SignalCategory{
			domain.CategoryFace, domain.CategoryBehavioral,
		},
		Thresholds: domain.RiskThresholds{AutoApprove: 70, ManualReview: 50, AutoReject: 30},
		FraudAlertSeverities: []domain.Severity{
			domain.SeverityCritical,
		},
		Compliance: domain.ComplianceFlags{
			GDPR: true, CCPA: true, PCI: true,
		},
		DataRetentionDays:        730,
		ReVerificationPeriodDays: 730,
	},
}

// PresetFor returns a copy of the built-in policy for the industry.
// Unknown industries return ErrPolicyNotFound.
func PresetFor(industry domain.Industry) (*domain.IndustryPolicy, error) {
	preset, ok := presets[industry]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, industry)
	}

	// Copy slices so callers cannot mutate the preset.
	p := preset
	p.RequiredChecks = append([]domain.SignalCategory(nil), preset.RequiredChecks...)
	p.FraudAlertSeverities = append([]domain.Severity(nil), preset.FraudAlertSeverities...)
	return &p, nil
}

// Industries lists the built-in industries in a stable order.
func Industries() []domain.Industry {
	return []domain.Industry{
		domain.IndustryBanking,
		domain.IndustryFintech,
		domain.IndustryCrypto,
		domain.IndustryGovernment,
		domain.IndustryHealthcare,
		domain.IndustryEcommerce,
	}
}
