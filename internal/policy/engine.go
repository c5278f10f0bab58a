package policy

import (
	"time"

	"github.com/google/uuid"
	"github.com/opensource-identity/kestrel/internal/domain"
	"github.com/opensource-identity/kestrel/internal/scoring"
)

// Decide maps a trust score to an outcome under the tenant thresholds.
//
// The outcome is a pure two-threshold split: at or above autoApprove the
// attempt is approved, at or above manualReview it goes to review, and
// everything below is rejected. The autoReject threshold is validated
// for monotonicity and carried in reporting but does not independently
// change the outcome.
func Decide(trustScore int, policy *domain.IndustryPolicy) domain.Outcome {
	switch {
	case trustScore >= policy.Thresholds.AutoApprove:
		return domain.OutcomeApproved
	case trustScore >= policy.Thresholds.ManualReview:
		return domain.OutcomeManualReview
	default:
		return domain.OutcomeRejected
	}
}

// MissingRequiredChecks lists policy-required signal categories that were
// not supplied in the factors.
func MissingRequiredChecks(factors *domain.RiskFactors, policy *domain.IndustryPolicy) []domain.SignalCategory {
	var missing []domain.SignalCategory
	for _, cat := range policy.RequiredChecks {
		if !signalPresent(factors, cat) {
			missing = append(missing, cat)
		}
	}
	return missing
}

// ApplyGating caps the outcome at MANUAL_REVIEW when any policy-required
// signal is missing. A verification never auto-approves on missing
// required evidence; an already-rejected outcome stays rejected.
func ApplyGating(outcome domain.Outcome, missing []domain.SignalCategory) domain.Outcome {
	if len(missing) == 0 {
		return outcome
	}
	if outcome == domain.OutcomeApproved {
		return domain.OutcomeManualReview
	}
	return outcome
}

func signalPresent(factors *domain.RiskFactors, cat domain.SignalCategory) bool {
	switch cat {
	case domain.CategoryDocument:
		return factors.Document != nil
	case domain.CategoryFace:
		return factors.Face != nil
	case domain.CategoryFingerprint:
		return factors.Fingerprint != nil
	case domain.CategoryPalmVein:
		return factors.PalmVein != nil
	case domain.CategoryVoice:
		return factors.Voice != nil
	case domain.CategoryBehavioral:
		return factors.Behavioral != nil
	case domain.CategoryHistorical:
		return factors.Historical != nil
	case domain.CategorySynthetic:
		return factors.Synthetic != nil
	default:
		return false
	}
}

// AlertInput bundles everything the alert emitter inspects.
type AlertInput struct {
	TenantID       string
	UserID         string
	VerificationID string
	Factors        *domain.RiskFactors
	Scores         scoring.Scores
	Synthetic      scoring.SyntheticAssessment
	Timestamp      time.Time
}

// EmitAlerts builds the fraud alerts for a finished aggregation. Each
// trigger has a fixed severity; alerts whose severity the policy does not
// allow are suppressed. HIGH and CRITICAL alerts require action.
func EmitAlerts(in AlertInput, policy *domain.IndustryPolicy) []*domain.FraudAlert {
	var alerts []*domain.FraudAlert

	add := func(severity domain.Severity, category domain.SignalCategory, alertType string, indicators []string) {
		if !policy.AllowsSeverity(severity) {
			return
		}
		alerts = append(alerts, &domain.FraudAlert{
			AlertID:        uuid.New().String(),
			TenantID:       in.TenantID,
			UserID:         in.UserID,
			VerificationID: in.VerificationID,
			Severity:       severity,
			Category:       category,
			AlertType:      alertType,
			Indicators:     indicators,
			RequiresAction: severity == domain.SeverityHigh || severity == domain.SeverityCritical,
			Timestamp:      in.Timestamp,
		})
	}

	if in.Synthetic.IsSynthetic {
		add(domain.SeverityCritical, domain.CategorySynthetic, domain.AlertSyntheticIdentity, in.Synthetic.Indicators)
	}

	if doc, ok := in.Scores[domain.CategoryDocument]; ok && doc.HasFlag(scoring.FlagDocumentTampering) {
		add(domain.SeverityHigh, domain.CategoryDocument, domain.AlertDocumentTampering,
			[]string{"Document tampering detected"})
	}

	if face, ok := in.Scores[domain.CategoryFace]; ok && face.HasFlag(scoring.FlagLivenessFailure) {
		add(domain.SeverityHigh, domain.CategoryFace, domain.AlertLivenessFailure,
			[]string{"Liveness verification failed"})
	}

	if behavioral, ok := in.Scores[domain.CategoryBehavioral]; ok && behavioral.HasFlag(scoring.FlagBehavioralAnomaly) {
		add(domain.SeverityMedium, domain.CategoryBehavioral, domain.AlertBehavioralAnomaly,
			behavioral.Flags)
	}

	return alerts
}
