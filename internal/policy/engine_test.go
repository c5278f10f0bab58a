package policy

import (
	"testing"
	"time"

	"github.com/opensource-identity/kestrel/internal/domain"
	"github.com/opensource-identity/kestrel/internal/scoring"
)

func fintechPolicy(t *testing.T) *domain.IndustryPolicy {
	t.Helper()
	p, err := PresetFor(domain.IndustryFintech)
	if err != nil {
		t.Fatalf("PresetFor failed: %v", err)
	}
	return p
}

func TestDecide(t *testing.T) {
	p := fintechPolicy(t) // autoApprove 85, manualReview 65

	tests := []struct {
		score int
		want  domain.Outcome
	}{
		{100, domain.OutcomeApproved},
		{85, domain.OutcomeApproved},
		{84, domain.OutcomeManualReview},
		{65, domain.OutcomeManualReview},
		{64, domain.OutcomeRejected},
		{45, domain.OutcomeRejected},
		// Below autoReject the outcome is still REJECTED; the threshold
		// does not introduce a fourth band.
		{10, domain.OutcomeRejected},
		{0, domain.OutcomeRejected},
	}

	for _, tt := range tests {
		if got := Decide(tt.score, p); got != tt.want {
			t.Errorf("Decide(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestMissingRequiredChecks(t *testing.T) {
	p := fintechPolicy(t)

	t.Run("AllPresent", func(t *testing.T) {
		factors := &domain.RiskFactors{
			Document:   &domain.DocumentAnalysis{},
			Face:       &domain.FaceAnalysis{},
			Behavioral: &domain.BehavioralPattern{},
			Synthetic:  &domain.SyntheticIdentityAnalysis{},
		}
		if missing := MissingRequiredChecks(factors, p); len(missing) != 0 {
			t.Errorf("expected no missing checks, got %v", missing)
		}
	})

	t.Run("MissingBehavioralAndSynthetic", func(t *testing.T) {
		factors := &domain.RiskFactors{
			Document: &domain.DocumentAnalysis{},
			Face:     &domain.FaceAnalysis{},
		}
		missing := MissingRequiredChecks(factors, p)
		if len(missing) != 2 {
			t.Fatalf("expected 2 missing checks, got %v", missing)
		}
	})

	t.Run("OptionalSignalsNotRequired", func(t *testing.T) {
		// Fingerprint is not in the fintech required set; its absence
		// must not gate.
		factors := &domain.RiskFactors{
			Document:   &domain.DocumentAnalysis{},
			Face:       &domain.FaceAnalysis{},
			Behavioral: &domain.BehavioralPattern{},
			Synthetic:  &domain.SyntheticIdentityAnalysis{},
		}
		for _, cat := range MissingRequiredChecks(factors, p) {
			if cat == domain.CategoryFingerprint {
				t.Error("fingerprint must not be required for fintech")
			}
		}
	})
}

func TestApplyGating(t *testing.T) {
	missing := []domain.SignalCategory{domain.CategoryBehavioral}

	tests := []struct {
		name    string
		outcome domain.Outcome
		missing []domain.SignalCategory
		want    domain.Outcome
	}{
		{"approved with missing check is capped", domain.OutcomeApproved, missing, domain.OutcomeManualReview},
		{"review stays review", domain.OutcomeManualReview, missing, domain.OutcomeManualReview},
		{"rejected stays rejected", domain.OutcomeRejected, missing, domain.OutcomeRejected},
		{"approved without missing checks passes", domain.OutcomeApproved, nil, domain.OutcomeApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplyGating(tt.outcome, tt.missing); got != tt.want {
				t.Errorf("ApplyGating(%s) = %s, want %s", tt.outcome, got, tt.want)
			}
		})
	}
}

func TestEmitAlerts(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	baseInput := func() AlertInput {
		return AlertInput{
			TenantID:       "tenant-1",
			UserID:         "user-1",
			VerificationID: "ver-1",
			Factors:        &domain.RiskFactors{},
			Scores:         scoring.Scores{},
			Timestamp:      now,
		}
	}

	t.Run("SyntheticIdentity", func(t *testing.T) {
		in := baseInput()
		in.Synthetic = scoring.SyntheticAssessment{
			IsSynthetic: true,
			RiskScore:   80,
			Indicators:  []string{"AI-generated face detected"},
		}

		alerts := EmitAlerts(in, fintechPolicy(t))
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		alert := alerts[0]
		if alert.AlertType != domain.AlertSyntheticIdentity {
			t.Errorf("expected synthetic alert type, got %s", alert.AlertType)
		}
		if alert.Severity != domain.SeverityCritical {
			t.Errorf("expected CRITICAL severity, got %s", alert.Severity)
		}
		if !alert.RequiresAction {
			t.Error("critical alerts must require action")
		}
		if alert.TenantID != "tenant-1" || alert.VerificationID != "ver-1" {
			t.Errorf("alert missing identity fields: %+v", alert)
		}
	})

	t.Run("DocumentTampering", func(t *testing.T) {
		in := baseInput()
		in.Scores[domain.CategoryDocument] = domain.SignalResult{
			Category: domain.CategoryDocument,
			Flags:    []string{scoring.FlagDocumentTampering},
		}

		alerts := EmitAlerts(in, fintechPolicy(t))
		if len(alerts) != 1 || alerts[0].AlertType != domain.AlertDocumentTampering {
			t.Errorf("expected tampering alert, got %v", alerts)
		}
	})

	t.Run("LivenessFailure", func(t *testing.T) {
		in := baseInput()
		in.Scores[domain.CategoryFace] = domain.SignalResult{
			Category: domain.CategoryFace,
			Flags:    []string{scoring.FlagLivenessFailure},
		}

		alerts := EmitAlerts(in, fintechPolicy(t))
		if len(alerts) != 1 || alerts[0].AlertType != domain.AlertLivenessFailure {
			t.Errorf("expected liveness alert, got %v", alerts)
		}
	})

	t.Run("SeverityFiltering", func(t *testing.T) {
		// Behavioral anomalies are MEDIUM; fintech only allows HIGH and
		// CRITICAL, so the alert is suppressed.
		in := baseInput()
		in.Scores[domain.CategoryBehavioral] = domain.SignalResult{
			Category: domain.CategoryBehavioral,
			Flags:    []string{scoring.FlagBehavioralAnomaly, scoring.FlagUnknownDevice},
		}

		if alerts := EmitAlerts(in, fintechPolicy(t)); len(alerts) != 0 {
			t.Errorf("expected behavioral alert suppressed for fintech, got %v", alerts)
		}

		crypto, err := PresetFor(domain.IndustryCrypto)
		if err != nil {
			t.Fatalf("PresetFor failed: %v", err)
		}
		alerts := EmitAlerts(in, crypto)
		if len(alerts) != 1 || alerts[0].AlertType != domain.AlertBehavioralAnomaly {
			t.Fatalf("expected behavioral alert for crypto, got %v", alerts)
		}
		if alerts[0].RequiresAction {
			t.Error("medium alerts must not require action")
		}
	})

	t.Run("QuietVerification", func(t *testing.T) {
		if alerts := EmitAlerts(baseInput(), fintechPolicy(t)); len(alerts) != 0 {
			t.Errorf("expected no alerts, got %v", alerts)
		}
	})
}
