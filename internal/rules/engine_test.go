package rules

import (
	"strings"
	"testing"

	"github.com/opensource-identity/kestrel/internal/domain"
	"github.com/opensource-identity/kestrel/internal/scoring"
)

func newRuleConfig(id, expression string) *domain.AlertRuleConfig {
	return &domain.AlertRuleConfig{
		ID:         id,
		TenantID:   "tenant-1",
		Name:       id,
		Version:    "1.0",
		Expression: expression,
		Severity:   domain.SeverityHigh,
		Category:   domain.CategoryDocument,
		AlertType:  "CUSTOM",
		Enabled:    true,
	}
}

func testInput() *EvaluateInput {
	factors := &domain.RiskFactors{
		Document: &domain.DocumentAnalysis{Confidence: 88},
		Face:     &domain.FaceAnalysis{LivenessScore: 45},
	}
	return &EvaluateInput{
		TrustScore: 55,
		RiskTier:   domain.TierHigh,
		Factors:    factors,
		Scores: scoring.Scores{
			domain.CategoryDocument: {
				Category:        domain.CategoryDocument,
				NormalizedScore: 72,
			},
			domain.CategoryFace: {
				Category:        domain.CategoryFace,
				NormalizedScore: 38,
				Flags:           []string{scoring.FlagLivenessFailure},
			},
		},
		Synthetic: scoring.SyntheticAssessment{RiskScore: 20},
	}
}

func TestValidateRule(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()

	tests := []struct {
		name       string
		expression string
		wantErr    string
	}{
		{"valid comparison", "trust_score < 40", ""},
		{"valid compound", "risk_tier == 'HIGH' && liveness < 50.0", ""},
		{"valid flag check", "'liveness_failure' in flags", ""},
		{"unknown variable", "velocity > 3", "undeclared reference"},
		{"non-bool output", "trust_score + 1", "must return bool"},
		{"syntax error", "trust_score <", "failed to compile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.ValidateRule(newRuleConfig("rule-1", tt.expression))
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid rule, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}

	t.Run("nil config", func(t *testing.T) {
		if err := engine.ValidateRule(nil); err == nil {
			t.Error("expected error for nil config")
		}
	})

	// Validation must not load the rule.
	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 loaded rules after validation, got %d", engine.RulesCount())
	}
}

func TestLoadRules(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()

	enabled := newRuleConfig("rule-enabled", "trust_score < 60")
	disabled := newRuleConfig("rule-disabled", "trust_score < 60")
	disabled.Enabled = false

	if err := engine.LoadRules([]*domain.AlertRuleConfig{enabled, disabled}); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected disabled rule to be skipped, got %d rules", engine.RulesCount())
	}

	loaded := engine.GetLoadedRules()
	if len(loaded) != 1 || loaded[0].ID != "rule-enabled" {
		t.Errorf("unexpected loaded rules: %v", loaded)
	}
}

func TestReloadRulesReplacesExisting(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()

	if err := engine.LoadRule(newRuleConfig("rule-old", "trust_score < 60")); err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	if err := engine.ReloadRules([]*domain.AlertRuleConfig{
		newRuleConfig("rule-new", "trust_score < 90"),
	}); err != nil {
		t.Fatalf("ReloadRules failed: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Fatalf("expected 1 rule after reload, got %d", engine.RulesCount())
	}
	if engine.GetLoadedRules()[0].ID != "rule-new" {
		t.Error("expected old rule set to be replaced")
	}

	t.Run("CompileFailureLeavesRulesIntact", func(t *testing.T) {
		err := engine.ReloadRules([]*domain.AlertRuleConfig{
			newRuleConfig("rule-broken", "not an expression !!"),
		})
		if err == nil {
			t.Fatal("expected compile error")
		}
		if engine.RulesCount() != 1 || engine.GetLoadedRules()[0].ID != "rule-new" {
			t.Error("failed reload must not replace the active rule set")
		}
	})
}

func TestEvaluate(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()

	rules := []*domain.AlertRuleConfig{
		newRuleConfig("rule-trust", "trust_score < 60"),
		newRuleConfig("rule-tier", "risk_tier == 'CRITICAL'"),
		newRuleConfig("rule-liveness", "liveness < 50.0 && document_score > 70.0"),
		newRuleConfig("rule-flag", "'liveness_failure' in flags"),
		newRuleConfig("rule-synthetic", "synthetic_risk > 80.0"),
	}
	if err := engine.LoadRules(rules); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}

	triggered, errs := engine.Evaluate(testInput())
	if len(errs) != 0 {
		t.Fatalf("unexpected evaluation errors: %v", errs)
	}

	got := make(map[string]bool, len(triggered))
	for _, cfg := range triggered {
		got[cfg.ID] = true
	}

	want := map[string]bool{
		"rule-trust":    true,
		"rule-liveness": true,
		"rule-flag":     true,
	}
	for id := range want {
		if !got[id] {
			t.Errorf("expected rule %s to trigger", id)
		}
	}
	if got["rule-tier"] {
		t.Error("rule-tier must not trigger for HIGH tier")
	}
	if got["rule-synthetic"] {
		t.Error("rule-synthetic must not trigger at risk 20")
	}
}

func TestEvaluateNoRules(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()

	triggered, errs := engine.Evaluate(testInput())
	if triggered != nil || errs != nil {
		t.Errorf("expected no output without rules, got %v / %v", triggered, errs)
	}
}

func TestEvaluateMissingOptionalSignals(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()

	// Absent categories surface as zero scores, not evaluation errors.
	if err := engine.LoadRule(newRuleConfig("rule-behavioral", "behavioral_score == 0.0 && historical_score == 0.0")); err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	input := testInput()
	triggered, errs := engine.Evaluate(input)
	if len(errs) != 0 {
		t.Fatalf("unexpected evaluation errors: %v", errs)
	}
	if len(triggered) != 1 {
		t.Errorf("expected rule to trigger on absent signals, got %d", len(triggered))
	}
}
