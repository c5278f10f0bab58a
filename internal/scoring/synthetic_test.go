package scoring

import (
	"testing"

	"github.com/opensource-identity/kestrel/internal/domain"
)

func TestScoreSynthetic(t *testing.T) {
	t.Run("CleanIdentity", func(t *testing.T) {
		result := ScoreSynthetic(validDocument(), &domain.SyntheticIdentityAnalysis{}, testNow)

		if result.IsSynthetic {
			t.Error("clean identity flagged as synthetic")
		}
		if result.RiskScore != 0 {
			t.Errorf("expected risk 0, got %f", result.RiskScore)
		}
		if len(result.Indicators) != 0 {
			t.Errorf("expected no indicators, got %v", result.Indicators)
		}
	})

	t.Run("DeepfakeAloneBelowThreshold", func(t *testing.T) {
		result := ScoreSynthetic(validDocument(), &domain.SyntheticIdentityAnalysis{
			DeepfakeDetected: true,
		}, testNow)

		if result.RiskScore != 40 {
			t.Errorf("expected risk 40, got %f", result.RiskScore)
		}
		if result.IsSynthetic {
			t.Error("risk 40 must not be declared synthetic")
		}
		if !result.DeepfakeDetected {
			t.Error("expected deepfake marker")
		}
	})

	t.Run("DeepfakeWithInconsistentData", func(t *testing.T) {
		doc := validDocument()
		doc.ExtractedData.Name = "Al"

		result := ScoreSynthetic(doc, &domain.SyntheticIdentityAnalysis{
			AIGeneratedFace: true,
		}, testNow)

		if result.RiskScore != 65 {
			t.Errorf("expected risk 65, got %f", result.RiskScore)
		}
		if !result.IsSynthetic {
			t.Error("expected synthetic declaration above 50")
		}
		if result.Confidence != 0.65 {
			t.Errorf("expected confidence 0.65, got %f", result.Confidence)
		}
		if !result.InconsistentData {
			t.Error("expected inconsistent data marker")
		}
	})

	t.Run("RepeatedDigitDocumentNumber", func(t *testing.T) {
		doc := validDocument()
		doc.ExtractedData.DocumentNumber = "AB0000123"

		result := ScoreSynthetic(doc, nil, testNow)
		if !result.InconsistentData {
			t.Errorf("expected repeated digits to flag, indicators %v", result.Indicators)
		}
	})

	t.Run("ImplausibleAge", func(t *testing.T) {
		doc := validDocument()
		doc.ExtractedData.DateOfBirth = "2015-01-01"

		result := ScoreSynthetic(doc, nil, testNow)
		if !result.InconsistentData {
			t.Errorf("expected underage DOB to flag, indicators %v", result.Indicators)
		}
	})

	t.Run("MultipleMissingFields", func(t *testing.T) {
		doc := validDocument()
		doc.ExtractedData.Name = ""
		doc.ExtractedData.DateOfBirth = ""

		result := ScoreSynthetic(doc, nil, testNow)
		if !result.InconsistentData {
			t.Errorf("expected missing fields to flag, indicators %v", result.Indicators)
		}
	})

	t.Run("SuspiciousPatterns", func(t *testing.T) {
		doc := validDocument()
		doc.ExtractedData.IssueDate = testNow.AddDate(0, 0, -5).Format("2006-01-02")
		doc.ExtractedData.Address = "PO Box 1234, Springfield"

		result := ScoreSynthetic(doc, &domain.SyntheticIdentityAnalysis{
			SessionDurationSecs: 20,
			HeadlessBrowser:     true,
		}, testNow)

		if !result.SuspiciousPatterns {
			t.Errorf("expected suspicious patterns, indicators %v", result.Indicators)
		}
		if result.RiskScore != 20 {
			t.Errorf("patterns accumulate once per bucket, expected risk 20, got %f", result.RiskScore)
		}
	})

	t.Run("AllBucketsCombine", func(t *testing.T) {
		doc := validDocument()
		doc.ExtractedData.Name = "X"
		doc.ExtractedData.Address = "po box 99"

		result := ScoreSynthetic(doc, &domain.SyntheticIdentityAnalysis{
			DeepfakeDetected: true,
			HeadlessBrowser:  true,
		}, testNow)

		if result.RiskScore != 85 {
			t.Errorf("expected risk 85, got %f", result.RiskScore)
		}
		if !result.IsSynthetic {
			t.Error("expected synthetic declaration")
		}
		if result.Confidence != 0.85 {
			t.Errorf("expected confidence 0.85, got %f", result.Confidence)
		}
	})

	t.Run("NilInputs", func(t *testing.T) {
		result := ScoreSynthetic(nil, nil, testNow)
		if result.RiskScore != 0 || result.IsSynthetic {
			t.Errorf("expected zero assessment for nil inputs, got %+v", result)
		}
	})
}
