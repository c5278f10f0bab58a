package scoring

import (
	"math"
	"testing"

	"github.com/opensource-identity/kestrel/internal/domain"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func allSignalFactors() *domain.RiskFactors {
	return &domain.RiskFactors{
		Document:   &domain.DocumentAnalysis{Confidence: 80},
		Face:       &domain.FaceAnalysis{LivenessScore: 75},
		Behavioral: &domain.BehavioralPattern{},
		Historical: &domain.HistoricalProfile{PreviousVerifications: 2},
	}
}

func TestAdaptiveWeights(t *testing.T) {
	t.Run("BaseSplit", func(t *testing.T) {
		weights := AdaptiveWeights(allSignalFactors())

		want := domain.Weights{
			domain.CategoryDocument:   0.40,
			domain.CategoryFace:       0.40,
			domain.CategoryBehavioral: 0.10,
			domain.CategoryHistorical: 0.10,
		}
		for cat, w := range want {
			if !approxEqual(weights[cat], w) {
				t.Errorf("category %s: expected %f, got %f", cat, w, weights[cat])
			}
		}
	})

	t.Run("HighOCRShiftsTowardDocument", func(t *testing.T) {
		factors := allSignalFactors()
		factors.Document.Confidence = 95

		weights := AdaptiveWeights(factors)
		if !approxEqual(weights[domain.CategoryDocument], 0.45) {
			t.Errorf("expected document weight 0.45, got %f", weights[domain.CategoryDocument])
		}
		if !approxEqual(weights[domain.CategoryFace], 0.35) {
			t.Errorf("expected face weight 0.35, got %f", weights[domain.CategoryFace])
		}
	})

	t.Run("HighLivenessShiftsTowardBiometric", func(t *testing.T) {
		factors := allSignalFactors()
		factors.Face.LivenessScore = 95

		weights := AdaptiveWeights(factors)
		if !approxEqual(weights[domain.CategoryFace], 0.45) {
			t.Errorf("expected face weight 0.45, got %f", weights[domain.CategoryFace])
		}
		if !approxEqual(weights[domain.CategoryBehavioral], 0.05) {
			t.Errorf("expected behavioral weight 0.05, got %f", weights[domain.CategoryBehavioral])
		}
	})

	t.Run("EstablishedHistoryShiftsTowardHistorical", func(t *testing.T) {
		factors := allSignalFactors()
		factors.Historical.PreviousVerifications = 8

		weights := AdaptiveWeights(factors)
		if !approxEqual(weights[domain.CategoryHistorical], 0.15) {
			t.Errorf("expected historical weight 0.15, got %f", weights[domain.CategoryHistorical])
		}
		if !approxEqual(weights[domain.CategoryDocument], 0.35) {
			t.Errorf("expected document weight 0.35, got %f", weights[domain.CategoryDocument])
		}
	})

	t.Run("AdjustmentsCompose", func(t *testing.T) {
		factors := allSignalFactors()
		factors.Document.Confidence = 95
		factors.Face.LivenessScore = 95
		factors.Historical.PreviousVerifications = 8

		weights := AdaptiveWeights(factors)
		if !approxEqual(weights[domain.CategoryDocument], 0.40) {
			t.Errorf("expected document weight 0.40, got %f", weights[domain.CategoryDocument])
		}
		if !approxEqual(weights[domain.CategoryFace], 0.40) {
			t.Errorf("expected face weight 0.40, got %f", weights[domain.CategoryFace])
		}
		if !approxEqual(weights.Sum(), 1.0) {
			t.Errorf("expected weights to sum to 1.0, got %f", weights.Sum())
		}
	})

	t.Run("AbsentCategoriesRedistribute", func(t *testing.T) {
		factors := &domain.RiskFactors{
			Document: &domain.DocumentAnalysis{Confidence: 80},
			Face:     &domain.FaceAnalysis{LivenessScore: 75},
		}

		weights := AdaptiveWeights(factors)
		if _, ok := weights[domain.CategoryBehavioral]; ok {
			t.Error("absent behavioral category must not carry weight")
		}
		if _, ok := weights[domain.CategoryHistorical]; ok {
			t.Error("absent historical category must not carry weight")
		}
		if !approxEqual(weights[domain.CategoryDocument], 0.5) {
			t.Errorf("expected document weight 0.5, got %f", weights[domain.CategoryDocument])
		}
		if !approxEqual(weights[domain.CategoryFace], 0.5) {
			t.Errorf("expected face weight 0.5, got %f", weights[domain.CategoryFace])
		}
	})

	t.Run("RedistributionPreservesProportions", func(t *testing.T) {
		factors := &domain.RiskFactors{
			Document:   &domain.DocumentAnalysis{Confidence: 95},
			Face:       &domain.FaceAnalysis{LivenessScore: 75},
			Behavioral: &domain.BehavioralPattern{},
		}

		weights := AdaptiveWeights(factors)
		// Pre-normalization: document 0.45, face 0.35, behavioral 0.10.
		if !approxEqual(weights.Sum(), 1.0) {
			t.Errorf("expected weights to sum to 1.0, got %f", weights.Sum())
		}
		if !approxEqual(weights[domain.CategoryDocument], 0.45/0.90) {
			t.Errorf("expected document weight 0.5, got %f", weights[domain.CategoryDocument])
		}
		if !approxEqual(weights[domain.CategoryFace], 0.35/0.90) {
			t.Errorf("expected face weight %f, got %f", 0.35/0.90, weights[domain.CategoryFace])
		}
	})
}
