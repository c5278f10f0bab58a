package scoring

import (
	"github.com/opensource-identity/kestrel/internal/domain"
)

// Base weights for the four aggregation buckets. The face bucket carries
// the blended biometric score (face plus any optional modalities).
const (
	baseDocumentWeight   = 0.40
	baseBiometricWeight  = 0.40
	baseBehavioralWeight = 0.10
	baseHistoricalWeight = 0.10
)

// AdaptiveWeights computes the aggregation weights for one verification.
//
// Starting from the base split, weight shifts toward signals with strong
// evidence: +0.05 to document (from biometric) when OCR confidence
// exceeds 90, +0.05 to biometric (from behavioral) when liveness exceeds
// 90, and +0.05 to historical (from document) for subjects with more
// than 5 prior verifications. Adjustments compose additively. Weights of
// absent categories are then redistributed proportionally across the
// present ones so the sum is exactly 1.0 - absence never zeroes out the
// aggregate.
func AdaptiveWeights(factors *domain.RiskFactors) domain.Weights {
	weights := domain.Weights{
		domain.CategoryDocument:   baseDocumentWeight,
		domain.CategoryFace:       baseBiometricWeight,
		domain.CategoryBehavioral: baseBehavioralWeight,
		domain.CategoryHistorical: baseHistoricalWeight,
	}

	if factors.Document != nil && factors.Document.Confidence > 90 {
		weights[domain.CategoryDocument] += 0.05
		weights[domain.CategoryFace] -= 0.05
	}
	if factors.Face != nil && factors.Face.LivenessScore > 90 {
		weights[domain.CategoryFace] += 0.05
		weights[domain.CategoryBehavioral] -= 0.05
	}
	if factors.Historical != nil && factors.Historical.PreviousVerifications > 5 {
		weights[domain.CategoryHistorical] += 0.05
		weights[domain.CategoryDocument] -= 0.05
	}

	// Drop absent categories, then renormalize.
	if factors.Document == nil {
		delete(weights, domain.CategoryDocument)
	}
	if factors.Face == nil {
		delete(weights, domain.CategoryFace)
	}
	if factors.Behavioral == nil {
		delete(weights, domain.CategoryBehavioral)
	}
	if factors.Historical == nil {
		delete(weights, domain.CategoryHistorical)
	}

	return normalize(weights)
}

// normalize rescales weights so they sum to exactly 1.0, preserving
// their relative proportions.
func normalize(weights domain.Weights) domain.Weights {
	total := weights.Sum()
	if total <= 0 {
		return weights
	}
	for cat, w := range weights {
		weights[cat] = w / total
	}
	return weights
}
