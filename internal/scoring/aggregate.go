package scoring

import (
	"math"
	"time"

	"github.com/opensource-identity/kestrel/internal/domain"
)

// Scores maps signal categories to their normalized results.
type Scores map[domain.SignalCategory]domain.SignalResult

// ScoreAll runs every applicable per-signal scorer over the factors.
// Absent optional signals simply produce no entry; their weight is
// redistributed by AdaptiveWeights.
func ScoreAll(factors *domain.RiskFactors, baseline []*domain.BehavioralPattern, now time.Time) Scores {
	scores := make(Scores)

	if factors.Document != nil {
		scores[domain.CategoryDocument] = ScoreDocument(factors.Document, now)
	}
	if factors.Face != nil {
		scores[domain.CategoryFace] = ScoreFace(factors.Face)
	}
	if factors.Fingerprint != nil {
		scores[domain.CategoryFingerprint] = ScoreFingerprint(factors.Fingerprint)
	}
	if factors.PalmVein != nil {
		scores[domain.CategoryPalmVein] = ScorePalmVein(factors.PalmVein)
	}
	if factors.Voice != nil {
		scores[domain.CategoryVoice] = ScoreVoice(factors.Voice)
	}
	if factors.Behavioral != nil {
		scores[domain.CategoryBehavioral] = ScoreBehavioral(factors.Behavioral, baseline)
	}
	if factors.Historical != nil {
		scores[domain.CategoryHistorical] = ScoreHistorical(factors.Historical)
	}

	return scores
}

// Aggregate combines weighted sub-scores into one trust score, a risk
// tier and a deterministic ordered recommendation list. Re-aggregating
// identical inputs yields an identical result.
func Aggregate(factors *domain.RiskFactors, scores Scores, weights domain.Weights) domain.RiskScoreResult {
	var weighted float64
	breakdown := make(map[domain.SignalCategory]float64, len(scores))
	for cat, s := range scores {
		breakdown[cat] = s.NormalizedScore
	}

	for cat, w := range weights {
		score, ok := bucketScore(cat, scores)
		if !ok {
			continue
		}
		weighted += w * score
	}

	trustScore := int(math.Round(weighted))
	if trustScore < 0 {
		trustScore = 0
	}
	if trustScore > 100 {
		trustScore = 100
	}

	tier := TierFor(trustScore)

	return domain.RiskScoreResult{
		TrustScore:      trustScore,
		RiskTier:        tier,
		Breakdown:       breakdown,
		Weights:         weights,
		Recommendations: recommendations(factors, trustScore, tier),
	}
}

// bucketScore returns the score feeding an aggregation bucket. The face
// bucket blends the face score with any optional biometric modality
// scores (equal-weight mean); the other buckets map 1:1.
func bucketScore(cat domain.SignalCategory, scores Scores) (float64, bool) {
	if cat != domain.CategoryFace {
		s, ok := scores[cat]
		return s.NormalizedScore, ok
	}

	face, ok := scores[domain.CategoryFace]
	if !ok {
		return 0, false
	}
	sum := face.NormalizedScore
	n := 1.0
	for _, modality := range []domain.SignalCategory{domain.CategoryFingerprint, domain.CategoryPalmVein, domain.CategoryVoice} {
		if s, present := scores[modality]; present {
			sum += s.NormalizedScore
			n++
		}
	}
	return sum / n, true
}

// TierFor derives the risk tier from a trust score. Thresholds are fixed
// and independent of tenant policy.
func TierFor(trustScore int) domain.RiskTier {
	switch {
	case trustScore >= 85:
		return domain.TierLow
	case trustScore >= 65:
		return domain.TierMedium
	case trustScore >= 40:
		return domain.TierHigh
	default:
		return domain.TierCritical
	}
}

// recommendations builds the ordered, duplicate-free recommendation list.
// Order matches evaluation order and is part of the engine contract.
func recommendations(factors *domain.RiskFactors, trustScore int, tier domain.RiskTier) []string {
	var recs []string

	if tier == domain.TierHigh || tier == domain.TierCritical {
		recs = append(recs,
			"Manual review recommended",
			"Additional verification steps required",
		)
	}
	if factors.Document != nil && factors.Document.FraudScore > 50 {
		recs = append(recs, "Document authenticity concerns detected")
	}
	if factors.Face != nil && factors.Face.LivenessScore < 60 {
		recs = append(recs, "Liveness verification failed - possible spoofing attempt")
	}
	if factors.Face != nil && !factors.Face.AntiSpoofingPassed {
		recs = append(recs, "Anti-spoofing check failed")
	}
	if trustScore > 85 {
		recs = append(recs, "Verification successful - high confidence")
	}

	return recs
}
