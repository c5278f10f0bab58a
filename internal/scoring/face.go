package scoring

import (
	"github.com/opensource-identity/kestrel/internal/domain"
)

// ScoreFace normalizes a face match analysis into a sub-score.
//
// The score starts from the match confidence, gains bonuses for strong
// liveness (+10 above 80, a further +5 above 90) and a passed
// anti-spoofing check (+10), and loses 30 points when liveness falls
// below 50. Clamped to [0,100].
func ScoreFace(face *domain.FaceAnalysis) domain.SignalResult {
	result := domain.SignalResult{
		Category:      domain.CategoryFace,
		RawConfidence: face.Confidence,
	}

	score := face.Confidence

	if face.LivenessScore > 80 {
		score += 10
	}
	if face.LivenessScore > 90 {
		score += 5
	}
	if face.AntiSpoofingPassed {
		score += 10
	} else {
		result.Flags = append(result.Flags, FlagAntiSpoofingFail)
	}
	if face.LivenessScore < 50 {
		score -= 30
	}
	if face.LivenessScore < 60 {
		result.Flags = append(result.Flags, FlagLivenessFailure)
	}
	if !face.IsMatch {
		result.Flags = append(result.Flags, FlagFaceMismatch)
	}

	result.NormalizedScore = clamp(score, 0, 100)
	result.Confidence = clamp(face.Confidence, 0, 100) / 100
	return result
}

// ScoreFingerprint normalizes a fingerprint match analysis.
func ScoreFingerprint(fp *domain.FingerprintAnalysis) domain.SignalResult {
	result := domain.SignalResult{
		Category:      domain.CategoryFingerprint,
		RawConfidence: fp.Confidence,
	}

	score := fp.Confidence
	if fp.Quality < 40 {
		result.Flags = append(result.Flags, FlagLowSampleQuality)
		score -= 10
	}
	if fp.SpoofingDetected {
		result.Flags = append(result.Flags, FlagBiometricSpoofing)
		score -= 40
	}

	result.NormalizedScore = clamp(score, 0, 100)
	result.Confidence = clamp(fp.Quality, 0, 100) / 100
	return result
}

// ScorePalmVein normalizes a palm vein match analysis.
func ScorePalmVein(pv *domain.PalmVeinAnalysis) domain.SignalResult {
	result := domain.SignalResult{
		Category:      domain.CategoryPalmVein,
		RawConfidence: pv.Confidence,
	}

	score := pv.Confidence
	if pv.VeinPatternQuality < 40 {
		result.Flags = append(result.Flags, FlagLowSampleQuality)
		score -= 10
	}
	if !pv.IsLive {
		result.Flags = append(result.Flags, FlagLivenessFailure)
		score -= 30
	}

	result.NormalizedScore = clamp(score, 0, 100)
	result.Confidence = clamp(pv.VeinPatternQuality, 0, 100) / 100
	return result
}

// ScoreVoice normalizes a voice match analysis.
func ScoreVoice(v *domain.VoiceAnalysis) domain.SignalResult {
	result := domain.SignalResult{
		Category:      domain.CategoryVoice,
		RawConfidence: v.Confidence,
	}

	score := v.Confidence
	if v.VoiceprintQuality < 40 {
		result.Flags = append(result.Flags, FlagLowSampleQuality)
		score -= 10
	}
	if v.SpoofingDetected {
		result.Flags = append(result.Flags, FlagBiometricSpoofing)
		score -= 40
	}
	if !v.IsLive {
		result.Flags = append(result.Flags, FlagLivenessFailure)
		score -= 30
	}

	result.NormalizedScore = clamp(score, 0, 100)
	result.Confidence = clamp(v.VoiceprintQuality, 0, 100) / 100
	return result
}
