// Package scoring turns raw signal producer output into normalized
// sub-scores and combines them into a single trust score and risk tier.
// Every scorer is pure and total: malformed or missing fields degrade the
// sub-score instead of failing the verification.
package scoring

import (
	"time"

	"github.com/opensource-identity/kestrel/internal/domain"
)

// Qualitative flags attached to signal results.
const (
	FlagLowOCRConfidence      = "low_ocr_confidence"
	FlagDocumentTampering     = "document_tampering"
	FlagDocumentExpired       = "document_expired"
	FlagDocumentExpiringSoon  = "document_expiring_soon"
	FlagMissingDocumentNumber = "missing_document_number"
	FlagMissingName           = "missing_name"
	FlagMissingDateOfBirth    = "missing_date_of_birth"

	FlagFaceMismatch      = "face_mismatch"
	FlagLivenessFailure   = "liveness_failure"
	FlagAntiSpoofingFail  = "anti_spoofing_failed"

	FlagUnusualTyping     = "unusual_typing_pattern"
	FlagUnusualMouse      = "unusual_mouse_movement"
	FlagUnusualNavigation = "unusual_navigation"
	FlagUnusualTiming     = "unusual_session_timing"
	FlagUnknownDevice     = "unknown_device"
	FlagBehavioralAnomaly = "behavioral_anomaly"

	FlagBiometricSpoofing = "biometric_spoofing"
	FlagLowSampleQuality  = "low_sample_quality"
)

// expiryWarningWindow is how close to the expiry date a document is
// considered "soon to expire".
const expiryWarningWindow = 30 * 24 * time.Hour

// documentDateLayouts are the date formats document producers emit.
var documentDateLayouts = []string{"02-01-2006", "02/01/2006", "2006-01-02"}

// ScoreDocument normalizes a document analysis into a sub-score.
//
// Base formula: clamp(100 - fraudScore + (confidence-50)/2, 0, 100).
// Missing extracted fields and expiry problems reduce the score further
// and are surfaced as flags.
func ScoreDocument(doc *domain.DocumentAnalysis, now time.Time) domain.SignalResult {
	result := domain.SignalResult{
		Category:      domain.CategoryDocument,
		RawConfidence: doc.Confidence,
	}

	score := 100 - doc.FraudScore + (doc.Confidence-50)/2

	if doc.Confidence < 50 {
		result.Flags = append(result.Flags, FlagLowOCRConfidence)
	}
	if doc.SecurityFeatures.TamperingDetected || doc.SecurityFeatures.AITamperingScore > 50 {
		result.Flags = append(result.Flags, FlagDocumentTampering)
	}

	if doc.ExtractedData.DocumentNumber == "" {
		result.Flags = append(result.Flags, FlagMissingDocumentNumber)
		score -= 5
	}
	if doc.ExtractedData.Name == "" {
		result.Flags = append(result.Flags, FlagMissingName)
		score -= 5
	}
	if doc.ExtractedData.DateOfBirth == "" {
		result.Flags = append(result.Flags, FlagMissingDateOfBirth)
		score -= 5
	}

	if expiry, ok := parseDocumentDate(doc.ExtractedData.ExpiryDate); ok {
		switch {
		case expiry.Before(now):
			result.Flags = append(result.Flags, FlagDocumentExpired)
			score -= 15
		case expiry.Sub(now) < expiryWarningWindow:
			result.Flags = append(result.Flags, FlagDocumentExpiringSoon)
			score -= 5
		}
	}

	result.NormalizedScore = clamp(score, 0, 100)
	result.Confidence = clamp(doc.Confidence, 0, 100) / 100
	return result
}

func parseDocumentDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range documentDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
