package scoring

import (
	"github.com/opensource-identity/kestrel/internal/domain"
)

// neutralHistoricalScore is used for first-time subjects with no history.
const neutralHistoricalScore = 50

// ScoreHistorical normalizes a subject's verification history.
// New subjects score neutral; repeat subjects earn trust from their
// success rate and lose it faster from prior fraud attempts.
func ScoreHistorical(h *domain.HistoricalProfile) domain.SignalResult {
	result := domain.SignalResult{
		Category: domain.CategoryHistorical,
	}

	total := h.PreviousVerifications + h.FraudAttempts
	if total == 0 {
		result.NormalizedScore = neutralHistoricalScore
		result.Confidence = 0.5
		return result
	}

	successRate := float64(h.SuccessfulVerifications) / float64(total)
	fraudRate := float64(h.FraudAttempts) / float64(total)

	result.NormalizedScore = clamp(50+successRate*50-fraudRate*70, 0, 100)
	if h.FraudAttempts > 0 {
		result.Flags = append(result.Flags, "prior_fraud_attempts")
	}

	// History confidence grows with sample size.
	if h.PreviousVerifications > 5 {
		result.Confidence = 0.9
	} else {
		result.Confidence = 0.6
	}
	return result
}
