package domain

import (
	"time"
)

// RiskTier is the coarse bucket derived from the trust score.
// Tier thresholds are fixed and tenant-independent; tenant policy governs
// the decision, not the tier label.
type RiskTier string

const (
	TierLow      RiskTier = "LOW"
	TierMedium   RiskTier = "MEDIUM"
	TierHigh     RiskTier = "HIGH"
	TierCritical RiskTier = "CRITICAL"
)

// Weights maps signal categories to their share of the aggregate score.
// Weights considered in an aggregation always sum to 1.0 after adaptive
// adjustment and redistribution of absent categories.
type Weights map[SignalCategory]float64

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}

// RiskScoreResult is the output of the aggregator for one verification
// attempt. Created once, never mutated; a re-evaluation produces a new
// result that supersedes but does not overwrite the prior one.
type RiskScoreResult struct {
	TrustScore      int                        `json:"trustScore"` // 0-100
	RiskTier        RiskTier                   `json:"riskTier"`
	Breakdown       map[SignalCategory]float64 `json:"breakdown"`
	Weights         Weights                    `json:"weights"`
	Recommendations []string                   `json:"recommendations"`
}

// Outcome is the final decision rendered for a verification attempt.
type Outcome string

const (
	OutcomeApproved     Outcome = "APPROVED"
	OutcomeManualReview Outcome = "MANUAL_REVIEW"
	OutcomeRejected     Outcome = "REJECTED"
)

// Decision is the write-once record of one verification decision.
type Decision struct {
	VerificationID string          `json:"verificationId"`
	TenantID       string          `json:"tenantId"`
	UserID         string          `json:"userId"`
	Outcome        Outcome         `json:"outcome"`
	RiskScore      RiskScoreResult `json:"riskScore"`
	PolicyIndustry Industry        `json:"policyIndustry"`
	Timestamp      time.Time       `json:"timestamp"`

	// Processing metadata
	Metadata DecisionMetadata `json:"metadata"`
}

// DecisionMetadata contains processing information.
type DecisionMetadata struct {
	TraceID       string `json:"traceId"`
	ScoringMs     int64  `json:"scoringMs"`
	DecisionMs    int64  `json:"decisionMs"`
	TotalMs       int64  `json:"totalMs"`
	SignalsScored int    `json:"signalsScored"`
	EngineVersion string `json:"engineVersion"`
	Replayed      bool   `json:"replayed,omitempty"`
}

// Severity grades a fraud alert.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// FraudAlert is raised when a sub-signal crosses its trigger condition and
// the tenant policy allows the severity. Append-only, never deleted.
type FraudAlert struct {
	AlertID        string         `json:"alertId"`
	TenantID       string         `json:"tenantId"`
	UserID         string         `json:"userId"`
	VerificationID string         `json:"verificationId"`
	Severity       Severity       `json:"severity"`
	Category       SignalCategory `json:"category"`
	AlertType      string         `json:"alertType"`
	Indicators     []string       `json:"indicators"`
	RequiresAction bool           `json:"requiresAction"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Standard alert types raised by the policy engine.
const (
	AlertSyntheticIdentity = "SYNTHETIC_IDENTITY"
	AlertDocumentTampering = "DOCUMENT_TAMPERING"
	AlertLivenessFailure   = "LIVENESS_FAILURE"
	AlertBehavioralAnomaly = "BEHAVIORAL_ANOMALY"
)

// AuditRecord is one block of the tamper-evident audit ledger.
// BlockHash = H(DataHash || PreviousHash); the genesis PreviousHash is "0".
type AuditRecord struct {
	RecordID       string    `json:"recordId"`
	TenantID       string    `json:"tenantId"`
	UserID         string    `json:"userId"`
	VerificationID string    `json:"verificationId"`
	Timestamp      time.Time `json:"timestamp"`

	DataHash     string `json:"dataHash"`
	PreviousHash string `json:"previousHash"`
	BlockHash    string `json:"blockHash"`

	// Snapshot of the decision the block seals.
	Outcome    Outcome  `json:"outcome"`
	TrustScore int      `json:"trustScore"`
	RiskTier   RiskTier `json:"riskTier"`
	AlertCount int      `json:"alertCount"`
}

// IntegrityReport is the result of walking the audit chain.
type IntegrityReport struct {
	IsValid          bool     `json:"isValid"`
	RecordCount      int      `json:"recordCount"`
	CorruptedRecords []string `json:"corruptedRecords,omitempty"`
}
