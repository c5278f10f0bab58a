// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"time"
)

// SignalCategory identifies one evidence category contributing to a decision.
type SignalCategory string

const (
	CategoryDocument    SignalCategory = "document"
	CategoryFace        SignalCategory = "face"
	CategoryFingerprint SignalCategory = "fingerprint"
	CategoryPalmVein    SignalCategory = "palmVein"
	CategoryVoice       SignalCategory = "voice"
	CategoryBehavioral  SignalCategory = "behavioral"
	CategoryHistorical  SignalCategory = "historical"
	CategorySynthetic   SignalCategory = "synthetic"
)

// SignalResult is the normalized output of a per-signal scorer.
// Immutable once produced: scorers return it by value and the aggregator
// only reads it.
type SignalResult struct {
	Category        SignalCategory `json:"category"`
	NormalizedScore float64        `json:"normalizedScore"` // 0-100
	Confidence      float64        `json:"confidence"`      // 0-1
	Flags           []string       `json:"flags,omitempty"`
	RawConfidence   float64        `json:"rawConfidence,omitempty"`
}

// HasFlag reports whether the result carries the given qualitative flag.
func (s SignalResult) HasFlag(flag string) bool {
	for _, f := range s.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// DocumentAnalysis is the structured output of an external document
// verification producer (OCR + security feature detection).
type DocumentAnalysis struct {
	IsValid    bool    `json:"isValid"`
	Confidence float64 `json:"confidence"` // OCR confidence 0-100

	ExtractedData struct {
		DocumentType   string `json:"documentType,omitempty"`
		DocumentNumber string `json:"documentNumber,omitempty"`
		Name           string `json:"name,omitempty"`
		DateOfBirth    string `json:"dateOfBirth,omitempty"`
		IssueDate      string `json:"issueDate,omitempty"`
		ExpiryDate     string `json:"expiryDate,omitempty"`
		Address        string `json:"address,omitempty"`
	} `json:"extractedData"`

	SecurityFeatures struct {
		HologramDetected  bool    `json:"hologramDetected"`
		WatermarkDetected bool    `json:"watermarkDetected"`
		MicroTextDetected bool    `json:"microTextDetected"`
		UVFeatureDetected bool    `json:"uvFeatureDetected"`
		TamperingDetected bool    `json:"tamperingDetected"`
		AITamperingScore  float64 `json:"aiTamperingScore"` // 0-100
	} `json:"securityFeatures"`

	FraudScore float64 `json:"fraudScore"` // 0-100, higher is worse
}

// FaceAnalysis is the structured output of an external face matcher.
type FaceAnalysis struct {
	IsMatch            bool    `json:"isMatch"`
	Confidence         float64 `json:"confidence"` // match confidence 0-100
	LivenessScore      float64 `json:"livenessScore"`
	IsLive             bool    `json:"isLive"`
	AntiSpoofingPassed bool    `json:"antiSpoofingPassed"`
}

// FingerprintAnalysis is the structured output of a fingerprint matcher.
type FingerprintAnalysis struct {
	IsMatch          bool    `json:"isMatch"`
	Confidence       float64 `json:"confidence"` // 0-100
	Quality          float64 `json:"quality"`    // 0-100
	MinutiaeCount    int     `json:"minutiaeCount"`
	SpoofingDetected bool    `json:"spoofingDetected"`
}

// PalmVeinAnalysis is the structured output of a palm vein matcher.
type PalmVeinAnalysis struct {
	IsMatch            bool    `json:"isMatch"`
	Confidence         float64 `json:"confidence"` // 0-100
	VeinPatternQuality float64 `json:"veinPatternQuality"`
	IsLive             bool    `json:"isLive"`
}

// VoiceAnalysis is the structured output of a voice matcher.
type VoiceAnalysis struct {
	IsMatch           bool    `json:"isMatch"`
	Confidence        float64 `json:"confidence"` // 0-100
	VoiceprintQuality float64 `json:"voiceprintQuality"`
	IsLive            bool    `json:"isLive"`
	SpoofingDetected  bool    `json:"spoofingDetected"`
}

// BehavioralPattern is one sample of behavioral telemetry for a user session.
type BehavioralPattern struct {
	UserID            string `json:"userId"`
	SessionID         string `json:"sessionId"`
	DeviceFingerprint string `json:"deviceFingerprint"`

	TypingPattern struct {
		AverageSpeed      float64   `json:"averageSpeed"`
		KeyPressIntervals []float64 `json:"keyPressIntervals,omitempty"`
		ErrorRate         float64   `json:"errorRate"`
	} `json:"typingPattern"`

	MouseMovement struct {
		AverageSpeed float64 `json:"averageSpeed"`
		Curvature    float64 `json:"curvature"`
		Acceleration float64 `json:"acceleration"`
	} `json:"mouseMovement"`

	NavigationPattern struct {
		ClickSequence     []string  `json:"clickSequence,omitempty"`
		PageVisitDuration []float64 `json:"pageVisitDuration,omitempty"`
	} `json:"navigationPattern"`

	TimeMetrics struct {
		ActiveHours     []int   `json:"activeHours,omitempty"`
		SessionDuration float64 `json:"sessionDuration"` // seconds
	} `json:"timeMetrics"`

	RecordedAt time.Time `json:"recordedAt"`
}

// HistoricalProfile summarizes a subject's prior verification history.
type HistoricalProfile struct {
	PreviousVerifications   int `json:"previousVerifications"`
	SuccessfulVerifications int `json:"successfulVerifications"`
	FraudAttempts           int `json:"fraudAttempts"`
}

// SyntheticIdentityAnalysis is the structured output of the synthetic
// identity producer (deepfake detection plus heuristics over the document).
type SyntheticIdentityAnalysis struct {
	AIGeneratedFace  bool `json:"aiGeneratedFace"`
	DeepfakeDetected bool `json:"deepfakeDetected"`

	// SessionDurationSecs and HeadlessBrowser come from the device/session
	// channel; zero values mean "not observed".
	SessionDurationSecs float64 `json:"sessionDurationSecs,omitempty"`
	HeadlessBrowser     bool    `json:"headlessBrowser,omitempty"`
}

// RiskFactors is the aggregate input bundle for one verification attempt.
// Document and Face are the only signals assumed always present; every
// other pointer may be nil and must degrade gracefully.
type RiskFactors struct {
	Document *DocumentAnalysis `json:"document"`
	Face     *FaceAnalysis     `json:"face"`

	Fingerprint *FingerprintAnalysis       `json:"fingerprint,omitempty"`
	PalmVein    *PalmVeinAnalysis          `json:"palmVein,omitempty"`
	Voice       *VoiceAnalysis             `json:"voice,omitempty"`
	Behavioral  *BehavioralPattern         `json:"behavioral,omitempty"`
	Historical  *HistoricalProfile         `json:"historical,omitempty"`
	Synthetic   *SyntheticIdentityAnalysis `json:"synthetic,omitempty"`
}
