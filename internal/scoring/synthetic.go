package scoring

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/opensource-identity/kestrel/internal/domain"
)

// SyntheticAssessment is the outcome of synthetic identity screening.
// Unlike the aggregated categories, the synthetic signal feeds the
// alerting stage directly: RiskScore grows with evidence of fabrication.
type SyntheticAssessment struct {
	IsSynthetic bool     `json:"isSynthetic"`
	RiskScore   float64  `json:"riskScore"`  // 0-100, higher is worse
	Confidence  float64  `json:"confidence"` // 0-1
	Indicators  []string `json:"indicators,omitempty"`

	AIGeneratedFace    bool `json:"aiGeneratedFace"`
	DeepfakeDetected   bool `json:"deepfakeDetected"`
	InconsistentData   bool `json:"inconsistentData"`
	SuspiciousPatterns bool `json:"suspiciousPatterns"`
}

// repeatedDigits matches four or more consecutive identical digits,
// a common pattern in fabricated document numbers.
var repeatedDigits = regexp.MustCompile(`(0{4,}|1{4,}|2{4,}|3{4,}|4{4,}|5{4,}|6{4,}|7{4,}|8{4,}|9{4,})`)

// ScoreSynthetic screens the document and device evidence for signs of a
// fabricated identity. Risk accumulates +40 for an AI-generated or
// deepfaked face, +25 for internally inconsistent document data, +20 for
// suspicious timing or device patterns. Synthetic is declared above 50.
func ScoreSynthetic(doc *domain.DocumentAnalysis, syn *domain.SyntheticIdentityAnalysis, now time.Time) SyntheticAssessment {
	assessment := SyntheticAssessment{}
	risk := 0.0

	if syn != nil && (syn.AIGeneratedFace || syn.DeepfakeDetected) {
		assessment.AIGeneratedFace = syn.AIGeneratedFace
		assessment.DeepfakeDetected = syn.DeepfakeDetected
		assessment.Indicators = append(assessment.Indicators, "AI-generated face detected")
		risk += 40
	}

	if doc != nil {
		if issues := documentInconsistencies(doc, now); len(issues) > 0 {
			assessment.InconsistentData = true
			assessment.Indicators = append(assessment.Indicators, issues...)
			risk += 25
		}
		if patterns := suspiciousPatterns(doc, syn, now); len(patterns) > 0 {
			assessment.SuspiciousPatterns = true
			assessment.Indicators = append(assessment.Indicators, patterns...)
			risk += 20
		}
	}

	assessment.RiskScore = math.Min(100, risk)
	assessment.IsSynthetic = risk > 50
	assessment.Confidence = math.Min(0.95, risk/100)
	return assessment
}

func documentInconsistencies(doc *domain.DocumentAnalysis, now time.Time) []string {
	var issues []string

	if name := doc.ExtractedData.Name; name != "" && len(name) < 3 {
		issues = append(issues, "Unusually short name")
	}

	if dob, ok := parseDocumentDate(doc.ExtractedData.DateOfBirth); ok {
		age := now.Sub(dob).Hours() / (24 * 365)
		if age < 18 || age > 120 {
			issues = append(issues, "Implausible age")
		}
	}

	if num := doc.ExtractedData.DocumentNumber; num != "" && repeatedDigits.MatchString(num) {
		issues = append(issues, "Repeated-digit pattern in document number")
	}

	missing := 0
	if doc.ExtractedData.Name == "" {
		missing++
	}
	if doc.ExtractedData.DateOfBirth == "" {
		missing++
	}
	if doc.ExtractedData.DocumentNumber == "" {
		missing++
	}
	if missing > 1 {
		issues = append(issues, "Multiple required fields missing")
	}

	return issues
}

func suspiciousPatterns(doc *domain.DocumentAnalysis, syn *domain.SyntheticIdentityAnalysis, now time.Time) []string {
	var patterns []string

	if issued, ok := parseDocumentDate(doc.ExtractedData.IssueDate); ok {
		if now.Sub(issued) < 30*24*time.Hour {
			patterns = append(patterns, "Very recently issued document")
		}
	}

	if syn != nil {
		if syn.SessionDurationSecs > 0 && syn.SessionDurationSecs < 60 {
			patterns = append(patterns, "Unusually fast verification attempt")
		}
		if syn.HeadlessBrowser {
			patterns = append(patterns, "Headless browser detected")
		}
	}

	if addr := strings.ToLower(doc.ExtractedData.Address); strings.Contains(addr, "po box") {
		patterns = append(patterns, "PO Box address detected")
	}

	return patterns
}
