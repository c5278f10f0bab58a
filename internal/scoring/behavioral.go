package scoring

import (
	"math"

	"github.com/opensource-identity/kestrel/internal/domain"
)

// Behavioral anomaly thresholds, per axis. Deviations are computed as
// |current - mean(baseline)| / mean(baseline).
const (
	typingSpeedDevThreshold    = 0.5
	typingErrorDevThreshold    = 0.3
	mouseSpeedDevThreshold     = 0.6
	mouseCurvatureDevThreshold = 0.5
	navigationDevThreshold     = 0.7
	timingDevThreshold         = 1.0
)

// ScoreBehavioral compares the current behavioral sample against the
// user's baseline history and normalizes the result into a sub-score.
//
// The score starts at 100 and loses points per anomalous axis, scaled by
// the axis severity. An empty baseline (first-time user) produces no
// anomalies. The overall behavioral anomaly flag is set when the
// resulting trust falls below 60 or more than two axes flagged.
func ScoreBehavioral(current *domain.BehavioralPattern, baseline []*domain.BehavioralPattern) domain.SignalResult {
	result := domain.SignalResult{
		Category: domain.CategoryBehavioral,
	}

	score := 100.0

	if anomalous, severity := typingAnomaly(current, baseline); anomalous {
		result.Flags = append(result.Flags, FlagUnusualTyping)
		score -= severity * 15
	}
	if anomalous, severity := mouseAnomaly(current, baseline); anomalous {
		result.Flags = append(result.Flags, FlagUnusualMouse)
		score -= severity * 12
	}
	if anomalous, severity := navigationAnomaly(current, baseline); anomalous {
		result.Flags = append(result.Flags, FlagUnusualNavigation)
		score -= severity * 10
	}
	if anomalous, severity := timingAnomaly(current, baseline); anomalous {
		result.Flags = append(result.Flags, FlagUnusualTiming)
		score -= severity * 8
	}
	if unknownDevice(current, baseline) {
		// A never-seen device is always flagged, regardless of other axes.
		result.Flags = append(result.Flags, FlagUnknownDevice)
		score -= 20
	}

	score = clamp(score, 0, 100)
	if score < 60 || len(result.Flags) > 2 {
		result.Flags = append(result.Flags, FlagBehavioralAnomaly)
	}

	result.NormalizedScore = score
	if len(baseline) > 5 {
		result.Confidence = 0.9
	} else {
		result.Confidence = 0.6
	}
	return result
}

func typingAnomaly(current *domain.BehavioralPattern, baseline []*domain.BehavioralPattern) (bool, float64) {
	if len(baseline) == 0 {
		return false, 0
	}

	var speedSum, errorSum float64
	for _, p := range baseline {
		speedSum += p.TypingPattern.AverageSpeed
		errorSum += p.TypingPattern.ErrorRate
	}
	meanSpeed := speedSum / float64(len(baseline))
	meanError := errorSum / float64(len(baseline))

	speedDev := relativeDeviation(current.TypingPattern.AverageSpeed, meanSpeed)
	errorDev := math.Abs(current.TypingPattern.ErrorRate - meanError)

	anomalous := speedDev > typingSpeedDevThreshold || errorDev > typingErrorDevThreshold
	return anomalous, math.Min(1, (speedDev+errorDev)/2)
}

func mouseAnomaly(current *domain.BehavioralPattern, baseline []*domain.BehavioralPattern) (bool, float64) {
	if len(baseline) == 0 {
		return false, 0
	}

	var speedSum, curveSum float64
	for _, p := range baseline {
		speedSum += p.MouseMovement.AverageSpeed
		curveSum += p.MouseMovement.Curvature
	}
	meanSpeed := speedSum / float64(len(baseline))
	meanCurve := curveSum / float64(len(baseline))

	speedDev := relativeDeviation(current.MouseMovement.AverageSpeed, meanSpeed)
	curveDev := relativeDeviation(current.MouseMovement.Curvature, meanCurve)

	anomalous := speedDev > mouseSpeedDevThreshold || curveDev > mouseCurvatureDevThreshold
	return anomalous, math.Min(1, (speedDev+curveDev)/2)
}

func navigationAnomaly(current *domain.BehavioralPattern, baseline []*domain.BehavioralPattern) (bool, float64) {
	if len(baseline) == 0 {
		return false, 0
	}

	matchesCommon := sequenceMatchesBaseline(current.NavigationPattern.ClickSequence, baseline)

	currentMean := mean(current.NavigationPattern.PageVisitDuration)
	var baselineSum float64
	for _, p := range baseline {
		baselineSum += mean(p.NavigationPattern.PageVisitDuration)
	}
	baselineMean := baselineSum / float64(len(baseline))
	durationDev := relativeDeviation(currentMean, baselineMean)

	anomalous := !matchesCommon || durationDev > navigationDevThreshold
	return anomalous, math.Min(1, durationDev)
}

func timingAnomaly(current *domain.BehavioralPattern, baseline []*domain.BehavioralPattern) (bool, float64) {
	if len(baseline) == 0 {
		return false, 0
	}

	commonHours := commonActiveHours(baseline)
	unusualHour := !containsInt(commonHours, current.RecordedAt.Hour())

	var durationSum float64
	for _, p := range baseline {
		durationSum += p.TimeMetrics.SessionDuration
	}
	meanDuration := durationSum / float64(len(baseline))
	durationDev := relativeDeviation(current.TimeMetrics.SessionDuration, meanDuration)

	anomalous := unusualHour || durationDev > timingDevThreshold
	return anomalous, math.Min(1, durationDev)
}

func unknownDevice(current *domain.BehavioralPattern, baseline []*domain.BehavioralPattern) bool {
	if len(baseline) == 0 {
		return false
	}
	for _, p := range baseline {
		if p.DeviceFingerprint == current.DeviceFingerprint {
			return false
		}
	}
	return true
}

// sequenceMatchesBaseline reports whether the current click sequence
// overlaps more than half with any baseline session's sequence.
func sequenceMatchesBaseline(current []string, baseline []*domain.BehavioralPattern) bool {
	if len(current) == 0 {
		return true
	}
	for _, p := range baseline {
		known := make(map[string]bool, len(p.NavigationPattern.ClickSequence))
		for _, click := range p.NavigationPattern.ClickSequence {
			known[click] = true
		}
		matches := 0
		for _, click := range current {
			if known[click] {
				matches++
			}
		}
		if float64(matches)/float64(len(current)) > 0.5 {
			return true
		}
	}
	return false
}

// commonActiveHours returns hours seen in at least 30% of baseline sessions.
func commonActiveHours(baseline []*domain.BehavioralPattern) []int {
	counts := make(map[int]int)
	for _, p := range baseline {
		for _, hour := range p.TimeMetrics.ActiveHours {
			counts[hour]++
		}
	}

	threshold := float64(len(baseline)) * 0.3
	var hours []int
	for hour, count := range counts {
		if float64(count) >= threshold {
			hours = append(hours, hour)
		}
	}
	return hours
}

func relativeDeviation(current, baselineMean float64) float64 {
	if baselineMean == 0 {
		if current == 0 {
			return 0
		}
		return 1
	}
	return math.Abs(current-baselineMean) / baselineMean
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
