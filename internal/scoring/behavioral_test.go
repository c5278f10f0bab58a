package scoring

import (
	"testing"
	"time"

	"github.com/opensource-identity/kestrel/internal/domain"
)

// behavioralSample builds a telemetry sample with consistent defaults.
func behavioralSample(device string, typingSpeed, mouseSpeed float64) *domain.BehavioralPattern {
	p := &domain.BehavioralPattern{
		UserID:            "user-1",
		SessionID:         "session-1",
		DeviceFingerprint: device,
		RecordedAt:        time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC),
	}
	p.TypingPattern.AverageSpeed = typingSpeed
	p.MouseMovement.AverageSpeed = mouseSpeed
	p.MouseMovement.Curvature = 0.4
	p.TimeMetrics.ActiveHours = []int{13, 14, 15}
	p.TimeMetrics.SessionDuration = 240
	return p
}

func behavioralBaseline(n int) []*domain.BehavioralPattern {
	baseline := make([]*domain.BehavioralPattern, 0, n)
	for i := 0; i < n; i++ {
		baseline = append(baseline, behavioralSample("device-1", 60, 320))
	}
	return baseline
}

func TestScoreBehavioral(t *testing.T) {
	t.Run("FirstTimeUser", func(t *testing.T) {
		result := ScoreBehavioral(behavioralSample("device-1", 60, 320), nil)

		if result.NormalizedScore != 100 {
			t.Errorf("expected score 100 without baseline, got %f", result.NormalizedScore)
		}
		if len(result.Flags) != 0 {
			t.Errorf("expected no flags, got %v", result.Flags)
		}
		if result.Confidence != 0.6 {
			t.Errorf("expected confidence 0.6 for thin history, got %f", result.Confidence)
		}
	})

	t.Run("ConsistentWithBaseline", func(t *testing.T) {
		result := ScoreBehavioral(behavioralSample("device-1", 60, 320), behavioralBaseline(8))

		if result.NormalizedScore != 100 {
			t.Errorf("expected score 100, got %f", result.NormalizedScore)
		}
		if len(result.Flags) != 0 {
			t.Errorf("expected no flags, got %v", result.Flags)
		}
		if result.Confidence != 0.9 {
			t.Errorf("expected confidence 0.9 for deep history, got %f", result.Confidence)
		}
	})

	t.Run("TypingDeviation", func(t *testing.T) {
		result := ScoreBehavioral(behavioralSample("device-1", 150, 320), behavioralBaseline(8))

		if !result.HasFlag(FlagUnusualTyping) {
			t.Errorf("expected typing flag, got %v", result.Flags)
		}
		if result.NormalizedScore >= 100 {
			t.Errorf("expected a penalty, got %f", result.NormalizedScore)
		}
	})

	t.Run("UnknownDevice", func(t *testing.T) {
		result := ScoreBehavioral(behavioralSample("device-999", 60, 320), behavioralBaseline(8))

		if !result.HasFlag(FlagUnknownDevice) {
			t.Errorf("expected unknown device flag, got %v", result.Flags)
		}
		if result.NormalizedScore != 80 {
			t.Errorf("expected score 80, got %f", result.NormalizedScore)
		}
	})

	t.Run("UnusualHour", func(t *testing.T) {
		sample := behavioralSample("device-1", 60, 320)
		sample.RecordedAt = time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)

		result := ScoreBehavioral(sample, behavioralBaseline(8))
		if !result.HasFlag(FlagUnusualTiming) {
			t.Errorf("expected timing flag, got %v", result.Flags)
		}
	})

	t.Run("CompoundAnomaly", func(t *testing.T) {
		sample := behavioralSample("device-999", 150, 900)
		sample.RecordedAt = time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)

		result := ScoreBehavioral(sample, behavioralBaseline(8))
		if !result.HasFlag(FlagBehavioralAnomaly) {
			t.Errorf("expected overall anomaly flag, got %v", result.Flags)
		}
	})
}
