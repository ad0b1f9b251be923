package analysis

import (
	"math/rand"
	"testing"

	"github.com/Jwl06/civicledger360/models"
	"github.com/stretchr/testify/assert"
)

func TestRandomClassifierRangeAndRisk(t *testing.T) {
	c := NewRandomClassifierWithSource(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		vt := models.ViolationTypes()[i%len(models.ViolationTypes())]
		got := c.Analyze(vt, "no helmet")

		assert.GreaterOrEqual(t, got.Confidence, MinConfidence)
		assert.LessOrEqual(t, got.Confidence, MaxConfidence)
		assert.Equal(t, RiskFor(got.Confidence), got.RiskLevel)
		assert.True(t, got.VehicleDetected)
		assert.NotEmpty(t, got.DetectedViolation)
		assert.False(t, got.Timestamp.IsZero())
	}
}

func TestRandomClassifierLabels(t *testing.T) {
	c := NewRandomClassifier()

	assert.Equal(t, "No helmet detected on motorcycle rider", c.Analyze(models.ViolationHelmet, "").DetectedViolation)
	assert.Equal(t, "Traffic rule violation detected", c.Analyze(models.ViolationOther, "").DetectedViolation)
	assert.Equal(t, fallbackLabel, c.Analyze(models.ViolationType("UNKNOWN"), "").DetectedViolation)

	withDesc := c.Analyze(models.ViolationSpeeding, "clocked at 90")
	assert.Contains(t, withDesc.Notes, "Description matches")
	withoutDesc := c.Analyze(models.ViolationSpeeding, "  ")
	assert.NotContains(t, withoutDesc.Notes, "Description matches")
}

func TestRiskFor(t *testing.T) {
	tests := []struct {
		confidence float64
		want       models.RiskLevel
	}{
		{0.70, models.RiskLow},
		{0.71, models.RiskMedium},
		{0.85, models.RiskMedium},
		{0.86, models.RiskHigh},
		{1.00, models.RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskFor(tt.confidence), "confidence %.2f", tt.confidence)
	}
}
