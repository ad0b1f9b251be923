// Package analysis attaches an AI classification payload to submitted evidence.
package analysis

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Jwl06/civicledger360/models"
)

// Classifier produces the analysis attached to a violation at submission time.
// A real model can replace RandomClassifier without touching the submission pipeline.
type Classifier interface {
	Analyze(violationType models.ViolationType, description string) models.AIAnalysis
}

// Confidence range of the stub and the risk thresholds applied to it.
const (
	MinConfidence = 0.70
	MaxConfidence = 1.00

	highRiskAbove   = 0.85
	mediumRiskAbove = 0.70
)

var detectionLabels = map[models.ViolationType]string{
	models.ViolationHelmet:       "No helmet detected on motorcycle rider",
	models.ViolationPlateTamper:  "License plate tampering detected",
	models.ViolationSpeeding:     "Vehicle speed exceeding limit detected",
	models.ViolationWrongParking: "Illegal parking violation detected",
	models.ViolationOther:        "Traffic rule violation detected",
}

const fallbackLabel = "Traffic violation detected"

// RandomClassifier draws a confidence uniformly from [MinConfidence, MaxConfidence].
type RandomClassifier struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewRandomClassifier seeds from the clock.
func NewRandomClassifier() *RandomClassifier {
	return NewRandomClassifierWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewRandomClassifierWithSource uses src for confidence draws.
func NewRandomClassifierWithSource(src rand.Source) *RandomClassifier {
	return &RandomClassifier{rng: rand.New(src), now: time.Now}
}

// Analyze implements Classifier.
func (c *RandomClassifier) Analyze(violationType models.ViolationType, description string) models.AIAnalysis {
	c.mu.Lock()
	draw := c.rng.Float64()
	c.mu.Unlock()

	confidence := math.Round((MinConfidence+draw*(MaxConfidence-MinConfidence))*100) / 100

	label, ok := detectionLabels[violationType]
	if !ok {
		label = fallbackLabel
	}

	notes := fmt.Sprintf("AI analysis completed with %.0f%% confidence.", confidence*100)
	if strings.TrimSpace(description) != "" {
		notes += " Description matches detected violation pattern."
	}

	return models.AIAnalysis{
		Confidence:        confidence,
		DetectedViolation: label,
		VehicleDetected:   true,
		RiskLevel:         RiskFor(confidence),
		Notes:             notes,
		Timestamp:         c.now().UTC(),
	}
}

// RiskFor thresholds a confidence: above 0.85 is HIGH, above 0.70 MEDIUM, otherwise LOW.
func RiskFor(confidence float64) models.RiskLevel {
	switch {
	case confidence > highRiskAbove:
		return models.RiskHigh
	case confidence > mediumRiskAbove:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}
