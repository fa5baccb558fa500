// Package classify maps a feature bundle to a category, a confidence, and
// an urgency score. Category comes from a pluggable Model; urgency comes
// from a fixed, explainable feature combination so SLA deadlines stay
// auditable independent of the model's internals.
package classify

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/linnemanlabs/railtriage/internal/complaint"
	"github.com/linnemanlabs/railtriage/internal/features"
)

// Result is the outcome of classifying one complaint. Confidence and
// urgency are computed independently; urgency is never derived from
// confidence.
type Result struct {
	Category   complaint.Category
	Confidence float64
	Urgency    float64
	Model      string
}

// UrgencyWeights is the explainable urgency combination. Each contribution
// is additive and the sum is clamped to [0,1].
type UrgencyWeights struct {
	Base           float64
	SafetyKeyword  float64
	UrgencyKeyword float64
	Media          float64
	Recency        float64
	RecencyWindow  time.Duration
}

// Config carries the classification policy knobs. Zero values fall back to
// the defaults below; thresholds are product policy, not model properties.
type Config struct {
	// ConfidenceThreshold routes low-confidence predictions to Other.
	ConfidenceThreshold float64
	Urgency             UrgencyWeights
	SafetyKeywords      []string
	UrgencyKeywords     []string
}

// DefaultConfig returns the illustrative policy defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.4,
		Urgency: UrgencyWeights{
			Base:           0.2,
			SafetyKeyword:  0.5,
			UrgencyKeyword: 0.2,
			Media:          0.15,
			Recency:        0.1,
			RecencyWindow:  time.Hour,
		},
		SafetyKeywords: []string{
			"fire", "smoke", "danger", "unsafe", "hazard", "emergency",
			"theft", "harassment", "accident", "medical",
		},
		UrgencyKeywords: []string{
			"urgent", "emergency", "critical", "immediate", "immediately",
			"asap", "now",
		},
	}
}

// Classifier combines a category model with the urgency scorer and the
// confidence policy.
type Classifier struct {
	model Model
	cfg   Config
	now   func() time.Time
}

// New creates a Classifier around the given model.
func New(model Model, cfg Config) *Classifier {
	if cfg.ConfidenceThreshold <= 0 {
		cfg = DefaultConfig()
	}
	return &Classifier{model: model, cfg: cfg, now: time.Now}
}

// Classify predicts the category distribution, applies the confidence
// policy, and scores urgency. Model failures surface as
// ErrModelUnavailable; everything else is deterministic for a fixed model
// snapshot.
func (c *Classifier) Classify(ctx context.Context, b *features.Bundle, submittedAt time.Time) (Result, error) {
	dist, err := c.model.Predict(ctx, b.CombinedText())
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	cat, conf := dist.Top()

	// Policy, not a model property: low-confidence predictions go to Other
	// rather than guessing a department.
	if conf < c.cfg.ConfidenceThreshold {
		cat = complaint.CategoryOther
	}

	return Result{
		Category:   cat,
		Confidence: conf,
		Urgency:    c.scoreUrgency(b, submittedAt),
		Model:      c.model.Name(),
	}, nil
}

func (c *Classifier) scoreUrgency(b *features.Bundle, submittedAt time.Time) float64 {
	w := c.cfg.Urgency
	text := " " + b.CombinedText() + " "

	score := w.Base
	if containsAny(text, c.cfg.SafetyKeywords) {
		score += w.SafetyKeyword
	}
	if containsAny(text, c.cfg.UrgencyKeywords) {
		score += w.UrgencyKeyword
	}
	if b.HasMedia {
		score += w.Media
	}
	if w.RecencyWindow > 0 {
		if age := c.now().Sub(submittedAt); age >= 0 && age < w.RecencyWindow {
			score += w.Recency * (1 - float64(age)/float64(w.RecencyWindow))
		}
	}

	// Quantize to two decimals: urgency feeds tier breakpoints downstream,
	// and a sum like 0.2+0.5+0.1 must land on 0.8, not a hair under it.
	return clamp01(math.Round(score*100) / 100)
}

func containsAny(padded string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(padded, " "+kw+" ") {
			return true
		}
	}
	return false
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
