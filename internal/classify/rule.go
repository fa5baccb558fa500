package classify

import (
	"context"
	"strings"

	"github.com/linnemanlabs/railtriage/internal/complaint"
)

// DefaultKeywords is the built-in keyword table for the rule model. Exact
// word hits score double a substring hit, mirroring how riders phrase the
// same issue with inflections ("smell" / "smells").
var DefaultKeywords = map[complaint.Category][]string{
	complaint.CategoryCleanliness: {
		"dirty", "trash", "garbage", "filthy", "unclean", "messy",
		"smell", "smells", "stink", "stinks", "toilet", "hygiene",
	},
	complaint.CategoryMaintenance: {
		"broken", "damaged", "cracked", "torn", "not working", "repair",
		"ac", "fan", "light", "bulb", "charging", "socket", "seat",
		"window", "door", "leak", "leaking",
	},
	complaint.CategorySafety: {
		"fire", "smoke", "danger", "dangerous", "unsafe", "hazard",
		"emergency", "theft", "stolen", "harassment", "accident",
		"medical", "security", "fight", "cctv",
	},
	complaint.CategoryStaff: {
		"rude", "unhelpful", "impolite", "arrogant", "staff", "attendant",
		"tte", "behavior", "behaviour", "ignoring", "ignored",
	},
}

// RuleModel scores categories by keyword matches over normalized text. It
// is deterministic, needs no network, and serves as the test double and the
// fallback when no learned model is configured.
type RuleModel struct {
	keywords map[complaint.Category][]string
}

// NewRuleModel creates a rule model. A nil keyword table uses DefaultKeywords.
func NewRuleModel(keywords map[complaint.Category][]string) *RuleModel {
	if keywords == nil {
		keywords = DefaultKeywords
	}
	return &RuleModel{keywords: keywords}
}

// Name implements Model.
func (m *RuleModel) Name() string { return "rule-keywords-v1" }

// Predict implements Model. It never fails: text with no keyword hits
// yields a uniform distribution, which the confidence policy routes to
// Other downstream.
func (m *RuleModel) Predict(_ context.Context, text string) (Distribution, error) {
	padded := " " + text + " "

	scores := make(map[complaint.Category]float64, len(m.keywords))
	var total float64
	for cat, kws := range m.keywords {
		var s float64
		for _, kw := range kws {
			switch {
			case strings.Contains(padded, " "+kw+" "):
				s += 2
			case strings.Contains(text, kw):
				s++
			}
		}
		scores[cat] = s
		total += s
	}

	dist := make(Distribution, len(complaint.Categories))
	if total == 0 {
		uniform := 1.0 / float64(len(complaint.Categories))
		for _, c := range complaint.Categories {
			dist[c] = uniform
		}
		return dist, nil
	}
	for cat, s := range scores {
		dist[cat] = s / total
	}
	return dist, nil
}
