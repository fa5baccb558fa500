package classify

import (
	"context"

	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/railtriage/internal/complaint"
)

// ErrModelUnavailable is returned when the category model cannot serve a
// prediction at all. The orchestrator decides whether a fallback applies.
var ErrModelUnavailable = xerrors.New("classification model unavailable")

// Model is the single capability any category model must provide. Both the
// rule-based keyword model and the Claude-backed model satisfy it.
type Model interface {
	// Predict returns a probability distribution over categories for text.
	Predict(ctx context.Context, text string) (Distribution, error)
	// Name identifies the model snapshot for decision provenance.
	Name() string
}

// Distribution is a probability mass over complaint categories.
type Distribution map[complaint.Category]float64

// Top returns the highest-mass category and its probability. Ties resolve
// by the fixed priority order in complaint.Categories, so results are
// deterministic for a fixed model snapshot.
func (d Distribution) Top() (complaint.Category, float64) {
	best := complaint.CategoryOther
	var bestMass float64
	for _, c := range complaint.Categories {
		if mass := d[c]; mass > bestMass {
			best, bestMass = c, mass
		}
	}
	return best, bestMass
}
