// Package route turns a classified complaint into a department assignment and
// an SLA deadline. Routing is a deterministic rule layer: given the same
// policy and inputs it always produces the same decision, so every deadline is
// explainable from the policy file alone.
package route

import (
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/railtriage/internal/complaint"
)

// ErrUnknownCategory is returned when the policy has no rule for a category.
var ErrUnknownCategory = xerrors.New("route: unknown category")

// Assignment is the routing outcome for one complaint.
type Assignment struct {
	Department complaint.Department `json:"department"`
	Deadline   time.Time            `json:"sla_deadline"`

	// Urgency is the effective urgency after any recurrence escalation,
	// which may be higher than the classifier's score.
	Urgency   float64 `json:"urgency"`
	Escalated bool    `json:"escalated"`
}

// Router applies a Policy.
type Router struct {
	policy Policy
}

// New validates the policy and returns a Router.
func New(p Policy) (*Router, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Router{policy: p.normalized()}, nil
}

// Route computes the department and SLA deadline for a complaint.
//
// The deadline is submittedAt plus the category's base window divided by the
// urgency multiplier, so higher urgency always yields an equal or earlier
// deadline. When the complaint matched an existing cluster (isNew false) whose
// member count has reached the repetition threshold, urgency is first raised
// one tier so recurring unresolved issues do not decay in priority.
func (r *Router) Route(category complaint.Category, urgency float64, isNew bool, memberCount int, submittedAt time.Time) (Assignment, error) {
	dept, ok := r.policy.Departments[category]
	if !ok {
		return Assignment{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	window, ok := r.policy.BaseWindows[category]
	if !ok {
		return Assignment{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	urgency = clamp01(urgency)
	escalated := false
	if !isNew && memberCount >= r.policy.RepetitionThreshold {
		if raised := r.escalate(urgency); raised > urgency {
			urgency = raised
			escalated = true
		}
	}

	deadline := submittedAt.Add(time.Duration(float64(window) / r.multiplier(urgency)))

	return Assignment{
		Department: dept,
		Deadline:   deadline,
		Urgency:    urgency,
		Escalated:  escalated,
	}, nil
}

// multiplier returns the deadline divisor for an urgency score. Breakpoints
// are sorted by descending floor, so the first match is the tightest tier.
func (r *Router) multiplier(urgency float64) float64 {
	for _, bp := range r.policy.Multipliers {
		if urgency >= bp.MinUrgency {
			return bp.Factor
		}
	}
	return 1
}

// escalate raises urgency to the floor of the next tier up, or returns it
// unchanged when already in the top tier.
func (r *Router) escalate(urgency float64) float64 {
	// Walk from the tightest tier down; the last floor above the current
	// urgency is the next tier up.
	next := urgency
	for _, bp := range r.policy.Multipliers {
		if urgency < bp.MinUrgency {
			next = bp.MinUrgency
		}
	}
	return next
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
