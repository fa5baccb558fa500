package triage

import (
	"time"

	"github.com/linnemanlabs/railtriage/internal/complaint"
)

// Stage tracks where a triage run is in its pipeline.
type Stage string

const (
	StageReceived   Stage = "received"
	StageExtracted  Stage = "extracted"
	StageClassified Stage = "classified"
	StageDeduped    Stage = "deduped"
	StageRouted     Stage = "routed"
	StageDecided    Stage = "decided"

	// StageError is the terminal state for fatal failures. Only unknown
	// categories and storage errors are fatal; OCR, model, and dedup
	// trouble degrade instead.
	StageError Stage = "error"
)

// Decision is the triage outcome for one complaint, with enough provenance
// for analytics to compute trend reports without recomputation.
type Decision struct {
	Category    complaint.Category   `json:"category"`
	Urgency     float64              `json:"urgency"`
	Department  complaint.Department `json:"department"`
	SLADeadline time.Time            `json:"sla_deadline"`

	// ClusterID is the cluster this complaint joined or seeded; empty when
	// dedup was unavailable. DuplicateOf is set only on a match.
	ClusterID    string `json:"cluster_id,omitempty"`
	DuplicateOf  string `json:"duplicate_of,omitempty"`
	IsNewCluster bool   `json:"is_new_cluster"`

	Confidence float64 `json:"confidence"`
	Model      string  `json:"model,omitempty"`
	Escalated  bool    `json:"escalated,omitempty"`

	// Degraded marks that some stage ran on a safe default (OCR failure,
	// classifier fallback, dedup store unreachable).
	Degraded bool `json:"degraded,omitempty"`

	Duration float64 `json:"duration_seconds"`
}

// Record is a persisted complaint with its decision. The raw media bytes are
// not retained, only the facts analytics and review need.
type Record struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	LocationToken string    `json:"location_token"`
	HasMedia      bool      `json:"has_media"`
	SubmittedAt   time.Time `json:"submitted_at"`
	CreatedAt     time.Time `json:"created_at"`
	Decision      Decision  `json:"decision"`
}
