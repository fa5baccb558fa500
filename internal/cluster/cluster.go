// Package cluster maintains the rolling model of recent complaints grouped
// by category and location, and decides whether a new complaint is a
// recurrence of an open issue or the seed of a new one. Matching and
// centroid updates are serialized so a candidate scan never races an
// update; unknown-location complaints match category-wide, so candidates
// are shared across every location key of a category. Dedup is
// best-effort: it never fails a triage.
package cluster

import (
	"time"

	"github.com/linnemanlabs/railtriage/internal/complaint"
	"github.com/linnemanlabs/railtriage/internal/features"
)

// Cluster is a group of complaints judged to describe the same recurring
// issue. Clusters are never deleted; the aging sweep only retires them
// from active matching. Retired clusters still feed recurrence analytics.
type Cluster struct {
	ID               string             `json:"id"`
	Category         complaint.Category `json:"category"`
	LocationToken    string             `json:"location_token"`
	Centroid         features.Vector    `json:"centroid"`
	MemberCount      int                `json:"member_count"`
	FirstSeen        time.Time          `json:"first_seen"`
	LastSeen         time.Time          `json:"last_seen"`
	RepresentativeID string             `json:"representative_complaint_id"`
	Active           bool               `json:"active"`
}

// Key identifies the serialization unit for cluster matching.
type Key struct {
	Category complaint.Category
	Location string
}

// String renders the key for lock tables and advisory locks. Unknown
// locations collapse onto a category-wide key because they match across
// all locations of the category.
func (k Key) String() string {
	if k.Location == features.UnknownLocation {
		return string(k.Category) + "|*"
	}
	return string(k.Category) + "|" + k.Location
}

// Config carries the matching policy. All values are operational knobs,
// not derived constants.
type Config struct {
	// MatchThreshold is the maximum cosine distance for a location-scoped match.
	MatchThreshold float64
	// StrictThreshold applies when the location is unknown and matching
	// falls back to category-only; location is the primary disambiguator,
	// so the bar is higher.
	StrictThreshold float64
	// Alpha is the EMA weight of the incoming vector when blending centroids.
	Alpha float64
}

// DefaultConfig returns the illustrative policy defaults.
func DefaultConfig() Config {
	return Config{
		MatchThreshold:  0.35,
		StrictThreshold: 0.20,
		Alpha:           0.3,
	}
}

// Threshold returns the distance threshold applicable to a key.
func (c Config) Threshold(k Key) float64 {
	if k.Location == features.UnknownLocation {
		return c.StrictThreshold
	}
	return c.MatchThreshold
}

// Nearest returns the candidate closest to vec and its distance. It takes
// no locks: callers pass candidates they own, snapshots in memory or rows
// read inside a locked transaction. Returns nil when candidates is empty.
func Nearest(candidates []*Cluster, vec features.Vector) (*Cluster, float64) {
	var best *Cluster
	bestDist := 0.0
	for _, c := range candidates {
		d := c.Centroid.Distance(vec)
		if best == nil || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// Absorb folds a new member into the cluster: count, recency, and an EMA
// centroid blend (bounded cost, no full recompute).
func (c *Cluster) Absorb(vec features.Vector, at time.Time, alpha float64) {
	c.Centroid = c.Centroid.Blend(vec, alpha)
	c.MemberCount++
	if at.After(c.LastSeen) {
		c.LastSeen = at
	}
}
