package cluster

import (
	"testing"
	"time"

	"github.com/linnemanlabs/railtriage/internal/complaint"
	"github.com/linnemanlabs/railtriage/internal/features"
)

func TestKeyString(t *testing.T) {
	t.Parallel()

	known := Key{Category: complaint.CategoryMaintenance, Location: "coach-b12"}
	if got := known.String(); got != "maintenance|coach-b12" {
		t.Errorf("key = %q", got)
	}

	unknown := Key{Category: complaint.CategoryMaintenance, Location: features.UnknownLocation}
	if got := unknown.String(); got != "maintenance|*" {
		t.Errorf("unknown-location key = %q, want category-wide key", got)
	}
}

func TestConfigThreshold(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	known := cfg.Threshold(Key{Category: complaint.CategorySafety, Location: "coach-a1"})
	strict := cfg.Threshold(Key{Category: complaint.CategorySafety, Location: features.UnknownLocation})

	if strict >= known {
		t.Errorf("strict threshold %v not smaller than location-scoped %v", strict, known)
	}
}

func TestNearest(t *testing.T) {
	t.Parallel()

	target := features.NewVector(features.Tokens("seat broken smells bad"))
	near := &Cluster{ID: "near", Centroid: features.NewVector(features.Tokens("seat broken smells really bad"))}
	far := &Cluster{ID: "far", Centroid: features.NewVector(features.Tokens("rude attendant ignored us"))}

	best, dist := Nearest([]*Cluster{far, near}, target)
	if best == nil || best.ID != "near" {
		t.Fatalf("nearest = %v, want near", best)
	}
	if dist <= 0 || dist >= 1 {
		t.Errorf("distance = %v, want in (0,1) for overlapping text", dist)
	}

	if best, _ := Nearest(nil, target); best != nil {
		t.Errorf("Nearest(nil) = %v, want nil", best)
	}
}

func TestAbsorb(t *testing.T) {
	t.Parallel()

	at := time.Now()
	c := &Cluster{
		Centroid:    features.NewVector(features.Tokens("seat broken")),
		MemberCount: 1,
		FirstSeen:   at.Add(-time.Hour),
		LastSeen:    at.Add(-time.Hour),
	}

	incoming := features.NewVector(features.Tokens("seat broken smells bad"))
	c.Absorb(incoming, at, 0.3)

	if c.MemberCount != 2 {
		t.Errorf("member_count = %d, want 2", c.MemberCount)
	}
	if !c.LastSeen.Equal(at) {
		t.Errorf("last_seen = %v, want %v", c.LastSeen, at)
	}
	if c.Centroid.IsZero() {
		t.Error("centroid zeroed by blend")
	}
}
