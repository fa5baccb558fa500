package cluster

import (
	"context"
	"time"

	"github.com/linnemanlabs/railtriage/internal/features"
)

// Store is the persistence interface for the rolling cluster model.
//
// MatchOrCreate is a read-modify-write transaction: implementations must
// serialize it so concurrent complaints for the same key cannot both seed a
// cluster for what should be one issue. Candidates are shared across keys
// of a category, because unknown-location keys match category-wide, so the
// distance scan must also never race a centroid update made under another
// key's transaction.
type Store interface {
	// MatchOrCreate matches vec against active clusters for key (category-only
	// with the strict threshold when the key's location is unknown) and either
	// absorbs the complaint into the nearest cluster or creates a new one.
	// The returned bool is true when a new cluster was created.
	MatchOrCreate(ctx context.Context, key Key, vec features.Vector, at time.Time, complaintID string) (*Cluster, bool, error)

	// Get retrieves a cluster by ID.
	Get(ctx context.Context, id string) (*Cluster, bool, error)

	// Sweep retires clusters whose last_seen predates cutoff from active
	// matching and returns how many were retired. Retired clusters are kept.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)

	// History returns all clusters, active and retired, newest first.
	// Consumed by the analytics collaborator; never mutates.
	History(ctx context.Context) ([]*Cluster, error)
}
