// Package memstore provides an in-memory implementation of cluster.Store.
// Suitable for dev/testing and for running without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/railtriage/internal/cluster"
	"github.com/linnemanlabs/railtriage/internal/complaint"
	"github.com/linnemanlabs/railtriage/internal/features"
)

// Store holds clusters in memory. A per-key mutex serializes the
// match-then-update transaction for each (category, location) key while
// the map-level RWMutex keeps the structures themselves safe. Candidate
// scans work on snapshots: unknown-location keys scan category-wide, so
// candidates are shared across keys and live centroids must never be read
// outside the write lock.
type Store struct {
	cfg cluster.Config

	mu       sync.RWMutex
	clusters map[string]*cluster.Cluster // cluster ID -> cluster

	lmu   sync.Mutex
	locks map[string]*sync.Mutex // key string -> key lock
}

// New initializes an empty in-memory Store.
func New(cfg cluster.Config) *Store {
	return &Store{
		cfg:      cfg,
		clusters: make(map[string]*cluster.Cluster),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Store) keyLock(key cluster.Key) *sync.Mutex {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	k := key.String()
	l, ok := s.locks[k]
	if !ok {
		l = &sync.Mutex{}
		s.locks[k] = l
	}
	return l
}

// MatchOrCreate implements cluster.Store.
func (s *Store) MatchOrCreate(_ context.Context, key cluster.Key, vec features.Vector, at time.Time, complaintID string) (*cluster.Cluster, bool, error) {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	candidates := s.activeCandidates(key.Category, key.Location)
	if best, dist := cluster.Nearest(candidates, vec); best != nil && dist <= s.cfg.Threshold(key) {
		s.mu.Lock()
		// Re-resolve by ID: best is a snapshot, and the live cluster may
		// have been retired by a sweep since the scan.
		if live, ok := s.clusters[best.ID]; ok && live.Active {
			live.Absorb(vec, at, s.cfg.Alpha)
			cp := cloneCluster(live)
			s.mu.Unlock()
			return cp, false, nil
		}
		s.mu.Unlock()
	}

	c := &cluster.Cluster{
		ID:               ulid.Make().String(),
		Category:         key.Category,
		LocationToken:    key.Location,
		Centroid:         vec,
		MemberCount:      1,
		FirstSeen:        at,
		LastSeen:         at,
		RepresentativeID: complaintID,
		Active:           true,
	}

	s.mu.Lock()
	s.clusters[c.ID] = c
	cp := cloneCluster(c)
	s.mu.Unlock()
	return cp, true, nil
}

// activeCandidates snapshots the matchable clusters for a key. Unknown
// locations match category-wide. Copies, not live pointers: the distance
// scan runs outside the write lock and must not observe a concurrent
// absorb from another key's transaction.
func (s *Store) activeCandidates(cat complaint.Category, loc string) []*cluster.Cluster {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*cluster.Cluster
	for _, c := range s.clusters {
		if !c.Active || c.Category != cat {
			continue
		}
		if loc != features.UnknownLocation && c.LocationToken != loc {
			continue
		}
		out = append(out, cloneCluster(c))
	}
	return out
}

// Get implements cluster.Store. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*cluster.Cluster, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clusters[id]
	if !ok {
		return nil, false, nil
	}
	return cloneCluster(c), true, nil
}

// Sweep implements cluster.Store.
func (s *Store) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for _, c := range s.clusters {
		if c.Active && c.LastSeen.Before(cutoff) {
			c.Active = false
			n++
		}
	}
	return n, nil
}

// History implements cluster.Store. Returns copies, newest first.
func (s *Store) History(_ context.Context) ([]*cluster.Cluster, error) {
	s.mu.RLock()
	out := make([]*cluster.Cluster, 0, len(s.clusters))
	for _, c := range s.clusters {
		out = append(out, cloneCluster(c))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out, nil
}

func cloneCluster(c *cluster.Cluster) *cluster.Cluster {
	cp := *c
	cp.Centroid = append(features.Vector(nil), c.Centroid...)
	return &cp
}
