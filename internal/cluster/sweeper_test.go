package cluster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/railtriage/internal/features"
)

// sweepOnlyStore records Sweep calls; the match path is irrelevant here.
type sweepOnlyStore struct {
	mu       sync.Mutex
	retired  int
	sweepErr error
	cutoffs  []time.Time
}

func (s *sweepOnlyStore) MatchOrCreate(context.Context, Key, features.Vector, time.Time, string) (*Cluster, bool, error) {
	return nil, false, errors.New("not used")
}

func (s *sweepOnlyStore) Get(context.Context, string) (*Cluster, bool, error) {
	return nil, false, nil
}

func (s *sweepOnlyStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs = append(s.cutoffs, cutoff)
	if s.sweepErr != nil {
		return 0, s.sweepErr
	}
	return s.retired, nil
}

func (s *sweepOnlyStore) History(context.Context) ([]*Cluster, error) {
	return nil, nil
}

func TestNewSweeper_InvalidSchedule(t *testing.T) {
	t.Parallel()

	_, err := NewSweeper(&sweepOnlyStore{}, 24*time.Hour, "not a cron expr", nil, nil)
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestNewSweeper_NonPositiveWindow(t *testing.T) {
	t.Parallel()

	_, err := NewSweeper(&sweepOnlyStore{}, 0, "*/10 * * * *", nil, nil)
	if err == nil {
		t.Fatal("expected error for zero inactivity window")
	}
}

func TestSweeper_RunNow(t *testing.T) {
	t.Parallel()

	store := &sweepOnlyStore{retired: 3}
	window := 24 * time.Hour
	s, err := NewSweeper(store, window, "*/10 * * * *", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	before := time.Now()
	n, err := s.RunNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("retired = %d, want 3", n)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.cutoffs) != 1 {
		t.Fatalf("sweep calls = %d, want 1", len(store.cutoffs))
	}
	// Cutoff is now minus the inactivity window.
	want := before.Add(-window)
	if d := store.cutoffs[0].Sub(want); d < 0 || d > time.Second {
		t.Errorf("cutoff = %v, want about %v", store.cutoffs[0], want)
	}
}

func TestSweeper_HookFires(t *testing.T) {
	t.Parallel()

	store := &sweepOnlyStore{retired: 2}
	var got int
	s, err := NewSweeper(store, time.Hour, "*/10 * * * *", nil, func(retired int) { got = retired })
	if err != nil {
		t.Fatal(err)
	}

	s.runOnce()
	if got != 2 {
		t.Errorf("hook retired = %d, want 2", got)
	}
}

func TestSweeper_ErrorDefersToNextRun(t *testing.T) {
	t.Parallel()

	store := &sweepOnlyStore{sweepErr: errors.New("store down")}
	var hookCalled bool
	s, err := NewSweeper(store, time.Hour, "*/10 * * * *", nil, func(int) { hookCalled = true })
	if err != nil {
		t.Fatal(err)
	}

	// Must not panic; the failed sweep is simply skipped.
	s.runOnce()
	if hookCalled {
		t.Error("hook must not fire on a failed sweep")
	}
}

func TestSweeper_StartStop(t *testing.T) {
	t.Parallel()

	s, err := NewSweeper(&sweepOnlyStore{}, time.Hour, "*/10 * * * *", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() = %v, want nil", err)
	}
}
