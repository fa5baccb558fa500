package memstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/linnemanlabs/railtriage/internal/complaint"
	"github.com/linnemanlabs/railtriage/internal/triage"
)

func record(id string, at time.Time) *triage.Record {
	return &triage.Record{
		ID:          id,
		Text:        "broken window latch",
		SubmittedAt: at,
		CreatedAt:   at,
		Decision: triage.Decision{
			Category:   complaint.CategoryMaintenance,
			Department: complaint.DeptMaintenance,
			Urgency:    0.3,
		},
	}
}

func TestStore_PutGet(t *testing.T) {
	t.Parallel()

	s := New()
	at := time.Now()

	if err := s.Put(context.Background(), record("a", at)); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.Get(context.Background(), "a")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.Decision.Category != complaint.CategoryMaintenance {
		t.Errorf("category = %q", got.Decision.Category)
	}

	// Mutating the returned copy must not affect the stored record.
	got.Decision.Urgency = 0.9
	again, _, _ := s.Get(context.Background(), "a")
	if again.Decision.Urgency != 0.3 {
		t.Error("store returned a shared pointer")
	}

	if _, ok, _ := s.Get(context.Background(), "missing"); ok {
		t.Error("expected miss")
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	t.Parallel()

	s := New()
	at := time.Now()
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("r%d", i)
		if err := s.Put(context.Background(), record(id, at.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.List(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("len = %d, want 5", len(all))
	}
	if all[0].ID != "r4" || all[4].ID != "r0" {
		t.Errorf("order = %q .. %q, want newest first", all[0].ID, all[4].ID)
	}

	limited, err := s.List(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 || limited[0].ID != "r4" {
		t.Errorf("limited list = %v", limited)
	}
}

func TestStore_PutUpsert(t *testing.T) {
	t.Parallel()

	s := New()
	at := time.Now()
	if err := s.Put(context.Background(), record("a", at)); err != nil {
		t.Fatal(err)
	}

	updated := record("a", at)
	updated.Decision.Urgency = 0.8
	if err := s.Put(context.Background(), updated); err != nil {
		t.Fatal(err)
	}

	all, _ := s.List(context.Background(), 0)
	if len(all) != 1 {
		t.Fatalf("len = %d, want 1 after upsert", len(all))
	}
	if all[0].Decision.Urgency != 0.8 {
		t.Errorf("urgency = %v, want 0.8", all[0].Decision.Urgency)
	}
}
