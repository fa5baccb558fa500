package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/railtriage/internal/complaint"
	"github.com/linnemanlabs/railtriage/internal/features"
)

// Notifier pushes high-urgency decisions to an operations channel.
// Notification is best-effort and never affects the triage outcome.
type Notifier interface {
	Notify(ctx context.Context, rec *Record) error
}

// Service is the business boundary for complaint triage: it assigns IDs,
// runs the engine, persists the record, and fires notifications.
type Service struct {
	store           Store
	engine          *Engine
	notifier        Notifier
	notifyThreshold float64
	logger          log.Logger
}

// NewService creates a triage service. notifier may be nil.
func NewService(store Store, engine *Engine, notifier Notifier, notifyThreshold float64, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:           store,
		engine:          engine,
		notifier:        notifier,
		notifyThreshold: notifyThreshold,
		logger:          logger,
	}
}

// Submit triages one complaint synchronously and persists the result.
//
// The caller gets an acknowledgment with the complaint ID unless a fatal
// error occurs (unknown category, storage down), in which case intake is
// refused rather than acknowledged without a durable record.
func (s *Service) Submit(ctx context.Context, in *complaint.Input) (*Record, error) {
	submitted := *in
	if submitted.SubmittedAt.IsZero() {
		submitted.SubmittedAt = time.Now()
	}

	id := ulid.Make().String()

	decision, err := s.engine.Triage(ctx, &submitted, id)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:            id,
		Text:          submitted.Text,
		LocationToken: features.NormalizeLocation(submitted.ReporterLocation),
		HasMedia:      submitted.HasMedia(),
		SubmittedAt:   submitted.SubmittedAt,
		CreatedAt:     time.Now(),
		Decision:      *decision,
	}

	// The decision is durable from here: a client disconnect must not cut
	// persistence short.
	pctx := context.WithoutCancel(ctx)
	if err := s.store.Put(pctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if s.notifier != nil && decision.Urgency >= s.notifyThreshold {
		go s.notify(context.WithoutCancel(ctx), rec)
	}

	return rec, nil
}

// Get retrieves a triaged complaint by ID.
func (s *Service) Get(ctx context.Context, id string) (*Record, bool, error) {
	return s.store.Get(ctx, id)
}

// List returns triaged complaints, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*Record, error) {
	return s.store.List(ctx, limit)
}

func (s *Service) notify(ctx context.Context, rec *Record) {
	if err := s.notifier.Notify(ctx, rec); err != nil {
		s.logger.Error(ctx, err, "notification failed",
			"complaint_id", rec.ID,
			"department", string(rec.Decision.Department),
		)
	}
}
