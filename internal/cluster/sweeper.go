package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/robfig/cron/v3"
)

const sweepTimeout = 30 * time.Second

// Sweeper runs the periodic aging sweep that retires inactive clusters.
// It is independent of the per-complaint path: a failed or slow sweep is
// simply deferred to its next scheduled run.
type Sweeper struct {
	store    Store
	window   time.Duration
	logger   log.Logger
	cron     *cron.Cron
	onSwept  func(retired int)
	schedule string
}

// NewSweeper creates a Sweeper. The schedule is a standard 5-field cron
// expression; window is the inactivity window after which a cluster is
// retired. onSwept is an optional metrics hook.
func NewSweeper(store Store, window time.Duration, schedule string, logger log.Logger, onSwept func(retired int)) (*Sweeper, error) {
	if logger == nil {
		logger = log.Nop()
	}
	if window <= 0 {
		return nil, fmt.Errorf("inactivity window must be positive, got %v", window)
	}

	s := &Sweeper{
		store:    store,
		window:   window,
		logger:   logger,
		onSwept:  onSwept,
		schedule: schedule,
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(schedule, s.runOnce); err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}
	s.cron = c
	return s, nil
}

// Start begins scheduled sweeping.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info(context.Background(), "cluster sweep scheduled",
		"schedule", s.schedule, "inactivity_window", s.window.String())
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow triggers a sweep outside the schedule (startup, tests).
func (s *Sweeper) RunNow(ctx context.Context) (int, error) {
	return s.store.Sweep(ctx, time.Now().Add(-s.window))
}

func (s *Sweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	n, err := s.RunNow(ctx)
	if err != nil {
		// Deferred to the next scheduled run.
		s.logger.Error(ctx, err, "cluster sweep failed")
		return
	}
	if s.onSwept != nil {
		s.onSwept(n)
	}
	if n > 0 {
		s.logger.Info(ctx, "cluster sweep retired clusters", "retired", n)
	}
}
