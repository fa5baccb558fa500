package triage

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/railtriage/internal/classify"
	"github.com/linnemanlabs/railtriage/internal/cluster"
	"github.com/linnemanlabs/railtriage/internal/complaint"
	"github.com/linnemanlabs/railtriage/internal/features"
	"github.com/linnemanlabs/railtriage/internal/route"
)

// Config bounds each stage of the pipeline. The classifier slice triggers the
// Other fallback on expiry; the dedup slice degrades to is_new_cluster=true.
type Config struct {
	Budget        time.Duration
	ClassifySlice time.Duration
	DedupSlice    time.Duration

	// FallbackUrgency is assigned when the classifier is unavailable or
	// over budget.
	FallbackUrgency float64

	// DisableModelFallback makes model unavailability fatal instead of
	// degrading to Other. Off by default: intake must not block on a model.
	DisableModelFallback bool
}

// DefaultConfig returns the illustrative latency budget.
func DefaultConfig() Config {
	return Config{
		Budget:          2 * time.Second,
		ClassifySlice:   800 * time.Millisecond,
		DedupSlice:      300 * time.Millisecond,
		FallbackUrgency: 0.5,
	}
}

// CompleteEvent summarizes a finished triage run for metrics hooks.
type CompleteEvent struct {
	Stage      Stage
	Category   complaint.Category
	Department complaint.Department
	Urgency    float64
	Duplicate  bool
	Degraded   bool
	Duration   float64
}

// EngineHooks are optional observation points; nil hooks are skipped.
type EngineHooks struct {
	OnStage    func(stage Stage, duration time.Duration)
	OnFallback func(reason string)
	OnComplete func(e *CompleteEvent)
}

// Engine runs the triage pipeline: extract, classify, dedup, route. It owns
// no persistence; the Service persists the Record around it.
type Engine struct {
	extractor  *features.Extractor
	classifier *classify.Classifier
	clusters   cluster.Store
	router     *route.Router
	cfg        Config
	logger     log.Logger
	hooks      EngineHooks
}

// NewEngine creates a triage engine with the given collaborators.
func NewEngine(extractor *features.Extractor, classifier *classify.Classifier, clusters cluster.Store, router *route.Router, cfg Config, logger log.Logger) *Engine {
	if cfg.Budget <= 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		extractor:  extractor,
		classifier: classifier,
		clusters:   clusters,
		router:     router,
		cfg:        cfg,
		logger:     logger,
	}
}

// SetHooks installs metrics hooks. Must be called before Triage.
func (e *Engine) SetHooks(h EngineHooks) { e.hooks = h }

// Triage runs one complaint through the pipeline and returns its Decision.
//
// The run is cancellable until the routing stage completes; after that the
// decision is returned regardless of caller cancellation. Only unknown
// categories (and, with fallback disabled, model absence) are fatal here.
func (e *Engine) Triage(ctx context.Context, in *complaint.Input, complaintID string) (*Decision, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Budget)
	defer cancel()

	L := e.logger.With("complaint_id", complaintID)
	stage := StageReceived

	advance := func(next Stage) {
		if e.hooks.OnStage != nil {
			e.hooks.OnStage(next, time.Since(start))
		}
		stage = next
	}

	fail := func(err error) (*Decision, error) {
		if e.hooks.OnComplete != nil {
			e.hooks.OnComplete(&CompleteEvent{Stage: StageError, Duration: time.Since(start).Seconds()})
		}
		L.Error(ctx, err, "triage failed", "stage", string(stage))
		return nil, err
	}

	// Extraction never fails; malformed media degrades to text-only.
	bundle := e.extractor.Extract(ctx, in)
	degraded := bundle.Degraded
	advance(StageExtracted)

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	res, err := e.classifyWithFallback(ctx, L, bundle, in.SubmittedAt)
	if err != nil {
		return fail(err)
	}
	if res.Model == "" {
		degraded = true
	}
	advance(StageClassified)

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	cl, isNew := e.dedup(ctx, L, res.Category, bundle, in.SubmittedAt, complaintID)
	if cl == nil {
		degraded = true
	}
	advance(StageDeduped)

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	memberCount := 0
	if cl != nil {
		memberCount = cl.MemberCount
	}
	assignment, err := e.router.Route(res.Category, res.Urgency, isNew, memberCount, in.SubmittedAt)
	if err != nil {
		// A complaint with no owning department is a correctness bug,
		// never a degraded path.
		return fail(err)
	}
	advance(StageRouted)

	d := &Decision{
		Category:     res.Category,
		Urgency:      assignment.Urgency,
		Department:   assignment.Department,
		SLADeadline:  assignment.Deadline,
		IsNewCluster: isNew,
		Confidence:   res.Confidence,
		Model:        res.Model,
		Escalated:    assignment.Escalated,
		Degraded:     degraded,
		Duration:     time.Since(start).Seconds(),
	}
	if cl != nil {
		d.ClusterID = cl.ID
		if !isNew {
			d.DuplicateOf = cl.ID
		}
	}
	advance(StageDecided)

	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(&CompleteEvent{
			Stage:      StageDecided,
			Category:   d.Category,
			Department: d.Department,
			Urgency:    d.Urgency,
			Duplicate:  !d.IsNewCluster,
			Degraded:   d.Degraded,
			Duration:   d.Duration,
		})
	}

	L.Info(ctx, "triage decided",
		"category", string(d.Category),
		"department", string(d.Department),
		"urgency", d.Urgency,
		"confidence", d.Confidence,
		"is_new_cluster", d.IsNewCluster,
		"degraded", d.Degraded,
		"duration", d.Duration,
	)

	return d, nil
}

// classifyWithFallback runs the classifier within its latency slice. Model
// unavailability or slice expiry degrades to Other with the fallback urgency
// so user-facing acknowledgment stays fast even under model slowness.
func (e *Engine) classifyWithFallback(ctx context.Context, L log.Logger, bundle *features.Bundle, submittedAt time.Time) (classify.Result, error) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.ClassifySlice)
	defer cancel()

	res, err := e.classifier.Classify(cctx, bundle, submittedAt)
	if err == nil {
		return res, nil
	}

	if e.cfg.DisableModelFallback && errors.Is(err, classify.ErrModelUnavailable) && ctx.Err() == nil {
		return classify.Result{}, err
	}

	reason := "model_unavailable"
	if cctx.Err() != nil {
		reason = "timeout"
	}
	if e.hooks.OnFallback != nil {
		e.hooks.OnFallback(reason)
	}
	L.Warn(ctx, "classifier fallback", "reason", reason, "error", err)

	return classify.Result{
		Category:   complaint.CategoryOther,
		Confidence: 0,
		Urgency:    e.cfg.FallbackUrgency,
	}, nil
}

// dedup matches the complaint against the rolling cluster model inside its
// own slice. The store never fails a triage: on error or timeout the
// complaint is treated as a new issue and routing proceeds.
func (e *Engine) dedup(ctx context.Context, L log.Logger, cat complaint.Category, bundle *features.Bundle, at time.Time, complaintID string) (*cluster.Cluster, bool) {
	dctx, cancel := context.WithTimeout(ctx, e.cfg.DedupSlice)
	defer cancel()

	key := cluster.Key{Category: cat, Location: bundle.LocationToken}
	cl, isNew, err := e.clusters.MatchOrCreate(dctx, key, bundle.Vector, at, complaintID)
	if err != nil {
		L.Warn(ctx, "dedup unavailable, treating as new issue",
			"key", key.String(), "error", err)
		return nil, true
	}
	return cl, isNew
}
