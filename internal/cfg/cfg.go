package cfg

import (
	"errors"
	"flag"
	"fmt"
	"time"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	ClaudeAPIKey          string
	ClaudeModel           string
	OCREndpoint           string
	OCRTimeout            time.Duration
	AdminToken            string
	SlackWebhookURL       string
	NotifyThreshold       float64
	RoutingPolicyPath     string
	SweepSchedule         string
	InactivityWindow      time.Duration
	TriageBudget          time.Duration
	ClassifySlice         time.Duration
	DedupSlice            time.Duration
	FallbackUrgency       float64
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory stores)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude classifier model (empty = rule model)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use for classification")
	fs.StringVar(&c.OCREndpoint, "ocr-endpoint", "", "OCR service endpoint for image text extraction (empty = OCR disabled)")
	fs.DurationVar(&c.OCRTimeout, "ocr-timeout", 600*time.Millisecond, "per-image OCR time slice")
	fs.StringVar(&c.AdminToken, "admin-token", "", "bearer token for the admin analytics endpoints (empty = admin surface disabled)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for top-tier urgency notifications")
	fs.Float64Var(&c.NotifyThreshold, "notify-threshold", 0.8, "minimum urgency that triggers a notification (0..1)")
	fs.StringVar(&c.RoutingPolicyPath, "routing-policy", "", "path to a YAML routing policy file (empty = built-in policy)")
	fs.StringVar(&c.SweepSchedule, "sweep-schedule", "*/10 * * * *", "cron schedule for the cluster inactivity sweeper")
	fs.DurationVar(&c.InactivityWindow, "cluster-inactivity-window", 24*time.Hour, "retire clusters with no new members for this long")
	fs.DurationVar(&c.TriageBudget, "triage-budget", 2*time.Second, "end-to-end latency budget for one triage")
	fs.DurationVar(&c.ClassifySlice, "classify-slice", 800*time.Millisecond, "time slice for the classifier model inside the triage budget")
	fs.DurationVar(&c.DedupSlice, "dedup-slice", 300*time.Millisecond, "time slice for dedup matching inside the triage budget")
	fs.Float64Var(&c.FallbackUrgency, "fallback-urgency", 0.5, "urgency assigned when classification falls back (0..1)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Model name is only meaningful when the Claude classifier is enabled
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	// Negated range checks so NaN is rejected too
	if !(c.NotifyThreshold >= 0 && c.NotifyThreshold <= 1) {
		errs = append(errs, fmt.Errorf("invalid NOTIFY_THRESHOLD %v (must be 0..1)", c.NotifyThreshold))
	}
	if !(c.FallbackUrgency >= 0 && c.FallbackUrgency <= 1) {
		errs = append(errs, fmt.Errorf("invalid FALLBACK_URGENCY %v (must be 0..1)", c.FallbackUrgency))
	}

	if c.SweepSchedule == "" {
		errs = append(errs, errors.New("SWEEP_SCHEDULE is required"))
	}
	if c.InactivityWindow <= 0 {
		errs = append(errs, fmt.Errorf("invalid CLUSTER_INACTIVITY_WINDOW %v (must be positive)", c.InactivityWindow))
	}

	// Time slices must fit inside the end-to-end budget
	if c.TriageBudget <= 0 {
		errs = append(errs, fmt.Errorf("invalid TRIAGE_BUDGET %v (must be positive)", c.TriageBudget))
	}
	if c.ClassifySlice <= 0 || c.ClassifySlice >= c.TriageBudget {
		errs = append(errs, fmt.Errorf("invalid CLASSIFY_SLICE %v (must be positive and less than TRIAGE_BUDGET %v)", c.ClassifySlice, c.TriageBudget))
	}
	if c.DedupSlice <= 0 || c.DedupSlice >= c.TriageBudget {
		errs = append(errs, fmt.Errorf("invalid DEDUP_SLICE %v (must be positive and less than TRIAGE_BUDGET %v)", c.DedupSlice, c.TriageBudget))
	}
	if c.OCRTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid OCR_TIMEOUT %v (must be positive)", c.OCRTimeout))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
