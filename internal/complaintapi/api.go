// Package complaintapi is the HTTP surface of the triage engine: complaint
// intake, chat intake, status lookup, and the bearer-protected admin
// analytics endpoints.
package complaintapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/railtriage/internal/analytics"
	"github.com/linnemanlabs/railtriage/internal/authmw"
	"github.com/linnemanlabs/railtriage/internal/complaint"
	"github.com/linnemanlabs/railtriage/internal/route"
	"github.com/linnemanlabs/railtriage/internal/triage"
)

// TriageService defines the business operations complaintapi needs.
type TriageService interface {
	Submit(ctx context.Context, in *complaint.Input) (*triage.Record, error)
	Get(ctx context.Context, id string) (*triage.Record, bool, error)
	List(ctx context.Context, limit int) ([]*triage.Record, error)
}

// Reporter defines the analytics operations the admin surface needs.
type Reporter interface {
	Trends(ctx context.Context) (*analytics.TrendsReport, error)
	DepartmentStats(ctx context.Context) ([]analytics.DepartmentStat, error)
	UrgencyDistribution(ctx context.Context) (*analytics.UrgencyDistribution, error)
	Clusters(ctx context.Context) ([]analytics.ClusterSummary, error)
	RecurringIssues(ctx context.Context, minMembers int) ([]analytics.ClusterSummary, error)
	WriteTrendsCSV(ctx context.Context, w io.Writer) error
	WriteComplaintsCSV(ctx context.Context, w io.Writer) error
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger     log.Logger
	svc        TriageService
	reporter   Reporter
	adminToken string
}

// New creates a new API handler. reporter may be nil, which disables the
// admin surface; an empty adminToken does the same.
func New(logger log.Logger, svc TriageService, reporter Reporter, adminToken string) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger:     logger,
		svc:        svc,
		reporter:   reporter,
		adminToken: adminToken,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/complaints", a.handleSubmitComplaint)
		r.Get("/complaints/{id}", a.handleGetComplaint)
		r.Post("/chat/messages", a.handleChatMessage)

		if a.reporter != nil && a.adminToken != "" {
			r.Group(func(r chi.Router) {
				r.Use(authmw.BearerToken(a.adminToken))
				r.Get("/complaints", a.handleListComplaints)
				r.Get("/complaints/export.csv", a.handleExportComplaintsCSV)
				r.Get("/trends", a.handleTrends)
				r.Get("/trends/export.csv", a.handleExportTrendsCSV)
				r.Get("/trends/departments", a.handleDepartmentStats)
				r.Get("/trends/urgency", a.handleUrgencyDistribution)
				r.Get("/clusters", a.handleListClusters)
				r.Get("/clusters/recurring", a.handleRecurringIssues)
			})
		}
	})
}

// writeJSON encodes v with the proper content type.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFatal maps a fatal triage error to the user-visible generic retry
// response. Urgency or category mistakes are tolerable and corrected via
// admin review; intake failures are not, so they are logged loudly while the
// user sees nothing internal.
func (a *API) writeFatal(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error(r.Context(), err, "complaint intake refused",
		"storage_down", errors.Is(err, triage.ErrStorageUnavailable),
		"unknown_category", errors.Is(err, route.ErrUnknownCategory),
	)
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"error": "temporarily unavailable, please retry",
	})
}
