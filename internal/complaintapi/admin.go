package complaintapi

import (
	"net/http"
	"strconv"

	"github.com/linnemanlabs/railtriage/internal/analytics"
)

func (a *API) handleTrends(w http.ResponseWriter, r *http.Request) {
	report, err := a.reporter.Trends(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "trends report failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleDepartmentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.reporter.DepartmentStats(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "department stats failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"department_stats": stats})
}

func (a *API) handleUrgencyDistribution(w http.ResponseWriter, r *http.Request) {
	dist, err := a.reporter.UrgencyDistribution(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "urgency distribution failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, dist)
}

func (a *API) handleListClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := a.reporter.Clusters(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "cluster listing failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if clusters == nil {
		clusters = []analytics.ClusterSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"clusters": clusters})
}

func (a *API) handleRecurringIssues(w http.ResponseWriter, r *http.Request) {
	minMembers := 2
	if raw := r.URL.Query().Get("min_members"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 2 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid min_members"})
			return
		}
		minMembers = n
	}

	issues, err := a.reporter.RecurringIssues(r.Context(), minMembers)
	if err != nil {
		a.logger.Error(r.Context(), err, "recurring issues report failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if issues == nil {
		issues = []analytics.ClusterSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recurring_issues": issues})
}

func (a *API) handleExportTrendsCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="railtriage_trends.csv"`)
	if err := a.reporter.WriteTrendsCSV(r.Context(), w); err != nil {
		a.logger.Error(r.Context(), err, "trends csv export failed")
	}
}

func (a *API) handleExportComplaintsCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="railtriage_complaints.csv"`)
	if err := a.reporter.WriteComplaintsCSV(r.Context(), w); err != nil {
		a.logger.Error(r.Context(), err, "complaints csv export failed")
	}
}
