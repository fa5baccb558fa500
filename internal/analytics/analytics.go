// Package analytics aggregates triage decisions and cluster history into
// trend, department, and recurrence reports. It only reads; it never mutates
// engine state, and every report is computed from stored provenance without
// re-running any pipeline stage.
package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/linnemanlabs/railtriage/internal/cluster"
	"github.com/linnemanlabs/railtriage/internal/complaint"
	"github.com/linnemanlabs/railtriage/internal/triage"
)

// RecordSource is the slice of triage.Store the reporter needs.
type RecordSource interface {
	List(ctx context.Context, limit int) ([]*triage.Record, error)
}

// ClusterSource is the slice of cluster.Store the reporter needs.
type ClusterSource interface {
	History(ctx context.Context) ([]*cluster.Cluster, error)
}

// TrendItem is one category's share of complaint volume.
type TrendItem struct {
	Category   complaint.Category `json:"category"`
	Count      int                `json:"count"`
	Percentage float64            `json:"percentage"`
}

// TrendsReport is the comprehensive analytics payload.
type TrendsReport struct {
	Trends          []TrendItem        `json:"trends"`
	Metrics         map[string]float64 `json:"metrics"`
	TotalComplaints int                `json:"total_complaints"`
}

// DepartmentStat summarizes one department's load.
type DepartmentStat struct {
	Department            complaint.Department `json:"department"`
	TotalComplaints       int                  `json:"total_complaints"`
	HighUrgencyPercentage float64              `json:"high_urgency_percentage"`
	EscalatedPercentage   float64              `json:"escalated_percentage"`
}

// UrgencyBucket is one tier of the urgency distribution.
type UrgencyBucket struct {
	Level      string  `json:"urgency_level"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// UrgencyDistribution groups decided complaints by urgency tier.
type UrgencyDistribution struct {
	Buckets         []UrgencyBucket `json:"urgency_distribution"`
	TotalComplaints int             `json:"total_complaints"`
}

// ClusterSummary is the admin view of one cluster. RecurringIssues narrows
// the same shape to clusters that keep accumulating members: the predictive
// "fix this before it is reported again" signal.
type ClusterSummary struct {
	ClusterID     string             `json:"cluster_id"`
	Category      complaint.Category `json:"category"`
	LocationToken string             `json:"location_token"`
	MemberCount   int                `json:"member_count"`
	Active        bool               `json:"active"`
	FirstSeen     time.Time          `json:"first_seen"`
	LastSeen      time.Time          `json:"last_seen"`
}

// highUrgency is the tier boundary above which a complaint counts as high.
const highUrgency = 0.8

// Reporter computes reports on demand from the stores.
type Reporter struct {
	records  RecordSource
	clusters ClusterSource
}

// NewReporter creates a Reporter over the given sources.
func NewReporter(records RecordSource, clusters ClusterSource) *Reporter {
	return &Reporter{records: records, clusters: clusters}
}

// Trends returns per-category complaint counts with percentages, plus
// aggregate quality metrics.
func (r *Reporter) Trends(ctx context.Context) (*TrendsReport, error) {
	recs, err := r.records.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	counts := make(map[complaint.Category]int)
	var urgencySum, durationSum float64
	var duplicates, degraded int
	for _, rec := range recs {
		counts[rec.Decision.Category]++
		urgencySum += rec.Decision.Urgency
		durationSum += rec.Decision.Duration
		if !rec.Decision.IsNewCluster {
			duplicates++
		}
		if rec.Decision.Degraded {
			degraded++
		}
	}

	total := len(recs)
	report := &TrendsReport{
		Trends:          make([]TrendItem, 0, len(counts)),
		Metrics:         map[string]float64{},
		TotalComplaints: total,
	}
	for _, cat := range complaint.Categories {
		n, ok := counts[cat]
		if !ok {
			continue
		}
		report.Trends = append(report.Trends, TrendItem{
			Category:   cat,
			Count:      n,
			Percentage: percentage(n, total),
		})
	}
	sort.SliceStable(report.Trends, func(i, j int) bool {
		return report.Trends[i].Count > report.Trends[j].Count
	})

	if total > 0 {
		report.Metrics["avg_urgency"] = round2(urgencySum / float64(total))
		report.Metrics["avg_triage_seconds"] = round2(durationSum / float64(total))
		report.Metrics["duplicate_rate"] = percentage(duplicates, total)
		report.Metrics["degraded_rate"] = percentage(degraded, total)
	}
	return report, nil
}

// DepartmentStats returns per-department totals with high-urgency and
// escalation rates.
func (r *Reporter) DepartmentStats(ctx context.Context) ([]DepartmentStat, error) {
	recs, err := r.records.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	type agg struct{ total, high, escalated int }
	byDept := make(map[complaint.Department]*agg)
	for _, rec := range recs {
		a := byDept[rec.Decision.Department]
		if a == nil {
			a = &agg{}
			byDept[rec.Decision.Department] = a
		}
		a.total++
		if rec.Decision.Urgency >= highUrgency {
			a.high++
		}
		if rec.Decision.Escalated {
			a.escalated++
		}
	}

	out := make([]DepartmentStat, 0, len(byDept))
	for dept, a := range byDept {
		out = append(out, DepartmentStat{
			Department:            dept,
			TotalComplaints:       a.total,
			HighUrgencyPercentage: percentage(a.high, a.total),
			EscalatedPercentage:   percentage(a.escalated, a.total),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalComplaints != out[j].TotalComplaints {
			return out[i].TotalComplaints > out[j].TotalComplaints
		}
		return out[i].Department < out[j].Department
	})
	return out, nil
}

// UrgencyDistribution buckets decided complaints into the routing tiers:
// low (<0.5), medium (<0.8), high (>=0.8).
func (r *Reporter) UrgencyDistribution(ctx context.Context) (*UrgencyDistribution, error) {
	recs, err := r.records.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	var low, medium, high int
	for _, rec := range recs {
		switch u := rec.Decision.Urgency; {
		case u >= highUrgency:
			high++
		case u >= 0.5:
			medium++
		default:
			low++
		}
	}

	total := len(recs)
	return &UrgencyDistribution{
		Buckets: []UrgencyBucket{
			{Level: "low", Count: low, Percentage: percentage(low, total)},
			{Level: "medium", Count: medium, Percentage: percentage(medium, total)},
			{Level: "high", Count: high, Percentage: percentage(high, total)},
		},
		TotalComplaints: total,
	}, nil
}

// Clusters returns the full cluster history, most recent activity first.
// Retired clusters are included.
func (r *Reporter) Clusters(ctx context.Context) ([]ClusterSummary, error) {
	history, err := r.clusters.History(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ClusterSummary, 0, len(history))
	for _, cl := range history {
		out = append(out, summarize(cl))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out, nil
}

// RecurringIssues returns clusters whose member count reached minMembers,
// largest first. Retired clusters are included: an issue that aged out and
// came back is exactly the recurrence the report is for.
func (r *Reporter) RecurringIssues(ctx context.Context, minMembers int) ([]ClusterSummary, error) {
	if minMembers < 2 {
		minMembers = 2
	}
	history, err := r.clusters.History(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ClusterSummary, 0)
	for _, cl := range history {
		if cl.MemberCount < minMembers {
			continue
		}
		out = append(out, summarize(cl))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MemberCount > out[j].MemberCount
	})
	return out, nil
}

func summarize(cl *cluster.Cluster) ClusterSummary {
	return ClusterSummary{
		ClusterID:     cl.ID,
		Category:      cl.Category,
		LocationToken: cl.LocationToken,
		MemberCount:   cl.MemberCount,
		Active:        cl.Active,
		FirstSeen:     cl.FirstSeen,
		LastSeen:      cl.LastSeen,
	}
}

func percentage(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(n) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
