package analytics

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// WriteTrendsCSV streams the per-category trend table as CSV.
func (r *Reporter) WriteTrendsCSV(ctx context.Context, w io.Writer) error {
	report, err := r.Trends(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Category", "Count", "Percentage"}); err != nil {
		return err
	}
	for _, item := range report.Trends {
		rec := []string{
			string(item.Category),
			fmt.Sprintf("%d", item.Count),
			fmt.Sprintf("%.2f", item.Percentage),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteComplaintsCSV streams the raw decision log as CSV for offline review.
func (r *Reporter) WriteComplaintsCSV(ctx context.Context, w io.Writer) error {
	recs, err := r.records.List(ctx, 0)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{
		"ID", "SubmittedAt", "Category", "Urgency", "Department",
		"SLADeadline", "Location", "IsNewCluster", "ClusterID", "Degraded",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range recs {
		row := []string{
			rec.ID,
			rec.SubmittedAt.Format(time.RFC3339),
			string(rec.Decision.Category),
			fmt.Sprintf("%.2f", rec.Decision.Urgency),
			string(rec.Decision.Department),
			rec.Decision.SLADeadline.Format(time.RFC3339),
			rec.LocationToken,
			fmt.Sprintf("%t", rec.Decision.IsNewCluster),
			rec.Decision.ClusterID,
			fmt.Sprintf("%t", rec.Decision.Degraded),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
