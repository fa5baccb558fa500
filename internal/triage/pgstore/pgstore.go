// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/railtriage/internal/complaint"
	"github.com/linnemanlabs/railtriage/internal/triage"

	_ "embed"
)

var tracer = otel.Tracer("github.com/linnemanlabs/railtriage/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists triaged complaints in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const recordColumns = `id, text, location_token, has_media, submitted_at, created_at,
	category, urgency, department, sla_deadline, cluster_id, duplicate_of,
	is_new_cluster, confidence, model, escalated, degraded, duration`

// Put implements triage.Store.
func (s *Store) Put(ctx context.Context, rec *triage.Record) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO complaints (`+recordColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		 ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			urgency = EXCLUDED.urgency,
			department = EXCLUDED.department,
			sla_deadline = EXCLUDED.sla_deadline,
			cluster_id = EXCLUDED.cluster_id,
			duplicate_of = EXCLUDED.duplicate_of,
			is_new_cluster = EXCLUDED.is_new_cluster,
			confidence = EXCLUDED.confidence,
			model = EXCLUDED.model,
			escalated = EXCLUDED.escalated,
			degraded = EXCLUDED.degraded,
			duration = EXCLUDED.duration`,
		rec.ID, rec.Text, rec.LocationToken, rec.HasMedia, rec.SubmittedAt, rec.CreatedAt,
		string(rec.Decision.Category), rec.Decision.Urgency, string(rec.Decision.Department),
		rec.Decision.SLADeadline, rec.Decision.ClusterID, rec.Decision.DuplicateOf,
		rec.Decision.IsNewCluster, rec.Decision.Confidence, rec.Decision.Model,
		rec.Decision.Escalated, rec.Decision.Degraded, rec.Decision.Duration,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert complaint: %w", err)
	}
	return nil
}

// Get implements triage.Store.
func (s *Store) Get(ctx context.Context, id string) (*triage.Record, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM complaints WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	return rec, true, nil
}

// List implements triage.Store; newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*triage.Record, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + recordColumns + ` FROM complaints ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query complaints: %w", err)
	}
	defer rows.Close()

	var out []*triage.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate complaints: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*triage.Record, error) {
	var (
		rec        triage.Record
		category   string
		department string
	)
	err := row.Scan(
		&rec.ID, &rec.Text, &rec.LocationToken, &rec.HasMedia, &rec.SubmittedAt, &rec.CreatedAt,
		&category, &rec.Decision.Urgency, &department, &rec.Decision.SLADeadline,
		&rec.Decision.ClusterID, &rec.Decision.DuplicateOf, &rec.Decision.IsNewCluster,
		&rec.Decision.Confidence, &rec.Decision.Model, &rec.Decision.Escalated,
		&rec.Decision.Degraded, &rec.Decision.Duration,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan complaint: %w", err)
	}
	rec.Decision.Category = complaint.Category(category)
	rec.Decision.Department = complaint.Department(department)
	return &rec, nil
}
