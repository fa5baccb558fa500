// Package pgstore provides a PostgreSQL implementation of cluster.Store.
// Serialization uses a transaction-scoped advisory lock on the category-wide
// key, so the distance check and centroid update are atomic across every key
// of a category while different categories proceed in parallel. The lock
// cannot be narrower: an unknown-location complaint scans all of its
// category's clusters, so its transaction conflicts with every location key.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/railtriage/internal/cluster"
	"github.com/linnemanlabs/railtriage/internal/complaint"
	"github.com/linnemanlabs/railtriage/internal/features"
)

var tracer = otel.Tracer("github.com/linnemanlabs/railtriage/internal/cluster/pgstore")

//go:embed schema.sql
var schema string

// Store persists clusters in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	cfg  cluster.Config
}

// New applies the schema and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool, cfg cluster.Config) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool, cfg: cfg}, nil
}

const clusterColumns = `id, category, location_token, centroid, member_count,
	first_seen, last_seen, representative_id, active`

// MatchOrCreate implements cluster.Store.
func (s *Store) MatchOrCreate(ctx context.Context, key cluster.Key, vec features.Vector, at time.Time, complaintID string) (*cluster.Cluster, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.MatchOrCreate", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("cluster.key", key.String()),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	// Serialize the read-modify-write on the category-wide key: candidate
	// rows are shared across location keys via unknown-location matching,
	// so a per-location lock would let two transactions read-modify-write
	// the same row and lose a member_count increment. Released at
	// commit/rollback; other categories are unaffected.
	lockKey := cluster.Key{Category: key.Category, Location: features.UnknownLocation}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey.String()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("advisory lock: %w", err)
	}

	candidates, err := s.activeCandidates(ctx, tx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	var out *cluster.Cluster
	isNew := false

	if best, dist := cluster.Nearest(candidates, vec); best != nil && dist <= s.cfg.Threshold(key) {
		best.Absorb(vec, at, s.cfg.Alpha)
		if err := updateCluster(ctx, tx, best); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, false, err
		}
		out = best
	} else {
		out = &cluster.Cluster{
			ID:               ulid.Make().String(),
			Category:         key.Category,
			LocationToken:    key.Location,
			Centroid:         vec,
			MemberCount:      1,
			FirstSeen:        at,
			LastSeen:         at,
			RepresentativeID: complaintID,
			Active:           true,
		}
		if err := insertCluster(ctx, tx, out); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, false, err
		}
		isNew = true
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("commit: %w", err)
	}

	span.SetAttributes(attribute.Bool("cluster.is_new", isNew))
	return out, isNew, nil
}

func (s *Store) activeCandidates(ctx context.Context, tx pgx.Tx, key cluster.Key) ([]*cluster.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters WHERE active AND category = $1`
	args := []any{string(key.Category)}
	if key.Location != features.UnknownLocation {
		query += ` AND location_token = $2`
		args = append(args, key.Location)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []*cluster.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

// Get implements cluster.Store.
func (s *Store) Get(ctx context.Context, id string) (*cluster.Cluster, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	row := s.pool.QueryRow(ctx, `SELECT `+clusterColumns+` FROM clusters WHERE id = $1`, id)
	c, err := scanCluster(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	return c, true, nil
}

// Sweep implements cluster.Store.
func (s *Store) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Sweep", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE clusters SET active = FALSE WHERE active AND last_seen < $1`, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("sweep: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// History implements cluster.Store.
func (s *Store) History(ctx context.Context) ([]*cluster.Cluster, error) {
	ctx, span := tracer.Start(ctx, "pgstore.History", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+clusterColumns+` FROM clusters ORDER BY last_seen DESC`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []*cluster.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

func insertCluster(ctx context.Context, tx pgx.Tx, c *cluster.Cluster) error {
	centroidJSON, err := json.Marshal(c.Centroid)
	if err != nil {
		return fmt.Errorf("marshal centroid: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO clusters (id, category, location_token, centroid, member_count,
			first_seen, last_seen, representative_id, active)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, string(c.Category), c.LocationToken, centroidJSON, c.MemberCount,
		c.FirstSeen, c.LastSeen, c.RepresentativeID, c.Active,
	)
	if err != nil {
		return fmt.Errorf("insert cluster: %w", err)
	}
	return nil
}

func updateCluster(ctx context.Context, tx pgx.Tx, c *cluster.Cluster) error {
	centroidJSON, err := json.Marshal(c.Centroid)
	if err != nil {
		return fmt.Errorf("marshal centroid: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE clusters SET centroid = $2, member_count = $3, last_seen = $4 WHERE id = $1`,
		c.ID, centroidJSON, c.MemberCount, c.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("update cluster: %w", err)
	}
	return nil
}

func scanCluster(row pgx.Row) (*cluster.Cluster, error) {
	var (
		c            cluster.Cluster
		category     string
		centroidJSON []byte
	)
	err := row.Scan(
		&c.ID, &category, &c.LocationToken, &centroidJSON, &c.MemberCount,
		&c.FirstSeen, &c.LastSeen, &c.RepresentativeID, &c.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan cluster: %w", err)
	}
	c.Category = complaint.Category(category)
	if err := json.Unmarshal(centroidJSON, &c.Centroid); err != nil {
		return nil, fmt.Errorf("unmarshal centroid: %w", err)
	}
	return &c, nil
}
