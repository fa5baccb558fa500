package triage

import (
	"context"

	"github.com/linnemanlabs/go-core/xerrors"
)

// ErrStorageUnavailable marks a fatal persistence failure. Intake is refused
// rather than acknowledged without a durable record.
var ErrStorageUnavailable = xerrors.New("triage: storage unavailable")

// Store is the persistence interface for triaged complaints.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, bool, error)

	// List returns records newest first. A non-positive limit returns all.
	List(ctx context.Context, limit int) ([]*Record, error)
}
