package graph

import (
	"context"
	"io"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

// Store is the interface for the stratigraphic record backend.
// Implementations: MemStore (tests, YAML datasets), SQLiteStore and
// KuzuStore (persistent). All record access goes through this interface.
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations. Puts upsert by ID.
	PutFait(ctx context.Context, f strata.Fait) error
	PutUS(ctx context.Context, us strata.US) error
	PutRelation(ctx context.Context, rel strata.Relation) error
	SoftDeleteRelation(ctx context.Context, id string) error

	// Read operations. Lookups return nil, nil when the record is missing.
	GetFait(ctx context.Context, id string) (*strata.Fait, error)
	GetUS(ctx context.Context, id string) (*strata.US, error)
	GetRelation(ctx context.Context, id string) (*strata.Relation, error)
	FaitMembers(ctx context.Context, faitID string) ([]strata.US, error)

	// Relations returns every relation record, live or not, in insertion order.
	Relations(ctx context.Context) ([]strata.Relation, error)

	// Dataset returns the whole site.
	Dataset(ctx context.Context) (*Dataset, error)

	// Stats.
	Stats(ctx context.Context) (*Stats, error)

	// Changes delivers a notification after every successful write. Slow
	// consumers lose notifications rather than block writers.
	Changes() <-chan Change
}

// Import writes every record of d into s, entities first.
func Import(ctx context.Context, s Store, d *Dataset) error {
	for _, f := range d.Faits {
		if err := s.PutFait(ctx, f); err != nil {
			return err
		}
	}
	for _, us := range d.US {
		if err := s.PutUS(ctx, us); err != nil {
			return err
		}
	}
	for _, r := range d.Relations {
		if err := s.PutRelation(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
