package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/stratigraph/internal/graph"
	"github.com/dusk-indust/stratigraph/internal/strata"
)

// site builds a small excavation in a MemStore. Entity IDs double as tags so
// labels read "US A" or "Fait F".
type site struct {
	t     *testing.T
	store *graph.MemStore
	kinds map[string]strata.EntityKind
}

func newSite(t *testing.T) *site {
	t.Helper()
	return &site{t: t, store: graph.NewMemStore(), kinds: make(map[string]strata.EntityKind)}
}

func (s *site) fait(ids ...string) {
	s.t.Helper()
	for _, id := range ids {
		require.NoError(s.t, s.store.PutFait(context.Background(), strata.Fait{ID: id, Tag: id, Live: true}))
		s.kinds[id] = strata.KindFait
	}
}

func (s *site) us(fait string, ids ...string) {
	s.t.Helper()
	for _, id := range ids {
		require.NoError(s.t, s.store.PutUS(context.Background(), strata.US{ID: id, Tag: id, ParentFaitID: fait, Live: true}))
		s.kinds[id] = strata.KindUS
	}
}

func (s *site) rel(id, anterior, posterior string, contemporaneous bool) strata.Relation {
	r := strata.Relation{ID: id, IsContemporaneous: contemporaneous, Live: true}
	if s.kinds[anterior] == strata.KindFait {
		r.AnteriorFaitID = anterior
	} else {
		r.AnteriorUsID = anterior
	}
	if s.kinds[posterior] == strata.KindFait {
		r.PosteriorFaitID = posterior
	} else {
		r.PosteriorUsID = posterior
	}
	return r
}

// before says anterior is earlier than posterior.
func (s *site) before(id, anterior, posterior string) strata.Relation {
	return s.rel(id, anterior, posterior, false)
}

func (s *site) same(id, a, b string) strata.Relation {
	return s.rel(id, a, b, true)
}

// load writes relations straight to the store, bypassing validation.
func (s *site) load(rels ...strata.Relation) {
	s.t.Helper()
	for _, r := range rels {
		require.NoError(s.t, s.store.PutRelation(context.Background(), r))
	}
}

func (s *site) service(opts ...Option) *Service {
	s.t.Helper()
	svc := New(s.store, opts...)
	require.NoError(s.t, svc.Rebuild(context.Background()))
	s.t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func pathLabels(path []strata.PathStep) []string {
	out := make([]string, len(path))
	for i, p := range path {
		out[i] = p.Label()
	}
	return out
}
