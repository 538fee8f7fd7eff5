package graph

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

// storeSuite exercises the Store contract against any backend.
func storeSuite(t *testing.T, open func(t *testing.T) Store) {
	t.Run("entities", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.PutFait(ctx, strata.Fait{ID: "f1", Tag: "F1", Live: true}))
		require.NoError(t, s.PutUS(ctx, strata.US{ID: "u1", Tag: "1001", ParentFaitID: "f1", Live: true}))
		require.NoError(t, s.PutUS(ctx, strata.US{ID: "u2", Tag: "1002", ParentFaitID: "f1", Live: true}))
		require.NoError(t, s.PutUS(ctx, strata.US{ID: "u3", Tag: "1003", Live: true}))

		f, err := s.GetFait(ctx, "f1")
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, "F1", f.Tag)

		us, err := s.GetUS(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, us)
		assert.Equal(t, "f1", us.ParentFaitID)

		missing, err := s.GetUS(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)

		members, err := s.FaitMembers(ctx, "f1")
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.Equal(t, "u1", members[0].ID)
		assert.Equal(t, "u2", members[1].ID)

		// Moving a US out of its Fait updates membership.
		require.NoError(t, s.PutUS(ctx, strata.US{ID: "u2", Tag: "1002", Live: true}))
		members, err = s.FaitMembers(ctx, "f1")
		require.NoError(t, err)
		assert.Len(t, members, 1)
	})

	t.Run("relations keep insertion order", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		ids := []string{"r-c", "r-a", "r-b"}
		for _, id := range ids {
			require.NoError(t, s.PutRelation(ctx, strata.Relation{ID: id, AnteriorUsID: "u1", PosteriorUsID: "u2", Live: true}))
		}
		// Upsert keeps the position.
		require.NoError(t, s.PutRelation(ctx, strata.Relation{ID: "r-c", AnteriorUsID: "u1", PosteriorFaitID: "f1", Live: true, RelationTypeID: 3}))

		rels, err := s.Relations(ctx)
		require.NoError(t, err)
		require.Len(t, rels, 3)
		for i, id := range ids {
			assert.Equal(t, id, rels[i].ID)
		}
		assert.Equal(t, "f1", rels[0].PosteriorFaitID)
		assert.Equal(t, 3, rels[0].RelationTypeID)
	})

	t.Run("soft delete", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.PutRelation(ctx, strata.Relation{ID: "r1", AnteriorUsID: "a", PosteriorUsID: "b", IsContemporaneous: true, Live: true}))
		require.NoError(t, s.SoftDeleteRelation(ctx, "r1"))

		r, err := s.GetRelation(ctx, "r1")
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.False(t, r.Live)
		assert.True(t, r.IsContemporaneous)

		require.ErrorIs(t, s.SoftDeleteRelation(ctx, "ghost"), ErrNotFound)

		st, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, st.RelationCount)
		assert.Equal(t, 0, st.LiveRelationCount)
	})

	t.Run("changes are published", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.PutRelation(ctx, strata.Relation{ID: "r1", AnteriorUsID: "a", PosteriorUsID: "b", Live: true}))
		select {
		case c := <-s.Changes():
			assert.Equal(t, Change{Kind: ChangeRelation, ID: "r1"}, c)
		case <-time.After(time.Second):
			t.Fatal("no change notification")
		}
	})

	t.Run("import and dataset", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		d := &Dataset{
			Faits:     []strata.Fait{{ID: "f1", Tag: "F1", Live: true}},
			US:        []strata.US{{ID: "u1", Tag: "1", ParentFaitID: "f1", Live: true}, {ID: "u2", Tag: "2", Live: true}},
			Relations: []strata.Relation{{ID: "r1", AnteriorUsID: "u1", PosteriorUsID: "u2", Live: true}},
		}
		require.NoError(t, Import(ctx, s, d))
		got, err := s.Dataset(ctx)
		require.NoError(t, err)
		assert.Equal(t, d, got)
	})
}

func TestMemStore(t *testing.T) {
	storeSuite(t, func(t *testing.T) Store {
		return NewMemStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	storeSuite(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "site.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		require.NoError(t, s.InitSchema(context.Background()))
		return s
	})
}

func TestSQLiteStore_InitSchemaIdempotent(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.InitSchema(ctx))
	require.NoError(t, s.InitSchema(ctx))
}

func TestMemStore_ReplaceEmitsReload(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.PutRelation(context.Background(), strata.Relation{ID: "old", AnteriorUsID: "a", PosteriorUsID: "b", Live: true}))
	<-s.Changes()

	s.Replace(&Dataset{Relations: []strata.Relation{{ID: "new", AnteriorUsID: "x", PosteriorUsID: "y", Live: true}}})
	assert.Equal(t, Change{Kind: ChangeReload}, <-s.Changes())

	rels, err := s.Relations(context.Background())
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "new", rels[0].ID)
}
