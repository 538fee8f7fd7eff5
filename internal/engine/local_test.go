package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

func before(id, anterior, posterior string) strata.Relation {
	return strata.Relation{ID: id, AnteriorUsID: anterior, PosteriorUsID: posterior, Live: true}
}

func same(id, a, b string) strata.Relation {
	return strata.Relation{ID: id, AnteriorUsID: a, PosteriorUsID: b, IsContemporaneous: true, Live: true}
}

func newLocal(t *testing.T, rels ...strata.Relation) *LocalEngine {
	t.Helper()
	e := NewLocalEngine()
	require.NoError(t, e.Init(context.Background(), nil, rels))
	return e
}

func TestLocalEngine_NotInitialized(t *testing.T) {
	_, err := NewLocalEngine().ValidateRelation(context.Background(), before("r", "a", "b"))
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestLocalEngine_ChainIsConsistent(t *testing.T) {
	e := newLocal(t, before("r1", "A", "B"), before("r2", "B", "C"))
	v, err := e.ValidateRelation(context.Background(), before("r3", "A", "C"))
	require.NoError(t, err)
	assert.True(t, v.OK)
	assert.False(t, v.Truncated)
}

func TestLocalEngine_Cycle(t *testing.T) {
	e := newLocal(t, before("r1", "A", "B"), before("r2", "B", "C"))
	v, err := e.ValidateRelation(context.Background(), before("r3", "C", "A"))
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Equal(t, strata.ParadoxCycle, v.Reason)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, v.Path)
	assert.ElementsMatch(t, []string{"r1", "r2", "r3"}, v.Relations)
}

func TestLocalEngine_SelfTargeting(t *testing.T) {
	e := newLocal(t)
	v, err := e.ValidateRelation(context.Background(), before("r", "A", "A"))
	require.NoError(t, err)
	assert.Equal(t, strata.ParadoxSelfTargeting, v.Reason)
	assert.False(t, v.OK)
}

func TestLocalEngine_TemporalInsideGroup(t *testing.T) {
	e := newLocal(t, same("r1", "A", "B"))
	v, err := e.ValidateRelation(context.Background(), before("r2", "A", "B"))
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Equal(t, strata.ParadoxSameGroup, v.Reason)
}

func TestLocalEngine_ContemporaneityAcrossChain(t *testing.T) {
	e := newLocal(t, before("r1", "A", "B"), before("r2", "B", "C"))
	v, err := e.ValidateRelation(context.Background(), same("r3", "A", "C"))
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Equal(t, strata.ParadoxWouldCreateCycle, v.Reason)
}

func TestLocalEngine_IgnoresLoadedCopyOfRelation(t *testing.T) {
	// Re-validating a stored relation must not trip over itself.
	e := newLocal(t, before("r1", "A", "B"), before("r2", "B", "C"))
	v, err := e.ValidateRelation(context.Background(), before("r2", "B", "C"))
	require.NoError(t, err)
	assert.True(t, v.OK)
}

func TestLocalEngine_UnrelatedBranchesIgnored(t *testing.T) {
	// X is earlier than B and later than A's sibling D; no contradiction.
	e := newLocal(t,
		before("r1", "A", "B"),
		before("r2", "X", "B"),
		before("r3", "D", "X"),
	)
	v, err := e.ValidateRelation(context.Background(), before("r4", "A", "D"))
	require.NoError(t, err)
	assert.True(t, v.OK)
}

func TestLocalEngine_DeadRelationsSkipped(t *testing.T) {
	dead := before("r2", "B", "A")
	dead.Live = false
	e := newLocal(t, before("r1", "A", "B"), dead)
	v, err := e.ValidateRelation(context.Background(), before("r3", "A", "B"))
	require.NoError(t, err)
	assert.True(t, v.OK)
}

func TestLocalEngine_NodeBudgetTruncates(t *testing.T) {
	var rels []strata.Relation
	for i := 0; i < 50; i++ {
		rels = append(rels, before(fmt.Sprintf("r%d", i), fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", i+1)))
	}
	e := NewLocalEngine(WithTiers([]Tier{{Budget: Budget{MaxDepth: 1000, MaxNodes: 10, Timeout: time.Second}}}))
	require.NoError(t, e.Init(context.Background(), nil, rels))

	v, err := e.ValidateRelation(context.Background(), before("candidate", "n0", "z"))
	require.NoError(t, err)
	assert.True(t, v.OK, "budget exhaustion is not fatal")
	assert.True(t, v.Truncated)
	assert.Equal(t, strata.ParadoxExplorationTooDeep, v.Reason)
}

func TestLocalEngine_DepthBudgetTruncates(t *testing.T) {
	var rels []strata.Relation
	for i := 0; i < 20; i++ {
		rels = append(rels, before(fmt.Sprintf("r%d", i), fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", i+1)))
	}
	e := NewLocalEngine(WithTiers([]Tier{{Budget: Budget{MaxDepth: 5, MaxNodes: 1000, Timeout: time.Second}}}))
	require.NoError(t, e.Init(context.Background(), nil, rels))

	v, err := e.ValidateRelation(context.Background(), before("candidate", "n0", "z"))
	require.NoError(t, err)
	assert.True(t, v.Truncated)
}

func TestLocalEngine_ContextCancelled(t *testing.T) {
	e := newLocal(t, before("r1", "A", "B"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.ValidateRelation(ctx, before("r2", "B", "C"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestBudgetFor(t *testing.T) {
	assert.Equal(t, 50, BudgetFor(nil, 10).MaxDepth)
	assert.Equal(t, 50, BudgetFor(DefaultTiers, 500).MaxDepth)
	assert.Equal(t, 100, BudgetFor(DefaultTiers, 501).MaxDepth)
	assert.Equal(t, 500, BudgetFor(DefaultTiers, 2000).MaxNodes)
	assert.Equal(t, 10*time.Second, BudgetFor(DefaultTiers, 2001).Timeout)
}
