package orchestrator

import (
	"testing"

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

func TestOrchestrator_TemporalCycleRejected(t *testing.T) {
	o := New()
	require.True(t, o.AddTemporalRelation(before("r1", "A", "B")).OK)
	require.True(t, o.AddTemporalRelation(before("r2", "B", "C")).OK)

	d := o.AddTemporalRelation(before("r3", "C", "A"))
	assert.False(t, d.OK)
	assert.Equal(t, strata.ParadoxCycle, d.Kind)
	assert.Equal(t, []string{"A", "B", "C"}, d.Path)
	assert.ElementsMatch(t, []string{"r1", "r2"}, d.Relations)

	// The rejected edge was not committed.
	assert.True(t, o.ValidateTemporalRelation("A", "C").OK)
}

func TestOrchestrator_SameGroupRejected(t *testing.T) {
	o := New()
	require.True(t, o.AddContemporaneityRelation(same("r1", "A", "B")).OK)

	d := o.ValidateTemporalRelation("A", "B")
	assert.False(t, d.OK)
	assert.Equal(t, strata.ParadoxSameGroup, d.Kind)
	assert.Equal(t, []string{"A", "B"}, d.Members)
}

func TestOrchestrator_ContemporaneityAgainstExistingPath(t *testing.T) {
	o := New()
	require.True(t, o.AddTemporalRelation(before("r1", "A", "B")).OK)
	require.True(t, o.AddTemporalRelation(before("r2", "B", "C")).OK)

	d := o.ValidateContemporaneityRelation("A", "C")
	assert.False(t, d.OK)
	assert.Equal(t, strata.ParadoxWouldCreateCycle, d.Kind)
	assert.Equal(t, strata.CodeExistingTemporalPath, d.Code)
	assert.Equal(t, []string{"A", "B", "C"}, d.Path)
}

func TestOrchestrator_MergeRedirectsEdges(t *testing.T) {
	o := New()
	require.True(t, o.AddTemporalRelation(before("r1", "A", "B")).OK)
	require.True(t, o.AddTemporalRelation(before("r2", "X", "Y")).OK)
	require.True(t, o.AddContemporaneityRelation(same("r3", "B", "X")).OK)

	// A < B = X < Y, so Y < A closes a cycle through the merged group.
	d := o.ValidateTemporalRelation("Y", "A")
	assert.False(t, d.OK)
	assert.Equal(t, strata.ParadoxCycle, d.Kind)
	assert.Len(t, d.Path, 3)
	assert.Equal(t, o.Group("B"), o.Group("X"))
}

func TestOrchestrator_RemoveTemporal(t *testing.T) {
	o := New()
	require.True(t, o.AddTemporalRelation(before("r1", "A", "B")).OK)
	require.True(t, o.AddTemporalRelation(before("r2", "B", "C")).OK)
	require.False(t, o.ValidateTemporalRelation("C", "A").OK)

	o.RemoveRelation("r2")
	assert.True(t, o.ValidateTemporalRelation("C", "A").OK)
}

func TestOrchestrator_RemoveContemporaneitySplitsGroup(t *testing.T) {
	o := New()
	require.True(t, o.AddContemporaneityRelation(same("r1", "A", "B")).OK)
	require.True(t, o.AddContemporaneityRelation(same("r2", "B", "C")).OK)
	require.True(t, o.AddTemporalRelation(before("r3", "C", "D")).OK)
	require.True(t, o.Connected("A", "C"))

	o.RemoveRelation("r2")
	assert.True(t, o.Connected("A", "B"))
	assert.False(t, o.Connected("A", "C"))
	assert.True(t, o.ValidateTemporalRelation("A", "C").OK)

	// C < D survives the rebuild.
	assert.False(t, o.ValidateTemporalRelation("D", "C").OK)
}

func TestOrchestrator_RebuildTwoPhase(t *testing.T) {
	o := New()
	// Order matters for naive folding: the temporal edge arrives before the
	// contemporaneity that merges its endpoints' groups.
	o.Rebuild([]strata.Relation{
		before("r1", "A", "C"),
		same("r2", "B", "C"),
		before("r3", "A", "A2"),
		same("r4", "A", "A2"),
	})

	snap := o.Snapshot()
	assert.Equal(t, o.Group("B"), o.Group("C"))
	require.Len(t, snap.Edges, 1, "A<A2 falls inside one group and adds no edge")
	assert.Equal(t, o.Group("C"), snap.Edges[0].From)
	assert.Equal(t, o.Group("A"), snap.Edges[0].To)
	assert.Empty(t, snap.Cycles)
}

func TestOrchestrator_SnapshotReportsLoadedCycles(t *testing.T) {
	o := New()
	o.Apply(before("r1", "A", "B"))
	o.Apply(before("r2", "B", "A"))
	snap := o.Snapshot()
	require.Len(t, snap.Cycles, 1)
	assert.ElementsMatch(t, []string{"r1", "r2"}, snap.Cycles[0].Tags)
}

func TestOrchestrator_MergePreviewLeavesGroupsAlone(t *testing.T) {
	o := New()
	require.True(t, o.AddContemporaneityRelation(same("r1", "A", "B")).OK)
	require.True(t, o.AddTemporalRelation(before("r2", "B", "C")).OK)
	require.True(t, o.AddTemporalRelation(before("r3", "C", "D")).OK)

	d := o.ValidateContemporaneityRelation("A", "D")
	assert.False(t, d.OK)
	assert.Equal(t, strata.CodeExistingTemporalPath, d.Code)
	assert.Equal(t, []string{"A", "B", "D"}, d.Merged)
	require.Len(t, d.Path, 3)
	assert.Equal(t, o.Group("A"), d.Path[0])
	assert.Equal(t, []string{"C", "D"}, d.Path[1:])

	assert.False(t, o.Connected("A", "D"), "a rejected merge is only previewed")
	assert.Equal(t, []string{"D"}, o.GroupMembers("D"))
}

func TestOrchestrator_ContemporaneityWithinGroup(t *testing.T) {
	o := New()
	require.True(t, o.AddContemporaneityRelation(same("r1", "A", "B")).OK)
	require.True(t, o.AddContemporaneityRelation(same("r2", "B", "C")).OK)

	d := o.ValidateContemporaneityRelation("A", "C")
	assert.True(t, d.OK)
	assert.Empty(t, d.Merged)
}

func TestOrchestrator_RebuildIsIdempotent(t *testing.T) {
	rels := []strata.Relation{
		before("r1", "A", "B"),
		same("r2", "B", "C"),
		before("r3", "C", "D"),
		same("r4", "E", "D"),
		before("r5", "A", "E"),
		before("r6", "F", "A"),
	}
	o := New()
	o.Rebuild(rels)
	first := o.Snapshot()

	o.Rebuild(rels)
	second := o.Snapshot()

	assert.Equal(t, first.Groups, second.Groups)
	assert.Equal(t, first.Edges, second.Edges)
	assert.Empty(t, second.Cycles)

	fresh := New()
	fresh.Rebuild(rels)
	assert.Equal(t, first.Edges, fresh.Snapshot().Edges)
}
