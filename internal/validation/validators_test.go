package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

func propose(t *testing.T, svc *Service, rel strata.Relation) strata.ValidationResult {
	t.Helper()
	res, err := svc.ValidateNew(context.Background(), rel)
	require.NoError(t, err)
	return res
}

func TestValidateNew_ClosingCycle(t *testing.T) {
	s := newSite(t)
	s.us("", "A", "B", "C")
	s.load(s.before("r1", "A", "B"), s.before("r2", "B", "C"))
	svc := s.service()

	res := propose(t, svc, s.before("r3", "C", "A"))
	assert.False(t, res.OK)
	assert.Equal(t, strata.ParadoxCycle, res.ParadoxType)
	assert.Equal(t, []string{"US A", "US B", "US C"}, pathLabels(res.CyclePath))
	assert.ElementsMatch(t, []string{"r1", "r2"}, res.ConflictingRelations)
	assert.Contains(t, res.Reason, "US A -> US B -> US C")
}

func TestValidateNew_SameGroup(t *testing.T) {
	s := newSite(t)
	s.us("", "A", "B")
	s.load(s.same("r1", "A", "B"))
	svc := s.service()

	res := propose(t, svc, s.before("r2", "A", "B"))
	assert.False(t, res.OK)
	assert.Equal(t, strata.ParadoxSameGroup, res.ParadoxType)
	assert.Equal(t, []string{"r1"}, res.ConflictingRelations)
}

func TestValidateNew_Containment(t *testing.T) {
	s := newSite(t)
	s.fait("F")
	s.us("F", "U")
	svc := s.service()

	for _, rel := range []strata.Relation{s.before("r1", "F", "U"), s.before("r2", "U", "F"), s.same("r3", "U", "F")} {
		res := propose(t, svc, rel)
		assert.False(t, res.OK, rel.ID)
		assert.Equal(t, strata.ParadoxContainment, res.ParadoxType, rel.ID)
		assert.Equal(t, "US U belongs to Fait F and cannot be related to it", res.Reason)
	}
}

func TestValidateNew_Consistency(t *testing.T) {
	s := newSite(t)
	s.fait("F1", "F2")
	s.us("F1", "U1", "U3")
	s.us("F2", "U2")
	s.load(s.before("r1", "U1", "U2"))
	svc := s.service()

	res := propose(t, svc, s.before("r2", "U2", "U3"))
	assert.False(t, res.OK)
	assert.Equal(t, strata.ParadoxConsistency, res.ParadoxType)
	assert.Equal(t, []string{"r1"}, res.ConflictingRelations)

	// The same ordering between the two Faits is fine.
	assert.True(t, propose(t, svc, s.before("r3", "U3", "U2")).OK)

	res = propose(t, svc, s.same("r4", "U3", "U2"))
	assert.Equal(t, strata.ParadoxConsistency, res.ParadoxType)
}

func TestValidateNew_UnconnectedAccepted(t *testing.T) {
	s := newSite(t)
	s.us("", "A", "B", "X", "Y")
	s.load(s.before("r1", "A", "B"))
	svc := s.service()

	assert.True(t, propose(t, svc, s.before("r2", "X", "Y")).OK)
	assert.True(t, propose(t, svc, s.same("r3", "X", "Y")).OK)
}

func TestValidateNew_MergeAlongExistingPath(t *testing.T) {
	s := newSite(t)
	s.us("", "A", "B", "C")
	s.load(s.before("r1", "A", "B"), s.before("r2", "B", "C"))
	svc := s.service()

	res := propose(t, svc, s.same("r3", "A", "C"))
	assert.False(t, res.OK)
	assert.Equal(t, strata.ParadoxWouldCreateCycle, res.ParadoxType)
	assert.Equal(t, strata.CodeExistingTemporalPath, res.Code)
	assert.Equal(t, []string{"US A", "US B", "US C"}, pathLabels(res.CyclePath))
	assert.ElementsMatch(t, []string{"r1", "r2"}, res.ConflictingRelations)
}

func TestValidateNew_SelfTargeting(t *testing.T) {
	s := newSite(t)
	s.us("", "A")
	svc := s.service()

	for _, rel := range []strata.Relation{s.before("r1", "A", "A"), s.same("r2", "A", "A")} {
		res := propose(t, svc, rel)
		assert.False(t, res.OK)
		assert.Equal(t, strata.ParadoxSelfTargeting, res.ParadoxType)
	}
}

func TestValidateNew_DirectContradiction(t *testing.T) {
	s := newSite(t)
	s.us("", "A", "B")
	s.load(s.before("r1", "A", "B"))
	svc := s.service()

	t.Run("inverse", func(t *testing.T) {
		res := propose(t, svc, s.before("r2", "B", "A"))
		assert.Equal(t, strata.ParadoxCycle, res.ParadoxType)
		assert.Equal(t, []string{"US A", "US B"}, pathLabels(res.CyclePath))
		assert.Equal(t, []string{"r1"}, res.ConflictingRelations)
	})
	t.Run("contemporaneous against ordering", func(t *testing.T) {
		res := propose(t, svc, s.same("r2", "B", "A"))
		assert.Equal(t, strata.ParadoxWouldCreateCycle, res.ParadoxType)
		assert.Equal(t, strata.CodeExistingTemporalPath, res.Code)
		assert.Equal(t, []string{"US A", "US B"}, pathLabels(res.CyclePath))
	})
	t.Run("duplicate", func(t *testing.T) {
		assert.True(t, propose(t, svc, s.before("r2", "A", "B")).OK)
	})
	t.Run("revalidating a stored relation", func(t *testing.T) {
		assert.True(t, propose(t, svc, s.before("r1", "A", "B")).OK)
	})
}

func TestValidateNew_FaitOrdersItsMembers(t *testing.T) {
	s := newSite(t)
	s.fait("F")
	s.us("F", "U1", "U2")
	s.us("", "X")
	s.load(s.before("r1", "F", "X"))
	svc := s.service()

	res := propose(t, svc, s.before("r2", "X", "U1"))
	assert.False(t, res.OK)
	assert.Equal(t, strata.ParadoxCycle, res.ParadoxType)
	assert.Equal(t, []string{"r1"}, res.ConflictingRelations)
}

func TestValidateNew_CycleThroughContemporaries(t *testing.T) {
	s := newSite(t)
	s.us("", "A", "B", "C")
	s.load(s.same("r1", "A", "B"), s.before("r2", "B", "C"))
	svc := s.service()

	res := propose(t, svc, s.before("r3", "C", "A"))
	assert.False(t, res.OK)
	assert.Equal(t, strata.ParadoxCycle, res.ParadoxType)
	assert.Contains(t, res.ConflictingRelations, "r2")
}

func TestValidateNew_MalformedRelation(t *testing.T) {
	s := newSite(t)
	svc := s.service()
	_, err := svc.ValidateNew(context.Background(), strata.Relation{ID: "r1", AnteriorUsID: "A"})
	require.ErrorIs(t, err, strata.ErrMissingEndpoint)
}

func TestAdvancedCheck(t *testing.T) {
	s := newSite(t)
	s.us("", "A", "B", "C", "D")
	s.load(s.before("r1", "A", "B"), s.before("r2", "B", "C"), s.same("r4", "C", "D"))
	svc := s.service()
	ix, gen, err := svc.snapshot(context.Background())
	require.NoError(t, err)

	t.Run("cycle through groups", func(t *testing.T) {
		res := svc.advanced(ix, gen, s.before("r5", "D", "A"))
		require.NotNil(t, res)
		assert.Equal(t, strata.ParadoxCycle, res.ParadoxType)
		assert.Equal(t, []string{"US A", "US B", "US C = US D"}, pathLabels(res.CyclePath))
		assert.ElementsMatch(t, []string{"r1", "r2"}, res.ConflictingRelations)
	})
	t.Run("same group", func(t *testing.T) {
		res := svc.advanced(ix, gen, s.before("r5", "C", "D"))
		require.NotNil(t, res)
		assert.Equal(t, strata.ParadoxSameGroup, res.ParadoxType)
		assert.Equal(t, []string{"US C = US D"}, pathLabels(res.CyclePath))
	})
	t.Run("merge along path", func(t *testing.T) {
		res := svc.advanced(ix, gen, s.same("r5", "A", "D"))
		require.NotNil(t, res)
		assert.Equal(t, strata.ParadoxWouldCreateCycle, res.ParadoxType)
		assert.Equal(t, strata.CodeExistingTemporalPath, res.Code)
	})
	t.Run("accepted", func(t *testing.T) {
		assert.Nil(t, svc.advanced(ix, gen, s.before("r5", "A", "D")))
	})
}
