package validation

import (
	"fmt"
	"sort"

	"github.com/dusk-indust/stratigraph/internal/graph"
	"github.com/dusk-indust/stratigraph/internal/strata"
)

// check inspects one relation against an index and returns nil when it has
// no objection.
type check func(ix *index, rel strata.Relation) *strata.ValidationResult

type validator struct {
	name string
	run  check
}

// pipeline is the proposal-time validator chain, cheapest first. The
// group-based check runs after it inside the service because it needs the
// orchestrator.
var pipeline = []validator{
	{"self_target", checkSelfTarget},
	{"containment", checkContainment},
	{"consistency", checkConsistency},
	{"contradiction", checkContradiction},
	{"direct_cycle", checkDirectCycle},
}

func reject(kind strata.ParadoxKind, reason string, conflicting ...string) *strata.ValidationResult {
	r := strata.Reject(kind, reason)
	r.ConflictingRelations = conflicting
	return &r
}

func checkSelfTarget(ix *index, rel strata.Relation) *strata.ValidationResult {
	if !rel.IsSelfTargeting() {
		return nil
	}
	return reject(strata.ParadoxSelfTargeting,
		fmt.Sprintf("%s cannot be related to itself", ix.label(rel.Anterior().ID)))
}

// violatesContainment reports a relation between a Fait and one of its own US.
func violatesContainment(ix *index, rel strata.Relation) bool {
	a, p := ix.entity(rel.Anterior()), ix.entity(rel.Posterior())
	return contains(a, p) || contains(p, a)
}

func contains(fait, us strata.Entity) bool {
	return fait.Ref.Kind == strata.KindFait && us.Ref.Kind == strata.KindUS && us.ParentFaitID == fait.Ref.ID
}

func checkContainment(ix *index, rel strata.Relation) *strata.ValidationResult {
	if !violatesContainment(ix, rel) {
		return nil
	}
	a, p := ix.entity(rel.Anterior()), ix.entity(rel.Posterior())
	fait, us := a, p
	if p.Ref.Kind == strata.KindFait {
		fait, us = p, a
	}
	return reject(strata.ParadoxContainment,
		fmt.Sprintf("%s belongs to %s and cannot be related to it", us.Label(), fait.Label()))
}

func checkConsistency(ix *index, rel strata.Relation) *strata.ValidationResult {
	key, ord, ok := ix.pairOf(rel)
	if !ok {
		return nil
	}
	var conflicting []string
	for o, ids := range ix.pairs[key] {
		if o == ord {
			continue
		}
		for _, id := range ids {
			if id != rel.ID {
				conflicting = append(conflicting, id)
			}
		}
	}
	if len(conflicting) == 0 {
		return nil
	}
	sort.Strings(conflicting)
	return reject(strata.ParadoxConsistency,
		fmt.Sprintf("%s and %s are already related differently", ix.label(key.a), ix.label(key.b)),
		conflicting...)
}

func checkContradiction(ix *index, rel strata.Relation) *strata.ValidationResult {
	a, p := rel.Anterior().ID, rel.Posterior().ID
	for _, other := range ix.between(a, p) {
		if other.ID == rel.ID {
			continue
		}
		switch {
		case !rel.IsContemporaneous && !other.IsContemporaneous:
			if other.Anterior().ID == a {
				continue // duplicate
			}
			res := reject(strata.ParadoxCycle,
				fmt.Sprintf("%s is already recorded as later than %s", ix.label(a), ix.label(p)), other.ID)
			res.CyclePath = steps(ix, []string{p, a})
			return res
		case rel.IsContemporaneous && other.IsContemporaneous:
			continue // duplicate
		case !rel.IsContemporaneous:
			res := reject(strata.ParadoxSameGroup,
				fmt.Sprintf("%s and %s are already recorded as contemporaneous", ix.label(a), ix.label(p)), other.ID)
			return res
		default:
			earlier, later := other.Anterior().ID, other.Posterior().ID
			res := reject(strata.ParadoxWouldCreateCycle,
				fmt.Sprintf("%s is already recorded as earlier than %s", ix.label(earlier), ix.label(later)), other.ID)
			res.Code = strata.CodeExistingTemporalPath
			res.CyclePath = steps(ix, []string{earlier, later})
			return res
		}
	}
	return nil
}

func checkDirectCycle(ix *index, rel strata.Relation) *strata.ValidationResult {
	d := buildDirectGraph(ix, &rel, rel.ID)
	if rel.IsContemporaneous {
		return contemporaneousCycle(ix, d, rel)
	}
	p, ok := d.cycleThrough(rel)
	if !ok {
		return nil
	}
	return cycleResult(ix, d, rel, p)
}

// contemporaneousCycle blames rel for a cycle through its endpoints unless
// both endpoints were already on cycles without it.
func contemporaneousCycle(ix *index, d *directGraph, rel strata.Relation) *strata.ValidationResult {
	a, b := rel.Anterior().ID, rel.Posterior().ID
	if !d.inCycle(a) {
		return nil
	}
	before := buildDirectGraph(ix, nil, rel.ID)
	if before.inCycle(a) && before.inCycle(b) {
		return nil
	}
	for _, ends := range [][2]string{{a, b}, {b, a}} {
		// Edges run later to earlier, so the walk starts at the later end.
		if p, ok := before.g.ShortestPath(before.node(ends[0]), before.node(ends[1]), nil); ok {
			path := before.steps(ix, reverse(p.Nodes))
			res := reject(strata.ParadoxWouldCreateCycle,
				fmt.Sprintf("%s and %s are already ordered: %s", ix.label(a), ix.label(b), strata.FormatPath(path)),
				p.Tags...)
			res.Code = strata.CodeExistingTemporalPath
			res.CyclePath = path
			return res
		}
	}
	p, ok := d.cycleAt(a)
	if !ok {
		return nil
	}
	res := reject(strata.ParadoxWouldCreateCycle,
		fmt.Sprintf("making %s and %s contemporaneous closes the cycle %s",
			ix.label(a), ix.label(b), strata.FormatPath(d.steps(ix, p.Nodes))),
		without(p.Tags, rel.ID)...)
	res.Code = strata.CodeWouldCreateCycle
	res.CyclePath = d.steps(ix, p.Nodes)
	return res
}

func cycleResult(ix *index, d *directGraph, rel strata.Relation, p graph.Path) *strata.ValidationResult {
	others := without(p.Tags, rel.ID)
	if len(others) == 0 {
		// Only rel's own copies form the loop: its endpoints are contemporaneous.
		return reject(strata.ParadoxSameGroup,
			fmt.Sprintf("%s and %s are contemporaneous and cannot be ordered",
				ix.label(rel.Anterior().ID), ix.label(rel.Posterior().ID)))
	}
	res := reject(strata.ParadoxCycle,
		fmt.Sprintf("this relation closes the cycle %s", strata.FormatPath(d.steps(ix, p.Nodes))),
		others...)
	res.CyclePath = d.steps(ix, p.Nodes)
	return res
}

// steps labels a list of entity IDs.
func steps(ix *index, ids []string) []strata.PathStep {
	out := make([]strata.PathStep, len(ids))
	for i, id := range ids {
		out[i] = strata.PathStep{IDs: []string{id}, Tags: []string{ix.label(id)}}
	}
	return out
}

// groupSteps labels a list of group representatives with their members.
func groupSteps(ix *index, groups []string, members func(string) []string) []strata.PathStep {
	out := make([]strata.PathStep, len(groups))
	for i, g := range groups {
		ids := members(g)
		tags := make([]string, len(ids))
		for j, id := range ids {
			tags[j] = ix.label(id)
		}
		out[i] = strata.PathStep{IDs: ids, Tags: tags}
	}
	return out
}
