package validation

import (
	"github.com/dusk-indust/stratigraph/internal/graph"
	"github.com/dusk-indust/stratigraph/internal/strata"
)

// directGraph is the entity-level temporal graph with contemporaries folded
// into one node: an edge runs from a later class to an earlier one and
// carries the IDs of the relations implying it. A temporal relation touching a
// Fait also orders the Fait's member US. Nodes are class representatives;
// members are expanded only when a path is labelled.
type directGraph struct {
	g       *graph.Digraph
	classes *graph.UnionFind
	comps   [][]string
	index   map[string]int
}

// buildDirectGraph builds the graph over the live relations of ix, without
// the relation exclude and with extra added when non-nil.
func buildDirectGraph(ix *index, extra *strata.Relation, exclude string) *directGraph {
	rels := make([]strata.Relation, 0, len(ix.order)+1)
	for _, r := range ix.live() {
		if r.ID == exclude || (extra != nil && r.ID == extra.ID) {
			continue
		}
		rels = append(rels, r)
	}
	if extra != nil {
		rels = append(rels, *extra)
	}

	classes := graph.NewUnionFind()
	for _, r := range rels {
		if r.IsContemporaneous && usable(ix, r) {
			classes.Union(r.Anterior().ID, r.Posterior().ID)
		}
	}

	g := graph.NewDigraph()
	for _, r := range rels {
		if r.IsContemporaneous || !usable(ix, r) {
			continue
		}
		for _, later := range ix.expand(r.Posterior()) {
			for _, earlier := range ix.expand(r.Anterior()) {
				g.AddEdge(classes.Find(later), classes.Find(earlier), r.ID)
			}
		}
	}

	comps := g.Components()
	return &directGraph{g: g, classes: classes, comps: comps, index: graph.ComponentIndex(comps)}
}

// usable filters out relations other validators already reject on their
// own, so they cannot masquerade as cycles.
func usable(ix *index, r strata.Relation) bool {
	return !r.IsSelfTargeting() && !violatesContainment(ix, r)
}

// expand returns the entity plus, for a Fait, its member US.
func (ix *index) expand(ref strata.EntityRef) []string {
	if ref.Kind != strata.KindFait {
		return []string{ref.ID}
	}
	return append([]string{ref.ID}, ix.members[ref.ID]...)
}

// node returns the graph node standing for entity id.
func (d *directGraph) node(id string) string {
	return d.classes.Find(id)
}

// steps labels a path of nodes with every member of each class.
func (d *directGraph) steps(ix *index, nodes []string) []strata.PathStep {
	return groupSteps(ix, nodes, d.classes.GroupMembers)
}

// inCycle reports whether entity id sits on a cycle.
func (d *directGraph) inCycle(id string) bool {
	_, ok := d.index[d.node(id)]
	return ok
}

// sameComponent reports whether nodes a and b share a cyclic component.
func (d *directGraph) sameComponent(a, b string) bool {
	ia, oka := d.index[a]
	ib, okb := d.index[b]
	return oka && okb && ia == ib
}

func (d *directGraph) within(n string) func(string) bool {
	ci, ok := d.index[n]
	return func(m string) bool {
		cm, okm := d.index[m]
		return ok && okm && cm == ci
	}
}

// cycleThrough returns a cycle that uses one of rel's edges, earliest node
// first, preferring the edge between rel's own endpoints.
func (d *directGraph) cycleThrough(rel strata.Relation) (graph.Path, bool) {
	later, earlier := d.node(rel.Posterior().ID), d.node(rel.Anterior().ID)
	candidates := []graph.TaggedEdge{{From: later, To: earlier}}
	candidates = append(candidates, d.g.EdgesTagged(rel.ID)...)
	for _, e := range candidates {
		if !d.g.HasEdge(e.From, e.To) || !d.sameComponent(e.From, e.To) {
			continue
		}
		// Walk back from the earlier end to the later end inside the
		// component; the walk runs later to earlier, so reverse it.
		p, ok := d.g.ShortestPath(e.To, e.From, d.within(e.From))
		if !ok {
			continue
		}
		if e.From == e.To {
			return graph.Path{Nodes: []string{e.From}, Tags: []string{rel.ID}}, true
		}
		return graph.Path{Nodes: reverse(p.Nodes), Tags: appendUnique(p.Tags, rel.ID)}, true
	}
	return graph.Path{}, false
}

// cycleAt returns some cycle through entity id, earliest node first.
func (d *directGraph) cycleAt(id string) (graph.Path, bool) {
	if !d.inCycle(id) {
		return graph.Path{}, false
	}
	n := d.node(id)
	p, ok := d.g.ShortestPath(n, n, d.within(n))
	if !ok {
		return graph.Path{}, false
	}
	return graph.Path{Nodes: reverse(p.Nodes), Tags: p.Tags}, true
}

func reverse(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}

func appendUnique(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}
