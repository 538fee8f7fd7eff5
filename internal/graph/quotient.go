package graph

import (
	"sort"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

// QuotientGraph is the temporal graph over contemporaneity groups. An edge
// X->Y means group X is later than group Y and carries the IDs of every
// relation supporting it. Self-loops are never stored.
type QuotientGraph struct {
	g *Digraph

	// Transitive closure caches, dropped on any topology change.
	succ map[string]map[string]struct{}
	pred map[string]map[string]struct{}
}

// NewQuotientGraph returns an empty graph.
func NewQuotientGraph() *QuotientGraph {
	q := &QuotientGraph{g: NewDigraph()}
	q.invalidate()
	return q
}

func (q *QuotientGraph) invalidate() {
	q.succ = make(map[string]map[string]struct{})
	q.pred = make(map[string]map[string]struct{})
}

// AddNode registers a group.
func (q *QuotientGraph) AddNode(group string) {
	if !q.g.HasNode(group) {
		q.g.AddNode(group)
		q.invalidate()
	}
}

// AddEdge records relation relID on from->to. It refuses self-loops and is
// idempotent for a repeated (from, to, relID).
func (q *QuotientGraph) AddEdge(from, to, relID string) bool {
	if from == to {
		return false
	}
	if q.g.AddEdge(from, to, relID) {
		q.invalidate()
	}
	return true
}

// RemoveRelationFromEdge drops relID from from->to, deleting the edge when no
// relation supports it any more.
func (q *QuotientGraph) RemoveRelationFromEdge(from, to, relID string) {
	if q.g.RemoveTag(from, to, relID) {
		q.invalidate()
	}
}

// HasEdge reports whether from->to exists.
func (q *QuotientGraph) HasEdge(from, to string) bool {
	return q.g.HasEdge(from, to)
}

// EdgeRelations returns the relations supporting from->to.
func (q *QuotientGraph) EdgeRelations(from, to string) []string {
	return q.g.Tags(from, to)
}

// Nodes returns every group.
func (q *QuotientGraph) Nodes() []string {
	return q.g.Nodes()
}

// Edges returns every edge with its supporting relations.
func (q *QuotientGraph) Edges() []TaggedEdge {
	return q.g.Edges()
}

// FindPath returns a shortest path from -> to. A group trivially reaches
// itself.
func (q *QuotientGraph) FindPath(from, to string) (Path, bool) {
	if from == to {
		return Path{Nodes: []string{from}}, true
	}
	return q.g.ShortestPath(from, to, nil)
}

// HasPath reports whether to is reachable from from.
func (q *QuotientGraph) HasPath(from, to string) bool {
	if from == to {
		return true
	}
	_, ok := q.successors(from)[to]
	return ok
}

// WouldCreateCycle reports whether adding from->to would close a cycle, that
// is whether to already reaches from. The path returned runs to -> from.
func (q *QuotientGraph) WouldCreateCycle(from, to string) (Path, bool) {
	return q.FindPath(to, from)
}

// MergeNodes folds old into target: edges are redirected, support sets are
// unioned and edges that would become self-loops are dropped.
func (q *QuotientGraph) MergeNodes(old, target string) {
	if old == target || !q.g.HasNode(old) {
		return
	}
	q.g.AddNode(target)
	for _, to := range q.g.Successors(old) {
		if to != target {
			for _, tag := range q.g.Tags(old, to) {
				q.g.AddEdge(target, to, tag)
			}
		}
	}
	for _, from := range q.g.Predecessors(old) {
		if from != target {
			for _, tag := range q.g.Tags(from, old) {
				q.g.AddEdge(from, target, tag)
			}
		}
	}
	q.g.RemoveNode(old)
	q.invalidate()
}

// Successors returns every group reachable from group (the groups it is
// later than), sorted.
func (q *QuotientGraph) Successors(group string) []string {
	return sortedKeys(q.successors(group))
}

// Predecessors returns every group that reaches group (the groups later than
// it), sorted.
func (q *QuotientGraph) Predecessors(group string) []string {
	return sortedKeys(q.predecessors(group))
}

func (q *QuotientGraph) successors(group string) map[string]struct{} {
	if s, ok := q.succ[group]; ok {
		return s
	}
	s := q.g.Reachable(group)
	q.succ[group] = s
	return s
}

func (q *QuotientGraph) predecessors(group string) map[string]struct{} {
	if p, ok := q.pred[group]; ok {
		return p
	}
	p := q.g.Reaching(group)
	q.pred[group] = p
	return p
}

// MergeCheck is the outcome of SimulateMerge.
type MergeCheck struct {
	OK        bool
	Code      string
	Path      Path
	Conflicts []string
}

// SimulateMerge checks whether groups x and y may be declared contemporaneous.
// A direct ordering in either direction, or a group that is both later and
// earlier than the pair, forbids the merge.
func (q *QuotientGraph) SimulateMerge(x, y string) MergeCheck {
	if x == y {
		return MergeCheck{OK: true}
	}
	if p, ok := q.g.ShortestPath(x, y, nil); ok {
		return MergeCheck{Code: strata.CodeExistingTemporalPath, Path: p}
	}
	if p, ok := q.g.ShortestPath(y, x, nil); ok {
		return MergeCheck{Code: strata.CodeExistingTemporalPath, Path: p}
	}

	// Later than the merged group: P. Earlier: S. Any third group in both
	// would be ordered on both sides of the merged group.
	later := union(q.predecessors(x), q.predecessors(y))
	earlier := union(q.successors(x), q.successors(y))
	var conflicts []string
	for n := range later {
		if n == x || n == y {
			continue
		}
		if _, ok := earlier[n]; ok {
			conflicts = append(conflicts, n)
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return MergeCheck{Code: strata.CodeWouldCreateCycle, Conflicts: conflicts}
	}
	return MergeCheck{OK: true}
}

func union(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// FindCycles returns one cycle per cyclic region of the graph. A consistent
// graph has none; cycles only appear when inconsistent data was loaded.
func (q *QuotientGraph) FindCycles() []Path {
	return q.g.Cycles()
}
