package orchestrator

import (
	"sync"

	"github.com/dusk-indust/stratigraph/internal/graph"
	"github.com/dusk-indust/stratigraph/internal/strata"
)

// Entity is what the orchestrator knows about a registered node.
type Entity struct {
	ID   string
	Kind strata.EntityKind
}

// Decision is the outcome of a group-level check.
type Decision struct {
	OK   bool
	Kind strata.ParadoxKind
	Code string

	// Path lists group representatives earliest first.
	Path      []string
	Relations []string

	// Members holds the group for SAME_GROUP, or the groups caught on both
	// sides of a would-be merge for WOULD_CREATE_CYCLE.
	Members []string
	// Merged lists the entities a rejected merge would have grouped.
	Merged []string
}

// Accepted is the passing Decision.
var Accepted = Decision{OK: true}

// Orchestrator owns the contemporaneity groups and the quotient graph and
// keeps them consistent while relations are added and removed. Methods are
// safe for concurrent use.
type Orchestrator struct {
	mu       sync.Mutex
	groups   *graph.UnionFind
	quotient *graph.QuotientGraph
	entities map[string]Entity

	// committed holds every relation folded into the structures, in commit
	// order, so that groups can be re-derived after a removal.
	committed map[string]strata.Relation
	order     []string
}

// New returns an empty orchestrator.
func New() *Orchestrator {
	o := &Orchestrator{}
	o.reset()
	return o
}

func (o *Orchestrator) reset() {
	o.groups = graph.NewUnionFind()
	o.quotient = graph.NewQuotientGraph()
	o.entities = make(map[string]Entity)
	o.committed = make(map[string]strata.Relation)
	o.order = nil
}

// RegisterEntity adds id as a singleton group if it is not yet known.
func (o *Orchestrator) RegisterEntity(id string, kind strata.EntityKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.register(strata.EntityRef{Kind: kind, ID: id})
}

func (o *Orchestrator) register(ref strata.EntityRef) {
	if ref.IsZero() {
		return
	}
	if _, ok := o.entities[ref.ID]; ok {
		return
	}
	o.entities[ref.ID] = Entity{ID: ref.ID, Kind: ref.Kind}
	o.groups.MakeSet(ref.ID)
	o.quotient.AddNode(ref.ID)
}

// ValidateTemporalRelation checks "anterior is earlier than posterior" at the
// group level without changing anything.
func (o *Orchestrator) ValidateTemporalRelation(anterior, posterior string) Decision {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.checkTemporal(anterior, posterior)
}

func (o *Orchestrator) checkTemporal(anterior, posterior string) Decision {
	ga, gp := o.groups.Find(anterior), o.groups.Find(posterior)
	if ga == gp {
		return Decision{
			Kind:    strata.ParadoxSameGroup,
			Path:    []string{ga},
			Members: o.groups.GroupMembers(ga),
		}
	}
	// The new edge would run gp -> ga; a cycle needs ga to reach gp already.
	if p, cyc := o.quotient.WouldCreateCycle(gp, ga); cyc {
		return Decision{
			Kind:      strata.ParadoxCycle,
			Path:      reversed(p.Nodes),
			Relations: p.Tags,
		}
	}
	return Accepted
}

// ValidateContemporaneityRelation checks whether a and b may be merged.
func (o *Orchestrator) ValidateContemporaneityRelation(a, b string) Decision {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.checkContemporaneity(a, b)
}

func (o *Orchestrator) checkContemporaneity(a, b string) Decision {
	preview := o.groups.SimulateUnion(a, b)
	if !preview.Merged {
		return Accepted
	}
	// Keep a's group first so existing paths read from a towards b.
	ga, gb := preview.Representative, preview.Absorbed
	if o.groups.Find(a) != ga {
		ga, gb = gb, ga
	}
	m := o.quotient.SimulateMerge(ga, gb)
	if m.OK {
		return Accepted
	}
	d := Decision{
		Kind:    strata.ParadoxWouldCreateCycle,
		Code:    m.Code,
		Members: m.Conflicts,
		Merged:  preview.Members,
	}
	if len(m.Path.Nodes) > 0 {
		d.Path = reversed(m.Path.Nodes)
		d.Relations = m.Path.Tags
	}
	return d
}

// AddTemporalRelation validates rel and, when accepted, commits its edge.
func (o *Orchestrator) AddTemporalRelation(rel strata.Relation) Decision {
	o.mu.Lock()
	defer o.mu.Unlock()
	ant, post := rel.Anterior(), rel.Posterior()
	o.register(ant)
	o.register(post)
	d := o.checkTemporal(ant.ID, post.ID)
	if !d.OK {
		return d
	}
	o.applyTemporal(rel)
	o.remember(rel)
	return d
}

// AddContemporaneityRelation validates rel and, when accepted, merges the two
// groups.
func (o *Orchestrator) AddContemporaneityRelation(rel strata.Relation) Decision {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, b := rel.Anterior(), rel.Posterior()
	o.register(a)
	o.register(b)
	d := o.checkContemporaneity(a.ID, b.ID)
	if !d.OK {
		return d
	}
	o.applyContemporaneity(rel)
	o.remember(rel)
	return d
}

// Apply folds rel in without validation. Used when loading stored data.
func (o *Orchestrator) Apply(rel strata.Relation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.register(rel.Anterior())
	o.register(rel.Posterior())
	if rel.IsContemporaneous {
		o.applyContemporaneity(rel)
	} else {
		o.applyTemporal(rel)
	}
	o.remember(rel)
}

func (o *Orchestrator) applyTemporal(rel strata.Relation) {
	gp := o.groups.Find(rel.Posterior().ID)
	ga := o.groups.Find(rel.Anterior().ID)
	o.quotient.AddEdge(gp, ga, rel.ID)
}

func (o *Orchestrator) applyContemporaneity(rel strata.Relation) {
	a, b := rel.Anterior().ID, rel.Posterior().ID
	ra, rb := o.groups.Find(a), o.groups.Find(b)
	root, merged := o.groups.Union(a, b)
	if !merged {
		return
	}
	absorbed := ra
	if root == ra {
		absorbed = rb
	}
	o.quotient.MergeNodes(absorbed, root)
}

func (o *Orchestrator) remember(rel strata.Relation) {
	if _, ok := o.committed[rel.ID]; !ok {
		o.order = append(o.order, rel.ID)
	}
	o.committed[rel.ID] = rel
}

// RemoveTemporalRelation drops a committed temporal relation from its edge.
func (o *Orchestrator) RemoveTemporalRelation(relID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rel, ok := o.committed[relID]
	if !ok || rel.IsContemporaneous {
		return
	}
	o.forget(relID)
	gp := o.groups.Find(rel.Posterior().ID)
	ga := o.groups.Find(rel.Anterior().ID)
	o.quotient.RemoveRelationFromEdge(gp, ga, relID)
}

// RemoveContemporaneityRelation drops a committed contemporaneity relation.
// Union-find cannot split a set, so the structures are re-derived from the
// remaining relations and the group may come apart.
func (o *Orchestrator) RemoveContemporaneityRelation(relID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rel, ok := o.committed[relID]
	if !ok || !rel.IsContemporaneous {
		return
	}
	o.forget(relID)
	remaining := make([]strata.Relation, 0, len(o.order))
	for _, id := range o.order {
		remaining = append(remaining, o.committed[id])
	}
	entities := o.entities
	o.rebuild(remaining)
	for _, e := range entities {
		o.register(strata.EntityRef{Kind: e.Kind, ID: e.ID})
	}
}

// RemoveRelation dispatches on the committed relation's kind.
func (o *Orchestrator) RemoveRelation(relID string) {
	o.mu.Lock()
	rel, ok := o.committed[relID]
	o.mu.Unlock()
	if !ok {
		return
	}
	if rel.IsContemporaneous {
		o.RemoveContemporaneityRelation(relID)
	} else {
		o.RemoveTemporalRelation(relID)
	}
}

func (o *Orchestrator) forget(relID string) {
	delete(o.committed, relID)
	for i, id := range o.order {
		if id == relID {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

// Rebuild discards all state and folds in relations in two phases: every
// contemporaneity first, then the temporal edges between the resulting
// groups. Temporal relations inside one group are remembered but add no edge.
func (o *Orchestrator) Rebuild(relations []strata.Relation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rebuild(relations)
}

func (o *Orchestrator) rebuild(relations []strata.Relation) {
	o.reset()
	for _, r := range relations {
		o.register(r.Anterior())
		o.register(r.Posterior())
	}
	for _, r := range relations {
		if r.IsContemporaneous {
			o.groups.Union(r.Anterior().ID, r.Posterior().ID)
		}
	}
	for root, members := range o.groups.Groups() {
		for _, m := range members {
			if m != root {
				o.quotient.MergeNodes(m, root)
			}
		}
	}
	for _, r := range relations {
		if !r.IsContemporaneous {
			o.applyTemporal(r)
		}
		o.remember(r)
	}
}

// Group returns the representative of id's group.
func (o *Orchestrator) Group(id string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.groups.Find(id)
}

// GroupMembers returns the sorted members of id's group.
func (o *Orchestrator) GroupMembers(id string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.groups.GroupMembers(id)
}

// Connected reports whether a and b are contemporaneous.
func (o *Orchestrator) Connected(a, b string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.groups.Connected(a, b)
}

// Snapshot is a read-only copy of the group structure for audit and export.
type Snapshot struct {
	Groups map[string][]string
	Edges  []graph.TaggedEdge
	Cycles []graph.Path
}

// Snapshot copies the current groups, quotient edges and cycles.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	groups := make(map[string][]string)
	for _, n := range o.quotient.Nodes() {
		groups[n] = o.groups.GroupMembers(n)
	}
	return Snapshot{
		Groups: groups,
		Edges:  o.quotient.Edges(),
		Cycles: o.quotient.FindCycles(),
	}
}

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}
