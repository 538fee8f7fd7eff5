package validation

import (
	"context"
	"fmt"
	"sort"

	"github.com/dusk-indust/stratigraph/internal/graph"
	"github.com/dusk-indust/stratigraph/internal/strata"
)

// ordering is how a relation places its first Fait against its second.
type ordering int8

const (
	orderBefore ordering = iota
	orderAfter
	orderSame
)

type faitPair struct{ a, b string }

// index is an immutable-by-convention snapshot of the live relations with
// the lookups the validators need. Writers patch it under the service lock.
type index struct {
	byID     map[string]strata.Relation
	byEntity map[string][]string
	order    []string

	// entities caches labels and containment for every known endpoint.
	entities map[string]strata.Entity
	// members lists the US of each Fait.
	members map[string][]string
	// pairs records, per unordered Fait pair, which orderings relations
	// assert and through which relations.
	pairs map[faitPair]map[ordering][]string
}

func newIndex() *index {
	return &index{
		byID:     make(map[string]strata.Relation),
		byEntity: make(map[string][]string),
		entities: make(map[string]strata.Entity),
		members:  make(map[string][]string),
		pairs:    make(map[faitPair]map[ordering][]string),
	}
}

// buildIndex loads every entity and live relation from s.
func buildIndex(ctx context.Context, s graph.Store) (*index, error) {
	d, err := s.Dataset(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	ix := newIndex()
	for _, f := range d.Faits {
		ix.entities[f.ID] = strata.Entity{Ref: strata.EntityRef{Kind: strata.KindFait, ID: f.ID}, Tag: f.Tag, Known: true}
	}
	for _, us := range d.US {
		ix.entities[us.ID] = strata.Entity{
			Ref:          strata.EntityRef{Kind: strata.KindUS, ID: us.ID},
			Tag:          us.Tag,
			ParentFaitID: us.ParentFaitID,
			Known:        true,
		}
		if us.ParentFaitID != "" && us.Live {
			ix.members[us.ParentFaitID] = append(ix.members[us.ParentFaitID], us.ID)
		}
	}
	for _, m := range ix.members {
		sort.Strings(m)
	}
	for _, r := range d.Relations {
		if r.Live && r.CheckEndpoints() == nil {
			ix.add(r)
		}
	}
	return ix, nil
}

// add inserts a live relation.
func (ix *index) add(r strata.Relation) {
	if _, ok := ix.byID[r.ID]; ok {
		ix.remove(r.ID)
	}
	ix.byID[r.ID] = r
	ix.order = append(ix.order, r.ID)
	a, p := r.Anterior().ID, r.Posterior().ID
	ix.byEntity[a] = append(ix.byEntity[a], r.ID)
	if p != a {
		ix.byEntity[p] = append(ix.byEntity[p], r.ID)
	}
	if key, ord, ok := ix.pairOf(r); ok {
		m := ix.pairs[key]
		if m == nil {
			m = make(map[ordering][]string)
			ix.pairs[key] = m
		}
		m[ord] = append(m[ord], r.ID)
	}
}

// remove drops a relation. Unknown IDs are ignored.
func (ix *index) remove(id string) {
	r, ok := ix.byID[id]
	if !ok {
		return
	}
	delete(ix.byID, id)
	ix.order = without(ix.order, id)
	for _, e := range []string{r.Anterior().ID, r.Posterior().ID} {
		ix.byEntity[e] = without(ix.byEntity[e], id)
		if len(ix.byEntity[e]) == 0 {
			delete(ix.byEntity, e)
		}
	}
	if key, ord, ok := ix.pairOf(r); ok {
		ix.pairs[key][ord] = without(ix.pairs[key][ord], id)
		if len(ix.pairs[key][ord]) == 0 {
			delete(ix.pairs[key], ord)
		}
		if len(ix.pairs[key]) == 0 {
			delete(ix.pairs, key)
		}
	}
}

// clone copies the index so a writer can patch it while readers keep the old
// one.
func (ix *index) clone() *index {
	out := newIndex()
	for k, v := range ix.byID {
		out.byID[k] = v
	}
	for k, v := range ix.byEntity {
		out.byEntity[k] = append([]string(nil), v...)
	}
	out.order = append([]string(nil), ix.order...)
	for k, v := range ix.entities {
		out.entities[k] = v
	}
	for k, v := range ix.members {
		out.members[k] = v
	}
	for k, m := range ix.pairs {
		cp := make(map[ordering][]string, len(m))
		for o, ids := range m {
			cp[o] = append([]string(nil), ids...)
		}
		out.pairs[k] = cp
	}
	return out
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// entity resolves id against the cache, falling back to a bare reference.
func (ix *index) entity(ref strata.EntityRef) strata.Entity {
	if e, ok := ix.entities[ref.ID]; ok {
		return e
	}
	return strata.Entity{Ref: ref}
}

func (ix *index) owner(ref strata.EntityRef) string {
	return ix.entity(ref).Owner()
}

func (ix *index) label(id string) string {
	if e, ok := ix.entities[id]; ok {
		return e.Label()
	}
	return strata.Entity{Ref: strata.EntityRef{Kind: strata.KindUS, ID: id}}.Label()
}

// pairOf returns the Fait pair a relation links and the ordering it asserts
// from the pair's first Fait. Relations within one Fait or touching an
// unowned US have no pair.
func (ix *index) pairOf(r strata.Relation) (faitPair, ordering, bool) {
	oa, op := ix.owner(r.Anterior()), ix.owner(r.Posterior())
	if oa == "" || op == "" || oa == op {
		return faitPair{}, 0, false
	}
	ord := orderBefore
	if r.IsContemporaneous {
		ord = orderSame
	}
	if oa < op {
		return faitPair{oa, op}, ord, true
	}
	if ord == orderBefore {
		ord = orderAfter
	}
	return faitPair{op, oa}, ord, true
}

// live returns the live relations in insertion order.
func (ix *index) live() []strata.Relation {
	out := make([]strata.Relation, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, ix.byID[id])
	}
	return out
}

// liveExcept returns the live relations other than id.
func (ix *index) liveExcept(id string) []strata.Relation {
	out := make([]strata.Relation, 0, len(ix.order))
	for _, rid := range ix.order {
		if rid != id {
			out = append(out, ix.byID[rid])
		}
	}
	return out
}

// nodeIDs lists every entity that appears in a live relation.
func (ix *index) nodeIDs() []string {
	out := make([]string, 0, len(ix.byEntity))
	for id := range ix.byEntity {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// between returns the live relations linking a and b in either direction.
func (ix *index) between(a, b string) []strata.Relation {
	var out []strata.Relation
	for _, id := range ix.byEntity[a] {
		r := ix.byID[id]
		if r.Other(a).ID == b {
			out = append(out, r)
		}
	}
	return out
}
