package validation

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dusk-indust/stratigraph/internal/orchestrator"
	"github.com/dusk-indust/stratigraph/internal/strata"
)

// audit accumulates the reports of one FindAllParadoxes run.
type audit struct {
	ix      *index
	reports []strata.ParadoxReport
	bySig   map[string]int

	// reported holds relations already named by some report; explained
	// holds entities already covered by a direct cycle.
	reported  map[string]bool
	explained map[string]bool
}

// FindAllParadoxes audits every live relation. Cycles are reported once per
// set of involved entities; cycles that only appear once contemporaneity
// groups are collapsed are flagged as indirect.
func (s *Service) FindAllParadoxes(ctx context.Context) ([]strata.ParadoxReport, error) {
	ix, _, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	a := newAudit(ix)
	a.records()
	a.consistency()
	if err := a.directCycles(ctx); err != nil {
		return nil, err
	}
	a.groups()

	for _, r := range a.reports {
		auditParadoxes.WithLabelValues(string(r.Type)).Inc()
	}
	s.logger.Info("audit complete",
		zap.Int("relations", len(ix.order)),
		zap.Int("paradoxes", len(a.reports)))
	return a.reports, nil
}

func newAudit(ix *index) *audit {
	return &audit{
		ix:        ix,
		bySig:     make(map[string]int),
		reported:  make(map[string]bool),
		explained: make(map[string]bool),
	}
}

func (a *audit) add(res *strata.ValidationResult, relations ...string) {
	r := newReport(*res, relations)
	if r.CycleInfo != nil {
		if i, ok := a.bySig[r.CycleInfo.Signature]; ok && a.reports[i].Type == r.Type {
			for _, id := range relations {
				a.reports[i].Relations = appendUnique(a.reports[i].Relations, id)
			}
			a.mark(relations)
			return
		}
		a.bySig[r.CycleInfo.Signature] = len(a.reports)
	}
	a.reports = append(a.reports, r)
	a.mark(relations)
}

func (a *audit) mark(relations []string) {
	for _, id := range relations {
		a.reported[id] = true
	}
}

// records flags relations that are wrong on their own.
func (a *audit) records() {
	for _, r := range a.ix.live() {
		if res := checkSelfTarget(a.ix, r); res != nil {
			a.add(res, r.ID)
			continue
		}
		if res := checkContainment(a.ix, r); res != nil {
			a.add(res, r.ID)
		}
	}
}

// consistency flags every Fait pair related in more than one way.
func (a *audit) consistency() {
	keys := make([]faitPair, 0, len(a.ix.pairs))
	for k, m := range a.ix.pairs {
		if len(m) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})
	for _, k := range keys {
		var ids []string
		for _, o := range []ordering{orderBefore, orderAfter, orderSame} {
			ids = append(ids, a.ix.pairs[k][o]...)
		}
		res := reject(strata.ParadoxConsistency,
			fmt.Sprintf("%s and %s are related in contradictory ways", a.ix.label(k.a), a.ix.label(k.b)))
		a.add(res, ids...)
	}
}

// directCycles reports every temporal relation lying on a cycle of the
// entity-level graph.
func (a *audit) directCycles(ctx context.Context) error {
	d := buildDirectGraph(a.ix, nil, "")
	if len(d.comps) == 0 {
		return nil
	}
	for i, r := range a.ix.live() {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if r.IsContemporaneous || !usable(a.ix, r) {
			continue
		}
		p, ok := d.cycleThrough(r)
		if !ok {
			continue
		}
		var members []string
		for _, n := range p.Nodes {
			members = append(members, d.classes.GroupMembers(n)...)
		}
		sort.Strings(members)
		for _, m := range members {
			a.explained[m] = true
		}

		res := cycleResult(a.ix, d, r, p)
		if res.ParadoxType == strata.ParadoxSameGroup {
			res.CyclePath = []strata.PathStep{group(a.ix, d.classes.GroupMembers(r.Anterior().ID))}
		} else {
			res.Reason = fmt.Sprintf("temporal cycle: %s", strata.FormatPath(res.CyclePath))
		}
		a.add(res, append([]string{r.ID}, res.ConflictingRelations...)...)
	}
	return nil
}

// groups collapses contemporaneity groups and reports the cycles and
// same-group orderings the direct pass did not already explain.
func (a *audit) groups() {
	var rels []strata.Relation
	for _, r := range a.ix.live() {
		if usable(a.ix, r) {
			rels = append(rels, r)
		}
	}
	o := orchestrator.New()
	o.Rebuild(rels)
	snap := o.Snapshot()

	for _, c := range snap.Cycles {
		nodes := reverse(c.Nodes)
		covered := true
		for _, n := range nodes {
			for _, m := range snap.Groups[n] {
				if !a.explained[m] {
					covered = false
				}
			}
		}
		if covered {
			continue
		}
		path := groupSteps(a.ix, nodes, func(g string) []string { return snap.Groups[g] })
		res := reject(strata.ParadoxCycle,
			fmt.Sprintf("temporal cycle through contemporaneous groups: %s", strata.FormatPath(path)))
		res.CyclePath = path
		before := len(a.reports)
		a.add(res, c.Tags...)
		if len(a.reports) > before {
			a.reports[before].CycleInfo.Indirect = true
		}
	}

	for _, r := range rels {
		if r.IsContemporaneous || a.reported[r.ID] {
			continue
		}
		ant, post := r.Anterior().ID, r.Posterior().ID
		if !o.Connected(ant, post) {
			continue
		}
		members := o.GroupMembers(ant)
		res := reject(strata.ParadoxSameGroup,
			fmt.Sprintf("%s and %s are ordered but belong to the contemporaneous group %s",
				a.ix.label(ant), a.ix.label(post), labels(a.ix, members)))
		res.CyclePath = []strata.PathStep{group(a.ix, members)}
		a.add(res, r.ID)
	}
}
