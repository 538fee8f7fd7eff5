package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

// Compile-time check.
var _ Engine = (*LocalEngine)(nil)

// LocalEngine runs the bounded walk in process.
type LocalEngine struct {
	tiers  []Tier
	logger *zap.Logger

	mu       sync.RWMutex
	ready    bool
	byEntity map[string][]strata.Relation
	live     int
}

// LocalOption configures a LocalEngine.
type LocalOption func(*LocalEngine)

// WithTiers overrides DefaultTiers.
func WithTiers(tiers []Tier) LocalOption {
	return func(e *LocalEngine) {
		if len(tiers) > 0 {
			e.tiers = tiers
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) LocalOption {
	return func(e *LocalEngine) { e.logger = l }
}

// NewLocalEngine returns an uninitialized engine.
func NewLocalEngine(opts ...LocalOption) *LocalEngine {
	e := &LocalEngine{tiers: DefaultTiers, logger: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *LocalEngine) Name() string { return "local" }

// Init indexes the live relations by endpoint. nodeIDs is accepted for
// interface parity; isolated nodes never affect a walk.
func (e *LocalEngine) Init(_ context.Context, _ []string, relations []strata.Relation) error {
	byEntity := make(map[string][]strata.Relation)
	live := 0
	for _, r := range relations {
		if !r.Live || r.CheckEndpoints() != nil {
			continue
		}
		live++
		a, p := r.Anterior().ID, r.Posterior().ID
		byEntity[a] = append(byEntity[a], r)
		if p != a {
			byEntity[p] = append(byEntity[p], r)
		}
	}
	e.mu.Lock()
	e.byEntity, e.live, e.ready = byEntity, live, true
	e.mu.Unlock()
	e.logger.Debug("engine initialized", zap.String("engine", e.Name()), zap.Int("relations", live))
	return nil
}

// ValidateRelation walks outward from rel's endpoints within the budget
// selected for the loaded set size.
func (e *LocalEngine) ValidateRelation(ctx context.Context, rel strata.Relation) (Verdict, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready {
		return Verdict{}, ErrNotInitialized
	}
	if err := rel.CheckEndpoints(); err != nil {
		return Verdict{}, err
	}
	return walk(ctx, e.byEntity, rel, BudgetFor(e.tiers, e.live))
}

func (e *LocalEngine) Close() error { return nil }

// --- walk ---

type timeClass int8

const (
	classPast timeClass = iota - 1
	classPresent
	classFuture
)

type visit struct {
	from  string
	relID string
	depth int
}

// walk classifies every reachable node relative to the anterior endpoint,
// which is the present. Walking forward through a temporal relation from the
// present or the future reaches the future; walking backward from the present
// or the past reaches the past; contemporaneity keeps the class. Moves that
// leave the known timeline (future to past or back) yield no information and
// are not followed. A node classified twice with different classes is a
// paradox.
func walk(ctx context.Context, byEntity map[string][]strata.Relation, rel strata.Relation, b Budget) (Verdict, error) {
	origin, target := rel.Anterior().ID, rel.Posterior().ID
	if origin == target {
		return Verdict{Reason: strata.ParadoxSelfTargeting, Path: []string{origin}, Relations: []string{rel.ID}}, nil
	}

	deadline := time.Now().Add(b.Timeout)
	class := map[string]timeClass{origin: classPresent}
	parent := map[string]visit{origin: {}}
	targetClass := classFuture
	if rel.IsContemporaneous {
		targetClass = classPresent
	}
	class[target] = targetClass
	parent[target] = visit{from: origin, relID: rel.ID, depth: 1}
	queue := []string{origin, target}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return Verdict{}, err
		}
		if time.Now().After(deadline) {
			return truncated(len(class)), nil
		}
		n := queue[0]
		queue = queue[1:]
		depth := parent[n].depth
		for _, s := range byEntity[n] {
			if s.ID == rel.ID {
				continue
			}
			other := s.Other(n).ID
			if other == n {
				continue
			}
			c, ok := derive(class[n], s, n)
			if !ok {
				continue
			}
			if existing, seen := class[other]; seen {
				if existing != c {
					return paradox(parent, n, other, s.ID, existing, c, rel), nil
				}
				continue
			}
			if depth+1 > b.MaxDepth || len(class) >= b.MaxNodes {
				return truncated(len(class)), nil
			}
			class[other] = c
			parent[other] = visit{from: n, relID: s.ID, depth: depth + 1}
			queue = append(queue, other)
		}
	}
	return Verdict{OK: true, Visited: len(class)}, nil
}

// derive classifies the far end of s as seen from n.
func derive(c timeClass, s strata.Relation, n string) (timeClass, bool) {
	switch {
	case s.IsContemporaneous:
		return c, true
	case s.Anterior().ID == n:
		// The other end is later than n.
		if c >= classPresent {
			return classFuture, true
		}
	default:
		// The other end is earlier than n.
		if c <= classPresent {
			return classPast, true
		}
	}
	return 0, false
}

func truncated(visited int) Verdict {
	return Verdict{OK: true, Reason: strata.ParadoxExplorationTooDeep, Truncated: true, Visited: visited}
}

// paradox joins the two discovery chains meeting at other into one closed
// path starting at the origin.
func paradox(parent map[string]visit, n, other, relID string, a, b timeClass, rel strata.Relation) Verdict {
	first := chainTo(parent, n)
	second := chainTo(parent, other)

	nodes := append(first, other)
	for i := len(second) - 2; i >= 1; i-- {
		nodes = append(nodes, second[i])
	}

	relations := []string{relID}
	seen := map[string]bool{relID: true}
	for _, id := range []string{n, other} {
		for cur := id; parent[cur].relID != ""; cur = parent[cur].from {
			r := parent[cur].relID
			if !seen[r] {
				seen[r] = true
				relations = append(relations, r)
			}
		}
	}

	reason := strata.ParadoxCycle
	switch {
	case rel.IsContemporaneous:
		reason = strata.ParadoxWouldCreateCycle
	case a == classPresent || b == classPresent:
		reason = strata.ParadoxSameGroup
	}
	return Verdict{Reason: reason, Path: dedupe(nodes), Relations: relations, Visited: len(parent)}
}

func chainTo(parent map[string]visit, n string) []string {
	var rev []string
	for cur := n; ; cur = parent[cur].from {
		rev = append(rev, cur)
		if parent[cur].relID == "" {
			break
		}
	}
	out := make([]string, len(rev))
	for i, s := range rev {
		out[len(rev)-1-i] = s
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
