// Package validation keeps the indices over a site's live relations and
// answers consistency questions against them: single relations through a
// pluggable engine, proposals through the validator pipeline, and whole-site
// audits.
package validation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dusk-indust/stratigraph/internal/engine"
	"github.com/dusk-indust/stratigraph/internal/graph"
	"github.com/dusk-indust/stratigraph/internal/orchestrator"
	"github.com/dusk-indust/stratigraph/internal/strata"
)

// ErrUnknownRelation is returned for relation IDs that are not live.
var ErrUnknownRelation = errors.New("validation: unknown relation")

// Service owns every index and cache for one site. Readers work on an
// immutable index snapshot; writers replace it and bump the generation,
// which invalidates memoized results and the group structures.
type Service struct {
	store  graph.Store
	engine engine.Engine
	logger *zap.Logger
	batch  BatchConfig

	mu   sync.RWMutex
	ix   *index
	gen  uint64
	memo map[string]strata.ValidationResult

	flight singleflight.Group

	// writeMu serializes Commit and Remove.
	writeMu sync.Mutex

	groupMu   sync.Mutex
	orch      *orchestrator.Orchestrator
	groupsGen uint64

	engineMu  sync.Mutex
	engineGen uint64

	batchGuard
}

// Option configures a Service.
type Option func(*Service)

// WithEngine sets the single-relation engine. The default is an in-process
// LocalEngine.
func WithEngine(e engine.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBatch overrides the batch chunking.
func WithBatch(cfg BatchConfig) Option {
	return func(s *Service) {
		s.batch = cfg.withDefaults()
	}
}

// New returns a service over store. No data is read until the first call or
// an explicit Rebuild.
func New(store graph.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: zap.NewNop(),
		batch:  BatchConfig{}.withDefaults(),
		memo:   make(map[string]strata.ValidationResult),
		orch:   orchestrator.New(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.engine == nil {
		s.engine = engine.NewLocalEngine(engine.WithLogger(s.logger))
	}
	return s
}

// Rebuild re-reads the store and replaces every index. Memoized results are
// dropped; groups and the engine re-sync lazily.
func (s *Service) Rebuild(ctx context.Context) error {
	ix, err := buildIndex(ctx, s.store)
	if err != nil {
		return fmt.Errorf("validation: rebuild: %w", err)
	}
	s.mu.Lock()
	s.install(ix)
	gen := s.gen
	s.mu.Unlock()
	s.logger.Debug("indices rebuilt",
		zap.Uint64("generation", gen),
		zap.Int("relations", len(ix.order)),
		zap.Int("entities", len(ix.entities)))
	return nil
}

// install swaps in ix. Callers hold mu.
func (s *Service) install(ix *index) {
	s.ix = ix
	s.gen++
	s.memo = make(map[string]strata.ValidationResult)
}

// Invalidate drops memoized results and marks groups and engine stale
// without re-reading the store.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ix != nil {
		s.install(s.ix)
	}
}

// Follow rebuilds on every change notification until ctx is done or changes
// is closed. Bursts of notifications collapse into one rebuild.
func (s *Service) Follow(ctx context.Context, changes <-chan graph.Change) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			n := 1
		drain:
			for {
				select {
				case _, ok := <-changes:
					if !ok {
						break drain
					}
					n++
				default:
					break drain
				}
			}
			s.logger.Debug("data changed", zap.String("kind", string(c.Kind)), zap.Int("notifications", n))
			if err := s.Rebuild(ctx); err != nil {
				s.logger.Error("rebuild after change failed", zap.Error(err))
			}
		}
	}
}

// snapshot returns the current index and its generation, building it on
// first use.
func (s *Service) snapshot(ctx context.Context) (*index, uint64, error) {
	s.mu.RLock()
	ix, gen := s.ix, s.gen
	s.mu.RUnlock()
	if ix != nil {
		return ix, gen, nil
	}
	if err := s.Rebuild(ctx); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ix, s.gen, nil
}

// Generation identifies the current index; it changes on every rebuild,
// commit and removal.
func (s *Service) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// ValidateRelation checks one live relation through the engine. Results are
// memoized per relation until the next data change, and concurrent calls for
// the same relation share one computation.
func (s *Service) ValidateRelation(ctx context.Context, id string) (strata.ValidationResult, error) {
	start := time.Now()
	ix, gen, err := s.snapshot(ctx)
	if err != nil {
		return strata.ValidationResult{}, err
	}
	rel, ok := ix.byID[id]
	if !ok {
		return strata.ValidationResult{}, fmt.Errorf("%w: %s", ErrUnknownRelation, id)
	}
	key := fmt.Sprintf("%d/%s", gen, id)

	s.mu.RLock()
	res, hit := s.memo[key]
	s.mu.RUnlock()
	if hit {
		observe(pathSingle, res, start)
		return res, nil
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		if err := s.syncEngine(ctx, ix, gen); err != nil {
			return nil, err
		}
		verdict, err := s.engine.ValidateRelation(ctx, rel)
		if err != nil {
			return nil, fmt.Errorf("validation: %s engine: %w", s.engine.Name(), err)
		}
		res := verdictResult(ix, verdict)
		s.mu.Lock()
		if s.gen == gen {
			s.memo[key] = res
		}
		s.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return strata.ValidationResult{}, err
	}
	res = v.(strata.ValidationResult)
	observe(pathSingle, res, start)
	return res, nil
}

func (s *Service) syncEngine(ctx context.Context, ix *index, gen uint64) error {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	if s.engineGen == gen {
		return nil
	}
	if err := s.engine.Init(ctx, ix.nodeIDs(), ix.live()); err != nil {
		return fmt.Errorf("validation: init %s engine: %w", s.engine.Name(), err)
	}
	s.engineGen = gen
	return nil
}

func verdictResult(ix *index, v engine.Verdict) strata.ValidationResult {
	if v.OK {
		res := strata.Accept()
		if v.Truncated {
			res.Truncated = true
			res.ParadoxType = strata.ParadoxExplorationTooDeep
			res.Reason = fmt.Sprintf("exploration stopped after %d entities without finding a paradox", v.Visited)
		}
		return res
	}
	res := strata.Reject(v.Reason, describe(v.Reason, ix, v.Path))
	res.CyclePath = steps(ix, v.Path)
	res.ConflictingRelations = v.Relations
	return res
}

// ValidateNew runs the proposal pipeline for rel against the live relations
// without changing anything. A live relation with the same ID is ignored.
func (s *Service) ValidateNew(ctx context.Context, rel strata.Relation) (strata.ValidationResult, error) {
	start := time.Now()
	if err := rel.CheckEndpoints(); err != nil {
		return strata.ValidationResult{}, err
	}
	ix, gen, err := s.snapshot(ctx)
	if err != nil {
		return strata.ValidationResult{}, err
	}
	res := s.propose(ix, gen, rel)
	observe(pathNew, res, start)
	return res, nil
}

func (s *Service) propose(ix *index, gen uint64, rel strata.Relation) strata.ValidationResult {
	for _, v := range pipeline {
		if res := v.run(ix, rel); res != nil {
			s.logger.Debug("relation rejected",
				zap.String("relation", rel.ID),
				zap.String("validator", v.name),
				zap.String("paradox", string(res.ParadoxType)))
			return *res
		}
	}
	if res := s.advanced(ix, gen, rel); res != nil {
		return *res
	}
	return strata.Accept()
}

// advanced routes rel through the group structures. It never blocks a
// relation because of its own failure.
func (s *Service) advanced(ix *index, gen uint64, rel strata.Relation) (res *strata.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("group check failed, allowing relation",
				zap.String("relation", rel.ID), zap.Any("panic", r))
			res = nil
		}
	}()

	var o *orchestrator.Orchestrator
	if _, stored := ix.byID[rel.ID]; stored {
		// An edit is checked against the site without its earlier version.
		o = orchestrator.New()
		o.Rebuild(ix.liveExcept(rel.ID))
	} else {
		s.groupMu.Lock()
		defer s.groupMu.Unlock()
		if s.groupsGen != gen {
			s.orch.Rebuild(ix.live())
			s.groupsGen = gen
		}
		o = s.orch
	}
	a, p := rel.Anterior().ID, rel.Posterior().ID
	var d orchestrator.Decision
	if rel.IsContemporaneous {
		d = o.ValidateContemporaneityRelation(a, p)
	} else {
		d = o.ValidateTemporalRelation(a, p)
	}
	if d.OK {
		return nil
	}
	return decisionResult(ix, o, rel, d)
}

func decisionResult(ix *index, o *orchestrator.Orchestrator, rel strata.Relation, d orchestrator.Decision) *strata.ValidationResult {
	a, p := ix.label(rel.Anterior().ID), ix.label(rel.Posterior().ID)
	switch d.Kind {
	case strata.ParadoxSameGroup:
		res := reject(d.Kind, fmt.Sprintf("%s and %s belong to the contemporaneous group %s",
			a, p, labels(ix, d.Members)))
		res.CyclePath = []strata.PathStep{group(ix, d.Members)}
		return res
	case strata.ParadoxCycle:
		path := groupSteps(ix, d.Path, o.GroupMembers)
		res := reject(d.Kind, fmt.Sprintf("%s is already later than %s through %s",
			a, p, strata.FormatPath(path)), d.Relations...)
		res.CyclePath = path
		return res
	default:
		var reason string
		var path []strata.PathStep
		if d.Code == strata.CodeExistingTemporalPath {
			path = groupSteps(ix, d.Path, o.GroupMembers)
			reason = fmt.Sprintf("%s and %s are already ordered: %s", a, p, strata.FormatPath(path))
		} else {
			reason = fmt.Sprintf("making %s and %s contemporaneous would place %s both before and after the group %s",
				a, p, labels(ix, d.Members), labels(ix, d.Merged))
			path = steps(ix, d.Members)
		}
		res := reject(strata.ParadoxWouldCreateCycle, reason, d.Relations...)
		res.Code = d.Code
		res.CyclePath = path
		return res
	}
}

// Commit validates rel and, when accepted, stores it and folds it into the
// indices. An empty ID is replaced by a fresh UUID. The stored relation is
// returned alongside the validation result.
func (s *Service) Commit(ctx context.Context, rel strata.Relation) (strata.Relation, strata.ValidationResult, error) {
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	rel.Live = true

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.ValidateNew(ctx, rel)
	if err != nil || !res.OK {
		return rel, res, err
	}
	if err := s.store.PutRelation(ctx, rel); err != nil {
		return rel, res, fmt.Errorf("validation: commit %s: %w", rel.ID, err)
	}

	s.mu.Lock()
	prev := s.gen
	ix := s.ix.clone()
	ix.add(rel)
	s.install(ix)
	next := s.gen
	s.mu.Unlock()

	s.groupMu.Lock()
	if s.groupsGen == prev {
		s.orch.RemoveRelation(rel.ID)
		s.orch.Apply(rel)
		s.groupsGen = next
	}
	s.groupMu.Unlock()

	commits.WithLabelValues("commit").Inc()
	s.logger.Info("relation committed",
		zap.String("relation", rel.ID),
		zap.Bool("contemporaneous", rel.IsContemporaneous))
	return rel, res, nil
}

// Remove soft-deletes a live relation and drops it from the indices.
func (s *Service) Remove(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ix, _, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	if _, ok := ix.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRelation, id)
	}
	if err := s.store.SoftDeleteRelation(ctx, id); err != nil {
		return fmt.Errorf("validation: remove %s: %w", id, err)
	}

	s.mu.Lock()
	prev := s.gen
	nix := s.ix.clone()
	nix.remove(id)
	s.install(nix)
	next := s.gen
	s.mu.Unlock()

	s.groupMu.Lock()
	if s.groupsGen == prev {
		s.orch.RemoveRelation(id)
		s.groupsGen = next
	}
	s.groupMu.Unlock()

	commits.WithLabelValues("remove").Inc()
	s.logger.Info("relation removed", zap.String("relation", id))
	return nil
}

// Relation returns a live relation by ID.
func (s *Service) Relation(ctx context.Context, id string) (strata.Relation, error) {
	ix, _, err := s.snapshot(ctx)
	if err != nil {
		return strata.Relation{}, err
	}
	rel, ok := ix.byID[id]
	if !ok {
		return strata.Relation{}, fmt.Errorf("%w: %s", ErrUnknownRelation, id)
	}
	return rel, nil
}

// Relations returns the live relations in insertion order.
func (s *Service) Relations(ctx context.Context) ([]strata.Relation, error) {
	ix, _, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ix.live(), nil
}

// Label renders an entity for display.
func (s *Service) Label(ctx context.Context, id string) string {
	ix, _, err := s.snapshot(ctx)
	if err != nil {
		return id
	}
	return ix.label(id)
}

// Groups returns the current contemporaneity groups and quotient edges.
func (s *Service) Groups(ctx context.Context) (orchestrator.Snapshot, error) {
	ix, gen, err := s.snapshot(ctx)
	if err != nil {
		return orchestrator.Snapshot{}, err
	}
	s.groupMu.Lock()
	defer s.groupMu.Unlock()
	if s.groupsGen != gen {
		s.orch.Rebuild(ix.live())
		s.groupsGen = gen
	}
	return s.orch.Snapshot(), nil
}

// EngineName reports the engine currently answering single validations.
func (s *Service) EngineName() string {
	return s.engine.Name()
}

// Close releases the engine.
func (s *Service) Close() error {
	return s.engine.Close()
}
