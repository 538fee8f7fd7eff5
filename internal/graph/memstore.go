package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	notifier

	mu        sync.RWMutex
	faits     map[string]strata.Fait
	us        map[string]strata.US
	relations map[string]strata.Relation
	order     []string // relation IDs in insertion order
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	m := &MemStore{notifier: newNotifier()}
	m.clear()
	return m
}

func (m *MemStore) clear() {
	m.faits = make(map[string]strata.Fait)
	m.us = make(map[string]strata.US)
	m.relations = make(map[string]strata.Relation)
	m.order = nil
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// Replace swaps the whole content for d and emits a single reload.
func (m *MemStore) Replace(d *Dataset) {
	m.mu.Lock()
	m.clear()
	for _, f := range d.Faits {
		m.faits[f.ID] = f
	}
	for _, us := range d.US {
		m.us[us.ID] = us
	}
	for _, r := range d.Relations {
		m.putRelation(r)
	}
	m.mu.Unlock()
	m.emit(Change{Kind: ChangeReload})
}

// PutFait stores a Fait keyed by ID.
func (m *MemStore) PutFait(_ context.Context, f strata.Fait) error {
	m.mu.Lock()
	m.faits[f.ID] = f
	m.mu.Unlock()
	m.emit(Change{Kind: ChangeEntity, ID: f.ID})
	return nil
}

// PutUS stores a US keyed by ID.
func (m *MemStore) PutUS(_ context.Context, us strata.US) error {
	m.mu.Lock()
	m.us[us.ID] = us
	m.mu.Unlock()
	m.emit(Change{Kind: ChangeEntity, ID: us.ID})
	return nil
}

// PutRelation upserts a relation; a new ID goes to the end of the order.
func (m *MemStore) PutRelation(_ context.Context, rel strata.Relation) error {
	m.mu.Lock()
	m.putRelation(rel)
	m.mu.Unlock()
	m.emit(Change{Kind: ChangeRelation, ID: rel.ID})
	return nil
}

func (m *MemStore) putRelation(rel strata.Relation) {
	if _, ok := m.relations[rel.ID]; !ok {
		m.order = append(m.order, rel.ID)
	}
	m.relations[rel.ID] = rel
}

// SoftDeleteRelation clears the live flag.
func (m *MemStore) SoftDeleteRelation(_ context.Context, id string) error {
	m.mu.Lock()
	rel, ok := m.relations[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("relation %s: %w", id, ErrNotFound)
	}
	rel.Live = false
	m.relations[id] = rel
	m.mu.Unlock()
	m.emit(Change{Kind: ChangeRelation, ID: id})
	return nil
}

// GetFait returns the Fait with the given ID, or nil if not found.
func (m *MemStore) GetFait(_ context.Context, id string) (*strata.Fait, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.faits[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// GetUS returns the US with the given ID, or nil if not found.
func (m *MemStore) GetUS(_ context.Context, id string) (*strata.US, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	us, ok := m.us[id]
	if !ok {
		return nil, nil
	}
	return &us, nil
}

// GetRelation returns the relation with the given ID, or nil if not found.
func (m *MemStore) GetRelation(_ context.Context, id string) (*strata.Relation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.relations[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// FaitMembers returns the live US whose parent is faitID, sorted by ID.
func (m *MemStore) FaitMembers(_ context.Context, faitID string) ([]strata.US, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []strata.US
	for _, us := range m.us {
		if us.ParentFaitID == faitID && us.Live {
			out = append(out, us)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Relations returns every relation in insertion order.
func (m *MemStore) Relations(_ context.Context) ([]strata.Relation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]strata.Relation, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.relations[id])
	}
	return out, nil
}

// Dataset copies the whole content. Entities are sorted by ID.
func (m *MemStore) Dataset(ctx context.Context) (*Dataset, error) {
	rels, _ := m.Relations(ctx)
	m.mu.RLock()
	defer m.mu.RUnlock()
	d := &Dataset{Relations: rels}
	for _, f := range m.faits {
		d.Faits = append(d.Faits, f)
	}
	for _, us := range m.us {
		d.US = append(d.US, us)
	}
	sort.Slice(d.Faits, func(i, j int) bool { return d.Faits[i].ID < d.Faits[j].ID })
	sort.Slice(d.US, func(i, j int) bool { return d.US[i].ID < d.US[j].ID })
	return d, nil
}

// Stats returns record counts.
func (m *MemStore) Stats(ctx context.Context) (*Stats, error) {
	d, err := m.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return d.stats(), nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
