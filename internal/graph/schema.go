package graph

import (
	"errors"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

// ErrNotFound is returned when a record addressed by ID does not exist.
var ErrNotFound = errors.New("graph: not found")

// --- Enums ---

// ChangeKind classifies a data-change notification.
type ChangeKind string

const (
	ChangeRelation ChangeKind = "relation"
	ChangeEntity   ChangeKind = "entity"
	ChangeReload   ChangeKind = "reload"
)

// --- Models ---

// Change tells subscribers that stored data moved. ID is empty for reloads.
type Change struct {
	Kind ChangeKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
}

// Dataset is a complete site: every Fait, US and relation record.
type Dataset struct {
	Faits     []strata.Fait     `json:"faits"`
	US        []strata.US       `json:"us"`
	Relations []strata.Relation `json:"relations"`
}

// Stats summarizes a store's contents.
type Stats struct {
	FaitCount         int `json:"faitCount"`
	USCount           int `json:"usCount"`
	RelationCount     int `json:"relationCount"`
	LiveRelationCount int `json:"liveRelationCount"`
}

func (d Dataset) stats() *Stats {
	s := &Stats{FaitCount: len(d.Faits), USCount: len(d.US), RelationCount: len(d.Relations)}
	for _, r := range d.Relations {
		if r.Live {
			s.LiveRelationCount++
		}
	}
	return s
}
