// Package engine answers single-relation consistency questions by walking the
// relation graph outward from the relation's endpoints. Engines run in process
// (LocalEngine) or behind an MCP subprocess (RemoteEngine); FallbackEngine
// hides the difference.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

// ErrNotInitialized is returned by engines asked to validate before Init.
var ErrNotInitialized = errors.New("engine: not initialized")

// ErrUnavailable marks an engine that cannot be reached at all.
var ErrUnavailable = errors.New("engine: unavailable")

// Verdict is an engine's answer for one relation. Path lists entity IDs in
// discovery order and closes back on its first node for cycles.
type Verdict struct {
	OK        bool               `json:"ok"`
	Reason    strata.ParadoxKind `json:"reason,omitempty"`
	Path      []string           `json:"path,omitempty"`
	Relations []string           `json:"relations,omitempty"`
	Truncated bool               `json:"truncated,omitempty"`
	Visited   int                `json:"visited"`
}

// Engine validates one relation against a previously loaded relation set.
type Engine interface {
	Name() string

	// Init replaces the engine's relation set.
	Init(ctx context.Context, nodeIDs []string, relations []strata.Relation) error

	// ValidateRelation checks rel against the loaded set, ignoring any loaded
	// relation with the same ID.
	ValidateRelation(ctx context.Context, rel strata.Relation) (Verdict, error)

	Close() error
}

// Budget bounds one exploration.
type Budget struct {
	MaxDepth int           `json:"maxDepth" yaml:"maxDepth" toml:"max_depth" validate:"gt=0"`
	MaxNodes int           `json:"maxNodes" yaml:"maxNodes" toml:"max_nodes" validate:"gt=0"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout" toml:"timeout" validate:"gt=0"`
}

// Tier selects Budget for relation sets up to UpTo relations. UpTo <= 0 is
// the catch-all.
type Tier struct {
	UpTo   int    `json:"upTo" yaml:"upTo" toml:"up_to"`
	Budget Budget `json:"budget" yaml:"budget" toml:"budget"`
}

// DefaultTiers scale exploration with the size of the site.
var DefaultTiers = []Tier{
	{UpTo: 500, Budget: Budget{MaxDepth: 50, MaxNodes: 200, Timeout: 3 * time.Second}},
	{UpTo: 2000, Budget: Budget{MaxDepth: 100, MaxNodes: 500, Timeout: 5 * time.Second}},
	{UpTo: 0, Budget: Budget{MaxDepth: 200, MaxNodes: 1000, Timeout: 10 * time.Second}},
}

// BudgetFor picks the first tier covering n live relations.
func BudgetFor(tiers []Tier, n int) Budget {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	for _, t := range tiers {
		if t.UpTo <= 0 || n <= t.UpTo {
			return t.Budget
		}
	}
	return tiers[len(tiers)-1].Budget
}
