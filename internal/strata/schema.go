package strata

import (
	"errors"
	"fmt"
)

// --- Enums ---

// EntityKind distinguishes stratigraphic units from the features that contain them.
type EntityKind string

const (
	KindUS   EntityKind = "us"
	KindFait EntityKind = "fait"
)

func (k EntityKind) String() string {
	switch k {
	case KindUS:
		return "US"
	case KindFait:
		return "Fait"
	default:
		return "unknown"
	}
}

// ErrMissingEndpoint is returned for relation records lacking an anterior or
// posterior reference.
var ErrMissingEndpoint = errors.New("strata: relation endpoint missing")

// --- Models ---

// EntityRef points at a US or a Fait.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

// IsZero reports whether the reference points at nothing.
func (r EntityRef) IsZero() bool {
	return r.ID == ""
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// US is a stratigraphic unit: a layer, cut or deposit. ParentFaitID is empty
// when the unit does not belong to a feature.
type US struct {
	ID           string `json:"id" validate:"required,uuid"`
	Tag          string `json:"tag"`
	ParentFaitID string `json:"parentFaitId,omitempty" validate:"omitempty,uuid"`
	Live         bool   `json:"live"`
}

// Fait is a composite feature grouping zero or more US.
type Fait struct {
	ID   string `json:"id" validate:"required,uuid"`
	Tag  string `json:"tag"`
	Live bool   `json:"live"`
}

// Relation is one stratigraphic assertion as supplied by the data layer.
// Each endpoint is either a US or a Fait; the US field wins when both are set.
// When IsContemporaneous is true the endpoints form an unordered pair.
type Relation struct {
	ID                string `json:"id" validate:"required,uuid"`
	AnteriorUsID      string `json:"anteriorUsId,omitempty" validate:"omitempty,uuid"`
	AnteriorFaitID    string `json:"anteriorFaitId,omitempty" validate:"omitempty,uuid"`
	PosteriorUsID     string `json:"posteriorUsId,omitempty" validate:"omitempty,uuid"`
	PosteriorFaitID   string `json:"posteriorFaitId,omitempty" validate:"omitempty,uuid"`
	IsContemporaneous bool   `json:"isContemporaneous"`
	Live              bool   `json:"live"`
	RelationTypeID    int    `json:"relationTypeId" validate:"gte=0"`
}

// Anterior returns the older endpoint.
func (r Relation) Anterior() EntityRef {
	return endpoint(r.AnteriorUsID, r.AnteriorFaitID)
}

// Posterior returns the younger endpoint.
func (r Relation) Posterior() EntityRef {
	return endpoint(r.PosteriorUsID, r.PosteriorFaitID)
}

func endpoint(usID, faitID string) EntityRef {
	if usID != "" {
		return EntityRef{Kind: KindUS, ID: usID}
	}
	if faitID != "" {
		return EntityRef{Kind: KindFait, ID: faitID}
	}
	return EntityRef{}
}

// CheckEndpoints returns ErrMissingEndpoint when either side is unset.
func (r Relation) CheckEndpoints() error {
	if r.Anterior().IsZero() || r.Posterior().IsZero() {
		return fmt.Errorf("relation %q: %w", r.ID, ErrMissingEndpoint)
	}
	return nil
}

// IsSelfTargeting reports whether both endpoints resolve to the same entity.
func (r Relation) IsSelfTargeting() bool {
	a, p := r.Anterior(), r.Posterior()
	return !a.IsZero() && a.ID == p.ID
}

// Other returns the endpoint opposite to id.
func (r Relation) Other(id string) EntityRef {
	if r.Anterior().ID == id {
		return r.Posterior()
	}
	return r.Anterior()
}

// Entity is the resolved view of an endpoint used for labels and containment.
type Entity struct {
	Ref          EntityRef `json:"ref"`
	Tag          string    `json:"tag"`
	ParentFaitID string    `json:"parentFaitId,omitempty"`
	Known        bool      `json:"known"`
}

// Owner returns the Fait owning the entity: itself for a Fait, its parent for
// a US, empty otherwise.
func (e Entity) Owner() string {
	if e.Ref.Kind == KindFait {
		return e.Ref.ID
	}
	return e.ParentFaitID
}

// Label renders the entity for messages, e.g. "US 1024" or "Fait F12".
func (e Entity) Label() string {
	tag := e.Tag
	if tag == "" {
		tag = shortID(e.Ref.ID)
	}
	return e.Ref.Kind.String() + " " + tag
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
