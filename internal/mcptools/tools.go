package mcptools

import "github.com/dusk-indust/stratigraph/internal/strata"

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each validator tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// RelationInput describes a relation supplied by a caller. Each side names a
// US or a Fait; the US wins when both are given.
type RelationInput struct {
	ID              string `json:"id,omitempty" jsonschema:"relation UUID; generated when empty"`
	AnteriorUsID    string `json:"anteriorUsId,omitempty" jsonschema:"UUID of the earlier US"`
	AnteriorFaitID  string `json:"anteriorFaitId,omitempty" jsonschema:"UUID of the earlier Fait"`
	PosteriorUsID   string `json:"posteriorUsId,omitempty" jsonschema:"UUID of the later US"`
	PosteriorFaitID string `json:"posteriorFaitId,omitempty" jsonschema:"UUID of the later Fait"`
	Contemporaneous bool   `json:"isContemporaneous,omitempty" jsonschema:"true when both sides existed at the same time"`
	RelationTypeID  int    `json:"relationTypeId,omitempty" jsonschema:"application relation type"`
}

// Relation converts the input to a live relation record.
func (in RelationInput) Relation() strata.Relation {
	return strata.Relation{
		ID:                in.ID,
		AnteriorUsID:      in.AnteriorUsID,
		AnteriorFaitID:    in.AnteriorFaitID,
		PosteriorUsID:     in.PosteriorUsID,
		PosteriorFaitID:   in.PosteriorFaitID,
		IsContemporaneous: in.Contemporaneous,
		Live:              true,
		RelationTypeID:    in.RelationTypeID,
	}
}

// RelationIDInput addresses a stored relation.
type RelationIDInput struct {
	RelationID string `json:"relationId" jsonschema:"ID of a live relation"`
}

// ProposalInput is the input for the validate_proposal and commit_relation
// tools.
type ProposalInput struct {
	Relation RelationInput `json:"relation" jsonschema:"the proposed relation"`
}

// CommitOutput is the result of the commit_relation tool.
type CommitOutput struct {
	RelationID string                  `json:"relationId"`
	Committed  bool                    `json:"committed"`
	Result     strata.ValidationResult `json:"result"`
}

// DeleteOutput is the result of the delete_relation tool.
type DeleteOutput struct {
	RelationID string `json:"relationId"`
	Deleted    bool   `json:"deleted"`
}

// FindParadoxesInput is the input for the find_paradoxes tool.
type FindParadoxesInput struct{}

// FindParadoxesOutput is the result of the find_paradoxes tool.
type FindParadoxesOutput struct {
	Paradoxes []strata.ParadoxReport `json:"paradoxes"`
	Total     int                    `json:"total"`
}

// DiagramInput is the input for the get_diagram tool.
type DiagramInput struct{}

// DiagramOutput is the result of the get_diagram tool.
type DiagramOutput struct {
	Mermaid string `json:"mermaid"`
}
