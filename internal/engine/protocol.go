package engine

import "github.com/dusk-indust/stratigraph/internal/strata"

// Tool names exposed by the engine MCP server.
const (
	ToolInit             = "init"
	ToolValidateRelation = "validate_relation"
)

// InitInput is the argument of the init tool.
type InitInput struct {
	NodeIDs   []string          `json:"nodeIds" jsonschema:"IDs of every US and Fait on the site"`
	Relations []strata.Relation `json:"relations" jsonschema:"the site's relation records"`
}

// InitOutput is the result of the init tool.
type InitOutput struct {
	Relations int `json:"relations"`
}

// ValidateRelationInput is the argument of the validate_relation tool.
type ValidateRelationInput struct {
	Relation strata.Relation `json:"relation" jsonschema:"the relation to check"`
}
