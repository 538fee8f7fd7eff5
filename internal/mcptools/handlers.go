package mcptools

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/stratigraph/internal/export"
	"github.com/dusk-indust/stratigraph/internal/strata"
	"github.com/dusk-indust/stratigraph/internal/validation"
)

// ValidatorService holds the validation service used by MCP tool handlers.
type ValidatorService struct {
	svc *validation.Service
}

// NewValidatorService creates a ValidatorService over svc.
func NewValidatorService(svc *validation.Service) *ValidatorService {
	return &ValidatorService{svc: svc}
}

// proposal turns tool input into a checked relation record, assigning an ID
// when none was given.
func proposal(in RelationInput) (strata.Relation, error) {
	rel := in.Relation()
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	if err := strata.ValidateRecord(rel); err != nil {
		return strata.Relation{}, err
	}
	return rel, nil
}

// ValidateRelation checks a stored relation through the engine.
func (s *ValidatorService) ValidateRelation(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RelationIDInput,
) (*mcp.CallToolResult, strata.ValidationResult, error) {
	if input.RelationID == "" {
		return nil, strata.ValidationResult{}, fmt.Errorf("relationId is required")
	}
	res, err := s.svc.ValidateRelation(ctx, input.RelationID)
	if err != nil {
		return nil, strata.ValidationResult{}, err
	}
	return nil, res, nil
}

// ValidateProposal runs the proposal pipeline without storing anything.
func (s *ValidatorService) ValidateProposal(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProposalInput,
) (*mcp.CallToolResult, strata.ValidationResult, error) {
	rel, err := proposal(input.Relation)
	if err != nil {
		return nil, strata.ValidationResult{}, err
	}
	res, err := s.svc.ValidateNew(ctx, rel)
	if err != nil {
		return nil, strata.ValidationResult{}, err
	}
	return nil, res, nil
}

// CommitRelation validates and, when accepted, stores a relation.
func (s *ValidatorService) CommitRelation(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProposalInput,
) (*mcp.CallToolResult, CommitOutput, error) {
	rel, err := proposal(input.Relation)
	if err != nil {
		return nil, CommitOutput{}, err
	}
	rel, res, err := s.svc.Commit(ctx, rel)
	if err != nil {
		return nil, CommitOutput{}, err
	}
	return nil, CommitOutput{RelationID: rel.ID, Committed: res.OK, Result: res}, nil
}

// DeleteRelation soft-deletes a stored relation.
func (s *ValidatorService) DeleteRelation(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RelationIDInput,
) (*mcp.CallToolResult, DeleteOutput, error) {
	if err := s.svc.Remove(ctx, input.RelationID); err != nil {
		return nil, DeleteOutput{}, err
	}
	return nil, DeleteOutput{RelationID: input.RelationID, Deleted: true}, nil
}

// FindParadoxes audits the whole site.
func (s *ValidatorService) FindParadoxes(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ FindParadoxesInput,
) (*mcp.CallToolResult, FindParadoxesOutput, error) {
	reports, err := s.svc.FindAllParadoxes(ctx)
	if err != nil {
		return nil, FindParadoxesOutput{}, err
	}
	if reports == nil {
		reports = []strata.ParadoxReport{}
	}
	return nil, FindParadoxesOutput{Paradoxes: reports, Total: len(reports)}, nil
}

// GetDiagram renders the contemporaneity groups as Mermaid.
func (s *ValidatorService) GetDiagram(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ DiagramInput,
) (*mcp.CallToolResult, DiagramOutput, error) {
	out, err := export.GenerateMermaid(ctx, s.svc)
	if err != nil {
		return nil, DiagramOutput{}, err
	}
	return nil, DiagramOutput{Mermaid: out}, nil
}
