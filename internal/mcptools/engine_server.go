package mcptools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dusk-indust/stratigraph/internal/engine"
)

// EngineService exposes an in-process engine to out-of-process callers.
type EngineService struct {
	eng    engine.Engine
	logger *zap.Logger
}

// NewEngineService wraps eng.
func NewEngineService(eng engine.Engine, logger *zap.Logger) *EngineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngineService{eng: eng, logger: logger}
}

// Init replaces the engine's relation set.
func (s *EngineService) Init(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input engine.InitInput,
) (*mcp.CallToolResult, engine.InitOutput, error) {
	if err := s.eng.Init(ctx, input.NodeIDs, input.Relations); err != nil {
		return nil, engine.InitOutput{}, fmt.Errorf("init: %w", err)
	}
	s.logger.Debug("engine loaded", zap.Int("relations", len(input.Relations)))
	return nil, engine.InitOutput{Relations: len(input.Relations)}, nil
}

// ValidateRelation walks from one relation.
func (s *EngineService) ValidateRelation(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input engine.ValidateRelationInput,
) (*mcp.CallToolResult, engine.Verdict, error) {
	v, err := s.eng.ValidateRelation(ctx, input.Relation)
	if err != nil {
		return nil, engine.Verdict{}, fmt.Errorf("validate %s: %w", input.Relation.ID, err)
	}
	return nil, v, nil
}

// NewEngineMCPServer creates an MCP server with the init and
// validate_relation tools that RemoteEngine calls.
func NewEngineMCPServer(svc *EngineService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "stratigraph-engine",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        engine.ToolInit,
		Description: "Load the site's relation set. Replaces any previously loaded set.",
	}, svc.Init)

	mcp.AddTool(server, &mcp.Tool{
		Name:        engine.ToolValidateRelation,
		Description: "Check one relation against the loaded set by walking outward from its endpoints within the exploration budget.",
	}, svc.ValidateRelation)

	return server
}

// RunEngineMCPServerStdio runs the engine server on stdio, blocking until
// stdin is closed or the context is cancelled.
func RunEngineMCPServerStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
