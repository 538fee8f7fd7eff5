package mcptools

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dusk-indust/stratigraph/internal/validation"
)

// version is set by the linker at build time.
var version = "dev"

// NewValidatorMCPServer creates an MCP server with the validator tools
// registered.
func NewValidatorMCPServer(svc *ValidatorService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "stratigraph",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_relation",
		Description: "Check a stored relation for temporal paradoxes. Results are cached until the site's data changes.",
	}, svc.ValidateRelation)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_proposal",
		Description: "Check a relation that is not stored yet: containment, Fait consistency, contradictions, cycles and contemporaneity conflicts. Nothing is written.",
	}, svc.ValidateProposal)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "commit_relation",
		Description: "Validate a relation and store it when it introduces no paradox.",
	}, svc.CommitRelation)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_relation",
		Description: "Soft-delete a stored relation. Contemporaneity groups it held together are split again.",
	}, svc.DeleteRelation)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_paradoxes",
		Description: "Audit every live relation and list the paradoxes found, one report per cycle.",
	}, svc.FindParadoxes)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_diagram",
		Description: "Render the contemporaneity groups and their temporal ordering as a Mermaid diagram.",
	}, svc.GetDiagram)

	return server
}

// RunMCPServer starts an HTTP server exposing the validator MCP tools.
func RunMCPServer(ctx context.Context, svc *validation.Service, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := NewValidatorMCPServer(NewValidatorService(svc))

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("mcp server listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
