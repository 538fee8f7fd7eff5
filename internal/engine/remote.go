package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

// Compile-time check.
var _ Engine = (*RemoteEngine)(nil)

// RemoteEngine delegates to an engine MCP server, normally a
// "stratigraph engine" subprocess speaking MCP over stdio.
type RemoteEngine struct {
	dial   func() (mcp.Transport, error)
	logger *zap.Logger

	mu      sync.Mutex
	session *mcp.ClientSession
}

// NewCommandEngine spawns command with args on first use and talks MCP over
// its stdin and stdout.
func NewCommandEngine(command string, args []string, logger *zap.Logger) *RemoteEngine {
	return NewRemoteEngine(func() (mcp.Transport, error) {
		if _, err := exec.LookPath(command); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, command, err)
		}
		return &mcp.CommandTransport{Command: exec.Command(command, args...)}, nil
	}, logger)
}

// NewRemoteEngine uses dial to obtain a transport whenever a session is
// needed.
func NewRemoteEngine(dial func() (mcp.Transport, error), logger *zap.Logger) *RemoteEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteEngine{dial: dial, logger: logger}
}

func (r *RemoteEngine) Name() string { return "remote" }

func (r *RemoteEngine) connect(ctx context.Context) (*mcp.ClientSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return r.session, nil
	}
	t, err := r.dial()
	if err != nil {
		return nil, err
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "stratigraph-validator", Version: "v1"}, nil)
	session, err := client.Connect(ctx, t, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrUnavailable, err)
	}
	r.session = session
	return session, nil
}

// Init ships the relation set to the server.
func (r *RemoteEngine) Init(ctx context.Context, nodeIDs []string, relations []strata.Relation) error {
	if nodeIDs == nil {
		nodeIDs = []string{}
	}
	if relations == nil {
		relations = []strata.Relation{}
	}
	var out InitOutput
	return r.call(ctx, ToolInit, InitInput{NodeIDs: nodeIDs, Relations: relations}, &out)
}

// ValidateRelation asks the server to walk from rel.
func (r *RemoteEngine) ValidateRelation(ctx context.Context, rel strata.Relation) (Verdict, error) {
	var v Verdict
	err := r.call(ctx, ToolValidateRelation, ValidateRelationInput{Relation: rel}, &v)
	return v, err
}

func (r *RemoteEngine) call(ctx context.Context, tool string, args, out any) error {
	session, err := r.connect(ctx)
	if err != nil {
		return err
	}
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		r.drop()
		return fmt.Errorf("engine: call %s: %w", tool, err)
	}
	if res.IsError {
		return fmt.Errorf("engine: %s failed: %s", tool, textContent(res))
	}
	raw, err := json.Marshal(res.StructuredContent)
	if err != nil {
		return fmt.Errorf("engine: %s: encode result: %w", tool, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("engine: %s: decode result: %w", tool, err)
	}
	return nil
}

// drop forgets a broken session so the next call reconnects.
func (r *RemoteEngine) drop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		_ = r.session.Close()
		r.session = nil
	}
}

// Close ends the session, which also stops a spawned subprocess.
func (r *RemoteEngine) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil
	}
	err := r.session.Close()
	r.session = nil
	return err
}

func textContent(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if t, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "; ")
}
