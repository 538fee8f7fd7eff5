package mcptools

import (
	"context"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/stratigraph/internal/engine"
	"github.com/dusk-indust/stratigraph/internal/strata"
)

func before(id, anterior, posterior string) strata.Relation {
	return strata.Relation{ID: id, AnteriorUsID: anterior, PosteriorUsID: posterior, Live: true}
}

// remoteOverMemory returns a RemoteEngine talking to a local engine served
// over in-memory transports.
func remoteOverMemory(t *testing.T) *engine.RemoteEngine {
	t.Helper()
	server := NewEngineMCPServer(NewEngineService(engine.NewLocalEngine(), nil))
	st, ct := mcp.NewInMemoryTransports()
	_, err := server.Connect(context.Background(), st, nil)
	require.NoError(t, err)

	remote := engine.NewRemoteEngine(func() (mcp.Transport, error) { return ct, nil }, nil)
	t.Cleanup(func() { _ = remote.Close() })
	return remote
}

func TestEngineServer_RemoteRoundTrip(t *testing.T) {
	remote := remoteOverMemory(t)
	ctx := context.Background()

	require.NoError(t, remote.Init(ctx, []string{"a", "b", "c"}, []strata.Relation{
		before("r1", "a", "b"),
		before("r2", "b", "c"),
	}))

	v, err := remote.ValidateRelation(ctx, before("r2", "b", "c"))
	require.NoError(t, err)
	assert.True(t, v.OK)

	v, err = remote.ValidateRelation(ctx, before("r3", "c", "a"))
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Equal(t, strata.ParadoxCycle, v.Reason)
	assert.Contains(t, v.Relations, "r3")
}

func TestEngineServer_NilInitPayload(t *testing.T) {
	remote := remoteOverMemory(t)
	require.NoError(t, remote.Init(context.Background(), nil, nil))

	v, err := remote.ValidateRelation(context.Background(), before("r1", "a", "b"))
	require.NoError(t, err)
	assert.True(t, v.OK)
}

func TestEngineServer_BehindFallback(t *testing.T) {
	remote := remoteOverMemory(t)
	f := engine.NewFallbackEngine(remote, engine.NewLocalEngine(), 5*time.Second, nil)
	ctx := context.Background()

	require.NoError(t, f.Init(ctx, nil, []strata.Relation{before("r1", "a", "b")}))
	assert.Equal(t, "remote", f.Name())

	v, err := f.ValidateRelation(ctx, before("r2", "b", "a"))
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Equal(t, "remote", f.Name(), "a healthy primary keeps answering")
}

func TestEngineService_InitError(t *testing.T) {
	svc := NewEngineService(failingEngine{}, nil)
	_, _, err := svc.Init(context.Background(), nil, engine.InitInput{})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrUnavailable)
}

type failingEngine struct{}

func (failingEngine) Name() string { return "failing" }

func (failingEngine) Init(context.Context, []string, []strata.Relation) error {
	return engine.ErrUnavailable
}

func (failingEngine) ValidateRelation(context.Context, strata.Relation) (engine.Verdict, error) {
	return engine.Verdict{}, engine.ErrUnavailable
}

func (failingEngine) Close() error { return nil }
