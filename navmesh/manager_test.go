package navmesh

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

func TestManagerBuildsAndPublishes(t *testing.T) {
	m := NewManager(BuildOptions{Logger: zaptest.NewLogger(t)})
	m.Register("a", planeModel(""), scenarioAgent())
	m.Register("b", planeModel(""), scenarioAgent())

	assert.Nil(t, m.Engine("a"), "nothing is published before a build")
	assert.Empty(t, m.FindPath("a", mgl32.Vec3{1, 0, 1}, mgl32.Vec3{9, 0, 9}, mgl32.Ident4()))

	require.NoError(t, m.BuildPending(context.Background()))
	require.NotNil(t, m.Engine("a"))
	require.NotNil(t, m.Engine("b"))
	assert.NotEmpty(t, m.FindPath("a", mgl32.Vec3{1, 0, 1}, mgl32.Vec3{9, 0, 9}, mgl32.Ident4()))

	// Nothing pending: engines are left alone.
	before := m.Engine("a")
	require.NoError(t, m.BuildPending(context.Background()))
	assert.Same(t, before, m.Engine("a"))

	require.NoError(t, m.RequestRebuild("a"))
	require.NoError(t, m.BuildPending(context.Background()))
	assert.NotSame(t, before, m.Engine("a"))
	assert.Equal(t, before.Blob().Data, m.Engine("a").Blob().Data)
}

func TestManagerFailedRebuildDropsEngine(t *testing.T) {
	m := NewManager(BuildOptions{})
	m.Register("a", planeModel(""), scenarioAgent())
	m.Register("b", planeModel(""), scenarioAgent())
	require.NoError(t, m.BuildPending(context.Background()))
	require.NotNil(t, m.Engine("a"))

	bad := scenarioAgent()
	bad.ConcernedMeshIndex = 3
	m.Register("a", planeModel(""), bad)
	m.Register("b", &Model{}, scenarioAgent())
	m.Register("c", planeModel(""), scenarioAgent())

	err := m.BuildPending(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.ErrorIs(t, err, ErrNoSuchMesh)
	assert.Nil(t, m.Engine("a"))
	assert.Nil(t, m.Engine("b"))
	assert.NotNil(t, m.Engine("c"))
	assert.Empty(t, m.FindPath("a", mgl32.Vec3{1, 0, 1}, mgl32.Vec3{9, 0, 9}, mgl32.Ident4()))
}

func TestManagerUnknownEntity(t *testing.T) {
	m := NewManager(BuildOptions{})
	assert.ErrorIs(t, m.RequestRebuild("ghost"), ErrUnknownEntity)
	assert.Nil(t, m.Engine("ghost"))

	m.Register("a", planeModel(""), scenarioAgent())
	m.Remove("a")
	assert.ErrorIs(t, m.RequestRebuild("a"), ErrUnknownEntity)
}

func TestManagerRemoveDuringBuild(t *testing.T) {
	m := NewManager(BuildOptions{Logger: zaptest.NewLogger(t)})
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var calls atomic.Int32
	m.build = func(ctx context.Context, model *Model, agent AgentConfig, opts BuildOptions) (*Engine, error) {
		if calls.Add(1) == 1 {
			started <- struct{}{}
			<-release
		}
		return LoadOrBuild(ctx, model, agent, opts)
	}
	m.Register("a", planeModel(""), scenarioAgent())

	first := make(chan error, 1)
	go func() { first <- m.BuildPending(context.Background()) }()
	<-started

	m.Remove("a")
	m.Register("a", planeModel(""), scenarioAgent())
	require.NoError(t, m.BuildPending(context.Background()))
	assert.EqualValues(t, 1, calls.Load(), "id already building is not built twice")

	close(release)
	require.NoError(t, <-first)
	assert.Nil(t, m.Engine("a"), "build of the removed entity is not published")

	require.NoError(t, m.BuildPending(context.Background()))
	assert.EqualValues(t, 2, calls.Load())
	assert.NotNil(t, m.Engine("a"))
}
