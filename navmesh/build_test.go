package navmesh

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gorustyt/navbake/detour"
)

// quadMesh builds a mesh of flat y=0 squares given as (minX, minZ, maxX, maxZ),
// stored interleaved behind a normal like most exported geometry.
func quadMesh(quads ...[4]float32) SourceMesh {
	var pos []float32
	var idx []uint16
	for i, q := range quads {
		pos = append(pos,
			q[0], 0, q[1],
			q[2], 0, q[1],
			q[2], 0, q[3],
			q[0], 0, q[3])
		b := uint16(i * 4)
		idx = append(idx, b, b+2, b+1, b, b+3, b+2)
	}
	return SourceMesh{
		Vertices:    interleaved(pos),
		Stride:      24,
		Attributes:  map[string]int{"normal": 0, "pos": 12},
		VertexCount: len(pos) / 3,
		Indices:     IndexBuffer{Narrow: idx},
	}
}

func planeModel(file string) *Model {
	return &Model{File: file, Meshes: []SourceMesh{quadMesh([4]float32{0, 0, 10, 10})}}
}

// scenarioAgent is a small agent on a fine grid.
func scenarioAgent() AgentConfig {
	agent := DefaultAgentConfig()
	agent.CellSize = 0.3
	agent.CellHeight = 0.2
	agent.CharacterRadius = 0.3
	agent.CharacterHeight = 1.8
	agent.CharacterClimb = 0.3
	return agent
}

func TestBuildPlane(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	blob, err := Build(context.Background(), planeModel(""), scenarioAgent(), BuildOptions{Logger: zap.New(core)})
	require.NoError(t, err)
	require.False(t, blob.Empty())
	assert.InDelta(t, 10*1.41421356, blob.AreaSize, 1e-3)

	var tile detour.NavMeshData
	require.NoError(t, tile.FromBin(blob.Data))
	assert.Greater(t, tile.Header.PolyCount, int32(0))
	assert.Equal(t, tile.Header.PolyCount, tile.Header.DetailMeshCount)
	assert.Equal(t, float32(1.8), tile.Header.WalkableHeight)
	assert.Equal(t, float32(0.3), tile.Header.WalkableClimb)
	for i := range tile.NavPolys {
		assert.Equal(t, uint16(FlagWalk), tile.NavPolys[i].Flags, "poly %d", i)
	}

	assert.NotZero(t, logs.FilterMessage("navigation built").Len())
	assert.NotZero(t, logs.FilterMessage("recast build times").Len())
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestBuildNarrowAndWideIndicesMatch(t *testing.T) {
	narrow := planeModel("")
	wide := planeModel("")
	n := narrow.Meshes[0].Indices.Narrow
	w := make([]uint32, len(n))
	for i, v := range n {
		w[i] = uint32(v)
	}
	wide.Meshes[0].Indices = IndexBuffer{Wide: w}

	a, err := Build(context.Background(), narrow, scenarioAgent(), BuildOptions{})
	require.NoError(t, err)
	b, err := Build(context.Background(), wide, scenarioAgent(), BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildIsDeterministic(t *testing.T) {
	a, err := Build(context.Background(), planeModel(""), scenarioAgent(), BuildOptions{})
	require.NoError(t, err)
	b, err := Build(context.Background(), planeModel(""), scenarioAgent(), BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestBuildErrors(t *testing.T) {
	badIndex := planeModel("")
	badIndex.Meshes[0].Indices.Narrow[4] = 99

	noTris := planeModel("")
	noTris.Meshes[0].Indices = IndexBuffer{}

	noPos := planeModel("")
	noPos.Meshes[0].Attributes = map[string]int{"normal": 0}

	badAgent := scenarioAgent()
	badAgent.VertsPerPoly = 9
	otherMesh := scenarioAgent()
	otherMesh.ConcernedMeshIndex = 1

	tests := []struct {
		name  string
		model *Model
		agent AgentConfig
		want  error
	}{
		{"bad index", badIndex, scenarioAgent(), ErrVoxelizationFailed},
		{"no triangles", noTris, scenarioAgent(), ErrVoxelizationFailed},
		{"no position", noPos, scenarioAgent(), ErrMissingAttribute},
		{"bad agent", planeModel(""), badAgent, ErrInvalidConfig},
		{"missing mesh", planeModel(""), otherMesh, ErrNoSuchMesh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := Build(context.Background(), tt.model, tt.agent, BuildOptions{})
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, blob.Empty())
		})
	}
}

func TestBuildLogsRejectedConfig(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	agent := scenarioAgent()
	agent.CellSize = 0
	_, err := Build(context.Background(), planeModel(""), agent, BuildOptions{Logger: zap.New(core)})
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.DPanicLevel).Len())
}

func TestBuildHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, planeModel(""), scenarioAgent(), BuildOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildSelectsConcernedMesh(t *testing.T) {
	m := &Model{Meshes: []SourceMesh{
		quadMesh([4]float32{0, 0, 10, 10}),
		quadMesh([4]float32{0, 0, 20, 20}),
	}}
	agent := scenarioAgent()
	agent.ConcernedMeshIndex = 1
	blob, err := Build(context.Background(), m, agent, BuildOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 20*1.41421356, blob.AreaSize, 1e-3)
}
