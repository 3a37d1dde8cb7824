package navmesh

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// interleaved packs (normal, position) records of 24 bytes each.
func interleaved(positions []float32) []byte {
	n := len(positions) / 3
	buf := make([]byte, n*24)
	for i := 0; i < n; i++ {
		rec := buf[i*24:]
		binary.LittleEndian.PutUint32(rec[4:], math.Float32bits(1)) // normal.y
		for j := 0; j < 3; j++ {
			binary.LittleEndian.PutUint32(rec[12+j*4:], math.Float32bits(positions[i*3+j]))
		}
	}
	return buf
}

func TestExtractPositionsInterleaved(t *testing.T) {
	want := []float32{1, 2, 3, -4, 5.5, 6, 7, 8, -9.25}
	mesh := &SourceMesh{
		Vertices:    interleaved(want),
		Stride:      24,
		Attributes:  map[string]int{"normal": 0, "pos": 12},
		VertexCount: 3,
	}
	got, err := ExtractPositions(mesh)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	normals, err := ExtractPositions(mesh, "normal")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0, 0, 1, 0, 0, 1, 0}, normals)
}

func TestExtractPositionsFallsBackToPosition(t *testing.T) {
	mesh := &SourceMesh{
		Vertices:    interleaved([]float32{1, 2, 3}),
		Stride:      24,
		Attributes:  map[string]int{"position": 12},
		VertexCount: 1,
	}
	got, err := ExtractPositions(mesh)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, got)
}

func TestExtractPositionsErrors(t *testing.T) {
	buf := interleaved([]float32{1, 2, 3, 4, 5, 6})
	tests := []struct {
		name string
		mesh SourceMesh
		want error
	}{
		{"no attribute", SourceMesh{Vertices: buf, Stride: 24, Attributes: map[string]int{"uv": 0}, VertexCount: 2}, ErrMissingAttribute},
		{"nil attributes", SourceMesh{Vertices: buf, Stride: 24, VertexCount: 2}, ErrMissingAttribute},
		{"short buffer", SourceMesh{Vertices: buf[:30], Stride: 24, Attributes: map[string]int{"pos": 12}, VertexCount: 2}, ErrMalformedVertexBuffer},
		{"offset overruns stride", SourceMesh{Vertices: buf, Stride: 24, Attributes: map[string]int{"pos": 16}, VertexCount: 2}, ErrMalformedVertexBuffer},
		{"negative offset", SourceMesh{Vertices: buf, Stride: 24, Attributes: map[string]int{"pos": -4}, VertexCount: 2}, ErrMalformedVertexBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractPositions(&tt.mesh)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIndexBufferWiden(t *testing.T) {
	assert.Equal(t, []int32{0, 1, 2}, IndexBuffer{Narrow: []uint16{0, 1, 2}}.Widen())
	assert.Equal(t, []int32{3, 4, 70000}, IndexBuffer{Wide: []uint32{3, 4, 70000}}.Widen())
	both := IndexBuffer{Narrow: []uint16{9}, Wide: []uint32{1, 2, 3}}
	assert.Equal(t, 3, both.Len())
	assert.Equal(t, []int32{1, 2, 3}, both.Widen())
}
