// Package navmesh bakes triangle geometry into a Detour navigation mesh,
// caches the result next to the source file and answers path queries.
package navmesh

import (
	"github.com/go-gl/mathgl/mgl32"
)

// MaxPathLength bounds both the polygon corridor and the waypoints of a Path.
const MaxPathLength = 256

// FlagWalk marks polygons built from walkable area. The default query filter
// only visits flagged polygons.
const FlagWalk = 0x01

// IndexBuffer holds triangle indices in either 16 or 32 bit form. Exactly one
// of the slices is expected to be set; Wide wins when both are.
type IndexBuffer struct {
	Narrow []uint16
	Wide   []uint32
}

func (b IndexBuffer) Len() int {
	if b.Wide != nil {
		return len(b.Wide)
	}
	return len(b.Narrow)
}

// Widen returns the indices as int32, the form the rasterizer consumes.
func (b IndexBuffer) Widen() []int32 {
	res := make([]int32, b.Len())
	if b.Wide != nil {
		for i, v := range b.Wide {
			res[i] = int32(v)
		}
		return res
	}
	for i, v := range b.Narrow {
		res[i] = int32(v)
	}
	return res
}

// SourceMesh is one mesh of a model: interleaved vertex records plus triangles.
type SourceMesh struct {
	Vertices    []byte
	Stride      int
	Attributes  map[string]int // attribute name -> byte offset of a float32 triple
	VertexCount int
	Indices     IndexBuffer
}

func (m *SourceMesh) TriangleCount() int { return m.Indices.Len() / 3 }

// Model is a geometry file and its meshes. The cache lives at File + ".nav".
type Model struct {
	File   string
	Meshes []SourceMesh
}

// Blob is an assembled navigation tile. It is never mutated after creation.
type Blob struct {
	Data     []byte
	AreaSize float32 // length of the bounding box diagonal
}

func (b Blob) Empty() bool { return len(b.Data) == 0 }

// Path is a waypoint sequence in world space; empty means no path.
type Path []mgl32.Vec3
