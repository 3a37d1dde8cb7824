package navmesh

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DefaultPositionNames are tried in order when ExtractPositions gets no names.
var DefaultPositionNames = []string{"pos", "position"}

// ExtractPositions reads one float32 triple per vertex from the first
// attribute in names (DefaultPositionNames when empty) found on mesh.
// The result is packed as x, y, z per vertex.
func ExtractPositions(mesh *SourceMesh, names ...string) ([]float32, error) {
	if len(names) == 0 {
		names = DefaultPositionNames
	}
	offset, found := 0, ""
	for _, name := range names {
		if off, ok := mesh.Attributes[name]; ok {
			offset, found = off, name
			break
		}
	}
	if found == "" {
		return nil, fmt.Errorf("%w: tried %v", ErrMissingAttribute, names)
	}
	if offset < 0 || offset+12 > mesh.Stride {
		return nil, fmt.Errorf("%w: attribute %q at offset %d overruns stride %d",
			ErrMalformedVertexBuffer, found, offset, mesh.Stride)
	}
	if mesh.VertexCount < 0 || len(mesh.Vertices) < mesh.VertexCount*mesh.Stride {
		return nil, fmt.Errorf("%w: %d bytes for %d vertices of stride %d",
			ErrMalformedVertexBuffer, len(mesh.Vertices), mesh.VertexCount, mesh.Stride)
	}

	res := make([]float32, mesh.VertexCount*3)
	for i := 0; i < mesh.VertexCount; i++ {
		rec := mesh.Vertices[i*mesh.Stride+offset:]
		res[i*3+0] = math.Float32frombits(binary.LittleEndian.Uint32(rec[0:]))
		res[i*3+1] = math.Float32frombits(binary.LittleEndian.Uint32(rec[4:]))
		res[i*3+2] = math.Float32frombits(binary.LittleEndian.Uint32(rec[8:]))
	}
	return res, nil
}
