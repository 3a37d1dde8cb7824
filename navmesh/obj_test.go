package navmesh

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadOBJ(t *testing.T) {
	src := `# a unit quad and a triangle
v 0 0 0
v 1 0 0
v 1 0 1
v 0 0 1
vt 0 0
vn 0 1 0
f 1/1/1 2/1/1 3/1/1 4/1/1

v 2 0 0
f -3 -2 -1
f 1//1 3//1 5//1
`
	m, err := ReadOBJ(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, m.Meshes, 1)
	mesh := &m.Meshes[0]
	assert.Equal(t, 5, mesh.VertexCount)
	assert.Equal(t, 12, mesh.Stride)
	assert.Equal(t, []uint16{0, 1, 2, 0, 2, 3, 2, 3, 4, 0, 2, 4}, mesh.Indices.Narrow)
	assert.Nil(t, mesh.Indices.Wide)

	pos, err := ExtractPositions(mesh)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 1, 0, 0, 1, 0, 1, 0, 0, 1, 2, 0, 0}, pos)
}

func TestReadOBJErrors(t *testing.T) {
	tests := map[string]string{
		"short vertex":    "v 1 2\n",
		"bad coordinate":  "v 1 x 3\n",
		"index too large": "v 0 0 0\nv 1 0 0\nv 1 0 1\nf 1 2 4\n",
		"zero index":      "v 0 0 0\nv 1 0 0\nv 1 0 1\nf 0 1 2\n",
		"bad index":       "v 0 0 0\nf a b c\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadOBJ(strings.NewReader(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadOBJAndBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plane.obj")
	src := "v 0 0 0\nv 10 0 0\nv 10 0 10\nv 0 0 10\nf 1 4 3 2\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	m, err := LoadOBJ(path)
	require.NoError(t, err)
	assert.Equal(t, path, m.File)

	blob, err := Build(context.Background(), m, scenarioAgent(), BuildOptions{})
	require.NoError(t, err)
	assert.False(t, blob.Empty())

	_, err = LoadOBJ(filepath.Join(t.TempDir(), "missing.obj"))
	assert.Error(t, err)
}
