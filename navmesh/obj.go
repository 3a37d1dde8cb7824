package navmesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// objMaxFaceVerts caps the vertices read from one face record.
const objMaxFaceVerts = 32

// objLoader accumulates the v and f records of a Wavefront OBJ file.
type objLoader struct {
	verts []float32
	tris  []uint32
}

// LoadOBJ reads a Wavefront OBJ file into a single mesh model. Faces are fan
// triangulated; texture and normal records are ignored.
func LoadOBJ(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ReadOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.File = path
	return m, nil
}

// ReadOBJ parses OBJ records from r. The returned model has no File.
func ReadOBJ(r io.Reader) (*Model, error) {
	var l objLoader
	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		row := strings.TrimSpace(sc.Text())
		if row == "" || strings.HasPrefix(row, "#") {
			continue
		}
		if err := l.parseRow(strings.Fields(row)); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &Model{Meshes: []SourceMesh{l.mesh()}}, nil
}

func (l *objLoader) parseRow(ss []string) error {
	switch ss[0] {
	case "v":
		return l.parseVertex(ss[1:])
	case "f":
		return l.parseFace(ss[1:])
	}
	return nil
}

func (l *objLoader) parseVertex(ss []string) error {
	if len(ss) < 3 {
		return fmt.Errorf("vertex needs 3 coordinates, got %d", len(ss))
	}
	for _, s := range ss[:3] {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return err
		}
		l.verts = append(l.verts, float32(v))
	}
	return nil
}

func (l *objLoader) parseFace(ss []string) error {
	nverts := len(l.verts) / 3
	face := make([]int, 0, min(len(ss), objMaxFaceVerts))
	for _, s := range ss {
		if len(face) == objMaxFaceVerts {
			break
		}
		// v, v/vt, v//vn and v/vt/vn all start with the position index.
		vs, _, _ := strings.Cut(s, "/")
		vi, err := strconv.Atoi(vs)
		if err != nil {
			return err
		}
		if vi < 0 {
			vi += nverts
		} else {
			vi--
		}
		if vi < 0 || vi >= nverts {
			return fmt.Errorf("face index %s out of range [1,%d]", vs, nverts)
		}
		face = append(face, vi)
	}
	for i := 2; i < len(face); i++ {
		l.tris = append(l.tris, uint32(face[0]), uint32(face[i-1]), uint32(face[i]))
	}
	return nil
}

func (l *objLoader) mesh() SourceMesh {
	const stride = 12
	n := len(l.verts) / 3
	buf := make([]byte, n*stride)
	for i, v := range l.verts {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	mesh := SourceMesh{
		Vertices:    buf,
		Stride:      stride,
		Attributes:  map[string]int{"position": 0},
		VertexCount: n,
	}
	if n <= math.MaxUint16+1 {
		narrow := make([]uint16, len(l.tris))
		for i, t := range l.tris {
			narrow[i] = uint16(t)
		}
		mesh.Indices.Narrow = narrow
	} else {
		mesh.Indices.Wide = l.tris
	}
	return mesh
}
