package recast

import (
	"testing"

	"github.com/gorustyt/navbake/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestContext() *RcContext {
	return NewRcContext(zap.NewNop())
}

func TestCalcBounds(t *testing.T) {
	verts := []float32{1, 2, 3}
	bmin, bmax := CalcBounds(verts, 1)
	assert.Equal(t, [3]float32{1, 2, 3}, bmin, "bounds of one vector")
	assert.Equal(t, [3]float32{1, 2, 3}, bmax, "bounds of one vector")

	verts = []float32{
		1, 2, 3,
		0, 2, 5,
	}
	bmin, bmax = CalcBounds(verts, 2)
	assert.Equal(t, [3]float32{0, 2, 3}, bmin, "bounds of more than one vector")
	assert.Equal(t, [3]float32{1, 2, 5}, bmax, "bounds of more than one vector")
}

func TestCalcGridSize(t *testing.T) {
	bmin, bmax := CalcBounds([]float32{1, 2, 3, 0, 2, 6}, 2)
	width, height := CalcGridSize(bmin, bmax, 1.5)
	assert.Equal(t, 1, width)
	assert.Equal(t, 2, height)
}

func TestCreateHeightfield(t *testing.T) {
	bmin, bmax := CalcBounds([]float32{1, 2, 3, 0, 2, 6}, 2)
	width, height := CalcGridSize(bmin, bmax, 1.5)
	hf := CreateHeightfield(width, height, bmin, bmax, 1.5, 2)

	assert.Equal(t, width, hf.Width)
	assert.Equal(t, height, hf.Height)
	assert.Equal(t, bmin, hf.Bmin)
	assert.Equal(t, bmax, hf.Bmax)
	assert.Equal(t, float32(1.5), hf.Cs)
	assert.Equal(t, float32(2), hf.Ch)
	assert.Len(t, hf.Spans, width*height)
	assert.Nil(t, hf.pools)
	assert.Nil(t, hf.freelist)
}

func TestMarkWalkableTriangles(t *testing.T) {
	verts := []float32{
		0, 0, 0,
		1, 0, 0,
		0, 0, -1,
	}
	walkableTri := []int32{0, 1, 2}
	unwalkableTri := []int32{0, 2, 1}

	areas := []uint8{RC_NULL_AREA}
	MarkWalkableTriangles(45, verts, walkableTri, areas)
	assert.Equal(t, uint8(RC_WALKABLE_AREA), areas[0], "one walkable triangle")

	areas = []uint8{RC_NULL_AREA}
	MarkWalkableTriangles(45, verts, unwalkableTri, areas)
	assert.Equal(t, uint8(RC_NULL_AREA), areas[0], "one non-walkable triangle")

	areas = []uint8{42}
	MarkWalkableTriangles(45, verts, unwalkableTri, areas)
	assert.Equal(t, uint8(42), areas[0], "non-walkable triangle area ids are not modified")

	areas = []uint8{RC_NULL_AREA}
	MarkWalkableTriangles(0, verts, walkableTri, areas)
	assert.Equal(t, uint8(RC_NULL_AREA), areas[0], "slopes equal to the max slope are unwalkable")
}

func TestClearUnwalkableTriangles(t *testing.T) {
	verts := []float32{
		0, 0, 0,
		1, 0, 0,
		0, 0, -1,
	}
	areas := []uint8{42}
	ClearUnwalkableTriangles(45, verts, []int32{0, 2, 1}, areas)
	assert.Equal(t, uint8(RC_NULL_AREA), areas[0])

	areas = []uint8{42}
	ClearUnwalkableTriangles(45, verts, []int32{0, 1, 2}, areas)
	assert.Equal(t, uint8(42), areas[0])

	areas = []uint8{42}
	ClearUnwalkableTriangles(0, verts, []int32{0, 1, 2}, areas)
	assert.Equal(t, uint8(RC_NULL_AREA), areas[0])
}

func TestAddSpan(t *testing.T) {
	newHF := func() *RcHeightfield {
		bmin, bmax := CalcBounds([]float32{1, 2, 3, 0, 2, 6}, 2)
		w, h := CalcGridSize(bmin, bmax, 1.5)
		return CreateHeightfield(w, h, bmin, bmax, 1.5, 2)
	}
	const area = 42
	const mergeThr = 1

	t.Run("empty column", func(t *testing.T) {
		hf := newHF()
		require.NoError(t, AddSpan(hf, 0, 0, 0, 1, area, mergeThr))
		s := hf.Spans[0]
		require.NotNil(t, s)
		assert.Equal(t, uint16(0), s.Smin)
		assert.Equal(t, uint16(1), s.Smax)
		assert.Equal(t, uint8(area), s.Area)
		assert.Nil(t, s.Next)
	})

	t.Run("merge with existing span", func(t *testing.T) {
		hf := newHF()
		require.NoError(t, AddSpan(hf, 0, 0, 0, 1, area, mergeThr))
		require.NoError(t, AddSpan(hf, 0, 0, 1, 2, area, mergeThr))
		s := hf.Spans[0]
		require.NotNil(t, s)
		assert.Equal(t, uint16(0), s.Smin)
		assert.Equal(t, uint16(2), s.Smax)
		assert.Equal(t, uint8(area), s.Area)
		assert.Nil(t, s.Next)
	})

	t.Run("merge with spans above and below", func(t *testing.T) {
		hf := newHF()
		require.NoError(t, AddSpan(hf, 0, 0, 0, 1, area, mergeThr))
		require.NoError(t, AddSpan(hf, 0, 0, 2, 3, area, mergeThr))
		require.NotNil(t, hf.Spans[0].Next)
		assert.Equal(t, uint16(2), hf.Spans[0].Next.Smin)

		require.NoError(t, AddSpan(hf, 0, 0, 1, 2, area, mergeThr))
		s := hf.Spans[0]
		assert.Equal(t, uint16(0), s.Smin)
		assert.Equal(t, uint16(3), s.Smax)
		assert.Nil(t, s.Next)
	})

	t.Run("larger area wins within merge threshold", func(t *testing.T) {
		hf := newHF()
		require.NoError(t, AddSpan(hf, 0, 0, 0, 4, 1, mergeThr))
		require.NoError(t, AddSpan(hf, 0, 0, 2, 5, 7, mergeThr))
		assert.Equal(t, uint8(7), hf.Spans[0].Area)
	})

	t.Run("invalid", func(t *testing.T) {
		hf := newHF()
		assert.ErrorIs(t, AddSpan(hf, -1, 0, 0, 1, area, mergeThr), ErrInvalidInput)
		assert.ErrorIs(t, AddSpan(hf, 0, hf.Height, 0, 1, area, mergeThr), ErrInvalidInput)
		assert.ErrorIs(t, AddSpan(hf, 0, 0, 2, 2, area, mergeThr), ErrInvalidInput)
	})

	t.Run("freed spans are reused", func(t *testing.T) {
		hf := newHF()
		require.NoError(t, AddSpan(hf, 0, 0, 0, 1, area, mergeThr))
		require.NoError(t, AddSpan(hf, 0, 0, 1, 2, area, mergeThr))
		pools := 0
		for p := hf.pools; p != nil; p = p.next {
			pools++
		}
		assert.Equal(t, 1, pools)
		assert.NotNil(t, hf.freelist)
	})
}

func TestRasterizeTriangle(t *testing.T) {
	verts := []float32{
		0, 0, 0,
		1, 0, 0,
		0, 0, -1,
	}
	bmin, bmax := CalcBounds(verts, 3)
	width, height := CalcGridSize(bmin, bmax, 0.5)
	solid := CreateHeightfield(width, height, bmin, bmax, 0.5, 0.5)

	RasterizeTriangle(newTestContext(), verts[0:], verts[3:], verts[6:], 42, solid, 1)

	require.NotNil(t, solid.Spans[0+0*width])
	assert.Nil(t, solid.Spans[1+0*width])
	require.NotNil(t, solid.Spans[0+1*width])
	require.NotNil(t, solid.Spans[1+1*width])

	for _, idx := range []int{0 + 0*width, 0 + 1*width, 1 + 1*width} {
		s := solid.Spans[idx]
		assert.Equal(t, uint16(0), s.Smin)
		assert.Equal(t, uint16(1), s.Smax)
		assert.Equal(t, uint8(42), s.Area)
		assert.Nil(t, s.Next)
	}
}

func TestRasterizeTriangleOutsideHeightfield(t *testing.T) {
	// Overlapping bounding boxes but a non-overlapping triangle.
	hf := CreateHeightfield(10, 10, [3]float32{0, 0, 0}, [3]float32{10, 10, 10}, 1, 1)
	verts := []float32{
		-10.0, 5.5, -10.0,
		-10.0, 5.5, 3,
		3.0, 5.5, -10.0,
	}
	RasterizeTriangle(newTestContext(), verts[0:], verts[3:], verts[6:], 42, hf, 1)
	for _, s := range hf.Spans {
		assert.Nil(t, s)
	}
}

func TestRasterizeSkinnyTriangles(t *testing.T) {
	cases := map[string][]float32{
		"along x axis": {
			5, 0, 0.005,
			5, 0, -0.005,
			-5, 0, 0.005,

			-5, 0, 0.005,
			5, 0, -0.005,
			-5, 0, -0.005,
		},
		"along z axis": {
			0.005, 0, 5,
			-0.005, 0, 5,
			0.005, 0, -5,

			0.005, 0, -5,
			-0.005, 0, 5,
			-0.005, 0, -5,
		},
	}
	for name, verts := range cases {
		t.Run(name, func(t *testing.T) {
			bmin, bmax := CalcBounds(verts, 6)
			w, h := CalcGridSize(bmin, bmax, 1)
			hf := CreateHeightfield(w, h, bmin, bmax, 1, 1)
			err := RasterizeTriangles(newTestContext(), verts, []int32{0, 1, 2, 3, 4, 5}, []uint8{42, 42}, hf, 1)
			require.NoError(t, err)
		})
	}
}

func TestRasterizeTriangles(t *testing.T) {
	verts := []float32{
		0, 0, 0,
		1, 0, 0,
		0, 0, -1,
		0, 0, 1,
	}
	tris := []int32{
		0, 1, 2,
		0, 3, 1,
	}
	areas := []uint8{1, 2}
	bmin, bmax := CalcBounds(verts, 4)
	width, height := CalcGridSize(bmin, bmax, 0.5)
	solid := CreateHeightfield(width, height, bmin, bmax, 0.5, 0.5)

	require.NoError(t, RasterizeTriangles(newTestContext(), verts, tris, areas, solid, 1))

	assert.NotNil(t, solid.Spans[0+0*width])
	assert.NotNil(t, solid.Spans[0+1*width])
	assert.NotNil(t, solid.Spans[0+2*width])
	assert.NotNil(t, solid.Spans[0+3*width])
	assert.Nil(t, solid.Spans[1+0*width])
	assert.NotNil(t, solid.Spans[1+1*width])
	assert.NotNil(t, solid.Spans[1+2*width])
	assert.Nil(t, solid.Spans[1+3*width])

	expectArea := map[int]uint8{
		0 + 0*width: 1,
		0 + 1*width: 1,
		0 + 2*width: 2,
		0 + 3*width: 2,
		1 + 1*width: 1,
		1 + 2*width: 2,
	}
	for idx, area := range expectArea {
		s := solid.Spans[idx]
		require.NotNil(t, s)
		assert.Equal(t, uint16(0), s.Smin)
		assert.Equal(t, uint16(1), s.Smax)
		assert.Equal(t, area, s.Area)
		assert.Nil(t, s.Next)
	}
}

func TestRasterizeTrianglesInvalidInput(t *testing.T) {
	ctx := newTestContext()
	hf := CreateHeightfield(2, 2, [3]float32{}, [3]float32{1, 1, 1}, 0.5, 0.5)
	verts := []float32{0, 0, 0, 1, 0, 0, 0, 0, 1}

	assert.ErrorIs(t, RasterizeTriangles(ctx, verts, nil, nil, hf, 1), ErrInvalidInput)
	assert.ErrorIs(t, RasterizeTriangles(ctx, verts, []int32{0, 1, 2}, nil, hf, 1), ErrInvalidInput)
	assert.ErrorIs(t, RasterizeTriangles(ctx, verts, []int32{0, 1, 3}, []uint8{1}, hf, 1), ErrInvalidInput)
	assert.ErrorIs(t, RasterizeTriangles(ctx, verts, []int32{0, -1, 2}, []uint8{1}, hf, 1), ErrInvalidInput)
}

func TestDividePoly(t *testing.T) {
	in := []float32{
		0, 0, 0,
		2, 0, 0,
		2, 0, 2,
		0, 0, 2,
	}
	out1 := make([]float32, maxClipVerts*3)
	out2 := make([]float32, maxClipVerts*3)
	n1, n2 := dividePoly(in, 4, out1, out2, 1, RC_AXIS_X)
	assert.Equal(t, 4, n1)
	assert.Equal(t, 4, n2)
	for i := 0; i < n1; i++ {
		assert.LessOrEqual(t, out1[i*3], float32(1))
	}
	for i := 0; i < n2; i++ {
		assert.GreaterOrEqual(t, out2[i*3], float32(1))
	}
}

func TestFilterLowHangingWalkableObstacles(t *testing.T) {
	hf := CreateHeightfield(1, 1, [3]float32{}, [3]float32{1, 10, 1}, 1, 1)
	require.NoError(t, AddSpan(hf, 0, 0, 0, 1, RC_WALKABLE_AREA, 1))
	require.NoError(t, AddSpan(hf, 0, 0, 3, 4, RC_NULL_AREA, 1))
	require.NoError(t, AddSpan(hf, 0, 0, 6, 7, RC_NULL_AREA, 1))

	FilterLowHangingWalkableObstacles(newTestContext(), 3, hf)

	s := hf.Spans[0]
	assert.Equal(t, uint8(RC_WALKABLE_AREA), s.Area)
	assert.Equal(t, uint8(RC_WALKABLE_AREA), s.Next.Area, "obstacle within climb becomes walkable")
	assert.Equal(t, uint8(RC_NULL_AREA), s.Next.Next.Area, "walkability does not propagate past one obstacle")
}

func TestFilterWalkableLowHeightSpans(t *testing.T) {
	hf := CreateHeightfield(1, 1, [3]float32{}, [3]float32{1, 10, 1}, 1, 1)
	require.NoError(t, AddSpan(hf, 0, 0, 0, 1, RC_WALKABLE_AREA, 1))
	require.NoError(t, AddSpan(hf, 0, 0, 5, 6, RC_WALKABLE_AREA, 1))

	FilterWalkableLowHeightSpans(newTestContext(), 10, hf)

	assert.Equal(t, uint8(RC_NULL_AREA), hf.Spans[0].Area)
	assert.Equal(t, uint8(RC_WALKABLE_AREA), hf.Spans[0].Next.Area)
}

// curbField is a 3x3 field where every column holds a floor span (0,1) with
// an unwalkable curb (2,3) just above it.
func curbField(t *testing.T) *RcHeightfield {
	t.Helper()
	hf := CreateHeightfield(3, 3, [3]float32{}, [3]float32{3, 10, 3}, 1, 1)
	for z := 0; z < 3; z++ {
		for x := 0; x < 3; x++ {
			require.NoError(t, AddSpan(hf, x, z, 0, 1, RC_WALKABLE_AREA, 1))
			require.NoError(t, AddSpan(hf, x, z, 2, 3, RC_NULL_AREA, 1))
		}
	}
	return hf
}

func walkableSpans(s *RcSpan) (res [][2]uint16) {
	for ; s != nil; s = s.Next {
		if s.Area != RC_NULL_AREA {
			res = append(res, [2]uint16{s.Smin, s.Smax})
		}
	}
	return res
}

func TestFilterHeightfieldOrder(t *testing.T) {
	const walkableHeight, walkableClimb = 5, 2
	ctx := newTestContext()

	hf := curbField(t)
	FilterHeightfield(ctx, walkableHeight, walkableClimb, hf)
	assert.Equal(t, [][2]uint16{{2, 3}}, walkableSpans(hf.Spans[1+1*3]),
		"the curb top becomes floor and the squeezed span below is dropped")

	// Clearance first leaves nothing for the curb to stand on.
	hf = curbField(t)
	FilterWalkableLowHeightSpans(ctx, walkableHeight, hf)
	FilterLowHangingWalkableObstacles(ctx, walkableClimb, hf)
	FilterLedgeSpans(ctx, walkableHeight, walkableClimb, hf)
	assert.Empty(t, walkableSpans(hf.Spans[1+1*3]))
}

func TestFilterLedgeSpans(t *testing.T) {
	t.Run("isolated span is a ledge", func(t *testing.T) {
		hf := CreateHeightfield(3, 3, [3]float32{}, [3]float32{3, 10, 3}, 1, 1)
		require.NoError(t, AddSpan(hf, 1, 1, 0, 5, RC_WALKABLE_AREA, 1))
		FilterLedgeSpans(newTestContext(), 2, 1, hf)
		assert.Equal(t, uint8(RC_NULL_AREA), hf.Spans[1+1*3].Area)
	})

	t.Run("flat floor keeps interior", func(t *testing.T) {
		hf := CreateHeightfield(3, 3, [3]float32{}, [3]float32{3, 10, 3}, 1, 1)
		for z := 0; z < 3; z++ {
			for x := 0; x < 3; x++ {
				require.NoError(t, AddSpan(hf, x, z, 0, 1, RC_WALKABLE_AREA, 1))
			}
		}
		FilterLedgeSpans(newTestContext(), 2, 1, hf)
		assert.Equal(t, uint8(RC_WALKABLE_AREA), hf.Spans[1+1*3].Area)
		assert.Equal(t, uint8(RC_NULL_AREA), hf.Spans[0].Area, "grid edge counts as a drop")
	})
}

// Flat 10x10 plane at y=0, wound to face up.
var planeVerts = []float32{
	0, 0, 0,
	10, 0, 0,
	10, 0, 10,
	0, 0, 10,
}

var planeTris = []int32{
	0, 2, 1,
	0, 3, 2,
}

const (
	planeCs             = 0.3
	planeCh             = 0.2
	planeWalkableHeight = 10
	planeWalkableClimb  = 4
	planeWalkableRadius = 2
)

func buildPlaneCompact(t *testing.T, ctx *RcContext) *RcCompactHeightfield {
	t.Helper()
	bmin, bmax := CalcBounds(planeVerts, 4)
	w, h := CalcGridSize(bmin, bmax, planeCs)
	hf := CreateHeightfield(w, h, bmin, bmax, planeCs, planeCh)

	areas := make([]uint8, len(planeTris)/3)
	MarkWalkableTriangles(45, planeVerts, planeTris, areas)
	require.Equal(t, []uint8{RC_WALKABLE_AREA, RC_WALKABLE_AREA}, areas)
	require.NoError(t, RasterizeTriangles(ctx, planeVerts, planeTris, areas, hf, planeWalkableClimb))

	FilterHeightfield(ctx, planeWalkableHeight, planeWalkableClimb, hf)

	chf, err := BuildCompactHeightfield(ctx, planeWalkableHeight, planeWalkableClimb, hf)
	require.NoError(t, err)
	return chf
}

func spanAt(chf *RcCompactHeightfield, x, z int) int {
	c := chf.Cells[x+z*chf.Width]
	if c.Count == 0 {
		return -1
	}
	return int(c.Index)
}

func TestBuildCompactHeightfield(t *testing.T) {
	chf := buildPlaneCompact(t, newTestContext())

	assert.Greater(t, chf.SpanCount, 0)
	assert.Len(t, chf.Spans, chf.SpanCount)
	assert.Len(t, chf.Areas, chf.SpanCount)

	mid := chf.Width / 2
	i := spanAt(chf, mid, mid)
	require.GreaterOrEqual(t, i, 0)
	for dir := 0; dir < 4; dir++ {
		assert.NotEqual(t, RC_NOT_CONNECTED, GetCon(&chf.Spans[i], dir), "interior span connects in dir %d", dir)
	}
	assert.Equal(t, -1, spanAt(chf, 0, mid), "ledge filter removes the outer ring")
}

func TestErodeWalkableArea(t *testing.T) {
	ctx := newTestContext()
	chf := buildPlaneCompact(t, ctx)
	ErodeWalkableArea(ctx, planeWalkableRadius, chf)

	mid := chf.Width / 2
	edge := spanAt(chf, 1, mid)
	require.GreaterOrEqual(t, edge, 0)
	assert.Equal(t, uint8(RC_NULL_AREA), chf.Areas[edge])

	center := spanAt(chf, mid, mid)
	assert.Equal(t, uint8(RC_WALKABLE_AREA), chf.Areas[center])
}

func TestMarkBoxArea(t *testing.T) {
	ctx := newTestContext()
	chf := buildPlaneCompact(t, ctx)
	MarkBoxArea(ctx, [3]float32{4, -1, 4}, [3]float32{6, 1, 6}, 5, chf)

	marked := 0
	for _, a := range chf.Areas {
		if a == 5 {
			marked++
		}
	}
	assert.Greater(t, marked, 0)
	mid := chf.Width / 2
	assert.Equal(t, uint8(5), chf.Areas[spanAt(chf, mid, mid)])
	assert.Equal(t, uint8(RC_WALKABLE_AREA), chf.Areas[spanAt(chf, 2, 2)])
}

func TestMedianFilterWalkableArea(t *testing.T) {
	ctx := newTestContext()
	chf := buildPlaneCompact(t, ctx)
	mid := chf.Width / 2
	i := spanAt(chf, mid, mid)
	chf.Areas[i] = 9

	MedianFilterWalkableArea(ctx, chf)
	assert.Equal(t, uint8(RC_WALKABLE_AREA), chf.Areas[i], "lone area id is smoothed away")
}

func TestBuildRegionsRequiresDistanceField(t *testing.T) {
	ctx := newTestContext()
	chf := buildPlaneCompact(t, ctx)
	assert.Error(t, BuildRegions(ctx, chf, 0, 64, 400))
}

func polyArea2D(mesh *RcPolyMesh, i int) float32 {
	p := mesh.Poly(i)
	var area float32
	n := countPolyVerts(p, mesh.Nvp)
	for j, k := 0, n-1; j < n; k, j = j, j+1 {
		a := mesh.Verts[int(p[k])*3:]
		b := mesh.Verts[int(p[j])*3:]
		area += float32(a[0])*float32(b[2]) - float32(b[0])*float32(a[2])
	}
	return common.Abs(area) * 0.5 * mesh.Cs * mesh.Cs
}

func TestBuildFlatPlane(t *testing.T) {
	ctx := newTestContext()
	chf := buildPlaneCompact(t, ctx)
	ErodeWalkableArea(ctx, planeWalkableRadius, chf)
	BuildDistanceField(ctx, chf)
	assert.Greater(t, chf.MaxDistance, uint16(0))

	require.NoError(t, BuildRegions(ctx, chf, 0, 8*8, 20*20))
	assert.GreaterOrEqual(t, chf.MaxRegions, uint16(1))
	for i := 0; i < chf.SpanCount; i++ {
		if chf.Areas[i] != RC_NULL_AREA {
			assert.NotZero(t, chf.Spans[i].Reg, "walkable span %d has a region", i)
		}
	}

	cset, err := BuildContours(ctx, chf, 1.3, int(12/planeCs), RC_CONTOUR_TESS_WALL_EDGES)
	require.NoError(t, err)
	require.NotEmpty(t, cset.Conts)
	for _, c := range cset.Conts {
		assert.GreaterOrEqual(t, c.NVerts(), 3)
	}

	pmesh, err := BuildPolyMesh(ctx, cset, 6)
	require.NoError(t, err)
	require.Greater(t, pmesh.NPolys, 0)

	var total float32
	y0 := pmesh.Verts[1]
	for i := 0; i < pmesh.NVerts; i++ {
		v := pmesh.Verts[i*3:]
		assert.LessOrEqual(t, int(v[0]), chf.Width)
		assert.LessOrEqual(t, int(v[2]), chf.Height)
		assert.Equal(t, y0, v[1], "flat plane has a single vertex height")
	}
	for i := 0; i < pmesh.NPolys; i++ {
		assert.Equal(t, uint8(RC_WALKABLE_AREA), pmesh.Areas[i])
		total += polyArea2D(pmesh, i)
	}
	// The ledge filter and erosion shave about a metre around the edge.
	assert.InDelta(t, 70, total, 20)

	dmesh, err := BuildPolyMeshDetail(ctx, pmesh, chf, 6*planeCs, 1*planeCh)
	require.NoError(t, err)
	require.Equal(t, pmesh.NPolys, dmesh.NMeshes)
	assert.Len(t, dmesh.Verts, dmesh.NVerts*3)
	assert.Len(t, dmesh.Tris, dmesh.NTris*4)
	for i := 0; i < dmesh.NMeshes; i++ {
		m := dmesh.Meshes[i*4:]
		vbase, nv, tbase, nt := m[0], m[1], m[2], m[3]
		assert.Greater(t, nt, uint32(0), "polygon %d has detail triangles", i)
		for j := tbase; j < tbase+nt; j++ {
			tri := dmesh.Tris[j*4:]
			for k := 0; k < 3; k++ {
				assert.Less(t, uint32(tri[k]), nv)
			}
		}
		for j := vbase; j < vbase+nv; j++ {
			assert.InDelta(t, 0, dmesh.Verts[j*3+1], 0.5)
		}
	}
}

func TestTimerLabelString(t *testing.T) {
	assert.Equal(t, "build_polymesh", RC_TIMER_BUILD_POLYMESH.String())
	assert.Equal(t, "unknown", RC_MAX_TIMERS.String())

	ctx := newTestContext()
	ctx.StopTimer(RC_TIMER_TOTAL)
	assert.Zero(t, ctx.AccumulatedTime(RC_TIMER_TOTAL), "stop without start is ignored")
}

// floorWithBox is a 20x20 floor with a hollow 3x3x3 box standing in the middle.
func floorWithBox() ([]float32, []int32) {
	const lo, hi, top = 8.5, 11.5, 3
	verts := []float32{
		0, 0, 0, 20, 0, 0, 20, 0, 20, 0, 0, 20,
		lo, 0, lo, hi, 0, lo, hi, 0, hi, lo, 0, hi,
		lo, top, lo, hi, top, lo, hi, top, hi, lo, top, hi,
	}
	tris := []int32{
		0, 2, 1, 0, 3, 2, // floor
		8, 10, 9, 8, 11, 10, // lid
		4, 5, 9, 4, 9, 8,
		5, 6, 10, 5, 10, 9,
		6, 7, 11, 6, 11, 10,
		7, 4, 8, 7, 8, 11,
	}
	return verts, tris
}

// polysContaining counts the polygons whose 2D outline holds (x, z) and whose
// height range is within climb of y. Coordinates are in cells.
func polysContaining(mesh *RcPolyMesh, x, z float64, y, climb int) int {
	count := 0
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Poly(i)
		n := countPolyVerts(p, mesh.Nvp)
		ymin, ymax := int(mesh.Verts[int(p[0])*3+1]), int(mesh.Verts[int(p[0])*3+1])
		inside := false
		for j, k := 0, n-1; j < n; k, j = j, j+1 {
			a := mesh.Verts[int(p[j])*3:]
			b := mesh.Verts[int(p[k])*3:]
			ymin, ymax = min(ymin, int(a[1])), max(ymax, int(a[1]))
			ax, az := float64(a[0]), float64(a[2])
			bx, bz := float64(b[0]), float64(b[2])
			if (az > z) != (bz > z) && x < (bx-ax)*(z-az)/(bz-az)+ax {
				inside = !inside
			}
		}
		if inside && y >= ymin-climb && y <= ymax+climb {
			count++
		}
	}
	return count
}

func TestBuildPolyMeshCoversFloorAroundBox(t *testing.T) {
	verts, tris := floorWithBox()
	ctx := newTestContext()

	bmin, bmax := CalcBounds(verts, len(verts)/3)
	w, h := CalcGridSize(bmin, bmax, planeCs)
	hf := CreateHeightfield(w, h, bmin, bmax, planeCs, planeCh)
	areas := make([]uint8, len(tris)/3)
	MarkWalkableTriangles(45, verts, tris, areas)
	require.NoError(t, RasterizeTriangles(ctx, verts, tris, areas, hf, planeWalkableClimb))
	FilterHeightfield(ctx, planeWalkableHeight, planeWalkableClimb, hf)
	chf, err := BuildCompactHeightfield(ctx, planeWalkableHeight, planeWalkableClimb, hf)
	require.NoError(t, err)
	ErodeWalkableArea(ctx, planeWalkableRadius, chf)
	BuildDistanceField(ctx, chf)
	require.NoError(t, BuildRegions(ctx, chf, 0, 8*8, 20*20))
	cset, err := BuildContours(ctx, chf, 1.3, int(12/planeCs), RC_CONTOUR_TESS_WALL_EDGES)
	require.NoError(t, err)
	pmesh, err := BuildPolyMesh(ctx, cset, 6)
	require.NoError(t, err)
	require.Greater(t, pmesh.NPolys, 3, "the box splits the floor into several polygons")

	// Sample just off the cell centre so no point sits on a shared edge.
	const jx, jz = 0.5 + 0.0131, 0.5 + 0.0297
	interior := 0
	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			c := chf.Cells[x+z*chf.Width]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				s := chf.Spans[i]
				if s.Reg == 0 || chf.Areas[i] == RC_NULL_AREA {
					continue
				}
				n := polysContaining(pmesh, float64(x)+jx, float64(z)+jz, int(s.Y), chf.WalkableClimb)
				assert.LessOrEqual(t, n, 1, "span (%d,%d) is under overlapping polygons", x, z)
				// Contour simplification may shave cells right at the border.
				if chf.Dist[i] >= 6 {
					interior++
					assert.Equal(t, 1, n, "interior span (%d,%d) is not covered", x, z)
				}
			}
		}
	}
	assert.Greater(t, interior, w*h/3)
}
