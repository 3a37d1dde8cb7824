package detour

import (
	"errors"
	"testing"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/recast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const null = meshNullIdx

// twoSquares returns a tile made of two unit squares sharing the edge x=1.
func twoSquares(connected bool) *NavMeshCreateParams {
	na, nb := uint16(1), uint16(0)
	if !connected {
		na, nb = null, null
	}
	return &NavMeshCreateParams{
		Verts: []uint16{
			0, 0, 0,
			1, 0, 0,
			2, 0, 0,
			2, 0, 1,
			1, 0, 1,
			0, 0, 1,
		},
		VertCount: 6,
		Polys: []uint16{
			0, 1, 4, 5, null, null, null, na, null, null, null, null,
			1, 2, 3, 4, null, null, null, null, null, nb, null, null,
		},
		PolyFlags:      []uint16{1, 1},
		PolyAreas:      []uint8{recast.RC_WALKABLE_AREA, recast.RC_WALKABLE_AREA},
		PolyCount:      2,
		Nvp:            6,
		Bmin:           [3]float32{0, 0, 0},
		Bmax:           [3]float32{2, 1, 1},
		WalkableHeight: 2,
		WalkableRadius: 0.5,
		WalkableClimb:  0.5,
		Cs:             1,
		Ch:             1,
		BuildBvTree:    true,
	}
}

func newTwoSquares(t *testing.T, connected bool) *DtNavMesh {
	t.Helper()
	data, err := CreateNavMeshData(twoSquares(connected))
	require.NoError(t, err)
	nav, err := NewNavMesh(data)
	require.NoError(t, err)
	return nav
}

func TestCreateNavMeshData(t *testing.T) {
	data, err := CreateNavMeshData(twoSquares(true))
	require.NoError(t, err)

	var d NavMeshData
	require.NoError(t, d.FromBin(data))
	h := d.Header
	assert.Equal(t, int32(DT_NAVMESH_MAGIC), h.Magic)
	assert.Equal(t, int32(DT_NAVMESH_VERSION), h.Version)
	assert.Equal(t, int32(2), h.PolyCount)
	assert.Equal(t, int32(6), h.VertCount)
	assert.Equal(t, int32(8), h.MaxLinkCount, "one link per edge")
	assert.Equal(t, int32(4), h.DetailTriCount, "fan triangulation of two quads")
	assert.Equal(t, int32(0), h.DetailVertCount)
	assert.Equal(t, int32(3), h.BvNodeCount)
	assert.Equal(t, float32(1), h.BvQuantFactor)
	assert.Equal(t, dataSize(&h), len(data))

	assert.Equal(t, []float32{2, 0, 1}, d.NavVerts[9:12])
	assert.Equal(t, uint8(4), d.NavPolys[0].VertCount)
	assert.Equal(t, [DT_VERTS_PER_POLYGON]uint16{0, 2, 0, 0, 0, 0}, d.NavPolys[0].Neis)
	assert.Equal(t, [DT_VERTS_PER_POLYGON]uint16{0, 0, 0, 1, 0, 0}, d.NavPolys[1].Neis)
	assert.Equal(t, uint8(recast.RC_WALKABLE_AREA), d.NavPolys[1].GetArea())
	assert.Equal(t, uint8(DT_POLYTYPE_GROUND), d.NavPolys[1].GetType())

	root := d.NavBvtree[0]
	assert.Equal(t, int32(-3), root.I, "root escapes past the whole tree")
	leaves := []int32{d.NavBvtree[1].I, d.NavBvtree[2].I}
	assert.ElementsMatch(t, []int32{0, 1}, leaves)

	assert.Equal(t, data, d.ToBin(), "decode then encode is byte identical")
}

func TestCreateNavMeshDataWithDetail(t *testing.T) {
	p := twoSquares(true)
	// One extra interior vertex on poly 0: five detail verts, four triangles.
	p.DetailMeshes = []uint32{0, 5, 0, 4, 5, 4, 4, 2}
	p.DetailVerts = []float32{
		0, 0, 0, 1, 0, 0, 1, 0, 1, 0, 0, 1, 0.5, 0.1, 0.5,
		1, 0, 0, 2, 0, 0, 2, 0, 1, 1, 0, 1,
	}
	p.DetailVertsCount = 9
	p.DetailTris = []uint8{
		0, 1, 4, 1,
		1, 2, 4, 1,
		2, 3, 4, 1,
		3, 0, 4, 1,
		0, 1, 2, 5,
		0, 2, 3, 20,
	}
	p.DetailTriCount = 6

	data, err := CreateNavMeshData(p)
	require.NoError(t, err)
	var d NavMeshData
	require.NoError(t, d.FromBin(data))
	assert.Equal(t, int32(1), d.Header.DetailVertCount, "polygon verts are not duplicated")
	assert.Equal(t, []float32{0.5, 0.1, 0.5}, d.NavDVerts)
	assert.Equal(t, DtPolyDetail{VertBase: 0, VertCount: 1, TriBase: 0, TriCount: 4}, d.NavDMeshes[0])
	assert.Equal(t, DtPolyDetail{VertBase: 1, VertCount: 0, TriBase: 4, TriCount: 2}, d.NavDMeshes[1])

	nav, err := NewNavMesh(data)
	require.NoError(t, err)
	h, ok, err := nav.GetPolyHeight(nav.EncodePolyId(1, 0), []float32{0.5, 0, 0.5})
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.1, h, 1e-5)
}

func TestCreateNavMeshDataInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *NavMeshCreateParams)
	}{
		{"nvp too large", func(p *NavMeshCreateParams) { p.Nvp = 7 }},
		{"nvp too small", func(p *NavMeshCreateParams) { p.Nvp = 2 }},
		{"too few verts", func(p *NavMeshCreateParams) { p.VertCount = 2 }},
		{"no polys", func(p *NavMeshCreateParams) { p.PolyCount = 0 }},
		{"short flags", func(p *NavMeshCreateParams) { p.PolyFlags = p.PolyFlags[:1] }},
		{"zero cell size", func(p *NavMeshCreateParams) { p.Cs = 0 }},
		{"vertex out of range", func(p *NavMeshCreateParams) { p.Polys[2] = 6 }},
		{"short detail", func(p *NavMeshCreateParams) { p.DetailMeshes = []uint32{0} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := twoSquares(true)
			tt.mutate(p)
			_, err := CreateNavMeshData(p)
			assert.ErrorIs(t, err, ErrInvalidParam)
		})
	}
}

func TestNewNavMeshRejectsBadData(t *testing.T) {
	data, err := CreateNavMeshData(twoSquares(true))
	require.NoError(t, err)

	badMagic := append([]byte(nil), data...)
	badMagic[0] ^= 0xff
	_, err = NewNavMesh(badMagic)
	assert.ErrorIs(t, err, ErrWrongMagic)
	assert.ErrorIs(t, err, ErrFailure)

	badVersion := append([]byte(nil), data...)
	badVersion[4] = 99
	_, err = NewNavMesh(badVersion)
	assert.ErrorIs(t, err, ErrWrongVersion)

	_, err = NewNavMesh(data[:len(data)-4])
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = NewNavMesh(data[:10])
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestNavMeshInternalLinks(t *testing.T) {
	nav := newTwoSquares(t, true)
	tile := nav.GetTile(0)
	require.NotNil(t, tile)
	assert.Nil(t, nav.GetTile(1))

	p0 := &tile.Polys[0]
	require.NotEqual(t, uint32(DT_NULL_LINK), p0.FirstLink)
	link := tile.Links[p0.FirstLink]
	assert.Equal(t, nav.EncodePolyId(1, 1), link.Ref)
	assert.Equal(t, uint8(1), link.Edge)
	assert.Equal(t, uint8(0xff), link.Side)
	assert.Equal(t, uint32(DT_NULL_LINK), link.Next)

	salt, ip := nav.DecodePolyId(link.Ref)
	assert.Equal(t, uint32(1), salt)
	assert.Equal(t, uint32(1), ip)

	assert.False(t, nav.IsValidPolyRef(0))
	assert.False(t, nav.IsValidPolyRef(nav.EncodePolyId(2, 0)), "stale salt")
	assert.False(t, nav.IsValidPolyRef(nav.EncodePolyId(1, 2)))
	assert.True(t, nav.IsValidPolyRef(nav.EncodePolyId(1, 0)))
}

func TestNewDtNavMeshQueryValidatesMaxNodes(t *testing.T) {
	nav := newTwoSquares(t, true)
	for _, n := range []int{0, -1, 65536} {
		_, err := NewDtNavMeshQuery(nav, n)
		assert.ErrorIs(t, err, ErrInvalidParam, "max nodes %d", n)
	}
	q, err := NewDtNavMeshQuery(nav, 65535)
	require.NoError(t, err)
	assert.Equal(t, 65535, q.m_nodePool.GetMaxNodes())
}

func TestQueryPolygonsResultIsOwned(t *testing.T) {
	nav := newTwoSquares(t, true)
	q, err := NewDtNavMeshQuery(nav, 64)
	require.NoError(t, err)
	filter := NewDtQueryFilter()

	left, status := q.QueryPolygons([]float32{0.5, 0, 0.5}, []float32{0.2, 1, 0.2}, filter)
	require.True(t, status.Succeed())
	require.NotEmpty(t, left)
	want := append([]DtPolyRef(nil), left...)

	all, status := q.QueryPolygons([]float32{1, 0, 0.5}, []float32{2, 1, 2}, filter)
	require.True(t, status.Succeed())
	assert.Len(t, all, 2)
	for i := range all {
		all[i] = 0xdead
	}
	_, _, _, status = q.FindNearestPoly([]float32{1.5, 0, 0.5}, []float32{0.5, 1, 0.5}, filter)
	require.True(t, status.Succeed())
	assert.Equal(t, want, left, "later queries leave earlier results alone")
}

func TestFindNearestPoly(t *testing.T) {
	nav := newTwoSquares(t, true)
	q, err := NewDtNavMeshQuery(nav, 64)
	require.NoError(t, err)
	filter := NewDtQueryFilter()
	ext := []float32{0.5, 1, 0.5}

	ref, pt, over, status := q.FindNearestPoly([]float32{0.5, 0.2, 0.5}, ext, filter)
	require.True(t, status.Succeed())
	assert.Equal(t, nav.EncodePolyId(1, 0), ref)
	assert.True(t, over)
	assert.InDelta(t, 0, pt[1], 1e-5)

	ref, _, _, status = q.FindNearestPoly([]float32{1.7, 0, 0.5}, ext, filter)
	require.True(t, status.Succeed())
	assert.Equal(t, nav.EncodePolyId(1, 1), ref)

	// Outside the query box of every polygon.
	ref, _, _, status = q.FindNearestPoly([]float32{10, 0, 10}, ext, filter)
	assert.True(t, status.Succeed())
	assert.Zero(t, ref)

	_, _, _, status = q.FindNearestPoly([]float32{0, 0, 0}, []float32{-1, 1, 1}, filter)
	assert.True(t, status.Failed())
	assert.ErrorIs(t, status.Err(), ErrInvalidParam)

	excluding := NewDtQueryFilter()
	excluding.SetExcludeFlags(1)
	ref, _, _, _ = q.FindNearestPoly([]float32{0.5, 0, 0.5}, ext, excluding)
	assert.Zero(t, ref, "filter hides every polygon")
}

func TestClosestPointOnPolyBoundary(t *testing.T) {
	nav := newTwoSquares(t, true)
	q, err := NewDtNavMeshQuery(nav, 64)
	require.NoError(t, err)
	ref := nav.EncodePolyId(1, 0)

	inside, status := q.ClosestPointOnPolyBoundary(ref, []float32{0.25, 3, 0.75})
	require.True(t, status.Succeed())
	assert.Equal(t, [3]float32{0.25, 3, 0.75}, inside)

	outside, status := q.ClosestPointOnPolyBoundary(ref, []float32{-1, 0, 0.5})
	require.True(t, status.Succeed())
	assert.InDeltaSlice(t, []float32{0, 0, 0.5}, outside[:], 1e-5)

	_, status = q.ClosestPointOnPolyBoundary(0, []float32{0, 0, 0})
	assert.True(t, status.Failed())
}

func TestFindPath(t *testing.T) {
	nav := newTwoSquares(t, true)
	q, err := NewDtNavMeshQuery(nav, 64)
	require.NoError(t, err)
	filter := NewDtQueryFilter()
	r0, r1 := nav.EncodePolyId(1, 0), nav.EncodePolyId(1, 1)
	start := []float32{0.5, 0, 0.5}
	end := []float32{1.5, 0, 0.5}

	path := make([]DtPolyRef, 16)
	n, status := q.FindPath(r0, r1, start, end, filter, path)
	require.Equal(t, DT_SUCCESS, status)
	assert.Equal(t, []DtPolyRef{r0, r1}, path[:n])

	pts := make([]float32, 16*3)
	flags := make([]uint8, 16)
	refs := make([]DtPolyRef, 16)
	count, status := q.FindStraightPath(start, end, path[:n], pts, flags, refs)
	require.True(t, status.Succeed())
	require.Equal(t, 2, count)
	assert.InDeltaSlice(t, start, pts[0:3], 1e-5)
	assert.InDeltaSlice(t, end, pts[3:6], 1e-5)
	assert.Equal(t, uint8(DT_STRAIGHTPATH_START), flags[0])
	assert.Equal(t, uint8(DT_STRAIGHTPATH_END), flags[1])
	assert.Equal(t, r0, refs[0])
	assert.Zero(t, refs[1])

	n, status = q.FindPath(r0, r0, start, start, filter, path)
	assert.Equal(t, DT_SUCCESS, status)
	assert.Equal(t, 1, n)

	_, status = q.FindPath(0, r1, start, end, filter, path)
	assert.True(t, status.Failed())
}

func TestFindPathPartialAndOutOfNodes(t *testing.T) {
	r0 := DtPolyRef(1<<polyBits | 0)
	r1 := DtPolyRef(1<<polyBits | 1)
	start := []float32{0.5, 0, 0.5}
	end := []float32{1.5, 0, 0.5}
	path := make([]DtPolyRef, 16)

	disconnected := newTwoSquares(t, false)
	q, err := NewDtNavMeshQuery(disconnected, 64)
	require.NoError(t, err)
	n, status := q.FindPath(r0, r1, start, end, NewDtQueryFilter(), path)
	assert.True(t, status.Succeed())
	assert.True(t, status.Detail(DT_PARTIAL_RESULT))
	assert.ErrorIs(t, status.Err(), ErrPartialResult)
	assert.Equal(t, []DtPolyRef{r0}, path[:n])

	tiny, err := NewDtNavMeshQuery(newTwoSquares(t, true), 1)
	require.NoError(t, err)
	_, status = tiny.FindPath(r0, r1, start, end, NewDtQueryFilter(), path)
	assert.True(t, status.Detail(DT_OUT_OF_NODES))
	assert.True(t, status.Detail(DT_PARTIAL_RESULT))
	assert.ErrorIs(t, status.Err(), ErrOutOfNodes)
}

func TestFindPathBufferTooSmall(t *testing.T) {
	nav := newTwoSquares(t, true)
	q, err := NewDtNavMeshQuery(nav, 64)
	require.NoError(t, err)
	path := make([]DtPolyRef, 1)
	n, status := q.FindPath(nav.EncodePolyId(1, 0), nav.EncodePolyId(1, 1),
		[]float32{0.5, 0, 0.5}, []float32{1.5, 0, 0.5}, NewDtQueryFilter(), path)
	assert.Equal(t, 1, n)
	assert.True(t, status.Detail(DT_BUFFER_TOO_SMALL))
	assert.Equal(t, nav.EncodePolyId(1, 0), path[0], "keeps the start of the corridor")
}

func TestStatusErr(t *testing.T) {
	assert.NoError(t, DT_SUCCESS.Err())
	assert.ErrorIs(t, (DT_FAILURE | DT_WRONG_MAGIC).Err(), ErrWrongMagic)
	assert.ErrorIs(t, (DT_FAILURE | DT_WRONG_VERSION).Err(), ErrWrongVersion)
	assert.ErrorIs(t, (DT_FAILURE | DT_INVALID_PARAM).Err(), ErrInvalidParam)
	assert.ErrorIs(t, DT_FAILURE.Err(), ErrFailure)
	assert.ErrorIs(t, (DT_SUCCESS | DT_BUFFER_TOO_SMALL).Err(), ErrBufferTooSmall)
	assert.False(t, errors.Is((DT_SUCCESS|DT_PARTIAL_RESULT).Err(), ErrFailure))
}

func TestNodeQueueOrder(t *testing.T) {
	q := newNodeQueue(4, func(a, b *DtNode) bool { return a.Total < b.Total })
	nodes := []*DtNode{{Total: 5}, {Total: 3}, {Total: 8}, {Total: 1}}
	for _, n := range nodes {
		q.Offer(n)
	}
	nodes[2].Total = 0
	q.Modify(nodes[2])

	var got []float32
	for !q.Empty() {
		got = append(got, q.Poll().Total)
	}
	assert.Equal(t, []float32{0, 1, 3, 5}, got)
}

func TestNodePool(t *testing.T) {
	pool := NewDtNodePool(2, 4)
	a := pool.GetNode(10)
	require.NotNil(t, a)
	assert.Same(t, a, pool.GetNode(10))
	b := pool.GetNode(20)
	require.NotNil(t, b)
	assert.Nil(t, pool.GetNode(30), "pool exhausted")
	assert.Same(t, b, pool.GetNodeAtIdx(pool.GetNodeIdx(b)))
	assert.Nil(t, pool.GetNodeAtIdx(0))

	pool.Clear()
	assert.Nil(t, pool.FindNode(10))
	assert.Zero(t, pool.GetNodeCount())
}

// buildPlaneTile runs the recast pipeline over a flat 10x10 plane.
func buildPlaneTile(t *testing.T) []byte {
	t.Helper()
	const (
		cs, ch         = 0.3, 0.2
		height, climb  = 10, 4
		radius         = 2
		worldClimb     = climb * ch
		worldHeight    = height * ch
		worldRadius    = radius * cs
		detailDist     = 6 * cs
		detailMaxError = 1 * ch
	)
	verts := []float32{0, 0, 0, 10, 0, 0, 10, 0, 10, 0, 0, 10}
	tris := []int32{0, 2, 1, 0, 3, 2}
	ctx := recast.NewRcContext(nil)

	bmin, bmax := recast.CalcBounds(verts, 4)
	w, h := recast.CalcGridSize(bmin, bmax, cs)
	hf := recast.CreateHeightfield(w, h, bmin, bmax, cs, ch)
	areas := make([]uint8, 2)
	recast.MarkWalkableTriangles(45, verts, tris, areas)
	require.NoError(t, recast.RasterizeTriangles(ctx, verts, tris, areas, hf, climb))
	recast.FilterLowHangingWalkableObstacles(ctx, climb, hf)
	recast.FilterLedgeSpans(ctx, height, climb, hf)
	recast.FilterWalkableLowHeightSpans(ctx, height, hf)
	chf, err := recast.BuildCompactHeightfield(ctx, height, climb, hf)
	require.NoError(t, err)
	recast.ErodeWalkableArea(ctx, radius, chf)
	recast.BuildDistanceField(ctx, chf)
	require.NoError(t, recast.BuildRegions(ctx, chf, 0, 8*8, 20*20))
	cset, err := recast.BuildContours(ctx, chf, 1.3, int(12/cs), recast.RC_CONTOUR_TESS_WALL_EDGES)
	require.NoError(t, err)
	pmesh, err := recast.BuildPolyMesh(ctx, cset, 6)
	require.NoError(t, err)
	dmesh, err := recast.BuildPolyMeshDetail(ctx, pmesh, chf, detailDist, detailMaxError)
	require.NoError(t, err)

	for i := range pmesh.Flags {
		pmesh.Flags[i] = 1
	}
	data, err := CreateNavMeshData(&NavMeshCreateParams{
		Verts:            pmesh.Verts,
		VertCount:        pmesh.NVerts,
		Polys:            pmesh.Polys,
		PolyFlags:        pmesh.Flags,
		PolyAreas:        pmesh.Areas,
		PolyCount:        pmesh.NPolys,
		Nvp:              pmesh.Nvp,
		DetailMeshes:     dmesh.Meshes,
		DetailVerts:      dmesh.Verts,
		DetailVertsCount: dmesh.NVerts,
		DetailTris:       dmesh.Tris,
		DetailTriCount:   dmesh.NTris,
		WalkableHeight:   worldHeight,
		WalkableRadius:   worldRadius,
		WalkableClimb:    worldClimb,
		Bmin:             pmesh.Bmin,
		Bmax:             pmesh.Bmax,
		Cs:               cs,
		Ch:               ch,
		BuildBvTree:      true,
	})
	require.NoError(t, err)
	return data
}

func TestPathAcrossRecastPlane(t *testing.T) {
	nav, err := NewNavMesh(buildPlaneTile(t))
	require.NoError(t, err)
	q, err := NewDtNavMeshQuery(nav, 2048)
	require.NoError(t, err)
	filter := NewDtQueryFilter()
	ext := []float32{1.2, 1.2, 1.2}

	start := []float32{1.5, 0, 1.5}
	end := []float32{8.5, 0, 8.5}
	startRef, startPt, _, status := q.FindNearestPoly(start, ext, filter)
	require.True(t, status.Succeed())
	require.NotZero(t, startRef)
	endRef, endPt, _, status := q.FindNearestPoly(end, ext, filter)
	require.True(t, status.Succeed())
	require.NotZero(t, endRef)

	path := make([]DtPolyRef, 256)
	n, status := q.FindPath(startRef, endRef, startPt[:], endPt[:], filter, path)
	require.Equal(t, DT_SUCCESS, status)
	require.Greater(t, n, 0)
	assert.Equal(t, startRef, path[0])
	assert.Equal(t, endRef, path[n-1])

	pts := make([]float32, 256*3)
	count, status := q.FindStraightPath(startPt[:], endPt[:], path[:n], pts, nil, nil)
	require.True(t, status.Succeed())
	require.GreaterOrEqual(t, count, 2)
	assert.LessOrEqual(t, common.Vdist2D(pts[0:3], start), float32(2*0.3))
	assert.LessOrEqual(t, common.Vdist2D(pts[(count-1)*3:count*3], end), float32(2*0.3))
	for i := 0; i < count; i++ {
		assert.InDelta(t, 0, pts[i*3+1], 0.5, "waypoint %d stays on the plane", i)
	}
}
