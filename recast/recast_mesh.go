package recast

import (
	"fmt"

	"github.com/gorustyt/navbake/common"
	"go.uber.org/zap"
)

// RcPolyMesh holds convex polygons in voxel coordinates. Each polygon takes
// 2*Nvp entries of Polys: vertex indices followed by neighbour indices, both
// padded with RC_MESH_NULL_IDX.
type RcPolyMesh struct {
	Verts        []uint16 ///< The mesh vertices. [Form: (x, y, z) * #NVerts]
	Polys        []uint16 ///< Polygon and neighbor data. [Length: #MaxPolys * 2 * #Nvp]
	Regs         []uint16 ///< The region id assigned to each polygon.
	Flags        []uint16 ///< The user defined flags for each polygon.
	Areas        []uint8  ///< The area id assigned to each polygon.
	NVerts       int
	NPolys       int
	MaxPolys     int
	Nvp          int
	Bmin         [3]float32
	Bmax         [3]float32
	Cs           float32
	Ch           float32
	BorderSize   int
	MaxEdgeError float32
}

func (m *RcPolyMesh) Poly(i int) []uint16 {
	return m.Polys[i*m.Nvp*2 : (i+1)*m.Nvp*2]
}

const (
	// Polygon touching multiple regions.
	RC_MULTIPLE_REGS = 0

	vertexBucketCount = 1 << 12
	indexMask         = 0x0fffffff
	removableFlag     = 0x80000000
)

type rcEdge struct {
	vert     [2]uint16
	polyEdge [2]uint16
	poly     [2]uint16
}

// buildMeshAdjacency fills the neighbour half of every polygon.
func buildMeshAdjacency(polys []uint16, npolys, nverts, nvp int) {
	maxEdgeCount := npolys * nvp
	firstEdge := make([]uint16, nverts)
	nextEdge := make([]uint16, maxEdgeCount)
	edges := make([]rcEdge, 0, maxEdgeCount)
	for i := range firstEdge {
		firstEdge[i] = RC_MESH_NULL_IDX
	}

	edgeVerts := func(t []uint16, j int) (uint16, uint16) {
		v0 := t[j]
		v1 := t[0]
		if j+1 < nvp && t[j+1] != RC_MESH_NULL_IDX {
			v1 = t[j+1]
		}
		return v0, v1
	}

	for i := 0; i < npolys; i++ {
		t := polys[i*nvp*2:]
		for j := 0; j < nvp; j++ {
			if t[j] == RC_MESH_NULL_IDX {
				break
			}
			v0, v1 := edgeVerts(t, j)
			if v0 < v1 {
				e := rcEdge{
					vert:     [2]uint16{v0, v1},
					poly:     [2]uint16{uint16(i), uint16(i)},
					polyEdge: [2]uint16{uint16(j), 0},
				}
				nextEdge[len(edges)] = firstEdge[v0]
				firstEdge[v0] = uint16(len(edges))
				edges = append(edges, e)
			}
		}
	}

	for i := 0; i < npolys; i++ {
		t := polys[i*nvp*2:]
		for j := 0; j < nvp; j++ {
			if t[j] == RC_MESH_NULL_IDX {
				break
			}
			v0, v1 := edgeVerts(t, j)
			if v0 > v1 {
				for e := firstEdge[v1]; e != RC_MESH_NULL_IDX; e = nextEdge[e] {
					edge := &edges[e]
					if edge.vert[1] == v0 && edge.poly[0] == edge.poly[1] {
						edge.poly[1] = uint16(i)
						edge.polyEdge[1] = uint16(j)
						break
					}
				}
			}
		}
	}

	for _, e := range edges {
		if e.poly[0] != e.poly[1] {
			p0 := polys[int(e.poly[0])*nvp*2:]
			p1 := polys[int(e.poly[1])*nvp*2:]
			p0[nvp+int(e.polyEdge[0])] = e.poly[1]
			p1[nvp+int(e.polyEdge[1])] = e.poly[0]
		}
	}
}

func computeVertexHash(x, y, z int) int {
	const h1 uint32 = 0x8da6b343 // Large multiplicative constants;
	const h2 uint32 = 0xd8163841 // here arbitrarily chosen primes
	const h3 uint32 = 0xcb1ab31f
	n := h1*uint32(x) + h2*uint32(y) + h3*uint32(z)
	return int(n & (vertexBucketCount - 1))
}

// vertexWelder merges vertices equal on xz and within 2 cells in y.
type vertexWelder struct {
	firstVert []int
	nextVert  []int
}

func newVertexWelder(maxVerts int) *vertexWelder {
	w := &vertexWelder{
		firstVert: make([]int, vertexBucketCount),
		nextVert:  make([]int, maxVerts),
	}
	for i := range w.firstVert {
		w.firstVert[i] = -1
	}
	return w
}

func (w *vertexWelder) add(x, y, z uint16, verts []uint16, nv *int) uint16 {
	bucket := computeVertexHash(int(x), 0, int(z))
	for i := w.firstVert[bucket]; i != -1; i = w.nextVert[i] {
		v := verts[i*3:]
		if v[0] == x && common.Abs(int(v[1])-int(y)) <= 2 && v[2] == z {
			return uint16(i)
		}
	}
	i := *nv
	*nv++
	verts[i*3] = x
	verts[i*3+1] = y
	verts[i*3+2] = z
	w.nextVert[i] = w.firstVert[bucket]
	w.firstVert[bucket] = i
	return uint16(i)
}

func vertAt(verts []int, indices []int, i int) []int {
	return verts[(indices[i]&indexMask)*4:]
}

// diagonalie reports whether (i, j) is a proper internal or external diagonal,
// ignoring edges incident to either end.
func diagonalie(i, j, n int, verts []int, indices []int, loose bool) bool {
	d0 := vertAt(verts, indices, i)
	d1 := vertAt(verts, indices, j)
	for k := 0; k < n; k++ {
		k1 := next(k, n)
		if k == i || k1 == i || k == j || k1 == j {
			continue
		}
		p0 := vertAt(verts, indices, k)
		p1 := vertAt(verts, indices, k1)
		if vequal(d0, p0) || vequal(d1, p0) || vequal(d0, p1) || vequal(d1, p1) {
			continue
		}
		if loose {
			if intersectProp(d0, d1, p0, p1) {
				return false
			}
		} else if intersect(d0, d1, p0, p1) {
			return false
		}
	}
	return true
}

// inCone reports whether the diagonal (i, j) lies in the cone of vertex i.
func inCone(i, j, n int, verts []int, indices []int, loose bool) bool {
	pi := vertAt(verts, indices, i)
	pj := vertAt(verts, indices, j)
	pi1 := vertAt(verts, indices, next(i, n))
	pin1 := vertAt(verts, indices, prev(i, n))

	// Convex vertex: i+1 left of or on (i-1, i).
	if leftOn(pin1, pi, pi1) {
		if loose {
			return leftOn(pi, pj, pin1) && leftOn(pj, pi, pi1)
		}
		return left(pi, pj, pin1) && left(pj, pi, pi1)
	}
	// Reflex vertex.
	return !(leftOn(pi, pj, pi1) && leftOn(pj, pi, pin1))
}

func diagonal(i, j, n int, verts []int, indices []int) bool {
	return inCone(i, j, n, verts, indices, false) && diagonalie(i, j, n, verts, indices, false)
}

func diagonalLoose(i, j, n int, verts []int, indices []int) bool {
	return inCone(i, j, n, verts, indices, true) && diagonalie(i, j, n, verts, indices, true)
}

// triangulate ear-clips the polygon, shortest ear first. A negative result
// means the contour was malformed and -n triangles were produced.
func triangulate(n int, verts []int, indices []int, tris []int) int {
	ntris := 0
	dst := 0

	for i := 0; i < n; i++ {
		i1 := next(i, n)
		i2 := next(i1, n)
		if diagonal(i, i2, n, verts, indices) {
			indices[i1] |= removableFlag
		}
	}

	earLen := func(i int) int {
		p0 := vertAt(verts, indices, i)
		p2 := vertAt(verts, indices, next(next(i, n), n))
		dx := p2[0] - p0[0]
		dz := p2[2] - p0[2]
		return dx*dx + dz*dz
	}

	for n > 3 {
		minLen := -1
		mini := -1
		for i := 0; i < n; i++ {
			i1 := next(i, n)
			if indices[i1]&removableFlag != 0 {
				if l := earLen(i); minLen < 0 || l < minLen {
					minLen = l
					mini = i
				}
			}
		}

		if mini == -1 {
			// Overlapping segments; retry with a looser cone test.
			minLen = -1
			for i := 0; i < n; i++ {
				i2 := next(next(i, n), n)
				if diagonalLoose(i, i2, n, verts, indices) {
					if l := earLen(i); minLen < 0 || l < minLen {
						minLen = l
						mini = i
					}
				}
			}
			if mini == -1 {
				return -ntris
			}
		}

		i := mini
		i1 := next(i, n)
		i2 := next(i1, n)
		tris[dst] = indices[i] & indexMask
		tris[dst+1] = indices[i1] & indexMask
		tris[dst+2] = indices[i2] & indexMask
		dst += 3
		ntris++

		// Remove P[i1].
		n--
		copy(indices[i1:n], indices[i1+1:n+1])
		if i1 >= n {
			i1 = 0
		}
		i = prev(i1, n)
		if diagonal(prev(i, n), i1, n, verts, indices) {
			indices[i] |= removableFlag
		} else {
			indices[i] &= indexMask
		}
		if diagonal(i, next(i1, n), n, verts, indices) {
			indices[i1] |= removableFlag
		} else {
			indices[i1] &= indexMask
		}
	}

	tris[dst] = indices[0] & indexMask
	tris[dst+1] = indices[1] & indexMask
	tris[dst+2] = indices[2] & indexMask
	ntris++
	return ntris
}

func countPolyVerts(p []uint16, nvp int) int {
	for i := 0; i < nvp; i++ {
		if p[i] == RC_MESH_NULL_IDX {
			return i
		}
	}
	return nvp
}

func uleft(a, b, c []uint16) bool {
	return (int(b[0])-int(a[0]))*(int(c[2])-int(a[2]))-(int(c[0])-int(a[0]))*(int(b[2])-int(a[2])) < 0
}

// getPolyMergeValue returns the squared length of the edge shared by pa and
// pb, or -1 when merging them would exceed nvp or lose convexity.
func getPolyMergeValue(pa, pb []uint16, verts []uint16, nvp int) (value, ea, eb int) {
	na := countPolyVerts(pa, nvp)
	nb := countPolyVerts(pb, nvp)
	if na+nb-2 > nvp {
		return -1, -1, -1
	}

	ea, eb = -1, -1
	for i := 0; i < na; i++ {
		va0, va1 := pa[i], pa[(i+1)%na]
		if va0 > va1 {
			va0, va1 = va1, va0
		}
		for j := 0; j < nb; j++ {
			vb0, vb1 := pb[j], pb[(j+1)%nb]
			if vb0 > vb1 {
				vb0, vb1 = vb1, vb0
			}
			if va0 == vb0 && va1 == vb1 {
				ea, eb = i, j
				break
			}
		}
	}
	if ea == -1 || eb == -1 {
		return -1, -1, -1
	}

	v := func(i uint16) []uint16 { return verts[int(i)*3:] }
	if !uleft(v(pa[(ea+na-1)%na]), v(pa[ea]), v(pb[(eb+2)%nb])) {
		return -1, -1, -1
	}
	if !uleft(v(pb[(eb+nb-1)%nb]), v(pb[eb]), v(pa[(ea+2)%na])) {
		return -1, -1, -1
	}

	a, b := v(pa[ea]), v(pa[(ea+1)%na])
	dx := int(a[0]) - int(b[0])
	dz := int(a[2]) - int(b[2])
	return dx*dx + dz*dz, ea, eb
}

func mergePolyVerts(pa, pb []uint16, ea, eb int, tmp []uint16, nvp int) {
	na := countPolyVerts(pa, nvp)
	nb := countPolyVerts(pb, nvp)
	for i := range tmp[:nvp] {
		tmp[i] = RC_MESH_NULL_IDX
	}
	n := 0
	for i := 0; i < na-1; i++ {
		tmp[n] = pa[(ea+1+i)%na]
		n++
	}
	for i := 0; i < nb-1; i++ {
		tmp[n] = pb[(eb+1+i)%nb]
		n++
	}
	copy(pa[:nvp], tmp[:nvp])
}

// mergePolys greedily merges the npolys polygons (stride nvp) sharing their
// longest common edge until no merge is possible. onMerge is called with the
// indices of the kept and the removed polygon before the last one is moved.
func mergePolys(polys []uint16, npolys int, verts []uint16, nvp int, tmp []uint16, onMerge func(pa, pb, last int)) int {
	for {
		bestMergeVal := 0
		bestPa, bestPb, bestEa, bestEb := 0, 0, 0, 0
		for j := 0; j < npolys-1; j++ {
			pj := polys[j*nvp : (j+1)*nvp]
			for k := j + 1; k < npolys; k++ {
				pk := polys[k*nvp : (k+1)*nvp]
				v, ea, eb := getPolyMergeValue(pj, pk, verts, nvp)
				if v > bestMergeVal {
					bestMergeVal = v
					bestPa, bestPb, bestEa, bestEb = j, k, ea, eb
				}
			}
		}
		if bestMergeVal <= 0 {
			return npolys
		}
		pa := polys[bestPa*nvp : (bestPa+1)*nvp]
		pb := polys[bestPb*nvp : (bestPb+1)*nvp]
		mergePolyVerts(pa, pb, bestEa, bestEb, tmp, nvp)
		if onMerge != nil {
			onMerge(bestPa, bestPb, npolys-1)
		}
		if bestPb != npolys-1 {
			copy(pb, polys[(npolys-1)*nvp:npolys*nvp])
		}
		npolys--
	}
}

func canRemoveVertex(mesh *RcPolyMesh, rem uint16) bool {
	nvp := mesh.Nvp

	numTouchedVerts := 0
	numRemainingEdges := 0
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Poly(i)
		nv := countPolyVerts(p, nvp)
		numRemoved := 0
		for j := 0; j < nv; j++ {
			if p[j] == rem {
				numTouchedVerts++
				numRemoved++
			}
		}
		if numRemoved > 0 {
			numRemainingEdges += nv - (numRemoved + 1)
		}
	}
	// Too few edges would remain to form a polygon, e.g. the tip of a lone triangle.
	if numRemainingEdges <= 2 {
		return false
	}

	type edge struct{ a, b, count int }
	edges := make([]edge, 0, numTouchedVerts*2)
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Poly(i)
		nv := countPolyVerts(p, nvp)
		for j, k := 0, nv-1; j < nv; k, j = j, j+1 {
			if p[j] != rem && p[k] != rem {
				continue
			}
			a, b := int(p[j]), int(p[k])
			if b == int(rem) {
				a, b = b, a
			}
			exists := false
			for m := range edges {
				if edges[m].b == b {
					edges[m].count++
					exists = true
				}
			}
			if !exists {
				edges = append(edges, edge{a, b, 1})
			}
		}
	}

	// More than two open edges means two non-adjacent polygons share the vertex.
	numOpenEdges := 0
	for _, e := range edges {
		if e.count < 2 {
			numOpenEdges++
		}
	}
	return numOpenEdges <= 2
}

func pushFront(v int, arr []int) []int {
	arr = append(arr, 0)
	copy(arr[1:], arr[:len(arr)-1])
	arr[0] = v
	return arr
}

func removeVertex(ctx *RcContext, mesh *RcPolyMesh, rem uint16, maxTris int) error {
	nvp := mesh.Nvp

	type edge struct{ a, b, reg, area int }
	var edges []edge

	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Poly(i)
		nv := countPolyVerts(p, nvp)
		hasRem := false
		for j := 0; j < nv; j++ {
			if p[j] == rem {
				hasRem = true
			}
		}
		if !hasRem {
			continue
		}
		// Collect the edges that do not touch the removed vertex.
		for j, k := 0, nv-1; j < nv; k, j = j, j+1 {
			if p[j] != rem && p[k] != rem {
				edges = append(edges, edge{int(p[k]), int(p[j]), int(mesh.Regs[i]), int(mesh.Areas[i])})
			}
		}
		// Remove the polygon.
		last := mesh.Poly(mesh.NPolys - 1)
		copy(p[:nvp], last[:nvp])
		for j := nvp; j < 2*nvp; j++ {
			p[j] = RC_MESH_NULL_IDX
		}
		mesh.Regs[i] = mesh.Regs[mesh.NPolys-1]
		mesh.Areas[i] = mesh.Areas[mesh.NPolys-1]
		mesh.NPolys--
		i--
	}

	// Remove vertex.
	copy(mesh.Verts[int(rem)*3:mesh.NVerts*3], mesh.Verts[int(rem+1)*3:mesh.NVerts*3])
	mesh.NVerts--

	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Poly(i)
		nv := countPolyVerts(p, nvp)
		for j := 0; j < nv; j++ {
			if p[j] > rem {
				p[j]--
			}
		}
	}
	for i := range edges {
		if edges[i].a > int(rem) {
			edges[i].a--
		}
		if edges[i].b > int(rem) {
			edges[i].b--
		}
	}

	if len(edges) == 0 {
		return nil
	}

	// Grow the hole boundary from the first edge at both ends.
	hole := []int{edges[0].a}
	hreg := []int{edges[0].reg}
	harea := []int{edges[0].area}

	for len(edges) > 0 {
		match := false
		for i := 0; i < len(edges); i++ {
			e := edges[i]
			add := false
			if hole[0] == e.b {
				hole = pushFront(e.a, hole)
				hreg = pushFront(e.reg, hreg)
				harea = pushFront(e.area, harea)
				add = true
			} else if hole[len(hole)-1] == e.a {
				hole = append(hole, e.b)
				hreg = append(hreg, e.reg)
				harea = append(harea, e.area)
				add = true
			}
			if add {
				edges[i] = edges[len(edges)-1]
				edges = edges[:len(edges)-1]
				match = true
				i--
			}
		}
		if !match {
			break
		}
	}

	nhole := len(hole)
	tris := make([]int, nhole*3)
	tverts := make([]int, nhole*4)
	thole := make([]int, nhole)
	for i, pi := range hole {
		tverts[i*4] = int(mesh.Verts[pi*3])
		tverts[i*4+1] = int(mesh.Verts[pi*3+1])
		tverts[i*4+2] = int(mesh.Verts[pi*3+2])
		thole[i] = i
	}

	ntris := triangulate(nhole, tverts, thole, tris)
	if ntris < 0 {
		ntris = -ntris
		ctx.Logger().Warn("removeVertex: triangulate returned bad results")
	}

	polys := make([]uint16, (ntris+1)*nvp)
	pregs := make([]uint16, ntris)
	pareas := make([]uint8, ntris)
	tmpPoly := polys[ntris*nvp:]
	for i := range polys[:ntris*nvp] {
		polys[i] = RC_MESH_NULL_IDX
	}

	npolys := 0
	for j := 0; j < ntris; j++ {
		t := tris[j*3:]
		if t[0] == t[1] || t[0] == t[2] || t[1] == t[2] {
			continue
		}
		polys[npolys*nvp] = uint16(hole[t[0]])
		polys[npolys*nvp+1] = uint16(hole[t[1]])
		polys[npolys*nvp+2] = uint16(hole[t[2]])
		if hreg[t[0]] != hreg[t[1]] || hreg[t[1]] != hreg[t[2]] {
			pregs[npolys] = RC_MULTIPLE_REGS
		} else {
			pregs[npolys] = uint16(hreg[t[0]])
		}
		pareas[npolys] = uint8(harea[t[0]])
		npolys++
	}
	if npolys == 0 {
		return nil
	}

	if nvp > 3 {
		npolys = mergePolys(polys, npolys, mesh.Verts, nvp, tmpPoly, func(pa, pb, last int) {
			if pregs[pa] != pregs[pb] {
				pregs[pa] = RC_MULTIPLE_REGS
			}
			pregs[pb] = pregs[last]
			pareas[pb] = pareas[last]
		})
	}

	for i := 0; i < npolys; i++ {
		if mesh.NPolys >= maxTris {
			break
		}
		p := mesh.Poly(mesh.NPolys)
		for j := range p {
			p[j] = RC_MESH_NULL_IDX
		}
		copy(p[:nvp], polys[i*nvp:(i+1)*nvp])
		mesh.Regs[mesh.NPolys] = pregs[i]
		mesh.Areas[mesh.NPolys] = pareas[i]
		mesh.NPolys++
	}
	return nil
}

// BuildPolyMesh triangulates every contour, welds shared vertices and merges
// triangles into convex polygons of at most nvp vertices.
func BuildPolyMesh(ctx *RcContext, cset *RcContourSet, nvp int) (*RcPolyMesh, error) {
	ctx.StartTimer(RC_TIMER_BUILD_POLYMESH)
	defer ctx.StopTimer(RC_TIMER_BUILD_POLYMESH)

	if nvp < 3 {
		return nil, fmt.Errorf("%w: vertsPerPoly %d", ErrInvalidInput, nvp)
	}

	mesh := &RcPolyMesh{
		Bmin:         cset.Bmin,
		Bmax:         cset.Bmax,
		Cs:           cset.Cs,
		Ch:           cset.Ch,
		BorderSize:   cset.BorderSize,
		MaxEdgeError: cset.MaxError,
		Nvp:          nvp,
	}

	maxVertices, maxTris, maxVertsPerCont := 0, 0, 0
	for _, c := range cset.Conts {
		if c.NVerts() < 3 {
			continue
		}
		maxVertices += c.NVerts()
		maxTris += c.NVerts() - 2
		maxVertsPerCont = max(maxVertsPerCont, c.NVerts())
	}
	if maxVertices >= 0xfffe {
		return nil, fmt.Errorf("%w: too many vertices %d", ErrOutOfSpace, maxVertices)
	}

	vflags := make([]uint8, maxVertices+1)
	mesh.Verts = make([]uint16, maxVertices*3)
	mesh.Polys = make([]uint16, maxTris*nvp*2)
	mesh.Regs = make([]uint16, maxTris)
	mesh.Areas = make([]uint8, maxTris)
	mesh.MaxPolys = maxTris
	for i := range mesh.Polys {
		mesh.Polys[i] = RC_MESH_NULL_IDX
	}

	welder := newVertexWelder(maxVertices)
	indices := make([]int, maxVertsPerCont)
	tris := make([]int, maxVertsPerCont*3)
	polys := make([]uint16, (maxVertsPerCont+1)*nvp)
	tmpPoly := polys[maxVertsPerCont*nvp:]

	for ci, cont := range cset.Conts {
		nv := cont.NVerts()
		if nv < 3 {
			continue
		}

		for j := 0; j < nv; j++ {
			indices[j] = j
		}
		ntris := triangulate(nv, cont.Verts, indices, tris)
		if ntris <= 0 {
			ctx.Logger().Warn("bad triangulation", zap.Int("contour", ci))
			ntris = -ntris
		}

		for j := 0; j < nv; j++ {
			v := cont.Verts[j*4:]
			indices[j] = int(welder.add(uint16(v[0]), uint16(v[1]), uint16(v[2]), mesh.Verts, &mesh.NVerts))
			if v[3]&RC_BORDER_VERTEX != 0 {
				vflags[indices[j]] = 1
			}
		}

		for i := range polys[:maxVertsPerCont*nvp] {
			polys[i] = RC_MESH_NULL_IDX
		}
		npolys := 0
		for j := 0; j < ntris; j++ {
			t := tris[j*3:]
			if t[0] != t[1] && t[0] != t[2] && t[1] != t[2] {
				polys[npolys*nvp] = uint16(indices[t[0]])
				polys[npolys*nvp+1] = uint16(indices[t[1]])
				polys[npolys*nvp+2] = uint16(indices[t[2]])
				npolys++
			}
		}
		if npolys == 0 {
			continue
		}

		if nvp > 3 {
			npolys = mergePolys(polys, npolys, mesh.Verts, nvp, tmpPoly, nil)
		}

		for j := 0; j < npolys; j++ {
			if mesh.NPolys >= maxTris {
				return nil, fmt.Errorf("%w: too many polygons %d (max %d)", ErrOutOfSpace, mesh.NPolys+1, maxTris)
			}
			p := mesh.Poly(mesh.NPolys)
			copy(p[:nvp], polys[j*nvp:(j+1)*nvp])
			mesh.Regs[mesh.NPolys] = cont.Reg
			mesh.Areas[mesh.NPolys] = cont.Area
			mesh.NPolys++
		}
	}

	// Remove edge vertices.
	for i := 0; i < mesh.NVerts; i++ {
		if vflags[i] == 0 {
			continue
		}
		if !canRemoveVertex(mesh, uint16(i)) {
			continue
		}
		if err := removeVertex(ctx, mesh, uint16(i), maxTris); err != nil {
			return nil, err
		}
		// removeVertex already decremented NVerts.
		copy(vflags[i:mesh.NVerts+1], vflags[i+1:mesh.NVerts+2])
		i--
	}

	buildMeshAdjacency(mesh.Polys, mesh.NPolys, mesh.NVerts, nvp)

	// Mark portal edges on the tile border.
	if mesh.BorderSize > 0 {
		w, h := cset.Width, cset.Height
		for i := 0; i < mesh.NPolys; i++ {
			p := mesh.Poly(i)
			for j := 0; j < nvp; j++ {
				if p[j] == RC_MESH_NULL_IDX {
					break
				}
				if p[nvp+j] != RC_MESH_NULL_IDX {
					continue
				}
				nj := j + 1
				if nj >= nvp || p[nj] == RC_MESH_NULL_IDX {
					nj = 0
				}
				va := mesh.Verts[int(p[j])*3:]
				vb := mesh.Verts[int(p[nj])*3:]
				switch {
				case va[0] == 0 && vb[0] == 0:
					p[nvp+j] = 0x8000 | 0
				case int(va[2]) == h && int(vb[2]) == h:
					p[nvp+j] = 0x8000 | 1
				case int(va[0]) == w && int(vb[0]) == w:
					p[nvp+j] = 0x8000 | 2
				case va[2] == 0 && vb[2] == 0:
					p[nvp+j] = 0x8000 | 3
				}
			}
		}
	}

	mesh.Flags = make([]uint16, mesh.NPolys)

	if mesh.NVerts > 0xffff {
		return nil, fmt.Errorf("%w: too many vertices %d", ErrOutOfSpace, mesh.NVerts)
	}
	if mesh.NPolys > 0xffff {
		return nil, fmt.Errorf("%w: too many polygons %d", ErrOutOfSpace, mesh.NPolys)
	}
	return mesh, nil
}
