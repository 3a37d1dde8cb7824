package recast

import (
	"fmt"
	"math"

	"github.com/gorustyt/navbake/common"
	"go.uber.org/zap"
)

// RcPolyMeshDetail holds a height detail triangle mesh per polygon.
type RcPolyMeshDetail struct {
	Meshes  []uint32  ///< (baseVert, vertCount, baseTri, triCount) per sub-mesh.
	Verts   []float32 ///< World space vertices. [(x, y, z) * #NVerts]
	Tris    []uint8   ///< (vertA, vertB, vertC, edgeFlags) per triangle, indices local to the sub-mesh.
	NMeshes int
	NVerts  int
	NTris   int
}

const (
	rcUnsetHeight = 0xffff

	evUndef = -1
	evHull  = -2

	detailMaxVerts        = 127
	detailMaxTris         = 255 // Delaunay makes at most 2n-2-k triangles.
	detailMaxVertsPerEdge = 32
)

type rcHeightPatch struct {
	data          []uint16
	xmin, zmin    int
	width, height int
}

func vdot2(a, b []float32) float32 { return a[0]*b[0] + a[2]*b[2] }

func vdistSq2(p, q []float32) float32 {
	dx := q[0] - p[0]
	dz := q[2] - p[2]
	return dx*dx + dz*dz
}

func vdist2(p, q []float32) float32 { return common.Sqrt32(vdistSq2(p, q)) }

func vcross2(p1, p2, p3 []float32) float32 {
	u1 := p2[0] - p1[0]
	v1 := p2[2] - p1[2]
	u2 := p3[0] - p1[0]
	v2 := p3[2] - p1[2]
	return u1*v2 - v1*u2
}

func circumCircle(p1, p2, p3 []float32) (c [3]float32, r float32, ok bool) {
	const eps = 1e-6
	// Relative to p1 for precision.
	var v1, v2, v3 [3]float32
	common.Vsub(v2[:], p2, p1)
	common.Vsub(v3[:], p3, p1)

	cp := vcross2(v1[:], v2[:], v3[:])
	if common.Abs(cp) > eps {
		v1Sq := vdot2(v1[:], v1[:])
		v2Sq := vdot2(v2[:], v2[:])
		v3Sq := vdot2(v3[:], v3[:])
		c[0] = (v1Sq*(v2[2]-v3[2]) + v2Sq*(v3[2]-v1[2]) + v3Sq*(v1[2]-v2[2])) / (2 * cp)
		c[2] = (v1Sq*(v3[0]-v2[0]) + v2Sq*(v1[0]-v3[0]) + v3Sq*(v2[0]-v1[0])) / (2 * cp)
		r = vdist2(c[:], v1[:])
		common.Vadd(c[:], c[:], p1)
		return c, r, true
	}
	copy(c[:], p1)
	return c, 0, false
}

func distPtTri(p, a, b, c []float32) float32 {
	var v0, v1, v2 [3]float32
	common.Vsub(v0[:], c, a)
	common.Vsub(v1[:], b, a)
	common.Vsub(v2[:], p, a)

	dot00 := vdot2(v0[:], v0[:])
	dot01 := vdot2(v0[:], v1[:])
	dot02 := vdot2(v0[:], v2[:])
	dot11 := vdot2(v1[:], v1[:])
	dot12 := vdot2(v1[:], v2[:])

	invDenom := 1.0 / (dot00*dot11 - dot01*dot01)
	u := (dot11*dot02 - dot01*dot12) * invDenom
	v := (dot00*dot12 - dot01*dot02) * invDenom

	const eps = 1e-4
	if u >= -eps && v >= -eps && (u+v) <= 1+eps {
		y := a[1] + v0[1]*u + v1[1]*v
		return common.Abs(y - p[1])
	}
	return math.MaxFloat32
}

func distancePtSeg(pt, p, q []float32) float32 {
	pqx, pqy, pqz := q[0]-p[0], q[1]-p[1], q[2]-p[2]
	dx, dy, dz := pt[0]-p[0], pt[1]-p[1], pt[2]-p[2]
	d := pqx*pqx + pqy*pqy + pqz*pqz
	t := pqx*dx + pqy*dy + pqz*dz
	if d > 0 {
		t /= d
	}
	t = common.Clamp(t, 0, 1)
	dx = p[0] + t*pqx - pt[0]
	dy = p[1] + t*pqy - pt[1]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dy*dy + dz*dz
}

func distancePtSeg2d(pt, p, q []float32) float32 {
	d, _ := common.DistancePtSegSqr2D(pt, p, q)
	return d
}

func distToTriMesh(p []float32, verts []float32, tris []int) float32 {
	dmin := float32(math.MaxFloat32)
	for i := 0; i < len(tris)/4; i++ {
		va := verts[tris[i*4]*3:]
		vb := verts[tris[i*4+1]*3:]
		vc := verts[tris[i*4+2]*3:]
		dmin = min(dmin, distPtTri(p, va, vb, vc))
	}
	if dmin == math.MaxFloat32 {
		return -1
	}
	return dmin
}

// distToPoly is negative inside the polygon.
func distToPoly(nvert int, verts []float32, p []float32) float32 {
	dmin := float32(math.MaxFloat32)
	c := false
	for i, j := 0, nvert-1; i < nvert; j, i = i, i+1 {
		vi := verts[i*3:]
		vj := verts[j*3:]
		if (vi[2] > p[2]) != (vj[2] > p[2]) && p[0] < (vj[0]-vi[0])*(p[2]-vi[2])/(vj[2]-vi[2])+vi[0] {
			c = !c
		}
		dmin = min(dmin, distancePtSeg2d(p, vj, vi))
	}
	if c {
		return -dmin
	}
	return dmin
}

func getHeight(fx, fy, fz, ics, ch float32, radius int, hp *rcHeightPatch) uint16 {
	ix := int(math.Floor(float64(fx*ics + 0.01)))
	iz := int(math.Floor(float64(fz*ics + 0.01)))
	ix = common.Clamp(ix-hp.xmin, 0, hp.width-1)
	iz = common.Clamp(iz-hp.zmin, 0, hp.height-1)
	h := hp.data[ix+iz*hp.width]
	if h != rcUnsetHeight {
		return h
	}

	// Spiral outwards up to radius looking for the closest valid height.
	x, z, dx, dz := 1, 0, 1, 0
	maxSize := radius*2 + 1
	maxIter := maxSize*maxSize - 1
	nextRingIterStart := 8
	nextRingIters := 16
	dmin := float32(math.MaxFloat32)
	for i := 0; i < maxIter; i++ {
		nx := ix + x
		nz := iz + z
		if nx >= 0 && nz >= 0 && nx < hp.width && nz < hp.height {
			if nh := hp.data[nx+nz*hp.width]; nh != rcUnsetHeight {
				if d := common.Abs(float32(nh)*ch - fy); d < dmin {
					h = nh
					dmin = d
				}
			}
		}
		// Finish the ring once a height is found.
		if i+1 == nextRingIterStart {
			if h != rcUnsetHeight {
				break
			}
			nextRingIterStart += nextRingIters
			nextRingIters += 8
		}
		if x == z || (x < 0 && x == -z) || (x > 0 && x == 1-z) {
			dx, dz = -dz, dx
		}
		x += dx
		z += dz
	}
	return h
}

// delaunay holds the edge list (s, t, left face, right face) of the
// triangulation under construction.
type delaunay struct {
	ctx      *RcContext
	edges    []int
	maxEdges int
	nfaces   int
}

func (d *delaunay) nedges() int { return len(d.edges) / 4 }

func (d *delaunay) findEdge(s, t int) int {
	for i := 0; i < d.nedges(); i++ {
		e := d.edges[i*4:]
		if (e[0] == s && e[1] == t) || (e[0] == t && e[1] == s) {
			return i
		}
	}
	return evUndef
}

func (d *delaunay) addEdge(s, t, l, r int) int {
	if d.nedges() >= d.maxEdges {
		d.ctx.Logger().Error("addEdge: too many edges", zap.Int("max", d.maxEdges))
		return evUndef
	}
	if d.findEdge(s, t) != evUndef {
		return evUndef
	}
	d.edges = append(d.edges, s, t, l, r)
	return d.nedges() - 1
}

func updateLeftFace(e []int, s, t, f int) {
	if e[0] == s && e[1] == t && e[2] == evUndef {
		e[2] = f
	} else if e[1] == s && e[0] == t && e[3] == evUndef {
		e[3] = f
	}
}

func overlapSegSeg2d(a, b, c, d []float32) bool {
	a1 := vcross2(a, b, d)
	a2 := vcross2(a, b, c)
	if a1*a2 < 0 {
		a3 := vcross2(c, d, a)
		a4 := a3 + a2 - a1
		if a3*a4 < 0 {
			return true
		}
	}
	return false
}

func (d *delaunay) overlapEdges(pts []float32, s1, t1 int) bool {
	for i := 0; i < d.nedges(); i++ {
		s0, t0 := d.edges[i*4], d.edges[i*4+1]
		// Same or connected edges do not overlap.
		if s0 == s1 || s0 == t1 || t0 == s1 || t0 == t1 {
			continue
		}
		if overlapSegSeg2d(pts[s0*3:], pts[t0*3:], pts[s1*3:], pts[t1*3:]) {
			return true
		}
	}
	return false
}

func (d *delaunay) completeFacet(pts []float32, npts int, e int) {
	const eps = 1e-5
	edge := d.edges[e*4:]

	var s, t int
	switch {
	case edge[2] == evUndef:
		s, t = edge[0], edge[1]
	case edge[3] == evUndef:
		s, t = edge[1], edge[0]
	default:
		return
	}

	// Best point on the left of the edge.
	pt := npts
	var c [3]float32
	r := float32(-1)
	for u := 0; u < npts; u++ {
		if u == s || u == t {
			continue
		}
		if vcross2(pts[s*3:], pts[t*3:], pts[u*3:]) <= eps {
			continue
		}
		if r < 0 {
			pt = u
			c, r, _ = circumCircle(pts[s*3:], pts[t*3:], pts[u*3:])
			continue
		}
		dist := vdist2(c[:], pts[u*3:])
		const tol = 0.001
		switch {
		case dist > r*(1+tol):
			continue
		case dist < r*(1-tol):
			pt = u
			c, r, _ = circumCircle(pts[s*3:], pts[t*3:], pts[u*3:])
		default:
			// On the circle within tolerance: s-u and t-u must not overlap existing edges.
			if d.overlapEdges(pts, s, u) || d.overlapEdges(pts, t, u) {
				continue
			}
			pt = u
			c, r, _ = circumCircle(pts[s*3:], pts[t*3:], pts[u*3:])
		}
	}

	if pt < npts {
		updateLeftFace(d.edges[e*4:], s, t, d.nfaces)

		if ne := d.findEdge(pt, s); ne == evUndef {
			d.addEdge(pt, s, d.nfaces, evUndef)
		} else {
			updateLeftFace(d.edges[ne*4:], pt, s, d.nfaces)
		}
		if ne := d.findEdge(t, pt); ne == evUndef {
			d.addEdge(t, pt, d.nfaces, evUndef)
		} else {
			updateLeftFace(d.edges[ne*4:], t, pt, d.nfaces)
		}
		d.nfaces++
	} else {
		updateLeftFace(d.edges[e*4:], s, t, evHull)
	}
}

func delaunayHull(ctx *RcContext, npts int, pts []float32, hull []int, tris []int, edges []int) ([]int, []int) {
	d := &delaunay{ctx: ctx, edges: edges[:0], maxEdges: npts * 10}
	nhull := len(hull)
	for i, j := 0, nhull-1; i < nhull; j, i = i, i+1 {
		d.addEdge(hull[j], hull[i], evHull, evUndef)
	}

	for cur := 0; cur < d.nedges(); cur++ {
		if d.edges[cur*4+2] == evUndef {
			d.completeFacet(pts, npts, cur)
		}
		if d.edges[cur*4+3] == evUndef {
			d.completeFacet(pts, npts, cur)
		}
	}

	tris = tris[:0]
	for i := 0; i < d.nfaces*4; i++ {
		tris = append(tris, -1)
	}
	for i := 0; i < d.nedges(); i++ {
		e := d.edges[i*4:]
		if e[3] >= 0 {
			// Left face
			t := tris[e[3]*4:]
			if t[0] == -1 {
				t[0], t[1] = e[0], e[1]
			} else if t[0] == e[1] {
				t[2] = e[0]
			} else if t[1] == e[0] {
				t[2] = e[1]
			}
		}
		if e[2] >= 0 {
			// Right
			t := tris[e[2]*4:]
			if t[0] == -1 {
				t[0], t[1] = e[1], e[0]
			} else if t[0] == e[0] {
				t[2] = e[1]
			} else if t[1] == e[1] {
				t[2] = e[0]
			}
		}
	}

	for i := 0; i < len(tris)/4; i++ {
		t := tris[i*4:]
		if t[0] == -1 || t[1] == -1 || t[2] == -1 {
			ctx.Logger().Warn("delaunayHull: removing dangling face", zap.Int("face", i))
			copy(t[:4], tris[len(tris)-4:])
			tris = tris[:len(tris)-4]
			i--
		}
	}
	return tris, d.edges
}

// polyMinExtent is the smallest width of the polygon.
func polyMinExtent(verts []float32, nverts int) float32 {
	minDist := float32(math.MaxFloat32)
	for i := 0; i < nverts; i++ {
		ni := (i + 1) % nverts
		p1 := verts[i*3:]
		p2 := verts[ni*3:]
		var maxEdgeDist float32
		for j := 0; j < nverts; j++ {
			if j == i || j == ni {
				continue
			}
			maxEdgeDist = max(maxEdgeDist, distancePtSeg2d(verts[j*3:], p1, p2))
		}
		minDist = min(minDist, maxEdgeDist)
	}
	return common.Sqrt32(minDist)
}

// triangulateHull fans the hull starting from the ear with the shortest
// perimeter, advancing whichever side gives the shorter next triangle.
func triangulateHull(verts []float32, hull []int, nin int, tris []int) []int {
	nhull := len(hull)
	start, l, r := 0, 1, nhull-1

	dmin := float32(math.MaxFloat32)
	for i := 0; i < nhull; i++ {
		// Ears are triangles with an original vertex in the middle.
		if hull[i] >= nin {
			continue
		}
		pi := prev(i, nhull)
		ni := next(i, nhull)
		pv := verts[hull[pi]*3:]
		cv := verts[hull[i]*3:]
		nv := verts[hull[ni]*3:]
		if d := vdist2(pv, cv) + vdist2(cv, nv) + vdist2(nv, pv); d < dmin {
			start, l, r = i, ni, pi
			dmin = d
		}
	}

	tris = append(tris, hull[start], hull[l], hull[r], 0)

	for next(l, nhull) != r {
		nleft := next(l, nhull)
		nright := prev(r, nhull)

		cvleft := verts[hull[l]*3:]
		nvleft := verts[hull[nleft]*3:]
		cvright := verts[hull[r]*3:]
		nvright := verts[hull[nright]*3:]
		dleft := vdist2(cvleft, nvleft) + vdist2(nvleft, cvright)
		dright := vdist2(cvright, nvright) + vdist2(cvleft, nvright)

		if dleft < dright {
			tris = append(tris, hull[l], hull[nleft], hull[r], 0)
			l = nleft
		} else {
			tris = append(tris, hull[l], hull[nright], hull[r], 0)
			r = nright
		}
	}
	return tris
}

func getJitterX(i int) float32 {
	return float32((uint32(i)*0x8da6b343)&0xffff)/65535.0*2.0 - 1.0
}

func getJitterY(i int) float32 {
	return float32((uint32(i)*0xd8163841)&0xffff)/65535.0*2.0 - 1.0
}

type polyDetailScratch struct {
	verts   [256 * 3]float32
	tris    []int
	edges   []int
	samples []int
	queue   []int
}

func buildPolyDetail(ctx *RcContext, in []float32, nin int, sampleDist, sampleMaxError float32, heightSearchRadius int,
	chf *RcCompactHeightfield, hp *rcHeightPatch, sc *polyDetailScratch) (nverts int) {

	var edge [(detailMaxVertsPerEdge + 1) * 3]float32
	hull := make([]int, 0, detailMaxVerts)
	verts := sc.verts[:]

	nverts = nin
	copy(verts[:nin*3], in[:nin*3])
	sc.edges = sc.edges[:0]
	sc.tris = sc.tris[:0]

	cs := chf.Cs
	ics := 1 / cs

	minExtent := polyMinExtent(verts, nverts)

	// Tessellate outlines in a separate pass so heights match across polygon boundaries.
	if sampleDist > 0 {
		for i, j := 0, nin-1; i < nin; j, i = i, i+1 {
			vj := in[j*3:]
			vi := in[i*3:]
			swapped := false
			// Handle segments in lexicographic order or there will be seams.
			if common.Abs(vj[0]-vi[0]) < 1e-6 {
				if vj[2] > vi[2] {
					vj, vi = vi, vj
					swapped = true
				}
			} else if vj[0] > vi[0] {
				vj, vi = vi, vj
				swapped = true
			}

			dx := vi[0] - vj[0]
			dy := vi[1] - vj[1]
			dz := vi[2] - vj[2]
			d := common.Sqrt32(dx*dx + dz*dz)
			nn := 1 + int(math.Floor(float64(d/sampleDist)))
			if nn >= detailMaxVertsPerEdge {
				nn = detailMaxVertsPerEdge - 1
			}
			if nverts+nn >= detailMaxVerts {
				nn = detailMaxVerts - 1 - nverts
			}
			nn = max(nn, 1)

			for k := 0; k <= nn; k++ {
				u := float32(k) / float32(nn)
				pos := edge[k*3:]
				pos[0] = vj[0] + dx*u
				pos[1] = vj[1] + dy*u
				pos[2] = vj[2] + dz*u
				pos[1] = float32(getHeight(pos[0], pos[1], pos[2], ics, chf.Ch, heightSearchRadius, hp)) * chf.Ch
			}

			// Simplify samples.
			idx := make([]int, 2, detailMaxVertsPerEdge)
			idx[0], idx[1] = 0, nn
			for k := 0; k < len(idx)-1; {
				a, b := idx[k], idx[k+1]
				va := edge[a*3:]
				vb := edge[b*3:]
				var maxd float32
				maxi := -1
				for m := a + 1; m < b; m++ {
					if dev := distancePtSeg(edge[m*3:], va, vb); dev > maxd {
						maxd = dev
						maxi = m
					}
				}
				if maxi != -1 && maxd > sampleMaxError*sampleMaxError {
					idx = append(idx, 0)
					copy(idx[k+2:], idx[k+1:])
					idx[k+1] = maxi
				} else {
					k++
				}
			}

			hull = append(hull, j)
			if swapped {
				for k := len(idx) - 2; k > 0; k-- {
					copy(verts[nverts*3:nverts*3+3], edge[idx[k]*3:])
					hull = append(hull, nverts)
					nverts++
				}
			} else {
				for k := 1; k < len(idx)-1; k++ {
					copy(verts[nverts*3:nverts*3+3], edge[idx[k]*3:])
					hull = append(hull, nverts)
					nverts++
				}
			}
		}
	} else {
		for i := 0; i < nin; i++ {
			hull = append(hull, i)
		}
	}

	// Slivers and small triangles get no interior points.
	if minExtent < sampleDist*2 {
		sc.tris = triangulateHull(verts, hull, nin, sc.tris)
		return nverts
	}

	// triangulateHull gives better results than delaunayHull for long thin
	// triangles when there are no interior points.
	sc.tris = triangulateHull(verts, hull, nin, sc.tris)
	if len(sc.tris) == 0 {
		ctx.Logger().Warn("buildPolyDetail: could not triangulate polygon", zap.Int("verts", nverts))
		return nverts
	}

	if sampleDist > 0 {
		var bmin, bmax [3]float32
		copy(bmin[:], in[:3])
		copy(bmax[:], in[:3])
		for i := 1; i < nin; i++ {
			common.Vmin(bmin[:], in[i*3:])
			common.Vmax(bmax[:], in[i*3:])
		}
		x0 := int(math.Floor(float64(bmin[0] / sampleDist)))
		x1 := int(math.Ceil(float64(bmax[0] / sampleDist)))
		z0 := int(math.Floor(float64(bmin[2] / sampleDist)))
		z1 := int(math.Ceil(float64(bmax[2] / sampleDist)))

		sc.samples = sc.samples[:0]
		for z := z0; z < z1; z++ {
			for x := x0; x < x1; x++ {
				pt := [3]float32{float32(x) * sampleDist, (bmax[1] + bmin[1]) * 0.5, float32(z) * sampleDist}
				// Keep samples away from the edges.
				if distToPoly(nin, in, pt[:]) > -sampleDist/2 {
					continue
				}
				h := getHeight(pt[0], pt[1], pt[2], ics, chf.Ch, heightSearchRadius, hp)
				sc.samples = append(sc.samples, x, int(h), z, 0)
			}
		}

		// Add the worst sample until all are within sampleMaxError.
		nsamples := len(sc.samples) / 4
		for iter := 0; iter < nsamples; iter++ {
			if nverts >= detailMaxVerts {
				break
			}
			var bestpt [3]float32
			var bestd float32
			besti := -1
			for i := 0; i < nsamples; i++ {
				s := sc.samples[i*4:]
				if s[3] != 0 {
					continue
				}
				// Jitter breaks up the symmetric grid, which triangulates badly.
				pt := [3]float32{
					float32(s[0])*sampleDist + getJitterX(i)*cs*0.1,
					float32(s[1]) * chf.Ch,
					float32(s[2])*sampleDist + getJitterY(i)*cs*0.1,
				}
				d := distToTriMesh(pt[:], verts[:nverts*3], sc.tris)
				if d < 0 {
					continue
				}
				if d > bestd {
					bestd = d
					besti = i
					bestpt = pt
				}
			}
			if bestd <= sampleMaxError || besti == -1 {
				break
			}
			sc.samples[besti*4+3] = 1
			copy(verts[nverts*3:nverts*3+3], bestpt[:])
			nverts++

			// TODO: insert incrementally instead of rebuilding the triangulation.
			sc.tris, sc.edges = delaunayHull(ctx, nverts, verts, hull, sc.tris, sc.edges)
		}
	}

	if ntris := len(sc.tris) / 4; ntris > detailMaxTris {
		sc.tris = sc.tris[:detailMaxTris*4]
		ctx.Logger().Error("shrinking detail triangle count", zap.Int("from", ntris), zap.Int("max", detailMaxTris))
	}
	return nverts
}

// seedArrayWithPolyCenter walks from the span closest to a polygon vertex
// towards the polygon center and seeds the height flood fill there.
func seedArrayWithPolyCenter(ctx *RcContext, chf *RcCompactHeightfield, poly []uint16, npoly int, verts []uint16, bs int, hp *rcHeightPatch, queue []int) []int {
	offset := [9 * 2]int{0, 0, -1, -1, 0, -1, 1, -1, 1, 0, 1, 1, 0, 1, -1, 1, -1, 0}

	startCellX, startCellZ, startSpanIndex := 0, 0, -1
	dmin := rcUnsetHeight
	for j := 0; j < npoly && dmin > 0; j++ {
		for k := 0; k < 9 && dmin > 0; k++ {
			ax := int(verts[int(poly[j])*3]) + offset[k*2]
			ay := int(verts[int(poly[j])*3+1])
			az := int(verts[int(poly[j])*3+2]) + offset[k*2+1]
			if ax < hp.xmin || ax >= hp.xmin+hp.width || az < hp.zmin || az >= hp.zmin+hp.height {
				continue
			}
			c := chf.Cells[(ax+bs)+(az+bs)*chf.Width]
			for i := int(c.Index); i < int(c.Index)+int(c.Count) && dmin > 0; i++ {
				if d := common.Abs(ay - int(chf.Spans[i].Y)); d < dmin {
					startCellX, startCellZ, startSpanIndex = ax, az, i
					dmin = d
				}
			}
		}
	}
	if startSpanIndex == -1 {
		return queue[:0]
	}

	pcx, pcz := 0, 0
	for j := 0; j < npoly; j++ {
		pcx += int(verts[int(poly[j])*3])
		pcz += int(verts[int(poly[j])*3+2])
	}
	pcx /= npoly
	pcz /= npoly

	// DFS towards the center; recording nodes avoids getting stuck on
	// simplified contours.
	stack := append(queue[:0], startCellX, startCellZ, startSpanIndex)
	dirs := [4]int{0, 1, 2, 3}
	for i := range hp.data[:hp.width*hp.height] {
		hp.data[i] = 0
	}

	cx, cz, ci := -1, -1, -1
	for {
		if len(stack) < 3 {
			ctx.Logger().Warn("walk towards polygon center failed to reach center")
			break
		}
		ci = stack[len(stack)-1]
		cz = stack[len(stack)-2]
		cx = stack[len(stack)-3]
		stack = stack[:len(stack)-3]

		if cx == pcx && cz == pcz {
			break
		}

		var directDir int
		if cx == pcx {
			if pcz > cz {
				directDir = common.GetDirForOffset(0, 1)
			} else {
				directDir = common.GetDirForOffset(0, -1)
			}
		} else if pcx > cx {
			directDir = common.GetDirForOffset(1, 0)
		} else {
			directDir = common.GetDirForOffset(-1, 0)
		}

		// Push the direct dir last so it is tried first.
		dirs[directDir], dirs[3] = dirs[3], dirs[directDir]

		cs := &chf.Spans[ci]
		for i := 0; i < 4; i++ {
			dir := dirs[i]
			if GetCon(cs, dir) == RC_NOT_CONNECTED {
				continue
			}
			newX := cx + common.GetDirOffsetX(dir)
			newZ := cz + common.GetDirOffsetY(dir)
			hpx := newX - hp.xmin
			hpz := newZ - hp.zmin
			if hpx < 0 || hpx >= hp.width || hpz < 0 || hpz >= hp.height {
				continue
			}
			if hp.data[hpx+hpz*hp.width] != 0 {
				continue
			}
			hp.data[hpx+hpz*hp.width] = 1
			stack = append(stack, newX, newZ, int(chf.Cells[(newX+bs)+(newZ+bs)*chf.Width].Index)+GetCon(cs, dir))
		}

		dirs[directDir], dirs[3] = dirs[3], dirs[directDir]
	}

	// Seeds are in coordinates with borders.
	queue = append(stack[:0], cx+bs, cz+bs, ci)
	for i := range hp.data[:hp.width*hp.height] {
		hp.data[i] = rcUnsetHeight
	}
	hp.data[cx-hp.xmin+(cz-hp.zmin)*hp.width] = chf.Spans[ci].Y
	return queue
}

// getHeightData fills the height patch for a polygon by flooding from the
// region's border spans (or the polygon centre).
func getHeightData(ctx *RcContext, chf *RcCompactHeightfield, poly []uint16, npoly int, verts []uint16, bs int, hp *rcHeightPatch, queue []int, region uint16) []int {
	queue = queue[:0]
	for i := range hp.data[:hp.width*hp.height] {
		hp.data[i] = rcUnsetHeight
	}

	empty := true

	// Polygons merged from several regions may overlap others of those
	// regions, so they are never sampled by region.
	if region != RC_MULTIPLE_REGS {
		for hz := 0; hz < hp.height; hz++ {
			z := hp.zmin + hz + bs
			for hx := 0; hx < hp.width; hx++ {
				x := hp.xmin + hx + bs
				c := chf.Cells[x+z*chf.Width]
				for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
					s := &chf.Spans[i]
					if s.Reg != region {
						continue
					}
					hp.data[hx+hz*hp.width] = s.Y
					empty = false

					border := false
					for dir := 0; dir < 4; dir++ {
						if GetCon(s, dir) != RC_NOT_CONNECTED {
							ai := chf.neighbour(x, z, s, dir)
							if chf.Spans[ai].Reg != region {
								border = true
								break
							}
						}
					}
					if border {
						queue = append(queue, x, z, i)
					}
					break
				}
			}
		}
	}

	if empty {
		queue = seedArrayWithPolyCenter(ctx, chf, poly, npoly, verts, bs, hp, queue)
	}

	const retractSize = 256
	head := 0

	// BFS from the seeds so overlapping polygons are never sampled.
	for head*3 < len(queue) {
		cx, cz, ci := queue[head*3], queue[head*3+1], queue[head*3+2]
		head++
		if head >= retractSize {
			head = 0
			queue = queue[:copy(queue, queue[retractSize*3:])]
		}

		cs := &chf.Spans[ci]
		for dir := 0; dir < 4; dir++ {
			if GetCon(cs, dir) == RC_NOT_CONNECTED {
				continue
			}
			ax := cx + common.GetDirOffsetX(dir)
			az := cz + common.GetDirOffsetY(dir)
			hx := ax - hp.xmin - bs
			hz := az - hp.zmin - bs
			if hx < 0 || hz < 0 || hx >= hp.width || hz >= hp.height {
				continue
			}
			if hp.data[hx+hz*hp.width] != rcUnsetHeight {
				continue
			}
			ai := int(chf.Cells[ax+az*chf.Width].Index) + GetCon(cs, dir)
			hp.data[hx+hz*hp.width] = chf.Spans[ai].Y
			queue = append(queue, ax, az, ai)
		}
	}
	return queue
}

// getEdgeFlags matches the Detour boundary edge flag.
func getEdgeFlags(va, vb []float32, vpoly []float32, npoly int) uint8 {
	const thrSqr = 0.001 * 0.001
	for i, j := 0, npoly-1; i < npoly; j, i = i, i+1 {
		if distancePtSeg2d(va, vpoly[j*3:], vpoly[i*3:]) < thrSqr &&
			distancePtSeg2d(vb, vpoly[j*3:], vpoly[i*3:]) < thrSqr {
			return 1
		}
	}
	return 0
}

func getTriFlags(va, vb, vc []float32, vpoly []float32, npoly int) uint8 {
	var flags uint8
	flags |= getEdgeFlags(va, vb, vpoly, npoly) << 0
	flags |= getEdgeFlags(vb, vc, vpoly, npoly) << 2
	flags |= getEdgeFlags(vc, va, vpoly, npoly) << 4
	return flags
}

// BuildPolyMeshDetail samples the compact heightfield to add height detail to
// every polygon of mesh.
func BuildPolyMeshDetail(ctx *RcContext, mesh *RcPolyMesh, chf *RcCompactHeightfield, sampleDist, sampleMaxError float32) (*RcPolyMeshDetail, error) {
	ctx.StartTimer(RC_TIMER_BUILD_POLYMESHDETAIL)
	defer ctx.StopTimer(RC_TIMER_BUILD_POLYMESHDETAIL)

	dmesh := &RcPolyMeshDetail{}
	if mesh.NVerts == 0 || mesh.NPolys == 0 {
		return dmesh, nil
	}

	nvp := mesh.Nvp
	cs := mesh.Cs
	ch := mesh.Ch
	orig := mesh.Bmin
	borderSize := mesh.BorderSize
	heightSearchRadius := max(1, int(math.Ceil(float64(mesh.MaxEdgeError))))

	bounds := make([]int, mesh.NPolys*4)
	poly := make([]float32, nvp*3)
	nPolyVerts := 0
	maxhw, maxhh := 0, 0

	// Find max size for a polygon area.
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Poly(i)
		xmin, xmax, zmin, zmax := chf.Width, 0, chf.Height, 0
		for j := 0; j < nvp; j++ {
			if p[j] == RC_MESH_NULL_IDX {
				break
			}
			v := mesh.Verts[int(p[j])*3:]
			xmin = min(xmin, int(v[0]))
			xmax = max(xmax, int(v[0]))
			zmin = min(zmin, int(v[2]))
			zmax = max(zmax, int(v[2]))
			nPolyVerts++
		}
		xmin = max(0, xmin-1)
		xmax = min(chf.Width, xmax+1)
		zmin = max(0, zmin-1)
		zmax = min(chf.Height, zmax+1)
		bounds[i*4], bounds[i*4+1], bounds[i*4+2], bounds[i*4+3] = xmin, xmax, zmin, zmax
		if xmin >= xmax || zmin >= zmax {
			continue
		}
		maxhw = max(maxhw, xmax-xmin)
		maxhh = max(maxhh, zmax-zmin)
	}

	hp := &rcHeightPatch{data: make([]uint16, maxhw*maxhh)}

	dmesh.NMeshes = mesh.NPolys
	dmesh.Meshes = make([]uint32, dmesh.NMeshes*4)
	vcap := nPolyVerts + nPolyVerts/2
	dmesh.Verts = make([]float32, 0, vcap*3)
	dmesh.Tris = make([]uint8, 0, vcap*2*4)

	sc := &polyDetailScratch{
		tris:    make([]int, 0, 512),
		edges:   make([]int, 0, 64),
		samples: make([]int, 0, 512),
		queue:   make([]int, 0, 512),
	}

	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Poly(i)

		npoly := 0
		for j := 0; j < nvp; j++ {
			if p[j] == RC_MESH_NULL_IDX {
				break
			}
			v := mesh.Verts[int(p[j])*3:]
			poly[j*3] = float32(v[0]) * cs
			poly[j*3+1] = float32(v[1]) * ch
			poly[j*3+2] = float32(v[2]) * cs
			npoly++
		}

		hp.xmin = bounds[i*4]
		hp.zmin = bounds[i*4+2]
		hp.width = bounds[i*4+1] - bounds[i*4]
		hp.height = bounds[i*4+3] - bounds[i*4+2]
		if hp.width <= 0 || hp.height <= 0 {
			return nil, fmt.Errorf("%w: polygon %d has an empty height patch", ErrInvalidInput, i)
		}
		sc.queue = getHeightData(ctx, chf, p, npoly, mesh.Verts, borderSize, hp, sc.queue, mesh.Regs[i])

		nverts := buildPolyDetail(ctx, poly, npoly, sampleDist, sampleMaxError, heightSearchRadius, chf, hp, sc)
		verts := sc.verts[:nverts*3]

		// Move detail verts to world space.
		for j := 0; j < nverts; j++ {
			verts[j*3] += orig[0]
			verts[j*3+1] += orig[1] + chf.Ch
			verts[j*3+2] += orig[2]
		}
		// The polygon is offset too; it is used for the edge flags.
		for j := 0; j < npoly; j++ {
			poly[j*3] += orig[0]
			poly[j*3+1] += orig[1]
			poly[j*3+2] += orig[2]
		}

		ntris := len(sc.tris) / 4
		dmesh.Meshes[i*4] = uint32(dmesh.NVerts)
		dmesh.Meshes[i*4+1] = uint32(nverts)
		dmesh.Meshes[i*4+2] = uint32(dmesh.NTris)
		dmesh.Meshes[i*4+3] = uint32(ntris)

		dmesh.Verts = append(dmesh.Verts, verts...)
		dmesh.NVerts += nverts

		for j := 0; j < ntris; j++ {
			t := sc.tris[j*4:]
			dmesh.Tris = append(dmesh.Tris,
				uint8(t[0]), uint8(t[1]), uint8(t[2]),
				getTriFlags(verts[t[0]*3:], verts[t[1]*3:], verts[t[2]*3:], poly, npoly))
			dmesh.NTris++
		}
	}
	return dmesh, nil
}
