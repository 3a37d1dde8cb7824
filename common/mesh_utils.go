package common

// Prev returns the previous index of i in a ring of n.
func Prev[T IT](i, n T) T {
	if i-1 >= 0 {
		return i - 1
	}
	return n - 1
}

// Next returns the next index of i in a ring of n.
func Next[T IT](i, n T) T {
	if i+1 < n {
		return i + 1
	}
	return 0
}

// DistancePtSegSqr2D returns the squared xz distance from pt to segment pq and
// the parametric position t of the closest point on the segment.
func DistancePtSegSqr2D(pt, p, q []float32) (distSqr, t float32) {
	pqx := q[0] - p[0]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dz := pt[2] - p[2]
	d := pqx*pqx + pqz*pqz
	t = pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	t = Clamp(t, 0, 1)
	dx = p[0] + t*pqx - pt[0]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dz*dz, t
}

// PointInPolygon tests the xz projection of pt against a convex or concave polygon.
func PointInPolygon(pt, verts []float32, nverts int) bool {
	c := false
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		vi := verts[i*3:]
		vj := verts[j*3:]
		if ((vi[2] > pt[2]) != (vj[2] > pt[2])) &&
			(pt[0] < (vj[0]-vi[0])*(pt[2]-vi[2])/(vj[2]-vi[2])+vi[0]) {
			c = !c
		}
	}
	return c
}

// DistancePtPolyEdgesSqr reports whether pt is inside the polygon and fills
// ed/et with the squared distance and parametric position for every edge.
func DistancePtPolyEdgesSqr(pt, verts []float32, nverts int, ed, et []float32) bool {
	c := false
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		vi := verts[i*3:]
		vj := verts[j*3:]
		if ((vi[2] > pt[2]) != (vj[2] > pt[2])) &&
			(pt[0] < (vj[0]-vi[0])*(pt[2]-vi[2])/(vj[2]-vi[2])+vi[0]) {
			c = !c
		}
		ed[j], et[j] = DistancePtSegSqr2D(pt, vj, vi)
	}
	return c
}

// ClosestHeightPointTriangle returns the height of triangle abc under point p,
// or false when p lies outside the xz projection of the triangle.
func ClosestHeightPointTriangle(p, a, b, c []float32) (float32, bool) {
	const eps = 1e-6
	var v0, v1, v2 [3]float32
	Vsub(v0[:], c, a)
	Vsub(v1[:], b, a)
	Vsub(v2[:], p, a)

	// Compute scaled barycentric coordinates.
	denom := v0[0]*v1[2] - v0[2]*v1[0]
	if Abs(denom) < eps {
		return 0, false
	}
	u := v1[2]*v2[0] - v1[0]*v2[2]
	v := v0[0]*v2[2] - v0[2]*v2[0]
	if denom < 0 {
		denom = -denom
		u = -u
		v = -v
	}

	// If point lies inside the triangle, return interpolated y-coord.
	if u >= 0 && v >= 0 && (u+v) <= denom {
		return a[1] + (v0[1]*u+v1[1]*v)/denom, true
	}
	return 0, false
}

// CalcPolyCenter returns the centroid of the polygon described by idx.
func CalcPolyCenter(idx []uint16, nidx int, verts []float32) [3]float32 {
	var tc [3]float32
	for j := 0; j < nidx; j++ {
		v := verts[int(idx[j])*3:]
		tc[0] += v[0]
		tc[1] += v[1]
		tc[2] += v[2]
	}
	s := 1.0 / float32(nidx)
	tc[0] *= s
	tc[1] *= s
	tc[2] *= s
	return tc
}
