package recast

import (
	"slices"

	"github.com/gorustyt/navbake/common"
	"go.uber.org/zap"
)

// RcContour is a simplified region outline. Vertices are (x, y, z, flags)
// quadruples in cell units.
type RcContour struct {
	Verts  []int  ///< Simplified contour vertex and connection data. [Size: 4 * #NVerts()]
	RVerts []int  ///< Raw contour vertex and connection data.
	Reg    uint16 ///< The region id of the contour.
	Area   uint8  ///< The area id of the contour.
}

func (c *RcContour) NVerts() int { return len(c.Verts) / 4 }

type RcContourSet struct {
	Conts      []*RcContour
	Bmin       [3]float32
	Bmax       [3]float32
	Cs         float32
	Ch         float32
	Width      int
	Height     int
	BorderSize int
	MaxError   float32
}

func getCornerHeight(x, z, i, dir int, chf *RcCompactHeightfield) (height int, isBorderVertex bool) {
	s := &chf.Spans[i]
	ch := int(s.Y)
	dirp := (dir + 1) & 0x3

	// Region and area are combined so vertices between two areas are kept.
	var regs [4]uint32
	regs[0] = uint32(s.Reg) | uint32(chf.Areas[i])<<16

	if GetCon(s, dir) != RC_NOT_CONNECTED {
		ax, az := x+common.GetDirOffsetX(dir), z+common.GetDirOffsetY(dir)
		ai := chf.neighbour(x, z, s, dir)
		as := &chf.Spans[ai]
		ch = max(ch, int(as.Y))
		regs[1] = uint32(as.Reg) | uint32(chf.Areas[ai])<<16
		if GetCon(as, dirp) != RC_NOT_CONNECTED {
			ai2 := chf.neighbour(ax, az, as, dirp)
			as2 := &chf.Spans[ai2]
			ch = max(ch, int(as2.Y))
			regs[2] = uint32(as2.Reg) | uint32(chf.Areas[ai2])<<16
		}
	}
	if GetCon(s, dirp) != RC_NOT_CONNECTED {
		ax, az := x+common.GetDirOffsetX(dirp), z+common.GetDirOffsetY(dirp)
		ai := chf.neighbour(x, z, s, dirp)
		as := &chf.Spans[ai]
		ch = max(ch, int(as.Y))
		regs[3] = uint32(as.Reg) | uint32(chf.Areas[ai])<<16
		if GetCon(as, dir) != RC_NOT_CONNECTED {
			ai2 := chf.neighbour(ax, az, as, dir)
			as2 := &chf.Spans[ai2]
			ch = max(ch, int(as2.Y))
			regs[2] = uint32(as2.Reg) | uint32(chf.Areas[ai2])<<16
		}
	}

	// Two equal exterior cells in a row followed by two interior cells of the
	// same area mark a border vertex, removed later.
	for j := 0; j < 4; j++ {
		a, b, c, d := j, (j+1)&0x3, (j+2)&0x3, (j+3)&0x3
		twoSameExts := regs[a]&regs[b]&RC_BORDER_REG != 0 && regs[a] == regs[b]
		twoInts := (regs[c]|regs[d])&RC_BORDER_REG == 0
		intsSameArea := regs[c]>>16 == regs[d]>>16
		noZeros := regs[a] != 0 && regs[b] != 0 && regs[c] != 0 && regs[d] != 0
		if twoSameExts && twoInts && intsSameArea && noZeros {
			isBorderVertex = true
			break
		}
	}
	return ch, isBorderVertex
}

func walkContour(x, z, i int, chf *RcCompactHeightfield, flags []uint8, points []int) []int {
	dir := 0
	for flags[i]&(1<<dir) == 0 {
		dir++
	}
	startDir := dir
	starti := i
	area := chf.Areas[i]

	for iter := 1; iter < 40000; iter++ {
		if flags[i]&(1<<dir) != 0 {
			py, isBorderVertex := getCornerHeight(x, z, i, dir, chf)
			isAreaBorder := false
			px, pz := x, z
			switch dir {
			case 0:
				pz++
			case 1:
				px++
				pz++
			case 2:
				px++
			}
			r := 0
			s := &chf.Spans[i]
			if GetCon(s, dir) != RC_NOT_CONNECTED {
				ai := chf.neighbour(x, z, s, dir)
				r = int(chf.Spans[ai].Reg)
				if area != chf.Areas[ai] {
					isAreaBorder = true
				}
			}
			if isBorderVertex {
				r |= RC_BORDER_VERTEX
			}
			if isAreaBorder {
				r |= RC_AREA_BORDER
			}
			points = append(points, px, py, pz, r)
			flags[i] &^= 1 << dir
			dir = (dir + 1) & 0x3 // Rotate CW
		} else {
			s := &chf.Spans[i]
			if GetCon(s, dir) == RC_NOT_CONNECTED {
				return points
			}
			ni := chf.neighbour(x, z, s, dir)
			x += common.GetDirOffsetX(dir)
			z += common.GetDirOffsetY(dir)
			i = ni
			dir = (dir + 3) & 0x3 // Rotate CCW
		}
		if starti == i && startDir == dir {
			break
		}
	}
	return points
}

func distancePtSegInt(x, z, px, pz, qx, qz int) float32 {
	pqx := float32(qx - px)
	pqz := float32(qz - pz)
	dx := float32(x - px)
	dz := float32(z - pz)
	d := pqx*pqx + pqz*pqz
	t := pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	t = common.Clamp(t, 0, 1)
	dx = float32(px) + t*pqx - float32(x)
	dz = float32(pz) + t*pqz - float32(z)
	return dx*dx + dz*dz
}

func insertSimplified(simplified []int, at int, points []int, pi int) []int {
	return slices.Insert(simplified, at*4, points[pi*4], points[pi*4+1], points[pi*4+2], pi)
}

// simplifyContour reduces the raw contour to the points needed to stay within
// maxError of it, then splits wall edges longer than maxEdgeLen.
func simplifyContour(points []int, maxError float32, maxEdgeLen int, buildFlags int) []int {
	var simplified []int
	pn := len(points) / 4

	hasConnections := false
	for i := 0; i < pn; i++ {
		if points[i*4+3]&RC_CONTOUR_REG_MASK != 0 {
			hasConnections = true
			break
		}
	}

	if hasConnections {
		// Keep every point where the neighbour region or area changes.
		for i := 0; i < pn; i++ {
			ii := (i + 1) % pn
			differentRegs := points[i*4+3]&RC_CONTOUR_REG_MASK != points[ii*4+3]&RC_CONTOUR_REG_MASK
			areaBorders := points[i*4+3]&RC_AREA_BORDER != points[ii*4+3]&RC_AREA_BORDER
			if differentRegs || areaBorders {
				simplified = append(simplified, points[i*4], points[i*4+1], points[i*4+2], i)
			}
		}
	}

	if len(simplified) == 0 {
		// Seed with the lower-left and upper-right vertices.
		llx, lly, llz, lli := points[0], points[1], points[2], 0
		urx, ury, urz, uri := points[0], points[1], points[2], 0
		for i := 0; i < pn; i++ {
			x, y, z := points[i*4], points[i*4+1], points[i*4+2]
			if x < llx || (x == llx && z < llz) {
				llx, lly, llz, lli = x, y, z, i
			}
			if x > urx || (x == urx && z > urz) {
				urx, ury, urz, uri = x, y, z, i
			}
		}
		simplified = append(simplified, llx, lly, llz, lli, urx, ury, urz, uri)
	}

	// Add points until every raw point is within maxError of the simplified shape.
	for i := 0; i < len(simplified)/4; {
		ii := (i + 1) % (len(simplified) / 4)
		ax, az, ai := simplified[i*4], simplified[i*4+2], simplified[i*4+3]
		bx, bz, bi := simplified[ii*4], simplified[ii*4+2], simplified[ii*4+3]

		var maxd float32
		maxi := -1
		var ci, cinc, endi int

		// Traverse in lexicographic order so opposite segments are simplified alike.
		if bx > ax || (bx == ax && bz > az) {
			cinc = 1
			ci = (ai + cinc) % pn
			endi = bi
		} else {
			cinc = pn - 1
			ci = (bi + cinc) % pn
			endi = ai
			ax, bx = bx, ax
			az, bz = bz, az
		}

		// Tessellate only outer edges or edges between areas.
		if points[ci*4+3]&RC_CONTOUR_REG_MASK == 0 || points[ci*4+3]&RC_AREA_BORDER != 0 {
			for ci != endi {
				d := distancePtSegInt(points[ci*4], points[ci*4+2], ax, az, bx, bz)
				if d > maxd {
					maxd = d
					maxi = ci
				}
				ci = (ci + cinc) % pn
			}
		}

		if maxi != -1 && maxd > maxError*maxError {
			simplified = insertSimplified(simplified, i+1, points, maxi)
		} else {
			i++
		}
	}

	// Split too long edges.
	if maxEdgeLen > 0 && buildFlags&(RC_CONTOUR_TESS_WALL_EDGES|RC_CONTOUR_TESS_AREA_EDGES) != 0 {
		for i := 0; i < len(simplified)/4; {
			ii := (i + 1) % (len(simplified) / 4)
			ax, az, ai := simplified[i*4], simplified[i*4+2], simplified[i*4+3]
			bx, bz, bi := simplified[ii*4], simplified[ii*4+2], simplified[ii*4+3]

			maxi := -1
			ci := (ai + 1) % pn

			tess := false
			if buildFlags&RC_CONTOUR_TESS_WALL_EDGES != 0 && points[ci*4+3]&RC_CONTOUR_REG_MASK == 0 {
				tess = true
			}
			if buildFlags&RC_CONTOUR_TESS_AREA_EDGES != 0 && points[ci*4+3]&RC_AREA_BORDER != 0 {
				tess = true
			}

			if tess {
				dx := bx - ax
				dz := bz - az
				if dx*dx+dz*dz > maxEdgeLen*maxEdgeLen {
					// Round in lexicographic order so both traversal directions agree.
					n := bi - ai
					if bi < ai {
						n = bi + pn - ai
					}
					if n > 1 {
						if bx > ax || (bx == ax && bz > az) {
							maxi = (ai + n/2) % pn
						} else {
							maxi = (ai + (n+1)/2) % pn
						}
					}
				}
			}

			if maxi != -1 {
				simplified = insertSimplified(simplified, i+1, points, maxi)
			} else {
				i++
			}
		}
	}

	for i := 0; i < len(simplified)/4; i++ {
		// Edge vertex flag from the current raw point, neighbour region from the next.
		ai := (simplified[i*4+3] + 1) % pn
		bi := simplified[i*4+3]
		simplified[i*4+3] = (points[ai*4+3] & (RC_CONTOUR_REG_MASK | RC_AREA_BORDER)) | (points[bi*4+3] & RC_BORDER_VERTEX)
	}
	return simplified
}

func calcAreaOfPolygon2D(verts []int, nverts int) int {
	area := 0
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		vi := verts[i*4:]
		vj := verts[j*4:]
		area += vi[0]*vj[2] - vj[0]*vi[2]
	}
	return (area + 1) / 2
}

// removeDegenerateSegments drops adjacent vertices that coincide on the xz-plane.
func removeDegenerateSegments(simplified []int) []int {
	npts := len(simplified) / 4
	for i := 0; i < npts; i++ {
		ni := next(i, npts)
		if vequal(simplified[i*4:], simplified[ni*4:]) {
			simplified = slices.Delete(simplified, i*4, i*4+4)
			npts--
		}
	}
	return simplified
}

func intersectSegContour(d0, d1 []int, i, n int, verts []int) bool {
	for k := 0; k < n; k++ {
		k1 := next(k, n)
		if i == k || i == k1 {
			continue
		}
		p0 := verts[k*4:]
		p1 := verts[k1*4:]
		if vequal(d0, p0) || vequal(d1, p0) || vequal(d0, p1) || vequal(d1, p1) {
			continue
		}
		if intersect(d0, d1, p0, p1) {
			return true
		}
	}
	return false
}

func contourInCone(i, n int, verts []int, pj []int) bool {
	pi := verts[i*4:]
	pi1 := verts[next(i, n)*4:]
	pin1 := verts[prev(i, n)*4:]
	if leftOn(pin1, pi, pi1) {
		return left(pi, pj, pin1) && left(pj, pi, pi1)
	}
	return !(leftOn(pi, pj, pi1) && leftOn(pj, pi, pin1))
}

// mergeContours splices cb into ca through the diagonal (ia, ib).
func mergeContours(ca, cb *RcContour, ia, ib int) {
	na, nb := ca.NVerts(), cb.NVerts()
	verts := make([]int, 0, (na+nb+2)*4)
	for i := 0; i <= na; i++ {
		src := ca.Verts[((ia+i)%na)*4:]
		verts = append(verts, src[:4]...)
	}
	for i := 0; i <= nb; i++ {
		src := cb.Verts[((ib+i)%nb)*4:]
		verts = append(verts, src[:4]...)
	}
	ca.Verts = verts
	cb.Verts = nil
}

type rcContourHole struct {
	contour    *RcContour
	minx, minz int
	leftmost   int
}

type rcContourRegion struct {
	outline *RcContour
	holes   []*rcContourHole
}

type rcPotentialDiagonal struct {
	vert int
	dist int
}

func findLeftMostVertex(c *RcContour) (minx, minz, leftmost int) {
	minx, minz = c.Verts[0], c.Verts[2]
	for i := 1; i < c.NVerts(); i++ {
		x, z := c.Verts[i*4], c.Verts[i*4+2]
		if x < minx || (x == minx && z < minz) {
			minx, minz, leftmost = x, z, i
		}
	}
	return minx, minz, leftmost
}

func mergeRegionHoles(ctx *RcContext, region *rcContourRegion) {
	for _, h := range region.holes {
		h.minx, h.minz, h.leftmost = findLeftMostVertex(h.contour)
	}
	slices.SortFunc(region.holes, func(a, b *rcContourHole) int {
		if a.minx != b.minx {
			return a.minx - b.minx
		}
		return a.minz - b.minz
	})

	outline := region.outline
	var diags []rcPotentialDiagonal

	for i, h := range region.holes {
		hole := h.contour
		index := -1
		bestVertex := h.leftmost
		for iter := 0; iter < hole.NVerts(); iter++ {
			// The best vertex must lie in the cone of three consecutive outline vertices.
			diags = diags[:0]
			corner := hole.Verts[bestVertex*4:]
			for j := 0; j < outline.NVerts(); j++ {
				if contourInCone(j, outline.NVerts(), outline.Verts, corner) {
					dx := outline.Verts[j*4] - corner[0]
					dz := outline.Verts[j*4+2] - corner[2]
					diags = append(diags, rcPotentialDiagonal{vert: j, dist: dx*dx + dz*dz})
				}
			}
			slices.SortStableFunc(diags, func(a, b rcPotentialDiagonal) int { return a.dist - b.dist })

			// Shortest diagonal that crosses neither the outline nor the remaining holes.
			index = -1
			for _, d := range diags {
				pt := outline.Verts[d.vert*4:]
				crossed := intersectSegContour(pt, corner, d.vert, outline.NVerts(), outline.Verts)
				for k := i; k < len(region.holes) && !crossed; k++ {
					other := region.holes[k].contour
					crossed = intersectSegContour(pt, corner, -1, other.NVerts(), other.Verts)
				}
				if !crossed {
					index = d.vert
					break
				}
			}
			if index != -1 {
				break
			}
			bestVertex = (bestVertex + 1) % hole.NVerts()
		}

		if index == -1 {
			ctx.Logger().Warn("failed to find merge points for contour hole",
				zap.Uint16("region", outline.Reg))
			continue
		}
		mergeContours(outline, hole, index, bestVertex)
	}
}

// BuildContours traces and simplifies the boundary of every region.
func BuildContours(ctx *RcContext, chf *RcCompactHeightfield, maxError float32, maxEdgeLen int, buildFlags int) (*RcContourSet, error) {
	ctx.StartTimer(RC_TIMER_BUILD_CONTOURS)
	defer ctx.StopTimer(RC_TIMER_BUILD_CONTOURS)

	w, h := chf.Width, chf.Height
	borderSize := chf.BorderSize

	cset := &RcContourSet{
		Bmin:       chf.Bmin,
		Bmax:       chf.Bmax,
		Cs:         chf.Cs,
		Ch:         chf.Ch,
		Width:      chf.Width - borderSize*2,
		Height:     chf.Height - borderSize*2,
		BorderSize: borderSize,
		MaxError:   maxError,
		Conts:      make([]*RcContour, 0, max(int(chf.MaxRegions), 8)),
	}
	if borderSize > 0 {
		pad := float32(borderSize) * chf.Cs
		cset.Bmin[0] += pad
		cset.Bmin[2] += pad
		cset.Bmax[0] -= pad
		cset.Bmax[2] -= pad
	}

	flags := make([]uint8, chf.SpanCount)

	ctx.StartTimer(RC_TIMER_BUILD_CONTOURS_TRACE)
	// Mark boundaries.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				s := &chf.Spans[i]
				if s.Reg == 0 || s.Reg&RC_BORDER_REG != 0 {
					flags[i] = 0
					continue
				}
				var res uint8
				for dir := 0; dir < 4; dir++ {
					var r uint16
					if GetCon(s, dir) != RC_NOT_CONNECTED {
						r = chf.Spans[chf.neighbour(x, z, s, dir)].Reg
					}
					if r == s.Reg {
						res |= 1 << dir
					}
				}
				flags[i] = res ^ 0xf // Inverse, mark non connected edges.
			}
		}
	}
	ctx.StopTimer(RC_TIMER_BUILD_CONTOURS_TRACE)

	verts := make([]int, 0, 256)
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				if flags[i] == 0 || flags[i] == 0xf {
					flags[i] = 0
					continue
				}
				reg := chf.Spans[i].Reg
				if reg == 0 || reg&RC_BORDER_REG != 0 {
					continue
				}
				area := chf.Areas[i]

				ctx.StartTimer(RC_TIMER_BUILD_CONTOURS_TRACE)
				verts = walkContour(x, z, i, chf, flags, verts[:0])
				ctx.StopTimer(RC_TIMER_BUILD_CONTOURS_TRACE)

				ctx.StartTimer(RC_TIMER_BUILD_CONTOURS_SIMPLIFY)
				simplified := simplifyContour(verts, maxError, maxEdgeLen, buildFlags)
				simplified = removeDegenerateSegments(simplified)
				ctx.StopTimer(RC_TIMER_BUILD_CONTOURS_SIMPLIFY)

				if len(simplified)/4 < 3 {
					continue
				}
				cont := &RcContour{
					Verts:  simplified,
					RVerts: slices.Clone(verts),
					Reg:    reg,
					Area:   area,
				}
				if borderSize > 0 {
					for j := 0; j < len(cont.Verts); j += 4 {
						cont.Verts[j] -= borderSize
						cont.Verts[j+2] -= borderSize
					}
					for j := 0; j < len(cont.RVerts); j += 4 {
						cont.RVerts[j] -= borderSize
						cont.RVerts[j+2] -= borderSize
					}
				}
				cset.Conts = append(cset.Conts, cont)
			}
		}
	}

	// Merge holes if needed.
	if len(cset.Conts) > 0 {
		winding := make([]int8, len(cset.Conts))
		nholes := 0
		for i, cont := range cset.Conts {
			// A contour wound backwards is a hole.
			winding[i] = 1
			if calcAreaOfPolygon2D(cont.Verts, cont.NVerts()) < 0 {
				winding[i] = -1
				nholes++
			}
		}

		if nholes > 0 {
			nregions := int(chf.MaxRegions) + 1
			regions := make([]rcContourRegion, nregions)
			for i, cont := range cset.Conts {
				reg := &regions[cont.Reg]
				if winding[i] > 0 {
					if reg.outline != nil {
						ctx.Logger().Error("multiple outlines for region", zap.Uint16("region", cont.Reg))
					}
					reg.outline = cont
				} else {
					reg.holes = append(reg.holes, &rcContourHole{contour: cont})
				}
			}
			for i := range regions {
				reg := &regions[i]
				if len(reg.holes) == 0 {
					continue
				}
				if reg.outline != nil {
					mergeRegionHoles(ctx, reg)
				} else {
					// Happens when simplification is too aggressive and the outline self-overlaps.
					ctx.Logger().Error("bad outline for region, contour simplification is likely too aggressive",
						zap.Int("region", i))
				}
			}
		}
	}

	return cset, nil
}
