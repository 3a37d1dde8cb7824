package recast

import (
	"fmt"
	"math"

	"github.com/gorustyt/navbake/common"
)

type rcAxis int

const (
	RC_AXIS_X rcAxis = 0
	RC_AXIS_Y rcAxis = 1
	RC_AXIS_Z rcAxis = 2
)

// Clipping a triangle against a row and then a column never yields more than 7 vertices.
const maxClipVerts = 7

// dividePoly splits a convex polygon across the plane axis = axisOffset.
// The part on the negative side (delta >= 0) goes to out1, the remainder to out2.
func dividePoly(in []float32, nin int, out1 []float32, out2 []float32, axisOffset float32, axis rcAxis) (n1, n2 int) {
	var delta [12]float32
	for i := 0; i < nin; i++ {
		delta[i] = axisOffset - in[i*3+int(axis)]
	}

	for a, b := 0, nin-1; a < nin; b, a = a, a+1 {
		sameSide := (delta[a] >= 0) == (delta[b] >= 0)
		if !sameSide {
			s := delta[b] / (delta[b] - delta[a])
			out1[n1*3+0] = in[b*3+0] + (in[a*3+0]-in[b*3+0])*s
			out1[n1*3+1] = in[b*3+1] + (in[a*3+1]-in[b*3+1])*s
			out1[n1*3+2] = in[b*3+2] + (in[a*3+2]-in[b*3+2])*s
			copy(out2[n2*3:n2*3+3], out1[n1*3:n1*3+3])
			n1++
			n2++
			// Points on the dividing line were already added above.
			if delta[a] > 0 {
				copy(out1[n1*3:n1*3+3], in[a*3:a*3+3])
				n1++
			} else if delta[a] < 0 {
				copy(out2[n2*3:n2*3+3], in[a*3:a*3+3])
				n2++
			}
			continue
		}
		if delta[a] >= 0 {
			copy(out1[n1*3:n1*3+3], in[a*3:a*3+3])
			n1++
			if delta[a] != 0 {
				continue
			}
		}
		copy(out2[n2*3:n2*3+3], in[a*3:a*3+3])
		n2++
	}
	return n1, n2
}

// addSpan inserts [smin, smax) into column (x, z), merging every overlapping span.
// Area ids are merged (max wins) when the tops are within flagMergeThreshold.
func addSpan(hf *RcHeightfield, x, z int, smin, smax uint16, areaID uint8, flagMergeThreshold int) {
	s := hf.allocSpan()
	s.Smin = smin
	s.Smax = smax
	s.Area = areaID
	s.Next = nil

	idx := x + z*hf.Width
	var prev *RcSpan
	cur := hf.Spans[idx]

	for cur != nil {
		if cur.Smin > s.Smax {
			break
		}
		if cur.Smax < s.Smin {
			prev = cur
			cur = cur.Next
			continue
		}
		if cur.Smin < s.Smin {
			s.Smin = cur.Smin
		}
		if cur.Smax > s.Smax {
			s.Smax = cur.Smax
		}
		if common.Abs(int(s.Smax)-int(cur.Smax)) <= flagMergeThreshold {
			s.Area = max(s.Area, cur.Area)
		}
		next := cur.Next
		hf.freeSpan(cur)
		if prev != nil {
			prev.Next = next
		} else {
			hf.Spans[idx] = next
		}
		cur = next
	}

	if prev != nil {
		s.Next = prev.Next
		prev.Next = s
	} else {
		s.Next = hf.Spans[idx]
		hf.Spans[idx] = s
	}
}

// AddSpan is the exported form of addSpan with bounds checking.
func AddSpan(hf *RcHeightfield, x, z int, smin, smax uint16, areaID uint8, flagMergeThreshold int) error {
	if x < 0 || z < 0 || x >= hf.Width || z >= hf.Height || smin >= smax {
		return fmt.Errorf("%w: span (%d,%d) [%d,%d)", ErrInvalidInput, x, z, smin, smax)
	}
	addSpan(hf, x, z, smin, smax, areaID, flagMergeThreshold)
	return nil
}

func rasterizeTri(v0, v1, v2 []float32, areaID uint8, hf *RcHeightfield, ics, ich float32, flagMergeThreshold int) {
	var triMin, triMax [3]float32
	copy(triMin[:], v0)
	common.Vmin(triMin[:], v1)
	common.Vmin(triMin[:], v2)
	copy(triMax[:], v0)
	common.Vmax(triMax[:], v1)
	common.Vmax(triMax[:], v2)

	if !common.OverlapBounds(triMin[:], triMax[:], hf.Bmin[:], hf.Bmax[:]) {
		return
	}

	w := hf.Width
	h := hf.Height
	by := hf.Bmax[1] - hf.Bmin[1]

	z0 := int((triMin[2] - hf.Bmin[2]) * ics)
	z1 := int((triMax[2] - hf.Bmin[2]) * ics)
	// -1 rather than 0 cuts the polygon properly at the start of the grid.
	z0 = common.Clamp(z0, -1, h-1)
	z1 = common.Clamp(z1, 0, h-1)

	var bufIn, bufRow, bufP1, bufP2 [maxClipVerts * 3]float32
	in, inRow, p1, p2 := bufIn[:], bufRow[:], bufP1[:], bufP2[:]
	copy(in[0:3], v0)
	copy(in[3:6], v1)
	copy(in[6:9], v2)
	nvIn := 3

	for z := z0; z <= z1; z++ {
		cellZ := hf.Bmin[2] + float32(z)*hf.Cs
		var nvRow int
		nvRow, nvIn = dividePoly(in, nvIn, inRow, p1, cellZ+hf.Cs, RC_AXIS_Z)
		in, p1 = p1, in
		if nvRow < 3 || z < 0 {
			continue
		}

		minX, maxX := inRow[0], inRow[0]
		for i := 1; i < nvRow; i++ {
			minX = min(minX, inRow[i*3])
			maxX = max(maxX, inRow[i*3])
		}
		x0 := int((minX - hf.Bmin[0]) * ics)
		x1 := int((maxX - hf.Bmin[0]) * ics)
		if x1 < 0 || x0 >= w {
			continue
		}
		x0 = common.Clamp(x0, -1, w-1)
		x1 = common.Clamp(x1, 0, w-1)

		nv2 := nvRow
		for x := x0; x <= x1; x++ {
			cx := hf.Bmin[0] + float32(x)*hf.Cs
			var nv int
			nv, nv2 = dividePoly(inRow, nv2, p1, p2, cx+hf.Cs, RC_AXIS_X)
			inRow, p2 = p2, inRow
			if nv < 3 || x < 0 {
				continue
			}

			spanMin, spanMax := p1[1], p1[1]
			for i := 1; i < nv; i++ {
				spanMin = min(spanMin, p1[i*3+1])
				spanMax = max(spanMax, p1[i*3+1])
			}
			spanMin -= hf.Bmin[1]
			spanMax -= hf.Bmin[1]
			if spanMax < 0 || spanMin > by {
				continue
			}
			spanMin = max(spanMin, 0)
			spanMax = min(spanMax, by)

			smin := common.Clamp(int(math.Floor(float64(spanMin*ich))), 0, RC_SPAN_MAX_HEIGHT)
			smax := common.Clamp(int(math.Ceil(float64(spanMax*ich))), smin+1, RC_SPAN_MAX_HEIGHT)
			addSpan(hf, x, z, uint16(smin), uint16(smax), areaID, flagMergeThreshold)
		}
	}
}

func RasterizeTriangle(ctx *RcContext, v0, v1, v2 []float32, areaID uint8, hf *RcHeightfield, flagMergeThreshold int) {
	ctx.StartTimer(RC_TIMER_RASTERIZE_TRIANGLES)
	defer ctx.StopTimer(RC_TIMER_RASTERIZE_TRIANGLES)
	rasterizeTri(v0, v1, v2, areaID, hf, 1/hf.Cs, 1/hf.Ch, flagMergeThreshold)
}

// RasterizeTriangles rasterizes the indexed triangles into hf. areas holds one
// area id per triangle.
func RasterizeTriangles(ctx *RcContext, verts []float32, tris []int32, areas []uint8, hf *RcHeightfield, flagMergeThreshold int) error {
	ctx.StartTimer(RC_TIMER_RASTERIZE_TRIANGLES)
	defer ctx.StopTimer(RC_TIMER_RASTERIZE_TRIANGLES)

	ntris := len(tris) / 3
	if ntris == 0 {
		return fmt.Errorf("%w: no triangles", ErrInvalidInput)
	}
	if len(areas) < ntris {
		return fmt.Errorf("%w: %d area ids for %d triangles", ErrInvalidInput, len(areas), ntris)
	}
	nverts := int32(len(verts) / 3)
	ics := 1 / hf.Cs
	ich := 1 / hf.Ch
	for i := 0; i < ntris; i++ {
		a, b, c := tris[i*3], tris[i*3+1], tris[i*3+2]
		if a < 0 || b < 0 || c < 0 || a >= nverts || b >= nverts || c >= nverts {
			return fmt.Errorf("%w: triangle %d references vertex outside [0,%d)", ErrInvalidInput, i, nverts)
		}
		rasterizeTri(common.GetVert3(verts, a), common.GetVert3(verts, b), common.GetVert3(verts, c), areas[i], hf, ics, ich, flagMergeThreshold)
	}
	return nil
}
