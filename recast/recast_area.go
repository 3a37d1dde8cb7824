package recast

import (
	"slices"

	"github.com/gorustyt/navbake/common"
	"go.uber.org/zap"
)

type RcCompactCell struct {
	Index uint32 ///< Index to the first span in the column.
	Count uint8  ///< Number of spans in the column.
}

// RcCompactSpan is a span of unobstructed space.
type RcCompactSpan struct {
	Y   uint16 ///< The lower extent of the span. (Measured from the heightfield's base.)
	Reg uint16 ///< The id of the region the span belongs to. (Or zero if not in a region.)
	Con uint32 ///< Packed neighbor connection data.
	H   uint8  ///< The height of the span.  (Measured from #y.)
}

// RcCompactHeightfield is a compact, static heightfield representing unobstructed space.
type RcCompactHeightfield struct {
	Width          int
	Height         int
	SpanCount      int
	WalkableHeight int
	WalkableClimb  int
	BorderSize     int
	MaxDistance    uint16 ///< The maximum distance value of any span within the field.
	MaxRegions     uint16 ///< The maximum region id of any span within the field.
	Bmin           [3]float32
	Bmax           [3]float32
	Cs             float32
	Ch             float32
	Cells          []RcCompactCell
	Spans          []RcCompactSpan
	Dist           []uint16 ///< Border distance data. Empty until BuildDistanceField.
	Areas          []uint8
}

func SetCon(s *RcCompactSpan, dir int, i int) {
	shift := uint32(dir * 6)
	s.Con = (s.Con &^ (0x3f << shift)) | (uint32(i&0x3f) << shift)
}

func GetCon(s *RcCompactSpan, dir int) int {
	shift := uint32(dir * 6)
	return int((s.Con >> shift) & 0x3f)
}

// neighbour returns the index of the span connected to span i in direction dir.
// The connection must exist.
func (chf *RcCompactHeightfield) neighbour(x, z int, s *RcCompactSpan, dir int) int {
	nx := x + common.GetDirOffsetX(dir)
	nz := z + common.GetDirOffsetY(dir)
	return int(chf.Cells[nx+nz*chf.Width].Index) + GetCon(s, dir)
}

// BuildCompactHeightfield converts the walkable spans of hf into open spans and
// links neighbours that are reachable given the agent height and climb.
func BuildCompactHeightfield(ctx *RcContext, walkableHeight, walkableClimb int, hf *RcHeightfield) (*RcCompactHeightfield, error) {
	ctx.StartTimer(RC_TIMER_BUILD_COMPACTHEIGHTFIELD)
	defer ctx.StopTimer(RC_TIMER_BUILD_COMPACTHEIGHTFIELD)

	w, h := hf.Width, hf.Height
	spanCount := hf.SpanCount()

	chf := &RcCompactHeightfield{
		Width:          w,
		Height:         h,
		SpanCount:      spanCount,
		WalkableHeight: walkableHeight,
		WalkableClimb:  walkableClimb,
		Bmin:           hf.Bmin,
		Bmax:           hf.Bmax,
		Cs:             hf.Cs,
		Ch:             hf.Ch,
		Cells:          make([]RcCompactCell, w*h),
		Spans:          make([]RcCompactSpan, spanCount),
		Areas:          make([]uint8, spanCount),
	}
	chf.Bmax[1] += float32(walkableHeight) * hf.Ch

	const maxHeight = 0xffff

	idx := 0
	for col := 0; col < w*h; col++ {
		s := hf.Spans[col]
		if s == nil {
			continue
		}
		c := &chf.Cells[col]
		c.Index = uint32(idx)
		for ; s != nil; s = s.Next {
			if s.Area == RC_NULL_AREA {
				continue
			}
			bot := int(s.Smax)
			top := maxHeight
			if s.Next != nil {
				top = int(s.Next.Smin)
			}
			chf.Spans[idx].Y = uint16(common.Clamp(bot, 0, 0xffff))
			chf.Spans[idx].H = uint8(common.Clamp(top-bot, 0, 0xff))
			chf.Areas[idx] = s.Area
			idx++
			c.Count++
		}
	}

	const maxLayers = RC_NOT_CONNECTED - 1
	tooHighNeighbour := 0
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				s := &chf.Spans[i]
				for dir := 0; dir < 4; dir++ {
					SetCon(s, dir, RC_NOT_CONNECTED)
					nx := x + common.GetDirOffsetX(dir)
					nz := z + common.GetDirOffsetY(dir)
					if nx < 0 || nz < 0 || nx >= w || nz >= h {
						continue
					}
					nc := chf.Cells[nx+nz*w]
					for k := int(nc.Index); k < int(nc.Index)+int(nc.Count); k++ {
						ns := &chf.Spans[k]
						bot := max(int(s.Y), int(ns.Y))
						top := min(int(s.Y)+int(s.H), int(ns.Y)+int(ns.H))
						if top-bot >= walkableHeight && common.Abs(int(ns.Y)-int(s.Y)) <= walkableClimb {
							layer := k - int(nc.Index)
							if layer < 0 || layer > maxLayers {
								tooHighNeighbour = max(tooHighNeighbour, layer)
								continue
							}
							SetCon(s, dir, layer)
							break
						}
					}
				}
			}
		}
	}

	if tooHighNeighbour > maxLayers {
		ctx.Logger().Warn("heightfield has too many layers",
			zap.Int("layers", tooHighNeighbour), zap.Int("max", maxLayers))
	}
	return chf, nil
}

// ErodeWalkableArea clears walkable spans closer than radius cells to an
// obstruction, using a two-pass chamfer distance (2 straight, 3 diagonal).
func ErodeWalkableArea(ctx *RcContext, radius int, chf *RcCompactHeightfield) {
	ctx.StartTimer(RC_TIMER_ERODE_AREA)
	defer ctx.StopTimer(RC_TIMER_ERODE_AREA)

	w, h := chf.Width, chf.Height
	dist := make([]uint8, chf.SpanCount)
	for i := range dist {
		dist[i] = 0xff
	}

	// Boundary cells.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				if chf.Areas[i] == RC_NULL_AREA {
					dist[i] = 0
					continue
				}
				s := &chf.Spans[i]
				nc := 0
				for dir := 0; dir < 4; dir++ {
					if GetCon(s, dir) != RC_NOT_CONNECTED {
						if chf.Areas[chf.neighbour(x, z, s, dir)] != RC_NULL_AREA {
							nc++
						}
					}
				}
				if nc != 4 {
					dist[i] = 0
				}
			}
		}
	}

	relax := func(i, ai int, cost int) {
		nd := min(int(dist[ai])+cost, 255)
		if nd < int(dist[i]) {
			dist[i] = uint8(nd)
		}
	}

	// Pass 1
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				s := &chf.Spans[i]
				if GetCon(s, 0) != RC_NOT_CONNECTED {
					// (-1,0)
					ax, az := x+common.GetDirOffsetX(0), z+common.GetDirOffsetY(0)
					ai := chf.neighbour(x, z, s, 0)
					relax(i, ai, 2)
					// (-1,-1)
					if as := &chf.Spans[ai]; GetCon(as, 3) != RC_NOT_CONNECTED {
						relax(i, chf.neighbour(ax, az, as, 3), 3)
					}
				}
				if GetCon(s, 3) != RC_NOT_CONNECTED {
					// (0,-1)
					ax, az := x+common.GetDirOffsetX(3), z+common.GetDirOffsetY(3)
					ai := chf.neighbour(x, z, s, 3)
					relax(i, ai, 2)
					// (1,-1)
					if as := &chf.Spans[ai]; GetCon(as, 2) != RC_NOT_CONNECTED {
						relax(i, chf.neighbour(ax, az, as, 2), 3)
					}
				}
			}
		}
	}

	// Pass 2
	for z := h - 1; z >= 0; z-- {
		for x := w - 1; x >= 0; x-- {
			c := chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				s := &chf.Spans[i]
				if GetCon(s, 2) != RC_NOT_CONNECTED {
					// (1,0)
					ax, az := x+common.GetDirOffsetX(2), z+common.GetDirOffsetY(2)
					ai := chf.neighbour(x, z, s, 2)
					relax(i, ai, 2)
					// (1,1)
					if as := &chf.Spans[ai]; GetCon(as, 1) != RC_NOT_CONNECTED {
						relax(i, chf.neighbour(ax, az, as, 1), 3)
					}
				}
				if GetCon(s, 1) != RC_NOT_CONNECTED {
					// (0,1)
					ax, az := x+common.GetDirOffsetX(1), z+common.GetDirOffsetY(1)
					ai := chf.neighbour(x, z, s, 1)
					relax(i, ai, 2)
					// (-1,1)
					if as := &chf.Spans[ai]; GetCon(as, 0) != RC_NOT_CONNECTED {
						relax(i, chf.neighbour(ax, az, as, 0), 3)
					}
				}
			}
		}
	}

	thr := radius * 2
	for i := 0; i < chf.SpanCount; i++ {
		if int(dist[i]) < thr {
			chf.Areas[i] = RC_NULL_AREA
		}
	}
}

// MedianFilterWalkableArea replaces each walkable area id with the median of
// its 3x3 neighbourhood, removing single-cell area noise.
func MedianFilterWalkableArea(ctx *RcContext, chf *RcCompactHeightfield) {
	w, h := chf.Width, chf.Height
	areas := make([]uint8, chf.SpanCount)
	for i := range areas {
		areas[i] = 0xff
	}

	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				s := &chf.Spans[i]
				if chf.Areas[i] == RC_NULL_AREA {
					areas[i] = chf.Areas[i]
					continue
				}
				var nei [9]uint8
				for j := range nei {
					nei[j] = chf.Areas[i]
				}
				for dir := 0; dir < 4; dir++ {
					if GetCon(s, dir) == RC_NOT_CONNECTED {
						continue
					}
					ax, az := x+common.GetDirOffsetX(dir), z+common.GetDirOffsetY(dir)
					ai := chf.neighbour(x, z, s, dir)
					if chf.Areas[ai] != RC_NULL_AREA {
						nei[dir*2] = chf.Areas[ai]
					}
					as := &chf.Spans[ai]
					dir2 := (dir + 1) & 0x3
					if GetCon(as, dir2) != RC_NOT_CONNECTED {
						ai2 := chf.neighbour(ax, az, as, dir2)
						if chf.Areas[ai2] != RC_NULL_AREA {
							nei[dir*2+1] = chf.Areas[ai2]
						}
					}
				}
				slices.Sort(nei[:])
				areas[i] = nei[4]
			}
		}
	}
	chf.Areas = areas
}

// MarkBoxArea sets the area id of every walkable span inside the box.
func MarkBoxArea(ctx *RcContext, bmin, bmax [3]float32, areaID uint8, chf *RcCompactHeightfield) {
	w, h := chf.Width, chf.Height
	minx := int((bmin[0] - chf.Bmin[0]) / chf.Cs)
	miny := int((bmin[1] - chf.Bmin[1]) / chf.Ch)
	minz := int((bmin[2] - chf.Bmin[2]) / chf.Cs)
	maxx := int((bmax[0] - chf.Bmin[0]) / chf.Cs)
	maxy := int((bmax[1] - chf.Bmin[1]) / chf.Ch)
	maxz := int((bmax[2] - chf.Bmin[2]) / chf.Cs)

	if maxx < 0 || minx >= w || maxz < 0 || minz >= h {
		return
	}
	minx = max(minx, 0)
	maxx = min(maxx, w-1)
	minz = max(minz, 0)
	maxz = min(maxz, h-1)

	for z := minz; z <= maxz; z++ {
		for x := minx; x <= maxx; x++ {
			c := chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				y := int(chf.Spans[i].Y)
				if y >= miny && y <= maxy && chf.Areas[i] != RC_NULL_AREA {
					chf.Areas[i] = areaID
				}
			}
		}
	}
}
