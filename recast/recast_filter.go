package recast

import "github.com/gorustyt/navbake/common"

type RcSpan struct {
	Smin uint16 ///< The lower limit of the span. [Limit: < #smax]
	Smax uint16 ///< The upper limit of the span. [Limit: <= #RC_SPAN_MAX_HEIGHT]
	Area uint8  ///< The area id assigned to the span.
	Next *RcSpan
}

type rcSpanPool struct {
	next  *rcSpanPool
	items [RC_SPANS_PER_POOL]RcSpan
}

// RcHeightfield is a dynamic heightfield representing obstructed space.
type RcHeightfield struct {
	Width  int ///< Along the x-axis in cell units.
	Height int ///< Along the z-axis in cell units.
	Bmin   [3]float32
	Bmax   [3]float32
	Cs     float32
	Ch     float32
	Spans  []*RcSpan ///< Heightfield of spans (width*height).

	pools    *rcSpanPool
	freelist *RcSpan
}

func CreateHeightfield(sizeX, sizeZ int, bmin, bmax [3]float32, cellSize, cellHeight float32) *RcHeightfield {
	return &RcHeightfield{
		Width:  sizeX,
		Height: sizeZ,
		Bmin:   bmin,
		Bmax:   bmax,
		Cs:     cellSize,
		Ch:     cellHeight,
		Spans:  make([]*RcSpan, sizeX*sizeZ),
	}
}

func (hf *RcHeightfield) allocSpan() *RcSpan {
	if hf.freelist == nil {
		pool := &rcSpanPool{next: hf.pools}
		hf.pools = pool
		for i := RC_SPANS_PER_POOL - 1; i >= 0; i-- {
			pool.items[i].Next = hf.freelist
			hf.freelist = &pool.items[i]
		}
	}
	s := hf.freelist
	hf.freelist = s.Next
	return s
}

func (hf *RcHeightfield) freeSpan(s *RcSpan) {
	if s == nil {
		return
	}
	s.Next = hf.freelist
	hf.freelist = s
}

// SpanCount returns the number of walkable spans.
func (hf *RcHeightfield) SpanCount() int {
	n := 0
	for _, s := range hf.Spans {
		for ; s != nil; s = s.Next {
			if s.Area != RC_NULL_AREA {
				n++
			}
		}
	}
	return n
}

// FilterHeightfield runs the three walkability filters in the order they
// depend on: low obstacles first so curbs are floor before the ledge test,
// clearance last so the floor under a curb is still walkable when the
// obstacle pass looks at it.
func FilterHeightfield(ctx *RcContext, walkableHeight, walkableClimb int, hf *RcHeightfield) {
	FilterLowHangingWalkableObstacles(ctx, walkableClimb, hf)
	FilterLedgeSpans(ctx, walkableHeight, walkableClimb, hf)
	FilterWalkableLowHeightSpans(ctx, walkableHeight, hf)
}

// FilterLowHangingWalkableObstacles marks a non-walkable span as walkable if
// its top is within walkableClimb of the walkable span directly below it.
// This lets curbs and stair steps become part of the floor.
func FilterLowHangingWalkableObstacles(ctx *RcContext, walkableClimb int, hf *RcHeightfield) {
	ctx.StartTimer(RC_TIMER_FILTER_LOW_OBSTACLES)
	defer ctx.StopTimer(RC_TIMER_FILTER_LOW_OBSTACLES)

	for _, col := range hf.Spans {
		var prev *RcSpan
		prevWalkable := false
		prevArea := uint8(RC_NULL_AREA)
		for s := col; s != nil; prev, s = s, s.Next {
			walkable := s.Area != RC_NULL_AREA
			if !walkable && prevWalkable {
				if common.Abs(int(s.Smax)-int(prev.Smax)) <= walkableClimb {
					s.Area = prevArea
				}
			}
			// Copy the original flag so it cannot propagate past multiple obstacles.
			prevWalkable = walkable
			prevArea = s.Area
		}
	}
}

// FilterLedgeSpans marks spans that are ledges as not walkable. A ledge is a
// span with a neighbour more than walkableClimb below it, or whose accessible
// neighbours span a height range larger than walkableClimb (steep slopes).
func FilterLedgeSpans(ctx *RcContext, walkableHeight, walkableClimb int, hf *RcHeightfield) {
	ctx.StartTimer(RC_TIMER_FILTER_BORDER)
	defer ctx.StopTimer(RC_TIMER_FILTER_BORDER)

	const maxHeight = 0xffff
	w, h := hf.Width, hf.Height

	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			for s := hf.Spans[x+z*w]; s != nil; s = s.Next {
				if s.Area == RC_NULL_AREA {
					continue
				}
				bot := int(s.Smax)
				top := maxHeight
				if s.Next != nil {
					top = int(s.Next.Smin)
				}

				minNeighborHeight := maxHeight
				accMin := int(s.Smax)
				accMax := int(s.Smax)

				for dir := 0; dir < 4; dir++ {
					dx := x + common.GetDirOffsetX(dir)
					dz := z + common.GetDirOffsetY(dir)
					if dx < 0 || dz < 0 || dx >= w || dz >= h {
						minNeighborHeight = min(minNeighborHeight, -walkableClimb-bot)
						continue
					}

					ns := hf.Spans[dx+dz*w]
					nbot := -walkableClimb
					ntop := maxHeight
					if ns != nil {
						ntop = int(ns.Smin)
					}
					// The gap below the first neighbour span counts as a drop.
					if min(top, ntop)-max(bot, nbot) > walkableHeight {
						minNeighborHeight = min(minNeighborHeight, nbot-bot)
					}

					for ; ns != nil; ns = ns.Next {
						nbot = int(ns.Smax)
						ntop = maxHeight
						if ns.Next != nil {
							ntop = int(ns.Next.Smin)
						}
						if min(top, ntop)-max(bot, nbot) > walkableHeight {
							minNeighborHeight = min(minNeighborHeight, nbot-bot)
							if common.Abs(nbot-bot) <= walkableClimb {
								accMin = min(accMin, nbot)
								accMax = max(accMax, nbot)
							}
						}
					}
				}

				if minNeighborHeight < -walkableClimb {
					s.Area = RC_NULL_AREA
				} else if accMax-accMin > walkableClimb {
					s.Area = RC_NULL_AREA
				}
			}
		}
	}
}

// FilterWalkableLowHeightSpans removes walkable spans without enough clearance above.
func FilterWalkableLowHeightSpans(ctx *RcContext, walkableHeight int, hf *RcHeightfield) {
	ctx.StartTimer(RC_TIMER_FILTER_WALKABLE)
	defer ctx.StopTimer(RC_TIMER_FILTER_WALKABLE)

	const maxHeight = 0xffff
	for _, col := range hf.Spans {
		for s := col; s != nil; s = s.Next {
			bot := int(s.Smax)
			top := maxHeight
			if s.Next != nil {
				top = int(s.Next.Smin)
			}
			if top-bot < walkableHeight {
				s.Area = RC_NULL_AREA
			}
		}
	}
}
