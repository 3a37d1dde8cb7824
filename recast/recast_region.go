package recast

import (
	"fmt"

	"github.com/gorustyt/navbake/common"
	"go.uber.org/zap"
)

func calculateDistanceField(chf *RcCompactHeightfield, src []uint16) uint16 {
	w, h := chf.Width, chf.Height
	for i := range src {
		src[i] = 0xffff
	}

	// Mark boundary cells.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				s := &chf.Spans[i]
				area := chf.Areas[i]
				nc := 0
				for dir := 0; dir < 4; dir++ {
					if GetCon(s, dir) != RC_NOT_CONNECTED {
						if area == chf.Areas[chf.neighbour(x, z, s, dir)] {
							nc++
						}
					}
				}
				if nc != 4 {
					src[i] = 0
				}
			}
		}
	}

	relax := func(i, ai, cost int) {
		if int(src[ai])+cost < int(src[i]) {
			src[i] = uint16(int(src[ai]) + cost)
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

	var maxDist uint16
	for _, d := range src {
		maxDist = max(maxDist, d)
	}
	return maxDist
}

func boxBlur(chf *RcCompactHeightfield, thr int, src, dst []uint16) []uint16 {
	w, h := chf.Width, chf.Height
	thr *= 2
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				s := &chf.Spans[i]
				cd := int(src[i])
				if cd <= thr {
					dst[i] = uint16(cd)
					continue
				}
				d := cd
				for dir := 0; dir < 4; dir++ {
					if GetCon(s, dir) == RC_NOT_CONNECTED {
						d += cd * 2
						continue
					}
					ax, az := x+common.GetDirOffsetX(dir), z+common.GetDirOffsetY(dir)
					ai := chf.neighbour(x, z, s, dir)
					d += int(src[ai])
					as := &chf.Spans[ai]
					dir2 := (dir + 1) & 0x3
					if GetCon(as, dir2) != RC_NOT_CONNECTED {
						d += int(src[chf.neighbour(ax, az, as, dir2)])
					} else {
						d += cd
					}
				}
				dst[i] = uint16((d + 5) / 9)
			}
		}
	}
	return dst
}

// BuildDistanceField computes, for every span, the chamfer distance to the
// nearest region boundary and smooths it with a 3x3 box blur.
func BuildDistanceField(ctx *RcContext, chf *RcCompactHeightfield) {
	ctx.StartTimer(RC_TIMER_BUILD_DISTANCEFIELD)
	defer ctx.StopTimer(RC_TIMER_BUILD_DISTANCEFIELD)

	src := make([]uint16, chf.SpanCount)
	dst := make([]uint16, chf.SpanCount)

	ctx.StartTimer(RC_TIMER_BUILD_DISTANCEFIELD_DIST)
	chf.MaxDistance = calculateDistanceField(chf, src)
	ctx.StopTimer(RC_TIMER_BUILD_DISTANCEFIELD_DIST)

	ctx.StartTimer(RC_TIMER_BUILD_DISTANCEFIELD_BLUR)
	chf.Dist = boxBlur(chf, 1, src, dst)
	ctx.StopTimer(RC_TIMER_BUILD_DISTANCEFIELD_BLUR)
}

type levelStackEntry struct {
	x, z  int
	index int
}

type dirtyEntry struct {
	index     int
	region    uint16
	distance2 uint16
}

func floodRegion(x, z, i int, level, r uint16, chf *RcCompactHeightfield, srcReg, srcDist []uint16, stack []levelStackEntry) ([]levelStackEntry, bool) {
	area := chf.Areas[i]

	stack = append(stack[:0], levelStackEntry{x, z, i})
	srcReg[i] = r
	srcDist[i] = 0

	var lev uint16
	if level >= 2 {
		lev = level - 2
	}
	count := 0

	for len(stack) > 0 {
		back := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cx, cz, ci := back.x, back.z, back.index
		cs := &chf.Spans[ci]

		// Stop if a neighbour already belongs to another region.
		var ar uint16
		for dir := 0; dir < 4; dir++ {
			if GetCon(cs, dir) == RC_NOT_CONNECTED {
				continue
			}
			ax, az := cx+common.GetDirOffsetX(dir), cz+common.GetDirOffsetY(dir)
			ai := chf.neighbour(cx, cz, cs, dir)
			if chf.Areas[ai] != area {
				continue
			}
			nr := srcReg[ai]
			if nr&RC_BORDER_REG != 0 {
				continue
			}
			if nr != 0 && nr != r {
				ar = nr
				break
			}
			as := &chf.Spans[ai]
			dir2 := (dir + 1) & 0x3
			if GetCon(as, dir2) != RC_NOT_CONNECTED {
				ai2 := chf.neighbour(ax, az, as, dir2)
				if chf.Areas[ai2] != area {
					continue
				}
				if nr2 := srcReg[ai2]; nr2 != 0 && nr2 != r {
					ar = nr2
					break
				}
			}
		}
		if ar != 0 {
			srcReg[ci] = 0
			continue
		}

		count++

		for dir := 0; dir < 4; dir++ {
			if GetCon(cs, dir) == RC_NOT_CONNECTED {
				continue
			}
			ax, az := cx+common.GetDirOffsetX(dir), cz+common.GetDirOffsetY(dir)
			ai := chf.neighbour(cx, cz, cs, dir)
			if chf.Areas[ai] != area {
				continue
			}
			if chf.Dist[ai] >= lev && srcReg[ai] == 0 {
				srcReg[ai] = r
				srcDist[ai] = 0
				stack = append(stack, levelStackEntry{ax, az, ai})
			}
		}
	}
	return stack, count > 0
}

func expandRegions(maxIter int, level uint16, chf *RcCompactHeightfield, srcReg, srcDist []uint16, stack []levelStackEntry, fillStack bool) []levelStackEntry {
	w, h := chf.Width, chf.Height

	if fillStack {
		// Find cells revealed by the raised level.
		stack = stack[:0]
		for z := 0; z < h; z++ {
			for x := 0; x < w; x++ {
				c := chf.Cells[x+z*w]
				for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
					if chf.Dist[i] >= level && srcReg[i] == 0 && chf.Areas[i] != RC_NULL_AREA {
						stack = append(stack, levelStackEntry{x, z, i})
					}
				}
			}
		}
	} else {
		for j := range stack {
			if i := stack[j].index; i >= 0 && srcReg[i] != 0 {
				stack[j].index = -1
			}
		}
	}

	var dirty []dirtyEntry
	iter := 0
	for len(stack) > 0 {
		failed := 0
		dirty = dirty[:0]

		for j := range stack {
			x, z, i := stack[j].x, stack[j].z, stack[j].index
			if i < 0 {
				failed++
				continue
			}
			r := srcReg[i]
			d2 := uint16(0xffff)
			area := chf.Areas[i]
			s := &chf.Spans[i]
			for dir := 0; dir < 4; dir++ {
				if GetCon(s, dir) == RC_NOT_CONNECTED {
					continue
				}
				ai := chf.neighbour(x, z, s, dir)
				if chf.Areas[ai] != area {
					continue
				}
				if srcReg[ai] > 0 && srcReg[ai]&RC_BORDER_REG == 0 {
					if int(srcDist[ai])+2 < int(d2) {
						r = srcReg[ai]
						d2 = srcDist[ai] + 2
					}
				}
			}
			if r != 0 {
				stack[j].index = -1
				dirty = append(dirty, dirtyEntry{i, r, d2})
			} else {
				failed++
			}
		}

		// Apply after the sweep so every cell of an iteration sees the same state.
		for _, e := range dirty {
			srcReg[e.index] = e.region
			srcDist[e.index] = e.distance2
		}

		if failed == len(stack) {
			break
		}
		if level > 0 {
			iter++
			if iter >= maxIter {
				break
			}
		}
	}
	return stack
}

func sortCellsByLevel(startLevel uint16, chf *RcCompactHeightfield, srcReg []uint16, stacks [][]levelStackEntry, logLevelsPerStack uint) {
	w, h := chf.Width, chf.Height
	start := int(startLevel >> logLevelsPerStack)
	for j := range stacks {
		stacks[j] = stacks[j][:0]
	}
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				if chf.Areas[i] == RC_NULL_AREA || srcReg[i] != 0 {
					continue
				}
				level := int(chf.Dist[i] >> logLevelsPerStack)
				sID := start - level
				if sID >= len(stacks) {
					continue
				}
				sID = max(sID, 0)
				stacks[sID] = append(stacks[sID], levelStackEntry{x, z, i})
			}
		}
	}
}

func appendStacks(src, dst []levelStackEntry, srcReg []uint16) []levelStackEntry {
	for _, e := range src {
		if e.index < 0 || srcReg[e.index] != 0 {
			continue
		}
		dst = append(dst, e)
	}
	return dst
}

func paintRectRegion(minx, maxx, minz, maxz int, regID uint16, chf *RcCompactHeightfield, srcReg []uint16) {
	w := chf.Width
	for z := minz; z < maxz; z++ {
		for x := minx; x < maxx; x++ {
			c := chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				if chf.Areas[i] != RC_NULL_AREA {
					srcReg[i] = regID
				}
			}
		}
	}
}

// BuildRegions partitions the walkable surface into non-overlapping regions
// with a watershed flood from the distance field maxima. BuildDistanceField
// must have been called first.
func BuildRegions(ctx *RcContext, chf *RcCompactHeightfield, borderSize, minRegionArea, mergeRegionArea int) error {
	ctx.StartTimer(RC_TIMER_BUILD_REGIONS)
	defer ctx.StopTimer(RC_TIMER_BUILD_REGIONS)

	if len(chf.Dist) != chf.SpanCount {
		return fmt.Errorf("%w: distance field not built", ErrInvalidInput)
	}
	w, h := chf.Width, chf.Height

	ctx.StartTimer(RC_TIMER_BUILD_REGIONS_WATERSHED)

	const logNbStacks = 3
	const nbStacks = 1 << logNbStacks
	lvlStacks := make([][]levelStackEntry, nbStacks)
	for i := range lvlStacks {
		lvlStacks[i] = make([]levelStackEntry, 0, 256)
	}
	stack := make([]levelStackEntry, 0, 256)

	srcReg := make([]uint16, chf.SpanCount)
	srcDist := make([]uint16, chf.SpanCount)

	regionID := uint16(1)
	level := (chf.MaxDistance + 1) &^ 1

	// How far the watershed overflows per level.
	const expandIters = 8

	if borderSize > 0 {
		bw := min(w, borderSize)
		bh := min(h, borderSize)
		paintRectRegion(0, bw, 0, h, regionID|RC_BORDER_REG, chf, srcReg)
		regionID++
		paintRectRegion(w-bw, w, 0, h, regionID|RC_BORDER_REG, chf, srcReg)
		regionID++
		paintRectRegion(0, w, 0, bh, regionID|RC_BORDER_REG, chf, srcReg)
		regionID++
		paintRectRegion(0, w, h-bh, h, regionID|RC_BORDER_REG, chf, srcReg)
		regionID++
	}
	chf.BorderSize = borderSize

	sID := -1
	for level > 0 {
		if level >= 2 {
			level -= 2
		} else {
			level = 0
		}
		sID = (sID + 1) & (nbStacks - 1)

		if sID == 0 {
			sortCellsByLevel(level, chf, srcReg, lvlStacks, 1)
		} else {
			// Carry over cells left from the previous level.
			lvlStacks[sID] = appendStacks(lvlStacks[sID-1], lvlStacks[sID], srcReg)
		}

		ctx.StartTimer(RC_TIMER_BUILD_REGIONS_EXPAND)
		lvlStacks[sID] = expandRegions(expandIters, level, chf, srcReg, srcDist, lvlStacks[sID], false)
		ctx.StopTimer(RC_TIMER_BUILD_REGIONS_EXPAND)

		ctx.StartTimer(RC_TIMER_BUILD_REGIONS_FLOOD)
		for _, cur := range lvlStacks[sID] {
			if cur.index < 0 || srcReg[cur.index] != 0 {
				continue
			}
			var flooded bool
			stack, flooded = floodRegion(cur.x, cur.z, cur.index, level, regionID, chf, srcReg, srcDist, stack)
			if flooded {
				if regionID == 0xffff {
					ctx.StopTimer(RC_TIMER_BUILD_REGIONS_FLOOD)
					ctx.StopTimer(RC_TIMER_BUILD_REGIONS_WATERSHED)
					return fmt.Errorf("%w: region id overflow", ErrOutOfSpace)
				}
				regionID++
			}
		}
		ctx.StopTimer(RC_TIMER_BUILD_REGIONS_FLOOD)
	}

	expandRegions(expandIters*8, 0, chf, srcReg, srcDist, stack, true)
	ctx.StopTimer(RC_TIMER_BUILD_REGIONS_WATERSHED)

	ctx.StartTimer(RC_TIMER_BUILD_REGIONS_FILTER)
	chf.MaxRegions = regionID
	maxRegions, overlaps := mergeAndFilterRegions(minRegionArea, mergeRegionArea, chf.MaxRegions, chf, srcReg)
	chf.MaxRegions = maxRegions
	if len(overlaps) > 0 {
		ctx.Logger().Error("overlapping regions", zap.Int("count", len(overlaps)))
	}
	ctx.StopTimer(RC_TIMER_BUILD_REGIONS_FILTER)

	for i := range chf.Spans {
		chf.Spans[i].Reg = srcReg[i]
	}
	return nil
}
