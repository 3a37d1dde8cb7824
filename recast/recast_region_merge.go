package recast

import (
	"slices"

	"github.com/gorustyt/navbake/common"
)

type rcRegion struct {
	spanCount   int
	id          uint16
	areaType    uint8
	remap       bool
	visited     bool
	overlap     bool
	ymin, ymax  uint16
	connections []int
	floors      []int
}

func newRcRegion(i int) *rcRegion {
	return &rcRegion{id: uint16(i), ymin: 0xffff}
}

func removeAdjacentNeighbours(reg *rcRegion) {
	for i := 0; i < len(reg.connections) && len(reg.connections) > 1; {
		ni := (i + 1) % len(reg.connections)
		if reg.connections[i] == reg.connections[ni] {
			reg.connections = slices.Delete(reg.connections, i, i+1)
		} else {
			i++
		}
	}
}

func replaceNeighbour(reg *rcRegion, oldID, newID uint16) {
	changed := false
	for i, c := range reg.connections {
		if c == int(oldID) {
			reg.connections[i] = int(newID)
			changed = true
		}
	}
	for i, f := range reg.floors {
		if f == int(oldID) {
			reg.floors[i] = int(newID)
		}
	}
	if changed {
		removeAdjacentNeighbours(reg)
	}
}

func canMergeWithRegion(rega, regb *rcRegion) bool {
	if rega.areaType != regb.areaType {
		return false
	}
	n := 0
	for _, c := range rega.connections {
		if c == int(regb.id) {
			n++
		}
	}
	if n > 1 {
		return false
	}
	return !slices.Contains(rega.floors, int(regb.id))
}

func addUniqueFloorRegion(reg *rcRegion, n int) {
	if !slices.Contains(reg.floors, n) {
		reg.floors = append(reg.floors, n)
	}
}

func mergeRegions(rega, regb *rcRegion) bool {
	aid, bid := int(rega.id), int(regb.id)

	acon := slices.Clone(rega.connections)
	bcon := regb.connections

	insa := slices.Index(acon, bid)
	if insa == -1 {
		return false
	}
	insb := slices.Index(bcon, aid)
	if insb == -1 {
		return false
	}

	rega.connections = rega.connections[:0]
	for i, ni := 0, len(acon); i < ni-1; i++ {
		rega.connections = append(rega.connections, acon[(insa+1+i)%ni])
	}
	for i, ni := 0, len(bcon); i < ni-1; i++ {
		rega.connections = append(rega.connections, bcon[(insb+1+i)%ni])
	}
	removeAdjacentNeighbours(rega)

	for _, f := range regb.floors {
		addUniqueFloorRegion(rega, f)
	}
	rega.spanCount += regb.spanCount
	regb.spanCount = 0
	regb.connections = regb.connections[:0]
	return true
}

func isRegionConnectedToBorder(reg *rcRegion) bool {
	return slices.Contains(reg.connections, 0)
}

func isSolidEdge(chf *RcCompactHeightfield, srcReg []uint16, x, z, i, dir int) bool {
	s := &chf.Spans[i]
	var r uint16
	if GetCon(s, dir) != RC_NOT_CONNECTED {
		r = srcReg[chf.neighbour(x, z, s, dir)]
	}
	return r != srcReg[i]
}

// walkRegionContour collects the ids of the regions along the boundary of the
// region containing span i, starting at the solid edge dir.
func walkRegionContour(x, z, i, dir int, chf *RcCompactHeightfield, srcReg []uint16) []int {
	startDir := dir
	starti := i

	ss := &chf.Spans[i]
	var curReg uint16
	if GetCon(ss, dir) != RC_NOT_CONNECTED {
		curReg = srcReg[chf.neighbour(x, z, ss, dir)]
	}
	cont := []int{int(curReg)}

	for iter := 1; iter < 40000; iter++ {
		s := &chf.Spans[i]
		if isSolidEdge(chf, srcReg, x, z, i, dir) {
			var r uint16
			if GetCon(s, dir) != RC_NOT_CONNECTED {
				r = srcReg[chf.neighbour(x, z, s, dir)]
			}
			if r != curReg {
				curReg = r
				cont = append(cont, int(curReg))
			}
			dir = (dir + 1) & 0x3 // Rotate CW
		} else {
			if GetCon(s, dir) == RC_NOT_CONNECTED {
				return cont
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

	if len(cont) > 1 {
		for j := 0; j < len(cont); {
			nj := (j + 1) % len(cont)
			if cont[j] == cont[nj] {
				cont = slices.Delete(cont, j, j+1)
			} else {
				j++
			}
		}
	}
	return cont
}

// mergeAndFilterRegions removes island regions smaller than minRegionArea,
// merges regions smaller than mergeRegionSize into their smallest neighbour
// and compacts the ids. It returns the new max region id and the ids found
// to overlap vertically.
func mergeAndFilterRegions(minRegionArea, mergeRegionSize int, maxRegionID uint16, chf *RcCompactHeightfield, srcReg []uint16) (uint16, []uint16) {
	w, h := chf.Width, chf.Height
	nreg := int(maxRegionID) + 1
	regions := make([]*rcRegion, nreg)
	for i := range regions {
		regions[i] = newRcRegion(i)
	}

	// Find the edge of each region and the connections around its contour.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := chf.Cells[x+z*w]
			ni := int(c.Index) + int(c.Count)
			for i := int(c.Index); i < ni; i++ {
				r := int(srcReg[i])
				if r == 0 || r >= nreg {
					continue
				}
				reg := regions[r]
				reg.spanCount++

				for j := int(c.Index); j < ni; j++ {
					if i == j {
						continue
					}
					floorID := int(srcReg[j])
					if floorID == 0 || floorID >= nreg {
						continue
					}
					if floorID == r {
						reg.overlap = true
					}
					addUniqueFloorRegion(reg, floorID)
				}

				if len(reg.connections) > 0 {
					continue
				}
				reg.areaType = chf.Areas[i]

				ndir := -1
				for dir := 0; dir < 4; dir++ {
					if isSolidEdge(chf, srcReg, x, z, i, dir) {
						ndir = dir
						break
					}
				}
				if ndir != -1 {
					reg.connections = walkRegionContour(x, z, i, ndir, chf, srcReg)
				}
			}
		}
	}

	// Remove too small regions.
	var stack, trace []int
	for i := 0; i < nreg; i++ {
		reg := regions[i]
		if reg.id == 0 || reg.id&RC_BORDER_REG != 0 || reg.spanCount == 0 || reg.visited {
			continue
		}

		connectsToBorder := false
		spanCount := 0
		stack = append(stack[:0], i)
		trace = trace[:0]
		reg.visited = true

		for len(stack) > 0 {
			ri := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			creg := regions[ri]
			spanCount += creg.spanCount
			trace = append(trace, ri)
			for _, c := range creg.connections {
				if c&RC_BORDER_REG != 0 {
					connectsToBorder = true
					continue
				}
				nei := regions[c]
				if nei.visited || nei.id == 0 || nei.id&RC_BORDER_REG != 0 {
					continue
				}
				stack = append(stack, int(nei.id))
				nei.visited = true
			}
		}

		// Regions touching the tile border cannot be sized reliably; keep them.
		if spanCount < minRegionArea && !connectsToBorder {
			for _, t := range trace {
				regions[t].spanCount = 0
				regions[t].id = 0
			}
		}
	}

	// Merge too small regions into neighbour regions.
	for {
		mergeCount := 0
		for i := 0; i < nreg; i++ {
			reg := regions[i]
			if reg.id == 0 || reg.id&RC_BORDER_REG != 0 || reg.overlap || reg.spanCount == 0 {
				continue
			}
			if reg.spanCount > mergeRegionSize && isRegionConnectedToBorder(reg) {
				continue
			}

			smallest := 0xfffffff
			mergeID := reg.id
			for _, c := range reg.connections {
				if c&RC_BORDER_REG != 0 {
					continue
				}
				mreg := regions[c]
				if mreg.id == 0 || mreg.id&RC_BORDER_REG != 0 || mreg.overlap {
					continue
				}
				if mreg.spanCount < smallest && canMergeWithRegion(reg, mreg) && canMergeWithRegion(mreg, reg) {
					smallest = mreg.spanCount
					mergeID = mreg.id
				}
			}

			if mergeID == reg.id {
				continue
			}
			oldID := reg.id
			if mergeRegions(regions[mergeID], reg) {
				for _, other := range regions {
					if other.id == 0 || other.id&RC_BORDER_REG != 0 {
						continue
					}
					if other.id == oldID {
						other.id = mergeID
					}
					replaceNeighbour(other, oldID, mergeID)
				}
				mergeCount++
			}
		}
		if mergeCount == 0 {
			break
		}
	}

	// Compress region ids.
	for _, reg := range regions {
		reg.remap = reg.id != 0 && reg.id&RC_BORDER_REG == 0
	}
	var regIDGen uint16
	for i := 0; i < nreg; i++ {
		if !regions[i].remap {
			continue
		}
		oldID := regions[i].id
		regIDGen++
		for j := i; j < nreg; j++ {
			if regions[j].id == oldID {
				regions[j].id = regIDGen
				regions[j].remap = false
			}
		}
	}

	for i := range srcReg {
		if srcReg[i]&RC_BORDER_REG == 0 {
			srcReg[i] = regions[srcReg[i]].id
		}
	}

	var overlaps []uint16
	for _, reg := range regions {
		if reg.overlap {
			overlaps = append(overlaps, reg.id)
		}
	}
	return regIDGen, overlaps
}
