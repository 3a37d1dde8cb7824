package detour

import (
	"github.com/gorustyt/navbake/common"
)

// Vertex flags returned by DtNavMeshQuery.FindStraightPath.
const (
	DT_STRAIGHTPATH_START              = 0x01 ///< The vertex is the start position in the path.
	DT_STRAIGHTPATH_END                = 0x02 ///< The vertex is the end position in the path.
	DT_STRAIGHTPATH_OFFMESH_CONNECTION = 0x04 ///< The vertex is the start of an off-mesh connection.
)

// H_SCALE keeps the A* heuristic slightly admissible.
const H_SCALE = 0.999

// DtQueryFilter defines polygon filtering and traversal costs for navigation mesh query operations.
type DtQueryFilter struct {
	m_areaCost     [DT_MAX_AREAS]float32 ///< Cost per area type. (Used by default implementation.)
	m_includeFlags uint16                ///< Flags for polygons that can be visited. (Used by default implementation.)
	m_excludeFlags uint16                ///< Flags for polygons that should not be visited. (Used by default implementation.)
}

// NewDtQueryFilter returns a filter that includes every flagged polygon with
// unit cost for every area.
func NewDtQueryFilter() *DtQueryFilter {
	f := &DtQueryFilter{m_includeFlags: 0xffff}
	for i := range f.m_areaCost {
		f.m_areaCost[i] = 1.0
	}
	return f
}

/// @name Getters and setters for the default implementation data.
///@{

// / Returns the traversal cost of the area.
func (filter *DtQueryFilter) GetAreaCost(i int) float32 { return filter.m_areaCost[i] }

// / Sets the traversal cost of the area.
func (filter *DtQueryFilter) SetAreaCost(i int, cost float32) { filter.m_areaCost[i] = cost }

// / Returns the include flags for the filter.
// / Any polygons that include one or more of these flags will be
// / included in the operation.
func (filter *DtQueryFilter) GetIncludeFlags() uint16 { return filter.m_includeFlags }

func (filter *DtQueryFilter) SetIncludeFlags(flags uint16) { filter.m_includeFlags = flags }

// / Returns the exclude flags for the filter.
// / Any polygons that include one ore more of these flags will be
// / excluded from the operation.
func (filter *DtQueryFilter) GetExcludeFlags() uint16 { return filter.m_excludeFlags }

func (filter *DtQueryFilter) SetExcludeFlags(flags uint16) { filter.m_excludeFlags = flags }

///@}

func (filter *DtQueryFilter) getCost(pa, pb []float32, curPoly *DtPoly) float32 {
	return common.Vdist(pa, pb) * filter.m_areaCost[curPoly.GetArea()]
}

func (filter *DtQueryFilter) passFilter(poly *DtPoly) bool {
	return (poly.Flags&filter.m_includeFlags) != 0 && (poly.Flags&filter.m_excludeFlags) == 0
}
