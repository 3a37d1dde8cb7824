package detour

import (
	"fmt"
	"math"
	"slices"

	"github.com/gorustyt/navbake/common"
)

// DtNavMeshQuery provides the ability to perform pathfinding related queries
// against a navigation mesh. The mesh is shared; the node pool and open list
// are not, so one query must not be used from two goroutines at once.
type DtNavMeshQuery struct {
	m_nav      *DtNavMesh          ///< Pointer to navmesh data.
	m_nodePool *DtNodePool         ///< Pointer to node pool.
	m_openList *nodeQueue[*DtNode] ///< Pointer to open list queue.
	polyBuf    []DtPolyRef
}

// NewDtNavMeshQuery initializes a query object with room for maxNodes search
// nodes. [Limits: 0 < value <= 65535]
func NewDtNavMeshQuery(nav *DtNavMesh, maxNodes int) (*DtNavMeshQuery, error) {
	if nav == nil {
		return nil, fmt.Errorf("%w: nil navmesh", ErrInvalidParam)
	}
	if maxNodes <= 0 || maxNodes > math.MaxUint16 {
		return nil, fmt.Errorf("%w: max nodes %d not in (0,65535]", ErrInvalidParam, maxNodes)
	}
	hashSize := int(common.NextPow2(uint32(maxNodes / 4)))
	if hashSize == 0 {
		hashSize = 1
	}
	return &DtNavMeshQuery{
		m_nav:      nav,
		m_nodePool: NewDtNodePool(maxNodes, hashSize),
		m_openList: newNodeQueue(maxNodes, func(a, b *DtNode) bool { return a.Total < b.Total }),
	}, nil
}

func (q *DtNavMeshQuery) GetAttachedNavMesh() *DtNavMesh { return q.m_nav }

func (q *DtNavMeshQuery) IsValidPolyRef(ref DtPolyRef, filter *DtQueryFilter) bool {
	_, poly, err := q.m_nav.GetTileAndPolyByRef(ref)
	if err != nil {
		return false
	}
	// If cannot pass filter, assume flags has changed and boundary is invalid.
	return filter.passFilter(poly)
}

// QueryPolygons finds polygons that overlap the search box. The returned
// slice belongs to the caller.
func (q *DtNavMeshQuery) QueryPolygons(center, halfExtents []float32, filter *DtQueryFilter) ([]DtPolyRef, DtStatus) {
	polys, status := q.queryPolygons(center, halfExtents, filter)
	return slices.Clone(polys), status
}

// queryPolygons is QueryPolygons into the query's scratch buffer, valid until
// the next query.
func (q *DtNavMeshQuery) queryPolygons(center, halfExtents []float32, filter *DtQueryFilter) ([]DtPolyRef, DtStatus) {
	if !validExtents(center, halfExtents) || filter == nil {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	var bmin, bmax [3]float32
	common.Vsub(bmin[:], center, halfExtents)
	common.Vadd(bmax[:], center, halfExtents)
	tile := q.m_nav.GetTile(0)
	if !common.OverlapBounds(bmin[:], bmax[:], tile.Header.Bmin[:], tile.Header.Bmax[:]) {
		return nil, DT_SUCCESS
	}
	q.polyBuf = q.m_nav.queryPolygonsInTile(tile, bmin[:], bmax[:], filter, q.polyBuf[:0])
	return q.polyBuf, DT_SUCCESS
}

func validExtents(center, halfExtents []float32) bool {
	if len(center) < 3 || len(halfExtents) < 3 {
		return false
	}
	if !common.Visfinite(center) || !common.Visfinite(halfExtents) {
		return false
	}
	return halfExtents[0] >= 0 && halfExtents[1] >= 0 && halfExtents[2] >= 0
}

// FindNearestPoly finds the polygon nearest to the specified center point.
// A zero ref with a success status means no polygon overlaps the search box.
//
// When the point is above a polygon the vertical distance only counts beyond
// the tile's walkable climb, so a polygon directly underfoot wins over one
// that is horizontally closer.
func (q *DtNavMeshQuery) FindNearestPoly(center, halfExtents []float32, filter *DtQueryFilter) (nearestRef DtPolyRef, nearestPt [3]float32, isOverPoly bool, status DtStatus) {
	polys, status := q.queryPolygons(center, halfExtents, filter)
	if status.Failed() {
		return 0, nearestPt, false, status
	}
	climb := q.m_nav.GetTile(0).Header.WalkableClimb
	nearestDistanceSqr := float32(math.MaxFloat32)
	for _, ref := range polys {
		closestPtPoly, posOverPoly := q.m_nav.closestPointOnPoly(ref, center)

		// If a point is directly over a polygon and closer than
		// climb height, favor that instead of straight line nearest point.
		var diff [3]float32
		common.Vsub(diff[:], center, closestPtPoly[:])
		var d float32
		if posOverPoly {
			d = common.Abs(diff[1]) - climb
			if d > 0 {
				d = d * d
			} else {
				d = 0
			}
		} else {
			d = common.VlenSqr(diff[:])
		}

		if d < nearestDistanceSqr {
			nearestPt = closestPtPoly
			nearestDistanceSqr = d
			nearestRef = ref
			isOverPoly = posOverPoly
		}
	}
	return nearestRef, nearestPt, isOverPoly, DT_SUCCESS
}

// ClosestPointOnPoly finds the closest point on the specified polygon.
func (q *DtNavMeshQuery) ClosestPointOnPoly(ref DtPolyRef, pos []float32) (closest [3]float32, posOverPoly bool, status DtStatus) {
	if !q.m_nav.IsValidPolyRef(ref) || len(pos) < 3 || !common.Visfinite(pos) {
		return closest, false, DT_FAILURE | DT_INVALID_PARAM
	}
	closest, posOverPoly = q.m_nav.closestPointOnPoly(ref, pos)
	return closest, posOverPoly, DT_SUCCESS
}

// ClosestPointOnPolyBoundary returns a point on the boundary closest to the
// source point if the source point is outside the polygon's xz-bounds.
// Otherwise pos is returned unchanged.
func (q *DtNavMeshQuery) ClosestPointOnPolyBoundary(ref DtPolyRef, pos []float32) (closest [3]float32, status DtStatus) {
	tile, poly, err := q.m_nav.GetTileAndPolyByRef(ref)
	if err != nil || len(pos) < 3 || !common.Visfinite(pos) {
		return closest, DT_FAILURE | DT_INVALID_PARAM
	}

	// Collect vertices.
	var verts [DT_VERTS_PER_POLYGON * 3]float32
	var edged, edget [DT_VERTS_PER_POLYGON]float32
	nv := int(poly.VertCount)
	for i := 0; i < nv; i++ {
		copy(verts[i*3:i*3+3], common.GetVert3(tile.Verts, poly.Verts[i]))
	}

	if common.DistancePtPolyEdgesSqr(pos, verts[:], nv, edged[:], edget[:]) {
		copy(closest[:], pos)
		return closest, DT_SUCCESS
	}
	// Point is outside the polygon, dtClamp to nearest edge.
	dmin := edged[0]
	imin := 0
	for i := 1; i < nv; i++ {
		if edged[i] < dmin {
			dmin = edged[i]
			imin = i
		}
	}
	va := verts[imin*3 : imin*3+3]
	vb := common.GetVert3(verts[:], (imin+1)%nv)
	common.Vlerp(closest[:], va, vb, edget[imin])
	return closest, DT_SUCCESS
}

// getPortalPoints returns the portal edge shared by from and to.
func (q *DtNavMeshQuery) getPortalPoints(from DtPolyRef, fromPoly *DtPoly, fromTile *DtMeshTile,
	to DtPolyRef) (left, right [3]float32, status DtStatus) {
	// Find the link that points to the 'to' polygon.
	var link *DtLink
	for i := fromPoly.FirstLink; i != DT_NULL_LINK; i = fromTile.Links[i].Next {
		if fromTile.Links[i].Ref == to {
			link = &fromTile.Links[i]
			break
		}
	}
	if link == nil {
		return left, right, DT_FAILURE | DT_INVALID_PARAM
	}

	// Find portal vertices.
	v0 := common.GetVert3(fromTile.Verts, fromPoly.Verts[link.Edge])
	v1 := common.GetVert3(fromTile.Verts, fromPoly.Verts[(int(link.Edge)+1)%int(fromPoly.VertCount)])
	copy(left[:], v0)
	copy(right[:], v1)

	// If the link is at tile boundary, dtClamp the vertices to
	// the link width.
	if link.Side != 0xff {
		// Unpack portal limits.
		if link.Bmin != 0 || link.Bmax != 255 {
			s := float32(1.0 / 255.0)
			common.Vlerp(left[:], v0, v1, float32(link.Bmin)*s)
			common.Vlerp(right[:], v0, v1, float32(link.Bmax)*s)
		}
	}
	return left, right, DT_SUCCESS
}

func (q *DtNavMeshQuery) getPortalPointsByRef(from, to DtPolyRef) (left, right [3]float32, status DtStatus) {
	fromTile, fromPoly, err := q.m_nav.GetTileAndPolyByRef(from)
	if err != nil {
		return left, right, DT_FAILURE | DT_INVALID_PARAM
	}
	if !q.m_nav.IsValidPolyRef(to) {
		return left, right, DT_FAILURE | DT_INVALID_PARAM
	}
	return q.getPortalPoints(from, fromPoly, fromTile, to)
}

// getEdgeMidPoint returns the midpoint of the portal edge between two polygons.
func (q *DtNavMeshQuery) getEdgeMidPoint(from DtPolyRef, fromPoly *DtPoly, fromTile *DtMeshTile, to DtPolyRef, mid []float32) DtStatus {
	left, right, status := q.getPortalPoints(from, fromPoly, fromTile, to)
	if status.Failed() {
		return status
	}
	mid[0] = (left[0] + right[0]) * 0.5
	mid[1] = (left[1] + right[1]) * 0.5
	mid[2] = (left[2] + right[2]) * 0.5
	return DT_SUCCESS
}

// FindPath finds a path from the start polygon to the end polygon using A*
// and writes the polygon corridor to path. Cost is the Euclidean distance
// between portal midpoints scaled by the area cost.
//
// If the end polygon cannot be reached the path leads to the node nearest
// the end and the status carries DT_PARTIAL_RESULT. DT_OUT_OF_NODES is set
// when the node pool ran out during the search.
func (q *DtNavMeshQuery) FindPath(startRef, endRef DtPolyRef, startPos, endPos []float32,
	filter *DtQueryFilter, path []DtPolyRef) (pathCount int, status DtStatus) {
	maxPath := len(path)
	// Validate input
	if !q.m_nav.IsValidPolyRef(startRef) || !q.m_nav.IsValidPolyRef(endRef) ||
		len(startPos) < 3 || len(endPos) < 3 ||
		!common.Visfinite(startPos) || !common.Visfinite(endPos) || filter == nil || maxPath <= 0 {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}

	if startRef == endRef {
		path[0] = startRef
		return 1, DT_SUCCESS
	}

	q.m_nodePool.Clear()
	q.m_openList.Reset()

	startNode := q.m_nodePool.GetNode(startRef)
	copy(startNode.Pos[:], startPos)
	startNode.Pidx = 0
	startNode.Cost = 0
	startNode.Total = common.Vdist(startPos, endPos) * H_SCALE
	startNode.Id = startRef
	startNode.Flags = DT_NODE_OPEN
	q.m_openList.Offer(startNode)

	lastBestNode := startNode
	lastBestNodeCost := startNode.Total

	outOfNodes := false

	for !q.m_openList.Empty() {
		// Remove node from open list and put it in closed list.
		bestNode := q.m_openList.Poll()
		bestNode.Flags &= ^uint32(DT_NODE_OPEN)
		bestNode.Flags |= DT_NODE_CLOSED

		// Reached the goal, stop searching.
		if bestNode.Id == endRef {
			lastBestNode = bestNode
			break
		}

		// Get current poly and tile.
		// The API input has been checked already, skip checking internal data.
		bestRef := bestNode.Id
		bestTile, bestPoly := q.m_nav.getTileAndPolyByRefUnsafe(bestRef)

		// Get parent poly and tile.
		var parentRef DtPolyRef
		if parent := q.m_nodePool.GetNodeAtIdx(bestNode.Pidx); parent != nil {
			parentRef = parent.Id
		}

		for i := bestPoly.FirstLink; i != DT_NULL_LINK; i = bestTile.Links[i].Next {
			neighbourRef := bestTile.Links[i].Ref

			// Skip invalid ids and do not expand back to where we came from.
			if neighbourRef == 0 || neighbourRef == parentRef {
				continue
			}

			// Get neighbour poly and tile.
			// The API input has been checked already, skip checking internal data.
			_, neighbourPoly := q.m_nav.getTileAndPolyByRefUnsafe(neighbourRef)
			if !filter.passFilter(neighbourPoly) {
				continue
			}

			neighbourNode := q.m_nodePool.GetNode(neighbourRef)
			if neighbourNode == nil {
				outOfNodes = true
				continue
			}

			// If the node is visited the first time, calculate node position.
			if neighbourNode.Flags == 0 {
				q.getEdgeMidPoint(bestRef, bestPoly, bestTile, neighbourRef, neighbourNode.Pos[:])
			}

			// Calculate cost and heuristic.
			var cost, heuristic float32

			// Special case for last node.
			if neighbourRef == endRef {
				// Cost
				curCost := filter.getCost(bestNode.Pos[:], neighbourNode.Pos[:], bestPoly)
				endCost := filter.getCost(neighbourNode.Pos[:], endPos, neighbourPoly)
				cost = bestNode.Cost + curCost + endCost
				heuristic = 0
			} else {
				// Cost
				curCost := filter.getCost(bestNode.Pos[:], neighbourNode.Pos[:], bestPoly)
				cost = bestNode.Cost + curCost
				heuristic = common.Vdist(neighbourNode.Pos[:], endPos) * H_SCALE
			}

			total := cost + heuristic

			// The node is already in open list and the new result is worse, skip.
			if neighbourNode.Flags&DT_NODE_OPEN != 0 && total >= neighbourNode.Total {
				continue
			}
			// The node is already visited and process, and the new result is worse, skip.
			if neighbourNode.Flags&DT_NODE_CLOSED != 0 && total >= neighbourNode.Total {
				continue
			}

			// Add or update the node.
			neighbourNode.Pidx = q.m_nodePool.GetNodeIdx(bestNode)
			neighbourNode.Id = neighbourRef
			neighbourNode.Flags &= ^uint32(DT_NODE_CLOSED)
			neighbourNode.Cost = cost
			neighbourNode.Total = total

			if neighbourNode.Flags&DT_NODE_OPEN != 0 {
				// Already in open, update node location.
				q.m_openList.Modify(neighbourNode)
			} else {
				// Put the node in open list.
				neighbourNode.Flags |= DT_NODE_OPEN
				q.m_openList.Offer(neighbourNode)
			}

			// Update nearest node to target so far.
			if heuristic < lastBestNodeCost {
				lastBestNodeCost = heuristic
				lastBestNode = neighbourNode
			}
		}
	}

	pathCount, status = q.getPathToNode(lastBestNode, path)

	if lastBestNode.Id != endRef {
		status |= DT_PARTIAL_RESULT
	}
	if outOfNodes {
		status |= DT_OUT_OF_NODES
	}
	return pathCount, status
}

func (q *DtNavMeshQuery) getPathToNode(endNode *DtNode, path []DtPolyRef) (pathCount int, status DtStatus) {
	maxPath := len(path)
	// Find the length of the entire path.
	curNode := endNode
	length := 0
	for curNode != nil {
		length++
		curNode = q.m_nodePool.GetNodeAtIdx(curNode.Pidx)
	}

	// If the path cannot be fully stored then advance to the last node we will be able to store.
	curNode = endNode
	writeCount := length
	for ; writeCount > maxPath; writeCount-- {
		curNode = q.m_nodePool.GetNodeAtIdx(curNode.Pidx)
	}

	// Write path
	for i := writeCount - 1; i >= 0; i-- {
		path[i] = curNode.Id
		curNode = q.m_nodePool.GetNodeAtIdx(curNode.Pidx)
	}

	pathCount = min(length, maxPath)
	if length > maxPath {
		return pathCount, DT_SUCCESS | DT_BUFFER_TOO_SMALL
	}
	return pathCount, DT_SUCCESS
}

// straightPathBuf collects the output of FindStraightPath.
type straightPathBuf struct {
	verts []float32
	flags []uint8
	refs  []DtPolyRef
	count int
	max   int
}

func (b *straightPathBuf) appendVertex(pos []float32, flags uint8, ref DtPolyRef) DtStatus {
	if b.count > 0 && common.Vequal(b.verts[(b.count-1)*3:b.count*3], pos) {
		// The vertices are equal, update flags and poly.
		if b.flags != nil {
			b.flags[b.count-1] = flags
		}
		if b.refs != nil {
			b.refs[b.count-1] = ref
		}
	} else {
		// Append new vertex.
		copy(b.verts[b.count*3:b.count*3+3], pos)
		if b.flags != nil {
			b.flags[b.count] = flags
		}
		if b.refs != nil {
			b.refs[b.count] = ref
		}
		b.count++

		// If there is no space to append more vertices, return.
		if b.count >= b.max {
			return DT_SUCCESS | DT_BUFFER_TOO_SMALL
		}

		// If reached end of path, return.
		if flags == DT_STRAIGHTPATH_END {
			return DT_SUCCESS
		}
	}
	return DT_IN_PROGRESS
}

func (b *straightPathBuf) sizeStatus() DtStatus {
	if b.count >= b.max {
		return DT_BUFFER_TOO_SMALL
	}
	return 0
}

// FindStraightPath finds the straight path from the start to the end position
// within the polygon corridor using the funnel algorithm. straightPath holds
// (x, y, z) triples and its length bounds the number of points written;
// straightPathFlags and straightPathRefs are optional and must be at least
// len(straightPath)/3 long when given.
func (q *DtNavMeshQuery) FindStraightPath(startPos, endPos []float32, path []DtPolyRef,
	straightPath []float32, straightPathFlags []uint8, straightPathRefs []DtPolyRef) (straightPathCount int, status DtStatus) {
	pathSize := len(path)
	maxStraightPath := len(straightPath) / 3
	if len(startPos) < 3 || len(endPos) < 3 || !common.Visfinite(startPos) || !common.Visfinite(endPos) ||
		pathSize == 0 || path[0] == 0 || maxStraightPath <= 0 ||
		(straightPathFlags != nil && len(straightPathFlags) < maxStraightPath) ||
		(straightPathRefs != nil && len(straightPathRefs) < maxStraightPath) {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}

	buf := &straightPathBuf{verts: straightPath, flags: straightPathFlags, refs: straightPathRefs, max: maxStraightPath}

	closestStartPos, st := q.ClosestPointOnPolyBoundary(path[0], startPos)
	if st.Failed() {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}
	closestEndPos, st := q.ClosestPointOnPolyBoundary(path[pathSize-1], endPos)
	if st.Failed() {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}

	// Add start point.
	stat := buf.appendVertex(closestStartPos[:], DT_STRAIGHTPATH_START, path[0])
	if stat != DT_IN_PROGRESS {
		return buf.count, stat
	}

	if pathSize > 1 {
		portalApex := closestStartPos
		portalLeft := portalApex
		portalRight := portalApex
		apexIndex := 0
		leftIndex := 0
		rightIndex := 0

		leftPolyRef := path[0]
		rightPolyRef := path[0]

		for i := 0; i < pathSize; i++ {
			var left, right [3]float32

			if i+1 < pathSize {
				// Next portal.
				var st DtStatus
				left, right, st = q.getPortalPointsByRef(path[i], path[i+1])
				if st.Failed() {
					// Failed to get portal points, in practice this means that path[i+1] is invalid polygon.
					// Clamp the end point to path[i], and return the path so far.
					closestEndPos, st = q.ClosestPointOnPolyBoundary(path[i], endPos)
					if st.Failed() {
						// This should only happen when the first polygon is invalid.
						return 0, DT_FAILURE | DT_INVALID_PARAM
					}
					buf.appendVertex(closestEndPos[:], 0, path[i])
					return buf.count, DT_SUCCESS | DT_PARTIAL_RESULT | buf.sizeStatus()
				}

				// If starting really close the portal, advance.
				if i == 0 {
					if d, _ := common.DistancePtSegSqr2D(portalApex[:], left[:], right[:]); d < common.Sqr(float32(0.001)) {
						continue
					}
				}
			} else {
				// End of the path.
				left = closestEndPos
				right = closestEndPos
			}

			// Right vertex.
			if common.TriArea2D(portalApex[:], portalRight[:], right[:]) <= 0 {
				if common.Vequal(portalApex[:], portalRight[:]) || common.TriArea2D(portalApex[:], portalLeft[:], right[:]) > 0 {
					portalRight = right
					rightPolyRef = 0
					if i+1 < pathSize {
						rightPolyRef = path[i+1]
					}
					rightIndex = i
				} else {
					portalApex = portalLeft
					apexIndex = leftIndex

					var flags uint8
					if leftPolyRef == 0 {
						flags = DT_STRAIGHTPATH_END
					}
					// Append or update vertex
					stat = buf.appendVertex(portalApex[:], flags, leftPolyRef)
					if stat != DT_IN_PROGRESS {
						return buf.count, stat
					}

					portalLeft = portalApex
					portalRight = portalApex
					leftIndex = apexIndex
					rightIndex = apexIndex

					// Restart
					i = apexIndex
					continue
				}
			}

			// Left vertex.
			if common.TriArea2D(portalApex[:], portalLeft[:], left[:]) >= 0 {
				if common.Vequal(portalApex[:], portalLeft[:]) || common.TriArea2D(portalApex[:], portalRight[:], left[:]) < 0 {
					portalLeft = left
					leftPolyRef = 0
					if i+1 < pathSize {
						leftPolyRef = path[i+1]
					}
					leftIndex = i
				} else {
					portalApex = portalRight
					apexIndex = rightIndex

					var flags uint8
					if rightPolyRef == 0 {
						flags = DT_STRAIGHTPATH_END
					}
					// Append or update vertex
					stat = buf.appendVertex(portalApex[:], flags, rightPolyRef)
					if stat != DT_IN_PROGRESS {
						return buf.count, stat
					}

					portalLeft = portalApex
					portalRight = portalApex
					leftIndex = apexIndex
					rightIndex = apexIndex

					// Restart
					i = apexIndex
					continue
				}
			}
		}
	}

	// Ignore status return value as we're just about to return anyway.
	buf.appendVertex(closestEndPos[:], DT_STRAIGHTPATH_END, 0)
	return buf.count, DT_SUCCESS | buf.sizeStatus()
}
