package detour

import (
	"fmt"
	"math"

	"github.com/gorustyt/navbake/common"
)

// Polygon references pack a salt and a polygon index. A navmesh built here
// holds exactly one tile, so no tile bits are reserved.
const (
	saltBits = 16
	polyBits = 16
	polyMask = 1<<polyBits - 1
	saltMask = 1<<saltBits - 1
)

// DtNavMesh is a single tile navigation mesh. It is immutable after creation
// and safe for concurrent reads; queries keep their own working state in a
// DtNavMeshQuery.
type DtNavMesh struct {
	orig [3]float32 ///< Origin of the tile (0,0)
	tile *DtMeshTile
}

// NewNavMesh decodes tile data produced by CreateNavMeshData and wires the
// internal polygon links.
func NewNavMesh(data []byte) (*DtNavMesh, error) {
	var d NavMeshData
	if err := d.FromBin(data); err != nil {
		return nil, err
	}
	header := d.Header
	tile := &DtMeshTile{
		Salt:         1,
		Header:       &header,
		Polys:        d.NavPolys,
		Verts:        d.NavVerts,
		Links:        d.Links,
		DetailMeshes: d.NavDMeshes,
		DetailVerts:  d.NavDVerts,
		DetailTris:   d.NavDTris,
		BvTree:       d.NavBvtree,
	}
	if err := validateTile(tile); err != nil {
		return nil, err
	}

	// Build links freelist
	tile.LinksFreeList = 0
	n := len(tile.Links)
	if n == 0 {
		tile.LinksFreeList = DT_NULL_LINK
	} else {
		for i := 0; i < n-1; i++ {
			tile.Links[i] = DtLink{Next: uint32(i + 1)}
		}
		tile.Links[n-1] = DtLink{Next: DT_NULL_LINK}
	}

	mesh := &DtNavMesh{orig: header.Bmin, tile: tile}
	mesh.connectIntLinks(tile)
	return mesh, nil
}

// validateTile checks every index stored in the tile so queries can access
// arrays without bounds surprises.
func validateTile(tile *DtMeshTile) error {
	nverts := len(tile.Verts) / 3
	for i := range tile.Polys {
		p := &tile.Polys[i]
		if p.VertCount < 3 || p.VertCount > DT_VERTS_PER_POLYGON {
			return fmt.Errorf("%w: polygon %d has %d vertices", ErrInvalidParam, i, p.VertCount)
		}
		for j := 0; j < int(p.VertCount); j++ {
			if int(p.Verts[j]) >= nverts {
				return fmt.Errorf("%w: polygon %d vertex %d out of range", ErrInvalidParam, i, p.Verts[j])
			}
			if nei := p.Neis[j]; nei != 0 && nei&DT_EXT_LINK == 0 && int(nei-1) >= len(tile.Polys) {
				return fmt.Errorf("%w: polygon %d neighbour %d out of range", ErrInvalidParam, i, nei)
			}
		}
	}
	if len(tile.DetailMeshes) != len(tile.Polys) {
		return fmt.Errorf("%w: %d detail meshes for %d polygons", ErrInvalidParam, len(tile.DetailMeshes), len(tile.Polys))
	}
	ndverts := len(tile.DetailVerts) / 3
	ndtris := len(tile.DetailTris) / 4
	for i := range tile.DetailMeshes {
		pd := &tile.DetailMeshes[i]
		if int(pd.VertBase)+int(pd.VertCount) > ndverts || int(pd.TriBase)+int(pd.TriCount) > ndtris {
			return fmt.Errorf("%w: detail mesh %d out of range", ErrInvalidParam, i)
		}
		nv := int(tile.Polys[i].VertCount)
		for j := 0; j < int(pd.TriCount); j++ {
			t := tile.DetailTris[(int(pd.TriBase)+j)*4:]
			for k := 0; k < 3; k++ {
				if int(t[k]) >= nv+int(pd.VertCount) {
					return fmt.Errorf("%w: detail triangle %d of polygon %d out of range", ErrInvalidParam, j, i)
				}
			}
		}
	}
	for i := range tile.BvTree {
		n := int(tile.BvTree[i].I)
		if n >= len(tile.Polys) || (n < 0 && i-n > len(tile.BvTree)) {
			return fmt.Errorf("%w: bv node %d out of range", ErrInvalidParam, i)
		}
	}
	return nil
}

func (m *DtNavMesh) GetTile(i int) *DtMeshTile {
	if i != 0 {
		return nil
	}
	return m.tile
}

func (m *DtNavMesh) GetMaxTiles() int { return 1 }

// Orig returns the world space origin of the tile.
func (m *DtNavMesh) Orig() [3]float32 { return m.orig }

// / Derives a standard polygon reference.
// /  @note This function is generally meant for internal use only.
// /  @param[in]	salt	The tile's salt value.
// /  @param[in]	ip		The index of the polygon within the tile.
func (m *DtNavMesh) EncodePolyId(salt, ip uint32) DtPolyRef {
	return DtPolyRef((salt&saltMask)<<polyBits | ip&polyMask)
}

// / Decodes a standard polygon reference.
// /  @note This function is generally meant for internal use only.
func (m *DtNavMesh) DecodePolyId(ref DtPolyRef) (salt, ip uint32) {
	return uint32(ref) >> polyBits & saltMask, uint32(ref) & polyMask
}

// GetPolyRefBase gets the polygon reference for the tile's base polygon.
func (m *DtNavMesh) GetPolyRefBase(tile *DtMeshTile) DtPolyRef {
	if tile == nil {
		return 0
	}
	return m.EncodePolyId(tile.Salt, 0)
}

// GetTileAndPolyByRef gets the tile and polygon for the specified polygon reference.
func (m *DtNavMesh) GetTileAndPolyByRef(ref DtPolyRef) (*DtMeshTile, *DtPoly, error) {
	if ref == 0 {
		return nil, nil, ErrInvalidParam
	}
	salt, ip := m.DecodePolyId(ref)
	if salt != m.tile.Salt || int(ip) >= len(m.tile.Polys) {
		return nil, nil, ErrInvalidParam
	}
	return m.tile, &m.tile.Polys[ip], nil
}

// getTileAndPolyByRefUnsafe skips validation; only use it with references
// that came out of the mesh itself.
func (m *DtNavMesh) getTileAndPolyByRefUnsafe(ref DtPolyRef) (*DtMeshTile, *DtPoly) {
	_, ip := m.DecodePolyId(ref)
	return m.tile, &m.tile.Polys[ip]
}

// IsValidPolyRef checks the validity of a polygon reference.
func (m *DtNavMesh) IsValidPolyRef(ref DtPolyRef) bool {
	_, _, err := m.GetTileAndPolyByRef(ref)
	return err == nil
}

func allocLink(tile *DtMeshTile) uint32 {
	if tile.LinksFreeList == DT_NULL_LINK {
		return DT_NULL_LINK
	}
	link := tile.LinksFreeList
	tile.LinksFreeList = tile.Links[link].Next
	return link
}

// connectIntLinks builds the internal polygon links of a tile. Links are
// prepended, so iterating edges backwards keeps them in edge order.
func (m *DtNavMesh) connectIntLinks(tile *DtMeshTile) {
	base := m.GetPolyRefBase(tile)
	for i := range tile.Polys {
		poly := &tile.Polys[i]
		poly.FirstLink = DT_NULL_LINK
		if poly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
			continue
		}

		// Build edge links backwards so that the links will be
		// in the linked list from lowest index to highest.
		for j := int(poly.VertCount) - 1; j >= 0; j-- {
			// Skip hard and non-internal edges.
			if poly.Neis[j] == 0 || poly.Neis[j]&DT_EXT_LINK != 0 {
				continue
			}
			idx := allocLink(tile)
			if idx == DT_NULL_LINK {
				continue
			}
			link := &tile.Links[idx]
			link.Ref = base | DtPolyRef(poly.Neis[j]-1)
			link.Edge = uint8(j)
			link.Side = 0xff
			link.Bmin = 0
			link.Bmax = 0
			// Add to linked list.
			link.Next = poly.FirstLink
			poly.FirstLink = idx
		}
	}
}

// detailTriVerts resolves the three vertices of a detail triangle.
func detailTriVerts(tile *DtMeshTile, poly *DtPoly, pd *DtPolyDetail, t []uint8) (v [3][]float32) {
	for k := 0; k < 3; k++ {
		if t[k] < poly.VertCount {
			v[k] = common.GetVert3(tile.Verts, poly.Verts[t[k]])
		} else {
			v[k] = common.GetVert3(tile.DetailVerts, int(pd.VertBase)+int(t[k]-poly.VertCount))
		}
	}
	return v
}

func (m *DtNavMesh) closestPointOnDetailEdges(tile *DtMeshTile, poly *DtPoly, ip int, pos []float32, onlyBoundary bool) [3]float32 {
	const anyBoundaryEdge = DT_DETAIL_EDGE_BOUNDARY<<0 | DT_DETAIL_EDGE_BOUNDARY<<2 | DT_DETAIL_EDGE_BOUNDARY<<4

	pd := &tile.DetailMeshes[ip]
	dmin := float32(math.MaxFloat32)
	var tmin float32
	var pmin, pmax []float32

	for i := 0; i < int(pd.TriCount); i++ {
		tris := tile.DetailTris[(int(pd.TriBase)+i)*4:]
		if onlyBoundary && tris[3]&anyBoundaryEdge == 0 {
			continue
		}
		v := detailTriVerts(tile, poly, pd, tris)
		for k, j := 0, 2; k < 3; j, k = k, k+1 {
			if DtGetDetailTriEdgeFlags(tris[3], j)&DT_DETAIL_EDGE_BOUNDARY == 0 && (onlyBoundary || tris[j] < tris[k]) {
				// Only looking at boundary edges and this is internal, or
				// this is an inner edge that we will see again or have already seen.
				continue
			}
			d, t := common.DistancePtSegSqr2D(pos, v[j], v[k])
			if d < dmin {
				dmin = d
				tmin = t
				pmin = v[j]
				pmax = v[k]
			}
		}
	}

	var closest [3]float32
	if pmin == nil {
		copy(closest[:], pos)
		return closest
	}
	common.Vlerp(closest[:], pmin, pmax, tmin)
	return closest
}

func (m *DtNavMesh) getPolyHeight(tile *DtMeshTile, poly *DtPoly, ip int, pos []float32) (float32, bool) {
	// Off-mesh connections do not have detail polys and getting height
	// over them does not make sense.
	if poly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		return 0, false
	}

	pd := &tile.DetailMeshes[ip]
	var verts [DT_VERTS_PER_POLYGON * 3]float32
	nv := int(poly.VertCount)
	for i := 0; i < nv; i++ {
		copy(verts[i*3:i*3+3], common.GetVert3(tile.Verts, poly.Verts[i]))
	}
	if !common.PointInPolygon(pos, verts[:], nv) {
		return 0, false
	}

	// Find height at the location.
	for j := 0; j < int(pd.TriCount); j++ {
		t := tile.DetailTris[(int(pd.TriBase)+j)*4:]
		v := detailTriVerts(tile, poly, pd, t)
		if h, ok := common.ClosestHeightPointTriangle(pos, v[0], v[1], v[2]); ok {
			return h, true
		}
	}

	// If all triangle checks failed above (can happen with degenerate triangles
	// or larger floating point values) the point is on an edge, so just select
	// closest. This should almost never happen so the extra iteration here is ok.
	closest := m.closestPointOnDetailEdges(tile, poly, ip, pos, false)
	return closest[1], true
}

// GetPolyHeight returns the detail mesh height of polygon ref at the xz
// position of pos. ok is false when pos is outside the polygon.
func (m *DtNavMesh) GetPolyHeight(ref DtPolyRef, pos []float32) (h float32, ok bool, err error) {
	tile, poly, err := m.GetTileAndPolyByRef(ref)
	if err != nil {
		return 0, false, err
	}
	_, ip := m.DecodePolyId(ref)
	h, ok = m.getPolyHeight(tile, poly, int(ip), pos)
	return h, ok, nil
}

// closestPointOnPoly returns the point on the detail surface of ref nearest to
// pos. posOverPoly reports whether pos projects inside the polygon.
func (m *DtNavMesh) closestPointOnPoly(ref DtPolyRef, pos []float32) (closest [3]float32, posOverPoly bool) {
	tile, poly := m.getTileAndPolyByRefUnsafe(ref)
	_, ip := m.DecodePolyId(ref)
	copy(closest[:], pos)
	if h, ok := m.getPolyHeight(tile, poly, int(ip), pos); ok {
		closest[1] = h
		return closest, true
	}
	return m.closestPointOnDetailEdges(tile, poly, int(ip), pos, true), false
}

// queryPolygonsInTile appends every polygon of tile whose bounds overlap
// [qmin, qmax] and that passes filter.
func (m *DtNavMesh) queryPolygonsInTile(tile *DtMeshTile, qmin, qmax []float32, filter *DtQueryFilter, polys []DtPolyRef) []DtPolyRef {
	base := m.GetPolyRefBase(tile)
	if len(tile.BvTree) > 0 {
		tbmin := tile.Header.Bmin
		tbmax := tile.Header.Bmax
		qfac := tile.Header.BvQuantFactor

		// Calculate quantized box
		var bmin, bmax [3]uint16
		for k := 0; k < 3; k++ {
			mn := common.Clamp(qmin[k], tbmin[k], tbmax[k]) - tbmin[k]
			mx := common.Clamp(qmax[k], tbmin[k], tbmax[k]) - tbmin[k]
			// Quantize
			bmin[k] = uint16(qfac*mn) & 0xfffe
			bmax[k] = uint16(qfac*mx+1) | 1
		}

		// Traverse tree
		for i := 0; i < len(tile.BvTree); {
			node := &tile.BvTree[i]
			overlap := common.OverlapQuantBounds(bmin, bmax, node.Bmin, node.Bmax)
			isLeafNode := node.I >= 0

			if isLeafNode && overlap {
				ref := base | DtPolyRef(node.I)
				if filter.passFilter(&tile.Polys[node.I]) {
					polys = append(polys, ref)
				}
			}

			if overlap || isLeafNode {
				i++
			} else {
				escapeIndex := -int(node.I)
				i += escapeIndex
			}
		}
		return polys
	}

	for i := range tile.Polys {
		p := &tile.Polys[i]
		// Do not return off-mesh connection polygons.
		if p.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
			continue
		}
		// Must pass filter
		ref := base | DtPolyRef(i)
		if !filter.passFilter(p) {
			continue
		}
		// Calc polygon bounds.
		var bmin, bmax [3]float32
		copy(bmin[:], common.GetVert3(tile.Verts, p.Verts[0]))
		copy(bmax[:], bmin[:])
		for j := 1; j < int(p.VertCount); j++ {
			v := common.GetVert3(tile.Verts, p.Verts[j])
			common.Vmin(bmin[:], v)
			common.Vmax(bmax[:], v)
		}
		if common.OverlapBounds(qmin, qmax, bmin[:], bmax[:]) {
			polys = append(polys, ref)
		}
	}
	return polys
}
