package detour

import (
	"fmt"
	"math"
	"slices"

	"github.com/gorustyt/navbake/common"
)

const meshNullIdx = 0xffff

// NavMeshCreateParams represents the source data used to build a navigation
// mesh tile. Polygon data comes straight from a recast poly mesh and detail mesh.
type NavMeshCreateParams struct {
	/// @name Polygon Mesh Attributes
	/// Used to create the base navigation graph.
	/// See #rcPolyMesh for details related to these attributes.
	/// @{

	Verts     []uint16 ///< The polygon mesh vertices. [(x, y, z) * #vertCount] [Unit: vx]
	VertCount int      ///< The number vertices in the polygon mesh. [Limit: >= 3]
	Polys     []uint16 ///< The polygon data. [Size: #polyCount * 2 * #nvp]
	PolyFlags []uint16 ///< The user defined flags assigned to each polygon. [Size: #polyCount]
	PolyAreas []uint8  ///< The user defined area ids assigned to each polygon. [Size: #polyCount]
	PolyCount int      ///< Number of polygons in the mesh. [Limit: >= 1]
	Nvp       int      ///< Number maximum number of vertices per polygon. [Limit: >= 3]

	/// @}
	/// @name Height Detail Attributes (Optional)
	/// See #rcPolyMeshDetail for details related to these attributes.
	/// @{

	DetailMeshes     []uint32  ///< The height detail sub-mesh data. [Size: 4 * #polyCount]
	DetailVerts      []float32 ///< The detail mesh vertices. [Size: 3 * #detailVertsCount] [Unit: wu]
	DetailVertsCount int       ///< The number of vertices in the detail mesh.
	DetailTris       []uint8   ///< The detail mesh triangles. [Size: 4 * #detailTriCount]
	DetailTriCount   int       ///< The number of triangles in the detail mesh.

	/// @}
	/// @name Tile Attributes
	/// @note The tile grid/layer data can be left at zero if the destination is a single tile mesh.
	/// @{

	UserId    uint32 ///< The user defined id of the tile.
	TileX     int32  ///< The tile's x-grid location within the multi-tile destination mesh. (Along the x-axis.)
	TileY     int32  ///< The tile's y-grid location within the multi-tile desitation mesh. (Along the z-axis.)
	TileLayer int32  ///< The tile's layer within the layered destination mesh. [Limit: >= 0] (Along the y-axis.)
	Bmin      [3]float32
	Bmax      [3]float32

	/// @}
	/// @name General Configuration Attributes
	/// @{

	WalkableHeight float32 ///< The agent height. [Unit: wu]
	WalkableRadius float32 ///< The agent radius. [Unit: wu]
	WalkableClimb  float32 ///< The agent maximum traversable ledge. (Up/Down) [Unit: wu]
	Cs             float32 ///< The xz-plane cell size of the polygon mesh. [Limit: > 0] [Unit: wu]
	Ch             float32 ///< The y-axis cell height of the polygon mesh. [Limit: > 0] [Unit: wu]

	/// True if a bounding volume tree should be built for the tile.
	/// @note The BVTree is not normally needed for layered navigation meshes.
	BuildBvTree bool

	/// @}
}

func (p *NavMeshCreateParams) validate() error {
	switch {
	case p.Nvp < 3 || p.Nvp > DT_VERTS_PER_POLYGON:
		return fmt.Errorf("%w: nvp %d not in [3,%d]", ErrInvalidParam, p.Nvp, DT_VERTS_PER_POLYGON)
	case p.VertCount < 3 || p.VertCount >= meshNullIdx:
		return fmt.Errorf("%w: vertex count %d", ErrInvalidParam, p.VertCount)
	case p.PolyCount < 1:
		return fmt.Errorf("%w: no polygons", ErrInvalidParam)
	case len(p.Verts) < 3*p.VertCount:
		return fmt.Errorf("%w: %d vertex components for %d vertices", ErrInvalidParam, len(p.Verts), p.VertCount)
	case len(p.Polys) < 2*p.Nvp*p.PolyCount:
		return fmt.Errorf("%w: polygon data too short", ErrInvalidParam)
	case len(p.PolyFlags) < p.PolyCount || len(p.PolyAreas) < p.PolyCount:
		return fmt.Errorf("%w: polygon flags or areas too short", ErrInvalidParam)
	case !(p.Cs > 0) || !(p.Ch > 0):
		return fmt.Errorf("%w: cell size %v height %v", ErrInvalidParam, p.Cs, p.Ch)
	}
	for i := 0; i < p.PolyCount; i++ {
		src := p.Polys[i*2*p.Nvp:]
		if src[0] == meshNullIdx {
			return fmt.Errorf("%w: polygon %d is empty", ErrInvalidParam, i)
		}
		for j := 0; j < p.Nvp && src[j] != meshNullIdx; j++ {
			if int(src[j]) >= p.VertCount {
				return fmt.Errorf("%w: polygon %d references vertex %d", ErrInvalidParam, i, src[j])
			}
		}
	}
	if p.DetailMeshes == nil {
		return nil
	}
	if len(p.DetailMeshes) < 4*p.PolyCount ||
		len(p.DetailVerts) < 3*p.DetailVertsCount ||
		len(p.DetailTris) < 4*p.DetailTriCount {
		return fmt.Errorf("%w: detail mesh data too short", ErrInvalidParam)
	}
	for i := 0; i < p.PolyCount; i++ {
		m := p.DetailMeshes[i*4:]
		nv := countVerts(p.Polys[i*2*p.Nvp:], p.Nvp)
		if int(m[0]+m[1]) > p.DetailVertsCount || int(m[2]+m[3]) > p.DetailTriCount || int(m[1]) < nv {
			return fmt.Errorf("%w: detail mesh %d out of range", ErrInvalidParam, i)
		}
	}
	return nil
}

func countVerts(p []uint16, nvp int) int {
	for i := 0; i < nvp; i++ {
		if p[i] == meshNullIdx {
			return i
		}
	}
	return nvp
}

type bvItem struct {
	bmin [3]uint16
	bmax [3]uint16
	i    int
}

func calcExtends(items []bvItem) (bmin, bmax [3]uint16) {
	bmin = items[0].bmin
	bmax = items[0].bmax
	for _, it := range items[1:] {
		for k := 0; k < 3; k++ {
			bmin[k] = min(bmin[k], it.bmin[k])
			bmax[k] = max(bmax[k], it.bmax[k])
		}
	}
	return bmin, bmax
}

func longestAxis(x, y, z uint16) int {
	axis := 0
	maxVal := x
	if y > maxVal {
		axis = 1
		maxVal = y
	}
	if z > maxVal {
		axis = 2
	}
	return axis
}

func subdivide(items []bvItem, imin, imax int, nodes []DtBVNode, curNode *int) {
	inum := imax - imin
	icur := *curNode
	node := &nodes[*curNode]
	*curNode++

	if inum == 1 {
		// Leaf
		node.Bmin = items[imin].bmin
		node.Bmax = items[imin].bmax
		node.I = int32(items[imin].i)
		return
	}

	// Split
	node.Bmin, node.Bmax = calcExtends(items[imin:imax])
	axis := longestAxis(node.Bmax[0]-node.Bmin[0], node.Bmax[1]-node.Bmin[1], node.Bmax[2]-node.Bmin[2])
	slices.SortStableFunc(items[imin:imax], func(a, b bvItem) int {
		return int(a.bmin[axis]) - int(b.bmin[axis])
	})

	isplit := imin + inum/2
	subdivide(items, imin, isplit, nodes, curNode)
	subdivide(items, isplit, imax, nodes, curNode)

	// Negative index means escape.
	node.I = -int32(*curNode - icur)
}

func quantize(v float32) uint16 {
	return uint16(common.Clamp(int(v), 0, 0xffff))
}

// createBVTree builds the quantized bounding volume tree over the polygons.
// Detail vertices give the tightest vertical bounds; without them the
// polygon vertices are used and y is rescaled from ch to cs units.
func createBVTree(params *NavMeshCreateParams, nodes []DtBVNode) int {
	quantFactor := 1 / params.Cs
	items := make([]bvItem, params.PolyCount)
	for i := range items {
		it := &items[i]
		it.i = i
		if params.DetailMeshes != nil {
			vb := int(params.DetailMeshes[i*4+0])
			ndv := int(params.DetailMeshes[i*4+1])
			var bmin, bmax [3]float32
			copy(bmin[:], params.DetailVerts[vb*3:vb*3+3])
			copy(bmax[:], params.DetailVerts[vb*3:vb*3+3])
			for j := 1; j < ndv; j++ {
				v := common.GetVert3(params.DetailVerts, vb+j)
				common.Vmin(bmin[:], v)
				common.Vmax(bmax[:], v)
			}
			// BV-tree uses cs for all dimensions.
			for k := 0; k < 3; k++ {
				it.bmin[k] = quantize((bmin[k] - params.Bmin[k]) * quantFactor)
				it.bmax[k] = quantize((bmax[k] - params.Bmin[k]) * quantFactor)
			}
			continue
		}
		p := params.Polys[i*params.Nvp*2:]
		v := params.Verts[int(p[0])*3:]
		it.bmin = [3]uint16{v[0], v[1], v[2]}
		it.bmax = it.bmin
		for j := 1; j < params.Nvp && p[j] != meshNullIdx; j++ {
			v = params.Verts[int(p[j])*3:]
			for k := 0; k < 3; k++ {
				it.bmin[k] = min(it.bmin[k], v[k])
				it.bmax[k] = max(it.bmax[k], v[k])
			}
		}
		// Remap y
		scale := float64(params.Ch / params.Cs)
		it.bmin[1] = uint16(math.Floor(float64(it.bmin[1]) * scale))
		it.bmax[1] = uint16(math.Ceil(float64(it.bmax[1]) * scale))
	}

	curNode := 0
	subdivide(items, 0, len(items), nodes, &curNode)
	return curNode
}

// CreateNavMeshData builds navigation mesh tile data from the provided polygon
// and detail meshes. The result is ready for NewNavMesh.
func CreateNavMeshData(params *NavMeshCreateParams) ([]byte, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	nvp := params.Nvp

	// Find portal edges which are at tile borders.
	edgeCount := 0
	portalCount := 0
	for i := 0; i < params.PolyCount; i++ {
		p := params.Polys[i*2*nvp:]
		for j := 0; j < nvp; j++ {
			if p[j] == meshNullIdx {
				break
			}
			edgeCount++
			if p[nvp+j]&0x8000 != 0 {
				if dir := p[nvp+j] & 0xf; dir != 0xf {
					portalCount++
				}
			}
		}
	}
	maxLinkCount := edgeCount + portalCount*2

	// Find unique detail vertices.
	uniqueDetailVertCount := 0
	detailTriCount := 0
	if params.DetailMeshes != nil {
		detailTriCount = params.DetailTriCount
		for i := 0; i < params.PolyCount; i++ {
			ndv := int(params.DetailMeshes[i*4+1])
			nv := countVerts(params.Polys[i*2*nvp:], nvp)
			uniqueDetailVertCount += ndv - nv
		}
	} else {
		// No input detail mesh, build detail mesh from nav polys.
		for i := 0; i < params.PolyCount; i++ {
			nv := countVerts(params.Polys[i*2*nvp:], nvp)
			detailTriCount += nv - 2
		}
	}

	data := &NavMeshData{
		Header: DtMeshHeader{
			Magic:           DT_NAVMESH_MAGIC,
			Version:         DT_NAVMESH_VERSION,
			X:               params.TileX,
			Y:               params.TileY,
			Layer:           params.TileLayer,
			UserId:          params.UserId,
			PolyCount:       int32(params.PolyCount),
			VertCount:       int32(params.VertCount),
			MaxLinkCount:    int32(maxLinkCount),
			Bmin:            params.Bmin,
			Bmax:            params.Bmax,
			DetailMeshCount: int32(params.PolyCount),
			DetailVertCount: int32(uniqueDetailVertCount),
			DetailTriCount:  int32(detailTriCount),
			BvQuantFactor:   1 / params.Cs,
			OffMeshBase:     int32(params.PolyCount),
			WalkableHeight:  params.WalkableHeight,
			WalkableRadius:  params.WalkableRadius,
			WalkableClimb:   params.WalkableClimb,
		},
		NavVerts:   make([]float32, 3*params.VertCount),
		NavPolys:   make([]DtPoly, params.PolyCount),
		Links:      make([]DtLink, maxLinkCount),
		NavDMeshes: make([]DtPolyDetail, params.PolyCount),
		NavDVerts:  make([]float32, 3*uniqueDetailVertCount),
		NavDTris:   make([]uint8, 4*detailTriCount),
	}

	// Store vertices
	for i := 0; i < params.VertCount; i++ {
		iv := params.Verts[i*3:]
		v := data.NavVerts[i*3:]
		v[0] = params.Bmin[0] + float32(iv[0])*params.Cs
		v[1] = params.Bmin[1] + float32(iv[1])*params.Ch
		v[2] = params.Bmin[2] + float32(iv[2])*params.Cs
	}

	// Store polygons
	for i := 0; i < params.PolyCount; i++ {
		src := params.Polys[i*2*nvp:]
		p := &data.NavPolys[i]
		p.Flags = params.PolyFlags[i]
		p.SetArea(params.PolyAreas[i])
		p.SetType(DT_POLYTYPE_GROUND)
		for j := 0; j < nvp; j++ {
			if src[j] == meshNullIdx {
				break
			}
			p.Verts[j] = src[j]
			if src[nvp+j]&0x8000 != 0 {
				// Border or portal edge.
				switch src[nvp+j] & 0xf {
				case 0xf: // Border
					p.Neis[j] = 0
				case 0: // Portal x-
					p.Neis[j] = DT_EXT_LINK | 4
				case 1: // Portal z+
					p.Neis[j] = DT_EXT_LINK | 2
				case 2: // Portal x+
					p.Neis[j] = DT_EXT_LINK | 0
				case 3: // Portal z-
					p.Neis[j] = DT_EXT_LINK | 6
				}
			} else if src[nvp+j] != meshNullIdx {
				// Normal connection
				p.Neis[j] = src[nvp+j] + 1
			}
			p.VertCount++
		}
	}

	// Store detail meshes and vertices.
	// The nav polygon vertices are stored as the first vertices on each mesh.
	// We compress the mesh data by skipping them and using the navmesh coordinates.
	if params.DetailMeshes != nil {
		vbase := 0
		for i := 0; i < params.PolyCount; i++ {
			dtl := &data.NavDMeshes[i]
			vb := int(params.DetailMeshes[i*4+0])
			ndv := int(params.DetailMeshes[i*4+1])
			nv := int(data.NavPolys[i].VertCount)
			dtl.VertBase = uint32(vbase)
			dtl.VertCount = uint8(ndv - nv)
			dtl.TriBase = params.DetailMeshes[i*4+2]
			dtl.TriCount = uint8(params.DetailMeshes[i*4+3])
			// Copy vertices except the first 'nv' verts which are equal to nav poly verts.
			if ndv-nv > 0 {
				copy(data.NavDVerts[vbase*3:], params.DetailVerts[(vb+nv)*3:(vb+ndv)*3])
				vbase += ndv - nv
			}
		}
		copy(data.NavDTris, params.DetailTris[:4*params.DetailTriCount])
	} else {
		// Create dummy detail mesh by triangulating polys.
		tbase := 0
		for i := 0; i < params.PolyCount; i++ {
			dtl := &data.NavDMeshes[i]
			nv := int(data.NavPolys[i].VertCount)
			dtl.TriBase = uint32(tbase)
			dtl.TriCount = uint8(nv - 2)
			// Triangulate polygon (local indices).
			for j := 2; j < nv; j++ {
				t := data.NavDTris[tbase*4:]
				t[0] = 0
				t[1] = uint8(j - 1)
				t[2] = uint8(j)
				// Bit for each edge that belongs to poly boundary.
				t[3] = 1 << 2
				if j == 2 {
					t[3] |= 1 << 0
				}
				if j == nv-1 {
					t[3] |= 1 << 4
				}
				tbase++
			}
		}
	}

	// Store and create BVtree.
	if params.BuildBvTree {
		nodes := make([]DtBVNode, 2*params.PolyCount)
		n := createBVTree(params, nodes)
		data.NavBvtree = nodes[:n]
		data.Header.BvNodeCount = int32(n)
	}

	return data.ToBin(), nil
}
