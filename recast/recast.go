// Package recast voxelizes triangle soup into a heightfield and derives the
// region, contour, polygon and detail meshes a navigation tile is built from.
package recast

import (
	"errors"
	"math"

	"github.com/gorustyt/navbake/common"
)

// RcConfig is the voxel-space build configuration.
type RcConfig struct {
	/// The width of the field along the x-axis. [Limit: >= 0] [Units: vx]
	Width int

	/// The height of the field along the z-axis. [Limit: >= 0] [Units: vx]
	Height int

	/// The size of the non-navigable border around the heightfield. [Limit: >=0] [Units: vx]
	BorderSize int

	/// The xz-plane cell size to use for fields. [Limit: > 0] [Units: wu]
	Cs float32

	/// The y-axis cell size to use for fields. [Limit: > 0] [Units: wu]
	Ch float32

	Bmin [3]float32
	Bmax [3]float32

	/// The maximum slope that is considered walkable. [Limits: 0 <= value < 90] [Units: Degrees]
	WalkableSlopeAngle float32

	/// Minimum floor to 'ceiling' height that will still allow the floor area to
	/// be considered walkable. [Limit: >= 3] [Units: vx]
	WalkableHeight int

	/// Maximum ledge height that is considered to still be traversable. [Limit: >=0] [Units: vx]
	WalkableClimb int

	/// The distance to erode/shrink the walkable area of the heightfield away from
	/// obstructions. [Limit: >=0] [Units: vx]
	WalkableRadius int

	/// The maximum allowed length for contour edges along the border of the mesh. [Limit: >=0] [Units: vx]
	MaxEdgeLen int

	/// The maximum distance a simplified contour's border edges should deviate
	/// the original raw contour. [Limit: >=0] [Units: vx]
	MaxSimplificationError float32

	/// The minimum number of cells allowed to form isolated island areas. [Limit: >=0] [Units: vx]
	MinRegionArea int

	/// Any regions with a span count smaller than this value will, if possible,
	/// be merged with larger regions. [Limit: >=0] [Units: vx]
	MergeRegionArea int

	/// [Limit: >= 3]
	MaxVertsPerPoly int

	/// [Limits: 0 or >= 0.9] [Units: wu]
	DetailSampleDist float32

	/// [Limit: >=0] [Units: wu]
	DetailSampleMaxError float32
}

const (
	/// The default area id used to indicate a walkable polygon.
	/// This is also the maximum allowed area id.
	RC_WALKABLE_AREA = 63
	/// Represents the null area.
	RC_NULL_AREA = 0

	RC_NOT_CONNECTED = 0x3f

	RC_SPANS_PER_POOL   = 2048
	RC_SPAN_HEIGHT_BITS = 13
	RC_SPAN_MAX_HEIGHT  = (1 << RC_SPAN_HEIGHT_BITS) - 1

	// Heightfield border flag. Spans with this region id are never part of
	// the walkable surface.
	RC_BORDER_REG = 0x8000
	// Set on contour vertices lying on the tile border.
	RC_BORDER_VERTEX = 0x10000
	// Set on contour vertices where the area changes.
	RC_AREA_BORDER = 0x20000
	// Masks the region id in raw contour vertex data.
	RC_CONTOUR_REG_MASK = 0xffff
	// Null index in polygon vertex and neighbour arrays.
	RC_MESH_NULL_IDX = 0xffff

	RC_CONTOUR_TESS_WALL_EDGES = 0x01
	RC_CONTOUR_TESS_AREA_EDGES = 0x02
)

var (
	ErrInvalidInput = errors.New("recast: invalid input")
	ErrOutOfSpace   = errors.New("recast: capacity exceeded")
)

func CalcBounds(verts []float32, numVerts int) (bmin, bmax [3]float32) {
	copy(bmin[:], verts[:3])
	copy(bmax[:], verts[:3])
	for i := 1; i < numVerts; i++ {
		v := common.GetVert3(verts, i)
		common.Vmin(bmin[:], v)
		common.Vmax(bmax[:], v)
	}
	return bmin, bmax
}

func CalcGridSize(bmin, bmax [3]float32, cellSize float32) (sizeX, sizeZ int) {
	sizeX = int((bmax[0]-bmin[0])/cellSize + 0.5)
	sizeZ = int((bmax[2]-bmin[2])/cellSize + 0.5)
	return sizeX, sizeZ
}

func calcTriNormal(v0, v1, v2 []float32) [3]float32 {
	var e0, e1, n [3]float32
	common.Vsub(e0[:], v1, v0)
	common.Vsub(e1[:], v2, v0)
	common.Vcross(n[:], e0[:], e1[:])
	common.Vnormalize(n[:])
	return n
}

// MarkWalkableTriangles sets the area of every triangle whose slope is below
// walkableSlopeAngle (degrees) to RC_WALKABLE_AREA.
func MarkWalkableTriangles(walkableSlopeAngle float32, verts []float32, tris []int32, triAreaIDs []uint8) {
	walkableThr := float32(math.Cos(float64(walkableSlopeAngle) / 180.0 * math.Pi))
	for i := 0; i < len(tris)/3; i++ {
		tri := tris[i*3 : i*3+3]
		norm := calcTriNormal(common.GetVert3(verts, tri[0]), common.GetVert3(verts, tri[1]), common.GetVert3(verts, tri[2]))
		if norm[1] > walkableThr {
			triAreaIDs[i] = RC_WALKABLE_AREA
		}
	}
}

func ClearUnwalkableTriangles(walkableSlopeAngle float32, verts []float32, tris []int32, triAreaIDs []uint8) {
	walkableLimitY := float32(math.Cos(float64(walkableSlopeAngle) / 180.0 * math.Pi))
	for i := 0; i < len(tris)/3; i++ {
		tri := tris[i*3 : i*3+3]
		norm := calcTriNormal(common.GetVert3(verts, tri[0]), common.GetVert3(verts, tri[1]), common.GetVert3(verts, tri[2]))
		if norm[1] <= walkableLimitY {
			triAreaIDs[i] = RC_NULL_AREA
		}
	}
}
