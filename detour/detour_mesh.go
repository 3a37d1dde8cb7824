// Package detour assembles Recast polygon meshes into a binary navigation tile
// and answers nearest-polygon and path queries against it.
package detour

import (
	"github.com/gorustyt/navbake/common/rw"
)

const (
	/// The maximum number of vertices per navigation polygon.
	/// @ingroup detour
	DT_VERTS_PER_POLYGON = 6
	DT_NULL_LINK         = 0xffffffff

	/// A flag that indicates that an entity links to an external entity.
	/// (E.g. A polygon edge is a portal that links to another polygon.)
	DT_EXT_LINK = 0x8000

	/// A magic number used to detect compatibility of navigation tile data.
	DT_NAVMESH_MAGIC = 'D'<<24 | 'N'<<16 | 'A'<<8 | 'V'

	/// A version number used to detect compatibility of navigation tile data.
	DT_NAVMESH_VERSION = 7

	/// The maximum number of user defined area ids.
	/// @ingroup detour
	DT_MAX_AREAS = 64
)

const (
	/// The polygon is a standard convex polygon that is part of the surface of the mesh.
	DT_POLYTYPE_GROUND = 0
	/// The polygon is an off-mesh connection consisting of two vertices.
	DT_POLYTYPE_OFFMESH_CONNECTION = 1
)

const (
	DT_DETAIL_EDGE_BOUNDARY = 0x01 ///< Detail triangle edge is part of the poly boundary
)

// Serialized sizes of the tile records. They match the packed C layout so
// tiles stay byte compatible with other Detour readers.
const (
	meshHeaderSize = 100
	polySize       = 32
	linkSize       = 12
	polyDetailSize = 12
	bvNodeSize     = 16
)

// DtPolyRef is a handle to a polygon within a navigation mesh. Zero is never a
// valid reference.
type DtPolyRef uint32

// DtPoly defines a polygon within a DtMeshTile.
type DtPoly struct {
	/// Index to first link in linked list. (Or #DT_NULL_LINK if there is no link.)
	FirstLink uint32

	/// The indices of the polygon's vertices.
	/// The actual vertices are located in DtMeshTile::verts.
	Verts [DT_VERTS_PER_POLYGON]uint16

	/// Packed data representing neighbor polygons references and flags for each edge.
	Neis [DT_VERTS_PER_POLYGON]uint16

	/// The user defined polygon flags.
	Flags uint16

	/// The number of vertices in the polygon.
	VertCount uint8

	/// The bit packed area id and polygon type.
	/// @note Use the structure's set and get methods to acess this value.
	AreaAndtype uint8
}

func (d *DtPoly) ToBin(w *rw.ReaderWriter) {
	w.WriteUInt32(d.FirstLink)
	w.WriteUInt16s(d.Verts[:])
	w.WriteUInt16s(d.Neis[:])
	w.WriteUInt16(d.Flags)
	w.WriteUInt8(d.VertCount)
	w.WriteUInt8(d.AreaAndtype)
}

func (d *DtPoly) FromBin(w *rw.ReaderWriter) *DtPoly {
	d.FirstLink = w.ReadUInt32()
	w.ReadUInt16s(d.Verts[:])
	w.ReadUInt16s(d.Neis[:])
	d.Flags = w.ReadUInt16()
	d.VertCount = w.ReadUInt8()
	d.AreaAndtype = w.ReadUInt8()
	return d
}

// / Sets the user defined area id. [Limit: < #DT_MAX_AREAS]
func (d *DtPoly) SetArea(a uint8) { d.AreaAndtype = (d.AreaAndtype & 0xc0) | (a & 0x3f) }

// / Sets the polygon type. (See: #dtPolyTypes.)
func (d *DtPoly) SetType(t uint8) { d.AreaAndtype = (d.AreaAndtype & 0x3f) | (t << 6) }

// / Gets the user defined area id.
func (d *DtPoly) GetArea() uint8 { return d.AreaAndtype & 0x3f }

// / Gets the polygon type. (See: #dtPolyTypes)
func (d *DtPoly) GetType() uint8 { return d.AreaAndtype >> 6 }

// DtPolyDetail defines the location of detail sub-mesh data within a DtMeshTile.
type DtPolyDetail struct {
	VertBase  uint32 ///< The offset of the vertices in the DtMeshTile::detailVerts array.
	TriBase   uint32 ///< The offset of the triangles in the DtMeshTile::detailTris array.
	VertCount uint8  ///< The number of vertices in the sub-mesh.
	TriCount  uint8  ///< The number of triangles in the sub-mesh.
}

func (d *DtPolyDetail) ToBin(w *rw.ReaderWriter) {
	w.WriteUInt32(d.VertBase)
	w.WriteUInt32(d.TriBase)
	w.WriteUInt8(d.VertCount)
	w.WriteUInt8(d.TriCount)
	w.PadZero(2)
}

func (d *DtPolyDetail) FromBin(w *rw.ReaderWriter) *DtPolyDetail {
	d.VertBase = w.ReadUInt32()
	d.TriBase = w.ReadUInt32()
	d.VertCount = w.ReadUInt8()
	d.TriCount = w.ReadUInt8()
	w.Skip(2)
	return d
}

// DtLink defines a link between polygons.
type DtLink struct {
	Ref  DtPolyRef ///< Neighbour reference. (The neighbor that is linked to.)
	Next uint32    ///< Index of the next link.
	Edge uint8     ///< Index of the polygon edge that owns this link.
	Side uint8     ///< If a boundary link, defines on which side the link is.
	Bmin uint8     ///< If a boundary link, defines the minimum sub-edge area.
	Bmax uint8     ///< If a boundary link, defines the maximum sub-edge area.
}

func (d *DtLink) ToBin(w *rw.ReaderWriter) {
	w.WriteUInt32(uint32(d.Ref))
	w.WriteUInt32(d.Next)
	w.WriteUInt8(d.Edge)
	w.WriteUInt8(d.Side)
	w.WriteUInt8(d.Bmin)
	w.WriteUInt8(d.Bmax)
}

func (d *DtLink) FromBin(w *rw.ReaderWriter) *DtLink {
	d.Ref = DtPolyRef(w.ReadUInt32())
	d.Next = w.ReadUInt32()
	d.Edge = w.ReadUInt8()
	d.Side = w.ReadUInt8()
	d.Bmin = w.ReadUInt8()
	d.Bmax = w.ReadUInt8()
	return d
}

// DtBVNode is a bounding volume node.
type DtBVNode struct {
	Bmin [3]uint16 ///< Minimum bounds of the node's AABB. [(x, y, z)]
	Bmax [3]uint16 ///< Maximum bounds of the node's AABB. [(x, y, z)]
	I    int32     ///< The node's index. (Negative for escape sequence.)
}

func (d *DtBVNode) ToBin(w *rw.ReaderWriter) {
	w.WriteUInt16s(d.Bmin[:])
	w.WriteUInt16s(d.Bmax[:])
	w.WriteInt32(d.I)
}

func (d *DtBVNode) FromBin(w *rw.ReaderWriter) *DtBVNode {
	w.ReadUInt16s(d.Bmin[:])
	w.ReadUInt16s(d.Bmax[:])
	d.I = w.ReadInt32()
	return d
}

// DtMeshHeader provides high level information related to a DtMeshTile object.
type DtMeshHeader struct {
	Magic           int32   ///< Tile magic number. (Used to identify the data format.)
	Version         int32   ///< Tile data format version number.
	X               int32   ///< The x-position of the tile within the dtNavMesh tile grid. (x, y, layer)
	Y               int32   ///< The y-position of the tile within the dtNavMesh tile grid. (x, y, layer)
	Layer           int32   ///< The layer of the tile within the dtNavMesh tile grid. (x, y, layer)
	UserId          uint32  ///< The user defined id of the tile.
	PolyCount       int32   ///< The number of polygons in the tile.
	VertCount       int32   ///< The number of vertices in the tile.
	MaxLinkCount    int32   ///< The number of allocated links.
	DetailMeshCount int32   ///< The number of sub-meshes in the detail mesh.
	DetailVertCount int32   ///< The number of unique vertices in the detail mesh. (In addition to the polygon vertices.)
	DetailTriCount  int32   ///< The number of triangles in the detail mesh.
	BvNodeCount     int32   ///< The number of bounding volume nodes. (Zero if bounding volumes are disabled.)
	OffMeshConCount int32   ///< The number of off-mesh connections.
	OffMeshBase     int32   ///< The index of the first polygon which is an off-mesh connection.
	WalkableHeight  float32 ///< The height of the agents using the tile.
	WalkableRadius  float32 ///< The radius of the agents using the tile.
	WalkableClimb   float32 ///< The maximum climb height of the agents using the tile.
	Bmin            [3]float32
	Bmax            [3]float32

	/// The bounding volume quantization factor.
	BvQuantFactor float32
}

func (d *DtMeshHeader) ToBin(w *rw.ReaderWriter) {
	w.WriteInt32(d.Magic)
	w.WriteInt32(d.Version)
	w.WriteInt32(d.X)
	w.WriteInt32(d.Y)
	w.WriteInt32(d.Layer)
	w.WriteUInt32(d.UserId)
	w.WriteInt32(d.PolyCount)
	w.WriteInt32(d.VertCount)
	w.WriteInt32(d.MaxLinkCount)
	w.WriteInt32(d.DetailMeshCount)
	w.WriteInt32(d.DetailVertCount)
	w.WriteInt32(d.DetailTriCount)
	w.WriteInt32(d.BvNodeCount)
	w.WriteInt32(d.OffMeshConCount)
	w.WriteInt32(d.OffMeshBase)
	w.WriteFloat32(d.WalkableHeight)
	w.WriteFloat32(d.WalkableRadius)
	w.WriteFloat32(d.WalkableClimb)
	w.WriteFloat32s(d.Bmin[:])
	w.WriteFloat32s(d.Bmax[:])
	w.WriteFloat32(d.BvQuantFactor)
}

func (d *DtMeshHeader) FromBin(w *rw.ReaderWriter) *DtMeshHeader {
	d.Magic = w.ReadInt32()
	d.Version = w.ReadInt32()
	d.X = w.ReadInt32()
	d.Y = w.ReadInt32()
	d.Layer = w.ReadInt32()
	d.UserId = w.ReadUInt32()
	d.PolyCount = w.ReadInt32()
	d.VertCount = w.ReadInt32()
	d.MaxLinkCount = w.ReadInt32()
	d.DetailMeshCount = w.ReadInt32()
	d.DetailVertCount = w.ReadInt32()
	d.DetailTriCount = w.ReadInt32()
	d.BvNodeCount = w.ReadInt32()
	d.OffMeshConCount = w.ReadInt32()
	d.OffMeshBase = w.ReadInt32()
	d.WalkableHeight = w.ReadFloat32()
	d.WalkableRadius = w.ReadFloat32()
	d.WalkableClimb = w.ReadFloat32()
	w.ReadFloat32s(d.Bmin[:])
	w.ReadFloat32s(d.Bmax[:])
	d.BvQuantFactor = w.ReadFloat32()
	return d
}

// DtMeshTile defines a navigation mesh tile.
type DtMeshTile struct {
	Salt uint32 ///< Counter describing modifications to the tile.

	LinksFreeList uint32        ///< Index to the next free link.
	Header        *DtMeshHeader ///< The tile header.
	Polys         []DtPoly      ///< The tile polygons. [Size: DtMeshHeader::polyCount]
	Verts         []float32     ///< The tile vertices. [(x, y, z) * DtMeshHeader::vertCount]
	Links         []DtLink      ///< The tile links. [Size: DtMeshHeader::maxLinkCount]
	DetailMeshes  []DtPolyDetail
	/// The detail mesh's unique vertices. [(x, y, z) * DtMeshHeader::detailVertCount]
	DetailVerts []float32
	/// The detail mesh's triangles. [(vertA, vertB, vertC, triFlags) * DtMeshHeader::detailTriCount].
	/// See dtDetailTriEdgeFlags and dtGetDetailTriEdgeFlags.
	DetailTris []uint8
	/// The tile bounding volume nodes. [Size: DtMeshHeader::bvNodeCount]
	/// (Will be null if bounding volumes are disabled.)
	BvTree []DtBVNode
}

// DtGetDetailTriEdgeFlags gets the flags for edge edgeIndex (0..2) of a detail triangle.
func DtGetDetailTriEdgeFlags(triFlags uint8, edgeIndex int) uint8 {
	return (triFlags >> (edgeIndex * 2)) & 0x3
}
