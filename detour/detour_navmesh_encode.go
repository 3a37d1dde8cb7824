package detour

import (
	"fmt"

	"github.com/gorustyt/navbake/common/rw"
)

// NavMeshData is the decoded form of a tile blob. Sections are laid out in
// this order, each padded to four bytes: header, verts, polys, links, detail
// meshes, detail verts, detail tris, bv tree.
type NavMeshData struct {
	Header     DtMeshHeader
	NavVerts   []float32
	NavPolys   []DtPoly
	Links      []DtLink // Only reserves space; links are rebuilt on load.
	NavDMeshes []DtPolyDetail
	NavDVerts  []float32
	NavDTris   []uint8
	NavBvtree  []DtBVNode
}

// dataSize is the blob size implied by the header counts.
func dataSize(h *DtMeshHeader) int {
	align := func(n int) int { return n + rw.Align4(n) }
	return align(meshHeaderSize) +
		align(12*int(h.VertCount)) +
		align(polySize*int(h.PolyCount)) +
		align(linkSize*int(h.MaxLinkCount)) +
		align(polyDetailSize*int(h.DetailMeshCount)) +
		align(12*int(h.DetailVertCount)) +
		align(4*int(h.DetailTriCount)) +
		align(bvNodeSize*int(h.BvNodeCount))
}

func (d *NavMeshData) ToBin() []byte {
	w := rw.NewNavMeshDataBinWriter()
	d.Header.ToBin(w)
	w.PadZero(rw.Align4(meshHeaderSize))

	w.WriteFloat32s(d.NavVerts)
	w.PadZero(rw.Align4(4 * len(d.NavVerts)))
	for i := range d.NavPolys {
		d.NavPolys[i].ToBin(w)
	}
	w.PadZero(rw.Align4(polySize * len(d.NavPolys)))
	for i := range d.Links {
		d.Links[i].ToBin(w)
	}
	w.PadZero(rw.Align4(linkSize * len(d.Links)))
	for i := range d.NavDMeshes {
		d.NavDMeshes[i].ToBin(w)
	}
	w.PadZero(rw.Align4(polyDetailSize * len(d.NavDMeshes)))
	w.WriteFloat32s(d.NavDVerts)
	w.PadZero(rw.Align4(4 * len(d.NavDVerts)))
	w.WriteUInt8s(d.NavDTris)
	w.PadZero(rw.Align4(len(d.NavDTris)))
	for i := range d.NavBvtree {
		d.NavBvtree[i].ToBin(w)
	}
	w.PadZero(rw.Align4(bvNodeSize * len(d.NavBvtree)))
	return w.GetWriteBytes()
}

// FromBin decodes a tile blob. The header is validated before any section is
// allocated so a corrupt count cannot trigger a huge allocation.
func (d *NavMeshData) FromBin(data []byte) error {
	if len(data) < meshHeaderSize {
		return fmt.Errorf("%w: %d bytes is shorter than the tile header", ErrInvalidParam, len(data))
	}
	r := rw.NewNavMeshDataBinReader(data)
	d.Header.FromBin(r)
	h := &d.Header
	if h.Magic != DT_NAVMESH_MAGIC {
		return ErrWrongMagic
	}
	if h.Version != DT_NAVMESH_VERSION {
		return fmt.Errorf("%w: got %d, want %d", ErrWrongVersion, h.Version, DT_NAVMESH_VERSION)
	}
	counts := []int32{h.PolyCount, h.VertCount, h.MaxLinkCount, h.DetailMeshCount,
		h.DetailVertCount, h.DetailTriCount, h.BvNodeCount, h.OffMeshConCount}
	for _, c := range counts {
		if c < 0 || c > 1<<24 {
			return fmt.Errorf("%w: section count %d out of range", ErrInvalidParam, c)
		}
	}
	if size := dataSize(h); size > len(data) {
		return fmt.Errorf("%w: header needs %d bytes, blob has %d", ErrInvalidParam, size, len(data))
	}

	r.Skip(rw.Align4(meshHeaderSize))
	d.NavVerts = make([]float32, 3*h.VertCount)
	r.ReadFloat32s(d.NavVerts)
	r.Skip(rw.Align4(4 * len(d.NavVerts)))
	d.NavPolys = make([]DtPoly, h.PolyCount)
	for i := range d.NavPolys {
		d.NavPolys[i].FromBin(r)
	}
	r.Skip(rw.Align4(polySize * len(d.NavPolys)))
	d.Links = make([]DtLink, h.MaxLinkCount)
	for i := range d.Links {
		d.Links[i].FromBin(r)
	}
	r.Skip(rw.Align4(linkSize * len(d.Links)))
	d.NavDMeshes = make([]DtPolyDetail, h.DetailMeshCount)
	for i := range d.NavDMeshes {
		d.NavDMeshes[i].FromBin(r)
	}
	r.Skip(rw.Align4(polyDetailSize * len(d.NavDMeshes)))
	d.NavDVerts = make([]float32, 3*h.DetailVertCount)
	r.ReadFloat32s(d.NavDVerts)
	r.Skip(rw.Align4(4 * len(d.NavDVerts)))
	d.NavDTris = make([]uint8, 4*h.DetailTriCount)
	r.ReadUInt8s(d.NavDTris)
	r.Skip(rw.Align4(len(d.NavDTris)))
	d.NavBvtree = make([]DtBVNode, h.BvNodeCount)
	for i := range d.NavBvtree {
		d.NavBvtree[i].FromBin(r)
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	return nil
}
