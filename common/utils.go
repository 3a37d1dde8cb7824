package common

import "github.com/go-gl/mathgl/mgl32"

type Vec3 = mgl32.Vec3
type Vec4 = mgl32.Vec4
type Mat4 = mgl32.Mat4

type IT interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

type IIndex interface {
	~int | ~int8 | ~int16 | ~int32 | ~uint | ~uint8 | ~uint16 | ~uint32
}

// GetVert3 returns the index'th (x, y, z) triple of a flat array.
func GetVert3[T IT, T1 IIndex](verts []T, index T1) []T {
	i := int(index) * 3
	return verts[i : i+3]
}

// GetVert4 returns the index'th quadruple of a flat array (contour and detail triangle data).
func GetVert4[T IT, T1 IIndex](verts []T, index T1) []T {
	i := int(index) * 4
	return verts[i : i+4]
}

// SliceTToSlice converts between numeric slice element types.
func SliceTToSlice[T1, T2 IT](v1 []T1) []T2 {
	v2 := make([]T2, len(v1))
	for i, v := range v1 {
		v2[i] = T2(v)
	}
	return v2
}

// ToVec3 copies the first three components of v.
func ToVec3(v []float32) Vec3 {
	return Vec3{v[0], v[1], v[2]}
}

// TransformPoint applies an affine transform to a point.
func TransformPoint(m Mat4, p Vec3) Vec3 {
	return m.Mul4x1(p.Vec4(1)).Vec3()
}

// AssertTrue panics when an internal invariant is broken.
func AssertTrue(ok bool) {
	if !ok {
		panic("assertion failed")
	}
}
