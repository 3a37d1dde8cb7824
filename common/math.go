package common

import (
	"cmp"
	"math"
)

// Sqr returns the square of the value.
func Sqr[T IT](a T) T {
	return a * a
}

// Abs returns the absolute value.
func Abs[T IT](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

// Clamp clamps value to [minInclusive, maxInclusive].
func Clamp[T cmp.Ordered](value, minInclusive, maxInclusive T) T {
	if value < minInclusive {
		return minInclusive
	}
	if value > maxInclusive {
		return maxInclusive
	}
	return value
}

func Sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

// Vadd performs res = v1 + v2.
func Vadd(res, v1, v2 []float32) {
	res[0] = v1[0] + v2[0]
	res[1] = v1[1] + v2[1]
	res[2] = v1[2] + v2[2]
}

// Vsub performs res = v1 - v2.
func Vsub(res, v1, v2 []float32) {
	res[0] = v1[0] - v2[0]
	res[1] = v1[1] - v2[1]
	res[2] = v1[2] - v2[2]
}

// Vscale performs res = v * t.
func Vscale(res, v []float32, t float32) {
	res[0] = v[0] * t
	res[1] = v[1] * t
	res[2] = v[2] * t
}

// Vmad performs a scaled vector addition: res = v1 + v2*s.
func Vmad(res, v1, v2 []float32, s float32) {
	res[0] = v1[0] + v2[0]*s
	res[1] = v1[1] + v2[1]*s
	res[2] = v1[2] + v2[2]*s
}

// Vlerp interpolates from v1 toward v2 by t.
func Vlerp(res, v1, v2 []float32, t float32) {
	res[0] = v1[0] + (v2[0]-v1[0])*t
	res[1] = v1[1] + (v2[1]-v1[1])*t
	res[2] = v1[2] + (v2[2]-v1[2])*t
}

// Vmin stores the per-component minimum of mn and v in mn.
func Vmin(mn, v []float32) {
	mn[0] = min(mn[0], v[0])
	mn[1] = min(mn[1], v[1])
	mn[2] = min(mn[2], v[2])
}

// Vmax stores the per-component maximum of mx and v in mx.
func Vmax(mx, v []float32) {
	mx[0] = max(mx[0], v[0])
	mx[1] = max(mx[1], v[1])
	mx[2] = max(mx[2], v[2])
}

// Vcross derives the cross product v1 x v2.
func Vcross(res, v1, v2 []float32) {
	res[0] = v1[1]*v2[2] - v1[2]*v2[1]
	res[1] = v1[2]*v2[0] - v1[0]*v2[2]
	res[2] = v1[0]*v2[1] - v1[1]*v2[0]
}

func Vdot(v1, v2 []float32) float32 {
	return v1[0]*v2[0] + v1[1]*v2[1] + v1[2]*v2[2]
}

func Vlen(v []float32) float32 {
	return Sqrt32(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func VlenSqr(v []float32) float32 {
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
}

func Vdist(v1, v2 []float32) float32 {
	return Sqrt32(VdistSqr(v1, v2))
}

func VdistSqr(v1, v2 []float32) float32 {
	dx := v2[0] - v1[0]
	dy := v2[1] - v1[1]
	dz := v2[2] - v1[2]
	return dx*dx + dy*dy + dz*dz
}

// Vnormalize scales v to unit length. Zero vectors are left untouched.
func Vnormalize(v []float32) {
	l := Vlen(v)
	if l == 0 {
		return
	}
	d := 1.0 / l
	v[0] *= d
	v[1] *= d
	v[2] *= d
}

// Vequal performs a sloppy colocation check of two points.
func Vequal(p0, p1 []float32) bool {
	const thr = float32(1.0/16384.0) * float32(1.0/16384.0)
	return VdistSqr(p0, p1) < thr
}

// Vdist2D is the distance between two points projected on the xz-plane.
func Vdist2D(v1, v2 []float32) float32 {
	return Sqrt32(Vdist2DSqr(v1, v2))
}

func Vdist2DSqr(v1, v2 []float32) float32 {
	dx := v2[0] - v1[0]
	dz := v2[2] - v1[2]
	return dx*dx + dz*dz
}

func Vdot2D(u, v []float32) float32 {
	return u[0]*v[0] + u[2]*v[2]
}

// Vperp2D derives the xz-plane perp product (uz*vx - ux*vz).
func Vperp2D(u, v []float32) float32 {
	return u[2]*v[0] - u[0]*v[2]
}

// TriArea2D derives the signed xz-plane area of triangle ABC. Positive when
// C is to the right of AB.
func TriArea2D(a, b, c []float32) float32 {
	abx := b[0] - a[0]
	abz := b[2] - a[2]
	acx := c[0] - a[0]
	acz := c[2] - a[2]
	return acx*abz - abx*acz
}

func IsFinite(v float32) bool {
	f := float64(v)
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func Visfinite(v []float32) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}

// OverlapBounds checks whether two axis aligned boxes overlap.
func OverlapBounds(amin, amax, bmin, bmax []float32) bool {
	return amin[0] <= bmax[0] && amax[0] >= bmin[0] &&
		amin[1] <= bmax[1] && amax[1] >= bmin[1] &&
		amin[2] <= bmax[2] && amax[2] >= bmin[2]
}

// OverlapQuantBounds is OverlapBounds for quantized boxes.
func OverlapQuantBounds(amin, amax, bmin, bmax [3]uint16) bool {
	return amin[0] <= bmax[0] && amax[0] >= bmin[0] &&
		amin[1] <= bmax[1] && amax[1] >= bmin[1] &&
		amin[2] <= bmax[2] && amax[2] >= bmin[2]
}

var (
	dirOffsetX = [4]int{-1, 0, 1, 0}
	dirOffsetY = [4]int{0, 1, 0, -1}
)

// GetDirOffsetX gets the x-axis offset for a grid direction (0..3).
func GetDirOffsetX(direction int) int {
	return dirOffsetX[direction&0x03]
}

// GetDirOffsetY gets the z-axis offset for a grid direction (0..3).
func GetDirOffsetY(direction int) int {
	return dirOffsetY[direction&0x03]
}

// GetDirForOffset gets the direction for an offset. One of x and y should be 0.
func GetDirForOffset(offsetX, offsetZ int) int {
	dirs := [5]int{3, 0, -1, 2, 1}
	return dirs[((offsetZ+1)<<1)+offsetX]
}

// NextPow2 returns the next power of two >= v.
func NextPow2(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
