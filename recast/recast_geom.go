package recast

// Integer xz predicates over vertices stored as (x, y, z, ...) groups.

func prev(i, n int) int {
	if i-1 >= 0 {
		return i - 1
	}
	return n - 1
}

func next(i, n int) int {
	if i+1 < n {
		return i + 1
	}
	return 0
}

func area2(a, b, c []int) int {
	return (b[0]-a[0])*(c[2]-a[2]) - (c[0]-a[0])*(b[2]-a[2])
}

func xorb(x, y bool) bool { return x != y }

// left reports whether c is strictly left of the directed line a->b.
func left(a, b, c []int) bool { return area2(a, b, c) < 0 }

func leftOn(a, b, c []int) bool { return area2(a, b, c) <= 0 }

func collinear(a, b, c []int) bool { return area2(a, b, c) == 0 }

// intersectProp reports a proper intersection of ab and cd: they share a
// point interior to both segments.
func intersectProp(a, b, c, d []int) bool {
	if collinear(a, b, c) || collinear(a, b, d) || collinear(c, d, a) || collinear(c, d, b) {
		return false
	}
	return xorb(left(a, b, c), left(a, b, d)) && xorb(left(c, d, a), left(c, d, b))
}

// between reports whether c lies on the closed segment ab.
func between(a, b, c []int) bool {
	if !collinear(a, b, c) {
		return false
	}
	if a[0] != b[0] {
		return (a[0] <= c[0] && c[0] <= b[0]) || (a[0] >= c[0] && c[0] >= b[0])
	}
	return (a[2] <= c[2] && c[2] <= b[2]) || (a[2] >= c[2] && c[2] >= b[2])
}

func intersect(a, b, c, d []int) bool {
	if intersectProp(a, b, c, d) {
		return true
	}
	return between(a, b, c) || between(a, b, d) || between(c, d, a) || between(c, d, b)
}

func vequal(a, b []int) bool {
	return a[0] == b[0] && a[2] == b[2]
}
