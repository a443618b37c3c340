package model

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) Add(d Vec3i) Vec3i { return Vec3i{X: v.X + d.X, Y: v.Y + d.Y, Z: v.Z + d.Z} }

func (v Vec3i) Below() Vec3i { return Vec3i{X: v.X, Y: v.Y - 1, Z: v.Z} }

func Manhattan(a, b Vec3i) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	dz := a.Z - b.Z
	if dz < 0 {
		dz = -dz
	}
	return dx + dy + dz
}

// ChebyshevXZ is the horizontal king-move distance; Y is ignored.
func ChebyshevXZ(a, b Vec3i) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dz := a.Z - b.Z
	if dz < 0 {
		dz = -dz
	}
	if dx > dz {
		return dx
	}
	return dz
}
