package mathx

// FloorDiv divides rounding toward negative infinity. b must be positive.
// Chunk and region coordinates of negative cells depend on it.
func FloorDiv(a, b int) int {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Per-axis multipliers; axis i of a hashed coordinate uses lanes[i].
var lanes = [...]uint64{0x9e3779b97f4a7c15, 0xc2b2ae3d27d4eb4f, 0xbf58476d1ce4e5b9}

// splitmix64 finalizer.
func finalize(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hashCoords(seed int64, coords ...int) uint64 {
	v := uint64(seed)
	for i, c := range coords {
		v ^= uint64(uint32(int32(c))) * lanes[i]
	}
	return finalize(v)
}

// Hash2 is a stable hash of a column. Terrain features keyed on columns use it.
func Hash2(seed int64, x, z int) uint64 { return hashCoords(seed, x, z) }

// Hash3 is a stable hash of a cell. Drop rolls and ore placement use it.
func Hash3(seed int64, x, y, z int) uint64 { return hashCoords(seed, x, y, z) }
