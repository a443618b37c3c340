package collect

import (
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/catalogs"
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
)

// Env is the read side of the host grid. ok=false means the cell is not
// currently available (unloaded region) and is treated as non-matching.
type Env interface {
	CellAt(world string, pos modelpkg.Vec3i) (cell modelpkg.Cell, ok bool)
}

// Fixed neighbor orders. Discovery order, and therefore the stagger order of
// the resulting work, depends on these; do not reorder.
var (
	FaceOffsets     = []modelpkg.Vec3i{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1}}
	ExtendedOffsets = extendedOffsets()
	PlaneOffsets    = planeOffsets()
)

func extendedOffsets() []modelpkg.Vec3i {
	out := make([]modelpkg.Vec3i, 0, 26)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			for dz := -1; dz <= 1; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out = append(out, modelpkg.Vec3i{X: dx, Y: dy, Z: dz})
			}
		}
	}
	return out
}

func planeOffsets() []modelpkg.Vec3i {
	out := make([]modelpkg.Vec3i, 0, 8)
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			if dx == 0 && dz == 0 {
				continue
			}
			out = append(out, modelpkg.Vec3i{X: dx, Z: dz})
		}
	}
	return out
}

// Rule is one feature's predicate and adjacency pair.
type Rule struct {
	// Accept decides whether the cell at pos joins the set when reached from
	// a cell of type from.
	Accept func(from modelpkg.Cell, pos modelpkg.Vec3i, cell modelpkg.Cell) bool
	// Adjacency returns the offsets explored from an accepted cell.
	Adjacency func(cell modelpkg.Cell) []modelpkg.Vec3i
}

// Flood runs a bounded breadth-first fill from origin. The origin must already
// have passed the feature's origin check. The result is in discovery order
// and holds at most max cells.
func Flood(env Env, world string, origin modelpkg.Vec3i, originCell modelpkg.Cell, max int, rule Rule) []modelpkg.Vec3i {
	if max <= 0 {
		return nil
	}

	type node struct {
		pos  modelpkg.Vec3i
		cell modelpkg.Cell
	}

	// Only accepted cells are marked: a cell rejected from one side (a log
	// seen from a leaf) may still be accepted from another.
	seen := make(map[modelpkg.Vec3i]bool, 64)
	seen[origin] = true
	out := make([]modelpkg.Vec3i, 0, 64)
	out = append(out, origin)

	queue := make([]node, 0, 64)
	queue = append(queue, node{pos: origin, cell: originCell})

	for len(queue) > 0 && len(out) < max {
		n := queue[0]
		queue = queue[1:]
		for _, d := range rule.Adjacency(n.cell) {
			np := n.pos.Add(d)
			if seen[np] {
				continue
			}
			c, ok := env.CellAt(world, np)
			if !ok || !rule.Accept(n.cell, np, c) {
				continue
			}
			seen[np] = true
			out = append(out, np)
			if len(out) >= max {
				break
			}
			queue = append(queue, node{pos: np, cell: c})
		}
	}
	return out
}

// Collector holds the per-feature rules over one host grid.
type Collector struct {
	env  Env
	mats *catalogs.Materials
}

func New(env Env, mats *catalogs.Materials) *Collector {
	return &Collector{env: env, mats: mats}
}

func (c *Collector) Materials() *catalogs.Materials { return c.mats }

// CellAt reads through to the host grid; ok=false when pos is not loaded.
func (c *Collector) CellAt(world string, pos modelpkg.Vec3i) (modelpkg.Cell, bool) {
	return c.env.CellAt(world, pos)
}
