package collect

import (
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
)

// IsLog reports whether the cell at pos can start a tree fell.
func (c *Collector) IsLog(world string, pos modelpkg.Vec3i) bool {
	cell, ok := c.env.CellAt(world, pos)
	if !ok {
		return false
	}
	_, isLog := c.mats.LogFamily(cell.Type)
	return isLog
}

// Tree collects the logs and leaves of the tree containing origin. Logs
// connect by face to same-family logs and leaves; leaves connect to
// same-family leaves only, diagonals included.
func (c *Collector) Tree(world string, origin modelpkg.Vec3i, maxBlocks int) []modelpkg.Vec3i {
	start, ok := c.env.CellAt(world, origin)
	if !ok {
		return nil
	}
	family, isLog := c.mats.LogFamily(start.Type)
	if !isLog {
		return nil
	}

	leafOf := func(t string) bool {
		f, ok := c.mats.LeafFamily(t)
		return ok && f == family
	}
	logOf := func(t string) bool {
		f, ok := c.mats.LogFamily(t)
		return ok && f == family
	}

	return Flood(c.env, world, origin, start, maxBlocks, Rule{
		Accept: func(from modelpkg.Cell, _ modelpkg.Vec3i, cell modelpkg.Cell) bool {
			if logOf(from.Type) {
				return logOf(cell.Type) || leafOf(cell.Type)
			}
			return leafOf(cell.Type)
		},
		Adjacency: func(cell modelpkg.Cell) []modelpkg.Vec3i {
			if logOf(cell.Type) {
				return FaceOffsets
			}
			return ExtendedOffsets
		},
	})
}

// Stump returns the lowest log among cells, preferring the earliest
// discovered on ties.
func (c *Collector) Stump(world string, cells []modelpkg.Vec3i) (modelpkg.Vec3i, bool) {
	var best modelpkg.Vec3i
	found := false
	for _, p := range cells {
		cell, ok := c.env.CellAt(world, p)
		if !ok {
			continue
		}
		if _, isLog := c.mats.LogFamily(cell.Type); !isLog {
			continue
		}
		if !found || p.Y < best.Y {
			best = p
			found = true
		}
	}
	return best, found
}
