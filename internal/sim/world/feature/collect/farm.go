package collect

import (
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
)

// IsMatureCrop reports whether the cell at pos is ready to harvest.
func (c *Collector) IsMatureCrop(world string, pos modelpkg.Vec3i) bool {
	cell, ok := c.env.CellAt(world, pos)
	return ok && c.mats.IsMatureCrop(cell.Type, cell.Age)
}

// Farm collects mature crops on the origin's layer that are connected through
// the 8 horizontal neighbors and lie within radius of the origin.
func (c *Collector) Farm(world string, origin modelpkg.Vec3i, radius int) []modelpkg.Vec3i {
	start, ok := c.env.CellAt(world, origin)
	if !ok || !c.mats.IsMatureCrop(start.Type, start.Age) {
		return nil
	}
	if radius < 0 {
		radius = 0
	}
	side := 2*radius + 1
	return Flood(c.env, world, origin, start, side*side, Rule{
		Accept: func(_ modelpkg.Cell, pos modelpkg.Vec3i, cell modelpkg.Cell) bool {
			if pos.Y != origin.Y || modelpkg.ChebyshevXZ(origin, pos) > radius {
				return false
			}
			return c.mats.IsMatureCrop(cell.Type, cell.Age)
		},
		Adjacency: func(modelpkg.Cell) []modelpkg.Vec3i { return PlaneOffsets },
	})
}
